package account

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"coldledger/internal/core/id"
	"coldledger/internal/core/types"
)

// TypeSummary totals one entry type.
type TypeSummary struct {
	Count   int         `json:"count"`
	Amount  types.Money `json:"amount"`
	Paid    types.Money `json:"paid"`
	Balance types.Money `json:"balance"`
	Overdue types.Money `json:"overdue"`
}

func (t *TypeSummary) add(e *Entry, asOf time.Time) {
	t.Count++
	t.Amount = t.Amount.Add(e.Amount)
	t.Paid = t.Paid.Add(e.PaidAmount)
	t.Balance = t.Balance.Add(e.Balance)
	if e.DaysOverdue(asOf) > 0 && e.Balance.IsPositive() {
		t.Overdue = t.Overdue.Add(e.Balance)
	}
}

// Summary is the ledger overview at a date.
type Summary struct {
	AsOf       time.Time   `json:"asOf"`
	Receivable TypeSummary `json:"receivable"`
	Payable    TypeSummary `json:"payable"`
	Net        types.Money `json:"net"`
}

// Summary totals non-cancelled entries booked up to asOf.
func (s *Service) Summary(ctx context.Context, asOf time.Time) (Summary, error) {
	day := types.BusinessDate(asOf)
	entries, err := s.repo.FindEntries(ctx, EntryFilter{ToDate: &day, ExcludeCancelled: true})
	if err != nil {
		return Summary{}, err
	}
	out := Summary{AsOf: day}
	for _, e := range entries {
		if e.Type == Receivable {
			out.Receivable.add(e, day)
		} else {
			out.Payable.add(e, day)
		}
	}
	out.Net = out.Receivable.Balance.Sub(out.Payable.Balance)
	return out, nil
}

// Aging bucket names.
const (
	BucketCurrent = "current"
	Bucket1To30   = "1_30"
	Bucket31To60  = "31_60"
	Bucket61To90  = "61_90"
	BucketOver90  = "over_90"
)

// Buckets lists aging buckets in display order.
var Buckets = []string{BucketCurrent, Bucket1To30, Bucket31To60, Bucket61To90, BucketOver90}

// BucketFor maps days past due to a bucket.
func BucketFor(daysOverdue int) string {
	switch {
	case daysOverdue <= 0:
		return BucketCurrent
	case daysOverdue <= 30:
		return Bucket1To30
	case daysOverdue <= 60:
		return Bucket31To60
	case daysOverdue <= 90:
		return Bucket61To90
	}
	return BucketOver90
}

// AgingRow is one party's open balance by bucket.
type AgingRow struct {
	PartyID   id.ID                  `json:"partyId"`
	PartyCode string                 `json:"partyCode"`
	PartyName string                 `json:"partyName"`
	Buckets   map[string]types.Money `json:"buckets"`
	Total     types.Money            `json:"total"`
}

// AgingReport is open balances of one type grouped by age.
type AgingReport struct {
	Type        EntryType              `json:"type"`
	AsOf        time.Time              `json:"asOf"`
	Rows        []AgingRow             `json:"rows"`
	Totals      map[string]types.Money `json:"totals"`
	Total       types.Money            `json:"total"`
	Overdue     types.Money            `json:"overdue"`
	OverdueRate types.Money            `json:"overdueRate"`
}

func emptyBuckets() map[string]types.Money {
	m := make(map[string]types.Money, len(Buckets))
	for _, b := range Buckets {
		m[b] = types.Zero()
	}
	return m
}

// Aging groups open entries of type t by days past due at asOf.
// Entries without a due date count as current.
func (s *Service) Aging(ctx context.Context, t EntryType, asOf time.Time) (AgingReport, error) {
	day := types.BusinessDate(asOf)
	entries, err := s.repo.FindEntries(ctx, EntryFilter{Type: &t, OpenOnly: true})
	if err != nil {
		return AgingReport{}, err
	}

	report := AgingReport{
		Type:        t,
		AsOf:        day,
		Rows:        []AgingRow{},
		Totals:      emptyBuckets(),
		Total:       types.Zero(),
		Overdue:     types.Zero(),
		OverdueRate: types.Zero(),
	}
	rows := make(map[id.ID]*AgingRow)
	for _, e := range entries {
		if !e.Balance.IsPositive() {
			continue
		}
		row, ok := rows[e.PartyID]
		if !ok {
			row = &AgingRow{PartyID: e.PartyID, Buckets: emptyBuckets(), Total: types.Zero()}
			if p, err := s.parties.GetByID(ctx, e.PartyID); err == nil {
				row.PartyCode = p.Code
				row.PartyName = p.Name
			}
			rows[e.PartyID] = row
		}
		bucket := BucketFor(e.DaysOverdue(day))
		row.Buckets[bucket] = row.Buckets[bucket].Add(e.Balance)
		row.Total = row.Total.Add(e.Balance)
		report.Totals[bucket] = report.Totals[bucket].Add(e.Balance)
		report.Total = report.Total.Add(e.Balance)
		if bucket != BucketCurrent {
			report.Overdue = report.Overdue.Add(e.Balance)
		}
	}

	for _, row := range rows {
		report.Rows = append(report.Rows, *row)
	}
	sort.Slice(report.Rows, func(i, j int) bool {
		return report.Rows[i].Total.GreaterThan(report.Rows[j].Total)
	})
	if report.Total.IsPositive() {
		report.OverdueRate = report.Overdue.Div(report.Total).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return report, nil
}

// PartySummary is one party's position.
type PartySummary struct {
	PartyID           id.ID       `json:"partyId"`
	PartyName         string      `json:"partyName"`
	CurrentBalance    types.Money `json:"currentBalance"`
	ReceivableBalance types.Money `json:"receivableBalance"`
	PayableBalance    types.Money `json:"payableBalance"`
	OpenEntries       int         `json:"openEntries"`
	TotalPaid         types.Money `json:"totalPaid"`
}

// PartySummary totals a party's non-cancelled entries.
func (s *Service) PartySummary(ctx context.Context, partyID id.ID) (PartySummary, error) {
	p, err := s.parties.GetByID(ctx, partyID)
	if err != nil {
		return PartySummary{}, err
	}
	entries, err := s.repo.FindEntries(ctx, EntryFilter{PartyID: &partyID, ExcludeCancelled: true})
	if err != nil {
		return PartySummary{}, err
	}
	out := PartySummary{
		PartyID:           p.ID,
		PartyName:         p.Name,
		CurrentBalance:    p.CurrentBalance,
		ReceivableBalance: types.Zero(),
		PayableBalance:    types.Zero(),
		TotalPaid:         types.Zero(),
	}
	for _, e := range entries {
		if e.Type == Receivable {
			out.ReceivableBalance = out.ReceivableBalance.Add(e.Balance)
		} else {
			out.PayableBalance = out.PayableBalance.Add(e.Balance)
		}
		out.TotalPaid = out.TotalPaid.Add(e.PaidAmount)
		if e.Status == StatusPending || e.Status == StatusPartial {
			out.OpenEntries++
		}
	}
	return out, nil
}

// StatementLine is one movement on a party statement.
type StatementLine struct {
	Date        time.Time   `json:"date"`
	Kind        string      `json:"kind"`
	Reference   string      `json:"reference"`
	Description string      `json:"description"`
	Change      types.Money `json:"change"`
	Balance     types.Money `json:"balance"`
}

// Statement is a party's running balance over a period.
type Statement struct {
	PartyID        id.ID           `json:"partyId"`
	From           time.Time       `json:"from"`
	To             time.Time       `json:"to"`
	OpeningBalance types.Money     `json:"openingBalance"`
	ClosingBalance types.Money     `json:"closingBalance"`
	Lines          []StatementLine `json:"lines"`
}

// Statement lists entries and payments between from and to (inclusive) in
// business-date order with running balances. Positive means the party owes us.
func (s *Service) Statement(ctx context.Context, partyID id.ID, from, to time.Time) (Statement, error) {
	if _, err := s.parties.GetByID(ctx, partyID); err != nil {
		return Statement{}, err
	}
	from, to = types.BusinessDate(from), types.BusinessDate(to)

	entries, err := s.repo.FindEntries(ctx, EntryFilter{PartyID: &partyID, ToDate: &to, ExcludeCancelled: true})
	if err != nil {
		return Statement{}, err
	}
	payments, err := s.repo.FindPayments(ctx, PaymentFilter{PartyID: &partyID, ToDate: &to})
	if err != nil {
		return Statement{}, err
	}

	var lines []StatementLine
	opening := types.Zero()
	for _, e := range entries {
		change := e.Amount.Mul(decimal.NewFromInt(e.Type.Sign()))
		if e.BusinessDate.Before(from) {
			opening = opening.Add(change)
			continue
		}
		lines = append(lines, StatementLine{
			Date:        e.BusinessDate,
			Kind:        "entry",
			Reference:   e.OrderNo,
			Description: string(e.Type) + " " + string(e.Component),
			Change:      change,
		})
	}
	for _, p := range payments {
		change := p.Amount
		if p.Direction == DirectionReceive {
			change = change.Neg()
		}
		if p.PaymentDate.Before(from) {
			opening = opening.Add(change)
			continue
		}
		lines = append(lines, StatementLine{
			Date:        p.PaymentDate,
			Kind:        "payment",
			Reference:   p.Reference,
			Description: string(p.Direction) + " " + p.Method,
			Change:      change,
		})
	}

	sort.SliceStable(lines, func(i, j int) bool {
		if !lines[i].Date.Equal(lines[j].Date) {
			return lines[i].Date.Before(lines[j].Date)
		}
		return lines[i].Kind == "entry" && lines[j].Kind == "payment"
	})
	running := opening
	for i := range lines {
		running = running.Add(lines[i].Change)
		lines[i].Balance = running
	}

	return Statement{
		PartyID:        partyID,
		From:           from,
		To:             to,
		OpeningBalance: opening,
		ClosingBalance: running,
		Lines:          lines,
	}, nil
}
