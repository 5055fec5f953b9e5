package account

import (
	"context"
	"fmt"
	"strings"
	"time"

	"coldledger/internal/core/apperror"
	"coldledger/internal/core/id"
	"coldledger/internal/core/tx"
	"coldledger/internal/core/types"
	"coldledger/internal/domain"
	"coldledger/internal/domain/catalogs/party"
	"coldledger/pkg/logger"
)

// PartyLedger is the party catalog surface the account ledger needs.
type PartyLedger interface {
	GetByID(ctx context.Context, partyID id.ID) (*party.Party, error)
	AdjustBalance(ctx context.Context, partyID id.ID, delta types.Money) error
	EnsureSystemExpense(ctx context.Context, actorID string) (*party.Party, error)
}

// Service manages the account ledger.
type Service struct {
	repo    Repository
	txm     tx.Manager
	parties PartyLedger
	rules   *RuleSet
}

// NewService creates a new account service. A nil rule set uses DefaultRules.
func NewService(repo Repository, txm tx.Manager, parties PartyLedger, rules *RuleSet) *Service {
	if rules == nil {
		rules = MustDefaultRuleSet()
	}
	return &Service{repo: repo, txm: txm, parties: parties, rules: rules}
}

// OrderFacts is what entry generation knows about a completed order.
type OrderFacts struct {
	OrderID          id.ID
	OrderNo          string
	OrderType        string
	SourceID         id.ID
	TargetID         id.ID
	SourceRoles      party.Role
	TargetRoles      party.Role
	Inbound          bool
	Outbound         bool
	LogisticsPartyID *id.ID
	StorageLeg       string
	BusinessDate     time.Time
	DueDate          *time.Time

	Goods   types.Money
	Freight types.Money
	Storage types.Money
	Other   types.Money
}

func (f OrderFacts) amount(c Component) types.Money {
	switch c {
	case ComponentGoods:
		return f.Goods
	case ComponentFreight:
		return f.Freight
	case ComponentStorage:
		return f.Storage
	case ComponentOther:
		return f.Other
	}
	return types.Zero()
}

var generatedComponents = []Component{ComponentGoods, ComponentFreight, ComponentStorage, ComponentOther}

// Generate replaces the order's entries with one entry per non-zero component
// whose rule matches, moving party balances accordingly.
func (s *Service) Generate(ctx context.Context, facts OrderFacts, actorID string) ([]*Entry, error) {
	var created []*Entry
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.removeForOrder(ctx, facts.OrderID); err != nil {
			return err
		}

		for _, c := range generatedComponents {
			amount := types.RoundMoney(facts.amount(c))
			if !amount.IsPositive() {
				continue
			}
			in := RuleInput{
				OrderType:    facts.OrderType,
				Inbound:      facts.Inbound,
				Outbound:     facts.Outbound,
				SourceRoles:  facts.SourceRoles.Strings(),
				TargetRoles:  facts.TargetRoles.Strings(),
				HasLogistics: facts.LogisticsPartyID != nil,
				StorageLeg:   facts.StorageLeg,
				Amount:       amount,
			}
			rule, err := s.rules.Match(c, in)
			if err != nil {
				return err
			}
			if rule == nil {
				continue
			}
			partyID, err := s.resolveParty(ctx, rule.Party, facts, actorID)
			if err != nil {
				return err
			}

			e := newEntry(partyID, c, rule.Type, amount, facts.BusinessDate, actorID)
			orderID := facts.OrderID
			e.OrderID = &orderID
			e.OrderNo = facts.OrderNo
			e.DueDate = facts.DueDate
			e.Notes = fmt.Sprintf("%s %s (%s)", c, facts.OrderNo, rule.Name)
			if err := s.book(ctx, e); err != nil {
				return err
			}
			created = append(created, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Service) resolveParty(ctx context.Context, cp Counterparty, f OrderFacts, actorID string) (id.ID, error) {
	switch cp {
	case PartySource:
		return f.SourceID, nil
	case PartyTarget:
		return f.TargetID, nil
	case PartyLogistics:
		if f.LogisticsPartyID == nil {
			return id.Nil(), apperror.NewValidation("logistics party is required for freight entries")
		}
		return *f.LogisticsPartyID, nil
	case PartyExpense:
		p, err := s.parties.EnsureSystemExpense(ctx, actorID)
		if err != nil {
			return id.Nil(), err
		}
		return p.ID, nil
	}
	return id.Nil(), fmt.Errorf("unknown counterparty selector %q", cp)
}

func newEntry(partyID id.ID, c Component, t EntryType, amount types.Money, businessDate time.Time, actorID string) *Entry {
	now := time.Now().UTC()
	e := &Entry{
		ID:           id.New(),
		PartyID:      partyID,
		Component:    c,
		Type:         t,
		Amount:       amount,
		PaidAmount:   types.Zero(),
		BusinessDate: types.BusinessDate(businessDate),
		CreatedBy:    actorID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	e.Recalculate()
	return e
}

// book persists a new entry and applies it to the party balance.
func (s *Service) book(ctx context.Context, e *Entry) error {
	if err := s.repo.CreateEntry(ctx, e); err != nil {
		return fmt.Errorf("create entry: %w", err)
	}
	return s.parties.AdjustBalance(ctx, e.PartyID, e.SignedBalance())
}

// RemoveForOrder deletes an order's entries and reverses their balance effect.
func (s *Service) RemoveForOrder(ctx context.Context, orderID id.ID) error {
	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.removeForOrder(ctx, orderID)
	})
}

func (s *Service) removeForOrder(ctx context.Context, orderID id.ID) error {
	entries, err := s.repo.ListEntriesByOrder(ctx, orderID)
	if err != nil {
		return fmt.Errorf("list order entries: %w", err)
	}
	for _, e := range entries {
		if e.PaidAmount.IsPositive() {
			return apperror.NewConsistency("order entries already have payments").
				WithDetail("entryId", e.ID.String())
		}
		if e.Status != StatusCancelled {
			if err := s.parties.AdjustBalance(ctx, e.PartyID, e.SignedBalance().Neg()); err != nil {
				return err
			}
		}
		if err := s.repo.DeleteEntry(ctx, e.ID); err != nil {
			return fmt.Errorf("delete entry: %w", err)
		}
	}
	return nil
}

// HasPayments reports whether any entry of the order has been paid against.
func (s *Service) HasPayments(ctx context.Context, orderID id.ID) (bool, error) {
	n, err := s.repo.CountPaymentsByOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// EntryUpdate carries editable entry fields.
type EntryUpdate struct {
	DueDate      *time.Time
	ClearDueDate bool
	Notes        *string
}

// UpdateEntry edits due date and notes.
func (s *Service) UpdateEntry(ctx context.Context, entryID id.ID, u EntryUpdate, actorID string) (*Entry, error) {
	var out *Entry
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		e, err := s.lockEntry(ctx, entryID)
		if err != nil {
			return err
		}
		if u.ClearDueDate {
			e.DueDate = nil
		} else if u.DueDate != nil {
			d := types.BusinessDate(*u.DueDate)
			e.DueDate = &d
		}
		if u.Notes != nil {
			e.Notes = *u.Notes
		}
		e.UpdatedAt = time.Now().UTC()
		out = e
		return s.repo.UpdateEntry(ctx, e)
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "account entry updated", "entry_id", entryID, "actor", actorID)
	return out, nil
}

// Cancel voids an unpaid entry and reverses it from the party balance.
func (s *Service) Cancel(ctx context.Context, entryID id.ID, reason, actorID string) (*Entry, error) {
	var out *Entry
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		e, err := s.lockEntry(ctx, entryID)
		if err != nil {
			return err
		}
		if e.Status == StatusCancelled {
			return apperror.NewInvalidStateTransition("account entry", string(e.Status), "cancel")
		}
		if e.PaidAmount.IsPositive() {
			return apperror.NewConsistency("entries with payments cannot be cancelled").
				WithDetail("paidAmount", e.PaidAmount.String())
		}
		if err := s.parties.AdjustBalance(ctx, e.PartyID, e.SignedBalance().Neg()); err != nil {
			return err
		}
		e.Status = StatusCancelled
		if reason != "" {
			e.Notes = strings.TrimSpace(e.Notes + "\ncancelled: " + reason)
		}
		e.UpdatedAt = time.Now().UTC()
		out = e
		return s.repo.UpdateEntry(ctx, e)
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "account entry cancelled", "entry_id", entryID, "actor", actorID)
	return out, nil
}

// SetOpening records or replaces the opening balance of a party for one type.
// Receivables need a customer, payables a supplier. A zero amount removes it.
func (s *Service) SetOpening(ctx context.Context, partyID id.ID, t EntryType, amount types.Money, asOf time.Time, actorID string) (*Entry, error) {
	if !t.IsValid() {
		return nil, apperror.NewValidation("invalid entry type").WithDetail("value", string(t))
	}
	if amount.IsNegative() {
		return nil, apperror.NewValidation("opening amount cannot be negative")
	}
	amount = types.RoundMoney(amount)

	var out *Entry
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.parties.GetByID(ctx, partyID)
		if err != nil {
			return err
		}
		need := party.RoleCustomer
		if t == Payable {
			need = party.RoleSupplier
		}
		if !p.Roles.Has(need) {
			return apperror.NewValidation("party role does not allow this opening balance").
				WithDetail("type", string(t)).
				WithDetail("roles", p.Roles.Strings())
		}

		existing, err := s.repo.FindInitialEntry(ctx, partyID, t)
		if err != nil && !apperror.IsNotFound(err) {
			return err
		}
		if existing == nil {
			if amount.IsZero() {
				return nil
			}
			e := newEntry(partyID, ComponentInitial, t, amount, asOf, actorID)
			e.IsInitial = true
			e.Notes = "opening balance"
			out = e
			return s.book(ctx, e)
		}

		if amount.LessThan(existing.PaidAmount) {
			return apperror.NewConsistency("opening amount is below what has been paid").
				WithDetail("paidAmount", existing.PaidAmount.String())
		}
		if amount.IsZero() {
			if existing.Status != StatusCancelled {
				if err := s.parties.AdjustBalance(ctx, partyID, existing.SignedBalance().Neg()); err != nil {
					return err
				}
			}
			if err := s.repo.DeleteEntry(ctx, existing.ID); err != nil {
				return fmt.Errorf("delete opening entry: %w", err)
			}
			logger.Info(ctx, "opening balance removed", "party_id", partyID, "type", t, "actor", actorID)
			return nil
		}
		before := existing.SignedBalance()
		existing.Amount = amount
		existing.Recalculate()
		existing.UpdatedAt = time.Now().UTC()
		if err := s.repo.UpdateEntry(ctx, existing); err != nil {
			return fmt.Errorf("update opening entry: %w", err)
		}
		if err := s.parties.AdjustBalance(ctx, partyID, existing.SignedBalance().Sub(before)); err != nil {
			return err
		}
		out = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out != nil {
		logger.Info(ctx, "opening balance set", "party_id", partyID, "type", t, "amount", amount, "actor", actorID)
	}
	return out, nil
}

// Get returns an entry.
func (s *Service) Get(ctx context.Context, entryID id.ID) (*Entry, error) {
	e, err := s.repo.GetEntry(ctx, entryID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("account entry", entryID.String())
		}
		return nil, err
	}
	return e, nil
}

// ListEntries returns entries, newest business date first.
func (s *Service) ListEntries(ctx context.Context, filter EntryFilter) (domain.ListResult[*Entry], error) {
	filter.Normalize()
	return s.repo.ListEntries(ctx, filter)
}

// EntriesByOrder returns the entries generated for an order.
func (s *Service) EntriesByOrder(ctx context.Context, orderID id.ID) ([]*Entry, error) {
	return s.repo.ListEntriesByOrder(ctx, orderID)
}

func (s *Service) lockEntry(ctx context.Context, entryID id.ID) (*Entry, error) {
	e, err := s.repo.GetEntryForUpdate(ctx, entryID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("account entry", entryID.String())
		}
		return nil, err
	}
	return e, nil
}
