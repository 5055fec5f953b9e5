// Package storagefee prices cold storage for order legs.
package storagefee

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"coldledger/internal/core/id"
	"coldledger/internal/core/types"
	"coldledger/internal/domain/catalogs/party"
	"coldledger/internal/domain/registers/lot"
)

// Leg tells which side of an order pays storage.
type Leg string

const (
	LegNone     Leg = ""
	LegInbound  Leg = "inbound"
	LegOutbound Leg = "outbound"
)

// Config holds the tariff.
type Config struct {
	BaseRatePerTon   types.Money
	RatePerTonPerDay types.Money
	DefaultDays      int
}

// DefaultConfig returns 15 per ton handling, 1.5 per ton per day, 7 days fallback.
func DefaultConfig() Config {
	return Config{
		BaseRatePerTon:   types.MustMoney("15"),
		RatePerTonPerDay: types.MustMoney("1.5"),
		DefaultDays:      7,
	}
}

// LotSource looks up where outbound quantities came from.
type LotSource interface {
	AllocationsByLine(ctx context.Context, lineID id.ID) ([]lot.Allocation, error)
	EarliestActive(ctx context.Context, productID, warehouseID id.ID) (*lot.Lot, error)
}

// Line is one order line as seen by the calculator.
type Line struct {
	ID        id.ID
	ProductID id.ID
	Quantity  types.Quantity
}

// Request describes an order to price.
type Request struct {
	OrderType    string
	SourceID     id.ID
	SourceRoles  party.Role
	TargetRoles  party.Role
	BusinessDate time.Time
	Lines        []Line
}

// Result is a computed fee.
type Result struct {
	Fee     types.Money     `json:"fee"`
	Leg     Leg             `json:"leg"`
	Tons    types.Quantity  `json:"tons"`
	AvgDays decimal.Decimal `json:"avgDays"`
}

// Calculator computes storage fees.
type Calculator struct {
	cfg  Config
	lots LotSource
}

// NewCalculator creates a calculator. A zero DefaultDays falls back to 7.
func NewCalculator(cfg Config, lots LotSource) *Calculator {
	if cfg.DefaultDays <= 0 {
		cfg.DefaultDays = 7
	}
	return &Calculator{cfg: cfg, lots: lots}
}

// Config returns the active tariff.
func (c *Calculator) Config() Config { return c.cfg }

func stockHolding(r party.Role) bool {
	return r.Has(party.RoleWarehouse) && !r.Has(party.RoleTransit)
}

// LegFor picks the billed leg for an order type.
// Loading and unloading bill only when the fixed end is a real (non-transit) warehouse.
func LegFor(orderType string, source, target party.Role) Leg {
	switch orderType {
	case "purchase", "return_in":
		return LegInbound
	case "sale", "return_out":
		return LegOutbound
	case "loading":
		if stockHolding(source) {
			return LegOutbound
		}
	case "unloading":
		if stockHolding(target) {
			return LegInbound
		}
	}
	return LegNone
}

// Tons sums line quantities (kg) as metric tons.
func Tons(lines []Line) types.Quantity {
	total := types.Zero()
	for _, l := range lines {
		total = total.Add(l.Quantity)
	}
	return types.KgToTons(total)
}

// StorageDays counts the receipt day as the first day; never less than one.
func StorageDays(received, outbound time.Time) int {
	d := types.DaysBetween(received, outbound) + 1
	if d < 1 {
		return 1
	}
	return d
}

// Calculate prices the order according to LegFor.
func (c *Calculator) Calculate(ctx context.Context, req Request) (Result, error) {
	leg := LegFor(req.OrderType, req.SourceRoles, req.TargetRoles)
	tons := Tons(req.Lines)
	res := Result{Fee: types.Zero(), Leg: leg, Tons: tons, AvgDays: decimal.Zero}

	switch leg {
	case LegInbound:
		res.Fee = c.inbound(tons)
	case LegOutbound:
		avg, err := c.averageDays(ctx, req)
		if err != nil {
			return Result{}, err
		}
		if avg == nil {
			return res, nil
		}
		res.AvgDays = *avg
		res.Fee = c.outbound(tons, *avg)
	}
	return res, nil
}

func (c *Calculator) inbound(tons types.Quantity) types.Money {
	return types.RoundMoney(tons.Mul(c.cfg.BaseRatePerTon))
}

func (c *Calculator) outbound(tons types.Quantity, avgDays decimal.Decimal) types.Money {
	base := tons.Mul(c.cfg.BaseRatePerTon)
	storage := tons.Mul(avgDays).Mul(c.cfg.RatePerTonPerDay)
	return types.RoundMoney(base.Add(storage))
}

// averageDays weights storage days by quantity. Allocated lines use their lots;
// other lines use the earliest active lot at the source or the default.
// Returns nil when there is no weight at all.
func (c *Calculator) averageDays(ctx context.Context, req Request) (*decimal.Decimal, error) {
	outDate := types.BusinessDate(req.BusinessDate)
	weighted := decimal.Zero
	weight := decimal.Zero
	fallback := decimal.NewFromInt(int64(c.cfg.DefaultDays))

	for _, line := range req.Lines {
		allocs, err := c.lots.AllocationsByLine(ctx, line.ID)
		if err != nil {
			return nil, fmt.Errorf("allocations for line %s: %w", line.ID, err)
		}
		used := false
		for _, a := range allocs {
			if a.Kind != lot.KindFIFO {
				continue
			}
			days := decimal.NewFromInt(int64(StorageDays(a.ReceivedAt, outDate)))
			weighted = weighted.Add(a.Quantity.Mul(days))
			weight = weight.Add(a.Quantity)
			used = true
		}
		if used {
			continue
		}

		days := fallback
		if !id.IsNil(req.SourceID) {
			earliest, err := c.lots.EarliestActive(ctx, line.ProductID, req.SourceID)
			if err != nil {
				return nil, fmt.Errorf("earliest lot for product %s: %w", line.ProductID, err)
			}
			if earliest != nil {
				days = decimal.NewFromInt(int64(StorageDays(earliest.ReceivedAt, outDate)))
			}
		}
		weighted = weighted.Add(line.Quantity.Mul(days))
		weight = weight.Add(line.Quantity)
	}

	if !weight.IsPositive() {
		return nil, nil
	}
	avg := weighted.Div(weight)
	return &avg, nil
}

// Preview estimates a fee without lot lookups, assuming avgDays of storage.
func (c *Calculator) Preview(orderType string, source, target party.Role, totalKg types.Quantity, avgDays int) Result {
	if avgDays <= 0 {
		avgDays = c.cfg.DefaultDays
	}
	leg := LegFor(orderType, source, target)
	tons := types.KgToTons(totalKg)
	res := Result{Fee: types.Zero(), Leg: leg, Tons: tons, AvgDays: decimal.Zero}
	switch leg {
	case LegInbound:
		res.Fee = c.inbound(tons)
	case LegOutbound:
		res.AvgDays = decimal.NewFromInt(int64(avgDays))
		res.Fee = c.outbound(tons, res.AvgDays)
	}
	return res
}
