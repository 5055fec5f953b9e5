package lot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"coldledger/internal/core/apperror"
	"coldledger/internal/core/id"
	corenumerator "coldledger/internal/core/numerator"
	"coldledger/internal/core/tx"
	"coldledger/internal/core/types"
	"coldledger/internal/domain"
	"coldledger/internal/domain/catalogs/deduction"
	"coldledger/internal/domain/catalogs/party"
	"coldledger/internal/domain/registers/stock"
	"coldledger/pkg/logger"
)

// StockLedger is the part of the stock ledger lots write through.
type StockLedger interface {
	Adjust(ctx context.Context, key stock.Key, delta types.Quantity, ref stock.Ref, actorID string) (*stock.Stock, error)
}

// FormulaCalculator resolves net weight from gross weight.
type FormulaCalculator interface {
	Calculate(ctx context.Context, formulaID *id.ID, gross, units types.Quantity) (deduction.Weights, error)
}

// PartyChecker verifies party roles.
type PartyChecker interface {
	RequireRole(ctx context.Context, partyID id.ID, role party.Role) (*party.Party, error)
}

// Config holds lot ledger options.
type Config struct {
	// StrictAllocation turns a FIFO shortfall into an error.
	StrictAllocation bool
}

// Service provides lot ledger operations.
type Service struct {
	repo      Repository
	txm       tx.Manager
	numerator corenumerator.Generator
	stock     StockLedger
	formulas  FormulaCalculator
	parties   PartyChecker
	cfg       Config
}

// NewService creates a new lot ledger service.
func NewService(
	repo Repository,
	txm tx.Manager,
	numerator corenumerator.Generator,
	stockLedger StockLedger,
	formulas FormulaCalculator,
	parties PartyChecker,
	cfg Config,
) *Service {
	return &Service{
		repo:      repo,
		txm:       txm,
		numerator: numerator,
		stock:     stockLedger,
		formulas:  formulas,
		parties:   parties,
		cfg:       cfg,
	}
}

// InboundParams describes a lot created by an inbound order line.
type InboundParams struct {
	OrderID       id.ID
	OrderLineID   id.ID
	ProductID     id.ID
	SpecID        *id.ID
	WarehouseID   id.ID
	SourcePartyID *id.ID
	FormulaID     *id.ID

	Quantity    types.Quantity
	GrossWeight *types.Quantity
	TareWeight  *types.Quantity
	CostPrice   types.Money
	FreightCost types.Money
	StorageRate types.Money
	ExtraCost   types.Money

	BusinessDate time.Time
	Notes        string
}

// CreateInbound creates one lot for an inbound order line.
func (s *Service) CreateInbound(ctx context.Context, p InboundParams, actorID string) (*Lot, error) {
	if !p.Quantity.IsPositive() {
		return nil, apperror.NewValidation("lot quantity must be positive")
	}
	orderID, lineID := p.OrderID, p.OrderLineID

	l, err := s.newLot(ctx, p.ProductID, p.SpecID, p.WarehouseID, p.Quantity, p.GrossWeight, p.TareWeight, p.BusinessDate, actorID)
	if err != nil {
		return nil, err
	}
	l.SourcePartyID = p.SourcePartyID
	l.SourceOrderID = &orderID
	l.SourceLineID = &lineID
	l.FormulaID = p.FormulaID
	l.CostPrice = p.CostPrice
	l.CostAmount = types.RoundMoney(p.CostPrice.Mul(p.Quantity))
	l.FreightCost = p.FreightCost
	l.StorageRate = p.StorageRate
	l.ExtraCost = p.ExtraCost
	l.Notes = p.Notes

	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, l)
	})
	if err != nil {
		return nil, fmt.Errorf("create lot: %w", err)
	}
	return l, nil
}

func (s *Service) newLot(ctx context.Context, productID id.ID, specID *id.ID, warehouseID id.ID,
	qty types.Quantity, gross, tare *types.Quantity, businessDate time.Time, actorID string) (*Lot, error) {

	date := types.BusinessDate(businessDate)
	lotNo, err := s.numerator.GetNextNumber(ctx, corenumerator.LotConfig(), nil, date)
	if err != nil {
		return nil, fmt.Errorf("generate lot number: %w", err)
	}

	grossWeight := qty
	if gross != nil && gross.IsPositive() {
		grossWeight = *gross
	}
	tareWeight := grossWeight.Sub(qty)
	if tare != nil {
		tareWeight = *tare
	}

	now := time.Now().UTC()
	l := &Lot{
		ID:                 id.New(),
		LotNo:              lotNo,
		ProductID:          productID,
		SpecID:             specID,
		WarehouseID:        warehouseID,
		GrossWeight:        grossWeight,
		TareWeight:         types.MaxDec(tareWeight, types.Zero()),
		CurrentGrossWeight: grossWeight,
		InitialQuantity:    qty,
		CurrentQuantity:    qty,
		ReservedQuantity:   types.Zero(),
		CostPrice:          types.Zero(),
		CostAmount:         types.Zero(),
		FreightCost:        types.Zero(),
		StorageRate:        types.Zero(),
		ExtraCost:          types.Zero(),
		StorageStartDate:   date,
		ReceivedAt:         date,
		Status:             StatusActive,
		CreatedBy:          actorID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	return l, nil
}

// ManualParams describes a lot entered by hand or imported as opening stock.
type ManualParams struct {
	ProductID     id.ID           `json:"productId"`
	SpecID        *id.ID          `json:"specId,omitempty"`
	WarehouseID   id.ID           `json:"warehouseId"`
	SourcePartyID *id.ID          `json:"sourcePartyId,omitempty"`
	FormulaID     *id.ID          `json:"formulaId,omitempty"`
	GrossWeight   *types.Quantity `json:"grossWeight,omitempty"`
	Units         *types.Quantity `json:"units,omitempty"`
	Quantity      *types.Quantity `json:"quantity,omitempty"`
	CostPrice     types.Money     `json:"costPrice"`
	FreightCost   types.Money     `json:"freightCost"`
	StorageRate   types.Money     `json:"storageRate"`
	ExtraCost     types.Money     `json:"extraCost"`
	ReceivedAt    time.Time       `json:"receivedAt"`
	Notes         string          `json:"notes,omitempty"`
}

// CreateManual creates a lot outside any order and books it as opening stock.
// Net weight comes from gross weight and formula unless given explicitly.
func (s *Service) CreateManual(ctx context.Context, p ManualParams, actorID string) (*Lot, error) {
	var out *Lot
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		l, err := s.createManual(ctx, p, false, actorID)
		out = l
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "lot created", "lot_no", out.LotNo, "quantity", out.InitialQuantity, "actor", actorID)
	return out, nil
}

func (s *Service) createManual(ctx context.Context, p ManualParams, initial bool, actorID string) (*Lot, error) {
	if _, err := s.parties.RequireRole(ctx, p.WarehouseID, party.RoleWarehouse); err != nil {
		return nil, err
	}
	if p.CostPrice.IsNegative() {
		return nil, apperror.NewValidation("cost price cannot be negative").WithDetail("field", "costPrice")
	}

	var qty types.Quantity
	var tare *types.Quantity
	switch {
	case p.GrossWeight != nil:
		units := types.NewMoney(1)
		if p.Units != nil {
			units = *p.Units
		}
		w, err := s.formulas.Calculate(ctx, p.FormulaID, *p.GrossWeight, units)
		if err != nil {
			return nil, err
		}
		qty = w.Net
		tare = &w.Tare
	case p.Quantity != nil:
		qty = *p.Quantity
	default:
		return nil, apperror.NewValidation("quantity or gross weight is required")
	}
	if !qty.IsPositive() {
		return nil, apperror.NewValidation("lot quantity must be positive").WithDetail("value", qty.String())
	}

	received := p.ReceivedAt
	if received.IsZero() {
		received = time.Now()
	}
	l, err := s.newLot(ctx, p.ProductID, p.SpecID, p.WarehouseID, qty, p.GrossWeight, tare, received, actorID)
	if err != nil {
		return nil, err
	}
	l.SourcePartyID = p.SourcePartyID
	l.FormulaID = p.FormulaID
	l.CostPrice = p.CostPrice
	l.CostAmount = types.RoundMoney(p.CostPrice.Mul(qty))
	l.FreightCost = p.FreightCost
	l.StorageRate = p.StorageRate
	l.ExtraCost = p.ExtraCost
	l.IsInitial = initial
	l.Notes = p.Notes

	if err := s.repo.Create(ctx, l); err != nil {
		return nil, fmt.Errorf("create lot: %w", err)
	}

	key := stock.NewKey(l.WarehouseID, l.ProductID, l.SpecID)
	ref := stock.Ref{Source: stock.SourceOpening, Reason: "lot " + l.LotNo}
	if _, err := s.stock.Adjust(ctx, key, qty, ref, actorID); err != nil {
		return nil, err
	}
	return l, nil
}

// ImportError reports one rejected import row.
type ImportError struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// ImportReport summarizes an initial import.
type ImportReport struct {
	Created int           `json:"created"`
	LotNos  []string      `json:"lotNos"`
	Errors  []ImportError `json:"errors"`
}

// ImportInitial creates opening lots. Each item commits on its own so one bad row
// does not reject the batch. Items without a receipt date use asOf.
func (s *Service) ImportInitial(ctx context.Context, items []ManualParams, asOf time.Time, actorID string) ImportReport {
	report := ImportReport{LotNos: []string{}, Errors: []ImportError{}}
	for i, item := range items {
		if item.ReceivedAt.IsZero() {
			item.ReceivedAt = asOf
		}
		var created *Lot
		err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
			l, err := s.createManual(ctx, item, true, actorID)
			created = l
			return err
		})
		if err != nil {
			report.Errors = append(report.Errors, ImportError{Index: i, Message: err.Error()})
			continue
		}
		report.Created++
		report.LotNos = append(report.LotNos, created.LotNo)
	}
	logger.Info(ctx, "initial lots imported", "created", report.Created, "failed", len(report.Errors), "actor", actorID)
	return report
}

// UpdateParams carries editable lot fields; nil leaves a field unchanged.
type UpdateParams struct {
	StorageRate    *types.Money
	ExtraCost      *types.Money
	ExtraCostNotes *string
	Notes          *string
}

// Update edits cost attributes of a lot.
func (s *Service) Update(ctx context.Context, lotID id.ID, p UpdateParams, actorID string) (*Lot, error) {
	var out *Lot
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		l, err := s.lock(ctx, lotID)
		if err != nil {
			return err
		}
		if p.StorageRate != nil {
			if p.StorageRate.IsNegative() {
				return apperror.NewValidation("storage rate cannot be negative")
			}
			l.StorageRate = *p.StorageRate
		}
		if p.ExtraCost != nil {
			if p.ExtraCost.IsNegative() {
				return apperror.NewValidation("extra cost cannot be negative")
			}
			l.ExtraCost = *p.ExtraCost
		}
		if p.ExtraCostNotes != nil {
			l.ExtraCostNotes = *p.ExtraCostNotes
		}
		if p.Notes != nil {
			l.Notes = *p.Notes
		}
		l.UpdatedAt = time.Now().UTC()
		out = l
		return s.repo.Update(ctx, l)
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "lot updated", "lot_id", lotID, "actor", actorID)
	return out, nil
}

// Adjust corrects a lot's counted quantity and mirrors the delta into stock.
func (s *Service) Adjust(ctx context.Context, lotID id.ID, newQty types.Quantity, reason, actorID string) (*Lot, error) {
	if newQty.IsNegative() {
		return nil, apperror.NewValidation("quantity cannot be negative")
	}
	if strings.TrimSpace(reason) == "" {
		return nil, apperror.NewValidation("adjustment reason is required").WithDetail("field", "reason")
	}

	var out *Lot
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		l, err := s.lock(ctx, lotID)
		if err != nil {
			return err
		}
		delta := newQty.Sub(l.CurrentQuantity)
		if delta.IsZero() {
			return apperror.NewValidation("new quantity equals current quantity")
		}
		if newQty.LessThan(l.ReservedQuantity) {
			return apperror.NewValidation("new quantity is below reserved quantity").
				WithDetail("reserved", l.ReservedQuantity.String())
		}

		old := l.CurrentQuantity
		l.setCurrent(newQty)
		l.appendNote(fmt.Sprintf("adjusted %s -> %s by %s: %s", old.String(), newQty.String(), actorID, reason))
		if err := s.repo.Update(ctx, l); err != nil {
			return fmt.Errorf("update lot: %w", err)
		}

		key := stock.NewKey(l.WarehouseID, l.ProductID, l.SpecID)
		ref := stock.Ref{Source: stock.SourceLot, Reason: fmt.Sprintf("lot %s: %s", l.LotNo, reason)}
		if _, err := s.stock.Adjust(ctx, key, delta, ref, actorID); err != nil {
			return err
		}
		out = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "lot adjusted", "lot_no", out.LotNo, "quantity", newQty, "actor", actorID)
	return out, nil
}

func (l *Lot) appendNote(line string) {
	stamp := time.Now().UTC().Format("2006-01-02")
	entry := "[" + stamp + "] " + line
	if l.Notes == "" {
		l.Notes = entry
		return
	}
	l.Notes += "\n" + entry
}

// Allocate consumes qty from one lot and returns its real cost price at asOf.
// Nothing is applied when the lot cannot cover qty. Only the lot moves; callers
// own the matching stock leg.
func (s *Service) Allocate(ctx context.Context, lotID id.ID, qty types.Quantity, asOf time.Time) (types.Money, error) {
	if !qty.IsPositive() {
		return types.Zero(), apperror.NewValidation("allocation quantity must be positive")
	}
	return tx.Run(ctx, s.txm, func(ctx context.Context) (types.Money, error) {
		l, err := s.lock(ctx, lotID)
		if err != nil {
			return types.Zero(), err
		}
		if l.Available().LessThan(qty) {
			return types.Zero(), apperror.NewInsufficientLotQuantity(l.ID.String(), qty.String(), l.Available().String()).
				WithDetail("lotNo", l.LotNo)
		}
		cost := l.RealCostPrice(asOf)
		l.setCurrent(l.CurrentQuantity.Sub(qty))
		if err := s.repo.Update(ctx, l); err != nil {
			return types.Zero(), fmt.Errorf("update lot %s: %w", l.LotNo, err)
		}
		return cost, nil
	})
}

// ReturnToLot puts qty back into a lot.
func (s *Service) ReturnToLot(ctx context.Context, lotID id.ID, qty types.Quantity, reason string) (*Lot, error) {
	if !qty.IsPositive() {
		return nil, apperror.NewValidation("return quantity must be positive")
	}
	var out *Lot
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		l, err := s.lock(ctx, lotID)
		if err != nil {
			return err
		}
		l.setCurrent(l.CurrentQuantity.Add(qty))
		if reason != "" {
			l.appendNote(fmt.Sprintf("returned %s: %s", qty.String(), reason))
		}
		out = l
		return s.repo.Update(ctx, l)
	})
	return out, err
}

// takeBack removes previously restored quantity from a lot.
func (s *Service) takeBack(ctx context.Context, lotID id.ID, qty types.Quantity) error {
	l, err := s.lock(ctx, lotID)
	if err != nil {
		return err
	}
	if l.Available().LessThan(qty) {
		return apperror.NewConsistency("restored quantity has already been consumed").
			WithDetail("lotNo", l.LotNo).
			WithDetail("requested", qty.String()).
			WithDetail("available", l.Available().String())
	}
	l.setCurrent(l.CurrentQuantity.Sub(qty))
	return s.repo.Update(ctx, l)
}

func (s *Service) lock(ctx context.Context, lotID id.ID) (*Lot, error) {
	l, err := s.repo.GetForUpdate(ctx, lotID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("lot", lotID.String())
		}
		return nil, err
	}
	return l, nil
}

// Get returns a lot by id.
func (s *Service) Get(ctx context.Context, lotID id.ID) (*Lot, error) {
	l, err := s.repo.GetByID(ctx, lotID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("lot", lotID.String())
		}
		return nil, err
	}
	return l, nil
}

// List returns lots, oldest receipt first.
func (s *Service) List(ctx context.Context, filter Filter) (domain.ListResult[*Lot], error) {
	filter.Normalize()
	return s.repo.List(ctx, filter)
}

// OutboundRecords returns the allocations drawn from a lot.
func (s *Service) OutboundRecords(ctx context.Context, lotID id.ID) ([]Allocation, error) {
	if _, err := s.Get(ctx, lotID); err != nil {
		return nil, err
	}
	return s.repo.ListAllocationsByLot(ctx, lotID)
}

// SummaryByProduct aggregates remaining lots per product.
func (s *Service) SummaryByProduct(ctx context.Context) ([]ProductSummary, error) {
	return s.repo.SummaryByProduct(ctx)
}

// AllocationsByLine returns the allocations of an order line.
func (s *Service) AllocationsByLine(ctx context.Context, lineID id.ID) ([]Allocation, error) {
	return s.repo.ListAllocationsByLine(ctx, lineID)
}

// AllocationsByOrder returns every allocation of an order.
func (s *Service) AllocationsByOrder(ctx context.Context, orderID id.ID) ([]Allocation, error) {
	return s.repo.ListAllocationsByOrder(ctx, orderID)
}

// LotsBySourceOrder returns lots created by an order.
func (s *Service) LotsBySourceOrder(ctx context.Context, orderID id.ID) ([]*Lot, error) {
	return s.repo.ListBySourceOrder(ctx, orderID)
}

// EarliestActive returns the oldest lot with stock left, or nil.
func (s *Service) EarliestActive(ctx context.Context, productID, warehouseID id.ID) (*Lot, error) {
	lots, err := s.repo.ListFIFOCandidates(ctx, productID, warehouseID)
	if err != nil {
		return nil, err
	}
	if len(lots) == 0 {
		return nil, nil
	}
	return lots[0], nil
}

// CreatedLotsInUse reports whether any lot created by the order was consumed or
// allocated, or quantity the order restored into older lots has since been used.
func (s *Service) CreatedLotsInUse(ctx context.Context, orderID id.ID) (bool, error) {
	restores, err := s.repo.ListAllocationsByOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	for _, a := range restores {
		if a.Kind != KindRestore {
			continue
		}
		l, err := s.repo.GetByID(ctx, a.LotID)
		if err != nil {
			return false, err
		}
		if l.Available().LessThan(a.Quantity) {
			return true, nil
		}
	}

	lots, err := s.repo.ListBySourceOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	for _, l := range lots {
		if l.CurrentQuantity.LessThan(l.InitialQuantity) || l.ReservedQuantity.IsPositive() {
			return true, nil
		}
		allocs, err := s.repo.ListAllocationsByLot(ctx, l.ID)
		if err != nil {
			return false, err
		}
		for _, a := range allocs {
			if a.OrderID != orderID {
				return true, nil
			}
		}
	}
	return false, nil
}

// DeleteCreatedLots removes the lots an order created and returns them.
func (s *Service) DeleteCreatedLots(ctx context.Context, orderID id.ID) ([]*Lot, error) {
	var out []*Lot
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		lots, err := s.repo.ListBySourceOrder(ctx, orderID)
		if err != nil {
			return err
		}
		for _, l := range lots {
			if err := s.repo.Delete(ctx, l.ID); err != nil {
				return fmt.Errorf("delete lot %s: %w", l.LotNo, err)
			}
		}
		out = lots
		return nil
	})
	return out, err
}
