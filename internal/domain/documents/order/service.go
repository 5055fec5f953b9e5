package order

import (
	"context"
	"fmt"
	"time"

	"coldledger/internal/core/apperror"
	"coldledger/internal/core/id"
	corenumerator "coldledger/internal/core/numerator"
	"coldledger/internal/core/tx"
	"coldledger/internal/core/types"
	"coldledger/internal/domain"
	"coldledger/internal/domain/catalogs/deduction"
	"coldledger/internal/domain/catalogs/party"
	"coldledger/internal/domain/catalogs/product"
	"coldledger/internal/domain/registers/account"
	"coldledger/internal/domain/registers/lot"
	"coldledger/internal/domain/registers/stock"
	"coldledger/internal/domain/storagefee"
	"coldledger/pkg/logger"
)

// PartyDirectory loads parties.
type PartyDirectory interface {
	GetByID(ctx context.Context, partyID id.ID) (*party.Party, error)
}

// ProductCatalog resolves products and packaging specs.
type ProductCatalog interface {
	ResolveSpec(ctx context.Context, productID id.ID, specID *id.ID) (*product.Product, *product.PackagingSpec, error)
}

// FormulaCalculator turns gross weight into net weight.
type FormulaCalculator interface {
	Calculate(ctx context.Context, formulaID *id.ID, gross, units types.Quantity) (deduction.Weights, error)
}

// StockLedger moves warehouse stock.
type StockLedger interface {
	Add(ctx context.Context, key stock.Key, qty types.Quantity, ref stock.Ref, actorID string) (*stock.Stock, error)
	Reduce(ctx context.Context, key stock.Key, qty types.Quantity, checkAvailable bool, ref stock.Ref, actorID string) (*stock.Stock, error)
}

// LotLedger creates, consumes and restores lots.
type LotLedger interface {
	CreateInbound(ctx context.Context, p lot.InboundParams, actorID string) (*lot.Lot, error)
	AllocateFIFO(ctx context.Context, req lot.FIFORequest) (lot.FIFOResult, error)
	RestoreToOriginalLots(ctx context.Context, req lot.RestoreRequest) ([]lot.Allocation, error)
	ReleaseAllocations(ctx context.Context, orderID id.ID) ([]lot.Allocation, error)
	AllocationsByLine(ctx context.Context, lineID id.ID) ([]lot.Allocation, error)
	CreatedLotsInUse(ctx context.Context, orderID id.ID) (bool, error)
	DeleteCreatedLots(ctx context.Context, orderID id.ID) ([]*lot.Lot, error)
}

// FeeCalculator prices cold storage.
type FeeCalculator interface {
	Calculate(ctx context.Context, req storagefee.Request) (storagefee.Result, error)
}

// AccountLedger books receivables and payables.
type AccountLedger interface {
	Generate(ctx context.Context, facts account.OrderFacts, actorID string) ([]*account.Entry, error)
	RemoveForOrder(ctx context.Context, orderID id.ID) error
	HasPayments(ctx context.Context, orderID id.ID) (bool, error)
}

// Deps groups the collaborators of the order service.
type Deps struct {
	Repo      Repository
	TxManager tx.Manager
	Numerator corenumerator.Generator
	Parties   PartyDirectory
	Products  ProductCatalog
	Formulas  FormulaCalculator
	Stock     StockLedger
	Lots      LotLedger
	Fees      FeeCalculator
	Accounts  AccountLedger
	Archive   Archive
}

// Service runs the order lifecycle.
type Service struct {
	repo      Repository
	txm       tx.Manager
	numerator corenumerator.Generator
	parties   PartyDirectory
	products  ProductCatalog
	formulas  FormulaCalculator
	stock     StockLedger
	lots      LotLedger
	fees      FeeCalculator
	accounts  AccountLedger
	archive   Archive
}

// NewService creates a new order service.
func NewService(d Deps) *Service {
	return &Service{
		repo:      d.Repo,
		txm:       d.TxManager,
		numerator: d.Numerator,
		parties:   d.Parties,
		products:  d.Products,
		formulas:  d.Formulas,
		stock:     d.Stock,
		lots:      d.Lots,
		fees:      d.Fees,
		accounts:  d.Accounts,
		archive:   d.Archive,
	}
}

// LineInput is a requested order line.
type LineInput struct {
	ProductID      id.ID
	SpecID         *id.ID
	PricingMode    PricingMode
	ContainerCount *types.Quantity

	// Quantity is the net quantity; ignored when GrossWeight is set.
	Quantity    types.Quantity
	GrossWeight *types.Quantity
	FormulaID   *id.ID

	UnitPrice    types.Money
	ShippingCost types.Money
	Discount     types.Money
	StorageRate  *types.Money

	LotID          *id.ID
	OriginalLineID *id.ID

	LogisticsPartyID *id.ID
	PlateNo          string
	DriverPhone      string
	InvoiceNo        string
	Notes            string
}

// Input carries header fields and lines for Create and Update.
type Input struct {
	Type             Type
	SourceID         id.ID
	TargetID         id.ID
	RelatedOrderID   *id.ID
	LogisticsPartyID *id.ID
	OrderDate        time.Time
	DueDate          *time.Time

	ShippingOverride    *types.Money
	DiscountOverride    *types.Money
	StorageFee          types.Money
	OtherFee            types.Money
	CalculateStorageFee bool

	Notes string
	Lines []LineInput
}

// Create validates and stores a draft order.
func (s *Service) Create(ctx context.Context, in Input, actorID string) (*Order, error) {
	now := time.Now().UTC()
	o := &Order{
		ID:        id.New(),
		Status:    StatusDraft,
		CreatedBy: actorID,
		UpdatedBy: actorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	var out *Order
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.apply(ctx, o, in); err != nil {
			return err
		}
		cfg, _ := o.Type.Config()
		no, err := s.numerator.GetNextNumber(ctx, corenumerator.DailyConfig(cfg.Prefix), nil, o.OrderDate)
		if err != nil {
			return fmt.Errorf("generate order number: %w", err)
		}
		o.OrderNo = no

		if err := s.repo.Create(ctx, o); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		if err := s.repo.SaveLines(ctx, o.ID, o.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		var meta Meta
		if o.RelatedOrderID != nil {
			if rel, err := s.repo.GetByID(ctx, *o.RelatedOrderID); err == nil {
				meta = ReturnOf{OrderID: rel.ID, OrderNo: rel.OrderNo}
			}
		}
		if err := s.appendFlow(ctx, o.ID, FlowCreated, meta, in.Notes, actorID); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "order created",
		"order_id", out.ID,
		"order_no", out.OrderNo,
		"type", out.Type,
		"actor", actorID,
	)
	return out, nil
}

// Update replaces header fields and lines of a draft order.
func (s *Service) Update(ctx context.Context, orderID id.ID, in Input, actorID string) (*Order, error) {
	var out *Order
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		o, err := s.lock(ctx, orderID)
		if err != nil {
			return err
		}
		if !o.IsDraft() {
			return apperror.NewInvalidStateTransition("order", string(o.Status), "update")
		}
		if in.Type == "" {
			in.Type = o.Type
		}
		if in.Type != o.Type {
			return apperror.NewValidation("order type cannot change").WithDetail("field", "type")
		}
		if in.RelatedOrderID == nil {
			in.RelatedOrderID = o.RelatedOrderID
		}
		if err := s.apply(ctx, o, in); err != nil {
			return err
		}
		o.UpdatedBy = actorID
		o.UpdatedAt = time.Now().UTC()

		if err := s.repo.Update(ctx, o); err != nil {
			return fmt.Errorf("update order: %w", err)
		}
		if err := s.repo.SaveLines(ctx, o.ID, o.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		if err := s.appendFlow(ctx, o.ID, FlowUpdated, nil, in.Notes, actorID); err != nil {
			return err
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "order updated", "order_id", out.ID, "order_no", out.OrderNo, "actor", actorID)
	return out, nil
}

// apply copies input onto o, resolving parties, snapshots and weights, then validates.
func (s *Service) apply(ctx context.Context, o *Order, in Input) error {
	o.Type = in.Type
	o.SourceID = in.SourceID
	o.TargetID = in.TargetID
	o.RelatedOrderID = in.RelatedOrderID
	o.LogisticsPartyID = in.LogisticsPartyID
	o.OrderDate = types.BusinessDate(in.OrderDate)
	o.DueDate = in.DueDate
	o.ShippingOverride = in.ShippingOverride
	o.DiscountOverride = in.DiscountOverride
	o.StorageFee = in.StorageFee
	o.OtherFee = in.OtherFee
	o.CalculateStorageFee = in.CalculateStorageFee
	o.Notes = in.Notes

	if !o.Type.IsValid() {
		return apperror.NewValidation("unknown order type").
			WithDetail("field", "type").
			WithDetail("value", string(o.Type))
	}
	if err := s.checkParties(ctx, o); err != nil {
		return err
	}

	lines := make([]Line, 0, len(in.Lines))
	for i, li := range in.Lines {
		l, err := s.buildLine(ctx, o.ID, i+1, li)
		if err != nil {
			if ae, ok := apperror.AsAppError(err); ok {
				return ae.WithDetail("lineNo", i+1)
			}
			return err
		}
		lines = append(lines, l)
	}
	o.Lines = lines
	o.Recalculate()
	return o.Validate(ctx)
}

// checkParties enforces the role table of the order type.
func (s *Service) checkParties(ctx context.Context, o *Order) error {
	cfg, _ := o.Type.Config()
	for _, side := range []struct {
		field string
		id    id.ID
		role  party.Role
	}{
		{"sourceId", o.SourceID, cfg.SourceRole},
		{"targetId", o.TargetID, cfg.TargetRole},
	} {
		if id.IsNil(side.id) {
			return apperror.NewValidation("party is required").WithDetail("field", side.field)
		}
		p, err := s.parties.GetByID(ctx, side.id)
		if err != nil {
			return err
		}
		if side.role != 0 && !p.Roles.Has(side.role) {
			return apperror.NewValidation("party role does not fit the order type").
				WithDetail("field", side.field).
				WithDetail("required", side.role.Strings()).
				WithDetail("orderType", string(o.Type))
		}
	}
	if o.LogisticsPartyID != nil {
		p, err := s.parties.GetByID(ctx, *o.LogisticsPartyID)
		if err != nil {
			return err
		}
		if !p.Roles.Has(party.RoleLogistics) {
			return apperror.NewValidation("carrier must have the logistics role").
				WithDetail("field", "logisticsPartyId")
		}
	}
	return nil
}

// buildLine snapshots product and spec attributes and computes net weight and amount.
func (s *Service) buildLine(ctx context.Context, orderID id.ID, lineNo int, in LineInput) (Line, error) {
	p, spec, err := s.products.ResolveSpec(ctx, in.ProductID, in.SpecID)
	if err != nil {
		return Line{}, err
	}

	l := Line{
		ID:               id.New(),
		OrderID:          orderID,
		LineNo:           lineNo,
		ProductID:        p.ID,
		SpecID:           in.SpecID,
		BaseUnit:         p.BaseUnit,
		PricingMode:      in.PricingMode,
		ContainerCount:   in.ContainerCount,
		Quantity:         in.Quantity,
		FormulaID:        in.FormulaID,
		UnitPrice:        in.UnitPrice,
		ShippingCost:     types.RoundMoney(in.ShippingCost),
		Discount:         types.RoundMoney(in.Discount),
		StorageRate:      in.StorageRate,
		LotID:            in.LotID,
		OriginalLineID:   in.OriginalLineID,
		LogisticsPartyID: in.LogisticsPartyID,
		PlateNo:          in.PlateNo,
		DriverPhone:      in.DriverPhone,
		InvoiceNo:        in.InvoiceNo,
		Shortfall:        types.Zero(),
		Notes:            in.Notes,
	}
	if l.PricingMode == "" {
		l.PricingMode = PricingWeight
	}
	if spec != nil {
		l.SpecName = spec.Name
		l.ContainerName = spec.ContainerName
		l.UnitQuantity = spec.UnitQuantity
	}

	if in.GrossWeight != nil {
		units := types.NewMoney(1)
		if in.ContainerCount != nil {
			units = *in.ContainerCount
		}
		w, err := s.formulas.Calculate(ctx, in.FormulaID, *in.GrossWeight, units)
		if err != nil {
			return Line{}, err
		}
		gross := w.Gross
		tare := w.Tare
		l.GrossWeight = &gross
		l.TareWeight = &tare
		l.Quantity = w.Net
	}
	if l.ContainerCount == nil && l.UnitQuantity != nil && l.UnitQuantity.IsPositive() && l.Quantity.IsPositive() {
		count := types.RoundQuantity(l.Quantity.Div(*l.UnitQuantity))
		l.ContainerCount = &count
	}
	if in.LogisticsPartyID != nil {
		lp, err := s.parties.GetByID(ctx, *in.LogisticsPartyID)
		if err != nil {
			return Line{}, err
		}
		if !lp.Roles.Has(party.RoleLogistics) {
			return Line{}, apperror.NewValidation("carrier must have the logistics role").
				WithDetail("field", "logisticsPartyId")
		}
	}
	l.computeAmount()
	return l, nil
}

// Get returns an order with its lines.
func (s *Service) Get(ctx context.Context, orderID id.ID) (*Order, error) {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("order", orderID.String())
		}
		return nil, err
	}
	lines, err := s.repo.GetLines(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	o.Lines = lines
	return o, nil
}

// List returns order headers, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Order], error) {
	filter.Normalize()
	return s.repo.List(ctx, filter)
}

// Flows returns an order's history, oldest first.
func (s *Service) Flows(ctx context.Context, orderID id.ID) ([]*Flow, error) {
	if _, err := s.repo.GetByID(ctx, orderID); err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("order", orderID.String())
		}
		return nil, err
	}
	flows, err := s.repo.ListFlows(ctx, orderID)
	if err != nil {
		return nil, err
	}
	for _, f := range flows {
		if err := f.DecodeMeta(); err != nil {
			return nil, err
		}
	}
	return flows, nil
}

// Returnable reports the quantity still returnable per line of a completed order.
func (s *Service) Returnable(ctx context.Context, orderID id.ID) (map[id.ID]types.Quantity, error) {
	o, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.returnable(ctx, o)
}

// lock loads an order with a row lock and its lines.
func (s *Service) lock(ctx context.Context, orderID id.ID) (*Order, error) {
	o, err := s.repo.GetForUpdate(ctx, orderID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("order", orderID.String())
		}
		return nil, err
	}
	lines, err := s.repo.GetLines(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	o.Lines = lines
	return o, nil
}

func (s *Service) appendFlow(ctx context.Context, orderID id.ID, t FlowType, meta Meta, notes, actorID string) error {
	f, err := NewFlow(orderID, t, meta, notes, actorID)
	if err != nil {
		return err
	}
	if err := s.repo.AppendFlow(ctx, f); err != nil {
		return fmt.Errorf("append order flow: %w", err)
	}
	return nil
}
