package lot

import (
	"context"
	"fmt"
	"sort"
	"time"

	"coldledger/internal/core/apperror"
	"coldledger/internal/core/id"
	"coldledger/internal/core/types"
	"coldledger/pkg/logger"
)

// FIFORequest asks for lots to cover one outbound order line.
type FIFORequest struct {
	OrderID     id.ID
	OrderLineID id.ID
	ProductID   id.ID
	WarehouseID id.ID
	Quantity    types.Quantity
	AsOf        time.Time

	// PreferLotID is consumed before the FIFO order (e.g. the purchase lot of a supplier return).
	PreferLotID *id.ID
}

// FIFOResult is the outcome of one line allocation.
type FIFOResult struct {
	Allocations []Allocation
	Allocated   types.Quantity
	Shortfall   types.Quantity

	// CostPrice is the allocation-weighted mean; nil when nothing was allocated.
	CostPrice *types.Money
	// CostAmount covers the full line quantity, valuing any shortfall at the mean.
	CostAmount *types.Money
}

// AllocateFIFO consumes the oldest lots first until the line is covered.
// A shortfall is recorded and logged; in strict mode it fails instead.
func (s *Service) AllocateFIFO(ctx context.Context, req FIFORequest) (FIFOResult, error) {
	res := FIFOResult{Allocated: types.Zero(), Shortfall: types.Zero()}
	if !req.Quantity.IsPositive() {
		return res, nil
	}

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		candidates, err := s.repo.ListFIFOCandidates(ctx, req.ProductID, req.WarehouseID)
		if err != nil {
			return fmt.Errorf("list fifo candidates: %w", err)
		}
		if req.PreferLotID != nil {
			candidates, err = s.preferLot(ctx, candidates, *req.PreferLotID, req)
			if err != nil {
				return err
			}
		}

		total := types.Zero()
		for _, l := range candidates {
			total = total.Add(types.MaxDec(l.Available(), types.Zero()))
		}
		if s.cfg.StrictAllocation && total.LessThan(req.Quantity) {
			return apperror.NewInsufficientLotQuantity("product:"+req.ProductID.String(), req.Quantity.String(), total.String()).
				WithDetail("warehouseId", req.WarehouseID.String())
		}

		remaining := req.Quantity
		now := time.Now().UTC()
		for _, l := range candidates {
			if !remaining.IsPositive() {
				break
			}
			take := types.MinDec(l.Available(), remaining)
			if !take.IsPositive() {
				continue
			}
			cost, err := s.Allocate(ctx, l.ID, take, req.AsOf)
			if err != nil {
				return fmt.Errorf("allocate lot %s: %w", l.LotNo, err)
			}
			res.Allocations = append(res.Allocations, Allocation{
				ID:          id.New(),
				OrderID:     req.OrderID,
				OrderLineID: req.OrderLineID,
				LotID:       l.ID,
				LotNo:       l.LotNo,
				Kind:        KindFIFO,
				Quantity:    take,
				CostPrice:   cost,
				CostAmount:  types.RoundMoney(cost.Mul(take)),
				ReceivedAt:  l.ReceivedAt,
				CreatedAt:   now,
			})
			remaining = remaining.Sub(take)
		}

		if len(res.Allocations) > 0 {
			if err := s.repo.CreateAllocations(ctx, res.Allocations); err != nil {
				return fmt.Errorf("create allocations: %w", err)
			}
		}
		res.Allocated = req.Quantity.Sub(remaining)
		res.Shortfall = remaining
		return nil
	})
	if err != nil {
		return FIFOResult{}, err
	}

	if len(res.Allocations) > 0 {
		costSum := types.Zero()
		for _, a := range res.Allocations {
			costSum = costSum.Add(a.CostPrice.Mul(a.Quantity))
		}
		mean := types.RoundQuantity(costSum.Div(res.Allocated))
		amount := types.RoundMoney(costSum.Add(res.Shortfall.Mul(mean)))
		res.CostPrice = &mean
		res.CostAmount = &amount
	}

	if res.Shortfall.IsPositive() {
		logger.Warn(ctx, "fifo allocation shortfall",
			"order_id", req.OrderID,
			"line_id", req.OrderLineID,
			"product_id", req.ProductID,
			"requested", req.Quantity.String(),
			"shortfall", res.Shortfall.String(),
		)
	}
	return res, nil
}

// preferLot moves the preferred lot to the front of the candidates when it can serve the request.
func (s *Service) preferLot(ctx context.Context, candidates []*Lot, lotID id.ID, req FIFORequest) ([]*Lot, error) {
	for i, l := range candidates {
		if l.ID == lotID {
			out := make([]*Lot, 0, len(candidates))
			out = append(out, l)
			out = append(out, candidates[:i]...)
			return append(out, candidates[i+1:]...), nil
		}
	}
	// Not a FIFO candidate: only usable when it holds the same product at the same place.
	l, err := s.repo.GetForUpdate(ctx, lotID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return candidates, nil
		}
		return nil, err
	}
	if l.ProductID != req.ProductID || l.WarehouseID != req.WarehouseID || !l.Available().IsPositive() {
		return candidates, nil
	}
	return append([]*Lot{l}, candidates...), nil
}

// ReleaseAllocations undoes every allocation of an order: FIFO quantities go back
// to their lots and restorations are taken back out. Returns what was released.
func (s *Service) ReleaseAllocations(ctx context.Context, orderID id.ID) ([]Allocation, error) {
	var out []Allocation
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		allocs, err := s.repo.ListAllocationsByOrder(ctx, orderID)
		if err != nil {
			return fmt.Errorf("list allocations: %w", err)
		}
		for _, a := range allocs {
			switch a.Kind {
			case KindRestore:
				if err := s.takeBack(ctx, a.LotID, a.Quantity); err != nil {
					return err
				}
			default:
				if _, err := s.ReturnToLot(ctx, a.LotID, a.Quantity, ""); err != nil {
					return err
				}
			}
		}
		if err := s.repo.DeleteAllocationsByOrder(ctx, orderID); err != nil {
			return fmt.Errorf("delete allocations: %w", err)
		}
		out = allocs
		return nil
	})
	return out, err
}

// RestoreRequest returns customer goods into the lots they were sold from.
type RestoreRequest struct {
	OrderID        id.ID
	OrderLineID    id.ID
	OriginalLineID id.ID
	Quantity       types.Quantity
	Reason         string
}

// RestoreToOriginalLots puts returned quantity back into the original line's lots,
// most recently received first, never beyond a lot's initial quantity.
// Returns the restorations made; the caller books any remainder as a new lot.
func (s *Service) RestoreToOriginalLots(ctx context.Context, req RestoreRequest) ([]Allocation, error) {
	var out []Allocation
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		original, err := s.repo.ListAllocationsByLine(ctx, req.OriginalLineID)
		if err != nil {
			return fmt.Errorf("list original allocations: %w", err)
		}
		sort.SliceStable(original, func(i, j int) bool {
			return original[i].ReceivedAt.After(original[j].ReceivedAt)
		})

		remaining := req.Quantity
		now := time.Now().UTC()
		for _, a := range original {
			if !remaining.IsPositive() {
				break
			}
			if a.Kind != KindFIFO {
				continue
			}
			l, err := s.repo.GetForUpdate(ctx, a.LotID)
			if err != nil {
				if apperror.IsNotFound(err) {
					continue
				}
				return err
			}
			room := types.MinDec(a.Quantity, l.InitialQuantity.Sub(l.CurrentQuantity))
			put := types.MinDec(room, remaining)
			if !put.IsPositive() {
				continue
			}
			l.setCurrent(l.CurrentQuantity.Add(put))
			l.appendNote(fmt.Sprintf("returned %s: %s", put.String(), req.Reason))
			if err := s.repo.Update(ctx, l); err != nil {
				return fmt.Errorf("update lot %s: %w", l.LotNo, err)
			}
			out = append(out, Allocation{
				ID:          id.New(),
				OrderID:     req.OrderID,
				OrderLineID: req.OrderLineID,
				LotID:       l.ID,
				LotNo:       l.LotNo,
				Kind:        KindRestore,
				Quantity:    put,
				CostPrice:   a.CostPrice,
				CostAmount:  types.RoundMoney(a.CostPrice.Mul(put)),
				ReceivedAt:  l.ReceivedAt,
				CreatedAt:   now,
			})
			remaining = remaining.Sub(put)
		}
		if len(out) > 0 {
			return s.repo.CreateAllocations(ctx, out)
		}
		return nil
	})
	return out, err
}
