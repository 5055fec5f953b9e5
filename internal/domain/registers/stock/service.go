package stock

import (
	"context"
	"fmt"
	"sort"
	"time"

	"coldledger/internal/core/apperror"
	"coldledger/internal/core/id"
	"coldledger/internal/core/tx"
	"coldledger/internal/core/types"
	"coldledger/internal/domain"
	"coldledger/pkg/logger"
)

// Service provides business operations for the stock ledger.
// Every mutation locks the row, applies the change and appends exactly one flow.
// Calls nest into the caller's transaction when one is open.
type Service struct {
	repo    Repository
	txm     tx.Manager
	history History
}

// NewService creates a new stock ledger service.
func NewService(repo Repository, txm tx.Manager) *Service {
	return &Service{repo: repo, txm: txm}
}

// SetHistory wires the completed-order history used by Recompute.
// The order service depends on this service, so the link is made after construction.
func (s *Service) SetHistory(h History) {
	s.history = h
}

// mutateFunc changes st in place and returns the flow type to record.
type mutateFunc func(st *Stock) (FlowType, error)

func (s *Service) apply(ctx context.Context, key Key, createMissing bool, ref Ref, actorID string, fn mutateFunc) (*Stock, error) {
	var out *Stock
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		st, err := s.repo.GetForUpdate(ctx, key)
		created := false
		if err != nil {
			if !apperror.IsNotFound(err) {
				return fmt.Errorf("lock stock %s: %w", key, err)
			}
			// A missing row behaves as an empty one so checks report zero availability.
			st = NewStock(key)
			created = true
		}

		before := *st
		flowType, err := fn(st)
		if err != nil {
			return err
		}
		st.UpdatedAt = time.Now().UTC()

		if created {
			if !createMissing {
				return apperror.NewNotFound("stock", key.String())
			}
			if err := s.repo.Create(ctx, st); err != nil {
				return fmt.Errorf("create stock: %w", err)
			}
		} else if err := s.repo.Update(ctx, st); err != nil {
			return fmt.Errorf("update stock: %w", err)
		}

		if err := s.appendFlow(ctx, &before, st, flowType, ref, nil, actorID); err != nil {
			return err
		}
		out = st
		return nil
	})
	return out, err
}

func (s *Service) appendFlow(ctx context.Context, before, after *Stock, ft FlowType, ref Ref, reverts *id.ID, actorID string) error {
	source := ref.Source
	if source == "" {
		source = SourceManual
	}
	f := &Flow{
		ID:             id.New(),
		StockID:        after.ID,
		WarehouseID:    after.WarehouseID,
		ProductID:      after.ProductID,
		SpecID:         after.SpecID,
		OrderID:        ref.OrderID,
		OrderLineID:    ref.OrderLineID,
		Type:           ft,
		Source:         source,
		QuantityChange: after.Quantity.Sub(before.Quantity),
		QuantityBefore: before.Quantity,
		QuantityAfter:  after.Quantity,
		ReservedBefore: before.ReservedQuantity,
		ReservedAfter:  after.ReservedQuantity,
		Reason:         ref.Reason,
		RevertsFlowID:  reverts,
		ActorID:        actorID,
		OperatedAt:     time.Now().UTC(),
	}
	if err := s.repo.AppendFlow(ctx, f); err != nil {
		return fmt.Errorf("append stock flow: %w", err)
	}
	return nil
}

func requirePositive(qty types.Quantity) error {
	if !qty.IsPositive() {
		return apperror.NewValidation("quantity must be positive").
			WithDetail("field", "quantity").
			WithDetail("value", qty.String())
	}
	return nil
}

func insufficient(st *Stock, requested types.Quantity) error {
	return apperror.NewInsufficientStock(st.ProductID.String(), requested.String(), st.Available().String()).
		WithDetail("warehouseId", st.WarehouseID.String())
}

// Reserve commits qty of available stock to an in-flight order.
func (s *Service) Reserve(ctx context.Context, key Key, qty types.Quantity, ref Ref, actorID string) (*Stock, error) {
	if err := requirePositive(qty); err != nil {
		return nil, err
	}
	return s.apply(ctx, key, false, ref, actorID, func(st *Stock) (FlowType, error) {
		if st.Available().LessThan(qty) {
			return "", insufficient(st, qty)
		}
		st.ReservedQuantity = st.ReservedQuantity.Add(qty)
		return FlowReserve, nil
	})
}

// Release gives back up to qty of reserved stock. Over-release is absorbed.
func (s *Service) Release(ctx context.Context, key Key, qty types.Quantity, ref Ref, actorID string) (*Stock, error) {
	if err := requirePositive(qty); err != nil {
		return nil, err
	}
	return s.apply(ctx, key, false, ref, actorID, func(st *Stock) (FlowType, error) {
		st.ReservedQuantity = st.ReservedQuantity.Sub(types.MinDec(st.ReservedQuantity, qty))
		return FlowRelease, nil
	})
}

// Add increases on-hand quantity, creating the row if needed.
func (s *Service) Add(ctx context.Context, key Key, qty types.Quantity, ref Ref, actorID string) (*Stock, error) {
	if err := requirePositive(qty); err != nil {
		return nil, err
	}
	return s.apply(ctx, key, true, ref, actorID, func(st *Stock) (FlowType, error) {
		st.Quantity = st.Quantity.Add(qty)
		return FlowIn, nil
	})
}

// Reduce decreases on-hand quantity and consumes any outstanding reservation.
// With checkAvailable the call fails when available < qty.
func (s *Service) Reduce(ctx context.Context, key Key, qty types.Quantity, checkAvailable bool, ref Ref, actorID string) (*Stock, error) {
	if err := requirePositive(qty); err != nil {
		return nil, err
	}
	return s.apply(ctx, key, !checkAvailable, ref, actorID, func(st *Stock) (FlowType, error) {
		if checkAvailable && st.Available().LessThan(qty) {
			return "", insufficient(st, qty)
		}
		st.Quantity = st.Quantity.Sub(qty)
		st.ReservedQuantity = st.ReservedQuantity.Sub(types.MinDec(st.ReservedQuantity, qty))
		return FlowOut, nil
	})
}

// Adjust applies a signed count correction. The result must not be negative.
func (s *Service) Adjust(ctx context.Context, key Key, delta types.Quantity, ref Ref, actorID string) (*Stock, error) {
	if delta.IsZero() {
		return nil, apperror.NewValidation("adjustment must change the quantity")
	}
	if ref.Source == "" {
		ref.Source = SourceManual
	}
	return s.apply(ctx, key, true, ref, actorID, func(st *Stock) (FlowType, error) {
		next := st.Quantity.Add(delta)
		if next.IsNegative() {
			return "", apperror.NewValidation("adjustment would make stock negative").
				WithDetail("current", st.Quantity.String()).
				WithDetail("delta", delta.String())
		}
		st.Quantity = next
		return FlowAdjust, nil
	})
}

// AdjustTo sets a row to a counted quantity.
func (s *Service) AdjustTo(ctx context.Context, stockID id.ID, counted types.Quantity, reason, actorID string) (*Stock, error) {
	if counted.IsNegative() {
		return nil, apperror.NewValidation("counted quantity cannot be negative")
	}
	st, err := s.Get(ctx, stockID)
	if err != nil {
		return nil, err
	}
	return s.Adjust(ctx, st.Key(), counted.Sub(st.Quantity), Ref{Source: SourceManual, Reason: reason}, actorID)
}

// SetOpening sets the opening balance of a key.
func (s *Service) SetOpening(ctx context.Context, key Key, qty types.Quantity, reason, actorID string) (*Stock, error) {
	if qty.IsNegative() {
		return nil, apperror.NewValidation("opening quantity cannot be negative")
	}
	ref := Ref{Source: SourceOpening, Reason: reason}
	return s.apply(ctx, key, true, ref, actorID, func(st *Stock) (FlowType, error) {
		st.Quantity = qty
		return FlowAdjust, nil
	})
}

// RevertFlow undoes a manual adjustment once.
func (s *Service) RevertFlow(ctx context.Context, flowID id.ID, reason, actorID string) (*Stock, error) {
	var out *Stock
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		f, err := s.repo.GetFlow(ctx, flowID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return apperror.NewNotFound("stock flow", flowID.String())
			}
			return err
		}
		if f.Source == SourceLot {
			return apperror.NewValidation("lot corrections are undone by adjusting the lot").
				WithDetail("flowId", flowID.String())
		}
		if f.Type != FlowAdjust || f.Source != SourceManual {
			return apperror.NewValidation("only manual adjustments can be reverted").
				WithDetail("flowType", string(f.Type)).
				WithDetail("source", string(f.Source))
		}
		reverted, err := s.repo.IsFlowReverted(ctx, flowID)
		if err != nil {
			return fmt.Errorf("check revert: %w", err)
		}
		if reverted {
			return apperror.NewConsistency("flow has already been reverted").
				WithDetail("flowId", flowID.String())
		}

		st, err := s.repo.GetForUpdate(ctx, f.Key())
		if err != nil {
			return fmt.Errorf("lock stock: %w", err)
		}
		before := *st
		next := st.Quantity.Sub(f.QuantityChange)
		if next.IsNegative() {
			return apperror.NewValidation("revert would make stock negative").
				WithDetail("current", st.Quantity.String())
		}
		st.Quantity = next
		st.UpdatedAt = time.Now().UTC()
		if err := s.repo.Update(ctx, st); err != nil {
			return fmt.Errorf("update stock: %w", err)
		}
		if reason == "" {
			reason = "revert adjustment " + flowID.String()
		}
		ref := Ref{Source: SourceRevert, Reason: reason}
		if err := s.appendFlow(ctx, &before, st, FlowAdjust, ref, &flowID, actorID); err != nil {
			return err
		}
		out = st
		return nil
	})
	return out, err
}

// CleanupEmpty deletes rows with nothing on hand and nothing reserved.
func (s *Service) CleanupEmpty(ctx context.Context, actorID string) (int, error) {
	var n int
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		n, err = s.repo.DeleteEmpty(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("cleanup empty stock: %w", err)
	}
	logger.Info(ctx, "empty stock rows removed", "count", n, "actor", actorID)
	return n, nil
}

// Get returns a stock row by id.
func (s *Service) Get(ctx context.Context, stockID id.ID) (*Stock, error) {
	st, err := s.repo.GetByID(ctx, stockID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("stock", stockID.String())
		}
		return nil, err
	}
	return st, nil
}

// Find returns the row for key, or nil when none exists.
func (s *Service) Find(ctx context.Context, key Key) (*Stock, error) {
	var out *Stock
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		st, err := s.repo.GetForUpdate(ctx, key)
		if err != nil {
			if apperror.IsNotFound(err) {
				return nil
			}
			return err
		}
		out = st
		return nil
	})
	return out, err
}

// List returns stock rows.
func (s *Service) List(ctx context.Context, filter Filter) (domain.ListResult[*Stock], error) {
	filter.Normalize()
	return s.repo.List(ctx, filter)
}

// ListFlows returns journal rows, newest first.
func (s *Service) ListFlows(ctx context.Context, filter FlowFilter) (domain.ListResult[*Flow], error) {
	filter.Normalize()
	return s.repo.ListFlows(ctx, filter)
}

// sortedKeys orders keys deterministically for reports.
func sortedKeys(m map[Key]types.Quantity) []Key {
	keys := make([]Key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}
