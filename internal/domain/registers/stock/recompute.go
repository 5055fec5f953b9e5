package stock

import (
	"context"
	"fmt"
	"time"

	"coldledger/internal/core/apperror"
	"coldledger/internal/core/types"
	"coldledger/pkg/logger"
)

// adjustSources are the manual deltas that survive a rebuild from order history.
var adjustSources = []FlowSource{SourceManual, SourceRevert, SourceOpening, SourceLot}

// Expected derives the stock every key should hold from completed orders
// plus manual, revert, opening and lot adjustments.
func (s *Service) Expected(ctx context.Context) (map[Key]types.Quantity, error) {
	if s.history == nil {
		return nil, apperror.NewInternal(fmt.Errorf("stock history is not configured"))
	}
	legs, err := s.history.CompletedLegs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load order legs: %w", err)
	}
	adjustments, err := s.repo.SumAdjustments(ctx, adjustSources)
	if err != nil {
		return nil, fmt.Errorf("sum adjustments: %w", err)
	}

	expected := make(map[Key]types.Quantity, len(legs))
	for _, d := range append(legs, adjustments...) {
		expected[d.Key] = expected[d.Key].Add(d.Quantity)
	}
	return expected, nil
}

// Recompute reconciles every stock row with its expected quantity, writing one
// corrective flow per discrepancy. A second run with no activity in between
// finds nothing to correct.
func (s *Service) Recompute(ctx context.Context, actorID string) (RecomputeReport, error) {
	report := RecomputeReport{Corrections: []Correction{}}

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		expected, err := s.Expected(ctx)
		if err != nil {
			return err
		}
		rows, err := s.repo.ListAll(ctx)
		if err != nil {
			return fmt.Errorf("list stock: %w", err)
		}

		seen := make(map[Key]bool, len(rows))
		for _, row := range rows {
			key := row.Key()
			seen[key] = true
			report.Checked++

			want := expected[key]
			fixed, err := s.reconcile(ctx, key, want, actorID)
			if err != nil {
				return err
			}
			if fixed != nil {
				report.Corrected++
				report.Corrections = append(report.Corrections, *fixed)
			}
		}

		for _, key := range sortedKeys(expected) {
			if seen[key] {
				continue
			}
			want := expected[key]
			report.Checked++
			if want.IsZero() {
				continue
			}
			created, err := s.reconcile(ctx, key, want, actorID)
			if err != nil {
				return err
			}
			if created != nil {
				report.Created++
				report.Corrections = append(report.Corrections, *created)
			}
		}
		return nil
	})
	if err != nil {
		return RecomputeReport{}, err
	}

	logger.Info(ctx, "stock recompute finished",
		"checked", report.Checked,
		"corrected", report.Corrected,
		"created", report.Created,
		"actor", actorID,
	)
	return report, nil
}

// reconcile brings one key to want. Returns nil when the row already matches.
func (s *Service) reconcile(ctx context.Context, key Key, want types.Quantity, actorID string) (*Correction, error) {
	st, err := s.repo.GetForUpdate(ctx, key)
	created := false
	if err != nil {
		if !apperror.IsNotFound(err) {
			return nil, fmt.Errorf("lock stock %s: %w", key, err)
		}
		st = NewStock(key)
		created = true
	}

	maxReserved := types.MaxDec(want, types.Zero())
	qtyOff := !st.Quantity.Equal(want)
	reservedOff := st.ReservedQuantity.GreaterThan(maxReserved)
	if !created && !qtyOff && !reservedOff {
		return nil, nil
	}

	before := *st
	st.Quantity = want
	if reservedOff {
		st.ReservedQuantity = maxReserved
	}
	st.UpdatedAt = time.Now().UTC()

	if created {
		if err := s.repo.Create(ctx, st); err != nil {
			return nil, fmt.Errorf("create stock: %w", err)
		}
	} else if err := s.repo.Update(ctx, st); err != nil {
		return nil, fmt.Errorf("update stock: %w", err)
	}

	ref := Ref{Source: SourceRecompute, Reason: "recompute from order history"}
	if err := s.appendFlow(ctx, &before, st, FlowAdjust, ref, nil, actorID); err != nil {
		return nil, err
	}
	return &Correction{
		Key:      key,
		StockID:  st.ID,
		Before:   before.Quantity,
		Expected: want,
		Created:  created,
	}, nil
}
