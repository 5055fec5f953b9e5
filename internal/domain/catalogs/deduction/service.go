package deduction

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"coldledger/internal/core/apperror"
	"coldledger/internal/core/id"
	"coldledger/internal/core/tx"
	"coldledger/internal/core/types"
	"coldledger/internal/domain"
	"coldledger/pkg/logger"
)

// Service manages deduction formulas.
type Service struct {
	repo Repository
	txm  tx.Manager
}

// NewService creates a new formula service.
func NewService(repo Repository, txm tx.Manager) *Service {
	return &Service{repo: repo, txm: txm}
}

// Create stores a new formula. A default formula demotes the previous one.
func (s *Service) Create(ctx context.Context, f *Formula, actorID string) error {
	if err := f.Validate(ctx); err != nil {
		return err
	}
	f.CreatedBy = actorID

	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.ensureUniqueName(ctx, f); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, f); err != nil {
			return fmt.Errorf("create formula: %w", err)
		}
		if f.IsDefault {
			return s.repo.ClearDefault(ctx, f.ID)
		}
		return nil
	})
}

// Update modifies a formula. Method and value are frozen once the formula is referenced.
func (s *Service) Update(ctx context.Context, f *Formula, actorID string) error {
	if err := f.Validate(ctx); err != nil {
		return err
	}

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.Get(ctx, f.ID)
		if err != nil {
			return err
		}
		if existing.Method != f.Method || !existing.Value.Equal(f.Value) {
			used, err := s.repo.IsReferenced(ctx, f.ID)
			if err != nil {
				return fmt.Errorf("check formula references: %w", err)
			}
			if used {
				return apperror.NewConsistency("formula is referenced; method and value cannot change").
					WithDetail("formulaId", f.ID.String())
			}
		}
		if err := s.ensureUniqueName(ctx, f); err != nil {
			return err
		}

		f.CreatedAt = existing.CreatedAt
		f.CreatedBy = existing.CreatedBy
		f.UpdatedAt = time.Now().UTC()
		if err := s.repo.Update(ctx, f); err != nil {
			return fmt.Errorf("update formula: %w", err)
		}
		if f.IsDefault {
			return s.repo.ClearDefault(ctx, f.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info(ctx, "formula updated", "formula_id", f.ID, "actor", actorID)
	return nil
}

// Delete removes an unreferenced formula.
func (s *Service) Delete(ctx context.Context, formulaID id.ID, actorID string) error {
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.Get(ctx, formulaID); err != nil {
			return err
		}
		used, err := s.repo.IsReferenced(ctx, formulaID)
		if err != nil {
			return fmt.Errorf("check formula references: %w", err)
		}
		if used {
			return apperror.NewConsistency("formula is referenced by lots or order lines").
				WithDetail("formulaId", formulaID.String())
		}
		return s.repo.Delete(ctx, formulaID)
	})
	if err != nil {
		return err
	}
	logger.Info(ctx, "formula deleted", "formula_id", formulaID, "actor", actorID)
	return nil
}

// Get returns a formula by id.
func (s *Service) Get(ctx context.Context, formulaID id.ID) (*Formula, error) {
	f, err := s.repo.GetByID(ctx, formulaID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("deduction formula", formulaID.String())
		}
		return nil, err
	}
	return f, nil
}

// List returns formulas ordered by sort order.
func (s *Service) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Formula], error) {
	filter.Normalize()
	return s.repo.List(ctx, filter)
}

// Calculate applies a formula (or none, when formulaID is nil) to a gross weight.
func (s *Service) Calculate(ctx context.Context, formulaID *id.ID, gross, units types.Quantity) (Weights, error) {
	if gross.IsNegative() {
		return Weights{}, apperror.NewValidation("gross weight cannot be negative").
			WithDetail("field", "grossWeight")
	}
	if formulaID == nil {
		return Evaluate(MethodNone, decimal.Zero, gross, units), nil
	}
	f, err := s.Get(ctx, *formulaID)
	if err != nil {
		return Weights{}, err
	}
	if !f.IsActive {
		return Weights{}, apperror.NewValidation("deduction formula is inactive").
			WithDetail("formulaId", formulaID.String())
	}
	return f.Apply(gross, units), nil
}

// InitDefaults seeds the standard formulas when the catalog is empty.
// Returns the number of formulas created.
func (s *Service) InitDefaults(ctx context.Context, actorID string) (int, error) {
	defaults := []struct {
		name, desc string
		method     Method
		value      string
		isDefault  bool
	}{
		{"No deduction", "net weight equals gross weight", MethodNone, "1", true},
		{"1% deduction", "ice/packaging allowance, net = gross × 0.99", MethodPercentage, "0.99", false},
		{"2% deduction", "ice/packaging allowance, net = gross × 0.98", MethodPercentage, "0.98", false},
		{"0.5 kg per box", "ice per box, net = gross - boxes × 0.5", MethodFixedPerUnit, "0.5", false},
	}

	created := 0
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		n, err := s.repo.Count(ctx)
		if err != nil {
			return fmt.Errorf("count formulas: %w", err)
		}
		if n > 0 {
			return nil
		}
		for i, d := range defaults {
			f := NewFormula(d.name, d.method, types.MustMoney(d.value))
			f.Description = d.desc
			f.IsDefault = d.isDefault
			f.SortOrder = i + 1
			f.CreatedBy = actorID
			if err := s.repo.Create(ctx, f); err != nil {
				return fmt.Errorf("create default formula %q: %w", d.name, err)
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	logger.Info(ctx, "default formulas initialized", "created", created, "actor", actorID)
	return created, nil
}

func (s *Service) ensureUniqueName(ctx context.Context, f *Formula) error {
	existing, err := s.repo.GetByName(ctx, f.Name)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil
		}
		return err
	}
	if existing.ID != f.ID {
		return apperror.NewDuplicate("deduction formula", "name", f.Name)
	}
	return nil
}
