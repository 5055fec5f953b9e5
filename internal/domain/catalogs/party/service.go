package party

import (
	"context"
	"fmt"

	"coldledger/internal/core/apperror"
	"coldledger/internal/core/id"
	"coldledger/internal/core/tx"
	"coldledger/internal/core/types"
	"coldledger/internal/domain"
)

// Service provides business logic for the party catalog.
// Uses composition with domain.CatalogService for common CRUD operations.
type Service struct {
	*domain.CatalogService[*Party]
	repo Repository
	txm  tx.Manager
}

// NewService creates a new party service.
func NewService(repo Repository, txm tx.Manager) *Service {
	base := domain.NewCatalogService(domain.CatalogServiceConfig[*Party]{
		Repo:       repo,
		TxManager:  txm,
		EntityName: "party",
	})

	svc := &Service{
		CatalogService: base,
		repo:           repo,
		txm:            txm,
	}

	base.Hooks().OnBeforeCreate(svc.prepareForCreate)
	base.Hooks().OnBeforeUpdate(svc.prepareForUpdate)
	base.Hooks().OnBeforeDelete(svc.checkDeletable)

	return svc
}

func (s *Service) prepareForCreate(ctx context.Context, p *Party) error {
	if p.IsSystem {
		return apperror.NewValidation("system parties cannot be created manually")
	}
	p.CurrentBalance = types.Zero()
	return s.EnsureUniqueCode(ctx, p.ID, p.Code)
}

func (s *Service) prepareForUpdate(ctx context.Context, p *Party) error {
	existing, err := s.repo.GetForUpdate(ctx, p.ID)
	if err != nil {
		return err
	}
	// Balance is owned by the account ledger and system flag never changes.
	p.CurrentBalance = existing.CurrentBalance
	p.IsSystem = existing.IsSystem
	p.CreatedAt = existing.CreatedAt
	p.Touch()
	return s.EnsureUniqueCode(ctx, p.ID, p.Code)
}

func (s *Service) checkDeletable(ctx context.Context, p *Party) error {
	if p.IsSystem {
		return apperror.NewBusinessRule("SYSTEM_PARTY", "system parties cannot be deleted").
			WithDetail("code", p.Code)
	}
	used, err := s.repo.IsReferenced(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("check party references: %w", err)
	}
	if used {
		return apperror.NewConsistency("party is referenced by orders, stock or account entries").
			WithDetail("partyId", p.ID.String())
	}
	return nil
}

// EnsureSystemExpense returns the misc-expense party, creating it on first use.
func (s *Service) EnsureSystemExpense(ctx context.Context, actorID string) (*Party, error) {
	var out *Party
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByCode(ctx, SystemExpenseCode)
		if err == nil {
			out = p
			return nil
		}
		if !apperror.IsNotFound(err) {
			return err
		}
		p = NewParty(SystemExpenseCode, "Miscellaneous expenses", RoleExpense)
		p.IsSystem = true
		p.Notes = "created by " + actorID
		if err := s.repo.Create(ctx, p); err != nil {
			return fmt.Errorf("create system expense party: %w", err)
		}
		out = p
		return nil
	})
	return out, err
}

// RequireRole loads a party and checks it carries the role.
func (s *Service) RequireRole(ctx context.Context, partyID id.ID, role Role) (*Party, error) {
	p, err := s.GetByID(ctx, partyID)
	if err != nil {
		return nil, err
	}
	if !p.Roles.Has(role) {
		return nil, apperror.NewValidation("party does not have the required role").
			WithDetail("partyId", partyID.String()).
			WithDetail("required", role.Strings())
	}
	return p, nil
}

// AdjustBalance moves the party running balance by delta.
// Called by the account ledger inside its own transaction.
func (s *Service) AdjustBalance(ctx context.Context, partyID id.ID, delta types.Money) error {
	if delta.IsZero() {
		return nil
	}
	if _, err := s.repo.GetForUpdate(ctx, partyID); err != nil {
		if apperror.IsNotFound(err) {
			return apperror.NewNotFound("party", partyID.String())
		}
		return err
	}
	return s.repo.AdjustBalance(ctx, partyID, delta)
}
