package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"coldledger/internal/core/apperror"
	"coldledger/internal/core/id"
	"coldledger/internal/core/types"
	"coldledger/internal/domain/catalogs/party"
	"coldledger/internal/infrastructure/storage/postgres"
)

const partyTable = "parties"

// PartyRepo implements party.Repository.
type PartyRepo struct {
	*BaseCatalogRepo[*party.Party]
}

var _ party.Repository = (*PartyRepo)(nil)

// NewPartyRepo creates a party repository.
func NewPartyRepo(txm *postgres.TxManager) *PartyRepo {
	return &PartyRepo{
		BaseCatalogRepo: NewBaseCatalogRepo(
			txm,
			partyTable,
			"party",
			postgres.Columns[party.Party](),
			func() *party.Party { return &party.Party{} },
		),
	}
}

// AdjustBalance adds delta to current_balance in place.
func (r *PartyRepo) AdjustBalance(ctx context.Context, partyID id.ID, delta types.Money) error {
	n, err := postgres.Exec(ctx, r.querier(ctx), postgres.Builder().
		Update(partyTable).
		Set("current_balance", squirrel.Expr("current_balance + ?", delta)).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": partyID}))
	if err != nil {
		return fmt.Errorf("adjust party balance: %w", err)
	}
	if n == 0 {
		return apperror.NewNotFound("party", partyID.String())
	}
	return nil
}

// IsReferenced checks orders, stock rows and account entries.
func (r *PartyRepo) IsReferenced(ctx context.Context, partyID id.ID) (bool, error) {
	checks := []squirrel.SelectBuilder{
		postgres.Builder().Select("1").From("orders").Where(squirrel.Or{
			squirrel.Eq{"source_id": partyID},
			squirrel.Eq{"target_id": partyID},
			squirrel.Eq{"logistics_party_id": partyID},
		}),
		postgres.Builder().Select("1").From("stocks").Where(squirrel.Eq{"warehouse_id": partyID}),
		postgres.Builder().Select("1").From("account_entries").Where(squirrel.Eq{"party_id": partyID}),
	}
	for _, q := range checks {
		ok, err := r.exists(ctx, q)
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}
