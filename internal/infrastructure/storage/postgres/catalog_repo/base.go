// Package catalog_repo provides PostgreSQL repositories for master data.
package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"coldledger/internal/core/apperror"
	"coldledger/internal/core/id"
	"coldledger/internal/domain"
	"coldledger/internal/infrastructure/storage/postgres"
)

// sortable catalog columns.
var catalogSortColumns = []string{"code", "name", "created_at", "updated_at"}

// BaseCatalogRepo provides CRUD for entities embedding entity.Catalog.
type BaseCatalogRepo[T any] struct {
	txm        *postgres.TxManager
	tableName  string
	entityName string
	selectCols []string
	newFn      func() T
}

// NewBaseCatalogRepo creates a base catalog repository.
func NewBaseCatalogRepo[T any](txm *postgres.TxManager, tableName, entityName string, selectCols []string, newFn func() T) *BaseCatalogRepo[T] {
	return &BaseCatalogRepo[T]{
		txm:        txm,
		tableName:  tableName,
		entityName: entityName,
		selectCols: selectCols,
		newFn:      newFn,
	}
}

func (r *BaseCatalogRepo[T]) querier(ctx context.Context) postgres.Querier {
	return r.txm.GetQuerier(ctx)
}

func (r *BaseCatalogRepo[T]) baseSelect() squirrel.SelectBuilder {
	return postgres.Builder().Select(r.selectCols...).From(r.tableName)
}

// Create inserts a new entity using its "db" tags.
func (r *BaseCatalogRepo[T]) Create(ctx context.Context, entity T) error {
	data := postgres.StructToMap(entity)
	values := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		values[col] = data[col]
	}
	_, err := postgres.Exec(ctx, r.querier(ctx), postgres.Builder().Insert(r.tableName).SetMap(values))
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperror.NewDuplicate(r.entityName, "code", fmt.Sprint(data["code"])).WithCause(err)
		}
		return fmt.Errorf("insert %s: %w", r.tableName, err)
	}
	return nil
}

// Update writes every column except id and created_at.
func (r *BaseCatalogRepo[T]) Update(ctx context.Context, entity T) error {
	data := postgres.StructToMap(entity)
	values := make(map[string]any, len(r.selectCols))
	for _, col := range postgres.Without(r.selectCols, "id", "created_at") {
		values[col] = data[col]
	}
	n, err := postgres.Exec(ctx, r.querier(ctx), postgres.Builder().
		Update(r.tableName).
		SetMap(values).
		Where(squirrel.Eq{"id": data["id"]}))
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperror.NewDuplicate(r.entityName, "code", fmt.Sprint(data["code"])).WithCause(err)
		}
		return fmt.Errorf("update %s: %w", r.tableName, err)
	}
	if n == 0 {
		return apperror.NewNotFound(r.entityName, data["id"])
	}
	return nil
}

// GetByID retrieves an entity by primary key.
func (r *BaseCatalogRepo[T]) GetByID(ctx context.Context, entityID id.ID) (T, error) {
	entity := r.newFn()
	err := postgres.GetOne(ctx, r.querier(ctx), entity,
		r.baseSelect().Where(squirrel.Eq{"id": entityID}),
		r.entityName, entityID.String())
	return entity, err
}

// GetForUpdate retrieves an entity with a row lock.
func (r *BaseCatalogRepo[T]) GetForUpdate(ctx context.Context, entityID id.ID) (T, error) {
	entity := r.newFn()
	err := postgres.GetOne(ctx, r.querier(ctx), entity,
		r.baseSelect().Where(squirrel.Eq{"id": entityID}).Suffix("FOR UPDATE"),
		r.entityName, entityID.String())
	return entity, err
}

// GetByCode retrieves an entity by its unique code.
func (r *BaseCatalogRepo[T]) GetByCode(ctx context.Context, code string) (T, error) {
	entity := r.newFn()
	err := postgres.GetOne(ctx, r.querier(ctx), entity,
		r.baseSelect().Where(squirrel.Eq{"code": code}).Limit(1),
		r.entityName, code)
	return entity, err
}

// Delete physically removes the entity.
func (r *BaseCatalogRepo[T]) Delete(ctx context.Context, entityID id.ID) error {
	n, err := postgres.Exec(ctx, r.querier(ctx), postgres.Builder().
		Delete(r.tableName).
		Where(squirrel.Eq{"id": entityID}))
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return apperror.NewConsistency(r.entityName+" is referenced by other records").
				WithDetail("id", entityID.String()).
				WithCause(err)
		}
		return fmt.Errorf("delete %s: %w", r.tableName, err)
	}
	if n == 0 {
		return apperror.NewNotFound(r.entityName, entityID.String())
	}
	return nil
}

// List applies the search term to code and name.
func (r *BaseCatalogRepo[T]) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[T], error) {
	return r.ListWhere(ctx, filter, nil)
}

// ListWhere is List with an extra condition.
func (r *BaseCatalogRepo[T]) ListWhere(ctx context.Context, filter domain.ListFilter, extra squirrel.Sqlizer) (domain.ListResult[T], error) {
	q := r.baseSelect()
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		q = q.Where(squirrel.Or{
			squirrel.ILike{"name": pattern},
			squirrel.ILike{"code": pattern},
		})
	}
	if extra != nil {
		q = q.Where(extra)
	}
	orderBy, err := postgres.OrderBy(filter.OrderBy, catalogSortColumns, "name ASC")
	if err != nil {
		return domain.ListResult[T]{}, err
	}
	return postgres.Paginate[T](ctx, r.querier(ctx), q, orderBy+", id ASC", filter)
}

// exists runs SELECT EXISTS over q.
func (r *BaseCatalogRepo[T]) exists(ctx context.Context, q squirrel.SelectBuilder) (bool, error) {
	sql, args, err := q.Prefix("SELECT EXISTS (").Suffix(")").ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists: %w", err)
	}
	var ok bool
	if err := r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&ok); err != nil {
		return false, fmt.Errorf("exists: %w", err)
	}
	return ok, nil
}
