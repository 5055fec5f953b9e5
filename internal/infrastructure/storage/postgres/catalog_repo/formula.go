package catalog_repo

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"

	"coldledger/internal/core/apperror"
	"coldledger/internal/core/id"
	"coldledger/internal/domain"
	"coldledger/internal/domain/catalogs/deduction"
	"coldledger/internal/infrastructure/storage/postgres"
)

const formulaTable = "deduction_formulas"

var formulaColumns = postgres.Columns[deduction.Formula]()

// FormulaRepo implements deduction.Repository. Names are unique
// case-insensitively (lower(name) index).
type FormulaRepo struct {
	txm *postgres.TxManager
}

var _ deduction.Repository = (*FormulaRepo)(nil)

// NewFormulaRepo creates a formula repository.
func NewFormulaRepo(txm *postgres.TxManager) *FormulaRepo {
	return &FormulaRepo{txm: txm}
}

func (r *FormulaRepo) baseSelect() squirrel.SelectBuilder {
	return postgres.Builder().Select(formulaColumns...).From(formulaTable)
}

func (r *FormulaRepo) Create(ctx context.Context, f *deduction.Formula) error {
	_, err := postgres.Exec(ctx, r.txm.GetQuerier(ctx), postgres.Builder().
		Insert(formulaTable).
		Columns(formulaColumns...).
		Values(postgres.RowValues(f, formulaColumns)...))
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperror.NewDuplicate("formula", "name", f.Name).WithCause(err)
		}
		return fmt.Errorf("insert formula: %w", err)
	}
	return nil
}

func (r *FormulaRepo) Update(ctx context.Context, f *deduction.Formula) error {
	data := postgres.StructToMap(f)
	set := make(map[string]any)
	for _, col := range postgres.Without(formulaColumns, "id", "created_at", "created_by") {
		set[col] = data[col]
	}
	n, err := postgres.Exec(ctx, r.txm.GetQuerier(ctx), postgres.Builder().
		Update(formulaTable).
		SetMap(set).
		Where(squirrel.Eq{"id": f.ID}))
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperror.NewDuplicate("formula", "name", f.Name).WithCause(err)
		}
		return fmt.Errorf("update formula: %w", err)
	}
	if n == 0 {
		return apperror.NewNotFound("formula", f.ID.String())
	}
	return nil
}

func (r *FormulaRepo) Delete(ctx context.Context, formulaID id.ID) error {
	n, err := postgres.Exec(ctx, r.txm.GetQuerier(ctx), postgres.Builder().
		Delete(formulaTable).
		Where(squirrel.Eq{"id": formulaID}))
	if err != nil {
		return fmt.Errorf("delete formula: %w", err)
	}
	if n == 0 {
		return apperror.NewNotFound("formula", formulaID.String())
	}
	return nil
}

func (r *FormulaRepo) GetByID(ctx context.Context, formulaID id.ID) (*deduction.Formula, error) {
	var f deduction.Formula
	if err := postgres.GetOne(ctx, r.txm.GetQuerier(ctx), &f,
		r.baseSelect().Where(squirrel.Eq{"id": formulaID}),
		"formula", formulaID.String()); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *FormulaRepo) GetByName(ctx context.Context, name string) (*deduction.Formula, error) {
	var f deduction.Formula
	if err := postgres.GetOne(ctx, r.txm.GetQuerier(ctx), &f,
		r.baseSelect().Where(squirrel.Expr("lower(name) = ?", strings.ToLower(name))),
		"formula", name); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *FormulaRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*deduction.Formula], error) {
	q := r.baseSelect()
	if filter.Search != "" {
		q = q.Where(squirrel.ILike{"name": "%" + filter.Search + "%"})
	}
	return postgres.Paginate[*deduction.Formula](ctx, r.txm.GetQuerier(ctx), q, "sort_order ASC, name ASC", filter)
}

func (r *FormulaRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	sql, args, err := postgres.Builder().Select("COUNT(*)").From(formulaTable).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count formulas: %w", err)
	}
	return n, nil
}

func (r *FormulaRepo) ClearDefault(ctx context.Context, keepID id.ID) error {
	_, err := postgres.Exec(ctx, r.txm.GetQuerier(ctx), postgres.Builder().
		Update(formulaTable).
		Set("is_default", false).
		Where(squirrel.Eq{"is_default": true}).
		Where(squirrel.NotEq{"id": keepID}))
	if err != nil {
		return fmt.Errorf("clear default formula: %w", err)
	}
	return nil
}

func (r *FormulaRepo) IsReferenced(ctx context.Context, formulaID id.ID) (bool, error) {
	sql, args, err := postgres.Builder().
		Select().
		Column(squirrel.Expr("EXISTS (SELECT 1 FROM lots WHERE formula_id = ?) OR EXISTS (SELECT 1 FROM order_lines WHERE formula_id = ?)", formulaID, formulaID)).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build reference check: %w", err)
	}
	var used bool
	if err := r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&used); err != nil {
		return false, fmt.Errorf("formula reference check: %w", err)
	}
	return used, nil
}
