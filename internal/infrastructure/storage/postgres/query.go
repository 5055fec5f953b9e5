package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"coldledger/internal/core/apperror"
	"coldledger/internal/domain"
)

// PostgreSQL error codes the repositories translate.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Builder returns a squirrel builder with $n placeholders.
func Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// IsUniqueViolation reports a unique constraint failure.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// IsForeignKeyViolation reports a foreign key failure.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}

// OrderBy resolves "field" or "-field" against a whitelist of sortable
// columns. An empty value yields def.
func OrderBy(orderBy string, allowed []string, def string) (string, error) {
	field := strings.TrimSpace(orderBy)
	if field == "" {
		return def, nil
	}
	direction := "ASC"
	if strings.HasPrefix(field, "-") {
		direction = "DESC"
		field = field[1:]
	} else {
		field = strings.TrimPrefix(field, "+")
	}
	for _, a := range allowed {
		if a == field {
			return field + " " + direction, nil
		}
	}
	return "", apperror.NewValidation("invalid orderBy").
		WithDetail("orderBy", orderBy)
}

// GetOne runs q and scans a single row into dest. A missing row becomes a
// NotFound error for entity/key.
func GetOne(ctx context.Context, q Querier, dest any, b squirrel.Sqlizer, entity string, key any) error {
	sql, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build %s query: %w", entity, err)
	}
	if err := pgxscan.Get(ctx, q, dest, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return apperror.NewNotFound(entity, key)
		}
		return fmt.Errorf("get %s: %w", entity, err)
	}
	return nil
}

// SelectAll runs q and scans every row into dest.
func SelectAll(ctx context.Context, q Querier, dest any, b squirrel.Sqlizer) error {
	sql, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, q, dest, sql, args...); err != nil {
		return fmt.Errorf("select: %w", err)
	}
	return nil
}

// Exec runs a write statement and returns the affected row count.
func Exec(ctx context.Context, q Querier, b squirrel.Sqlizer) (int64, error) {
	sql, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build statement: %w", err)
	}
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Paginate counts the rows of base, then selects the requested page into
// result.Items ordered by orderBy.
func Paginate[T any](ctx context.Context, q Querier, base squirrel.SelectBuilder, orderBy string, filter domain.ListFilter) (domain.ListResult[T], error) {
	result := domain.ListResult[T]{Limit: filter.Limit, Offset: filter.Offset}

	countSQL, countArgs, err := Builder().Select("COUNT(*)").FromSelect(base, "sub").ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}
	if err := q.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	page := base.OrderBy(orderBy)
	if filter.Limit > 0 {
		page = page.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		page = page.Offset(uint64(filter.Offset))
	}
	if err := SelectAll(ctx, q, &result.Items, page); err != nil {
		return result, err
	}
	return result, nil
}
