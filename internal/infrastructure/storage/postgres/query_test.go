package postgres

import (
	"fmt"
	"testing"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coldledger/internal/core/apperror"
)

func TestOrderBy(t *testing.T) {
	allowed := []string{"code", "name"}

	tests := []struct {
		in   string
		want string
	}{
		{"", "name ASC"},
		{"code", "code ASC"},
		{"-code", "code DESC"},
		{"+name", "name ASC"},
		{"  name ", "name ASC"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := OrderBy(tt.in, allowed, "name ASC")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := OrderBy("password; DROP TABLE parties", allowed, "name ASC")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestPgErrorClassification(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	fk := fmt.Errorf("delete: %w", &pgconn.PgError{Code: "23503"})

	assert.True(t, IsUniqueViolation(unique))
	assert.False(t, IsUniqueViolation(fk))
	assert.True(t, IsForeignKeyViolation(fk))
	assert.False(t, IsForeignKeyViolation(fmt.Errorf("plain")))
}

func TestCopyValue(t *testing.T) {
	d := decimal.RequireFromString("12.345")

	v, err := copyValue(d)
	require.NoError(t, err)
	n, ok := v.(pgtype.Numeric)
	require.True(t, ok)
	assert.True(t, n.Valid)

	v, err = copyValue((*decimal.Decimal)(nil))
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = copyValue("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", v)
}

func TestBuilder_DollarPlaceholders(t *testing.T) {
	sql, args, err := Builder().
		Select("id").
		From("parties").
		Where(squirrel.Eq{"code": "WH-1"}).
		Where(squirrel.ILike{"name": "%cold%"}).
		ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM parties WHERE code = $1 AND name ILIKE $2", sql)
	assert.Equal(t, []any{"WH-1", "%cold%"}, args)
}
