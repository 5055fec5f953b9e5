package register_repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coldledger/internal/core/id"
	"coldledger/internal/domain/registers/account"
	"coldledger/internal/domain/registers/lot"
	"coldledger/internal/domain/registers/stock"
)

func TestKeyCond_NilSpecMatchesNull(t *testing.T) {
	wh, prod := id.New(), id.New()

	sql, args, err := keyCond(stock.NewKey(wh, prod, nil)).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "spec_id IS NULL")
	assert.Len(t, args, 2)

	spec := id.New()
	sql, args, err = keyCond(stock.NewKey(wh, prod, &spec)).ToSql()
	require.NoError(t, err)
	assert.NotContains(t, sql, "IS NULL")
	assert.Contains(t, sql, "spec_id = ?")
	assert.Equal(t, []any{wh, prod, spec}, args)
}

func TestStockListQuery_Predicates(t *testing.T) {
	wh := id.New()
	sql, args, err := stockListQuery(stock.Filter{
		WarehouseID: &wh,
		OnlyNonZero: true,
		BelowSafety: true,
	}).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "warehouse_id = $1")
	assert.Contains(t, sql, "(quantity <> 0 OR reserved_quantity <> 0)")
	assert.Contains(t, sql, "quantity - reserved_quantity < safety_stock")
	assert.Equal(t, []any{wh}, args)
}

func TestFIFOQuery_LocksOldestOpenLots(t *testing.T) {
	sql, args, err := fifoQuery(id.New(), id.New()).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "status IN ($2,$3)")
	assert.Contains(t, sql, "ORDER BY received_at ASC, id ASC")
	assert.True(t, len(sql) > len("FOR UPDATE"))
	assert.Equal(t, "FOR UPDATE", sql[len(sql)-len("FOR UPDATE"):])
	assert.Contains(t, args, string(lot.StatusActive))
	assert.Contains(t, args, string(lot.StatusPartial))
}

func TestEntryQuery_OpenOnly(t *testing.T) {
	party := id.New()
	sql, args, err := entryQuery(account.EntryFilter{
		PartyID:          &party,
		OpenOnly:         true,
		ExcludeCancelled: true,
	}).ToSql()
	require.NoError(t, err)

	assert.Contains(t, sql, "party_id = $1")
	assert.Contains(t, sql, "status IN ($2,$3)")
	assert.Contains(t, sql, "status <> $4")
	assert.Equal(t, []any{party,
		string(account.StatusPending), string(account.StatusPartial),
		string(account.StatusCancelled)}, args)
}
