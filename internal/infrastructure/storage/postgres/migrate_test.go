package postgres

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_Embedded(t *testing.T) {
	ms, err := Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, ms)

	first := ms[0]
	assert.Equal(t, "0001", first.Version)
	assert.Equal(t, "0001_init.sql", first.Filename)
	assert.Len(t, first.Checksum, 64)
	for _, table := range []string{"parties", "stocks", "stock_flows", "lots", "lot_allocations",
		"account_entries", "payments", "orders", "order_lines", "order_flows", "order_archive", "sys_sequences"} {
		assert.Contains(t, first.SQL, "CREATE TABLE IF NOT EXISTS "+table+" (", table)
	}
}

func TestLoadMigrations_SortsAndRejectsDuplicates(t *testing.T) {
	fsys := fstest.MapFS{
		"m/0002_more.sql": {Data: []byte("SELECT 2;")},
		"m/0001_init.sql": {Data: []byte("SELECT 1;")},
		"m/README.md":     {Data: []byte("ignored")},
	}
	ms, err := loadMigrations(fsys, "m")
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, "0001", ms[0].Version)
	assert.Equal(t, "0002", ms[1].Version)
	assert.NotEqual(t, ms[0].Checksum, ms[1].Checksum)

	fsys["m/0002_again.sql"] = &fstest.MapFile{Data: []byte("SELECT 3;")}
	_, err = loadMigrations(fsys, "m")
	assert.ErrorContains(t, err, "0002")

	_, err = loadMigrations(fstest.MapFS{"m/bad.sql": {Data: []byte("x")}}, "m")
	assert.ErrorContains(t, err, "NNNN_description.sql")
}
