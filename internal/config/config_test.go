package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestFromLookup_Defaults(t *testing.T) {
	cfg, err := FromLookup(envOf(map[string]string{"STORAGE_DRIVER": "memory"}))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.Development())
	assert.False(t, cfg.AllocationStrict)
	assert.Equal(t, "operator", cfg.DefaultActor)
	assert.Equal(t, 10240, cfg.ArchiveCompressThreshold)

	fee := cfg.StorageFee()
	assert.Equal(t, "15", fee.BaseRatePerTon.String())
	assert.Equal(t, "1.5", fee.RatePerTonPerDay.String())
	assert.Equal(t, 7, fee.DefaultDays)
}

func TestFromLookup_PostgresNeedsURL(t *testing.T) {
	_, err := FromLookup(envOf(map[string]string{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DatabaseURL")

	cfg, err := FromLookup(envOf(map[string]string{"DATABASE_URL": "postgres://localhost/coldledger"}))
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.StorageDriver)
}

func TestFromLookup_Overrides(t *testing.T) {
	cfg, err := FromLookup(envOf(map[string]string{
		"STORAGE_DRIVER":               "MEMORY",
		"LOG_LEVEL":                    "DEBUG",
		"ALLOCATION_STRICT":            "true",
		"STORAGE_RATE_PER_TON_PER_DAY": "2.25",
		"STORAGE_DEFAULT_DAYS":         "10",
	}))
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.StorageDriver)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.AllocationStrict)
	assert.Equal(t, "2.25", cfg.StorageRatePerTonPerDay.String())
	assert.Equal(t, 10, cfg.StorageDefaultDays)
}

func TestFromLookup_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"bad driver":   {"STORAGE_DRIVER": "sqlite"},
		"bad int":      {"STORAGE_DRIVER": "memory", "STORAGE_DEFAULT_DAYS": "week"},
		"bad bool":     {"STORAGE_DRIVER": "memory", "ALLOCATION_STRICT": "maybe"},
		"zero days":    {"STORAGE_DRIVER": "memory", "STORAGE_DEFAULT_DAYS": "0"},
		"negative fee": {"STORAGE_DRIVER": "memory", "STORAGE_BASE_RATE_PER_TON": "-1"},
		"min > max":    {"STORAGE_DRIVER": "memory", "DB_MAX_CONNS": "2", "DB_MIN_CONNS": "5"},
		"bad level":    {"STORAGE_DRIVER": "memory", "LOG_LEVEL": "loud"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromLookup(envOf(env))
			assert.Error(t, err)
		})
	}
}
