// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"coldledger/internal/domain/storagefee"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the validated process configuration.
type Config struct {
	Env      string `validate:"required,oneof=development production test"`
	Port     string `validate:"required,numeric"`
	LogLevel string `validate:"required,oneof=debug info warn error"`

	StorageDriver string `validate:"required,oneof=postgres memory"`
	DatabaseURL   string `validate:"required_if=StorageDriver postgres"`
	DBMaxConns    int32  `validate:"gte=1"`
	DBMinConns    int32  `validate:"gte=0,ltefield=DBMaxConns"`

	StorageBaseRatePerTon   decimal.Decimal
	StorageRatePerTonPerDay decimal.Decimal
	StorageDefaultDays      int `validate:"gte=1"`

	AllocationStrict         bool
	ArchiveCompressThreshold int    `validate:"gte=0"`
	DefaultActor             string `validate:"required,max=64"`
}

// Development reports whether the process runs in development mode.
func (c Config) Development() bool {
	return c.Env == "development"
}

// StorageFee returns the tariff for the storage-fee calculator.
func (c Config) StorageFee() storagefee.Config {
	return storagefee.Config{
		BaseRatePerTon:   c.StorageBaseRatePerTon,
		RatePerTonPerDay: c.StorageRatePerTonPerDay,
		DefaultDays:      c.StorageDefaultDays,
	}
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config using lookup for every key.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	r := reader{lookup: lookup}
	defaults := storagefee.DefaultConfig()

	cfg := Config{
		Env:      r.str("APP_ENV", "development"),
		Port:     r.str("APP_PORT", "8080"),
		LogLevel: strings.ToLower(r.str("LOG_LEVEL", "info")),

		StorageDriver: strings.ToLower(r.str("STORAGE_DRIVER", DriverPostgres)),
		DatabaseURL:   r.str("DATABASE_URL", ""),
		DBMaxConns:    int32(r.int("DB_MAX_CONNS", 10)),
		DBMinConns:    int32(r.int("DB_MIN_CONNS", 2)),

		StorageBaseRatePerTon:   r.dec("STORAGE_BASE_RATE_PER_TON", defaults.BaseRatePerTon),
		StorageRatePerTonPerDay: r.dec("STORAGE_RATE_PER_TON_PER_DAY", defaults.RatePerTonPerDay),
		StorageDefaultDays:      r.int("STORAGE_DEFAULT_DAYS", defaults.DefaultDays),

		AllocationStrict:         r.bool("ALLOCATION_STRICT", false),
		ArchiveCompressThreshold: r.int("ARCHIVE_COMPRESS_THRESHOLD", 10*1024),
		DefaultActor:             r.str("DEFAULT_ACTOR", "operator"),
	}
	if len(r.errs) > 0 {
		return Config{}, fmt.Errorf("config: %s", strings.Join(r.errs, "; "))
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks struct tags and the tariff.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config: %w", err)
	}
	if cfg.StorageBaseRatePerTon.IsNegative() || cfg.StorageRatePerTonPerDay.IsNegative() {
		return fmt.Errorf("config: storage rates must not be negative")
	}
	return nil
}

type reader struct {
	lookup func(string) (string, bool)
	errs   []string
}

func (r *reader) str(key, def string) string {
	if v, ok := r.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (r *reader) int(key string, def int) int {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Sprintf("%s: not an integer", key))
		return def
	}
	return n
}

func (r *reader) bool(key string, def bool) bool {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Sprintf("%s: not a boolean", key))
		return def
	}
	return b
}

func (r *reader) dec(key string, def decimal.Decimal) decimal.Decimal {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Sprintf("%s: not a decimal", key))
		return def
	}
	return d
}
