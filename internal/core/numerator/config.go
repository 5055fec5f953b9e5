// Package numerator provides domain contracts for document auto-numbering.
package numerator

// Strategy defines the numbering generation strategy.
type Strategy int

const (
	// StrategyStrict uses UPSERT ... RETURNING for every number.
	// Guarantees sequential numbers without gaps.
	StrategyStrict Strategy = iota

	// StrategyCached allocates ranges of numbers in memory.
	// Much faster, but may produce gaps if application restarts.
	StrategyCached
)

// Reset periods for a sequence.
const (
	ResetDaily   = "day"
	ResetMonthly = "month"
	ResetYearly  = "year"
	ResetNever   = "never"
)

// Options configuration for number generation.
type Options struct {
	// Strategy to use for number generation
	Strategy Strategy
	// RangeSize is the number of IDs to allocate at once in Cached strategy.
	// Default is 50.
	RangeSize int64
}

// DefaultOptions returns standard options (Strict).
func DefaultOptions() *Options {
	return &Options{
		Strategy: StrategyStrict,
	}
}

// Config holds numbering configuration.
//
// A number is rendered as Prefix + period.Format(DateLayout) + Separator + zero-padded counter,
// e.g. PO20241202001 or PH20241202-001.
type Config struct {
	// Prefix added to all numbers (e.g., "PO", "PH")
	Prefix string

	// DateLayout is a Go time layout embedded after the prefix; empty disables it.
	DateLayout string

	// Separator between date part and counter.
	Separator string

	// PadWidth is the minimum counter width (default 3)
	PadWidth int

	// ResetPeriod: "day", "month", "year", "never"
	ResetPeriod string
}

// DailyConfig returns the layout used for orders: PREFIXyyyymmddNNN.
func DailyConfig(prefix string) Config {
	return Config{
		Prefix:      prefix,
		DateLayout:  "20060102",
		PadWidth:    3,
		ResetPeriod: ResetDaily,
	}
}

// LotConfig returns the layout used for lots: PHyyyymmdd-NNN.
func LotConfig() Config {
	cfg := DailyConfig("PH")
	cfg.Separator = "-"
	return cfg
}
