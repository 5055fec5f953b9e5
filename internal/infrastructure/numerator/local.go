package numerator

import (
	"context"
	"sync"
	"time"

	corenumerator "coldledger/internal/core/numerator"
)

// Local is an in-process Generator used by the memory storage driver and tests.
// Counters live only as long as the process.
type Local struct {
	mu       sync.Mutex
	counters map[string]int64
}

var _ corenumerator.Generator = (*Local)(nil)

// NewLocal creates an empty in-process generator.
func NewLocal() *Local {
	return &Local{counters: make(map[string]int64)}
}

// GetNextNumber implements corenumerator.Generator.
func (l *Local) GetNextNumber(_ context.Context, cfg corenumerator.Config, _ *corenumerator.Options, period time.Time) (string, error) {
	key := BuildKey(cfg, period)

	l.mu.Lock()
	l.counters[key]++
	num := l.counters[key]
	l.mu.Unlock()

	return FormatNumber(cfg, period, num), nil
}

// SetNextNumber implements corenumerator.Generator.
func (l *Local) SetNextNumber(_ context.Context, cfg corenumerator.Config, period time.Time, value int64) error {
	l.mu.Lock()
	l.counters[BuildKey(cfg, period)] = value
	l.mu.Unlock()
	return nil
}
