package numerator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	corenumerator "coldledger/internal/core/numerator"
)

// Mock objects
type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

// mockQuerier simulates sys_sequences: one counter per key.
type mockQuerier struct {
	mu     sync.Mutex
	values map[string]int64
	calls  int
}

func newMockQuerier() *mockQuerier {
	return &mockQuerier{values: make(map[string]int64)}
}

func (m *mockQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	key := args[0].(string)
	var increment int64 = 1
	if len(args) == 2 {
		increment = args[1].(int64)
	}
	m.values[key] += increment
	return &mockRow{val: m.values[key]}
}

var businessDay = time.Date(2024, 12, 2, 9, 30, 0, 0, time.UTC)

func TestGetNextNumber_Strict(t *testing.T) {
	q := newMockQuerier()
	svc := New(q)
	ctx := context.Background()
	cfg := corenumerator.DailyConfig("PO")

	num, err := svc.GetNextNumber(ctx, cfg, nil, businessDay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "PO20241202001" {
		t.Errorf("expected PO20241202001, got %s", num)
	}

	num, err = svc.GetNextNumber(ctx, cfg, nil, businessDay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "PO20241202002" {
		t.Errorf("expected PO20241202002, got %s", num)
	}

	// A new business day starts a new sequence.
	num, err = svc.GetNextNumber(ctx, cfg, nil, businessDay.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "PO20241203001" {
		t.Errorf("expected PO20241203001, got %s", num)
	}
}

func TestGetNextNumber_Cached(t *testing.T) {
	q := newMockQuerier()
	svc := New(q)
	ctx := context.Background()
	cfg := corenumerator.DailyConfig("SO")
	opts := &corenumerator.Options{Strategy: corenumerator.StrategyCached, RangeSize: 10}

	num, err := svc.GetNextNumber(ctx, cfg, opts, businessDay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "SO20241202001" {
		t.Errorf("expected SO20241202001, got %s", num)
	}

	for i := 0; i < 9; i++ {
		_, _ = svc.GetNextNumber(ctx, cfg, opts, businessDay)
	}
	if q.calls != 1 {
		t.Errorf("expected a single range reservation, got %d", q.calls)
	}

	num, err = svc.GetNextNumber(ctx, cfg, opts, businessDay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "SO20241202011" {
		t.Errorf("expected SO20241202011, got %s", num)
	}
	if q.calls != 2 {
		t.Errorf("expected range refill, got %d calls", q.calls)
	}
}

func TestLotNumberFormat(t *testing.T) {
	gen := NewLocal()
	cfg := corenumerator.LotConfig()

	first, _ := gen.GetNextNumber(context.Background(), cfg, nil, businessDay)
	second, _ := gen.GetNextNumber(context.Background(), cfg, nil, businessDay)

	if first != "PH20241202-001" || second != "PH20241202-002" {
		t.Errorf("unexpected lot numbers %s, %s", first, second)
	}
	if got := ParseNumber(cfg, second); got != 2 {
		t.Errorf("expected parsed counter 2, got %d", got)
	}
	if got := ParseNumber(cfg, "XX-1"); got != -1 {
		t.Errorf("expected -1 for foreign number, got %d", got)
	}
}

func TestLocal_SetNextNumber(t *testing.T) {
	gen := NewLocal()
	cfg := corenumerator.DailyConfig("TO")
	_ = gen.SetNextNumber(context.Background(), cfg, businessDay, 41)

	num, _ := gen.GetNextNumber(context.Background(), cfg, nil, businessDay)
	if num != "TO20241202042" {
		t.Errorf("expected TO20241202042, got %s", num)
	}
}
