// Package memory implements every repository over process memory with
// snapshot-based transactions. Used by tests and the memory storage driver.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"coldledger/internal/core/id"
	"coldledger/internal/domain/catalogs/deduction"
	"coldledger/internal/domain/catalogs/party"
	"coldledger/internal/domain/catalogs/product"
	"coldledger/internal/domain/documents/order"
	"coldledger/internal/domain/registers/account"
	"coldledger/internal/domain/registers/lot"
	"coldledger/internal/domain/registers/stock"
	"coldledger/pkg/logger"
)

// tables holds every record by value. Slices inside records are never mutated
// in place, so a shallow copy is a consistent snapshot.
type tables struct {
	parties  map[id.ID]party.Party
	products map[id.ID]product.Product
	formulas map[id.ID]deduction.Formula

	stocks     map[id.ID]stock.Stock
	stockFlows []stock.Flow

	lots        map[id.ID]lot.Lot
	allocations []lot.Allocation

	entries  map[id.ID]account.Entry
	payments map[id.ID]account.Payment

	orders     map[id.ID]order.Order
	lines      map[id.ID][]order.Line
	orderFlows []order.Flow

	archive []ArchivedOrder
}

func newTables() tables {
	return tables{
		parties:  make(map[id.ID]party.Party),
		products: make(map[id.ID]product.Product),
		formulas: make(map[id.ID]deduction.Formula),
		stocks:   make(map[id.ID]stock.Stock),
		lots:     make(map[id.ID]lot.Lot),
		entries:  make(map[id.ID]account.Entry),
		payments: make(map[id.ID]account.Payment),
		orders:   make(map[id.ID]order.Order),
		lines:    make(map[id.ID][]order.Line),
	}
}

func (t tables) clone() tables {
	return tables{
		parties:     maps.Clone(t.parties),
		products:    maps.Clone(t.products),
		formulas:    maps.Clone(t.formulas),
		stocks:      maps.Clone(t.stocks),
		stockFlows:  slices.Clone(t.stockFlows),
		lots:        maps.Clone(t.lots),
		allocations: slices.Clone(t.allocations),
		entries:     maps.Clone(t.entries),
		payments:    maps.Clone(t.payments),
		orders:      maps.Clone(t.orders),
		lines:       maps.Clone(t.lines),
		orderFlows:  slices.Clone(t.orderFlows),
		archive:     slices.Clone(t.archive),
	}
}

// Store is the shared in-memory database.
type Store struct {
	mu   sync.RWMutex
	data tables

	// txMu serializes transactions, standing in for row locks.
	txMu sync.Mutex
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{data: newTables()}
}

func (s *Store) read(fn func(t *tables)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&s.data)
}

func (s *Store) write(fn func(t *tables)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.data)
}

type txKey struct{}

// TxManager runs functions against a snapshot that is restored on error.
type TxManager struct {
	store *Store
}

// NewTxManager creates a transaction manager for store.
func NewTxManager(store *Store) *TxManager {
	return &TxManager{store: store}
}

// RunInTransaction executes fn atomically. Nested calls join the outer transaction.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(bool); ok {
		return fn(ctx)
	}

	m.store.txMu.Lock()
	defer m.store.txMu.Unlock()

	var snapshot tables
	m.store.read(func(t *tables) { snapshot = t.clone() })

	txCtx := context.WithValue(ctx, txKey{}, true)
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				m.store.write(func(t *tables) { *t = snapshot })
				panic(r)
			}
		}()
		return fn(txCtx)
	}()
	if err != nil {
		m.store.write(func(t *tables) { *t = snapshot })
		logger.Debug(ctx, "memory transaction rolled back", "error", err)
		return err
	}
	return nil
}

// InTransaction reports whether ctx carries a memory transaction.
func InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(bool)
	return ok
}
