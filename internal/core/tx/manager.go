// Package tx defines the transaction boundary shared by the ledgers. An order
// completion moves stock, lots and account entries through one Manager call,
// so either every ledger sees the order or none does.
package tx

import (
	"context"
)

// Manager runs fn inside one transaction: a returned error rolls back, nil commits.
// A call made with a context that already carries a transaction joins it.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Run is RunInTransaction for functions that produce a value. The zero value is
// returned whenever the transaction fails.
func Run[T any](ctx context.Context, m Manager, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := m.RunInTransaction(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
