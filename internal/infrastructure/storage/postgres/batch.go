package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// BatchInserter writes many rows with the COPY protocol.
type BatchInserter struct {
	txm *TxManager
}

// NewBatchInserter creates a batch inserter.
func NewBatchInserter(txm *TxManager) *BatchInserter {
	return &BatchInserter{txm: txm}
}

// CopyStructs copies items into table using the given columns. It must run
// inside a transaction so a failed copy leaves nothing behind.
func CopyStructs[T any](ctx context.Context, b *BatchInserter, table string, cols []string, items []T) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}
	t := b.txm.GetTx(ctx)
	if t == nil {
		return 0, fmt.Errorf("copy into %s requires a transaction", table)
	}
	var err error
	rows := make([][]any, len(items))
	for i := range items {
		vals := RowValues(&items[i], cols)
		for j, v := range vals {
			if vals[j], err = copyValue(v); err != nil {
				return 0, fmt.Errorf("copy into %s: column %s: %w", table, cols[j], err)
			}
		}
		rows[i] = vals
	}
	n, err := t.CopyFrom(ctx, pgx.Identifier{table}, cols, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", table, err)
	}
	return n, nil
}

// copyValue converts decimals to pgtype.Numeric; COPY only speaks the
// binary format and decimal.Decimal encodes as text.
func copyValue(v any) (any, error) {
	var d decimal.Decimal
	switch x := v.(type) {
	case decimal.Decimal:
		d = x
	case *decimal.Decimal:
		if x == nil {
			return nil, nil
		}
		d = *x
	default:
		return v, nil
	}
	var n pgtype.Numeric
	if err := n.Scan(d.String()); err != nil {
		return nil, err
	}
	return n, nil
}
