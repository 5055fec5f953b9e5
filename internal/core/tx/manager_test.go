package tx_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coldledger/internal/core/tx"
)

// recordingManager counts commits and rollbacks.
type recordingManager struct {
	commits, rollbacks int
}

func (m *recordingManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := fn(ctx); err != nil {
		m.rollbacks++
		return err
	}
	m.commits++
	return nil
}

func TestRunReturnsValueOnCommit(t *testing.T) {
	m := &recordingManager{}
	got, err := tx.Run(context.Background(), m, func(context.Context) (string, error) {
		return "PH20241201-001", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "PH20241201-001", got)
	assert.Equal(t, 1, m.commits)
}

func TestRunDropsValueOnRollback(t *testing.T) {
	m := &recordingManager{}
	boom := errors.New("lot locked")
	got, err := tx.Run(context.Background(), m, func(context.Context) (int, error) {
		return 42, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, got)
	assert.Equal(t, 1, m.rollbacks)
	assert.Zero(t, m.commits)
}
