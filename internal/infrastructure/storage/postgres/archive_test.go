package postgres

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coldledger/internal/core/apperror"
	"coldledger/internal/core/id"
	"coldledger/internal/core/types"
	"coldledger/internal/domain/documents/order"
)

func snapshot(t *testing.T, notes string) *order.Snapshot {
	t.Helper()
	o := &order.Order{
		ID:          id.New(),
		OrderNo:     "SO20241201001",
		Type:        order.TypeSale,
		Status:      order.StatusCompleted,
		SourceID:    id.New(),
		TargetID:    id.New(),
		OrderDate:   time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC),
		FinalAmount: types.MustMoney("450.00"),
		Notes:       notes,
	}
	flow, err := order.NewFlow(o.ID, order.FlowCompleted, order.Note{Text: "done"}, "", "tester")
	require.NoError(t, err)
	return &order.Snapshot{
		Order:     o,
		Flows:     []*order.Flow{flow},
		DeletedBy: "tester",
		DeletedAt: time.Date(2024, 12, 5, 10, 0, 0, 0, time.UTC),
		Forced:    true,
	}
}

func TestOrderArchive_RoundTripPlain(t *testing.T) {
	a, err := NewOrderArchive(nil, 0)
	require.NoError(t, err)

	snap := snapshot(t, "small")
	row, err := a.encode(snap)
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, row.CompressionAlgo)
	assert.Nil(t, row.PayloadCompressed)
	assert.Equal(t, "SO20241201001", row.OrderNo)

	back, err := a.decode(row)
	require.NoError(t, err)
	assert.Equal(t, snap.Order.ID, back.Order.ID)
	assert.True(t, back.Order.FinalAmount.Equal(snap.Order.FinalAmount))
	assert.True(t, back.Forced)
	require.Len(t, back.Flows, 1)
	assert.Equal(t, order.Note{Text: "done"}, back.Flows[0].Meta)
}

func TestOrderArchive_RoundTripCompressed(t *testing.T) {
	a, err := NewOrderArchive(nil, 256)
	require.NoError(t, err)

	snap := snapshot(t, strings.Repeat("ice glaze ", 200))
	row, err := a.encode(snap)
	require.NoError(t, err)
	assert.Equal(t, CompressionZstd, row.CompressionAlgo)
	assert.Nil(t, row.Payload)
	assert.NotEmpty(t, row.PayloadCompressed)

	back, err := a.decode(row)
	require.NoError(t, err)
	assert.Equal(t, snap.Order.Notes, back.Order.Notes)
	assert.True(t, snap.DeletedAt.Equal(back.DeletedAt))
}

func TestOrderArchive_RejectsEmptySnapshot(t *testing.T) {
	a, err := NewOrderArchive(nil, 0)
	require.NoError(t, err)

	_, err = a.encode(&order.Snapshot{})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}
