package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"coldledger/internal/core/apperror"
	"coldledger/internal/core/id"
	"coldledger/internal/domain/documents/order"
)

// CompressionAlgo names how an archived payload is stored.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// DefaultCompressThreshold is the payload size above which snapshots are compressed.
const DefaultCompressThreshold = 10 * 1024

// ArchivedOrder is one row of order_archive.
type ArchivedOrder struct {
	ID                id.ID           `db:"id"`
	OrderID           id.ID           `db:"order_id"`
	OrderNo           string          `db:"order_no"`
	Forced            bool            `db:"forced"`
	DeletedBy         string          `db:"deleted_by"`
	DeletedAt         time.Time       `db:"deleted_at"`
	Payload           json.RawMessage `db:"payload"`
	PayloadCompressed []byte          `db:"payload_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
}

// OrderArchive stores JSON snapshots of deleted orders, zstd-compressed when large.
type OrderArchive struct {
	txm               *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

var _ order.Archive = (*OrderArchive)(nil)

// NewOrderArchive creates an archive. threshold <= 0 selects the default.
func NewOrderArchive(txm *TxManager, threshold int) (*OrderArchive, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	if threshold <= 0 {
		threshold = DefaultCompressThreshold
	}
	return &OrderArchive{
		txm:               txm,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: threshold,
	}, nil
}

// encode builds the archive row for snap.
func (a *OrderArchive) encode(snap *order.Snapshot) (*ArchivedOrder, error) {
	if snap == nil || snap.Order == nil {
		return nil, apperror.NewValidation("snapshot without order")
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal order snapshot: %w", err)
	}
	row := &ArchivedOrder{
		ID:              id.New(),
		OrderID:         snap.Order.ID,
		OrderNo:         snap.Order.OrderNo,
		Forced:          snap.Forced,
		DeletedBy:       snap.DeletedBy,
		DeletedAt:       snap.DeletedAt,
		Payload:         payload,
		CompressionAlgo: CompressionNone,
	}
	if len(payload) > a.compressThreshold {
		row.PayloadCompressed = a.encoder.EncodeAll(payload, nil)
		row.Payload = nil
		row.CompressionAlgo = CompressionZstd
	}
	return row, nil
}

// decode restores the snapshot held by row.
func (a *OrderArchive) decode(row *ArchivedOrder) (*order.Snapshot, error) {
	payload := []byte(row.Payload)
	if row.CompressionAlgo == CompressionZstd {
		var err error
		if payload, err = a.decoder.DecodeAll(row.PayloadCompressed, nil); err != nil {
			return nil, fmt.Errorf("decompress order snapshot: %w", err)
		}
	}
	var snap order.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal order snapshot: %w", err)
	}
	return &snap, nil
}

// Store implements order.Archive.
func (a *OrderArchive) Store(ctx context.Context, snap *order.Snapshot) error {
	row, err := a.encode(snap)
	if err != nil {
		return err
	}
	_, err = a.txm.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO order_archive (
			id, order_id, order_no, forced, deleted_by, deleted_at,
			payload, payload_compressed, compression_algo
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		row.ID, row.OrderID, row.OrderNo, row.Forced, row.DeletedBy, row.DeletedAt,
		row.Payload, row.PayloadCompressed, row.CompressionAlgo,
	)
	if err != nil {
		return fmt.Errorf("archive order %s: %w", row.OrderNo, err)
	}
	return nil
}

// Load returns the latest archived snapshot of an order.
func (a *OrderArchive) Load(ctx context.Context, orderID id.ID) (*order.Snapshot, error) {
	var row ArchivedOrder
	if err := GetOne(ctx, a.txm.GetQuerier(ctx), &row, Builder().
		Select(Columns[ArchivedOrder]()...).
		From("order_archive").
		Where("order_id = ?", orderID).
		OrderBy("deleted_at DESC").
		Limit(1), "archived order", orderID.String()); err != nil {
		return nil, err
	}
	return a.decode(&row)
}
