package account

import (
	"context"
	"time"

	"coldledger/internal/core/id"
	"coldledger/internal/domain"
)

// Repository defines persistence for entries and payments.
type Repository interface {
	CreateEntry(ctx context.Context, e *Entry) error
	UpdateEntry(ctx context.Context, e *Entry) error
	DeleteEntry(ctx context.Context, id id.ID) error
	GetEntry(ctx context.Context, id id.ID) (*Entry, error)

	// GetEntryForUpdate returns the entry with a row lock.
	GetEntryForUpdate(ctx context.Context, id id.ID) (*Entry, error)

	ListEntriesByOrder(ctx context.Context, orderID id.ID) ([]*Entry, error)
	FindInitialEntry(ctx context.Context, partyID id.ID, t EntryType) (*Entry, error)
	ListEntries(ctx context.Context, filter EntryFilter) (domain.ListResult[*Entry], error)

	// FindEntries returns every match, ignoring pagination.
	FindEntries(ctx context.Context, filter EntryFilter) ([]*Entry, error)

	CreatePayment(ctx context.Context, p *Payment) error
	GetPayment(ctx context.Context, id id.ID) (*Payment, error)
	DeletePayment(ctx context.Context, id id.ID) error
	ListPayments(ctx context.Context, filter PaymentFilter) (domain.ListResult[*Payment], error)
	FindPayments(ctx context.Context, filter PaymentFilter) ([]*Payment, error)

	// CountPaymentsByOrder counts payments against any entry of the order.
	CountPaymentsByOrder(ctx context.Context, orderID id.ID) (int, error)
}

// EntryFilter narrows entry queries.
type EntryFilter struct {
	domain.ListFilter
	PartyID   *id.ID
	OrderID   *id.ID
	Type      *EntryType
	Status    *Status
	Component *Component
	FromDate  *time.Time
	ToDate    *time.Time

	// OpenOnly keeps pending and partial entries.
	OpenOnly bool
	// ExcludeCancelled drops cancelled entries.
	ExcludeCancelled bool
}

// PaymentFilter narrows payment queries.
type PaymentFilter struct {
	domain.ListFilter
	PartyID   *id.ID
	EntryID   *id.ID
	Direction *Direction
	FromDate  *time.Time
	ToDate    *time.Time
}
