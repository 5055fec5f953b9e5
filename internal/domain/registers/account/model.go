// Package account provides the receivable/payable ledger derived from completed
// orders, with payments, opening balances and aging reports.
package account

import (
	"time"

	"github.com/shopspring/decimal"

	"coldledger/internal/core/id"
	"coldledger/internal/core/types"
)

// Component is the fee component an entry bills.
type Component string

const (
	ComponentGoods   Component = "goods"
	ComponentFreight Component = "freight"
	ComponentStorage Component = "storage"
	ComponentOther   Component = "other"
	ComponentInitial Component = "initial"
)

// EntryType is the direction of an entry.
type EntryType string

const (
	Receivable EntryType = "receivable"
	Payable    EntryType = "payable"
)

// IsValid reports a known entry type.
func (t EntryType) IsValid() bool {
	return t == Receivable || t == Payable
}

// Sign is +1 for receivables and -1 for payables, as applied to party balances.
func (t EntryType) Sign() int64 {
	if t == Receivable {
		return 1
	}
	return -1
}

// Status of an entry.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPartial   Status = "partial"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
)

// Entry is one counterparty ledger line.
type Entry struct {
	ID           id.ID       `db:"id" json:"id"`
	PartyID      id.ID       `db:"party_id" json:"partyId"`
	OrderID      *id.ID      `db:"order_id" json:"orderId,omitempty"`
	OrderNo      string      `db:"order_no" json:"orderNo,omitempty"`
	Component    Component   `db:"component" json:"component"`
	Type         EntryType   `db:"entry_type" json:"type"`
	Amount       types.Money `db:"amount" json:"amount"`
	PaidAmount   types.Money `db:"paid_amount" json:"paidAmount"`
	Balance      types.Money `db:"balance" json:"balance"`
	Status       Status      `db:"status" json:"status"`
	DueDate      *time.Time  `db:"due_date" json:"dueDate,omitempty"`
	BusinessDate time.Time   `db:"business_date" json:"businessDate"`
	IsInitial    bool        `db:"is_initial" json:"isInitial"`
	Notes        string      `db:"notes" json:"notes,omitempty"`
	CreatedBy    string      `db:"created_by" json:"createdBy"`
	CreatedAt    time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updatedAt"`
}

// Recalculate derives balance and status from amount and paid amount.
// Cancelled entries keep their status.
func (e *Entry) Recalculate() {
	e.Balance = e.Amount.Sub(e.PaidAmount)
	if e.Status == StatusCancelled {
		return
	}
	switch {
	case !e.Balance.IsPositive():
		e.Status = StatusPaid
	case !e.PaidAmount.IsPositive():
		e.Status = StatusPending
	default:
		e.Status = StatusPartial
	}
}

// SignedBalance is the entry's contribution to the party balance.
func (e *Entry) SignedBalance() types.Money {
	return e.Balance.Mul(decimal.NewFromInt(e.Type.Sign()))
}

// DaysOverdue counts days past due at asOf; zero without a due date.
func (e *Entry) DaysOverdue(asOf time.Time) int {
	if e.DueDate == nil {
		return 0
	}
	d := types.DaysBetween(*e.DueDate, asOf)
	if d < 0 {
		return 0
	}
	return d
}

// Direction of a payment.
type Direction string

const (
	DirectionReceive Direction = "receive"
	DirectionPay     Direction = "pay"
)

// DirectionFor returns the payment direction that settles an entry type.
func DirectionFor(t EntryType) Direction {
	if t == Receivable {
		return DirectionReceive
	}
	return DirectionPay
}

// Payment settles part or all of one entry.
type Payment struct {
	ID          id.ID       `db:"id" json:"id"`
	EntryID     id.ID       `db:"entry_id" json:"entryId"`
	PartyID     id.ID       `db:"party_id" json:"partyId"`
	Direction   Direction   `db:"direction" json:"direction"`
	Amount      types.Money `db:"amount" json:"amount"`
	Method      string      `db:"method" json:"method,omitempty"`
	PaymentDate time.Time   `db:"payment_date" json:"paymentDate"`
	Reference   string      `db:"reference" json:"reference,omitempty"`
	Notes       string      `db:"notes" json:"notes,omitempty"`
	CreatedBy   string      `db:"created_by" json:"createdBy"`
	CreatedAt   time.Time   `db:"created_at" json:"createdAt"`
}
