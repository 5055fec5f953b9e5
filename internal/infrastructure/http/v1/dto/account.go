package dto

import (
	"coldledger/internal/core/id"
	"coldledger/internal/core/types"
	"coldledger/internal/domain/registers/account"
)

var entryTypeLabels = map[account.EntryType]string{
	account.Receivable: "Receivable",
	account.Payable:    "Payable",
}

var entryStatusLabels = map[account.Status]string{
	account.StatusPending:   "Pending",
	account.StatusPartial:   "Partially paid",
	account.StatusPaid:      "Paid",
	account.StatusCancelled: "Cancelled",
}

var directionLabels = map[account.Direction]string{
	account.DirectionReceive: "Received",
	account.DirectionPay:     "Paid out",
}

func label[K ~string](m map[K]string, k K) string {
	if l, ok := m[k]; ok {
		return l
	}
	return string(k)
}

// EntryResponse is an account entry with display labels.
type EntryResponse struct {
	*account.Entry
	TypeLabel   string `json:"typeLabel"`
	StatusLabel string `json:"statusLabel"`
}

// FromEntry wraps e for output.
func FromEntry(e *account.Entry) EntryResponse {
	return EntryResponse{
		Entry:       e,
		TypeLabel:   label(entryTypeLabels, e.Type),
		StatusLabel: label(entryStatusLabels, e.Status),
	}
}

// PaymentResponse is a payment with its direction label.
type PaymentResponse struct {
	*account.Payment
	TypeLabel string `json:"typeLabel"`
}

// FromPayment wraps p for output.
func FromPayment(p *account.Payment) PaymentResponse {
	return PaymentResponse{Payment: p, TypeLabel: label(directionLabels, p.Direction)}
}

// EntryUpdateRequest edits due date and notes.
type EntryUpdateRequest struct {
	DueDate      *Date   `json:"dueDate"`
	ClearDueDate bool    `json:"clearDueDate"`
	Notes        *string `json:"notes"`
}

// Update converts the request into the service update.
func (r EntryUpdateRequest) Update() account.EntryUpdate {
	return account.EntryUpdate{DueDate: r.DueDate.Ptr(), ClearDueDate: r.ClearDueDate, Notes: r.Notes}
}

// OpeningBalanceRequest sets a party's opening receivable or payable.
type OpeningBalanceRequest struct {
	PartyID id.ID             `json:"partyId" binding:"required"`
	Type    account.EntryType `json:"type" binding:"required,oneof=receivable payable"`
	Amount  types.Money       `json:"amount"`
	AsOf    *Date             `json:"asOf"`
}

// PaymentRequest settles an entry.
type PaymentRequest struct {
	EntryID     id.ID             `json:"entryId" binding:"required"`
	Direction   account.Direction `json:"direction" binding:"required,oneof=receive pay"`
	Amount      types.Money       `json:"amount"`
	Method      string            `json:"method" binding:"max=50"`
	PaymentDate *Date             `json:"paymentDate"`
	Reference   string            `json:"reference" binding:"max=100"`
	Notes       string            `json:"notes"`
}

// ToRequest converts into the service request.
func (r PaymentRequest) ToRequest() account.PaymentRequest {
	return account.PaymentRequest{
		EntryID:     r.EntryID,
		Direction:   r.Direction,
		Amount:      r.Amount,
		Method:      r.Method,
		PaymentDate: r.PaymentDate.Value(),
		Reference:   r.Reference,
		Notes:       r.Notes,
	}
}

// CancelRequest cancels an unpaid entry.
type CancelRequest struct {
	Reason string `json:"reason" binding:"required"`
}
