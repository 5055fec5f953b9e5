package account

import (
	"context"
	"fmt"
	"time"

	"coldledger/internal/core/apperror"
	"coldledger/internal/core/id"
	"coldledger/internal/core/types"
	"coldledger/internal/domain"
	"coldledger/pkg/logger"
)

// PaymentRequest applies money against one entry.
type PaymentRequest struct {
	EntryID     id.ID
	Direction   Direction
	Amount      types.Money
	Method      string
	PaymentDate time.Time
	Reference   string
	Notes       string
}

// ApplyPayment records a payment, settles the entry and moves the party balance.
func (s *Service) ApplyPayment(ctx context.Context, req PaymentRequest, actorID string) (*Payment, error) {
	amount := types.RoundMoney(req.Amount)
	if !amount.IsPositive() {
		return nil, apperror.NewValidation("payment amount must be positive").WithDetail("field", "amount")
	}

	var out *Payment
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		e, err := s.lockEntry(ctx, req.EntryID)
		if err != nil {
			return err
		}
		if e.Status == StatusPaid || e.Status == StatusCancelled {
			return apperror.NewInvalidStateTransition("account entry", string(e.Status), "pay")
		}
		if want := DirectionFor(e.Type); req.Direction != want {
			return apperror.NewValidation("payment direction does not match entry type").
				WithDetail("expected", string(want)).
				WithDetail("got", string(req.Direction))
		}
		if amount.GreaterThan(e.Balance) {
			return apperror.NewValidation("payment exceeds outstanding balance").
				WithDetail("balance", e.Balance.String()).
				WithDetail("amount", amount.String())
		}

		date := req.PaymentDate
		if date.IsZero() {
			date = time.Now()
		}
		p := &Payment{
			ID:          id.New(),
			EntryID:     e.ID,
			PartyID:     e.PartyID,
			Direction:   req.Direction,
			Amount:      amount,
			Method:      req.Method,
			PaymentDate: types.BusinessDate(date),
			Reference:   req.Reference,
			Notes:       req.Notes,
			CreatedBy:   actorID,
			CreatedAt:   time.Now().UTC(),
		}
		if err := s.repo.CreatePayment(ctx, p); err != nil {
			return fmt.Errorf("create payment: %w", err)
		}

		before := e.SignedBalance()
		e.PaidAmount = e.PaidAmount.Add(amount)
		e.Recalculate()
		e.UpdatedAt = time.Now().UTC()
		if err := s.repo.UpdateEntry(ctx, e); err != nil {
			return fmt.Errorf("update entry: %w", err)
		}
		if err := s.parties.AdjustBalance(ctx, e.PartyID, e.SignedBalance().Sub(before)); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "payment applied",
		"payment_id", out.ID,
		"entry_id", out.EntryID,
		"amount", out.Amount,
		"actor", actorID,
	)
	return out, nil
}

// DeletePayment removes a payment and restores the entry and party balance.
func (s *Service) DeletePayment(ctx context.Context, paymentID id.ID, actorID string) error {
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetPayment(ctx, paymentID)
		if err != nil {
			if apperror.IsNotFound(err) {
				return apperror.NewNotFound("payment", paymentID.String())
			}
			return err
		}
		e, err := s.lockEntry(ctx, p.EntryID)
		if err != nil {
			return err
		}

		before := e.SignedBalance()
		e.PaidAmount = types.MaxDec(e.PaidAmount.Sub(p.Amount), types.Zero())
		e.Recalculate()
		e.UpdatedAt = time.Now().UTC()
		if err := s.repo.UpdateEntry(ctx, e); err != nil {
			return fmt.Errorf("update entry: %w", err)
		}
		if err := s.repo.DeletePayment(ctx, paymentID); err != nil {
			return fmt.Errorf("delete payment: %w", err)
		}
		return s.parties.AdjustBalance(ctx, e.PartyID, e.SignedBalance().Sub(before))
	})
	if err != nil {
		return err
	}
	logger.Info(ctx, "payment deleted", "payment_id", paymentID, "actor", actorID)
	return nil
}

// ListPayments returns payments, newest first.
func (s *Service) ListPayments(ctx context.Context, filter PaymentFilter) (domain.ListResult[*Payment], error) {
	filter.Normalize()
	return s.repo.ListPayments(ctx, filter)
}
