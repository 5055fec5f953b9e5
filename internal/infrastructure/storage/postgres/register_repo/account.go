package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"coldledger/internal/core/apperror"
	"coldledger/internal/core/id"
	"coldledger/internal/domain"
	"coldledger/internal/domain/registers/account"
	"coldledger/internal/infrastructure/storage/postgres"
)

const (
	entryTable   = "account_entries"
	paymentTable = "payments"
)

var (
	entryColumns   = postgres.Columns[account.Entry]()
	paymentColumns = postgres.Columns[account.Payment]()
)

// AccountRepo implements account.Repository.
type AccountRepo struct {
	txm *postgres.TxManager
}

var _ account.Repository = (*AccountRepo)(nil)

// NewAccountRepo creates an account register repository.
func NewAccountRepo(txm *postgres.TxManager) *AccountRepo {
	return &AccountRepo{txm: txm}
}

func (r *AccountRepo) selectEntries() squirrel.SelectBuilder {
	return postgres.Builder().Select(entryColumns...).From(entryTable)
}

func (r *AccountRepo) CreateEntry(ctx context.Context, e *account.Entry) error {
	if _, err := postgres.Exec(ctx, r.txm.GetQuerier(ctx), postgres.Builder().
		Insert(entryTable).
		Columns(entryColumns...).
		Values(postgres.RowValues(e, entryColumns)...)); err != nil {
		return fmt.Errorf("insert account entry: %w", err)
	}
	return nil
}

func (r *AccountRepo) UpdateEntry(ctx context.Context, e *account.Entry) error {
	data := postgres.StructToMap(e)
	set := make(map[string]any)
	for _, col := range postgres.Without(entryColumns, "id", "created_at", "created_by") {
		set[col] = data[col]
	}
	n, err := postgres.Exec(ctx, r.txm.GetQuerier(ctx), postgres.Builder().
		Update(entryTable).
		SetMap(set).
		Where(squirrel.Eq{"id": e.ID}))
	if err != nil {
		return fmt.Errorf("update account entry: %w", err)
	}
	if n == 0 {
		return apperror.NewNotFound("entry", e.ID.String())
	}
	return nil
}

func (r *AccountRepo) DeleteEntry(ctx context.Context, entryID id.ID) error {
	n, err := postgres.Exec(ctx, r.txm.GetQuerier(ctx), postgres.Builder().
		Delete(entryTable).
		Where(squirrel.Eq{"id": entryID}))
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return apperror.NewConsistency("entry has payments").
				WithDetail("entryId", entryID.String()).
				WithCause(err)
		}
		return fmt.Errorf("delete account entry: %w", err)
	}
	if n == 0 {
		return apperror.NewNotFound("entry", entryID.String())
	}
	return nil
}

func (r *AccountRepo) GetEntry(ctx context.Context, entryID id.ID) (*account.Entry, error) {
	var e account.Entry
	if err := postgres.GetOne(ctx, r.txm.GetQuerier(ctx), &e,
		r.selectEntries().Where(squirrel.Eq{"id": entryID}),
		"entry", entryID.String()); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *AccountRepo) GetEntryForUpdate(ctx context.Context, entryID id.ID) (*account.Entry, error) {
	var e account.Entry
	if err := postgres.GetOne(ctx, r.txm.GetQuerier(ctx), &e,
		r.selectEntries().Where(squirrel.Eq{"id": entryID}).Suffix("FOR UPDATE"),
		"entry", entryID.String()); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *AccountRepo) ListEntriesByOrder(ctx context.Context, orderID id.ID) ([]*account.Entry, error) {
	return r.FindEntries(ctx, account.EntryFilter{OrderID: &orderID})
}

func (r *AccountRepo) FindInitialEntry(ctx context.Context, partyID id.ID, et account.EntryType) (*account.Entry, error) {
	var e account.Entry
	if err := postgres.GetOne(ctx, r.txm.GetQuerier(ctx), &e,
		r.selectEntries().Where(squirrel.Eq{
			"is_initial": true,
			"party_id":   partyID,
			"entry_type": string(et),
		}).Suffix("FOR UPDATE"),
		"entry", partyID.String()); err != nil {
		return nil, err
	}
	return &e, nil
}

// entryQuery applies every EntryFilter predicate.
func entryQuery(f account.EntryFilter) squirrel.SelectBuilder {
	q := postgres.Builder().Select(entryColumns...).From(entryTable)
	eq := squirrel.Eq{}
	if f.PartyID != nil {
		eq["party_id"] = *f.PartyID
	}
	if f.OrderID != nil {
		eq["order_id"] = *f.OrderID
	}
	if f.Type != nil {
		eq["entry_type"] = string(*f.Type)
	}
	if f.Component != nil {
		eq["component"] = string(*f.Component)
	}
	if len(eq) > 0 {
		q = q.Where(eq)
	}
	if f.Status != nil {
		q = q.Where(squirrel.Eq{"status": string(*f.Status)})
	}
	if f.OpenOnly {
		q = q.Where(squirrel.Eq{"status": []string{string(account.StatusPending), string(account.StatusPartial)}})
	}
	if f.ExcludeCancelled {
		q = q.Where(squirrel.NotEq{"status": string(account.StatusCancelled)})
	}
	if f.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"business_date": *f.FromDate})
	}
	if f.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"business_date": *f.ToDate})
	}
	if f.Search != "" {
		q = q.Where(squirrel.ILike{"order_no": "%" + f.Search + "%"})
	}
	return q
}

const entryOrder = "business_date ASC, created_at ASC, id ASC"

// FindEntries returns every match ordered by business date, then creation time.
func (r *AccountRepo) FindEntries(ctx context.Context, filter account.EntryFilter) ([]*account.Entry, error) {
	var out []*account.Entry
	if err := postgres.SelectAll(ctx, r.txm.GetQuerier(ctx), &out, entryQuery(filter).OrderBy(entryOrder)); err != nil {
		return nil, fmt.Errorf("find entries: %w", err)
	}
	return out, nil
}

func (r *AccountRepo) ListEntries(ctx context.Context, filter account.EntryFilter) (domain.ListResult[*account.Entry], error) {
	return postgres.Paginate[*account.Entry](ctx, r.txm.GetQuerier(ctx), entryQuery(filter), entryOrder, filter.ListFilter)
}

func (r *AccountRepo) CreatePayment(ctx context.Context, p *account.Payment) error {
	if _, err := postgres.Exec(ctx, r.txm.GetQuerier(ctx), postgres.Builder().
		Insert(paymentTable).
		Columns(paymentColumns...).
		Values(postgres.RowValues(p, paymentColumns)...)); err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (r *AccountRepo) GetPayment(ctx context.Context, paymentID id.ID) (*account.Payment, error) {
	var p account.Payment
	if err := postgres.GetOne(ctx, r.txm.GetQuerier(ctx), &p,
		postgres.Builder().Select(paymentColumns...).From(paymentTable).Where(squirrel.Eq{"id": paymentID}),
		"payment", paymentID.String()); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *AccountRepo) DeletePayment(ctx context.Context, paymentID id.ID) error {
	n, err := postgres.Exec(ctx, r.txm.GetQuerier(ctx), postgres.Builder().
		Delete(paymentTable).
		Where(squirrel.Eq{"id": paymentID}))
	if err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	if n == 0 {
		return apperror.NewNotFound("payment", paymentID.String())
	}
	return nil
}

func paymentQuery(f account.PaymentFilter) squirrel.SelectBuilder {
	q := postgres.Builder().Select(paymentColumns...).From(paymentTable)
	eq := squirrel.Eq{}
	if f.PartyID != nil {
		eq["party_id"] = *f.PartyID
	}
	if f.EntryID != nil {
		eq["entry_id"] = *f.EntryID
	}
	if f.Direction != nil {
		eq["direction"] = string(*f.Direction)
	}
	if len(eq) > 0 {
		q = q.Where(eq)
	}
	if f.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"payment_date": *f.FromDate})
	}
	if f.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"payment_date": *f.ToDate})
	}
	return q
}

const paymentOrder = "payment_date ASC, created_at ASC, id ASC"

func (r *AccountRepo) FindPayments(ctx context.Context, filter account.PaymentFilter) ([]*account.Payment, error) {
	var out []*account.Payment
	if err := postgres.SelectAll(ctx, r.txm.GetQuerier(ctx), &out, paymentQuery(filter).OrderBy(paymentOrder)); err != nil {
		return nil, fmt.Errorf("find payments: %w", err)
	}
	return out, nil
}

func (r *AccountRepo) ListPayments(ctx context.Context, filter account.PaymentFilter) (domain.ListResult[*account.Payment], error) {
	return postgres.Paginate[*account.Payment](ctx, r.txm.GetQuerier(ctx), paymentQuery(filter), paymentOrder, filter.ListFilter)
}

func (r *AccountRepo) CountPaymentsByOrder(ctx context.Context, orderID id.ID) (int, error) {
	var n int
	err := r.txm.GetQuerier(ctx).QueryRow(ctx, `
		SELECT COUNT(*)
		FROM payments p
		JOIN account_entries e ON e.id = p.entry_id
		WHERE e.order_id = $1`, orderID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count payments by order: %w", err)
	}
	return n, nil
}
