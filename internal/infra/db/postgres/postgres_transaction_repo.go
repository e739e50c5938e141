package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4/pgxpool"

	"giftcard-service/internal/domain"
	"giftcard-service/internal/domain/model"
	"giftcard-service/internal/domain/ports/repository"
)

var _ repository.PaymentTransactionRepository = (*transactionRepo)(nil)

type transactionRepo struct {
	pool *pgxpool.Pool
}

func NewTransactionRepo(pool *pgxpool.Pool) repository.PaymentTransactionRepository {
	return &transactionRepo{pool: pool}
}

const transactionColumns = `id, plan_id, email, amount, external_ref, gift_card_id, status, created_at, updated_at`

func (r *transactionRepo) Insert(ctx context.Context, tx repository.Tx, t *model.PaymentTransaction) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	const q = `
INSERT INTO payment_transactions (` + transactionColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
`
	_, err := execSQL(ctx, r.pool, tx, q,
		t.ID, t.PlanID, t.Email, t.Amount, t.ExternalRef, t.GiftCardID, string(t.Status), t.CreatedAt, t.UpdatedAt,
	)
	if pgCode(err) == codeForeignKeyViolation {
		return domain.ErrInvalidPlan
	}
	return dbErr("transaction.insert", err)
}

// FindByID locks the row when forUpdate is set and tx is a live transaction.
func (r *transactionRepo) FindByID(ctx context.Context, tx repository.Tx, id string, forUpdate bool) (*model.PaymentTransaction, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	q := `SELECT ` + transactionColumns + ` FROM payment_transactions WHERE id = $1`
	return r.findOne(ctx, tx, "transaction.find", lockClause(q, tx, forUpdate), id)
}

func (r *transactionRepo) FindByExternalRef(ctx context.Context, tx repository.Tx, ref string, forUpdate bool) (*model.PaymentTransaction, error) {
	q := `SELECT ` + transactionColumns + ` FROM payment_transactions WHERE external_ref = $1 ORDER BY created_at LIMIT 1`
	return r.findOne(ctx, tx, "transaction.find_ref", lockClause(q, tx, forUpdate), ref)
}

func lockClause(q string, tx repository.Tx, forUpdate bool) string {
	if forUpdate && inTx(tx) {
		return q + " FOR UPDATE"
	}
	return q
}

func (r *transactionRepo) findOne(ctx context.Context, tx repository.Tx, op, q string, arg interface{}) (*model.PaymentTransaction, error) {
	row, err := pickRow(ctx, r.pool, tx, q, arg)
	if err != nil {
		return nil, dbErr(op, err)
	}
	t, err := scanTransaction(row)
	if err != nil {
		return nil, dbErr(op, err)
	}
	return t, nil
}

// SetExternalRef stores the gateway reference while the row is still pending.
func (r *transactionRepo) SetExternalRef(ctx context.Context, tx repository.Tx, id, ref string) (bool, error) {
	const q = `
UPDATE payment_transactions
   SET external_ref = $2, updated_at = now()
 WHERE id = $1 AND status = 'pending';
`
	ct, err := execSQL(ctx, r.pool, tx, q, id, ref)
	if err != nil {
		return false, dbErr("transaction.set_ref", err)
	}
	return ct.RowsAffected() == 1, nil
}

// TransitionIfPending is the conditional status write: only a pending row
// moves, so concurrent duplicate notifications cannot both succeed.
func (r *transactionRepo) TransitionIfPending(ctx context.Context, tx repository.Tx, id string, status model.TransactionStatus, externalRef, giftCardID *string) (*model.PaymentTransaction, bool, error) {
	const q = `
UPDATE payment_transactions
   SET status       = $2,
       external_ref = COALESCE($3, external_ref),
       gift_card_id = COALESCE($4, gift_card_id),
       updated_at   = now()
 WHERE id = $1 AND status = 'pending'
RETURNING ` + transactionColumns + `;
`
	row, err := pickRow(ctx, r.pool, tx, q, id, string(status), externalRef, giftCardID)
	if err != nil {
		return nil, false, dbErr("transaction.transition", err)
	}
	t, err := scanTransaction(row)
	if err != nil {
		err = dbErr("transaction.transition", err)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return t, true, nil
}

func (r *transactionRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentTransaction, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT ` + transactionColumns + `
  FROM payment_transactions
 WHERE status = 'pending' AND created_at < $1
 ORDER BY created_at
 LIMIT $2;
`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		return nil, dbErr("transaction.list_pending", err)
	}
	defer rows.Close()
	var out []*model.PaymentTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, dbErr("transaction.list_pending", err)
		}
		out = append(out, t)
	}
	return out, dbErr("transaction.list_pending", rows.Err())
}

func (r *transactionRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.TransactionStatus]int, error) {
	const q = `SELECT status, COUNT(*) FROM payment_transactions GROUP BY status;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, dbErr("transaction.count", err)
	}
	defer rows.Close()
	out := map[model.TransactionStatus]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, dbErr("transaction.count", err)
		}
		out[model.TransactionStatus(status)] = n
	}
	return out, dbErr("transaction.count", rows.Err())
}

func scanTransaction(row rowScanner) (*model.PaymentTransaction, error) {
	var t model.PaymentTransaction
	var status string
	if err := row.Scan(&t.ID, &t.PlanID, &t.Email, &t.Amount, &t.ExternalRef, &t.GiftCardID, &status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Status = model.TransactionStatus(status)
	return &t, nil
}
