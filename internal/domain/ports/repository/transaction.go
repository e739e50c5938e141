package repository

import (
	"context"
	"time"

	"giftcard-service/internal/domain/model"
)

type PaymentTransactionRepository interface {
	Insert(ctx context.Context, tx Tx, t *model.PaymentTransaction) error
	// FindByID and FindByExternalRef take a row lock when forUpdate is set and
	// tx is a live transaction.
	FindByID(ctx context.Context, tx Tx, id string, forUpdate bool) (*model.PaymentTransaction, error)
	FindByExternalRef(ctx context.Context, tx Tx, ref string, forUpdate bool) (*model.PaymentTransaction, error)
	// SetExternalRef stores ref while the transaction is pending.
	SetExternalRef(ctx context.Context, tx Tx, id, ref string) (bool, error)
	// TransitionIfPending moves a pending transaction to status. When the row
	// is not pending it returns (nil, false, nil).
	TransitionIfPending(ctx context.Context, tx Tx, id string, status model.TransactionStatus, externalRef, giftCardID *string) (*model.PaymentTransaction, bool, error)
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.PaymentTransaction, error)
	CountByStatus(ctx context.Context, tx Tx) (map[model.TransactionStatus]int, error)
}
