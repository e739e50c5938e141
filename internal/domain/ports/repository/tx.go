package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is the storage-specific transaction handle (pgx.Tx for Postgres).
type Tx interface{}

// NoTX selects the non-transactional path.
var NoTX Tx

// TransactionManager runs fn inside one database transaction. Repositories
// receive the handle through their tx argument; a handle of the backend's
// transaction type also makes lookups take row locks where they offer it.
//
//	tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
//		t, err := transactions.FindByExternalRef(ctx, tx, ref, true)
//		...
//	})
//
// fn returning an error rolls everything back.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
