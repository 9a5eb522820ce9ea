package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

// NoTX marks the non-transactional path when calling repository methods.
var NoTX Tx

// TransactionManager executes a function inside a storage transaction, passing
// the transaction handle to repositories via the `tx` argument.
//
// Repositories accept the handle as an opaque value and detect the concrete
// type (pgx.Tx for Postgres) on the implementation side; they must gracefully
// accept nil/NoTX and fall back to the pool. Keeping the handle opaque keeps
// use-case interfaces free of storage types.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error

	// LockAccount serializes billing mutations for one account for the rest
	// of the transaction (pg_advisory_xact_lock on Postgres). Concurrent
	// billing transactions for the same account queue behind the lock.
	LockAccount(ctx context.Context, tx Tx, accountID string) error
}
