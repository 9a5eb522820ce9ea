package postgres

import (
	"context"
	"hash/fnv"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"xraymed-saas/internal/domain"
	"xraymed-saas/internal/domain/ports/repository"
)

var _ repository.TransactionManager = (*TxManager)(nil)

// TxManager implements repository.TransactionManager for Postgres (pgx).
// It begins a transaction, invokes the callback, and commits/rolls back.
// The tx handle is passed to the callback via the `tx` argument (as pgx.Tx).
type TxManager struct {
	pool *pgxpool.Pool
}

func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

// WithTx opens a DB transaction and passes the tx handle to fn.
// If fn returns an error, the transaction is rolled back; otherwise it is committed.
func (m *TxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	tx, err := m.pool.BeginTx(ctx, txOpt)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, tx); err != nil {
		return err // rollback in defer
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	return nil
}

// LockAccount takes pg_advisory_xact_lock keyed by the account ID. The lock
// holds until the surrounding transaction ends, so billing mutations for one
// account execute one at a time. It must run on a pgx.Tx handle.
func (m *TxManager) LockAccount(ctx context.Context, tx repository.Tx, accountID string) error {
	if _, ok := tx.(pgx.Tx); !ok {
		return domain.ErrInvalidExecContext
	}
	_, err := execSQL(ctx, m.pool, tx, `SELECT pg_advisory_xact_lock($1);`, hashToInt64(accountID))
	if err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func hashToInt64(s string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int64(h.Sum64())
}
