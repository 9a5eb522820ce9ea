package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"xraymed-saas/internal/domain"
	"xraymed-saas/internal/domain/model"
	"xraymed-saas/internal/domain/ports/repository"
)

var _ repository.AccountRepository = (*accountRepo)(nil)

type accountRepo struct{ pool *pgxpool.Pool }

func NewAccountRepo(pool *pgxpool.Pool) *accountRepo {
	return &accountRepo{pool: pool}
}

const accountColumns = `id, email, name, is_admin, tier, credits, credit_expiry, last_credit_update_at, registered_at`

func (r *accountRepo) Save(ctx context.Context, tx repository.Tx, a *model.Account) error {
	const q = `
INSERT INTO accounts (
  id, email, name, is_admin, tier, credits, credit_expiry, last_credit_update_at, registered_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9
) ON CONFLICT (id) DO UPDATE SET
  email=$2, name=$3, is_admin=$4, tier=$5, credits=$6, credit_expiry=$7, last_credit_update_at=$8;`

	_, err := execSQL(ctx, r.pool, tx, q, a.ID, a.Email, a.Name, a.IsAdmin, string(a.Tier), a.Credits, a.CreditExpiry, a.LastCreditUpdateAt, a.RegisteredAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *accountRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM accounts WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanAccount(row)
}

func (r *accountRepo) FindByEmail(ctx context.Context, tx repository.Tx, email string) (*model.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM accounts WHERE email=$1 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, email)
	if err != nil {
		return nil, err
	}
	return scanAccount(row)
}

func (r *accountRepo) UpdateEntitlement(ctx context.Context, tx repository.Tx, a *model.Account) error {
	const q = `
UPDATE accounts
   SET tier=$2,
       credits=$3,
       credit_expiry=$4,
       last_credit_update_at=NOW()
 WHERE id=$1;`

	cmd, err := execSQL(ctx, r.pool, tx, q, a.ID, string(a.Tier), a.Credits, a.CreditExpiry)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DebitCredits decrements the balance only while it covers n; the guard in the
// WHERE clause makes concurrent debits safe without a prior read.
func (r *accountRepo) DebitCredits(ctx context.Context, tx repository.Tx, accountID string, n int64) (bool, error) {
	const q = `
UPDATE accounts
   SET credits = credits - $2,
       last_credit_update_at = NOW()
 WHERE id = $1
   AND credits >= $2
   AND (credit_expiry IS NULL OR credit_expiry > NOW());`

	cmd, err := execSQL(ctx, r.pool, tx, q, accountID, n)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	a := &model.Account{}
	var tier string
	if err := row.Scan(&a.ID, &a.Email, &a.Name, &a.IsAdmin, &tier, &a.Credits, &a.CreditExpiry, &a.LastCreditUpdateAt, &a.RegisteredAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	a.Tier = model.AccountTier(tier)
	return a, nil
}
