package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"xraymed-saas/internal/domain"
	"xraymed-saas/internal/domain/model"
	"xraymed-saas/internal/domain/ports/repository"
)

var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct{ pool *pgxpool.Pool }

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subscriptionColumns = `id, account_id, order_id, plan_id, start_date, end_date, status, auto_renew, cancelled_at, created_at, updated_at`

func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (
  id, account_id, order_id, plan_id, start_date, end_date, status, auto_renew, cancelled_at, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
) ON CONFLICT (id) DO UPDATE SET
  status=$7, auto_renew=$8, cancelled_at=$9, updated_at=NOW();`

	_, err := execSQL(ctx, r.pool, tx, q, s.ID, s.AccountID, s.OrderID, s.PlanID, s.StartDate, s.EndDate, string(s.Status), s.AutoRenew, s.CancelledAt, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanSubscription(row)
}

func (r *subscriptionRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE order_id=$1 LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, orderID)
	if err != nil {
		return nil, err
	}
	return scanSubscription(row)
}

func (r *subscriptionRepo) FindActiveByAccount(ctx context.Context, tx repository.Tx, accountID string) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE account_id=$1 AND status='active' ORDER BY end_date DESC LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, accountID)
	if err != nil {
		return nil, err
	}
	return scanSubscription(row)
}

// CancelActiveByAccount supersedes everything the account has active. Returns
// the number of rows changed so callers can tell a no-op from a supersede.
func (r *subscriptionRepo) CancelActiveByAccount(ctx context.Context, tx repository.Tx, accountID string, at time.Time) (int, error) {
	const q = `
UPDATE subscriptions
   SET status='cancelled',
       cancelled_at=$2,
       updated_at=NOW()
 WHERE account_id=$1
   AND status='active';`

	cmd, err := execSQL(ctx, r.pool, tx, q, accountID, at)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return 0, err
		}
		return 0, domain.ErrOperationFailed
	}
	return int(cmd.RowsAffected()), nil
}

func (r *subscriptionRepo) ListDueForExpiry(ctx context.Context, tx repository.Tx, asOf time.Time, limit int) ([]*model.Subscription, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE status='active' AND end_date <= $1 ORDER BY end_date ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, asOf, limit)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Subscription
	for rows.Next() {
		s := &model.Subscription{}
		var status string
		if err := rows.Scan(&s.ID, &s.AccountID, &s.OrderID, &s.PlanID, &s.StartDate, &s.EndDate, &status, &s.AutoRenew, &s.CancelledAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		s.Status = model.SubscriptionStatus(status)
		out = append(out, s)
	}
	return out, nil
}

func (r *subscriptionRepo) CountActiveByPlan(ctx context.Context, tx repository.Tx) (map[string]int, error) {
	const q = `SELECT plan_id, COUNT(*) FROM subscriptions WHERE status='active' GROUP BY plan_id;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var planID string
		var n int
		if err := rows.Scan(&planID, &n); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out[planID] = n
	}
	return out, nil
}

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	s := &model.Subscription{}
	var status string
	if err := row.Scan(&s.ID, &s.AccountID, &s.OrderID, &s.PlanID, &s.StartDate, &s.EndDate, &status, &s.AutoRenew, &s.CancelledAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	s.Status = model.SubscriptionStatus(status)
	return s, nil
}
