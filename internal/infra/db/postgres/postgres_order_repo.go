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

var _ repository.OrderRepository = (*orderRepo)(nil)

type orderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepo(pool *pgxpool.Pool) *orderRepo {
	return &orderRepo{pool: pool}
}

const orderColumns = `id, account_id, plan_id, cadence, coupon_id, base_amount, discount_amount, final_amount, gateway_handle, status, created_at, updated_at`

func (r *orderRepo) Save(ctx context.Context, tx repository.Tx, o *model.Order) error {
	const q = `
INSERT INTO orders (
  id, account_id, plan_id, cadence, coupon_id, base_amount, discount_amount, final_amount, gateway_handle, status, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
) ON CONFLICT (id) DO UPDATE SET
  status=$10, updated_at=NOW();`

	_, err := execSQL(ctx, r.pool, tx, q, o.ID, o.AccountID, o.PlanID, string(o.Cadence), o.CouponID, o.BaseAmount, o.DiscountAmount, o.FinalAmount, o.GatewayHandle, string(o.Status), o.CreatedAt, o.UpdatedAt)
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

func (r *orderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanOrder(row)
}

func (r *orderRepo) FindByGatewayHandle(ctx context.Context, tx repository.Tx, handle string) (*model.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM orders WHERE gateway_handle=$1 LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, handle)
	if err != nil {
		return nil, err
	}
	return scanOrder(row)
}

func (r *orderRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string) ([]*model.Order, error) {
	const q = `SELECT ` + orderColumns + ` FROM orders WHERE account_id=$1 ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, accountID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Order
	for rows.Next() {
		o := &model.Order{}
		var cadence, status string
		if err := rows.Scan(&o.ID, &o.AccountID, &o.PlanID, &cadence, &o.CouponID, &o.BaseAmount, &o.DiscountAmount, &o.FinalAmount, &o.GatewayHandle, &status, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		o.Cadence = model.BillingCadence(cadence)
		o.Status = model.OrderStatus(status)
		out = append(out, o)
	}
	return out, nil
}

func (r *orderRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.OrderStatus) error {
	const q = `UPDATE orders SET status=$2, updated_at=NOW() WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(status))
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

// UpdateStatusIfPending atomically updates status only when the order is still
// pending. Exactly one of N racing confirmations sees a row change.
func (r *orderRepo) UpdateStatusIfPending(ctx context.Context, tx repository.Tx, id string, status model.OrderStatus) (bool, error) {
	const q = `
UPDATE orders
   SET status = $2,
       updated_at = NOW()
 WHERE id = $1
   AND status = 'pending';`

	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(status))
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *orderRepo) SumPaidByPeriod(ctx context.Context, tx repository.Tx, period string) (int64, error) {
	const q = `SELECT COALESCE(SUM(final_amount),0) FROM orders WHERE status='paid' AND updated_at >= DATE_TRUNC($1, NOW());`
	row, err := pickRow(ctx, r.pool, tx, q, period)
	if err != nil {
		return 0, err
	}
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return sum, nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	o := &model.Order{}
	var cadence, status string
	if err := row.Scan(&o.ID, &o.AccountID, &o.PlanID, &cadence, &o.CouponID, &o.BaseAmount, &o.DiscountAmount, &o.FinalAmount, &o.GatewayHandle, &status, &o.CreatedAt, &o.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	o.Cadence = model.BillingCadence(cadence)
	o.Status = model.OrderStatus(status)
	return o, nil
}
