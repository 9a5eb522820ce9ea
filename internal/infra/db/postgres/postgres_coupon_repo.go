package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"xraymed-saas/internal/domain"
	"xraymed-saas/internal/domain/model"
	"xraymed-saas/internal/domain/ports/repository"
)

var _ repository.CouponRepository = (*couponRepo)(nil)

type couponRepo struct{ pool *pgxpool.Pool }

func NewCouponRepo(pool *pgxpool.Pool) *couponRepo {
	return &couponRepo{pool: pool}
}

const couponColumns = `id, code, kind, value, max_uses, used_count, valid_from, valid_until, is_active, created_at, updated_at`

func (r *couponRepo) Save(ctx context.Context, tx repository.Tx, c *model.Coupon) error {
	const q = `
INSERT INTO coupons (
  id, code, kind, value, max_uses, used_count, valid_from, valid_until, is_active, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
) ON CONFLICT (id) DO UPDATE SET
  code=$2, kind=$3, value=$4, max_uses=$5, valid_from=$7, valid_until=$8, is_active=$9, updated_at=NOW();`

	_, err := execSQL(ctx, r.pool, tx, q, c.ID, c.Code, string(c.Kind), c.Value, c.MaxUses, c.UsedCount, c.ValidFrom, c.ValidUntil, c.IsActive, c.CreatedAt, c.UpdatedAt)
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

func (r *couponRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Coupon, error) {
	q := `SELECT ` + couponColumns + ` FROM coupons WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanCoupon(row)
}

func (r *couponRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.Coupon, error) {
	q := `SELECT ` + couponColumns + ` FROM coupons WHERE code=$1 LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, code)
	if err != nil {
		return nil, err
	}
	return scanCoupon(row)
}

func (r *couponRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Coupon, error) {
	const q = `SELECT ` + couponColumns + ` FROM coupons ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Coupon
	for rows.Next() {
		c, err := scanCouponRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *couponRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	const q = `DELETE FROM coupons WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id)
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

// IncrementUsedCount bumps the counter only while under the cap. Uncapped
// coupons (max_uses IS NULL) always pass the guard.
func (r *couponRepo) IncrementUsedCount(ctx context.Context, tx repository.Tx, couponID string) (bool, error) {
	const q = `
UPDATE coupons
   SET used_count = used_count + 1,
       updated_at = NOW()
 WHERE id = $1
   AND (max_uses IS NULL OR used_count < max_uses);`

	cmd, err := execSQL(ctx, r.pool, tx, q, couponID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *couponRepo) HasRedemption(ctx context.Context, tx repository.Tx, couponID, accountID string) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM coupon_redemptions WHERE coupon_id=$1 AND account_id=$2);`
	row, err := pickRow(ctx, r.pool, tx, q, couponID, accountID)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return exists, nil
}

func (r *couponRepo) InsertRedemption(ctx context.Context, tx repository.Tx, red *model.CouponRedemption) error {
	const q = `INSERT INTO coupon_redemptions (coupon_id, account_id, redeemed_at) VALUES ($1,$2,$3);`
	_, err := execSQL(ctx, r.pool, tx, q, red.CouponID, red.AccountID, red.RedeemedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyRedeemed
		}
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func scanCoupon(row pgx.Row) (*model.Coupon, error) {
	c := &model.Coupon{}
	var kind string
	if err := row.Scan(&c.ID, &c.Code, &kind, &c.Value, &c.MaxUses, &c.UsedCount, &c.ValidFrom, &c.ValidUntil, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	c.Kind = model.CouponKind(kind)
	return c, nil
}

func scanCouponRows(rows pgx.Rows) (*model.Coupon, error) {
	c := &model.Coupon{}
	var kind string
	if err := rows.Scan(&c.ID, &c.Code, &kind, &c.Value, &c.MaxUses, &c.UsedCount, &c.ValidFrom, &c.ValidUntil, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	c.Kind = model.CouponKind(kind)
	return c, nil
}

// isUniqueViolation detects Postgres error 23505.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
