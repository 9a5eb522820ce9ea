package repository

import (
	"context"

	"xraymed-saas/internal/domain/model"
)

// CouponRepository is the port for coupon definitions and redemptions.
type CouponRepository interface {
	Save(ctx context.Context, tx Tx, c *model.Coupon) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Coupon, error)
	// FindByCode expects a normalized (uppercase) code.
	FindByCode(ctx context.Context, tx Tx, code string) (*model.Coupon, error)
	ListAll(ctx context.Context, tx Tx) ([]*model.Coupon, error)
	Delete(ctx context.Context, tx Tx, id string) error

	// IncrementUsedCount bumps the redemption counter, guarded by the cap when
	// one is set. Returns false if the cap would be exceeded.
	IncrementUsedCount(ctx context.Context, tx Tx, couponID string) (bool, error)

	// HasRedemption reports whether (coupon, account) was already redeemed.
	HasRedemption(ctx context.Context, tx Tx, couponID, accountID string) (bool, error)
	// InsertRedemption records the pair; the composite uniqueness constraint
	// makes a duplicate insert fail.
	InsertRedemption(ctx context.Context, tx Tx, r *model.CouponRedemption) error
}
