package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"xraymed-saas/internal/domain"
	"xraymed-saas/internal/domain/model"
	"xraymed-saas/internal/domain/ports/repository"
	"xraymed-saas/internal/infra/metrics"
)

// CouponPreview is the outcome of applying a coupon to a plan without buying.
type CouponPreview struct {
	OriginalAmount int64
	DiscountAmount int64
	FinalAmount    int64
	CouponCode     string
}

// CouponUseCase is the coupon engine: validation, discount computation,
// transactional redemption, and the administrative CRUD surface.
type CouponUseCase interface {
	// Validate checks applicability of a code for an account: existence,
	// validity window, active flag, global cap, and prior redemption.
	Validate(ctx context.Context, code, accountID string) (*model.Coupon, error)

	// Preview computes amounts for a plan/cadence/coupon triple. Pure read.
	Preview(ctx context.Context, planID string, cadence model.BillingCadence, code string) (*CouponPreview, error)

	// Redeem records the (coupon, account) redemption and bumps the counter.
	// It must run inside the same transaction that marks the order paid, so it
	// takes the transaction handle explicitly.
	Redeem(ctx context.Context, tx repository.Tx, couponID, accountID string) error

	// Unredeem would reverse a redemption on refund. No reversal rule is
	// defined, so it always fails with ErrUnsupported.
	Unredeem(ctx context.Context, tx repository.Tx, couponID, accountID string) error

	// Admin surface.
	Create(ctx context.Context, code string, kind model.CouponKind, value int64, maxUses *int64, validFrom time.Time, validUntil *time.Time) (*model.Coupon, error)
	Update(ctx context.Context, id string, value *int64, maxUses *int64, validUntil *time.Time, isActive *bool) (*model.Coupon, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*model.Coupon, error)
	List(ctx context.Context) ([]*model.Coupon, error)
}

var _ CouponUseCase = (*couponUC)(nil)

type couponUC struct {
	coupons repository.CouponRepository
	pricing PricingResolver
	log     *zerolog.Logger
}

func NewCouponUseCase(coupons repository.CouponRepository, pricing PricingResolver, logger *zerolog.Logger) *couponUC {
	l := logger.With().Str("component", "CouponUC").Logger()
	return &couponUC{coupons: coupons, pricing: pricing, log: &l}
}

func (u *couponUC) Validate(ctx context.Context, code, accountID string) (*model.Coupon, error) {
	normalized, err := model.NormalizeCouponCode(code)
	if err != nil {
		return nil, err
	}
	c, err := u.coupons.FindByCode(ctx, repository.NoTX, normalized)
	if err != nil {
		metrics.IncCouponRejected("not_found")
		return nil, domain.ErrCouponNotFound
	}
	if err := c.UsableAt(time.Now()); err != nil {
		metrics.IncCouponRejected(rejectReason(err))
		return nil, err
	}
	if accountID != "" {
		used, err := u.coupons.HasRedemption(ctx, repository.NoTX, c.ID, accountID)
		if err != nil {
			return nil, err
		}
		if used {
			metrics.IncCouponRejected("already_redeemed")
			return nil, domain.ErrAlreadyRedeemed
		}
	}
	return c, nil
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrCouponInactive):
		return "inactive"
	case errors.Is(err, domain.ErrCouponExpired):
		return "expired"
	case errors.Is(err, domain.ErrCouponExhausted):
		return "exhausted"
	default:
		return "other"
	}
}

func (u *couponUC) Preview(ctx context.Context, planID string, cadence model.BillingCadence, code string) (*CouponPreview, error) {
	price, err := u.pricing.Resolve(planID, cadence)
	if err != nil {
		return nil, err
	}
	c, err := u.Validate(ctx, code, "")
	if err != nil {
		return nil, err
	}
	discount := c.Discount(price.BaseAmount)
	return &CouponPreview{
		OriginalAmount: price.BaseAmount,
		DiscountAmount: discount,
		FinalAmount:    price.BaseAmount - discount,
		CouponCode:     c.Code,
	}, nil
}

// Redeem inserts the redemption row and increments the counter. Both writes
// ride the caller's transaction; partial application (discount granted but
// redemption unrecorded, or vice versa) cannot be observed.
func (u *couponUC) Redeem(ctx context.Context, tx repository.Tx, couponID, accountID string) error {
	used, err := u.coupons.HasRedemption(ctx, tx, couponID, accountID)
	if err != nil {
		return err
	}
	if used {
		return domain.ErrAlreadyRedeemed
	}
	ok, err := u.coupons.IncrementUsedCount(ctx, tx, couponID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrCouponExhausted
	}
	return u.coupons.InsertRedemption(ctx, tx, &model.CouponRedemption{
		CouponID:   couponID,
		AccountID:  accountID,
		RedeemedAt: time.Now(),
	})
}

func (u *couponUC) Unredeem(ctx context.Context, tx repository.Tx, couponID, accountID string) error {
	return domain.ErrUnsupported
}

func (u *couponUC) Create(ctx context.Context, code string, kind model.CouponKind, value int64, maxUses *int64, validFrom time.Time, validUntil *time.Time) (*model.Coupon, error) {
	c, err := model.NewCoupon(code, kind, value, maxUses, validFrom, validUntil)
	if err != nil {
		return nil, err
	}
	if existing, err := u.coupons.FindByCode(ctx, repository.NoTX, c.Code); err == nil && existing != nil {
		return nil, domain.ErrAlreadyExists
	}
	if err := u.coupons.Save(ctx, repository.NoTX, c); err != nil {
		return nil, err
	}
	u.log.Info().Str("code", c.Code).Str("kind", string(c.Kind)).Msg("coupon created")
	return c, nil
}

func (u *couponUC) Update(ctx context.Context, id string, value *int64, maxUses *int64, validUntil *time.Time, isActive *bool) (*model.Coupon, error) {
	c, err := u.coupons.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	if value != nil {
		if c.Kind == model.CouponPercentage && (*value <= 0 || *value > 100) {
			return nil, domain.ErrInvalidArgument
		}
		c.Value = *value
	}
	if maxUses != nil {
		if *maxUses < c.UsedCount {
			return nil, domain.ErrInvalidArgument
		}
		c.MaxUses = maxUses
	}
	if validUntil != nil {
		c.ValidUntil = validUntil
	}
	if isActive != nil {
		c.IsActive = *isActive
	}
	c.UpdatedAt = time.Now()
	if err := u.coupons.Save(ctx, repository.NoTX, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (u *couponUC) Delete(ctx context.Context, id string) error {
	if _, err := u.coupons.FindByID(ctx, repository.NoTX, id); err != nil {
		return err
	}
	return u.coupons.Delete(ctx, repository.NoTX, id)
}

func (u *couponUC) Get(ctx context.Context, id string) (*model.Coupon, error) {
	return u.coupons.FindByID(ctx, repository.NoTX, id)
}

func (u *couponUC) List(ctx context.Context) ([]*model.Coupon, error) {
	return u.coupons.ListAll(ctx, repository.NoTX)
}
