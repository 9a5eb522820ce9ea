package model

import (
	"strings"
	"time"

	"xraymed-saas/internal/domain"

	"github.com/google/uuid"
)

type CouponKind string

const (
	CouponPercentage  CouponKind = "percentage"
	CouponFixedAmount CouponKind = "fixed_amount"
)

// Coupon is a discount definition. Codes are stored uppercase; lookups are
// case-insensitive. UsedCount is incremented only when an order that carried
// the coupon transitions to paid, never at order creation.
type Coupon struct {
	ID         string
	Code       string
	Kind       CouponKind
	Value      int64 // percent in (0,100] or fixed amount in minor units
	MaxUses    *int64
	UsedCount  int64
	ValidFrom  time.Time
	ValidUntil *time.Time
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NormalizeCouponCode uppercases a code and rejects anything that is not
// strictly alphanumeric (spaces and symbols included).
func NormalizeCouponCode(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", domain.ErrInvalidArgument
	}
	for _, r := range code {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		default:
			return "", domain.ErrInvalidArgument
		}
	}
	return strings.ToUpper(code), nil
}

// NewCoupon validates and constructs a coupon.
func NewCoupon(code string, kind CouponKind, value int64, maxUses *int64, validFrom time.Time, validUntil *time.Time) (*Coupon, error) {
	normalized, err := NormalizeCouponCode(code)
	if err != nil {
		return nil, err
	}
	switch kind {
	case CouponPercentage:
		if value <= 0 || value > 100 {
			return nil, domain.ErrInvalidArgument
		}
	case CouponFixedAmount:
		if value <= 0 {
			return nil, domain.ErrInvalidArgument
		}
	default:
		return nil, domain.ErrInvalidArgument
	}
	if maxUses != nil && *maxUses <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if validUntil != nil && !validUntil.After(validFrom) {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Coupon{
		ID:         uuid.NewString(),
		Code:       normalized,
		Kind:       kind,
		Value:      value,
		MaxUses:    maxUses,
		ValidFrom:  validFrom,
		ValidUntil: validUntil,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// UsableAt reports whether the coupon can be applied at the given instant.
// Missing ValidUntil means unbounded validity; a cap of nil means uncapped.
func (c *Coupon) UsableAt(now time.Time) error {
	if !c.IsActive {
		return domain.ErrCouponInactive
	}
	if now.Before(c.ValidFrom) {
		return domain.ErrCouponExpired
	}
	if c.ValidUntil != nil && !now.Before(*c.ValidUntil) {
		return domain.ErrCouponExpired
	}
	if c.MaxUses != nil && c.UsedCount >= *c.MaxUses {
		return domain.ErrCouponExhausted
	}
	return nil
}

// Discount computes the discount for a base amount in minor units.
// Percentage discounts floor toward zero; fixed discounts never exceed base.
func (c *Coupon) Discount(baseAmount int64) int64 {
	if baseAmount <= 0 {
		return 0
	}
	switch c.Kind {
	case CouponPercentage:
		return baseAmount * c.Value / 100
	case CouponFixedAmount:
		if c.Value > baseAmount {
			return baseAmount
		}
		return c.Value
	default:
		return 0
	}
}

// CouponRedemption records one account's use of a coupon. The (coupon, account)
// pair is unique; its existence blocks any future application of the coupon to
// that account regardless of the coupon-level cap.
type CouponRedemption struct {
	CouponID   string
	AccountID  string
	RedeemedAt time.Time
}
