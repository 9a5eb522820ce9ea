package model

import (
	"crypto/rand"
	"time"

	"xraymed-saas/internal/domain"

	"github.com/oklog/ulid/v2"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusRefunded  OrderStatus = "refunded"
)

// Terminal reports whether an order status admits no further automatic
// transition. Refunds from paid are an administrative action.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusPaid, OrderStatusFailed, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// Order is a single purchase attempt. Fields other than Status/UpdatedAt are
// immutable after creation. Exactly one order owns a given gateway handle.
type Order struct {
	ID             string
	AccountID      string
	PlanID         string
	Cadence        BillingCadence
	CouponID       *string
	BaseAmount     int64
	DiscountAmount int64
	FinalAmount    int64
	GatewayHandle  string
	Status         OrderStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewOrderID mints a ULID so ledger rows sort by creation time.
func NewOrderID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// NewOrder constructs a pending order. Amount arithmetic is validated:
// final = base - discount, discount >= 0, final >= 0.
func NewOrder(accountID, planID string, cadence BillingCadence, couponID *string, base, discount int64, gatewayHandle string) (*Order, error) {
	if accountID == "" || planID == "" || gatewayHandle == "" {
		return nil, domain.ErrInvalidArgument
	}
	if base < 0 || discount < 0 || discount > base {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Order{
		ID:             NewOrderID(),
		AccountID:      accountID,
		PlanID:         planID,
		Cadence:        cadence,
		CouponID:       couponID,
		BaseAmount:     base,
		DiscountAmount: discount,
		FinalAmount:    base - discount,
		GatewayHandle:  gatewayHandle,
		Status:         OrderStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}
