package model

import (
	"crypto/rand"
	"time"

	"xraymed-saas/internal/domain"

	"github.com/oklog/ulid/v2"
)

type SubscriptionStatus string

const (
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

// Subscription is the entitlement period granted by a paid order.
// At most one subscription per account is active at any time.
type Subscription struct {
	ID          string
	AccountID   string
	OrderID     string
	PlanID      string
	StartDate   time.Time
	EndDate     time.Time
	Status      SubscriptionStatus
	AutoRenew   bool
	CancelledAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewSubscription creates an active subscription covering durationDays from now.
func NewSubscription(accountID, orderID, planID string, durationDays int) (*Subscription, error) {
	if accountID == "" || orderID == "" || planID == "" || durationDays <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Subscription{
		ID:        ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		AccountID: accountID,
		OrderID:   orderID,
		PlanID:    planID,
		StartDate: now,
		EndDate:   now.Add(time.Duration(durationDays) * 24 * time.Hour),
		Status:    SubscriptionStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// DueForExpiry reports whether an active subscription has passed its end date.
func (s *Subscription) DueForExpiry(now time.Time) bool {
	return s.Status == SubscriptionStatusActive && !now.Before(s.EndDate)
}
