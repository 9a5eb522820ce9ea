package repository

import (
	"context"
	"time"

	"xraymed-saas/internal/domain/model"
)

// SubscriptionRepository is the port for entitlement periods.
type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, s *model.Subscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	FindByOrderID(ctx context.Context, tx Tx, orderID string) (*model.Subscription, error)
	FindActiveByAccount(ctx context.Context, tx Tx, accountID string) (*model.Subscription, error)

	// CancelActiveByAccount marks every active subscription of the account as
	// cancelled and returns how many rows changed.
	CancelActiveByAccount(ctx context.Context, tx Tx, accountID string, at time.Time) (int, error)

	// ListDueForExpiry returns active subscriptions whose end date has passed.
	ListDueForExpiry(ctx context.Context, tx Tx, asOf time.Time, limit int) ([]*model.Subscription, error)

	// CountActiveByPlan feeds the admin stats surface.
	CountActiveByPlan(ctx context.Context, tx Tx) (map[string]int, error)
}
