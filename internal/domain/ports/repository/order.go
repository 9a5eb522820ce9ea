package repository

import (
	"context"

	"xraymed-saas/internal/domain/model"
)

// OrderRepository is the port for purchase attempts.
type OrderRepository interface {
	Save(ctx context.Context, tx Tx, o *model.Order) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Order, error)
	FindByGatewayHandle(ctx context.Context, tx Tx, handle string) (*model.Order, error)
	ListByAccount(ctx context.Context, tx Tx, accountID string) ([]*model.Order, error)

	UpdateStatus(ctx context.Context, tx Tx, id string, status model.OrderStatus) error

	// UpdateStatusIfPending flips the status only while the order is still
	// pending. The conditional update is the first-writer-wins serialization
	// point for duplicate payment confirmations.
	UpdateStatusIfPending(ctx context.Context, tx Tx, id string, status model.OrderStatus) (bool, error)

	// SumPaidByPeriod totals final amounts of paid orders since the start of
	// the given period ("week", "month" or "year").
	SumPaidByPeriod(ctx context.Context, tx Tx, period string) (int64, error)
}
