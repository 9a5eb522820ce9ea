package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"xraymed-saas/internal/domain/ports/repository"
	"xraymed-saas/internal/infra/metrics"
)

// StatsUseCase aggregates figures for the admin dashboard.
type StatsUseCase interface {
	// ActiveByPlan counts active subscriptions per plan.
	ActiveByPlan(ctx context.Context) (map[string]int, error)

	// Revenue totals paid-order amounts for the running week, month and year.
	Revenue(ctx context.Context) (week, month, year int64, err error)
}

var _ StatsUseCase = (*statsUC)(nil)

type statsUC struct {
	subs   repository.SubscriptionRepository
	orders repository.OrderRepository
	log    *zerolog.Logger
}

func NewStatsUseCase(subs repository.SubscriptionRepository, orders repository.OrderRepository, logger *zerolog.Logger) *statsUC {
	l := logger.With().Str("component", "StatsUC").Logger()
	return &statsUC{subs: subs, orders: orders, log: &l}
}

func (u *statsUC) ActiveByPlan(ctx context.Context) (map[string]int, error) {
	counts, err := u.subs.CountActiveByPlan(ctx, repository.NoTX)
	if err != nil {
		return nil, err
	}
	for plan, n := range counts {
		metrics.SetActiveSubscriptions(plan, n)
	}
	return counts, nil
}

func (u *statsUC) Revenue(ctx context.Context) (int64, int64, int64, error) {
	week, err := u.orders.SumPaidByPeriod(ctx, repository.NoTX, "week")
	if err != nil {
		return 0, 0, 0, err
	}
	month, err := u.orders.SumPaidByPeriod(ctx, repository.NoTX, "month")
	if err != nil {
		return 0, 0, 0, err
	}
	year, err := u.orders.SumPaidByPeriod(ctx, repository.NoTX, "year")
	if err != nil {
		return 0, 0, 0, err
	}
	return week, month, year, nil
}
