//go:build !integration

package usecase_test

import (
	"context"
	"testing"

	"xraymed-saas/internal/domain/model"
	"xraymed-saas/internal/usecase"
)

func TestStatsUseCase(t *testing.T) {
	ctx := context.Background()
	subs := NewMockSubscriptionRepo()
	orders := NewMockOrderRepo()

	for i, plan := range []string{"doctor", "doctor", "premium"} {
		s, err := model.NewSubscription("acc-"+string(rune('a'+i)), "order-"+string(rune('a'+i)), plan, 30)
		if err != nil {
			t.Fatalf("new subscription: %v", err)
		}
		if err := subs.Save(ctx, nil, s); err != nil {
			t.Fatalf("save sub: %v", err)
		}
	}
	paid, err := model.NewOrder("acc-a", "doctor", model.CadenceMonthly, nil, 9990, 0, "sub_000001")
	if err != nil {
		t.Fatalf("new order: %v", err)
	}
	paid.Status = model.OrderStatusPaid
	_ = orders.Save(ctx, nil, paid)
	pending, err := model.NewOrder("acc-b", "doctor", model.CadenceMonthly, nil, 9990, 0, "sub_000002")
	if err != nil {
		t.Fatalf("new order: %v", err)
	}
	_ = orders.Save(ctx, nil, pending)

	uc := usecase.NewStatsUseCase(subs, orders, newTestLogger())

	t.Run("counts active subscriptions per plan", func(t *testing.T) {
		counts, err := uc.ActiveByPlan(ctx)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if counts["doctor"] != 2 || counts["premium"] != 1 {
			t.Errorf("unexpected counts: %v", counts)
		}
	})

	t.Run("revenue sums only paid orders", func(t *testing.T) {
		week, month, year, err := uc.Revenue(ctx)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		for name, got := range map[string]int64{"week": week, "month": month, "year": year} {
			if got != 9990 {
				t.Errorf("%s: expected 9990, got %d", name, got)
			}
		}
	})
}
