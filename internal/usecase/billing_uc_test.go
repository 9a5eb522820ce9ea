//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4"

	"xraymed-saas/internal/domain"
	"xraymed-saas/internal/domain/model"
	"xraymed-saas/internal/domain/ports/adapter"
	"xraymed-saas/internal/domain/ports/repository"
	"xraymed-saas/internal/usecase"
)

// billingTestDeps holds all mock dependencies for the billing state machine.
type billingTestDeps struct {
	accounts *MockAccountRepo
	orders   *MockOrderRepo
	subs     *MockSubscriptionRepo
	coupons  *MockCouponRepo
	gateway  *MockPaymentGateway
	verifier *MockVerifier
	tm       *MockTxManager
	couponUC usecase.CouponUseCase
}

func newBillingDeps() *billingTestDeps {
	d := &billingTestDeps{
		accounts: NewMockAccountRepo(),
		orders:   NewMockOrderRepo(),
		subs:     NewMockSubscriptionRepo(),
		coupons:  NewMockCouponRepo(),
		gateway:  NewMockPaymentGateway(),
		verifier: &MockVerifier{Result: true},
		tm:       NewMockTxManager(),
	}
	d.couponUC = usecase.NewCouponUseCase(d.coupons, newTestPricing(), newTestLogger())
	return d
}

func (d *billingTestDeps) newUC() usecase.BillingUseCase {
	return usecase.NewBillingUseCase(
		d.accounts, d.orders, d.subs,
		newTestPricing(), d.couponUC, usecase.NewEntitlementApplier(d.accounts),
		d.gateway, d.verifier, d.tm,
		"INR", newTestLogger(),
	)
}

func (d *billingTestDeps) seedAccount(t *testing.T, id string, tier model.AccountTier, credits int64) *model.Account {
	t.Helper()
	a, err := model.NewAccount(id, id+"@example.test", "Account "+id)
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
	a.Tier = tier
	a.Credits = credits
	if err := d.accounts.Save(context.Background(), nil, a); err != nil {
		t.Fatalf("save account: %v", err)
	}
	return a
}

func (d *billingTestDeps) seedCoupon(t *testing.T, code string, kind model.CouponKind, value int64, maxUses *int64) *model.Coupon {
	t.Helper()
	c, err := model.NewCoupon(code, kind, value, maxUses, time.Now().Add(-time.Hour), nil)
	if err != nil {
		t.Fatalf("seed coupon: %v", err)
	}
	if err := d.coupons.Save(context.Background(), nil, c); err != nil {
		t.Fatalf("save coupon: %v", err)
	}
	return c
}

func TestBillingUseCase_CreateOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a pending order without a coupon", func(t *testing.T) {
		deps := newBillingDeps()
		deps.seedAccount(t, "acc-1", model.TierFree, 3)
		uc := deps.newUC()

		res, err := uc.CreateOrder(ctx, "acc-1", "doctor", model.CadenceMonthly, "")
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if res.AmountDue != 9990 {
			t.Errorf("expected amount due 9990, got %d", res.AmountDue)
		}
		if res.Handle == "" || res.RedirectURL == "" {
			t.Error("expected gateway handle and redirect URL")
		}
		saved, err := deps.orders.FindByID(ctx, nil, res.Order.ID)
		if err != nil {
			t.Fatalf("order not saved: %v", err)
		}
		if saved.Status != model.OrderStatusPending {
			t.Errorf("expected pending order, got %s", saved.Status)
		}
	})

	t.Run("applies a percentage coupon with floor arithmetic", func(t *testing.T) {
		deps := newBillingDeps()
		deps.seedAccount(t, "acc-1", model.TierFree, 3)
		deps.seedCoupon(t, "SAVE10", model.CouponPercentage, 10, nil)
		uc := deps.newUC()

		res, err := uc.CreateOrder(ctx, "acc-1", "doctor", model.CadenceMonthly, "save10")
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if res.Order.DiscountAmount != 999 {
			t.Errorf("expected discount 999, got %d", res.Order.DiscountAmount)
		}
		if res.AmountDue != 8991 {
			t.Errorf("expected amount due 8991, got %d", res.AmountDue)
		}
		if res.Order.CouponID == nil {
			t.Error("expected order to carry the coupon")
		}
	})

	t.Run("caps a fixed discount at the base amount", func(t *testing.T) {
		deps := newBillingDeps()
		deps.seedAccount(t, "acc-1", model.TierFree, 3)
		deps.seedCoupon(t, "BIGONE", model.CouponFixedAmount, 50000, nil)
		uc := deps.newUC()

		res, err := uc.CreateOrder(ctx, "acc-1", "doctor", model.CadenceMonthly, "BIGONE")
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if res.AmountDue != 0 {
			t.Errorf("expected amount due 0, got %d", res.AmountDue)
		}
	})

	t.Run("rejects skipping a tier", func(t *testing.T) {
		deps := newBillingDeps()
		deps.seedAccount(t, "acc-1", model.TierFree, 3)
		uc := deps.newUC()

		_, err := uc.CreateOrder(ctx, "acc-1", "premium", model.CadenceMonthly, "")
		if !errors.Is(err, domain.ErrInvalidUpgradePath) {
			t.Fatalf("expected ErrInvalidUpgradePath, got: %v", err)
		}
	})

	t.Run("rejects buying the current tier", func(t *testing.T) {
		deps := newBillingDeps()
		deps.seedAccount(t, "acc-1", model.TierDoctor, 150)
		uc := deps.newUC()

		_, err := uc.CreateOrder(ctx, "acc-1", "doctor", model.CadenceMonthly, "")
		if !errors.Is(err, domain.ErrInvalidUpgradePath) {
			t.Fatalf("expected ErrInvalidUpgradePath, got: %v", err)
		}
	})

	t.Run("rejects any purchase from the top tier", func(t *testing.T) {
		deps := newBillingDeps()
		deps.seedAccount(t, "acc-1", model.TierPremium, 500)
		uc := deps.newUC()

		_, err := uc.CreateOrder(ctx, "acc-1", "doctor", model.CadenceMonthly, "")
		if !errors.Is(err, domain.ErrAlreadyAtMaxTier) {
			t.Fatalf("expected ErrAlreadyAtMaxTier, got: %v", err)
		}
	})

	t.Run("rejects a coupon the account already redeemed", func(t *testing.T) {
		deps := newBillingDeps()
		deps.seedAccount(t, "acc-1", model.TierFree, 3)
		c := deps.seedCoupon(t, "SAVE10", model.CouponPercentage, 10, nil)
		deps.coupons.Redemptions[c.ID+"|acc-1"] = true
		uc := deps.newUC()

		_, err := uc.CreateOrder(ctx, "acc-1", "doctor", model.CadenceMonthly, "SAVE10")
		if !errors.Is(err, domain.ErrAlreadyRedeemed) {
			t.Fatalf("expected ErrAlreadyRedeemed, got: %v", err)
		}
	})

	t.Run("wraps gateway failures and saves nothing", func(t *testing.T) {
		deps := newBillingDeps()
		deps.seedAccount(t, "acc-1", model.TierFree, 3)
		deps.gateway.CreateIntentFunc = func(ctx context.Context, planRef string, amount int64, cadence string) (adapter.Intent, error) {
			return adapter.Intent{}, errors.New("boom")
		}
		uc := deps.newUC()

		_, err := uc.CreateOrder(ctx, "acc-1", "doctor", model.CadenceMonthly, "")
		if !errors.Is(err, domain.ErrGatewayFailure) {
			t.Fatalf("expected ErrGatewayFailure, got: %v", err)
		}
		if len(deps.orders.Orders) != 0 {
			t.Errorf("expected no orders saved, got %d", len(deps.orders.Orders))
		}
	})

	t.Run("supersedes an existing active subscription", func(t *testing.T) {
		deps := newBillingDeps()
		deps.seedAccount(t, "acc-1", model.TierDoctor, 150)
		old, _ := model.NewSubscription("acc-1", "order-old", "doctor", 30)
		_ = deps.subs.Save(ctx, nil, old)
		uc := deps.newUC()

		if _, err := uc.CreateOrder(ctx, "acc-1", "premium", model.CadenceMonthly, ""); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		got, err := deps.subs.FindByID(ctx, nil, old.ID)
		if err != nil {
			t.Fatalf("find old sub: %v", err)
		}
		if got.Status != model.SubscriptionStatusCancelled {
			t.Errorf("expected old subscription cancelled, got %s", got.Status)
		}
	})
}

func TestBillingUseCase_VerifyPayment(t *testing.T) {
	ctx := context.Background()

	// purchase drives a coupon-carrying order through CreateOrder.
	purchase := func(t *testing.T, deps *billingTestDeps, uc usecase.BillingUseCase, couponCode string) *usecase.PurchaseResult {
		t.Helper()
		res, err := uc.CreateOrder(ctx, "acc-1", "doctor", model.CadenceMonthly, couponCode)
		if err != nil {
			t.Fatalf("create order: %v", err)
		}
		return res
	}

	t.Run("activates subscription, grants entitlement and redeems the coupon", func(t *testing.T) {
		deps := newBillingDeps()
		deps.seedAccount(t, "acc-1", model.TierFree, 3)
		coupon := deps.seedCoupon(t, "SAVE10", model.CouponPercentage, 10, nil)
		uc := deps.newUC()
		res := purchase(t, deps, uc, "SAVE10")

		sub, err := uc.VerifyPayment(ctx, "pay_123", res.Handle, "sig")
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if sub.Status != model.SubscriptionStatusActive {
			t.Errorf("expected active subscription, got %s", sub.Status)
		}
		if sub.PlanID != "doctor" {
			t.Errorf("expected plan doctor, got %s", sub.PlanID)
		}

		order, _ := deps.orders.FindByID(ctx, nil, res.Order.ID)
		if order.Status != model.OrderStatusPaid {
			t.Errorf("expected paid order, got %s", order.Status)
		}

		account, _ := deps.accounts.FindByID(ctx, nil, "acc-1")
		if account.Tier != model.TierDoctor {
			t.Errorf("expected tier doctor, got %s", account.Tier)
		}
		if account.Credits != 150 {
			t.Errorf("expected 150 credits (overwrite, not additive), got %d", account.Credits)
		}
		if account.CreditExpiry == nil {
			t.Fatal("expected a credit expiry to be set")
		}

		got, _ := deps.coupons.FindByID(ctx, nil, coupon.ID)
		if got.UsedCount != 1 {
			t.Errorf("expected used_count 1, got %d", got.UsedCount)
		}
		if !deps.coupons.Redemptions[coupon.ID+"|acc-1"] {
			t.Error("expected a redemption record for (coupon, account)")
		}
	})

	t.Run("is idempotent for a duplicate confirmation", func(t *testing.T) {
		deps := newBillingDeps()
		deps.seedAccount(t, "acc-1", model.TierFree, 3)
		uc := deps.newUC()
		res := purchase(t, deps, uc, "")

		if _, err := uc.VerifyPayment(ctx, "pay_123", res.Handle, "sig"); err != nil {
			t.Fatalf("first verify: %v", err)
		}
		_, err := uc.VerifyPayment(ctx, "pay_123", res.Handle, "sig")
		if !errors.Is(err, domain.ErrAlreadyProcessed) {
			t.Fatalf("expected ErrAlreadyProcessed, got: %v", err)
		}
		if len(deps.subs.Subs) != 1 {
			t.Errorf("expected exactly one subscription, got %d", len(deps.subs.Subs))
		}
	})

	t.Run("fails the order on signature mismatch and never retries", func(t *testing.T) {
		deps := newBillingDeps()
		deps.seedAccount(t, "acc-1", model.TierFree, 3)
		deps.verifier.Result = false
		uc := deps.newUC()
		res := purchase(t, deps, uc, "")

		_, err := uc.VerifyPayment(ctx, "pay_123", res.Handle, "forged")
		if !errors.Is(err, domain.ErrInvalidSignature) {
			t.Fatalf("expected ErrInvalidSignature, got: %v", err)
		}
		order, _ := deps.orders.FindByID(ctx, nil, res.Order.ID)
		if order.Status != model.OrderStatusFailed {
			t.Errorf("expected failed order, got %s", order.Status)
		}

		// A later confirmation with a valid signature hits the terminal state.
		deps.verifier.Result = true
		_, err = uc.VerifyPayment(ctx, "pay_123", res.Handle, "sig")
		if !errors.Is(err, domain.ErrAlreadyProcessed) {
			t.Fatalf("expected ErrAlreadyProcessed after failure, got: %v", err)
		}
		if len(deps.subs.Subs) != 0 {
			t.Error("expected no subscription after signature mismatch")
		}
		account, _ := deps.accounts.FindByID(ctx, nil, "acc-1")
		if account.Tier != model.TierFree {
			t.Errorf("expected tier unchanged, got %s", account.Tier)
		}
	})

	t.Run("returns not found for an unknown handle", func(t *testing.T) {
		deps := newBillingDeps()
		uc := deps.newUC()
		_, err := uc.VerifyPayment(ctx, "pay_123", "sub_zzz", "sig")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got: %v", err)
		}
	})

	t.Run("two racing orders leave at most one active subscription", func(t *testing.T) {
		deps := newBillingDeps()
		deps.seedAccount(t, "acc-1", model.TierFree, 3)
		uc := deps.newUC()

		first := purchase(t, deps, uc, "")
		second := purchase(t, deps, uc, "")

		var wg sync.WaitGroup
		for _, handle := range []string{first.Handle, second.Handle} {
			wg.Add(1)
			go func(h string) {
				defer wg.Done()
				if _, err := uc.VerifyPayment(ctx, "pay_"+h, h, "sig"); err != nil {
					t.Errorf("verify %s: %v", h, err)
				}
			}(handle)
		}
		wg.Wait()

		active := 0
		for _, s := range deps.subs.Subs {
			if s.Status == model.SubscriptionStatusActive {
				active++
			}
		}
		if active != 1 {
			t.Errorf("expected exactly one active subscription, got %d", active)
		}
	})

	t.Run("exactly one concurrent confirmation wins", func(t *testing.T) {
		deps := newBillingDeps()
		deps.seedAccount(t, "acc-1", model.TierFree, 3)
		uc := deps.newUC()
		res := purchase(t, deps, uc, "")

		const n = 8
		var wg sync.WaitGroup
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = uc.VerifyPayment(ctx, "pay_123", res.Handle, "sig")
			}(i)
		}
		wg.Wait()

		wins := 0
		for _, err := range errs {
			if err == nil {
				wins++
			} else if !errors.Is(err, domain.ErrAlreadyProcessed) {
				t.Errorf("unexpected error: %v", err)
			}
		}
		if wins != 1 {
			t.Errorf("expected exactly 1 winner, got %d", wins)
		}
		if len(deps.subs.Subs) != 1 {
			t.Errorf("expected exactly one subscription, got %d", len(deps.subs.Subs))
		}
	})
}

func TestBillingUseCase_CancelSubscription(t *testing.T) {
	ctx := context.Background()

	// activate buys and verifies a doctor subscription for acc-1.
	activate := func(t *testing.T, deps *billingTestDeps, uc usecase.BillingUseCase) *usecase.PurchaseResult {
		t.Helper()
		deps.seedAccount(t, "acc-1", model.TierFree, 3)
		res, err := uc.CreateOrder(ctx, "acc-1", "doctor", model.CadenceMonthly, "")
		if err != nil {
			t.Fatalf("create order: %v", err)
		}
		if _, err := uc.VerifyPayment(ctx, "pay_123", res.Handle, "sig"); err != nil {
			t.Fatalf("verify: %v", err)
		}
		// Remote side reports the subscription as running.
		deps.gateway.Statuses[res.Handle] = "active"
		return res
	}

	t.Run("cancels remotely and revokes the entitlement immediately", func(t *testing.T) {
		deps := newBillingDeps()
		uc := deps.newUC()
		res := activate(t, deps, uc)

		if err := uc.CancelSubscription(ctx, "acc-1", false, res.Handle); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}

		order, _ := deps.orders.FindByID(ctx, nil, res.Order.ID)
		if order.Status != model.OrderStatusCancelled {
			t.Errorf("expected cancelled order, got %s", order.Status)
		}
		sub, _ := deps.subs.FindByOrderID(ctx, nil, res.Order.ID)
		if sub.Status != model.SubscriptionStatusCancelled {
			t.Errorf("expected cancelled subscription, got %s", sub.Status)
		}
		if sub.CancelledAt == nil {
			t.Error("expected cancelled_at to be set")
		}
		account, _ := deps.accounts.FindByID(ctx, nil, "acc-1")
		if account.Tier != model.TierFree || account.Credits != 0 {
			t.Errorf("expected free/0 after revocation, got %s/%d", account.Tier, account.Credits)
		}
		if deps.gateway.Statuses[res.Handle] != "cancelled" {
			t.Error("expected remote cancel call")
		}
	})

	t.Run("denies other non-admin accounts", func(t *testing.T) {
		deps := newBillingDeps()
		uc := deps.newUC()
		res := activate(t, deps, uc)

		err := uc.CancelSubscription(ctx, "acc-2", false, res.Handle)
		if !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got: %v", err)
		}
	})

	t.Run("allows admins to cancel on behalf of an account", func(t *testing.T) {
		deps := newBillingDeps()
		uc := deps.newUC()
		res := activate(t, deps, uc)

		if err := uc.CancelSubscription(ctx, "admin-1", true, res.Handle); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
	})

	t.Run("rejects when the remote subscription is not running", func(t *testing.T) {
		deps := newBillingDeps()
		uc := deps.newUC()
		res := activate(t, deps, uc)
		deps.gateway.Statuses[res.Handle] = "completed"

		err := uc.CancelSubscription(ctx, "acc-1", false, res.Handle)
		if !errors.Is(err, domain.ErrNotActive) {
			t.Fatalf("expected ErrNotActive, got: %v", err)
		}
	})

	t.Run("a replayed cancel is rejected", func(t *testing.T) {
		deps := newBillingDeps()
		uc := deps.newUC()
		res := activate(t, deps, uc)

		if err := uc.CancelSubscription(ctx, "acc-1", false, res.Handle); err != nil {
			t.Fatalf("first cancel: %v", err)
		}
		err := uc.CancelSubscription(ctx, "acc-1", false, res.Handle)
		if !errors.Is(err, domain.ErrNotActive) {
			t.Fatalf("expected ErrNotActive on replay, got: %v", err)
		}
	})
}

func TestBillingUseCase_TransactionRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("retries a transient storage failure once", func(t *testing.T) {
		deps := newBillingDeps()
		deps.seedAccount(t, "acc-1", model.TierFree, 3)
		calls := 0
		deps.tm.WithTxFunc = func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
			calls++
			if calls == 1 {
				return errors.New("connection reset")
			}
			return fn(ctx, repository.NoTX)
		}
		uc := deps.newUC()

		if _, err := uc.CreateOrder(ctx, "acc-1", "doctor", model.CadenceMonthly, ""); err != nil {
			t.Fatalf("expected retry to succeed, got: %v", err)
		}
		if calls != 2 {
			t.Errorf("expected 2 attempts, got %d", calls)
		}
	})

	t.Run("never retries a business rejection", func(t *testing.T) {
		deps := newBillingDeps()
		deps.seedAccount(t, "acc-1", model.TierFree, 3)
		calls := 0
		deps.tm.WithTxFunc = func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
			calls++
			return domain.ErrAlreadyProcessed
		}
		uc := deps.newUC()

		_, err := uc.CreateOrder(ctx, "acc-1", "doctor", model.CadenceMonthly, "")
		if !errors.Is(err, domain.ErrAlreadyProcessed) {
			t.Fatalf("expected ErrAlreadyProcessed, got: %v", err)
		}
		if calls != 1 {
			t.Errorf("expected 1 attempt, got %d", calls)
		}
	})

	t.Run("wraps a persistent storage failure", func(t *testing.T) {
		deps := newBillingDeps()
		deps.seedAccount(t, "acc-1", model.TierFree, 3)
		calls := 0
		deps.tm.WithTxFunc = func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
			calls++
			return errors.New("connection reset")
		}
		uc := deps.newUC()

		_, err := uc.CreateOrder(ctx, "acc-1", "doctor", model.CadenceMonthly, "")
		if !errors.Is(err, domain.ErrOperationFailed) {
			t.Fatalf("expected ErrOperationFailed, got: %v", err)
		}
		if calls != 2 {
			t.Errorf("expected 2 attempts, got %d", calls)
		}
	})
}

func TestBillingUseCase_Expiry(t *testing.T) {
	ctx := context.Background()

	overdueSub := func(t *testing.T, deps *billingTestDeps) *model.Subscription {
		t.Helper()
		sub, err := model.NewSubscription("acc-1", "order-1", "doctor", 30)
		if err != nil {
			t.Fatalf("new subscription: %v", err)
		}
		sub.EndDate = time.Now().Add(-time.Hour)
		if err := deps.subs.Save(ctx, nil, sub); err != nil {
			t.Fatalf("save sub: %v", err)
		}
		return sub
	}

	t.Run("sweeper expires overdue subscriptions and revokes entitlements", func(t *testing.T) {
		deps := newBillingDeps()
		deps.seedAccount(t, "acc-1", model.TierDoctor, 150)
		sub := overdueSub(t, deps)
		uc := deps.newUC()

		n, err := uc.ExpireDueSubscriptions(ctx)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 expiry, got %d", n)
		}
		got, _ := deps.subs.FindByID(ctx, nil, sub.ID)
		if got.Status != model.SubscriptionStatusExpired {
			t.Errorf("expected expired, got %s", got.Status)
		}
		account, _ := deps.accounts.FindByID(ctx, nil, "acc-1")
		if account.Tier != model.TierFree || account.Credits != 0 {
			t.Errorf("expected free/0 after expiry, got %s/%d", account.Tier, account.Credits)
		}
	})

	t.Run("read path applies lazy expiry", func(t *testing.T) {
		deps := newBillingDeps()
		deps.seedAccount(t, "acc-1", model.TierDoctor, 150)
		sub := overdueSub(t, deps)
		uc := deps.newUC()

		got, err := uc.ActiveSubscription(ctx, "acc-1")
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if got.Status != model.SubscriptionStatusExpired {
			t.Errorf("expected expired on read, got %s", got.Status)
		}
		stored, _ := deps.subs.FindByID(ctx, nil, sub.ID)
		if stored.Status != model.SubscriptionStatusExpired {
			t.Errorf("expected stored record expired, got %s", stored.Status)
		}
	})

	t.Run("no active subscription is not found", func(t *testing.T) {
		deps := newBillingDeps()
		deps.seedAccount(t, "acc-1", model.TierFree, 3)
		uc := deps.newUC()

		_, err := uc.ActiveSubscription(ctx, "acc-1")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got: %v", err)
		}
	})
}
