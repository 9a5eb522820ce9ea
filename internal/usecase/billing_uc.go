package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"xraymed-saas/internal/domain"
	"xraymed-saas/internal/domain/model"
	"xraymed-saas/internal/domain/ports/adapter"
	"xraymed-saas/internal/domain/ports/repository"
	"xraymed-saas/internal/infra/metrics"
)

// PurchaseResult is what a caller needs to complete payment out of band.
type PurchaseResult struct {
	Order       *model.Order
	Handle      string
	RedirectURL string
	AmountDue   int64
}

// BillingUseCase is the order/subscription state machine: order creation,
// signature-verified payment confirmation, cancellation, and lazy expiry.
// All multi-entity mutations run inside one transaction serialized per
// account; credits, coupon counters and the single-active-subscription set
// are never read-then-written outside that boundary.
type BillingUseCase interface {
	CreateOrder(ctx context.Context, accountID, planID string, cadence model.BillingCadence, couponCode string) (*PurchaseResult, error)
	VerifyPayment(ctx context.Context, gatewayPaymentID, gatewayHandle, signature string) (*model.Subscription, error)
	CancelSubscription(ctx context.Context, callerID string, callerIsAdmin bool, gatewayHandle string) error

	// ActiveSubscription returns the account's active subscription, applying
	// the lazy expiry transition on the read path.
	ActiveSubscription(ctx context.Context, accountID string) (*model.Subscription, error)
	ListOrders(ctx context.Context, accountID string) ([]*model.Order, error)

	// ExpireDueSubscriptions transitions every overdue active subscription to
	// expired and revokes the matching entitlements. Used by the sweeper.
	ExpireDueSubscriptions(ctx context.Context) (int, error)
}

var _ BillingUseCase = (*billingUC)(nil)

type billingUC struct {
	accounts    repository.AccountRepository
	orders      repository.OrderRepository
	subs        repository.SubscriptionRepository
	pricing     PricingResolver
	coupons     CouponUseCase
	entitlement EntitlementApplier
	gateway     adapter.PaymentGateway
	verifier    adapter.SignatureVerifier
	tm          repository.TransactionManager
	currency    string
	log         *zerolog.Logger
}

func NewBillingUseCase(
	accounts repository.AccountRepository,
	orders repository.OrderRepository,
	subs repository.SubscriptionRepository,
	pricing PricingResolver,
	coupons CouponUseCase,
	entitlement EntitlementApplier,
	gateway adapter.PaymentGateway,
	verifier adapter.SignatureVerifier,
	tm repository.TransactionManager,
	currency string,
	logger *zerolog.Logger,
) *billingUC {
	l := logger.With().Str("component", "BillingUC").Logger()
	return &billingUC{
		accounts:    accounts,
		orders:      orders,
		subs:        subs,
		pricing:     pricing,
		coupons:     coupons,
		entitlement: entitlement,
		gateway:     gateway,
		verifier:    verifier,
		tm:          tm,
		currency:    currency,
		log:         &l,
	}
}

// withTxRetry runs fn in a transaction, retrying once on storage failure.
// Nothing from a rolled-back attempt is observable, so one blanket retry is
// safe for deadlocks and transient constraint conflicts.
func (u *billingUC) withTxRetry(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, fn)
	if err == nil {
		return nil
	}
	if isDomainReject(err) {
		return err
	}
	u.log.Warn().Err(err).Msg("billing transaction failed, retrying once")
	if err = u.tm.WithTx(ctx, pgx.TxOptions{}, fn); err == nil {
		return nil
	}
	if isDomainReject(err) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
}

// isDomainReject separates business rejections (never retried) from storage
// failures (retried once).
func isDomainReject(err error) bool {
	for _, sentinel := range []error{
		domain.ErrNotFound, domain.ErrAlreadyProcessed, domain.ErrAlreadyRedeemed,
		domain.ErrCouponExhausted, domain.ErrInvalidArgument, domain.ErrForbidden,
		domain.ErrNotActive, domain.ErrUnsupported,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func (u *billingUC) CreateOrder(ctx context.Context, accountID, planID string, cadence model.BillingCadence, couponCode string) (*PurchaseResult, error) {
	account, err := u.accounts.FindByID(ctx, repository.NoTX, accountID)
	if err != nil {
		return nil, domain.ErrNotFound
	}

	price, err := u.pricing.Resolve(planID, cadence)
	if err != nil {
		return nil, err
	}
	if err := u.pricing.CheckUpgradePath(account.Tier, planID); err != nil {
		return nil, err
	}

	// Pre-check only: the coupon is validated and priced here but redeemed
	// exclusively on the paid transition.
	var coupon *model.Coupon
	var discount int64
	if couponCode != "" {
		coupon, err = u.coupons.Validate(ctx, couponCode, accountID)
		if err != nil {
			return nil, err
		}
		discount = coupon.Discount(price.BaseAmount)
	}
	finalAmount := price.BaseAmount - discount

	intent, err := u.gateway.CreateIntent(ctx, price.GatewayRef, finalAmount, string(cadence))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayFailure, err)
	}

	var couponID *string
	if coupon != nil {
		couponID = &coupon.ID
	}
	order, err := model.NewOrder(accountID, price.PlanID, cadence, couponID, price.BaseAmount, discount, intent.Handle)
	if err != nil {
		return nil, err
	}

	err = u.withTxRetry(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := u.tm.LockAccount(ctx, tx, accountID); err != nil {
			return err
		}
		// Supersede any active subscription immediately so two pending
		// intents can never both activate later.
		if _, err := u.subs.CancelActiveByAccount(ctx, tx, accountID, time.Now()); err != nil {
			return err
		}
		return u.orders.Save(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	metrics.IncPayment(string(model.OrderStatusPending))
	u.log.Info().
		Str("order_id", order.ID).
		Str("plan", order.PlanID).
		Str("handle", order.GatewayHandle).
		Int64("amount_due", order.FinalAmount).
		Msg("order created")

	return &PurchaseResult{
		Order:       order,
		Handle:      intent.Handle,
		RedirectURL: intent.RedirectURL,
		AmountDue:   order.FinalAmount,
	}, nil
}

func (u *billingUC) VerifyPayment(ctx context.Context, gatewayPaymentID, gatewayHandle, signature string) (*model.Subscription, error) {
	order, err := u.orders.FindByGatewayHandle(ctx, repository.NoTX, gatewayHandle)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	// Idempotency guard: a retried confirmation must not double-grant.
	if order.Status != model.OrderStatusPending {
		return nil, domain.ErrAlreadyProcessed
	}

	if !u.verifier.Verify(gatewayPaymentID, gatewayHandle, signature) {
		// Sole gate against forged confirmations. Never retried.
		if _, err := u.orders.UpdateStatusIfPending(ctx, repository.NoTX, order.ID, model.OrderStatusFailed); err != nil {
			u.log.Error().Err(err).Str("order_id", order.ID).Msg("failed to mark order failed")
		}
		metrics.IncPayment(string(model.OrderStatusFailed))
		u.log.Warn().Str("order_id", order.ID).Str("handle", gatewayHandle).Msg("payment signature mismatch")
		return nil, domain.ErrInvalidSignature
	}

	price, err := u.pricing.Resolve(order.PlanID, order.Cadence)
	if err != nil {
		return nil, err
	}

	var sub *model.Subscription
	err = u.withTxRetry(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := u.tm.LockAccount(ctx, tx, order.AccountID); err != nil {
			return err
		}

		// First writer wins; a concurrent duplicate sees zero rows updated.
		won, err := u.orders.UpdateStatusIfPending(ctx, tx, order.ID, model.OrderStatusPaid)
		if err != nil {
			return err
		}
		if !won {
			return domain.ErrAlreadyProcessed
		}

		// Activating the new subscription happens-after cancelling any prior
		// active one, inside the same transaction.
		if _, err := u.subs.CancelActiveByAccount(ctx, tx, order.AccountID, time.Now()); err != nil {
			return err
		}
		sub, err = model.NewSubscription(order.AccountID, order.ID, order.PlanID, price.DurationDays)
		if err != nil {
			return err
		}
		if err := u.subs.Save(ctx, tx, sub); err != nil {
			return err
		}

		if order.CouponID != nil {
			if err := u.coupons.Redeem(ctx, tx, *order.CouponID, order.AccountID); err != nil {
				return err
			}
		}

		account, err := u.accounts.FindByID(ctx, tx, order.AccountID)
		if err != nil {
			return err
		}
		return u.entitlement.Grant(ctx, tx, account, order.PlanID, price.CreditGrant, price.DurationDays)
	})
	if err != nil {
		return nil, err
	}

	metrics.IncPayment(string(model.OrderStatusPaid))
	metrics.AddPaymentRevenue(u.currency, order.FinalAmount)
	if order.CouponID != nil {
		metrics.IncCouponRedeemed()
	}
	u.log.Info().
		Str("order_id", order.ID).
		Str("subscription_id", sub.ID).
		Str("plan", order.PlanID).
		Msg("payment verified, subscription active")
	return sub, nil
}

func (u *billingUC) CancelSubscription(ctx context.Context, callerID string, callerIsAdmin bool, gatewayHandle string) error {
	order, err := u.orders.FindByGatewayHandle(ctx, repository.NoTX, gatewayHandle)
	if err != nil {
		return domain.ErrNotFound
	}
	if !callerIsAdmin && order.AccountID != callerID {
		return domain.ErrForbidden
	}

	remote, err := u.gateway.Fetch(ctx, gatewayHandle)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGatewayFailure, err)
	}
	switch remote.Status {
	case "active", "authenticated", "created":
	default:
		return domain.ErrNotActive
	}
	if _, err := u.gateway.Cancel(ctx, gatewayHandle); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrGatewayFailure, err)
	}

	err = u.withTxRetry(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := u.tm.LockAccount(ctx, tx, order.AccountID); err != nil {
			return err
		}
		sub, err := u.subs.FindByOrderID(ctx, tx, order.ID)
		if err != nil {
			return domain.ErrNotFound
		}
		now := time.Now()
		sub.Status = model.SubscriptionStatusCancelled
		sub.CancelledAt = &now
		sub.UpdatedAt = now
		if err := u.subs.Save(ctx, tx, sub); err != nil {
			return err
		}
		if err := u.orders.UpdateStatus(ctx, tx, order.ID, model.OrderStatusCancelled); err != nil {
			return err
		}
		// Immediate revocation, not deferred to period end.
		account, err := u.accounts.FindByID(ctx, tx, order.AccountID)
		if err != nil {
			return err
		}
		return u.entitlement.Revoke(ctx, tx, account)
	})
	if err != nil {
		return err
	}

	metrics.IncPayment(string(model.OrderStatusCancelled))
	metrics.IncSubscriptionsCancelled()
	u.log.Info().Str("order_id", order.ID).Str("handle", gatewayHandle).Msg("subscription cancelled")
	return nil
}

func (u *billingUC) ActiveSubscription(ctx context.Context, accountID string) (*model.Subscription, error) {
	sub, err := u.subs.FindActiveByAccount(ctx, repository.NoTX, accountID)
	if err != nil {
		return nil, err
	}
	if !sub.DueForExpiry(time.Now()) {
		return sub, nil
	}
	// Lazy expiry: the read path applies the transition before returning.
	if err := u.expireOne(ctx, sub); err != nil {
		return nil, err
	}
	sub.Status = model.SubscriptionStatusExpired
	return sub, nil
}

func (u *billingUC) ListOrders(ctx context.Context, accountID string) ([]*model.Order, error) {
	return u.orders.ListByAccount(ctx, repository.NoTX, accountID)
}

func (u *billingUC) ExpireDueSubscriptions(ctx context.Context) (int, error) {
	due, err := u.subs.ListDueForExpiry(ctx, repository.NoTX, time.Now(), 100)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, sub := range due {
		if err := u.expireOne(ctx, sub); err != nil {
			u.log.Error().Err(err).Str("subscription_id", sub.ID).Msg("expiry transition failed")
			continue
		}
		n++
	}
	if n > 0 {
		metrics.IncSubscriptionsExpired(n)
	}
	return n, nil
}

// expireOne marks one overdue subscription expired and revokes its
// entitlement, inside a single per-account transaction.
func (u *billingUC) expireOne(ctx context.Context, sub *model.Subscription) error {
	return u.withTxRetry(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := u.tm.LockAccount(ctx, tx, sub.AccountID); err != nil {
			return err
		}
		current, err := u.subs.FindByID(ctx, tx, sub.ID)
		if err != nil {
			return err
		}
		if !current.DueForExpiry(time.Now()) {
			// Raced with a concurrent transition; nothing to do.
			return nil
		}
		current.Status = model.SubscriptionStatusExpired
		current.UpdatedAt = time.Now()
		if err := u.subs.Save(ctx, tx, current); err != nil {
			return err
		}
		account, err := u.accounts.FindByID(ctx, tx, current.AccountID)
		if err != nil {
			return err
		}
		return u.entitlement.Revoke(ctx, tx, account)
	})
}
