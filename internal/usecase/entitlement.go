package usecase

import (
	"context"
	"time"

	"xraymed-saas/internal/domain/model"
	"xraymed-saas/internal/domain/ports/repository"
)

// EntitlementApplier mutates an account's tier, credit balance and credit
// expiry. Both methods are called only from inside billing transactions and
// carry no standalone consistency guarantee. Isolating the mutation here keeps
// the revocation policy (immediate vs end-of-period) swappable.
type EntitlementApplier interface {
	// Grant overwrites (not adds to) the account's credits with the plan's
	// grant and moves it to the plan's tier.
	Grant(ctx context.Context, tx repository.Tx, account *model.Account, planID string, creditGrant int64, durationDays int) error

	// Revoke resets the account to the free tier with zero credits.
	Revoke(ctx context.Context, tx repository.Tx, account *model.Account) error
}

var _ EntitlementApplier = (*entitlementApplier)(nil)

type entitlementApplier struct {
	accounts repository.AccountRepository
}

func NewEntitlementApplier(accounts repository.AccountRepository) *entitlementApplier {
	return &entitlementApplier{accounts: accounts}
}

func (e *entitlementApplier) Grant(ctx context.Context, tx repository.Tx, account *model.Account, planID string, creditGrant int64, durationDays int) error {
	now := time.Now()
	expiry := now.Add(time.Duration(durationDays) * 24 * time.Hour)
	account.Tier = model.AccountTier(planID)
	account.Credits = creditGrant
	account.CreditExpiry = &expiry
	account.LastCreditUpdateAt = &now
	return e.accounts.UpdateEntitlement(ctx, tx, account)
}

func (e *entitlementApplier) Revoke(ctx context.Context, tx repository.Tx, account *model.Account) error {
	now := time.Now()
	account.Tier = model.TierFree
	account.Credits = 0
	account.CreditExpiry = nil
	account.LastCreditUpdateAt = &now
	return e.accounts.UpdateEntitlement(ctx, tx, account)
}
