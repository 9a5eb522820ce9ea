package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"xraymed-saas/internal/domain"
	"xraymed-saas/internal/domain/ports/repository"
)

// CreditUseCase is the consumer-side boundary for prediction credits. The
// imaging pipeline debits one credit per inference; the debit never interacts
// with the billing transaction.
type CreditUseCase interface {
	// Debit decrements n credits for the account, failing with
	// ErrInsufficientCredits when the balance (or its expiry) cannot cover it.
	Debit(ctx context.Context, accountID string, n int64) error

	// Balance returns the usable credit balance (expired credits count as 0).
	Balance(ctx context.Context, accountID string) (int64, error)
}

var _ CreditUseCase = (*creditUC)(nil)

type creditUC struct {
	accounts repository.AccountRepository
	log      *zerolog.Logger
}

func NewCreditUseCase(accounts repository.AccountRepository, logger *zerolog.Logger) *creditUC {
	l := logger.With().Str("component", "CreditUC").Logger()
	return &creditUC{accounts: accounts, log: &l}
}

func (u *creditUC) Debit(ctx context.Context, accountID string, n int64) error {
	if n <= 0 {
		return domain.ErrInvalidArgument
	}
	account, err := u.accounts.FindByID(ctx, repository.NoTX, accountID)
	if err != nil {
		return domain.ErrNotFound
	}
	if account.UsableCredits(time.Now()) < n {
		return domain.ErrInsufficientCredits
	}
	// The conditional decrement is the real guard; the read above only
	// short-circuits the expired-credit case.
	ok, err := u.accounts.DebitCredits(ctx, repository.NoTX, accountID, n)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInsufficientCredits
	}
	return nil
}

func (u *creditUC) Balance(ctx context.Context, accountID string) (int64, error) {
	account, err := u.accounts.FindByID(ctx, repository.NoTX, accountID)
	if err != nil {
		return 0, domain.ErrNotFound
	}
	return account.UsableCredits(time.Now()), nil
}
