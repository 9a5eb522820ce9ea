package repository

import (
	"context"

	"xraymed-saas/internal/domain/model"
)

// AccountRepository is the port for billable accounts.
type AccountRepository interface {
	Save(ctx context.Context, tx Tx, a *model.Account) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Account, error)
	FindByEmail(ctx context.Context, tx Tx, email string) (*model.Account, error)

	// UpdateEntitlement overwrites tier, credits and credit expiry in one
	// statement. Callers invoke it only from inside a billing transaction.
	UpdateEntitlement(ctx context.Context, tx Tx, a *model.Account) error

	// DebitCredits decrements credits atomically, guarded by credits >= n.
	// Returns false when the guard fails (insufficient balance).
	DebitCredits(ctx context.Context, tx Tx, accountID string, n int64) (bool, error)
}
