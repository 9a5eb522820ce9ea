package model

import (
	"time"

	"xraymed-saas/internal/domain"

	"github.com/google/uuid"
)

type AccountTier string

const (
	TierFree    AccountTier = "free"
	TierDoctor  AccountTier = "doctor"
	TierPremium AccountTier = "premium"
)

// TierRank orders tiers for upgrade-path checks. Higher rank is a higher tier.
func TierRank(t AccountTier) int {
	switch t {
	case TierFree:
		return 0
	case TierDoctor:
		return 1
	case TierPremium:
		return 2
	default:
		return -1
	}
}

// Account is the billable subject (an end user / doctor).
// Tier, Credits and CreditExpiry are mutated only by the entitlement applier,
// inside the billing transaction that triggered the change.
type Account struct {
	ID                 string
	Email              string
	Name               string
	IsAdmin            bool
	Tier               AccountTier
	Credits            int64
	CreditExpiry       *time.Time
	LastCreditUpdateAt *time.Time
	RegisteredAt       time.Time
}

const freeSignupCredits = 3

func NewAccount(id, email, name string) (*Account, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if email == "" || name == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &Account{
		ID:           id,
		Email:        email,
		Name:         name,
		Tier:         TierFree,
		Credits:      freeSignupCredits,
		RegisteredAt: time.Now(),
	}, nil
}

func (a *Account) IsZero() bool { return a == nil || a.ID == "" }

// UsableCredits treats expired credits as zero.
func (a *Account) UsableCredits(now time.Time) int64 {
	if a.CreditExpiry != nil && now.After(*a.CreditExpiry) {
		return 0
	}
	return a.Credits
}
