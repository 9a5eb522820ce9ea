package model

import "xraymed-saas/internal/domain"

type BillingCadence string

const (
	CadenceMonthly    BillingCadence = "monthly"
	CadenceHalfYearly BillingCadence = "half_yearly"
	CadenceYearly     BillingCadence = "yearly"
)

// CadenceDays maps a billing cadence to the entitlement period it buys.
func CadenceDays(c BillingCadence) (int, error) {
	switch c {
	case CadenceMonthly:
		return 30, nil
	case CadenceHalfYearly:
		return 180, nil
	case CadenceYearly:
		return 365, nil
	default:
		return 0, domain.ErrInvalidArgument
	}
}

// PlanPrice is the resolved price point for one plan/cadence pair.
// Amounts are integer minor currency units.
type PlanPrice struct {
	PlanID       string
	Cadence      BillingCadence
	BaseAmount   int64
	CreditGrant  int64
	DurationDays int
	GatewayRef   string // remote plan reference at the payment gateway
}

// Plan is one purchasable tier with a local price table per cadence.
// The table is process-wide configuration, read-only after startup.
type Plan struct {
	ID         string // doubles as the tier name: "doctor" | "premium"
	Tier       AccountTier
	Credits    int64 // fixed credit grant on activation
	GatewayRef string
	Prices     map[BillingCadence]int64
}

func (p *Plan) IsZero() bool { return p == nil || p.ID == "" }

// NewPlan validates and constructs a plan definition.
func NewPlan(id string, tier AccountTier, credits int64, gatewayRef string, prices map[BillingCadence]int64) (*Plan, error) {
	if id == "" || credits < 0 || len(prices) == 0 {
		return nil, domain.ErrInvalidArgument
	}
	if TierRank(tier) <= TierRank(TierFree) {
		return nil, domain.ErrInvalidArgument
	}
	for c, amount := range prices {
		if _, err := CadenceDays(c); err != nil {
			return nil, domain.ErrInvalidArgument
		}
		if amount <= 0 {
			return nil, domain.ErrInvalidArgument
		}
	}
	return &Plan{ID: id, Tier: tier, Credits: credits, GatewayRef: gatewayRef, Prices: prices}, nil
}
