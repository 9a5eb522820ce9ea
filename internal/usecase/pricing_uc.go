package usecase

import (
	"strings"

	"xraymed-saas/internal/domain"
	"xraymed-saas/internal/domain/model"
)

// PricingResolver resolves a plan/cadence pair to a price point and enforces
// the upgrade-path rule. It is a pure lookup over an immutable plan table
// injected at startup; no I/O, no side effects.
type PricingResolver interface {
	// Resolve returns the price point for a plan at the given cadence.
	Resolve(planID string, cadence model.BillingCadence) (*model.PlanPrice, error)

	// Plan returns the plan definition itself.
	Plan(planID string) (*model.Plan, error)

	// CheckUpgradePath rejects purchases that are not strictly one tier up
	// from the account's current tier.
	CheckUpgradePath(current model.AccountTier, planID string) error
}

var _ PricingResolver = (*pricingResolver)(nil)

type pricingResolver struct {
	plans map[string]*model.Plan
}

// NewPricingResolver constructs the resolver over a configured plan table.
func NewPricingResolver(plans map[string]*model.Plan) *pricingResolver {
	return &pricingResolver{plans: plans}
}

func (p *pricingResolver) Plan(planID string) (*model.Plan, error) {
	plan, ok := p.plans[normalizePlanID(planID)]
	if !ok {
		return nil, domain.ErrPlanNotFound
	}
	return plan, nil
}

func (p *pricingResolver) Resolve(planID string, cadence model.BillingCadence) (*model.PlanPrice, error) {
	plan, err := p.Plan(planID)
	if err != nil {
		return nil, err
	}
	days, err := model.CadenceDays(cadence)
	if err != nil {
		return nil, err
	}
	amount, ok := plan.Prices[cadence]
	if !ok {
		return nil, domain.ErrInvalidArgument
	}
	return &model.PlanPrice{
		PlanID:       plan.ID,
		Cadence:      cadence,
		BaseAmount:   amount,
		CreditGrant:  plan.Credits,
		DurationDays: days,
		GatewayRef:   plan.GatewayRef,
	}, nil
}

// CheckUpgradePath applies the strictest documented rule: a subject may only
// purchase the tier immediately above its current one. Top tier buys nothing.
func (p *pricingResolver) CheckUpgradePath(current model.AccountTier, planID string) error {
	plan, err := p.Plan(planID)
	if err != nil {
		return err
	}
	currentRank := model.TierRank(current)
	if currentRank < 0 {
		return domain.ErrInvalidArgument
	}
	if currentRank >= p.maxRank() {
		return domain.ErrAlreadyAtMaxTier
	}
	if model.TierRank(plan.Tier) != currentRank+1 {
		return domain.ErrInvalidUpgradePath
	}
	return nil
}

func (p *pricingResolver) maxRank() int {
	max := model.TierRank(model.TierFree)
	for _, plan := range p.plans {
		if r := model.TierRank(plan.Tier); r > max {
			max = r
		}
	}
	return max
}

func normalizePlanID(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
