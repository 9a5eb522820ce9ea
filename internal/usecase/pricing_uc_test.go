//go:build !integration

package usecase_test

import (
	"errors"
	"testing"

	"xraymed-saas/internal/domain"
	"xraymed-saas/internal/domain/model"
)

func TestPricingResolver_Resolve(t *testing.T) {
	pricing := newTestPricing()

	t.Run("resolves a plan and cadence to a price point", func(t *testing.T) {
		p, err := pricing.Resolve("doctor", model.CadenceYearly)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if p.BaseAmount != 99900 {
			t.Errorf("expected 99900, got %d", p.BaseAmount)
		}
		if p.DurationDays != 365 {
			t.Errorf("expected 365 days, got %d", p.DurationDays)
		}
		if p.CreditGrant != 150 {
			t.Errorf("expected 150 credits, got %d", p.CreditGrant)
		}
	})

	t.Run("plan lookup is case-insensitive", func(t *testing.T) {
		if _, err := pricing.Resolve(" Doctor ", model.CadenceMonthly); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
	})

	t.Run("unknown plan", func(t *testing.T) {
		_, err := pricing.Resolve("platinum", model.CadenceMonthly)
		if !errors.Is(err, domain.ErrPlanNotFound) {
			t.Fatalf("expected ErrPlanNotFound, got: %v", err)
		}
	})

	t.Run("unknown cadence", func(t *testing.T) {
		_, err := pricing.Resolve("doctor", model.BillingCadence("weekly"))
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got: %v", err)
		}
	})
}

func TestPricingResolver_CheckUpgradePath(t *testing.T) {
	pricing := newTestPricing()

	cases := []struct {
		name    string
		current model.AccountTier
		plan    string
		want    error
	}{
		{"free to doctor", model.TierFree, "doctor", nil},
		{"doctor to premium", model.TierDoctor, "premium", nil},
		{"free skipping to premium", model.TierFree, "premium", domain.ErrInvalidUpgradePath},
		{"doctor rebuying doctor", model.TierDoctor, "doctor", domain.ErrInvalidUpgradePath},
		{"premium buying anything", model.TierPremium, "doctor", domain.ErrAlreadyAtMaxTier},
		{"unknown plan", model.TierFree, "platinum", domain.ErrPlanNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := pricing.CheckUpgradePath(tc.current, tc.plan)
			if tc.want == nil {
				if err != nil {
					t.Fatalf("expected no error, got: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got: %v", tc.want, err)
			}
		})
	}
}
