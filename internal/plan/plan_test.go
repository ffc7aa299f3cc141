package plan

import (
	"testing"

	"github.com/fluentprep/fluentprep/internal/models"
	"pgregory.net/rapid"
)

func TestPolicyFor_KnownTiers(t *testing.T) {
	tests := []struct {
		tier       models.PlanTier
		wantHourly int
		wantDaily  int
	}{
		{models.PlanFree, 20, 100},
		{models.PlanPremium, 1000, 10000},
		{models.PlanUnlimited, 10000, 1000000},
	}

	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			policy := PolicyFor(tt.tier)
			if policy.Tier != tt.tier {
				t.Errorf("Expected tier %s, got %s", tt.tier, policy.Tier)
			}
			if policy.MaxCallsPerHour != tt.wantHourly {
				t.Errorf("Expected hourly limit %d, got %d", tt.wantHourly, policy.MaxCallsPerHour)
			}
			if policy.MaxCallsPerDay != tt.wantDaily {
				t.Errorf("Expected daily limit %d, got %d", tt.wantDaily, policy.MaxCallsPerDay)
			}
		})
	}
}

// TestProperty_UnknownTierDefaultsToFree tests that lookup is total
// *For any* tier string, PolicyFor SHALL return a usable policy, and
// unrecognized tiers SHALL resolve to the free policy.
func TestProperty_UnknownTierDefaultsToFree(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		tier := models.PlanTier(rapid.String().Draw(rt, "tier"))

		policy := PolicyFor(tier)

		if policy.MaxCallsPerHour <= 0 || policy.MaxCallsPerDay <= 0 {
			t.Fatalf("PROPERTY VIOLATION: Policy for %q has non-positive limits: %+v", tier, policy)
		}

		if tier != models.PlanPremium && tier != models.PlanUnlimited {
			if policy != PolicyFor(models.PlanFree) {
				t.Fatalf("PROPERTY VIOLATION: Unknown tier %q should resolve to free policy, got %+v", tier, policy)
			}
		}
	})
}

// TestProperty_HourlyNeverExceedsDaily tests ceiling ordering
// *For any* tier, the hourly ceiling SHALL NOT exceed the daily ceiling.
func TestProperty_HourlyNeverExceedsDaily(t *testing.T) {
	tiers := []models.PlanTier{models.PlanFree, models.PlanPremium, models.PlanUnlimited}
	for _, tier := range tiers {
		policy := PolicyFor(tier)
		if policy.MaxCallsPerHour > policy.MaxCallsPerDay {
			t.Fatalf("PROPERTY VIOLATION: Tier %s hourly limit %d exceeds daily limit %d",
				tier, policy.MaxCallsPerHour, policy.MaxCallsPerDay)
		}
	}
}
