package plan

import "github.com/fluentprep/fluentprep/internal/models"

// Policy holds the call ceilings for a plan tier
type Policy struct {
	Tier            models.PlanTier
	MaxCallsPerHour int
	MaxCallsPerDay  int
}

var (
	freePolicy = Policy{
		Tier:            models.PlanFree,
		MaxCallsPerHour: 20, // burst protection
		MaxCallsPerDay:  100,
	}

	premiumPolicy = Policy{
		Tier:            models.PlanPremium,
		MaxCallsPerHour: 1000,
		MaxCallsPerDay:  10000,
	}

	unlimitedPolicy = Policy{
		Tier:            models.PlanUnlimited,
		MaxCallsPerHour: 10000,
		MaxCallsPerDay:  1000000,
	}
)

// PolicyFor returns the policy for a plan tier. Unknown or empty tiers
// fall back to the free policy, so the function is total.
func PolicyFor(tier models.PlanTier) Policy {
	switch tier {
	case models.PlanPremium:
		return premiumPolicy
	case models.PlanUnlimited:
		return unlimitedPolicy
	default:
		return freePolicy
	}
}
