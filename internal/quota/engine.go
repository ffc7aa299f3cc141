package quota

import (
	"context"
	"errors"
	"time"

	"github.com/fluentprep/fluentprep/internal/models"
	"github.com/fluentprep/fluentprep/internal/monitoring"
	"github.com/fluentprep/fluentprep/internal/plan"
	"github.com/rs/zerolog/log"
)

// failOpenRemaining is the permissive remaining-call count reported when
// the store is unavailable and the engine fails open.
const failOpenRemaining = 1000

// Decision is the per-request allow/deny verdict plus remaining-quota
// metadata. It is computed per request and never persisted.
type Decision struct {
	RemainingCalls int             `json:"remaining_calls"`
	ResetTime      time.Time       `json:"reset_time"`
	IsLimited      bool            `json:"is_limited"`
	PlanTier       models.PlanTier `json:"plan_tier"`
}

// Engine computes rate-limit decisions against a quota store.
//
// A quota-tracking outage must never cascade into a full service outage,
// so every store failure resolves to a permissive default decision
// (fail-open) instead of an error.
type Engine struct {
	store        Store
	storeTimeout time.Duration
	now          func() time.Time
}

// NewEngine creates a new decision engine. storeTimeout bounds each
// store round-trip; a timeout counts as a store failure.
func NewEngine(store Store, storeTimeout time.Duration) *Engine {
	if storeTimeout <= 0 {
		storeTimeout = 3 * time.Second
	}
	return &Engine{
		store:        store,
		storeTimeout: storeTimeout,
		now:          time.Now,
	}
}

// Check returns the rate-limit decision for a user. It loads or creates
// today's quota record, resets the hourly counter when the wall-clock
// hour has advanced, and evaluates the daily and hourly ceilings
// independently. Store failures fail open.
func (e *Engine) Check(ctx context.Context, userID string, tier models.PlanTier) Decision {
	decision, err := e.check(ctx, userID, tier)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Quota check failed, failing open")
		monitoring.RecordQuotaStoreError()
		return Decision{
			RemainingCalls: failOpenRemaining,
			ResetTime:      e.now().Add(24 * time.Hour),
			IsLimited:      false,
			PlanTier:       echoTier(tier),
		}
	}
	return decision
}

// check is the fallible path; Check applies the fail-open policy on top.
func (e *Engine) check(ctx context.Context, userID string, tier models.PlanTier) (Decision, error) {
	policy := plan.PolicyFor(tier)
	now := e.now()
	day := DayStart(now)
	hour := now.Hour()

	rec, err := e.getOrCreate(ctx, userID, tier, day, hour)
	if err != nil {
		return Decision{}, err
	}

	// The hourly window resets at wall-clock hour boundaries, not on a
	// rolling 60-minute basis. 10:59 to 11:00 opens a fresh window even
	// though only a second elapsed. Known coarseness, kept as-is.
	callsThisHour := rec.CallsThisHour
	if rec.LastCallHour != hour {
		if err := e.withTimeout(ctx, func(c context.Context) error {
			return e.store.ResetHour(c, userID, day, hour)
		}); err != nil {
			return Decision{}, err
		}
		callsThisHour = 0
	}

	dailyExceeded := rec.CallsToday >= policy.MaxCallsPerDay
	hourlyExceeded := callsThisHour >= policy.MaxCallsPerHour

	remaining := policy.MaxCallsPerDay - rec.CallsToday
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		RemainingCalls: remaining,
		ResetTime:      day.Add(24 * time.Hour),
		IsLimited:      dailyExceeded || hourlyExceeded,
		PlanTier:       echoTier(tier),
	}, nil
}

// RecordCall counts one successful provider call. It is called only
// after the upstream call succeeded, never on denied or failed attempts.
// A failed increment is logged and swallowed: the provider call already
// happened and must not be rolled back over bookkeeping.
func (e *Engine) RecordCall(ctx context.Context, userID string) {
	now := e.now()
	err := e.withTimeout(ctx, func(c context.Context) error {
		return e.store.Increment(c, userID, DayStart(now), now.Hour())
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to increment API call count")
		monitoring.RecordQuotaStoreError()
	}
}

func (e *Engine) getOrCreate(ctx context.Context, userID string, tier models.PlanTier, day time.Time, hour int) (*models.QuotaRecord, error) {
	var rec *models.QuotaRecord
	err := e.withTimeout(ctx, func(c context.Context) error {
		var getErr error
		rec, getErr = e.store.Get(c, userID, day)
		return getErr
	})
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	// First call of the day: plan tier is snapshotted here and not
	// re-validated on later calls.
	rec = &models.QuotaRecord{
		UserID:       userID,
		QuotaDate:    day,
		LastCallHour: hour,
		PlanTier:     echoTier(tier),
	}
	err = e.withTimeout(ctx, func(c context.Context) error {
		return e.store.Create(c, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (e *Engine) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	c, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	return fn(c)
}

func echoTier(tier models.PlanTier) models.PlanTier {
	if tier == "" {
		return models.PlanFree
	}
	return tier
}
