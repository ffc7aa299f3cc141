package models

import "time"

// QuotaRecord holds the per-user, per-day call counters used to enforce
// rate limits. One record exists per (user, calendar day); it is created
// lazily on the first call of the day and superseded by the next day's
// record rather than deleted.
type QuotaRecord struct {
	UserID        string    `json:"user_id" db:"user_id"`
	QuotaDate     time.Time `json:"quota_date" db:"quota_date"`
	CallsToday    int       `json:"calls_today" db:"calls_today"`
	CallsThisHour int       `json:"calls_this_hour" db:"calls_this_hour"`
	LastCallHour  int       `json:"last_call_hour" db:"last_call_hour"`
	PlanTier      PlanTier  `json:"plan_tier" db:"plan_tier"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}
