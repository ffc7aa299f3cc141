package models

import (
	"time"

	"github.com/google/uuid"
)

// PlanTier represents a named subscription level
type PlanTier string

const (
	PlanFree      PlanTier = "free"
	PlanPremium   PlanTier = "premium"
	PlanUnlimited PlanTier = "unlimited"
)

// Profile represents a user account and its subscription plan
type Profile struct {
	ID            uuid.UUID `json:"id" db:"id"`
	Email         string    `json:"email" db:"email"`
	PasswordHash  string    `json:"-" db:"password_hash"`
	PlanTier      PlanTier  `json:"plan_tier" db:"plan_tier"`
	EmailVerified bool      `json:"email_verified" db:"email_verified"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}
