package quota

import (
	"context"
	"errors"
	"time"

	"github.com/fluentprep/fluentprep/internal/models"
)

// ErrNotFound is returned by Store.Get when no record exists for the
// given user and day.
var ErrNotFound = errors.New("quota record not found")

// Store persists per-user, per-day quota records. Increment must be
// atomic; the engine's read-then-decide path deliberately is not, so two
// concurrent requests from one user may both be admitted near the ceiling.
type Store interface {
	// Get returns the record for (userID, day), or ErrNotFound.
	Get(ctx context.Context, userID string, day time.Time) (*models.QuotaRecord, error)

	// Create persists a fresh record with zeroed counters.
	Create(ctx context.Context, rec *models.QuotaRecord) error

	// ResetHour zeroes the hourly counter and stamps the current hour.
	ResetHour(ctx context.Context, userID string, day time.Time, hour int) error

	// Increment atomically adds one to both counters, creating the
	// record if it does not exist yet.
	Increment(ctx context.Context, userID string, day time.Time, hour int) error
}

// DayStart truncates t to midnight in its location. Quota records are
// keyed by this value.
func DayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
