package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fluentprep/fluentprep/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists quota records in the user_api_quotas table.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed quota store
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context, userID string, day time.Time) (*models.QuotaRecord, error) {
	var rec models.QuotaRecord
	err := s.db.QueryRow(ctx, `
		SELECT user_id, quota_date, calls_today, calls_this_hour, last_call_hour, plan_tier, created_at, updated_at
		FROM user_api_quotas
		WHERE user_id = $1 AND quota_date = $2
	`, userID, day).Scan(
		&rec.UserID, &rec.QuotaDate, &rec.CallsToday, &rec.CallsThisHour,
		&rec.LastCallHour, &rec.PlanTier, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get quota record: %w", err)
	}
	return &rec, nil
}

func (s *PostgresStore) Create(ctx context.Context, rec *models.QuotaRecord) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO user_api_quotas (user_id, quota_date, calls_today, calls_this_hour, last_call_hour, plan_tier)
		VALUES ($1, $2, 0, 0, $3, $4)
		ON CONFLICT (user_id, quota_date) DO NOTHING
	`, rec.UserID, rec.QuotaDate, rec.LastCallHour, rec.PlanTier)
	if err != nil {
		return fmt.Errorf("failed to create quota record: %w", err)
	}
	return nil
}

func (s *PostgresStore) ResetHour(ctx context.Context, userID string, day time.Time, hour int) error {
	_, err := s.db.Exec(ctx, `
		UPDATE user_api_quotas
		SET calls_this_hour = 0, last_call_hour = $3, updated_at = NOW()
		WHERE user_id = $1 AND quota_date = $2
	`, userID, day, hour)
	if err != nil {
		return fmt.Errorf("failed to reset hourly counter: %w", err)
	}
	return nil
}

func (s *PostgresStore) Increment(ctx context.Context, userID string, day time.Time, hour int) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO user_api_quotas (user_id, quota_date, calls_today, calls_this_hour, last_call_hour, plan_tier)
		VALUES ($1, $2, 1, 1, $3, 'free')
		ON CONFLICT (user_id, quota_date) DO UPDATE SET
			calls_today = user_api_quotas.calls_today + 1,
			calls_this_hour = user_api_quotas.calls_this_hour + 1,
			updated_at = NOW()
	`, userID, day, hour)
	if err != nil {
		return fmt.Errorf("failed to increment call counters: %w", err)
	}
	return nil
}
