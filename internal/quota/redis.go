package quota

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/fluentprep/fluentprep/internal/cache"
	"github.com/fluentprep/fluentprep/internal/models"
)

// recordTTL keeps superseded day records around long enough for
// inspection before Redis reclaims them.
const recordTTL = 48 * time.Hour

// RedisStore keeps quota records in a Redis hash per user and day.
// HINCRBY gives the atomic increment the engine relies on.
type RedisStore struct {
	redis *cache.Redis
}

// NewRedisStore creates a Redis-backed quota store
func NewRedisStore(redis *cache.Redis) *RedisStore {
	return &RedisStore{redis: redis}
}

func recordKey(userID string, day time.Time) string {
	return fmt.Sprintf("quota:%s:%s", userID, day.Format("2006-01-02"))
}

func (s *RedisStore) Get(ctx context.Context, userID string, day time.Time) (*models.QuotaRecord, error) {
	fields, err := s.redis.Client.HGetAll(ctx, recordKey(userID, day)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get quota record: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	rec := &models.QuotaRecord{
		UserID:    userID,
		QuotaDate: day,
		PlanTier:  models.PlanTier(fields["plan_tier"]),
	}
	rec.CallsToday, _ = strconv.Atoi(fields["calls_today"])
	rec.CallsThisHour, _ = strconv.Atoi(fields["calls_this_hour"])
	rec.LastCallHour, _ = strconv.Atoi(fields["last_call_hour"])
	return rec, nil
}

func (s *RedisStore) Create(ctx context.Context, rec *models.QuotaRecord) error {
	key := recordKey(rec.UserID, rec.QuotaDate)
	pipe := s.redis.Client.TxPipeline()
	pipe.HSetNX(ctx, key, "calls_today", 0)
	pipe.HSetNX(ctx, key, "calls_this_hour", 0)
	pipe.HSetNX(ctx, key, "last_call_hour", rec.LastCallHour)
	pipe.HSetNX(ctx, key, "plan_tier", string(rec.PlanTier))
	pipe.Expire(ctx, key, recordTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create quota record: %w", err)
	}
	return nil
}

func (s *RedisStore) ResetHour(ctx context.Context, userID string, day time.Time, hour int) error {
	err := s.redis.Client.HSet(ctx, recordKey(userID, day),
		"calls_this_hour", 0,
		"last_call_hour", hour,
	).Err()
	if err != nil {
		return fmt.Errorf("failed to reset hourly counter: %w", err)
	}
	return nil
}

func (s *RedisStore) Increment(ctx context.Context, userID string, day time.Time, hour int) error {
	key := recordKey(userID, day)
	pipe := s.redis.Client.TxPipeline()
	pipe.HIncrBy(ctx, key, "calls_today", 1)
	pipe.HIncrBy(ctx, key, "calls_this_hour", 1)
	pipe.HSetNX(ctx, key, "last_call_hour", hour)
	pipe.HSetNX(ctx, key, "plan_tier", string(models.PlanFree))
	pipe.Expire(ctx, key, recordTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to increment call counters: %w", err)
	}
	return nil
}
