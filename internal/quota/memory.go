package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fluentprep/fluentprep/internal/models"
)

// MemoryStore is a mutex-guarded in-process quota store. It backs unit
// tests and store-less development mode; it holds no cross-process state
// and is not suitable for multi-instance deployments.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*models.QuotaRecord
}

// NewMemoryStore creates an in-memory quota store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*models.QuotaRecord)}
}

func memoryKey(userID string, day time.Time) string {
	return fmt.Sprintf("%s:%s", userID, day.Format("2006-01-02"))
}

func (s *MemoryStore) Get(ctx context.Context, userID string, day time.Time) (*models.QuotaRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[memoryKey(userID, day)]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *rec
	return &copied, nil
}

func (s *MemoryStore) Create(ctx context.Context, rec *models.QuotaRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryKey(rec.UserID, rec.QuotaDate)
	if _, ok := s.records[key]; ok {
		return nil
	}
	copied := *rec
	copied.CreatedAt = time.Now()
	copied.UpdatedAt = copied.CreatedAt
	s.records[key] = &copied
	return nil
}

func (s *MemoryStore) ResetHour(ctx context.Context, userID string, day time.Time, hour int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[memoryKey(userID, day)]; ok {
		rec.CallsThisHour = 0
		rec.LastCallHour = hour
		rec.UpdatedAt = time.Now()
	}
	return nil
}

func (s *MemoryStore) Increment(ctx context.Context, userID string, day time.Time, hour int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryKey(userID, day)
	rec, ok := s.records[key]
	if !ok {
		rec = &models.QuotaRecord{
			UserID:       userID,
			QuotaDate:    day,
			LastCallHour: hour,
			PlanTier:     models.PlanFree,
			CreatedAt:    time.Now(),
		}
		s.records[key] = rec
	}
	rec.CallsToday++
	rec.CallsThisHour++
	rec.UpdatedAt = time.Now()
	return nil
}
