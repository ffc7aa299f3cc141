package quota

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fluentprep/fluentprep/internal/models"
)

func TestDayStart(t *testing.T) {
	in := time.Date(2026, 3, 14, 17, 42, 13, 999, time.UTC)
	want := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	if got := DayStart(in); !got.Equal(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestMemoryStore_GetMissing(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Get(context.Background(), "user-1", DayStart(time.Now()))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing record, got %v", err)
	}
}

func TestMemoryStore_CreateThenGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	rec := &models.QuotaRecord{
		UserID:       "user-1",
		QuotaDate:    day,
		LastCallHour: 9,
		PlanTier:     models.PlanPremium,
	}
	if err := s.Create(ctx, rec); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := s.Get(ctx, "user-1", day)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.PlanTier != models.PlanPremium {
		t.Errorf("Expected premium tier, got %s", got.PlanTier)
	}
	if got.LastCallHour != 9 {
		t.Errorf("Expected last call hour 9, got %d", got.LastCallHour)
	}

	// Returned record is a copy; mutating it must not leak into the store
	got.CallsToday = 999
	again, _ := s.Get(ctx, "user-1", day)
	if again.CallsToday != 0 {
		t.Error("Expected store record to be unaffected by caller mutation")
	}
}

func TestMemoryStore_IncrementUpserts(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	// No prior Create; Increment must bring the record into existence
	for i := 0; i < 3; i++ {
		if err := s.Increment(ctx, "user-1", day, 9); err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
	}

	rec, err := s.Get(ctx, "user-1", day)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.CallsToday != 3 {
		t.Errorf("Expected 3 daily calls, got %d", rec.CallsToday)
	}
	if rec.CallsThisHour != 3 {
		t.Errorf("Expected 3 hourly calls, got %d", rec.CallsThisHour)
	}
}

func TestMemoryStore_ResetHourKeepsDailyCount(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		s.Increment(ctx, "user-1", day, 9)
	}
	if err := s.ResetHour(ctx, "user-1", day, 10); err != nil {
		t.Fatalf("ResetHour failed: %v", err)
	}

	rec, err := s.Get(ctx, "user-1", day)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec.CallsThisHour != 0 {
		t.Errorf("Expected hourly count reset to 0, got %d", rec.CallsThisHour)
	}
	if rec.CallsToday != 5 {
		t.Errorf("Expected daily count to survive the reset, got %d", rec.CallsToday)
	}
	if rec.LastCallHour != 10 {
		t.Errorf("Expected last call hour 10, got %d", rec.LastCallHour)
	}
}

func TestMemoryStore_DaysAreIndependent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	day1 := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	s.Increment(ctx, "user-1", day1, 23)

	if _, err := s.Get(ctx, "user-1", day2); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected no record for the next day, got %v", err)
	}
}
