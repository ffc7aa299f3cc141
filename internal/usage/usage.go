package usage

import (
	"context"
	"time"

	"github.com/fluentprep/fluentprep/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Estimated cost per proxied call, by provider. These are operational
// estimates for dashboards, not billing figures.
var costPerCall = map[string]decimal.Decimal{
	"gemini":     decimal.NewFromFloat(0.0008),
	"deepseek":   decimal.NewFromFloat(0.0006),
	"assemblyai": decimal.NewFromFloat(0.0050),
	"google-tts": decimal.NewFromFloat(0.0016),
}

// CostFor returns the estimated cost of one call to a provider
func CostFor(provider string) decimal.Decimal {
	if cost, ok := costPerCall[provider]; ok {
		return cost
	}
	return decimal.Zero
}

// Recorder persists call logs for proxied provider calls
type Recorder struct {
	db *pgxpool.Pool
}

// NewRecorder creates a new call log recorder
func NewRecorder(db *pgxpool.Pool) *Recorder {
	return &Recorder{db: db}
}

// Record writes one call log entry. Failures are logged and swallowed;
// usage accounting must never fail a request that already completed.
func (r *Recorder) Record(ctx context.Context, entry *models.CallLog) {
	if r == nil || r.db == nil {
		return
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO api_call_logs (user_id, request_id, provider, model, endpoint, latency_ms, status, error_code, cost_usd)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, entry.UserID, entry.RequestID, entry.Provider, entry.Model, entry.Endpoint,
		entry.LatencyMs, entry.Status, entry.ErrorCode, entry.CostUSD)
	if err != nil {
		log.Error().Err(err).
			Str("user_id", entry.UserID).
			Str("provider", entry.Provider).
			Msg("Failed to record call log")
	}
}

// Summary aggregates a user's proxied calls over a period
type Summary struct {
	TotalCalls   int             `json:"total_calls"`
	SuccessCalls int             `json:"success_calls"`
	ErrorCalls   int             `json:"error_calls"`
	TotalCostUSD decimal.Decimal `json:"total_cost_usd"`
	Since        time.Time       `json:"since"`
}

// Summarize returns a user's call totals since the given time
func (r *Recorder) Summarize(ctx context.Context, userID string, since time.Time) (*Summary, error) {
	summary := &Summary{Since: since, TotalCostUSD: decimal.Zero}
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'success'),
		       COUNT(*) FILTER (WHERE status <> 'success'),
		       COALESCE(SUM(cost_usd), 0)
		FROM api_call_logs
		WHERE user_id = $1 AND created_at >= $2
	`, userID, since).Scan(
		&summary.TotalCalls, &summary.SuccessCalls, &summary.ErrorCalls, &summary.TotalCostUSD,
	)
	if err != nil {
		return nil, err
	}
	return summary, nil
}
