package server

import (
	"net/http"
	"time"

	"github.com/fluentprep/fluentprep/internal/middleware"
	"github.com/fluentprep/fluentprep/internal/models"
	"github.com/fluentprep/fluentprep/internal/plan"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// handleUsage reports the caller's current quota standing and call
// totals for the last 30 days. Reading status does not consume a call.
func (s *APIServer) handleUsage(c *gin.Context) {
	ident := middleware.IdentityFromContext(c)

	decision := s.quota.Check(c.Request.Context(), ident.UserID, ident.PlanTier)
	policy := plan.PolicyFor(ident.PlanTier)

	since := time.Now().AddDate(0, 0, -30)
	summary, err := s.usage.Summarize(c.Request.Context(), ident.UserID, since)
	if err != nil {
		// Quota standing is still useful without call history
		log.Warn().Err(err).Str("user_id", ident.UserID).Msg("Failed to summarize call logs")
		summary = nil
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"planTier":  ident.PlanTier,
		"isPremium": ident.PlanTier == models.PlanPremium,
		"quota": gin.H{
			"remaining":   decision.RemainingCalls,
			"resetTime":   decision.ResetTime.UTC().Format(time.RFC3339),
			"limited":     decision.IsLimited,
			"hourlyLimit": policy.MaxCallsPerHour,
			"dailyLimit":  policy.MaxCallsPerDay,
		},
		"history": summary,
	})
}
