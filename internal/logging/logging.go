package logging

import (
	"io"
	"os"
	"time"

	"github.com/fluentprep/fluentprep/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup initializes the global logger based on configuration
func Setup(cfg *config.LoggingConfig, env string) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	zerolog.TimeFieldFormat = time.RFC3339Nano

	var output io.Writer
	if cfg.Format == "json" || env == "production" {
		output = os.Stdout
	} else {
		// Pretty console output for development
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}
	}

	log.Logger = zerolog.New(output).
		With().
		Timestamp().
		Str("service", "fluentprep").
		Logger()
}

// NewLogger creates a new logger with additional context
func NewLogger(component string) zerolog.Logger {
	return log.Logger.With().Str("component", component).Logger()
}

// RequestLogger is a Gin middleware for structured request logging
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		requestID := c.GetString("request_id")

		event := log.Info()
		if c.Writer.Status() >= 500 {
			event = log.Error()
		} else if c.Writer.Status() >= 400 {
			event = log.Warn()
		}

		event.
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", raw).
			Int("status", c.Writer.Status()).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Int("body_size", c.Writer.Size()).
			Msg("HTTP request")
	}
}

// ProviderCallEntry is a structured log entry for a proxied AI-provider call
type ProviderCallEntry struct {
	RequestID string        `json:"request_id"`
	UserID    string        `json:"user_id"`
	Provider  string        `json:"provider"`
	Model     string        `json:"model"`
	Endpoint  string        `json:"endpoint"`
	Latency   time.Duration `json:"latency_ms"`
	Status    string        `json:"status"`
	ErrorCode string        `json:"error_code,omitempty"`
}

// LogProviderCall logs a proxied AI-provider call with structured data
func LogProviderCall(entry *ProviderCallEntry) {
	event := log.Info()
	if entry.Status == "error" {
		event = log.Error()
	}

	event.
		Str("request_id", entry.RequestID).
		Str("user_id", entry.UserID).
		Str("provider", entry.Provider).
		Str("model", entry.Model).
		Str("endpoint", entry.Endpoint).
		Dur("latency", entry.Latency).
		Str("status", entry.Status).
		Str("error_code", entry.ErrorCode).
		Msg("Provider call")
}

// LogQuotaDenied logs a request rejected by the quota engine
func LogQuotaDenied(requestID, userID, planTier string) {
	log.Warn().
		Str("request_id", requestID).
		Str("user_id", userID).
		Str("plan_tier", planTier).
		Msg("Quota limit reached")
}

// LogSecurityEvent logs security-related events
func LogSecurityEvent(eventType, userID, clientIP, details string) {
	log.Warn().
		Str("event_type", eventType).
		Str("user_id", userID).
		Str("client_ip", clientIP).
		Str("details", details).
		Msg("Security event")
}

// SanitizeForLog truncates long strings before they reach the log
func SanitizeForLog(data string, maxLen int) string {
	if len(data) > maxLen {
		return data[:maxLen] + "...[truncated]"
	}
	return data
}
