package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CallStatus represents the status of a proxied provider call
type CallStatus string

const (
	CallStatusSuccess CallStatus = "success"
	CallStatusError   CallStatus = "error"
	CallStatusTimeout CallStatus = "timeout"
)

// CallLog represents a single proxied AI-provider call
type CallLog struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	UserID    string          `json:"user_id" db:"user_id"`
	RequestID *string         `json:"request_id,omitempty" db:"request_id"`
	Provider  string          `json:"provider" db:"provider"`
	Model     string          `json:"model" db:"model"`
	Endpoint  string          `json:"endpoint" db:"endpoint"`
	LatencyMs *int            `json:"latency_ms,omitempty" db:"latency_ms"`
	Status    CallStatus      `json:"status" db:"status"`
	ErrorCode *string         `json:"error_code,omitempty" db:"error_code"`
	CostUSD   decimal.Decimal `json:"cost_usd" db:"cost_usd"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
