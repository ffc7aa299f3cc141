package providers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fluentprep/fluentprep/internal/monitoring"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// BreakerConfig holds configuration for provider circuit breakers
type BreakerConfig struct {
	// MaxRequests is the maximum number of requests allowed to pass
	// through when the circuit breaker is half-open
	MaxRequests uint32
	// Interval is the cyclic period of the closed state for the
	// circuit breaker to clear its internal counts
	Interval time.Duration
	// Timeout is the period of the open state, after which the circuit
	// breaker becomes half-open
	Timeout time.Duration
	// FailureThreshold is the number of consecutive failures before
	// opening the circuit
	FailureThreshold uint32
}

// DefaultBreakerConfig returns default circuit breaker configuration
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		MaxRequests:      5,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// BreakerManager manages circuit breakers for the AI providers
type BreakerManager struct {
	breakers map[string]*gobreaker.CircuitBreaker
	config   *BreakerConfig
	mu       sync.RWMutex
}

// ErrCircuitOpen is returned when the circuit breaker is open
var ErrCircuitOpen = errors.New("circuit breaker is open")

// NewBreakerManager creates a new circuit breaker manager
func NewBreakerManager(config *BreakerConfig) *BreakerManager {
	if config == nil {
		config = DefaultBreakerConfig()
	}
	return &BreakerManager{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		config:   config,
	}
}

// GetBreaker returns or creates a circuit breaker for the given provider
func (m *BreakerManager) GetBreaker(provider string) *gobreaker.CircuitBreaker {
	m.mu.RLock()
	cb, exists := m.breakers[provider]
	m.mu.RUnlock()

	if exists {
		return cb
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if cb, exists = m.breakers[provider]; exists {
		return cb
	}

	cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        fmt.Sprintf("provider-%s", provider),
		MaxRequests: m.config.MaxRequests,
		Interval:    m.config.Interval,
		Timeout:     m.config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= m.config.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Info().
				Str("circuit_breaker", name).
				Str("from", stateToString(from)).
				Str("to", stateToString(to)).
				Msg("Circuit breaker state changed")
			monitoring.SetCircuitBreakerState(name, stateToGauge(to))
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// Upstream failures trip the breaker; client-side errors do not
			if errors.Is(err, ErrUpstreamError) || errors.Is(err, ErrUpstreamTimeout) {
				return false
			}
			return true
		},
	})

	m.breakers[provider] = cb
	return cb
}

// Execute executes a function with circuit breaker protection
func (m *BreakerManager) Execute(ctx context.Context, provider string, fn func() (interface{}, error)) (interface{}, error) {
	cb := m.GetBreaker(provider)

	result, err := cb.Execute(func() (interface{}, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		return fn()
	})

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			log.Warn().
				Str("provider", provider).
				Msg("Circuit breaker is open, rejecting request")
			return nil, ErrCircuitOpen
		}
		return nil, err
	}

	return result, nil
}

// IsOpen checks if the circuit breaker for a provider is open
func (m *BreakerManager) IsOpen(provider string) bool {
	m.mu.RLock()
	cb, exists := m.breakers[provider]
	m.mu.RUnlock()

	if !exists {
		return false
	}

	return cb.State() == gobreaker.StateOpen
}

// Reset resets a circuit breaker (for testing or admin purposes)
func (m *BreakerManager) Reset(provider string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.breakers, provider)
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

func stateToGauge(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 0.5
	default:
		return 0
	}
}
