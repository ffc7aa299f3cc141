package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fluentprep/fluentprep/internal/config"
	"github.com/fluentprep/fluentprep/internal/monitoring"
)

// Provider errors
var (
	ErrUpstreamTimeout = errors.New("upstream service timeout")
	ErrUpstreamError   = errors.New("upstream service error")
	ErrNotConfigured   = errors.New("provider API key not configured")
)

// Client is the shared HTTP plumbing for all provider calls: one pooled
// http.Client, per-provider circuit breakers, and request metrics.
type Client struct {
	httpClient *http.Client
	breakers   *BreakerManager
}

// NewClient creates the shared provider client
func NewClient(cfg *config.ProviderConfig) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		breakers: NewBreakerManager(DefaultBreakerConfig()),
	}
}

// Breakers returns the circuit breaker manager
func (c *Client) Breakers() *BreakerManager {
	return c.breakers
}

// postJSON performs a JSON POST through the provider's circuit breaker
// and decodes the response into out.
func (c *Client) postJSON(ctx context.Context, provider, model, url string, headers map[string]string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	start := time.Now()
	_, err = c.breakers.Execute(ctx, provider, func() (interface{}, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if reqErr != nil {
			return nil, reqErr
		}
		req.Header.Set("Content-Type", "application/json")
		for name, value := range headers {
			req.Header.Set(name, value)
		}

		resp, respErr := c.httpClient.Do(req)
		if respErr != nil {
			if errors.Is(respErr, context.DeadlineExceeded) {
				return nil, ErrUpstreamTimeout
			}
			return nil, fmt.Errorf("%w: %v", ErrUpstreamError, respErr)
		}
		defer resp.Body.Close()

		raw, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstreamError, readErr)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("%w: status %d: %s", ErrUpstreamError, resp.StatusCode, truncate(raw, 512))
		}
		if out != nil {
			if decErr := json.Unmarshal(raw, out); decErr != nil {
				return nil, fmt.Errorf("%w: invalid response: %v", ErrUpstreamError, decErr)
			}
		}
		return nil, nil
	})

	latency := time.Since(start)
	monitoring.RecordProviderLatency(provider, model, latency)
	if err != nil {
		monitoring.RecordProviderRequest(provider, model, "error")
		monitoring.RecordProviderError(provider, model, errorType(err))
		return err
	}
	monitoring.RecordProviderRequest(provider, model, "success")
	return nil
}

// getJSON performs a JSON GET through the provider's circuit breaker
// and decodes the response into out.
func (c *Client) getJSON(ctx context.Context, provider, model, url string, headers map[string]string, out any) error {
	start := time.Now()
	_, err := c.breakers.Execute(ctx, provider, func() (interface{}, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if reqErr != nil {
			return nil, reqErr
		}
		for name, value := range headers {
			req.Header.Set(name, value)
		}

		resp, respErr := c.httpClient.Do(req)
		if respErr != nil {
			if errors.Is(respErr, context.DeadlineExceeded) {
				return nil, ErrUpstreamTimeout
			}
			return nil, fmt.Errorf("%w: %v", ErrUpstreamError, respErr)
		}
		defer resp.Body.Close()

		raw, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstreamError, readErr)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("%w: status %d: %s", ErrUpstreamError, resp.StatusCode, truncate(raw, 512))
		}
		if decErr := json.Unmarshal(raw, out); decErr != nil {
			return nil, fmt.Errorf("%w: invalid response: %v", ErrUpstreamError, decErr)
		}
		return nil, nil
	})

	latency := time.Since(start)
	monitoring.RecordProviderLatency(provider, model, latency)
	if err != nil {
		monitoring.RecordProviderRequest(provider, model, "error")
		monitoring.RecordProviderError(provider, model, errorType(err))
		return err
	}
	monitoring.RecordProviderRequest(provider, model, "success")
	return nil
}

func errorType(err error) string {
	switch {
	case errors.Is(err, ErrUpstreamTimeout):
		return "timeout"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	default:
		return "upstream"
	}
}

func truncate(raw []byte, max int) string {
	if len(raw) > max {
		return string(raw[:max]) + "..."
	}
	return string(raw)
}
