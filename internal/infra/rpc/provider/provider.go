// Package provider wraps the JSON-RPC endpoint with health tracking and
// per-call instrumentation.
package provider

import (
	"time"
)

// Status is the coarse health state of a provider.
type Status int

const (
	StatusHealthy   Status = iota // answering normally
	StatusDegraded                // answering, but slow or with errors
	StatusThrottled               // rate limited by the endpoint
	StatusDown                    // most recent calls failed
)

func (s Status) String() string {
	switch s {
	case StatusDegraded:
		return "degraded"
	case StatusThrottled:
		return "throttled"
	case StatusDown:
		return "down"
	default:
		return "healthy"
	}
}

// Provider is the lifecycle and health surface of an RPC endpoint.
type Provider interface {
	// GetName returns provider identifier (e.g., "alchemy", "infura")
	GetName() string

	// GetHealth returns current health metrics
	GetHealth() HealthStatus

	// IsAvailable checks if the provider is healthy enough to use
	IsAvailable() bool

	// Close cleans up resources
	Close() error
}

// HealthStatus represents the health state of a provider.
type HealthStatus struct {
	Status        Status        `json:"-"`
	State         string        `json:"status"`
	Available     bool          `json:"available"`
	Latency       time.Duration `json:"latency_ns"`
	ErrorRate     float64       `json:"error_rate"`
	Requests      int           `json:"requests"`
	Throttled     int           `json:"throttled"`
	LastSuccessAt time.Time     `json:"last_success_at"`
	LastFailureAt time.Time     `json:"last_failure_at,omitzero"`
	LastError     string        `json:"last_error,omitempty"`
}
