package provider

import (
	"sync"
	"time"

	"github.com/vietddude/escalator/internal/infra/rpc/routing"
)

const (
	slowResponseThreshold = 3 * time.Second
	degradedErrorRate     = 0.3
	downErrorRate         = 0.5
	throttleCooldown      = time.Minute
)

// BaseProvider implements common provider functionality.
// It handles health tracking and basic status checks.
type BaseProvider struct {
	Name string

	mu            sync.RWMutex
	health        HealthStatus
	totalLatency  time.Duration
	successCount  int
	failureCount  int
	requestCount  int
	throttleCount int
	lastThrottle  time.Time
}

// NewBaseProvider creates a new BaseProvider.
func NewBaseProvider(name string) *BaseProvider {
	return &BaseProvider{
		Name: name,
		health: HealthStatus{
			Available:     true,
			LastSuccessAt: time.Now(),
		},
	}
}

// GetName returns the provider's name.
func (p *BaseProvider) GetName() string {
	return p.Name
}

// GetHealth returns the provider's health status.
func (p *BaseProvider) GetHealth() HealthStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	h := p.health
	h.Requests = p.requestCount
	h.Throttled = p.throttleCount
	h.Status = p.statusLocked()
	h.State = h.Status.String()
	return h
}

// IsAvailable checks if the provider is available.
func (p *BaseProvider) IsAvailable() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	status := p.statusLocked()
	return status == StatusHealthy || status == StatusDegraded
}

func (p *BaseProvider) statusLocked() Status {
	if p.throttleCount > 0 && time.Since(p.lastThrottle) < throttleCooldown {
		return StatusThrottled
	}
	if !p.health.Available {
		return StatusDown
	}
	if p.health.ErrorRate > degradedErrorRate || p.health.Latency > slowResponseThreshold {
		return StatusDegraded
	}
	return StatusHealthy
}

func (p *BaseProvider) RecordSuccess(latency time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.successCount++
	p.requestCount++
	p.totalLatency += latency
	p.health.LastSuccessAt = time.Now()
	p.health.Available = true

	if p.requestCount > 0 {
		p.health.ErrorRate = float64(p.failureCount) / float64(p.requestCount)
	}
	if p.successCount > 0 {
		p.health.Latency = p.totalLatency / time.Duration(p.successCount)
	}
}

func (p *BaseProvider) RecordFailure(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failureCount++
	p.requestCount++
	p.health.LastFailureAt = time.Now()
	if err != nil {
		p.health.LastError = err.Error()
	}

	if routing.ClassifyError(err) == routing.ActionThrottled {
		p.throttleCount++
		p.lastThrottle = p.health.LastFailureAt
	}

	if p.requestCount > 0 {
		p.health.ErrorRate = float64(p.failureCount) / float64(p.requestCount)
	}

	if p.health.ErrorRate > downErrorRate {
		p.health.Available = false
	}
}
