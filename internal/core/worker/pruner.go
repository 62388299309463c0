package worker

import (
	"context"
	"log/slog"
	"time"
)

// Prunable drops entries that are no longer live and reports how many it removed.
type Prunable interface {
	Prune(ctx context.Context) (int, error)
}

// Pruner periodically sweeps expired entries from a Prunable store.
type Pruner struct {
	name     string
	target   Prunable
	interval time.Duration
}

// NewPruner creates a new Pruner worker. ttl is the lifetime of an entry; the
// sweep runs at a tenth of it, clamped to [1m, 1h].
func NewPruner(name string, target Prunable, ttl time.Duration) *Pruner {
	interval := min(ttl/10, 1*time.Hour)
	interval = max(interval, 1*time.Minute)

	return &Pruner{
		name:     name,
		target:   target,
		interval: interval,
	}
}

// Interval returns the sweep period.
func (p *Pruner) Interval() time.Duration {
	return p.interval
}

// Start runs the pruner loop until ctx is done.
func (p *Pruner) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *Pruner) prune(ctx context.Context) {
	n, err := p.target.Prune(ctx)
	if err != nil {
		slog.Error("Prune failed", "component", "pruner", "target", p.name, "error", err)
		return
	}
	if n > 0 {
		slog.Debug("Pruned expired entries", "component", "pruner", "target", p.name, "count", n)
	}
}
