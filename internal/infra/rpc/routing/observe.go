package routing

import (
	"log/slog"
	"time"

	"github.com/vietddude/escalator/internal/metrics"
)

// Observed returns cfg with retry logging and metrics attached for method.
// An OnRetry hook already present on cfg still runs.
func Observed(cfg BackoffConfig, component, method string) BackoffConfig {
	next := cfg.OnRetry
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		metrics.RPCRetriesTotal.WithLabelValues(method).Inc()
		slog.Warn("RPC read failed, retrying",
			"component", component,
			"method", method,
			"attempt", attempt,
			"delay", delay,
			"error_type", ClassifyError(err).String(),
			"error", err,
		)
		if next != nil {
			next(attempt, delay, err)
		}
	}
	return cfg
}
