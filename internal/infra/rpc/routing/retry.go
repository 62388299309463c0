// Package routing holds the retry policy shared by every idempotent RPC read.
package routing

import (
	"context"
	"strings"
	"time"
)

// SleepFunc suspends the caller for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// BackoffConfig defines retry behavior.
type BackoffConfig struct {
	MaxRetries      int // retries after the first attempt
	InitialDelay    time.Duration
	BackoffMultiple float64

	// Sleep defaults to SleepContext. Tests replace it to observe the schedule.
	Sleep SleepFunc

	// StopOn, when set, ends the loop early for errors retrying cannot fix.
	StopOn func(error) bool

	// OnRetry is called before every backoff delay.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultBackoffConfig: 6 tries, 1s doubling, no jitter, no cap.
var DefaultBackoffConfig = BackoffConfig{
	MaxRetries:      5,
	InitialDelay:    1 * time.Second,
	BackoffMultiple: 2.0,
}

// WithBackoff runs op until it succeeds or MaxRetries retries have failed.
// The last error is returned as-is. op must be safe to repeat: nothing here
// deduplicates side effects, so it is never used for transaction submission.
func WithBackoff[T any](ctx context.Context, config BackoffConfig, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	sleep := config.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	multiple := config.BackoffMultiple
	if multiple <= 0 {
		multiple = 2.0
	}

	delay := config.InitialDelay
	for attempt := 0; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		if attempt >= config.MaxRetries {
			return zero, err
		}
		if config.StopOn != nil && config.StopOn(err) {
			return zero, err
		}

		if config.OnRetry != nil {
			config.OnRetry(attempt+1, delay, err)
		}
		if serr := sleep(ctx, delay); serr != nil {
			return zero, serr
		}
		delay = time.Duration(float64(delay) * multiple)
	}
}

// SleepContext waits for d, returning early with ctx.Err() on cancellation.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ErrorAction labels an RPC error for metrics and logs.
type ErrorAction int

const (
	ActionRetry ErrorAction = iota
	ActionThrottled
	ActionFatal
)

func (a ErrorAction) String() string {
	switch a {
	case ActionThrottled:
		return "throttled"
	case ActionFatal:
		return "fatal"
	default:
		return "transient"
	}
}

// ClassifyError determines the category of an RPC error.
func ClassifyError(err error) ErrorAction {
	if err == nil {
		return ActionRetry
	}

	s := err.Error()
	sLower := strings.ToLower(s)

	// -32700: Parse error, -32600: Invalid Request, -32601: Method not found, -32602: Invalid params
	if strings.Contains(s, "-32700") || strings.Contains(s, "-32600") ||
		strings.Contains(s, "-32601") || strings.Contains(s, "-32602") ||
		strings.Contains(sLower, "method not found") {
		return ActionFatal
	}

	if strings.Contains(s, "429") || strings.Contains(sLower, "too many requests") ||
		strings.Contains(s, "403") || strings.Contains(sLower, "forbidden") ||
		strings.Contains(sLower, "quota") || strings.Contains(sLower, "plan limit") ||
		strings.Contains(sLower, "unauthorized") ||
		strings.Contains(sLower, "rate limit") ||
		strings.Contains(sLower, "count exceeded") {
		return ActionThrottled
	}

	return ActionRetry
}
