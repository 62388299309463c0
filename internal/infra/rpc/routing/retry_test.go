package routing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// recordingSleep captures requested delays without waiting.
type recordingSleep struct {
	delays []time.Duration
}

func (r *recordingSleep) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func (r *recordingSleep) total() time.Duration {
	var sum time.Duration
	for _, d := range r.delays {
		sum += d
	}
	return sum
}

func testConfig(rec *recordingSleep) BackoffConfig {
	cfg := DefaultBackoffConfig
	cfg.Sleep = rec.sleep
	return cfg
}

func TestWithBackoff_SucceedsAfterKFailures(t *testing.T) {
	for k := 0; k <= 5; k++ {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			rec := &recordingSleep{}
			calls := 0

			got, err := WithBackoff(context.Background(), testConfig(rec), func(ctx context.Context) (string, error) {
				calls++
				if calls <= k {
					return "", fmt.Errorf("failure %d", calls)
				}
				return "ok", nil
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != "ok" {
				t.Fatalf("got %q, want ok", got)
			}
			if calls != k+1 {
				t.Errorf("calls = %d, want %d", calls, k+1)
			}

			// 1000ms * (2^0 + ... + 2^(k-1))
			want := time.Duration((1<<k)-1) * time.Second
			if rec.total() != want {
				t.Errorf("slept %v, want %v (delays %v)", rec.total(), want, rec.delays)
			}
		})
	}
}

func TestWithBackoff_ReturnsLastErrorUnchanged(t *testing.T) {
	rec := &recordingSleep{}
	var last error
	calls := 0

	_, err := WithBackoff(context.Background(), testConfig(rec), func(ctx context.Context) (int, error) {
		calls++
		last = fmt.Errorf("attempt %d", calls)
		return 0, last
	})

	if calls != 6 {
		t.Fatalf("calls = %d, want 6", calls)
	}
	if err != last {
		t.Fatalf("expected identical last error, got %v", err)
	}

	want := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}
	if len(rec.delays) != len(want) {
		t.Fatalf("delays = %v, want %v", rec.delays, want)
	}
	for i := range want {
		if rec.delays[i] != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, rec.delays[i], want[i])
		}
	}
}

func TestWithBackoff_StopOn(t *testing.T) {
	rec := &recordingSleep{}
	permanent := errors.New("permanent")
	cfg := testConfig(rec)
	cfg.StopOn = func(err error) bool { return errors.Is(err, permanent) }

	calls := 0
	_, err := WithBackoff(context.Background(), cfg, func(ctx context.Context) (int, error) {
		calls++
		return 0, permanent
	})

	if !errors.Is(err, permanent) {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 || len(rec.delays) != 0 {
		t.Errorf("expected a single call without delay, got calls=%d delays=%v", calls, rec.delays)
	}
}

func TestWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := DefaultBackoffConfig
	_, err := WithBackoff(ctx, cfg, func(ctx context.Context) (int, error) {
		return 0, errors.New("down")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestWithBackoff_OnRetry(t *testing.T) {
	rec := &recordingSleep{}
	cfg := testConfig(rec)
	var attempts []int
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		attempts = append(attempts, attempt)
	}

	calls := 0
	_, _ = WithBackoff(context.Background(), cfg, func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("down")
		}
		return 1, nil
	})

	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("unexpected retry notifications %v", attempts)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err    error
		expect ErrorAction
	}{
		{errors.New("429 Too Many Requests"), ActionThrottled},
		{errors.New("project rate limit exceeded"), ActionThrottled},
		{errors.New("quota exceeded"), ActionThrottled},
		{errors.New("daily request count exceeded"), ActionThrottled},
		{errors.New("403 Forbidden"), ActionThrottled},
		{errors.New("Invalid JSON-RPC request -32600"), ActionFatal},
		{errors.New("the method eth_foo does not exist/is not available -32601"), ActionFatal},
		{errors.New("Parse error -32700"), ActionFatal},
		{errors.New("connection reset by peer"), ActionRetry},
		{errors.New("timeout"), ActionRetry},
		{errors.New("500 Internal Server Error"), ActionRetry},
	}

	for _, tt := range tests {
		if got := ClassifyError(tt.err); got != tt.expect {
			t.Errorf("ClassifyError(%q) = %v, want %v", tt.err, got, tt.expect)
		}
	}
}
