package memory

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLocker_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	l := NewLocker()

	token, ok, err := l.AcquireLock(ctx, "escalation:0xabc:1", time.Minute)
	if err != nil || !ok || token == "" {
		t.Fatalf("first acquire = %q, %v, %v", token, ok, err)
	}
	if _, ok, _ := l.AcquireLock(ctx, "escalation:0xabc:1", time.Minute); ok {
		t.Fatalf("second acquire should fail while held")
	}
	if _, ok, _ := l.AcquireLock(ctx, "escalation:0xabc:2", time.Minute); !ok {
		t.Fatalf("different nonce should not conflict")
	}

	_ = l.ReleaseLock(ctx, "escalation:0xabc:1", token)
	if _, ok, _ := l.AcquireLock(ctx, "escalation:0xabc:1", time.Minute); !ok {
		t.Fatalf("acquire after release should succeed")
	}
}

func TestLocker_Expiry(t *testing.T) {
	ctx := context.Background()
	l := NewLocker()
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	token, _, _ := l.AcquireLock(ctx, "k", time.Minute)

	now = now.Add(30 * time.Second)
	if ok, _ := l.RefreshLock(ctx, "k", token, time.Minute); !ok {
		t.Fatalf("refresh of a live lock failed")
	}

	now = now.Add(45 * time.Second)
	if _, ok, _ := l.AcquireLock(ctx, "k", time.Minute); ok {
		t.Fatalf("refreshed lock should still be held")
	}

	now = now.Add(time.Minute)
	if ok, _ := l.RefreshLock(ctx, "k", token, time.Minute); ok {
		t.Fatalf("refresh of an expired lock should report it lost")
	}
	if n, _ := l.Prune(ctx); n != 1 {
		t.Fatalf("pruned %d entries, want 1", n)
	}
	if len(l.Held()) != 0 {
		t.Fatalf("expired lock reported as held")
	}
	if _, ok, _ := l.AcquireLock(ctx, "k", time.Minute); !ok {
		t.Fatalf("expired lock should be acquirable")
	}
}

func TestLocker_StaleHolderCannotTouchNewOwner(t *testing.T) {
	ctx := context.Background()
	l := NewLocker()
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	first, _, _ := l.AcquireLock(ctx, "k", 10*time.Millisecond)
	now = now.Add(20 * time.Millisecond)

	second, ok, _ := l.AcquireLock(ctx, "k", time.Minute)
	if !ok {
		t.Fatalf("acquire after expiry failed")
	}

	if held, _ := l.RefreshLock(ctx, "k", first, time.Minute); held {
		t.Errorf("expired holder refreshed the new owner's lock")
	}
	_ = l.ReleaseLock(ctx, "k", first)

	if _, ok, _ := l.AcquireLock(ctx, "k", time.Minute); ok {
		t.Fatalf("expired holder released the new owner's lock")
	}
	if held, _ := l.RefreshLock(ctx, "k", second, time.Minute); !held {
		t.Errorf("current owner lost its lock")
	}
}

func TestLocker_ConcurrentAcquire(t *testing.T) {
	ctx := context.Background()
	l := NewLocker()

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, _ := l.AcquireLock(ctx, "k", time.Minute); ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("winners = %d, want 1", winners)
	}
}
