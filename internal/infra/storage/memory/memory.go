// Package memory provides in-process implementations of the escalation
// guards, for single-instance deployments and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type lockEntry struct {
	token   string
	expires time.Time
}

// Locker is an in-process lock table with expiring entries. Every
// acquisition gets its own token; refresh and release only act on the entry
// created with that token.
type Locker struct {
	mu    sync.Mutex
	locks map[string]lockEntry
	now   func() time.Time
}

func NewLocker() *Locker {
	return &Locker{
		locks: make(map[string]lockEntry),
		now:   time.Now,
	}
}

// AcquireLock takes key for ttl unless a live entry already holds it.
func (l *Locker) AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, ok := l.locks[key]; ok && now.Before(e.expires) {
		return "", false, nil
	}
	token := uuid.NewString()
	l.locks[key] = lockEntry{token: token, expires: now.Add(ttl)}
	return token, true, nil
}

// RefreshLock extends the TTL of the lock taken with token. It reports false
// when the lock expired or belongs to another acquisition.
func (l *Locker) RefreshLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.locks[key]
	if !ok || e.token != token || !now.Before(e.expires) {
		return false, nil
	}
	e.expires = now.Add(ttl)
	l.locks[key] = e
	return true, nil
}

// ReleaseLock releases the lock taken with token. Other holders are untouched.
func (l *Locker) ReleaseLock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.locks[key]; ok && e.token == token {
		delete(l.locks, key)
	}
	return nil
}

// Prune removes expired entries.
func (l *Locker) Prune(ctx context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	n := 0
	for k, e := range l.locks {
		if !now.Before(e.expires) {
			delete(l.locks, k)
			n++
		}
	}
	return n, nil
}

// Held returns the keys with a live lock.
func (l *Locker) Held() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	keys := make([]string, 0, len(l.locks))
	for k, e := range l.locks {
		if now.Before(e.expires) {
			keys = append(keys, k)
		}
	}
	return keys
}
