package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/signdesk/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*Lock)(nil)

// Lock is a process-local DistributedLock with TTL expiry.
// Expired entries are pruned on every Acquire.
type Lock struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock func() time.Time
}

// NewLock creates an empty Lock
func NewLock() *Lock {
	return &Lock{held: make(map[string]time.Time), clock: time.Now}
}

// Acquire takes the named lock unless another holder's TTL is still running
func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	for held, until := range l.held {
		if !now.Before(until) {
			delete(l.held, held)
		}
	}
	if _, ok := l.held[name]; ok {
		return false, nil
	}
	l.held[name] = now.Add(ttl)
	return true, nil
}

// Release drops the named lock
func (l *Lock) Release(ctx context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, name)
	return nil
}

// Held returns how many locks are currently tracked
func (l *Lock) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}

// Ping always succeeds
func (l *Lock) Ping(ctx context.Context) error {
	return nil
}
