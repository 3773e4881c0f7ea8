package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/signdesk/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*Lock)(nil)

const lockPrefix = "signdesk:lock:"

// Lock implements DistributedLock with SET NX and a TTL, so a claim left by a
// crashed process lapses on its own. Each successful Acquire writes a fresh
// token and Release deletes the key only while it still carries that token:
// a holder whose TTL ran out cannot drop the next holder's claim.
type Lock struct {
	client *redis.Client

	mu     sync.Mutex
	tokens map[string]string
}

// NewLock creates a new Redis-backed distributed lock.
func NewLock(client *redis.Client) *Lock {
	return &Lock{client: client, tokens: make(map[string]string)}
}

func lockKey(name string) string {
	return lockPrefix + name
}

// Acquire claims name for ttl. It returns false when the key already exists,
// whichever process holds it.
func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, fmt.Errorf("acquire lock %s: ttl must be positive", name)
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, lockKey(name), token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !ok {
		return false, nil
	}

	l.mu.Lock()
	l.tokens[name] = token
	l.mu.Unlock()
	return true, nil
}

// compareAndDelete removes KEYS[1] only if it still holds ARGV[1]
var compareAndDelete = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// Release drops a claim taken by this Lock. Names it never acquired, or
// already released, are ignored.
func (l *Lock) Release(ctx context.Context, name string) error {
	l.mu.Lock()
	token, ok := l.tokens[name]
	delete(l.tokens, name)
	l.mu.Unlock()

	if !ok {
		return nil
	}
	err := compareAndDelete.Run(ctx, l.client, []string{lockKey(name)}, token).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}

// Ping checks if the Redis backend is healthy.
func (l *Lock) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
