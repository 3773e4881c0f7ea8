package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestLock_FirstClaimWins(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	primary := NewLock(client)
	secondary := NewLock(client)

	acquired, err := primary.Acquire(ctx, "handoff:h-1", 10*time.Second)
	if err != nil || !acquired {
		t.Fatalf("first acquire: acquired=%v err=%v", acquired, err)
	}
	if !mr.Exists(lockPrefix + "handoff:h-1") {
		t.Error("lock key missing")
	}

	acquired, err = secondary.Acquire(ctx, "handoff:h-1", 10*time.Second)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if acquired {
		t.Error("second device should not claim a held hand-off")
	}

	// the same instance is not re-entrant either
	if acquired, _ := primary.Acquire(ctx, "handoff:h-1", 10*time.Second); acquired {
		t.Error("lock should not be re-entrant")
	}

	// other hand-offs are independent
	if acquired, _ := secondary.Acquire(ctx, "handoff:h-2", 10*time.Second); !acquired {
		t.Error("expected to claim a different hand-off")
	}
}

func TestLock_Release(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	owner := NewLock(client)
	other := NewLock(client)

	if _, err := owner.Acquire(ctx, "handoff:h-1", 10*time.Second); err != nil {
		t.Fatal(err)
	}

	// a non-owner release leaves the lock in place
	if err := other.Release(ctx, "handoff:h-1"); err != nil {
		t.Fatalf("release by non-owner: %v", err)
	}
	if !mr.Exists(lockPrefix + "handoff:h-1") {
		t.Fatal("non-owner release must not delete the lock")
	}

	if err := owner.Release(ctx, "handoff:h-1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if mr.Exists(lockPrefix + "handoff:h-1") {
		t.Error("lock should be gone after release")
	}

	// releasing twice is safe
	if err := owner.Release(ctx, "handoff:h-1"); err != nil {
		t.Errorf("second release: %v", err)
	}

	if acquired, _ := other.Acquire(ctx, "handoff:h-1", 10*time.Second); !acquired {
		t.Error("expected to acquire after release")
	}
}

func TestLock_ExpiresAfterTTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	crashed := NewLock(client)
	next := NewLock(client)

	if _, err := crashed.Acquire(ctx, "handoff:h-1", 5*time.Second); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(6 * time.Second)

	if acquired, _ := next.Acquire(ctx, "handoff:h-1", 5*time.Second); !acquired {
		t.Error("expired claim should be acquirable")
	}
}

func TestLock_StaleReleaseKeepsNextClaim(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	slow := NewLock(client)
	next := NewLock(client)

	if _, err := slow.Acquire(ctx, "handoff:h-1", 5*time.Second); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(6 * time.Second)

	if acquired, _ := next.Acquire(ctx, "handoff:h-1", 5*time.Second); !acquired {
		t.Fatal("expired claim should be acquirable")
	}

	// the first holder finishing late must not drop the new claim
	if err := slow.Release(ctx, "handoff:h-1"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if !mr.Exists(lockPrefix + "handoff:h-1") {
		t.Error("late release deleted another holder's claim")
	}
}

func TestLock_RejectsNonPositiveTTL(t *testing.T) {
	client, _ := setupTestRedis(t)

	if _, err := NewLock(client).Acquire(context.Background(), "handoff:h-1", 0); err == nil {
		t.Error("expected an error for a zero ttl")
	}
}

func TestLock_Ping(t *testing.T) {
	client, mr := setupTestRedis(t)
	lock := NewLock(client)

	if err := lock.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	mr.Close()
	if err := lock.Ping(context.Background()); err == nil {
		t.Error("expected ping to fail with the server down")
	}
}
