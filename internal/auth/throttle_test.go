package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestThrottle(t *testing.T, maxAttempts int, window time.Duration) (*RedisThrottle, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisThrottle(client, maxAttempts, window), mr
}

func TestThrottleAllowsWithinBudget(t *testing.T) {
	throttle, _ := newTestThrottle(t, 3, time.Minute)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		allowed, err := throttle.Allow(ctx, "alice")
		if err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
		if !allowed {
			t.Fatalf("attempt %d denied, want allowed", i)
		}
	}

	allowed, err := throttle.Allow(ctx, "alice")
	if err != nil {
		t.Fatalf("attempt 4: %v", err)
	}
	if allowed {
		t.Error("attempt 4 allowed, want denied")
	}
}

func TestThrottleKeysAreIndependent(t *testing.T) {
	throttle, _ := newTestThrottle(t, 1, time.Minute)
	ctx := context.Background()

	if allowed, _ := throttle.Allow(ctx, "alice"); !allowed {
		t.Fatal("first alice attempt denied")
	}
	if allowed, _ := throttle.Allow(ctx, "alice"); allowed {
		t.Fatal("second alice attempt allowed")
	}
	if allowed, _ := throttle.Allow(ctx, "bob"); !allowed {
		t.Error("bob's budget must be independent of alice's")
	}
}

func TestThrottleWindowExpires(t *testing.T) {
	throttle, mr := newTestThrottle(t, 1, 30*time.Second)
	ctx := context.Background()

	if allowed, _ := throttle.Allow(ctx, "alice"); !allowed {
		t.Fatal("first attempt denied")
	}
	if allowed, _ := throttle.Allow(ctx, "alice"); allowed {
		t.Fatal("second attempt allowed")
	}

	mr.FastForward(31 * time.Second)

	allowed, err := throttle.Allow(ctx, "alice")
	if err != nil {
		t.Fatalf("post-window attempt: %v", err)
	}
	if !allowed {
		t.Error("budget must reset after the window expires")
	}
}
