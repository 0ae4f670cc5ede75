package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/tokenforge/authd/token"
)

const (
	testMaxAge    = 2 * time.Minute
	testBucketCap = 5
)

type secretKeyFixture struct {
	store  SecretKeys
	setNow func(func() time.Time)
}

type authcodeFixture struct {
	store  Authcodes
	setNow func(func() time.Time)
}

func newTestRedis(t *testing.T) redis.UniversalClient {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return rdb
}

func secretKeyFixtures(t *testing.T) map[string]secretKeyFixture {
	t.Helper()

	mem := NewMemorySecretKeys(testMaxAge)
	rds := NewRedisSecretKeys(newTestRedis(t), testMaxAge)

	return map[string]secretKeyFixture{
		"memory": {store: mem, setNow: func(now func() time.Time) { mem.now = now }},
		"redis":  {store: rds, setNow: func(now func() time.Time) { rds.now = now }},
	}
}

func authcodeFixtures(t *testing.T) map[string]authcodeFixture {
	t.Helper()

	mem := NewMemoryAuthcodes(testBucketCap, testMaxAge)
	rds := NewRedisAuthcodes(newTestRedis(t), testBucketCap, testMaxAge)

	return map[string]authcodeFixture{
		"memory": {store: mem, setNow: func(now func() time.Time) { mem.now = now }},
		"redis":  {store: rds, setNow: func(now func() time.Time) { rds.now = now }},
	}
}

func TestSecretKeysRoundTrip(t *testing.T) {
	for name, fx := range secretKeyFixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := token.NewSecretKey()

			if err := fx.store.Add(ctx, "session-1", key); err != nil {
				t.Fatalf("add: %v", err)
			}

			got, err := fx.store.Get(ctx, "session-1")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got != key {
				t.Fatalf("got key %q, want %q", got, key)
			}

			if err := fx.store.Remove(ctx, "session-1"); err != nil {
				t.Fatalf("remove: %v", err)
			}
			if _, err := fx.store.Get(ctx, "session-1"); !errors.Is(err, ErrSecretKeyNotFound) {
				t.Fatalf("get after remove: %v", err)
			}

			// Removing an absent key is success, not an error.
			if err := fx.store.Remove(ctx, "session-1"); err != nil {
				t.Fatalf("remove absent: %v", err)
			}
		})
	}
}

func TestSecretKeysAbsent(t *testing.T) {
	for name, fx := range secretKeyFixtures(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := fx.store.Get(context.Background(), "never-stored"); !errors.Is(err, ErrSecretKeyNotFound) {
				t.Fatalf("expected not found, got %v", err)
			}
		})
	}
}

func TestSecretKeysLogicalExpiry(t *testing.T) {
	for name, fx := range secretKeyFixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := fx.store.Add(ctx, "session-1", token.NewSecretKey()); err != nil {
				t.Fatalf("add: %v", err)
			}

			// Even though the physical record is untouched, a key past
			// its maximum age must read as absent.
			fx.setNow(func() time.Time { return time.Now().Add(testMaxAge + time.Second) })

			if _, err := fx.store.Get(ctx, "session-1"); !errors.Is(err, ErrSecretKeyNotFound) {
				t.Fatalf("expected not found after max age, got %v", err)
			}
			if _, err := fx.store.Get(ctx, "session-1"); !errors.Is(err, ErrSecretKeyNotFound) {
				t.Fatalf("expired key readable on second get: %v", err)
			}
		})
	}
}

func TestAuthcodesCapacity(t *testing.T) {
	for name, fx := range authcodeFixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			const email = "test@example.com"

			for i := 0; i < testBucketCap; i++ {
				err := fx.store.Add(ctx, Authcode{UserEmail: email, Code: fmt.Sprintf("code-%d", i)})
				if err != nil {
					t.Fatalf("add %d: %v", i, err)
				}
			}

			err := fx.store.Add(ctx, Authcode{UserEmail: email, Code: "code-overflow"})
			if !errors.Is(err, ErrAuthcodeBucketFull) {
				t.Fatalf("sixth add: got %v, want bucket full", err)
			}

			// A different email is not affected by the full bucket.
			if err := fx.store.Add(ctx, Authcode{UserEmail: "other@example.com", Code: "code-x"}); err != nil {
				t.Fatalf("add other email: %v", err)
			}
		})
	}
}

func TestAuthcodesEvictExpiredOldest(t *testing.T) {
	for name, fx := range authcodeFixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			const email = "test@example.com"

			for i := 0; i < testBucketCap; i++ {
				err := fx.store.Add(ctx, Authcode{UserEmail: email, Code: fmt.Sprintf("code-%d", i)})
				if err != nil {
					t.Fatalf("add %d: %v", i, err)
				}
			}

			fx.setNow(func() time.Time { return time.Now().Add(testMaxAge + time.Second) })

			// The oldest entry is now expired, so the full bucket admits
			// a new code by displacing it.
			if err := fx.store.Add(ctx, Authcode{UserEmail: email, Code: "code-new"}); err != nil {
				t.Fatalf("add after expiry: %v", err)
			}

			if _, err := fx.store.Pop(ctx, email, "code-0"); !errors.Is(err, ErrAuthcodeNotFound) {
				t.Fatalf("evicted code still poppable: %v", err)
			}
			if _, err := fx.store.Pop(ctx, email, "code-new"); err != nil {
				t.Fatalf("pop new code: %v", err)
			}
		})
	}
}

func TestAuthcodesEvictionFollowsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	small := NewMemoryAuthcodes(2, testMaxAge)

	// First inserted entry is live, second is already expired. "Oldest"
	// means front of the bucket, not earliest deadline, so the full
	// bucket still refuses.
	if err := small.Add(ctx, Authcode{UserEmail: "a@example.com", Code: "live", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("add live: %v", err)
	}
	stale := Authcode{UserEmail: "a@example.com", Code: "stale", CreatedAt: time.Now().Add(-testMaxAge - time.Minute)}
	if err := small.Add(ctx, stale); err != nil {
		t.Fatalf("add stale: %v", err)
	}

	err := small.Add(ctx, Authcode{UserEmail: "a@example.com", Code: "next"})
	if !errors.Is(err, ErrAuthcodeBucketFull) {
		t.Fatalf("expected refusal while front entry is live, got %v", err)
	}
}

func TestAuthcodesConcurrentAddRespectsCap(t *testing.T) {
	for name, fx := range authcodeFixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			const email = "test@example.com"
			const n = 20

			var wg sync.WaitGroup
			wg.Add(n)

			results := make(chan error, n)
			for i := 0; i < n; i++ {
				code := fmt.Sprintf("code-%02d", i)
				go func() {
					defer wg.Done()
					results <- fx.store.Add(ctx, Authcode{UserEmail: email, Code: code})
				}()
			}
			wg.Wait()
			close(results)

			stored := 0
			refused := 0
			for err := range results {
				if err == nil {
					stored++
					continue
				}
				if errors.Is(err, ErrAuthcodeBucketFull) {
					refused++
					continue
				}
				t.Fatalf("unexpected add error: %v", err)
			}

			// The cap-check-then-insert step serializes per email, so
			// exactly the capacity gets through no matter the interleaving.
			if stored != testBucketCap {
				t.Fatalf("expected exactly %d stored, got %d", testBucketCap, stored)
			}
			if refused != n-testBucketCap {
				t.Fatalf("expected %d refusals, got %d", n-testBucketCap, refused)
			}

			// The bucket really holds the winners: every poppable code is
			// one of the attempted ones, and there are capacity of them.
			popped := 0
			for i := 0; i < n; i++ {
				if _, err := fx.store.Pop(ctx, email, fmt.Sprintf("code-%02d", i)); err == nil {
					popped++
				}
			}
			if popped != testBucketCap {
				t.Fatalf("expected %d poppable codes, got %d", testBucketCap, popped)
			}
		})
	}
}

func TestAuthcodesPopSingleUse(t *testing.T) {
	for name, fx := range authcodeFixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			const email = "test@example.com"

			if err := fx.store.Add(ctx, Authcode{UserEmail: email, Code: "abc123"}); err != nil {
				t.Fatalf("add: %v", err)
			}

			got, err := fx.store.Pop(ctx, email, "abc123")
			if err != nil {
				t.Fatalf("first pop: %v", err)
			}
			if got.UserEmail != email || got.Code != "abc123" {
				t.Fatalf("popped %+v", got)
			}

			if _, err := fx.store.Pop(ctx, email, "abc123"); !errors.Is(err, ErrAuthcodeNotFound) {
				t.Fatalf("second pop: got %v, want not found", err)
			}
		})
	}
}

func TestAuthcodesPopExactMatchOnly(t *testing.T) {
	for name, fx := range authcodeFixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if err := fx.store.Add(ctx, Authcode{UserEmail: "a@example.com", Code: "abc123"}); err != nil {
				t.Fatalf("add: %v", err)
			}

			if _, err := fx.store.Pop(ctx, "b@example.com", "abc123"); !errors.Is(err, ErrAuthcodeNotFound) {
				t.Fatalf("pop with wrong email: %v", err)
			}
			if _, err := fx.store.Pop(ctx, "a@example.com", "abc999"); !errors.Is(err, ErrAuthcodeNotFound) {
				t.Fatalf("pop with wrong code: %v", err)
			}
			if _, err := fx.store.Pop(ctx, "a@example.com", "abc123"); err != nil {
				t.Fatalf("exact pop: %v", err)
			}
		})
	}
}

func TestAuthcodesPopExpiredIsDestructive(t *testing.T) {
	for name, fx := range authcodeFixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			const email = "test@example.com"

			if err := fx.store.Add(ctx, Authcode{UserEmail: email, Code: "abc123"}); err != nil {
				t.Fatalf("add: %v", err)
			}

			fx.setNow(func() time.Time { return time.Now().Add(testMaxAge + time.Second) })

			// Matched but expired: reported absent, and the entry is
			// gone; clock games cannot revive it.
			if _, err := fx.store.Pop(ctx, email, "abc123"); !errors.Is(err, ErrAuthcodeNotFound) {
				t.Fatalf("expired pop: %v", err)
			}

			fx.setNow(time.Now)
			if _, err := fx.store.Pop(ctx, email, "abc123"); !errors.Is(err, ErrAuthcodeNotFound) {
				t.Fatalf("expired entry revived: %v", err)
			}
		})
	}
}
