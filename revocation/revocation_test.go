package revocation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisList(t *testing.T) (*RedisList, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewRedisList(rdb, ""), mr
}

func TestRedisListAddAndCheck(t *testing.T) {
	l, _ := newTestRedisList(t)
	ctx := context.Background()

	entry := Entry{JTI: "jti-1", UserID: 1, Reason: "logout", ExpiresAt: time.Now().Add(time.Minute)}
	if err := l.Add(ctx, entry); err != nil {
		t.Fatalf("add: %v", err)
	}

	revoked, err := l.IsRevoked(ctx, "jti-1")
	if err != nil || !revoked {
		t.Fatalf("IsRevoked = %v, %v; want true, nil", revoked, err)
	}
	revoked, err = l.IsRevoked(ctx, "unknown")
	if err != nil || revoked {
		t.Fatalf("IsRevoked(unknown) = %v, %v; want false, nil", revoked, err)
	}
}

func TestRedisListStoresEntryFields(t *testing.T) {
	l, mr := newTestRedisList(t)
	ctx := context.Background()

	revokedAt := time.Now().Truncate(time.Second)
	entry := Entry{
		JTI:       "jti-1",
		UserID:    7,
		TokenType: "access",
		Reason:    "manual",
		RevokedAt: revokedAt,
		ExpiresAt: time.Now().Add(time.Minute),
	}
	if err := l.Add(ctx, entry); err != nil {
		t.Fatalf("add: %v", err)
	}

	raw, err := mr.Get(defaultKeyPrefix + "jti-1")
	if err != nil {
		t.Fatalf("get raw value: %v", err)
	}
	var stored Entry
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if stored.UserID != 7 || stored.TokenType != "access" || stored.Reason != "manual" {
		t.Errorf("stored entry = %+v", stored)
	}
	if !stored.RevokedAt.Equal(revokedAt) {
		t.Errorf("revoked at = %v, want %v", stored.RevokedAt, revokedAt)
	}
}

func TestRedisListEntryExpires(t *testing.T) {
	l, mr := newTestRedisList(t)
	ctx := context.Background()

	entry := Entry{JTI: "jti-1", ExpiresAt: time.Now().Add(time.Second)}
	if err := l.Add(ctx, entry); err != nil {
		t.Fatalf("add: %v", err)
	}

	mr.FastForward(2 * time.Second)

	revoked, err := l.IsRevoked(ctx, "jti-1")
	if err != nil || revoked {
		t.Fatalf("IsRevoked after expiry = %v, %v; want false, nil", revoked, err)
	}
}

func TestRedisListSkipsAlreadyExpired(t *testing.T) {
	l, _ := newTestRedisList(t)
	ctx := context.Background()

	entry := Entry{JTI: "jti-1", ExpiresAt: time.Now().Add(-time.Minute)}
	if err := l.Add(ctx, entry); err != nil {
		t.Fatalf("add: %v", err)
	}
	revoked, err := l.IsRevoked(ctx, "jti-1")
	if err != nil || revoked {
		t.Fatalf("IsRevoked = %v, %v; want false, nil", revoked, err)
	}
}

func TestRedisListBackendDown(t *testing.T) {
	l, mr := newTestRedisList(t)
	ctx := context.Background()

	mr.Close()

	entry := Entry{JTI: "jti-1", ExpiresAt: time.Now().Add(time.Minute)}
	if err := l.Add(ctx, entry); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from Add, got %v", err)
	}
	if _, err := l.IsRevoked(ctx, "jti-1"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from IsRevoked, got %v", err)
	}
}

func TestMemoryListLifecycle(t *testing.T) {
	l := NewMemoryList()
	ctx := context.Background()

	live := Entry{JTI: "live", ExpiresAt: time.Now().Add(time.Minute)}
	dead := Entry{JTI: "dead", ExpiresAt: time.Now().Add(5 * time.Millisecond)}
	for _, e := range []Entry{live, dead} {
		if err := l.Add(ctx, e); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	if revoked, _ := l.IsRevoked(ctx, "live"); !revoked {
		t.Error("live entry not revoked")
	}

	time.Sleep(10 * time.Millisecond)
	if revoked, _ := l.IsRevoked(ctx, "dead"); revoked {
		t.Error("expired entry still revoked")
	}

	n, err := l.PurgeExpired(ctx)
	if err != nil || n != 1 {
		t.Fatalf("purge = %d, %v; want 1, nil", n, err)
	}
}

type countingList struct {
	MemoryList
	lookups int
}

func (c *countingList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	c.lookups++
	return c.MemoryList.IsRevoked(ctx, jti)
}

func TestCachedAvoidsRepeatLookups(t *testing.T) {
	inner := &countingList{MemoryList: *NewMemoryList()}
	cached := NewCached(inner, time.Minute)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		revoked, err := cached.IsRevoked(ctx, "jti-1")
		if err != nil || revoked {
			t.Fatalf("IsRevoked = %v, %v; want false, nil", revoked, err)
		}
	}
	if inner.lookups != 1 {
		t.Fatalf("backend lookups = %d, want 1", inner.lookups)
	}
}

func TestCachedAddPrimesCache(t *testing.T) {
	inner := &countingList{MemoryList: *NewMemoryList()}
	cached := NewCached(inner, time.Minute)
	ctx := context.Background()

	entry := Entry{JTI: "jti-1", ExpiresAt: time.Now().Add(time.Minute)}
	if err := cached.Add(ctx, entry); err != nil {
		t.Fatalf("add: %v", err)
	}

	revoked, err := cached.IsRevoked(ctx, "jti-1")
	if err != nil || !revoked {
		t.Fatalf("IsRevoked = %v, %v; want true, nil", revoked, err)
	}
	if inner.lookups != 0 {
		t.Fatalf("backend lookups = %d, want 0 after write-through", inner.lookups)
	}
}

func TestCachedNegativeTTLExpires(t *testing.T) {
	inner := &countingList{MemoryList: *NewMemoryList()}
	cached := NewCached(inner, 5*time.Millisecond)
	ctx := context.Background()

	if _, err := cached.IsRevoked(ctx, "jti-1"); err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}

	// Revoke behind the cache's back, as another node would.
	entry := Entry{JTI: "jti-1", ExpiresAt: time.Now().Add(time.Minute)}
	if err := inner.Add(ctx, entry); err != nil {
		t.Fatalf("add: %v", err)
	}

	time.Sleep(10 * time.Millisecond)

	revoked, err := cached.IsRevoked(ctx, "jti-1")
	if err != nil || !revoked {
		t.Fatalf("IsRevoked after negative TTL = %v, %v; want true, nil", revoked, err)
	}
}
