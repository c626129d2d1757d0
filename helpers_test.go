package authkit

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/hexkit/authkit/revocation"
	memorystore "github.com/hexkit/authkit/store/memory"
)

var testUsers = map[string]struct {
	secret string
	id     int64
}{
	"alice": {"correct-password-123", 1},
	"bob":   {"hunter2-hunter2", 2},
}

func testVerifier() CredentialVerifier {
	return CredentialVerifierFunc(func(ctx context.Context, identifier, secret string) (int64, error) {
		u, ok := testUsers[identifier]
		if !ok || u.secret != secret {
			return 0, errors.New("unknown user or bad secret")
		}
		return u.id, nil
	})
}

func testConfig(t testing.TB) Config {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	cfg := defaultConfig()
	cfg.JWT.AccessTTL = time.Minute
	cfg.JWT.RefreshTTL = time.Hour
	cfg.JWT.PrivateKey = priv
	cfg.JWT.PublicKey = pub
	cfg.JWT.Issuer = "authkit-test"
	// Tests want revocations visible on the next call, not after a
	// cache window.
	cfg.Revocation.CacheEnabled = false
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestService(t *testing.T, mutate func(*Config)) (*Service, *memorystore.Store) {
	t.Helper()

	cfg := testConfig(t)
	if mutate != nil {
		mutate(&cfg)
	}

	st := memorystore.New()
	svc, err := New().
		WithConfig(cfg).
		WithTokenStore(st).
		WithRevocationList(revocation.NewMemoryList()).
		WithCredentialVerifier(testVerifier()).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(svc.Close)

	return svc, st
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return mr, rdb
}

func mustLogin(t *testing.T, svc *Service, identifier, secret string) *LoginResult {
	t.Helper()

	result, err := svc.Login(context.Background(), identifier, secret, DeviceInfo{DeviceID: "dev-1"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	return result
}
