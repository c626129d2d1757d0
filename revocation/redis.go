package revocation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "ak:rvk:"

// RedisList stores blacklist entries as Redis keys with PX expiry, so
// Redis itself retires entries when the underlying token would no longer
// verify anyway.
type RedisList struct {
	rdb       redis.UniversalClient
	keyPrefix string
}

// NewRedisList wraps an existing Redis client. An empty keyPrefix uses
// "ak:rvk:".
func NewRedisList(rdb redis.UniversalClient, keyPrefix string) *RedisList {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisList{rdb: rdb, keyPrefix: keyPrefix}
}

func (l *RedisList) key(jti string) string {
	return l.keyPrefix + jti
}

func (l *RedisList) Add(ctx context.Context, entry Entry) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return nil
	}

	if entry.RevokedAt.IsZero() {
		entry.RevokedAt = time.Now()
	}
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode revocation entry: %w", err)
	}
	if err := l.rdb.Set(ctx, l.key(entry.JTI), value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (l *RedisList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := l.rdb.Exists(ctx, l.key(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

// PurgeExpired is a no-op: Redis expires entries natively.
func (l *RedisList) PurgeExpired(ctx context.Context) (int, error) {
	return 0, nil
}
