// Package revocation maintains the access-token blacklist. Entries are
// keyed by jti and carry a TTL matching the token's remaining lifetime,
// so the list stays bounded without explicit cleanup on Redis and with a
// periodic sweep on the in-memory adapter.
package revocation

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable wraps backend failures so callers can decide between
// fail-closed and fail-open handling.
var ErrUnavailable = errors.New("revocation backend unavailable")

// Entry is one blacklisted token. The JSON tags shape the value the
// Redis adapter stores.
type Entry struct {
	JTI       string    `json:"jti"`
	UserID    int64     `json:"user_id"`
	TokenType string    `json:"token_type,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	RevokedAt time.Time `json:"revoked_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// List is the blacklist contract. Add is idempotent; IsRevoked on an
// unknown or already-expired jti reports false.
type List interface {
	// Add blacklists a jti until its expiry. Entries already past expiry
	// are dropped rather than stored.
	Add(ctx context.Context, entry Entry) error

	// IsRevoked reports whether the jti is currently blacklisted.
	IsRevoked(ctx context.Context, jti string) (bool, error)

	// PurgeExpired removes entries past their expiry and returns how
	// many were removed. Backends with native TTL support may return 0.
	PurgeExpired(ctx context.Context) (int, error)
}
