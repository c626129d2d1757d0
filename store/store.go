// Package store defines the persistence contract for refresh-token
// records. Adapters (in-memory, Postgres) implement Store; the service
// layer depends only on this interface.
package store

import (
	"context"
	"errors"
	"time"
)

// Status is the lifecycle state of a refresh-token record. A record is
// created active and transitions at most once to revoked; revocation is
// terminal.
type Status string

const (
	// StatusActive marks a usable record.
	StatusActive Status = "active"
	// StatusRevoked marks a record retired by rotation, logout, or a
	// security response. The Reason field records which.
	StatusRevoked Status = "revoked"
)

// Revocation reasons persisted alongside StatusRevoked.
const (
	ReasonRotated       = "rotated"
	ReasonLogout        = "logout"
	ReasonManual        = "manual"
	ReasonUserRevoked   = "user_revoked"
	ReasonDeviceRevoked = "device_revoked"
	ReasonReplay        = "replay_detected"
)

// ErrDuplicateJTI is returned by Create when a record with the same JTI
// already exists.
var ErrDuplicateJTI = errors.New("refresh token record already exists")

// Record is one refresh token's server-side state. Only a salted-free
// SHA-256 digest of the token is stored, never the token itself.
type Record struct {
	JTI       string
	UserID    int64
	TokenHash string
	DeviceID  string

	// ParentJTI links a rotated token to its predecessor; empty for
	// records minted at login. RootJTI identifies the family: it equals
	// JTI for login-minted records and is inherited unchanged across
	// rotations, so family membership is a single indexed lookup rather
	// than a chain walk.
	ParentJTI string
	RootJTI   string

	Status     Status
	Reason     string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	LastUsedAt time.Time
	RevokedAt  time.Time

	IP        string
	UserAgent string
}

// Expired reports whether the record's expiry has passed.
func (r *Record) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Usable reports whether the record can still anchor a refresh: active
// and not expired.
func (r *Record) Usable(now time.Time) bool {
	return r.Status == StatusActive && !r.Expired(now)
}

// UserStats summarizes one user's refresh-token records. Total counts
// every record still stored, whatever its state.
type UserStats struct {
	Total   int
	Active  int
	Revoked int
	Expired int
	Devices int
}

// SystemStats summarizes the whole store.
type SystemStats struct {
	Total   int
	Active  int
	Revoked int
	Expired int
	Users   int
}

// Store is the refresh-token persistence contract. All methods are safe
// for concurrent use. Lookup methods return (nil, nil) when no record
// matches; mutation methods that target a single record report via their
// return value whether the record was in the required prior state.
type Store interface {
	// Create persists a new record. The record's JTI must be unique;
	// ErrDuplicateJTI is returned otherwise.
	Create(ctx context.Context, rec *Record) error

	// FindByJTI returns the record with the given JTI, or nil.
	FindByJTI(ctx context.Context, jti string) (*Record, error)

	// FindByTokenHash returns the record with the given token digest, or
	// nil. This is the lookup the refresh path uses.
	FindByTokenHash(ctx context.Context, hash string) (*Record, error)

	// FindByUserID returns all of a user's records, newest first.
	FindByUserID(ctx context.Context, userID int64) ([]*Record, error)

	// FindByUserAndDevice returns a user's records for one device,
	// newest first.
	FindByUserAndDevice(ctx context.Context, userID int64, deviceID string) ([]*Record, error)

	// TouchLastUsed updates the record's last-used timestamp.
	TouchLastUsed(ctx context.Context, jti string, at time.Time) error

	// Revoke marks the record revoked with the given reason, but only if
	// it is still active. It returns true when this call performed the
	// transition and false when the record was missing or already
	// revoked. Exactly one of any set of concurrent callers observes
	// true; rotation's exactly-once guarantee rests on this.
	Revoke(ctx context.Context, jti, reason string) (bool, error)

	// RevokeAllForUser revokes every active record belonging to the
	// user, except the one named by excludeJTI when non-empty. It
	// returns the records it revoked.
	RevokeAllForUser(ctx context.Context, userID int64, excludeJTI, reason string) ([]*Record, error)

	// RevokeAllForDevice revokes every active record for one of the
	// user's devices and returns the records it revoked.
	RevokeAllForDevice(ctx context.Context, userID int64, deviceID, reason string) ([]*Record, error)

	// Family returns every record sharing the given root JTI, oldest
	// first.
	Family(ctx context.Context, rootJTI string) ([]*Record, error)

	// RevokeFamily condemns the whole family sharing the given root
	// JTI: every active record is revoked, and the reason is stamped on
	// every member, already-revoked ones included. The stamp must land
	// before the active records are flipped, so a rotation that is
	// concurrently minting a child either sees its parent's reason
	// overwritten or creates the child in time for this call to revoke
	// it. Returns only the records this call transitioned out of
	// active.
	RevokeFamily(ctx context.Context, rootJTI, reason string) ([]*Record, error)

	// DeleteExpired removes records whose expiry predates now and
	// returns how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)

	// DeleteRevokedBefore removes revoked records whose revocation
	// predates the cutoff and returns how many were removed. Retaining
	// revoked records for a window keeps replay forensics possible.
	DeleteRevokedBefore(ctx context.Context, cutoff time.Time) (int, error)

	// Stats returns per-user counts.
	Stats(ctx context.Context, userID int64) (*UserStats, error)

	// SystemStats returns store-wide counts.
	SystemStats(ctx context.Context) (*SystemStats, error)
}
