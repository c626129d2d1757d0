package authkit

import (
	"context"
	"time"

	"github.com/hexkit/authkit/jwt"
	"github.com/hexkit/authkit/store"
)

// Claims is the verified token payload returned by
// [Service.ValidateAccessToken].
type Claims = jwt.Claims

// CredentialVerifier is the one interface callers must implement to
// integrate authkit with their user database. Verify checks the
// identifier/secret pair and returns the user's ID on success.
// Credential storage and hashing stay on the caller's side; authkit
// never sees password hashes.
type CredentialVerifier interface {
	Verify(ctx context.Context, identifier, secret string) (int64, error)
}

// CredentialVerifierFunc adapts a function to the CredentialVerifier
// interface.
type CredentialVerifierFunc func(ctx context.Context, identifier, secret string) (int64, error)

func (f CredentialVerifierFunc) Verify(ctx context.Context, identifier, secret string) (int64, error) {
	return f(ctx, identifier, secret)
}

// DeviceInfo identifies the client a token pair is issued to. All
// fields are optional; an empty DeviceID disables device affinity for
// the session.
type DeviceInfo struct {
	DeviceID  string
	IP        string
	UserAgent string
}

// TokenPair is one access token plus the refresh token that can renew
// it.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// LoginResult is returned by [Service.Login].
type LoginResult struct {
	UserID int64
	TokenPair

	// RefreshJTI identifies the refresh-token record minted for this
	// login. It is also the root of the session's token family.
	RefreshJTI string
}

// RefreshResult is returned by [Service.Refresh]. The old refresh token
// is retired; only the new pair is valid afterwards.
type RefreshResult struct {
	UserID int64
	TokenPair

	RefreshJTI string
}

// TokenInfo is the unverified view of a token returned by
// [Service.ParseToken]. It must not be used for authorization.
type TokenInfo struct {
	UserID    int64
	JTI       string
	TokenType string
	DeviceID  string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Expired   bool
	Custom    map[string]any
}

// SessionInfo describes one active refresh-token record, as returned by
// [Service.ActiveSessions].
type SessionInfo struct {
	JTI        string
	DeviceID   string
	IP         string
	UserAgent  string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	LastUsedAt time.Time
}

// UserTokenStats summarizes one user's refresh-token records.
type UserTokenStats = store.UserStats

// SystemTokenStats summarizes the whole refresh-token store.
type SystemTokenStats = store.SystemStats

// SecurityReport is a read-only snapshot of the service's security
// posture, returned by [Service.SecurityReport].
type SecurityReport struct {
	SigningAlgorithm       string
	Issuer                 string
	AccessTTL              time.Duration
	RefreshTTL             time.Duration
	DeviceAffinity         DeviceAffinityMode
	RevocationCacheEnabled bool
	AuditEnabled           bool
	AuditDropped           uint64
	MetricsEnabled         bool
	SweeperRunning         bool
}
