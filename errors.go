package authkit

import (
	"errors"

	"github.com/hexkit/authkit/jwt"
)

// Token errors are aliases of the jwt package sentinels so errors.Is
// matches regardless of which layer produced the failure.
var (
	// ErrTokenGeneration reports a signing failure.
	ErrTokenGeneration = jwt.ErrGeneration
	// ErrTokenInvalid reports malformed input, bad signatures, wrong
	// token type, or an unknown refresh token.
	ErrTokenInvalid = jwt.ErrInvalid
	// ErrTokenExpired reports an expired token.
	ErrTokenExpired = jwt.ErrExpired
	// ErrTokenValidation reports issuer or audience mismatch.
	ErrTokenValidation = jwt.ErrValidation
)

var (
	// ErrInvalidCredentials is returned by Login when the credential
	// verifier rejects the identifier/secret pair.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrReplayDetected is returned by Refresh when a retired refresh
	// token is presented again. The token's whole family is revoked as a
	// side effect.
	ErrReplayDetected = errors.New("refresh token replay detected")
	// ErrTokenRevoked is returned by ValidateAccessToken for
	// blacklisted tokens.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrDeviceMismatch is returned when device affinity is enforced
	// and the presented device does not match the stored record.
	ErrDeviceMismatch = errors.New("device mismatch")
	// ErrServiceNotReady is returned by Builder.Build when required
	// dependencies are missing.
	ErrServiceNotReady = errors.New("service not initialized")
	// ErrServiceClosed is returned after Close.
	ErrServiceClosed = errors.New("service closed")
)
