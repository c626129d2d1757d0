// Package authkit provides a JWT authentication core with rotating
// refresh tokens, replay detection, and a revocation list for access
// tokens.
//
// The package is designed for concurrent server workloads: Service
// methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authkit is the public surface. It exposes [Service], [Builder],
// [Config], and value types (LoginResult, MetricsSnapshot, SessionInfo,
// etc.). The token codec lives in the jwt sub-package, persistence
// contracts in store and revocation; adapters (in-memory, Postgres,
// Redis) implement those contracts and can be swapped without touching
// the Service.
//
// # What this package must NOT do
//
//   - Store or transmit plaintext credentials. Password verification is
//     the [CredentialVerifier]'s job; refresh tokens are persisted only
//     as SHA-256 digests.
//   - Trust an unverified token. [Service.ParseToken] results are
//     diagnostic only.
//   - Let two concurrent refreshes of one token both succeed. Rotation
//     is anchored on the store's conditional revoke.
//
// # Performance contract
//
// ValidateAccessToken is the hot path. With the revocation cache
// enabled it costs one signature verification plus one in-process map
// lookup on a cache hit. Login and Refresh are allowed one store
// round-trip per mutation.
package authkit
