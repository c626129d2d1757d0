// Package jwt encodes, signs, and verifies the access and refresh tokens
// issued by authkit. It owns the wire format and the claim layout and
// nothing else: storage, rotation, and revocation live with the caller.
package jwt
