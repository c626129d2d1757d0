package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType tags a token as either a short-lived access token or a
// long-lived rotating refresh token. The type is embedded in the signed
// claims and checked on every verification.
type TokenType string

const (
	// TypeAccess marks short-lived bearer tokens.
	TypeAccess TokenType = "access"
	// TypeRefresh marks rotating refresh tokens.
	TypeRefresh TokenType = "refresh"
)

// Sentinel errors for the codec. Callers match these with errors.Is; the
// wrapped message carries the specific failure.
var (
	// ErrGeneration is returned when signing fails.
	ErrGeneration = errors.New("token generation failed")
	// ErrInvalid is returned for malformed input, bad signatures, and
	// wrong-type tokens.
	ErrInvalid = errors.New("invalid token")
	// ErrExpired is returned when the exp claim has passed.
	ErrExpired = errors.New("token expired")
	// ErrValidation is returned when issuer or audience does not match
	// the configured policy.
	ErrValidation = errors.New("token claim validation failed")
)

// SigningMethod selects the signature algorithm.
type SigningMethod string

const (
	// MethodEd25519 signs with an Ed25519 key pair (default).
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs with a shared HMAC secret. Intended for tests and
	// single-process deployments where key distribution is not a concern.
	MethodHS256 SigningMethod = "hs256"
)

// Config holds the immutable token policy the Manager signs and verifies
// under.
type Config struct {
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

// Manager encodes and verifies the JWT wire format. It is stateless and
// safe for concurrent use after construction.
type Manager struct {
	config Config
}

// Claims is the typed token payload. Core claims keep compile-time
// guarantees; open extension claims live in Custom.
type Claims struct {
	UserID    int64          `json:"uid"`
	TokenType TokenType      `json:"typ"`
	DeviceID  string         `json:"did,omitempty"`
	Custom    map[string]any `json:"cst,omitempty"`
	jwt.RegisteredClaims
}

// JTI returns the token's unique identifier claim.
func (c *Claims) JTI() string {
	return c.ID
}

// NewManager validates the config and returns a ready Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("hs256 requires private key")
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key")
		}
		if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return &Manager{config: cfg}, nil
}

// Generate builds and signs a token of the given type. Standard claims
// (iss, aud, iat, nbf=iat, exp=iat+ttl, jti) are filled in; custom claims
// are carried verbatim. The generated jti is returned alongside the signed
// token so callers can persist it.
func (m *Manager) Generate(
	userID int64,
	tokenType TokenType,
	deviceID string,
	custom map[string]any,
	ttl time.Duration,
) (string, string, error) {
	if ttl <= 0 {
		return "", "", fmt.Errorf("%w: non-positive ttl", ErrGeneration)
	}

	now := time.Now()
	jti := uuid.NewString()

	claims := Claims{
		UserID:    userID,
		TokenType: tokenType,
		DeviceID:  deviceID,
		Custom:    custom,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	token := jwt.NewWithClaims(m.getMethod(), claims)

	signKey, err := m.getSignKey()
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	signed, err := token.SignedString(signKey)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	return signed, jti, nil
}

// Verify parses the three-segment wire format, checks the signature,
// expiry, issuer, and audience, and, when expected is non-empty, the
// token type. Malformed input fails before signature verification.
func (m *Manager) Verify(tokenStr string, expected TokenType) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.getMethod().Alg()}),
		jwt.WithExpirationRequired(),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return m.getVerifyKey()
	})
	if err != nil {
		return nil, mapParseError(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid claims", ErrInvalid)
	}

	if expected != "" && claims.TokenType != expected {
		return nil, fmt.Errorf("%w: expected %s token, got %s", ErrInvalid, expected, claims.TokenType)
	}

	return claims, nil
}

// ParseUnsafe decodes the payload without verifying the signature. The
// result is useful for diagnostics (reading expiry, jti, ownership) and
// must never be trusted for authorization decisions.
func (m *Manager) ParseUnsafe(tokenStr string) (*Claims, error) {
	parser := jwt.NewParser()
	token, _, err := parser.ParseUnverified(tokenStr, &Claims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, fmt.Errorf("%w: invalid claims", ErrInvalid)
	}

	return claims, nil
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenInvalidAudience):
		return fmt.Errorf("%w: %v", ErrValidation, err)
	default:
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
}

func (m *Manager) getMethod() jwt.SigningMethod {
	switch m.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (m *Manager) getSignKey() (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodHS256:
		return m.config.PrivateKey, nil
	default:
		return parseEdPrivateKey(m.config.PrivateKey)
	}
}

func (m *Manager) getVerifyKey() (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodHS256:
		return m.config.PrivateKey, nil
	default:
		return parseEdPublicKey(m.config.PublicKey)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
