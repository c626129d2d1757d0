package authkit

import (
	"errors"
	"time"
)

// Config defines a public type used by authkit APIs.
//
// Config instances are intended to be configured during initialization
// and then treated as immutable.
type Config struct {
	JWT        JWTConfig
	Device     DeviceConfig
	Revocation RevocationConfig
	Cleanup    CleanupConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig is the token policy: lifetimes, signing, and the issuer and
// audience claims stamped on every token.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
DEVICE CONFIG
====================================
*/

// DeviceAffinityMode controls what happens when a refresh token is
// presented from a device other than the one it was issued to.
type DeviceAffinityMode int

const (
	// AffinityOff skips the device check.
	AffinityOff DeviceAffinityMode = iota
	// AffinityAdvisory records the mismatch in audit and metrics but
	// lets the refresh proceed (default).
	AffinityAdvisory
	// AffinityEnforce rejects the refresh with ErrDeviceMismatch.
	AffinityEnforce
)

// DeviceConfig holds device affinity policy.
type DeviceConfig struct {
	AffinityMode DeviceAffinityMode
}

/*
====================================
REVOCATION CONFIG
====================================
*/

// RevocationConfig tunes the access-token blacklist.
type RevocationConfig struct {
	// KeyPrefix namespaces blacklist keys in shared Redis deployments.
	KeyPrefix string
	// CacheEnabled wraps the blacklist in an in-process lookup cache.
	CacheEnabled bool
	// CacheNegativeTTL bounds how long a cached not-revoked answer is
	// trusted before re-checking the backend.
	CacheNegativeTTL time.Duration
}

/*
====================================
CLEANUP CONFIG
====================================
*/

// CleanupConfig tunes the background sweeper started by
// Service.StartSweeper.
type CleanupConfig struct {
	Interval time.Duration
	// RevokedRetention is how long revoked records are kept before the
	// sweeper deletes them. Retention preserves replay forensics.
	RevokedRetention time.Duration
}

// AuditConfig tunes the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig tunes the lock-free counter registry.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the baseline configuration. Callers must still
// supply signing keys and an issuer before the config validates.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     time.Hour,
			RefreshTTL:    30 * 24 * time.Hour,
			SigningMethod: "ed25519",
			Leeway:        30 * time.Second,
		},
		Device: DeviceConfig{
			AffinityMode: AffinityAdvisory,
		},
		Revocation: RevocationConfig{
			KeyPrefix:        "ak:rvk:",
			CacheEnabled:     true,
			CacheNegativeTTL: 2 * time.Second,
		},
		Cleanup: CleanupConfig{
			Interval:         time.Hour,
			RevokedRetention: 30 * 24 * time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// HighSecurityConfig returns a preset tuned for hostile environments:
// short access tokens, enforced device affinity, zero clock leeway, and
// every revocation checked against the backend.
func HighSecurityConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.AccessTTL = 5 * time.Minute
	cfg.JWT.RefreshTTL = 24 * time.Hour
	cfg.JWT.Leeway = 0
	cfg.Device.AffinityMode = AffinityEnforce
	cfg.Revocation.CacheEnabled = false
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false
	cfg.Metrics.Enabled = true
	return cfg
}

// HighThroughputConfig returns a preset that trades revocation latency
// for validation speed: longer access tokens and a wider negative-cache
// window on the blacklist.
func HighThroughputConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.AccessTTL = 2 * time.Hour
	cfg.Revocation.CacheNegativeTTL = 10 * time.Second
	cfg.Device.AffinityMode = AffinityOff
	cfg.Metrics.Enabled = true
	return cfg
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the config for internal consistency. It is called by
// Builder.Build; direct construction should call it too.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be greater than AccessTTL")
	}

	if c.JWT.SigningMethod != "ed25519" && c.JWT.SigningMethod != "hs256" {
		return errors.New("unsupported JWT signing method")
	}

	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PrivateKey) == 0 {
		return errors.New("ed25519 requires PrivateKey")
	}
	if c.JWT.SigningMethod == "ed25519" && len(c.JWT.PublicKey) == 0 {
		return errors.New("ed25519 requires PublicKey")
	}
	if c.JWT.SigningMethod == "hs256" && len(c.JWT.PrivateKey) == 0 {
		return errors.New("hs256 requires PrivateKey")
	}

	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Device
	switch c.Device.AffinityMode {
	case AffinityOff, AffinityAdvisory, AffinityEnforce:
	default:
		return errors.New("invalid device affinity mode")
	}

	// Revocation
	if c.Revocation.CacheNegativeTTL < 0 {
		return errors.New("Revocation CacheNegativeTTL must be >= 0")
	}

	// Cleanup
	if c.Cleanup.Interval <= 0 {
		return errors.New("Cleanup Interval must be > 0")
	}
	if c.Cleanup.RevokedRetention < 0 {
		return errors.New("Cleanup RevokedRetention must be >= 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}
