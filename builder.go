package authkit

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/hexkit/authkit/jwt"
	"github.com/hexkit/authkit/revocation"
	"github.com/hexkit/authkit/store"
)

// Builder assembles a Service. The zero builder is not usable; start
// from [New], chain the With methods, then call Build once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	tokens     store.Store
	revoked    revocation.List
	verifier   CredentialVerifier
	auditSink  AuditSink
	built      bool
}

// New returns a Builder preloaded with defaults.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole config. Key material is cloned.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing the revocation list. When no
// explicit revocation list is set, Build wires a Redis-backed one.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithTokenStore sets the refresh-token store. Required.
func (b *Builder) WithTokenStore(s store.Store) *Builder {
	b.tokens = s
	return b
}

// WithRevocationList sets the blacklist explicitly, overriding the
// Redis default.
func (b *Builder) WithRevocationList(l revocation.List) *Builder {
	b.revoked = l
	return b
}

// WithCredentialVerifier sets the credential verifier. Required.
func (b *Builder) WithCredentialVerifier(v CredentialVerifier) *Builder {
	b.verifier = v
	return b
}

// WithAuditSink sets the sink receiving audit events and enables the
// audit dispatcher.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = true
	return b
}

// WithMetricsEnabled toggles the counter registry.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the validation latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the config, wires the dependencies, and returns the
// Service. A builder can build at most once.
func (b *Builder) Build() (*Service, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.tokens == nil {
		return nil, fmt.Errorf("%w: token store required", ErrServiceNotReady)
	}
	if b.verifier == nil {
		return nil, fmt.Errorf("%w: credential verifier required", ErrServiceNotReady)
	}

	revoked := b.revoked
	if revoked == nil {
		if b.redis == nil {
			return nil, fmt.Errorf("%w: revocation list or redis client required", ErrServiceNotReady)
		}
		revoked = revocation.NewRedisList(b.redis, cfg.Revocation.KeyPrefix)
	}
	if cfg.Revocation.CacheEnabled {
		revoked = revocation.NewCached(revoked, cfg.Revocation.CacheNegativeTTL)
	}

	jm, err := jwt.NewManager(jwt.Config{
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	svc := &Service{
		config:     cfg,
		jwtManager: jm,
		tokens:     b.tokens,
		revoked:    revoked,
		verifier:   b.verifier,
		audit:      newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:    NewMetrics(cfg.Metrics),
	}

	b.built = true

	return svc, nil
}
