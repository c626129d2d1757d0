package test

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	authkit "github.com/hexkit/authkit"
)

func presetWithKeys(t *testing.T, cfg authkit.Config) authkit.Config {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	cfg.JWT.PrivateKey = priv
	cfg.JWT.PublicKey = pub
	cfg.JWT.Issuer = "preset-test"
	return cfg
}

func TestDefaultConfigPresetValidates(t *testing.T) {
	cfg := presetWithKeys(t, authkit.DefaultConfig())

	if cfg.Device.AffinityMode != authkit.AffinityAdvisory {
		t.Fatalf("expected AffinityAdvisory, got %v", cfg.Device.AffinityMode)
	}
	if !cfg.Revocation.CacheEnabled {
		t.Fatal("expected revocation cache enabled in baseline")
	}
	if cfg.JWT.RefreshTTL <= cfg.JWT.AccessTTL {
		t.Fatal("expected refresh ttl above access ttl")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected preset to validate, got %v", err)
	}
}

func TestHighSecurityConfigPresetValidates(t *testing.T) {
	cfg := presetWithKeys(t, authkit.HighSecurityConfig())

	if cfg.Device.AffinityMode != authkit.AffinityEnforce {
		t.Fatalf("expected AffinityEnforce, got %v", cfg.Device.AffinityMode)
	}
	if cfg.Revocation.CacheEnabled {
		t.Fatal("expected every revocation check to hit the backend")
	}
	if cfg.JWT.Leeway != 0 {
		t.Fatalf("expected zero leeway, got %v", cfg.JWT.Leeway)
	}
	if !cfg.Audit.Enabled || cfg.Audit.DropIfFull {
		t.Fatal("expected lossless audit enabled")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected high security preset to validate, got %v", err)
	}
}

func TestHighThroughputConfigPresetValidates(t *testing.T) {
	cfg := presetWithKeys(t, authkit.HighThroughputConfig())

	if cfg.Device.AffinityMode != authkit.AffinityOff {
		t.Fatalf("expected AffinityOff, got %v", cfg.Device.AffinityMode)
	}
	if !cfg.Revocation.CacheEnabled || cfg.Revocation.CacheNegativeTTL <= authkit.DefaultConfig().Revocation.CacheNegativeTTL {
		t.Fatal("expected widened revocation cache window")
	}
	if cfg.JWT.AccessTTL <= 0 || cfg.JWT.RefreshTTL <= cfg.JWT.AccessTTL {
		t.Fatal("expected positive, ordered token ttls")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected high throughput preset to validate, got %v", err)
	}
}
