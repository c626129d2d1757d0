package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	m, err := NewManager(Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "authkit-test",
		Audience:      "api",
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestGenerateVerifyRoundTrip(t *testing.T) {
	m := newTestManager(t)

	token, jti, err := m.Generate(42, TypeAccess, "dev-1", map[string]any{"role": "admin"}, time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if jti == "" {
		t.Fatal("expected non-empty jti")
	}
	if strings.Count(token, ".") != 2 {
		t.Fatalf("expected three-segment token, got %q", token)
	}

	claims, err := m.Verify(token, TypeAccess)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("user id = %d, want 42", claims.UserID)
	}
	if claims.DeviceID != "dev-1" {
		t.Errorf("device id = %q, want dev-1", claims.DeviceID)
	}
	if claims.JTI() != jti {
		t.Errorf("jti = %q, want %q", claims.JTI(), jti)
	}
	if claims.Custom["role"] != "admin" {
		t.Errorf("custom role = %v, want admin", claims.Custom["role"])
	}
}

func TestVerifyRejectsWrongType(t *testing.T) {
	m := newTestManager(t)

	token, _, err := m.Generate(1, TypeRefresh, "", nil, time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := m.Verify(token, TypeAccess); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for wrong token type, got %v", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	m := newTestManager(t)

	token, _, err := m.Generate(1, TypeAccess, "", nil, time.Millisecond)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, err := m.Verify(token, TypeAccess); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	m := newTestManager(t)

	token, _, err := m.Generate(1, TypeAccess, "", nil, time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	tampered := token[:len(token)-2] + "xx"
	if _, err := m.Verify(tampered, TypeAccess); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for tampered token, got %v", err)
	}
}

func TestVerifyRejectsMalformed(t *testing.T) {
	m := newTestManager(t)

	cases := []string{"", "not-a-token", "a.b", "a.b.c.d"}
	for _, input := range cases {
		if _, err := m.Verify(input, TypeAccess); !errors.Is(err, ErrInvalid) {
			t.Errorf("input %q: expected ErrInvalid, got %v", input, err)
		}
	}
}

func TestVerifyRejectsIssuerMismatch(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	issue, err := NewManager(Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "other-service",
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	verify, err := NewManager(Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "authkit-test",
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	token, _, err := issue.Generate(1, TypeAccess, "", nil, time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := verify.Verify(token, TypeAccess); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for issuer mismatch, got %v", err)
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	m := newTestManager(t)
	other := newTestManager(t)

	token, _, err := other.Generate(1, TypeAccess, "", nil, time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if _, err := m.Verify(token, TypeAccess); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for foreign signature, got %v", err)
	}
}

func TestParseUnsafeReadsExpiredToken(t *testing.T) {
	m := newTestManager(t)

	token, jti, err := m.Generate(7, TypeRefresh, "dev-2", nil, time.Millisecond)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	claims, err := m.ParseUnsafe(token)
	if err != nil {
		t.Fatalf("parse unsafe: %v", err)
	}
	if claims.UserID != 7 || claims.JTI() != jti || claims.TokenType != TypeRefresh {
		t.Errorf("unexpected claims: %+v", claims)
	}
}

func TestParseUnsafeRejectsGarbage(t *testing.T) {
	m := newTestManager(t)

	if _, err := m.ParseUnsafe("garbage"); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestHS256RoundTrip(t *testing.T) {
	m, err := NewManager(Config{
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		Issuer:        "authkit-test",
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	token, _, err := m.Generate(9, TypeAccess, "", nil, time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := m.Verify(token, TypeAccess)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.UserID != 9 {
		t.Errorf("user id = %d, want 9", claims.UserID)
	}
}

func TestNewManagerValidation(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(rand.Reader)

	cases := []struct {
		name string
		cfg  Config
	}{
		{"missing method", Config{}},
		{"hs256 without key", Config{SigningMethod: MethodHS256}},
		{"ed25519 without public key", Config{SigningMethod: MethodEd25519, PrivateKey: priv}},
		{"excessive leeway", Config{SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: pub, Leeway: time.Hour}},
		{"bad public key", Config{SigningMethod: MethodEd25519, PublicKey: []byte("short")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewManager(tc.cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestGenerateRejectsNonPositiveTTL(t *testing.T) {
	m := newTestManager(t)

	if _, _, err := m.Generate(1, TypeAccess, "", nil, 0); !errors.Is(err, ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
}
