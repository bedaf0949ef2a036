package token

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"
)

func TestIssuerHS256RoundTrip(t *testing.T) {
	iss, err := NewIssuer(IssuerConfig{
		TTL:           time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		Issuer:        "dashdev",
	})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}

	cred, err := iss.Issue("u-1", "FUM", "jti-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !IsValid(cred) {
		t.Fatalf("issued credential should be valid on the client")
	}

	claims, err := iss.Verify(cred)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "u-1" || claims.Role != "FUM" || claims.ID != "jti-1" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestIssuerEd25519DerivesPublicKey(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	iss, err := NewIssuer(IssuerConfig{
		TTL:           time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		KeyID:         "k1",
	})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	cred, err := iss.Issue("u-2", "sys-admin", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := iss.Verify(cred); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestIssuerRejectsExpiredAndForeign(t *testing.T) {
	cfg := IssuerConfig{TTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("secret-one-secret-one-secret-one")}
	iss, err := NewIssuer(cfg)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}

	expired, err := iss.IssueUntil("u-1", "", "", time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := iss.Verify(expired); err == nil {
		t.Fatalf("expected expired credential to be rejected")
	}
	if IsValid(expired) {
		t.Fatalf("expected client validator to reject expired credential")
	}

	cfg.PrivateKey = []byte("secret-two-secret-two-secret-two")
	other, err := NewIssuer(cfg)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	foreign, err := other.Issue("u-1", "", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := iss.Verify(foreign); err == nil {
		t.Fatalf("expected foreign signature to be rejected")
	}
}

func TestNewIssuerRejectsBadConfig(t *testing.T) {
	cases := []IssuerConfig{
		{TTL: 0, SigningMethod: MethodHS256, PrivateKey: []byte("k")},
		{TTL: time.Minute, SigningMethod: MethodHS256},
		{TTL: time.Minute, SigningMethod: "rs256", PrivateKey: []byte("k")},
		{TTL: time.Minute, SigningMethod: MethodEd25519, PrivateKey: []byte("short")},
		{TTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: []byte("k"), Leeway: time.Hour},
	}
	for i, cfg := range cases {
		if _, err := NewIssuer(cfg); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}
