package jwtverifier_test

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kartikbazzad/entgraph/graphErr"
	"github.com/kartikbazzad/entgraph/jwtverifier"
)

func writeTestKeyPair(t *testing.T) (priv *rsa.PrivateKey, pubPath string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	dir := t.TempDir()
	path := filepath.Join(dir, "pub.pem")
	if err := os.WriteFile(path, pemBytes, 0o600); err != nil {
		t.Fatalf("write key: %v", err)
	}
	return priv, path
}

func signToken(t *testing.T, priv *rsa.PrivateKey, sub, issuer string, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": sub, "iss": issuer, "exp": exp.Unix()}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := tok.SignedString(priv)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestVerifyAcceptsValidToken(t *testing.T) {
	priv, pubPath := writeTestKeyPair(t)
	v, err := jwtverifier.New(pubPath, "entgraph")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	token := signToken(t, priv, "alice", "entgraph", time.Now().Add(time.Hour))
	principal, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if principal != "alice" {
		t.Errorf("expected principal alice, got %s", principal)
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	priv, pubPath := writeTestKeyPair(t)
	v, err := jwtverifier.New(pubPath, "entgraph")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	token := signToken(t, priv, "alice", "entgraph", time.Now().Add(-time.Hour))
	if _, err := v.Verify(token); graphErr.Code(err).String() != "Unauthenticated" {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	priv, pubPath := writeTestKeyPair(t)
	v, err := jwtverifier.New(pubPath, "entgraph")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	token := signToken(t, priv, "alice", "someone-else", time.Now().Add(time.Hour))
	if _, err := v.Verify(token); graphErr.Code(err).String() != "Unauthenticated" {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	_, pubPath := writeTestKeyPair(t)
	otherPriv, _ := rsa.GenerateKey(rand.Reader, 2048)

	v, err := jwtverifier.New(pubPath, "entgraph")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	token := signToken(t, otherPriv, "alice", "entgraph", time.Now().Add(time.Hour))
	if _, err := v.Verify(token); graphErr.Code(err).String() != "Unauthenticated" {
		t.Fatalf("expected Unauthenticated, got %v", err)
	}
}

func TestStaticVerifierRequiresNonEmptyToken(t *testing.T) {
	s := jwtverifier.Static{Principal: "service-account"}
	if _, err := s.Verify(""); graphErr.Code(err).String() != "Unauthenticated" {
		t.Fatalf("expected Unauthenticated for empty token, got %v", err)
	}
	principal, err := s.Verify("anything")
	if err != nil || principal != "service-account" {
		t.Fatalf("expected static principal, got %q err=%v", principal, err)
	}
}
