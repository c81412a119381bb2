// Package jwtverifier implements the default TokenVerifier (spec.md §4.6):
// RS256-signed bearer tokens whose "sub" claim is the principal string every
// other package treats as an opaque owner/actor identifier.
//
// Grounded on bun-auth's handler.go, which parses a bearer token with
// golang-jwt/jwt/v5 and reads claims["sub"] as the user id; this verifier
// keeps that shape but replaces bun-auth's hardcoded HS256 dev secret with an
// RSA public key loaded from jwt.public_key_path, and adds the issuer check
// bun-auth's prototype never got around to.
package jwtverifier

import (
	"crypto/rsa"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kartikbazzad/entgraph/graphErr"
)

// Verifier validates RS256 bearer tokens against a fixed public key and
// issuer, per the server-side config spec.md §6 names jwt.public_key_path
// and jwt.issuer.
type Verifier struct {
	publicKey *rsa.PublicKey
	issuer    string
}

// New loads the PEM-encoded RSA public key at publicKeyPath and returns a
// Verifier that rejects tokens not signed by it or not issued by issuer.
func New(publicKeyPath, issuer string) (*Verifier, error) {
	raw, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("jwtverifier: read public key: %w", err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("jwtverifier: %s is not PEM-encoded", publicKeyPath)
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(raw)
	if err != nil {
		return nil, fmt.Errorf("jwtverifier: parse RSA public key: %w", err)
	}
	return &Verifier{publicKey: key, issuer: issuer}, nil
}

// Verify parses and validates tokenStr, returning the "sub" claim as the
// principal. Any structural, signature, expiry, or issuer mismatch is
// reported as Unauthenticated, the error code spec.md §7 assigns to
// authentication failures.
func (v *Verifier) Verify(tokenStr string) (principal string, err error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.publicKey, nil
	}, jwt.WithIssuer(v.issuer), jwt.WithValidMethods([]string{"RS256"}))
	if err != nil || !token.Valid {
		return "", graphErr.Unauthenticated("invalid token: %v", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", graphErr.Unauthenticated("invalid token claims")
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", graphErr.Unauthenticated("token missing sub claim")
	}
	return sub, nil
}

// Static is a fixed-principal TokenVerifier used by tests and local
// development; it never inspects the bearer token at all beyond requiring
// one be present.
type Static struct {
	Principal string
}

// Verify ignores tokenStr's contents and always returns s.Principal, failing
// only when the caller passed an empty token.
func (s Static) Verify(tokenStr string) (string, error) {
	if tokenStr == "" {
		return "", graphErr.Unauthenticated("missing bearer token")
	}
	return s.Principal, nil
}
