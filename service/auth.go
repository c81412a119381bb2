// Package service implements the GraphService and SchemaService façade
// (spec.md §6): RPC-shaped methods over graph.Store, schema.Registry, and
// authz.Gate, performing bearer-token authentication, schema validation
// before writes, ownership enforcement, and error-taxonomy mapping (§7) so
// a transport adapter never has to know these packages exist.
package service

import (
	"strings"

	"github.com/kartikbazzad/entgraph/graphErr"
)

// TokenVerifier validates a bearer token string and returns the principal it
// names. jwtverifier.Verifier and jwtverifier.Static both satisfy this.
type TokenVerifier interface {
	Verify(token string) (principal string, err error)
}

// authenticate extracts the bearer token from an "authorization" header
// value and resolves it to a principal via verifier. The "Bearer " prefix is
// optional (spec.md §4.6 step 1): a bare token is accepted the same as a
// prefixed one. A missing token, or one the verifier rejects, is reported as
// Unauthenticated.
func authenticate(verifier TokenVerifier, authorizationHeader string) (string, error) {
	const prefix = "Bearer "
	token := strings.TrimSpace(strings.TrimPrefix(authorizationHeader, prefix))
	if token == "" {
		return "", graphErr.Unauthenticated("missing or empty bearer token")
	}
	return verifier.Verify(token)
}
