package service

import (
	"context"
	"errors"

	"github.com/kartikbazzad/entgraph/graphErr"
	"github.com/kartikbazzad/entgraph/schema"
)

// SchemaService implements SchemaService.CreateSchema (spec.md §6).
// Registration needs no principal: any authenticated caller may register a
// type's schema, matching the spec's silence on schema ownership.
type SchemaService struct {
	verifier TokenVerifier
	schemas  *schema.Registry
}

// NewSchemaService returns a SchemaService backed by registry, authenticating
// callers against verifier.
func NewSchemaService(verifier TokenVerifier, registry *schema.Registry) *SchemaService {
	return &SchemaService{verifier: verifier, schemas: registry}
}

// CreateSchema authenticates authorizationHeader, then registers body as the
// JSON-Schema for typeName.
func (s *SchemaService) CreateSchema(ctx context.Context, authorizationHeader, typeName, body, description string) (int64, error) {
	if _, err := authenticate(s.verifier, authorizationHeader); err != nil {
		return 0, err
	}

	id, err := s.schemas.CreateSchema(ctx, typeName, body, description)
	if err != nil {
		if errors.Is(err, schema.ErrInvalidArgument) {
			return 0, graphErr.InvalidArgument("%v", err)
		}
		return 0, graphErr.Internal("create schema: %v", err)
	}
	return id, nil
}
