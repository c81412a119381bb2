// Package authz implements the ownership gate (spec.md §4.5): the only
// authorization rule the core enforces is that an object's creator is the
// sole principal allowed to read or update it.
package authz

import (
	"context"

	"github.com/kartikbazzad/entgraph/graphErr"
	"github.com/kartikbazzad/entgraph/store"
)

// Gate checks object ownership against the engine directly, bypassing any
// MVCC predicate: ownership is immutable once an object is created.
type Gate struct {
	engine store.Engine
}

// NewGate returns a Gate backed by engine.
func NewGate(engine store.Engine) *Gate {
	return &Gate{engine: engine}
}

// CheckObjectOwnership reports whether principal is the owner of objectID.
// A storage error is returned as an Internal error, and a missing object as
// a NotFound error.
func (g *Gate) CheckObjectOwnership(ctx context.Context, objectID int64, principal string) (owned bool, err error) {
	owner, ok, err := g.engine.GetObjectOwner(ctx, objectID)
	if err != nil {
		return false, graphErr.Internal("check object ownership: %v", err)
	}
	if !ok {
		return false, graphErr.NotFound("object %d not found", objectID)
	}
	return owner == principal, nil
}
