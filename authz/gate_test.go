package authz_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/kartikbazzad/entgraph/authz"
	"github.com/kartikbazzad/entgraph/graph"
	"github.com/kartikbazzad/entgraph/graphErr"
	"github.com/kartikbazzad/entgraph/sqlstore"
)

func TestCheckObjectOwnership(t *testing.T) {
	ctx := context.Background()
	eng, err := sqlstore.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("sqlstore.Open failed: %v", err)
	}
	defer eng.Close()

	s := graph.NewStore(eng)
	g := authz.NewGate(eng)

	obj, _, err := s.CreateObject(ctx, "alice", "person", json.RawMessage(`{"name":"A"}`))
	if err != nil {
		t.Fatalf("CreateObject failed: %v", err)
	}

	ok, err := g.CheckObjectOwnership(ctx, obj.ID, "alice")
	if err != nil || !ok {
		t.Fatalf("expected alice to own object, ok=%v err=%v", ok, err)
	}

	ok, err = g.CheckObjectOwnership(ctx, obj.ID, "bob")
	if err != nil || ok {
		t.Fatalf("expected bob to not own object, ok=%v err=%v", ok, err)
	}

	_, err = g.CheckObjectOwnership(ctx, 9999, "alice")
	if graphErr.Code(err).String() != "NotFound" {
		t.Fatalf("expected NotFound, got %v", err)
	}
}
