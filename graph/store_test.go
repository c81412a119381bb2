package graph

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"

	"github.com/kartikbazzad/entgraph/graphErr"
)

func TestCreateAndGetObject(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newMemEngine())

	obj, rev, err := s.CreateObject(ctx, "alice", "person", json.RawMessage(`{"name":"A","age":30}`))
	if err != nil {
		t.Fatalf("CreateObject failed: %v", err)
	}
	if rev.Xid == nil {
		t.Fatal("expected revision to carry the writing transaction id")
	}

	got, err := s.GetObject(ctx, obj.ID, FullConsistency())
	if err != nil {
		t.Fatalf("GetObject failed: %v", err)
	}
	if string(got.Metadata) != `{"name":"A","age":30}` {
		t.Errorf("metadata mismatch: %s", got.Metadata)
	}
}

func TestOwnershipEnforcedOnUpdate(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newMemEngine())

	obj, _, err := s.CreateObject(ctx, "alice", "person", json.RawMessage(`{"name":"A"}`))
	if err != nil {
		t.Fatalf("CreateObject failed: %v", err)
	}

	_, _, err = s.UpdateObject(ctx, "bob", obj.ID, json.RawMessage(`{"name":"B"}`))
	if graphErr.Code(err).String() != "PermissionDenied" {
		t.Fatalf("expected PermissionDenied, got %v", err)
	}

	if _, _, err := s.UpdateObject(ctx, "alice", obj.ID, json.RawMessage(`{"name":"B"}`)); err != nil {
		t.Fatalf("owner update should succeed: %v", err)
	}
}

func TestSnapshotIsolationAcrossUpdates(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newMemEngine())

	obj, rev1, err := s.CreateObject(ctx, "alice", "person", json.RawMessage(`{"name":"A","age":30}`))
	if err != nil {
		t.Fatalf("CreateObject failed: %v", err)
	}

	for age := 31; age <= 33; age++ {
		if _, _, err := s.UpdateObject(ctx, "alice", obj.ID, json.RawMessage(`{"name":"A","age":`+strconv.Itoa(age)+`}`)); err != nil {
			t.Fatalf("UpdateObject failed: %v", err)
		}
	}

	atInitial, err := s.GetObject(ctx, obj.ID, ExactlyAt(rev1))
	if err != nil {
		t.Fatalf("GetObject(ExactlyAt) failed: %v", err)
	}
	if string(atInitial.Metadata) != `{"name":"A","age":30}` {
		t.Errorf("expected initial metadata, got %s", atInitial.Metadata)
	}

	latest, err := s.GetObject(ctx, obj.ID, FullConsistency())
	if err != nil {
		t.Fatalf("GetObject(Full) failed: %v", err)
	}
	if string(latest.Metadata) != `{"name":"A","age":33}` {
		t.Errorf("expected last write, got %s", latest.Metadata)
	}
}

func TestEdgeCreateAndList(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newMemEngine())

	o1, _, _ := s.CreateObject(ctx, "alice", "person", nil)
	o2, _, _ := s.CreateObject(ctx, "alice", "person", nil)

	if _, _, err := s.CreateEdge(ctx, "alice", "person", o1.ID, "references", "person", o2.ID, json.RawMessage(`{}`)); err != nil {
		t.Fatalf("CreateEdge failed: %v", err)
	}

	edges, err := s.GetEdges(ctx, o1.ID, "references", FullConsistency())
	if err != nil {
		t.Fatalf("GetEdges failed: %v", err)
	}
	if len(edges) != 1 || edges[0].ToID != o2.ID {
		t.Fatalf("expected one edge to %d, got %+v", o2.ID, edges)
	}
}

func TestGetObjectNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newMemEngine())
	if _, err := s.GetObject(ctx, 999, FullConsistency()); graphErr.Code(err).String() != "NotFound" {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

