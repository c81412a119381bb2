package schema

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/kartikbazzad/entgraph/store"
)

// fakeStore is an in-memory SchemaStore standing in for sqlstore.Engine, so
// this package's tests exercise CreateSchema's validation logic without a
// real database.
type fakeStore struct {
	rows   map[string]store.SchemaRow
	nextID int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]store.SchemaRow)}
}

func (f *fakeStore) UpsertSchema(ctx context.Context, typeName, body, description string) (store.SchemaRow, error) {
	now := time.Now().UTC()
	if existing, ok := f.rows[typeName]; ok {
		existing.Body = body
		existing.Description = description
		existing.UpdatedAt = now
		f.rows[typeName] = existing
		return existing, nil
	}
	f.nextID++
	row := store.SchemaRow{ID: f.nextID, TypeName: typeName, Body: body, Description: description, CreatedAt: now, UpdatedAt: now}
	f.rows[typeName] = row
	return row, nil
}

func (f *fakeStore) ListSchemas(ctx context.Context) ([]store.SchemaRow, error) {
	out := make([]store.SchemaRow, 0, len(f.rows))
	for _, row := range f.rows {
		out = append(out, row)
	}
	return out, nil
}

func newTestRegistry() *Registry {
	return NewRegistry(newFakeStore())
}

func TestCreateSchemaHappyPath(t *testing.T) {
	r := newTestRegistry()
	id, err := r.CreateSchema(context.Background(), "person", `{"type":"object","properties":{"name":{"type":"string"},"age":{"type":"number"}}}`, "")
	if err != nil {
		t.Fatalf("CreateSchema failed: %v", err)
	}
	if id < 1 {
		t.Fatalf("expected schema id >= 1, got %d", id)
	}
}

func TestCreateSchemaInvalidJSON(t *testing.T) {
	r := newTestRegistry()
	_, err := r.CreateSchema(context.Background(), "person", "{ invalid json }", "")
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestTypeNameValidation(t *testing.T) {
	valid := []string{"person", "Person", "p_2", "a"}
	invalid := []string{"", "2person", "_person", "per son", "per-son"}

	for _, name := range valid {
		r := newTestRegistry()
		if _, err := r.CreateSchema(context.Background(), name, `{"type":"object"}`, ""); err != nil {
			t.Errorf("CreateSchema(%q) should succeed, got %v", name, err)
		}
	}
	for _, name := range invalid {
		r := newTestRegistry()
		if _, err := r.CreateSchema(context.Background(), name, `{"type":"object"}`, ""); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("CreateSchema(%q) should fail with ErrInvalidArgument, got %v", name, err)
		}
	}
}

func TestValidateObjectMetadataNoSchema(t *testing.T) {
	r := newTestRegistry()
	ok, err := r.ValidateObjectMetadata("unregistered", json.RawMessage(`{"anything":1}`))
	if err != nil || !ok {
		t.Fatalf("open typing should always validate, got ok=%v err=%v", ok, err)
	}
}

func TestSchemaGatekeeping(t *testing.T) {
	r := newTestRegistry()
	_, err := r.CreateSchema(context.Background(), "product", `{
		"required": ["name", "price", "category"],
		"properties": {
			"name": {"type": "string"},
			"price": {"type": "number", "minimum": 0, "maximum": 1000000},
			"category": {"enum": ["electronics", "books", "clothing"]},
			"discount": {"type": "number"},
			"salePrice": {"type": "number"}
		},
		"additionalProperties": false,
		"dependencies": {"discount": ["salePrice"]}
	}`, "")
	if err != nil {
		t.Fatalf("CreateSchema failed: %v", err)
	}

	bad := json.RawMessage(`{"name":"Laptop","price":-10,"category":"electronics"}`)
	ok, err := r.ValidateObjectMetadata("product", bad)
	if err != nil {
		t.Fatalf("validate error: %v", err)
	}
	if ok {
		t.Error("expected negative price to fail validation")
	}

	missingDep := json.RawMessage(`{"name":"Book","price":29.99,"category":"books","discount":20}`)
	ok, err = r.ValidateObjectMetadata("product", missingDep)
	if err != nil {
		t.Fatalf("validate error: %v", err)
	}
	if ok {
		t.Error("expected missing dependent field to fail validation")
	}

	good := json.RawMessage(`{"name":"Pen","price":1.5,"category":"books"}`)
	ok, err = r.ValidateObjectMetadata("product", good)
	if err != nil {
		t.Fatalf("validate error: %v", err)
	}
	if !ok {
		t.Error("expected valid metadata to pass")
	}
}

func TestCreateSchemaIdempotentOnIdenticalBody(t *testing.T) {
	r := newTestRegistry()
	id1, err := r.CreateSchema(context.Background(), "person", `{"type":"object"}`, "")
	if err != nil {
		t.Fatalf("CreateSchema failed: %v", err)
	}
	id2, err := r.CreateSchema(context.Background(), "person", `{"type":"object"}`, "")
	if err != nil {
		t.Fatalf("CreateSchema (re-register) failed: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("expected re-registering identical body to return the same id, got %d and %d", id1, id2)
	}
}

func TestLoadPopulatesFromPersistedRows(t *testing.T) {
	fs := newFakeStore()
	seeded := NewRegistry(fs)
	if _, err := seeded.CreateSchema(context.Background(), "person", `{"type":"object"}`, "a person"); err != nil {
		t.Fatalf("seed CreateSchema failed: %v", err)
	}

	reloaded := NewRegistry(fs)
	if err := reloaded.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	entry, ok := reloaded.Get("person")
	if !ok {
		t.Fatal("expected person schema to survive reload")
	}
	if entry.Description != "a person" {
		t.Errorf("expected description to survive reload, got %q", entry.Description)
	}

	ok, err := reloaded.ValidateObjectMetadata("person", json.RawMessage(`{}`))
	if err != nil || !ok {
		t.Fatalf("reloaded schema should still validate, got ok=%v err=%v", ok, err)
	}
}
