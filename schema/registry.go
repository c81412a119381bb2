// Package schema implements the JSON-Schema registry: validating that a
// candidate schema is itself well-formed, persisting it keyed by type_name,
// and validating object metadata against the schema registered for a type.
//
// Grounded on bundoc's Collection.SetSchema, which compiles and persists a
// gojsonschema.Schema per collection; this package generalizes that to a
// standalone registry addressed by type_name instead of collection identity,
// backed by the schemata table sqlstore owns rather than bundoc's own
// collection metadata page.
package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/kartikbazzad/entgraph/store"
)

var typeNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// ErrInvalidArgument is wrapped by every validation failure in this package
// so callers can map it to the service façade's InvalidArgument taxonomy
// with errors.Is.
var ErrInvalidArgument = fmt.Errorf("invalid argument")

// SchemaStore is the persistence this registry needs, the schema-table slice
// of store.Engine's interface.
type SchemaStore interface {
	UpsertSchema(ctx context.Context, typeName, body, description string) (store.SchemaRow, error)
	ListSchemas(ctx context.Context) ([]store.SchemaRow, error)
}

// Entry is a single registered schema.
type Entry store.SchemaRow

// Registry stores schemas keyed by type_name and validates metadata against
// them. It is safe for concurrent use. The in-memory map is a read cache
// over the engine's schemata table: CreateSchema writes through to it
// before updating the cache, and Load populates the cache from it at
// startup so registrations survive a process restart.
type Registry struct {
	engine SchemaStore

	mu     sync.RWMutex
	byType map[string]*compiledEntry
}

type compiledEntry struct {
	Entry
	compiled *gojsonschema.Schema
}

// NewRegistry returns a registry backed by engine. Call Load to populate it
// with any schemas a previous process already persisted.
func NewRegistry(engine SchemaStore) *Registry {
	return &Registry{engine: engine, byType: make(map[string]*compiledEntry)}
}

// Load reads every persisted schema from the engine, compiles it, and
// populates the in-memory cache. Intended to run once at startup.
func (r *Registry) Load(ctx context.Context) error {
	rows, err := r.engine.ListSchemas(ctx)
	if err != nil {
		return fmt.Errorf("schema: load persisted schemas: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range rows {
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(row.Body))
		if err != nil {
			return fmt.Errorf("schema: compile persisted schema %q: %w", row.TypeName, err)
		}
		r.byType[row.TypeName] = &compiledEntry{Entry: Entry(row), compiled: compiled}
	}
	return nil
}

// CreateSchema validates type_name and body, compiles body as a JSON-Schema,
// persists it, and returns the assigned schema id.
//
// type_name must match ^[A-Za-z][A-Za-z0-9_]*$. Re-registering an identical
// body is a no-op that returns the existing id without writing through to
// the engine; registering a different body for an existing type_name
// replaces the stored schema in place and keeps its id.
func (r *Registry) CreateSchema(ctx context.Context, typeName, body, description string) (int64, error) {
	if typeName == "" || !typeNamePattern.MatchString(typeName) {
		return 0, fmt.Errorf("%w: type_name %q does not match ^[A-Za-z][A-Za-z0-9_]*$", ErrInvalidArgument, typeName)
	}

	var parsed interface{}
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return 0, fmt.Errorf("%w: schema not valid JSON: %v", ErrInvalidArgument, err)
	}

	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(body))
	if err != nil {
		return 0, fmt.Errorf("%w: invalid JSON Schema: %v", ErrInvalidArgument, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byType[typeName]; ok {
		if equal, _ := bodyEqual(existing.Body, body); equal {
			return existing.ID, nil
		}
	}

	row, err := r.engine.UpsertSchema(ctx, typeName, body, description)
	if err != nil {
		return 0, fmt.Errorf("schema: persist %q: %w", typeName, err)
	}

	r.byType[typeName] = &compiledEntry{Entry: Entry(row), compiled: compiled}
	return row.ID, nil
}

// ValidateObjectMetadata reports whether metadata conforms to the schema
// registered for typeName. If no schema is registered, typing is open and
// validation always succeeds.
func (r *Registry) ValidateObjectMetadata(typeName string, metadata json.RawMessage) (bool, error) {
	r.mu.RLock()
	entry, ok := r.byType[typeName]
	r.mu.RUnlock()
	if !ok {
		return true, nil
	}

	if len(metadata) == 0 {
		metadata = json.RawMessage("{}")
	}

	docLoader := gojsonschema.NewBytesLoader(metadata)
	result, err := entry.compiled.Validate(docLoader)
	if err != nil {
		return false, fmt.Errorf("schema validator internal error: %w", err)
	}
	return result.Valid(), nil
}

// Get returns the entry registered for typeName, if any.
func (r *Registry) Get(typeName string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.byType[typeName]
	if !ok {
		return Entry{}, false
	}
	return entry.Entry, true
}

// bodyEqual compares two schema JSON strings for semantic equivalence,
// ignoring key order and whitespace (mirrors bundoc's SchemaEqual).
func bodyEqual(a, b string) (bool, error) {
	if a == b {
		return true, nil
	}
	var va, vb interface{}
	if err := json.Unmarshal([]byte(a), &va); err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(b), &vb); err != nil {
		return false, err
	}
	return reflect.DeepEqual(va, vb), nil
}
