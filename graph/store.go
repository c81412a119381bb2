// Package graph implements the object/edge/metadata-history data model and
// the MVCC read/write protocol described in spec.md §4.4: create and update
// objects and edges, append-only metadata history, and the four
// ConsistencyMode read predicates.
//
// Grounded on bundoc's Collection, which sits on top of a storage/MVCC
// layer it does not implement itself (storage.Pager, mvcc.SnapshotManager);
// this package plays the same role against store.Engine.
package graph

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kartikbazzad/entgraph/graphErr"
	"github.com/kartikbazzad/entgraph/mvcc"
	"github.com/kartikbazzad/entgraph/store"
)

// Object is the domain-level view of an objects row plus its currently
// visible metadata.
type Object struct {
	ID        int64
	TypeName  string
	Owner     string
	Metadata  json.RawMessage
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Edge is the domain-level view of a triples row.
type Edge struct {
	ID        int64
	FromType  string
	FromID    int64
	Relation  string
	ToType    string
	ToID      int64
	Metadata  json.RawMessage
	Owner     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

var emptyObject = json.RawMessage(`{}`)

// Store implements the graph's MVCC read/write protocol against a
// store.Engine. Schema validation is the service façade's job (spec.md
// §4.4.1): Store never re-validates metadata against a registered schema.
type Store struct {
	engine store.Engine
}

// NewStore returns a Store backed by engine.
func NewStore(engine store.Engine) *Store {
	return &Store{engine: engine}
}

func normalizeMetadata(metadata json.RawMessage) json.RawMessage {
	if len(metadata) == 0 || string(metadata) == "null" {
		return emptyObject
	}
	return metadata
}

// CreateObject inserts a new object row owned by principal and its first
// metadata version, all within one transaction, and returns the freshly
// minted revision.
func (s *Store) CreateObject(ctx context.Context, principal, typeName string, metadata json.RawMessage) (Object, mvcc.Revision, error) {
	metadata = normalizeMetadata(metadata)

	tx, err := s.engine.OpenTransaction(ctx)
	if err != nil {
		return Object{}, mvcc.Revision{}, graphErr.Internal("open transaction: %v", err)
	}

	now := time.Now().UTC()
	objID, err := tx.InsertObject(store.ObjectRow{
		TypeName:   typeName,
		Owner:      principal,
		CreatedXid: tx.ID(),
		DeletedXid: mvcc.MaxTxID,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		_ = tx.Rollback()
		return Object{}, mvcc.Revision{}, graphErr.Internal("insert object: %v", err)
	}

	if _, err := tx.InsertMetadataVersion(store.MetadataVersionRow{
		ObjectID:   objID,
		Metadata:   metadata,
		CreatedXid: tx.ID(),
		DeletedXid: mvcc.MaxTxID,
	}); err != nil {
		_ = tx.Rollback()
		return Object{}, mvcc.Revision{}, graphErr.Internal("insert metadata version: %v", err)
	}

	tid := tx.ID()
	if err := tx.Commit(); err != nil {
		return Object{}, mvcc.Revision{}, graphErr.Internal("commit: %v", err)
	}

	rev := mvcc.Revision{Snapshot: tx.Snapshot(), Xid: &tid}
	obj := Object{ID: objID, TypeName: typeName, Owner: principal, Metadata: metadata, CreatedAt: now, UpdatedAt: now}
	return obj, rev, nil
}

// UpdateObject performs the ownership check, then closes the current
// metadata version and opens a new one in a single transaction (spec.md
// §4.4.2). The creator is never reassigned even though the update touches
// updated_at.
func (s *Store) UpdateObject(ctx context.Context, principal string, objectID int64, metadata json.RawMessage) (Object, mvcc.Revision, error) {
	row, ok, err := s.engine.GetObjectRow(ctx, objectID)
	if err != nil {
		return Object{}, mvcc.Revision{}, graphErr.Internal("get object: %v", err)
	}
	if !ok {
		return Object{}, mvcc.Revision{}, graphErr.NotFound("object %d not found", objectID)
	}
	if row.Owner != principal {
		return Object{}, mvcc.Revision{}, graphErr.PermissionDenied("principal %q does not own object %d", principal, objectID)
	}

	metadata = normalizeMetadata(metadata)

	tx, err := s.engine.OpenTransaction(ctx)
	if err != nil {
		return Object{}, mvcc.Revision{}, graphErr.Internal("open transaction: %v", err)
	}

	if err := tx.CloseOpenMetadataVersion(objectID, tx.ID()); err != nil {
		_ = tx.Rollback()
		return Object{}, mvcc.Revision{}, graphErr.Internal("close metadata version: %v", err)
	}
	if _, err := tx.InsertMetadataVersion(store.MetadataVersionRow{
		ObjectID:   objectID,
		Metadata:   metadata,
		CreatedXid: tx.ID(),
		DeletedXid: mvcc.MaxTxID,
	}); err != nil {
		_ = tx.Rollback()
		return Object{}, mvcc.Revision{}, graphErr.Internal("insert metadata version: %v", err)
	}
	if err := tx.TouchObjectUpdatedAt(objectID); err != nil {
		_ = tx.Rollback()
		return Object{}, mvcc.Revision{}, graphErr.Internal("touch object: %v", err)
	}

	tid := tx.ID()
	if err := tx.Commit(); err != nil {
		return Object{}, mvcc.Revision{}, graphErr.Internal("commit: %v", err)
	}

	rev := mvcc.Revision{Snapshot: tx.Snapshot(), Xid: &tid}
	obj := Object{ID: objectID, TypeName: row.TypeName, Owner: row.Owner, Metadata: metadata, CreatedAt: row.CreatedAt, UpdatedAt: time.Now().UTC()}
	return obj, rev, nil
}

// GetObject fetches the object row and its currently visible metadata
// version under mode. Both lookups use the same mode.
func (s *Store) GetObject(ctx context.Context, id int64, mode ConsistencyMode) (Object, error) {
	row, ok, err := s.engine.GetObjectRow(ctx, id)
	if err != nil {
		return Object{}, graphErr.Internal("get object: %v", err)
	}
	if !ok {
		return Object{}, graphErr.NotFound("object %d not found", id)
	}

	var p mvcc.TransactionId
	if !mode.IsMinimizeLatency() {
		p, err = s.resolvePoint(ctx, mode)
		if err != nil {
			return Object{}, err
		}
		if !pointVisible(row.CreatedXid, row.DeletedXid, p) {
			return Object{}, graphErr.NotFound("object %d not visible at requested consistency", id)
		}
	}

	versions, err := s.engine.ListMetadataVersions(ctx, id)
	if err != nil {
		return Object{}, graphErr.Internal("list metadata versions: %v", err)
	}

	metaRow, ok := selectVersion(versions, mode, p)
	if !ok {
		return Object{}, graphErr.NotFound("no metadata version visible for object %d", id)
	}

	return Object{
		ID:        row.ID,
		TypeName:  row.TypeName,
		Owner:     row.Owner,
		Metadata:  metaRow.Metadata,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

// ObjectTypeName returns the type_name of objectID without applying any
// consistency predicate, so the service façade can look up which schema to
// validate update metadata against before opening a write transaction.
func (s *Store) ObjectTypeName(ctx context.Context, id int64) (string, error) {
	row, ok, err := s.engine.GetObjectRow(ctx, id)
	if err != nil {
		return "", graphErr.Internal("get object: %v", err)
	}
	if !ok {
		return "", graphErr.NotFound("object %d not found", id)
	}
	return row.TypeName, nil
}

// resolvePoint computes the transaction-id point a non-MinimizeLatency mode
// reads against, consulting the engine's current committed tid for Full and
// AtLeastAsFresh.
func (s *Store) resolvePoint(ctx context.Context, mode ConsistencyMode) (mvcc.TransactionId, error) {
	if mode.kind == modeExactlyAt {
		return mode.point(0), nil
	}
	current, err := s.engine.CurrentTid(ctx)
	if err != nil {
		return 0, graphErr.Internal("current tid: %v", err)
	}
	return mode.point(current), nil
}

// selectVersion picks the visible metadata version per mode: the highest
// created_xid for MinimizeLatency, or the single version whose
// [created_xid, deleted_xid) interval contains p (already resolved by the
// caller via resolvePoint).
func selectVersion(versions []store.MetadataVersionRow, mode ConsistencyMode, p mvcc.TransactionId) (store.MetadataVersionRow, bool) {
	if mode.IsMinimizeLatency() {
		var best store.MetadataVersionRow
		found := false
		for _, v := range versions {
			if !found || v.CreatedXid > best.CreatedXid {
				best = v
				found = true
			}
		}
		return best, found
	}

	for _, v := range versions {
		if pointVisible(v.CreatedXid, v.DeletedXid, p) {
			return v, true
		}
	}
	return store.MetadataVersionRow{}, false
}

// CreateEdge inserts a new edge row (no referential-integrity check on
// endpoints; dangling edges are allowed).
func (s *Store) CreateEdge(ctx context.Context, principal, fromType string, fromID int64, relation, toType string, toID int64, metadata json.RawMessage) (Edge, mvcc.Revision, error) {
	metadata = normalizeMetadata(metadata)

	tx, err := s.engine.OpenTransaction(ctx)
	if err != nil {
		return Edge{}, mvcc.Revision{}, graphErr.Internal("open transaction: %v", err)
	}

	now := time.Now().UTC()
	edgeID, err := tx.InsertEdge(store.EdgeRow{
		FromType:   fromType,
		FromID:     fromID,
		Relation:   relation,
		ToType:     toType,
		ToID:       toID,
		Metadata:   metadata,
		Owner:      principal,
		CreatedXid: tx.ID(),
		DeletedXid: mvcc.MaxTxID,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		_ = tx.Rollback()
		return Edge{}, mvcc.Revision{}, graphErr.Internal("insert edge: %v", err)
	}

	tid := tx.ID()
	if err := tx.Commit(); err != nil {
		return Edge{}, mvcc.Revision{}, graphErr.Internal("commit: %v", err)
	}

	rev := mvcc.Revision{Snapshot: tx.Snapshot(), Xid: &tid}
	edge := Edge{
		ID: edgeID, FromType: fromType, FromID: fromID, Relation: relation,
		ToType: toType, ToID: toID, Metadata: metadata, Owner: principal,
		CreatedAt: now, UpdatedAt: now,
	}
	return edge, rev, nil
}

// UpdateEdge overwrites an edge's metadata in place. Edges carry no
// metadata history (spec.md §4.4.3), so there is no version chain to
// maintain here, only the ownership check and a fresh revision.
func (s *Store) UpdateEdge(ctx context.Context, principal string, edgeID int64, metadata json.RawMessage) (Edge, mvcc.Revision, error) {
	row, ok, err := s.engine.GetEdgeRow(ctx, edgeID)
	if err != nil {
		return Edge{}, mvcc.Revision{}, graphErr.Internal("get edge: %v", err)
	}
	if !ok {
		return Edge{}, mvcc.Revision{}, graphErr.NotFound("edge %d not found", edgeID)
	}
	if row.Owner != principal {
		return Edge{}, mvcc.Revision{}, graphErr.PermissionDenied("principal %q does not own edge %d", principal, edgeID)
	}

	metadata = normalizeMetadata(metadata)

	tx, err := s.engine.OpenTransaction(ctx)
	if err != nil {
		return Edge{}, mvcc.Revision{}, graphErr.Internal("open transaction: %v", err)
	}
	if err := tx.UpdateEdgeMetadata(edgeID, metadata); err != nil {
		_ = tx.Rollback()
		return Edge{}, mvcc.Revision{}, graphErr.Internal("update edge metadata: %v", err)
	}

	tid := tx.ID()
	if err := tx.Commit(); err != nil {
		return Edge{}, mvcc.Revision{}, graphErr.Internal("commit: %v", err)
	}

	rev := mvcc.Revision{Snapshot: tx.Snapshot(), Xid: &tid}
	edge := Edge{
		ID: row.ID, FromType: row.FromType, FromID: row.FromID, Relation: row.Relation,
		ToType: row.ToType, ToID: row.ToID, Metadata: metadata, Owner: row.Owner,
		CreatedAt: row.CreatedAt, UpdatedAt: time.Now().UTC(),
	}
	return edge, rev, nil
}

// GetEdge returns the first matching edge (limit 1) visible under mode.
func (s *Store) GetEdge(ctx context.Context, fromID int64, relation string, mode ConsistencyMode) (Edge, error) {
	edges, err := s.GetEdges(ctx, fromID, relation, mode)
	if err != nil {
		return Edge{}, err
	}
	if len(edges) == 0 {
		return Edge{}, graphErr.NotFound("no edge %q from object %d visible at requested consistency", relation, fromID)
	}
	return edges[0], nil
}

// GetEdges returns every matching edge visible under mode.
func (s *Store) GetEdges(ctx context.Context, fromID int64, relation string, mode ConsistencyMode) ([]Edge, error) {
	rows, err := s.engine.ListEdgesByFromRelation(ctx, fromID, relation)
	if err != nil {
		return nil, graphErr.Internal("list edges: %v", err)
	}

	var p mvcc.TransactionId
	if !mode.IsMinimizeLatency() {
		p, err = s.resolvePoint(ctx, mode)
		if err != nil {
			return nil, err
		}
	}

	out := make([]Edge, 0, len(rows))
	for _, row := range rows {
		if !mode.IsMinimizeLatency() && !pointVisible(row.CreatedXid, row.DeletedXid, p) {
			continue
		}
		out = append(out, Edge{
			ID: row.ID, FromType: row.FromType, FromID: row.FromID, Relation: row.Relation,
			ToType: row.ToType, ToID: row.ToID, Metadata: row.Metadata, Owner: row.Owner,
			CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt,
		})
	}
	return out, nil
}
