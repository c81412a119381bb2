// Package store defines the contract the graph store needs from an
// underlying transactional engine: assign 64-bit transaction ids, expose a
// parseable snapshot, and persist the five tables named in the wire spec.
// This is deliberately the only place graph.Store couples to storage, the
// same way bundoc's Collection only ever talks to storage.Pager /
// storage.BufferPool and never touches raw page bytes.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kartikbazzad/entgraph/mvcc"
)

// ObjectRow is the persisted row shape of the objects table.
type ObjectRow struct {
	ID         int64
	TypeName   string
	Owner      string
	CreatedXid mvcc.TransactionId
	DeletedXid mvcc.TransactionId
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// MetadataVersionRow is one entry of an object's append-only metadata
// history.
type MetadataVersionRow struct {
	ID         int64
	ObjectID   int64
	Metadata   json.RawMessage
	CreatedXid mvcc.TransactionId
	DeletedXid mvcc.TransactionId
}

// SchemaRow is the persisted row shape of the schemata table.
type SchemaRow struct {
	ID          int64
	TypeName    string
	Body        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// EdgeRow is the persisted row shape of the triples table.
type EdgeRow struct {
	ID         int64
	FromType   string
	FromID     int64
	Relation   string
	ToType     string
	ToID       int64
	Metadata   json.RawMessage
	Owner      string
	CreatedXid mvcc.TransactionId
	DeletedXid mvcc.TransactionId
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Tx is a single open write transaction. Every mutating method on Engine is
// only reachable through a Tx so statement order within one transaction is
// always the order the caller issued them.
type Tx interface {
	ID() mvcc.TransactionId
	Snapshot() mvcc.Snapshot

	InsertObject(row ObjectRow) (int64, error)
	InsertMetadataVersion(row MetadataVersionRow) (int64, error)
	CloseOpenMetadataVersion(objectID int64, deletedXid mvcc.TransactionId) error
	TouchObjectUpdatedAt(objectID int64) error

	InsertEdge(row EdgeRow) (int64, error)
	UpdateEdgeMetadata(edgeID int64, metadata json.RawMessage) error

	Commit() error
	Rollback() error
}

// Engine is the transactional store contract required by graph.Store. A
// conforming implementation exposes 64-bit transaction identifiers and a
// snapshot value parseable as xmin:xmax:xip_list (mvcc.Snapshot); sqlstore
// is the reference implementation, built on modernc.org/sqlite.
type Engine interface {
	// OpenTransaction assigns a new transaction id and returns it together
	// with the snapshot committed at that instant, atomically.
	OpenTransaction(ctx context.Context) (Tx, error)

	// CurrentTid is the point used as "current_tid" for FullConsistency
	// reads: the highest transaction id known to be committed.
	CurrentTid(ctx context.Context) (mvcc.TransactionId, error)

	GetObjectRow(ctx context.Context, id int64) (ObjectRow, bool, error)
	GetObjectOwner(ctx context.Context, id int64) (string, bool, error)
	ListMetadataVersions(ctx context.Context, objectID int64) ([]MetadataVersionRow, error)

	GetEdgeRow(ctx context.Context, id int64) (EdgeRow, bool, error)
	ListEdgesByFromRelation(ctx context.Context, fromID int64, relation string) ([]EdgeRow, error)

	// UpsertSchema inserts a new schemata row keyed by typeName, or updates
	// the existing one in place, and returns the persisted row.
	UpsertSchema(ctx context.Context, typeName, body, description string) (SchemaRow, error)
	GetSchemaByType(ctx context.Context, typeName string) (SchemaRow, bool, error)
	ListSchemas(ctx context.Context) ([]SchemaRow, error)
}
