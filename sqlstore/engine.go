// Package sqlstore is the reference implementation of store.Engine, the
// transactional backend spec.md §1 treats as an external collaborator: it
// exposes 64-bit transaction identifiers and an xmin:xmax:xip_list snapshot,
// backed by modernc.org/sqlite the same way docdb and tinySQL use
// that driver for embedded relational storage.
//
// Writers to the same engine instance serialize through a single in-process
// mutex held for the lifetime of one write transaction: because no two
// writes ever overlap, the resulting snapshot history never has a non-empty
// xip_list, which trivially satisfies the "no overlapping [created_xid,
// deleted_xid) intervals" requirement spec.md §4.4.2 places on writer
// conflict handling.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kartikbazzad/entgraph/mvcc"
	"github.com/kartikbazzad/entgraph/store"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS schemata (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	type_name TEXT NOT NULL UNIQUE,
	schema TEXT NOT NULL,
	description TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS objects (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	type TEXT NOT NULL,
	owner TEXT NOT NULL,
	created_xid INTEGER NOT NULL,
	deleted_xid INTEGER NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS object_metadata_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	object_id INTEGER NOT NULL REFERENCES objects(id),
	metadata TEXT NOT NULL,
	created_xid INTEGER NOT NULL,
	deleted_xid INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS triples (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	from_type TEXT NOT NULL,
	from_id INTEGER NOT NULL,
	relation TEXT NOT NULL,
	to_type TEXT NOT NULL,
	to_id INTEGER NOT NULL,
	metadata TEXT NOT NULL,
	owner TEXT NOT NULL,
	created_xid INTEGER NOT NULL,
	deleted_xid INTEGER NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS relation_tuple_transaction (
	xid INTEGER PRIMARY KEY,
	snapshot TEXT NOT NULL,
	metadata TEXT
);

CREATE INDEX IF NOT EXISTS idx_object_metadata_history_object ON object_metadata_history(object_id);
CREATE INDEX IF NOT EXISTS idx_triples_from_relation ON triples(from_id, relation);
`

// Engine implements store.Engine over a single SQLite database handle.
type Engine struct {
	db *sql.DB

	writeMu       sync.Mutex // held for the lifetime of one write transaction
	readMu        sync.Mutex // protects nextTid/lastCommitted bookkeeping
	nextTid       mvcc.TransactionId
	lastCommitted mvcc.TransactionId
}

// Open creates (or reuses) a SQLite database at dsn and ensures the schema
// exists. Pass ":memory:" for an ephemeral engine, as the test suite does.
// On a reused database the transaction id counter resumes after the highest
// xid already recorded in relation_tuple_transaction.
func Open(ctx context.Context, dsn string) (*Engine, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", dsn, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes at the connection level anyway
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: create schema: %w", err)
	}
	var maxXid int64
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(xid), 0) FROM relation_tuple_transaction`).Scan(&maxXid); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: read last transaction id: %w", err)
	}
	return &Engine{db: db, nextTid: mvcc.TransactionId(maxXid), lastCommitted: mvcc.TransactionId(maxXid)}, nil
}

// Close releases the underlying database handle.
func (e *Engine) Close() error {
	return e.db.Close()
}

// Ping reports whether the underlying database handle is still usable; the
// pool package uses it as its health check.
func (e *Engine) Ping(ctx context.Context) error {
	return e.db.PingContext(ctx)
}

// OpenTransaction assigns the next transaction id, computes the snapshot
// visible at that instant, and begins the underlying SQL transaction that
// every subsequent Tx method runs against.
func (e *Engine) OpenTransaction(ctx context.Context) (store.Tx, error) {
	e.writeMu.Lock()

	e.readMu.Lock()
	e.nextTid++
	tid := e.nextTid
	e.readMu.Unlock()

	// Because writers are globally serialized, the snapshot visible "as of"
	// this assignment always has an empty xip_list: everything with a lower
	// tid has already committed or rolled back.
	snap := mvcc.Snapshot{Xmin: tid + 1, Xmax: tid + 1}

	sqlTx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		e.writeMu.Unlock()
		return nil, fmt.Errorf("sqlstore: begin: %w", err)
	}

	if _, err := sqlTx.ExecContext(ctx,
		`INSERT INTO relation_tuple_transaction (xid, snapshot) VALUES (?, ?)`,
		int64(tid), snap.Format(),
	); err != nil {
		sqlTx.Rollback()
		e.writeMu.Unlock()
		return nil, fmt.Errorf("sqlstore: record transaction: %w", err)
	}

	return &tx{engine: e, sqlTx: sqlTx, id: tid, snapshot: snap}, nil
}

// CurrentTid returns the highest transaction id known to be committed, the
// point FullConsistency and (per the accepted open-question resolution)
// AtLeastAsFresh reads are evaluated against.
func (e *Engine) CurrentTid(ctx context.Context) (mvcc.TransactionId, error) {
	e.readMu.Lock()
	defer e.readMu.Unlock()
	return e.lastCommitted, nil
}

func (e *Engine) GetObjectRow(ctx context.Context, id int64) (store.ObjectRow, bool, error) {
	row := e.db.QueryRowContext(ctx,
		`SELECT id, type, owner, created_xid, deleted_xid, created_at, updated_at FROM objects WHERE id = ?`, id)
	var out store.ObjectRow
	var createdXid, deletedXid int64
	var createdAt, updatedAt string
	if err := row.Scan(&out.ID, &out.TypeName, &out.Owner, &createdXid, &deletedXid, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return store.ObjectRow{}, false, nil
		}
		return store.ObjectRow{}, false, err
	}
	out.CreatedXid = mvcc.TransactionId(createdXid)
	out.DeletedXid = mvcc.TransactionId(deletedXid)
	out.CreatedAt = parseTime(createdAt)
	out.UpdatedAt = parseTime(updatedAt)
	return out, true, nil
}

func (e *Engine) GetObjectOwner(ctx context.Context, id int64) (string, bool, error) {
	var owner string
	err := e.db.QueryRowContext(ctx, `SELECT owner FROM objects WHERE id = ?`, id).Scan(&owner)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return owner, true, nil
}

func (e *Engine) ListMetadataVersions(ctx context.Context, objectID int64) ([]store.MetadataVersionRow, error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT id, object_id, metadata, created_xid, deleted_xid FROM object_metadata_history WHERE object_id = ?`, objectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.MetadataVersionRow
	for rows.Next() {
		var v store.MetadataVersionRow
		var metadata string
		var createdXid, deletedXid int64
		if err := rows.Scan(&v.ID, &v.ObjectID, &metadata, &createdXid, &deletedXid); err != nil {
			return nil, err
		}
		v.Metadata = json.RawMessage(metadata)
		v.CreatedXid = mvcc.TransactionId(createdXid)
		v.DeletedXid = mvcc.TransactionId(deletedXid)
		out = append(out, v)
	}
	return out, rows.Err()
}

func (e *Engine) GetEdgeRow(ctx context.Context, id int64) (store.EdgeRow, bool, error) {
	row := e.db.QueryRowContext(ctx,
		`SELECT id, from_type, from_id, relation, to_type, to_id, metadata, owner, created_xid, deleted_xid, created_at, updated_at
		 FROM triples WHERE id = ?`, id)
	return scanEdgeRow(row)
}

func (e *Engine) ListEdgesByFromRelation(ctx context.Context, fromID int64, relation string) ([]store.EdgeRow, error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT id, from_type, from_id, relation, to_type, to_id, metadata, owner, created_xid, deleted_xid, created_at, updated_at
		 FROM triples WHERE from_id = ? AND relation = ?`, fromID, relation)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.EdgeRow
	for rows.Next() {
		edge, _, err := scanEdgeRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, edge)
	}
	return out, rows.Err()
}

// UpsertSchema inserts a schemata row for typeName, or updates its body and
// description in place if one is already registered.
func (e *Engine) UpsertSchema(ctx context.Context, typeName, body, description string) (store.SchemaRow, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := e.db.ExecContext(ctx,
		`INSERT INTO schemata (type_name, schema, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(type_name) DO UPDATE SET schema = excluded.schema, description = excluded.description, updated_at = excluded.updated_at`,
		typeName, body, description, now, now,
	)
	if err != nil {
		return store.SchemaRow{}, err
	}
	row, ok, err := e.GetSchemaByType(ctx, typeName)
	if err != nil {
		return store.SchemaRow{}, err
	}
	if !ok {
		return store.SchemaRow{}, fmt.Errorf("sqlstore: upsert schema %q: row missing after write", typeName)
	}
	return row, nil
}

func (e *Engine) GetSchemaByType(ctx context.Context, typeName string) (store.SchemaRow, bool, error) {
	row := e.db.QueryRowContext(ctx,
		`SELECT id, type_name, schema, description, created_at, updated_at FROM schemata WHERE type_name = ?`, typeName)
	var out store.SchemaRow
	var createdAt, updatedAt string
	if err := row.Scan(&out.ID, &out.TypeName, &out.Body, &out.Description, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return store.SchemaRow{}, false, nil
		}
		return store.SchemaRow{}, false, err
	}
	out.CreatedAt = parseTime(createdAt)
	out.UpdatedAt = parseTime(updatedAt)
	return out, true, nil
}

func (e *Engine) ListSchemas(ctx context.Context) ([]store.SchemaRow, error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT id, type_name, schema, description, created_at, updated_at FROM schemata`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.SchemaRow
	for rows.Next() {
		var r store.SchemaRow
		var createdAt, updatedAt string
		if err := rows.Scan(&r.ID, &r.TypeName, &r.Body, &r.Description, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		r.CreatedAt = parseTime(createdAt)
		r.UpdatedAt = parseTime(updatedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEdgeRow(row rowScanner) (store.EdgeRow, bool, error) {
	var out store.EdgeRow
	var metadata string
	var createdXid, deletedXid int64
	var createdAt, updatedAt string
	err := row.Scan(&out.ID, &out.FromType, &out.FromID, &out.Relation, &out.ToType, &out.ToID,
		&metadata, &out.Owner, &createdXid, &deletedXid, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return store.EdgeRow{}, false, nil
	}
	if err != nil {
		return store.EdgeRow{}, false, err
	}
	out.Metadata = json.RawMessage(metadata)
	out.CreatedXid = mvcc.TransactionId(createdXid)
	out.DeletedXid = mvcc.TransactionId(deletedXid)
	out.CreatedAt = parseTime(createdAt)
	out.UpdatedAt = parseTime(updatedAt)
	return out, true, nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
