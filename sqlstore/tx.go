package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/kartikbazzad/entgraph/mvcc"
	"github.com/kartikbazzad/entgraph/store"
)

// tx implements store.Tx over a single *sql.Tx. It is created holding
// engine.writeMu and releases it on Commit or Rollback, whichever comes
// first; calling both is safe, the second is a no-op.
type tx struct {
	engine   *Engine
	sqlTx    *sql.Tx
	id       mvcc.TransactionId
	snapshot mvcc.Snapshot
	done     bool
}

func (t *tx) ID() mvcc.TransactionId  { return t.id }
func (t *tx) Snapshot() mvcc.Snapshot { return t.snapshot }

func (t *tx) InsertObject(row store.ObjectRow) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := t.sqlTx.ExecContext(context.Background(),
		`INSERT INTO objects (type, owner, created_xid, deleted_xid, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		row.TypeName, row.Owner, int64(row.CreatedXid), int64(row.DeletedXid), now, now,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (t *tx) InsertMetadataVersion(row store.MetadataVersionRow) (int64, error) {
	metadata := row.Metadata
	if metadata == nil {
		metadata = json.RawMessage("{}")
	}
	res, err := t.sqlTx.ExecContext(context.Background(),
		`INSERT INTO object_metadata_history (object_id, metadata, created_xid, deleted_xid) VALUES (?, ?, ?, ?)`,
		row.ObjectID, string(metadata), int64(row.CreatedXid), int64(row.DeletedXid),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (t *tx) CloseOpenMetadataVersion(objectID int64, deletedXid mvcc.TransactionId) error {
	_, err := t.sqlTx.ExecContext(context.Background(),
		`UPDATE object_metadata_history SET deleted_xid = ? WHERE object_id = ? AND deleted_xid = ?`,
		int64(deletedXid), objectID, int64(mvcc.MaxTxID),
	)
	return err
}

func (t *tx) TouchObjectUpdatedAt(objectID int64) error {
	_, err := t.sqlTx.ExecContext(context.Background(),
		`UPDATE objects SET updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), objectID,
	)
	return err
}

func (t *tx) InsertEdge(row store.EdgeRow) (int64, error) {
	metadata := row.Metadata
	if metadata == nil {
		metadata = json.RawMessage("{}")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := t.sqlTx.ExecContext(context.Background(),
		`INSERT INTO triples (from_type, from_id, relation, to_type, to_id, metadata, owner, created_xid, deleted_xid, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.FromType, row.FromID, row.Relation, row.ToType, row.ToID, string(metadata), row.Owner,
		int64(row.CreatedXid), int64(row.DeletedXid), now, now,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (t *tx) UpdateEdgeMetadata(edgeID int64, metadata json.RawMessage) error {
	_, err := t.sqlTx.ExecContext(context.Background(),
		`UPDATE triples SET metadata = ?, updated_at = ? WHERE id = ?`,
		string(metadata), time.Now().UTC().Format(time.RFC3339Nano), edgeID,
	)
	return err
}

func (t *tx) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	defer t.engine.writeMu.Unlock()

	if err := t.sqlTx.Commit(); err != nil {
		return err
	}
	t.engine.readMu.Lock()
	if t.id > t.engine.lastCommitted {
		t.engine.lastCommitted = t.id
	}
	t.engine.readMu.Unlock()
	return nil
}

func (t *tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	defer t.engine.writeMu.Unlock()
	return t.sqlTx.Rollback()
}
