package graph

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/kartikbazzad/entgraph/mvcc"
	"github.com/kartikbazzad/entgraph/store"
)

// memEngine is a minimal in-memory store.Engine used only to exercise
// graph.Store's MVCC logic in isolation from sqlstore.
type memEngine struct {
	mu         sync.Mutex
	nextTid    mvcc.TransactionId
	inProgress map[mvcc.TransactionId]bool
	lastCommit mvcc.TransactionId

	objects         map[int64]store.ObjectRow
	metadataByObj   map[int64][]store.MetadataVersionRow
	edges           map[int64]store.EdgeRow
	nextObjID       int64
	nextEdgeID      int64
	nextMetaID      int64
}

func newMemEngine() *memEngine {
	return &memEngine{
		inProgress:    make(map[mvcc.TransactionId]bool),
		objects:       make(map[int64]store.ObjectRow),
		metadataByObj: make(map[int64][]store.MetadataVersionRow),
		edges:         make(map[int64]store.EdgeRow),
	}
}

func (e *memEngine) snapshotLocked() mvcc.Snapshot {
	xmax := e.nextTid + 1
	xip := make([]mvcc.TransactionId, 0, len(e.inProgress))
	for xid := range e.inProgress {
		xip = append(xip, xid)
	}
	// sort
	for i := 1; i < len(xip); i++ {
		for j := i; j > 0 && xip[j-1] > xip[j]; j-- {
			xip[j-1], xip[j] = xip[j], xip[j-1]
		}
	}
	xmin := xmax
	if len(xip) > 0 {
		xmin = xip[0]
	}
	return mvcc.Snapshot{Xmin: xmin, Xmax: xmax, XipList: xip}
}

type memTx struct {
	e        *memEngine
	id       mvcc.TransactionId
	snapshot mvcc.Snapshot
	done     bool
}

func (e *memEngine) OpenTransaction(ctx context.Context) (store.Tx, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextTid++
	tid := e.nextTid
	e.inProgress[tid] = true
	snap := e.snapshotLocked()
	return &memTx{e: e, id: tid, snapshot: snap}, nil
}

func (tx *memTx) ID() mvcc.TransactionId     { return tx.id }
func (tx *memTx) Snapshot() mvcc.Snapshot    { return tx.snapshot }

func (tx *memTx) InsertObject(row store.ObjectRow) (int64, error) {
	tx.e.mu.Lock()
	defer tx.e.mu.Unlock()
	tx.e.nextObjID++
	row.ID = tx.e.nextObjID
	tx.e.objects[row.ID] = row
	return row.ID, nil
}

func (tx *memTx) InsertMetadataVersion(row store.MetadataVersionRow) (int64, error) {
	tx.e.mu.Lock()
	defer tx.e.mu.Unlock()
	tx.e.nextMetaID++
	row.ID = tx.e.nextMetaID
	tx.e.metadataByObj[row.ObjectID] = append(tx.e.metadataByObj[row.ObjectID], row)
	return row.ID, nil
}

func (tx *memTx) CloseOpenMetadataVersion(objectID int64, deletedXid mvcc.TransactionId) error {
	tx.e.mu.Lock()
	defer tx.e.mu.Unlock()
	versions := tx.e.metadataByObj[objectID]
	for i := range versions {
		if versions[i].DeletedXid == mvcc.MaxTxID {
			versions[i].DeletedXid = deletedXid
		}
	}
	return nil
}

func (tx *memTx) TouchObjectUpdatedAt(objectID int64) error {
	tx.e.mu.Lock()
	defer tx.e.mu.Unlock()
	row := tx.e.objects[objectID]
	row.UpdatedAt = time.Now().UTC()
	tx.e.objects[objectID] = row
	return nil
}

func (tx *memTx) InsertEdge(row store.EdgeRow) (int64, error) {
	tx.e.mu.Lock()
	defer tx.e.mu.Unlock()
	tx.e.nextEdgeID++
	row.ID = tx.e.nextEdgeID
	tx.e.edges[row.ID] = row
	return row.ID, nil
}

func (tx *memTx) UpdateEdgeMetadata(edgeID int64, metadata json.RawMessage) error {
	tx.e.mu.Lock()
	defer tx.e.mu.Unlock()
	row, ok := tx.e.edges[edgeID]
	if !ok {
		return nil
	}
	row.Metadata = metadata
	row.UpdatedAt = time.Now().UTC()
	tx.e.edges[edgeID] = row
	return nil
}

func (tx *memTx) Commit() error {
	tx.e.mu.Lock()
	defer tx.e.mu.Unlock()
	if tx.done {
		return nil
	}
	delete(tx.e.inProgress, tx.id)
	if tx.id > tx.e.lastCommit {
		tx.e.lastCommit = tx.id
	}
	tx.done = true
	return nil
}

func (tx *memTx) Rollback() error {
	tx.e.mu.Lock()
	defer tx.e.mu.Unlock()
	if tx.done {
		return nil
	}
	delete(tx.e.inProgress, tx.id)
	tx.done = true
	return nil
}

func (e *memEngine) CurrentTid(ctx context.Context) (mvcc.TransactionId, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastCommit, nil
}

func (e *memEngine) GetObjectRow(ctx context.Context, id int64) (store.ObjectRow, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	row, ok := e.objects[id]
	return row, ok, nil
}

func (e *memEngine) GetObjectOwner(ctx context.Context, id int64) (string, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	row, ok := e.objects[id]
	return row.Owner, ok, nil
}

func (e *memEngine) ListMetadataVersions(ctx context.Context, objectID int64) ([]store.MetadataVersionRow, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]store.MetadataVersionRow, len(e.metadataByObj[objectID]))
	copy(out, e.metadataByObj[objectID])
	return out, nil
}

func (e *memEngine) GetEdgeRow(ctx context.Context, id int64) (store.EdgeRow, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	row, ok := e.edges[id]
	return row, ok, nil
}

func (e *memEngine) ListEdgesByFromRelation(ctx context.Context, fromID int64, relation string) ([]store.EdgeRow, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []store.EdgeRow
	for _, row := range e.edges {
		if row.FromID == fromID && row.Relation == relation {
			out = append(out, row)
		}
	}
	return out, nil
}

// The schema methods exist only to satisfy store.Engine; graph.Store never
// calls them.
func (e *memEngine) UpsertSchema(ctx context.Context, typeName, body, description string) (store.SchemaRow, error) {
	return store.SchemaRow{}, errors.New("memEngine: schemas not supported")
}

func (e *memEngine) GetSchemaByType(ctx context.Context, typeName string) (store.SchemaRow, bool, error) {
	return store.SchemaRow{}, false, nil
}

func (e *memEngine) ListSchemas(ctx context.Context) ([]store.SchemaRow, error) {
	return nil, nil
}
