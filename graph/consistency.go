package graph

import "github.com/kartikbazzad/entgraph/mvcc"

type modeKind int

const (
	modeFull modeKind = iota
	modeMinimizeLatency
	modeAtLeastAsFresh
	modeExactlyAt
)

// ConsistencyMode is a tagged variant over the four read modes the spec
// defines. Every read path dispatches on kind so the predicate shape stays
// a property of the mode rather than scattered across call sites.
type ConsistencyMode struct {
	kind     modeKind
	revision mvcc.Revision
}

// FullConsistency reads against the engine's current committed view.
func FullConsistency() ConsistencyMode { return ConsistencyMode{kind: modeFull} }

// MinimizeLatencyConsistency applies no visibility predicate: for metadata
// history it resolves to the highest created_xid version.
func MinimizeLatencyConsistency() ConsistencyMode { return ConsistencyMode{kind: modeMinimizeLatency} }

// AtLeastAsFresh reads at least as fresh as rev. The reference engine has no
// wait mechanism, so per the spec's accepted resolution this always falls
// through to FullConsistency's predicate.
func AtLeastAsFresh(rev mvcc.Revision) ConsistencyMode {
	return ConsistencyMode{kind: modeAtLeastAsFresh, revision: rev}
}

// ExactlyAt reads at the single point P = rev.Xid, the transaction that
// minted rev: a row is visible iff created_xid <= P < deleted_xid.
func ExactlyAt(rev mvcc.Revision) ConsistencyMode {
	return ConsistencyMode{kind: modeExactlyAt, revision: rev}
}

// IsMinimizeLatency reports whether m resolves to the "most recent write,
// no predicate" path.
func (m ConsistencyMode) IsMinimizeLatency() bool { return m.kind == modeMinimizeLatency }

// point returns the transaction-id point P that Full/AtLeastAsFresh/ExactlyAt
// compare rows against. currentTid is the engine's current committed tid,
// used for Full and (per the chosen open-question resolution) AtLeastAsFresh.
func (m ConsistencyMode) point(currentTid mvcc.TransactionId) mvcc.TransactionId {
	switch m.kind {
	case modeExactlyAt:
		// The write that minted this revision closed its predecessor version
		// with deleted_xid = Xid, not Snapshot.Xmax (which already looks past
		// the write, at the next not-yet-assigned id). Reading at P = Xid puts
		// the point immediately after the write itself, so the version it
		// just wrote is the one returned, not whatever came after it.
		if m.revision.Xid != nil {
			return *m.revision.Xid
		}
		return m.revision.Snapshot.Xmax
	default: // modeFull, modeAtLeastAsFresh
		return currentTid
	}
}

// pointVisible implements the created_xid <= P < deleted_xid predicate
// shared by Full, AtLeastAsFresh, and ExactlyAt.
func pointVisible(createdXid, deletedXid, p mvcc.TransactionId) bool {
	return createdXid <= p && deletedXid > p
}
