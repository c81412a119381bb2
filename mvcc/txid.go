// Package mvcc implements the snapshot/visibility model and the opaque
// revision token ("zookie") that the rest of entgraph builds its causal
// consistency guarantees on.
package mvcc

// TransactionId is a monotonically increasing, never-reused identifier
// assigned by the underlying transactional store each time a write
// transaction opens.
type TransactionId uint64

// MaxTxID is the sentinel value stored in a row's deleted_xid column to
// mean "not deleted" / "still the open version."
const MaxTxID TransactionId = (1 << 63) - 1
