package mvcc

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Snapshot summarizes, at a single point in time, which transactions are
// committed and which are still in progress. It mirrors PostgreSQL's
// txid_current_snapshot(): a transaction with id < Xmin is visible, one with
// id >= Xmax is not, and anything in between is visible unless it also
// appears in XipList.
type Snapshot struct {
	Xmin    TransactionId
	Xmax    TransactionId
	XipList []TransactionId // sorted, unique, each in [Xmin, Xmax)
}

// SnapshotFormatError reports a malformed snapshot string, naming the field
// that failed to parse or validate.
type SnapshotFormatError struct {
	Field string
	Value string
}

func (e *SnapshotFormatError) Error() string {
	return fmt.Sprintf("snapshot format error: field %s: %q", e.Field, e.Value)
}

// Format renders the snapshot as the colon-joined triple xmin:xmax:x1,x2,...
// Trailing colon and an empty list when there are no in-progress ids.
func (s Snapshot) Format() string {
	parts := make([]string, len(s.XipList))
	for i, xid := range s.XipList {
		parts[i] = strconv.FormatUint(uint64(xid), 10)
	}
	return fmt.Sprintf("%d:%d:%s", s.Xmin, s.Xmax, strings.Join(parts, ","))
}

// ParseSnapshot parses the xmin:xmax:xip_csv text representation. It fails
// with a *SnapshotFormatError if the triple count is wrong, any integer does
// not fit a u64, or xip_list is not sorted-unique within [xmin, xmax).
func ParseSnapshot(s string) (Snapshot, error) {
	fields := strings.Split(s, ":")
	if len(fields) != 3 {
		return Snapshot{}, &SnapshotFormatError{Field: "triple", Value: s}
	}

	xmin, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return Snapshot{}, &SnapshotFormatError{Field: "xmin", Value: fields[0]}
	}
	xmax, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return Snapshot{}, &SnapshotFormatError{Field: "xmax", Value: fields[1]}
	}
	if xmin > xmax {
		return Snapshot{}, &SnapshotFormatError{Field: "xmin", Value: fields[0]}
	}

	var xip []TransactionId
	if fields[2] != "" {
		csv := strings.Split(fields[2], ",")
		xip = make([]TransactionId, 0, len(csv))
		var prev uint64
		for i, tok := range csv {
			v, err := strconv.ParseUint(tok, 10, 64)
			if err != nil {
				return Snapshot{}, &SnapshotFormatError{Field: "xip_list", Value: tok}
			}
			if v < xmin || v >= xmax {
				return Snapshot{}, &SnapshotFormatError{Field: "xip_list", Value: tok}
			}
			if i > 0 && v <= prev {
				return Snapshot{}, &SnapshotFormatError{Field: "xip_list", Value: tok}
			}
			prev = v
			xip = append(xip, TransactionId(v))
		}
	}

	return Snapshot{
		Xmin:    TransactionId(xmin),
		Xmax:    TransactionId(xmax),
		XipList: xip,
	}, nil
}

// IsVisible reports whether xid's writes are visible under this snapshot:
// xid < xmin is always visible, xid >= xmax is never visible, and anything
// in between is visible unless it is still in progress (in XipList).
func (s Snapshot) IsVisible(xid TransactionId) bool {
	if xid < s.Xmin {
		return true
	}
	if xid >= s.Xmax {
		return false
	}
	return !s.contains(xid)
}

func (s Snapshot) contains(xid TransactionId) bool {
	i := sort.Search(len(s.XipList), func(i int) bool { return s.XipList[i] >= xid })
	return i < len(s.XipList) && s.XipList[i] == xid
}

// MarkComplete is a pure transform recording that xid has finished: it
// removes xid from XipList (binary search), advances Xmax to xid+1 when
// xid >= Xmax, and collapses Xmin to Xmax once XipList is empty.
func (s Snapshot) MarkComplete(xid TransactionId) Snapshot {
	out := Snapshot{Xmin: s.Xmin, Xmax: s.Xmax}

	if len(s.XipList) > 0 {
		i := sort.Search(len(s.XipList), func(i int) bool { return s.XipList[i] >= xid })
		if i < len(s.XipList) && s.XipList[i] == xid {
			out.XipList = make([]TransactionId, 0, len(s.XipList)-1)
			out.XipList = append(out.XipList, s.XipList[:i]...)
			out.XipList = append(out.XipList, s.XipList[i+1:]...)
		} else {
			out.XipList = append([]TransactionId(nil), s.XipList...)
		}
	}

	if xid >= out.Xmax {
		out.Xmax = xid + 1
	}

	if len(out.XipList) == 0 {
		out.Xmin = out.Xmax
	}

	return out
}
