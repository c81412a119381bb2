package service

import (
	"github.com/kartikbazzad/entgraph/graph"
	"github.com/kartikbazzad/entgraph/graphErr"
	"github.com/kartikbazzad/entgraph/mvcc"
)

// ConsistencyRequirement is the wire shape of the tagged choice spec.md §6
// defines: {FullConsistency(true), MinimizeLatency(true),
// AtLeastAsFresh(Zookie), ExactlyAt(Zookie)}. A nil *ConsistencyRequirement
// means MinimizeLatency.
type ConsistencyRequirement struct {
	Kind   string `json:"kind"`
	Zookie string `json:"zookie,omitempty"`
}

const (
	KindFullConsistency = "full"
	KindMinimizeLatency = "minimize_latency"
	KindAtLeastAsFresh  = "at_least_as_fresh"
	KindExactlyAt       = "exactly_at"
)

// resolveConsistency decodes a wire ConsistencyRequirement into the
// graph.ConsistencyMode the store layer dispatches on.
func resolveConsistency(req *ConsistencyRequirement) (graph.ConsistencyMode, error) {
	if req == nil {
		return graph.MinimizeLatencyConsistency(), nil
	}
	switch req.Kind {
	case "", KindMinimizeLatency:
		return graph.MinimizeLatencyConsistency(), nil
	case KindFullConsistency:
		return graph.FullConsistency(), nil
	case KindAtLeastAsFresh:
		rev, err := mvcc.DecodeZookie(req.Zookie)
		if err != nil {
			return graph.ConsistencyMode{}, graphErr.InvalidArgument("invalid zookie: %v", err)
		}
		return graph.AtLeastAsFresh(rev), nil
	case KindExactlyAt:
		rev, err := mvcc.DecodeZookie(req.Zookie)
		if err != nil {
			return graph.ConsistencyMode{}, graphErr.InvalidArgument("invalid zookie: %v", err)
		}
		return graph.ExactlyAt(rev), nil
	default:
		return graph.ConsistencyMode{}, graphErr.InvalidArgument("unknown consistency kind %q", req.Kind)
	}
}

// encodeRevision turns an mvcc.Revision into the zookie string returned
// alongside every mutation response.
func encodeRevision(rev mvcc.Revision) string {
	return mvcc.EncodeZookie(rev)
}
