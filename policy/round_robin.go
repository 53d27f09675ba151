package policy

import (
	"slices"
	"sync/atomic"

	"github.com/arloliu/tokenaware"
	"github.com/arloliu/tokenaware/topology"
	"github.com/arloliu/tokenaware/types"
)

// Source supplies the snapshot a fallback planner plans against.
// *topology.Store satisfies it.
type Source interface {
	// Snapshot returns the current snapshot, or nil if none is known.
	Snapshot() *topology.Snapshot
}

// RoundRobin offers every live, non-ignored node, starting one position
// further along on each plan.
//
// RoundRobin is safe for concurrent use.
type RoundRobin struct {
	source Source
	next   atomic.Uint64
}

var _ tokenaware.FallbackPlanner = (*RoundRobin)(nil)

// NewRoundRobin creates a round-robin fallback planner.
//
// Parameters:
//   - source: Supplier of the current snapshot
//
// Returns:
//   - *RoundRobin: A new planner
func NewRoundRobin(source Source) *RoundRobin {
	return &RoundRobin{source: source}
}

// Plan implements tokenaware.FallbackPlanner.
func (r *RoundRobin) Plan(_ string, _ tokenaware.Request) tokenaware.NodeIterator {
	snap := r.source.Snapshot()
	if snap == nil {
		return tokenaware.NewSliceIterator(nil)
	}

	var nodes []types.Node
	for _, n := range snap.Nodes() {
		if snap.IsUp(n) && snap.Distance(n) != types.DistanceIgnored {
			nodes = append(nodes, n)
		}
	}

	return tokenaware.NewSliceIterator(rotate(nodes, r.next.Add(1)-1))
}

// rotate returns a copy of nodes starting at offset, wrapping around.
func rotate(nodes []types.Node, offset uint64) []types.Node {
	if len(nodes) < 2 {
		return nodes
	}

	k := int(offset % uint64(len(nodes)))

	return slices.Concat(nodes[k:], nodes[:k])
}
