package policy

import (
	"maps"
	"slices"
	"sync/atomic"

	"github.com/arloliu/tokenaware"
	"github.com/arloliu/tokenaware/types"
)

// DCAwareRoundRobin offers the live nodes of the local datacenter in
// round-robin order, followed by at most UsedHostsPerRemoteDC live nodes of
// each remote datacenter.
//
// DCAwareRoundRobin is safe for concurrent use.
type DCAwareRoundRobin struct {
	source               Source
	localDC              string
	usedHostsPerRemoteDC int
	next                 atomic.Uint64
}

var _ tokenaware.FallbackPlanner = (*DCAwareRoundRobin)(nil)

// DCAwareOption configures a DCAwareRoundRobin planner.
type DCAwareOption func(*DCAwareRoundRobin)

// WithLocalDC sets the local datacenter.
//
// Default: the snapshot's local datacenter
//
// Parameters:
//   - dc: Datacenter name
//
// Returns:
//   - DCAwareOption: Configuration option
func WithLocalDC(dc string) DCAwareOption {
	return func(p *DCAwareRoundRobin) {
		p.localDC = dc
	}
}

// WithUsedHostsPerRemoteDC sets how many nodes of each remote datacenter are
// offered after the local ones. Negative values are treated as 0.
//
// Default: 0 (remote datacenters are never used)
//
// Parameters:
//   - n: Nodes per remote datacenter
//
// Returns:
//   - DCAwareOption: Configuration option
func WithUsedHostsPerRemoteDC(n int) DCAwareOption {
	return func(p *DCAwareRoundRobin) {
		p.usedHostsPerRemoteDC = max(n, 0)
	}
}

// NewDCAwareRoundRobin creates a datacenter-aware round-robin planner.
//
// Parameters:
//   - source: Supplier of the current snapshot
//   - opts: Optional configuration options
//
// Returns:
//   - *DCAwareRoundRobin: A new planner
func NewDCAwareRoundRobin(source Source, opts ...DCAwareOption) *DCAwareRoundRobin {
	p := &DCAwareRoundRobin{source: source}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// LocalDC returns the configured local datacenter, or "" when the
// snapshot's is used.
func (p *DCAwareRoundRobin) LocalDC() string {
	return p.localDC
}

// Plan implements tokenaware.FallbackPlanner.
func (p *DCAwareRoundRobin) Plan(_ string, _ tokenaware.Request) tokenaware.NodeIterator {
	snap := p.source.Snapshot()
	if snap == nil {
		return tokenaware.NewSliceIterator(nil)
	}

	localDC := p.localDC
	if localDC == "" {
		localDC = snap.LocalDatacenter()
	}
	offset := p.next.Add(1) - 1

	var local []types.Node
	remote := make(map[string][]types.Node)
	for _, n := range snap.Nodes() {
		if !snap.IsUp(n) || snap.Distance(n) == types.DistanceIgnored {
			continue
		}
		if localDC == "" || n.Datacenter == localDC {
			local = append(local, n)
		} else if p.usedHostsPerRemoteDC > 0 {
			remote[n.Datacenter] = append(remote[n.Datacenter], n)
		}
	}

	plan := rotate(local, offset)
	for _, dc := range slices.Sorted(maps.Keys(remote)) {
		nodes := rotate(remote[dc], offset)
		plan = append(plan, nodes[:min(len(nodes), p.usedHostsPerRemoteDC)]...)
	}

	return tokenaware.NewSliceIterator(plan)
}

// Distance classifies a node the way Plan uses it: local datacenter nodes
// are local, the first UsedHostsPerRemoteDC nodes (by ID) of each remote
// datacenter are remote, and the rest are ignored.
//
// Parameters:
//   - node: The node to classify
//
// Returns:
//   - types.Distance: The node's distance
func (p *DCAwareRoundRobin) Distance(node types.Node) types.Distance {
	snap := p.source.Snapshot()
	if snap == nil {
		return types.DistanceIgnored
	}
	known, ok := snap.Node(node.ID)
	if !ok || snap.Distance(known) == types.DistanceIgnored {
		return types.DistanceIgnored
	}

	localDC := p.localDC
	if localDC == "" {
		localDC = snap.LocalDatacenter()
	}
	if localDC == "" || known.Datacenter == localDC {
		return types.DistanceLocal
	}
	if p.usedHostsPerRemoteDC == 0 {
		return types.DistanceIgnored
	}

	var peers []types.Node
	for _, n := range snap.Nodes() {
		if n.Datacenter == known.Datacenter {
			peers = append(peers, n)
		}
	}
	idx := slices.IndexFunc(peers, func(n types.Node) bool { return n.ID == known.ID })
	if idx < p.usedHostsPerRemoteDC {
		return types.DistanceRemote
	}

	return types.DistanceIgnored
}
