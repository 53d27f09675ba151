package tokenaware

import "github.com/arloliu/tokenaware/types"

// TopologyView answers replica, liveness and distance questions against one
// consistent picture of the cluster.
//
// Implementations MUST be safe for concurrent use from multiple goroutines.
// A view should be immutable: a planner keeps one view for the lifetime of a
// plan so that the plan never observes a partially applied topology change.
type TopologyView interface {
	// FindReplicas returns the nodes holding a replica of the partition that
	// key belongs to, in ring order (primary replica first).
	//
	// Parameters:
	//   - keyspace: The keyspace whose replication settings apply
	//   - key: The serialized partition key
	//
	// Returns:
	//   - []types.Node: The replica set, possibly empty
	//   - error: A lookup failure, typically a *types.LookupError
	FindReplicas(keyspace string, key types.RoutingKey) ([]types.Node, error)

	// IsUp reports whether node is currently believed to accept requests.
	IsUp(node types.Node) bool

	// Distance classifies node relative to the caller.
	Distance(node types.Node) types.Distance
}

// TopologyProvider hands out the current TopologyView.
//
// Implementations MUST be safe for concurrent use from multiple goroutines.
type TopologyProvider interface {
	// Current returns the latest view, or nil when no topology is known yet.
	Current() TopologyView
}

// TopologyProviderFunc adapts a function to TopologyProvider.
type TopologyProviderFunc func() TopologyView

// Current calls f.
func (f TopologyProviderFunc) Current() TopologyView {
	return f()
}

// StaticTopology returns a TopologyProvider that always hands out view.
//
// Parameters:
//   - view: The view to return from Current
//
// Returns:
//   - TopologyProvider: A provider for a fixed view
func StaticTopology(view TopologyView) TopologyProvider {
	return TopologyProviderFunc(func() TopologyView { return view })
}

// FallbackPlanner produces the plan used when token awareness cannot help,
// and the candidates offered after the local replicas.
//
// Implementations MUST be safe for concurrent use from multiple goroutines.
// Every call must return a fresh iterator.
type FallbackPlanner interface {
	// Plan returns the fallback candidate sequence for a request.
	//
	// Parameters:
	//   - keyspace: The keyspace the caller supplied to the token-aware planner
	//   - req: The request being planned, possibly nil
	//
	// Returns:
	//   - NodeIterator: A lazy, finite sequence of candidates
	Plan(keyspace string, req Request) NodeIterator
}

// FallbackFunc adapts a function to FallbackPlanner.
type FallbackFunc func(keyspace string, req Request) NodeIterator

// Plan calls f.
func (f FallbackFunc) Plan(keyspace string, req Request) NodeIterator {
	return f(keyspace, req)
}

// NodeIterator is a lazy, single-consumer sequence of nodes.
type NodeIterator interface {
	// Next returns the next node, or false once the sequence is exhausted.
	// After returning false it keeps returning false.
	Next() (types.Node, bool)
}

// Request is the routing information a planner needs from a request.
//
// gocql.ExecutableQuery satisfies this interface.
type Request interface {
	// GetRoutingKey returns the serialized partition key, or nil if the
	// request has none.
	GetRoutingKey() ([]byte, error)

	// Keyspace returns the keyspace named by the request, or "".
	Keyspace() string
}

// SliceIterator iterates over a fixed slice of nodes.
type SliceIterator struct {
	nodes []types.Node
	pos   int
}

var _ NodeIterator = (*SliceIterator)(nil)

// NewSliceIterator returns an iterator over nodes. The slice is not copied.
func NewSliceIterator(nodes []types.Node) *SliceIterator {
	return &SliceIterator{nodes: nodes}
}

// Next implements NodeIterator.
func (it *SliceIterator) Next() (types.Node, bool) {
	if it.pos >= len(it.nodes) {
		return types.Node{}, false
	}
	node := it.nodes[it.pos]
	it.pos++

	return node, true
}

// emptyIterator is returned in place of a nil fallback plan.
type emptyIterator struct{}

func (emptyIterator) Next() (types.Node, bool) { return types.Node{}, false }
