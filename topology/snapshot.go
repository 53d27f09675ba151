package topology

import (
	"cmp"
	"maps"
	"slices"
	"sync"

	"github.com/arloliu/tokenaware"
	"github.com/arloliu/tokenaware/types"
)

// nodeEntry is a node with the state and tokens the snapshot knows for it.
type nodeEntry struct {
	node   types.Node
	state  types.NodeState
	tokens []Token
}

// Snapshot is an immutable picture of a cluster: nodes and their liveness,
// the token ring and per-keyspace replication.
//
// Snapshot implements tokenaware.TopologyView and is safe for concurrent use.
// Changes are made by building a new snapshot (see Builder and Store).
type Snapshot struct {
	version     uint64
	partitioner Partitioner
	nodes       map[types.NodeID]nodeEntry
	ring        *Ring
	keyspaces   map[string]Replication
	localDC     string
	ignoredDCs  map[string]struct{}

	// Shared with snapshots built over the same ring and node placement.
	placements *placementCache
}

// placementCache holds the replica sets of every ring index per replication
// strategy. It is valid for as long as the ring and the datacenter, rack and
// address of its owners do not change; liveness and keyspace changes keep it.
type placementCache struct {
	mu      sync.Mutex
	entries map[string]*placementEntry
}

// placementEntry is computed once, by the first lookup that needs it.
type placementEntry struct {
	once     sync.Once
	replicas [][]types.Node
}

func newPlacementCache() *placementCache {
	return &placementCache{entries: make(map[string]*placementEntry)}
}

func (c *placementCache) entry(key string) *placementEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		e = &placementEntry{}
		c.entries[key] = e
	}

	return e
}

var _ tokenaware.TopologyView = (*Snapshot)(nil)

// FindReplicas implements tokenaware.TopologyView.
//
// The returned slice is shared between callers and must not be modified.
//
// Returns:
//   - []types.Node: Replicas in placement order, nil if the ring is empty
//   - error: *types.LookupError wrapping ErrUnknownKeyspace for keyspaces
//     without replication settings
func (s *Snapshot) FindReplicas(keyspace string, key types.RoutingKey) ([]types.Node, error) {
	repl, ok := s.keyspaces[keyspace]
	if !ok {
		return nil, &types.LookupError{Keyspace: keyspace, Cause: types.ErrUnknownKeyspace}
	}
	if s.ring.Len() == 0 {
		return nil, nil
	}

	idx := s.ring.search(s.partitioner.Token(key))

	return s.placement(repl)[idx], nil
}

// placement returns the replica sets of every ring index for a strategy.
// Lookups of other strategies are not held up while one is computed.
func (s *Snapshot) placement(repl Replication) [][]types.Node {
	e := s.placements.entry(repl.key())
	e.once.Do(func() {
		ids := repl.placements(s.ring, s)
		e.replicas = make([][]types.Node, len(ids))
		for i, set := range ids {
			nodes := make([]types.Node, 0, len(set))
			for _, id := range set {
				nodes = append(nodes, s.nodes[id].node)
			}
			e.replicas[i] = nodes
		}
	})

	return e.replicas
}

// IsUp implements tokenaware.TopologyView. Unknown nodes are down.
func (s *Snapshot) IsUp(node types.Node) bool {
	e, ok := s.nodes[node.ID]
	return ok && e.state == types.NodeUp
}

// Distance implements tokenaware.TopologyView.
//
// Unknown nodes and nodes of ignored datacenters are ignored. Without a
// local datacenter every other node is local.
func (s *Snapshot) Distance(node types.Node) types.Distance {
	e, ok := s.nodes[node.ID]
	if !ok {
		return types.DistanceIgnored
	}
	if _, ignored := s.ignoredDCs[e.node.Datacenter]; ignored {
		return types.DistanceIgnored
	}
	if s.localDC == "" || e.node.Datacenter == s.localDC {
		return types.DistanceLocal
	}

	return types.DistanceRemote
}

// Node returns the node with the given ID.
func (s *Snapshot) Node(id types.NodeID) (types.Node, bool) {
	e, ok := s.nodes[id]
	return e.node, ok
}

// State returns the liveness of a node; unknown nodes are reported down.
func (s *Snapshot) State(id types.NodeID) types.NodeState {
	if e, ok := s.nodes[id]; ok {
		return e.state
	}

	return types.NodeDown
}

// Tokens returns the tokens owned by a node.
func (s *Snapshot) Tokens(id types.NodeID) []Token {
	return slices.Clone(s.nodes[id].tokens)
}

// Nodes returns all known nodes sorted by ID.
func (s *Snapshot) Nodes() []types.Node {
	out := make([]types.Node, 0, len(s.nodes))
	for _, e := range s.nodes {
		out = append(out, e.node)
	}
	slices.SortFunc(out, func(a, b types.Node) int {
		return cmp.Compare(a.ID, b.ID)
	})

	return out
}

// NodeCounts returns the number of up and down nodes.
func (s *Snapshot) NodeCounts() (up, down int) {
	for _, e := range s.nodes {
		if e.state == types.NodeUp {
			up++
		} else {
			down++
		}
	}

	return up, down
}

// Keyspaces returns the names of keyspaces with replication settings, sorted.
func (s *Snapshot) Keyspaces() []string {
	return slices.Sorted(maps.Keys(s.keyspaces))
}

// Replication returns the replication strategy of a keyspace.
func (s *Snapshot) Replication(keyspace string) (Replication, bool) {
	r, ok := s.keyspaces[keyspace]
	return r, ok
}

// Ring returns the token ring.
func (s *Snapshot) Ring() *Ring {
	return s.ring
}

// Partitioner returns the partitioner used to hash routing keys.
func (s *Snapshot) Partitioner() Partitioner {
	return s.partitioner
}

// LocalDatacenter returns the datacenter considered local, or "".
func (s *Snapshot) LocalDatacenter() string {
	return s.localDC
}

// Version increases by one with every snapshot built from a previous one.
func (s *Snapshot) Version() uint64 {
	return s.version
}

// Builder returns a builder seeded with the contents of s.
func (s *Snapshot) Builder() *Builder {
	return &Builder{
		version:     s.version,
		partitioner: s.partitioner,
		nodes:       maps.Clone(s.nodes),
		keyspaces:   maps.Clone(s.keyspaces),
		localDC:     s.localDC,
		ignoredDCs:  maps.Clone(s.ignoredDCs),
		ringDirty:   false,
		ring:        s.ring,
		placements:  s.placements,
	}
}
