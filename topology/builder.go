package topology

import (
	"fmt"
	"maps"
	"slices"

	"github.com/arloliu/tokenaware/types"
)

// Builder assembles a Snapshot. A Builder is not safe for concurrent use;
// the snapshots it builds are.
type Builder struct {
	version     uint64
	partitioner Partitioner
	nodes       map[types.NodeID]nodeEntry
	keyspaces   map[string]Replication
	localDC     string
	ignoredDCs  map[string]struct{}

	// ring is reused by Build while no tokens changed, placements while
	// neither the ring nor any node's placement attributes changed.
	ring            *Ring
	ringDirty       bool
	placements      *placementCache
	placementsDirty bool
}

// NewBuilder returns an empty builder using the Murmur3 partitioner.
func NewBuilder() *Builder {
	return &Builder{
		partitioner: Murmur3Partitioner{},
		nodes:       make(map[types.NodeID]nodeEntry),
		keyspaces:   make(map[string]Replication),
		ignoredDCs:  make(map[string]struct{}),
		ringDirty:   true,
	}
}

// SetPartitioner sets the partitioner. A nil partitioner is ignored.
func (b *Builder) SetPartitioner(p Partitioner) *Builder {
	if p != nil {
		b.partitioner = p
	}

	return b
}

// SetLocalDatacenter sets the datacenter whose nodes are local.
func (b *Builder) SetLocalDatacenter(dc string) *Builder {
	b.localDC = dc
	return b
}

// SetIgnoredDatacenters replaces the set of datacenters whose nodes are
// never contacted.
func (b *Builder) SetIgnoredDatacenters(dcs ...string) *Builder {
	b.ignoredDCs = make(map[string]struct{}, len(dcs))
	for _, dc := range dcs {
		b.ignoredDCs[dc] = struct{}{}
	}

	return b
}

// SetNode adds or replaces a node.
//
// Parameters:
//   - node: The node; ID must be set
//   - state: Its liveness
//   - tokens: The tokens it owns
//
// Returns:
//   - error: ErrInvalidNode if the node has no ID
func (b *Builder) SetNode(node types.Node, state types.NodeState, tokens []Token) error {
	if node.ID == "" {
		return fmt.Errorf("%w: missing id for %q", types.ErrInvalidNode, node.Address)
	}

	prev, existed := b.nodes[node.ID]
	if !existed || !slices.Equal(prev.tokens, tokens) {
		b.ringDirty = true
	}
	if existed && prev.node != node {
		b.placementsDirty = true
	}
	b.nodes[node.ID] = nodeEntry{node: node, state: state, tokens: slices.Clone(tokens)}

	return nil
}

// SetNodeState changes the liveness of a known node.
//
// Returns:
//   - bool: false if the node is unknown or already in that state
func (b *Builder) SetNodeState(id types.NodeID, state types.NodeState) bool {
	e, ok := b.nodes[id]
	if !ok || e.state == state {
		return false
	}
	e.state = state
	b.nodes[id] = e

	return true
}

// RemoveNode removes a node and its tokens.
//
// Returns:
//   - bool: false if the node was unknown
func (b *Builder) RemoveNode(id types.NodeID) bool {
	if _, ok := b.nodes[id]; !ok {
		return false
	}
	delete(b.nodes, id)
	b.ringDirty = true

	return true
}

// HasNode reports whether the builder holds a node.
func (b *Builder) HasNode(id types.NodeID) bool {
	_, ok := b.nodes[id]
	return ok
}

// SetKeyspace sets the replication strategy of a keyspace. A nil strategy
// removes the keyspace.
func (b *Builder) SetKeyspace(name string, repl Replication) *Builder {
	if repl == nil {
		delete(b.keyspaces, name)
		return b
	}
	b.keyspaces[name] = repl

	return b
}

// HasKeyspace reports whether the builder holds replication settings for a keyspace.
func (b *Builder) HasKeyspace(name string) bool {
	_, ok := b.keyspaces[name]
	return ok
}

// adopt replaces the contents of b with those of next, keeping the version
// sequence of b. The ring and replica placements of b are kept when next
// holds the same nodes with the same tokens, so a document that only changes
// liveness or keyspaces does not recompute placement.
func (b *Builder) adopt(next *Builder) {
	keep := b.ring != nil && !b.ringDirty && !b.placementsDirty && samePlacement(b.nodes, next.nodes)
	version, ring, placements := b.version, b.ring, b.placements

	*b = *next
	b.version = version
	if keep {
		b.ring, b.ringDirty = ring, false
		b.placements, b.placementsDirty = placements, false
	}
}

// samePlacement reports whether two node sets place replicas identically.
func samePlacement(a, b map[types.NodeID]nodeEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for id, ea := range a {
		eb, ok := b[id]
		if !ok || ea.node != eb.node || !slices.Equal(ea.tokens, eb.tokens) {
			return false
		}
	}

	return true
}

// Build returns a new snapshot. The builder can keep being used afterwards.
func (b *Builder) Build() *Snapshot {
	if b.ringDirty || b.ring == nil {
		tokens := make(map[types.NodeID][]Token, len(b.nodes))
		for id, e := range b.nodes {
			tokens[id] = e.tokens
		}
		b.ring = NewRing(tokens)
		b.ringDirty = false
		b.placementsDirty = true
	}
	if b.placementsDirty || b.placements == nil {
		b.placements = newPlacementCache()
		b.placementsDirty = false
	}
	b.version++

	return &Snapshot{
		version:     b.version,
		partitioner: b.partitioner,
		nodes:       maps.Clone(b.nodes),
		ring:        b.ring,
		keyspaces:   maps.Clone(b.keyspaces),
		localDC:     b.localDC,
		ignoredDCs:  maps.Clone(b.ignoredDCs),
		placements:  b.placements,
	}
}
