package topology

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/arloliu/tokenaware/types"
)

// NodeInfo is what a replication strategy needs to know about ring owners.
type NodeInfo interface {
	// Node returns the node for an ID.
	Node(id types.NodeID) (types.Node, bool)
}

// Replication places the replicas of a token range.
//
// Implementations must be immutable.
type Replication interface {
	// Class returns the strategy class name.
	Class() string

	// placements returns the replicas of every ring index, in placement order.
	placements(ring *Ring, nodes NodeInfo) [][]types.NodeID

	// key identifies the strategy and its settings. Strategies with equal
	// keys place replicas identically.
	key() string
}

// distinctOwners returns the number of distinct nodes on the ring.
func distinctOwners(ring *Ring) int {
	seen := make(map[types.NodeID]struct{})
	ring.walk(0, func(owner types.NodeID) bool {
		seen[owner] = struct{}{}
		return true
	})

	return len(seen)
}

// placeEach runs place for every ring index.
func placeEach(ring *Ring, place func(start int) []types.NodeID) [][]types.NodeID {
	out := make([][]types.NodeID, ring.Len())
	for i := range out {
		out[i] = place(i)
	}

	return out
}

// SimpleStrategy places replicas on the next distinct ring owners,
// ignoring datacenters and racks.
type SimpleStrategy struct {
	ReplicationFactor int
}

// Class implements Replication.
func (SimpleStrategy) Class() string {
	return "SimpleStrategy"
}

func (s SimpleStrategy) key() string {
	return "SimpleStrategy:" + strconv.Itoa(s.ReplicationFactor)
}

func (s SimpleStrategy) placements(ring *Ring, _ NodeInfo) [][]types.NodeID {
	want := min(s.ReplicationFactor, distinctOwners(ring))
	return placeEach(ring, func(start int) []types.NodeID {
		return s.place(ring, start, want)
	})
}

// place walks from start until want distinct owners are found.
func (s SimpleStrategy) place(ring *Ring, start int, want int) []types.NodeID {
	if want <= 0 {
		return nil
	}
	out := make([]types.NodeID, 0, want)
	ring.walk(start, func(owner types.NodeID) bool {
		if !slices.Contains(out, owner) {
			out = append(out, owner)
		}
		return len(out) < want
	})

	return out
}

// NetworkTopologyStrategy places a per-datacenter number of replicas,
// spreading them over distinct racks before reusing a rack.
type NetworkTopologyStrategy struct {
	// DatacenterFactors maps datacenter name to replication factor.
	DatacenterFactors map[string]int
}

// Class implements Replication.
func (NetworkTopologyStrategy) Class() string {
	return "NetworkTopologyStrategy"
}

// dcPlacement tracks placement progress in one datacenter.
type dcPlacement struct {
	want      int
	racks     int
	seenRacks map[string]struct{}
	skipped   []types.NodeID
	placed    []types.NodeID
}

func (p *dcPlacement) done() bool {
	return len(p.placed) >= p.want
}

func (s NetworkTopologyStrategy) key() string {
	var sb strings.Builder
	sb.WriteString("NetworkTopologyStrategy")
	for _, dc := range slices.Sorted(maps.Keys(s.DatacenterFactors)) {
		fmt.Fprintf(&sb, ":%s=%d", dc, s.DatacenterFactors[dc])
	}

	return sb.String()
}

// ringCensus is the racks and members of every datacenter on a ring, which
// cap the achievable replication factor. Taken once per ring.
type ringCensus struct {
	racks   map[string]map[string]struct{}
	members map[string]map[types.NodeID]struct{}
	nodes   map[types.NodeID]types.Node
}

func takeCensus(ring *Ring, nodes NodeInfo) ringCensus {
	c := ringCensus{
		racks:   make(map[string]map[string]struct{}),
		members: make(map[string]map[types.NodeID]struct{}),
		nodes:   make(map[types.NodeID]types.Node),
	}
	ring.walk(0, func(owner types.NodeID) bool {
		if _, done := c.nodes[owner]; done {
			return true
		}
		n, ok := nodes.Node(owner)
		if !ok {
			return true
		}
		c.nodes[owner] = n
		if c.racks[n.Datacenter] == nil {
			c.racks[n.Datacenter] = make(map[string]struct{})
			c.members[n.Datacenter] = make(map[types.NodeID]struct{})
		}
		c.racks[n.Datacenter][n.Rack] = struct{}{}
		c.members[n.Datacenter][owner] = struct{}{}
		return true
	})

	return c
}

func (s NetworkTopologyStrategy) placements(ring *Ring, nodes NodeInfo) [][]types.NodeID {
	census := takeCensus(ring, nodes)
	return placeEach(ring, func(start int) []types.NodeID {
		return s.place(ring, start, census)
	})
}

// place walks from start, filling every datacenter over distinct racks first.
func (s NetworkTopologyStrategy) place(ring *Ring, start int, census ringCensus) []types.NodeID {
	placement := make(map[string]*dcPlacement, len(s.DatacenterFactors))
	for dc, rf := range s.DatacenterFactors {
		if rf <= 0 || len(census.members[dc]) == 0 {
			continue
		}
		placement[dc] = &dcPlacement{
			want:      min(rf, len(census.members[dc])),
			racks:     len(census.racks[dc]),
			seenRacks: make(map[string]struct{}),
		}
	}
	if len(placement) == 0 {
		return nil
	}

	var out []types.NodeID
	pending := len(placement)
	ring.walk(start, func(owner types.NodeID) bool {
		n, ok := census.nodes[owner]
		if !ok {
			return true
		}
		p := placement[n.Datacenter]
		if p == nil || p.done() || slices.Contains(p.placed, owner) || slices.Contains(p.skipped, owner) {
			return true
		}

		switch {
		case len(p.seenRacks) == p.racks:
			p.placed = append(p.placed, owner)
			out = append(out, owner)
		default:
			if _, seen := p.seenRacks[n.Rack]; seen {
				p.skipped = append(p.skipped, owner)
				break
			}
			p.seenRacks[n.Rack] = struct{}{}
			p.placed = append(p.placed, owner)
			out = append(out, owner)

			// Every rack is used; top up from the nodes passed over.
			if len(p.seenRacks) == p.racks {
				for _, id := range p.skipped {
					if p.done() {
						break
					}
					p.placed = append(p.placed, id)
					out = append(out, id)
				}
				p.skipped = nil
			}
		}

		if p.done() {
			pending--
		}
		return pending > 0
	})

	return out
}

// LocalStrategy keeps data on the coordinator only; it has no replicas to
// route to, so requests for system keyspaces are delegated.
type LocalStrategy struct{}

// Class implements Replication.
func (LocalStrategy) Class() string {
	return "LocalStrategy"
}

func (LocalStrategy) key() string {
	return "LocalStrategy"
}

func (LocalStrategy) placements(ring *Ring, _ NodeInfo) [][]types.NodeID {
	return make([][]types.NodeID, ring.Len())
}

// EverywhereStrategy replicates to every node, in ring order from the
// primary owner.
type EverywhereStrategy struct{}

// Class implements Replication.
func (EverywhereStrategy) Class() string {
	return "EverywhereStrategy"
}

func (EverywhereStrategy) key() string {
	return "EverywhereStrategy"
}

func (e EverywhereStrategy) placements(ring *Ring, _ NodeInfo) [][]types.NodeID {
	total := distinctOwners(ring)
	return placeEach(ring, func(start int) []types.NodeID {
		return e.place(ring, start, total)
	})
}

// place walks from start until all total owners are seen.
func (EverywhereStrategy) place(ring *Ring, start int, total int) []types.NodeID {
	if total == 0 {
		return nil
	}
	out := make([]types.NodeID, 0, total)
	seen := make(map[types.NodeID]struct{}, total)
	ring.walk(start, func(owner types.NodeID) bool {
		if _, ok := seen[owner]; !ok {
			seen[owner] = struct{}{}
			out = append(out, owner)
		}
		return len(out) < total
	})

	return out
}

// ParseReplication builds a strategy from a keyspace's replication map as
// found in system_schema.keyspaces.
//
// Parameters:
//   - class: Strategy class, fully qualified or short
//   - options: Strategy options, e.g. {"replication_factor": "3"} or {"dc1": "3", "dc2": "2"}
//
// Returns:
//   - Replication: The strategy
//   - error: ErrUnknownReplicationStrategy or an invalid factor
func ParseReplication(class string, options map[string]string) (Replication, error) {
	short := class
	if i := strings.LastIndexByte(short, '.'); i >= 0 {
		short = short[i+1:]
	}

	switch short {
	case "SimpleStrategy":
		rf, err := parseFactor("replication_factor", options["replication_factor"])
		if err != nil {
			return nil, err
		}
		return SimpleStrategy{ReplicationFactor: rf}, nil

	case "NetworkTopologyStrategy":
		factors := make(map[string]int, len(options))
		for _, dc := range slices.Sorted(maps.Keys(options)) {
			if dc == "class" {
				continue
			}
			rf, err := parseFactor(dc, options[dc])
			if err != nil {
				return nil, err
			}
			factors[dc] = rf
		}
		return NetworkTopologyStrategy{DatacenterFactors: factors}, nil

	case "LocalStrategy":
		return LocalStrategy{}, nil

	case "EverywhereStrategy":
		return EverywhereStrategy{}, nil

	default:
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownReplicationStrategy, class)
	}
}

// parseFactor accepts "3" as well as the transient-replication form "3/1",
// of which only the full replica count matters for routing.
func parseFactor(name, value string) (int, error) {
	full, _, _ := strings.Cut(strings.TrimSpace(value), "/")
	rf, err := strconv.Atoi(full)
	if err != nil || rf < 0 {
		return 0, fmt.Errorf("tokenaware: invalid replication factor %s=%q", name, value)
	}

	return rf, nil
}
