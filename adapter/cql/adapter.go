package cql

import (
	"fmt"
	"strings"
	"sync"

	"github.com/arloliu/tokenaware/internal/logging"
	"github.com/arloliu/tokenaware/topology"
	"github.com/arloliu/tokenaware/types"
)

// Host is the driver-neutral description of a cluster member as a CQL
// driver reports it.
type Host struct {
	// ID is the node's host ID. Drivers that do not know it yet report the
	// connect address instead.
	ID string

	// Address is the host:port the driver connects to.
	Address string

	Datacenter string
	Rack       string

	// Tokens are the node's ring tokens in their textual form.
	Tokens []string

	// Up reports whether the driver considers the node reachable.
	Up bool
}

// Node converts the host into a routing node.
func (h Host) Node() types.Node {
	return types.Node{
		ID:         types.NodeID(h.ID),
		Address:    h.Address,
		Datacenter: h.Datacenter,
		Rack:       h.Rack,
	}
}

func (h Host) state() types.NodeState {
	if h.Up {
		return types.NodeUp
	}

	return types.NodeDown
}

// HostTrackerOption configures a HostTracker.
type HostTrackerOption func(*HostTracker)

// WithTrackerLogger sets the logger used for host events.
func WithTrackerLogger(logger types.Logger) HostTrackerOption {
	return func(t *HostTracker) {
		t.logger = logging.OrNop(logger)
	}
}

// WithLocalDatacenter marks the datacenter whose nodes are local.
func WithLocalDatacenter(dc string) HostTrackerOption {
	return func(t *HostTracker) {
		t.localDC = dc
	}
}

// HostTracker turns the host events of a CQL driver into topology snapshots.
//
// Each event is applied through the tracker's topology.Store, so readers
// always see a complete snapshot. HostTracker is safe for concurrent use.
type HostTracker struct {
	store   *topology.Store
	logger  types.Logger
	localDC string

	mu          sync.Mutex
	partitioner topology.Partitioner
	// supported is false once the driver reported a partitioner the ring
	// cannot model. Routing stays disabled until a supported one is set.
	supported bool
}

// NewHostTracker creates a tracker writing into store. A nil store gets a
// fresh empty one.
//
// Parameters:
//   - store: Destination of the tracked topology
//   - opts: Optional configuration
//
// Returns:
//   - *HostTracker: A new tracker
func NewHostTracker(store *topology.Store, opts ...HostTrackerOption) *HostTracker {
	t := &HostTracker{
		store:       store,
		logger:      logging.NewNopLogger(),
		partitioner: topology.Murmur3Partitioner{},
		supported:   true,
	}
	for _, opt := range opts {
		opt(t)
	}

	if t.store == nil {
		t.store = topology.NewStore(nil)
	}
	if t.localDC != "" {
		_, _ = t.store.Update(func(b *topology.Builder) error {
			b.SetLocalDatacenter(t.localDC)
			return nil
		})
	}

	return t
}

// Store returns the store the tracker writes to.
func (t *HostTracker) Store() *topology.Store {
	return t.store
}

// Supported reports whether the cluster's partitioner can be routed on.
func (t *HostTracker) Supported() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.supported
}

// SetPartitioner records the cluster's partitioner.
//
// An unsupported partitioner is not an error for the driver: it is logged
// and Supported reports false so callers delegate every query.
//
// Parameters:
//   - name: Partitioner class name as reported by system.local
//
// Returns:
//   - error: ErrUnknownPartitioner if the name cannot be routed on
func (t *HostTracker) SetPartitioner(name string) error {
	p, err := topology.ParsePartitioner(name)

	t.mu.Lock()
	t.supported = err == nil
	if err == nil {
		t.partitioner = p
	}
	t.mu.Unlock()

	if err != nil {
		t.logger.Warn("token-aware routing disabled", "partitioner", name, "error", err)
		return err
	}

	_, err = t.store.Update(func(b *topology.Builder) error {
		b.SetPartitioner(p)
		return nil
	})

	return err
}

// AddHost adds a host or replaces what is known about it.
//
// Tokens that cannot be parsed are logged and skipped; the host is still
// added so it can be reached through the fallback policy.
//
// Parameters:
//   - h: Host to add
//
// Returns:
//   - error: ErrInvalidNode if the host has no ID
func (t *HostTracker) AddHost(h Host) error {
	t.mu.Lock()
	p := t.partitioner
	t.mu.Unlock()

	tokens := make([]topology.Token, 0, len(h.Tokens))
	for _, s := range h.Tokens {
		tok, err := p.ParseToken(s)
		if err != nil {
			t.logger.Warn("skipping unparsable token", "host", h.ID, "token", s, "error", err)
			continue
		}
		tokens = append(tokens, tok)
	}

	_, err := t.store.Update(func(b *topology.Builder) error {
		return b.SetNode(h.Node(), h.state(), tokens)
	})
	if err != nil {
		return fmt.Errorf("add host %q: %w", h.Address, err)
	}
	t.logger.Debug("host added", "host", h.ID, "address", h.Address, "dc", h.Datacenter, "tokens", len(tokens))

	return nil
}

// RemoveHost forgets a host and its tokens.
func (t *HostTracker) RemoveHost(id string) {
	_, _ = t.store.Update(func(b *topology.Builder) error {
		b.RemoveNode(types.NodeID(id))
		return nil
	})
	t.logger.Debug("host removed", "host", id)
}

// SetHostState records a host's liveness.
//
// Returns:
//   - bool: true if the state changed
func (t *HostTracker) SetHostState(id string, up bool) bool {
	state := types.NodeDown
	if up {
		state = types.NodeUp
	}

	changed := t.store.SetNodeState(types.NodeID(id), state)
	if changed {
		t.logger.Info("host state changed", "host", id, "state", state.String())
	}

	return changed
}

// HasKeyspace reports whether the replication settings of a keyspace are known.
func (t *HostTracker) HasKeyspace(name string) bool {
	snap := t.store.Snapshot()
	if snap == nil {
		return false
	}
	_, ok := snap.Replication(name)

	return ok
}

// SetKeyspace records a keyspace's replication settings as found in
// system_schema.keyspaces.
//
// Parameters:
//   - name: Keyspace name
//   - class: Replication strategy class
//   - options: Strategy options (replication factors)
//
// Returns:
//   - error: ErrUnknownReplicationStrategy or a factor parse error
func (t *HostTracker) SetKeyspace(name, class string, options map[string]string) error {
	repl, err := topology.ParseReplication(class, options)
	if err != nil {
		return fmt.Errorf("keyspace %q: %w", name, err)
	}

	_, err = t.store.Update(func(b *topology.Builder) error {
		b.SetKeyspace(name, repl)
		return nil
	})

	return err
}

// DropKeyspace forgets a keyspace's replication settings.
func (t *HostTracker) DropKeyspace(name string) {
	_, _ = t.store.Update(func(b *topology.Builder) error {
		b.SetKeyspace(name, nil)
		return nil
	})
}

// StrategyOptions converts driver schema options to strings. The "class"
// entry some drivers leave in the map is removed.
func StrategyOptions(options map[string]any) map[string]string {
	out := make(map[string]string, len(options))
	for k, v := range options {
		if strings.EqualFold(k, "class") {
			continue
		}
		out[k] = fmt.Sprint(v)
	}

	return out
}
