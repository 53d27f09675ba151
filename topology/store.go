package topology

import (
	"sync"
	"sync/atomic"

	"github.com/arloliu/tokenaware"
	"github.com/arloliu/tokenaware/internal/logging"
	"github.com/arloliu/tokenaware/internal/metrics"
	"github.com/arloliu/tokenaware/types"
)

// Store holds the current Snapshot and replaces it atomically.
//
// Readers never block: Current returns whatever snapshot was installed last,
// and a planner keeps that snapshot for the whole plan. Writers are
// serialized so that read-modify-write updates do not lose changes.
//
// Store implements tokenaware.TopologyProvider.
type Store struct {
	current atomic.Pointer[Snapshot]
	writeMu sync.Mutex

	logger  types.Logger
	metrics types.MetricsCollector
}

var _ tokenaware.TopologyProvider = (*Store)(nil)

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreLogger sets the logger used to report snapshot changes.
func WithStoreLogger(logger types.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logging.OrNop(logger)
	}
}

// WithStoreMetrics sets the collector that receives topology gauges.
func WithStoreMetrics(collector types.MetricsCollector) StoreOption {
	return func(s *Store) {
		s.metrics = metrics.OrNop(collector)
	}
}

// NewStore creates a store. initial may be nil, in which case Current
// returns nil until a snapshot is installed.
//
// Parameters:
//   - initial: The first snapshot, or nil
//   - opts: Optional configuration options
//
// Returns:
//   - *Store: A new store
func NewStore(initial *Snapshot, opts ...StoreOption) *Store {
	s := &Store{
		logger:  logging.NewNopLogger(),
		metrics: metrics.NewNopMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if initial != nil {
		s.install(initial)
	}

	return s
}

// Current implements tokenaware.TopologyProvider.
func (s *Store) Current() tokenaware.TopologyView {
	snap := s.current.Load()
	if snap == nil {
		return nil
	}

	return snap
}

// Snapshot returns the current snapshot, or nil.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Replace installs snap as the current snapshot. A nil snap is ignored.
func (s *Store) Replace(snap *Snapshot) {
	if snap == nil {
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.install(snap)
}

// Update applies fn to a builder seeded from the current snapshot and
// installs the result. If fn returns an error nothing is installed.
//
// Parameters:
//   - fn: Mutation to apply
//
// Returns:
//   - *Snapshot: The installed snapshot, or the unchanged current one on error
//   - error: The error returned by fn
func (s *Store) Update(fn func(b *Builder) error) (*Snapshot, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := s.current.Load()
	var b *Builder
	if cur != nil {
		b = cur.Builder()
	} else {
		b = NewBuilder()
	}

	if err := fn(b); err != nil {
		return cur, err
	}

	next := b.Build()
	s.install(next)

	return next, nil
}

// SetNodeState changes the liveness of one node.
//
// Returns:
//   - bool: true if a new snapshot was installed
func (s *Store) SetNodeState(id types.NodeID, state types.NodeState) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	cur := s.current.Load()
	if cur == nil || cur.State(id) == state {
		return false
	}

	b := cur.Builder()
	if !b.SetNodeState(id, state) {
		return false
	}
	s.install(b.Build())

	return true
}

// install must be called with writeMu held, or before the store is shared.
func (s *Store) install(snap *Snapshot) {
	s.current.Store(snap)

	up, down := snap.NodeCounts()
	s.metrics.IncTopologyUpdate()
	s.metrics.SetTopologyNodes(up, down)
	s.logger.Debug("topology snapshot installed",
		"version", snap.Version(),
		"nodes_up", up,
		"nodes_down", down,
		"tokens", snap.Ring().Len(),
		"keyspaces", len(snap.keyspaces),
	)
}
