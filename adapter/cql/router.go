package cql

import (
	"sync"
	"time"

	"github.com/arloliu/tokenaware"
	"github.com/arloliu/tokenaware/internal/logging"
	"github.com/arloliu/tokenaware/internal/metrics"
	"github.com/arloliu/tokenaware/topology"
	"github.com/arloliu/tokenaware/types"
)

// DefaultKeyspaceRetryInterval is how long a keyspace whose replication
// could not be loaded is delegated before loading is tried again.
const DefaultKeyspaceRetryInterval = 5 * time.Second

// Driver connects a Router to one major version of a CQL driver.
//
// H is the driver's host type and S the selection its policies return
// from a pick.
type Driver[H comparable, S any] interface {
	// Describe returns the identity, location and tokens of a host.
	Describe(host H) Host

	// IsLocal reports whether the child policy treats a host as local.
	IsLocal(host H) bool

	// Selected returns the host a child selection refers to, or false for
	// a selection without host.
	Selected(sel S) (H, bool)

	// LoadKeyspace reads the replication class and options of a keyspace.
	LoadKeyspace(name string) (class string, options map[string]string, err error)
}

// ChildPlan returns the child policy's selections one by one; false once
// the child has no more hosts.
type ChildPlan[S any] func() (S, bool)

// Choice is one host of a routed plan.
type Choice[H, S any] struct {
	// Host is the chosen host.
	Host H

	// Selected is the child policy's own selection of Host. It is only set
	// when FromChild is true.
	Selected S

	// FromChild is false for replicas taken from the ring.
	FromChild bool
}

// RouterConfig configures a Router.
type RouterConfig struct {
	// Store receives the topology. A new store is created when nil.
	Store *topology.Store

	Logger  types.Logger
	Metrics types.MetricsCollector

	// PlannerOptions are applied after the logger and metrics options.
	PlannerOptions []tokenaware.Option

	// DefaultKeyspace is used for requests that do not name a keyspace.
	DefaultKeyspace string

	// KeyspaceRetryInterval defaults to DefaultKeyspaceRetryInterval.
	KeyspaceRetryInterval time.Duration
}

// Router is the driver-neutral core of a token-aware host selection policy.
//
// It tracks hosts reported by the driver, loads keyspace replication on
// first use and plans each request over the current topology, with the
// child policy as fallback. Router is safe for concurrent use.
type Router[H comparable, S any] struct {
	driver        Driver[H, S]
	tracker       *HostTracker
	planner       *tokenaware.Planner
	store         *topology.Store
	logger        types.Logger
	defaultKS     string
	retryInterval time.Duration
	now           func() time.Time

	mu    sync.RWMutex
	hosts map[types.NodeID]H

	// failed holds when loading a keyspace last failed.
	failedMu sync.Mutex
	failed   map[string]time.Time
}

// NewRouter creates a router for a driver.
//
// Parameters:
//   - driver: Access to the driver's hosts, child policy and schema
//   - cfg: Router configuration
//
// Returns:
//   - *Router: The router
//   - error: An invalid planner option
func NewRouter[H comparable, S any](driver Driver[H, S], cfg RouterConfig) (*Router[H, S], error) {
	r := &Router[H, S]{
		driver:        driver,
		store:         cfg.Store,
		logger:        logging.OrNop(cfg.Logger),
		defaultKS:     cfg.DefaultKeyspace,
		retryInterval: cfg.KeyspaceRetryInterval,
		now:           time.Now,
		hosts:         make(map[types.NodeID]H),
		failed:        make(map[string]time.Time),
	}
	if r.retryInterval <= 0 {
		r.retryInterval = DefaultKeyspaceRetryInterval
	}
	collector := metrics.OrNop(cfg.Metrics)

	if r.store == nil {
		r.store = topology.NewStore(nil, topology.WithStoreLogger(r.logger), topology.WithStoreMetrics(collector))
	}
	r.tracker = NewHostTracker(r.store, WithTrackerLogger(r.logger))

	opts := append([]tokenaware.Option{
		tokenaware.WithLogger(r.logger),
		tokenaware.WithMetrics(collector),
	}, cfg.PlannerOptions...)

	planner, err := tokenaware.NewPlanner(
		tokenaware.TopologyProviderFunc(r.view),
		tokenaware.FallbackFunc(r.childPlan),
		opts...,
	)
	if err != nil {
		return nil, err
	}
	r.planner = planner

	return r, nil
}

// Store returns the topology store the router maintains.
func (r *Router[H, S]) Store() *topology.Store {
	return r.store
}

// AddHost tracks a host reported by the driver.
func (r *Router[H, S]) AddHost(host H) {
	r.addHost(host, r.driver.Describe(host))
}

// RemoveHost forgets a host.
func (r *Router[H, S]) RemoveHost(host H) {
	id := r.driver.Describe(host).ID

	r.mu.Lock()
	delete(r.hosts, types.NodeID(id))
	r.mu.Unlock()

	r.tracker.RemoveHost(id)
}

// HostUp marks a host up. A host not seen before is added.
func (r *Router[H, S]) HostUp(host H) {
	h := r.driver.Describe(host)
	if _, ok := r.Host(types.NodeID(h.ID)); !ok {
		h.Up = true
		r.addHost(host, h)

		return
	}
	r.tracker.SetHostState(h.ID, true)
}

// HostDown marks a host down.
func (r *Router[H, S]) HostDown(host H) {
	r.tracker.SetHostState(r.driver.Describe(host).ID, false)
}

// SetPartitioner records the cluster's partitioner. Requests are delegated
// while it is not Murmur3.
func (r *Router[H, S]) SetPartitioner(name string) {
	_ = r.tracker.SetPartitioner(name)
}

// KeyspaceChanged drops a keyspace's replication; it is reloaded on the
// keyspace's next request.
func (r *Router[H, S]) KeyspaceChanged(keyspace, change string) {
	r.tracker.DropKeyspace(keyspace)

	r.failedMu.Lock()
	delete(r.failed, keyspace)
	r.failedMu.Unlock()

	r.logger.Debug("keyspace changed", "keyspace", keyspace, "change", change)
}

// Reset forgets failed keyspace loads, e.g. when the session is replaced.
func (r *Router[H, S]) Reset() {
	r.failedMu.Lock()
	clear(r.failed)
	r.failedMu.Unlock()
}

// Host returns the driver host with the given node ID.
func (r *Router[H, S]) Host(id types.NodeID) (H, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.hosts[id]

	return h, ok
}

// Pick plans a request.
//
// Parameters:
//   - req: The request; its keyspace falls back to the default keyspace
//   - pickChild: Asks the child policy for its plan; called at most once,
//     and only when the plan needs it
//
// Returns:
//   - func() (Choice[H, S], bool): Yields the plan's hosts, false once
//     exhausted. Safe for concurrent calls, so speculative executions can
//     share it.
func (r *Router[H, S]) Pick(req tokenaware.Request, pickChild func() ChildPlan[S]) func() (Choice[H, S], bool) {
	keyspace := req.Keyspace()
	if keyspace == "" {
		keyspace = r.defaultKS
	}
	r.ensureKeyspace(keyspace)

	rr := &routedRequest[H, S]{Request: req, pickChild: pickChild, selected: make(map[types.NodeID]Choice[H, S])}
	plan := r.planner.Plan(r.defaultKS, rr)

	var mu sync.Mutex

	return func() (Choice[H, S], bool) {
		mu.Lock()
		defer mu.Unlock()

		for {
			node, ok := plan.Next()
			if !ok {
				return Choice[H, S]{}, false
			}
			if c, ok := rr.selected[node.ID]; ok {
				return c, true
			}
			if host, ok := r.Host(node.ID); ok {
				return Choice[H, S]{Host: host}, true
			}
		}
	}
}

func (r *Router[H, S]) addHost(host H, h Host) {
	if h.ID == "" {
		r.logger.Warn("ignoring host without identity", "address", h.Address)
		return
	}

	r.mu.Lock()
	r.hosts[types.NodeID(h.ID)] = host
	r.mu.Unlock()

	if err := r.tracker.AddHost(h); err != nil {
		r.logger.Warn("failed to track host", "host", h.ID, "error", err)
	}
}

// ensureKeyspace loads a keyspace's replication before it is planned on. A
// failed load delegates the keyspace's requests for the retry interval.
func (r *Router[H, S]) ensureKeyspace(keyspace string) {
	if keyspace == "" || r.tracker.HasKeyspace(keyspace) || r.recentlyFailed(keyspace) {
		return
	}

	class, options, err := r.driver.LoadKeyspace(keyspace)
	if err != nil {
		r.markFailed(keyspace)
		r.logger.Debug("keyspace metadata unavailable", "keyspace", keyspace, "error", err)

		return
	}
	if err := r.tracker.SetKeyspace(keyspace, class, options); err != nil {
		r.markFailed(keyspace)
		r.logger.Warn("unsupported keyspace replication", "keyspace", keyspace, "error", err)
	}
}

func (r *Router[H, S]) recentlyFailed(keyspace string) bool {
	r.failedMu.Lock()
	defer r.failedMu.Unlock()

	at, ok := r.failed[keyspace]
	if !ok {
		return false
	}
	if r.now().Sub(at) < r.retryInterval {
		return true
	}
	delete(r.failed, keyspace)

	return false
}

func (r *Router[H, S]) markFailed(keyspace string) {
	r.failedMu.Lock()
	r.failed[keyspace] = r.now()
	r.failedMu.Unlock()
}

// view is the planner's topology: the current snapshot with the child
// policy deciding locality. Nil while routing is disabled.
func (r *Router[H, S]) view() tokenaware.TopologyView {
	if !r.tracker.Supported() {
		return nil
	}
	snap := r.store.Snapshot()
	if snap == nil {
		return nil
	}

	return hostView[H, S]{Snapshot: snap, router: r}
}

// childPlan is the planner's fallback: the child policy's pick for the request.
func (r *Router[H, S]) childPlan(_ string, req tokenaware.Request) tokenaware.NodeIterator {
	rr, ok := req.(*routedRequest[H, S])
	if !ok {
		return nil
	}

	return &childIterator[H, S]{router: r, req: rr, next: rr.pickChild()}
}

// routedRequest remembers the hosts the child policy selected during a plan.
type routedRequest[H comparable, S any] struct {
	tokenaware.Request

	pickChild func() ChildPlan[S]
	selected  map[types.NodeID]Choice[H, S]
}

// hostView overrides the snapshot's locality with the child policy's.
type hostView[H comparable, S any] struct {
	*topology.Snapshot

	router *Router[H, S]
}

func (v hostView[H, S]) Distance(node types.Node) types.Distance {
	if v.Snapshot.Distance(node) == types.DistanceIgnored {
		return types.DistanceIgnored
	}
	host, ok := v.router.Host(node.ID)
	if !ok {
		return types.DistanceIgnored
	}
	if v.router.driver.IsLocal(host) {
		return types.DistanceLocal
	}

	return types.DistanceRemote
}

// childIterator adapts a child plan to a NodeIterator.
type childIterator[H comparable, S any] struct {
	router *Router[H, S]
	req    *routedRequest[H, S]
	next   ChildPlan[S]
}

func (it *childIterator[H, S]) Next() (types.Node, bool) {
	for it.next != nil {
		sel, ok := it.next()
		if !ok {
			it.next = nil
			break
		}
		host, ok := it.router.driver.Selected(sel)
		if !ok {
			continue
		}

		h := it.router.driver.Describe(host)
		if h.ID == "" {
			continue
		}
		id := types.NodeID(h.ID)
		if _, seen := it.req.selected[id]; !seen {
			it.req.selected[id] = Choice[H, S]{Host: host, Selected: sel, FromChild: true}
		}

		return h.Node(), true
	}

	return types.Node{}, false
}
