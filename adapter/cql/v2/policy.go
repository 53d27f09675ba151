package v2

import (
	"errors"
	"net"
	"strconv"
	"sync/atomic"
	"time"

	gocql "github.com/apache/cassandra-gocql-driver/v2"

	"github.com/arloliu/tokenaware"
	"github.com/arloliu/tokenaware/adapter/cql"
	"github.com/arloliu/tokenaware/topology"
	"github.com/arloliu/tokenaware/types"
)

var errNoSession = errors.New("tokenaware: policy not initialized with a session")

// options collects the configuration of a TokenAwarePolicy.
type options struct {
	router cql.RouterConfig
	hostID func(*gocql.HostInfo) string
}

// Option configures a TokenAwarePolicy.
type Option func(*options)

// WithPlannerOptions passes options to the underlying planner, e.g. the
// replica ordering.
func WithPlannerOptions(opts ...tokenaware.Option) Option {
	return func(o *options) {
		o.router.PlannerOptions = append(o.router.PlannerOptions, opts...)
	}
}

// WithLogger sets the logger for the policy, its planner and host tracking.
func WithLogger(logger types.Logger) Option {
	return func(o *options) {
		o.router.Logger = logger
	}
}

// WithMetrics sets the collector for planner and topology metrics.
func WithMetrics(collector types.MetricsCollector) Option {
	return func(o *options) {
		o.router.Metrics = collector
	}
}

// WithStore makes the policy track hosts into an existing store.
func WithStore(store *topology.Store) Option {
	return func(o *options) {
		o.router.Store = store
	}
}

// WithDefaultKeyspace sets the keyspace used for statements that do not
// name one. It should match the cluster configuration's keyspace.
func WithDefaultKeyspace(keyspace string) Option {
	return func(o *options) {
		o.router.DefaultKeyspace = keyspace
	}
}

// WithKeyspaceRetryInterval sets how long statements of a keyspace whose
// replication could not be read from the session are delegated before the
// metadata is read again.
//
// Default: 5s
func WithKeyspaceRetryInterval(d time.Duration) Option {
	return func(o *options) {
		o.router.KeyspaceRetryInterval = d
	}
}

// WithHostID sets how a host is identified on the ring. The default is the
// host ID, or the connect address while the host ID is unknown.
func WithHostID(fn func(*gocql.HostInfo) string) Option {
	return func(o *options) {
		if fn != nil {
			o.hostID = fn
		}
	}
}

// TokenAwarePolicy is a host selection policy for the Apache gocql v2
// driver that sends each statement to the replicas owning its partition
// first.
//
// It wraps a child policy, which decides what is local (IsLocal) and which
// hosts follow the replicas. Host events keep a topology snapshot current;
// keyspace replication is read from the session's schema metadata the first
// time a keyspace is used.
//
// TokenAwarePolicy is safe for concurrent use.
type TokenAwarePolicy struct {
	child  gocql.HostSelectionPolicy
	router *cql.Router[*gocql.HostInfo, gocql.SelectedHost]
	hostID func(*gocql.HostInfo) string

	// describe and loadKeyspace read the driver; tests replace them.
	describe     func(*gocql.HostInfo) cql.Host
	loadKeyspace func(name string) (class string, options map[string]string, err error)

	session atomic.Pointer[gocql.Session]
}

var (
	_ gocql.HostSelectionPolicy                       = (*TokenAwarePolicy)(nil)
	_ gocql.SelectedHost                              = replicaHost{}
	_ cql.Driver[*gocql.HostInfo, gocql.SelectedHost] = driver{}
)

// NewTokenAwarePolicy creates a token-aware policy around a child policy.
//
// Parameters:
//   - child: Policy providing locality and the fallback order, e.g.
//     gocql.DCAwareRoundRobinPolicy("dc1")
//   - opts: Optional configuration
//
// Returns:
//   - *TokenAwarePolicy: The policy, to be set as ClusterConfig.PoolConfig.HostSelectionPolicy
//   - error: ErrNilFallback if child is nil, or an invalid planner option
//
// Example:
//
//	policy, err := v2.NewTokenAwarePolicy(gocql.DCAwareRoundRobinPolicy("dc1"),
//	    v2.WithPlannerOptions(tokenaware.WithReplicaOrdering(tokenaware.OrderingNeutral)),
//	)
//	cluster.PoolConfig.HostSelectionPolicy = policy
func NewTokenAwarePolicy(child gocql.HostSelectionPolicy, opts ...Option) (*TokenAwarePolicy, error) {
	if child == nil {
		return nil, types.ErrNilFallback
	}

	o := options{hostID: defaultHostID}
	for _, opt := range opts {
		opt(&o)
	}

	p := &TokenAwarePolicy{child: child, hostID: o.hostID}
	p.describe = p.describeHost
	p.loadKeyspace = p.sessionKeyspace

	router, err := cql.NewRouter(driver{policy: p}, o.router)
	if err != nil {
		return nil, err
	}
	p.router = router

	return p, nil
}

// Store returns the topology store the policy maintains.
func (p *TokenAwarePolicy) Store() *topology.Store {
	return p.router.Store()
}

// AddHost implements gocql.HostStateNotifier.
func (p *TokenAwarePolicy) AddHost(host *gocql.HostInfo) {
	p.router.AddHost(host)
	p.child.AddHost(host)
}

// RemoveHost implements gocql.HostStateNotifier.
func (p *TokenAwarePolicy) RemoveHost(host *gocql.HostInfo) {
	p.router.RemoveHost(host)
	p.child.RemoveHost(host)
}

// HostUp implements gocql.HostStateNotifier. A host not seen before is added.
func (p *TokenAwarePolicy) HostUp(host *gocql.HostInfo) {
	p.router.HostUp(host)
	p.child.HostUp(host)
}

// HostDown implements gocql.HostStateNotifier.
func (p *TokenAwarePolicy) HostDown(host *gocql.HostInfo) {
	p.router.HostDown(host)
	p.child.HostDown(host)
}

// SetPartitioner implements gocql.HostSelectionPolicy. Statements are delegated
// to the child policy while the partitioner is not Murmur3.
func (p *TokenAwarePolicy) SetPartitioner(partitioner string) {
	p.router.SetPartitioner(partitioner)
	p.child.SetPartitioner(partitioner)
}

// KeyspaceChanged implements gocql.HostSelectionPolicy. The keyspace's
// replication is reloaded on its next statement.
func (p *TokenAwarePolicy) KeyspaceChanged(update gocql.KeyspaceUpdateEvent) {
	p.router.KeyspaceChanged(update.Keyspace, update.Change)
	p.child.KeyspaceChanged(update)
}

// Init implements gocql.HostSelectionPolicy.
func (p *TokenAwarePolicy) Init(session *gocql.Session) {
	p.session.Store(session)
	p.child.Init(session)
}

// Reset drops the session, e.g. after a failed session initialization, and
// resets the child policy if it supports it.
func (p *TokenAwarePolicy) Reset() {
	p.session.Store(nil)
	p.router.Reset()
	if r, ok := p.child.(interface{ Reset() }); ok {
		r.Reset()
	}
}

// IsLocal implements gocql.HostSelectionPolicy by asking the child policy.
func (p *TokenAwarePolicy) IsLocal(host *gocql.HostInfo) bool {
	return p.child.IsLocal(host)
}

// Pick implements gocql.HostSelectionPolicy.
//
// The returned iterator yields the live local replicas of the statement's
// partition first and then the child policy's hosts. Hosts that came from
// the child are returned as the child selected them, so its Mark feedback
// keeps working.
func (p *TokenAwarePolicy) Pick(stmt gocql.ExecutableStatement) gocql.NextHost {
	if stmt == nil {
		return p.child.Pick(stmt)
	}

	next := p.router.Pick(stmt, func() cql.ChildPlan[gocql.SelectedHost] {
		return childPlan(p.child.Pick(stmt))
	})

	return func() gocql.SelectedHost {
		c, ok := next()
		if !ok {
			return nil
		}
		if c.FromChild {
			return c.Selected
		}

		return replicaHost{info: c.Host}
	}
}

func (p *TokenAwarePolicy) sessionKeyspace(name string) (string, map[string]string, error) {
	session := p.session.Load()
	if session == nil {
		return "", nil, errNoSession
	}

	md, err := session.KeyspaceMetadata(name)
	if err != nil {
		return "", nil, err
	}

	return md.StrategyClass, cql.StrategyOptions(md.StrategyOptions), nil
}

func (p *TokenAwarePolicy) describeHost(host *gocql.HostInfo) cql.Host {
	return cql.Host{
		ID:         p.hostID(host),
		Address:    hostAddress(host),
		Datacenter: host.DataCenter(),
		Rack:       host.Rack(),
		Tokens:     host.Tokens(),
		Up:         host.IsUp(),
	}
}

func defaultHostID(host *gocql.HostInfo) string {
	if id := host.HostID(); id != "" {
		return id
	}

	return hostAddress(host)
}

func hostAddress(host *gocql.HostInfo) string {
	return net.JoinHostPort(host.ConnectAddress().String(), strconv.Itoa(host.Port()))
}

// childPlan adapts a child policy's NextHost.
func childPlan(next gocql.NextHost) cql.ChildPlan[gocql.SelectedHost] {
	return func() (gocql.SelectedHost, bool) {
		if next == nil {
			return nil, false
		}
		sh := next()
		if sh == nil {
			next = nil
			return nil, false
		}

		return sh, true
	}
}

// driver gives the router access to gocql v2 through the policy.
type driver struct {
	policy *TokenAwarePolicy
}

func (d driver) Describe(host *gocql.HostInfo) cql.Host {
	return d.policy.describe(host)
}

func (d driver) IsLocal(host *gocql.HostInfo) bool {
	return d.policy.child.IsLocal(host)
}

func (d driver) Selected(sh gocql.SelectedHost) (*gocql.HostInfo, bool) {
	info := sh.Info()
	return info, info != nil
}

func (d driver) LoadKeyspace(name string) (string, map[string]string, error) {
	return d.policy.loadKeyspace(name)
}

// replicaHost is a replica chosen from the ring rather than by the child
// policy. Its feedback is dropped; the child only learns about hosts it
// selected itself.
type replicaHost struct {
	info *gocql.HostInfo
}

func (h replicaHost) Info() *gocql.HostInfo {
	return h.info
}

func (h replicaHost) Mark(error) {}
