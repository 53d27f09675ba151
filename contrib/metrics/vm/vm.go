package vm

import (
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"

	"github.com/arloliu/tokenaware/types"
)

// Option configures a Collector.
type Option func(*Collector)

// WithPrefix sets the metric name prefix.
//
// Default: "tokenaware"
//
// Parameters:
//   - prefix: The prefix to use for all metric names
//
// Returns:
//   - Option: A configuration option
func WithPrefix(prefix string) Option {
	return func(c *Collector) {
		c.prefix = prefix
	}
}

// WithMetricsSet sets the metrics set to use.
//
// If provided, the collector will register metrics with this set instead of
// creating a new one. The caller is responsible for exposing this set
// (e.g., via metrics.WritePrometheus or a custom handler).
//
// Parameters:
//   - set: The metrics set to use
//
// Returns:
//   - Option: A configuration option
func WithMetricsSet(set *metrics.Set) Option {
	return func(c *Collector) {
		c.set = set
	}
}

// Collector implements types.MetricsCollector using VictoriaMetrics.
//
// All metrics are pre-created at initialization time for optimal performance.
// Thread-safe for concurrent use.
type Collector struct {
	set    *metrics.Set
	prefix string

	// Planning metrics, indexed by ordering and delegation reason
	planTotal     map[types.ReplicaOrdering]*metrics.Counter
	planDelegated map[types.DelegationReason]*metrics.Counter
	replicaCount  *metrics.Histogram

	// Plan consumption metrics
	replicaYield    *metrics.Counter
	fallbackYield   *metrics.Counter
	bufferedDropped *metrics.Counter

	// Topology metrics
	topologyUpdates *metrics.Counter
	nodesUp         atomic.Int64
	nodesDown       atomic.Int64
}

var _ types.MetricsCollector = (*Collector)(nil)

// New creates a new VictoriaMetrics-based metrics collector.
//
// The collector creates its own metrics.Set and registers it globally.
// All metrics are pre-created at initialization for optimal performance.
//
// Parameters:
//   - opts: Configuration options (e.g., WithPrefix)
//
// Returns:
//   - *Collector: A new metrics collector ready for use
//
// Example:
//
//	collector := vm.New(vm.WithPrefix("myapp"))
//	planner, _ := tokenaware.NewPlanner(store, fallback,
//	    tokenaware.WithMetrics(collector),
//	)
func New(opts ...Option) *Collector {
	c := &Collector{
		prefix: "tokenaware",
	}

	for _, opt := range opts {
		opt(c)
	}

	// If no set is provided, create a new one and register it globally.
	// If a set is provided, we assume the caller manages it.
	if c.set == nil {
		c.set = metrics.NewSet()
		metrics.RegisterSet(c.set)
	}

	c.initMetrics()

	return c
}

// initMetrics pre-creates all metrics with the configured prefix.
func (c *Collector) initMetrics() {
	p := c.prefix

	// Planning metrics
	orderings := []types.ReplicaOrdering{types.OrderingRandom, types.OrderingNatural, types.OrderingNeutral}
	c.planTotal = make(map[types.ReplicaOrdering]*metrics.Counter, len(orderings))
	for _, o := range orderings {
		c.planTotal[o] = c.set.NewCounter(fmt.Sprintf(`%s_plans_total{ordering="%s"}`, p, o))
	}

	reasons := types.DelegationReasons()
	c.planDelegated = make(map[types.DelegationReason]*metrics.Counter, len(reasons))
	for _, r := range reasons {
		c.planDelegated[r] = c.set.NewCounter(fmt.Sprintf(`%s_plans_delegated_total{reason="%s"}`, p, r))
	}
	c.replicaCount = c.set.NewHistogram(fmt.Sprintf(`%s_replica_set_size`, p))

	// Plan consumption metrics
	c.replicaYield = c.set.NewCounter(fmt.Sprintf(`%s_nodes_yielded_total{phase="replica"}`, p))
	c.fallbackYield = c.set.NewCounter(fmt.Sprintf(`%s_nodes_yielded_total{phase="fallback"}`, p))
	c.bufferedDropped = c.set.NewCounter(fmt.Sprintf(`%s_buffered_dropped_total`, p))

	// Topology metrics - gauges with callbacks
	c.topologyUpdates = c.set.NewCounter(fmt.Sprintf(`%s_topology_updates_total`, p))
	c.set.NewGauge(fmt.Sprintf(`%s_topology_nodes{state="up"}`, p), func() float64 {
		return float64(c.nodesUp.Load())
	})
	c.set.NewGauge(fmt.Sprintf(`%s_topology_nodes{state="down"}`, p), func() float64 {
		return float64(c.nodesDown.Load())
	})
}

// Set returns the underlying metrics set.
func (c *Collector) Set() *metrics.Set {
	return c.set
}

// Handler returns an HTTP handler that exposes metrics in Prometheus format.
//
// Example:
//
//	http.HandleFunc("/metrics", collector.Handler)
func (c *Collector) Handler(w http.ResponseWriter, _ *http.Request) {
	c.set.WritePrometheus(w)
}

// WritePrometheus writes all metrics in Prometheus format to the given writer.
//
// Parameters:
//   - w: The writer to write metrics to
func (c *Collector) WritePrometheus(w io.Writer) {
	c.set.WritePrometheus(w)
}

// ----------------------
// Planning
// ----------------------

// IncPlanTotal increments the plan counter of an ordering. Unknown
// orderings are not counted.
func (c *Collector) IncPlanTotal(ordering types.ReplicaOrdering) {
	if counter, ok := c.planTotal[ordering]; ok {
		counter.Inc()
	}
}

// IncPlanDelegated increments the delegation counter of a reason.
func (c *Collector) IncPlanDelegated(reason types.DelegationReason) {
	if counter, ok := c.planDelegated[reason]; ok {
		counter.Inc()
	}
}

// ObserveReplicaCount records the size of a replica set.
func (c *Collector) ObserveReplicaCount(n int) {
	c.replicaCount.Update(float64(n))
}

// ----------------------
// Plan consumption
// ----------------------

// IncReplicaYield increments the replica phase yield counter.
func (c *Collector) IncReplicaYield() {
	c.replicaYield.Inc()
}

// IncFallbackYield increments the fallback phase yield counter.
func (c *Collector) IncFallbackYield() {
	c.fallbackYield.Inc()
}

// AddBufferedDropped adds to the dropped Neutral candidates counter.
func (c *Collector) AddBufferedDropped(n int) {
	if n > 0 {
		c.bufferedDropped.Add(n)
	}
}

// ----------------------
// Topology
// ----------------------

// IncTopologyUpdate increments the installed snapshot counter.
func (c *Collector) IncTopologyUpdate() {
	c.topologyUpdates.Inc()
}

// SetTopologyNodes sets the node gauges.
func (c *Collector) SetTopologyNodes(up, down int) {
	c.nodesUp.Store(int64(up))
	c.nodesDown.Store(int64(down))
}
