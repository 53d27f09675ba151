package policy

import (
	"math"
	"sync"
	"time"

	"github.com/arloliu/tokenaware"
	"github.com/arloliu/tokenaware/internal/logging"
	"github.com/arloliu/tokenaware/types"
)

// LatencyAware reorders the plan of another fallback planner so that nodes
// measurably slower than the fastest one are tried last.
//
// Latency is tracked per node as a time-weighted moving average: the older
// the previous average, the less it weighs against a new sample. A node is
// moved to the end of the plan when all of these hold:
//   - it has at least MinMeasured samples
//   - its last sample is more recent than RetryPeriod
//   - its average exceeds ExclusionThreshold times the fastest node's average
//
// Slow nodes are never dropped, only postponed. After RetryPeriod without
// samples a node is offered in its normal position again so that it gets a
// chance to prove it recovered.
//
// LatencyAware measures nothing itself. Without samples it keeps the child's
// order, so callers must pass the latency of every completed request to
// Record.
//
// Example:
//
//	fallback := policy.NewLatencyAware(
//	    policy.NewDCAwareRoundRobin(store, policy.WithLocalDC("dc1")),
//	    policy.WithExclusionThreshold(2),
//	)
//	// after each request:
//	fallback.Record(node, time.Since(start))
type LatencyAware struct {
	child       tokenaware.FallbackPlanner
	threshold   float64
	scale       time.Duration
	retryPeriod time.Duration
	minMeasured int
	logger      types.Logger
	now         func() time.Time

	mu    sync.RWMutex
	stats map[types.NodeID]latencyStats
}

var _ tokenaware.FallbackPlanner = (*LatencyAware)(nil)

// latencyStats is a node's moving average in nanoseconds.
type latencyStats struct {
	average   float64
	samples   int
	timestamp time.Time
}

// LatencyAwareOption configures a LatencyAware planner.
type LatencyAwareOption func(*LatencyAware)

// WithExclusionThreshold sets how many times slower than the fastest node a
// node must be to be postponed. Values below 1 are ignored.
//
// Default: 2.0
//
// Parameters:
//   - threshold: Ratio to the fastest node's average
//
// Returns:
//   - LatencyAwareOption: Configuration option
func WithExclusionThreshold(threshold float64) LatencyAwareOption {
	return func(l *LatencyAware) {
		if threshold >= 1 {
			l.threshold = threshold
		}
	}
}

// WithScale sets the time scale of the moving average. A previous average
// that is one scale old weighs about 70% against a new sample.
//
// Default: 100ms
//
// Parameters:
//   - d: Scale duration
//
// Returns:
//   - LatencyAwareOption: Configuration option
func WithScale(d time.Duration) LatencyAwareOption {
	return func(l *LatencyAware) {
		if d > 0 {
			l.scale = d
		}
	}
}

// WithRetryPeriod sets how long a slow node without new samples stays
// postponed.
//
// Default: 10s
//
// Parameters:
//   - d: Retry period
//
// Returns:
//   - LatencyAwareOption: Configuration option
func WithRetryPeriod(d time.Duration) LatencyAwareOption {
	return func(l *LatencyAware) {
		if d > 0 {
			l.retryPeriod = d
		}
	}
}

// WithMinMeasured sets how many samples a node needs before its average is
// trusted.
//
// Default: 50
//
// Parameters:
//   - n: Minimum number of samples
//
// Returns:
//   - LatencyAwareOption: Configuration option
func WithMinMeasured(n int) LatencyAwareOption {
	return func(l *LatencyAware) {
		if n >= 0 {
			l.minMeasured = n
		}
	}
}

// WithLatencyLogger sets the logger.
//
// Parameters:
//   - logger: Structured logger; nil restores the no-op logger
//
// Returns:
//   - LatencyAwareOption: Configuration option
func WithLatencyLogger(logger types.Logger) LatencyAwareOption {
	return func(l *LatencyAware) {
		l.logger = logging.OrNop(logger)
	}
}

// NewLatencyAware wraps child with latency-aware reordering.
//
// Parameters:
//   - child: The planner whose plans are reordered
//   - opts: Optional configuration options
//
// Returns:
//   - *LatencyAware: A new planner
func NewLatencyAware(child tokenaware.FallbackPlanner, opts ...LatencyAwareOption) *LatencyAware {
	l := &LatencyAware{
		child:       child,
		threshold:   2.0,
		scale:       100 * time.Millisecond,
		retryPeriod: 10 * time.Second,
		minMeasured: 50,
		logger:      logging.NewNopLogger(),
		now:         time.Now,
		stats:       make(map[types.NodeID]latencyStats),
	}
	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Record adds a latency sample for node.
//
// Parameters:
//   - node: The node that served the request
//   - latency: How long the request took
func (l *LatencyAware) Record(node types.Node, latency time.Duration) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	prev, ok := l.stats[node.ID]
	if !ok {
		l.stats[node.ID] = latencyStats{average: float64(latency), samples: 1, timestamp: now}
		return
	}

	l.stats[node.ID] = prev.add(float64(latency), now, l.scale)
}

// add folds a sample into the average, weighting the previous average by
// ln(x+1)/x where x is its age in scales.
func (s latencyStats) add(sample float64, now time.Time, scale time.Duration) latencyStats {
	age := now.Sub(s.timestamp)
	if age <= 0 {
		s.samples++
		s.average = (s.average*float64(s.samples-1) + sample) / float64(s.samples)
		return s
	}

	scaled := float64(age) / float64(scale)
	weight := math.Log(scaled+1) / scaled

	return latencyStats{
		average:   (1-weight)*sample + weight*s.average,
		samples:   s.samples + 1,
		timestamp: now,
	}
}

// Average returns a node's current average latency.
//
// Returns:
//   - time.Duration: The moving average
//   - int: Number of samples recorded
//   - bool: false if no sample was recorded for the node
func (l *LatencyAware) Average(node types.Node) (time.Duration, int, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s, ok := l.stats[node.ID]

	return time.Duration(s.average), s.samples, ok
}

// Forget drops the samples of a node, e.g. after it was removed.
func (l *LatencyAware) Forget(id types.NodeID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.stats, id)
}

// Plan implements tokenaware.FallbackPlanner.
func (l *LatencyAware) Plan(keyspace string, req tokenaware.Request) tokenaware.NodeIterator {
	child := l.child.Plan(keyspace, req)
	if child == nil {
		return tokenaware.NewSliceIterator(nil)
	}

	now := l.now()

	l.mu.RLock()
	defer l.mu.RUnlock()

	fastest := math.Inf(1)
	for _, s := range l.stats {
		if l.trusted(s, now) {
			fastest = min(fastest, s.average)
		}
	}
	if math.IsInf(fastest, 1) {
		return child
	}

	limit := l.threshold * fastest
	slow := make(map[types.NodeID]struct{})
	for id, s := range l.stats {
		if l.trusted(s, now) && s.average > limit {
			slow[id] = struct{}{}
		}
	}
	if len(slow) == 0 {
		return child
	}

	l.logger.Debug("postponing slow nodes", "count", len(slow), "fastest", time.Duration(fastest))

	return &latencyIterator{child: child, slow: slow}
}

func (l *LatencyAware) trusted(s latencyStats, now time.Time) bool {
	return s.samples >= l.minMeasured && now.Sub(s.timestamp) <= l.retryPeriod
}

// latencyIterator passes the child plan through, holding back slow nodes
// until the child plan is exhausted.
type latencyIterator struct {
	child   tokenaware.NodeIterator
	slow    map[types.NodeID]struct{}
	held    []types.Node
	heldPos int
	drained bool
}

func (it *latencyIterator) Next() (types.Node, bool) {
	for !it.drained {
		node, ok := it.child.Next()
		if !ok {
			it.drained = true
			break
		}
		if _, slow := it.slow[node.ID]; slow {
			it.held = append(it.held, node)
			continue
		}

		return node, true
	}

	if it.heldPos < len(it.held) {
		node := it.held[it.heldPos]
		it.heldPos++

		return node, true
	}

	return types.Node{}, false
}
