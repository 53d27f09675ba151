package testutil

import (
	"sync"

	"github.com/arloliu/tokenaware/types"
)

// TestMetricsCollector is a test implementation of types.MetricsCollector
// that tracks method calls for assertion in integration tests.
type TestMetricsCollector struct {
	mu sync.RWMutex

	// Planning
	PlanTotal     map[types.ReplicaOrdering]int64
	PlanDelegated map[types.DelegationReason]int64
	ReplicaCounts []int

	// Plan consumption
	ReplicaYield    int64
	FallbackYield   int64
	BufferedDropped int64

	// Topology
	TopologyUpdates int64
	NodesUp         int
	NodesDown       int
}

// Compile-time assertion that TestMetricsCollector implements types.MetricsCollector.
var _ types.MetricsCollector = (*TestMetricsCollector)(nil)

// NewTestMetricsCollector creates a new test metrics collector.
func NewTestMetricsCollector() *TestMetricsCollector {
	return &TestMetricsCollector{
		PlanTotal:     make(map[types.ReplicaOrdering]int64),
		PlanDelegated: make(map[types.DelegationReason]int64),
	}
}

// IncPlanTotal implements types.MetricsCollector.
func (m *TestMetricsCollector) IncPlanTotal(ordering types.ReplicaOrdering) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PlanTotal[ordering]++
}

// IncPlanDelegated implements types.MetricsCollector.
func (m *TestMetricsCollector) IncPlanDelegated(reason types.DelegationReason) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PlanDelegated[reason]++
}

// ObserveReplicaCount implements types.MetricsCollector.
func (m *TestMetricsCollector) ObserveReplicaCount(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReplicaCounts = append(m.ReplicaCounts, n)
}

// IncReplicaYield implements types.MetricsCollector.
func (m *TestMetricsCollector) IncReplicaYield() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReplicaYield++
}

// IncFallbackYield implements types.MetricsCollector.
func (m *TestMetricsCollector) IncFallbackYield() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FallbackYield++
}

// AddBufferedDropped implements types.MetricsCollector.
func (m *TestMetricsCollector) AddBufferedDropped(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BufferedDropped += int64(n)
}

// IncTopologyUpdate implements types.MetricsCollector.
func (m *TestMetricsCollector) IncTopologyUpdate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TopologyUpdates++
}

// SetTopologyNodes implements types.MetricsCollector.
func (m *TestMetricsCollector) SetTopologyNodes(up, down int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NodesUp = up
	m.NodesDown = down
}

// Plans returns the number of plans built with an ordering.
func (m *TestMetricsCollector) Plans(ordering types.ReplicaOrdering) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.PlanTotal[ordering]
}

// Delegated returns the number of plans delegated for a reason.
func (m *TestMetricsCollector) Delegated(reason types.DelegationReason) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.PlanDelegated[reason]
}

// Yields returns the replica and fallback yield counts.
func (m *TestMetricsCollector) Yields() (replica, fallback int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.ReplicaYield, m.FallbackYield
}

// Nodes returns the last reported node counts.
func (m *TestMetricsCollector) Nodes() (up, down int) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.NodesUp, m.NodesDown
}
