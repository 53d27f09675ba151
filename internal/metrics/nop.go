// Package metrics provides internal metrics utilities for tokenaware.
package metrics

import "github.com/arloliu/tokenaware/types"

// NopMetrics is a no-op metrics collector that discards all metrics.
//
// This is used as the default metrics collector when no collector is configured,
// avoiding nil checks on the plan path.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements types.MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNopMetrics creates a new no-op metrics collector.
//
// Returns:
//   - *NopMetrics: A collector that discards all metrics
func NewNopMetrics() *NopMetrics {
	return &NopMetrics{}
}

// OrNop returns collector, or a NopMetrics when collector is nil.
func OrNop(collector types.MetricsCollector) types.MetricsCollector {
	if collector == nil {
		return NewNopMetrics()
	}

	return collector
}

// ----------------------
// Planning
// ----------------------

// IncPlanTotal discards the metric.
func (m *NopMetrics) IncPlanTotal(_ types.ReplicaOrdering) {}

// IncPlanDelegated discards the metric.
func (m *NopMetrics) IncPlanDelegated(_ types.DelegationReason) {}

// ObserveReplicaCount discards the metric.
func (m *NopMetrics) ObserveReplicaCount(_ int) {}

// ----------------------
// Plan consumption
// ----------------------

// IncReplicaYield discards the metric.
func (m *NopMetrics) IncReplicaYield() {}

// IncFallbackYield discards the metric.
func (m *NopMetrics) IncFallbackYield() {}

// AddBufferedDropped discards the metric.
func (m *NopMetrics) AddBufferedDropped(_ int) {}

// ----------------------
// Topology
// ----------------------

// IncTopologyUpdate discards the metric.
func (m *NopMetrics) IncTopologyUpdate() {}

// SetTopologyNodes discards the metric.
func (m *NopMetrics) SetTopologyNodes(_, _ int) {}
