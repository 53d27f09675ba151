package types

// MetricsCollector defines methods for collecting planner metrics.
//
// Implementations should be thread-safe as methods may be called concurrently
// from every goroutine that plans or consumes a query plan.
//
// Example usage with VictoriaMetrics (via contrib/metrics/vm):
//
//	import vmmetrics "github.com/arloliu/tokenaware/contrib/metrics/vm"
//
//	collector := vmmetrics.New(vmmetrics.WithPrefix("myapp"))
//	planner, _ := tokenaware.NewPlanner(store, fallback,
//	    tokenaware.WithMetrics(collector),
//	)
//
//	// Expose metrics via HTTP
//	http.HandleFunc("/metrics", collector.Handler)
type MetricsCollector interface {
	// ----------------------
	// Planning
	// ----------------------

	// IncPlanTotal increments the number of plans built with the given ordering.
	IncPlanTotal(ordering ReplicaOrdering)

	// IncPlanDelegated increments the number of plans handed to the fallback planner.
	IncPlanDelegated(reason DelegationReason)

	// ObserveReplicaCount records the size of a non-empty replica set.
	ObserveReplicaCount(n int)

	// ----------------------
	// Plan consumption
	// ----------------------

	// IncReplicaYield increments the number of local replicas yielded by the replica scan.
	IncReplicaYield()

	// IncFallbackYield increments the number of nodes yielded after the replica scan.
	IncFallbackYield()

	// AddBufferedDropped adds the number of buffered Neutral candidates that
	// were dropped instead of yielded.
	AddBufferedDropped(n int)

	// ----------------------
	// Topology
	// ----------------------

	// IncTopologyUpdate increments the number of topology snapshots installed.
	IncTopologyUpdate()

	// SetTopologyNodes sets the number of known nodes by state.
	SetTopologyNodes(up, down int)
}
