// Package types provides shared types and error definitions for the tokenaware library.
//
// This is a leaf package with zero tokenaware imports to prevent import cycles.
// All packages in tokenaware can safely import this package.
//
// # Types
//
// Node identifies a cluster member by ID, address, datacenter and rack:
//
//	node := types.Node{ID: "6ab6...", Address: "10.0.0.1:9042", Datacenter: "dc1", Rack: "r1"}
//
// ReplicaOrdering selects how a planner orders replicas:
//
//	const (
//	    OrderingRandom  ReplicaOrdering = iota // default
//	    OrderingNatural                        // ring order
//	    OrderingNeutral                        // fallback planner's order
//	)
//
// PlanState names the lifecycle states of a query plan:
//
//	Created -> Delegated | ScanningReplicas -> DrainingFallback -> Exhausted
//
// # Errors
//
// Sentinel errors are provided for routing and topology failures:
//
//   - ErrRoutingInfoUnavailable: No routing key, keyspace or replicas
//   - ErrTopologyLookup: A replica lookup failed
//   - ErrUnknownKeyspace: No replication settings known for a keyspace
//   - ErrUnknownPartitioner: Unsupported partitioner class
//   - ErrUnknownReplicationStrategy: Unsupported replication class
//
// Planners never return the first two; they appear as delegation reasons
// and inside LookupError values produced by topology views.
package types
