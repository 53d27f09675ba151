// Package tokenaware provides replica-aware query routing for Cassandra and
// ScyllaDB clients.
//
// A Planner turns a request into a query plan: an ordered, lazily produced
// sequence of nodes to try. When the request carries a routing key and the
// topology knows the keyspace, the live local replicas of the partition come
// first; the rest of the plan comes from a fallback planner such as a
// round-robin or datacenter-aware policy. Without routing information the
// fallback plan is returned unchanged.
//
// # Key Features
//
//   - Three replica orderings: Random (default), Natural ring order and
//     Neutral, which keeps the fallback planner's order
//   - Lazy plans: the fallback planner is only consulted once the replicas
//     are exhausted
//   - Immutable topology snapshots with Murmur3 token rings and Simple,
//     NetworkTopology, Local and Everywhere replication (package topology)
//   - Fallback policies: round-robin, datacenter-aware and latency-aware
//     (package policy)
//   - A gocql host selection policy (package adapter/cql/v1)
//   - Topology distribution through NATS JetStream KV (topology.NATS)
//
// # Basic Usage
//
//	store := topology.NewStore(snapshot)
//	fallback := policy.NewDCAwareRoundRobin(store, policy.WithLocalDC("dc1"))
//
//	planner, err := tokenaware.NewPlanner(store, fallback,
//	    tokenaware.WithReplicaOrdering(tokenaware.OrderingNatural),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	plan := planner.Plan("shop", req)
//	for node := range plan.All() {
//	    if err := send(node, req); err == nil {
//	        break
//	    }
//	}
//
// # Delegation
//
// A plan is delegated, that is it yields the fallback plan verbatim, when no
// topology is available, the request has no routing key or its routing key
// cannot be computed, no keyspace is known, the lookup fails or the replica
// set is empty. QueryPlan.DelegationReason reports which one applied:
//
//	if reason := plan.DelegationReason(); reason != tokenaware.ReasonNone {
//	    log.Debug("query not routed", "reason", reason)
//	}
//
// # Configuration
//
// Planner options can be set in code or loaded from YAML:
//
//	settings, err := tokenaware.LoadSettings("routing.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	planner, err := tokenaware.NewPlanner(store, fallback, settings.Options()...)
//
// # Thread Safety
//
// Planner is safe for concurrent use. A QueryPlan belongs to one request and
// must not be shared between goroutines.
package tokenaware
