// Package policy provides fallback planners for tokenaware.
//
// A fallback planner orders candidates without routing information. The
// token-aware planner consults it when a request cannot be routed to its
// replicas, and after the local replicas otherwise.
//
// # Available Planners
//
//   - [RoundRobin]: every live node, rotating the starting point per plan
//   - [DCAwareRoundRobin]: local datacenter first, then a bounded number of
//     nodes per remote datacenter
//   - [LatencyAware]: wraps another planner and postpones nodes that are
//     measurably slower than the fastest one
//
// # Usage
//
//	store := topology.NewStore(snapshot)
//	fallback := policy.NewLatencyAware(
//	    policy.NewDCAwareRoundRobin(store,
//	        policy.WithLocalDC("dc1"),
//	        policy.WithUsedHostsPerRemoteDC(1),
//	    ),
//	)
//	planner, _ := tokenaware.NewPlanner(store, fallback)
package policy
