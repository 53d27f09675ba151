// Package cql connects CQL drivers to token-aware routing.
//
// Drivers report cluster members, their tokens and liveness through host
// events. HostTracker applies those events to a topology.Store, which the
// planner reads as its topology view:
//
//	tracker := cql.NewHostTracker(nil, cql.WithLocalDatacenter("dc1"))
//	_ = tracker.AddHost(cql.Host{ID: id, Address: "10.0.0.1:9042", Datacenter: "dc1", Tokens: tokens, Up: true})
//	_ = tracker.SetKeyspace("shop", "NetworkTopologyStrategy", map[string]string{"dc1": "3"})
//
// # Adapters
//
// Router is the driver-neutral core of a token-aware host selection policy.
// A driver version supplies a Driver describing its hosts, child policy and
// schema; the driver-specific policies in the subpackages are thin wrappers
// around it:
//
//   - [github.com/arloliu/tokenaware/adapter/cql/v1]: host selection policy for gocql v1.x
//   - [github.com/arloliu/tokenaware/adapter/cql/v2]: host selection policy for the Apache Cassandra gocql driver v2.x
package cql
