// Package topology models a Cassandra or ScyllaDB cluster for token-aware
// routing.
//
// A [Snapshot] is an immutable picture of the cluster: nodes with their
// datacenter, rack and liveness, the token ring, and the replication
// strategy of each keyspace. It implements [tokenaware.TopologyView]. A
// [Store] holds the current snapshot and swaps it atomically, so a planner
// never observes a half-applied change; it implements
// [tokenaware.TopologyProvider].
//
// # Building Snapshots
//
//	b := topology.NewBuilder().SetLocalDatacenter("dc1")
//	_ = b.SetNode(types.Node{ID: hostID, Address: "10.0.0.1:9042", Datacenter: "dc1", Rack: "r1"},
//	    types.NodeUp, []topology.Token{-9223372036854775807})
//	b.SetKeyspace("shop", topology.NetworkTopologyStrategy{
//	    DatacenterFactors: map[string]int{"dc1": 3},
//	})
//
//	store := topology.NewStore(b.Build())
//	planner, _ := tokenaware.NewPlanner(store, fallback)
//
// # Replication
//
// [SimpleStrategy], [NetworkTopologyStrategy] (rack aware),
// [EverywhereStrategy] and [LocalStrategy] place replicas the way the
// server does. [ParseReplication] reads the replication map stored in
// system_schema.keyspaces. Routing keys are hashed with Cassandra's
// Murmur3 variant ([Murmur3Partitioner]).
//
// # NATS Topology
//
// [NATS] keeps a store in sync with a JSON [Document] held in a NATS KV
// bucket. Invalid documents and deletions keep the last good snapshot.
//
//	nc, _ := nats.Connect("nats://localhost:4222")
//	js, _ := jetstream.New(nc)
//	kv, _ := js.KeyValue(ctx, "cassandra")
//
//	store := topology.NewStore(nil)
//	watcher, _ := topology.NewNATS(kv, store, topology.WithLocalDatacenter("dc1"))
//	defer watcher.Close()
//	watcher.Watch(ctx)
package topology
