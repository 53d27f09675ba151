// Package v1 provides a token-aware host selection policy for gocql v1.x.
//
// TokenAwarePolicy wraps any gocql.HostSelectionPolicy. The child keeps
// deciding which hosts are local and in which order the remaining hosts are
// tried; the wrapper moves the live local replicas of each query's partition
// to the front.
//
// # Installation
//
// Import this package along with gocql v1.x:
//
//	import (
//	    "github.com/gocql/gocql"
//	    "github.com/arloliu/tokenaware/adapter/cql/v1"
//	)
//
// # Usage
//
//	cluster := gocql.NewCluster("127.0.0.1", "127.0.0.2")
//	cluster.Keyspace = "my_keyspace"
//
//	policy, err := v1.NewTokenAwarePolicy(
//	    gocql.DCAwareRoundRobinPolicy("dc1"),
//	    v1.WithDefaultKeyspace(cluster.Keyspace),
//	    v1.WithPlannerOptions(tokenaware.WithReplicaOrdering(tokenaware.OrderingNatural)),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cluster.PoolConfig.HostSelectionPolicy = policy
//
//	session, err := cluster.CreateSession()
//
// Queries without a routing key (unprepared statements, batches) use the
// child policy's order unchanged.
package v1
