// Package v2 provides a token-aware host selection policy for the Apache
// Cassandra gocql driver v2.x.
//
// TokenAwarePolicy wraps any gocql.HostSelectionPolicy. The child keeps
// deciding which hosts are local and in which order the remaining hosts are
// tried; the wrapper moves the live local replicas of each statement's
// partition to the front. It behaves like the v1 adapter and shares its
// routing core, adapter/cql.Router.
//
// # Installation
//
//	import (
//	    gocql "github.com/apache/cassandra-gocql-driver/v2"
//	    "github.com/arloliu/tokenaware/adapter/cql/v2"
//	)
//
// # Usage
//
//	cluster := gocql.NewCluster("127.0.0.1", "127.0.0.2")
//	cluster.Keyspace = "my_keyspace"
//
//	policy, err := v2.NewTokenAwarePolicy(
//	    gocql.DCAwareRoundRobinPolicy("dc1"),
//	    v2.WithDefaultKeyspace(cluster.Keyspace),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cluster.PoolConfig.HostSelectionPolicy = policy
//
//	session, err := cluster.CreateSession()
//
// Statements without a routing key use the child policy's order unchanged.
package v2
