// Package testutil provides test helpers for tokenaware testing.
//
// # Metrics
//
// [TestMetricsCollector] records every metrics call for assertions:
//
//	collector := testutil.NewTestMetricsCollector()
//	planner, _ := tokenaware.NewPlanner(store, fallback, tokenaware.WithMetrics(collector))
//	...
//	require.Equal(t, int64(1), collector.Delegated(tokenaware.ReasonNoRoutingKey))
//
// # Integration Test Helpers
//
// For integration tests, helper functions are provided:
//
//   - StartEmbeddedNATS, CreateKV: an embedded NATS server with JetStream
//     for topology distribution tests
//   - StartScyllaDB: a ScyllaDB test container (requires Docker)
//   - NewCluster: a gocql cluster configuration for a test container
package testutil
