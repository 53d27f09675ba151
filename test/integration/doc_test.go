// Package integration_test holds end-to-end tests of the planner with its
// real collaborators: an embedded NATS server distributing topology and a
// ScyllaDB container behind the gocql policy.
//
// Run with:
//
//	go test ./test/integration/...
//
// ScyllaDB tests need Docker and free Linux AIO slots and are skipped
// otherwise. All tests are skipped with -short.
package integration_test
