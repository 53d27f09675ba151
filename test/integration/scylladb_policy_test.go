package integration_test

import (
	"testing"

	"github.com/gocql/gocql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/arloliu/tokenaware"
	cqlv1 "github.com/arloliu/tokenaware/adapter/cql/v1"
	zaplog "github.com/arloliu/tokenaware/contrib/logging/zap"
	"github.com/arloliu/tokenaware/test/testutil"
	"github.com/arloliu/tokenaware/types"
)

func TestScyllaDB_TokenAwarePolicy(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if !testutil.IsAIOAvailable() {
		t.Skip("no Linux AIO slots available for ScyllaDB")
	}

	ctx := t.Context()
	container, err := testutil.StartScyllaDB(ctx, t, nil)
	require.NoError(t, err)

	collector := testutil.NewTestMetricsCollector()
	policy, err := cqlv1.NewTokenAwarePolicy(gocql.RoundRobinHostPolicy(),
		cqlv1.WithDefaultKeyspace(container.Keyspace),
		cqlv1.WithLogger(zaplog.New(zaptest.NewLogger(t))),
		cqlv1.WithMetrics(collector),
		cqlv1.WithPlannerOptions(tokenaware.WithReplicaOrdering(tokenaware.OrderingNatural)),
	)
	require.NoError(t, err)

	cluster := testutil.NewCluster(container.Host, container.Keyspace)
	cluster.PoolConfig.HostSelectionPolicy = policy
	session, err := cluster.CreateSession()
	require.NoError(t, err)
	t.Cleanup(session.Close)

	require.NoError(t, session.Query(`CREATE TABLE IF NOT EXISTS items (id int PRIMARY KEY, name text)`).Exec())

	for i := range 20 {
		require.NoError(t, session.Query(`INSERT INTO items (id, name) VALUES (?, ?)`, i, "item").Exec())
	}

	var name string
	require.NoError(t, session.Query(`SELECT name FROM items WHERE id = ?`, 7).Scan(&name))
	assert.Equal(t, "item", name)

	snap := policy.Store().Snapshot()
	require.NotNil(t, snap)
	up, down := snap.NodeCounts()
	assert.Equal(t, 1, up)
	assert.Zero(t, down)
	assert.NotEmpty(t, snap.Tokens(snap.Nodes()[0].ID))
	assert.Contains(t, snap.Keyspaces(), container.Keyspace)

	// Routed statements go to the single replica first.
	replica, _ := collector.Yields()
	assert.Positive(t, replica)
	assert.Positive(t, collector.Plans(types.OrderingNatural))
}
