package integration_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"testing"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/arloliu/tokenaware"
	zaplog "github.com/arloliu/tokenaware/contrib/logging/zap"
	"github.com/arloliu/tokenaware/contrib/metrics/vm"
	"github.com/arloliu/tokenaware/policy"
	"github.com/arloliu/tokenaware/test/testutil"
	"github.com/arloliu/tokenaware/topology"
	"github.com/arloliu/tokenaware/types"
)

// request carries a routing key and leaves the keyspace to the caller.
type request struct {
	key []byte
}

func (r request) GetRoutingKey() ([]byte, error) { return r.key, nil }
func (r request) Keyspace() string               { return "" }

// twoDCDocument describes six nodes, three per datacenter, with a
// NetworkTopologyStrategy keyspace replicated twice in each.
func twoDCDocument() *topology.Document {
	doc := &topology.Document{
		Partitioner: topology.Murmur3PartitionerName,
		Keyspaces: map[string]topology.DocumentKeyspace{
			"shop": {Class: "NetworkTopologyStrategy", Options: map[string]string{"dc1": "2", "dc2": "2"}},
		},
	}
	tokens := []string{"-6000000000000000000", "-3000000000000000000", "0", "3000000000000000000", "6000000000000000000", "8000000000000000000"}
	for i, tok := range tokens {
		dc := "dc1"
		if i%2 == 1 {
			dc = "dc2"
		}
		doc.Nodes = append(doc.Nodes, topology.DocumentNode{
			HostID:     fmt.Sprintf("00000000-0000-0000-0000-%012d", i+1),
			Address:    fmt.Sprintf("10.0.0.%d:9042", i+1),
			Datacenter: dc,
			Rack:       "r1",
			State:      "up",
			Tokens:     []string{tok},
		})
	}

	return doc
}

func publish(ctx context.Context, t *testing.T, kv jetstream.KeyValue, doc *topology.Document) {
	t.Helper()

	data, err := doc.Marshal()
	require.NoError(t, err)
	_, err = kv.Put(ctx, "tokenaware.topology", data)
	require.NoError(t, err)
}

func TestNATSTopology_RoutesToLocalReplicas(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := t.Context()
	js := testutil.StartEmbeddedNATS(t)
	kv := testutil.CreateKV(t, js, "routing")
	publish(ctx, t, kv, twoDCDocument())

	logger := zaplog.New(zaptest.NewLogger(t))
	collector := testutil.NewTestMetricsCollector()
	store := topology.NewStore(nil, topology.WithStoreLogger(logger), topology.WithStoreMetrics(collector))

	watcher, err := topology.NewNATS(kv, store,
		topology.WithLocalDatacenter("dc1"),
		topology.WithPollInterval(100*time.Millisecond),
		topology.WithWatcherLogger(logger),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = watcher.Close() })
	watcher.Watch(ctx)
	require.NotNil(t, store.Snapshot(), "initial fetch installs a snapshot before Watch returns")

	fallback := policy.NewDCAwareRoundRobin(store, policy.WithLocalDC("dc1"), policy.WithUsedHostsPerRemoteDC(1))
	planner, err := tokenaware.NewPlanner(store, fallback,
		tokenaware.WithReplicaOrdering(tokenaware.OrderingNatural),
		tokenaware.WithLogger(logger),
		tokenaware.WithMetrics(collector),
	)
	require.NoError(t, err)

	for i := range 50 {
		key := binary.BigEndian.AppendUint32(nil, uint32(i))
		replicas, err := store.Snapshot().FindReplicas("shop", key)
		require.NoError(t, err)
		require.Len(t, replicas, 4)

		var localReplicas []types.NodeID
		for _, r := range replicas {
			if r.Datacenter == "dc1" {
				localReplicas = append(localReplicas, r.ID)
			}
		}

		plan := planner.Plan("shop", request{key: key})
		var got []types.NodeID
		for n := range plan.All() {
			got = append(got, n.ID)
		}
		require.GreaterOrEqual(t, len(got), len(localReplicas))
		assert.Equal(t, localReplicas, got[:len(localReplicas)], "key %d", i)
	}
	assert.Equal(t, int64(50), collector.Plans(types.OrderingNatural))

	// Take one dc1 node down: it disappears from the replica phase.
	doc := twoDCDocument()
	doc.Nodes[0].State = "down"
	publish(ctx, t, kv, doc)

	down := types.NodeID(doc.Nodes[0].HostID)
	require.Eventually(t, func() bool {
		return store.Snapshot().State(down) == types.NodeDown
	}, 5*time.Second, 20*time.Millisecond)
	up, downCount := collector.Nodes()
	assert.Equal(t, 5, up)
	assert.Equal(t, 1, downCount)

	for i := range 50 {
		plan := planner.Plan("shop", request{key: binary.BigEndian.AppendUint32(nil, uint32(i))})
		for n := range plan.All() {
			if plan.State() == types.PlanScanningReplicas {
				assert.NotEqual(t, down, n.ID)
			}
		}
	}
}

func TestNATSTopology_LatencyAwareFallback(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := t.Context()
	js := testutil.StartEmbeddedNATS(t)
	kv := testutil.CreateKV(t, js, "latency")
	publish(ctx, t, kv, twoDCDocument())

	store := topology.NewStore(nil)
	watcher, err := topology.NewNATS(kv, store, topology.WithLocalDatacenter("dc1"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = watcher.Close() })
	watcher.Watch(ctx)

	latency := policy.NewLatencyAware(policy.NewDCAwareRoundRobin(store, policy.WithLocalDC("dc1")),
		policy.WithMinMeasured(1),
		policy.WithExclusionThreshold(2),
	)

	set := metrics.NewSet()
	collector := vm.New(vm.WithPrefix("it"), vm.WithMetricsSet(set))
	planner, err := tokenaware.NewPlanner(store, latency,
		tokenaware.WithReplicaOrdering(tokenaware.OrderingNeutral),
		tokenaware.WithMetrics(collector),
	)
	require.NoError(t, err)

	// Make one local node slow; it moves behind the fast ones.
	nodes := store.Snapshot().Nodes()
	var slow types.Node
	for _, n := range nodes {
		if n.Datacenter != "dc1" {
			continue
		}
		if slow.IsZero() {
			slow = n
			latency.Record(n, 50*time.Millisecond)
			continue
		}
		latency.Record(n, time.Millisecond)
	}

	// Without a routing key the plan is the latency-aware plan.
	plan := planner.Plan("shop", request{})
	require.Equal(t, types.ReasonNoRoutingKey, plan.DelegationReason())
	var got []types.NodeID
	for n := range plan.All() {
		got = append(got, n.ID)
	}
	require.NotEmpty(t, got)
	assert.NotEqual(t, slow.ID, got[0])
	assert.Contains(t, got, slow.ID, "slow nodes are postponed, not dropped")

	var buf bytes.Buffer
	collector.WritePrometheus(&buf)
	assert.Contains(t, buf.String(), `it_plans_delegated_total{reason="no_routing_key"} 1`)
}
