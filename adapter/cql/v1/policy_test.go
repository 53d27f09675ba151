package v1

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gocql/gocql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/tokenaware"
	"github.com/arloliu/tokenaware/adapter/cql"
	"github.com/arloliu/tokenaware/types"
)

// Routing key of token(1) on an int partition key; its token is
// -4069959284402364209, owned by h2 on the ring below.
var keyOne = []byte{0, 0, 0, 1}

// fakeQuery overrides the routing methods of an otherwise nil query.
type fakeQuery struct {
	gocql.ExecutableQuery

	key      []byte
	keyspace string
}

func (q *fakeQuery) GetRoutingKey() ([]byte, error) { return q.key, nil }
func (q *fakeQuery) Keyspace() string               { return q.keyspace }

// fakeSelected is a host picked by fakePolicy.
type fakeSelected struct {
	info   *gocql.HostInfo
	marked *int
}

func (s fakeSelected) Info() *gocql.HostInfo { return s.info }
func (s fakeSelected) Mark(error)            { *s.marked++ }

// fakePolicy picks its hosts in a fixed order and records the events it
// receives.
type fakePolicy struct {
	mu     sync.Mutex
	order  []*gocql.HostInfo
	remote map[*gocql.HostInfo]bool
	events []string
	picks  int
	marked int
}

func (f *fakePolicy) record(event string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakePolicy) AddHost(*gocql.HostInfo)                   { f.record("add") }
func (f *fakePolicy) RemoveHost(*gocql.HostInfo)                { f.record("remove") }
func (f *fakePolicy) HostUp(*gocql.HostInfo)                    { f.record("up") }
func (f *fakePolicy) HostDown(*gocql.HostInfo)                  { f.record("down") }
func (f *fakePolicy) SetPartitioner(string)                     { f.record("partitioner") }
func (f *fakePolicy) KeyspaceChanged(gocql.KeyspaceUpdateEvent) { f.record("keyspace") }
func (f *fakePolicy) Init(*gocql.Session)                       { f.record("init") }
func (f *fakePolicy) Reset()                                    { f.record("reset") }
func (f *fakePolicy) IsLocal(h *gocql.HostInfo) bool            { return !f.remote[h] }

func (f *fakePolicy) Pick(gocql.ExecutableQuery) gocql.NextHost {
	f.mu.Lock()
	f.picks++
	f.mu.Unlock()

	i := 0
	return func() gocql.SelectedHost {
		if i >= len(f.order) {
			return nil
		}
		h := f.order[i]
		i++

		return fakeSelected{info: h, marked: &f.marked}
	}
}

type testCluster struct {
	policy *TokenAwarePolicy
	child  *fakePolicy
	h1     *gocql.HostInfo
	h2     *gocql.HostInfo
	h3     *gocql.HostInfo
	loads  int
}

// newTestCluster builds three local hosts on a Murmur3 ring, registered
// with the policy, and a SimpleStrategy keyspace "shop" with the given
// replication factor. The child picks h3, h1, h2.
func newTestCluster(t *testing.T, rf string, opts ...Option) *testCluster {
	t.Helper()

	tc := &testCluster{h1: &gocql.HostInfo{}, h2: &gocql.HostInfo{}, h3: &gocql.HostInfo{}}
	hosts := map[*gocql.HostInfo]cql.Host{
		tc.h1: {ID: "h1", Address: "10.0.0.1:9042", Datacenter: "dc1", Tokens: []string{"-5000000000000000000"}, Up: true},
		tc.h2: {ID: "h2", Address: "10.0.0.2:9042", Datacenter: "dc1", Tokens: []string{"0"}, Up: true},
		tc.h3: {ID: "h3", Address: "10.0.0.3:9042", Datacenter: "dc1", Tokens: []string{"5000000000000000000"}, Up: true},
	}
	tc.child = &fakePolicy{order: []*gocql.HostInfo{tc.h3, tc.h1, tc.h2}, remote: map[*gocql.HostInfo]bool{}}

	policy, err := NewTokenAwarePolicy(tc.child, opts...)
	require.NoError(t, err)
	policy.describe = func(h *gocql.HostInfo) cql.Host { return hosts[h] }
	policy.loadKeyspace = func(name string) (string, map[string]string, error) {
		tc.loads++
		if name != "shop" {
			return "", nil, errors.New("keyspace not found")
		}

		return "SimpleStrategy", map[string]string{"replication_factor": rf}, nil
	}

	for _, h := range []*gocql.HostInfo{tc.h1, tc.h2, tc.h3} {
		policy.AddHost(h)
	}
	tc.policy = policy

	return tc
}

func pickAll(next gocql.NextHost) []gocql.SelectedHost {
	var out []gocql.SelectedHost
	for sh := next(); sh != nil; sh = next() {
		out = append(out, sh)
	}

	return out
}

func infos(hosts []gocql.SelectedHost) []*gocql.HostInfo {
	out := make([]*gocql.HostInfo, len(hosts))
	for i, sh := range hosts {
		out[i] = sh.Info()
	}

	return out
}

func TestNewTokenAwarePolicy_Validation(t *testing.T) {
	_, err := NewTokenAwarePolicy(nil)
	require.ErrorIs(t, err, types.ErrNilFallback)

	_, err = NewTokenAwarePolicy(&fakePolicy{}, WithPlannerOptions(tokenaware.WithReplicaOrdering(types.ReplicaOrdering(7))))
	require.ErrorIs(t, err, types.ErrUnknownOrdering)
}

func TestPick_ReplicaFirst(t *testing.T) {
	tc := newTestCluster(t, "1", WithPlannerOptions(tokenaware.WithReplicaOrdering(tokenaware.OrderingNatural)))

	picked := pickAll(tc.policy.Pick(&fakeQuery{key: keyOne, keyspace: "shop"}))
	assert.Equal(t, []*gocql.HostInfo{tc.h2, tc.h3, tc.h1}, infos(picked))
	assert.Equal(t, 1, tc.loads, "replication is loaded on first use")

	// The replica is our own selection; the rest come from the child.
	_, isReplica := picked[0].(replicaHost)
	assert.True(t, isReplica)
	for _, sh := range picked[1:] {
		sh.Mark(nil)
	}
	assert.Equal(t, 2, tc.child.marked)

	pickAll(tc.policy.Pick(&fakeQuery{key: keyOne, keyspace: "shop"}))
	assert.Equal(t, 1, tc.loads)
}

func TestPick_NeutralFollowsChildOrder(t *testing.T) {
	tc := newTestCluster(t, "2", WithPlannerOptions(tokenaware.WithReplicaOrdering(tokenaware.OrderingNeutral)))

	// h2 and h3 are replicas; h3 comes first in the child's order.
	picked := pickAll(tc.policy.Pick(&fakeQuery{key: keyOne, keyspace: "shop"}))
	assert.Equal(t, []*gocql.HostInfo{tc.h3, tc.h2, tc.h1}, infos(picked))
	for _, sh := range picked {
		_, isReplica := sh.(replicaHost)
		assert.False(t, isReplica, "neutral ordering only returns the child's selections")
	}
}

func TestPick_Delegation(t *testing.T) {
	tc := newTestCluster(t, "1")
	childOrder := []*gocql.HostInfo{tc.h3, tc.h1, tc.h2}

	assert.Equal(t, childOrder, infos(pickAll(tc.policy.Pick(&fakeQuery{keyspace: "shop"}))), "no routing key")
	assert.Equal(t, childOrder, infos(pickAll(tc.policy.Pick(&fakeQuery{key: keyOne, keyspace: "other"}))), "unknown keyspace")
	assert.Equal(t, childOrder, infos(pickAll(tc.policy.Pick(nil))))

	tc.policy.SetPartitioner("org.apache.cassandra.dht.ByteOrderedPartitioner")
	assert.Equal(t, childOrder, infos(pickAll(tc.policy.Pick(&fakeQuery{key: keyOne, keyspace: "shop"}))), "unsupported partitioner")

	tc.policy.SetPartitioner("org.apache.cassandra.dht.Murmur3Partitioner")
	assert.Equal(t, tc.h2, tc.policy.Pick(&fakeQuery{key: keyOne, keyspace: "shop"})().Info())
}

func TestPick_DefaultKeyspace(t *testing.T) {
	tc := newTestCluster(t, "1", WithDefaultKeyspace("shop"))

	assert.Equal(t, tc.h2, tc.policy.Pick(&fakeQuery{key: keyOne})().Info())
}

func TestPick_DownAndRemoteReplicas(t *testing.T) {
	tc := newTestCluster(t, "1", WithPlannerOptions(tokenaware.WithReplicaOrdering(tokenaware.OrderingNatural)))

	// A down local replica is left out of the plan.
	tc.policy.HostDown(tc.h2)
	assert.Equal(t, []*gocql.HostInfo{tc.h3, tc.h1}, infos(pickAll(tc.policy.Pick(&fakeQuery{key: keyOne, keyspace: "shop"}))))

	tc.policy.HostUp(tc.h2)
	assert.Equal(t, tc.h2, tc.policy.Pick(&fakeQuery{key: keyOne, keyspace: "shop"})().Info())

	// A remote replica keeps its place in the child's order.
	tc.child.remote[tc.h2] = true
	assert.Equal(t, []*gocql.HostInfo{tc.h3, tc.h1, tc.h2}, infos(pickAll(tc.policy.Pick(&fakeQuery{key: keyOne, keyspace: "shop"}))))
}

func TestPolicy_HostEvents(t *testing.T) {
	tc := newTestCluster(t, "1")

	tc.policy.Init(nil)
	tc.policy.KeyspaceChanged(gocql.KeyspaceUpdateEvent{Keyspace: "shop", Change: "UPDATED"})
	tc.policy.RemoveHost(tc.h3)
	tc.policy.Reset()

	assert.Equal(t, []string{"add", "add", "add", "init", "keyspace", "remove", "reset"}, tc.child.events)

	snap := tc.policy.Store().Snapshot()
	_, ok := snap.Node("h3")
	assert.False(t, ok)
	assert.Empty(t, snap.Keyspaces(), "changed keyspaces are reloaded lazily")

	pickAll(tc.policy.Pick(&fakeQuery{key: keyOne, keyspace: "shop"}))
	assert.Equal(t, 1, tc.loads)
	assert.True(t, tc.policy.IsLocal(tc.h1))
}

func TestPick_ConcurrentNextHost(t *testing.T) {
	tc := newTestCluster(t, "3")
	next := tc.policy.Pick(&fakeQuery{key: keyOne, keyspace: "shop"})

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[*gocql.HostInfo]int)
	)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sh := next(); sh != nil; sh = next() {
				mu.Lock()
				seen[sh.Info()]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, map[*gocql.HostInfo]int{tc.h1: 1, tc.h2: 1, tc.h3: 1}, seen)
}

func TestPick_FailedKeyspaceLoadIsNotRepeated(t *testing.T) {
	tc := newTestCluster(t, "1", WithKeyspaceRetryInterval(time.Hour))
	childOrder := []*gocql.HostInfo{tc.h3, tc.h1, tc.h2}

	for range 3 {
		assert.Equal(t, childOrder, infos(pickAll(tc.policy.Pick(&fakeQuery{key: keyOne, keyspace: "other"}))))
	}
	assert.Equal(t, 1, tc.loads, "metadata is not read again within the retry interval")

	tc.policy.KeyspaceChanged(gocql.KeyspaceUpdateEvent{Keyspace: "other", Change: "CREATED"})
	pickAll(tc.policy.Pick(&fakeQuery{key: keyOne, keyspace: "other"}))
	assert.Equal(t, 2, tc.loads, "a schema change allows a new attempt")

	tc.policy.Reset()
	pickAll(tc.policy.Pick(&fakeQuery{key: keyOne, keyspace: "other"}))
	assert.Equal(t, 3, tc.loads)
}
