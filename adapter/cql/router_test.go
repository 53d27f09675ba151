package cql

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/tokenaware"
	"github.com/arloliu/tokenaware/types"
)

// keyOne hashes to -4069959284402364209, owned by h2 in newRouter's ring.
var keyOne = []byte{0, 0, 0, 1}

type routeRequest struct {
	key      []byte
	keyspace string
}

func (r routeRequest) GetRoutingKey() ([]byte, error) { return r.key, nil }
func (r routeRequest) Keyspace() string               { return r.keyspace }

// fakeDriver names hosts by string; a child selection is the host name,
// "" standing for a selection without host.
type fakeDriver struct {
	hosts   map[string]Host
	remote  map[string]bool
	loads   int
	loadErr error
}

func (d *fakeDriver) Describe(host string) Host          { return d.hosts[host] }
func (d *fakeDriver) IsLocal(host string) bool           { return !d.remote[host] }
func (d *fakeDriver) Selected(sel string) (string, bool) { return sel, sel != "" }

func (d *fakeDriver) LoadKeyspace(string) (string, map[string]string, error) {
	d.loads++
	if d.loadErr != nil {
		return "", nil, d.loadErr
	}

	return "SimpleStrategy", map[string]string{"replication_factor": "1"}, nil
}

func newRouter(t *testing.T, cfg RouterConfig) (*Router[string, string], *fakeDriver) {
	t.Helper()

	d := &fakeDriver{
		hosts: map[string]Host{
			"h1": {ID: "h1", Address: "10.0.0.1:9042", Datacenter: "dc1", Tokens: []string{"-5000000000000000000"}, Up: true},
			"h2": {ID: "h2", Address: "10.0.0.2:9042", Datacenter: "dc1", Tokens: []string{"0"}, Up: true},
			"h3": {ID: "h3", Address: "10.0.0.3:9042", Datacenter: "dc1", Tokens: []string{"5000000000000000000"}, Up: true},
		},
		remote: map[string]bool{},
	}
	r, err := NewRouter[string, string](d, cfg)
	require.NoError(t, err)
	for _, h := range []string{"h1", "h2", "h3"} {
		r.AddHost(h)
	}

	return r, d
}

// childOf returns a child plan over sels and counts how often it is asked for.
func childOf(picks *int, sels ...string) func() ChildPlan[string] {
	return func() ChildPlan[string] {
		*picks++
		i := 0
		return func() (string, bool) {
			if i >= len(sels) {
				return "", false
			}
			i++

			return sels[i-1], true
		}
	}
}

func drain(next func() (Choice[string, string], bool)) []Choice[string, string] {
	var out []Choice[string, string]
	for c, ok := next(); ok; c, ok = next() {
		out = append(out, c)
	}

	return out
}

func TestNewRouter_InvalidPlannerOption(t *testing.T) {
	_, err := NewRouter[string, string](&fakeDriver{}, RouterConfig{
		PlannerOptions: []tokenaware.Option{tokenaware.WithReplicaOrdering(types.ReplicaOrdering(9))},
	})
	require.ErrorIs(t, err, types.ErrUnknownOrdering)
}

func TestRouter_PickReplicaThenChild(t *testing.T) {
	r, _ := newRouter(t, RouterConfig{
		PlannerOptions: []tokenaware.Option{tokenaware.WithReplicaOrdering(tokenaware.OrderingNatural)},
	})

	var picks int
	got := drain(r.Pick(routeRequest{key: keyOne, keyspace: "shop"}, childOf(&picks, "h3", "", "h1", "h2")))

	assert.Equal(t, []Choice[string, string]{
		{Host: "h2"},
		{Host: "h3", Selected: "h3", FromChild: true},
		{Host: "h1", Selected: "h1", FromChild: true},
	}, got)
	assert.Equal(t, 1, picks)
}

func TestRouter_ChildPlanIsLazy(t *testing.T) {
	r, _ := newRouter(t, RouterConfig{
		PlannerOptions: []tokenaware.Option{tokenaware.WithReplicaOrdering(tokenaware.OrderingNatural)},
	})

	var picks int
	next := r.Pick(routeRequest{key: keyOne, keyspace: "shop"}, childOf(&picks, "h3", "h1", "h2"))
	first, ok := next()
	require.True(t, ok)
	assert.Equal(t, "h2", first.Host)
	assert.Zero(t, picks, "the child is not asked while replicas remain")
}

func TestRouter_DefaultKeyspaceAndDelegation(t *testing.T) {
	r, d := newRouter(t, RouterConfig{DefaultKeyspace: "shop"})

	var picks int
	got := drain(r.Pick(routeRequest{key: keyOne}, childOf(&picks, "h1")))
	require.NotEmpty(t, got)
	assert.Equal(t, "h2", got[0].Host)
	assert.Equal(t, 1, d.loads)

	// Without routing key the child's order is kept as is.
	got = drain(r.Pick(routeRequest{}, childOf(&picks, "h3", "h1")))
	assert.Equal(t, []Choice[string, string]{
		{Host: "h3", Selected: "h3", FromChild: true},
		{Host: "h1", Selected: "h1", FromChild: true},
	}, got)

	r.SetPartitioner("org.apache.cassandra.dht.RandomPartitioner")
	got = drain(r.Pick(routeRequest{key: keyOne, keyspace: "shop"}, childOf(&picks, "h1")))
	assert.Equal(t, []Choice[string, string]{{Host: "h1", Selected: "h1", FromChild: true}}, got)
}

func TestRouter_FailedKeyspaceLoadRetriesAfterInterval(t *testing.T) {
	r, d := newRouter(t, RouterConfig{KeyspaceRetryInterval: 10 * time.Second})
	now := time.Unix(1_700_000_000, 0)
	r.now = func() time.Time { return now }
	d.loadErr = errors.New("schema agreement pending")

	var picks int
	pick := func() []Choice[string, string] {
		return drain(r.Pick(routeRequest{key: keyOne, keyspace: "shop"}, childOf(&picks, "h3", "h1", "h2")))
	}

	pick()
	pick()
	assert.Equal(t, 1, d.loads)

	now = now.Add(5 * time.Second)
	pick()
	assert.Equal(t, 1, d.loads)

	d.loadErr = nil
	now = now.Add(6 * time.Second)
	got := pick()
	assert.Equal(t, 2, d.loads)
	assert.Equal(t, "h2", got[0].Host, "routing resumes once replication is known")

	pick()
	assert.Equal(t, 2, d.loads)
}

func TestRouter_HostEvents(t *testing.T) {
	r, d := newRouter(t, RouterConfig{DefaultKeyspace: "shop"})

	r.HostDown("h2")
	assert.Equal(t, types.NodeDown, r.Store().Snapshot().State("h2"))
	r.HostUp("h2")
	assert.Equal(t, types.NodeUp, r.Store().Snapshot().State("h2"))

	d.hosts["h4"] = Host{ID: "h4", Address: "10.0.0.4:9042", Datacenter: "dc1", Tokens: []string{"7000000000000000000"}}
	r.HostUp("h4")
	host, ok := r.Host("h4")
	require.True(t, ok)
	assert.Equal(t, "h4", host)
	assert.Equal(t, types.NodeUp, r.Store().Snapshot().State("h4"), "an unknown host coming up is added as up")

	r.RemoveHost("h4")
	_, ok = r.Host("h4")
	assert.False(t, ok)

	d.hosts["anon"] = Host{Address: "10.0.0.9:9042"}
	r.AddHost("anon")
	_, ok = r.Host("")
	assert.False(t, ok, "hosts without identity are ignored")
}

func TestRouter_RemoteReplicaKeepsChildOrder(t *testing.T) {
	r, d := newRouter(t, RouterConfig{
		PlannerOptions: []tokenaware.Option{tokenaware.WithReplicaOrdering(tokenaware.OrderingNatural)},
	})
	d.remote["h2"] = true

	var picks int
	got := drain(r.Pick(routeRequest{key: keyOne, keyspace: "shop"}, childOf(&picks, "h3", "h1", "h2")))
	hosts := make([]string, len(got))
	for i, c := range got {
		hosts[i] = c.Host
	}
	assert.Equal(t, []string{"h3", "h1", "h2"}, hosts)
}
