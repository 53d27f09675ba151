package tokenaware

import (
	"errors"
	"sync"

	"github.com/arloliu/tokenaware/types"
)

// fakeNode describes a node for the fake topology.
type fakeNode struct {
	up       bool
	distance types.Distance
}

// fakeView is an in-memory TopologyView.
type fakeView struct {
	mu       sync.Mutex
	nodes    map[types.NodeID]fakeNode
	replicas []types.Node
	err      error

	lookups  int
	keyspace string
}

func newFakeView() *fakeView {
	return &fakeView{nodes: make(map[types.NodeID]fakeNode)}
}

func (v *fakeView) add(id string, up bool, distance types.Distance) types.Node {
	v.nodes[types.NodeID(id)] = fakeNode{up: up, distance: distance}
	return node(id)
}

func (v *fakeView) FindReplicas(keyspace string, _ types.RoutingKey) ([]types.Node, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.lookups++
	v.keyspace = keyspace
	if v.err != nil {
		return nil, v.err
	}

	return v.replicas, nil
}

func (v *fakeView) IsUp(n types.Node) bool {
	return v.nodes[n.ID].up
}

func (v *fakeView) Distance(n types.Node) types.Distance {
	fn, ok := v.nodes[n.ID]
	if !ok {
		return types.DistanceIgnored
	}

	return fn.distance
}

// fakeRequest implements Request.
type fakeRequest struct {
	key      []byte
	keyspace string
	err      error
}

func (r *fakeRequest) GetRoutingKey() ([]byte, error) {
	return r.key, r.err
}

func (r *fakeRequest) Keyspace() string {
	return r.keyspace
}

// sliceFallback returns a fresh iterator over a fixed node list and counts
// how often it was asked for a plan.
type sliceFallback struct {
	mu       sync.Mutex
	nodes    []types.Node
	calls    int
	keyspace string
}

func (f *sliceFallback) Plan(keyspace string, _ Request) NodeIterator {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.keyspace = keyspace

	return NewSliceIterator(f.nodes)
}

func (f *sliceFallback) planCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

// countingMetrics records the counters the plan path touches.
type countingMetrics struct {
	mu         sync.Mutex
	plans      map[types.ReplicaOrdering]int
	delegated  map[types.DelegationReason]int
	replicaYld int
	fallbkYld  int
	dropped    int
	observed   []int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		plans:     make(map[types.ReplicaOrdering]int),
		delegated: make(map[types.DelegationReason]int),
	}
}

func (m *countingMetrics) IncPlanTotal(o types.ReplicaOrdering) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[o]++
}

func (m *countingMetrics) IncPlanDelegated(r types.DelegationReason) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delegated[r]++
}

func (m *countingMetrics) ObserveReplicaCount(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observed = append(m.observed, n)
}

func (m *countingMetrics) IncReplicaYield() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replicaYld++
}

func (m *countingMetrics) IncFallbackYield() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbkYld++
}

func (m *countingMetrics) AddBufferedDropped(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped += n
}

func (m *countingMetrics) IncTopologyUpdate()        {}
func (m *countingMetrics) SetTopologyNodes(_, _ int) {}

var errBoom = errors.New("boom")

func node(id string) types.Node {
	return types.Node{ID: types.NodeID(id), Address: id + ":9042"}
}

func ids(nodes []types.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = string(n.ID)
	}

	return out
}

func drain(p *QueryPlan) []types.Node {
	var out []types.Node
	for n := range p.All() {
		out = append(out, n)
	}

	return out
}

// reverseShuffle is a deterministic ShuffleFunc.
func reverseShuffle(n int, swap func(i, j int)) {
	for i := range n / 2 {
		swap(i, n-1-i)
	}
}

func newTestPlanner(view TopologyView, fallback FallbackPlanner, opts ...Option) *Planner {
	p, err := NewPlanner(StaticTopology(view), fallback, opts...)
	if err != nil {
		panic(err)
	}

	return p
}
