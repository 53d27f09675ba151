package tokenaware

import (
	"iter"
	"slices"

	"github.com/arloliu/tokenaware/types"
)

// QueryPlan is the ordered, lazily produced sequence of candidate
// coordinators for one request.
//
// A QueryPlan is single-consumer and not safe for concurrent use. It is
// finite and cannot be restarted: once Next returns false it keeps returning
// false. Abandoning a plan before exhaustion requires no cleanup.
type QueryPlan struct {
	state  types.PlanState
	reason types.DelegationReason

	keyspace string
	req      Request
	view     TopologyView
	steps    orderingSteps
	config   *Config

	// fallback is consulted at most once; child holds its plan.
	fallback FallbackPlanner
	child    NodeIterator

	replicas   []types.Node
	candidates []types.Node
	cursor     int

	// Neutral scan buffer, in arrival order.
	buffered    []types.Node
	bufferedIDs map[types.NodeID]struct{}
	bufferedPos int

	yielded map[types.NodeID]struct{}
}

var _ NodeIterator = (*QueryPlan)(nil)

// Next returns the next candidate, or false once the plan is exhausted.
func (p *QueryPlan) Next() (types.Node, bool) {
	for {
		switch p.state {
		case types.PlanDelegated:
			node, ok := p.fallbackPlan().Next()
			if !ok {
				p.state = types.PlanExhausted
				return types.Node{}, false
			}

			return node, true

		case types.PlanScanningReplicas:
			if node, ok := p.steps.scan(p); ok {
				return node, true
			}
			p.state = types.PlanDrainingFallback

		case types.PlanDrainingFallback:
			if node, ok := p.steps.drain(p); ok {
				return node, true
			}
			p.state = types.PlanExhausted

		default:
			// Created (an unresolved plan) and Exhausted yield nothing.
			p.state = types.PlanExhausted
			return types.Node{}, false
		}
	}
}

// All returns the remaining candidates as an iterator.
//
// Breaking out of the loop early leaves the plan positioned after the last
// candidate received.
func (p *QueryPlan) All() iter.Seq[types.Node] {
	return func(yield func(types.Node) bool) {
		for {
			node, ok := p.Next()
			if !ok || !yield(node) {
				return
			}
		}
	}
}

// State returns the current lifecycle state.
func (p *QueryPlan) State() types.PlanState {
	return p.state
}

// DelegationReason returns why the plan was delegated, or ReasonNone.
func (p *QueryPlan) DelegationReason() types.DelegationReason {
	return p.reason
}

// Replicas returns the replica set the plan was built from, in the
// topology's ring order. It is nil for delegated plans.
func (p *QueryPlan) Replicas() []types.Node {
	return slices.Clone(p.replicas)
}

func (p *QueryPlan) fallbackPlan() NodeIterator {
	if p.child == nil {
		if p.fallback != nil {
			p.child = p.fallback.Plan(p.keyspace, p.req)
		}
		if p.child == nil {
			p.child = emptyIterator{}
		}
	}

	return p.child
}

func (p *QueryPlan) isLocal(node types.Node) bool {
	return p.view.Distance(node) == types.DistanceLocal
}

func (p *QueryPlan) isReplica(node types.Node) bool {
	return slices.ContainsFunc(p.replicas, func(r types.Node) bool {
		return r.ID == node.ID
	})
}

func (p *QueryPlan) wasYielded(node types.Node) bool {
	_, ok := p.yielded[node.ID]
	return ok
}

func (p *QueryPlan) markYielded(node types.Node) {
	if p.yielded == nil {
		p.yielded = make(map[types.NodeID]struct{}, len(p.replicas)+4)
	}
	p.yielded[node.ID] = struct{}{}
}

func (p *QueryPlan) buffer(node types.Node) {
	if _, ok := p.bufferedIDs[node.ID]; ok {
		return
	}
	if p.bufferedIDs == nil {
		p.bufferedIDs = make(map[types.NodeID]struct{})
	}
	p.bufferedIDs[node.ID] = struct{}{}
	p.buffered = append(p.buffered, node)
}
