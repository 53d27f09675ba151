package tokenaware

import (
	"fmt"

	"github.com/arloliu/tokenaware/types"
)

// Planner builds token-aware query plans.
//
// A Planner is immutable after construction and safe for concurrent use.
// Each call to Plan returns an independent QueryPlan.
type Planner struct {
	topology TopologyProvider
	fallback FallbackPlanner
	steps    orderingSteps
	config   Config
}

// NewPlanner creates a token-aware planner.
//
// Parameters:
//   - topology: Source of the topology view used for every plan
//   - fallback: Planner consulted after the replicas, or instead of them
//     when a request carries no usable routing information
//   - opts: Optional configuration options
//
// Returns:
//   - *Planner: A new planner
//   - error: ErrNilTopology, ErrNilFallback, ErrUnknownOrdering or ErrUnknownPolicy
func NewPlanner(topology TopologyProvider, fallback FallbackPlanner, opts ...Option) (*Planner, error) {
	if topology == nil {
		return nil, types.ErrNilTopology
	}
	if fallback == nil {
		return nil, types.ErrNilFallback
	}

	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}

	if !config.Ordering.Valid() {
		return nil, fmt.Errorf("%w: %d", types.ErrUnknownOrdering, uint8(config.Ordering))
	}
	if !config.NeutralDrain.Valid() {
		return nil, fmt.Errorf("%w: neutral drain %d", types.ErrUnknownPolicy, uint8(config.NeutralDrain))
	}
	if !config.DownReplicas.Valid() {
		return nil, fmt.Errorf("%w: down replicas %d", types.ErrUnknownPolicy, uint8(config.DownReplicas))
	}

	return &Planner{
		topology: topology,
		fallback: fallback,
		steps:    stepsFor(config.Ordering),
		config:   *config,
	}, nil
}

// Ordering returns the replica ordering the planner was built with.
func (p *Planner) Ordering() types.ReplicaOrdering {
	return p.config.Ordering
}

// Plan returns the candidate coordinators for req.
//
// The plan never fails. When the request has no routing key, no keyspace
// can be resolved, or the replica lookup fails or finds nothing, the plan is
// the fallback planner's plan for (keyspace, req), element for element.
// DelegationReason tells which of these happened.
//
// Parameters:
//   - keyspace: Keyspace to use when the request names none, usually the
//     session's default keyspace
//   - req: The request to route; may be nil
//
// Returns:
//   - *QueryPlan: A lazy, single-consumer plan
func (p *Planner) Plan(keyspace string, req Request) *QueryPlan {
	p.config.Metrics.IncPlanTotal(p.config.Ordering)

	plan := &QueryPlan{
		keyspace: keyspace,
		req:      req,
		fallback: p.fallback,
		steps:    p.steps,
		config:   &p.config,
	}

	// One view for the whole plan.
	view := p.topology.Current()
	if view == nil {
		return p.delegate(plan, types.ReasonNoTopology, nil)
	}
	plan.view = view

	if req == nil {
		return p.delegate(plan, types.ReasonNoRoutingKey, nil)
	}

	effective := req.Keyspace()
	if effective == "" {
		effective = keyspace
	}

	key, err := req.GetRoutingKey()
	if err != nil {
		return p.delegate(plan, types.ReasonRoutingKeyError, err)
	}
	if len(key) == 0 {
		return p.delegate(plan, types.ReasonNoRoutingKey, nil)
	}
	if effective == "" {
		return p.delegate(plan, types.ReasonNoKeyspace, nil)
	}

	replicas, err := view.FindReplicas(effective, key)
	if err != nil {
		return p.delegate(plan, types.ReasonLookupFailure, err)
	}
	if len(replicas) == 0 {
		return p.delegate(plan, types.ReasonNoReplicas, nil)
	}

	p.config.Metrics.ObserveReplicaCount(len(replicas))

	plan.replicas = replicas
	plan.candidates = p.steps.candidates(replicas, p.config.Shuffle)
	plan.state = types.PlanScanningReplicas

	return plan
}

func (p *Planner) delegate(plan *QueryPlan, reason types.DelegationReason, cause error) *QueryPlan {
	plan.state = types.PlanDelegated
	plan.reason = reason

	p.config.Metrics.IncPlanDelegated(reason)
	if cause != nil {
		p.config.Logger.Debug("delegating to fallback planner",
			"reason", reason.String(),
			"keyspace", plan.keyspace,
			"error", cause,
		)
	} else {
		p.config.Logger.Debug("delegating to fallback planner",
			"reason", reason.String(),
			"keyspace", plan.keyspace,
		)
	}

	return plan
}
