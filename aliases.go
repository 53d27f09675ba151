package tokenaware

import "github.com/arloliu/tokenaware/types"

// Re-export types for convenience.
type (
	Node               = types.Node
	NodeID             = types.NodeID
	RoutingKey         = types.RoutingKey
	Distance           = types.Distance
	ReplicaOrdering    = types.ReplicaOrdering
	NeutralDrainPolicy = types.NeutralDrainPolicy
	DownReplicaPolicy  = types.DownReplicaPolicy
	PlanState          = types.PlanState
	DelegationReason   = types.DelegationReason
	Logger             = types.Logger
	MetricsCollector   = types.MetricsCollector
)

// Re-export replica orderings for convenience.
const (
	OrderingRandom  = types.OrderingRandom
	OrderingNatural = types.OrderingNatural
	OrderingNeutral = types.OrderingNeutral
)

// Re-export plan states for convenience.
const (
	PlanCreated          = types.PlanCreated
	PlanDelegated        = types.PlanDelegated
	PlanScanningReplicas = types.PlanScanningReplicas
	PlanDrainingFallback = types.PlanDrainingFallback
	PlanExhausted        = types.PlanExhausted
)

// Re-export delegation reasons for convenience.
const (
	ReasonNone            = types.ReasonNone
	ReasonNoTopology      = types.ReasonNoTopology
	ReasonNoRoutingKey    = types.ReasonNoRoutingKey
	ReasonRoutingKeyError = types.ReasonRoutingKeyError
	ReasonNoKeyspace      = types.ReasonNoKeyspace
	ReasonNoReplicas      = types.ReasonNoReplicas
	ReasonLookupFailure   = types.ReasonLookupFailure
)
