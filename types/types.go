// Package types provides shared types and errors for the tokenaware library.
//
// This is a "leaf" package with no imports from other tokenaware packages,
// allowing it to be imported by any package without causing import cycles.
package types

import (
	"errors"
	"fmt"
	"strings"
)

// NodeID identifies a cluster member. For Cassandra and ScyllaDB this is the
// host ID (a UUID in canonical form).
type NodeID string

// String returns the string representation of the NodeID.
func (id NodeID) String() string {
	return string(id)
}

// Node is a cluster member as seen by the planner.
//
// Node is a comparable value. Liveness and network distance are not stored on
// the node; they are answered by the topology view the node came from.
type Node struct {
	// ID is the stable node identity.
	ID NodeID

	// Address is the host:port the node is reachable at.
	Address string

	// Datacenter is the datacenter the node belongs to.
	Datacenter string

	// Rack is the rack the node belongs to.
	Rack string
}

// IsZero reports whether n is the zero Node.
func (n Node) IsZero() bool {
	return n == Node{}
}

// String returns a short human-readable form, e.g. "7f1c...@10.0.0.1:9042".
func (n Node) String() string {
	if n.Address == "" {
		return string(n.ID)
	}

	return string(n.ID) + "@" + n.Address
}

// RoutingKey is the serialized partition key of a request.
type RoutingKey []byte

// NodeState is the liveness of a node.
type NodeState uint8

const (
	// NodeUp means the node accepts requests.
	NodeUp NodeState = iota
	// NodeDown means the node is known to be unreachable.
	NodeDown
)

// String returns "up" or "down".
func (s NodeState) String() string {
	if s == NodeDown {
		return "down"
	}

	return "up"
}

// ParseNodeState parses "up" or "down" (case-insensitive). An empty string is
// treated as "up".
func ParseNodeState(s string) (NodeState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "up":
		return NodeUp, nil
	case "down":
		return NodeDown, nil
	default:
		return NodeUp, fmt.Errorf("tokenaware: unknown node state %q", s)
	}
}

// Distance classifies a node relative to the caller's network region.
type Distance uint8

const (
	// DistanceLocal is a node in the caller's preferred region (e.g. same datacenter).
	DistanceLocal Distance = iota
	// DistanceRemote is a reachable node outside the preferred region.
	DistanceRemote
	// DistanceIgnored is a node that must not be contacted.
	DistanceIgnored
)

// String returns "local", "remote" or "ignored".
func (d Distance) String() string {
	switch d {
	case DistanceLocal:
		return "local"
	case DistanceRemote:
		return "remote"
	default:
		return "ignored"
	}
}

// ReplicaOrdering selects how replicas are ordered before being offered as
// coordinator candidates.
//
// The zero value is OrderingRandom.
type ReplicaOrdering uint8

const (
	// OrderingRandom shuffles the replica set uniformly on every plan.
	OrderingRandom ReplicaOrdering = iota
	// OrderingNatural keeps the replica set in ring order (primary replica first).
	OrderingNatural
	// OrderingNeutral keeps the fallback planner's order and only promotes
	// the local, live replicas it produces.
	OrderingNeutral
)

// String returns "random", "natural" or "neutral".
func (o ReplicaOrdering) String() string {
	switch o {
	case OrderingRandom:
		return "random"
	case OrderingNatural:
		return "natural"
	case OrderingNeutral:
		return "neutral"
	default:
		return fmt.Sprintf("ReplicaOrdering(%d)", uint8(o))
	}
}

// Valid reports whether o is one of the defined orderings.
func (o ReplicaOrdering) Valid() bool {
	return o <= OrderingNeutral
}

// ParseReplicaOrdering parses an ordering name (case-insensitive).
//
// "topological" is accepted as an alias of "natural", the name the Java
// driver uses for ring order.
//
// Parameters:
//   - s: The ordering name
//
// Returns:
//   - ReplicaOrdering: The parsed ordering
//   - error: ErrUnknownOrdering if s is not a known ordering
func ParseReplicaOrdering(s string) (ReplicaOrdering, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "random":
		return OrderingRandom, nil
	case "natural", "topological":
		return OrderingNatural, nil
	case "neutral":
		return OrderingNeutral, nil
	default:
		return OrderingRandom, fmt.Errorf("%w: %q", ErrUnknownOrdering, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o ReplicaOrdering) MarshalText() ([]byte, error) {
	if !o.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownOrdering, uint8(o))
	}

	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *ReplicaOrdering) UnmarshalText(text []byte) error {
	parsed, err := ParseReplicaOrdering(string(text))
	if err != nil {
		return err
	}
	*o = parsed

	return nil
}

// NeutralDrainPolicy decides what happens to the candidates a Neutral plan
// buffers while scanning the fallback plan for local replicas.
type NeutralDrainPolicy uint8

const (
	// NeutralDrainBuffered yields the buffered candidates, in arrival order,
	// once the fallback plan is exhausted.
	NeutralDrainBuffered NeutralDrainPolicy = iota
	// NeutralDropBuffered ends the plan once the fallback plan is exhausted.
	// Only local live replicas are ever yielded.
	NeutralDropBuffered
)

// Valid reports whether p is a known neutral drain policy.
func (p NeutralDrainPolicy) Valid() bool {
	return p <= NeutralDropBuffered
}

// String returns "drain" or "drop".
func (p NeutralDrainPolicy) String() string {
	if p == NeutralDropBuffered {
		return "drop"
	}

	return "drain"
}

// UnmarshalText implements encoding.TextUnmarshaler, accepting "drain" or "drop".
func (p *NeutralDrainPolicy) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "", "drain":
		*p = NeutralDrainBuffered
	case "drop":
		*p = NeutralDropBuffered
	default:
		return fmt.Errorf("%w: neutral drain %q", ErrUnknownPolicy, text)
	}

	return nil
}

// DownReplicaPolicy decides whether a local replica may be yielded from the
// fallback plan after the replica scan.
type DownReplicaPolicy uint8

const (
	// ExcludeLocalReplicas never yields a local replica from the fallback
	// plan. A local replica that was down during the scan is therefore absent
	// from the whole plan.
	ExcludeLocalReplicas DownReplicaPolicy = iota
	// RetryDownLocalReplicas lets a local replica that was not yielded during
	// the scan appear again, at the fallback plan's position.
	RetryDownLocalReplicas
)

// Valid reports whether p is a known down replica policy.
func (p DownReplicaPolicy) Valid() bool {
	return p <= RetryDownLocalReplicas
}

// String returns "exclude" or "retry".
func (p DownReplicaPolicy) String() string {
	if p == RetryDownLocalReplicas {
		return "retry"
	}

	return "exclude"
}

// UnmarshalText implements encoding.TextUnmarshaler, accepting "exclude" or "retry".
func (p *DownReplicaPolicy) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "", "exclude":
		*p = ExcludeLocalReplicas
	case "retry":
		*p = RetryDownLocalReplicas
	default:
		return fmt.Errorf("%w: down replicas %q", ErrUnknownPolicy, text)
	}

	return nil
}

// PlanState is the lifecycle state of a query plan.
//
//	Created -> Delegated                           -> Exhausted
//	Created -> ScanningReplicas -> DrainingFallback -> Exhausted
type PlanState uint8

const (
	// PlanCreated is the state of a plan that has not been resolved.
	PlanCreated PlanState = iota
	// PlanDelegated means no routing information was available and the plan
	// forwards the fallback planner's plan unchanged.
	PlanDelegated
	// PlanScanningReplicas means the plan is yielding local live replicas.
	PlanScanningReplicas
	// PlanDrainingFallback means the replica scan is over and the plan is
	// yielding the remaining candidates.
	PlanDrainingFallback
	// PlanExhausted is terminal: the plan yields nothing more.
	PlanExhausted
)

// String returns the state name.
func (s PlanState) String() string {
	switch s {
	case PlanCreated:
		return "created"
	case PlanDelegated:
		return "delegated"
	case PlanScanningReplicas:
		return "scanning_replicas"
	case PlanDrainingFallback:
		return "draining_fallback"
	case PlanExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("PlanState(%d)", uint8(s))
	}
}

// DelegationReason explains why a plan was delegated to the fallback planner.
type DelegationReason uint8

const (
	// ReasonNone means the plan was not delegated.
	ReasonNone DelegationReason = iota
	// ReasonNoTopology means no topology view was available.
	ReasonNoTopology
	// ReasonNoRoutingKey means the request has no routing key.
	ReasonNoRoutingKey
	// ReasonRoutingKeyError means deriving the routing key failed.
	ReasonRoutingKeyError
	// ReasonNoKeyspace means neither the request nor the caller named a keyspace.
	ReasonNoKeyspace
	// ReasonNoReplicas means the replica lookup returned an empty set.
	ReasonNoReplicas
	// ReasonLookupFailure means the replica lookup failed.
	ReasonLookupFailure
)

// String returns a label-friendly reason name.
func (r DelegationReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonNoTopology:
		return "no_topology"
	case ReasonNoRoutingKey:
		return "no_routing_key"
	case ReasonRoutingKeyError:
		return "routing_key_error"
	case ReasonNoKeyspace:
		return "no_keyspace"
	case ReasonNoReplicas:
		return "no_replicas"
	case ReasonLookupFailure:
		return "lookup_failure"
	default:
		return fmt.Sprintf("DelegationReason(%d)", uint8(r))
	}
}

// Err maps the reason onto the error taxonomy.
//
// Returns:
//   - error: ErrTopologyLookup for lookup failures, ErrRoutingInfoUnavailable
//     for every other delegation, nil for ReasonNone
func (r DelegationReason) Err() error {
	switch r {
	case ReasonNone:
		return nil
	case ReasonLookupFailure:
		return ErrTopologyLookup
	default:
		return ErrRoutingInfoUnavailable
	}
}

// DelegationReasons lists every reason a plan can be delegated for.
func DelegationReasons() []DelegationReason {
	return []DelegationReason{
		ReasonNoTopology,
		ReasonNoRoutingKey,
		ReasonRoutingKeyError,
		ReasonNoKeyspace,
		ReasonNoReplicas,
		ReasonLookupFailure,
	}
}

// Sentinel errors.
var (
	// ErrRoutingInfoUnavailable indicates a request carries no usable routing
	// information. Planners degrade to the fallback plan; it is never
	// returned to callers of Plan.
	ErrRoutingInfoUnavailable = errors.New("tokenaware: routing information unavailable")

	// ErrTopologyLookup indicates a replica lookup failed. Planners treat it
	// like ErrRoutingInfoUnavailable.
	ErrTopologyLookup = errors.New("tokenaware: topology lookup failed")

	// ErrNilFallback indicates a planner was built without a fallback planner.
	ErrNilFallback = errors.New("tokenaware: fallback planner cannot be nil")

	// ErrNilTopology indicates a planner was built without a topology provider.
	ErrNilTopology = errors.New("tokenaware: topology provider cannot be nil")

	// ErrUnknownOrdering indicates an unsupported replica ordering.
	ErrUnknownOrdering = errors.New("tokenaware: unknown replica ordering")

	// ErrUnknownPolicy indicates an unsupported neutral drain or down
	// replica policy.
	ErrUnknownPolicy = errors.New("tokenaware: unknown plan policy")

	// ErrUnknownKeyspace indicates the topology has no replication settings
	// for a keyspace.
	ErrUnknownKeyspace = errors.New("tokenaware: unknown keyspace")

	// ErrUnknownPartitioner indicates an unsupported partitioner class.
	ErrUnknownPartitioner = errors.New("tokenaware: unknown partitioner")

	// ErrInvalidToken indicates a token string could not be parsed.
	ErrInvalidToken = errors.New("tokenaware: invalid token")

	// ErrUnknownReplicationStrategy indicates an unsupported replication class.
	ErrUnknownReplicationStrategy = errors.New("tokenaware: unknown replication strategy")

	// ErrInvalidNode indicates a node description is incomplete or malformed.
	ErrInvalidNode = errors.New("tokenaware: invalid node")
)

// LookupError is returned by topology views when a replica lookup fails.
type LookupError struct {
	// Keyspace is the keyspace the lookup was made for.
	Keyspace string

	// Cause is the underlying error.
	Cause error
}

// Error implements the error interface.
func (e *LookupError) Error() string {
	msg := "tokenaware: replica lookup for keyspace " + e.Keyspace + " failed"
	if e.Cause == nil {
		return msg
	}

	return msg + ": " + e.Cause.Error()
}

// Unwrap returns ErrTopologyLookup and the cause for errors.Is/As compatibility.
func (e *LookupError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrTopologyLookup}
	}

	return []error{ErrTopologyLookup, e.Cause}
}
