package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReplicaOrdering(t *testing.T) {
	cases := map[string]ReplicaOrdering{
		"random":      OrderingRandom,
		"Natural":     OrderingNatural,
		"TOPOLOGICAL": OrderingNatural,
		" neutral ":   OrderingNeutral,
	}
	for in, want := range cases {
		got, err := ParseReplicaOrdering(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseReplicaOrdering("fastest")
	require.ErrorIs(t, err, ErrUnknownOrdering)
}

func TestReplicaOrderingText(t *testing.T) {
	var o ReplicaOrdering
	require.NoError(t, o.UnmarshalText([]byte("neutral")))
	assert.Equal(t, OrderingNeutral, o)

	text, err := o.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "neutral", string(text))

	_, err = ReplicaOrdering(42).MarshalText()
	require.ErrorIs(t, err, ErrUnknownOrdering)
	assert.False(t, ReplicaOrdering(42).Valid())
}

func TestPolicyText(t *testing.T) {
	var drain NeutralDrainPolicy
	require.NoError(t, drain.UnmarshalText([]byte("drop")))
	assert.Equal(t, NeutralDropBuffered, drain)
	require.ErrorIs(t, drain.UnmarshalText([]byte("later")), ErrUnknownPolicy)
	assert.True(t, drain.Valid())
	assert.False(t, NeutralDrainPolicy(2).Valid())

	var down DownReplicaPolicy
	require.NoError(t, down.UnmarshalText([]byte("retry")))
	assert.Equal(t, RetryDownLocalReplicas, down)
	require.NoError(t, down.UnmarshalText([]byte("")))
	assert.Equal(t, ExcludeLocalReplicas, down)
	require.ErrorIs(t, down.UnmarshalText([]byte("skip")), ErrUnknownPolicy)
	assert.True(t, RetryDownLocalReplicas.Valid())
	assert.False(t, DownReplicaPolicy(2).Valid())
}

func TestParseNodeState(t *testing.T) {
	state, err := ParseNodeState("DOWN")
	require.NoError(t, err)
	assert.Equal(t, NodeDown, state)

	state, err = ParseNodeState("")
	require.NoError(t, err)
	assert.Equal(t, NodeUp, state)

	_, err = ParseNodeState("leaving")
	require.Error(t, err)
}

func TestNodeString(t *testing.T) {
	assert.Equal(t, "n1@10.0.0.1:9042", Node{ID: "n1", Address: "10.0.0.1:9042"}.String())
	assert.Equal(t, "n1", Node{ID: "n1"}.String())
	assert.True(t, Node{}.IsZero())
}

func TestDelegationReasonErr(t *testing.T) {
	require.NoError(t, ReasonNone.Err())
	require.ErrorIs(t, ReasonLookupFailure.Err(), ErrTopologyLookup)
	for _, r := range DelegationReasons() {
		if r == ReasonLookupFailure {
			continue
		}
		require.ErrorIs(t, r.Err(), ErrRoutingInfoUnavailable, r.String())
	}
}

func TestLookupError(t *testing.T) {
	err := &LookupError{Keyspace: "shop", Cause: ErrUnknownKeyspace}

	assert.Contains(t, err.Error(), "keyspace shop")
	assert.True(t, errors.Is(err, ErrTopologyLookup))
	assert.True(t, errors.Is(err, ErrUnknownKeyspace))

	bare := &LookupError{Keyspace: "shop"}
	assert.Equal(t, "tokenaware: replica lookup for keyspace shop failed", bare.Error())
	assert.True(t, errors.Is(bare, ErrTopologyLookup))
}

func TestPlanStateString(t *testing.T) {
	assert.Equal(t, "scanning_replicas", PlanScanningReplicas.String())
	assert.Equal(t, "exhausted", PlanExhausted.String())
}
