package tokenaware

import (
	"math/rand/v2"

	"github.com/arloliu/tokenaware/internal/logging"
	"github.com/arloliu/tokenaware/internal/metrics"
	"github.com/arloliu/tokenaware/types"
)

// ShuffleFunc permutes n elements by calling swap, with the contract of
// rand.Shuffle.
type ShuffleFunc func(n int, swap func(i, j int))

// DefaultShuffle shuffles with the global math/rand/v2 source.
func DefaultShuffle(n int, swap func(i, j int)) {
	rand.Shuffle(n, swap)
}

// Config holds configuration for a Planner.
type Config struct {
	// Ordering is the replica ordering applied to every plan.
	Ordering types.ReplicaOrdering

	// NeutralDrain decides whether a Neutral plan yields its buffered
	// candidates after the fallback plan is exhausted.
	NeutralDrain types.NeutralDrainPolicy

	// DownReplicas decides whether local replicas may be yielded from the
	// fallback plan after the replica scan.
	DownReplicas types.DownReplicaPolicy

	// Shuffle permutes the replica set for OrderingRandom.
	Shuffle ShuffleFunc

	Logger  types.Logger
	Metrics types.MetricsCollector
}

// DefaultConfig returns a Config with sensible defaults.
//
// Defaults:
//   - Ordering: OrderingRandom
//   - NeutralDrain: NeutralDrainBuffered
//   - DownReplicas: ExcludeLocalReplicas
//   - Shuffle: DefaultShuffle
//
// Returns:
//   - *Config: Configuration with default settings
func DefaultConfig() *Config {
	return &Config{
		Ordering:     types.OrderingRandom,
		NeutralDrain: types.NeutralDrainBuffered,
		DownReplicas: types.ExcludeLocalReplicas,
		Shuffle:      DefaultShuffle,
		Logger:       logging.NewNopLogger(),
		Metrics:      metrics.NewNopMetrics(),
	}
}

// Option configures a Config.
type Option func(*Config)

// WithReplicaOrdering sets how replicas are ordered.
//
// Parameters:
//   - ordering: OrderingRandom, OrderingNatural or OrderingNeutral
//
// Returns:
//   - Option: Configuration option
func WithReplicaOrdering(ordering types.ReplicaOrdering) Option {
	return func(c *Config) {
		c.Ordering = ordering
	}
}

// WithNeutralDrainPolicy sets what a Neutral plan does with the candidates it
// buffered during the replica scan.
//
// Parameters:
//   - policy: NeutralDrainBuffered (default) or NeutralDropBuffered
//
// Returns:
//   - Option: Configuration option
func WithNeutralDrainPolicy(policy types.NeutralDrainPolicy) Option {
	return func(c *Config) {
		c.NeutralDrain = policy
	}
}

// WithDownReplicaPolicy sets whether a local replica that was skipped during
// the replica scan (because it was down) may be yielded from the fallback plan.
//
// Parameters:
//   - policy: ExcludeLocalReplicas (default) or RetryDownLocalReplicas
//
// Returns:
//   - Option: Configuration option
func WithDownReplicaPolicy(policy types.DownReplicaPolicy) Option {
	return func(c *Config) {
		c.DownReplicas = policy
	}
}

// WithShuffle replaces the shuffle used by OrderingRandom.
//
// Tests use this to make random plans reproducible. A nil shuffle restores
// DefaultShuffle.
//
// Parameters:
//   - shuffle: The permutation function
//
// Returns:
//   - Option: Configuration option
func WithShuffle(shuffle ShuffleFunc) Option {
	return func(c *Config) {
		if shuffle == nil {
			shuffle = DefaultShuffle
		}
		c.Shuffle = shuffle
	}
}

// WithLogger sets the logger.
//
// Delegations and per-node decisions are logged at debug level.
//
// Parameters:
//   - logger: Structured logger; nil restores the no-op logger
//
// Returns:
//   - Option: Configuration option
func WithLogger(logger types.Logger) Option {
	return func(c *Config) {
		c.Logger = logging.OrNop(logger)
	}
}

// WithMetrics sets the metrics collector.
//
// Parameters:
//   - collector: Metrics collector; nil restores the no-op collector
//
// Returns:
//   - Option: Configuration option
func WithMetrics(collector types.MetricsCollector) Option {
	return func(c *Config) {
		c.Metrics = metrics.OrNop(collector)
	}
}
