package topology

import (
	"time"

	"github.com/arloliu/tokenaware/internal/logging"
	"github.com/arloliu/tokenaware/types"
)

// WatcherConfig holds configuration for topology watchers.
type WatcherConfig struct {
	// Key is the NATS KV key holding the topology document.
	// Default: "tokenaware.topology"
	Key string

	// PollInterval is the fallback polling interval if watch fails.
	// Default: 5 seconds
	PollInterval time.Duration

	// InitialFetchTimeout is the timeout for each KV fetch.
	// Default: 10 seconds
	InitialFetchTimeout time.Duration

	// LocalDatacenter, when set, overrides the document's local datacenter.
	// Each client usually knows its own datacenter better than the publisher.
	LocalDatacenter string

	// Logger reports rejected documents and watch failures.
	Logger types.Logger
}

// DefaultWatcherConfig returns a WatcherConfig with sensible defaults.
//
// Returns:
//   - WatcherConfig: Default configuration
func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		Key:                 "tokenaware.topology",
		PollInterval:        5 * time.Second,
		InitialFetchTimeout: 10 * time.Second,
		Logger:              logging.NewNopLogger(),
	}
}

// WatcherOption configures a topology watcher.
type WatcherOption func(*WatcherConfig)

// WithKey sets the NATS KV key to watch.
//
// Parameters:
//   - key: The key name (e.g., "cassandra.prod.topology")
//
// Returns:
//   - WatcherOption: Configuration option
func WithKey(key string) WatcherOption {
	return func(c *WatcherConfig) {
		c.Key = key
	}
}

// WithPollInterval sets the fallback polling interval.
//
// If the NATS watch fails or disconnects, the watcher falls back to
// polling at this interval.
//
// Parameters:
//   - d: Polling interval duration
//
// Returns:
//   - WatcherOption: Configuration option
func WithPollInterval(d time.Duration) WatcherOption {
	return func(c *WatcherConfig) {
		c.PollInterval = d
	}
}

// WithInitialFetchTimeout sets the timeout for KV fetches.
//
// Parameters:
//   - d: Timeout duration
//
// Returns:
//   - WatcherOption: Configuration option
func WithInitialFetchTimeout(d time.Duration) WatcherOption {
	return func(c *WatcherConfig) {
		c.InitialFetchTimeout = d
	}
}

// WithLocalDatacenter overrides the local datacenter of every document.
//
// Parameters:
//   - dc: Datacenter name
//
// Returns:
//   - WatcherOption: Configuration option
func WithLocalDatacenter(dc string) WatcherOption {
	return func(c *WatcherConfig) {
		c.LocalDatacenter = dc
	}
}

// WithWatcherLogger sets the watcher's logger.
//
// Parameters:
//   - logger: Structured logger; nil restores the no-op logger
//
// Returns:
//   - WatcherOption: Configuration option
func WithWatcherLogger(logger types.Logger) WatcherOption {
	return func(c *WatcherConfig) {
		c.Logger = logging.OrNop(logger)
	}
}
