package topology

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// Update reports a snapshot installed by a watcher.
type Update struct {
	// Version is the version of the installed snapshot.
	Version uint64

	// Nodes is the number of nodes in the snapshot.
	Nodes int
}

// NATS keeps a Store in sync with a topology Document held in a NATS KV bucket.
//
// Every valid revision of the key replaces the store's snapshot atomically.
// Invalid documents, deletions and purges are logged and leave the last good
// snapshot in place: routing on stale topology beats not routing.
//
// Watch() should be called once per instance. Subsequent calls return the
// same channel. The channel is closed when Close() is called or the context
// is cancelled.
type NATS struct {
	kv     jetstream.KeyValue
	store  *Store
	config WatcherConfig

	mu           sync.Mutex
	lastRevision uint64

	// Lifecycle
	updates      chan Update
	done         chan struct{}
	closed       bool
	watchStarted bool
	closeOnce    sync.Once
}

// NewNATS creates a new NATS KV topology watcher feeding store.
//
// The watcher begins monitoring the KV bucket when Watch() is called.
//
// Parameters:
//   - kv: A NATS JetStream KeyValue store
//   - store: The store to keep up to date
//   - opts: Optional configuration options
//
// Returns:
//   - *NATS: A new watcher instance
//   - error: Error if kv or store is nil
//
// Example:
//
//	nc, _ := nats.Connect("nats://localhost:4222")
//	js, _ := jetstream.New(nc)
//	kv, _ := js.KeyValue(ctx, "cassandra")
//
//	store := topology.NewStore(nil)
//	watcher, _ := topology.NewNATS(kv, store,
//	    topology.WithKey("prod.topology"),
//	    topology.WithLocalDatacenter("dc1"),
//	)
//	watcher.Watch(ctx)
func NewNATS(kv jetstream.KeyValue, store *Store, opts ...WatcherOption) (*NATS, error) {
	if kv == nil {
		return nil, errNilKeyValue
	}
	if store == nil {
		return nil, errors.New("tokenaware/topology: store is nil")
	}

	config := DefaultWatcherConfig()
	for _, opt := range opts {
		opt(&config)
	}

	return &NATS{
		kv:      kv,
		store:   store,
		config:  config,
		updates: make(chan Update, 10),
		done:    make(chan struct{}),
	}, nil
}

// Watch starts watching and returns a channel that receives an Update for
// every snapshot installed.
//
// The current value is fetched before the channel is returned, so a
// document already in the bucket is installed once Watch returns. Updates
// are dropped when the channel is full; the store is updated regardless.
//
// Parameters:
//   - ctx: Context for cancellation (only used on first call)
//
// Returns:
//   - <-chan Update: Channel of installed snapshots
func (n *NATS) Watch(ctx context.Context) <-chan Update {
	n.mu.Lock()
	if n.watchStarted {
		n.mu.Unlock()

		return n.updates
	}
	n.watchStarted = true
	n.mu.Unlock()

	n.fetchAndApply(ctx)
	go n.watchLoop(ctx)

	return n.updates
}

// Close stops the watcher.
//
// This method is safe to call multiple times.
func (n *NATS) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil
	}

	n.closed = true
	close(n.done)

	return nil
}

// Config returns the watcher configuration.
//
// Returns:
//   - WatcherConfig: The current watcher configuration
func (n *NATS) Config() WatcherConfig {
	return n.config
}

// watchLoop is the main watch loop that monitors the NATS KV key.
func (n *NATS) watchLoop(ctx context.Context) {
	defer n.closeOnce.Do(func() { close(n.updates) })

	watcher, err := n.kv.Watch(ctx, n.config.Key)
	if err != nil {
		n.config.Logger.Warn("topology watch failed, polling", "key", n.config.Key, "error", err)
		n.pollLoop(ctx)

		return
	}
	defer func() { _ = watcher.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return
		case <-n.done:
			return
		case entry, ok := <-watcher.Updates():
			if !ok {
				n.config.Logger.Warn("topology watch closed, polling", "key", n.config.Key)
				n.pollLoop(ctx)

				return
			}
			if entry == nil {
				// End of initial values
				continue
			}
			n.processEntry(entry)
		}
	}
}

// pollLoop is a fallback polling loop when watch fails.
func (n *NATS) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(n.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-n.done:
			return
		case <-ticker.C:
			n.fetchAndApply(ctx)
		}
	}
}

// fetchAndApply fetches the current KV value and applies it.
func (n *NATS) fetchAndApply(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, n.config.InitialFetchTimeout)
	defer cancel()

	entry, err := n.kv.Get(fetchCtx, n.config.Key)
	if err != nil {
		if !errors.Is(err, jetstream.ErrKeyNotFound) {
			n.config.Logger.Warn("topology fetch failed", "key", n.config.Key, "error", err)
		}

		return
	}

	n.processEntry(entry)
}

// processEntry installs the document held by entry.
func (n *NATS) processEntry(entry jetstream.KeyValueEntry) {
	n.mu.Lock()
	defer n.mu.Unlock()

	// The watch replays the revision already fetched by Watch.
	if entry.Revision() <= n.lastRevision {
		return
	}
	n.lastRevision = entry.Revision()

	if entry.Operation() == jetstream.KeyValueDelete || entry.Operation() == jetstream.KeyValuePurge {
		n.config.Logger.Warn("topology document removed, keeping last snapshot",
			"key", n.config.Key, "revision", entry.Revision())

		return
	}

	doc, err := ParseDocument(entry.Value())
	if err != nil {
		n.config.Logger.Error("rejecting topology document", "key", n.config.Key,
			"revision", entry.Revision(), "error", err)

		return
	}
	if n.config.LocalDatacenter != "" {
		doc.LocalDatacenter = n.config.LocalDatacenter
	}

	snap, err := n.store.Update(func(b *Builder) error {
		next, err := doc.Builder()
		if err != nil {
			return err
		}
		b.adopt(next)

		return nil
	})
	if err != nil {
		n.config.Logger.Error("rejecting topology document", "key", n.config.Key,
			"revision", entry.Revision(), "error", err)

		return
	}

	n.config.Logger.Info("topology updated", "key", n.config.Key,
		"revision", entry.Revision(), "version", snap.Version(), "nodes", len(snap.nodes))

	// Emit update (non-blocking)
	select {
	case n.updates <- Update{Version: snap.Version(), Nodes: len(snap.nodes)}:
	default:
		// Channel full, skip update (the store already holds the newest snapshot)
	}
}
