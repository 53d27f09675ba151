package testutil

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gocql/gocql"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/scylladb"
)

// ScyllaDBContainer wraps a ScyllaDB test container.
type ScyllaDBContainer struct {
	Container *scylladb.Container
	Host      string
	Keyspace  string
}

// ScyllaDBOptions configures the ScyllaDB container.
type ScyllaDBOptions struct {
	// Image is the ScyllaDB image to use. Defaults to "scylladb/scylla:6.2".
	Image string
	// Keyspace is the keyspace to create. Defaults to "tokenaware_test".
	Keyspace string
	// Replication is the keyspace's replication map. Defaults to
	// SimpleStrategy with a replication factor of 1.
	Replication string
	// Memory is the memory limit for ScyllaDB. Defaults to "512M".
	Memory string
	// SMP is the number of CPU cores for ScyllaDB. Defaults to 1.
	SMP int
}

// DefaultScyllaDBOptions returns default options for ScyllaDB container.
func DefaultScyllaDBOptions() ScyllaDBOptions {
	return ScyllaDBOptions{
		Image:       "scylladb/scylla:6.2",
		Keyspace:    "tokenaware_test",
		Replication: "{'class': 'SimpleStrategy', 'replication_factor': 1}",
		Memory:      "512M",
		SMP:         1,
	}
}

// IsAIOAvailable checks if the system has available AIO slots for ScyllaDB.
func IsAIOAvailable() bool {
	aioNrData, err := os.ReadFile("/proc/sys/fs/aio-nr")
	if err != nil {
		return false // Not on Linux or can't read
	}

	aioMaxNrData, err := os.ReadFile("/proc/sys/fs/aio-max-nr")
	if err != nil {
		return false
	}

	aioNr, _ := strconv.ParseInt(strings.TrimSpace(string(aioNrData)), 10, 64)
	aioMaxNr, _ := strconv.ParseInt(strings.TrimSpace(string(aioMaxNrData)), 10, 64)

	// ScyllaDB needs at least some AIO slots available
	return aioNr < aioMaxNr
}

// StartScyllaDB starts a ScyllaDB container and creates the test keyspace.
//
// The container is automatically terminated when the test completes.
// Uses --reactor-backend=epoll to avoid Linux AIO requirements.
//
// Parameters:
//   - ctx: Context for container operations
//   - t: Testing context for cleanup registration
//   - opts: Optional configuration (nil uses defaults)
//
// Returns:
//   - *ScyllaDBContainer: Container with connection details
//   - error: Error if container fails to start
//
// Note: ScyllaDB requires Linux AIO (aio-max-nr kernel limit). Check with
// IsAIOAvailable and skip the test when no slots are free.
func StartScyllaDB(ctx context.Context, t *testing.T, opts *ScyllaDBOptions) (*ScyllaDBContainer, error) {
	t.Helper()

	if opts == nil {
		defaultOpts := DefaultScyllaDBOptions()
		opts = &defaultOpts
	}

	// --developer-mode=1: Relax production checks
	// --overprovisioned=1: Optimize for overprovisioned environment
	container, err := scylladb.Run(ctx, opts.Image,
		scylladb.WithCustomCommands(
			fmt.Sprintf("--memory=%s", opts.Memory),
			fmt.Sprintf("--smp=%d", opts.SMP),
			"--developer-mode=1",
			"--overprovisioned=1",
			"--reactor-backend=epoll",
		),
	)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate ScyllaDB container: %v", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start ScyllaDB container: %w", err)
	}

	host, err := container.NonShardAwareConnectionHost(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection host: %w", err)
	}

	cluster := NewCluster(host, "system")
	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	stmt := fmt.Sprintf(`CREATE KEYSPACE IF NOT EXISTS %s WITH replication = %s`, opts.Keyspace, opts.Replication)
	if err := session.Query(stmt).Exec(); err != nil {
		return nil, fmt.Errorf("failed to create keyspace: %w", err)
	}

	return &ScyllaDBContainer{
		Container: container,
		Host:      host,
		Keyspace:  opts.Keyspace,
	}, nil
}

// NewCluster returns a cluster configuration for a test container with
// generous timeouts.
//
// Parameters:
//   - host: Container connection host
//   - keyspace: Session keyspace
//
// Returns:
//   - *gocql.ClusterConfig: Configuration ready for CreateSession
func NewCluster(host, keyspace string) *gocql.ClusterConfig {
	cluster := gocql.NewCluster(host)
	cluster.Keyspace = keyspace
	cluster.Consistency = gocql.One
	cluster.Timeout = 30 * time.Second
	cluster.ConnectTimeout = 30 * time.Second

	return cluster
}
