package tokenaware

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/tokenaware/types"
)

// Settings is the file form of the routing configuration.
//
// Example:
//
//	replica_ordering: neutral
//	neutral_drain: drain
//	down_replicas: exclude
//	local_datacenter: dc1
//	used_hosts_per_remote_dc: 1
//	latency:
//	  enabled: true
//	  exclusion_threshold: 2.0
//	  scale: 100ms
//	  retry_period: 10s
//	  min_measured: 50
type Settings struct {
	ReplicaOrdering types.ReplicaOrdering    `yaml:"replica_ordering"`
	NeutralDrain    types.NeutralDrainPolicy `yaml:"neutral_drain"`
	DownReplicas    types.DownReplicaPolicy  `yaml:"down_replicas"`

	// LocalDatacenter is the datacenter treated as local by the fallback
	// planner and the topology.
	LocalDatacenter string `yaml:"local_datacenter"`

	// UsedHostsPerRemoteDC is how many nodes of each remote datacenter the
	// fallback planner offers after the local ones.
	UsedHostsPerRemoteDC int `yaml:"used_hosts_per_remote_dc"`

	Latency LatencySettings `yaml:"latency"`
}

// LatencySettings configures latency-aware reordering of the fallback plan.
type LatencySettings struct {
	Enabled            bool          `yaml:"enabled"`
	ExclusionThreshold float64       `yaml:"exclusion_threshold"`
	Scale              time.Duration `yaml:"scale"`
	RetryPeriod        time.Duration `yaml:"retry_period"`
	MinMeasured        int           `yaml:"min_measured"`
}

// LoadSettings reads settings from a YAML file.
//
// Parameters:
//   - path: Path to the YAML file
//
// Returns:
//   - *Settings: The parsed settings
//   - error: Read, parse or validation failure
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tokenaware: failed to read settings file: %w", err)
	}

	return ParseSettings(data)
}

// ParseSettings parses settings from YAML bytes.
//
// Parameters:
//   - data: YAML document
//
// Returns:
//   - *Settings: The parsed settings
//   - error: Parse or validation failure
func ParseSettings(data []byte) (*Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("tokenaware: failed to parse settings: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return &s, nil
}

// Validate checks the settings for values no component accepts.
func (s *Settings) Validate() error {
	if !s.ReplicaOrdering.Valid() {
		return fmt.Errorf("%w: %d", types.ErrUnknownOrdering, uint8(s.ReplicaOrdering))
	}
	if !s.NeutralDrain.Valid() {
		return fmt.Errorf("%w: neutral_drain %d", types.ErrUnknownPolicy, uint8(s.NeutralDrain))
	}
	if !s.DownReplicas.Valid() {
		return fmt.Errorf("%w: down_replicas %d", types.ErrUnknownPolicy, uint8(s.DownReplicas))
	}
	if s.UsedHostsPerRemoteDC < 0 {
		return fmt.Errorf("tokenaware: used_hosts_per_remote_dc must be >= 0, got %d", s.UsedHostsPerRemoteDC)
	}
	if s.Latency.ExclusionThreshold != 0 && s.Latency.ExclusionThreshold < 1 {
		return fmt.Errorf("tokenaware: latency exclusion_threshold must be >= 1, got %v", s.Latency.ExclusionThreshold)
	}
	if s.Latency.MinMeasured < 0 {
		return fmt.Errorf("tokenaware: latency min_measured must be >= 0, got %d", s.Latency.MinMeasured)
	}

	return nil
}

// Options converts the planner-related settings into planner options.
//
// Returns:
//   - []Option: Options to pass to NewPlanner
func (s *Settings) Options() []Option {
	return []Option{
		WithReplicaOrdering(s.ReplicaOrdering),
		WithNeutralDrainPolicy(s.NeutralDrain),
		WithDownReplicaPolicy(s.DownReplicas),
	}
}
