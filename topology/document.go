package topology

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/arloliu/tokenaware/types"
)

// Document is the JSON form of a cluster topology, as published to NATS KV
// by whatever process tracks the cluster.
//
// Example:
//
//	{
//	  "partitioner": "org.apache.cassandra.dht.Murmur3Partitioner",
//	  "local_datacenter": "dc1",
//	  "nodes": [
//	    {"host_id": "2c5f...", "address": "10.0.0.1:9042", "datacenter": "dc1",
//	     "rack": "rack1", "state": "up", "tokens": ["-9223372036854775807"]}
//	  ],
//	  "keyspaces": {
//	    "shop": {"class": "NetworkTopologyStrategy", "options": {"dc1": "3"}}
//	  }
//	}
type Document struct {
	Partitioner        string                      `json:"partitioner,omitempty"`
	LocalDatacenter    string                      `json:"local_datacenter,omitempty"`
	IgnoredDatacenters []string                    `json:"ignored_datacenters,omitempty"`
	Nodes              []DocumentNode              `json:"nodes"`
	Keyspaces          map[string]DocumentKeyspace `json:"keyspaces,omitempty"`
}

// DocumentNode describes one node.
type DocumentNode struct {
	// HostID is the node's host ID; it must be a UUID.
	HostID     string   `json:"host_id"`
	Address    string   `json:"address"`
	Datacenter string   `json:"datacenter"`
	Rack       string   `json:"rack,omitempty"`
	State      string   `json:"state,omitempty"`
	Tokens     []string `json:"tokens"`
}

// DocumentKeyspace is a keyspace replication map.
type DocumentKeyspace struct {
	Class   string            `json:"class"`
	Options map[string]string `json:"options,omitempty"`
}

// ParseDocument decodes a JSON topology document.
//
// Returns:
//   - *Document: The decoded document
//   - error: ErrInvalidDocument wrapping the decode error
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	return &doc, nil
}

// Marshal encodes the document as JSON.
func (d *Document) Marshal() ([]byte, error) {
	return json.Marshal(d)
}

// Builder validates the document and returns a builder holding its contents.
//
// Host IDs are normalized to canonical lowercase UUID form so that they
// match the IDs drivers report.
//
// Returns:
//   - *Builder: A builder seeded from the document
//   - error: ErrInvalidDocument describing the first invalid field
func (d *Document) Builder() (*Builder, error) {
	partitioner, err := ParsePartitioner(d.Partitioner)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	b := NewBuilder().
		SetPartitioner(partitioner).
		SetLocalDatacenter(d.LocalDatacenter).
		SetIgnoredDatacenters(d.IgnoredDatacenters...)

	for i, n := range d.Nodes {
		id, err := uuid.Parse(n.HostID)
		if err != nil {
			return nil, fmt.Errorf("%w: nodes[%d].host_id %q: %w", ErrInvalidDocument, i, n.HostID, err)
		}
		state, err := types.ParseNodeState(n.State)
		if err != nil {
			return nil, fmt.Errorf("%w: nodes[%d]: %w", ErrInvalidDocument, i, err)
		}

		tokens := make([]Token, 0, len(n.Tokens))
		for _, raw := range n.Tokens {
			t, err := partitioner.ParseToken(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: nodes[%d]: %w", ErrInvalidDocument, i, err)
			}
			tokens = append(tokens, t)
		}

		node := types.Node{
			ID:         types.NodeID(id.String()),
			Address:    n.Address,
			Datacenter: n.Datacenter,
			Rack:       n.Rack,
		}
		if err := b.SetNode(node, state, tokens); err != nil {
			return nil, fmt.Errorf("%w: nodes[%d]: %w", ErrInvalidDocument, i, err)
		}
	}

	for name, ks := range d.Keyspaces {
		repl, err := ParseReplication(ks.Class, ks.Options)
		if err != nil {
			return nil, fmt.Errorf("%w: keyspace %q: %w", ErrInvalidDocument, name, err)
		}
		b.SetKeyspace(name, repl)
	}

	return b, nil
}

// Snapshot builds a snapshot from the document.
func (d *Document) Snapshot() (*Snapshot, error) {
	b, err := d.Builder()
	if err != nil {
		return nil, err
	}

	return b.Build(), nil
}
