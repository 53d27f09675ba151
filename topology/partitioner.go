package topology

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/arloliu/tokenaware/types"
)

// Token is a position on the Murmur3 token ring.
type Token int64

// String returns the decimal form Cassandra uses in system tables.
func (t Token) String() string {
	return strconv.FormatInt(int64(t), 10)
}

// Partitioner maps routing keys to ring tokens.
type Partitioner interface {
	// Name returns the partitioner class name.
	Name() string

	// Token returns the token of a routing key.
	Token(key types.RoutingKey) Token

	// ParseToken parses a token as found in system.peers.
	ParseToken(s string) (Token, error)
}

// Murmur3PartitionerName is the class name of Cassandra's default partitioner.
const Murmur3PartitionerName = "org.apache.cassandra.dht.Murmur3Partitioner"

// Murmur3Partitioner is Cassandra's and ScyllaDB's default partitioner.
type Murmur3Partitioner struct{}

var _ Partitioner = Murmur3Partitioner{}

// Name implements Partitioner.
func (Murmur3Partitioner) Name() string {
	return Murmur3PartitionerName
}

// Token implements Partitioner. The minimum token is reserved, so a hash
// equal to math.MinInt64 maps to math.MaxInt64 as it does server side.
func (Murmur3Partitioner) Token(key types.RoutingKey) Token {
	h := murmur3H1(key)
	if h == math.MinInt64 {
		return math.MaxInt64
	}

	return Token(h)
}

// ParseToken implements Partitioner.
func (Murmur3Partitioner) ParseToken(s string) (Token, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", types.ErrInvalidToken, s, err)
	}

	return Token(v), nil
}

// ParsePartitioner returns the partitioner for a class name. The short name
// "Murmur3Partitioner" and the empty string (the default) are accepted.
//
// Parameters:
//   - name: Fully qualified or short partitioner class name
//
// Returns:
//   - Partitioner: The partitioner
//   - error: ErrUnknownPartitioner for anything but Murmur3
func ParsePartitioner(name string) (Partitioner, error) {
	switch strings.TrimPrefix(strings.TrimSpace(name), "org.apache.cassandra.dht.") {
	case "", "Murmur3Partitioner":
		return Murmur3Partitioner{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownPartitioner, name)
	}
}
