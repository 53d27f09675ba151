package topology

import "errors"

// ErrInvalidDocument indicates a topology document could not be decoded or
// described an impossible topology.
var ErrInvalidDocument = errors.New("tokenaware/topology: invalid topology document")

// errNilKeyValue is returned by NewNATS for a nil KeyValue store.
var errNilKeyValue = errors.New("tokenaware/topology: KeyValue store is nil")
