// Package id defines the opaque identifiers and addressing handles used
// throughout the dataset control plane.
package id

import "github.com/google/uuid"

// NodeID uniquely identifies a data node for the lifetime of a dataset.
type NodeID string

// TxnID uniquely identifies one in-flight transaction across every node
// participating in it.
type TxnID string

// NewNodeID mints a fresh globally-unique node id.
func NewNodeID() NodeID {
	return NodeID(uuid.NewString())
}

// NewTxnID mints a fresh globally-unique transaction id.
func NewTxnID() TxnID {
	return TxnID(uuid.NewString())
}

// Handle is the addressing record used to send a non-transactional message
// to a node (e.g. an out-of-band kid_summary, or an API request). Handles
// are immutable value records; they never hold a reference to the node
// itself, only its id.
type Handle struct {
	Node NodeID
}

// NewHandle wraps a node id as a plain handle.
func NewHandle(n NodeID) Handle {
	return Handle{Node: n}
}
