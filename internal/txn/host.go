// Package txn implements the transaction/role runtime: the pattern of
// typed message rendezvous that lets one node's code coordinate a
// multi-node structural change without blocking the node's overall
// message pump.
//
// Roles are modeled as a closed tagged union of constructors registered
// in a Registry at startup, not dynamic reflection-based dispatch. Each
// role instance runs on its own goroutine, suspending only inside Listen,
// with one map of active role instances tracked per node and a per-type
// rendezvous channel for each Listen call.
package txn

import (
	"sync"

	"github.com/datatree/datatree/internal/dnconfig"
	"github.com/datatree/datatree/internal/id"
	"github.com/datatree/datatree/internal/key"
	"github.com/datatree/datatree/internal/wire"
)

// Transport is the out-of-core collaborator that delivers envelopes to a
// node, reliably and in FIFO order per (sender, receiver) pair.
type Transport interface {
	Send(to id.Handle, env wire.Envelope) error
}

// SpawnConfig is everything spawn_enlist needs the machine controller to
// hand to a freshly created node.
type SpawnConfig struct {
	Parent        id.Handle
	Height        int
	Interval      key.Interval
	ProgramConfig dnconfig.ProgramConfig
	NodeConfig    dnconfig.NodeConfig
}

// MachineController is the out-of-core collaborator that creates nodes
// and supplies seedable randomness.
type MachineController interface {
	Spawn(cfg SpawnConfig) (id.NodeID, error)
	Terminate(nodeID id.NodeID) error
	Random() float64
}

// NodeHost is the subset of a data node's state and services the
// transaction runtime needs. internal/node's DataNode implements it; txn
// never imports node, avoiding an import cycle between "the runtime" and
// "the thing it runs on".
type NodeHost interface {
	ID() id.NodeID
	Transport() Transport
	MachineController() MachineController
	// HasKid reports whether kidID is currently a direct child in this
	// node's KidSet — the ownership precondition enlist must satisfy.
	HasKid(kidID id.NodeID) bool
	Registry() *Registry
	// StructuralGate serializes originator transactions on this node: each
	// structural transaction assumes exclusive mutation of the node's
	// KidSet, so at most one may run at a time.
	StructuralGate() *sync.Mutex

	RegisterController(id.TxnID, *Role)
	UnregisterController(id.TxnID)
	LookupController(id.TxnID) (*Role, bool)
}
