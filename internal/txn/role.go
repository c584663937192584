package txn

import (
	"github.com/datatree/datatree/internal/id"
	"github.com/datatree/datatree/internal/obslog"
	"github.com/datatree/datatree/internal/wire"
)

// Role is a running role instance: one side of one transaction, hosted on
// one node. It is the receiver for every operation a role body uses to
// talk to the rest of the tree.
type Role struct {
	host     NodeHost
	node     id.NodeID
	txn      id.TxnID
	roleName string
	mailbox  *mailbox
}

// NodeID returns the id of the node this role instance is running on.
func (r *Role) NodeID() id.NodeID { return r.node }

// TxnID returns this role's transaction id.
func (r *Role) TxnID() id.TxnID { return r.txn }

// RoleName returns the registry name this instance was constructed from.
func (r *Role) RoleName() string { return r.roleName }

// Host exposes the hosting node, for structural/subscribe code that needs
// to read node state (KidSet, height, interval) directly rather than
// through the transaction runtime.
func (r *Role) Host() NodeHost { return r.host }

// Self returns a role handle addressing this instance, with no "for"
// party set — callers should TransferHandle it before handing it to a
// third node.
func (r *Role) Self() wire.RoleHandle {
	return wire.RoleHandle{Node: r.node, Txn: r.txn}
}

// NewHandle mints a role handle to this instance intended for forNode's
// use as a FIFO sender key.
func (r *Role) NewHandle(forNode id.NodeID) wire.RoleHandle {
	return wire.RoleHandle{Node: r.node, Txn: r.txn, For: forNode}
}

// TransferHandle rebinds an existing handle's "for" party (transfer_handle).
func (r *Role) TransferHandle(h wire.RoleHandle, forNode id.NodeID) wire.RoleHandle {
	h.For = forNode
	return h
}

// RoleHandleToNodeHandle strips h down to a plain node address.
func (r *Role) RoleHandleToNodeHandle(h wire.RoleHandle) id.Handle {
	return h.NodeHandle()
}

// Listen suspends this role instance until a message of msgType arrives,
// returning its payload and the sending node. Panics (isolated role
// abort, logged by the runtime) if another listener is already waiting
// on msgType — that is a protocol violation, never a condition a role
// body should branch on.
func (r *Role) Listen(msgType string) (any, id.NodeID) {
	env := r.rawListen(msgType)
	return env.Payload, env.From.Node
}

func (r *Role) rawListen(msgType string) wire.Envelope {
	env, err := r.mailbox.take(msgType)
	if err != nil {
		panic(protocolViolation{err})
	}
	return env
}

// Send delivers a transaction message to the role addressed by h. Send
// does not return an error: transport delivery failures are logged, not
// surfaced, to keep role bodies free of retry/rollback logic they were
// never meant to have.
func (r *Role) Send(h wire.RoleHandle, msgType string, payload any) {
	env := wire.Envelope{
		Kind:    wire.KindTransactionMessage,
		Txn:     h.Txn,
		From:    r.Self(),
		Type:    msgType,
		Payload: payload,
	}
	if err := r.host.Transport().Send(id.Handle{Node: h.Node}, env); err != nil {
		obslog.Event("txn", "send failed", "node", r.node, "txn", r.txn, "to", h.Node, "type", msgType, "err", err)
	}
}

// Enlist starts roleName as a participant on target, which must be a
// direct kid of this role's hosting node. Violating ownership is a
// protocol violation, not a recoverable precondition — it means the role
// body itself is wrong.
func (r *Role) Enlist(target id.NodeID, roleName string, args any) wire.RoleHandle {
	if !r.host.HasKid(target) {
		panic(protocolViolation{&ownershipError{node: r.node, target: target}})
	}
	r.sendStartParticipantRole(target, roleName, args)
	return wire.RoleHandle{Node: target, Txn: r.txn, For: r.node}
}

// EnlistUpward starts roleName as a participant on target without the
// ownership precondition Enlist requires. Two callers need this: AddLeaf,
// whose originator is a brand-new leaf reaching upward to a
// parent-to-be it cannot yet own, and the subscription handshake, whose
// originator reaches sideways into an entirely separate tree it will
// never own. Every other transaction in this runtime reaches only
// downward through Enlist.
func (r *Role) EnlistUpward(target id.NodeID, roleName string, args any) wire.RoleHandle {
	r.sendStartParticipantRole(target, roleName, args)
	return wire.RoleHandle{Node: target, Txn: r.txn, For: r.node}
}

// SpawnEnlist asks the machine controller to create a brand-new node and
// starts roleName on it as a participant in this transaction.
func (r *Role) SpawnEnlist(cfg SpawnConfig, roleName string, args any) (id.NodeID, wire.RoleHandle) {
	newID, err := r.host.MachineController().Spawn(cfg)
	if err != nil {
		panic(protocolViolation{&spawnError{cause: err}})
	}
	r.sendStartParticipantRole(newID, roleName, args)
	return newID, wire.RoleHandle{Node: newID, Txn: r.txn, For: r.node}
}

func (r *Role) sendStartParticipantRole(target id.NodeID, roleName string, args any) {
	env := wire.Envelope{
		Kind: wire.KindStartParticipantRole,
		Txn:  r.txn,
		From: r.Self(),
		Payload: wire.StartParticipantRoleArgs{
			Role: roleName,
			Args: args,
		},
	}
	if err := r.host.Transport().Send(id.Handle{Node: target}, env); err != nil {
		obslog.Event("txn", "enlist send failed", "node", r.node, "txn", r.txn, "to", target, "role", roleName, "err", err)
	}
}

type ownershipError struct {
	node, target id.NodeID
}

func (e *ownershipError) Error() string {
	return "enlist: " + string(e.target) + " is not a direct kid of " + string(e.node)
}

func (e *ownershipError) Unwrap() error { return ErrNotOwned }

type spawnError struct{ cause error }

func (e *spawnError) Error() string { return "spawn_enlist: " + e.cause.Error() }
func (e *spawnError) Unwrap() error { return e.cause }
