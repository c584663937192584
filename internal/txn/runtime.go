package txn

import (
	"fmt"

	"github.com/datatree/datatree/internal/id"
	"github.com/datatree/datatree/internal/obslog"
	"github.com/datatree/datatree/internal/wire"
)

// StartOriginator mints a fresh transaction and runs roleName as its
// originator on host, blocking the calling goroutine until the role body
// returns. Callers (the monitor, the structural package, tests) are
// expected to invoke this from its own goroutine when they don't want to
// block — StartOriginator itself does not spawn one, so the caller
// controls concurrency.
//
// It holds host's structural gate for the duration: originator
// transactions on one node must serialize, since each assumes exclusive
// mutation of that node's KidSet/height/parent.
func StartOriginator(host NodeHost, roleName string, args any) (id.TxnID, error) {
	fn, ok := host.Registry().lookup(roleName)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownRole, roleName)
	}

	host.StructuralGate().Lock()
	defer host.StructuralGate().Unlock()

	txnID := id.NewTxnID()
	r := &Role{host: host, node: host.ID(), txn: txnID, roleName: roleName, mailbox: newMailbox()}
	host.RegisterController(txnID, r)
	defer host.UnregisterController(txnID)
	defer recoverRole(r)

	fn(r, args)
	return txnID, nil
}

// RunNested runs roleName as a fresh transaction on host without touching
// the structural gate. Only safe to call from inside a role body that is
// itself already holding the gate (e.g. BumpHeight invoking SplitKid
// inline to restore fan-out).
func RunNested(host NodeHost, roleName string, args any) error {
	fn, ok := host.Registry().lookup(roleName)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRole, roleName)
	}

	txnID := id.NewTxnID()
	r := &Role{host: host, node: host.ID(), txn: txnID, roleName: roleName, mailbox: newMailbox()}
	host.RegisterController(txnID, r)
	defer host.UnregisterController(txnID)
	defer recoverRole(r)

	fn(r, args)
	return nil
}

// Dispatch handles an inbound start_participant_role envelope: it looks
// up the named role, registers a new controller for env.Txn, and runs the
// role body on a fresh goroutine. Called by internal/node's dispatch.
func Dispatch(host NodeHost, env wire.Envelope) {
	args, ok := env.Payload.(wire.StartParticipantRoleArgs)
	if !ok {
		obslog.Event("txn", "malformed start_participant_role dropped", "node", host.ID(), "txn", env.Txn)
		return
	}
	fn, ok := host.Registry().lookup(args.Role)
	if !ok {
		obslog.Event("txn", "unknown role in start_participant_role dropped", "node", host.ID(), "txn", env.Txn, "role", args.Role)
		return
	}

	r := &Role{host: host, node: host.ID(), txn: env.Txn, roleName: args.Role, mailbox: newMailbox()}
	host.RegisterController(env.Txn, r)
	go func() {
		defer host.UnregisterController(env.Txn)
		defer recoverRole(r)
		fn(r, args.Args)
	}()
}

// Route delivers an inbound transaction_message envelope to the already-
// running controller for env.Txn. A message for an unknown transaction is
// dropped and logged: the controller may simply have already finished, or
// the sender is confused — either way this node's own state is untouched.
func Route(host NodeHost, env wire.Envelope) {
	r, ok := host.LookupController(env.Txn)
	if !ok {
		obslog.Event("txn", "message for unknown transaction dropped", "node", host.ID(), "txn", env.Txn, "type", env.Type)
		return
	}
	r.mailbox.push(env.Type, env)
}

func recoverRole(r *Role) {
	rec := recover()
	if rec == nil {
		return
	}
	if pv, ok := rec.(protocolViolation); ok {
		obslog.Event("txn", "protocol violation; role aborted", "node", r.node, "txn", r.txn, "role", r.roleName, "err", pv.Error())
		return
	}
	obslog.Event("txn", "role panicked; role aborted", "node", r.node, "txn", r.txn, "role", r.roleName, "panic", fmt.Sprint(rec))
}
