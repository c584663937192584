// Package subscribe implements the subscription handshake: a
// link-subscriber collaborator wants to attach a source dataset root to
// a sink dataset root and discover the per-leaf-interval correspondence
// between them. SendStartSubscription originates on the source root (or
// recurses down through enlisted copies of itself on the source's own
// kids); ReceiveStartSubscription is enlisted on the sink side, at
// whatever depth the height-reconciliation walk reaches.
//
// Role bodies are registered into the shared txn.Registry and reach back
// into node state via a type assertion on txn.Role.Host(), the same
// pattern the structural transactions use. The three-message shape —
// start_subscription, its subscription_started ack, and the
// subscription_edges result that follows — keeps every round trip typed
// end to end rather than passing around untyped payloads.
package subscribe

import (
	"github.com/datatree/datatree/internal/id"
	"github.com/datatree/datatree/internal/txn"
	"github.com/datatree/datatree/internal/wire"
)

// Register installs SendStartSubscription and ReceiveStartSubscription
// into reg. Call once per process before any node starts subscribing.
func Register(reg *txn.Registry) {
	reg.Register("SendStartSubscription", sendStartSubscription)
	reg.Register("ReceiveStartSubscription", receiveStartSubscription)
}

// SendStartSubscriptionArgs originates the handshake on a fresh root
// (Target set, Parent zero) or is enlisted recursively on one of the
// sender's own kids (Target zero; the kid reports in via hello_parent and
// waits for subscribe_to to learn its real target).
type SendStartSubscriptionArgs struct {
	Parent     wire.RoleHandle
	Target     id.NodeID
	Subscriber id.Handle
	LinkKey    string
}

// ReceiveStartSubscriptionArgs is handed to the sink-side participant.
type ReceiveStartSubscriptionArgs struct {
	Sender  wire.RoleHandle
	LinkKey string
}
