// Package wire defines the message envelope and payload schema exchanged
// between data nodes. Every envelope carries a typed kind tag plus an
// opaque payload, with Handle/id helpers for addressing. These envelopes
// are not JSON-encoded on the wire by this package itself — the physical
// wire codec belongs to the transport collaborator — but every payload
// still carries json tags so a real transport can serialize them without
// the core changing shape.
package wire

import (
	"encoding/json"

	"github.com/datatree/datatree/internal/id"
	"github.com/datatree/datatree/internal/key"
)

// Kind tags the envelope's delivery semantics.
type Kind string

const (
	KindTransactionMessage   Kind = "transaction_message"
	KindStartParticipantRole Kind = "start_participant_role"
	KindKidSummary           Kind = "kid_summary" // out-of-band, outside any transaction
)

// Envelope is the addressed, typed message passed between nodes. Txn is
// the zero value for non-transactional envelopes (kid_summary).
type Envelope struct {
	Kind    Kind
	Txn     id.TxnID
	From    RoleHandle // sender's role handle; out-of-band sends set only Node
	Type    string     // message type name, matched by listen(type)
	Payload any
}

// RoleHandle addresses a specific role instance within a transaction: the
// node hosting it, the transaction it belongs to, and the node it was
// minted "for" (the party entitled to use it as a sender key for FIFO
// pairing). Handles are immutable plain value records — never owning
// references to other nodes.
type RoleHandle struct {
	Node id.NodeID
	Txn  id.TxnID
	For  id.NodeID
}

// NodeHandle strips the transaction id, giving the underlying node
// address a non-transactional send can target directly.
func (h RoleHandle) NodeHandle() id.Handle {
	return id.Handle{Node: h.Node}
}

// --- Transactional message payloads (structural transactions and the
// subscription handshake) ---

// HelloParent is sent once by a newly created node to whichever node is
// enlisting/spawning it, and again by a FosterChild adopting a new parent.
type HelloParent struct {
	Interval key.Interval `json:"interval"`
	Summary  KidSummary   `json:"summary"`
}

// GoodbyeParent is sent by a node terminating its relationship with its
// current parent, either because it is being fostered to a new parent or
// because it is being fully absorbed/retired.
type GoodbyeParent struct{}

// KidSummary is a child's self-reported health snapshot, cached by its
// parent's KidSet and used by the monitor to decide when to split, merge,
// bump, or consume.
type KidSummary struct {
	Height        int `json:"height"`
	Size          int `json:"size"`           // current load (e.g. record/kid count)
	CapacityLimit int `json:"capacity_limit"` // this kid's configured capacity
	NGrandkids    int `json:"n_grandkids"`
}

// Remaining reports the spare capacity this summary represents.
func (s KidSummary) Remaining() int {
	return s.CapacityLimit - s.Size
}

// AbsorbTheseKids instructs an absorber to expect the given children,
// which are being foster-transferred to it, and the new left endpoint its
// interval must grow to cover.
type AbsorbTheseKids struct {
	IDs          []id.NodeID `json:"ids"`
	LeftEndpoint key.Key     `json:"left_endpoint"`
}

// FinishedAbsorbing is sent by an absorber once it has received a
// hello_parent from every kid named in AbsorbTheseKids.
type FinishedAbsorbing struct {
	Summary     KidSummary   `json:"summary"`
	NewInterval key.Interval `json:"new_interval"`
}

// FinishedSplitting is sent by the split kid once every leaving child has
// said goodbye.
type FinishedSplitting struct {
	Summary KidSummary `json:"summary"`
}

// SetLeafKey tells a newly added leaf the key its parent chose for it.
type SetLeafKey struct {
	Key key.Key `json:"key"`
}

// StartParticipantRoleArgs carries the role name and opaque args for
// constructing a participant role on arrival.
type StartParticipantRoleArgs struct {
	Role string `json:"role"`
	Args any    `json:"args"`
}

// StartSubscription opens or continues the subscription handshake between
// a source root and a sink root. Load carries the source's own estimated
// message rate (see node.DataNode.EstimatedMessagesPerSecond) so the sink
// side can size fan-out without a separate round-trip.
type StartSubscription struct {
	Subscriber     id.Handle      `json:"subscriber"`
	LinkKey        string         `json:"link_key"`
	Load           float64        `json:"load"`
	Height         int            `json:"height"`
	SourceInterval key.Interval   `json:"source_interval"`
	KidIntervals   []key.Interval `json:"kid_intervals"`
}

// LeftmostKid is one entry of a SubscriptionStarted response.
type LeftmostKid struct {
	ID             id.NodeID    `json:"id"`
	TargetInterval key.Interval `json:"target_interval"`
}

// SubscriptionStarted answers a StartSubscription.
type SubscriptionStarted struct {
	LinkKey      string        `json:"link_key"`
	LeftmostKids []LeftmostKid `json:"leftmost_kids"`
}

// SubscriptionEdges maps each target-kid id to the sender-kid role handles
// feeding it.
type SubscriptionEdges struct {
	LinkKey string                   `json:"link_key"`
	Edges   map[id.NodeID][]RoleHandle `json:"edges"`
}

// SubscribeTo asks a kid to subscribe to another kid directly.
type SubscribeTo struct {
	Target RoleHandle `json:"target"`
}

// --- API message payloads (synchronous request/response, not part of
// any transaction) ---

// Stats is the snapshot returned by get_stats.
type Stats struct {
	NodeID   id.NodeID    `json:"node_id"`
	Height   int          `json:"height"`
	Interval key.Interval `json:"interval"`
	NKids    int          `json:"n_kids"`
	NLeaves  int          `json:"n_leaves"`
}

// MarshalEnvelopeForLog renders an envelope's payload as JSON for
// diagnostics. Nothing in the message path calls it.
func MarshalEnvelopeForLog(e Envelope) string {
	b, err := json.Marshal(e.Payload)
	if err != nil {
		return "<unmarshalable>"
	}
	return string(b)
}
