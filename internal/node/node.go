// Package node implements DataNode, the per-node actor that owns one
// interval of the dataset, one KidSet, and the transaction controllers
// currently running on it. A DataNode is single-threaded at the model
// level: all mutation of its own state happens through its inbox
// goroutine or under its structural gate — one goroutine draining a
// buffered inbox channel per tree node.
package node

import (
	"sync"

	"github.com/datatree/datatree/internal/dnconfig"
	"github.com/datatree/datatree/internal/eventq"
	"github.com/datatree/datatree/internal/id"
	"github.com/datatree/datatree/internal/key"
	"github.com/datatree/datatree/internal/kidset"
	"github.com/datatree/datatree/internal/obslog"
	"github.com/datatree/datatree/internal/txn"
	"github.com/datatree/datatree/internal/wire"
)

const inboxCapacity = 1024

// DataNode is one node in the tree. It implements txn.NodeHost, so the
// transaction runtime can run role bodies against it without importing
// this package.
type DataNode struct {
	id id.NodeID

	transport txn.Transport
	mc        txn.MachineController
	registry  *txn.Registry

	mu       sync.RWMutex // guards everything below
	height   int
	parent   id.Handle
	hasParent bool
	kids     *kidset.KidSet
	progCfg  dnconfig.ProgramConfig
	nodeCfg  dnconfig.NodeConfig
	leafData any // opaque payload for height-0 leaves; nil for interior nodes

	gate sync.Mutex // serializes originator transactions, txn.NodeHost.StructuralGate

	ctrlMu      sync.Mutex
	controllers map[id.TxnID]*txn.Role

	publisher Publisher // registered post-handshake link collaborator; nil until set

	rate *messageRateTracker

	inbox  chan inboxItem
	quit   chan struct{}
	closed sync.Once
}

// Publisher is the external link-subsystem collaborator notified once a
// subscription handshake completes. The core never inspects how it
// routes data; it only registers the counterparty node and the link key
// the handshake agreed on.
type Publisher interface {
	SubscribeInput(linkKey string, from id.NodeID)
	SubscribeOutput(linkKey string, to id.NodeID)
}

// SetPublisher installs the link collaborator this node reports
// subscription registrations to.
func (n *DataNode) SetPublisher(p Publisher) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.publisher = p
}

// Publisher returns the currently installed link collaborator, or nil.
func (n *DataNode) Publisher() Publisher {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.publisher
}

type inboxItem struct {
	from id.NodeID
	env  wire.Envelope
}

// Config bundles everything New needs to construct a node.
type Config struct {
	ID        id.NodeID
	Height    int
	Interval  key.Interval
	Parent    id.Handle
	HasParent bool
	Transport txn.Transport
	MC        txn.MachineController
	Registry  *txn.Registry
	ProgCfg   dnconfig.ProgramConfig
	NodeCfg   dnconfig.NodeConfig
	Rand      kidset.Rand
}

// New constructs a node and starts its inbox-draining goroutine.
func New(cfg Config) *DataNode {
	n := &DataNode{
		id:          cfg.ID,
		transport:   cfg.Transport,
		mc:          cfg.MC,
		registry:    cfg.Registry,
		height:      cfg.Height,
		parent:      cfg.Parent,
		hasParent:   cfg.HasParent,
		kids:        kidset.New(cfg.Interval, cfg.Rand),
		progCfg:     cfg.ProgCfg,
		nodeCfg:     cfg.NodeCfg,
		controllers: make(map[id.TxnID]*txn.Role),
		rate:        newMessageRateTracker(),
		inbox:       make(chan inboxItem, inboxCapacity),
		quit:        make(chan struct{}),
	}
	go n.pump()
	return n
}

// Deliver offers an inbound envelope to this node's inbox without
// blocking the sender. A full inbox drops the message and logs it rather
// than stalling whatever goroutine is trying to hand it off.
func (n *DataNode) Deliver(from id.NodeID, env wire.Envelope) {
	n.rate.increment()
	if !eventq.Offer(n.inbox, inboxItem{from: from, env: env}) {
		obslog.Event("node", "inbox full, message dropped", "node", n.id, "from", from, "kind", env.Kind)
	}
}

// EstimatedMessagesPerSecond reports this node's current inbound message
// rate. The subscription handshake attaches it to start_subscription as
// the Load figure so a sink can size its fan-out without a separate
// round trip to ask.
func (n *DataNode) EstimatedMessagesPerSecond() float64 {
	return n.rate.estimateHz()
}

// Kill stops this node's inbox pump. Idempotent.
func (n *DataNode) Kill() {
	n.closed.Do(func() { close(n.quit) })
}

func (n *DataNode) pump() {
	for {
		select {
		case item := <-n.inbox:
			n.dispatch(item)
		case <-n.quit:
			return
		}
	}
}

func (n *DataNode) dispatch(item inboxItem) {
	env := item.env
	switch env.Kind {
	case wire.KindStartParticipantRole:
		txn.Dispatch(n, env)
	case wire.KindTransactionMessage:
		txn.Route(n, env)
	case wire.KindKidSummary:
		n.applyKidSummary(item.from, env)
	default:
		obslog.Event("node", "unknown envelope kind dropped", "node", n.id, "kind", env.Kind)
	}
}

func (n *DataNode) applyKidSummary(from id.NodeID, env wire.Envelope) {
	summary, ok := env.Payload.(wire.KidSummary)
	if !ok {
		obslog.Event("node", "malformed kid_summary dropped", "node", n.id, "from", from)
		return
	}
	n.mu.Lock()
	err := n.kids.SetSummary(from, summary)
	n.mu.Unlock()
	if err != nil {
		obslog.Event("node", "kid_summary for unknown kid dropped", "node", n.id, "from", from, "err", err)
	}
}

// --- txn.NodeHost ---

func (n *DataNode) ID() id.NodeID                            { return n.id }
func (n *DataNode) Transport() txn.Transport                 { return n.transport }
func (n *DataNode) MachineController() txn.MachineController { return n.mc }
func (n *DataNode) Registry() *txn.Registry                  { return n.registry }
func (n *DataNode) StructuralGate() *sync.Mutex               { return &n.gate }

func (n *DataNode) HasKid(kidID id.NodeID) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	_, ok := n.kids.Get(kidID)
	return ok
}

func (n *DataNode) RegisterController(t id.TxnID, r *txn.Role) {
	n.ctrlMu.Lock()
	defer n.ctrlMu.Unlock()
	n.controllers[t] = r
}

func (n *DataNode) UnregisterController(t id.TxnID) {
	n.ctrlMu.Lock()
	defer n.ctrlMu.Unlock()
	delete(n.controllers, t)
}

func (n *DataNode) LookupController(t id.TxnID) (*txn.Role, bool) {
	n.ctrlMu.Lock()
	defer n.ctrlMu.Unlock()
	r, ok := n.controllers[t]
	return r, ok
}
