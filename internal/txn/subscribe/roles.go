package subscribe

import (
	"github.com/datatree/datatree/internal/id"
	"github.com/datatree/datatree/internal/key"
	"github.com/datatree/datatree/internal/node"
	"github.com/datatree/datatree/internal/obslog"
	"github.com/datatree/datatree/internal/txn"
	"github.com/datatree/datatree/internal/wire"
)

type mismatch struct{ reason string }

func (m mismatch) Error() string { return "subscribe: " + m.reason }

// sendStartSubscription drives the source side of the handshake. When
// Target is unset this instance was enlisted as one of a taller sender's
// own kids: it reports in and waits to be told which sink-side kid to
// subscribe to before doing anything else.
func sendStartSubscription(r *txn.Role, rawArgs any) {
	args := rawArgs.(SendStartSubscriptionArgs)
	n := r.Host().(*node.DataNode)

	target := args.Target
	if target == "" {
		r.Send(args.Parent, "hello_parent", wire.HelloParent{Interval: n.Interval(), Summary: n.Summary()})
		payload, _ := r.Listen("subscribe_to")
		sub := payload.(wire.SubscribeTo)
		target = sub.Target.Node
	}

	receiverHandle := r.EnlistUpward(target, "ReceiveStartSubscription", ReceiveStartSubscriptionArgs{
		Sender:  r.Self(),
		LinkKey: args.LinkKey,
	})
	payload, from := r.Listen("hello_parent")
	if from != target {
		obslog.Event("subscribe", "hello_parent from unexpected sender", "node", n.ID(), "want", target, "got", from)
		return
	}
	hello := payload.(wire.HelloParent)

	height := n.Height()
	for height > hello.Summary.Height {
		r.Send(receiverHandle, "start_subscription", wire.StartSubscription{
			Subscriber:     args.Subscriber,
			LinkKey:        args.LinkKey,
			Load:           n.EstimatedMessagesPerSecond(),
			Height:         height,
			SourceInterval: n.Interval(),
		})
		resp, rfrom := r.Listen("subscription_started")
		if rfrom != target {
			obslog.Event("subscribe", "subscription_started from unexpected sender", "node", n.ID())
			return
		}
		started := resp.(wire.SubscriptionStarted)
		if started.LinkKey != args.LinkKey {
			panic(mismatch{"link_key mismatch on subscription_started"})
		}
		if len(started.LeftmostKids) != 1 {
			panic(mismatch{"expected a single reconciliation proxy"})
		}
		proxy := started.LeftmostKids[0]
		r.Send(receiverHandle, "subscription_edges", wire.SubscriptionEdges{
			LinkKey: args.LinkKey,
			Edges:   map[id.NodeID][]wire.RoleHandle{proxy.ID: {r.Self()}},
		})
		height--
	}

	kids := n.Kids()
	kidHandleByLo := make(map[key.Key]wire.RoleHandle, len(kids))
	kidIntervals := make([]key.Interval, len(kids))
	for i, k := range kids {
		h := r.Enlist(k.ID, "SendStartSubscription", SendStartSubscriptionArgs{
			Parent:     r.Self(),
			LinkKey:    args.LinkKey,
			Subscriber: args.Subscriber,
		})
		if _, kfrom := r.Listen("hello_parent"); kfrom != k.ID {
			obslog.Event("subscribe", "kid hello_parent from unexpected sender", "node", n.ID())
			return
		}
		kidIntervals[i] = k.Interval
		kidHandleByLo[k.Interval.Lo] = h
	}

	r.Send(receiverHandle, "start_subscription", wire.StartSubscription{
		Subscriber:     args.Subscriber,
		LinkKey:        args.LinkKey,
		Load:           n.EstimatedMessagesPerSecond(),
		Height:         height,
		SourceInterval: n.Interval(),
		KidIntervals:   kidIntervals,
	})
	resp, rfrom := r.Listen("subscription_started")
	if rfrom != target {
		obslog.Event("subscribe", "subscription_started from unexpected sender", "node", n.ID())
		return
	}
	started := resp.(wire.SubscriptionStarted)
	if started.LinkKey != args.LinkKey {
		panic(mismatch{"link_key mismatch on subscription_started"})
	}

	if len(kids) == 0 {
		edges := make(map[id.NodeID][]wire.RoleHandle, len(started.LeftmostKids))
		for _, lk := range started.LeftmostKids {
			edges[lk.ID] = []wire.RoleHandle{r.Self()}
		}
		r.Send(receiverHandle, "subscription_edges", wire.SubscriptionEdges{LinkKey: args.LinkKey, Edges: edges})
	} else {
		if len(started.LeftmostKids) != len(kids) {
			panic(mismatch{"Mismatched adjacent leftmost kids"})
		}
		edges := make(map[id.NodeID][]wire.RoleHandle, len(kids))
		for _, lk := range started.LeftmostKids {
			kidHandle, ok := kidHandleByLo[lk.TargetInterval.Lo]
			if !ok {
				panic(mismatch{"Mismatched adjacent leftmost kids"})
			}
			r.Send(kidHandle, "subscribe_to", wire.SubscribeTo{Target: wire.RoleHandle{Node: lk.ID}})
			edges[lk.ID] = []wire.RoleHandle{kidHandle}
		}
		r.Send(receiverHandle, "subscription_edges", wire.SubscriptionEdges{LinkKey: args.LinkKey, Edges: edges})
	}

	if pub := n.Publisher(); pub != nil {
		pub.SubscribeOutput(args.LinkKey, target)
	}
}

// receiveStartSubscription drives the sink side of the handshake. A
// receiver taller than the current round's declared sender height
// transparently delegates the whole exchange to its own leftmost kid,
// which re-applies the same height check one level down — recursion
// through the tree substitutes for an explicit per-level loop.
func receiveStartSubscription(r *txn.Role, rawArgs any) {
	args := rawArgs.(ReceiveStartSubscriptionArgs)
	n := r.Host().(*node.DataNode)

	r.Send(args.Sender, "hello_parent", wire.HelloParent{Interval: n.Interval(), Summary: n.Summary()})

	for {
		payload, from := r.Listen("start_subscription")
		fromHandle := wire.RoleHandle{Node: from, Txn: r.TxnID()}
		req := payload.(wire.StartSubscription)
		if req.LinkKey != args.LinkKey {
			panic(mismatch{"link_key mismatch on start_subscription"})
		}

		if n.Height() > req.Height {
			kid, ok := n.LeftmostKid()
			if !ok {
				obslog.Event("subscribe", "receiver taller than sender but childless", "node", n.ID())
				return
			}
			kidHandle := r.Enlist(kid.ID, "ReceiveStartSubscription", ReceiveStartSubscriptionArgs{
				Sender:  r.Self(),
				LinkKey: args.LinkKey,
			})
			if _, kfrom := r.Listen("hello_parent"); kfrom != kid.ID {
				obslog.Event("subscribe", "delegate hello_parent from unexpected sender", "node", n.ID())
				return
			}
			r.Send(kidHandle, "start_subscription", req)
			resp, rfrom := r.Listen("subscription_started")
			if rfrom != kid.ID {
				obslog.Event("subscribe", "delegate subscription_started from unexpected sender", "node", n.ID())
				return
			}
			r.Send(fromHandle, "subscription_started", resp)
			edgesPayload, efrom := r.Listen("subscription_edges")
			if efrom != from {
				obslog.Event("subscribe", "subscription_edges from unexpected sender", "node", n.ID())
				return
			}
			r.Send(kidHandle, "subscription_edges", edgesPayload)
			return
		}

		if req.Height > n.Height() {
			r.Send(fromHandle, "subscription_started", wire.SubscriptionStarted{
				LinkKey:      req.LinkKey,
				LeftmostKids: []wire.LeftmostKid{{ID: n.ID(), TargetInterval: n.Interval()}},
			})
			if _, efrom := r.Listen("subscription_edges"); efrom != from {
				obslog.Event("subscribe", "subscription_edges from unexpected sender", "node", n.ID())
				return
			}
			continue
		}

		kids := n.Kids()
		leftmost := make([]wire.LeftmostKid, len(kids))
		for i, k := range kids {
			leftmost[i] = wire.LeftmostKid{ID: k.ID, TargetInterval: k.Interval}
		}
		r.Send(fromHandle, "subscription_started", wire.SubscriptionStarted{LinkKey: req.LinkKey, LeftmostKids: leftmost})

		edgesPayload, efrom := r.Listen("subscription_edges")
		if efrom != from {
			obslog.Event("subscribe", "subscription_edges from unexpected sender", "node", n.ID())
			return
		}
		edges := edgesPayload.(wire.SubscriptionEdges)
		if edges.LinkKey != req.LinkKey {
			panic(mismatch{"link_key mismatch on subscription_edges"})
		}

		if pub := n.Publisher(); pub != nil {
			pub.SubscribeInput(req.LinkKey, from)
		}
		return
	}
}
