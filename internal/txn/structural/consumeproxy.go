package structural

import (
	"github.com/datatree/datatree/internal/id"
	"github.com/datatree/datatree/internal/node"
	"github.com/datatree/datatree/internal/obslog"
	"github.com/datatree/datatree/internal/txn"
	"github.com/datatree/datatree/internal/wire"
)

// consumeProxy undoes a BumpHeight once the proxy it introduced has
// shrunk back to a single child: the proxy is absorbed directly into
// this node, which plays the absorber role itself rather than enlisting
// a separate instance, since the proxy's kids become this node's own
// kids with no intervening node.
func consumeProxy(r *txn.Role, rawArgs any) {
	n := r.Host().(*node.DataNode)

	proxy, ok := n.Proxy()
	if !ok {
		obslog.Event("structural", "ConsumeProxy precondition failed: no proxy", "node", n.ID())
		return
	}
	proxyID := proxy.ID

	r.Enlist(proxyID, "Absorbee", AbsorbeeArgs{Parent: r.Self(), Absorber: r.Self()})

	payload, from := r.Listen("absorb_these_kids")
	if from != proxyID {
		obslog.Event("structural", "ConsumeProxy: absorb_these_kids from unexpected sender", "node", n.ID(), "want", proxyID, "got", from)
		return
	}
	instr := payload.(wire.AbsorbTheseKids)

	for i := 0; i < len(instr.IDs); i++ {
		hp, hfrom := r.Listen("hello_parent")
		hello := hp.(wire.HelloParent)
		if err := n.AddKid(hfrom, id.NewHandle(hfrom), hello.Interval); err != nil {
			obslog.Event("structural", "ConsumeProxy: AddKid failed", "node", n.ID(), "kid", hfrom, "err", err)
			continue
		}
		if err := n.SetKidSummary(hfrom, hello.Summary); err != nil {
			obslog.Event("structural", "ConsumeProxy: SetKidSummary failed", "node", n.ID(), "kid", hfrom, "err", err)
		}
	}

	if _, gfrom := r.Listen("goodbye_parent"); gfrom != proxyID {
		obslog.Event("structural", "ConsumeProxy: goodbye_parent from unexpected sender", "node", n.ID(), "want", proxyID, "got", gfrom)
		return
	}

	if err := n.RemoveKid(proxyID); err != nil {
		obslog.Event("structural", "ConsumeProxy: RemoveKid failed", "node", n.ID(), "err", err)
		return
	}
	n.SetHeight(n.Height() - 1)
}
