package structural

import (
	"github.com/datatree/datatree/internal/id"
	"github.com/datatree/datatree/internal/node"
	"github.com/datatree/datatree/internal/obslog"
	"github.com/datatree/datatree/internal/txn"
	"github.com/datatree/datatree/internal/wire"
)

// bumpHeight raises the root's height by inserting a proxy between the
// root and all of its current kids, then immediately splits the proxy
// to restore healthy fan-out.
func bumpHeight(r *txn.Role, rawArgs any) {
	n := r.Host().(*node.DataNode)

	if !n.LowCapacity() || n.KidCount() < n.NodeConfig().DataNodeKidsLimit {
		obslog.Event("structural", "BumpHeight precondition failed", "node", n.ID())
		return
	}

	proxyCfg := txn.SpawnConfig{
		Parent:        id.NewHandle(n.ID()),
		Height:        n.Height(),
		Interval:      n.Interval(),
		ProgramConfig: n.ProgramConfig(),
		NodeConfig:    n.NodeConfig(),
	}
	proxyID, proxyHandle := r.SpawnEnlist(proxyCfg, "NewAbsorber", NewAbsorberArgs{Parent: r.Self()})

	if _, from := r.Listen("hello_parent"); from != proxyID {
		obslog.Event("structural", "BumpHeight: hello_parent from unexpected sender", "node", n.ID(), "want", proxyID, "got", from)
		return
	}

	kids := n.Kids()
	ids := make([]id.NodeID, len(kids))
	for i, k := range kids {
		ids[i] = k.ID
	}
	r.Send(proxyHandle, "absorb_these_kids", wire.AbsorbTheseKids{IDs: ids, LeftEndpoint: n.Interval().Lo})
	for _, k := range kids {
		r.Enlist(k.ID, "FosterChild", FosterChildArgs{OldParent: r.Self(), NewParent: proxyHandle})
	}
	for range kids {
		r.Listen("goodbye_parent")
	}

	payload, from := r.Listen("finished_absorbing")
	if from != proxyID {
		obslog.Event("structural", "BumpHeight: finished_absorbing from unexpected sender", "node", n.ID(), "want", proxyID, "got", from)
		return
	}
	absorbed := payload.(wire.FinishedAbsorbing)

	for _, k := range kids {
		if err := n.RemoveKid(k.ID); err != nil {
			obslog.Event("structural", "BumpHeight: RemoveKid failed", "node", n.ID(), "kid", k.ID, "err", err)
		}
	}
	n.SetHeight(n.Height() + 1)
	if err := n.AddKid(proxyID, id.NewHandle(proxyID), absorbed.NewInterval); err != nil {
		obslog.Event("structural", "BumpHeight: AddKid(proxy) failed", "node", n.ID(), "err", err)
		return
	}
	if err := n.SetKidSummary(proxyID, absorbed.Summary); err != nil {
		obslog.Event("structural", "BumpHeight: SetKidSummary failed", "node", n.ID(), "err", err)
	}

	if err := txn.RunNested(r.Host(), "SplitKid", SplitKidArgs{KidID: proxyID}); err != nil {
		obslog.Event("structural", "BumpHeight: inline SplitKid failed", "node", n.ID(), "err", err)
	}
}
