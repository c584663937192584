package structural

import (
	"github.com/datatree/datatree/internal/id"
	"github.com/datatree/datatree/internal/key"
	"github.com/datatree/datatree/internal/node"
	"github.com/datatree/datatree/internal/obslog"
	"github.com/datatree/datatree/internal/txn"
	"github.com/datatree/datatree/internal/wire"
)

// startDataNode is a brand-new node's first action: report its initial
// interval and summary to whichever node spawned it.
func startDataNode(r *txn.Role, rawArgs any) {
	args := rawArgs.(StartDataNodeArgs)
	n := r.Host().(*node.DataNode)
	n.SetParent(args.Parent.NodeHandle())
	r.Send(args.Parent, "hello_parent", wire.HelloParent{Interval: n.Interval(), Summary: n.Summary()})
}

// growAbsorber is the shared body behind both NewAbsorber (a freshly
// spawned node's first action) and GrowAbsorber (an existing kid
// re-enlisted to absorb foster children): report in with hello_parent,
// then wait for absorb_these_kids and grow to cover every named child.
func growAbsorber(r *txn.Role, rawArgs any) {
	args := rawArgs.(NewAbsorberArgs)
	n := r.Host().(*node.DataNode)
	n.SetParent(args.Parent.NodeHandle())
	r.Send(args.Parent, "hello_parent", wire.HelloParent{Interval: n.Interval(), Summary: n.Summary()})

	payload, _ := r.Listen("absorb_these_kids")
	instr := payload.(wire.AbsorbTheseKids)
	n.GrowLeft(instr.LeftEndpoint)

	for i := 0; i < len(instr.IDs); i++ {
		hp, from := r.Listen("hello_parent")
		hello := hp.(wire.HelloParent)
		if err := n.AddKid(from, id.NewHandle(from), hello.Interval); err != nil {
			obslog.Event("structural", "growAbsorber: AddKid failed", "node", n.ID(), "kid", from, "err", err)
			continue
		}
		if err := n.SetKidSummary(from, hello.Summary); err != nil {
			obslog.Event("structural", "growAbsorber: SetKidSummary failed", "node", n.ID(), "kid", from, "err", err)
		}
	}

	r.Send(args.Parent, "finished_absorbing", wire.FinishedAbsorbing{Summary: n.Summary(), NewInterval: n.Interval()})
}

// fosterChild runs on a kid being transferred from one parent to
// another: say goodbye to the old one, hello to the new one, then
// rebind.
func fosterChild(r *txn.Role, rawArgs any) {
	args := rawArgs.(FosterChildArgs)
	n := r.Host().(*node.DataNode)
	r.Send(args.OldParent, "goodbye_parent", wire.GoodbyeParent{})
	r.Send(args.NewParent, "hello_parent", wire.HelloParent{Interval: n.Interval(), Summary: n.Summary()})
	n.SetParent(args.NewParent.NodeHandle())
}

// absorbee runs on a node being fully absorbed away: forward all of its
// own kids to the absorber, then say goodbye to its own parent and
// terminate. Reused directly by ConsumeProxy.
func absorbee(r *txn.Role, rawArgs any) {
	args := rawArgs.(AbsorbeeArgs)
	n := r.Host().(*node.DataNode)
	kids := n.Kids()
	ids := make([]id.NodeID, len(kids))
	for i, k := range kids {
		ids[i] = k.ID
	}
	r.Send(args.Absorber, "absorb_these_kids", wire.AbsorbTheseKids{IDs: ids, LeftEndpoint: n.Interval().Lo})
	for _, k := range kids {
		r.Enlist(k.ID, "FosterChild", FosterChildArgs{OldParent: r.Self(), NewParent: args.Absorber})
	}
	for range kids {
		r.Listen("goodbye_parent")
	}
	r.Send(args.Parent, "goodbye_parent", wire.GoodbyeParent{})
}

// addLeafParent admits a new leaf: pick it a fresh key, install it, and
// hand the key back.
func addLeafParent(r *txn.Role, rawArgs any) {
	args := rawArgs.(AddLeafParentArgs)
	n := r.Host().(*node.DataNode)
	k, err := n.NewKidKey()
	if err != nil {
		obslog.Event("structural", "AddLeafParent: NewKidKey failed", "node", n.ID(), "err", err)
		return
	}
	leafID := args.Leaf.Node
	if err := n.AddKid(leafID, id.NewHandle(leafID), key.Interval{Lo: k, Hi: key.Max}); err != nil {
		obslog.Event("structural", "AddLeafParent: AddKid failed", "node", n.ID(), "leaf", leafID, "err", err)
		return
	}
	r.Send(args.Leaf, "set_leaf_key", wire.SetLeafKey{Key: k})
}

// removeLeaf drops a kid outright and lets the cached summary go with
// it.
func removeLeaf(r *txn.Role, rawArgs any) {
	args := rawArgs.(RemoveLeafArgs)
	n := r.Host().(*node.DataNode)
	if err := n.RemoveKid(args.KidID); err != nil {
		obslog.Event("structural", "RemoveLeaf failed", "node", n.ID(), "kid", args.KidID, "err", err)
	}
}
