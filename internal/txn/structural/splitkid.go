package structural

import (
	"github.com/datatree/datatree/internal/id"
	"github.com/datatree/datatree/internal/key"
	"github.com/datatree/datatree/internal/node"
	"github.com/datatree/datatree/internal/obslog"
	"github.com/datatree/datatree/internal/txn"
	"github.com/datatree/datatree/internal/wire"
)

// splitKid relieves an overloaded child by spawning an absorber sibling
// and foster-transferring half the child's own kids to it. mid — the new
// boundary between the two — is whatever the split kid's own
// ShrinkRight picked; the absorber and the split kid report their
// post-split summaries back independently, so this originator simply
// waits for both, in whichever order they arrive.
func splitKid(r *txn.Role, rawArgs any) {
	args := rawArgs.(SplitKidArgs)
	n := r.Host().(*node.DataNode)

	if n.Height() < 1 {
		obslog.Event("structural", "SplitKid precondition failed: height < 1", "node", n.ID())
		return
	}
	kid, ok := n.GetKid(args.KidID)
	if !ok {
		obslog.Event("structural", "SplitKid precondition failed: no such kid", "node", n.ID(), "kid", args.KidID)
		return
	}

	oldHi := kid.Interval.Hi
	absorberCfg := txn.SpawnConfig{
		Parent:        id.NewHandle(n.ID()),
		Height:        n.Height() - 1,
		Interval:      key.Interval{Lo: oldHi, Hi: oldHi},
		ProgramConfig: n.ProgramConfig(),
		NodeConfig:    n.NodeConfig(),
	}
	absorberID, absorberHandle := r.SpawnEnlist(absorberCfg, "NewAbsorber", NewAbsorberArgs{Parent: r.Self()})

	if _, from := r.Listen("hello_parent"); from != absorberID {
		obslog.Event("structural", "SplitKid: hello_parent from unexpected sender", "node", n.ID(), "want", absorberID, "got", from)
		return
	}

	r.Enlist(args.KidID, "SplitNode", SplitNodeArgs{
		Absorber: r.TransferHandle(absorberHandle, args.KidID),
		Parent:   r.Self(),
	})

	absPayload, absFrom := r.Listen("finished_absorbing")
	splitPayload, splitFrom := r.Listen("finished_splitting")
	if absFrom != absorberID || splitFrom != args.KidID {
		obslog.Event("structural", "SplitKid: unexpected senders", "node", n.ID(), "abs_from", absFrom, "split_from", splitFrom)
		return
	}
	absorbed := absPayload.(wire.FinishedAbsorbing)
	split := splitPayload.(wire.FinishedSplitting)
	mid := absorbed.NewInterval.Lo

	if err := n.Split(args.KidID, mid, absorberID, id.NewHandle(absorberID), absorbed.Summary, split.Summary); err != nil {
		obslog.Event("structural", "SplitKid: KidSet.Split failed", "node", n.ID(), "err", err)
	}
}

// splitNode runs on the kid being split: shrink locally, hand off the
// detached right-suffix to the absorber, and report back once every
// leaving child has confirmed.
func splitNode(r *txn.Role, rawArgs any) {
	args := rawArgs.(SplitNodeArgs)
	n := r.Host().(*node.DataNode)

	mid, leaving, err := n.ShrinkRight()
	if err != nil {
		obslog.Event("structural", "SplitNode: ShrinkRight failed", "node", n.ID(), "err", err)
		return
	}

	ids := make([]id.NodeID, len(leaving))
	for i, k := range leaving {
		ids[i] = k.ID
	}
	r.Send(args.Absorber, "absorb_these_kids", wire.AbsorbTheseKids{IDs: ids, LeftEndpoint: mid})
	for _, k := range leaving {
		r.Enlist(k.ID, "FosterChild", FosterChildArgs{OldParent: r.Self(), NewParent: args.Absorber})
	}
	for range leaving {
		r.Listen("goodbye_parent")
	}

	r.Send(args.Parent, "finished_splitting", wire.FinishedSplitting{Summary: n.Summary()})
}
