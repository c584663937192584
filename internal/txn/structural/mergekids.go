package structural

import (
	"github.com/datatree/datatree/internal/node"
	"github.com/datatree/datatree/internal/obslog"
	"github.com/datatree/datatree/internal/txn"
	"github.com/datatree/datatree/internal/wire"
)

// mergeKids folds an underfull left kid into its right neighbor. The
// mergeability precondition is re-checked at transaction start, since
// this is always scheduled speculatively by the monitor after a timer
// elapses and the pair may no longer qualify.
func mergeKids(r *txn.Role, rawArgs any) {
	args := rawArgs.(MergeKidsArgs)
	n := r.Host().(*node.DataNode)

	if !n.KidsAreMergeable(args.LeftID, args.RightID) {
		obslog.Event("structural", "MergeKids precondition failed", "node", n.ID(), "left", args.LeftID, "right", args.RightID)
		return
	}

	absorberHandle := r.Enlist(args.RightID, "GrowAbsorber", NewAbsorberArgs{Parent: r.Self()})
	if _, from := r.Listen("hello_parent"); from != args.RightID {
		obslog.Event("structural", "MergeKids: hello_parent from unexpected sender", "node", n.ID(), "want", args.RightID, "got", from)
		return
	}

	r.Enlist(args.LeftID, "Absorbee", AbsorbeeArgs{
		Parent:   r.Self(),
		Absorber: r.TransferHandle(absorberHandle, args.LeftID),
	})
	if _, from := r.Listen("goodbye_parent"); from != args.LeftID {
		obslog.Event("structural", "MergeKids: goodbye_parent from unexpected sender", "node", n.ID(), "want", args.LeftID, "got", from)
		return
	}

	payload, from := r.Listen("finished_absorbing")
	if from != args.RightID {
		obslog.Event("structural", "MergeKids: finished_absorbing from unexpected sender", "node", n.ID(), "want", args.RightID, "got", from)
		return
	}
	absorbed := payload.(wire.FinishedAbsorbing)

	if err := n.MergeRight(args.LeftID); err != nil {
		obslog.Event("structural", "MergeKids: KidSet.MergeRight failed", "node", n.ID(), "err", err)
		return
	}
	if err := n.SetKidSummary(args.RightID, absorbed.Summary); err != nil {
		obslog.Event("structural", "MergeKids: SetKidSummary failed", "node", n.ID(), "err", err)
	}
}
