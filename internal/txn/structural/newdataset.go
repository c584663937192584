package structural

import (
	"github.com/datatree/datatree/internal/key"
	"github.com/datatree/datatree/internal/node"
	"github.com/datatree/datatree/internal/obslog"
	"github.com/datatree/datatree/internal/txn"
)

// newDataset bootstraps a freshly spawned root: installs the full
// [Min, Max] interval and, if it was spawned tall enough to need one,
// runs SpawnKid inline to create its first interior child. It is
// started directly via txn.StartOriginator by whatever constructed the
// root — a fresh root has no parent to enlist it.
func newDataset(r *txn.Role, rawArgs any) {
	n := r.Host().(*node.DataNode)
	if n.KidCount() != 0 {
		obslog.Event("structural", "NewDataset precondition failed: kids not empty", "node", n.ID())
		return
	}
	if _, hasParent := n.Parent(); hasParent {
		obslog.Event("structural", "NewDataset precondition failed: parent not null", "node", n.ID())
		return
	}

	n.SetInterval(key.Interval{Lo: key.Min, Hi: key.Max})

	if n.Height() > 1 {
		if err := txn.RunNested(r.Host(), "SpawnKid", SpawnKidArgs{Force: true}); err != nil {
			obslog.Event("structural", "NewDataset: inline SpawnKid failed", "node", n.ID(), "err", err)
		}
	}
}
