package structural

import (
	"github.com/datatree/datatree/internal/id"
	"github.com/datatree/datatree/internal/key"
	"github.com/datatree/datatree/internal/node"
	"github.com/datatree/datatree/internal/obslog"
	"github.com/datatree/datatree/internal/txn"
	"github.com/datatree/datatree/internal/wire"
)

// addLeaf is originated by a brand-new, as-yet-unowned leaf reaching
// upward into the tree it wants to join. It uses EnlistUpward, which
// skips the ownership check Enlist otherwise enforces, since this leaf
// owns nothing yet (the subscription handshake is EnlistUpward's only
// other caller).
func addLeaf(r *txn.Role, rawArgs any) {
	args := rawArgs.(AddLeafArgs)
	n := r.Host().(*node.DataNode)

	r.EnlistUpward(args.ParentToBe, "AddLeafParent", AddLeafParentArgs{Leaf: r.Self()})

	payload, from := r.Listen("set_leaf_key")
	if from != args.ParentToBe {
		obslog.Event("structural", "AddLeaf: set_leaf_key from unexpected sender", "node", n.ID(), "want", args.ParentToBe, "got", from)
		return
	}
	set := payload.(wire.SetLeafKey)

	n.SetInterval(key.Interval{Lo: set.Key, Hi: key.Max})
	n.SetParent(id.NewHandle(args.ParentToBe))
}
