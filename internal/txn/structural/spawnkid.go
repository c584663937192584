package structural

import (
	"github.com/datatree/datatree/internal/id"
	"github.com/datatree/datatree/internal/node"
	"github.com/datatree/datatree/internal/obslog"
	"github.com/datatree/datatree/internal/txn"
	"github.com/datatree/datatree/internal/wire"
)

// spawnKid seeds this node with a fresh first child. Used primarily when
// a node has no kids yet; once it has one, overload is handled by
// splitting that kid instead (see SplitKid).
func spawnKid(r *txn.Role, rawArgs any) {
	args := rawArgs.(SpawnKidArgs)
	n := r.Host().(*node.DataNode)

	if n.Height() < 1 || (!args.Force && !n.LowCapacity()) {
		obslog.Event("structural", "SpawnKid precondition failed", "node", n.ID())
		return
	}

	cfg := txn.SpawnConfig{
		Parent:        id.NewHandle(n.ID()),
		Height:        n.Height() - 1,
		Interval:      n.Interval(),
		ProgramConfig: n.ProgramConfig(),
		NodeConfig:    n.NodeConfig(),
	}
	newID, _ := r.SpawnEnlist(cfg, "StartDataNode", StartDataNodeArgs{Parent: r.Self()})

	payload, from := r.Listen("hello_parent")
	if from != newID {
		obslog.Event("structural", "SpawnKid: hello_parent from unexpected sender", "node", n.ID(), "want", newID, "got", from)
		return
	}
	hello := payload.(wire.HelloParent)

	if err := n.AddKid(newID, id.NewHandle(newID), n.Interval()); err != nil {
		obslog.Event("structural", "SpawnKid: AddKid failed", "node", n.ID(), "err", err)
		return
	}
	if err := n.SetKidSummary(newID, hello.Summary); err != nil {
		obslog.Event("structural", "SpawnKid: SetKidSummary failed", "node", n.ID(), "err", err)
	}
}
