// Package structural implements the six structural transactions
// (NewDataset, SpawnKid, SplitKid, MergeKids, BumpHeight, ConsumeProxy)
// plus AddLeaf/RemoveLeaf, as role bodies registered into a shared
// txn.Registry. Each role type-asserts txn.Role.Host() back to
// *node.DataNode to reach domain state rather than carrying node state
// directly on the role itself.
package structural

import (
	"github.com/datatree/datatree/internal/id"
	"github.com/datatree/datatree/internal/txn"
	"github.com/datatree/datatree/internal/wire"
)

// Register installs every role this package defines into reg. Call once
// per process before any node starts running transactions.
func Register(reg *txn.Registry) {
	reg.Register("NewDataset", newDataset)
	reg.Register("StartDataNode", startDataNode)
	reg.Register("SpawnKid", spawnKid)
	reg.Register("SplitKid", splitKid)
	reg.Register("SplitNode", splitNode)
	reg.Register("MergeKids", mergeKids)
	reg.Register("BumpHeight", bumpHeight)
	reg.Register("ConsumeProxy", consumeProxy)
	reg.Register("NewAbsorber", growAbsorber)
	reg.Register("GrowAbsorber", growAbsorber)
	reg.Register("FosterChild", fosterChild)
	reg.Register("Absorbee", absorbee)
	reg.Register("AddLeaf", addLeaf)
	reg.Register("AddLeafParent", addLeafParent)
	reg.Register("RemoveLeaf", removeLeaf)
}

// --- Role argument types, one per transaction/participant role. ---

// NewDatasetArgs is empty: a fresh root learns everything it needs
// (height, program config) from how it was constructed.
type NewDatasetArgs struct{}

// StartDataNodeArgs is handed to a freshly spawned node's bootstrap role.
type StartDataNodeArgs struct {
	Parent wire.RoleHandle
}

// SpawnKidArgs controls SpawnKid's precondition.
type SpawnKidArgs struct {
	Force       bool
	SendSummary bool
}

// SplitKidArgs names the overloaded child to split.
type SplitKidArgs struct {
	KidID id.NodeID
}

// SplitNodeArgs is handed to the kid being split.
type SplitNodeArgs struct {
	Absorber wire.RoleHandle
	Parent   wire.RoleHandle
}

// NewAbsorberArgs is handed to a node absorbing foster children, whether
// freshly spawned (NewAbsorber) or an existing kid (GrowAbsorber).
type NewAbsorberArgs struct {
	Parent wire.RoleHandle
}

// FosterChildArgs tells a leaving kid who to say goodbye to and hello to.
type FosterChildArgs struct {
	OldParent wire.RoleHandle
	NewParent wire.RoleHandle
}

// MergeKidsArgs names the adjacent pair to merge.
type MergeKidsArgs struct {
	LeftID, RightID id.NodeID
}

// AbsorbeeArgs is handed to the kid being absorbed away entirely.
type AbsorbeeArgs struct {
	Parent   wire.RoleHandle
	Absorber wire.RoleHandle
}

// AddLeafArgs is handed to a brand-new leaf originating its own admission.
type AddLeafArgs struct {
	ParentToBe id.NodeID
}

// AddLeafParentArgs is handed to the parent admitting a new leaf.
type AddLeafParentArgs struct {
	Leaf wire.RoleHandle
}

// RemoveLeafArgs names the kid to drop.
type RemoveLeafArgs struct {
	KidID id.NodeID
}
