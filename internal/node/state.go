package node

import (
	"github.com/datatree/datatree/internal/dnconfig"
	"github.com/datatree/datatree/internal/id"
	"github.com/datatree/datatree/internal/key"
	"github.com/datatree/datatree/internal/kidset"
	"github.com/datatree/datatree/internal/wire"
)

// Height returns this node's current height (0 == leaf).
func (n *DataNode) Height() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.height
}

// SetHeight updates this node's height (BumpHeight, ConsumeProxy).
func (n *DataNode) SetHeight(h int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.height = h
}

// Parent returns the node's current parent handle and whether it has one
// (the root has none).
func (n *DataNode) Parent() (id.Handle, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.parent, n.hasParent
}

// SetParent rebinds this node's parent (FosterChild adopting a new parent).
func (n *DataNode) SetParent(h id.Handle) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.parent = h
	n.hasParent = true
}

// ClearParent removes this node's parent (becoming the root, or detached
// pending absorption).
func (n *DataNode) ClearParent() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hasParent = false
}

// Interval returns this node's current owned interval.
func (n *DataNode) Interval() key.Interval {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.kids.SelfInterval()
}

// SetInterval directly overwrites this node's own interval — only valid
// while the node has no kids: a leaf bootstrapping its first interval via
// AddLeaf, or NewDataset installing a fresh root's interval.
func (n *DataNode) SetInterval(iv key.Interval) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kids.SetInterval(iv)
}

// ProgramConfig returns the opaque per-dataset configuration payload.
func (n *DataNode) ProgramConfig() dnconfig.ProgramConfig {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.progCfg
}

// NodeConfig returns the structural tuning parameters (kid limits,
// capacity triggers, timers) that govern this node's behavior.
func (n *DataNode) NodeConfig() dnconfig.NodeConfig {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.nodeCfg
}

// LeafData returns the opaque payload a height-0 leaf carries, or nil for
// an interior node.
func (n *DataNode) LeafData() any {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.leafData
}

// SetLeafData installs the payload a leaf holds.
func (n *DataNode) SetLeafData(v any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.leafData = v
}

// --- KidSet access, always under the node's own lock so concurrent
// transactions and the monitor's periodic summary emission never race
// with each other. ---

// Kids returns a left-to-right snapshot of this node's current children.
func (n *DataNode) Kids() []kidset.Kid {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.kids.All()
}

// KidCount reports how many direct children this node currently has.
func (n *DataNode) KidCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.kids.Len()
}

// GetKid returns a snapshot of one child.
func (n *DataNode) GetKid(kidID id.NodeID) (kidset.Kid, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.kids.Get(kidID)
}

// Proxy returns the unique child when this node has exactly one kid,
// the precondition ConsumeProxy checks before it runs.
func (n *DataNode) Proxy() (kidset.Kid, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.kids.GetProxy()
}

// AddKid installs a new child under this node's own interval partition.
func (n *DataNode) AddKid(kidID id.NodeID, h id.Handle, iv key.Interval) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.kids.AddKid(kidID, h, iv)
}

// RemoveKid deletes a child outright (RemoveLeaf on an interior parent
// whose kid is itself a leaf being removed).
func (n *DataNode) RemoveKid(kidID id.NodeID) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.kids.RemoveKid(kidID)
}

// MergeRight merges leftID's interval into its right sibling.
func (n *DataNode) MergeRight(leftID id.NodeID) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.kids.MergeRight(leftID)
}

// Split truncates kidID at mid and installs newKidID over the remainder.
func (n *DataNode) Split(kidID id.NodeID, mid key.Key, newKidID id.NodeID, newHandle id.Handle, newSummary, kidSummary wire.KidSummary) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.kids.Split(kidID, mid, newKidID, newHandle, newSummary, kidSummary)
}

// ShrinkRight detaches this node's own right-suffix of children, per
// SplitKid's "give half my kids to the new sibling" step.
func (n *DataNode) ShrinkRight() (key.Key, []kidset.Kid, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.kids.ShrinkRight()
}

// GrowLeft extends this node's own interval leftward (an absorber
// learning the boundary it must now cover).
func (n *DataNode) GrowLeft(newLo key.Key) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kids.GrowLeft(newLo)
}

// NewKidKey samples a fresh interior key for a to-be-spawned child.
func (n *DataNode) NewKidKey() (key.Key, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.kids.NewKidKey()
}

// SetKidSummary records a child's self-reported health snapshot.
func (n *DataNode) SetKidSummary(kidID id.NodeID, s wire.KidSummary) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.kids.SetSummary(kidID, s)
}
