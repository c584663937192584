package node

import (
	"github.com/datatree/datatree/internal/kidset"
	"github.com/datatree/datatree/internal/wire"
)

// GetStats answers the synchronous get_stats API call. The leaf count is
// a best-effort estimate from the last kid_summary each child reported,
// not a live walk of the subtree — an interior node never has exact
// knowledge of its grandchildren's current size.
func (n *DataNode) GetStats() wire.Stats {
	n.mu.RLock()
	defer n.mu.RUnlock()

	nLeaves := 0
	if n.height == 0 {
		nLeaves = 1
	} else {
		for _, k := range n.kids.All() {
			if k.HasSummary {
				nLeaves += k.Summary.Size
			}
		}
	}

	return wire.Stats{
		NodeID:   n.id,
		Height:   n.height,
		Interval: n.kids.SelfInterval(),
		NKids:    n.kids.Len(),
		NLeaves:  nLeaves,
	}
}

// LeftmostKid returns this node's leftmost child, if any — the entry
// point the subscription handshake walks down through when reconciling
// two differing heights.
func (n *DataNode) LeftmostKid() (kidset.Kid, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	all := n.kids.All()
	if len(all) == 0 {
		return kidset.Kid{}, false
	}
	return all[0], true
}

// DataLink returns the opaque payload a leaf exposes to subscribers. nil
// for an interior node.
func (n *DataNode) DataLink() any {
	return n.LeafData()
}

// Summary builds the kid_summary this node should report to its parent,
// from its own current state.
func (n *DataNode) Summary() wire.KidSummary {
	n.mu.RLock()
	defer n.mu.RUnlock()
	size := 1
	if n.height > 0 {
		size = n.kids.Len()
	}
	return wire.KidSummary{
		Height:        n.height,
		Size:          size,
		CapacityLimit: n.nodeCfg.DataNodeKidsLimit,
		NGrandkids:    n.countGrandkids(),
	}
}

func (n *DataNode) countGrandkids() int {
	total := 0
	for _, k := range n.kids.All() {
		if k.HasSummary {
			total += k.Summary.Size
		}
	}
	return total
}
