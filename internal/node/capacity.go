package node

import (
	"github.com/datatree/datatree/internal/id"
	"github.com/datatree/datatree/internal/kidset"
)

// LowCapacity implements the monitor's low-capacity test: the sum of
// remaining capacity across every kid whose summary is known has fallen
// to or below TOTAL_KID_CAPACITY_TRIGGER. A node with no summaries yet
// reported is never considered low on capacity.
func (n *DataNode) LowCapacity() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	total := 0
	known := false
	for _, k := range n.kids.All() {
		if k.HasSummary {
			total += k.Summary.Remaining()
			known = true
		}
	}
	return known && total <= n.nodeCfg.TotalKidCapacityTrigger
}

// MostLoadedKid returns the kid with the most grandkids — the monitor's
// choice of which kid to split when this node is out of capacity.
func (n *DataNode) MostLoadedKid() (kidset.Kid, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	var best kidset.Kid
	found := false
	for _, k := range n.kids.All() {
		if !k.HasSummary {
			continue
		}
		if !found || k.Summary.NGrandkids > best.Summary.NGrandkids {
			best, found = k, true
		}
	}
	return best, found
}

// KidsAreMergeable reports whether leftID and rightID are adjacent,
// same-height, and combined under the node's kid-count limit.
func (n *DataNode) KidsAreMergeable(leftID, rightID id.NodeID) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	left, ok := n.kids.Get(leftID)
	if !ok || !left.HasSummary {
		return false
	}
	right, ok := n.kids.Get(rightID)
	if !ok || !right.HasSummary {
		return false
	}
	if !left.Interval.Hi.Equal(right.Interval.Lo) {
		return false
	}
	if left.Summary.Height != right.Summary.Height {
		return false
	}
	return left.Summary.Size+right.Summary.Size <= n.nodeCfg.DataNodeKidsLimit
}

// AdjacentPairs returns every (left, right) pair of currently-adjacent
// kids, left to right — the candidate set the monitor scans for
// mergeable pairs each tick.
func (n *DataNode) AdjacentPairs() [][2]id.NodeID {
	n.mu.RLock()
	defer n.mu.RUnlock()
	all := n.kids.All()
	pairs := make([][2]id.NodeID, 0, len(all))
	for i := 0; i+1 < len(all); i++ {
		pairs = append(pairs, [2]id.NodeID{all[i].ID, all[i+1].ID})
	}
	return pairs
}
