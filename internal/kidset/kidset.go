// Package kidset implements KidSet, the ordered partition of a node's
// interval among its children. All modifying operations are O(log n),
// backed by github.com/google/btree — an ordered Go map a sorted slice
// cannot give without an O(n) insert/delete cost on every split or merge
// (see DESIGN.md).
package kidset

import (
	"errors"
	"fmt"

	"github.com/google/btree"

	"github.com/datatree/datatree/internal/id"
	"github.com/datatree/datatree/internal/key"
	"github.com/datatree/datatree/internal/wire"
)

// Sentinel errors distinguishing a protocol violation (programmer error,
// should never happen on a correctly driven KidSet) from an ordinary
// precondition failure a caller might reasonably hit. Callers distinguish
// the two via errors.Is.
var (
	ErrNotFound       = errors.New("kidset: not found")
	ErrRightmost      = errors.New("kidset: no right neighbor")
	ErrDuplicateKid   = errors.New("kidset: kid already present")
	ErrBoundaryExists = errors.New("kidset: boundary collision")
	ErrInvalidSplit   = errors.New("kidset: split point must satisfy old_lo < mid < old_hi")
)

// Kid is a read-only snapshot of one child: its handle, the interval it
// currently owns, and the last summary it reported (if any).
type Kid struct {
	ID         id.NodeID
	Handle     id.Handle
	Interval   key.Interval
	Summary    wire.KidSummary
	HasSummary bool
}

// Rand is the seedable randomness source NewKidKey samples from.
type Rand interface {
	Float64() float64
}

type entry struct {
	kid Kid
}

func lessByLo(a, b *entry) bool {
	return a.kid.Interval.Lo.Less(b.kid.Interval.Lo)
}

// KidSet is the canonical representation of a node's child partition.
type KidSet struct {
	self key.Interval
	tree *btree.BTreeG[*entry]
	byID map[id.NodeID]*entry
	rng  Rand
}

// New creates an empty KidSet over the owning node's current interval.
func New(self key.Interval, rng Rand) *KidSet {
	return &KidSet{
		self: self,
		tree: btree.NewG(32, lessByLo),
		byID: make(map[id.NodeID]*entry),
		rng:  rng,
	}
}

// SelfInterval returns the owning node's interval.
func (s *KidSet) SelfInterval() key.Interval { return s.self }

// Len reports the number of kids.
func (s *KidSet) Len() int { return s.tree.Len() }

// Get returns a snapshot of the named kid.
func (s *KidSet) Get(kidID id.NodeID) (Kid, bool) {
	e, ok := s.byID[kidID]
	if !ok {
		return Kid{}, false
	}
	return e.kid, true
}

// All returns a left-to-right snapshot of every kid.
func (s *KidSet) All() []Kid {
	out := make([]Kid, 0, s.tree.Len())
	s.tree.Ascend(func(e *entry) bool {
		out = append(out, e.kid)
		return true
	})
	return out
}

// GetProxy returns the unique kid when |kids| == 1, else (_, false).
func (s *KidSet) GetProxy() (Kid, bool) {
	if s.tree.Len() != 1 {
		return Kid{}, false
	}
	min, ok := s.tree.Min()
	if !ok {
		return Kid{}, false
	}
	return min.kid, true
}

// AddKid installs a new child with the given handle and interval.
func (s *KidSet) AddKid(kidID id.NodeID, h id.Handle, iv key.Interval) error {
	if _, exists := s.byID[kidID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateKid, kidID)
	}
	if probe, found := s.tree.Get(&entry{kid: Kid{Interval: iv}}); found {
		return fmt.Errorf("%w: existing kid %s starts at %s", ErrBoundaryExists, probe.kid.ID, iv.Lo)
	}
	e := &entry{kid: Kid{ID: kidID, Handle: h, Interval: iv}}
	s.tree.ReplaceOrInsert(e)
	s.byID[kidID] = e
	return nil
}

// SetSummary records the most recently reported summary for a kid.
func (s *KidSet) SetSummary(kidID id.NodeID, summary wire.KidSummary) error {
	e, ok := s.byID[kidID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, kidID)
	}
	e.kid.Summary = summary
	e.kid.HasSummary = true
	return nil
}

// RemoveKid deletes a child outright (used by RemoveLeaf).
func (s *KidSet) RemoveKid(kidID id.NodeID) error {
	e, ok := s.byID[kidID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, kidID)
	}
	s.tree.Delete(e)
	delete(s.byID, kidID)
	return nil
}

// rightNeighbor returns the entry immediately to the right of e, if any.
func (s *KidSet) rightNeighbor(e *entry) (*entry, bool) {
	var next *entry
	s.tree.AscendGreaterOrEqual(e, func(cur *entry) bool {
		if cur == e {
			return true
		}
		next = cur
		return false
	})
	if next == nil {
		return nil, false
	}
	return next, true
}

// MergeRight deletes leftID, extending its right neighbor's interval
// leftward to cover it. Fails with ErrNotFound/ErrRightmost.
func (s *KidSet) MergeRight(leftID id.NodeID) error {
	left, ok := s.byID[leftID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, leftID)
	}
	right, ok := s.rightNeighbor(left)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRightmost, leftID)
	}
	right.kid.Interval.Lo = left.kid.Interval.Lo
	s.tree.Delete(left)
	delete(s.byID, leftID)
	return nil
}

// Split truncates kidID's interval to [old_lo, mid] and inserts newHandle
// with interval [mid, old_hi]. Requires old_lo < mid < old_hi.
func (s *KidSet) Split(kidID id.NodeID, mid key.Key, newKidID id.NodeID, newHandle id.Handle, newSummary, kidSummary wire.KidSummary) error {
	e, ok := s.byID[kidID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, kidID)
	}
	oldLo, oldHi := e.kid.Interval.Lo, e.kid.Interval.Hi
	if !oldLo.Less(mid) || !mid.Less(oldHi) {
		return fmt.Errorf("%w: lo=%s mid=%s hi=%s", ErrInvalidSplit, oldLo, mid, oldHi)
	}

	s.tree.Delete(e) // reinsert: Lo doesn't change, but keep tree/index consistent
	e.kid.Interval.Hi = mid
	e.kid.Summary = kidSummary
	e.kid.HasSummary = true
	s.tree.ReplaceOrInsert(e)

	newEntry := &entry{kid: Kid{
		ID:         newKidID,
		Handle:     newHandle,
		Interval:   key.Interval{Lo: mid, Hi: oldHi},
		Summary:    newSummary,
		HasSummary: true,
	}}
	s.tree.ReplaceOrInsert(newEntry)
	s.byID[newKidID] = newEntry
	return nil
}

// ShrinkRight reduces the owning node's own Hi, detaching a contiguous
// right-suffix of children and returning them. Keeps ⌊n/2⌋ leftmost
// children; if that equals n (which happens only when there are no kids),
// it picks a fresh interior key instead and detaches nothing. A single kid
// is therefore detached, and the new Hi is that kid's Lo.
func (s *KidSet) ShrinkRight() (key.Key, []Kid, error) {
	n := s.tree.Len()
	keep := n / 2
	if keep == n {
		newHi, err := s.newKidKeyLocked()
		if err != nil {
			return key.Key{}, nil, err
		}
		s.self.Hi = newHi
		return newHi, nil, nil
	}

	all := s.All()
	detach := all[keep:]
	newHi := detach[0].Interval.Lo
	for _, kid := range detach {
		e := s.byID[kid.ID]
		s.tree.Delete(e)
		delete(s.byID, kid.ID)
	}
	s.self.Hi = newHi
	return newHi, detach, nil
}

// GrowLeft reduces the owning node's own Lo leftward, for an absorber
// learning its new left boundary.
func (s *KidSet) GrowLeft(newLo key.Key) {
	s.self.Lo = newLo
}

// SetInterval directly overwrites the owning node's interval. Used by a
// leaf bootstrapping into its assigned range via AddLeaf and by NewDataset
// installing a fresh root's [Min, Max]; in both cases there are no
// existing children to reconcile a new interval against.
func (s *KidSet) SetInterval(iv key.Interval) {
	s.self = iv
}

// NewKidKey chooses a fresh key strictly inside the owning node's
// interval, retrying on collision with any existing boundary or Hi.
func (s *KidSet) NewKidKey() (key.Key, error) {
	return s.newKidKeyLocked()
}

func (s *KidSet) newKidKeyLocked() (key.Key, error) {
	const maxAttempts = 10000
	lo := s.self.Lo.FloatOr(0.0, 1.0)
	hi := s.self.Hi.FloatOr(0.0, 1.0)
	for i := 0; i < maxAttempts; i++ {
		v := lo + s.rng.Float64()*(hi-lo)
		k := key.Of(v)
		if s.collides(k) {
			continue
		}
		return k, nil
	}
	return key.Key{}, fmt.Errorf("kidset: could not find a free key in %s after %d attempts", s.self, maxAttempts)
}

func (s *KidSet) collides(k key.Key) bool {
	if s.self.Hi.Equal(k) || s.self.Lo.Equal(k) {
		return true
	}
	collision := false
	s.tree.Ascend(func(e *entry) bool {
		if e.kid.Interval.Lo.Equal(k) {
			collision = true
			return false
		}
		return true
	})
	return collision
}
