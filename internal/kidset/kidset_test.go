package kidset

import (
	"testing"

	"github.com/datatree/datatree/internal/id"
	"github.com/datatree/datatree/internal/key"
	"github.com/datatree/datatree/internal/wire"
)

type fixedRand struct{ v float64 }

func (f fixedRand) Float64() float64 { return f.v }

type seqRand struct {
	vals []float64
	i    int
}

func (s *seqRand) Float64() float64 {
	v := s.vals[s.i%len(s.vals)]
	s.i++
	return v
}

func TestAddAndGetKid(t *testing.T) {
	s := New(key.Interval{Lo: key.Min, Hi: key.Max}, fixedRand{0.5})
	a := id.NewNodeID()
	iv := key.Interval{Lo: key.Of(0.5), Hi: key.Max}
	if err := s.AddKid(a, id.NewHandle(a), iv); err != nil {
		t.Fatalf("AddKid: %v", err)
	}
	got, ok := s.Get(a)
	if !ok {
		t.Fatalf("expected kid %s present", a)
	}
	if !got.Interval.Lo.Equal(iv.Lo) {
		t.Fatalf("interval mismatch: %s", got.Interval)
	}
}

func TestAddKidBoundaryCollision(t *testing.T) {
	s := New(key.Interval{Lo: key.Min, Hi: key.Max}, fixedRand{0.5})
	a, b := id.NewNodeID(), id.NewNodeID()
	iv := key.Interval{Lo: key.Of(0.3), Hi: key.Max}
	if err := s.AddKid(a, id.NewHandle(a), iv); err != nil {
		t.Fatalf("AddKid a: %v", err)
	}
	if err := s.AddKid(b, id.NewHandle(b), iv); err == nil {
		t.Fatalf("expected boundary collision error")
	}
}

func TestMergeRight(t *testing.T) {
	s := New(key.Interval{Lo: key.Min, Hi: key.Max}, fixedRand{0.5})
	left, right := id.NewNodeID(), id.NewNodeID()
	mid := key.Of(0.5)
	if err := s.AddKid(left, id.NewHandle(left), key.Interval{Lo: key.Min, Hi: mid}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddKid(right, id.NewHandle(right), key.Interval{Lo: mid, Hi: key.Max}); err != nil {
		t.Fatal(err)
	}
	if err := s.MergeRight(left); err != nil {
		t.Fatalf("MergeRight: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 kid after merge, got %d", s.Len())
	}
	got, ok := s.Get(right)
	if !ok {
		t.Fatalf("expected surviving kid %s", right)
	}
	if !got.Interval.Lo.IsMin() {
		t.Fatalf("expected merged interval to start at Min, got %s", got.Interval.Lo)
	}
}

func TestMergeRightRightmostFails(t *testing.T) {
	s := New(key.Interval{Lo: key.Min, Hi: key.Max}, fixedRand{0.5})
	only := id.NewNodeID()
	if err := s.AddKid(only, id.NewHandle(only), key.Interval{Lo: key.Min, Hi: key.Max}); err != nil {
		t.Fatal(err)
	}
	if err := s.MergeRight(only); err == nil {
		t.Fatalf("expected rightmost error")
	}
}

func TestSplit(t *testing.T) {
	s := New(key.Interval{Lo: key.Min, Hi: key.Max}, fixedRand{0.5})
	kidID := id.NewNodeID()
	if err := s.AddKid(kidID, id.NewHandle(kidID), key.Interval{Lo: key.Min, Hi: key.Max}); err != nil {
		t.Fatal(err)
	}
	newID := id.NewNodeID()
	mid := key.Of(0.5)
	if err := s.Split(kidID, mid, newID, id.NewHandle(newID), wire.KidSummary{}, wire.KidSummary{}); err != nil {
		t.Fatalf("Split: %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 kids after split, got %d", s.Len())
	}
	old, _ := s.Get(kidID)
	if !old.Interval.Hi.Equal(mid) {
		t.Fatalf("expected old kid Hi == mid, got %s", old.Interval.Hi)
	}
	nw, _ := s.Get(newID)
	if !nw.Interval.Lo.Equal(mid) || !nw.Interval.Hi.IsMax() {
		t.Fatalf("expected new kid [mid, Max), got %s", nw.Interval)
	}
}

func TestSplitInvalidMidFails(t *testing.T) {
	s := New(key.Interval{Lo: key.Min, Hi: key.Max}, fixedRand{0.5})
	kidID := id.NewNodeID()
	iv := key.Interval{Lo: key.Of(0.2), Hi: key.Of(0.4)}
	if err := s.AddKid(kidID, id.NewHandle(kidID), iv); err != nil {
		t.Fatal(err)
	}
	if err := s.Split(kidID, key.Of(0.9), id.NewNodeID(), id.Handle{}, wire.KidSummary{}, wire.KidSummary{}); err == nil {
		t.Fatalf("expected invalid split error")
	}
}

func TestShrinkRightKeepsFloorHalf(t *testing.T) {
	s := New(key.Interval{Lo: key.Min, Hi: key.Max}, fixedRand{0.5})
	bounds := []float64{0.1, 0.2, 0.3, 0.4}
	prev := key.Min
	for i, b := range bounds {
		kid := id.NewNodeID()
		hi := key.Of(b)
		if i == len(bounds)-1 {
			hi = key.Max
		}
		if err := s.AddKid(kid, id.NewHandle(kid), key.Interval{Lo: prev, Hi: hi}); err != nil {
			t.Fatal(err)
		}
		prev = key.Of(b)
	}
	newHi, detached, err := s.ShrinkRight()
	if err != nil {
		t.Fatalf("ShrinkRight: %v", err)
	}
	if len(detached) != 2 {
		t.Fatalf("expected 2 detached kids (floor(4/2)=2 kept), got %d", len(detached))
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 kids kept, got %d", s.Len())
	}
	if !s.self.Hi.Equal(newHi) {
		t.Fatalf("expected self.Hi updated to %s, got %s", newHi, s.self.Hi)
	}
}

func TestShrinkRightNoKidsPicksFreshKey(t *testing.T) {
	s := New(key.Interval{Lo: key.Min, Hi: key.Max}, &seqRand{vals: []float64{0.7}})
	newHi, detached, err := s.ShrinkRight()
	if err != nil {
		t.Fatalf("ShrinkRight: %v", err)
	}
	if len(detached) != 0 {
		t.Fatalf("expected no detached kids, got %d", len(detached))
	}
	if newHi.IsMin() || newHi.IsMax() {
		t.Fatalf("expected fresh interior key, got %s", newHi)
	}
}

func TestNewKidKeyAvoidsCollision(t *testing.T) {
	s := New(key.Interval{Lo: key.Min, Hi: key.Max}, &seqRand{vals: []float64{0.5, 0.5, 0.9}})
	existing := id.NewNodeID()
	if err := s.AddKid(existing, id.NewHandle(existing), key.Interval{Lo: key.Of(0.5), Hi: key.Max}); err != nil {
		t.Fatal(err)
	}
	k, err := s.NewKidKey()
	if err != nil {
		t.Fatalf("NewKidKey: %v", err)
	}
	if k.Equal(key.Of(0.5)) {
		t.Fatalf("expected NewKidKey to retry past the collision, got %s", k)
	}
}
