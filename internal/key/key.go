// Package key implements the total order over the dataset's interval
// domain: {Min} ∪ K ∪ {Max}, where K is the user key domain. Min sorts
// strictly before, and Max strictly after, every key in K.
package key

import "fmt"

// Key is an element of {Min} ∪ K ∪ {Max}. The user key domain K is
// modeled as float64, which is sufficient for any totally-ordered scalar
// domain the spec requires; Min and Max are sentinels outside that range.
type Key struct {
	kind kind
	val  float64
}

type kind uint8

const (
	kindMin kind = iota
	kindVal
	kindMax
)

// Min is strictly less than every other Key.
var Min = Key{kind: kindMin}

// Max is strictly greater than every other Key.
var Max = Key{kind: kindMax}

// Of wraps a user-domain scalar as a Key.
func Of(v float64) Key {
	return Key{kind: kindVal, val: v}
}

// IsMin reports whether k is the Min sentinel.
func (k Key) IsMin() bool { return k.kind == kindMin }

// IsMax reports whether k is the Max sentinel.
func (k Key) IsMax() bool { return k.kind == kindMax }

// Float returns the underlying scalar. Panics if called on a sentinel;
// callers that need a numeric proxy for sentinels should use FloatOr.
func (k Key) Float() float64 {
	if k.kind != kindVal {
		panic(fmt.Sprintf("key: Float() called on sentinel %s", k))
	}
	return k.val
}

// FloatOr returns the underlying scalar, substituting loSentinel for Min
// and hiSentinel for Max so a sampler can treat the open ends of the
// keyspace as ordinary numeric bounds.
func (k Key) FloatOr(loSentinel, hiSentinel float64) float64 {
	switch k.kind {
	case kindMin:
		return loSentinel
	case kindMax:
		return hiSentinel
	default:
		return k.val
	}
}

// Less reports whether k sorts strictly before other.
func (k Key) Less(other Key) bool {
	if k.kind != other.kind {
		return k.kind < other.kind
	}
	if k.kind == kindVal {
		return k.val < other.val
	}
	return false // two sentinels of the same kind are equal, not less
}

// Equal reports whether k and other denote the same point.
func (k Key) Equal(other Key) bool {
	if k.kind != other.kind {
		return false
	}
	return k.kind != kindVal || k.val == other.val
}

func (k Key) String() string {
	switch k.kind {
	case kindMin:
		return "Min"
	case kindMax:
		return "Max"
	default:
		return fmt.Sprintf("%g", k.val)
	}
}

// Interval is a contiguous key range [Lo, Hi] with Lo <= Hi. A leaf's Hi
// may be Max (the "open" sentinel for leaf-adjacent intervals).
type Interval struct {
	Lo Key
	Hi Key
}

// Valid reports whether lo <= hi, per the §3 interval contract.
func (iv Interval) Valid() bool {
	return !iv.Hi.Less(iv.Lo)
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%s, %s]", iv.Lo, iv.Hi)
}

// Contains reports whether k lies within [Lo, Hi).
func (iv Interval) Contains(k Key) bool {
	return !k.Less(iv.Lo) && k.Less(iv.Hi)
}
