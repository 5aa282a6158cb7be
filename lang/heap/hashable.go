package heap

import (
	"fmt"
	"math"
)

// hashTag orders the variants of HashableValue for comparison and gives map
// keys of different underlying kinds a stable relative order (spec.md §3:
// Nil < Number < Boolean < String < RefID < Range).
type hashTag uint8

const (
	tagNil hashTag = iota
	tagNumber
	tagBoolean
	tagString
	tagRefID
	tagRange
)

// SanitizedFloat is the IEEE-754 decomposition of a finite float64 into a
// comparable, hashable form. Non-finite floats (NaN, +Inf, -Inf) have no
// SanitizedFloat: ToHashable rejects them rather than attempt to canonicalize
// NaN's many bit patterns (spec.md §9, "Hashable floats").
type SanitizedFloat struct {
	Mantissa uint64
	Exponent int16
	Sign     int8
}

func sanitizeFloat(f float64) (SanitizedFloat, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return SanitizedFloat{}, fmt.Errorf("cannot hash non-finite float %v", f)
	}
	bits := math.Float64bits(f)
	sign := int8(1)
	if bits>>63 == 1 {
		sign = -1
	}
	exponent := int16((bits>>52)&0x7ff) - 1023
	mantissa := bits & ((1 << 52) - 1)
	if f == 0 {
		// normalize +0 and -0 to the same sanitized form
		return SanitizedFloat{Mantissa: 0, Exponent: 0, Sign: 1}, nil
	}
	return SanitizedFloat{Mantissa: mantissa, Exponent: exponent, Sign: sign}, nil
}

func (f SanitizedFloat) value() float64 {
	bits := uint64(0)
	if f.Sign < 0 {
		bits |= 1 << 63
	}
	bits |= uint64(uint16(f.Exponent+1023)&0x7ff) << 52
	bits |= f.Mantissa
	return math.Float64frombits(bits)
}

func (f SanitizedFloat) less(g SanitizedFloat) bool { return f.value() < g.value() }

// HashableValue is the projection of Value usable as a map key: a comparable
// Go struct (all fields are scalars or strings) so it can back a
// github.com/dolthub/swiss map directly, and so it satisfies Go's == for use
// as a plain map key too.
type HashableValue struct {
	tag      hashTag
	num      SanitizedFloat
	boolean  bool
	str      string
	ref      RefID
	lo, hi   SanitizedFloat
}

// ToHashable projects v to its HashableValue form, or fails if v's runtime
// type cannot be used as a map key (not in the Nil|Number|Boolean|String|
// RefID|Range set) or if a Number/Range component is a non-finite float.
func ToHashable(v Value) (HashableValue, error) {
	switch x := v.(type) {
	case Nil:
		return HashableValue{tag: tagNil}, nil
	case Number:
		sf, err := sanitizeFloat(float64(x))
		if err != nil {
			return HashableValue{}, err
		}
		return HashableValue{tag: tagNumber, num: sf}, nil
	case Boolean:
		return HashableValue{tag: tagBoolean, boolean: bool(x)}, nil
	case String:
		return HashableValue{tag: tagString, str: string(x)}, nil
	case RefID:
		return HashableValue{tag: tagRefID, ref: x}, nil
	case Range:
		lo, err := sanitizeFloat(x.Lo)
		if err != nil {
			return HashableValue{}, err
		}
		hi, err := sanitizeFloat(x.Hi)
		if err != nil {
			return HashableValue{}, err
		}
		return HashableValue{tag: tagRange, lo: lo, hi: hi}, nil
	default:
		return HashableValue{}, fmt.Errorf("unhashable type: %s", v.Type())
	}
}

// Value reconstitutes the Value a HashableValue was projected from.
func (h HashableValue) Value() Value {
	switch h.tag {
	case tagNil:
		return NilValue
	case tagNumber:
		return Number(h.num.value())
	case tagBoolean:
		return Boolean(h.boolean)
	case tagString:
		return String(h.str)
	case tagRefID:
		return h.ref
	case tagRange:
		return Range{Lo: h.lo.value(), Hi: h.hi.value()}
	default:
		panic("unreachable hashTag")
	}
}

// Less implements the total order over HashableValue used by Array.sort:
// first by tag (Nil < Number < Boolean < String < RefID < Range), then by
// the natural order within a tag.
func (h HashableValue) Less(other HashableValue) bool {
	if h.tag != other.tag {
		return h.tag < other.tag
	}
	switch h.tag {
	case tagNil:
		return false
	case tagNumber:
		return h.num.less(other.num)
	case tagBoolean:
		return !h.boolean && other.boolean
	case tagString:
		return h.str < other.str
	case tagRefID:
		return h.ref < other.ref
	case tagRange:
		if h.lo != other.lo {
			return h.lo.less(other.lo)
		}
		return h.hi.less(other.hi)
	default:
		return false
	}
}
