// Package heap implements the Notlox value model and the reference heap
// shared by the compiler and the virtual machine. Reference-typed objects
// (arrays, maps, external handles) live in an append-only heap addressed by
// index; a Value that needs to refer to one carries only that index
// (RefID), never a pointer, so the heap is the sole owner of object
// lifetime.
package heap

import (
	"fmt"
	"strconv"
)

// Value is the interface implemented by every runtime value manipulated by
// the compiler and virtual machine. It is a sum type in spirit: each variant
// named in the language spec (Nil, Number, Boolean, String, Range, RefID,
// MapForContext) is a distinct Go type implementing Value, switched on with
// type assertions rather than an explicit tag field.
type Value interface {
	// String returns the display form of the value (the text printed by the
	// print statement and to_string).
	String() string
	// Type returns a short name for the value's runtime type, used in error
	// messages.
	Type() string
	// Truth reports whether the value is truey. Nil and Boolean(false) are
	// the only falsey values.
	Truth() bool
}

// Nil is the singleton absence-of-value.
type Nil struct{}

func (Nil) String() string { return "nil" }
func (Nil) Type() string   { return "nil" }
func (Nil) Truth() bool    { return false }

// NilValue is the single instance of Nil, returned wherever the language
// semantics call for "no value".
var NilValue Value = Nil{}

// Number is a double-precision float. Notlox has no separate integer type;
// char literals are also represented as Number (see DESIGN.md, Open
// Question c).
type Number float64

func (n Number) String() string { return strconv.FormatFloat(float64(n), 'g', -1, 64) }
func (Number) Type() string     { return "number" }
func (n Number) Truth() bool    { return true }

// Boolean is a truth value.
type Boolean bool

func (b Boolean) String() string {
	if b {
		return "true"
	}
	return "false"
}
func (Boolean) Type() string  { return "boolean" }
func (b Boolean) Truth() bool { return bool(b) }

// String is an immutable byte sequence. Indexing is byte-wise, not
// Unicode-aware (spec non-goal).
type String string

func (s String) String() string { return string(s) }
func (String) Type() string     { return "string" }
func (s String) Truth() bool    { return true }

// Range is a lazily-described numeric range [Lo, Hi).
type Range struct {
	Lo, Hi float64
}

func (r Range) String() string {
	return formatFloat(r.Lo) + ".." + formatFloat(r.Hi)
}
func (Range) Type() string  { return "range" }
func (r Range) Truth() bool { return true }

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }

// RefID is a weak-by-construction handle into the Heap: the index of the
// HeapObject it refers to. It is never invalidated during a single
// interpretation, since the heap only ever grows.
type RefID uint32

func (r RefID) String() string { return fmt.Sprintf("RefId(%d)", uint32(r)) }
func (RefID) Type() string     { return "ref" }
func (RefID) Truth() bool      { return true }

// MapForContext is internal iterator state pushed onto the VM's value stack
// while a for loop iterates over a Map. It is never user-visible: no
// language-level expression can produce or observe one directly.
type MapForContext struct {
	Keys []HashableValue
	I, N int
}

func (MapForContext) String() string { return "<map iterator>" }
func (MapForContext) Type() string   { return "map-iterator" }
func (MapForContext) Truth() bool    { return true }

// Truthy reports whether v is truey per the language's falsey rule: Nil and
// Boolean(false) are falsey, everything else is truey.
func Truthy(v Value) bool { return v.Truth() }
