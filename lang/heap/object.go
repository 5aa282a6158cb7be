package heap

import "github.com/dolthub/swiss"

// Object is the interface implemented by the three variants of a heap
// object: Array, Map, External.
type Object interface {
	Type() string
}

// ArrayObject is the Array heap-object variant: an ordered, mutable sequence
// of Value.
type ArrayObject struct {
	Elems []Value
}

// NewArrayObject returns an empty array object.
func NewArrayObject() *ArrayObject { return &ArrayObject{} }

func (*ArrayObject) Type() string { return "array" }

// Grow extends the array with Nil until index n is valid (length n+1), if it
// is currently shorter. Used by Index and IndexAssign, which bounds-extend with Nil
// rather than fail on an out-of-range index (spec.md §4.4).
func (a *ArrayObject) Grow(n int) {
	for len(a.Elems) <= n {
		a.Elems = append(a.Elems, NilValue)
	}
}

// MapObject is the Map heap-object variant: a mapping from HashableValue to
// Value, backed by a github.com/dolthub/swiss map for open-addressed,
// cache-friendly lookup (grounded on the teacher's lang/machine/map.go,
// which backs its own Map type the same way).
type MapObject struct {
	m *swiss.Map[HashableValue, Value]
}

// NewMapObject returns an empty map object.
func NewMapObject() *MapObject {
	return &MapObject{m: swiss.NewMap[HashableValue, Value](8)}
}

func (*MapObject) Type() string { return "map" }

// Get returns the value stored at key, or (nil, false) if absent; the nil is
// a nil Value interface, not NilValue.
func (m *MapObject) Get(key HashableValue) (Value, bool) {
	return m.m.Get(key)
}

// Set stores value at key, inserting or overwriting.
func (m *MapObject) Set(key HashableValue, value Value) {
	m.m.Put(key, value)
}

// Len returns the number of entries currently stored.
func (m *MapObject) Len() int { return int(m.m.Count()) }

// Keys returns a snapshot of the map's keys, in iteration order at the time
// of the call. Per spec.md §3, Map storage order is insertion-order
// irrelevant; a for loop snapshots this slice once at loop entry (the
// ForLoop opcode's Map case) and walks it with a stable index, so later
// mutation of the map mid-loop does not perturb the set of keys already
// captured.
func (m *MapObject) Keys() []HashableValue {
	keys := make([]HashableValue, 0, m.m.Count())
	m.m.Iter(func(k HashableValue, _ Value) bool {
		keys = append(keys, k)
		return false
	})
	return keys
}

// ExternalObject is the External heap-object variant: an opaque handle
// provided by a host builtin (e.g. the compiled regular expression returned
// by String.regex). Arity reports the expected argument count for a named
// method, and Call dispatches to it.
type ExternalObject struct {
	Handle ExternalHandle
}

// ExternalHandle is implemented by host-provided external values.
type ExternalHandle interface {
	// Arity returns the number of arguments the named method expects, and
	// whether the method exists at all.
	Arity(name string) (int, bool)
	// Call invokes the named method with the given arguments.
	Call(name string, args []Value) (Value, error)
}

func (e *ExternalObject) Type() string { return "external" }

// Heap is the append-only store of heap objects owned by the virtual
// machine. The compiler never allocates on it: top-level initializers are
// restricted to literals (spec.md §4.3), none of which are reference types.
// A RefID is simply an index
// into Objects; the heap never shrinks or compacts during a single
// interpretation (spec.md §1 and §5: no garbage collection).
type Heap struct {
	Objects []Object
}

// New returns an empty heap.
func New() *Heap { return &Heap{} }

// Alloc appends obj to the heap and returns the RefID addressing it.
func (h *Heap) Alloc(obj Object) RefID {
	h.Objects = append(h.Objects, obj)
	return RefID(len(h.Objects) - 1)
}

// Get returns the object at id. The caller is responsible for asserting it
// to the expected concrete type; a RefID from a well-typed program always
// addresses an object of the kind the opcode using it expects.
func (h *Heap) Get(id RefID) Object { return h.Objects[id] }

// Array returns the ArrayObject at id, or an error if id does not address
// one.
func (h *Heap) Array(id RefID) (*ArrayObject, error) {
	a, ok := h.Get(id).(*ArrayObject)
	if !ok {
		return nil, typeMismatch("array", h.Get(id))
	}
	return a, nil
}

// Map returns the MapObject at id, or an error if id does not address one.
func (h *Heap) Map(id RefID) (*MapObject, error) {
	m, ok := h.Get(id).(*MapObject)
	if !ok {
		return nil, typeMismatch("map", h.Get(id))
	}
	return m, nil
}

// External returns the ExternalObject at id, or an error if id does not
// address one.
func (h *Heap) External(id RefID) (*ExternalObject, error) {
	e, ok := h.Get(id).(*ExternalObject)
	if !ok {
		return nil, typeMismatch("external", h.Get(id))
	}
	return e, nil
}

// Reset discards all heap objects, for reuse of a Machine across calls to
// Interpret (spec.md §5: "the heap is reset").
func (h *Heap) Reset() { h.Objects = h.Objects[:0] }

func typeMismatch(want string, got Object) error {
	return &TypeError{Want: want, Got: got.Type()}
}

// TypeError reports that a heap reference did not address the expected kind
// of object.
type TypeError struct {
	Want, Got string
}

func (e *TypeError) Error() string {
	return "expected " + e.Want + " reference, got " + e.Got
}
