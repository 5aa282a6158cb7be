package vm

import (
	"math"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/mna/notlox/lang/heap"
)

// execBuiltinCall implements `receiver:name(args)` (spec.md §6). The
// compiler pushes args left-to-right, then the receiver, then the name as
// the topmost value; BuiltinCall pops name, then receiver, then as many
// args as the (receiver kind, name) pair's static arity requires.
func (m *Machine) execBuiltinCall() {
	name := m.popString("builtin name")
	recv := m.pop()

	if name == "to_string" {
		m.push(heap.String(m.displayValue(recv)))
		return
	}

	switch r := recv.(type) {
	case heap.RefID:
		m.dispatchRefBuiltin(r, name)
		return
	case heap.String:
		m.dispatchStringBuiltin(r, name)
		return
	case heap.Number:
		m.dispatchNumberBuiltin(r, name)
		return
	default:
		m.fail("no builtin %q for %s", name, recv.Type())
	}
}

func (m *Machine) popArgs(n int) []heap.Value {
	args := make([]heap.Value, n)
	for i := n - 1; i >= 0; i-- {
		args[i] = m.pop()
	}
	return args
}

func (m *Machine) dispatchRefBuiltin(ref heap.RefID, name string) {
	switch obj := m.heap.Get(ref).(type) {
	case *heap.ArrayObject:
		m.dispatchArrayBuiltin(ref, obj, name)
	case *heap.MapObject:
		m.fail("no builtin %q for map", name)
	case *heap.ExternalObject:
		m.dispatchExternalBuiltin(obj, name)
	default:
		m.fail("no builtin %q for %s", name, obj.Type())
	}
}

func (m *Machine) dispatchArrayBuiltin(ref heap.RefID, arr *heap.ArrayObject, name string) {
	switch name {
	case "len":
		m.push(heap.Number(float64(len(arr.Elems))))
	case "push":
		args := m.popArgs(1)
		arr.Elems = append(arr.Elems, args[0])
		m.push(heap.NilValue)
	case "pop":
		if len(arr.Elems) == 0 {
			m.fail("pop on empty array")
		}
		last := arr.Elems[len(arr.Elems)-1]
		arr.Elems = arr.Elems[:len(arr.Elems)-1]
		m.push(last)
	case "remove":
		args := m.popArgs(1)
		i := m.argIndex(args[0], len(arr.Elems))
		removed := arr.Elems[i]
		arr.Elems = append(arr.Elems[:i], arr.Elems[i+1:]...)
		m.push(removed)
	case "insert":
		args := m.popArgs(2)
		i := m.argIndex(args[0], len(arr.Elems)+1)
		arr.Elems = append(arr.Elems, heap.NilValue)
		copy(arr.Elems[i+1:], arr.Elems[i:])
		arr.Elems[i] = args[1]
		m.push(heap.NilValue)
	case "sort":
		hashed := make([]heap.HashableValue, len(arr.Elems))
		for i, e := range arr.Elems {
			hv, err := heap.ToHashable(e)
			if err != nil {
				m.fail("%s", err)
			}
			hashed[i] = hv
		}
		sort.SliceStable(hashed, func(i, j int) bool { return hashed[i].Less(hashed[j]) })
		for i, hv := range hashed {
			arr.Elems[i] = hv.Value()
		}
		m.push(ref)
	case "resize":
		args := m.popArgs(1)
		n, ok := args[0].(heap.Number)
		if !ok {
			m.fail("resize argument must be a number")
		}
		size := int(n)
		if size < 0 {
			m.fail("resize to a negative length")
		}
		if size <= len(arr.Elems) {
			arr.Elems = arr.Elems[:size]
		} else {
			for len(arr.Elems) < size {
				arr.Elems = append(arr.Elems, heap.NilValue)
			}
		}
		m.push(heap.NilValue)
	default:
		m.fail("no builtin %q for array", name)
	}
}

func (m *Machine) argIndex(v heap.Value, limit int) int {
	n, ok := v.(heap.Number)
	if !ok {
		m.fail("index argument must be a number")
	}
	i := int(n)
	if i < 0 || i >= limit {
		m.fail("index %d out of range", i)
	}
	return i
}

func (m *Machine) dispatchStringBuiltin(s heap.String, name string) {
	switch name {
	case "len":
		m.push(heap.Number(float64(len(s))))
	case "readFile":
		data, err := os.ReadFile(string(s))
		if err != nil {
			m.fail("readFile: %s", err)
		}
		m.push(heap.String(data))
	case "split":
		args := m.popArgs(1)
		sep, ok := args[0].(heap.String)
		if !ok {
			m.fail("split argument must be a string")
		}
		parts := strings.Split(string(s), string(sep))
		ref := m.heap.Alloc(heap.NewArrayObject())
		arr, _ := m.heap.Array(ref)
		for _, p := range parts {
			arr.Elems = append(arr.Elems, heap.String(p))
		}
		m.push(ref)
	case "parseNumber":
		n, err := strconv.ParseFloat(string(s), 64)
		if err != nil {
			m.fail("parseNumber: %s", err)
		}
		m.push(heap.Number(n))
	case "regex":
		re, err := regexp.Compile(string(s))
		if err != nil {
			m.fail("regex: %s", err)
		}
		m.push(m.heap.Alloc(&heap.ExternalObject{Handle: &regexHandle{re: re, heap: m.heap}}))
	default:
		m.fail("no builtin %q for string", name)
	}
}

func (m *Machine) dispatchNumberBuiltin(n heap.Number, name string) {
	switch name {
	case "floor":
		m.push(heap.Number(math.Floor(float64(n))))
	case "abs":
		m.push(heap.Number(math.Abs(float64(n))))
	default:
		m.fail("no builtin %q for number", name)
	}
}

func (m *Machine) dispatchExternalBuiltin(ext *heap.ExternalObject, name string) {
	arity, ok := ext.Handle.Arity(name)
	if !ok {
		m.fail("no builtin %q for external", name)
	}
	args := m.popArgs(arity)
	result, err := ext.Handle.Call(name, args)
	if err != nil {
		m.fail("%s", err)
	}
	m.push(result)
}

// regexHandle is the heap.ExternalHandle returned by String.regex: a
// compiled pattern whose only method, match(s), returns an Array of capture
// strings or Nil if the pattern does not match.
type regexHandle struct {
	re   *regexp.Regexp
	heap *heap.Heap
}

func (h *regexHandle) Arity(name string) (int, bool) {
	if name == "match" {
		return 1, true
	}
	return 0, false
}

func (h *regexHandle) Call(name string, args []heap.Value) (heap.Value, error) {
	if name != "match" {
		return nil, &heap.TypeError{Want: "match", Got: name}
	}
	s, ok := args[0].(heap.String)
	if !ok {
		return nil, &heap.TypeError{Want: "string", Got: args[0].Type()}
	}
	groups := h.re.FindStringSubmatch(string(s))
	if groups == nil {
		return heap.NilValue, nil
	}
	ref := h.heap.Alloc(heap.NewArrayObject())
	arr, _ := h.heap.Array(ref)
	for _, g := range groups {
		arr.Elems = append(arr.Elems, heap.String(g))
	}
	return ref, nil
}
