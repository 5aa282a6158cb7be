// Package vm implements the Notlox stack-based virtual machine: a
// single-threaded dispatch loop executing a compiler.Chunk over a fixed-size
// value stack, a parallel locals array, and a call-frame stack, backed by an
// append-only heap.
package vm

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/mna/notlox/lang/compiler"
	"github.com/mna/notlox/lang/heap"
)

const (
	stackSize  = 256
	localsSize = 256
	framesSize = 256
)

// RuntimeError is a RuntimeError(msg, line): a failure discovered while
// executing a chunk (spec.md §7).
type RuntimeError struct {
	Msg  string
	Line int
}

func (e *RuntimeError) Error() string { return fmt.Sprintf("line %d: %s", e.Line, e.Msg) }

type frame struct {
	returnAddress int
	localsBase    int
}

// Machine is a reusable Notlox virtual machine. A single Machine can
// interpret many chunks in succession: Run resets the heap and every stack
// before each execution (spec.md §5).
type Machine struct {
	Stdout io.Writer

	chunk *compiler.Chunk
	ip    int

	stack []heap.Value
	top   int

	locals     []heap.Value
	localsBase int
	localsTop  int

	frames    []frame
	frameTop  int

	heap *heap.Heap
}

// New returns a Machine that prints to stdout.
func New() *Machine {
	return &Machine{
		Stdout: os.Stdout,
		stack:  make([]heap.Value, stackSize),
		locals: make([]heap.Value, localsSize),
		frames: make([]frame, framesSize),
		heap:   heap.New(),
	}
}

// Run executes chunk's "main" function to completion and returns its result
// value, or the first RuntimeError encountered.
func (m *Machine) Run(chunk *compiler.Chunk) (result heap.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			if rerr, ok := r.(*RuntimeError); ok {
				err = rerr
				return
			}
			panic(r)
		}
	}()

	m.chunk = chunk
	m.top = 0
	m.localsBase = 0
	m.localsTop = 0
	m.frameTop = 0
	m.heap.Reset()

	entry, ok := chunk.Functions["main"]
	if !ok {
		return nil, &RuntimeError{Msg: "no main function defined"}
	}
	m.ip = chunk.FunctionLocations[entry]

	return m.dispatch(), nil
}

func (m *Machine) fail(format string, args ...interface{}) {
	line := 0
	if m.ip >= 0 && m.ip < len(m.chunk.Lines) {
		line = m.chunk.Lines[m.ip]
	}
	panic(&RuntimeError{Msg: fmt.Sprintf(format, args...), Line: line})
}

func (m *Machine) push(v heap.Value) {
	if m.top >= stackSize {
		m.fail("stack overflow")
	}
	m.stack[m.top] = v
	m.top++
}

func (m *Machine) pop() heap.Value {
	if m.top <= 0 {
		m.fail("stack underflow")
	}
	m.top--
	return m.stack[m.top]
}

func (m *Machine) peek() heap.Value {
	if m.top <= 0 {
		m.fail("stack underflow")
	}
	return m.stack[m.top-1]
}

func (m *Machine) readByte() byte {
	b := m.chunk.Code[m.ip]
	m.ip++
	return b
}

func (m *Machine) readInt16() int16 {
	lo := m.chunk.Code[m.ip]
	hi := m.chunk.Code[m.ip+1]
	m.ip += 2
	return int16(uint16(lo) | uint16(hi)<<8)
}

func (m *Machine) dispatch() heap.Value {
	for {
		op := compiler.Opcode(m.readByte())
		switch op {
		case compiler.Return:
			result := m.pop()
			if m.frameTop == 0 {
				return result
			}
			m.frameTop--
			fr := m.frames[m.frameTop]
			m.ip = fr.returnAddress
			m.localsTop = m.localsBase
			m.localsBase = fr.localsBase
			m.push(result)

		case compiler.Constant:
			idx := m.readByte()
			m.push(m.chunk.Constants[idx])

		case compiler.Negate:
			n := m.popNumber()
			m.push(heap.Number(-n))

		case compiler.Add:
			m.execAdd()

		case compiler.Subtract:
			l, r := m.popTwoNumbers()
			m.push(heap.Number(l - r))
		case compiler.Multiply:
			l, r := m.popTwoNumbers()
			m.push(heap.Number(l * r))
		case compiler.Divide:
			l, r := m.popTwoNumbers()
			m.push(heap.Number(l / r))
		case compiler.Remainder:
			l, r := m.popTwoNumbers()
			m.push(heap.Number(math.Mod(l, r)))

		case compiler.Print:
			v := m.pop()
			fmt.Fprintln(m.Stdout, m.displayValue(v))

		case compiler.AssignLocal:
			slot := m.readByte()
			m.storeLocal(slot, m.pop())
		case compiler.LoadLocal:
			slot := m.readByte()
			m.push(m.loadLocal(slot))

		case compiler.PushNil:
			m.push(heap.NilValue)
		case compiler.PushTrue:
			m.push(heap.Boolean(true))
		case compiler.PushFalse:
			m.push(heap.Boolean(false))

		case compiler.Pop:
			m.pop()

		case compiler.FunctionEntry:
			count := int(m.readByte())
			if m.localsBase+count > localsSize {
				m.fail("stack overflow")
			}
			m.localsTop = m.localsBase + count

		case compiler.Call:
			number := int(m.readByte())
			if m.frameTop >= framesSize {
				m.fail("stack overflow")
			}
			m.frames[m.frameTop] = frame{returnAddress: m.ip, localsBase: m.localsBase}
			m.frameTop++
			m.localsBase = m.localsTop
			m.ip = m.chunk.FunctionLocations[number]

		case compiler.JumpIfFalse:
			offset := m.readInt16()
			v := m.pop()
			if !heap.Truthy(v) {
				m.ip += int(offset)
			}
		case compiler.JumpIfTrue:
			offset := m.readInt16()
			v := m.pop()
			if heap.Truthy(v) {
				m.ip += int(offset)
			}
		case compiler.Jump:
			offset := m.readInt16()
			m.ip += int(offset)

		case compiler.Dup:
			m.push(m.peek())

		case compiler.TestLess:
			l, r := m.popTwoNumbers()
			m.push(heap.Boolean(l < r))
		case compiler.TestLessOrEqual:
			l, r := m.popTwoNumbers()
			m.push(heap.Boolean(l <= r))
		case compiler.TestGreater:
			l, r := m.popTwoNumbers()
			m.push(heap.Boolean(l > r))
		case compiler.TestGreaterOrEqual:
			l, r := m.popTwoNumbers()
			m.push(heap.Boolean(l >= r))
		case compiler.TestEqual:
			r := m.pop()
			l := m.pop()
			m.push(heap.Boolean(m.valuesEqual(l, r)))
		case compiler.TestNotEqual:
			r := m.pop()
			l := m.pop()
			m.push(heap.Boolean(!m.valuesEqual(l, r)))

		case compiler.Not:
			v := m.pop()
			m.push(heap.Boolean(!heap.Truthy(v)))

		case compiler.Index:
			m.execIndex()
		case compiler.IndexAssign:
			m.execIndexAssign()

		case compiler.NewArray:
			m.push(m.heap.Alloc(heap.NewArrayObject()))
		case compiler.PushArray:
			m.execPushArray()
		case compiler.NewMap:
			m.push(m.heap.Alloc(heap.NewMapObject()))
		case compiler.PushMap:
			m.execPushMap()

		case compiler.BuiltinCall:
			m.execBuiltinCall()

		case compiler.MakeRange:
			hi := m.popNumber()
			lo := m.popNumber()
			m.push(heap.Range{Lo: lo, Hi: hi})

		case compiler.ForLoop:
			m.execForLoop()

		case compiler.PopMulti:
			n := int(m.readByte())
			for i := 0; i < n; i++ {
				m.pop()
			}

		case compiler.AssignGlobal:
			name := m.popString("global name")
			m.chunk.Globals[name] = m.pop()
		case compiler.LoadGlobal:
			name := m.popString("global name")
			if v, ok := m.chunk.Globals[name]; ok {
				m.push(v)
			} else {
				m.push(heap.NilValue)
			}

		default:
			m.fail("unknown opcode %d", op)
		}
	}
}

func (m *Machine) storeLocal(slot byte, v heap.Value) {
	idx := m.localsBase + int(slot)
	if idx < m.localsBase || idx >= m.localsTop {
		m.fail("local slot %d out of range", slot)
	}
	m.locals[idx] = v
}

func (m *Machine) loadLocal(slot byte) heap.Value {
	idx := m.localsBase + int(slot)
	if idx < m.localsBase || idx >= m.localsTop {
		m.fail("local slot %d out of range", slot)
	}
	return m.locals[idx]
}

func (m *Machine) popNumber() float64 {
	v := m.pop()
	n, ok := v.(heap.Number)
	if !ok {
		m.fail("expected number, got %s", v.Type())
	}
	return float64(n)
}

// popTwoNumbers pops LHS then RHS (the compiler emits RHS then LHS, so the
// first value popped off the top is LHS).
func (m *Machine) popTwoNumbers() (lhs, rhs float64) {
	lhs = m.popNumber()
	rhs = m.popNumber()
	return lhs, rhs
}

func (m *Machine) popString(what string) string {
	v := m.pop()
	s, ok := v.(heap.String)
	if !ok {
		m.fail("expected %s, got %s", what, v.Type())
	}
	return string(s)
}

func (m *Machine) execAdd() {
	lhs := m.pop()
	rhs := m.pop()
	switch l := lhs.(type) {
	case heap.Number:
		r, ok := rhs.(heap.Number)
		if !ok {
			m.fail("cannot add number and %s", rhs.Type())
		}
		m.push(heap.Number(float64(l) + float64(r)))
	case heap.String:
		switch r := rhs.(type) {
		case heap.String:
			m.push(heap.String(string(l) + string(r)))
		case heap.Number:
			m.push(heap.String(string(l) + string(byte(r))))
		default:
			m.fail("cannot append %s to string", rhs.Type())
		}
	default:
		m.fail("operands to + must be numbers or strings, got %s", lhs.Type())
	}
}

func (m *Machine) valuesEqual(l, r heap.Value) bool {
	switch lv := l.(type) {
	case heap.Nil:
		_, ok := r.(heap.Nil)
		return ok
	case heap.Number:
		rv, ok := r.(heap.Number)
		return ok && lv == rv
	case heap.Boolean:
		rv, ok := r.(heap.Boolean)
		return ok && lv == rv
	case heap.String:
		rv, ok := r.(heap.String)
		return ok && lv == rv
	case heap.Range:
		rv, ok := r.(heap.Range)
		return ok && lv == rv
	case heap.RefID:
		rv, ok := r.(heap.RefID)
		return ok && lv == rv
	default:
		return false
	}
}

func (m *Machine) execIndex() {
	key := m.pop()
	recv := m.pop()
	switch r := recv.(type) {
	case heap.String:
		n, ok := key.(heap.Number)
		if !ok {
			m.fail("string index must be a number")
		}
		i := int(n)
		s := string(r)
		if i < 0 || i >= len(s) {
			m.fail("string index %d out of range", i)
		}
		m.push(heap.Number(float64(s[i])))
	case heap.RefID:
		switch obj := m.heap.Get(r).(type) {
		case *heap.ArrayObject:
			n, ok := key.(heap.Number)
			if !ok {
				m.fail("array index must be a number")
			}
			i := int(n)
			if i < 0 {
				m.fail("array index %d out of range", i)
			}
			obj.Grow(i)
			m.push(obj.Elems[i])
		case *heap.MapObject:
			hk, err := heap.ToHashable(key)
			if err != nil {
				m.fail("%s", err)
			}
			if v, ok := obj.Get(hk); ok {
				m.push(v)
			} else {
				m.push(heap.NilValue)
			}
		default:
			m.fail("cannot index a %s reference", obj.Type())
		}
	default:
		m.fail("cannot index a %s", recv.Type())
	}
}

func (m *Machine) execIndexAssign() {
	value := m.pop()
	key := m.pop()
	recv := m.pop()
	ref, ok := recv.(heap.RefID)
	if !ok {
		m.fail("cannot assign into a %s", recv.Type())
	}
	switch obj := m.heap.Get(ref).(type) {
	case *heap.ArrayObject:
		n, ok := key.(heap.Number)
		if !ok {
			m.fail("array index must be a number")
		}
		i := int(n)
		if i < 0 {
			m.fail("array index %d out of range", i)
		}
		obj.Grow(i)
		obj.Elems[i] = value
	case *heap.MapObject:
		hk, err := heap.ToHashable(key)
		if err != nil {
			m.fail("%s", err)
		}
		obj.Set(hk, value)
	default:
		m.fail("cannot assign into a %s reference", obj.Type())
	}
}

func (m *Machine) execPushArray() {
	value := m.pop()
	ref := m.popRef("array")
	arr, err := m.heap.Array(ref)
	if err != nil {
		m.fail("%s", err)
	}
	arr.Elems = append(arr.Elems, value)
	m.push(ref)
}

func (m *Machine) execPushMap() {
	value := m.pop()
	key := m.pop()
	ref := m.popRef("map")
	mp, err := m.heap.Map(ref)
	if err != nil {
		m.fail("%s", err)
	}
	hk, err := heap.ToHashable(key)
	if err != nil {
		m.fail("%s", err)
	}
	mp.Set(hk, value)
	m.push(ref)
}

func (m *Machine) popRef(what string) heap.RefID {
	v := m.pop()
	ref, ok := v.(heap.RefID)
	if !ok {
		m.fail("expected %s reference, got %s", what, v.Type())
	}
	return ref
}

func (m *Machine) execForLoop() {
	slot := m.readByte()
	offset := m.readInt16()
	iterable := m.pop()

	switch it := iterable.(type) {
	case heap.Range:
		if it.Lo < it.Hi {
			m.storeLocal(slot, heap.Number(it.Lo))
			m.push(heap.Range{Lo: it.Lo + 1, Hi: it.Hi})
		} else {
			m.ip += int(offset)
		}
	case heap.RefID:
		switch obj := m.heap.Get(it).(type) {
		case *heap.ArrayObject:
			if len(obj.Elems) > 0 {
				m.storeLocal(slot, heap.Number(0))
				m.push(heap.Range{Lo: 1, Hi: float64(len(obj.Elems))})
			} else {
				m.ip += int(offset)
			}
		case *heap.MapObject:
			keys := obj.Keys()
			if len(keys) > 0 {
				m.storeLocal(slot, keys[0].Value())
				m.push(heap.MapForContext{Keys: keys, I: 1, N: len(keys)})
			} else {
				m.ip += int(offset)
			}
		default:
			m.fail("cannot iterate a %s reference", obj.Type())
		}
	case heap.MapForContext:
		if it.I < it.N {
			m.storeLocal(slot, it.Keys[it.I].Value())
			m.push(heap.MapForContext{Keys: it.Keys, I: it.I + 1, N: it.N})
		} else {
			m.ip += int(offset)
		}
	default:
		m.fail("cannot iterate a %s", iterable.Type())
	}
}

// Repl runs an interactive read-eval-print loop over r, writing prompts and
// results to w: each line is wrapped as `fn main() { <line> }` and
// interpreted independently (spec.md §6).
func Repl(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	m := New()
	m.Stdout = w
	for {
		fmt.Fprint(w, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := scanner.Text()
		if err := m.InterpretLine(line); err != nil {
			fmt.Fprintln(w, err)
		}
	}
}
