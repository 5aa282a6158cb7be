// Package compiler lowers a parsed Notlox AST to a single bytecode Chunk
// consumed by the virtual machine. Compilation is a single linear pass: the
// compiler emits instructions directly into the chunk as it walks the AST,
// patching forward jumps once their target address is known, rather than
// building a control-flow graph and linearizing it afterward. Notlox has no
// closures and a byte-level bytecode encoding pinned by its instruction set,
// so a CFG brings no benefit here.
package compiler

import (
	"fmt"

	"github.com/mna/notlox/lang/ast"
	"github.com/mna/notlox/lang/heap"
)

// Error is a CompilerError: a semantic problem found while lowering the AST
// (spec.md §7). Unlike ParserError, it carries no source line — compile-time
// errors are about names and shapes, not token positions.
type Error struct{ Msg string }

func (e *Error) Error() string { return e.Msg }

func fail(format string, args ...interface{}) {
	panic(&Error{Msg: fmt.Sprintf(format, args...)})
}

// Compile lowers prog to a Chunk, or returns the first CompilerError found.
func Compile(prog *ast.Program) (chunk *Chunk, err error) {
	defer func() {
		if r := recover(); r != nil {
			if cerr, ok := r.(*Error); ok {
				err = cerr
				return
			}
			panic(r)
		}
	}()

	p := &pcomp{chunk: NewChunk()}
	p.compileProgram(prog)
	return p.chunk, nil
}

// pendingFn is a queued function declaration awaiting body compilation,
// deferred so that every function ultimately lives at chunk scope (spec.md
// §4.3, "Deferred functions") regardless of how deeply its declaration was
// nested in the source.
type pendingFn struct {
	name   string
	params []string
	body   *ast.Block
	number int
}

// pcomp holds state shared across the whole compilation: the chunk under
// construction and the queue of function bodies still to compile.
type pcomp struct {
	chunk *Chunk
	queue []*pendingFn
}

func (p *pcomp) compileProgram(prog *ast.Program) {
	for _, stmt := range prog.Stmts {
		switch s := stmt.(type) {
		case *ast.Let:
			p.compileTopLevelBinding(s.Name, s.Initializer)
		case *ast.Const:
			p.compileTopLevelBinding(s.Name, s.Initializer)
		case *ast.Fn:
			p.enqueueFn(s.Name, s.Params, s.Body)
		default:
			fail("unsupported top-level statement")
		}
	}

	for len(p.queue) > 0 {
		pending := p.queue[0]
		p.queue = p.queue[1:]
		p.compileFunctionBody(pending)
	}

	if _, ok := p.chunk.Functions["main"]; !ok {
		fail("program has no main function")
	}
}

// compileTopLevelBinding evaluates init at compile time and records the
// result in chunk.Globals, per spec.md §4.3's restriction that top-level
// initializers must be literals.
func (p *pcomp) compileTopLevelBinding(name string, init ast.Expr) {
	lit, ok := init.(*ast.Literal)
	if !ok {
		fail("top-level initializer for %q must be a literal", name)
	}
	p.chunk.Globals[name] = literalValue(lit)
}

func literalValue(lit *ast.Literal) heap.Value {
	switch lit.Kind {
	case ast.NumberLiteral, ast.CharLiteral:
		return heap.Number(lit.Number)
	case ast.StringLiteral:
		return heap.String(lit.Str)
	case ast.TrueLiteral:
		return heap.Boolean(true)
	case ast.FalseLiteral:
		return heap.Boolean(false)
	case ast.NilLiteral:
		return heap.Nil{}
	default:
		fail("unknown literal kind")
		return nil
	}
}

// enqueueFn reserves a function number for name immediately (so forward and
// recursive references resolve during body compilation) and queues its body
// for later compilation.
func (p *pcomp) enqueueFn(name string, params []string, body *ast.Block) {
	if _, exists := p.chunk.Functions[name]; exists {
		fail("function %q already declared", name)
	}
	number := len(p.chunk.FunctionLocations)
	p.chunk.FunctionLocations = append(p.chunk.FunctionLocations, 0)
	p.chunk.Functions[name] = number
	p.queue = append(p.queue, &pendingFn{name: name, params: params, body: body, number: number})
}

// scope maps local names declared directly in one block to their slot.
type scope struct {
	vars map[string]byte
}

// loopCtx is one entry of the loop stack (spec.md §4.3).
type loopCtx struct {
	continueTarget int
	breakPatches   []int
	breakPop       bool
}

// fcomp holds the compiler state for a single function body.
type fcomp struct {
	pcomp *pcomp
	chunk *Chunk

	envs      []*scope
	nextLocal int
	maxLocal  int

	loops        []*loopCtx
	pushedThisFn int
}

func (p *pcomp) compileFunctionBody(pending *pendingFn) {
	entry := len(p.chunk.Code)
	p.chunk.FunctionLocations[pending.number] = entry

	f := &fcomp{pcomp: p, chunk: p.chunk, envs: []*scope{{vars: map[string]byte{}}}}

	f.chunk.emit(FunctionEntry, pending.body.Line())
	localsCountOffset := len(f.chunk.Code)
	f.chunk.emitByte(0, pending.body.Line())

	// Arguments arrive left-to-right on the value stack, so the last
	// argument is on top. Binding params in reverse pops them off in that
	// same order, each AssignLocal landing the popped value in the slot
	// declareLocal just handed out for that param.
	for i := len(pending.params) - 1; i >= 0; i-- {
		slot := f.declareLocal(pending.params[i])
		f.chunk.emit(AssignLocal, pending.body.Line())
		f.chunk.emitByte(slot, pending.body.Line())
	}

	for _, stmt := range pending.body.Stmts {
		f.statement(stmt)
	}
	if pending.body.Tail != nil {
		f.expression(pending.body.Tail)
	} else {
		f.chunk.emit(PushNil, pending.body.Line())
	}
	f.chunk.emit(Return, pending.body.Line())

	if f.maxLocal > 255 {
		fail("function %q uses more than 255 local slots", pending.name)
	}
	f.chunk.Code[localsCountOffset] = byte(f.maxLocal)
}

func (f *fcomp) pushScope() { f.envs = append(f.envs, &scope{vars: map[string]byte{}}) }

// popScope discards the innermost scope. It does not reclaim its slots from
// nextLocal: slots are never reused within a function, keeping max_local a
// simple monotonic high-water mark as spec.md §4.3 describes.
func (f *fcomp) popScope() { f.envs = f.envs[:len(f.envs)-1] }

func (f *fcomp) declareLocal(name string) byte {
	if f.nextLocal > 255 {
		fail("too many local variables in function")
	}
	slot := byte(f.nextLocal)
	f.envs[len(f.envs)-1].vars[name] = slot
	f.nextLocal++
	if f.nextLocal > f.maxLocal {
		f.maxLocal = f.nextLocal
	}
	return slot
}

func (f *fcomp) resolveLocal(name string) (byte, bool) {
	for i := len(f.envs) - 1; i >= 0; i-- {
		if slot, ok := f.envs[i].vars[name]; ok {
			return slot, true
		}
	}
	return 0, false
}

func (f *fcomp) currentLoop() *loopCtx {
	if len(f.loops) == 0 {
		return nil
	}
	return f.loops[len(f.loops)-1]
}

// statement compiles one statement, whose value (if it has one as an
// expression-statement) is always discarded.
func (f *fcomp) statement(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.Let:
		f.letStmt(s)
	case *ast.Const:
		f.constStmt(s)
	case *ast.Print:
		f.expression(s.Expr)
		f.chunk.emit(Print, s.Line())
	case *ast.Fn:
		f.pcomp.enqueueFn(s.Name, s.Params, s.Body)
	case *ast.ExpressionStatement:
		f.expression(s.Expr)
		f.chunk.emit(Pop, s.Line())
	default:
		fail("unsupported statement type %T", stmt)
	}
}

func (f *fcomp) letStmt(s *ast.Let) {
	if s.Initializer != nil {
		f.expression(s.Initializer)
	} else {
		f.chunk.emit(PushNil, s.Line())
	}
	slot := f.declareLocal(s.Name)
	f.chunk.emit(AssignLocal, s.Line())
	f.chunk.emitByte(slot, s.Line())
}

func (f *fcomp) constStmt(s *ast.Const) {
	f.expression(s.Initializer)
	slot := f.declareLocal(s.Name)
	f.chunk.emit(AssignLocal, s.Line())
	f.chunk.emitByte(slot, s.Line())
}
