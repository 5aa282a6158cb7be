package compiler

import (
	"github.com/mna/notlox/lang/ast"
	"github.com/mna/notlox/lang/heap"
)

// expression compiles e, leaving exactly one value on the stack.
func (f *fcomp) expression(e ast.Expr) {
	switch n := e.(type) {
	case *ast.Literal:
		f.literal(n)
	case *ast.Unary:
		f.unary(n)
	case *ast.Binary:
		f.binary(n)
	case *ast.Grouping:
		f.expression(n.Inner)
	case *ast.Variable:
		f.variableRead(n.Name, n.Line())
	case *ast.Block:
		f.block(n)
	case *ast.Call:
		f.call(n)
	case *ast.BuiltinCall:
		f.builtinCall(n)
	case *ast.If:
		f.ifExpr(n)
	case *ast.While:
		f.whileExpr(n)
	case *ast.For:
		f.forExpr(n)
	case *ast.Loop:
		f.loopExpr(n)
	case *ast.Assignment:
		f.assignment(n)
	case *ast.CompoundAssignment:
		f.compoundAssignment(n)
	case *ast.Index:
		f.index(n)
	case *ast.Array:
		f.arrayLit(n)
	case *ast.Map:
		f.mapLit(n)
	case *ast.Range:
		f.rangeExpr(n)
	case *ast.Return:
		f.returnExpr(n)
	case *ast.Break:
		f.breakExpr(n)
	case *ast.Continue:
		f.continueExpr(n)
	default:
		fail("unsupported expression type %T", e)
	}
}

func (f *fcomp) literal(n *ast.Literal) {
	switch n.Kind {
	case ast.TrueLiteral:
		f.chunk.emit(PushTrue, n.Line())
	case ast.FalseLiteral:
		f.chunk.emit(PushFalse, n.Line())
	case ast.NilLiteral:
		f.chunk.emit(PushNil, n.Line())
	default:
		f.pushConstant(literalValue(n), n.Line())
	}
}

func (f *fcomp) pushConstant(v heap.Value, line int) {
	idx, err := f.chunk.addConstant(v)
	if err != nil {
		panic(err)
	}
	f.chunk.emit(Constant, line)
	f.chunk.emitByte(idx, line)
}

func (f *fcomp) unary(n *ast.Unary) {
	f.expression(n.Right)
	switch n.Op {
	case ast.Negate:
		f.chunk.emit(Negate, n.Line())
	case ast.Not:
		f.chunk.emit(Not, n.Line())
	}
}

// binary emits RHS then LHS then the opcode, per spec.md §4.3's
// "emission order of binary operands" rule: the VM's pop yields LHS first.
func (f *fcomp) binary(n *ast.Binary) {
	switch n.Op {
	case ast.And:
		f.shortCircuit(n, JumpIfFalse)
		return
	case ast.Or:
		f.shortCircuit(n, JumpIfTrue)
		return
	}

	f.expression(n.Right)
	f.expression(n.Left)
	line := n.Line()
	switch n.Op {
	case ast.Add:
		f.chunk.emit(Add, line)
	case ast.Sub:
		f.chunk.emit(Subtract, line)
	case ast.Mul:
		f.chunk.emit(Multiply, line)
	case ast.Div:
		f.chunk.emit(Divide, line)
	case ast.Rem:
		f.chunk.emit(Remainder, line)
	case ast.Less:
		f.chunk.emit(TestLess, line)
	case ast.LessEqual:
		f.chunk.emit(TestLessOrEqual, line)
	case ast.Greater:
		f.chunk.emit(TestGreater, line)
	case ast.GreaterEqual:
		f.chunk.emit(TestGreaterOrEqual, line)
	case ast.Equal:
		f.chunk.emit(TestEqual, line)
	case ast.NotEqual:
		f.chunk.emit(TestNotEqual, line)
	default:
		fail("unsupported binary operator")
	}
}

// shortCircuit compiles `a && b` / `a || b`: emit LHS, Dup, the conditional
// jump over Pop+RHS, so that evaluating b is skipped when it cannot change
// the result.
func (f *fcomp) shortCircuit(n *ast.Binary, jumpOp Opcode) {
	line := n.Line()
	f.expression(n.Left)
	f.chunk.emit(Dup, line)
	patch := f.chunk.emitJump(jumpOp, line)
	f.chunk.emit(Pop, line)
	f.expression(n.Right)
	f.chunk.patchJump(patch)
}

func (f *fcomp) variableRead(name string, line int) {
	if slot, ok := f.resolveLocal(name); ok {
		f.chunk.emit(LoadLocal, line)
		f.chunk.emitByte(slot, line)
		return
	}
	if _, ok := f.chunk.Globals[name]; ok {
		f.pushConstant(heap.String(name), line)
		f.chunk.emit(LoadGlobal, line)
		return
	}
	fail("unbound variable %q", name)
}

func (f *fcomp) block(n *ast.Block) {
	f.pushScope()
	for _, stmt := range n.Stmts {
		f.statement(stmt)
	}
	if n.Tail != nil {
		f.expression(n.Tail)
	} else {
		f.chunk.emit(PushNil, n.Line())
	}
	f.popScope()
}

func (f *fcomp) call(n *ast.Call) {
	callee, ok := n.Callee.(*ast.Variable)
	if !ok {
		fail("call target must be a function name")
	}
	number, ok := f.chunk.Functions[callee.Name]
	if !ok {
		fail("unknown function %q", callee.Name)
	}
	for _, arg := range n.Args {
		f.expression(arg)
	}
	f.chunk.emit(Call, n.Line())
	f.chunk.emitByte(byte(number), n.Line())
}

func (f *fcomp) builtinCall(n *ast.BuiltinCall) {
	for _, arg := range n.Args {
		f.expression(arg)
	}
	f.expression(n.Receiver)
	f.pushConstant(heap.String(n.Name), n.Line())
	f.chunk.emit(BuiltinCall, n.Line())
}

func (f *fcomp) ifExpr(n *ast.If) {
	line := n.Line()
	f.expression(n.Cond)
	toElse := f.chunk.emitJump(JumpIfFalse, line)
	f.block(n.Then)
	toEnd := f.chunk.emitJump(Jump, line)
	f.chunk.patchJump(toElse)
	if n.Else != nil {
		f.expression(n.Else)
	} else {
		f.chunk.emit(PushNil, line)
	}
	f.chunk.patchJump(toEnd)
}

func (f *fcomp) whileExpr(n *ast.While) {
	line := n.Line()
	start := len(f.chunk.Code)
	f.expression(n.Cond)
	toEnd := f.chunk.emitJump(JumpIfFalse, line)

	f.loops = append(f.loops, &loopCtx{continueTarget: start, breakPop: false})
	f.block(n.Block)
	f.chunk.emit(Pop, line)
	f.chunk.emit(Jump, line)
	f.emitJumpOperand(start, line)
	loop := f.loops[len(f.loops)-1]
	f.loops = f.loops[:len(f.loops)-1]

	f.chunk.patchJump(toEnd)
	for _, patch := range loop.breakPatches {
		f.chunk.patchJump(patch)
	}
	f.chunk.emit(PushNil, line)
}

func (f *fcomp) loopExpr(n *ast.Loop) {
	line := n.Line()
	start := len(f.chunk.Code)

	f.loops = append(f.loops, &loopCtx{continueTarget: start, breakPop: false})
	f.block(n.Block)
	f.chunk.emit(Pop, line)
	f.chunk.emit(Jump, line)
	f.emitJumpOperand(start, line)
	loop := f.loops[len(f.loops)-1]
	f.loops = f.loops[:len(f.loops)-1]

	for _, patch := range loop.breakPatches {
		f.chunk.patchJump(patch)
	}
	f.chunk.emit(PushNil, line)
}

func (f *fcomp) forExpr(n *ast.For) {
	line := n.Line()
	f.expression(n.Iterable)
	f.pushScope()
	iterSlot := f.declareLocal(" iter") // unspellable name: never shadows a user identifier
	f.chunk.emit(AssignLocal, line)
	f.chunk.emitByte(iterSlot, line)

	// The iterable is loaded onto the value stack exactly once, here. Every
	// ForLoop after the first instead consumes the iterator-context value
	// the previous ForLoop left behind (Range/MapForContext), which survives
	// across iterations underneath the block's own result until the
	// iteration-bottom Pop removes that result and the backward Jump lands
	// squarely back on ForLoop itself.
	f.chunk.emit(LoadLocal, line)
	f.chunk.emitByte(iterSlot, line)

	start := len(f.chunk.Code)
	varSlot := f.declareLocal(n.Var)
	f.chunk.emit(ForLoop, line)
	f.chunk.emitByte(varSlot, line)
	exitPatch := len(f.chunk.Code)
	f.chunk.emitByte(0, line)
	f.chunk.emitByte(0, line)

	if n.Var2 != "" {
		var2Slot := f.declareLocal(n.Var2)
		f.chunk.emit(LoadLocal, line)
		f.chunk.emitByte(iterSlot, line)
		f.chunk.emit(LoadLocal, line)
		f.chunk.emitByte(varSlot, line)
		f.chunk.emit(Index, line)
		f.chunk.emit(AssignLocal, line)
		f.chunk.emitByte(var2Slot, line)
	}

	f.pushedThisFn++
	f.loops = append(f.loops, &loopCtx{continueTarget: start, breakPop: true})
	f.block(n.Block)
	f.chunk.emit(Pop, line)
	f.chunk.emit(Jump, line)
	f.emitJumpOperand(start, line)
	loop := f.loops[len(f.loops)-1]
	f.loops = f.loops[:len(f.loops)-1]
	f.pushedThisFn--

	f.patchJumpAt(exitPatch)
	for _, patch := range loop.breakPatches {
		f.chunk.patchJump(patch)
	}
	f.popScope()
	f.chunk.emit(PushNil, line)
}

// emitJumpOperand emits a 2-byte signed offset, relative to the byte
// following the operand, that targets the already-known address target
// (used for unconditional backward jumps where there is no forward patch).
func (f *fcomp) emitJumpOperand(target int, line int) {
	operand := len(f.chunk.Code)
	f.chunk.emitByte(0, line)
	f.chunk.emitByte(0, line)
	offset := int16(target - (operand + 2))
	f.chunk.Code[operand] = byte(uint16(offset))
	f.chunk.Code[operand+1] = byte(uint16(offset) >> 8)
}

func (f *fcomp) patchJumpAt(operandOffset int) { f.chunk.patchJump(operandOffset) }

// assignment emits the store for an lvalue target, then pushes Nil: an
// assignment expression always yields Nil.
func (f *fcomp) assignment(n *ast.Assignment) {
	line := n.Line()
	switch lv := n.LValue.(type) {
	case *ast.Variable:
		f.expression(n.Value)
		if slot, ok := f.resolveLocal(lv.Name); ok {
			f.chunk.emit(AssignLocal, line)
			f.chunk.emitByte(slot, line)
		} else if _, ok := f.chunk.Globals[lv.Name]; ok {
			f.pushConstant(heap.String(lv.Name), line)
			f.chunk.emit(AssignGlobal, line)
		} else {
			fail("unbound variable %q", lv.Name)
		}
	case *ast.Index:
		f.expression(lv.Receiver)
		f.expression(lv.Key)
		f.expression(n.Value)
		f.chunk.emit(IndexAssign, line)
	default:
		fail("invalid assignment target")
	}
	f.chunk.emit(PushNil, line)
}

func (f *fcomp) compoundAssignment(n *ast.CompoundAssignment) {
	lv, ok := n.Target.(ast.LValue)
	if !ok {
		fail("compound assignment target must be an lvalue")
	}
	var op ast.BinaryOp
	switch n.Op {
	case ast.AddAssign:
		op = ast.Add
	case ast.SubAssign:
		op = ast.Sub
	case ast.MulAssign:
		op = ast.Mul
	case ast.DivAssign:
		op = ast.Div
	default:
		fail("unsupported compound operator")
	}
	desugared := ast.NewAssignment(lv, ast.NewBinary(op, lv, n.Value, n.Line()), n.Line())
	f.assignment(desugared)
}

// index pushes the receiver then the key, so that Index's documented pop
// order (pop key, pop receiver) sees the key on top.
func (f *fcomp) index(n *ast.Index) {
	f.expression(n.Receiver)
	f.expression(n.Key)
	f.chunk.emit(Index, n.Line())
}

func (f *fcomp) arrayLit(n *ast.Array) {
	f.chunk.emit(NewArray, n.Line())
	for _, elem := range n.Elems {
		f.expression(elem)
		f.chunk.emit(PushArray, n.Line())
	}
}

func (f *fcomp) mapLit(n *ast.Map) {
	f.chunk.emit(NewMap, n.Line())
	for _, entry := range n.Entries {
		f.expression(entry.Key)
		f.expression(entry.Value)
		f.chunk.emit(PushMap, n.Line())
	}
}

// rangeExpr pushes Lo then Hi, so that MakeRange's documented pop order
// (RHS i.e. Hi first, then LHS i.e. Lo) sees Hi on top.
func (f *fcomp) rangeExpr(n *ast.Range) {
	f.expression(n.Lo)
	f.expression(n.Hi)
	f.chunk.emit(MakeRange, n.Line())
}

func (f *fcomp) returnExpr(n *ast.Return) {
	if f.pushedThisFn > 0 {
		f.chunk.emit(PopMulti, n.Line())
		f.chunk.emitByte(byte(f.pushedThisFn), n.Line())
	}
	if n.Value != nil {
		f.expression(n.Value)
	} else {
		f.chunk.emit(PushNil, n.Line())
	}
	f.chunk.emit(Return, n.Line())
}

func (f *fcomp) breakExpr(n *ast.Break) {
	loop := f.currentLoop()
	if loop == nil {
		fail("break outside of a loop")
	}
	if loop.breakPop {
		f.chunk.emit(Pop, n.Line())
	}
	patch := f.chunk.emitJump(Jump, n.Line())
	loop.breakPatches = append(loop.breakPatches, patch)
}

func (f *fcomp) continueExpr(n *ast.Continue) {
	loop := f.currentLoop()
	if loop == nil {
		fail("continue outside of a loop")
	}
	f.chunk.emit(Jump, n.Line())
	f.emitJumpOperand(loop.continueTarget, n.Line())
}
