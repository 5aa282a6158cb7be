package parser_test

import (
	"testing"

	"github.com/mna/notlox/lang/ast"
	"github.com/mna/notlox/lang/parser"
	"github.com/stretchr/testify/require"
)

func TestParseLetAndPrint(t *testing.T) {
	prog, err := parser.Parse(`let x = 1 + 2; print x;`)
	require.NoError(t, err)
	require.Len(t, prog.Stmts, 2)

	let, ok := prog.Stmts[0].(*ast.Let)
	require.True(t, ok)
	require.Equal(t, "x", let.Name)

	bin, ok := let.Initializer.(*ast.Binary)
	require.True(t, ok)
	require.Equal(t, ast.Add, bin.Op)

	_, ok = prog.Stmts[1].(*ast.Print)
	require.True(t, ok)
}

func TestParseFnDeclaration(t *testing.T) {
	prog, err := parser.Parse(`fn add(a, b) { a + b }`)
	require.NoError(t, err)
	require.Len(t, prog.Stmts, 1)

	fn, ok := prog.Stmts[0].(*ast.Fn)
	require.True(t, ok)
	require.Equal(t, "add", fn.Name)
	require.Equal(t, []string{"a", "b"}, fn.Params)
	require.NotNil(t, fn.Body.Tail)
	require.Empty(t, fn.Body.Stmts)
}

func TestParseBlockTailExpression(t *testing.T) {
	prog, err := parser.Parse(`fn f() { let x = 1; x + 1 }`)
	require.NoError(t, err)
	fn := prog.Stmts[0].(*ast.Fn)
	require.Len(t, fn.Body.Stmts, 1)
	require.NotNil(t, fn.Body.Tail)
}

func TestParseBlockLikeStatementWithoutSemicolon(t *testing.T) {
	prog, err := parser.Parse(`fn f() { if true { 1 } let y = 2; y }`)
	require.NoError(t, err)
	fn := prog.Stmts[0].(*ast.Fn)
	require.Len(t, fn.Body.Stmts, 2)
	_, ok := fn.Body.Stmts[0].(*ast.ExpressionStatement)
	require.True(t, ok)
	require.NotNil(t, fn.Body.Tail)
}

func TestParseIfElseChain(t *testing.T) {
	prog, err := parser.Parse(`fn f() { if true { 1 } else if false { 2 } else { 3 } }`)
	require.NoError(t, err)
	fn := prog.Stmts[0].(*ast.Fn)
	ifExpr, ok := fn.Body.Tail.(*ast.If)
	require.True(t, ok)
	require.NotNil(t, ifExpr.Else)
	elseIf, ok := ifExpr.Else.(*ast.If)
	require.True(t, ok)
	require.NotNil(t, elseIf.Else)
}

func TestParseForLoop(t *testing.T) {
	prog, err := parser.Parse(`fn f() { for i in 0..10 { print i; } }`)
	require.NoError(t, err)
	fn := prog.Stmts[0].(*ast.Fn)
	forExpr, ok := fn.Body.Tail.(*ast.For)
	require.True(t, ok)
	require.Equal(t, "i", forExpr.Var)
	require.Equal(t, "", forExpr.Var2)
	_, ok = forExpr.Iterable.(*ast.Range)
	require.True(t, ok)
}

func TestParseForLoopTwoVars(t *testing.T) {
	prog, err := parser.Parse(`fn f() { for k, v in m { print k; } }`)
	require.NoError(t, err)
	fn := prog.Stmts[0].(*ast.Fn)
	forExpr, ok := fn.Body.Tail.(*ast.For)
	require.True(t, ok)
	require.Equal(t, "k", forExpr.Var)
	require.Equal(t, "v", forExpr.Var2)
}

func TestParseAssignmentAndCompoundAssignment(t *testing.T) {
	prog, err := parser.Parse(`fn f() { let x = 1; x = 2; x += 3; }`)
	require.NoError(t, err)
	fn := prog.Stmts[0].(*ast.Fn)
	require.Len(t, fn.Body.Stmts, 3)

	es1 := fn.Body.Stmts[1].(*ast.ExpressionStatement)
	assign, ok := es1.Expr.(*ast.Assignment)
	require.True(t, ok)
	_, ok = assign.LValue.(*ast.Variable)
	require.True(t, ok)

	es2 := fn.Body.Stmts[2].(*ast.ExpressionStatement)
	compound, ok := es2.Expr.(*ast.CompoundAssignment)
	require.True(t, ok)
	require.Equal(t, ast.AddAssign, compound.Op)
}

func TestParseIndexAndDotDesugarToIndex(t *testing.T) {
	prog, err := parser.Parse(`fn f() { a[0]; a.name; }`)
	require.NoError(t, err)
	fn := prog.Stmts[0].(*ast.Fn)
	require.Len(t, fn.Body.Stmts, 2)

	idx1 := fn.Body.Stmts[0].(*ast.ExpressionStatement).Expr.(*ast.Index)
	_, ok := idx1.Key.(*ast.Literal)
	require.True(t, ok)

	idx2 := fn.Body.Stmts[1].(*ast.ExpressionStatement).Expr.(*ast.Index)
	lit, ok := idx2.Key.(*ast.Literal)
	require.True(t, ok)
	require.Equal(t, ast.StringLiteral, lit.Kind)
	require.Equal(t, "name", lit.Str)
}

func TestParseBuiltinCall(t *testing.T) {
	prog, err := parser.Parse(`fn f() { a:len(); }`)
	require.NoError(t, err)
	fn := prog.Stmts[0].(*ast.Fn)
	call := fn.Body.Stmts[0].(*ast.ExpressionStatement).Expr.(*ast.BuiltinCall)
	require.Equal(t, "len", call.Name)
}

func TestParseArrayAndMapLiterals(t *testing.T) {
	prog, err := parser.Parse(`let a = [1, 2, 3]; let m = #{x: 1, y: 2};`)
	require.NoError(t, err)

	arr := prog.Stmts[0].(*ast.Let).Initializer.(*ast.Array)
	require.Len(t, arr.Elems, 3)

	m := prog.Stmts[1].(*ast.Let).Initializer.(*ast.Map)
	require.Len(t, m.Entries, 2)
}

func TestParsePrecedence(t *testing.T) {
	prog, err := parser.Parse(`let x = 1 + 2 * 3;`)
	require.NoError(t, err)
	bin := prog.Stmts[0].(*ast.Let).Initializer.(*ast.Binary)
	require.Equal(t, ast.Add, bin.Op)
	rhs, ok := bin.Right.(*ast.Binary)
	require.True(t, ok)
	require.Equal(t, ast.Mul, rhs.Op)
}

func TestParseStringEscapes(t *testing.T) {
	prog, err := parser.Parse(`let s = "a\nb";`)
	require.NoError(t, err)
	lit := prog.Stmts[0].(*ast.Let).Initializer.(*ast.Literal)
	require.Equal(t, "a\nb", lit.Str)
}

func TestParseUnterminatedBlockIsError(t *testing.T) {
	_, err := parser.Parse(`fn f() { 1 `)
	require.Error(t, err)
}

func TestParseMissingSemicolonIsError(t *testing.T) {
	_, err := parser.Parse(`let x = 1`)
	require.Error(t, err)
}
