package vm_test

import (
	"strings"
	"testing"

	"github.com/mna/notlox/lang/vm"
	"github.com/stretchr/testify/require"
)

func runAndCapture(t *testing.T, src string) string {
	t.Helper()
	var out strings.Builder
	m := vm.New()
	m.Stdout = &out
	_, err := m.Interpret(src)
	require.NoError(t, err)
	return out.String()
}

func TestArithmeticPrecedence(t *testing.T) {
	require.Equal(t, "7\n", runAndCapture(t, `fn main(){ print 1+2*3; }`))
}

func TestArrayPushAndLen(t *testing.T) {
	out := runAndCapture(t, `fn main(){ let a=[1,2,3]; a:push(4); print a:len(); print a[3]; }`)
	require.Equal(t, "4\n4\n", out)
}

func TestStringConcatAndLen(t *testing.T) {
	out := runAndCapture(t, `fn main(){ let s = "ab" + "cd"; print s; print s:len(); }`)
	require.Equal(t, "abcd\n4\n", out)
}

func TestMapIterationSum(t *testing.T) {
	out := runAndCapture(t, `fn main(){ let m = #{a:1, b:2}; m["c"]=3; let t=0; for k,v in m { t += v; } print t; }`)
	require.Equal(t, "6\n", out)
}

func TestForRangeBreak(t *testing.T) {
	out := runAndCapture(t, `fn main(){ let n=0; for i in 0..5 { if i==3 { break; } n += 1; } print n; }`)
	require.Equal(t, "3\n", out)
}

func TestRecursiveFibonacci(t *testing.T) {
	out := runAndCapture(t, `fn f(n){ if n<2 { return n; } return f(n-1)+f(n-2); } fn main(){ print f(10); }`)
	require.Equal(t, "55\n", out)
}

func TestShortCircuitAnd(t *testing.T) {
	out := runAndCapture(t, `fn sideEffect() { print "evaluated"; true }
fn main() { if false && sideEffect() { } print "done"; }`)
	require.Equal(t, "done\n", out)
}

func TestShortCircuitOr(t *testing.T) {
	out := runAndCapture(t, `fn sideEffect() { print "evaluated"; false }
fn main() { if true || sideEffect() { } print "done"; }`)
	require.Equal(t, "done\n", out)
}

func TestWhileLoop(t *testing.T) {
	out := runAndCapture(t, `fn main(){ let i = 0; while i < 3 { print i; i += 1; } }`)
	require.Equal(t, "0\n1\n2\n", out)
}

func TestArraySortAndRemoveInsert(t *testing.T) {
	out := runAndCapture(t, `fn main(){
  let a = [3, 1, 2];
  a:sort();
  print a[0]; print a[1]; print a[2];
  a:insert(1, 9);
  print a[1];
  a:remove(0);
  print a[0];
}`)
	require.Equal(t, "1\n2\n3\n9\n9\n", out)
}

func TestToStringOnArray(t *testing.T) {
	// ReferenceId values always display as the bare RefId(i) form (spec.md
	// §4.5's string-display table), regardless of what they address.
	out := runAndCapture(t, `fn main(){ let a = [1, 2]; print a:to_string(); }`)
	require.Equal(t, "RefId(0)\n", out)
}

func TestGlobalLetAndConst(t *testing.T) {
	out := runAndCapture(t, `let base = 10; const rate = 2; fn main(){ print base * rate; }`)
	require.Equal(t, "20\n", out)
}

func TestCompoundAssignmentOnIndex(t *testing.T) {
	out := runAndCapture(t, `fn main(){ let a = [1, 2]; a[0] += 5; print a[0]; }`)
	require.Equal(t, "6\n", out)
}

func TestCompilerErrorOnUndefinedMain(t *testing.T) {
	m := vm.New()
	_, err := m.Interpret(`fn notmain() { }`)
	require.Error(t, err)
}

func TestCompilerErrorOnUnboundVariable(t *testing.T) {
	m := vm.New()
	_, err := m.Interpret(`fn main(){ print missing; }`)
	require.Error(t, err)
}
