package compiler_test

import (
	"testing"

	"github.com/mna/notlox/lang/compiler"
	"github.com/mna/notlox/lang/parser"
	"github.com/stretchr/testify/require"
)

func compile(t *testing.T, src string) *compiler.Chunk {
	t.Helper()
	prog, err := parser.Parse(src)
	require.NoError(t, err)
	chunk, err := compiler.Compile(prog)
	require.NoError(t, err)
	return chunk
}

func TestCompileRegistersFunctions(t *testing.T) {
	chunk := compile(t, `fn add(a, b) { return a + b; } fn main() { print add(1, 2); }`)
	require.Contains(t, chunk.Functions, "main")
	require.Contains(t, chunk.Functions, "add")
	for _, n := range chunk.Functions {
		require.GreaterOrEqual(t, n, 0)
		require.Less(t, n, len(chunk.FunctionLocations))
	}
}

func TestCompileMissingMainIsError(t *testing.T) {
	prog, err := parser.Parse(`fn notmain() { }`)
	require.NoError(t, err)
	_, err = compiler.Compile(prog)
	require.Error(t, err)
	var cerr *compiler.Error
	require.ErrorAs(t, err, &cerr)
}

func TestCompileNestedFnIsHoistedToChunkScope(t *testing.T) {
	// A nested fn declared inside main's block must still be registered as
	// its own chunk-scope function, callable from anywhere (spec.md §4.3's
	// deferred-function hoisting), not compiled inline where it appears.
	chunk := compile(t, `fn main() { fn helper() { return 1; } print helper(); }`)
	require.Contains(t, chunk.Functions, "helper")
	require.Len(t, chunk.FunctionLocations, len(chunk.Functions))
}

func TestJumpOperandEncodingIsRelativeToOperandEnd(t *testing.T) {
	// for a forward jump the 2-byte operand encodes target-(operandOffset+2),
	// little-endian, signed (spec.md §4.3).
	chunk := compile(t, `fn main() { if true { print 1; } print 2; }`)

	found := false
	for i := 0; i < len(chunk.Code); i++ {
		op := compiler.Opcode(chunk.Code[i])
		if op == compiler.JumpIfFalse {
			lo, hi := chunk.Code[i+1], chunk.Code[i+2]
			offset := int16(uint16(lo) | uint16(hi)<<8)
			operandEnd := i + 3
			target := operandEnd + int(offset)
			require.GreaterOrEqual(t, target, 0)
			require.LessOrEqual(t, target, len(chunk.Code))
			found = true
			break
		}
	}
	require.True(t, found, "expected a JumpIfFalse instruction in compiled if")
}

func TestCompileConstantPoolOverflow(t *testing.T) {
	// 257 distinct string literals overflow the 256-entry constant pool
	// addressed by a 1-byte index.
	src := "fn main() { "
	for i := 0; i < 257; i++ {
		src += "print \"s" + itoa(i) + "\"; "
	}
	src += "}"

	prog, err := parser.Parse(src)
	require.NoError(t, err)
	_, err = compiler.Compile(prog)
	require.Error(t, err)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
