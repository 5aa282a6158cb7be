package compiler

import "github.com/mna/notlox/lang/heap"

// Chunk is the single artifact that crosses the compile/run boundary: a
// flat bytecode stream plus the tables needed to execute it.
type Chunk struct {
	Code  []byte // instructions and inline operands
	Lines []int  // parallel to Code; source line of the byte at that offset

	Constants []heap.Value // indexed constant pool, at most 256 entries

	// FunctionLocations maps a function_number (as referenced by Call) to the
	// code offset of that function's FunctionEntry instruction.
	FunctionLocations []int
	// Functions maps a declared function name to its function_number.
	Functions map[string]int

	// Globals holds top-level let/const bindings, populated at compile time
	// and mutated at runtime by AssignGlobal.
	Globals map[string]heap.Value
}

// NewChunk returns an empty Chunk ready for emission.
func NewChunk() *Chunk {
	return &Chunk{
		Functions: make(map[string]int),
		Globals:   make(map[string]heap.Value),
	}
}

// addConstant interns v into the constant pool, returning its index. Equal
// values are not deduplicated: the compiler only calls this for values it
// knows are needed fresh (literal constants, name strings), and deduping
// would require heap.Value to be comparable, which RefID aside it is not in
// general (strings/numbers are, but keeping this simple avoids a second
// lookup table).
func (c *Chunk) addConstant(v heap.Value) (byte, error) {
	if len(c.Constants) >= 256 {
		return 0, &Error{Msg: "constant table overflow: more than 256 constants in one chunk"}
	}
	idx := len(c.Constants)
	c.Constants = append(c.Constants, v)
	return byte(idx), nil
}

func (c *Chunk) emit(op Opcode, line int) int {
	pos := len(c.Code)
	c.Code = append(c.Code, byte(op))
	c.Lines = append(c.Lines, line)
	return pos
}

func (c *Chunk) emitByte(b byte, line int) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
}

// emitJump emits op followed by a placeholder 2-byte operand, returning the
// offset of the first operand byte so the caller can patch it later with
// patchJump.
func (c *Chunk) emitJump(op Opcode, line int) int {
	c.emit(op, line)
	operand := len(c.Code)
	c.emitByte(0, line)
	c.emitByte(0, line)
	return operand
}

// patchJump sets the jump operand at operandOffset so that the jump lands
// at the current end of the code, per spec.md §4.3's "target -
// operand_end_offset" encoding.
func (c *Chunk) patchJump(operandOffset int) {
	target := len(c.Code)
	offset := int16(target - (operandOffset + 2))
	c.Code[operandOffset] = byte(uint16(offset))
	c.Code[operandOffset+1] = byte(uint16(offset) >> 8)
}
