package vm

import (
	"fmt"

	"github.com/mna/notlox/lang/compiler"
	"github.com/mna/notlox/lang/heap"
	"github.com/mna/notlox/lang/parser"
)

// Interpret scans, parses, compiles, and runs src, returning the program's
// result value or the first error from any stage of the pipeline.
func (m *Machine) Interpret(src string) (heap.Value, error) {
	prog, err := parser.Parse(src)
	if err != nil {
		return nil, err
	}
	chunk, err := compiler.Compile(prog)
	if err != nil {
		return nil, err
	}
	return m.Run(chunk)
}

// InterpretLine wraps line as `fn main() { line }` and interprets it, as the
// REPL does for each line read (spec.md §6).
func (m *Machine) InterpretLine(line string) error {
	_, err := m.Interpret(fmt.Sprintf("fn main() { %s }", line))
	return err
}
