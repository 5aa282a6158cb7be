package vm

import "github.com/mna/notlox/lang/heap"

// displayValue returns v's canonical string form (spec.md §4.5's
// string-display table and §6's to_string): every variant, ReferenceId
// included, uses its own `String()` form unconditionally — a RefID always
// prints as `RefId(i)`, regardless of what it addresses on the heap. §8's
// to_string round-trip law is conditional ("for any Value whose display
// form re-parses as a literal"); it simply does not apply to a RefID, whose
// display form never re-parses, so it is not violated by this.
func (m *Machine) displayValue(v heap.Value) string {
	return v.String()
}
