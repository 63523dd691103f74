package jvmtype

import (
	"fmt"
	"io"

	"github.com/BarrensZeppelin/jvmtype/analysis"
	"github.com/BarrensZeppelin/jvmtype/bytecode"
	"github.com/BarrensZeppelin/jvmtype/internal/slices"
)

// Result holds the frames computed for one method. Frames[i] is the frame
// before instruction i, or nil if the instruction is unreachable.
type Result struct {
	Owner  string
	Method *bytecode.Method
	Frames []*analysis.Frame[*Value]
}

func (r *Result) Reachable(i int) bool {
	return i >= 0 && i < len(r.Frames) && r.Frames[i] != nil
}

// StackAt returns the operand stack before instruction i, bottom first.
// It returns nil for unreachable instructions.
func (r *Result) StackAt(i int) []*Value {
	if !r.Reachable(i) {
		return nil
	}
	return r.Frames[i].Stack()
}

// LocalsAt returns the local variables before instruction i.
func (r *Result) LocalsAt(i int) []*Value {
	if !r.Reachable(i) {
		return nil
	}
	return r.Frames[i].Locals()
}

// Format writes one line per instruction with the frame before it. With
// descriptors set, references are printed with their full descriptor
// instead of "R".
func (r *Result) Format(w io.Writer, descriptors bool) error {
	str := (*Value).String
	if descriptors {
		str = (*Value).Descriptor
	}
	join := func(vs []*Value) string {
		return slices.Join(vs, str, " ")
	}

	if _, err := fmt.Fprintf(w, "%s.%s%s\n", r.Owner, r.Method.Name, r.Method.Desc); err != nil {
		return err
	}
	for i, insn := range r.Method.Instructions {
		frame := "unreachable"
		if r.Reachable(i) {
			frame = fmt.Sprintf("[%s] [%s]", join(r.LocalsAt(i)), join(r.StackAt(i)))
		}
		if _, err := fmt.Fprintf(w, "%4d %-40s %v\n", i, frame, insn); err != nil {
			return err
		}
	}
	return nil
}
