// Package analysis implements a fixed-point dataflow engine over JVM method
// bodies. The engine owns the frames; the semantics of values come from an
// Interpreter, which computes the values produced by each instruction and
// joins values where control flow meets.
package analysis

import (
	"github.com/BarrensZeppelin/jvmtype/bytecode"
	"github.com/BarrensZeppelin/jvmtype/desc"
)

// Value is the constraint on abstract values. The zero value of V means that
// an operation produced no value.
type Value interface {
	comparable
	// Size returns the number of slots the value occupies: 2 for long and
	// double values, 1 for everything else.
	Size() int
}

// Interpreter supplies the transfer functions of an analysis.
type Interpreter[V Value] interface {
	// NewValue returns a value of the given type. The zero Type denotes an
	// uninitialized value. For the void type it returns the zero V.
	NewValue(t desc.Type) V

	// NewOperation handles instructions without arguments: constants, jsr,
	// getstatic and new.
	NewOperation(insn bytecode.Insn) (V, error)

	// CopyOperation handles loads, stores and the dup/swap family.
	CopyOperation(insn bytecode.Insn, v V) (V, error)

	UnaryOperation(insn bytecode.Insn, v V) (V, error)
	BinaryOperation(insn bytecode.Insn, v1, v2 V) (V, error)
	TernaryOperation(insn bytecode.Insn, v1, v2, v3 V) (V, error)
	NaryOperation(insn bytecode.Insn, values []V) (V, error)

	// ReturnOperation is called for the return instructions with the
	// returned value and the value of the method's declared return type.
	ReturnOperation(insn bytecode.Insn, v, expected V) error

	// Merge joins two values that meet at a control flow join point.
	// Returning v1 signals that nothing changed.
	Merge(v1, v2 V) V
}
