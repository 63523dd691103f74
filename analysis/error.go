package analysis

import (
	"errors"
	"fmt"

	"github.com/BarrensZeppelin/jvmtype/bytecode"
)

var (
	ErrStackUnderflow           = errors.New("cannot pop operand off an empty stack")
	ErrStackOverflow            = errors.New("insufficient maximum stack size")
	ErrIncompatibleStackHeights = errors.New("incompatible stack heights")
	ErrIllegalStackOp           = errors.New("illegal use of stack instruction")
	ErrFallOffEnd               = errors.New("execution can fall off the end of the code")
	ErrIncompatibleReturn       = errors.New("incompatible return type")
	ErrLocalOutOfRange          = errors.New("local variable index out of range")
)

// Error is the failure of an analysis at a specific instruction.
// Index is -1 when the failing instruction has not been located in its
// method yet.
type Error struct {
	Insn  bytecode.Insn
	Index int
	Err   error
}

// NewError returns an Error for insn wrapping err.
func NewError(insn bytecode.Insn, err error) *Error {
	return &Error{Insn: insn, Index: -1, Err: err}
}

// Errorf returns an Error for insn wrapping sentinel with a formatted
// detail message.
func Errorf(insn bytecode.Insn, sentinel error, format string, args ...any) *Error {
	return NewError(insn, fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...)))
}

func (e *Error) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("error at instruction %d (%v): %v", e.Index, e.Insn, e.Err)
	}
	return fmt.Sprintf("error at %v: %v", e.Insn, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// located attaches index to err if it is an *Error that has no index yet.
func located(err error, index int) error {
	var aerr *Error
	if errors.As(err, &aerr) && aerr.Index < 0 {
		aerr.Index = index
	}
	return err
}
