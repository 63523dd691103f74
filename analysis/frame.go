package analysis

import (
	"fmt"
	"log"
	"strings"

	"github.com/BarrensZeppelin/jvmtype/bytecode"
	"github.com/BarrensZeppelin/jvmtype/desc"
)

// Frame is the state of the local variables and the operand stack at a
// program point. Long and double locals take two slots, the second of which
// holds an uninitialized value; on the stack they take a single entry.
type Frame[V Value] struct {
	locals []V
	stack  []V

	// maxStack bounds the number of stack entries. 0 means unbounded.
	maxStack int

	// returnValue is the value of the method's return type, or the zero V
	// for void methods.
	returnValue V
}

func NewFrame[V Value](numLocals, maxStack int) *Frame[V] {
	return &Frame[V]{
		locals:   make([]V, numLocals),
		stack:    make([]V, 0, maxStack),
		maxStack: maxStack,
	}
}

func (f *Frame[V]) Copy() *Frame[V] {
	return &Frame[V]{
		locals:      append([]V(nil), f.locals...),
		stack:       append(make([]V, 0, cap(f.stack)), f.stack...),
		maxStack:    f.maxStack,
		returnValue: f.returnValue,
	}
}

func (f *Frame[V]) NumLocals() int { return len(f.locals) }

func (f *Frame[V]) Locals() []V { return append([]V(nil), f.locals...) }

// Stack returns the operand stack, bottom first.
func (f *Frame[V]) Stack() []V { return append([]V(nil), f.stack...) }

func (f *Frame[V]) StackSize() int { return len(f.stack) }

func (f *Frame[V]) Local(i int) (V, error) {
	if i < 0 || i >= len(f.locals) {
		var zero V
		return zero, fmt.Errorf("%w: %d (max %d)", ErrLocalOutOfRange, i, len(f.locals))
	}
	return f.locals[i], nil
}

func (f *Frame[V]) SetLocal(i int, v V) error {
	if i < 0 || i >= len(f.locals) {
		return fmt.Errorf("%w: %d (max %d)", ErrLocalOutOfRange, i, len(f.locals))
	}
	f.locals[i] = v
	return nil
}

func (f *Frame[V]) Push(v V) error {
	if f.maxStack > 0 && len(f.stack) >= f.maxStack {
		return ErrStackOverflow
	}
	f.stack = append(f.stack, v)
	return nil
}

func (f *Frame[V]) Pop() (V, error) {
	if len(f.stack) == 0 {
		var zero V
		return zero, ErrStackUnderflow
	}
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v, nil
}

// Top returns the value on top of the stack.
func (f *Frame[V]) Top() (V, error) {
	if len(f.stack) == 0 {
		var zero V
		return zero, ErrStackUnderflow
	}
	return f.stack[len(f.stack)-1], nil
}

func (f *Frame[V]) ClearStack() { f.stack = f.stack[:0] }

func (f *Frame[V]) SetReturn(v V) { f.returnValue = v }

// Merge joins other into f. It reports whether f changed.
func (f *Frame[V]) Merge(other *Frame[V], interp Interpreter[V]) (bool, error) {
	if len(f.stack) != len(other.stack) {
		return false, fmt.Errorf("%w: %d != %d", ErrIncompatibleStackHeights,
			len(f.stack), len(other.stack))
	}
	if len(f.locals) != len(other.locals) {
		log.Panicf("Frames have different numbers of locals: %d != %d",
			len(f.locals), len(other.locals))
	}

	changed := false
	for i, v := range f.locals {
		if m := interp.Merge(v, other.locals[i]); m != v {
			f.locals[i] = m
			changed = true
		}
	}
	for i, v := range f.stack {
		if m := interp.Merge(v, other.stack[i]); m != v {
			f.stack[i] = m
			changed = true
		}
	}
	return changed, nil
}

func (f *Frame[V]) String() string {
	var sb strings.Builder
	for _, v := range f.locals {
		fmt.Fprint(&sb, v)
	}
	sb.WriteString(" ")
	for _, v := range f.stack {
		fmt.Fprint(&sb, v)
	}
	return sb.String()
}

// Execute simulates the effect of insn on the frame. Pseudo instructions
// leave the frame unchanged.
func (f *Frame[V]) Execute(insn bytecode.Insn, interp Interpreter[V]) error {
	e := &executor[V]{f: f, interp: interp, insn: insn}
	e.execute()
	return e.err
}

// executor carries the first error of an instruction's execution. Once an
// error is recorded every further step is a no-op.
type executor[V Value] struct {
	f      *Frame[V]
	interp Interpreter[V]
	insn   bytecode.Insn
	err    error
}

func (e *executor[V]) fail(err error) {
	if e.err == nil {
		e.err = NewError(e.insn, err)
	}
}

func (e *executor[V]) ok() bool { return e.err == nil }

func (e *executor[V]) check(v V, err error) V {
	if err != nil {
		if e.err == nil {
			e.err = err
		}
		var zero V
		return zero
	}
	return v
}

func (e *executor[V]) pop() (v V) {
	if e.ok() {
		var err error
		if v, err = e.f.Pop(); err != nil {
			e.fail(err)
		}
	}
	return
}

// popSized pops a value and records an error unless it has the given size.
func (e *executor[V]) popSized(size int) (v V) {
	if v = e.pop(); e.ok() && v.Size() != size {
		e.fail(fmt.Errorf("%w %v: expected value of size %d", ErrIllegalStackOp, e.insn, size))
	}
	return
}

// top returns the value on top of the stack without popping it and records
// an error unless it has the given size.
func (e *executor[V]) top(size int) (v V) {
	if !e.ok() {
		return
	}
	var err error
	if v, err = e.f.Top(); err != nil {
		e.fail(err)
	} else if v.Size() != size {
		e.fail(fmt.Errorf("%w %v: expected value of size %d", ErrIllegalStackOp, e.insn, size))
	}
	return
}

func (e *executor[V]) push(v V) {
	if !e.ok() {
		return
	}
	var zero V
	if v == zero {
		e.fail(fmt.Errorf("%w %v: no value produced", ErrIllegalStackOp, e.insn))
		return
	}
	if err := e.f.Push(v); err != nil {
		e.fail(err)
	}
}

func (e *executor[V]) local(i int) (v V) {
	if e.ok() {
		var err error
		if v, err = e.f.Local(i); err != nil {
			e.fail(err)
		}
	}
	return
}

func (e *executor[V]) setLocal(i int, v V) {
	if e.ok() {
		if err := e.f.SetLocal(i, v); err != nil {
			e.fail(err)
		}
	}
}

func (e *executor[V]) copy(v V) (r V) {
	if e.ok() {
		r = e.check(e.interp.CopyOperation(e.insn, v))
	}
	return
}

func (e *executor[V]) unary(v V) (r V) {
	if e.ok() {
		r = e.check(e.interp.UnaryOperation(e.insn, v))
	}
	return
}

func (e *executor[V]) binary() (r V) {
	v2 := e.pop()
	v1 := e.pop()
	if e.ok() {
		r = e.check(e.interp.BinaryOperation(e.insn, v1, v2))
	}
	return
}

func (e *executor[V]) execute() {
	insn := e.insn
	switch op := insn.Opcode(); {
	case op == bytecode.Pseudo,
		op == bytecode.NOP,
		op == bytecode.GOTO,
		op == bytecode.RET:

	case op >= bytecode.ACONST_NULL && op <= bytecode.LDC,
		op == bytecode.JSR,
		op == bytecode.GETSTATIC,
		op == bytecode.NEW:
		e.push(e.check(e.interp.NewOperation(insn)))

	case op >= bytecode.ILOAD && op <= bytecode.ALOAD:
		e.push(e.copy(e.local(varIndex(insn))))

	case op >= bytecode.ISTORE && op <= bytecode.ASTORE:
		e.store(varIndex(insn))

	case op >= bytecode.IALOAD && op <= bytecode.SALOAD:
		e.push(e.binary())

	case op >= bytecode.IASTORE && op <= bytecode.SASTORE:
		v3, v2, v1 := e.pop(), e.pop(), e.pop()
		if e.ok() {
			e.check(e.interp.TernaryOperation(insn, v1, v2, v3))
		}

	case op >= bytecode.POP && op <= bytecode.SWAP:
		e.stackOp(op)

	case op >= bytecode.IADD && op <= bytecode.DREM,
		op >= bytecode.ISHL && op <= bytecode.LXOR,
		op >= bytecode.LCMP && op <= bytecode.DCMPG:
		e.push(e.binary())

	case op >= bytecode.INEG && op <= bytecode.DNEG,
		op >= bytecode.I2L && op <= bytecode.I2S,
		op == bytecode.GETFIELD,
		op >= bytecode.NEWARRAY && op <= bytecode.ARRAYLENGTH,
		op == bytecode.CHECKCAST,
		op == bytecode.INSTANCEOF:
		e.push(e.unary(e.pop()))

	case op == bytecode.IINC:
		i := insn.(*bytecode.IincInsn).Var
		e.setLocal(i, e.unary(e.local(i)))

	case op >= bytecode.IFEQ && op <= bytecode.IFLE,
		op == bytecode.TABLESWITCH,
		op == bytecode.LOOKUPSWITCH,
		op == bytecode.PUTSTATIC,
		op == bytecode.ATHROW,
		op == bytecode.MONITORENTER,
		op == bytecode.MONITOREXIT,
		op == bytecode.IFNULL,
		op == bytecode.IFNONNULL:
		e.unary(e.pop())

	case op >= bytecode.IF_ICMPEQ && op <= bytecode.IF_ACMPNE,
		op == bytecode.PUTFIELD:
		e.binary()

	case op >= bytecode.IRETURN && op <= bytecode.ARETURN:
		v := e.pop()
		e.unary(v)
		if e.ok() {
			if err := e.interp.ReturnOperation(insn, v, e.f.returnValue); err != nil {
				e.err = err
			}
		}

	case op == bytecode.RETURN:
		var zero V
		if e.f.returnValue != zero {
			e.fail(ErrIncompatibleReturn)
		}

	case op >= bytecode.INVOKEVIRTUAL && op <= bytecode.INVOKEDYNAMIC:
		e.invoke(op)

	case op == bytecode.MULTIANEWARRAY:
		values := make([]V, insn.(*bytecode.MultiANewArrayInsn).Dims)
		for i := len(values) - 1; i >= 0; i-- {
			values[i] = e.pop()
		}
		if e.ok() {
			e.push(e.check(e.interp.NaryOperation(insn, values)))
		}

	default:
		log.Panicf("Unhandled opcode: %v %v", op, insn)
	}
}

func varIndex(insn bytecode.Insn) int {
	vi, ok := insn.(*bytecode.VarInsn)
	if !ok {
		log.Panicf("Expected *bytecode.VarInsn for %v, got %T", insn.Opcode(), insn)
	}
	return vi.Var
}

func (e *executor[V]) store(i int) {
	v := e.copy(e.pop())
	e.setLocal(i, v)
	if !e.ok() {
		return
	}

	empty := e.interp.NewValue(desc.Type{})
	if v.Size() == 2 {
		e.setLocal(i+1, empty)
	}
	if i > 0 {
		// Overwriting the second half of a wide value invalidates it.
		if prev := e.local(i - 1); e.ok() && prev.Size() == 2 {
			e.setLocal(i-1, empty)
		}
	}
}

func (e *executor[V]) stackOp(op bytecode.Opcode) {
	push := func(vs ...V) {
		for _, v := range vs {
			e.push(v)
		}
	}
	illegal := func() {
		e.fail(fmt.Errorf("%w %v", ErrIllegalStackOp, op))
	}

	switch op {
	case bytecode.POP:
		e.popSized(1)

	case bytecode.POP2:
		if v1 := e.pop(); e.ok() && v1.Size() == 1 {
			e.popSized(1)
		}

	case bytecode.DUP:
		push(e.copy(e.top(1)))

	case bytecode.DUP_X1:
		v1 := e.popSized(1)
		v2 := e.popSized(1)
		push(e.copy(v1), v2, v1)

	case bytecode.DUP_X2:
		v1 := e.popSized(1)
		v2 := e.pop()
		if !e.ok() {
			return
		}
		if v2.Size() == 2 {
			push(e.copy(v1), v2, v1)
			return
		}
		v3 := e.popSized(1)
		push(e.copy(v1), v3, v2, v1)

	case bytecode.DUP2:
		v1 := e.pop()
		if !e.ok() {
			return
		}
		if v1.Size() == 2 {
			push(v1, e.copy(v1))
			return
		}
		v2 := e.popSized(1)
		push(v2, v1, e.copy(v2), e.copy(v1))

	case bytecode.DUP2_X1:
		v1 := e.pop()
		if !e.ok() {
			return
		}
		if v1.Size() == 2 {
			v2 := e.popSized(1)
			push(e.copy(v1), v2, v1)
			return
		}
		v2 := e.popSized(1)
		v3 := e.popSized(1)
		push(e.copy(v2), e.copy(v1), v3, v2, v1)

	case bytecode.DUP2_X2:
		v1 := e.pop()
		if !e.ok() {
			return
		}
		if v1.Size() == 2 {
			v2 := e.pop()
			if !e.ok() {
				return
			}
			if v2.Size() == 2 {
				push(e.copy(v1), v2, v1)
				return
			}
			v3 := e.popSized(1)
			push(e.copy(v1), v3, v2, v1)
			return
		}
		v2 := e.popSized(1)
		v3 := e.pop()
		if !e.ok() {
			return
		}
		if v3.Size() == 2 {
			push(e.copy(v2), e.copy(v1), v3, v2, v1)
			return
		}
		v4 := e.popSized(1)
		push(e.copy(v2), e.copy(v1), v4, v3, v2, v1)

	case bytecode.SWAP:
		v2 := e.popSized(1)
		v1 := e.popSized(1)
		push(e.copy(v2), e.copy(v1))

	default:
		illegal()
	}
}

func (e *executor[V]) invoke(op bytecode.Opcode) {
	var descriptor string
	switch insn := e.insn.(type) {
	case *bytecode.MethodInsn:
		descriptor = insn.Desc
	case *bytecode.InvokeDynamicInsn:
		descriptor = insn.Desc
	default:
		log.Panicf("Unhandled invoke node: %T %v", insn, insn)
	}

	mt, err := desc.Parse(descriptor)
	if err == nil && mt.Sort() != desc.Method {
		err = fmt.Errorf("%w: %q is not a method descriptor", desc.ErrMalformed, descriptor)
	}
	if err != nil {
		e.fail(err)
		return
	}

	n := len(mt.ArgumentTypes())
	if op != bytecode.INVOKESTATIC && op != bytecode.INVOKEDYNAMIC {
		n++ // receiver
	}

	values := make([]V, n)
	for i := n - 1; i >= 0; i-- {
		values[i] = e.pop()
	}
	if !e.ok() {
		return
	}

	r := e.check(e.interp.NaryOperation(e.insn, values))
	if mt.ReturnType().Sort() != desc.Void {
		e.push(r)
	}
}
