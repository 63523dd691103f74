package analysis

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/BarrensZeppelin/jvmtype/bytecode"
	"github.com/BarrensZeppelin/jvmtype/desc"
	"github.com/BarrensZeppelin/jvmtype/internal/worklist"
)

var ErrUnknownLabel = errors.New("label is not in the instruction list")

type Options struct {
	// Logger receives debug output about the fixed-point iteration.
	// Defaults to a no-op logger.
	Logger *zap.Logger
}

// Analyzer computes a frame for every instruction of a method by iterating
// an Interpreter's transfer functions to a fixed point.
type Analyzer[V Value] struct {
	interp Interpreter[V]
	logger *zap.Logger
}

func NewAnalyzer[V Value](interp Interpreter[V], opts Options) *Analyzer[V] {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer[V]{interp: interp, logger: logger}
}

type handler struct {
	index     int
	catchType desc.Type
}

type aContext[V Value] struct {
	*Analyzer[V]

	method *bytecode.Method
	insns  []bytecode.Insn
	labels map[*bytecode.Label]int

	// Exception handlers covering each instruction.
	handlers [][]handler
	// Indices of the instructions following a jsr. A ret may continue at
	// any of them.
	jsrReturns []int

	frames []*Frame[V]
	queue  worklist.Worklist
}

// Analyze returns the frame before each instruction of m, which is declared
// in the class with internal name owner. Frames of unreachable instructions
// are nil. Methods without code have no frames.
func (a *Analyzer[V]) Analyze(owner string, m *bytecode.Method) ([]*Frame[V], error) {
	if !m.HasCode() {
		return nil, nil
	}

	ctx := &aContext[V]{
		Analyzer: a,
		method:   m,
		insns:    m.Instructions,
		labels:   m.Index(),
		handlers: make([][]handler, len(m.Instructions)),
		frames:   make([]*Frame[V], len(m.Instructions)),
	}

	logger := a.logger.With(zap.String("method", owner+"."+m.Name+m.Desc))
	logger.Debug("analyzing", zap.Int("instructions", len(ctx.insns)))

	if err := ctx.init(); err != nil {
		return nil, err
	}

	entry, err := ctx.entryFrame(owner)
	if err != nil {
		return nil, err
	}
	if err := ctx.merge(0, entry); err != nil {
		return nil, err
	}

	steps := 0
	for !ctx.queue.Empty() {
		i := ctx.queue.Pop()
		steps++
		if err := ctx.step(i); err != nil {
			logger.Debug("analysis failed", zap.Int("index", i), zap.Error(err))
			return nil, located(err, i)
		}
	}

	unreachable := 0
	for _, f := range ctx.frames {
		if f == nil {
			unreachable++
		}
	}
	logger.Debug("fixed point reached",
		zap.Int("steps", steps),
		zap.Int("unreachable", unreachable))

	return ctx.frames, nil
}

func (ctx *aContext[V]) target(insn bytecode.Insn, l *bytecode.Label) (int, error) {
	i, ok := ctx.labels[l]
	if !ok {
		return 0, NewError(insn, fmt.Errorf("%w: %v", ErrUnknownLabel, l))
	}
	return i, nil
}

func (ctx *aContext[V]) init() error {
	for _, tcb := range ctx.method.TryCatch {
		var start, end, h int
		for _, p := range []struct {
			l *bytecode.Label
			i *int
		}{{tcb.Start, &start}, {tcb.End, &end}, {tcb.Handler, &h}} {
			i, ok := ctx.labels[p.l]
			if !ok {
				return fmt.Errorf("try/catch block: %w: %v", ErrUnknownLabel, p.l)
			}
			*p.i = i
		}

		catchType := desc.ThrowableType
		if tcb.Type != "" {
			catchType = desc.ObjectType(tcb.Type)
		}

		for i := start; i < end; i++ {
			ctx.handlers[i] = append(ctx.handlers[i], handler{h, catchType})
		}
	}

	for i, insn := range ctx.insns {
		if insn.Opcode() == bytecode.JSR {
			ctx.jsrReturns = append(ctx.jsrReturns, i+1)
		}
	}
	return nil
}

func (ctx *aContext[V]) entryFrame(owner string) (*Frame[V], error) {
	m := ctx.method
	mt, err := m.Type()
	if err != nil {
		return nil, err
	}

	f := NewFrame[V](m.MaxLocals, m.MaxStack)
	local := 0
	set := func(v V) error {
		if local >= m.MaxLocals {
			return fmt.Errorf("%w: parameters of %s%s need more than %d locals",
				ErrLocalOutOfRange, m.Name, m.Desc, m.MaxLocals)
		}
		f.locals[local] = v
		local++
		return nil
	}

	if !m.IsStatic() {
		if err := set(ctx.interp.NewValue(desc.ObjectType(owner))); err != nil {
			return nil, err
		}
	}
	for _, arg := range mt.ArgumentTypes() {
		if err := set(ctx.interp.NewValue(arg)); err != nil {
			return nil, err
		}
		if arg.Size() == 2 {
			if err := set(ctx.interp.NewValue(desc.Type{})); err != nil {
				return nil, err
			}
		}
	}
	for ; local < m.MaxLocals; local++ {
		f.locals[local] = ctx.interp.NewValue(desc.Type{})
	}

	f.SetReturn(ctx.interp.NewValue(mt.ReturnType()))
	return f, nil
}

// merge joins f into the frame before instruction i and queues i if that
// frame changed.
func (ctx *aContext[V]) merge(i int, f *Frame[V]) error {
	if i >= len(ctx.insns) {
		return ErrFallOffEnd
	}

	if old := ctx.frames[i]; old == nil {
		ctx.frames[i] = f.Copy()
	} else if changed, err := old.Merge(f, ctx.interp); err != nil {
		return err
	} else if !changed {
		return nil
	}

	ctx.queue.Push(i)
	return nil
}

func (ctx *aContext[V]) step(i int) error {
	insn := ctx.insns[i]
	before := ctx.frames[i]

	wrap := func(err error) error {
		var aerr *Error
		if err == nil || errors.As(err, &aerr) {
			return err
		}
		return NewError(insn, err)
	}

	if err := ctx.successors(i, insn, before); err != nil {
		return wrap(err)
	}

	for _, h := range ctx.handlers[i] {
		f := before.Copy()
		f.ClearStack()
		if err := f.Push(ctx.interp.NewValue(h.catchType)); err != nil {
			return wrap(err)
		}
		if err := ctx.merge(h.index, f); err != nil {
			return wrap(err)
		}
	}
	return nil
}

func (ctx *aContext[V]) successors(i int, insn bytecode.Insn, before *Frame[V]) error {
	op := insn.Opcode()
	if op == bytecode.Pseudo {
		return ctx.merge(i+1, before)
	}

	f := before.Copy()
	if err := f.Execute(insn, ctx.interp); err != nil {
		return err
	}

	switch insn := insn.(type) {
	case *bytecode.JumpInsn:
		if op.IsConditionalJump() {
			if err := ctx.merge(i+1, f); err != nil {
				return err
			}
		}
		j, err := ctx.target(insn, insn.Target)
		if err != nil {
			return err
		}
		return ctx.merge(j, f)

	case *bytecode.TableSwitchInsn:
		return ctx.mergeAll(insn, f, insn.Dflt, insn.Labels)

	case *bytecode.LookupSwitchInsn:
		return ctx.mergeAll(insn, f, insn.Dflt, insn.Labels)
	}

	switch {
	case op == bytecode.RET:
		for _, j := range ctx.jsrReturns {
			if err := ctx.merge(j, f); err != nil {
				return err
			}
		}
		return nil
	case op == bytecode.ATHROW, op.IsReturn():
		return nil
	default:
		return ctx.merge(i+1, f)
	}
}

func (ctx *aContext[V]) mergeAll(insn bytecode.Insn, f *Frame[V], dflt *bytecode.Label, labels []*bytecode.Label) error {
	for _, l := range append([]*bytecode.Label{dflt}, labels...) {
		j, err := ctx.target(insn, l)
		if err != nil {
			return err
		}
		if err := ctx.merge(j, f); err != nil {
			return err
		}
	}
	return nil
}
