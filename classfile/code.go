package classfile

import (
	"fmt"
	"sort"

	"github.com/BarrensZeppelin/jvmtype/bytecode"
)

type decoder struct {
	r    *reader
	p    *pool
	code []byte

	// Instructions by their offset in code.
	insns  map[int]bytecode.Insn
	labels map[int]*bytecode.Label
}

func (d *decoder) label(off int) *bytecode.Label {
	l, ok := d.labels[off]
	if !ok {
		l = &bytecode.Label{Name: fmt.Sprintf("L%d", off)}
		d.labels[off] = l
	}
	return l
}

func readCode(r *reader, p *pool, m *bytecode.Method) error {
	m.MaxStack = int(r.u2())
	m.MaxLocals = int(r.u2())
	code := r.bytes(int(r.u4()))
	if r.err != nil {
		return r.err
	}

	d := &decoder{
		r:      &reader{buf: code},
		p:      p,
		code:   code,
		insns:  make(map[int]bytecode.Insn),
		labels: make(map[int]*bytecode.Label),
	}
	for d.r.off < len(code) {
		off := d.r.off
		insn, err := d.decode()
		if d.r.err != nil {
			return fmt.Errorf("instruction at offset %d: %w", off, d.r.err)
		}
		if err != nil {
			return fmt.Errorf("instruction at offset %d: %w", off, err)
		}
		d.insns[off] = insn
	}

	for n := r.u2(); n > 0 && r.err == nil; n-- {
		tcb := bytecode.TryCatchBlock{
			Start:   d.label(int(r.u2())),
			End:     d.label(int(r.u2())),
			Handler: d.label(int(r.u2())),
		}
		if t := r.u2(); t != 0 {
			var err error
			if tcb.Type, err = p.class(t); err != nil {
				return fmt.Errorf("exception table: %w", err)
			}
		}
		m.TryCatch = append(m.TryCatch, tcb)
	}
	if skipAttributes(r) != nil {
		return r.err
	}

	offsets := make([]int, 0, len(d.insns))
	for off := range d.insns {
		offsets = append(offsets, off)
	}
	sort.Ints(offsets)

	for _, off := range offsets {
		if l, ok := d.labels[off]; ok {
			m.Instructions = append(m.Instructions, l)
		}
		m.Instructions = append(m.Instructions, d.insns[off])
	}
	if l, ok := d.labels[len(code)]; ok {
		m.Instructions = append(m.Instructions, l)
	}

	for off := range d.labels {
		if _, ok := d.insns[off]; !ok && off != len(code) {
			return fmt.Errorf("%w: %d is not an instruction boundary", ErrBadOffset, off)
		}
	}
	return nil
}

func (d *decoder) decode() (bytecode.Insn, error) {
	r := d.r
	start := r.off
	raw := int(r.u1())
	op := bytecode.Opcode(raw)

	switch {
	case raw <= 0x0f,
		raw >= 0x2e && raw <= 0x35,
		raw >= 0x4f && raw <= 0x83,
		raw >= 0x85 && raw <= 0x98,
		raw >= 0xac && raw <= 0xb1,
		raw >= 0xbe && raw <= 0xbf,
		raw >= 0xc2 && raw <= 0xc3:
		return bytecode.Op(op), nil

	case raw == 0x10:
		return &bytecode.IntInsn{Op: op, Operand: r.s1()}, nil
	case raw == 0x11:
		return &bytecode.IntInsn{Op: op, Operand: r.s2()}, nil
	case raw == 0xbc:
		return &bytecode.IntInsn{Op: op, Operand: int(r.u1())}, nil

	case raw == 0x12:
		return d.ldc(uint16(r.u1()))
	case raw == 0x13, raw == 0x14:
		return d.ldc(r.u2())

	case raw >= 0x15 && raw <= 0x19,
		raw >= 0x36 && raw <= 0x3a,
		raw == 0xa9:
		return &bytecode.VarInsn{Op: op, Var: int(r.u1())}, nil
	case raw >= 0x1a && raw <= 0x2d:
		n := raw - 0x1a
		return &bytecode.VarInsn{Op: bytecode.ILOAD + bytecode.Opcode(n/4), Var: n % 4}, nil
	case raw >= 0x3b && raw <= 0x4e:
		n := raw - 0x3b
		return &bytecode.VarInsn{Op: bytecode.ISTORE + bytecode.Opcode(n/4), Var: n % 4}, nil

	case raw == 0x84:
		v := int(r.u1())
		return &bytecode.IincInsn{Var: v, Incr: r.s1()}, nil

	case raw >= 0x99 && raw <= 0xa8,
		raw == 0xc6, raw == 0xc7:
		return &bytecode.JumpInsn{Op: op, Target: d.label(start + r.s2())}, nil
	case raw == 0xc8:
		return &bytecode.JumpInsn{Op: bytecode.GOTO, Target: d.label(start + int(r.s4()))}, nil
	case raw == 0xc9:
		return &bytecode.JumpInsn{Op: bytecode.JSR, Target: d.label(start + int(r.s4()))}, nil

	case raw == 0xaa:
		r.skip((4 - r.off%4) % 4)
		insn := &bytecode.TableSwitchInsn{Dflt: d.label(start + int(r.s4()))}
		insn.Min, insn.Max = r.s4(), r.s4()
		if insn.Max < insn.Min {
			return nil, fmt.Errorf("%w: tableswitch range %d..%d", ErrBadOffset, insn.Min, insn.Max)
		}
		for i := int64(insn.Min); i <= int64(insn.Max) && r.err == nil; i++ {
			insn.Labels = append(insn.Labels, d.label(start+int(r.s4())))
		}
		return insn, nil

	case raw == 0xab:
		r.skip((4 - r.off%4) % 4)
		insn := &bytecode.LookupSwitchInsn{Dflt: d.label(start + int(r.s4()))}
		for n := r.s4(); n > 0 && r.err == nil; n-- {
			insn.Keys = append(insn.Keys, r.s4())
			insn.Labels = append(insn.Labels, d.label(start+int(r.s4())))
		}
		return insn, nil

	case raw >= 0xb2 && raw <= 0xb5:
		owner, name, descriptor, _, err := d.p.member(r.u2(), tagFieldref)
		if err != nil {
			return nil, err
		}
		return &bytecode.FieldInsn{Op: op, Owner: owner, Name: name, Desc: descriptor}, nil

	case raw >= 0xb6 && raw <= 0xb9:
		owner, name, descriptor, itf, err := d.p.member(r.u2(), tagMethodref, tagInterfaceMethodref)
		if err != nil {
			return nil, err
		}
		if raw == 0xb9 {
			// count and a zero byte
			r.skip(2)
		}
		return &bytecode.MethodInsn{Op: op, Owner: owner, Name: name, Desc: descriptor, Itf: itf}, nil

	case raw == 0xba:
		e, err := d.p.get(r.u2(), tagInvokeDynamic)
		r.skip(2)
		if err != nil {
			return nil, err
		}
		name, descriptor, err := d.p.nameAndType(e.b)
		if err != nil {
			return nil, err
		}
		bsm, args, err := d.p.bootstrapMethod(e.a)
		if err != nil {
			return nil, err
		}
		return &bytecode.InvokeDynamicInsn{Name: name, Desc: descriptor, Bsm: bsm, BsmArgs: args}, nil

	case raw == 0xbb, raw == 0xbd, raw == 0xc0, raw == 0xc1:
		name, err := d.p.class(r.u2())
		if err != nil {
			return nil, err
		}
		return &bytecode.TypeInsn{Op: op, Desc: name}, nil

	case raw == 0xc4:
		wide := int(r.u1())
		v := int(r.u2())
		switch {
		case wide == 0x84:
			return &bytecode.IincInsn{Var: v, Incr: r.s2()}, nil
		case wide >= 0x15 && wide <= 0x19, wide >= 0x36 && wide <= 0x3a, wide == 0xa9:
			return &bytecode.VarInsn{Op: bytecode.Opcode(wide), Var: v}, nil
		}
		return nil, fmt.Errorf("%w: wide %#x", ErrBadOpcode, wide)

	case raw == 0xc5:
		name, err := d.p.class(r.u2())
		if err != nil {
			return nil, err
		}
		dims := r.u1()
		if dims == 0 && r.err == nil {
			return nil, fmt.Errorf("%w: multianewarray with 0 dimensions", ErrBadOpcode)
		}
		return &bytecode.MultiANewArrayInsn{Desc: name, Dims: int(dims)}, nil
	}

	return nil, fmt.Errorf("%w: %#x", ErrBadOpcode, raw)
}

func (d *decoder) ldc(i uint16) (bytecode.Insn, error) {
	c, err := d.p.loadable(i)
	if err != nil {
		return nil, err
	}
	return &bytecode.LdcInsn{Cst: c}, nil
}
