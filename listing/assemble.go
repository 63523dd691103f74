// Package listing assembles methods from a textual instruction syntax and
// reads YAML files of such method listings.
//
// The syntax has one instruction per line, written with its JVM mnemonic and
// operands. A line ending in ':' defines a label, '#' starts a comment:
//
//	  iload 0
//	  ifeq zero
//	  ldc "nonzero"
//	  areturn
//	zero:
//	  aconst_null  # no string
//	  areturn
package listing

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/BarrensZeppelin/jvmtype/bytecode"
	"github.com/BarrensZeppelin/jvmtype/desc"
)

var (
	ErrUnknownOpcode  = errors.New("unknown opcode")
	ErrOperand        = errors.New("bad operand")
	ErrUndefinedLabel = errors.New("undefined label")
	ErrDuplicateLabel = errors.New("duplicate label")
)

// SyntaxError reports the line (1-based) an assembly error occurred on.
type SyntaxError struct {
	Line int
	Err  error
}

func (e *SyntaxError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

func (e *SyntaxError) Unwrap() error { return e.Err }

type assembler struct {
	labels  map[string]*bytecode.Label
	defined map[string]bool
	// Line of the first use of each label.
	used map[string]int
}

func (a *assembler) label(name string, line int) *bytecode.Label {
	l, ok := a.labels[name]
	if !ok {
		l = &bytecode.Label{Name: name}
		a.labels[name] = l
		a.used[name] = line
	}
	return l
}

// Assemble translates text into an instruction list.
func Assemble(text string) ([]bytecode.Insn, error) {
	insns, _, err := assemble(text)
	return insns, err
}

// assemble also returns the labels by name.
func assemble(text string) ([]bytecode.Insn, map[string]*bytecode.Label, error) {
	a := &assembler{
		labels:  make(map[string]*bytecode.Label),
		defined: make(map[string]bool),
		used:    make(map[string]int),
	}

	var insns []bytecode.Insn
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(stripComment(line))
		if line == "" {
			continue
		}

		if name, ok := strings.CutSuffix(line, ":"); ok && !strings.ContainsAny(name, " \t") {
			if a.defined[name] {
				return nil, nil, &SyntaxError{i + 1, fmt.Errorf("%w: %s", ErrDuplicateLabel, name)}
			}
			a.defined[name] = true
			insns = append(insns, a.label(name, i+1))
			continue
		}

		insn, err := a.instruction(line, i+1)
		if err != nil {
			return nil, nil, &SyntaxError{i + 1, err}
		}
		insns = append(insns, insn)
	}

	for name, line := range a.used {
		if !a.defined[name] {
			return nil, nil, &SyntaxError{line, fmt.Errorf("%w: %s", ErrUndefinedLabel, name)}
		}
	}
	return insns, a.labels, nil
}

// stripComment removes a '#' comment that is not inside a string literal.
func stripComment(line string) string {
	quoted, escaped := false, false
	for i, c := range line {
		switch {
		case escaped:
			escaped = false
		case c == '\\' && quoted:
			escaped = true
		case c == '"':
			quoted = !quoted
		case c == '#' && !quoted:
			return line[:i]
		}
	}
	return line
}

// normalize maps the short forms of the JVM instruction set to the general
// forms, returning the implied local variable for loads and stores.
func normalize(op bytecode.Opcode) (bytecode.Opcode, int) {
	switch {
	case op >= 0x1a && op <= 0x2d:
		n := int(op - 0x1a)
		return bytecode.ILOAD + bytecode.Opcode(n/4), n % 4
	case op >= 0x3b && op <= 0x4e:
		n := int(op - 0x3b)
		return bytecode.ISTORE + bytecode.Opcode(n/4), n % 4
	case op == 0x13 || op == 0x14:
		return bytecode.LDC, -1
	case op == 0xc8:
		return bytecode.GOTO, -1
	case op == 0xc9:
		return bytecode.JSR, -1
	}
	return op, -1
}

var arrayTags = map[string]int{
	"boolean": bytecode.T_BOOLEAN,
	"char":    bytecode.T_CHAR,
	"float":   bytecode.T_FLOAT,
	"double":  bytecode.T_DOUBLE,
	"byte":    bytecode.T_BYTE,
	"short":   bytecode.T_SHORT,
	"int":     bytecode.T_INT,
	"long":    bytecode.T_LONG,
}

func (a *assembler) instruction(line string, lineNo int) (bytecode.Insn, error) {
	mnemonic, rest := line, ""
	if i := strings.IndexAny(line, " \t"); i >= 0 {
		mnemonic, rest = line[:i], strings.TrimSpace(line[i:])
	}
	args := strings.Fields(rest)

	op, ok := bytecode.Lookup(strings.ToLower(mnemonic))
	if !ok || op == 0xc4 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOpcode, mnemonic)
	}
	op, implied := normalize(op)
	if implied >= 0 {
		if len(args) != 0 {
			return nil, fmt.Errorf("%w: %s takes no operands", ErrOperand, mnemonic)
		}
		return &bytecode.VarInsn{Op: op, Var: implied}, nil
	}

	want := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("%w: %v takes %d operands, got %d", ErrOperand, op, n, len(args))
		}
		return nil
	}

	switch {
	case op == bytecode.BIPUSH, op == bytecode.SIPUSH:
		if err := want(1); err != nil {
			return nil, err
		}
		bits := 8
		if op == bytecode.SIPUSH {
			bits = 16
		}
		v, err := strconv.ParseInt(args[0], 0, bits)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOperand, err)
		}
		return &bytecode.IntInsn{Op: op, Operand: int(v)}, nil

	case op == bytecode.NEWARRAY:
		if err := want(1); err != nil {
			return nil, err
		}
		tag, ok := arrayTags[strings.TrimPrefix(strings.ToLower(args[0]), "t_")]
		if !ok {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return nil, fmt.Errorf("%w: array type %q", ErrOperand, args[0])
			}
			tag = n
		}
		return &bytecode.IntInsn{Op: op, Operand: tag}, nil

	case op == bytecode.LDC:
		c, err := constant(rest)
		if err != nil {
			return nil, err
		}
		return &bytecode.LdcInsn{Cst: c}, nil

	case op >= bytecode.ILOAD && op <= bytecode.ALOAD,
		op >= bytecode.ISTORE && op <= bytecode.ASTORE,
		op == bytecode.RET:
		if err := want(1); err != nil {
			return nil, err
		}
		v, err := local(args[0])
		if err != nil {
			return nil, err
		}
		return &bytecode.VarInsn{Op: op, Var: v}, nil

	case op == bytecode.IINC:
		if err := want(2); err != nil {
			return nil, err
		}
		v, err := local(args[0])
		if err != nil {
			return nil, err
		}
		incr, err := strconv.ParseInt(args[1], 0, 16)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOperand, err)
		}
		return &bytecode.IincInsn{Var: v, Incr: int(incr)}, nil

	case op >= bytecode.IFEQ && op <= bytecode.JSR,
		op == bytecode.IFNULL, op == bytecode.IFNONNULL:
		if err := want(1); err != nil {
			return nil, err
		}
		return &bytecode.JumpInsn{Op: op, Target: a.label(args[0], lineNo)}, nil

	case op == bytecode.TABLESWITCH:
		if len(args) < 3 {
			return nil, fmt.Errorf("%w: tableswitch needs min, default and at least one label", ErrOperand)
		}
		low, err := strconv.ParseInt(args[0], 0, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOperand, err)
		}
		insn := &bytecode.TableSwitchInsn{
			Min:  int32(low),
			Dflt: a.label(args[1], lineNo),
		}
		for _, l := range args[2:] {
			insn.Labels = append(insn.Labels, a.label(l, lineNo))
		}
		high := low + int64(len(insn.Labels)) - 1
		if high > math.MaxInt32 {
			return nil, fmt.Errorf("%w: tableswitch range overflows", ErrOperand)
		}
		insn.Max = int32(high)
		return insn, nil

	case op == bytecode.LOOKUPSWITCH:
		if len(args) < 1 {
			return nil, fmt.Errorf("%w: lookupswitch needs a default label", ErrOperand)
		}
		insn := &bytecode.LookupSwitchInsn{Dflt: a.label(args[0], lineNo)}
		for _, arg := range args[1:] {
			k, l, ok := strings.Cut(arg, ":")
			if !ok {
				return nil, fmt.Errorf("%w: lookupswitch case %q is not key:label", ErrOperand, arg)
			}
			key, err := strconv.ParseInt(k, 0, 32)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrOperand, err)
			}
			insn.Keys = append(insn.Keys, int32(key))
			insn.Labels = append(insn.Labels, a.label(l, lineNo))
		}
		return insn, nil

	case op >= bytecode.GETSTATIC && op <= bytecode.PUTFIELD:
		if err := want(3); err != nil {
			return nil, err
		}
		return &bytecode.FieldInsn{Op: op, Owner: args[0], Name: args[1], Desc: args[2]}, nil

	case op >= bytecode.INVOKEVIRTUAL && op <= bytecode.INVOKEINTERFACE:
		itf := op == bytecode.INVOKEINTERFACE
		if len(args) == 4 && args[3] == "itf" {
			itf, args = true, args[:3]
		}
		if err := want(3); err != nil {
			return nil, err
		}
		return &bytecode.MethodInsn{Op: op, Owner: args[0], Name: args[1], Desc: args[2], Itf: itf}, nil

	case op == bytecode.INVOKEDYNAMIC:
		if err := want(2); err != nil {
			return nil, err
		}
		return &bytecode.InvokeDynamicInsn{Name: args[0], Desc: args[1]}, nil

	case op == bytecode.NEW, op == bytecode.ANEWARRAY, op == bytecode.CHECKCAST, op == bytecode.INSTANCEOF:
		if err := want(1); err != nil {
			return nil, err
		}
		return &bytecode.TypeInsn{Op: op, Desc: args[0]}, nil

	case op == bytecode.MULTIANEWARRAY:
		if err := want(2); err != nil {
			return nil, err
		}
		dims, err := strconv.Atoi(args[1])
		if err != nil || dims < 1 || dims > 255 {
			return nil, fmt.Errorf("%w: dimensions %q", ErrOperand, args[1])
		}
		return &bytecode.MultiANewArrayInsn{Desc: args[0], Dims: dims}, nil
	}

	if err := want(0); err != nil {
		return nil, err
	}
	return bytecode.Op(op), nil
}

func local(s string) (int, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: local %q", ErrOperand, s)
	}
	return int(v), nil
}

// constant parses the operand of ldc.
func constant(s string) (bytecode.Constant, error) {
	if strings.HasPrefix(s, `"`) {
		v, err := strconv.Unquote(s)
		if err != nil {
			return nil, fmt.Errorf("%w: string %s: %v", ErrOperand, s, err)
		}
		return bytecode.StringConst{Value: v}, nil
	}

	args := strings.Fields(s)
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: ldc needs a constant", ErrOperand)
	}

	switch args[0] {
	case "class":
		if len(args) != 2 {
			return nil, fmt.Errorf("%w: class takes a type", ErrOperand)
		}
		t, err := classType(args[1])
		if err != nil {
			return nil, err
		}
		return bytecode.TypeConst{Type: t}, nil

	case "methodtype":
		if len(args) != 2 {
			return nil, fmt.Errorf("%w: methodtype takes a descriptor", ErrOperand)
		}
		t, err := desc.Parse(args[1])
		if err != nil || t.Sort() != desc.Method {
			return nil, fmt.Errorf("%w: method descriptor %q", ErrOperand, args[1])
		}
		return bytecode.TypeConst{Type: t}, nil

	case "handle":
		if len(args) < 5 || len(args) > 6 {
			return nil, fmt.Errorf("%w: handle takes kind owner name desc [itf]", ErrOperand)
		}
		kind, ok := bytecode.HandleKind(args[1])
		if !ok {
			return nil, fmt.Errorf("%w: handle kind %q", ErrOperand, args[1])
		}
		return bytecode.Handle{Kind: kind, Owner: args[2], Name: args[3], Desc: args[4],
			Itf: len(args) == 6 && args[5] == "itf"}, nil

	case "dynamic":
		if len(args) != 3 {
			return nil, fmt.Errorf("%w: dynamic takes name desc", ErrOperand)
		}
		return bytecode.DynamicConst{Name: args[1], Desc: args[2]}, nil
	}

	if len(args) != 1 {
		return nil, fmt.Errorf("%w: constant %q", ErrOperand, s)
	}
	return number(s)
}

// classType parses the operand of a class literal: a descriptor, or an
// internal class name.
func classType(s string) (desc.Type, error) {
	if len(s) == 1 || strings.HasPrefix(s, "[") || (strings.HasPrefix(s, "L") && strings.HasSuffix(s, ";")) {
		t, err := desc.Parse(s)
		if err != nil {
			return desc.Type{}, fmt.Errorf("%w: %v", ErrOperand, err)
		}
		return t, nil
	}
	return desc.ObjectType(s), nil
}

func number(s string) (bytecode.Constant, error) {
	lower := strings.ToLower(s)
	isHex := strings.HasPrefix(strings.TrimLeft(lower, "+-"), "0x")
	switch {
	case strings.HasSuffix(lower, "l"):
		v, err := strconv.ParseInt(s[:len(s)-1], 0, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOperand, err)
		}
		return bytecode.LongConst{Value: v}, nil

	case !isHex && strings.HasSuffix(lower, "f"):
		v, err := strconv.ParseFloat(s[:len(s)-1], 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOperand, err)
		}
		return bytecode.FloatConst{Value: float32(v)}, nil

	case !isHex && (strings.HasSuffix(lower, "d") || strings.ContainsAny(lower, ".e") ||
		lower == "nan" || strings.HasSuffix(lower, "inf")):
		v, err := strconv.ParseFloat(strings.TrimSuffix(lower, "d"), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOperand, err)
		}
		return bytecode.DoubleConst{Value: v}, nil
	}

	v, err := strconv.ParseInt(s, 0, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOperand, err)
	}
	return bytecode.IntConst{Value: int32(v)}, nil
}
