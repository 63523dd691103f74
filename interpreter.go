package jvmtype

import (
	"errors"
	"log"
	"strings"

	"github.com/BarrensZeppelin/jvmtype/analysis"
	"github.com/BarrensZeppelin/jvmtype/bytecode"
	"github.com/BarrensZeppelin/jvmtype/desc"
)

var (
	ErrIllegalConstant  = errors.New("illegal ldc constant")
	ErrIllegalArrayLoad = errors.New("illegal aaload on non-array operand")
	ErrIllegalArrayTag  = errors.New("invalid newarray type tag")

	// ErrBadDescriptor is desc.ErrMalformed, so descriptors rejected by the
	// interpreter and by the analysis engine match the same sentinel.
	ErrBadDescriptor = desc.ErrMalformed
)

// Interpreter computes the type category of the values produced by each
// instruction. It is stateless and safe for concurrent use.
type Interpreter struct{}

var _ analysis.Interpreter[*Value] = Interpreter{}

func (Interpreter) NewValue(t desc.Type) *Value {
	switch t.Sort() {
	case desc.NoSort:
		return Uninitialized
	case desc.Void:
		return nil
	case desc.Boolean, desc.Char, desc.Byte, desc.Short, desc.Int:
		return Int
	case desc.Float:
		return Float
	case desc.Long:
		return Long
	case desc.Double:
		return Double
	case desc.Object, desc.Array:
		return NewReference(t)
	default:
		log.Panicf("Unhandled type: %v (%s)", t.Sort(), t.Descriptor())
		return nil
	}
}

func (in Interpreter) NewOperation(insn bytecode.Insn) (*Value, error) {
	switch insn.Opcode() {
	case bytecode.ACONST_NULL:
		return in.NewValue(desc.NullType), nil
	case bytecode.ICONST_M1, bytecode.ICONST_0, bytecode.ICONST_1, bytecode.ICONST_2,
		bytecode.ICONST_3, bytecode.ICONST_4, bytecode.ICONST_5,
		bytecode.BIPUSH, bytecode.SIPUSH:
		return Int, nil
	case bytecode.LCONST_0, bytecode.LCONST_1:
		return Long, nil
	case bytecode.FCONST_0, bytecode.FCONST_1, bytecode.FCONST_2:
		return Float, nil
	case bytecode.DCONST_0, bytecode.DCONST_1:
		return Double, nil
	case bytecode.LDC:
		return in.ldc(insn.(*bytecode.LdcInsn))
	case bytecode.JSR:
		return ReturnAddress, nil
	case bytecode.GETSTATIC:
		return in.field(insn)
	case bytecode.NEW:
		return in.NewValue(desc.ObjectType(insn.(*bytecode.TypeInsn).Desc)), nil
	default:
		log.Panicf("Unhandled instruction in NewOperation: %v", insn)
		return nil, nil
	}
}

func (in Interpreter) ldc(insn *bytecode.LdcInsn) (*Value, error) {
	switch c := insn.Cst.(type) {
	case bytecode.IntConst:
		return Int, nil
	case bytecode.FloatConst:
		return Float, nil
	case bytecode.LongConst:
		return Long, nil
	case bytecode.DoubleConst:
		return Double, nil
	case bytecode.StringConst:
		return in.NewValue(desc.StringType), nil
	case bytecode.TypeConst:
		switch c.Type.Sort() {
		case desc.Object, desc.Array:
			return in.NewValue(desc.ClassType), nil
		case desc.Method:
			return in.NewValue(desc.MethodTypeType), nil
		}
	case bytecode.Handle, *bytecode.Handle:
		return in.NewValue(desc.MethodHandleType), nil
	case bytecode.DynamicConst:
		return in.dynamic(insn, c.Desc)
	case *bytecode.DynamicConst:
		return in.dynamic(insn, c.Desc)
	}
	return nil, analysis.Errorf(insn, ErrIllegalConstant, "%v", insn.Cst)
}

func (in Interpreter) dynamic(insn bytecode.Insn, descriptor string) (*Value, error) {
	t, err := desc.Parse(descriptor)
	if err != nil {
		return nil, analysis.NewError(insn, err)
	}
	if s := t.Sort(); s == desc.Void || s == desc.Method {
		return nil, analysis.Errorf(insn, ErrIllegalConstant, "dynamic constant of type %s", descriptor)
	}
	return in.NewValue(t), nil
}

// field returns the value of the field accessed by a get instruction.
func (in Interpreter) field(insn bytecode.Insn) (*Value, error) {
	t, err := parseValueType(insn, insn.(*bytecode.FieldInsn).Desc)
	if err != nil {
		return nil, err
	}
	return in.NewValue(t), nil
}

// parseValueType parses a descriptor that must denote a value type.
func parseValueType(insn bytecode.Insn, descriptor string) (desc.Type, error) {
	t, err := desc.Parse(descriptor)
	if err != nil {
		return desc.Type{}, analysis.NewError(insn, err)
	}
	if s := t.Sort(); s == desc.Void || s == desc.Method {
		return desc.Type{}, analysis.Errorf(insn, ErrBadDescriptor, "%s is not a value type", descriptor)
	}
	return t, nil
}

func (Interpreter) CopyOperation(_ bytecode.Insn, v *Value) (*Value, error) {
	return v, nil
}

var newArrayTypes = map[int]desc.Type{
	bytecode.T_BOOLEAN: desc.MustParse("[Z"),
	bytecode.T_CHAR:    desc.MustParse("[C"),
	bytecode.T_BYTE:    desc.MustParse("[B"),
	bytecode.T_SHORT:   desc.MustParse("[S"),
	bytecode.T_INT:     desc.MustParse("[I"),
	bytecode.T_FLOAT:   desc.MustParse("[F"),
	bytecode.T_DOUBLE:  desc.MustParse("[D"),
	bytecode.T_LONG:    desc.MustParse("[J"),
}

func (in Interpreter) UnaryOperation(insn bytecode.Insn, v *Value) (*Value, error) {
	switch insn.Opcode() {
	case bytecode.INEG, bytecode.IINC, bytecode.L2I, bytecode.F2I, bytecode.D2I,
		bytecode.I2B, bytecode.I2C, bytecode.I2S:
		return Int, nil
	case bytecode.FNEG, bytecode.I2F, bytecode.L2F, bytecode.D2F:
		return Float, nil
	case bytecode.LNEG, bytecode.I2L, bytecode.F2L, bytecode.D2L:
		return Long, nil
	case bytecode.DNEG, bytecode.I2D, bytecode.L2D, bytecode.F2D:
		return Double, nil

	case bytecode.IFEQ, bytecode.IFNE, bytecode.IFLT, bytecode.IFGE, bytecode.IFGT, bytecode.IFLE,
		bytecode.TABLESWITCH, bytecode.LOOKUPSWITCH,
		bytecode.IRETURN, bytecode.LRETURN, bytecode.FRETURN, bytecode.DRETURN, bytecode.ARETURN,
		bytecode.PUTSTATIC, bytecode.ATHROW, bytecode.MONITORENTER, bytecode.MONITOREXIT,
		bytecode.IFNULL, bytecode.IFNONNULL:
		return nil, nil

	case bytecode.GETFIELD:
		return in.field(insn)

	case bytecode.NEWARRAY:
		tag := insn.(*bytecode.IntInsn).Operand
		t, ok := newArrayTypes[tag]
		if !ok {
			return nil, analysis.Errorf(insn, ErrIllegalArrayTag, "%d", tag)
		}
		return in.NewValue(t), nil

	case bytecode.ANEWARRAY:
		operand := insn.(*bytecode.TypeInsn).Desc
		var d string
		if strings.HasPrefix(operand, "[") {
			d = "[" + operand
		} else {
			d = "[L" + operand + ";"
		}
		t, err := parseValueType(insn, d)
		if err != nil {
			return nil, err
		}
		return in.NewValue(t), nil

	case bytecode.ARRAYLENGTH, bytecode.INSTANCEOF:
		return Int, nil

	case bytecode.CHECKCAST:
		return in.NewValue(desc.ObjectType(insn.(*bytecode.TypeInsn).Desc)), nil

	default:
		log.Panicf("Unhandled instruction in UnaryOperation: %v", insn)
		return nil, nil
	}
}

func (in Interpreter) BinaryOperation(insn bytecode.Insn, v1, v2 *Value) (*Value, error) {
	switch insn.Opcode() {
	case bytecode.IALOAD, bytecode.BALOAD, bytecode.CALOAD, bytecode.SALOAD,
		bytecode.IADD, bytecode.ISUB, bytecode.IMUL, bytecode.IDIV, bytecode.IREM,
		bytecode.ISHL, bytecode.ISHR, bytecode.IUSHR, bytecode.IAND, bytecode.IOR, bytecode.IXOR:
		return Int, nil
	case bytecode.FALOAD, bytecode.FADD, bytecode.FSUB, bytecode.FMUL, bytecode.FDIV, bytecode.FREM:
		return Float, nil
	case bytecode.LALOAD, bytecode.LADD, bytecode.LSUB, bytecode.LMUL, bytecode.LDIV, bytecode.LREM,
		bytecode.LSHL, bytecode.LSHR, bytecode.LUSHR, bytecode.LAND, bytecode.LOR, bytecode.LXOR:
		return Long, nil
	case bytecode.DALOAD, bytecode.DADD, bytecode.DSUB, bytecode.DMUL, bytecode.DDIV, bytecode.DREM:
		return Double, nil
	case bytecode.LCMP, bytecode.FCMPL, bytecode.FCMPG, bytecode.DCMPL, bytecode.DCMPG:
		return Int, nil

	case bytecode.AALOAD:
		t, ok := v1.Type()
		if !ok || t.Sort() != desc.Array {
			return nil, analysis.Errorf(insn, ErrIllegalArrayLoad, "array operand is %s", v1.Descriptor())
		}
		return in.NewValue(t.ComponentType()), nil

	case bytecode.IF_ICMPEQ, bytecode.IF_ICMPNE, bytecode.IF_ICMPLT,
		bytecode.IF_ICMPGE, bytecode.IF_ICMPGT, bytecode.IF_ICMPLE,
		bytecode.IF_ACMPEQ, bytecode.IF_ACMPNE, bytecode.PUTFIELD:
		return nil, nil

	default:
		log.Panicf("Unhandled instruction in BinaryOperation: %v", insn)
		return nil, nil
	}
}

// TernaryOperation handles the array stores, which produce no value.
func (Interpreter) TernaryOperation(bytecode.Insn, *Value, *Value, *Value) (*Value, error) {
	return nil, nil
}

func (in Interpreter) NaryOperation(insn bytecode.Insn, _ []*Value) (*Value, error) {
	var descriptor string
	switch insn := insn.(type) {
	case *bytecode.MultiANewArrayInsn:
		t, err := parseValueType(insn, insn.Desc)
		if err != nil {
			return nil, err
		}
		return in.NewValue(t), nil
	case *bytecode.InvokeDynamicInsn:
		descriptor = insn.Desc
	case *bytecode.MethodInsn:
		descriptor = insn.Desc
	default:
		log.Panicf("Unhandled instruction in NaryOperation: %v", insn)
	}

	t, err := desc.Parse(descriptor)
	if err != nil {
		return nil, analysis.NewError(insn, err)
	}
	if t.Sort() != desc.Method {
		return nil, analysis.Errorf(insn, ErrBadDescriptor, "%s is not a method descriptor", descriptor)
	}
	return in.NewValue(t.ReturnType()), nil
}

func (Interpreter) ReturnOperation(bytecode.Insn, *Value, *Value) error {
	return nil
}

// Merge joins two values in the flat lattice: equal values join to the
// first, anything else to Uninitialized.
func (Interpreter) Merge(v1, v2 *Value) *Value {
	if v1.Equal(v2) {
		return v1
	}
	return Uninitialized
}
