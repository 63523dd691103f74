package jvmtype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BarrensZeppelin/jvmtype/analysis"
	"github.com/BarrensZeppelin/jvmtype/bytecode"
	"github.com/BarrensZeppelin/jvmtype/desc"
)

var interp Interpreter

func ldc(c bytecode.Constant) bytecode.Insn { return &bytecode.LdcInsn{Cst: c} }

// requireFailure checks that err is an analysis error for insn wrapping
// sentinel.
func requireFailure(t *testing.T, err, sentinel error, insn bytecode.Insn) {
	t.Helper()
	require.ErrorIs(t, err, sentinel)
	var aerr *analysis.Error
	require.ErrorAs(t, err, &aerr)
	assert.Same(t, insn, aerr.Insn)
}

func descriptor(t *testing.T, v *Value, err error) string {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, v)
	return v.Descriptor()
}

func TestNewValue(t *testing.T) {
	for typ, want := range map[desc.Type]*Value{
		{}:               Uninitialized,
		desc.BooleanType: Int,
		desc.CharType:    Int,
		desc.ByteType:    Int,
		desc.ShortType:   Int,
		desc.IntType:     Int,
		desc.FloatType:   Float,
		desc.LongType:    Long,
		desc.DoubleType:  Double,
	} {
		assert.Same(t, want, interp.NewValue(typ), "%v", typ)
	}

	assert.Nil(t, interp.NewValue(desc.VoidType))

	v := interp.NewValue(desc.StringType)
	assert.Equal(t, "Ljava/lang/String;", v.Descriptor())
	assert.NotSame(t, v, interp.NewValue(desc.StringType), "references are fresh")
	assert.Equal(t, "[J", interp.NewValue(desc.MustParse("[J")).Descriptor())

	assert.Panics(t, func() { interp.NewValue(desc.MustParse("()V")) })
}

func TestNewOperation(t *testing.T) {
	t.Run("Constants", func(t *testing.T) {
		for op, want := range map[bytecode.Opcode]*Value{
			bytecode.ICONST_M1: Int, bytecode.ICONST_0: Int, bytecode.ICONST_5: Int,
			bytecode.LCONST_0: Long, bytecode.LCONST_1: Long,
			bytecode.FCONST_0: Float, bytecode.FCONST_2: Float,
			bytecode.DCONST_0: Double, bytecode.DCONST_1: Double,
		} {
			v, err := interp.NewOperation(bytecode.Op(op))
			require.NoError(t, err)
			assert.Same(t, want, v, "%v", op)
		}

		for _, op := range []bytecode.Opcode{bytecode.BIPUSH, bytecode.SIPUSH} {
			v, err := interp.NewOperation(&bytecode.IntInsn{Op: op, Operand: 7})
			require.NoError(t, err)
			assert.Same(t, Int, v)
		}

		v, err := interp.NewOperation(bytecode.Op(bytecode.ACONST_NULL))
		assert.Equal(t, "Lnull;", descriptor(t, v, err))
	})

	t.Run("Ldc", func(t *testing.T) {
		for want, c := range map[string]bytecode.Constant{
			"I":                              bytecode.IntConst{Value: 1},
			"F":                              bytecode.FloatConst{Value: 1},
			"J":                              bytecode.LongConst{Value: 1},
			"D":                              bytecode.DoubleConst{Value: 1},
			"Ljava/lang/String;":             bytecode.StringConst{Value: "s"},
			"Ljava/lang/Class;":              bytecode.TypeConst{Type: desc.ObjectType("a/B")},
			"Ljava/lang/invoke/MethodType;":  bytecode.TypeConst{Type: desc.MustParse("(I)V")},
			"Ljava/lang/invoke/MethodHandle;": bytecode.Handle{Kind: bytecode.H_INVOKESTATIC, Owner: "a/B", Name: "m", Desc: "()V"},
			"Ljava/util/List;":               bytecode.DynamicConst{Name: "c", Desc: "Ljava/util/List;"},
		} {
			v, err := interp.NewOperation(ldc(c))
			assert.Equal(t, want, descriptor(t, v, err), "%v", c)
		}

		v, err := interp.NewOperation(ldc(&bytecode.DynamicConst{Name: "c", Desc: "Z"}))
		require.NoError(t, err)
		assert.Same(t, Int, v)

		v, err = interp.NewOperation(ldc(bytecode.TypeConst{Type: desc.MustParse("[I")}))
		assert.Equal(t, "Ljava/lang/Class;", descriptor(t, v, err))
	})

	t.Run("IllegalConstant", func(t *testing.T) {
		for _, c := range []bytecode.Constant{
			nil,
			bytecode.TypeConst{Type: desc.IntType},
			bytecode.DynamicConst{Name: "c", Desc: "V"},
		} {
			insn := ldc(c)
			_, err := interp.NewOperation(insn)
			requireFailure(t, err, ErrIllegalConstant, insn)
		}

		insn := ldc(bytecode.DynamicConst{Name: "c", Desc: "Lbroken"})
		_, err := interp.NewOperation(insn)
		requireFailure(t, err, ErrBadDescriptor, insn)
	})

	t.Run("Other", func(t *testing.T) {
		v, err := interp.NewOperation(&bytecode.JumpInsn{Op: bytecode.JSR})
		require.NoError(t, err)
		assert.Same(t, ReturnAddress, v)

		v, err = interp.NewOperation(&bytecode.FieldInsn{Op: bytecode.GETSTATIC, Owner: "a/B", Name: "f", Desc: "S"})
		require.NoError(t, err)
		assert.Same(t, Int, v)

		v, err = interp.NewOperation(&bytecode.TypeInsn{Op: bytecode.NEW, Desc: "java/util/ArrayList"})
		assert.Equal(t, "Ljava/util/ArrayList;", descriptor(t, v, err))

		insn := &bytecode.FieldInsn{Op: bytecode.GETSTATIC, Owner: "a/B", Name: "f", Desc: "V"}
		_, err = interp.NewOperation(insn)
		requireFailure(t, err, ErrBadDescriptor, insn)
	})

	assert.Panics(t, func() { interp.NewOperation(bytecode.Op(bytecode.IADD)) })
}

func TestCopyOperation(t *testing.T) {
	str := NewReference(desc.StringType)
	for _, v := range []*Value{Uninitialized, Int, Long, ReturnAddress, str} {
		got, err := interp.CopyOperation(&bytecode.VarInsn{Op: bytecode.ALOAD}, v)
		require.NoError(t, err)
		assert.Same(t, v, got)
	}
}

func TestUnaryOperation(t *testing.T) {
	groups := map[*Value][]bytecode.Opcode{
		Int:    {bytecode.INEG, bytecode.L2I, bytecode.F2I, bytecode.D2I, bytecode.I2B, bytecode.I2C, bytecode.I2S, bytecode.ARRAYLENGTH},
		Float:  {bytecode.FNEG, bytecode.I2F, bytecode.L2F, bytecode.D2F},
		Long:   {bytecode.LNEG, bytecode.I2L, bytecode.F2L, bytecode.D2L},
		Double: {bytecode.DNEG, bytecode.I2D, bytecode.L2D, bytecode.F2D},
	}
	for want, ops := range groups {
		for _, op := range ops {
			v, err := interp.UnaryOperation(bytecode.Op(op), Uninitialized)
			require.NoError(t, err)
			assert.Same(t, want, v, "%v", op)
		}
	}

	v, err := interp.UnaryOperation(&bytecode.IincInsn{Var: 1, Incr: 1}, Int)
	require.NoError(t, err)
	assert.Same(t, Int, v)

	v, err = interp.UnaryOperation(&bytecode.TypeInsn{Op: bytecode.INSTANCEOF, Desc: "a/B"}, NewReference(desc.StringType))
	require.NoError(t, err)
	assert.Same(t, Int, v)

	for _, insn := range []bytecode.Insn{
		&bytecode.JumpInsn{Op: bytecode.IFEQ},
		&bytecode.JumpInsn{Op: bytecode.IFLE},
		&bytecode.JumpInsn{Op: bytecode.IFNULL},
		&bytecode.JumpInsn{Op: bytecode.IFNONNULL},
		&bytecode.TableSwitchInsn{},
		&bytecode.LookupSwitchInsn{},
		bytecode.Op(bytecode.IRETURN),
		bytecode.Op(bytecode.ARETURN),
		&bytecode.FieldInsn{Op: bytecode.PUTSTATIC, Owner: "a/B", Name: "f", Desc: "I"},
		bytecode.Op(bytecode.ATHROW),
		bytecode.Op(bytecode.MONITORENTER),
		bytecode.Op(bytecode.MONITOREXIT),
	} {
		v, err := interp.UnaryOperation(insn, Int)
		require.NoError(t, err)
		assert.Nil(t, v, "%v", insn)
	}

	t.Run("Getfield", func(t *testing.T) {
		v, err := interp.UnaryOperation(&bytecode.FieldInsn{Op: bytecode.GETFIELD, Owner: "a/B", Name: "f", Desc: "[Ljava/lang/Object;"}, NewReference(desc.ObjectType("a/B")))
		assert.Equal(t, "[Ljava/lang/Object;", descriptor(t, v, err))
	})

	t.Run("Newarray", func(t *testing.T) {
		for tag, want := range map[int]string{
			bytecode.T_BOOLEAN: "[Z", bytecode.T_CHAR: "[C", bytecode.T_BYTE: "[B", bytecode.T_SHORT: "[S",
			bytecode.T_INT: "[I", bytecode.T_FLOAT: "[F", bytecode.T_DOUBLE: "[D", bytecode.T_LONG: "[J",
		} {
			v, err := interp.UnaryOperation(&bytecode.IntInsn{Op: bytecode.NEWARRAY, Operand: tag}, Int)
			assert.Equal(t, want, descriptor(t, v, err))
		}

		for _, tag := range []int{0, 3, 12} {
			insn := &bytecode.IntInsn{Op: bytecode.NEWARRAY, Operand: tag}
			_, err := interp.UnaryOperation(insn, Int)
			requireFailure(t, err, ErrIllegalArrayTag, insn)
		}
	})

	t.Run("Anewarray", func(t *testing.T) {
		for operand, want := range map[string]string{
			"java/lang/String":    "[Ljava/lang/String;",
			"[I":                  "[[I",
			"[Ljava/lang/Object;": "[[Ljava/lang/Object;",
		} {
			v, err := interp.UnaryOperation(&bytecode.TypeInsn{Op: bytecode.ANEWARRAY, Desc: operand}, Int)
			assert.Equal(t, want, descriptor(t, v, err))
		}
	})

	t.Run("Checkcast", func(t *testing.T) {
		null, err := interp.NewOperation(bytecode.Op(bytecode.ACONST_NULL))
		require.NoError(t, err)
		for operand, want := range map[string]string{
			"java/lang/String": "Ljava/lang/String;",
			"[[I":              "[[I",
		} {
			v, err := interp.UnaryOperation(&bytecode.TypeInsn{Op: bytecode.CHECKCAST, Desc: operand}, null)
			assert.Equal(t, want, descriptor(t, v, err))
		}
	})

	assert.Panics(t, func() { interp.UnaryOperation(bytecode.Op(bytecode.IADD), Int) })
}

func TestBinaryOperation(t *testing.T) {
	groups := map[*Value][]bytecode.Opcode{
		Int: {
			bytecode.IALOAD, bytecode.BALOAD, bytecode.CALOAD, bytecode.SALOAD,
			bytecode.IADD, bytecode.ISUB, bytecode.IMUL, bytecode.IDIV, bytecode.IREM,
			bytecode.ISHL, bytecode.ISHR, bytecode.IUSHR, bytecode.IAND, bytecode.IOR, bytecode.IXOR,
			bytecode.LCMP, bytecode.FCMPL, bytecode.FCMPG, bytecode.DCMPL, bytecode.DCMPG,
		},
		Float: {bytecode.FALOAD, bytecode.FADD, bytecode.FSUB, bytecode.FMUL, bytecode.FDIV, bytecode.FREM},
		Long: {
			bytecode.LALOAD, bytecode.LADD, bytecode.LSUB, bytecode.LMUL, bytecode.LDIV, bytecode.LREM,
			bytecode.LSHL, bytecode.LSHR, bytecode.LUSHR, bytecode.LAND, bytecode.LOR, bytecode.LXOR,
		},
		Double: {bytecode.DALOAD, bytecode.DADD, bytecode.DSUB, bytecode.DMUL, bytecode.DDIV, bytecode.DREM},
	}
	for want, ops := range groups {
		for _, op := range ops {
			v, err := interp.BinaryOperation(bytecode.Op(op), Uninitialized, Uninitialized)
			require.NoError(t, err)
			assert.Same(t, want, v, "%v", op)
		}
	}

	for _, insn := range []bytecode.Insn{
		&bytecode.JumpInsn{Op: bytecode.IF_ICMPEQ},
		&bytecode.JumpInsn{Op: bytecode.IF_ICMPLE},
		&bytecode.JumpInsn{Op: bytecode.IF_ACMPNE},
		&bytecode.FieldInsn{Op: bytecode.PUTFIELD, Owner: "a/B", Name: "f", Desc: "I"},
	} {
		v, err := interp.BinaryOperation(insn, Int, Int)
		require.NoError(t, err)
		assert.Nil(t, v, "%v", insn)
	}

	t.Run("Aaload", func(t *testing.T) {
		aaload := bytecode.Op(bytecode.AALOAD)
		for array, want := range map[string]string{
			"[Ljava/lang/String;": "Ljava/lang/String;",
			"[[I":                 "[I",
			"[I":                  "I",
		} {
			v, err := interp.BinaryOperation(aaload, NewReference(desc.MustParse(array)), Int)
			assert.Equal(t, want, descriptor(t, v, err))
		}

		null, err := interp.NewOperation(bytecode.Op(bytecode.ACONST_NULL))
		require.NoError(t, err)
		for _, v := range []*Value{Uninitialized, Int, null, NewReference(desc.StringType)} {
			_, err := interp.BinaryOperation(aaload, v, Int)
			requireFailure(t, err, ErrIllegalArrayLoad, aaload)
		}
	})

	assert.Panics(t, func() { interp.BinaryOperation(bytecode.Op(bytecode.INEG), Int, Int) })
}

func TestTernaryOperation(t *testing.T) {
	for _, op := range []bytecode.Opcode{bytecode.IASTORE, bytecode.AASTORE, bytecode.DASTORE} {
		v, err := interp.TernaryOperation(bytecode.Op(op), Uninitialized, Int, Long)
		require.NoError(t, err)
		assert.Nil(t, v)
	}
}

func TestNaryOperation(t *testing.T) {
	v, err := interp.NaryOperation(&bytecode.MultiANewArrayInsn{Desc: "[[[D", Dims: 2}, []*Value{Int, Int})
	assert.Equal(t, "[[[D", descriptor(t, v, err))

	for _, op := range []bytecode.Opcode{
		bytecode.INVOKEVIRTUAL, bytecode.INVOKESPECIAL, bytecode.INVOKESTATIC, bytecode.INVOKEINTERFACE,
	} {
		v, err := interp.NaryOperation(&bytecode.MethodInsn{Op: op, Owner: "a/B", Name: "m", Desc: "(IJ)Ljava/util/Map;"}, nil)
		assert.Equal(t, "Ljava/util/Map;", descriptor(t, v, err))

		v, err = interp.NaryOperation(&bytecode.MethodInsn{Op: op, Owner: "a/B", Name: "m", Desc: "()C"}, nil)
		require.NoError(t, err)
		assert.Same(t, Int, v)

		v, err = interp.NaryOperation(&bytecode.MethodInsn{Op: op, Owner: "a/B", Name: "m", Desc: "()V"}, nil)
		require.NoError(t, err)
		assert.Nil(t, v)
	}

	v, err = interp.NaryOperation(&bytecode.InvokeDynamicInsn{Name: "run", Desc: "()Ljava/lang/Runnable;"}, nil)
	assert.Equal(t, "Ljava/lang/Runnable;", descriptor(t, v, err))

	insn := &bytecode.MethodInsn{Op: bytecode.INVOKESTATIC, Owner: "a/B", Name: "m", Desc: "I"}
	_, err = interp.NaryOperation(insn, nil)
	requireFailure(t, err, ErrBadDescriptor, insn)
}

func TestReturnOperation(t *testing.T) {
	assert.NoError(t, interp.ReturnOperation(bytecode.Op(bytecode.IRETURN), Int, Long))
	assert.NoError(t, interp.ReturnOperation(bytecode.Op(bytecode.ARETURN), Uninitialized, nil))
}

func TestMerge(t *testing.T) {
	str := NewReference(desc.StringType)
	values := []*Value{
		Uninitialized, Int, Float, Long, Double, ReturnAddress,
		str, NewReference(desc.StringType), NewReference(desc.MustParse("[I")),
	}

	for _, a := range values {
		assert.Same(t, a, interp.Merge(a, a), "idempotent: %v", a)
		assert.Same(t, Uninitialized, interp.Merge(a, Uninitialized), "bottom absorbs: %v", a)

		for _, b := range values {
			ab, ba := interp.Merge(a, b), interp.Merge(b, a)
			assert.True(t, ab.Equal(ba), "commutative: %v %v", a, b)
			if a.Equal(b) {
				assert.Same(t, a, ab)
			} else {
				assert.Same(t, Uninitialized, ab, "flat: %v %v", a, b)
			}
		}
	}

	// References with equal descriptors merge without change.
	assert.Same(t, str, interp.Merge(str, values[7]))
}
