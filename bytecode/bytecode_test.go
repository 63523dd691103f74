package bytecode

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BarrensZeppelin/jvmtype/desc"
)

func TestOpcodes(t *testing.T) {
	assert.Len(t, Mnemonics, 0xca)
	for i, name := range Mnemonics {
		op, ok := Lookup(name)
		assert.True(t, ok, name)
		assert.Equal(t, Opcode(i), op)
		assert.Equal(t, name, op.String())
	}

	_, ok := Lookup("breakpoint")
	assert.False(t, ok)
	assert.Equal(t, "<pseudo>", Pseudo.String())
	assert.Equal(t, "Opcode(0xfe)", Opcode(0xfe).String())

	assert.True(t, ARETURN.IsReturn())
	assert.True(t, RETURN.IsReturn())
	assert.False(t, ATHROW.IsReturn())
	assert.True(t, IFNULL.IsConditionalJump())
	assert.True(t, IF_ACMPNE.IsConditionalJump())
	assert.False(t, GOTO.IsConditionalJump())
}

func TestConstantStrings(t *testing.T) {
	for want, c := range map[string]Constant{
		"-3":                          IntConst{Value: -3},
		"1.5f":                        FloatConst{Value: 1.5},
		"7L":                          LongConst{Value: 7},
		"0.25d":                       DoubleConst{Value: 0.25},
		`"a\n"`:                       StringConst{Value: "a\n"},
		"class [I":                    TypeConst{Type: desc.MustParse("[I")},
		"methodtype ()V":              TypeConst{Type: desc.MustParse("()V")},
		"handle getstatic a/B f I":    Handle{Kind: H_GETSTATIC, Owner: "a/B", Name: "f", Desc: "I"},
		"handle 42 a/B f I":           Handle{Kind: 42, Owner: "a/B", Name: "f", Desc: "I"},
		"dynamic c Ljava/lang/Object;": DynamicConst{Name: "c", Desc: "Ljava/lang/Object;"},
	} {
		assert.Equal(t, want, c.String())
	}

	kind, ok := HandleKind("newinvokespecial")
	assert.True(t, ok)
	assert.Equal(t, H_NEWINVOKESPECIAL, kind)
	_, ok = HandleKind("")
	assert.False(t, ok)
}

func TestMethod(t *testing.T) {
	l := &Label{Name: "loop"}
	m := &Method{
		Access: AccPublic | AccStatic,
		Name:   "spin",
		Desc:   "()V",
		Instructions: []Insn{
			l,
			&JumpInsn{Op: GOTO, Target: l},
		},
	}

	assert.True(t, m.IsStatic())
	assert.True(t, m.HasCode())
	assert.Equal(t, map[*Label]int{l: 0}, m.Index())
	assert.Equal(t, "spin()V\n   0  loop:\n   1  goto loop\n", m.String())

	mt, err := m.Type()
	assert.NoError(t, err)
	assert.Equal(t, desc.Method, mt.Sort())

	m.Desc = "I"
	_, err = m.Type()
	assert.ErrorIs(t, err, desc.ErrMalformed)
}
