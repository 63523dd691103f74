package desc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	for _, tc := range []struct {
		in   string
		sort Sort
	}{
		{"V", Void},
		{"Z", Boolean},
		{"C", Char},
		{"B", Byte},
		{"S", Short},
		{"I", Int},
		{"F", Float},
		{"J", Long},
		{"D", Double},
		{"Ljava/lang/String;", Object},
		{"[I", Array},
		{"[[Ljava/lang/Object;", Array},
		{"()V", Method},
		{"(IJ[Ljava/lang/String;)Ljava/lang/Object;", Method},
	} {
		typ, err := Parse(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.sort, typ.Sort(), tc.in)
		assert.Equal(t, tc.in, typ.Descriptor())
	}

	t.Run("Malformed", func(t *testing.T) {
		for _, in := range []string{
			"", "X", "L;", "Ljava/lang/String", "[", "II", "(I", "(I)", "(V)V", "()VV",
		} {
			_, err := Parse(in)
			assert.ErrorIs(t, err, ErrMalformed, "%q", in)
		}
	})

	t.Run("Cached", func(t *testing.T) {
		a := MustParse("[Ljava/util/List;")
		b := MustParse("[Ljava/util/List;")
		assert.Equal(t, a, b)
		assert.Panics(t, func() { MustParse("Q") })
	})
}

func TestObjectType(t *testing.T) {
	str := ObjectType("java/lang/String")
	assert.Equal(t, Object, str.Sort())
	assert.Equal(t, "Ljava/lang/String;", str.Descriptor())
	assert.Equal(t, "java/lang/String", str.InternalName())
	assert.Equal(t, StringType, str)

	arr := ObjectType("[[I")
	assert.Equal(t, Array, arr.Sort())
	assert.Equal(t, "[[I", arr.InternalName())

	assert.Equal(t, "Lnull;", NullType.Descriptor())
}

func TestArrays(t *testing.T) {
	typ := MustParse("[[Ljava/lang/String;")
	assert.Equal(t, 2, typ.Dimensions())
	assert.Equal(t, MustParse("[Ljava/lang/String;"), typ.ComponentType())
	assert.Equal(t, StringType, typ.ElementType())
	assert.Equal(t, IntType, MustParse("[I").ComponentType())
	assert.Equal(t, "java.lang.String[][]", typ.String())

	assert.Panics(t, func() { IntType.ComponentType() })
}

func TestMethodType(t *testing.T) {
	m := MustParse("(IJLjava/lang/String;[D)[B")
	assert.Equal(t,
		[]Type{IntType, LongType, StringType, MustParse("[D")},
		m.ArgumentTypes())
	assert.Equal(t, MustParse("[B"), m.ReturnType())
	assert.Equal(t, 5, m.Size())

	assert.Equal(t, VoidType, MethodType("()V").ReturnType())
	assert.Empty(t, MethodType("()V").ArgumentTypes())
}

func TestSize(t *testing.T) {
	assert.Equal(t, 0, Type{}.Size())
	assert.Equal(t, 0, VoidType.Size())
	assert.Equal(t, 1, IntType.Size())
	assert.Equal(t, 2, LongType.Size())
	assert.Equal(t, 2, DoubleType.Size())
	assert.Equal(t, 1, StringType.Size())
	assert.True(t, Type{}.IsZero())
	assert.False(t, IntType.IsZero())
}
