package jvmtype

import (
	"fmt"
	"hash/fnv"

	"github.com/BarrensZeppelin/jvmtype/desc"
)

// Value is an element of the flat type lattice. It carries a type
// descriptor, or nothing for the uninitialized value, which is both the
// bottom of the lattice and the result of joining disagreeing values.
//
// The primitive categories are represented by the singletons below and are
// compared by identity. References are fresh values compared by descriptor.
// Values are immutable.
type Value struct {
	typ desc.Type
}

var (
	Uninitialized = &Value{}
	Int           = &Value{desc.IntType}
	Float         = &Value{desc.FloatType}
	Long          = &Value{desc.LongType}
	Double        = &Value{desc.DoubleType}

	// ReturnAddress is the value pushed by jsr. It only equals itself.
	ReturnAddress = &Value{desc.VoidType}
)

// NewReference returns a fresh value for an object or array type.
func NewReference(t desc.Type) *Value {
	if s := t.Sort(); s != desc.Object && s != desc.Array {
		panic(fmt.Errorf("NewReference of %v type %s", s, t.Descriptor()))
	}
	return &Value{t}
}

// Type returns the type carried by v. It returns false for Uninitialized.
func (v *Value) Type() (desc.Type, bool) {
	return v.typ, !v.typ.IsZero()
}

func (v *Value) Size() int {
	switch v.typ.Sort() {
	case desc.Long, desc.Double:
		return 2
	default:
		return 1
	}
}

func (v *Value) IsReference() bool {
	s := v.typ.Sort()
	return s == desc.Object || s == desc.Array
}

func (v *Value) Equal(o *Value) bool {
	switch {
	case v == o:
		return true
	case v == nil || o == nil,
		v == ReturnAddress || o == ReturnAddress:
		return false
	default:
		return v.typ == o.typ
	}
}

func (v *Value) Hash() uint64 {
	switch {
	case v.typ.IsZero():
		return 0
	case v == ReturnAddress:
		return 0xA
	}
	h := fnv.New64a()
	h.Write([]byte(v.typ.Descriptor()))
	return h.Sum64()
}

// Descriptor returns the descriptor of v's type, "." for Uninitialized and
// "A" for ReturnAddress.
func (v *Value) Descriptor() string {
	switch {
	case v == nil:
		return "<none>"
	case v.typ.IsZero():
		return "."
	case v == ReturnAddress:
		return "A"
	default:
		return v.typ.Descriptor()
	}
}

func (v *Value) String() string {
	if v != nil && v.typ.Sort() == desc.Object {
		return "R"
	}
	return v.Descriptor()
}
