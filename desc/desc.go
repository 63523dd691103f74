// Package desc models JVM type descriptors.
//
// A Type is a small comparable value holding the sort of the type and its
// descriptor string, e.g. "I", "Ljava/lang/String;", "[[J" or "(IJ)V".
// Two Types are equal iff their descriptors are equal.
package desc

import (
	"errors"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

type Sort uint8

const (
	// NoSort is the sort of the zero Type, which denotes an absent type.
	NoSort Sort = iota
	Void
	Boolean
	Char
	Byte
	Short
	Int
	Float
	Long
	Double
	Array
	Object
	Method
)

var sortNames = [...]string{
	NoSort:  "none",
	Void:    "void",
	Boolean: "boolean",
	Char:    "char",
	Byte:    "byte",
	Short:   "short",
	Int:     "int",
	Float:   "float",
	Long:    "long",
	Double:  "double",
	Array:   "array",
	Object:  "object",
	Method:  "method",
}

func (s Sort) String() string {
	if int(s) < len(sortNames) {
		return sortNames[s]
	}
	return fmt.Sprintf("Sort(%d)", s)
}

type Type struct {
	sort Sort
	buf  string
}

var (
	VoidType    = Type{Void, "V"}
	BooleanType = Type{Boolean, "Z"}
	CharType    = Type{Char, "C"}
	ByteType    = Type{Byte, "B"}
	ShortType   = Type{Short, "S"}
	IntType     = Type{Int, "I"}
	FloatType   = Type{Float, "F"}
	LongType    = Type{Long, "J"}
	DoubleType  = Type{Double, "D"}

	// NullType is the pseudo type of the null constant.
	NullType = ObjectType("null")

	StringType       = ObjectType("java/lang/String")
	ClassType        = ObjectType("java/lang/Class")
	ThrowableType    = ObjectType("java/lang/Throwable")
	MethodTypeType   = ObjectType("java/lang/invoke/MethodType")
	MethodHandleType = ObjectType("java/lang/invoke/MethodHandle")
)

var ErrMalformed = errors.New("malformed descriptor")

// ObjectType returns the type for the given internal name. Internal names of
// array classes are their descriptors, so a leading '[' yields an array type.
// The name is not validated.
func ObjectType(internalName string) Type {
	if strings.HasPrefix(internalName, "[") {
		return Type{Array, internalName}
	}
	return Type{Object, "L" + internalName + ";"}
}

// MethodType returns the type of the given method descriptor. The descriptor
// is not validated.
func MethodType(descriptor string) Type {
	return Type{Method, descriptor}
}

func primitive(c byte) (Type, bool) {
	switch c {
	case 'V':
		return VoidType, true
	case 'Z':
		return BooleanType, true
	case 'C':
		return CharType, true
	case 'B':
		return ByteType, true
	case 'S':
		return ShortType, true
	case 'I':
		return IntType, true
	case 'F':
		return FloatType, true
	case 'J':
		return LongType, true
	case 'D':
		return DoubleType, true
	}
	return Type{}, false
}

var parseCache = func() *lru.Cache[string, Type] {
	c, err := lru.New[string, Type](4096)
	if err != nil {
		panic(err)
	}
	return c
}()

// Parse parses a field or method descriptor.
func Parse(s string) (Type, error) {
	if t, ok := parseCache.Get(s); ok {
		return t, nil
	}

	t, err := parse(s)
	if err != nil {
		return Type{}, err
	}
	parseCache.Add(s, t)
	return t, nil
}

// MustParse is like Parse but panics on malformed input.
func MustParse(s string) Type {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

func parse(s string) (Type, error) {
	if s == "" {
		return Type{}, fmt.Errorf("%w: empty", ErrMalformed)
	}

	if s[0] == '(' {
		i := 1
		for i < len(s) && s[i] != ')' {
			end, err := fieldEnd(s, i)
			if err != nil {
				return Type{}, err
			}
			i = end
		}
		if i >= len(s) {
			return Type{}, fmt.Errorf("%w: %q: missing ')'", ErrMalformed, s)
		}
		i++
		if i < len(s) && s[i] == 'V' {
			i++
		} else {
			end, err := fieldEnd(s, i)
			if err != nil {
				return Type{}, err
			}
			i = end
		}
		if i != len(s) {
			return Type{}, fmt.Errorf("%w: %q: trailing characters", ErrMalformed, s)
		}
		return Type{Method, s}, nil
	}

	if s == "V" {
		return VoidType, nil
	}

	end, err := fieldEnd(s, 0)
	if err != nil {
		return Type{}, err
	}
	if end != len(s) {
		return Type{}, fmt.Errorf("%w: %q: trailing characters", ErrMalformed, s)
	}
	return fromField(s), nil
}

// fieldEnd returns the index just past the field descriptor starting at i.
func fieldEnd(s string, i int) (int, error) {
	start := i
	for i < len(s) && s[i] == '[' {
		i++
	}
	if i-start > 255 {
		return 0, fmt.Errorf("%w: %q: too many array dimensions", ErrMalformed, s)
	}
	if i >= len(s) {
		return 0, fmt.Errorf("%w: %q: unexpected end", ErrMalformed, s)
	}

	switch c := s[i]; c {
	case 'Z', 'C', 'B', 'S', 'I', 'F', 'J', 'D':
		return i + 1, nil
	case 'L':
		semi := strings.IndexByte(s[i:], ';')
		if semi <= 1 {
			return 0, fmt.Errorf("%w: %q: bad class name", ErrMalformed, s)
		}
		return i + semi + 1, nil
	default:
		return 0, fmt.Errorf("%w: %q: unexpected %q at %d", ErrMalformed, s, c, i)
	}
}

// fromField builds a Type from a well-formed field descriptor.
func fromField(s string) Type {
	switch s[0] {
	case '[':
		return Type{Array, s}
	case 'L':
		return Type{Object, s}
	default:
		t, _ := primitive(s[0])
		return t
	}
}

func (t Type) Sort() Sort { return t.sort }

// IsZero reports whether t is the absent type.
func (t Type) IsZero() bool { return t.sort == NoSort }

func (t Type) Descriptor() string { return t.buf }

// InternalName returns the internal name of an object or array type.
func (t Type) InternalName() string {
	switch t.sort {
	case Object:
		return t.buf[1 : len(t.buf)-1]
	case Array:
		return t.buf
	default:
		panic(fmt.Errorf("InternalName of %v type %s", t.sort, t.buf))
	}
}

// Dimensions returns the number of array dimensions of t.
func (t Type) Dimensions() int {
	n := 0
	for n < len(t.buf) && t.buf[n] == '[' {
		n++
	}
	return n
}

// ComponentType strips one array dimension.
func (t Type) ComponentType() Type {
	if t.sort != Array {
		panic(fmt.Errorf("ComponentType of non-array type %s", t.buf))
	}
	return fromField(t.buf[1:])
}

// ElementType strips all array dimensions.
func (t Type) ElementType() Type {
	if t.sort != Array {
		panic(fmt.Errorf("ElementType of non-array type %s", t.buf))
	}
	return fromField(t.buf[t.Dimensions():])
}

// ReturnType returns the return type of a method type.
func (t Type) ReturnType() Type {
	if t.sort != Method {
		panic(fmt.Errorf("ReturnType of non-method type %s", t.buf))
	}
	r := t.buf[strings.LastIndexByte(t.buf, ')')+1:]
	if r == "V" {
		return VoidType
	}
	return fromField(r)
}

// ArgumentTypes returns the parameter types of a method type.
func (t Type) ArgumentTypes() []Type {
	if t.sort != Method {
		panic(fmt.Errorf("ArgumentTypes of non-method type %s", t.buf))
	}

	var args []Type
	for i := 1; t.buf[i] != ')'; {
		end, err := fieldEnd(t.buf, i)
		if err != nil {
			panic(err)
		}
		args = append(args, fromField(t.buf[i:end]))
		i = end
	}
	return args
}

// Size returns the number of local variable slots taken by a value of type t.
// Method types have the size of their argument list.
func (t Type) Size() int {
	switch t.sort {
	case NoSort, Void:
		return 0
	case Long, Double:
		return 2
	case Method:
		n := 0
		for _, a := range t.ArgumentTypes() {
			n += a.Size()
		}
		return n
	default:
		return 1
	}
}

// String returns the Java source-level name of the type.
func (t Type) String() string {
	switch t.sort {
	case NoSort:
		return "<none>"
	case Object:
		return strings.ReplaceAll(t.InternalName(), "/", ".")
	case Array:
		return t.ElementType().String() + strings.Repeat("[]", t.Dimensions())
	case Method:
		return t.buf
	default:
		return t.sort.String()
	}
}
