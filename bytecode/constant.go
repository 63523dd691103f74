package bytecode

import (
	"fmt"
	"strconv"

	"github.com/BarrensZeppelin/jvmtype/desc"
)

// Constant is a loadable constant: the operand of ldc or a bootstrap method
// argument.
type Constant interface {
	fmt.Stringer
	constTag()
}

type ctag struct{}

func (ctag) constTag() {}

type IntConst struct {
	ctag
	Value int32
}

func (c IntConst) String() string { return strconv.FormatInt(int64(c.Value), 10) }

type FloatConst struct {
	ctag
	Value float32
}

func (c FloatConst) String() string {
	return strconv.FormatFloat(float64(c.Value), 'g', -1, 32) + "f"
}

type LongConst struct {
	ctag
	Value int64
}

func (c LongConst) String() string { return strconv.FormatInt(c.Value, 10) + "L" }

type DoubleConst struct {
	ctag
	Value float64
}

func (c DoubleConst) String() string {
	return strconv.FormatFloat(c.Value, 'g', -1, 64) + "d"
}

type StringConst struct {
	ctag
	Value string
}

func (c StringConst) String() string { return strconv.Quote(c.Value) }

// TypeConst is a class literal (object or array sort) or a method type
// (method sort).
type TypeConst struct {
	ctag
	Type desc.Type
}

func (c TypeConst) String() string {
	if c.Type.Sort() == desc.Method {
		return "methodtype " + c.Type.Descriptor()
	}
	return "class " + c.Type.Descriptor()
}

// Reference kinds of method handles.
const (
	H_GETFIELD         = 1
	H_GETSTATIC        = 2
	H_PUTFIELD         = 3
	H_PUTSTATIC        = 4
	H_INVOKEVIRTUAL    = 5
	H_INVOKESTATIC     = 6
	H_INVOKESPECIAL    = 7
	H_NEWINVOKESPECIAL = 8
	H_INVOKEINTERFACE  = 9
)

var handleKinds = [...]string{
	H_GETFIELD:         "getfield",
	H_GETSTATIC:        "getstatic",
	H_PUTFIELD:         "putfield",
	H_PUTSTATIC:        "putstatic",
	H_INVOKEVIRTUAL:    "invokevirtual",
	H_INVOKESTATIC:     "invokestatic",
	H_INVOKESPECIAL:    "invokespecial",
	H_NEWINVOKESPECIAL: "newinvokespecial",
	H_INVOKEINTERFACE:  "invokeinterface",
}

// HandleKind returns the reference kind with the given name.
func HandleKind(name string) (int, bool) {
	for kind, n := range handleKinds {
		if n != "" && n == name {
			return kind, true
		}
	}
	return 0, false
}

type Handle struct {
	ctag
	Kind  int
	Owner string
	Name  string
	Desc  string
	Itf   bool
}

func (h Handle) String() string {
	kind := strconv.Itoa(h.Kind)
	if h.Kind > 0 && h.Kind < len(handleKinds) {
		kind = handleKinds[h.Kind]
	}
	return fmt.Sprintf("handle %s %s %s %s", kind, h.Owner, h.Name, h.Desc)
}

// DynamicConst is a dynamically-computed constant. Desc is a field
// descriptor.
type DynamicConst struct {
	ctag
	Name    string
	Desc    string
	Bsm     *Handle
	BsmArgs []Constant
}

func (c DynamicConst) String() string {
	return fmt.Sprintf("dynamic %s %s", c.Name, c.Desc)
}
