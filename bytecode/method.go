package bytecode

import (
	"fmt"
	"strings"

	"github.com/BarrensZeppelin/jvmtype/desc"
)

// Access flags of methods.
const (
	AccPublic       = 0x0001
	AccPrivate      = 0x0002
	AccProtected    = 0x0004
	AccStatic       = 0x0008
	AccFinal        = 0x0010
	AccSynchronized = 0x0020
	AccBridge       = 0x0040
	AccVarargs      = 0x0080
	AccNative       = 0x0100
	AccAbstract     = 0x0400
	AccStrict       = 0x0800
	AccSynthetic    = 0x1000
)

// TryCatchBlock covers the instructions between Start (inclusive) and End
// (exclusive). An empty Type catches everything.
type TryCatchBlock struct {
	Start, End, Handler *Label
	Type                string
}

type Method struct {
	Access    int
	Name      string
	Desc      string
	MaxStack  int
	MaxLocals int

	Instructions []Insn
	TryCatch     []TryCatchBlock
}

func (m *Method) IsStatic() bool { return m.Access&AccStatic != 0 }

// HasCode reports whether the method has a body.
func (m *Method) HasCode() bool { return len(m.Instructions) > 0 }

func (m *Method) Type() (desc.Type, error) {
	t, err := desc.Parse(m.Desc)
	if err != nil {
		return t, err
	}
	if t.Sort() != desc.Method {
		return t, fmt.Errorf("%w: %q is not a method descriptor", desc.ErrMalformed, m.Desc)
	}
	return t, nil
}

// Index returns the position of every label in the instruction list.
func (m *Method) Index() map[*Label]int {
	idx := make(map[*Label]int)
	for i, insn := range m.Instructions {
		if l, ok := insn.(*Label); ok {
			idx[l] = i
		}
	}
	return idx
}

func (m *Method) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s%s\n", m.Name, m.Desc)
	for i, insn := range m.Instructions {
		fmt.Fprintf(&sb, "%4d  %v\n", i, insn)
	}
	return sb.String()
}
