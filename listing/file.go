package listing

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/BarrensZeppelin/jvmtype/bytecode"
	"github.com/BarrensZeppelin/jvmtype/classfile"
	"github.com/BarrensZeppelin/jvmtype/desc"
)

var ErrInvalid = errors.New("invalid method listing")

// File is a YAML file of method listings.
type File struct {
	Methods []MethodListing `yaml:"methods"`
}

// MethodListing describes a method whose code is written in the assembly
// syntax of Assemble.
type MethodListing struct {
	Owner  string   `yaml:"owner"`
	Name   string   `yaml:"name"`
	Desc   string   `yaml:"desc"`
	Access []string `yaml:"access,omitempty"` // public, static, ...

	// MaxLocals is computed from the descriptor and the code when omitted.
	// An omitted MaxStack leaves the operand stack unbounded.
	MaxStack  *int `yaml:"max_stack,omitempty"`
	MaxLocals *int `yaml:"max_locals,omitempty"`

	Code     string     `yaml:"code"`
	TryCatch []TryCatch `yaml:"try_catch,omitempty"`
}

// TryCatch refers to labels of the code. An empty Type catches everything.
type TryCatch struct {
	Start   string `yaml:"start"`
	End     string `yaml:"end"`
	Handler string `yaml:"handler"`
	Type    string `yaml:"type,omitempty"`
}

func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

var accessFlags = map[string]int{
	"public":       bytecode.AccPublic,
	"private":      bytecode.AccPrivate,
	"protected":    bytecode.AccProtected,
	"static":       bytecode.AccStatic,
	"final":        bytecode.AccFinal,
	"synchronized": bytecode.AccSynchronized,
	"bridge":       bytecode.AccBridge,
	"varargs":      bytecode.AccVarargs,
	"native":       bytecode.AccNative,
	"abstract":     bytecode.AccAbstract,
	"strict":       bytecode.AccStrict,
	"synthetic":    bytecode.AccSynthetic,
}

// Method assembles the listing.
func (ml *MethodListing) Method() (*bytecode.Method, error) {
	m := &bytecode.Method{Name: ml.Name, Desc: ml.Desc}
	for _, a := range ml.Access {
		flag, ok := accessFlags[strings.ToLower(a)]
		if !ok {
			return nil, fmt.Errorf("%w: access flag %q", ErrInvalid, a)
		}
		m.Access |= flag
	}

	mt, err := m.Type()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	insns, labels, err := assemble(ml.Code)
	if err != nil {
		return nil, err
	}
	m.Instructions = insns

	for _, tc := range ml.TryCatch {
		tcb := bytecode.TryCatchBlock{Type: tc.Type}
		for _, p := range []struct {
			name string
			l    **bytecode.Label
		}{{tc.Start, &tcb.Start}, {tc.End, &tcb.End}, {tc.Handler, &tcb.Handler}} {
			l, ok := labels[p.name]
			if !ok {
				return nil, fmt.Errorf("try_catch: %w: %q", ErrUndefinedLabel, p.name)
			}
			*p.l = l
		}
		m.TryCatch = append(m.TryCatch, tcb)
	}

	if ml.MaxStack != nil {
		m.MaxStack = *ml.MaxStack
	}
	if ml.MaxLocals != nil {
		m.MaxLocals = *ml.MaxLocals
	} else {
		m.MaxLocals = maxLocals(m, mt)
	}
	return m, nil
}

// maxLocals returns the number of locals used by the parameters and the
// instructions of m.
func maxLocals(m *bytecode.Method, mt desc.Type) int {
	n := 0
	for _, arg := range mt.ArgumentTypes() {
		n += arg.Size()
	}
	if !m.IsStatic() {
		n++
	}

	for _, insn := range m.Instructions {
		var end int
		switch insn := insn.(type) {
		case *bytecode.VarInsn:
			end = insn.Var + 1
			switch insn.Op {
			case bytecode.LLOAD, bytecode.DLOAD, bytecode.LSTORE, bytecode.DSTORE:
				end++
			}
		case *bytecode.IincInsn:
			end = insn.Var + 1
		}
		n = max(n, end)
	}
	return n
}

// Classes groups the listed methods into classes by owner, in order of first
// appearance.
func (f *File) Classes() ([]*classfile.Class, error) {
	var classes []*classfile.Class
	byName := make(map[string]*classfile.Class)
	for i := range f.Methods {
		ml := &f.Methods[i]
		m, err := ml.Method()
		if err != nil {
			return nil, fmt.Errorf("%s.%s%s: %w", ml.Owner, ml.Name, ml.Desc, err)
		}
		c, ok := byName[ml.Owner]
		if !ok {
			c = &classfile.Class{Name: ml.Owner, SuperName: "java/lang/Object"}
			byName[ml.Owner] = c
			classes = append(classes, c)
		}
		c.Methods = append(c.Methods, m)
	}
	return classes, nil
}

// Lookup returns the listing of the method with the given owner and name.
// An empty descriptor matches any.
func (f *File) Lookup(owner, name, descriptor string) *MethodListing {
	for i := range f.Methods {
		ml := &f.Methods[i]
		if ml.Owner == owner && ml.Name == name && (descriptor == "" || ml.Desc == descriptor) {
			return ml
		}
	}
	return nil
}
