// Package bytecode contains a tree representation of JVM method bodies.
package bytecode

import (
	"fmt"
	"strings"
)

// Insn is an instruction node. The concrete types below are the only
// implementations.
type Insn interface {
	Opcode() Opcode
	fmt.Stringer

	// method used to tag instruction node types
	insnTag()
}

type itag struct{}

func (itag) insnTag() {}

// InsnNode is an instruction without operands.
type InsnNode struct {
	itag
	Op Opcode
}

func (i *InsnNode) Opcode() Opcode { return i.Op }
func (i *InsnNode) String() string { return i.Op.String() }

// IntInsn is bipush, sipush or newarray.
type IntInsn struct {
	itag
	Op      Opcode
	Operand int
}

func (i *IntInsn) Opcode() Opcode { return i.Op }
func (i *IntInsn) String() string { return fmt.Sprintf("%v %d", i.Op, i.Operand) }

// VarInsn loads or stores a local variable, or is ret.
type VarInsn struct {
	itag
	Op  Opcode
	Var int
}

func (i *VarInsn) Opcode() Opcode { return i.Op }
func (i *VarInsn) String() string { return fmt.Sprintf("%v %d", i.Op, i.Var) }

// TypeInsn is new, anewarray, checkcast or instanceof. Desc is an internal
// name, which for array classes is an array descriptor.
type TypeInsn struct {
	itag
	Op   Opcode
	Desc string
}

func (i *TypeInsn) Opcode() Opcode { return i.Op }
func (i *TypeInsn) String() string { return fmt.Sprintf("%v %s", i.Op, i.Desc) }

type FieldInsn struct {
	itag
	Op    Opcode
	Owner string
	Name  string
	Desc  string
}

func (i *FieldInsn) Opcode() Opcode { return i.Op }
func (i *FieldInsn) String() string {
	return fmt.Sprintf("%v %s.%s:%s", i.Op, i.Owner, i.Name, i.Desc)
}

type MethodInsn struct {
	itag
	Op    Opcode
	Owner string
	Name  string
	Desc  string
	Itf   bool
}

func (i *MethodInsn) Opcode() Opcode { return i.Op }
func (i *MethodInsn) String() string {
	return fmt.Sprintf("%v %s.%s%s", i.Op, i.Owner, i.Name, i.Desc)
}

type InvokeDynamicInsn struct {
	itag
	Name    string
	Desc    string
	Bsm     *Handle
	BsmArgs []Constant
}

func (i *InvokeDynamicInsn) Opcode() Opcode { return INVOKEDYNAMIC }
func (i *InvokeDynamicInsn) String() string {
	return fmt.Sprintf("invokedynamic %s%s", i.Name, i.Desc)
}

// Label marks a position in an instruction list. It is a pseudo instruction.
type Label struct {
	itag
	Name string
}

func (l *Label) Opcode() Opcode { return Pseudo }
func (l *Label) String() string {
	if l.Name == "" {
		return fmt.Sprintf("L%p:", l)
	}
	return l.Name + ":"
}

type JumpInsn struct {
	itag
	Op     Opcode
	Target *Label
}

func (i *JumpInsn) Opcode() Opcode { return i.Op }
func (i *JumpInsn) String() string {
	return fmt.Sprintf("%v %s", i.Op, strings.TrimSuffix(i.Target.String(), ":"))
}

type LdcInsn struct {
	itag
	Cst Constant
}

func (i *LdcInsn) Opcode() Opcode { return LDC }
func (i *LdcInsn) String() string { return fmt.Sprintf("ldc %v", i.Cst) }

type IincInsn struct {
	itag
	Var  int
	Incr int
}

func (i *IincInsn) Opcode() Opcode { return IINC }
func (i *IincInsn) String() string { return fmt.Sprintf("iinc %d %d", i.Var, i.Incr) }

type TableSwitchInsn struct {
	itag
	Min, Max int32
	Dflt     *Label
	Labels   []*Label
}

func (i *TableSwitchInsn) Opcode() Opcode { return TABLESWITCH }
func (i *TableSwitchInsn) String() string {
	return fmt.Sprintf("tableswitch %d..%d", i.Min, i.Max)
}

type LookupSwitchInsn struct {
	itag
	Dflt   *Label
	Keys   []int32
	Labels []*Label
}

func (i *LookupSwitchInsn) Opcode() Opcode { return LOOKUPSWITCH }
func (i *LookupSwitchInsn) String() string {
	return fmt.Sprintf("lookupswitch %v", i.Keys)
}

// MultiANewArrayInsn creates an array of Dims dimensions of type Desc.
type MultiANewArrayInsn struct {
	itag
	Desc string
	Dims int
}

func (i *MultiANewArrayInsn) Opcode() Opcode { return MULTIANEWARRAY }
func (i *MultiANewArrayInsn) String() string {
	return fmt.Sprintf("multianewarray %s %d", i.Desc, i.Dims)
}

// Op returns an operand-less instruction node.
func Op(op Opcode) *InsnNode { return &InsnNode{Op: op} }
