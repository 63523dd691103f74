package classfile

import (
	"fmt"
	"math"
	"unicode"
	"unicode/utf16"

	"github.com/BarrensZeppelin/jvmtype/bytecode"
	"github.com/BarrensZeppelin/jvmtype/desc"
)

// Constant pool tags.
const (
	tagUtf8               = 1
	tagInteger            = 3
	tagFloat              = 4
	tagLong               = 5
	tagDouble             = 6
	tagClass              = 7
	tagString             = 8
	tagFieldref           = 9
	tagMethodref          = 10
	tagInterfaceMethodref = 11
	tagNameAndType        = 12
	tagMethodHandle       = 15
	tagMethodType         = 16
	tagDynamic            = 17
	tagInvokeDynamic      = 18
	tagModule             = 19
	tagPackage            = 20
)

type entry struct {
	tag uint8
	// Indices of referenced entries.
	a, b uint16
	// Kind of method handles.
	kind uint8
	// Raw value of numeric constants.
	num uint64
	str string
}

type pool struct {
	entries []entry
	// Bootstrap methods, set once the class attributes have been read.
	bootstrap []bootstrapMethod
}

type bootstrapMethod struct {
	handle uint16
	args   []uint16
}

func readPool(r *reader) *pool {
	n := int(r.u2())
	p := &pool{entries: make([]entry, n)}
	for i := 1; i < n && r.err == nil; i++ {
		e := entry{tag: r.u1()}
		switch e.tag {
		case tagUtf8:
			e.str = decodeUTF8(r.bytes(int(r.u2())))
		case tagInteger, tagFloat:
			e.num = uint64(r.u4())
		case tagLong, tagDouble:
			e.num = uint64(r.u4())<<32 | uint64(r.u4())
		case tagClass, tagString, tagMethodType, tagModule, tagPackage:
			e.a = r.u2()
		case tagFieldref, tagMethodref, tagInterfaceMethodref, tagNameAndType,
			tagDynamic, tagInvokeDynamic:
			e.a, e.b = r.u2(), r.u2()
		case tagMethodHandle:
			e.kind = r.u1()
			e.a = r.u2()
		default:
			if r.err == nil {
				r.err = fmt.Errorf("%w: unknown tag %d at index %d", ErrBadConstant, e.tag, i)
			}
		}
		p.entries[i] = e
		if e.tag == tagLong || e.tag == tagDouble {
			i++
		}
	}
	return p
}

func (p *pool) get(i uint16, tags ...uint8) (entry, error) {
	if int(i) == 0 || int(i) >= len(p.entries) {
		return entry{}, fmt.Errorf("%w: index %d out of range", ErrBadConstant, i)
	}
	e := p.entries[i]
	for _, t := range tags {
		if e.tag == t {
			return e, nil
		}
	}
	return entry{}, fmt.Errorf("%w: entry %d has tag %d, want one of %v", ErrBadConstant, i, e.tag, tags)
}

func (p *pool) utf8(i uint16) (string, error) {
	e, err := p.get(i, tagUtf8)
	return e.str, err
}

func (p *pool) class(i uint16) (string, error) {
	e, err := p.get(i, tagClass)
	if err != nil {
		return "", err
	}
	return p.utf8(e.a)
}

func (p *pool) nameAndType(i uint16) (name, descriptor string, err error) {
	e, err := p.get(i, tagNameAndType)
	if err != nil {
		return "", "", err
	}
	if name, err = p.utf8(e.a); err != nil {
		return "", "", err
	}
	descriptor, err = p.utf8(e.b)
	return name, descriptor, err
}

// member resolves a field or method reference.
func (p *pool) member(i uint16, tags ...uint8) (owner, name, descriptor string, itf bool, err error) {
	e, err := p.get(i, tags...)
	if err != nil {
		return
	}
	if owner, err = p.class(e.a); err != nil {
		return
	}
	name, descriptor, err = p.nameAndType(e.b)
	return owner, name, descriptor, e.tag == tagInterfaceMethodref, err
}

func (p *pool) handle(i uint16) (*bytecode.Handle, error) {
	e, err := p.get(i, tagMethodHandle)
	if err != nil {
		return nil, err
	}
	owner, name, descriptor, itf, err := p.member(e.a, tagFieldref, tagMethodref, tagInterfaceMethodref)
	if err != nil {
		return nil, err
	}
	return &bytecode.Handle{Kind: int(e.kind), Owner: owner, Name: name, Desc: descriptor, Itf: itf}, nil
}

// bootstrapMethod resolves the bootstrap method with the given index in the
// BootstrapMethods attribute.
func (p *pool) bootstrapMethod(i uint16) (*bytecode.Handle, []bytecode.Constant, error) {
	if int(i) >= len(p.bootstrap) {
		return nil, nil, fmt.Errorf("%w: bootstrap method %d out of range", ErrBadConstant, i)
	}
	bm := p.bootstrap[i]
	h, err := p.handle(bm.handle)
	if err != nil {
		return nil, nil, err
	}
	args := make([]bytecode.Constant, len(bm.args))
	for j, a := range bm.args {
		if args[j], err = p.loadable(a); err != nil {
			return nil, nil, err
		}
	}
	return h, args, nil
}

// loadable resolves a constant that may be the operand of ldc.
func (p *pool) loadable(i uint16) (bytecode.Constant, error) {
	e, err := p.get(i, tagInteger, tagFloat, tagLong, tagDouble, tagClass, tagString,
		tagMethodHandle, tagMethodType, tagDynamic)
	if err != nil {
		return nil, err
	}

	switch e.tag {
	case tagInteger:
		return bytecode.IntConst{Value: int32(e.num)}, nil
	case tagFloat:
		return bytecode.FloatConst{Value: math.Float32frombits(uint32(e.num))}, nil
	case tagLong:
		return bytecode.LongConst{Value: int64(e.num)}, nil
	case tagDouble:
		return bytecode.DoubleConst{Value: math.Float64frombits(e.num)}, nil
	case tagClass:
		name, err := p.utf8(e.a)
		if err != nil {
			return nil, err
		}
		return bytecode.TypeConst{Type: desc.ObjectType(name)}, nil
	case tagString:
		s, err := p.utf8(e.a)
		if err != nil {
			return nil, err
		}
		return bytecode.StringConst{Value: s}, nil
	case tagMethodType:
		s, err := p.utf8(e.a)
		if err != nil {
			return nil, err
		}
		return bytecode.TypeConst{Type: desc.MethodType(s)}, nil
	case tagMethodHandle:
		h, err := p.handle(i)
		if err != nil {
			return nil, err
		}
		return *h, nil
	default: // tagDynamic
		name, descriptor, err := p.nameAndType(e.b)
		if err != nil {
			return nil, err
		}
		bsm, args, err := p.bootstrapMethod(e.a)
		if err != nil {
			return nil, err
		}
		return bytecode.DynamicConst{Name: name, Desc: descriptor, Bsm: bsm, BsmArgs: args}, nil
	}
}

// decodeUTF8 decodes the modified UTF-8 encoding of class files, in which
// NUL is encoded in two bytes and supplementary characters as surrogate
// pairs.
func decodeUTF8(b []byte) string {
	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c < 0x80:
			units = append(units, uint16(c))
			i++
		case c&0xe0 == 0xc0 && i+1 < len(b):
			units = append(units, uint16(c&0x1f)<<6|uint16(b[i+1]&0x3f))
			i += 2
		case c&0xf0 == 0xe0 && i+2 < len(b):
			units = append(units, uint16(c&0x0f)<<12|uint16(b[i+1]&0x3f)<<6|uint16(b[i+2]&0x3f))
			i += 3
		default:
			units = append(units, unicode.ReplacementChar)
			i++
		}
	}
	return string(utf16.Decode(units))
}
