// Package classtest assembles minimal class files for tests.
package classtest

import (
	"bytes"
	"encoding/binary"
	"math"
)

const (
	tagUtf8          = 1
	tagInteger       = 3
	tagLong          = 5
	tagDouble        = 6
	tagClass         = 7
	tagString        = 8
	tagFieldref      = 9
	tagMethodref     = 10
	tagNameAndType   = 12
	tagMethodHandle  = 15
	tagInvokeDynamic = 18
)

type Builder struct {
	pool  bytes.Buffer
	next  uint16
	utf8s map[string]uint16

	name, super string
	methods     []Method
	bootstrap   []uint16
}

type Method struct {
	Access              uint16
	Name, Desc          string
	MaxStack, MaxLocals uint16
	Code                []byte
	Exceptions          []Handler
}

// Handler is an exception table entry. CatchType is a constant pool index,
// 0 for catch-all handlers.
type Handler struct {
	Start, End, Handler, CatchType uint16
}

func New(name string) *Builder {
	return &Builder{next: 1, utf8s: map[string]uint16{}, name: name, super: "java/lang/Object"}
}

func (b *Builder) entry(tag uint8, data ...any) uint16 {
	idx := b.next
	b.next++
	b.pool.WriteByte(tag)
	for _, d := range data {
		binary.Write(&b.pool, binary.BigEndian, d)
	}
	return idx
}

func (b *Builder) Utf8(s string) uint16 {
	if idx, ok := b.utf8s[s]; ok {
		return idx
	}
	idx := b.entry(tagUtf8, uint16(len(s)), []byte(s))
	b.utf8s[s] = idx
	return idx
}

func (b *Builder) Class(name string) uint16 { return b.entry(tagClass, b.Utf8(name)) }

func (b *Builder) String(s string) uint16 { return b.entry(tagString, b.Utf8(s)) }

func (b *Builder) Integer(v int32) uint16 { return b.entry(tagInteger, v) }

func (b *Builder) Long(v int64) uint16 {
	idx := b.entry(tagLong, v)
	b.next++
	return idx
}

func (b *Builder) Double(v float64) uint16 {
	idx := b.entry(tagDouble, math.Float64bits(v))
	b.next++
	return idx
}

func (b *Builder) NameAndType(name, descriptor string) uint16 {
	return b.entry(tagNameAndType, b.Utf8(name), b.Utf8(descriptor))
}

func (b *Builder) Fieldref(owner, name, descriptor string) uint16 {
	return b.entry(tagFieldref, b.Class(owner), b.NameAndType(name, descriptor))
}

func (b *Builder) Methodref(owner, name, descriptor string) uint16 {
	return b.entry(tagMethodref, b.Class(owner), b.NameAndType(name, descriptor))
}

func (b *Builder) MethodHandle(kind uint8, ref uint16) uint16 {
	return b.entry(tagMethodHandle, kind, ref)
}

// InvokeDynamic registers a bootstrap method without arguments and a call
// site using it.
func (b *Builder) InvokeDynamic(bsm uint16, name, descriptor string) uint16 {
	b.bootstrap = append(b.bootstrap, bsm)
	return b.entry(tagInvokeDynamic, uint16(len(b.bootstrap)-1), b.NameAndType(name, descriptor))
}

func (b *Builder) Method(m Method) *Builder {
	b.methods = append(b.methods, m)
	return b
}

// Bytes returns the class file. It must be called once.
func (b *Builder) Bytes() []byte {
	this, super := b.Class(b.name), b.Class(b.super)
	code := b.Utf8("Code")
	bsmAttr := b.Utf8("BootstrapMethods")
	type names struct{ name, desc uint16 }
	var ms []names
	for _, m := range b.methods {
		ms = append(ms, names{b.Utf8(m.Name), b.Utf8(m.Desc)})
	}

	var out bytes.Buffer
	w := func(data ...any) {
		for _, d := range data {
			binary.Write(&out, binary.BigEndian, d)
		}
	}
	w(uint32(0xCAFEBABE), uint16(0), uint16(52), b.next)
	out.Write(b.pool.Bytes())
	w(uint16(0x21), this, super, uint16(0), uint16(0), uint16(len(b.methods)))
	for i, m := range b.methods {
		w(m.Access, ms[i].name, ms[i].desc, uint16(1), code)
		length := 2 + 2 + 4 + len(m.Code) + 2 + 8*len(m.Exceptions) + 2
		w(uint32(length), m.MaxStack, m.MaxLocals, uint32(len(m.Code)), m.Code)
		w(uint16(len(m.Exceptions)))
		for _, e := range m.Exceptions {
			w(e.Start, e.End, e.Handler, e.CatchType)
		}
		w(uint16(0))
	}

	if len(b.bootstrap) == 0 {
		w(uint16(0))
		return out.Bytes()
	}
	w(uint16(1), bsmAttr, uint32(2+4*len(b.bootstrap)), uint16(len(b.bootstrap)))
	for _, bsm := range b.bootstrap {
		w(bsm, uint16(0))
	}
	return out.Bytes()
}

// U2 encodes a big-endian operand.
func U2(v uint16) []byte { return []byte{byte(v >> 8), byte(v)} }

// Code concatenates code fragments.
func Code(parts ...[]byte) []byte { return bytes.Join(parts, nil) }
