// Package classfile reads JVM class files into the instruction model of
// package bytecode.
package classfile

import (
	"errors"
	"fmt"
	"io"

	"github.com/BarrensZeppelin/jvmtype/bytecode"
)

const magic = 0xCAFEBABE

var (
	ErrBadMagic    = errors.New("not a class file")
	ErrTruncated   = errors.New("truncated class file")
	ErrBadConstant = errors.New("bad constant pool reference")
	ErrBadOpcode   = errors.New("bad opcode")
	ErrBadOffset   = errors.New("bad code offset")
)

type Class struct {
	MajorVersion, MinorVersion uint16

	Access     int
	Name       string
	SuperName  string
	Interfaces []string
	Fields     []Field
	Methods    []*bytecode.Method
}

type Field struct {
	Access int
	Name   string
	Desc   string
}

func (c *Class) Method(name, descriptor string) *bytecode.Method {
	for _, m := range c.Methods {
		if m.Name == name && m.Desc == descriptor {
			return m
		}
	}
	return nil
}

// ReadFrom reads and parses a class file from r.
func ReadFrom(r io.Reader) (*Class, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

type rawCode struct {
	m    *bytecode.Method
	data []byte
}

// Parse parses the class file in data.
func Parse(data []byte) (*Class, error) {
	r := &reader{buf: data}
	// Truncation takes precedence, since reads past the end yield zeros.
	fail := func(format string, args ...any) (*Class, error) {
		if r.err != nil {
			return nil, r.err
		}
		return nil, fmt.Errorf(format, args...)
	}

	if m := r.u4(); r.err == nil && m != magic {
		return fail("%w: magic %#x", ErrBadMagic, m)
	}

	c := &Class{}
	c.MinorVersion, c.MajorVersion = r.u2(), r.u2()
	p := readPool(r)
	if r.err != nil {
		return nil, r.err
	}

	c.Access = int(r.u2())
	var err error
	if c.Name, err = p.class(r.u2()); err != nil {
		return fail("this_class: %w", err)
	}
	// java/lang/Object and module-info have no super class.
	if super := r.u2(); super != 0 {
		if c.SuperName, err = p.class(super); err != nil {
			return fail("super_class: %w", err)
		}
	}
	for n := r.u2(); n > 0 && r.err == nil; n-- {
		itf, err := p.class(r.u2())
		if err != nil {
			return fail("interfaces: %w", err)
		}
		c.Interfaces = append(c.Interfaces, itf)
	}

	for n := r.u2(); n > 0 && r.err == nil; n-- {
		access := int(r.u2())
		name, err := p.utf8(r.u2())
		if err != nil {
			return fail("field name: %w", err)
		}
		descriptor, err := p.utf8(r.u2())
		if err != nil {
			return fail("field %s: %w", name, err)
		}
		if skipAttributes(r) != nil {
			return nil, r.err
		}
		c.Fields = append(c.Fields, Field{access, name, descriptor})
	}

	var codes []rawCode
	for n := r.u2(); n > 0 && r.err == nil; n-- {
		m := &bytecode.Method{Access: int(r.u2())}
		if m.Name, err = p.utf8(r.u2()); err != nil {
			return fail("method name: %w", err)
		}
		if m.Desc, err = p.utf8(r.u2()); err != nil {
			return fail("method %s: %w", m.Name, err)
		}
		err = readAttributes(r, p, func(name string, data []byte) error {
			if name == "Code" {
				codes = append(codes, rawCode{m, data})
			}
			return nil
		})
		if err != nil {
			return fail("method %s%s: %w", m.Name, m.Desc, err)
		}
		c.Methods = append(c.Methods, m)
	}

	err = readAttributes(r, p, func(name string, data []byte) error {
		if name == "BootstrapMethods" {
			return readBootstrapMethods(&reader{buf: data}, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if r.err != nil {
		return nil, r.err
	}

	// Code is decoded last since invokedynamic needs the bootstrap methods.
	for _, code := range codes {
		if err := readCode(&reader{buf: code.data}, p, code.m); err != nil {
			return fail("method %s%s: %w", code.m.Name, code.m.Desc, err)
		}
	}
	return c, nil
}

func skipAttributes(r *reader) error {
	for n := r.u2(); n > 0 && r.err == nil; n-- {
		r.skip(2)
		r.skip(int(r.u4()))
	}
	return r.err
}

func readAttributes(r *reader, p *pool, f func(name string, data []byte) error) error {
	for n := r.u2(); n > 0 && r.err == nil; n-- {
		name, err := p.utf8(r.u2())
		if err != nil {
			return fmt.Errorf("attribute name: %w", err)
		}
		data := r.bytes(int(r.u4()))
		if r.err != nil {
			break
		}
		if err := f(name, data); err != nil {
			return fmt.Errorf("%s attribute: %w", name, err)
		}
	}
	return r.err
}

func readBootstrapMethods(r *reader, p *pool) error {
	n := int(r.u2())
	p.bootstrap = make([]bootstrapMethod, 0, n)
	for ; n > 0 && r.err == nil; n-- {
		bm := bootstrapMethod{handle: r.u2()}
		for k := r.u2(); k > 0 && r.err == nil; k-- {
			bm.args = append(bm.args, r.u2())
		}
		p.bootstrap = append(p.bootstrap, bm)
	}
	return r.err
}
