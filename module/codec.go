package module

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/yaoxiang-lang/yaoxiang/ir"
)

// ErrCorruptModule means the byte stream did not match the container
// layout spec §6 requires; per spec §7, a decode-time failure means
// the compiled module is corrupt and load must fail outright.
var ErrCorruptModule = fmt.Errorf("module: corrupt container")

// typeTag is the small tag language spec §6 calls for encoding a
// TypeDescriptor; it mirrors ir.TypeKind one-for-one since the core IR
// has no richer surface syntax to preserve.
type typeTag = byte

// Encode serializes m into the on-disk container layout: a magic +
// version header, the constant-pool section, the globals section, and
// the functions section, in that order.
func Encode(m *Module) []byte {
	var buf []byte
	buf = putU32(buf, Magic)
	buf = putU32(buf, m.Version)

	buf = putU32(buf, uint32(len(m.Constants)))
	for _, c := range m.Constants {
		buf = encodeConstant(buf, c)
	}

	buf = putU32(buf, uint32(len(m.Globals)))
	for _, g := range m.Globals {
		buf = putString(buf, g.Name)
		buf = encodeType(buf, g.Type)
		if g.Initial != nil {
			buf = append(buf, 1)
			buf = putU32(buf, *g.Initial)
		} else {
			buf = append(buf, 0)
		}
	}

	buf = putU32(buf, uint32(len(m.Functions)))
	for _, fn := range m.Functions {
		buf = putU32(buf, fn.ID)
		buf = putString(buf, fn.Name)
		buf = putU32(buf, uint32(len(fn.Params)))
		for _, p := range fn.Params {
			buf = encodeType(buf, p)
		}
		buf = encodeType(buf, fn.Return)
		buf = putU32(buf, uint32(fn.LocalCount))
		buf = putU32(buf, uint32(len(fn.Code)))
		buf = append(buf, fn.Code...)
	}

	return buf
}

// Decode parses a container previously produced by Encode. It fails
// with ErrCorruptModule (wrapped with detail) on any structural
// mismatch, including a bad magic or truncated section.
func Decode(data []byte) (*Module, error) {
	r := &reader{buf: data}

	magic, err := r.u32()
	if err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, fmt.Errorf("%w: bad magic 0x%08X", ErrCorruptModule, magic)
	}
	version, err := r.u32()
	if err != nil {
		return nil, err
	}

	m := &Module{Version: version}

	constCount, err := r.u32()
	if err != nil {
		return nil, err
	}
	m.Constants = make([]ir.Constant, constCount)
	for i := range m.Constants {
		c, err := decodeConstant(r)
		if err != nil {
			return nil, err
		}
		m.Constants[i] = c
	}

	globalCount, err := r.u32()
	if err != nil {
		return nil, err
	}
	m.Globals = make([]Global, globalCount)
	for i := range m.Globals {
		name, err := r.str()
		if err != nil {
			return nil, err
		}
		t, err := decodeType(r)
		if err != nil {
			return nil, err
		}
		hasInitial, err := r.byte()
		if err != nil {
			return nil, err
		}
		g := Global{Name: name, Type: t}
		if hasInitial == 1 {
			idx, err := r.u32()
			if err != nil {
				return nil, err
			}
			g.Initial = &idx
		}
		m.Globals[i] = g
	}

	fnCount, err := r.u32()
	if err != nil {
		return nil, err
	}
	m.Functions = make([]Function, fnCount)
	for i := range m.Functions {
		id, err := r.u32()
		if err != nil {
			return nil, err
		}
		name, err := r.str()
		if err != nil {
			return nil, err
		}
		paramCount, err := r.u32()
		if err != nil {
			return nil, err
		}
		params := make([]ir.Type, paramCount)
		for j := range params {
			t, err := decodeType(r)
			if err != nil {
				return nil, err
			}
			params[j] = t
		}
		ret, err := decodeType(r)
		if err != nil {
			return nil, err
		}
		localCount, err := r.u32()
		if err != nil {
			return nil, err
		}
		codeLen, err := r.u32()
		if err != nil {
			return nil, err
		}
		code, err := r.bytes(int(codeLen))
		if err != nil {
			return nil, err
		}
		m.Functions[i] = Function{
			ID: id, Name: name, Params: params, Return: ret,
			LocalCount: int(localCount), Code: code,
		}
	}

	return m, nil
}

func putU32(dst []byte, v uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return append(dst, buf[:]...)
}

func putU64(dst []byte, v uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return append(dst, buf[:]...)
}

func putString(dst []byte, s string) []byte {
	dst = putU32(dst, uint32(len(s)))
	return append(dst, s...)
}

func encodeConstant(dst []byte, c ir.Constant) []byte {
	dst = append(dst, byte(c.Kind))
	switch c.Kind {
	case ir.ConstVoid:
		return dst
	case ir.ConstBool:
		if c.Bool {
			return append(dst, 1)
		}
		return append(dst, 0)
	case ir.ConstInt:
		dst = putU64(dst, c.Int128Lo)
		return putU64(dst, c.Int128Hi)
	case ir.ConstFloat:
		return putU64(dst, math.Float64bits(c.Float))
	case ir.ConstChar:
		return putU32(dst, uint32(c.Char))
	case ir.ConstString:
		return putString(dst, c.Str)
	case ir.ConstBytes:
		dst = putU32(dst, uint32(len(c.Bytes)))
		return append(dst, c.Bytes...)
	default:
		return dst
	}
}

func encodeType(dst []byte, t ir.Type) []byte {
	dst = append(dst, byte(t.Kind))
	switch t.Kind {
	case ir.TypeVar, ir.TypeStruct, ir.TypeEnum:
		dst = putString(dst, t.Name)
	}
	if t.Kind == ir.TypeStruct || t.Kind == ir.TypeEnum {
		dst = putU32(dst, uint32(len(t.Fields)))
		for _, f := range t.Fields {
			dst = putString(dst, f.Name)
			dst = encodeType(dst, f.Type)
		}
	}
	if t.Elem != nil {
		dst = append(dst, 1)
		dst = encodeType(dst, *t.Elem)
	} else if t.Kind == ir.TypeList || t.Kind == ir.TypeSet || t.Kind == ir.TypeSharedRef || t.Kind == ir.TypeRange {
		dst = append(dst, 0)
	}
	if t.Kind == ir.TypeDict {
		if t.Key != nil {
			dst = append(dst, 1)
			dst = encodeType(dst, *t.Key)
		} else {
			dst = append(dst, 0)
		}
		if t.Value != nil {
			dst = append(dst, 1)
			dst = encodeType(dst, *t.Value)
		} else {
			dst = append(dst, 0)
		}
	}
	if t.Kind == ir.TypeTuple || t.Kind == ir.TypeUnion || t.Kind == ir.TypeIntersection || t.Kind == ir.TypeFunction {
		dst = putU32(dst, uint32(len(t.Params)))
		for _, p := range t.Params {
			dst = encodeType(dst, p)
		}
	}
	if t.Kind == ir.TypeFunction {
		if t.Return != nil {
			dst = append(dst, 1)
			dst = encodeType(dst, *t.Return)
		} else {
			dst = append(dst, 0)
		}
	}
	return dst
}
