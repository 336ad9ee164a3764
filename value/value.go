// Package value implements the runtime value model: a tagged union
// over scalars, shared immutable buffers, heap-handle composites, and
// the struct/enum/function/async/shared-ref/raw-pointer variants.
// Inlined variants carry their payload by value; composites are
// referred to by an opaque heap handle (see package memory).
package value

import (
	"fmt"
	"math"
	"sync/atomic"
)

// Kind tags which variant a Value holds.
type Kind byte

const (
	KindUnit Kind = iota
	KindBool
	KindInt
	KindFloat
	KindChar
	KindString
	KindBytes
	KindTuple
	KindArray
	KindList
	KindDict
	KindStruct
	KindEnum
	KindFunction
	KindAsync
	KindSharedRef
	KindRawPointer
)

func (k Kind) String() string {
	switch k {
	case KindUnit:
		return "unit"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindChar:
		return "char"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindTuple:
		return "tuple"
	case KindArray:
		return "array"
	case KindList:
		return "list"
	case KindDict:
		return "dict"
	case KindStruct:
		return "struct"
	case KindEnum:
		return "enum"
	case KindFunction:
		return "function"
	case KindAsync:
		return "async"
	case KindSharedRef:
		return "shared_ref"
	case KindRawPointer:
		return "raw_pointer"
	default:
		return "unknown"
	}
}

// Value is the tagged union every register, local, and stack slot
// holds. Scalar variants (Unit/Bool/Int/Float/Char) are inlined in
// Scalar; everything else lives in Data.
type Value struct {
	Kind   Kind
	Scalar uint64 // bit pattern for Bool/Int/Float/Char
	Data   interface{}
}

func Unit() Value { return Value{Kind: KindUnit} }

func Bool(b bool) Value {
	var s uint64
	if b {
		s = 1
	}
	return Value{Kind: KindBool, Scalar: s}
}

func Int(i int64) Value {
	return Value{Kind: KindInt, Scalar: uint64(i)}
}

func Float(f float64) Value {
	return Value{Kind: KindFloat, Scalar: floatBits(f)}
}

func Char(r rune) Value {
	return Value{Kind: KindChar, Scalar: uint64(uint32(r))}
}

// String wraps s in a SharedString so clones share the backing buffer;
// SharedString has no write operation, so the buffer is never copied.
func String(s string) Value {
	return Value{Kind: KindString, Data: NewSharedString(s)}
}

// Bytes wraps b in a SharedBytes buffer.
func Bytes(b []byte) Value {
	return Value{Kind: KindBytes, Data: NewSharedBytes(b)}
}

func (v Value) AsBool() bool   { return v.Scalar != 0 }
func (v Value) AsInt() int64   { return int64(v.Scalar) }
func (v Value) AsFloat() float64 { return floatFromBits(v.Scalar) }
func (v Value) AsChar() rune   { return rune(v.Scalar) }

func (v Value) AsString() string {
	if s, ok := v.Data.(*SharedString); ok {
		return s.Get()
	}
	return ""
}

func (v Value) AsBytes() []byte {
	if b, ok := v.Data.(*SharedBytes); ok {
		return b.Get()
	}
	return nil
}

func (v Value) IsUnit() bool { return v.Kind == KindUnit }

func (v Value) String() string {
	switch v.Kind {
	case KindUnit:
		return "()"
	case KindBool:
		return fmt.Sprintf("%t", v.AsBool())
	case KindInt:
		return fmt.Sprintf("%d", v.AsInt())
	case KindFloat:
		return fmt.Sprintf("%g", v.AsFloat())
	case KindChar:
		return string(v.AsChar())
	case KindString:
		return v.AsString()
	default:
		return fmt.Sprintf("<%s>", v.Kind)
	}
}

// SharedString is an atomically-refcounted immutable string buffer.
// Clone increments the count; Drop decrements it. The inner buffer is
// only actually freed by the Go garbage collector once the last
// reference is dropped — the refcount here models the language-level
// ref-counting contract spec §3 describes, not the backing allocation.
type SharedString struct {
	refs atomic.Int64
	buf  string
}

func NewSharedString(s string) *SharedString {
	ss := &SharedString{buf: s}
	ss.refs.Store(1)
	return ss
}

func (s *SharedString) Get() string { return s.buf }

func (s *SharedString) Clone() *SharedString {
	s.refs.Add(1)
	return s
}

func (s *SharedString) Drop() int64 {
	return s.refs.Add(-1)
}

// SharedBytes is the byte-buffer analogue of SharedString.
type SharedBytes struct {
	refs atomic.Int64
	buf  []byte
}

func NewSharedBytes(b []byte) *SharedBytes {
	sb := &SharedBytes{buf: b}
	sb.refs.Store(1)
	return sb
}

func (s *SharedBytes) Get() []byte { return s.buf }

func (s *SharedBytes) Clone() *SharedBytes {
	s.refs.Add(1)
	return s
}

func (s *SharedBytes) Drop() int64 {
	return s.refs.Add(-1)
}

func floatBits(f float64) uint64 {
	return math.Float64bits(f)
}

func floatFromBits(bits uint64) float64 {
	return math.Float64frombits(bits)
}
