package value

import "sync/atomic"

// Handle is an opaque identifier for a heap-resident aggregate. The vm
// interpreter mints these (it is distinct from memory.HeapHandle); a
// Handle is only meaningful relative to the interpreter that issued it.
type Handle uint64

// Tuple is a fixed-arity heap-allocated aggregate, referred to by a
// heap Handle from a Value of KindTuple.
type Tuple struct {
	Handle   Handle
	Elements []Value
}

// ArrayVal is a fixed-length heap-allocated aggregate (contiguous,
// homogeneous-by-convention but not type-enforced at this layer).
type ArrayVal struct {
	Handle   Handle
	Elements []Value
}

// ListVal is a growable heap-allocated aggregate.
type ListVal struct {
	Handle   Handle
	Elements []Value
}

// DictVal is a heap-allocated key/value aggregate. String and bytes
// keys are compared by content; every other key is compared by its
// (Kind, Scalar) pair only, with Data ignored, which is sufficient for
// the scalar and shared-string key types the language surface permits.
type DictVal struct {
	Handle  Handle
	Entries map[interface{}]Value
}

// dictKey produces a comparable Go key for a Value usable as a dict key.
func dictKey(v Value) interface{} {
	switch v.Kind {
	case KindString:
		return "s:" + v.AsString()
	case KindBytes:
		return "b:" + string(v.AsBytes())
	default:
		return struct {
			Kind   Kind
			Scalar uint64
		}{v.Kind, v.Scalar}
	}
}

func NewDict() *DictVal {
	return &DictVal{Entries: make(map[interface{}]Value)}
}

func (d *DictVal) Get(key Value) (Value, bool) {
	v, ok := d.Entries[dictKey(key)]
	return v, ok
}

func (d *DictVal) Set(key, v Value) {
	d.Entries[dictKey(key)] = v
}

// VTableEntry pairs a method name with the function value implementing
// it, consulted by call-virtual.
type VTableEntry struct {
	Name     string
	Function Value
}

// StructVal is a type-tagged struct instance: its field tuple lives on
// the heap (addressed by Handle), and its vtable is resolved at
// monomorphization/emission time, not per-instance.
type StructVal struct {
	TypeTag string
	Handle  Handle
	VTable  []VTableEntry
}

// EnumVal is a type-tagged enum instance carrying the active variant
// index and its boxed payload (nil for unit variants).
type EnumVal struct {
	TypeTag      string
	VariantIndex uint32
	Payload      *Value
}

// Closure is a function value: the function it invokes plus the
// environment it captured at creation time.
type Closure struct {
	FuncID      uint32
	Environment []Value
}

func NewFunction(funcID uint32, env []Value) Value {
	return Value{Kind: KindFunction, Data: &Closure{FuncID: funcID, Environment: env}}
}

func (v Value) AsClosure() *Closure {
	c, _ := v.Data.(*Closure)
	return c
}

// AsyncState is the lifecycle of an async value (distinct from, but
// analogous to, task.State — this is the in-value marker the
// interpreter manipulates, not the scheduler-level task record).
type AsyncState byte

const (
	AsyncPending AsyncState = iota
	AsyncReady
)

// Async carries the state and, once ready, the produced value plus a
// descriptor of its static type (the type checker supplies the
// descriptor; the core only threads it through).
type Async struct {
	State      AsyncState
	ValueType  string
	Result     *Value
}

func NewAsync(valueType string) Value {
	return Value{Kind: KindAsync, Data: &Async{State: AsyncPending, ValueType: valueType}}
}

// SharedRef is an atomically reference-counted pointer to another
// runtime value — the runtime representation of the language-level
// `ref` keyword.
type SharedRef struct {
	refs    atomic.Int64
	Pointee Value
}

func NewSharedRef(pointee Value) Value {
	r := &SharedRef{Pointee: pointee}
	r.refs.Store(1)
	return Value{Kind: KindSharedRef, Data: r}
}

// Clone increments the reference count and returns the same
// underlying SharedRef, matching the "clone shares the pointee"
// semantics of spec §4.5's shared-ref-clone opcode.
func (v Value) Clone() Value {
	if r, ok := v.Data.(*SharedRef); ok {
		r.refs.Add(1)
		return Value{Kind: KindSharedRef, Data: r}
	}
	if s, ok := v.Data.(*SharedString); ok {
		return Value{Kind: KindString, Data: s.Clone()}
	}
	if b, ok := v.Data.(*SharedBytes); ok {
		return Value{Kind: KindBytes, Data: b.Clone()}
	}
	return v
}

// Drop releases one reference. For a shared-ref it decrements the
// count and reports whether the pointee should now be released
// (count reached zero). For plain values it is a no-op returning false.
func (v Value) Drop() bool {
	switch d := v.Data.(type) {
	case *SharedRef:
		return d.refs.Add(-1) == 0
	case *SharedString:
		return d.Drop() == 0
	case *SharedBytes:
		return d.Drop() == 0
	default:
		return false
	}
}

func (v Value) AsSharedRef() *SharedRef {
	r, _ := v.Data.(*SharedRef)
	return r
}

// RawPointer is an address plus the element type tag it points at; the
// core never dereferences it directly, it exists for external-function
// interop.
type RawPointer struct {
	Address     uintptr
	ElementType string
}

func NewRawPointer(addr uintptr, elemType string) Value {
	return Value{Kind: KindRawPointer, Data: &RawPointer{Address: addr, ElementType: elemType}}
}
