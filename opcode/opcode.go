// Package opcode defines the typed instruction set executed by the
// embedded interpreter: stable byte encodings, operand arity, and the
// classification predicates disassembly and validation build on.
package opcode

import "fmt"

// Opcode is a single-byte instruction tag. Encodings are stable and
// grouped by range so that range tests classify an opcode without a
// lookup table.
type Opcode byte

// Control flow (0x00-0x0F)
const (
	OpNop Opcode = iota
	OpReturn
	OpReturnValue
	OpJump
	OpJumpIf
	OpJumpIfNot
	OpSwitch
	OpLoopStart
	OpLoopIncrement
	OpTailCall
	OpYield
	OpLabel
)

// Register/memory moves (0x10-0x1F)
const (
	OpMove Opcode = iota + 0x10
	OpLoadConstant
	OpLoadLocal
	OpStoreLocal
	OpLoadArgument
)

// 64-bit integer arithmetic and bitwise (0x20-0x2F)
const (
	OpI64Add Opcode = iota + 0x20
	OpI64Sub
	OpI64Mul
	OpI64Div
	OpI64Rem
	OpI64And
	OpI64Or
	OpI64Xor
	OpI64Shl
	OpI64Shr
	OpI64Neg
	OpI64Not
)

// 32-bit integer arithmetic (0x30-0x3F)
const (
	OpI32Add Opcode = iota + 0x30
	OpI32Sub
	OpI32Mul
	OpI32Div
	OpI32Rem
	OpI32And
	OpI32Or
	OpI32Xor
	OpI32Shl
	OpI32Shr
	OpI32Neg
	OpI32Not
)

// 64-bit float arithmetic (0x40-0x4F)
const (
	OpF64Add Opcode = iota + 0x40
	OpF64Sub
	OpF64Mul
	OpF64Div
	OpF64Neg
)

// 32-bit float arithmetic (0x50-0x5F)
const (
	OpF32Add Opcode = iota + 0x50
	OpF32Sub
	OpF32Mul
	OpF32Div
	OpF32Neg
)

// Typed comparisons (0x60-0x71)
const (
	OpI64Eq Opcode = iota + 0x60
	OpI64Ne
	OpI64Lt
	OpI64Le
	OpI64Gt
	OpI64Ge
	OpF64Eq
	OpF64Ne
	OpF64Lt
	OpF64Le
	OpF64Gt
	OpF64Ge
	OpI32Eq
	OpI32Ne
	OpI32Lt
	OpI32Le
	OpI32Gt
	OpI32Ge
)

// Aggregate/memory (0x72-0x7D)
const (
	OpHeapAlloc Opcode = iota + 0x72
	OpStackAlloc
	OpDrop
	OpFieldGet
	OpFieldSet
	OpElementGet
	OpElementSet
	OpListWithCapacity
	OpSharedRefNew
	OpSharedRefClone
	OpSharedRefDrop
	OpBoundsCheck
)

// Function calls (0x80-0x86)
const (
	OpCallStatic Opcode = iota + 0x80
	OpCallVirtual
	OpCallDynamic
	OpMakeClosure
	OpUpvalueLoad
	OpUpvalueStore
	OpCloseUpvalue
)

// String operations (0x90-0x95)
const (
	OpStringLength Opcode = iota + 0x90
	OpStringConcat
	OpStringEqual
	OpStringGetChar
	OpStringFromInt
	OpStringFromFloat
)

// Exception handling (0xA0-0xA3)
const (
	OpTryBegin Opcode = iota + 0xA0
	OpTryEnd
	OpThrow
	OpRethrow
)

// Type operations (0xB0-0xD0)
const (
	OpTypeCheck Opcode = 0xB0
	OpCast      Opcode = 0xB1
	OpTypeOf    Opcode = 0xB2
)

// OpInvalid is the reserved sentinel for an undecodable byte.
const OpInvalid Opcode = 0xFF

// operandSizes gives the byte width of each operand in encoding order,
// per the fixed layouts in spec §4.1 (e.g. load-constant is
// dst:u8, const_index:u16; call-static is
// dst:u8, func_id:u32, base_arg_reg:u8, arg_count:u8).
var operandSizes = map[Opcode][]int{
	OpNop:           {},
	OpReturn:        {},
	OpReturnValue:   {},
	OpJump:          {4}, // relative_offset:i32
	OpJumpIf:        {1, 2}, // cond_reg:u8, relative_offset:i16
	OpJumpIfNot:     {1, 2},
	OpSwitch:        {1, 2}, // selector_reg:u8, case_count:u16 (cases follow out-of-band)
	OpLoopStart:     {},
	OpLoopIncrement: {1},
	OpTailCall:      {4, 1, 1}, // func_id:u32, base_arg_reg:u8, arg_count:u8
	OpYield:         {1},
	OpLabel:         {},

	OpMove:         {1, 1}, // dst:u8, src:u8
	OpLoadConstant: {1, 2}, // dst:u8, const_index:u16
	OpLoadLocal:    {1, 2}, // dst:u8, local_index:u16
	OpStoreLocal:   {2, 1}, // local_index:u16, src:u8
	OpLoadArgument: {1, 2}, // dst:u8, arg_index:u16

	OpHeapAlloc:        {1, 2},
	OpStackAlloc:       {1, 2},
	OpDrop:             {1},
	OpFieldGet:         {1, 1, 1}, // dst, obj, field_index
	OpFieldSet:         {1, 1, 1},
	OpElementGet:       {1, 1, 1},
	OpElementSet:       {1, 1, 1},
	OpListWithCapacity: {1, 2},
	OpSharedRefNew:     {1, 1},
	OpSharedRefClone:   {1, 1},
	OpSharedRefDrop:    {1},
	OpBoundsCheck:      {1, 1},

	OpCallStatic:   {1, 4, 1, 1}, // dst, func_id:u32, base_arg_reg, arg_count
	OpCallVirtual:  {1, 1, 1, 1}, // dst, receiver_reg, vtable_index, arg_count
	OpCallDynamic:  {1, 1, 1, 1}, // dst, callable_reg, base_arg_reg, arg_count
	OpMakeClosure:  {1, 4},       // dst, func_id:u32
	OpUpvalueLoad:  {1, 1},
	OpUpvalueStore: {1, 1},
	OpCloseUpvalue: {1},

	OpStringLength:    {1, 1},
	OpStringConcat:    {1, 1, 1},
	OpStringEqual:     {1, 1, 1},
	OpStringGetChar:   {1, 1, 1},
	OpStringFromInt:   {1, 1},
	OpStringFromFloat: {1, 1},

	OpTryBegin: {4}, // handler relative offset
	OpTryEnd:   {},
	OpThrow:    {1},
	OpRethrow:  {},

	OpTypeCheck: {1, 1},
	OpCast:      {1, 1},
	OpTypeOf:    {1, 1},

	OpInvalid: {},
}

func init() {
	for op := OpI64Add; op <= OpI64Not; op++ {
		if op == OpI64Neg || op == OpI64Not {
			operandSizes[op] = []int{1, 1} // dst, src
		} else {
			operandSizes[op] = []int{1, 1, 1} // dst, left, right
		}
	}
	for op := OpI32Add; op <= OpI32Not; op++ {
		if op == OpI32Neg || op == OpI32Not {
			operandSizes[op] = []int{1, 1}
		} else {
			operandSizes[op] = []int{1, 1, 1}
		}
	}
	for op := OpF64Add; op <= OpF64Neg; op++ {
		if op == OpF64Neg {
			operandSizes[op] = []int{1, 1}
		} else {
			operandSizes[op] = []int{1, 1, 1}
		}
	}
	for op := OpF32Add; op <= OpF32Neg; op++ {
		if op == OpF32Neg {
			operandSizes[op] = []int{1, 1}
		} else {
			operandSizes[op] = []int{1, 1, 1}
		}
	}
	for op := OpI64Eq; op <= OpI32Ge; op++ {
		operandSizes[op] = []int{1, 1, 1} // dst, left, right
	}
}

// names holds the stable disassembly name for each opcode.
var names = map[Opcode]string{
	OpNop: "nop", OpReturn: "return", OpReturnValue: "return.value",
	OpJump: "jump", OpJumpIf: "jump.if", OpJumpIfNot: "jump.if_not",
	OpSwitch: "switch", OpLoopStart: "loop.start", OpLoopIncrement: "loop.inc",
	OpTailCall: "tail_call", OpYield: "yield", OpLabel: "label",

	OpMove: "move", OpLoadConstant: "load.constant", OpLoadLocal: "load.local",
	OpStoreLocal: "store.local", OpLoadArgument: "load.argument",

	OpI64Add: "i64.add", OpI64Sub: "i64.sub", OpI64Mul: "i64.mul",
	OpI64Div: "i64.div", OpI64Rem: "i64.rem", OpI64And: "i64.and",
	OpI64Or: "i64.or", OpI64Xor: "i64.xor", OpI64Shl: "i64.shl",
	OpI64Shr: "i64.shr", OpI64Neg: "i64.neg", OpI64Not: "i64.not",

	OpI32Add: "i32.add", OpI32Sub: "i32.sub", OpI32Mul: "i32.mul",
	OpI32Div: "i32.div", OpI32Rem: "i32.rem", OpI32And: "i32.and",
	OpI32Or: "i32.or", OpI32Xor: "i32.xor", OpI32Shl: "i32.shl",
	OpI32Shr: "i32.shr", OpI32Neg: "i32.neg", OpI32Not: "i32.not",

	OpF64Add: "f64.add", OpF64Sub: "f64.sub", OpF64Mul: "f64.mul",
	OpF64Div: "f64.div", OpF64Neg: "f64.neg",

	OpF32Add: "f32.add", OpF32Sub: "f32.sub", OpF32Mul: "f32.mul",
	OpF32Div: "f32.div", OpF32Neg: "f32.neg",

	OpI64Eq: "i64.eq", OpI64Ne: "i64.ne", OpI64Lt: "i64.lt", OpI64Le: "i64.le",
	OpI64Gt: "i64.gt", OpI64Ge: "i64.ge",
	OpF64Eq: "f64.eq", OpF64Ne: "f64.ne", OpF64Lt: "f64.lt", OpF64Le: "f64.le",
	OpF64Gt: "f64.gt", OpF64Ge: "f64.ge",
	OpI32Eq: "i32.eq", OpI32Ne: "i32.ne", OpI32Lt: "i32.lt", OpI32Le: "i32.le",
	OpI32Gt: "i32.gt", OpI32Ge: "i32.ge",

	OpHeapAlloc: "heap.alloc", OpStackAlloc: "stack.alloc", OpDrop: "drop",
	OpFieldGet: "field.get", OpFieldSet: "field.set",
	OpElementGet: "element.get", OpElementSet: "element.set",
	OpListWithCapacity: "list.with_capacity",
	OpSharedRefNew:      "shared_ref.new", OpSharedRefClone: "shared_ref.clone",
	OpSharedRefDrop: "shared_ref.drop", OpBoundsCheck: "bounds.check",

	OpCallStatic: "call.static", OpCallVirtual: "call.virtual",
	OpCallDynamic: "call.dynamic", OpMakeClosure: "make.closure",
	OpUpvalueLoad: "upvalue.load", OpUpvalueStore: "upvalue.store",
	OpCloseUpvalue: "upvalue.close",

	OpStringLength: "string.length", OpStringConcat: "string.concat",
	OpStringEqual: "string.equal", OpStringGetChar: "string.get_char",
	OpStringFromInt: "string.from_int", OpStringFromFloat: "string.from_float",

	OpTryBegin: "try.begin", OpTryEnd: "try.end", OpThrow: "throw",
	OpRethrow: "rethrow",

	OpTypeCheck: "type.check", OpCast: "cast", OpTypeOf: "type.of",

	OpInvalid: "invalid",
}

// Name returns the stable disassembly name for the opcode, or "invalid"
// for unrecognized bytes.
func (o Opcode) Name() string {
	if n, ok := names[o]; ok {
		return n
	}
	return "invalid"
}

func (o Opcode) String() string {
	return fmt.Sprintf("%s(0x%02X)", o.Name(), byte(o))
}

// OperandSizes returns the nominal byte width of each operand in
// encoding order. An unknown opcode returns nil.
func (o Opcode) OperandSizes() []int {
	sizes, ok := operandSizes[o]
	if !ok {
		return nil
	}
	return sizes
}

// Arity is the nominal operand count (not byte width).
func (o Opcode) Arity() int {
	return len(o.OperandSizes())
}

// Valid reports whether the byte decodes to a known opcode.
func (o Opcode) Valid() bool {
	_, ok := operandSizes[o]
	return ok && o != OpInvalid
}

func (o Opcode) IsJump() bool {
	switch o {
	case OpJump, OpJumpIf, OpJumpIfNot, OpSwitch:
		return true
	}
	return false
}

func (o Opcode) IsCall() bool {
	switch o {
	case OpCallStatic, OpCallVirtual, OpCallDynamic, OpTailCall:
		return true
	}
	return false
}

func (o Opcode) IsReturn() bool {
	return o == OpReturn || o == OpReturnValue
}

func (o Opcode) IsLoad() bool {
	switch o {
	case OpLoadConstant, OpLoadLocal, OpLoadArgument, OpUpvalueLoad:
		return true
	}
	return false
}

func (o Opcode) IsStore() bool {
	switch o {
	case OpStoreLocal, OpUpvalueStore:
		return true
	}
	return false
}

func (o Opcode) IsIntegerArithmetic() bool {
	return (o >= OpI64Add && o <= OpI64Not) || (o >= OpI32Add && o <= OpI32Not)
}

func (o Opcode) IsFloatArithmetic() bool {
	return (o >= OpF64Add && o <= OpF64Neg) || (o >= OpF32Add && o <= OpF32Neg)
}

func (o Opcode) IsNumeric() bool {
	return o.IsIntegerArithmetic() || o.IsFloatArithmetic() ||
		(o >= OpI64Eq && o <= OpI32Ge)
}
