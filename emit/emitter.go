package emit

import (
	"fmt"

	"github.com/yaoxiang-lang/yaoxiang/ir"
	"github.com/yaoxiang-lang/yaoxiang/opcode"
)

// CompiledFunction is the emitter's output for one function: the
// byte-encoded instruction stream plus the metadata the interpreter
// needs to run it (the containing CompiledModule adds the shared
// constant pool, globals, and function table — see package module).
type CompiledFunction struct {
	Name       string
	Params     []ir.Type
	Return     ir.Type
	LocalCount int
	Code       []byte
}

// FuncIDs resolves a function name to its stable numeric id, consulted
// when lowering call-static/call-virtual/make-closure. The caller builds
// it once all functions (including monomorphized instances) have been
// assigned ids, and passes the same ids to module.Builder.AddFunction.
type FuncIDs map[string]uint32

// Emitter walks one function's basic blocks in order and assembles its
// byte-encoded instruction stream, interning constants into pool as it
// goes.
type Emitter struct {
	pool    *ConstPool
	funcIDs FuncIDs
}

func NewEmitter(pool *ConstPool, funcIDs FuncIDs) *Emitter {
	return &Emitter{pool: pool, funcIDs: funcIDs}
}

// tempRegionStart is the lowest register index reserved for
// emitter-synthesized temporaries (materialized inlined constants).
const tempRegionStart = 200

type jumpPatch struct {
	pos      int // byte offset of the offset field within out
	width    int // 2 (i16) or 4 (i32)
	instrEnd int // byte offset right after the operand (relative-offset base)
	target   string
}

// EmitFunction lowers fn's blocks into a single byte stream. Forward
// jumps are resolved with a deferred-patch strategy: placeholder zero
// bytes are written in a first pass, block start offsets are recorded
// as each block is emitted, and every jump's relative offset is
// backpatched once the whole function has been laid out.
func (e *Emitter) EmitFunction(fn *ir.Function) (CompiledFunction, error) {
	var out []byte
	blockOffset := make(map[string]int, len(fn.Blocks))
	var patches []jumpPatch
	// Temp registers share the single-byte register space with ordinary
	// registers (the encoding has no separate temp-index field), so they
	// are carved from the top of the byte range; a function using more
	// than tempRegionStart real registers would collide, which the
	// monomorphizer's register allocator is responsible for avoiding.
	nextTemp := uint32(tempRegionStart)

	for _, blk := range fn.Blocks {
		blockOffset[blk.Label] = len(out)
		for _, instr := range blk.Instrs {
			bytes, p, err := e.lower(instr, len(out), &nextTemp)
			if err != nil {
				return CompiledFunction{}, fmt.Errorf("function %s, block %s: %w", fn.Name, blk.Label, err)
			}
			out = append(out, bytes...)
			patches = append(patches, p...)
		}
	}

	for _, p := range patches {
		target, ok := blockOffset[p.target]
		if !ok {
			return CompiledFunction{}, fmt.Errorf("function %s: jump to undefined label %q", fn.Name, p.target)
		}
		rel := int64(target - p.instrEnd)
		switch p.width {
		case 2:
			writeInt16At(out, p.pos, int16(rel))
		case 4:
			writeInt32At(out, p.pos, int32(rel))
		default:
			return CompiledFunction{}, fmt.Errorf("function %s: unsupported jump width %d", fn.Name, p.width)
		}
	}

	return CompiledFunction{
		Name:       fn.Name,
		Params:     fn.Params,
		Return:     fn.Return,
		LocalCount: len(fn.Locals),
		Code:       out,
	}, nil
}

func writeInt16At(buf []byte, pos int, v int16) {
	var tmp []byte
	tmp = opcode.PutInt16(tmp, v)
	copy(buf[pos:pos+2], tmp)
}

func writeInt32At(buf []byte, pos int, v int32) {
	var tmp []byte
	tmp = opcode.PutInt32(tmp, v)
	copy(buf[pos:pos+4], tmp)
}

// irOpcodes maps IR opcode mnemonics (used by ir.Instr.Op) to their
// byte-level opcode.Opcode.
var irOpcodes = map[string]opcode.Opcode{
	"nop": opcode.OpNop, "return": opcode.OpReturn, "return.value": opcode.OpReturnValue,
	"jump": opcode.OpJump, "jump.if": opcode.OpJumpIf, "jump.if_not": opcode.OpJumpIfNot,
	"label": opcode.OpLabel,

	"move": opcode.OpMove, "load.constant": opcode.OpLoadConstant,
	"load.local": opcode.OpLoadLocal, "store.local": opcode.OpStoreLocal,
	"load.argument": opcode.OpLoadArgument,

	"i64.add": opcode.OpI64Add, "i64.sub": opcode.OpI64Sub, "i64.mul": opcode.OpI64Mul,
	"i64.div": opcode.OpI64Div, "i64.rem": opcode.OpI64Rem,
	"i64.and": opcode.OpI64And, "i64.or": opcode.OpI64Or, "i64.xor": opcode.OpI64Xor,
	"i64.shl": opcode.OpI64Shl, "i64.shr": opcode.OpI64Shr,
	"i64.neg": opcode.OpI64Neg, "i64.not": opcode.OpI64Not,

	"f64.add": opcode.OpF64Add, "f64.sub": opcode.OpF64Sub, "f64.mul": opcode.OpF64Mul,
	"f64.div": opcode.OpF64Div, "f64.neg": opcode.OpF64Neg,

	"i64.eq": opcode.OpI64Eq, "i64.ne": opcode.OpI64Ne, "i64.lt": opcode.OpI64Lt,
	"i64.le": opcode.OpI64Le, "i64.gt": opcode.OpI64Gt, "i64.ge": opcode.OpI64Ge,

	"call.static": opcode.OpCallStatic, "call.virtual": opcode.OpCallVirtual,
	"call.dynamic": opcode.OpCallDynamic, "make.closure": opcode.OpMakeClosure,
	"upvalue.load": opcode.OpUpvalueLoad, "upvalue.store": opcode.OpUpvalueStore,

	"string.length": opcode.OpStringLength, "string.concat": opcode.OpStringConcat,
	"string.equal": opcode.OpStringEqual,

	"heap.alloc": opcode.OpHeapAlloc, "field.get": opcode.OpFieldGet,
	"field.set": opcode.OpFieldSet, "element.get": opcode.OpElementGet,
	"element.set": opcode.OpElementSet,

	"shared_ref.new": opcode.OpSharedRefNew, "shared_ref.clone": opcode.OpSharedRefClone,
	"shared_ref.drop": opcode.OpSharedRefDrop,

	"try.begin": opcode.OpTryBegin, "try.end": opcode.OpTryEnd,
	"throw": opcode.OpThrow, "rethrow": opcode.OpRethrow,

	"bounds.check": opcode.OpBoundsCheck,
	"type.check":   opcode.OpTypeCheck, "cast": opcode.OpCast, "type.of": opcode.OpTypeOf,
	"yield": opcode.OpYield,
}

// lower encodes one IR instruction, returning its bytes, any jump
// patches it introduced (positions are relative to the function-level
// stream, via baseOffset), and an error if the instruction references
// an unresolvable function name.
func (e *Emitter) lower(instr ir.Instr, baseOffset int, nextTemp *uint32) ([]byte, []jumpPatch, error) {
	op, ok := irOpcodes[instr.Op]
	if !ok {
		return nil, nil, fmt.Errorf("unknown IR opcode %q", instr.Op)
	}

	var out []byte
	var patches []jumpPatch

	// Materialize any inlined constant operand with a preceding
	// load-constant into a fresh temp register, matching spec §4.2's
	// "inlined constants are first materialized by a preceding
	// load-constant" rule. A load.constant's own operand is the pool
	// entry it loads, so it is interned directly below instead.
	operands := make([]ir.Operand, len(instr.Operands))
	copy(operands, instr.Operands)
	for i, o := range operands {
		if o.Form == ir.FormConstant && op != opcode.OpLoadConstant {
			idx := e.pool.Intern(o.Const)
			tempReg := *nextTemp
			*nextTemp++

			var loadConst []byte
			loadConst = append(loadConst, byte(opcode.OpLoadConstant))
			loadConst = opcode.PutUint8(loadConst, byte(tempReg))
			loadConst = opcode.PutUint16(loadConst, uint16(idx))
			out = append(out, loadConst...)

			operands[i] = ir.Register(tempReg)
		}
	}
	// out currently holds any synthesized load-constant instructions
	// concatenated; the main instruction is appended after them below.

	switch op {
	case opcode.OpJump:
		body := []byte{byte(op)}
		patchPos := len(out) + len(body)
		body = opcode.PutInt32(body, 0)
		out = append(out, body...)
		patches = append(patches, jumpPatch{pos: baseOffset + patchPos, width: 4, instrEnd: baseOffset + len(out), target: operands[0].Label})
		return out, patches, nil

	case opcode.OpJumpIf, opcode.OpJumpIfNot:
		body := []byte{byte(op)}
		body = opcode.PutUint8(body, regByte(operands[0]))
		patchPos := len(out) + len(body)
		body = opcode.PutInt16(body, 0)
		out = append(out, body...)
		patches = append(patches, jumpPatch{pos: baseOffset + patchPos, width: 2, instrEnd: baseOffset + len(out), target: operands[1].Label})
		return out, patches, nil

	case opcode.OpLoadConstant:
		idx := e.pool.Intern(operands[0].Const)
		body := []byte{byte(op)}
		body = opcode.PutUint8(body, regByte(instr.Dst))
		body = opcode.PutUint16(body, uint16(idx))
		return append(out, body...), patches, nil

	case opcode.OpCallStatic:
		funcName := operands[0].Label
		id, ok := e.funcIDs[funcName]
		if !ok {
			return nil, nil, fmt.Errorf("call to unresolved function %q", funcName)
		}
		body := []byte{byte(op)}
		body = opcode.PutUint8(body, regByte(instr.Dst))
		body = opcode.PutUint32(body, id)
		body = opcode.PutUint8(body, regByte(operands[1]))
		body = opcode.PutUint8(body, byte(operands[2].Index))
		return append(out, body...), patches, nil

	case opcode.OpMakeClosure:
		funcName := operands[0].Label
		id, ok := e.funcIDs[funcName]
		if !ok {
			return nil, nil, fmt.Errorf("closure over unresolved function %q", funcName)
		}
		body := []byte{byte(op)}
		body = opcode.PutUint8(body, regByte(instr.Dst))
		body = opcode.PutUint32(body, id)
		return append(out, body...), patches, nil

	case opcode.OpStoreLocal:
		body := []byte{byte(op)}
		body = opcode.PutUint16(body, uint16(instr.Dst.Index))
		body = opcode.PutUint8(body, regByte(operands[0]))
		return append(out, body...), patches, nil

	case opcode.OpLoadLocal, opcode.OpLoadArgument:
		body := []byte{byte(op)}
		body = opcode.PutUint8(body, regByte(instr.Dst))
		body = opcode.PutUint16(body, uint16(operands[0].Index))
		return append(out, body...), patches, nil

	default:
		// Generic lowering: dst byte (if the opcode takes one) followed
		// by one byte per remaining operand. This covers the
		// register-in/register-out arithmetic, comparison, string,
		// aggregate, and exception opcodes, whose encodings are all
		// "dst:u8, ...u8 operands" per spec §4.1.
		body := []byte{byte(op)}
		sizes := op.OperandSizes()
		if len(sizes) > 0 {
			body = opcode.PutUint8(body, regByte(instr.Dst))
			for i, o := range operands {
				pos := i + 1
				if pos >= len(sizes) {
					break
				}
				switch sizes[pos] {
				case 1:
					body = opcode.PutUint8(body, regByte(o))
				case 2:
					body = opcode.PutUint16(body, uint16(o.Index))
				case 4:
					body = opcode.PutUint32(body, o.Index)
				}
			}
		}
		return append(out, body...), patches, nil
	}
}

func regByte(o ir.Operand) byte {
	return byte(o.Index)
}
