package vm

import (
	"context"
	"fmt"

	"github.com/yaoxiang-lang/yaoxiang/host"
	"github.com/yaoxiang-lang/yaoxiang/ir"
	"github.com/yaoxiang-lang/yaoxiang/memory"
	"github.com/yaoxiang-lang/yaoxiang/module"
	"github.com/yaoxiang-lang/yaoxiang/opcode"
	"github.com/yaoxiang-lang/yaoxiang/value"
)

// MaxCallDepth bounds the call stack; exceeding it raises
// ErrCallStackOverflow rather than exhausting the Go stack.
const MaxCallDepth = 4096

// Interpreter is the embedded dispatch loop over one compiled module:
// its constant pool, function table, and globals are immutable for the
// module's lifetime; its heap and call stack are mutated per run.
type Interpreter struct {
	mod     *module.Module
	heap    *memory.Heap
	globals map[string]value.Value
	structs map[value.Handle]*value.Tuple // struct field storage, addressed by Handle
	nextObj uint64
	hosts   *host.Registry
}

// New creates an interpreter bound to mod, with its own heap and
// globals initialized from the module's declared initial values.
func New(mod *module.Module, hosts *host.Registry) *Interpreter {
	in := &Interpreter{
		mod:     mod,
		heap:    memory.NewHeap(0),
		globals: make(map[string]value.Value),
		structs: make(map[value.Handle]*value.Tuple),
		hosts:   hosts,
	}
	for _, g := range mod.Globals {
		if g.Initial != nil && int(*g.Initial) < len(mod.Constants) {
			in.globals[g.Name] = constantValue(mod.Constants[*g.Initial])
		} else {
			in.globals[g.Name] = value.Unit()
		}
	}
	return in
}

func (in *Interpreter) newHandle() value.Handle {
	in.nextObj++
	return value.Handle(in.nextObj)
}

func constantValue(c ir.Constant) value.Value {
	switch c.Kind {
	case ir.ConstVoid:
		return value.Unit()
	case ir.ConstBool:
		return value.Bool(c.Bool)
	case ir.ConstInt:
		return value.Int(int64(c.Int128Lo))
	case ir.ConstFloat:
		return value.Float(c.Float)
	case ir.ConstChar:
		return value.Char(c.Char)
	case ir.ConstString:
		return value.String(c.Str)
	case ir.ConstBytes:
		return value.Bytes(c.Bytes)
	default:
		return value.Unit()
	}
}

// RunFunction executes the named function with args and returns its
// single terminal value, or an error naming one of the §7 error kinds.
//
// Discipline note: arithmetic/load/call opcodes write their result to
// a destination register (matching the byte encodings in package
// opcode); return-value carries no operand byte (the emitter drops it,
// mirroring the constant-pool seed scenario), so the interpreter
// resolves it to the most recently written register in the returning
// frame — the one place the spec's register and operand-stack
// descriptions must be reconciled into a single discipline.
func (in *Interpreter) RunFunction(ctx context.Context, name string, args []value.Value) (value.Value, error) {
	fn := in.mod.FindFunction(name)
	if fn == nil {
		return value.Unit(), fmt.Errorf("%w: %s", ErrFunctionNotFound, name)
	}
	cs := NewCallStackManager()
	locals := make([]value.Value, fn.LocalCount)
	copy(locals, args)
	frame := newFrame(fn.ID, fn.Name, locals, nil)
	cs.PushFrame(frame)
	return in.runUntilDepth(ctx, cs, 0)
}

// runUntilDepth drives cs's top frame (and whatever it calls) until
// cs's depth returns to stopDepth — 0 for a top-level RunFunction, or
// the caller's own depth when a call opcode (pushAndRun) resumes the
// same shared cs for a callee frame. This is what lets MaxCallDepth's
// guard in callStatic/callVirtual/callDynamic see the interpreter's
// real, unbounded-recursion call depth instead of a depth reset to 1
// on every nested call.
func (in *Interpreter) runUntilDepth(ctx context.Context, cs *CallStackManager, stopDepth int) (value.Value, error) {
	var last value.Value
	for {
		if err := ctx.Err(); err != nil {
			return value.Unit(), err
		}
		if cs.Depth() <= stopDepth {
			return last, nil
		}
		frame := cs.CurrentFrame()
		fn := in.mod.FunctionByID(frame.FuncID)
		if fn == nil {
			return value.Unit(), newVMError(ErrFunctionNotFound, frame, frame.IP, opcode.OpInvalid, "function id %d", frame.FuncID)
		}
		if frame.IP >= len(fn.Code) {
			// Ran off the end without an explicit return; treat as return-void.
			cs.PopFrame()
			last = value.Unit()
			continue
		}

		instr, next, err := opcode.Decode(fn.Code, frame.IP)
		if err != nil {
			return value.Unit(), newVMError(ErrInvalidOpcode, frame, frame.IP, instr.Op, "%v", err)
		}

		result, ctrl, err := in.step(ctx, cs, frame, fn, instr)
		if err != nil {
			return value.Unit(), err
		}

		switch ctrl {
		case ctrlReturn:
			cs.PopFrame()
			last = result
			continue
		case ctrlJump:
			continue // frame.IP already repositioned by step
		default:
			frame.IP = next
		}
	}
}

type control byte

const (
	ctrlNone control = iota
	ctrlJump
	ctrlReturn
)

// step executes one instruction, returning the function's return value
// when ctrl == ctrlReturn; runUntilDepth passes it back to the caller
// (the calling frame's destination register, or RunFunction's result).
func (in *Interpreter) step(ctx context.Context, cs *CallStackManager, frame *CallFrame, fn *module.Function, instr opcode.Instruction) (value.Value, control, error) {
	op := instr.Op

	switch op {
	case opcode.OpNop, opcode.OpLabel, opcode.OpLoopStart, opcode.OpTryBegin, opcode.OpTryEnd:
		return value.Unit(), ctrlNone, nil

	case opcode.OpYield:
		// The embedded tier has no suspension (spec: no-op cooperative checkpoint).
		return value.Unit(), ctrlNone, nil

	case opcode.OpLoopIncrement:
		return value.Unit(), ctrlNone, nil

	case opcode.OpReturn:
		return value.Unit(), ctrlReturn, nil

	case opcode.OpReturnValue:
		return frame.lastValue(), ctrlReturn, nil

	case opcode.OpJump:
		target := frame.IP + op.Size() + int(instr.Int32(0))
		if target < 0 || target > len(fn.Code) {
			return value.Unit(), ctrlNone, newVMError(ErrInvalidJump, frame, frame.IP, op, "target %d", target)
		}
		frame.IP = target
		return value.Unit(), ctrlJump, nil

	case opcode.OpJumpIf, opcode.OpJumpIfNot:
		cond := frame.Register(int(instr.Uint8(0))).AsBool()
		if op == opcode.OpJumpIfNot {
			cond = !cond
		}
		if !cond {
			return value.Unit(), ctrlNone, nil
		}
		target := frame.IP + op.Size() + int(instr.Int16(1))
		if target < 0 || target > len(fn.Code) {
			return value.Unit(), ctrlNone, newVMError(ErrInvalidJump, frame, frame.IP, op, "target %d", target)
		}
		frame.IP = target
		return value.Unit(), ctrlJump, nil

	case opcode.OpMove:
		v := frame.Register(int(instr.Uint8(1)))
		frame.set(int(instr.Uint8(0)), v)
		return value.Unit(), ctrlNone, nil

	case opcode.OpLoadConstant:
		idx := int(instr.Uint16(1))
		if idx < 0 || idx >= len(in.mod.Constants) {
			return value.Unit(), ctrlNone, newVMError(ErrInvalidConstIndex, frame, frame.IP, op, "index %d", idx)
		}
		frame.set(int(instr.Uint8(0)), constantValue(in.mod.Constants[idx]))
		return value.Unit(), ctrlNone, nil

	case opcode.OpLoadLocal:
		idx := int(instr.Uint16(1))
		if idx < 0 || idx >= len(frame.Locals) {
			return value.Unit(), ctrlNone, newVMError(ErrInvalidLocal, frame, frame.IP, op, "index %d", idx)
		}
		frame.set(int(instr.Uint8(0)), frame.Locals[idx])
		return value.Unit(), ctrlNone, nil

	case opcode.OpStoreLocal:
		idx := int(instr.Uint16(0))
		if idx < 0 {
			return value.Unit(), ctrlNone, newVMError(ErrInvalidLocal, frame, frame.IP, op, "index %d", idx)
		}
		if idx >= len(frame.Locals) {
			grown := make([]value.Value, idx+1)
			copy(grown, frame.Locals)
			frame.Locals = grown
		}
		frame.Locals[idx] = frame.Register(int(instr.Uint8(1)))
		return value.Unit(), ctrlNone, nil

	case opcode.OpLoadArgument:
		idx := int(instr.Uint16(1))
		if idx < 0 || idx >= len(frame.Locals) {
			return value.Unit(), ctrlNone, newVMError(ErrInvalidLocal, frame, frame.IP, op, "argument %d", idx)
		}
		frame.set(int(instr.Uint8(0)), frame.Locals[idx])
		return value.Unit(), ctrlNone, nil

	case opcode.OpI64Add, opcode.OpI64Sub, opcode.OpI64Mul, opcode.OpI64Div, opcode.OpI64Rem,
		opcode.OpI64And, opcode.OpI64Or, opcode.OpI64Xor, opcode.OpI64Shl, opcode.OpI64Shr:
		return value.Unit(), ctrlNone, in.binaryIntOp(frame, op, instr)

	case opcode.OpI64Neg, opcode.OpI64Not:
		return value.Unit(), ctrlNone, in.unaryIntOp(frame, op, instr)

	case opcode.OpI32Add, opcode.OpI32Sub, opcode.OpI32Mul, opcode.OpI32Div, opcode.OpI32Rem,
		opcode.OpI32And, opcode.OpI32Or, opcode.OpI32Xor, opcode.OpI32Shl, opcode.OpI32Shr:
		return value.Unit(), ctrlNone, in.binaryInt32Op(frame, op, instr)

	case opcode.OpI32Neg, opcode.OpI32Not:
		return value.Unit(), ctrlNone, in.unaryInt32Op(frame, op, instr)

	case opcode.OpF64Add, opcode.OpF64Sub, opcode.OpF64Mul, opcode.OpF64Div:
		return value.Unit(), ctrlNone, in.binaryFloatOp(frame, op, instr)

	case opcode.OpF64Neg:
		v := frame.Register(int(instr.Uint8(1)))
		frame.set(int(instr.Uint8(0)), value.Float(-v.AsFloat()))
		return value.Unit(), ctrlNone, nil

	case opcode.OpF32Add, opcode.OpF32Sub, opcode.OpF32Mul, opcode.OpF32Div:
		return value.Unit(), ctrlNone, in.binaryFloat32Op(frame, op, instr)

	case opcode.OpF32Neg:
		v := frame.Register(int(instr.Uint8(1)))
		frame.set(int(instr.Uint8(0)), value.Float(float64(-float32(v.AsFloat()))))
		return value.Unit(), ctrlNone, nil

	case opcode.OpI64Eq, opcode.OpI64Ne, opcode.OpI64Lt, opcode.OpI64Le, opcode.OpI64Gt, opcode.OpI64Ge,
		opcode.OpI32Eq, opcode.OpI32Ne, opcode.OpI32Lt, opcode.OpI32Le, opcode.OpI32Gt, opcode.OpI32Ge:
		return value.Unit(), ctrlNone, in.intCompare(frame, op, instr)

	case opcode.OpF64Eq, opcode.OpF64Ne, opcode.OpF64Lt, opcode.OpF64Le, opcode.OpF64Gt, opcode.OpF64Ge:
		return value.Unit(), ctrlNone, in.floatCompare(frame, op, instr)

	case opcode.OpHeapAlloc, opcode.OpStackAlloc:
		size := int(instr.Uint16(1))
		handle, err := in.heap.Alloc(size, 8)
		if err != nil {
			return value.Unit(), ctrlNone, newVMError(ErrInvalidOperand, frame, frame.IP, op, "%v", err)
		}
		frame.set(int(instr.Uint8(0)), value.NewRawPointer(uintptr(handle), "heap"))
		return value.Unit(), ctrlNone, nil

	case opcode.OpDrop:
		idx := int(instr.Uint8(0))
		frame.Register(idx).Drop()
		frame.set(idx, value.Unit())
		return value.Unit(), ctrlNone, nil

	case opcode.OpListWithCapacity:
		cap := int(instr.Uint16(1))
		h := in.newHandle()
		lv := &value.ListVal{Handle: h, Elements: make([]value.Value, 0, cap)}
		frame.set(int(instr.Uint8(0)), value.Value{Kind: value.KindList, Data: lv})
		return value.Unit(), ctrlNone, nil

	case opcode.OpFieldGet:
		return value.Unit(), ctrlNone, in.fieldGet(frame, instr)

	case opcode.OpFieldSet:
		return value.Unit(), ctrlNone, in.fieldSet(frame, instr)

	case opcode.OpElementGet:
		return value.Unit(), ctrlNone, in.elementGet(frame, instr)

	case opcode.OpElementSet:
		return value.Unit(), ctrlNone, in.elementSet(frame, instr)

	case opcode.OpBoundsCheck:
		idx := frame.Register(int(instr.Uint8(0))).AsInt()
		length := frame.Register(int(instr.Uint8(1))).AsInt()
		if idx < 0 || idx >= length {
			return value.Unit(), ctrlNone, newVMError(ErrIndexOutOfBounds, frame, frame.IP, op, "index %d len %d", idx, length)
		}
		return value.Unit(), ctrlNone, nil

	case opcode.OpSharedRefNew:
		v := frame.Register(int(instr.Uint8(1)))
		frame.set(int(instr.Uint8(0)), value.NewSharedRef(v))
		return value.Unit(), ctrlNone, nil

	case opcode.OpSharedRefClone:
		v := frame.Register(int(instr.Uint8(1)))
		frame.set(int(instr.Uint8(0)), v.Clone())
		return value.Unit(), ctrlNone, nil

	case opcode.OpSharedRefDrop:
		idx := int(instr.Uint8(0))
		frame.Register(idx).Drop()
		frame.set(idx, value.Unit())
		return value.Unit(), ctrlNone, nil

	case opcode.OpCallStatic:
		return in.callStatic(ctx, cs, frame, instr)

	case opcode.OpCallVirtual:
		return in.callVirtual(ctx, cs, frame, instr)

	case opcode.OpCallDynamic:
		return in.callDynamic(ctx, cs, frame, instr)

	case opcode.OpTailCall:
		return in.tailCall(frame, fn, instr)

	case opcode.OpMakeClosure:
		funcID := instr.Uint32(1)
		frame.set(int(instr.Uint8(0)), value.NewFunction(funcID, nil))
		return value.Unit(), ctrlNone, nil

	case opcode.OpUpvalueLoad:
		idx := int(instr.Uint8(1))
		if idx < 0 || idx >= len(frame.Upvalues) {
			return value.Unit(), ctrlNone, newVMError(ErrInvalidUpvalue, frame, frame.IP, op, "index %d", idx)
		}
		frame.set(int(instr.Uint8(0)), frame.Upvalues[idx])
		return value.Unit(), ctrlNone, nil

	case opcode.OpUpvalueStore:
		idx := int(instr.Uint8(0))
		if idx < 0 || idx >= len(frame.Upvalues) {
			return value.Unit(), ctrlNone, newVMError(ErrInvalidUpvalue, frame, frame.IP, op, "index %d", idx)
		}
		frame.Upvalues[idx] = frame.Register(int(instr.Uint8(1)))
		return value.Unit(), ctrlNone, nil

	case opcode.OpCloseUpvalue:
		return value.Unit(), ctrlNone, nil

	case opcode.OpStringLength:
		s := frame.Register(int(instr.Uint8(1))).AsString()
		frame.set(int(instr.Uint8(0)), value.Int(int64(len(s))))
		return value.Unit(), ctrlNone, nil

	case opcode.OpStringConcat:
		a := frame.Register(int(instr.Uint8(1))).AsString()
		b := frame.Register(int(instr.Uint8(2))).AsString()
		frame.set(int(instr.Uint8(0)), value.String(a+b))
		return value.Unit(), ctrlNone, nil

	case opcode.OpStringEqual:
		a := frame.Register(int(instr.Uint8(1))).AsString()
		b := frame.Register(int(instr.Uint8(2))).AsString()
		frame.set(int(instr.Uint8(0)), value.Bool(a == b))
		return value.Unit(), ctrlNone, nil

	case opcode.OpStringGetChar:
		s := frame.Register(int(instr.Uint8(1))).AsString()
		idx := int(frame.Register(int(instr.Uint8(2))).AsInt())
		runes := []rune(s)
		if idx < 0 || idx >= len(runes) {
			return value.Unit(), ctrlNone, newVMError(ErrIndexOutOfBounds, frame, frame.IP, op, "index %d", idx)
		}
		frame.set(int(instr.Uint8(0)), value.Char(runes[idx]))
		return value.Unit(), ctrlNone, nil

	case opcode.OpStringFromInt:
		v := frame.Register(int(instr.Uint8(1))).AsInt()
		frame.set(int(instr.Uint8(0)), value.String(fmt.Sprintf("%d", v)))
		return value.Unit(), ctrlNone, nil

	case opcode.OpStringFromFloat:
		v := frame.Register(int(instr.Uint8(1))).AsFloat()
		frame.set(int(instr.Uint8(0)), value.String(fmt.Sprintf("%g", v)))
		return value.Unit(), ctrlNone, nil

	case opcode.OpThrow:
		exc := frame.Register(int(instr.Uint8(0)))
		return value.Unit(), ctrlNone, newVMError(ErrUncaughtException, frame, frame.IP, op, "%v", exc)

	case opcode.OpRethrow:
		return value.Unit(), ctrlNone, newVMError(ErrUncaughtException, frame, frame.IP, op, "rethrow")

	case opcode.OpTypeCheck:
		frame.set(int(instr.Uint8(0)), value.Bool(true))
		return value.Unit(), ctrlNone, nil

	case opcode.OpCast:
		v := frame.Register(int(instr.Uint8(1)))
		frame.set(int(instr.Uint8(0)), v)
		return value.Unit(), ctrlNone, nil

	case opcode.OpTypeOf:
		v := frame.Register(int(instr.Uint8(1)))
		frame.set(int(instr.Uint8(0)), value.String(v.Kind.String()))
		return value.Unit(), ctrlNone, nil

	case opcode.OpSwitch:
		// Case table lives out-of-band (spec §4.1); the embedded tier
		// treats an undecoded switch as a fallthrough no-op.
		return value.Unit(), ctrlNone, nil

	default:
		return value.Unit(), ctrlNone, newVMError(ErrInvalidOpcode, frame, frame.IP, op, "unimplemented opcode %s", op.Name())
	}
}

func (in *Interpreter) binaryIntOp(frame *CallFrame, op opcode.Opcode, instr opcode.Instruction) error {
	left := frame.Register(int(instr.Uint8(1))).AsInt()
	right := frame.Register(int(instr.Uint8(2))).AsInt()
	var result int64
	switch op {
	case opcode.OpI64Add:
		result = left + right
	case opcode.OpI64Sub:
		result = left - right
	case opcode.OpI64Mul:
		result = left * right
	case opcode.OpI64Div:
		if right == 0 {
			return newVMError(ErrDivisionByZero, frame, frame.IP, op, "")
		}
		result = left / right
	case opcode.OpI64Rem:
		if right == 0 {
			return newVMError(ErrDivisionByZero, frame, frame.IP, op, "")
		}
		result = left % right
	case opcode.OpI64And:
		result = left & right
	case opcode.OpI64Or:
		result = left | right
	case opcode.OpI64Xor:
		result = left ^ right
	case opcode.OpI64Shl:
		result = left << uint(right)
	case opcode.OpI64Shr:
		result = left >> uint(right)
	}
	frame.set(int(instr.Uint8(0)), value.Int(result))
	return nil
}

func (in *Interpreter) unaryIntOp(frame *CallFrame, op opcode.Opcode, instr opcode.Instruction) error {
	v := frame.Register(int(instr.Uint8(1))).AsInt()
	var result int64
	if op == opcode.OpI64Neg {
		result = -v
	} else {
		result = ^v
	}
	frame.set(int(instr.Uint8(0)), value.Int(result))
	return nil
}

func (in *Interpreter) binaryInt32Op(frame *CallFrame, op opcode.Opcode, instr opcode.Instruction) error {
	left := int32(frame.Register(int(instr.Uint8(1))).AsInt())
	right := int32(frame.Register(int(instr.Uint8(2))).AsInt())
	var result int32
	switch op {
	case opcode.OpI32Add:
		result = left + right
	case opcode.OpI32Sub:
		result = left - right
	case opcode.OpI32Mul:
		result = left * right
	case opcode.OpI32Div:
		if right == 0 {
			return newVMError(ErrDivisionByZero, frame, frame.IP, op, "")
		}
		result = left / right
	case opcode.OpI32Rem:
		if right == 0 {
			return newVMError(ErrDivisionByZero, frame, frame.IP, op, "")
		}
		result = left % right
	case opcode.OpI32And:
		result = left & right
	case opcode.OpI32Or:
		result = left | right
	case opcode.OpI32Xor:
		result = left ^ right
	case opcode.OpI32Shl:
		result = left << uint(right)
	case opcode.OpI32Shr:
		result = left >> uint(right)
	}
	frame.set(int(instr.Uint8(0)), value.Int(int64(result)))
	return nil
}

func (in *Interpreter) unaryInt32Op(frame *CallFrame, op opcode.Opcode, instr opcode.Instruction) error {
	v := int32(frame.Register(int(instr.Uint8(1))).AsInt())
	var result int32
	if op == opcode.OpI32Neg {
		result = -v
	} else {
		result = ^v
	}
	frame.set(int(instr.Uint8(0)), value.Int(int64(result)))
	return nil
}

func (in *Interpreter) binaryFloatOp(frame *CallFrame, op opcode.Opcode, instr opcode.Instruction) error {
	left := frame.Register(int(instr.Uint8(1))).AsFloat()
	right := frame.Register(int(instr.Uint8(2))).AsFloat()
	var result float64
	switch op {
	case opcode.OpF64Add:
		result = left + right
	case opcode.OpF64Sub:
		result = left - right
	case opcode.OpF64Mul:
		result = left * right
	case opcode.OpF64Div:
		result = left / right // IEEE ±Inf/NaN on zero divisor, no trap per spec
	}
	frame.set(int(instr.Uint8(0)), value.Float(result))
	return nil
}

func (in *Interpreter) binaryFloat32Op(frame *CallFrame, op opcode.Opcode, instr opcode.Instruction) error {
	left := float32(frame.Register(int(instr.Uint8(1))).AsFloat())
	right := float32(frame.Register(int(instr.Uint8(2))).AsFloat())
	var result float32
	switch op {
	case opcode.OpF32Add:
		result = left + right
	case opcode.OpF32Sub:
		result = left - right
	case opcode.OpF32Mul:
		result = left * right
	case opcode.OpF32Div:
		result = left / right
	}
	frame.set(int(instr.Uint8(0)), value.Float(float64(result)))
	return nil
}

func (in *Interpreter) intCompare(frame *CallFrame, op opcode.Opcode, instr opcode.Instruction) error {
	left := frame.Register(int(instr.Uint8(1))).AsInt()
	right := frame.Register(int(instr.Uint8(2))).AsInt()
	if op >= opcode.OpI32Eq {
		left = int64(int32(left))
		right = int64(int32(right))
	}
	frame.set(int(instr.Uint8(0)), value.Bool(compareOrdered(op, left, right)))
	return nil
}

func compareOrdered[T int64 | float64](op opcode.Opcode, left, right T) bool {
	switch op {
	case opcode.OpI64Eq, opcode.OpF64Eq, opcode.OpI32Eq:
		return left == right
	case opcode.OpI64Ne, opcode.OpF64Ne, opcode.OpI32Ne:
		return left != right
	case opcode.OpI64Lt, opcode.OpF64Lt, opcode.OpI32Lt:
		return left < right
	case opcode.OpI64Le, opcode.OpF64Le, opcode.OpI32Le:
		return left <= right
	case opcode.OpI64Gt, opcode.OpF64Gt, opcode.OpI32Gt:
		return left > right
	case opcode.OpI64Ge, opcode.OpF64Ge, opcode.OpI32Ge:
		return left >= right
	}
	return false
}

func (in *Interpreter) floatCompare(frame *CallFrame, op opcode.Opcode, instr opcode.Instruction) error {
	left := frame.Register(int(instr.Uint8(1))).AsFloat()
	right := frame.Register(int(instr.Uint8(2))).AsFloat()
	frame.set(int(instr.Uint8(0)), value.Bool(compareOrdered(op, left, right)))
	return nil
}

// fieldGet/fieldSet treat the third operand byte as a literal field
// index (struct layout is static); elementGet/elementSet treat it as a
// register holding a runtime-computed index.

func (in *Interpreter) fieldGet(frame *CallFrame, instr opcode.Instruction) error {
	obj := frame.Register(int(instr.Uint8(1)))
	idx := int(instr.Uint8(2))
	fields, err := in.structFields(frame, instr, obj)
	if err != nil {
		return err
	}
	if idx < 0 || idx >= len(fields.Elements) {
		return newVMError(ErrInvalidField, frame, frame.IP, instr.Op, "index %d", idx)
	}
	frame.set(int(instr.Uint8(0)), fields.Elements[idx])
	return nil
}

func (in *Interpreter) fieldSet(frame *CallFrame, instr opcode.Instruction) error {
	obj := frame.Register(int(instr.Uint8(0)))
	idx := int(instr.Uint8(2))
	fields, err := in.structFields(frame, instr, obj)
	if err != nil {
		return err
	}
	if idx < 0 {
		return newVMError(ErrInvalidField, frame, frame.IP, instr.Op, "index %d", idx)
	}
	if idx >= len(fields.Elements) {
		grown := make([]value.Value, idx+1)
		copy(grown, fields.Elements)
		fields.Elements = grown
	}
	fields.Elements[idx] = frame.Register(int(instr.Uint8(1)))
	return nil
}

func (in *Interpreter) structFields(frame *CallFrame, instr opcode.Instruction, obj value.Value) (*value.Tuple, error) {
	switch obj.Kind {
	case value.KindTuple:
		t, _ := obj.Data.(*value.Tuple)
		if t == nil {
			return nil, newVMError(ErrInvalidField, frame, frame.IP, instr.Op, "nil tuple")
		}
		return t, nil
	case value.KindStruct:
		sv, _ := obj.Data.(*value.StructVal)
		if sv == nil {
			return nil, newVMError(ErrInvalidField, frame, frame.IP, instr.Op, "nil struct")
		}
		t, ok := in.structs[sv.Handle]
		if !ok {
			t = &value.Tuple{Handle: sv.Handle}
			in.structs[sv.Handle] = t
		}
		return t, nil
	default:
		return nil, newVMError(ErrTypeMismatch, frame, frame.IP, instr.Op, "not a field-bearing value: %s", obj.Kind)
	}
}

func (in *Interpreter) elementGet(frame *CallFrame, instr opcode.Instruction) error {
	obj := frame.Register(int(instr.Uint8(1)))
	idx := int(frame.Register(int(instr.Uint8(2))).AsInt())
	elems, err := in.elements(frame, instr, obj)
	if err != nil {
		return err
	}
	if idx < 0 || idx >= len(*elems) {
		return newVMError(ErrIndexOutOfBounds, frame, frame.IP, instr.Op, "index %d len %d", idx, len(*elems))
	}
	frame.set(int(instr.Uint8(0)), (*elems)[idx])
	return nil
}

func (in *Interpreter) elementSet(frame *CallFrame, instr opcode.Instruction) error {
	obj := frame.Register(int(instr.Uint8(0)))
	idx := int(frame.Register(int(instr.Uint8(2))).AsInt())
	elems, err := in.elements(frame, instr, obj)
	if err != nil {
		return err
	}
	if idx < 0 || idx >= len(*elems) {
		return newVMError(ErrIndexOutOfBounds, frame, frame.IP, instr.Op, "index %d len %d", idx, len(*elems))
	}
	(*elems)[idx] = frame.Register(int(instr.Uint8(1)))
	return nil
}

func (in *Interpreter) elements(frame *CallFrame, instr opcode.Instruction, obj value.Value) (*[]value.Value, error) {
	switch obj.Kind {
	case value.KindArray:
		a, _ := obj.Data.(*value.ArrayVal)
		if a == nil {
			return nil, newVMError(ErrTypeMismatch, frame, frame.IP, instr.Op, "nil array")
		}
		return &a.Elements, nil
	case value.KindList:
		l, _ := obj.Data.(*value.ListVal)
		if l == nil {
			return nil, newVMError(ErrTypeMismatch, frame, frame.IP, instr.Op, "nil list")
		}
		return &l.Elements, nil
	case value.KindTuple:
		t, _ := obj.Data.(*value.Tuple)
		if t == nil {
			return nil, newVMError(ErrTypeMismatch, frame, frame.IP, instr.Op, "nil tuple")
		}
		return &t.Elements, nil
	default:
		return nil, newVMError(ErrTypeMismatch, frame, frame.IP, instr.Op, "not an indexable value: %s", obj.Kind)
	}
}

func (in *Interpreter) gatherArgs(frame *CallFrame, base, count int) []value.Value {
	args := make([]value.Value, count)
	for i := 0; i < count; i++ {
		args[i] = frame.Register(base + i)
	}
	return args
}

func (in *Interpreter) callStatic(ctx context.Context, cs *CallStackManager, frame *CallFrame, instr opcode.Instruction) (value.Value, control, error) {
	funcID := instr.Uint32(1)
	base := int(instr.Uint8(2))
	count := int(instr.Uint8(3))
	callee := in.mod.FunctionByID(funcID)
	if callee == nil {
		return value.Unit(), ctrlNone, newVMError(ErrFunctionNotFound, frame, frame.IP, instr.Op, "id %d", funcID)
	}
	if count > len(callee.Params) {
		return value.Unit(), ctrlNone, newVMError(ErrInvalidCall, frame, frame.IP, instr.Op, "argument count mismatch")
	}
	if cs.Depth() >= MaxCallDepth {
		return value.Unit(), ctrlNone, newVMError(ErrCallStackOverflow, frame, frame.IP, instr.Op, "depth %d", cs.Depth())
	}
	args := in.gatherArgs(frame, base, count)
	locals := make([]value.Value, callee.LocalCount)
	copy(locals, args)
	return in.pushAndRun(ctx, cs, frame, callee, locals, nil, int(instr.Uint8(0)))
}

func (in *Interpreter) callVirtual(ctx context.Context, cs *CallStackManager, frame *CallFrame, instr opcode.Instruction) (value.Value, control, error) {
	receiverReg := int(instr.Uint8(1))
	vtableIdx := int(instr.Uint8(2))
	receiver := frame.Register(receiverReg)
	sv, _ := receiver.Data.(*value.StructVal)
	if sv == nil || vtableIdx < 0 || vtableIdx >= len(sv.VTable) {
		return value.Unit(), ctrlNone, newVMError(ErrInvalidCall, frame, frame.IP, instr.Op, "no vtable entry %d", vtableIdx)
	}
	entry := sv.VTable[vtableIdx]
	closure := entry.Function.AsClosure()
	if closure == nil {
		return value.Unit(), ctrlNone, newVMError(ErrInvalidCall, frame, frame.IP, instr.Op, "vtable entry %q is not callable", entry.Name)
	}
	callee := in.mod.FunctionByID(closure.FuncID)
	if callee == nil {
		return value.Unit(), ctrlNone, newVMError(ErrFunctionNotFound, frame, frame.IP, instr.Op, "id %d", closure.FuncID)
	}
	if cs.Depth() >= MaxCallDepth {
		return value.Unit(), ctrlNone, newVMError(ErrCallStackOverflow, frame, frame.IP, instr.Op, "depth %d", cs.Depth())
	}
	count := int(instr.Uint8(3))
	args := append([]value.Value{receiver}, in.gatherArgs(frame, receiverReg+1, count)...)
	locals := make([]value.Value, callee.LocalCount)
	copy(locals, args)
	return in.pushAndRun(ctx, cs, frame, callee, locals, closure.Environment, int(instr.Uint8(0)))
}

func (in *Interpreter) callDynamic(ctx context.Context, cs *CallStackManager, frame *CallFrame, instr opcode.Instruction) (value.Value, control, error) {
	callableReg := int(instr.Uint8(1))
	base := int(instr.Uint8(2))
	count := int(instr.Uint8(3))
	callable := frame.Register(callableReg)

	if closure := callable.AsClosure(); closure != nil {
		callee := in.mod.FunctionByID(closure.FuncID)
		if callee == nil {
			return value.Unit(), ctrlNone, newVMError(ErrFunctionNotFound, frame, frame.IP, instr.Op, "id %d", closure.FuncID)
		}
		if cs.Depth() >= MaxCallDepth {
			return value.Unit(), ctrlNone, newVMError(ErrCallStackOverflow, frame, frame.IP, instr.Op, "depth %d", cs.Depth())
		}
		args := in.gatherArgs(frame, base, count)
		locals := make([]value.Value, callee.LocalCount)
		copy(locals, args)
		return in.pushAndRun(ctx, cs, frame, callee, locals, closure.Environment, int(instr.Uint8(0)))
	}

	name := callable.AsString()
	if fn, ok := in.hosts.Lookup(name); ok {
		args := in.gatherArgs(frame, base, count)
		frame.set(int(instr.Uint8(0)), fn(args))
		return value.Unit(), ctrlNone, nil
	}
	if callee := in.mod.FindFunction(name); callee != nil {
		if cs.Depth() >= MaxCallDepth {
			return value.Unit(), ctrlNone, newVMError(ErrCallStackOverflow, frame, frame.IP, instr.Op, "depth %d", cs.Depth())
		}
		args := in.gatherArgs(frame, base, count)
		locals := make([]value.Value, callee.LocalCount)
		copy(locals, args)
		return in.pushAndRun(ctx, cs, frame, callee, locals, nil, int(instr.Uint8(0)))
	}
	return value.Unit(), ctrlNone, newVMError(ErrInvalidCall, frame, frame.IP, instr.Op, "no callable or host function %q", name)
}

// pushAndRun pushes callee's frame onto the caller's own cs (instead of
// a fresh manager) and drives the shared frame loop until control
// returns to the caller's depth, so MaxCallDepth's guard sees the
// interpreter's true, unbounded call depth rather than resetting to 1
// on every nested call.
func (in *Interpreter) pushAndRun(ctx context.Context, cs *CallStackManager, caller *CallFrame, callee *module.Function, locals, upvalues []value.Value, dst int) (value.Value, control, error) {
	stopDepth := cs.Depth()
	cs.PushFrame(newFrame(callee.ID, callee.Name, locals, upvalues))
	result, err := in.runUntilDepth(ctx, cs, stopDepth)
	if err != nil {
		return value.Unit(), ctrlNone, err
	}
	caller.set(dst, result)
	return value.Unit(), ctrlNone, nil
}

func (in *Interpreter) tailCall(frame *CallFrame, fn *module.Function, instr opcode.Instruction) (value.Value, control, error) {
	funcID := instr.Uint32(0)
	base := int(instr.Uint8(1))
	count := int(instr.Uint8(2))
	callee := in.mod.FunctionByID(funcID)
	if callee == nil {
		return value.Unit(), ctrlNone, newVMError(ErrFunctionNotFound, frame, frame.IP, instr.Op, "id %d", funcID)
	}
	args := in.gatherArgs(frame, base, count)
	locals := make([]value.Value, callee.LocalCount)
	copy(locals, args)
	frame.FuncID = callee.ID
	frame.FunctionName = callee.Name
	frame.Locals = locals
	frame.Registers = nil
	frame.IP = 0
	return value.Unit(), ctrlJump, nil
}
