// Package vm implements the embedded interpreter: the decode/dispatch
// loop over a compiled module's instruction streams, call frames with
// their per-frame register files, and the error model, grounded on the teacher's
// vm/call_stack.go and vm/errors.go.
package vm

import (
	"sync"

	"github.com/yaoxiang-lang/yaoxiang/value"
)

// CallFrame is one activation record: the function it executes, its
// instruction pointer, the instruction pointer to resume the caller
// at, its register file (grows with void padding on out-of-range
// writes per spec §3's invariant), its locals vector (arguments occupy
// the front), and its upvalues vector (populated from a closure's
// captured environment).
type CallFrame struct {
	FuncID       uint32
	FunctionName string
	IP           int
	ReturnIP     int
	Registers    []value.Value
	Locals       []value.Value
	Upvalues     []value.Value
	last         value.Value
}

func newFrame(funcID uint32, name string, locals []value.Value, upvalues []value.Value) *CallFrame {
	return &CallFrame{FuncID: funcID, FunctionName: name, Locals: locals, Upvalues: upvalues}
}

// Register returns the value at index i, or Unit if the register has
// never been written (it reads as void until grown by a write).
func (f *CallFrame) Register(i int) value.Value {
	if i < 0 || i >= len(f.Registers) {
		return value.Unit()
	}
	return f.Registers[i]
}

// SetRegister grows the register vector with void-filled padding if
// needed, then writes v at index i — spec §3's "writes grow the frame
// register vector with void-filled padding" invariant.
func (f *CallFrame) SetRegister(i int, v value.Value) {
	if i >= len(f.Registers) {
		grown := make([]value.Value, i+1)
		copy(grown, f.Registers)
		for j := len(f.Registers); j < i; j++ {
			grown[j] = value.Unit()
		}
		f.Registers = grown
	}
	f.Registers[i] = v
	f.last = v
}

// set is the interpreter's internal alias for SetRegister.
func (f *CallFrame) set(i int, v value.Value) {
	f.SetRegister(i, v)
}

// lastValue is the most recently written register value in this
// frame — the value return-value resolves to, since its byte
// encoding carries no operand (see Interpreter.RunFunction).
func (f *CallFrame) lastValue() value.Value {
	return f.last
}

// CallStackManager owns the interpreter's frame stack, grounded
// directly on the teacher's vm/call_stack.go (renamed PushFrame/
// PopFrame/CurrentFrame/Depth/IsEmpty retained verbatim in spirit; the
// PHP-specific UpdateGlobalBindings/Copy helpers are dropped since the
// core has no global-variable-rebinding surface to serve).
type CallStackManager struct {
	frames []*CallFrame
	mu     sync.Mutex
}

func NewCallStackManager() *CallStackManager {
	return &CallStackManager{frames: make([]*CallFrame, 0, 8)}
}

func (cs *CallStackManager) PushFrame(frame *CallFrame) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.frames = append(cs.frames, frame)
}

func (cs *CallStackManager) PopFrame() *CallFrame {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if len(cs.frames) == 0 {
		return nil
	}
	idx := len(cs.frames) - 1
	frame := cs.frames[idx]
	cs.frames = cs.frames[:idx]
	return frame
}

func (cs *CallStackManager) CurrentFrame() *CallFrame {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if len(cs.frames) == 0 {
		return nil
	}
	return cs.frames[len(cs.frames)-1]
}

func (cs *CallStackManager) Depth() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.frames)
}

func (cs *CallStackManager) IsEmpty() bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.frames) == 0
}

func (cs *CallStackManager) Clear() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.frames = cs.frames[:0]
}
