package vm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaoxiang-lang/yaoxiang/emit"
	"github.com/yaoxiang-lang/yaoxiang/host"
	"github.com/yaoxiang-lang/yaoxiang/ir"
	"github.com/yaoxiang-lang/yaoxiang/module"
	"github.com/yaoxiang-lang/yaoxiang/value"
)

func buildModule(t *testing.T, fns map[string]*ir.Function, funcIDs emit.FuncIDs) *module.Module {
	t.Helper()
	pool := emit.NewConstPool()
	b := module.NewBuilder(pool)
	for name, fn := range fns {
		e := emit.NewEmitter(pool, funcIDs)
		compiled, err := e.EmitFunction(fn)
		require.NoError(t, err)
		b.AddFunction(funcIDs[name], compiled)
	}
	return b.Build()
}

func TestArithmeticSeedScenario(t *testing.T) {
	fn := &ir.Function{
		Name: "main",
		Blocks: []ir.BasicBlock{{
			Label: "entry",
			Instrs: []ir.Instr{
				{Op: "load.constant", Dst: ir.Register(0), Operands: []ir.Operand{ir.Const(ir.IntConstant(2))}},
				{Op: "load.constant", Dst: ir.Register(1), Operands: []ir.Operand{ir.Const(ir.IntConstant(3))}},
				{Op: "i64.add", Dst: ir.Register(2), Operands: []ir.Operand{ir.Register(0), ir.Register(1)}},
				{Op: "return.value", Operands: []ir.Operand{ir.Register(2)}},
			},
		}},
	}
	mod := buildModule(t, map[string]*ir.Function{"main": fn}, emit.FuncIDs{"main": 0})

	in := New(mod, host.NewRegistry())
	result, err := in.RunFunction(context.Background(), "main", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.AsInt())
}

func TestDivisionByZeroRaisesSentinel(t *testing.T) {
	fn := &ir.Function{
		Name: "main",
		Blocks: []ir.BasicBlock{{
			Label: "entry",
			Instrs: []ir.Instr{
				{Op: "load.constant", Dst: ir.Register(0), Operands: []ir.Operand{ir.Const(ir.IntConstant(1))}},
				{Op: "load.constant", Dst: ir.Register(1), Operands: []ir.Operand{ir.Const(ir.IntConstant(0))}},
				{Op: "i64.div", Dst: ir.Register(2), Operands: []ir.Operand{ir.Register(0), ir.Register(1)}},
				{Op: "return.value", Operands: []ir.Operand{ir.Register(2)}},
			},
		}},
	}
	mod := buildModule(t, map[string]*ir.Function{"main": fn}, emit.FuncIDs{"main": 0})

	in := New(mod, host.NewRegistry())
	_, err := in.RunFunction(context.Background(), "main", nil)
	require.ErrorIs(t, err, ErrDivisionByZero)
}

func TestConditionalJumpSkipsThenBlock(t *testing.T) {
	fn := &ir.Function{
		Name: "main",
		Blocks: []ir.BasicBlock{
			{
				Label: "entry",
				Instrs: []ir.Instr{
					{Op: "load.constant", Dst: ir.Register(0), Operands: []ir.Operand{ir.Const(ir.BoolConstant(false))}},
					{Op: "jump.if", Operands: []ir.Operand{ir.Register(0), ir.Label("then")}},
					{Op: "load.constant", Dst: ir.Register(1), Operands: []ir.Operand{ir.Const(ir.IntConstant(9))}},
					{Op: "jump", Operands: []ir.Operand{ir.Label("end")}},
				},
			},
			{
				Label: "then",
				Instrs: []ir.Instr{
					{Op: "load.constant", Dst: ir.Register(1), Operands: []ir.Operand{ir.Const(ir.IntConstant(1))}},
				},
			},
			{
				Label: "end",
				Instrs: []ir.Instr{
					{Op: "return.value", Operands: []ir.Operand{ir.Register(1)}},
				},
			},
		},
	}
	mod := buildModule(t, map[string]*ir.Function{"main": fn}, emit.FuncIDs{"main": 0})

	in := New(mod, host.NewRegistry())
	result, err := in.RunFunction(context.Background(), "main", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(9), result.AsInt())
}

func TestCallStaticInvokesCalleeAndReturns(t *testing.T) {
	addFn := &ir.Function{
		Name:   "add",
		Params: []ir.Type{{Kind: ir.TypeInt}, {Kind: ir.TypeInt}},
		Locals: []ir.Type{{Kind: ir.TypeInt}, {Kind: ir.TypeInt}},
		Blocks: []ir.BasicBlock{{
			Label: "entry",
			Instrs: []ir.Instr{
				{Op: "load.argument", Dst: ir.Register(0), Operands: []ir.Operand{ir.Argument(0)}},
				{Op: "load.argument", Dst: ir.Register(1), Operands: []ir.Operand{ir.Argument(1)}},
				{Op: "i64.add", Dst: ir.Register(2), Operands: []ir.Operand{ir.Register(0), ir.Register(1)}},
				{Op: "return.value", Operands: []ir.Operand{ir.Register(2)}},
			},
		}},
	}
	mainFn := &ir.Function{
		Name: "main",
		Blocks: []ir.BasicBlock{{
			Label: "entry",
			Instrs: []ir.Instr{
				{Op: "load.constant", Dst: ir.Register(0), Operands: []ir.Operand{ir.Const(ir.IntConstant(4))}},
				{Op: "load.constant", Dst: ir.Register(1), Operands: []ir.Operand{ir.Const(ir.IntConstant(6))}},
				{Op: "call.static", Dst: ir.Register(2), Operands: []ir.Operand{ir.Label("add"), ir.Register(0), {Index: 2}}},
				{Op: "return.value", Operands: []ir.Operand{ir.Register(2)}},
			},
		}},
	}
	funcIDs := emit.FuncIDs{"add": 0, "main": 1}
	mod := buildModule(t, map[string]*ir.Function{"add": addFn, "main": mainFn}, funcIDs)

	in := New(mod, host.NewRegistry())
	result, err := in.RunFunction(context.Background(), "main", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(10), result.AsInt())
}

func TestBoundsCheckRaisesIndexOutOfBounds(t *testing.T) {
	fn := &ir.Function{
		Name: "main",
		Blocks: []ir.BasicBlock{{
			Label: "entry",
			Instrs: []ir.Instr{
				{Op: "load.constant", Dst: ir.Register(0), Operands: []ir.Operand{ir.Const(ir.IntConstant(5))}},
				{Op: "load.constant", Dst: ir.Register(1), Operands: []ir.Operand{ir.Const(ir.IntConstant(3))}},
				{Op: "bounds.check", Dst: ir.Register(0), Operands: []ir.Operand{ir.Register(1)}},
				{Op: "return"},
			},
		}},
	}
	mod := buildModule(t, map[string]*ir.Function{"main": fn}, emit.FuncIDs{"main": 0})

	in := New(mod, host.NewRegistry())
	_, err := in.RunFunction(context.Background(), "main", nil)
	require.ErrorIs(t, err, ErrIndexOutOfBounds)
}

func TestTypeOfNamesTheValueKind(t *testing.T) {
	fn := &ir.Function{
		Name: "main",
		Blocks: []ir.BasicBlock{{
			Label: "entry",
			Instrs: []ir.Instr{
				{Op: "load.constant", Dst: ir.Register(0), Operands: []ir.Operand{ir.Const(ir.IntConstant(1))}},
				{Op: "type.of", Dst: ir.Register(1), Operands: []ir.Operand{ir.Register(0)}},
				{Op: "return.value", Operands: []ir.Operand{ir.Register(1)}},
			},
		}},
	}
	mod := buildModule(t, map[string]*ir.Function{"main": fn}, emit.FuncIDs{"main": 0})

	in := New(mod, host.NewRegistry())
	result, err := in.RunFunction(context.Background(), "main", nil)
	require.NoError(t, err)
	assert.Equal(t, "int", result.AsString())
}

func TestUnboundedRecursionReportsCallStackOverflowInsteadOfCrashing(t *testing.T) {
	recurseFn := &ir.Function{
		Name:   "recurse",
		Params: []ir.Type{{Kind: ir.TypeInt}},
		Locals: []ir.Type{{Kind: ir.TypeInt}},
		Blocks: []ir.BasicBlock{{
			Label: "entry",
			Instrs: []ir.Instr{
				{Op: "load.argument", Dst: ir.Register(0), Operands: []ir.Operand{ir.Argument(0)}},
				{Op: "call.static", Dst: ir.Register(1), Operands: []ir.Operand{ir.Label("recurse"), ir.Register(0), {Index: 1}}},
				{Op: "return.value", Operands: []ir.Operand{ir.Register(1)}},
			},
		}},
	}
	mainFn := &ir.Function{
		Name: "main",
		Blocks: []ir.BasicBlock{{
			Label: "entry",
			Instrs: []ir.Instr{
				{Op: "load.constant", Dst: ir.Register(0), Operands: []ir.Operand{ir.Const(ir.IntConstant(0))}},
				{Op: "call.static", Dst: ir.Register(1), Operands: []ir.Operand{ir.Label("recurse"), ir.Register(0), {Index: 1}}},
				{Op: "return.value", Operands: []ir.Operand{ir.Register(1)}},
			},
		}},
	}
	funcIDs := emit.FuncIDs{"recurse": 0, "main": 1}
	mod := buildModule(t, map[string]*ir.Function{"recurse": recurseFn, "main": mainFn}, funcIDs)

	in := New(mod, host.NewRegistry())
	_, err := in.RunFunction(context.Background(), "main", nil)
	require.ErrorIs(t, err, ErrCallStackOverflow)
}

func TestCallDynamicFallsBackToHostFunction(t *testing.T) {
	fn := &ir.Function{
		Name: "main",
		Blocks: []ir.BasicBlock{{
			Label: "entry",
			Instrs: []ir.Instr{
				{Op: "load.constant", Dst: ir.Register(0), Operands: []ir.Operand{ir.Const(ir.StringConstant("double"))}},
				{Op: "load.constant", Dst: ir.Register(1), Operands: []ir.Operand{ir.Const(ir.IntConstant(21))}},
				{Op: "call.dynamic", Dst: ir.Register(2), Operands: []ir.Operand{ir.Register(0), ir.Register(1), {Index: 1}}},
				{Op: "return.value", Operands: []ir.Operand{ir.Register(2)}},
			},
		}},
	}
	mod := buildModule(t, map[string]*ir.Function{"main": fn}, emit.FuncIDs{"main": 0})

	reg := host.NewRegistry()
	reg.Register("double", func(args []value.Value) value.Value {
		return value.Int(args[0].AsInt() * 2)
	})
	in := New(mod, reg)
	result, err := in.RunFunction(context.Background(), "main", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(42), result.AsInt())
}
