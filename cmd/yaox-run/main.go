// Command yaox-run is a thin smoke-test entry point: it assembles a
// tiny hard-coded module (the two-constant addition seed scenario every
// package's tests exercise), loads it through module.Decode after a
// round trip through module.Encode, and runs it on the embedded
// interpreter. It is intentionally not a PHP-style REPL/CLI — flag
// parsing and file loading are out of core scope, mirroring the
// teacher's cmd/vm-demo rather than its full cmd/hey.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/yaoxiang-lang/yaoxiang/emit"
	"github.com/yaoxiang-lang/yaoxiang/host"
	"github.com/yaoxiang-lang/yaoxiang/ir"
	"github.com/yaoxiang-lang/yaoxiang/module"
	"github.com/yaoxiang-lang/yaoxiang/vm"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "yaox-run:", err)
		os.Exit(1)
	}
}

func run() error {
	mod, err := buildSeedModule()
	if err != nil {
		return fmt.Errorf("build module: %w", err)
	}

	// Round-trip through the on-disk container format so this entry
	// point also exercises module.Encode/Decode, not just the builder.
	encoded := module.Encode(mod)
	decoded, err := module.Decode(encoded)
	if err != nil {
		return fmt.Errorf("decode module: %w", err)
	}

	interp := vm.New(decoded, host.NewRegistry())
	result, err := interp.RunFunction(context.Background(), "main", nil)
	if err != nil {
		return fmt.Errorf("run main: %w", err)
	}

	fmt.Printf("main() = %d\n", result.AsInt())
	return nil
}

func buildSeedModule() (*module.Module, error) {
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

	pool := emit.NewConstPool()
	funcIDs := emit.FuncIDs{"main": 0}
	e := emit.NewEmitter(pool, funcIDs)
	compiled, err := e.EmitFunction(fn)
	if err != nil {
		return nil, err
	}

	b := module.NewBuilder(pool)
	b.AddFunction(funcIDs["main"], compiled)
	return b.Build(), nil
}
