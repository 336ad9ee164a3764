// Package host implements the host callback interface: a small
// process-global registry of external functions consulted by the
// call-dynamic opcode when no user-defined function matches, per spec
// §6. Grounded on the teacher's registry.Function/BuiltinCallContext
// convention (runtime/concurrency.go's GetConcurrencyFunctions), but
// reduced to the YaoXiang value type and the fixed failure-sentinel
// convention instead of PHP's error-returning builtins.
package host

import (
	"bufio"
	"fmt"
	"os"

	"github.com/yaoxiang-lang/yaoxiang/value"
)

// Func is one external function: arguments and the return are given by
// value; failures are surfaced by returning the failure sentinel
// rather than an error, per spec §6 ("arguments are given by value;
// returns are by value; failures are surfaced by returning a failure
// sentinel value").
type Func func(args []value.Value) value.Value

// Registry is the process-global external-function table the
// call-dynamic opcode falls back to.
type Registry struct {
	fns map[string]Func
}

// NewRegistry builds a registry seeded with the small table spec §6
// names: print, println, read_line, read_file, write_file. File I/O is
// explicitly out of core scope, so read_file/write_file return the
// failure sentinel rather than touching the filesystem; print/println
// and read_line are real since they only touch the process's own
// stdio, not arbitrary files.
func NewRegistry() *Registry {
	r := &Registry{fns: make(map[string]Func)}
	r.fns["print"] = builtinPrint
	r.fns["println"] = builtinPrintln
	r.fns["read_line"] = builtinReadLine
	r.fns["read_file"] = builtinReadFileStub
	r.fns["write_file"] = builtinWriteFileStub
	return r
}

// Register installs or overwrites a named external function.
func (r *Registry) Register(name string, fn Func) {
	r.fns[name] = fn
}

// Lookup returns the named function and whether it is present.
func (r *Registry) Lookup(name string) (Func, bool) {
	fn, ok := r.fns[name]
	return fn, ok
}

func builtinPrint(args []value.Value) value.Value {
	for _, a := range args {
		fmt.Print(renderArg(a))
	}
	return value.Unit()
}

func builtinPrintln(args []value.Value) value.Value {
	for _, a := range args {
		fmt.Print(renderArg(a))
	}
	fmt.Println()
	return value.Unit()
}

var stdinReader = bufio.NewReader(os.Stdin)

func builtinReadLine(args []value.Value) value.Value {
	line, err := stdinReader.ReadString('\n')
	if err != nil && line == "" {
		return value.Bool(false)
	}
	return value.String(trimNewline(line))
}

// builtinReadFileStub always returns the failure sentinel: file I/O is
// explicitly out of core scope (spec §1's non-goals).
func builtinReadFileStub(args []value.Value) value.Value {
	return value.Bool(false)
}

func builtinWriteFileStub(args []value.Value) value.Value {
	return value.Bool(false)
}

func renderArg(v value.Value) string {
	switch v.Kind {
	case value.KindString:
		return v.AsString()
	case value.KindInt:
		return fmt.Sprintf("%d", v.AsInt())
	case value.KindFloat:
		return fmt.Sprintf("%g", v.AsFloat())
	case value.KindBool:
		return fmt.Sprintf("%t", v.AsBool())
	case value.KindChar:
		return string(v.AsChar())
	default:
		return fmt.Sprintf("%v", v)
	}
}

func trimNewline(s string) string {
	n := len(s)
	if n > 0 && s[n-1] == '\n' {
		n--
		if n > 0 && s[n-1] == '\r' {
			n--
		}
	}
	return s[:n]
}
