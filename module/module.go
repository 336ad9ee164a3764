// Package module implements the compiled module container: the
// deployable unit combining bytecode, type descriptors, constants, and
// globals, with an encode/decode pair matching spec §6's on-disk
// layout (magic + version header, constant pool, globals, functions).
package module

import (
	"github.com/yaoxiang-lang/yaoxiang/emit"
	"github.com/yaoxiang-lang/yaoxiang/ir"
)

const (
	Magic        uint32 = 0x59414F58 // "YAOX"
	FormatVersion uint32 = 1
)

// TypeDescriptor is the small tag language spec §6 names for encoding
// ir.Type in the function/global sections.
type TypeDescriptor = ir.Type

// Global is one module-level variable plus its optional constant
// initializer index into the shared pool.
type Global struct {
	Name    string
	Type    TypeDescriptor
	Initial *uint32 // index into Constants, nil if uninitialized
}

// Function is a function's compiled representation as stored in a
// module, plus its assigned stable numeric id (used by call-static and
// make-closure operands).
type Function struct {
	ID         uint32
	Name       string
	Params     []TypeDescriptor
	Return     TypeDescriptor
	LocalCount int
	Code       []byte
}

// Module is the full compiled container: the function table, the
// shared constant pool, and the globals section.
type Module struct {
	Version   uint32
	Constants []ir.Constant
	Globals   []Global
	Functions []Function
}

// FindFunction returns the function named name, or nil.
func (m *Module) FindFunction(name string) *Function {
	for i := range m.Functions {
		if m.Functions[i].Name == name {
			return &m.Functions[i]
		}
	}
	return nil
}

// FunctionByID returns the function with the given id, or nil.
func (m *Module) FunctionByID(id uint32) *Function {
	for i := range m.Functions {
		if m.Functions[i].ID == id {
			return &m.Functions[i]
		}
	}
	return nil
}

// Builder assembles a Module from compiled functions and IR globals.
// Each function is stored under the id its caller passes to AddFunction,
// which must agree with emit.FuncIDs, since call-static/make-closure
// operands reference these same ids.
type Builder struct {
	pool      *emit.ConstPool
	globals   []Global
	functions []Function
}

func NewBuilder(pool *emit.ConstPool) *Builder {
	return &Builder{pool: pool}
}

func (b *Builder) AddGlobal(name string, t ir.Type, initial *ir.Constant) {
	g := Global{Name: name, Type: t}
	if initial != nil {
		idx := b.pool.Intern(*initial)
		g.Initial = &idx
	}
	b.globals = append(b.globals, g)
}

// AddFunction records a compiled function under the given stable id.
func (b *Builder) AddFunction(id uint32, cf emit.CompiledFunction) {
	b.functions = append(b.functions, Function{
		ID: id, Name: cf.Name, Params: cf.Params, Return: cf.Return,
		LocalCount: cf.LocalCount, Code: cf.Code,
	})
}

func (b *Builder) Build() *Module {
	return &Module{
		Version:   FormatVersion,
		Constants: b.pool.Entries(),
		Globals:   b.globals,
		Functions: b.functions,
	}
}
