// Package ir defines the typed, SSA-like register IR the external type
// checker hands to the bytecode emitter: modules, functions, basic
// blocks, and the operand forms an IR instruction can reference.
package ir

// Type is a minimal structural type descriptor. The type checker
// proper lives outside the core (see spec §1); this is just enough
// structure for monomorphization substitution and Send/Sync
// propagation to recurse over.
type Type struct {
	Kind TypeKind
	Name string // struct/enum tag name, or type-variable name when Kind == TypeVar

	Elem   *Type   // List, SharedRef
	Key    *Type   // Dict
	Value  *Type   // Dict
	Params []Type  // Function parameters, Tuple elements, Union/Intersection members
	Return *Type   // Function
	Fields []Field // Struct
}

type Field struct {
	Name string
	Type Type
}

type TypeKind byte

const (
	TypeUnit TypeKind = iota
	TypeBool
	TypeInt
	TypeFloat
	TypeChar
	TypeString
	TypeBytes
	TypeVar // unbound generic type parameter, substituted by mono
	TypeList
	TypeDict
	TypeSet
	TypeTuple
	TypeFunction
	TypeSharedRef
	TypeRange
	TypeUnion
	TypeIntersection
	TypeStruct
	TypeEnum
)

// Operand is the tagged union an IR instruction's operands are drawn
// from: a register/local/argument/temp/global slot, a jump label, or
// an inlined constant.
type Operand struct {
	Form  OperandForm
	Index uint32 // register/local/argument/temp/global index
	Label string // jump target label
	Const Constant
}

type OperandForm byte

const (
	FormRegister OperandForm = iota
	FormLocal
	FormArgument
	FormTemp
	FormGlobal
	FormLabel
	FormConstant
)

func Register(i uint32) Operand { return Operand{Form: FormRegister, Index: i} }
func Local(i uint32) Operand    { return Operand{Form: FormLocal, Index: i} }
func Argument(i uint32) Operand { return Operand{Form: FormArgument, Index: i} }
func Temp(i uint32) Operand     { return Operand{Form: FormTemp, Index: i} }
func GlobalSlot(i uint32) Operand { return Operand{Form: FormGlobal, Index: i} }
func Label(name string) Operand { return Operand{Form: FormLabel, Label: name} }
func Const(c Constant) Operand  { return Operand{Form: FormConstant, Const: c} }

// Instr is one IR-level instruction: an opcode name (the IR is opcode
// set agnostic of byte encoding — the emitter maps IR opcodes to
// opcode.Opcode) plus its operands and optional destination.
type Instr struct {
	Op       string
	Dst      Operand
	Operands []Operand
}

// BasicBlock is a labeled straight-line instruction run plus its
// successor block indices.
type BasicBlock struct {
	Label  string
	Instrs []Instr
	Succs  []int
}

// Function is one function's typed IR body.
type Function struct {
	Name       string
	Params     []Type
	Return     Type
	IsAsync    bool
	Locals     []Type
	Blocks     []BasicBlock
	Entry      int
	TypeParams []string // generic parameter names, empty for non-generic functions
}

// Global is a module-level variable: a name, a type, and an optional
// constant initializer.
type Global struct {
	Name    string
	Type    Type
	Initial *Constant
}

// Module is the typed-IR container the emitter consumes: a type list,
// globals, and functions.
type Module struct {
	Name      string
	Types     []Type
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
