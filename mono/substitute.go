package mono

import "github.com/yaoxiang-lang/yaoxiang/ir"

// Substitute walks t's structure, replacing a type variable with its
// binding and recursing into every composite type-constructor position
// spec §4.3 names: lists, dictionaries, sets, tuples, function types
// (parameters and return), shared refs, ranges, unions, intersections,
// and struct field tuples. Non-variable leaf types are returned
// unchanged, making this a homomorphism over the type-constructor
// algebra (the property spec §8 tests).
func Substitute(t ir.Type, bindings map[string]ir.Type) ir.Type {
	switch t.Kind {
	case ir.TypeVar:
		if bound, ok := bindings[t.Name]; ok {
			return bound
		}
		return t

	case ir.TypeList, ir.TypeSet, ir.TypeSharedRef, ir.TypeRange:
		if t.Elem == nil {
			return t
		}
		sub := Substitute(*t.Elem, bindings)
		t.Elem = &sub
		return t

	case ir.TypeDict:
		nt := t
		if t.Key != nil {
			k := Substitute(*t.Key, bindings)
			nt.Key = &k
		}
		if t.Value != nil {
			v := Substitute(*t.Value, bindings)
			nt.Value = &v
		}
		return nt

	case ir.TypeTuple, ir.TypeUnion, ir.TypeIntersection:
		nt := t
		nt.Params = make([]ir.Type, len(t.Params))
		for i, p := range t.Params {
			nt.Params[i] = Substitute(p, bindings)
		}
		return nt

	case ir.TypeFunction:
		nt := t
		nt.Params = make([]ir.Type, len(t.Params))
		for i, p := range t.Params {
			nt.Params[i] = Substitute(p, bindings)
		}
		if t.Return != nil {
			r := Substitute(*t.Return, bindings)
			nt.Return = &r
		}
		return nt

	case ir.TypeStruct, ir.TypeEnum:
		nt := t
		nt.Fields = make([]ir.Field, len(t.Fields))
		for i, f := range t.Fields {
			nt.Fields[i] = ir.Field{Name: f.Name, Type: Substitute(f.Type, bindings)}
		}
		return nt

	default:
		return t
	}
}

// substituteFunction returns a copy of fn with every parameter, return,
// and local type substituted per bindings. Instruction operands are
// left untouched: per spec §4.3, instruction-level substitution is a
// no-op in the core IR because operands reference registers, not
// types.
func substituteFunction(fn *ir.Function, bindings map[string]ir.Type) *ir.Function {
	out := &ir.Function{
		Name:    fn.Name,
		IsAsync: fn.IsAsync,
		Blocks:  fn.Blocks, // instructions unchanged; see doc comment
		Entry:   fn.Entry,
	}
	out.Params = make([]ir.Type, len(fn.Params))
	for i, p := range fn.Params {
		out.Params[i] = Substitute(p, bindings)
	}
	out.Return = Substitute(fn.Return, bindings)
	out.Locals = make([]ir.Type, len(fn.Locals))
	for i, l := range fn.Locals {
		out.Locals[i] = Substitute(l, bindings)
	}
	return out
}
