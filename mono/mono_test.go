package mono

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaoxiang-lang/yaoxiang/ir"
)

func identityFn() *ir.Function {
	tv := ir.Type{Kind: ir.TypeVar, Name: "T"}
	return &ir.Function{
		Name:       "identity",
		TypeParams: []string{"T"},
		Params:     []ir.Type{tv},
		Return:     tv,
		Blocks: []ir.BasicBlock{
			{Label: "entry", Instrs: []ir.Instr{
				{Op: "return.value", Operands: []ir.Operand{ir.Argument(0)}},
			}},
		},
	}
}

func TestCrossModuleSharingSeedScenario(t *testing.T) {
	// identity[T] defined in module A, instantiated with T=int from
	// modules B and C; a third use with T=string is distinct.
	a := NewModuleState("A")
	a.RegisterGeneric(identityFn())

	m := NewMonomorphizer()
	m.AddModule(a)
	m.AddModule(NewModuleState("B"))
	m.AddModule(NewModuleState("C"))

	intType := ir.Type{Kind: ir.TypeInt}
	fnB, nameB, err := m.Instantiate("identity", []ir.Type{intType})
	require.NoError(t, err)
	fnC, nameC, err := m.Instantiate("identity", []ir.Type{intType})
	require.NoError(t, err)

	assert.Equal(t, nameB, nameC)
	assert.Same(t, fnB, fnC, "same cached instance shared across modules")

	stringType := ir.Type{Kind: ir.TypeString}
	_, nameString, err := m.Instantiate("identity", []ir.Type{stringType})
	require.NoError(t, err)
	assert.NotEqual(t, nameB, nameString)
}

func TestInstantiationIsIdempotent(t *testing.T) {
	a := NewModuleState("A")
	a.RegisterGeneric(identityFn())
	m := NewMonomorphizer()
	m.AddModule(a)

	intType := ir.Type{Kind: ir.TypeInt}
	fn1, name1, err := m.Instantiate("identity", []ir.Type{intType})
	require.NoError(t, err)
	fn2, name2, err := m.Instantiate("identity", []ir.Type{intType})
	require.NoError(t, err)

	assert.Equal(t, name1, name2)
	assert.Equal(t, fn1, fn2)
}

func TestInstantiateUnknownGenericErrors(t *testing.T) {
	m := NewMonomorphizer()
	_, _, err := m.Instantiate("nope", nil)
	require.ErrorIs(t, err, ErrGenericNotFound)
}

func TestCrossModuleCacheKeysAreSortedAndStable(t *testing.T) {
	a := NewModuleState("A")
	a.RegisterGeneric(identityFn())
	m := NewMonomorphizer()
	m.AddModule(a)

	_, _, err := m.Instantiate("identity", []ir.Type{{Kind: ir.TypeString}})
	require.NoError(t, err)
	_, _, err = m.Instantiate("identity", []ir.Type{{Kind: ir.TypeInt}})
	require.NoError(t, err)

	keys := m.cache.Keys()
	require.Len(t, keys, 2)
	assert.True(t, keys[0].TypeArgs < keys[1].TypeArgs)
}

func TestSubstituteIsHomomorphism(t *testing.T) {
	bindings := map[string]ir.Type{"T": {Kind: ir.TypeInt}}
	tv := ir.Type{Kind: ir.TypeVar, Name: "T"}

	list := ir.Type{Kind: ir.TypeList, Elem: &tv}
	got := Substitute(list, bindings)
	require.Equal(t, ir.TypeList, got.Kind)
	assert.Equal(t, ir.TypeInt, got.Elem.Kind)

	dict := ir.Type{Kind: ir.TypeDict, Key: &tv, Value: &tv}
	gotDict := Substitute(dict, bindings)
	assert.Equal(t, ir.TypeInt, gotDict.Key.Kind)
	assert.Equal(t, ir.TypeInt, gotDict.Value.Kind)

	fnType := ir.Type{Kind: ir.TypeFunction, Params: []ir.Type{tv}, Return: &tv}
	gotFn := Substitute(fnType, bindings)
	assert.Equal(t, ir.TypeInt, gotFn.Params[0].Kind)
	assert.Equal(t, ir.TypeInt, gotFn.Return.Kind)

	// Non-variable types are returned unchanged.
	prim := ir.Type{Kind: ir.TypeBool}
	assert.Equal(t, prim, Substitute(prim, bindings))
}
