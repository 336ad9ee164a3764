package sendsync

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yaoxiang-lang/yaoxiang/ir"
)

func TestPrimitivesAreAlwaysSendAndSync(t *testing.T) {
	for _, k := range []ir.TypeKind{ir.TypeUnit, ir.TypeBool, ir.TypeInt, ir.TypeFloat, ir.TypeChar, ir.TypeString, ir.TypeBytes} {
		tt := ir.Type{Kind: k}
		assert.True(t, IsSend(tt))
		assert.True(t, IsSync(tt))
	}
}

func TestListIsSendIffElementIsSend(t *testing.T) {
	intElem := ir.Type{Kind: ir.TypeInt}
	list := ir.Type{Kind: ir.TypeList, Elem: &intElem}
	assert.True(t, IsSend(list))
	// Lists are never Sync by default, regardless of element.
	assert.False(t, IsSync(list))
}

func TestSharedRefIsSendIffPointeeIsSend(t *testing.T) {
	intElem := ir.Type{Kind: ir.TypeInt}
	ref := ir.Type{Kind: ir.TypeSharedRef, Elem: &intElem}
	assert.True(t, IsSend(ref))
	assert.True(t, IsSync(ref))

	dictElem := ir.Type{Kind: ir.TypeDict, Key: &intElem, Value: &intElem}
	refToDict := ir.Type{Kind: ir.TypeSharedRef, Elem: &dictElem}
	// Dict is Send (its Send check doesn't need Sync), so a SharedRef to
	// it is Send too, even though Dict itself is never Sync: Send only
	// needs the pointee Send, matching send_sync.rs's
	// is_send(Arc(inner)) = is_send(inner).
	assert.True(t, IsSend(refToDict))
	assert.False(t, IsSync(refToDict))

	typeVarElem := ir.Type{Kind: ir.TypeVar, Name: "T"}
	refToTypeVar := ir.Type{Kind: ir.TypeSharedRef, Elem: &typeVarElem}
	// An unbound type variable is neither provably Send nor Sync, so
	// neither is a shared ref to it.
	assert.False(t, IsSend(refToTypeVar))
	assert.False(t, IsSync(refToTypeVar))
}

func TestStructIsSendIffAllFieldsAreSend(t *testing.T) {
	intElem := ir.Type{Kind: ir.TypeInt}
	okStruct := ir.Type{Kind: ir.TypeStruct, Name: "Point", Fields: []ir.Field{
		{Name: "x", Type: intElem}, {Name: "y", Type: intElem},
	}}
	assert.True(t, IsSend(okStruct))

	typeVarElem := ir.Type{Kind: ir.TypeVar, Name: "T"}
	refElem := ir.Type{Kind: ir.TypeSharedRef, Elem: &typeVarElem}
	badStruct := ir.Type{Kind: ir.TypeStruct, Name: "Holder", Fields: []ir.Field{
		{Name: "cache", Type: refElem},
	}}
	assert.False(t, IsSend(badStruct))
}

func TestPropagatePropagateFlagsUnsatisfiedAndRequestsSpecialization(t *testing.T) {
	typeVarElem := ir.Type{Kind: ir.TypeVar, Name: "T"}
	badRef := ir.Type{Kind: ir.TypeSharedRef, Elem: &typeVarElem}

	constraints := CollectSpawnConstraints("spawn_closure", []ir.Type{badRef},
		[]ir.Type{badRef}, ir.Type{Kind: ir.TypeUnit}, nil)

	result := Propagate(constraints)
	if assert.NotEmpty(t, result.Unsatisfied) {
		assert.Equal(t, ReasonNotSendStructurally, result.Unsatisfied[0].Reason)
	}
	assert.True(t, result.RequireSendSpecialization)
	assert.Len(t, result.SpecializationRequests, 1)
}

func TestPropagateAllSatisfiedProducesNoUnsatisfied(t *testing.T) {
	intType := ir.Type{Kind: ir.TypeInt}
	constraints := CollectSpawnConstraints("spawn_closure", []ir.Type{intType},
		[]ir.Type{intType}, intType, []ir.Type{intType})

	result := Propagate(constraints)
	assert.Empty(t, result.Unsatisfied)
	assert.False(t, result.RequireSendSpecialization)
}
