package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScalarRoundTrip(t *testing.T) {
	assert.Equal(t, int64(42), Int(42).AsInt())
	assert.Equal(t, int64(-7), Int(-7).AsInt())
	assert.InDelta(t, 3.5, Float(3.5).AsFloat(), 1e-9)
	assert.True(t, Bool(true).AsBool())
	assert.False(t, Bool(false).AsBool())
	assert.Equal(t, 'x', Char('x').AsChar())
}

func TestSharedStringCloneIsRefCounted(t *testing.T) {
	v := String("hello")
	ss := v.Data.(*SharedString)
	cloned := v.Clone()
	assert.Equal(t, "hello", cloned.AsString())
	assert.Equal(t, int64(2), ss.refs.Load())
	assert.False(t, v.Drop())
	assert.True(t, cloned.Drop())
}

func TestSharedRefCloneAndDrop(t *testing.T) {
	inner := Int(99)
	ref := NewSharedRef(inner)
	clone := ref.Clone()
	assert.Equal(t, int64(99), clone.AsSharedRef().Pointee.AsInt())
	assert.False(t, ref.Drop())
	assert.True(t, clone.Drop())
}

func TestDictGetSet(t *testing.T) {
	d := NewDict()
	d.Set(String("k"), Int(1))
	got, ok := d.Get(String("k"))
	assert.True(t, ok)
	assert.Equal(t, int64(1), got.AsInt())

	_, ok = d.Get(String("missing"))
	assert.False(t, ok)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "int", KindInt.String())
	assert.Equal(t, "unit", Unit().Kind.String())
}
