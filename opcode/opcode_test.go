package opcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassificationPredicates(t *testing.T) {
	cases := []struct {
		op         Opcode
		isJump     bool
		isCall     bool
		isReturn   bool
		isLoad     bool
		isStore    bool
		isIntArith bool
	}{
		{OpJump, true, false, false, false, false, false},
		{OpJumpIf, true, false, false, false, false, false},
		{OpCallStatic, false, true, false, false, false, false},
		{OpTailCall, false, true, false, false, false, false},
		{OpReturnValue, false, false, true, false, false, false},
		{OpLoadConstant, false, false, false, true, false, false},
		{OpStoreLocal, false, false, false, false, true, false},
		{OpI64Add, false, false, false, false, false, true},
		{OpI32Mul, false, false, false, false, false, true},
	}
	for _, c := range cases {
		assert.Equal(t, c.isJump, c.op.IsJump(), "IsJump %s", c.op)
		assert.Equal(t, c.isCall, c.op.IsCall(), "IsCall %s", c.op)
		assert.Equal(t, c.isReturn, c.op.IsReturn(), "IsReturn %s", c.op)
		assert.Equal(t, c.isLoad, c.op.IsLoad(), "IsLoad %s", c.op)
		assert.Equal(t, c.isStore, c.op.IsStore(), "IsStore %s", c.op)
		assert.Equal(t, c.isIntArith, c.op.IsIntegerArithmetic(), "IsIntegerArithmetic %s", c.op)
	}
}

func TestOperandArityMatchesEncodingAdvance(t *testing.T) {
	for op, sizes := range operandSizes {
		inst := Instruction{Op: op, Operands: make([]byte, sumInts(sizes))}
		var buf []byte
		buf = inst.Encode(buf)
		assert.Equal(t, 1+sumInts(sizes), len(buf), "opcode %s", op)
		assert.Equal(t, len(sizes), op.Arity())
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	var stream []byte
	stream = Instruction{Op: OpLoadConstant, Operands: encodeOperands(t, OpLoadConstant, byte(1), uint16(42))}.Encode(stream)
	stream = Instruction{Op: OpI64Add, Operands: encodeOperands(t, OpI64Add, byte(2), byte(0), byte(1))}.Encode(stream)
	stream = Instruction{Op: OpReturnValue}.Encode(stream)

	offset := 0
	inst, next, err := Decode(stream, offset)
	require.NoError(t, err)
	assert.Equal(t, OpLoadConstant, inst.Op)
	assert.Equal(t, byte(1), inst.Uint8(0))
	assert.Equal(t, uint16(42), inst.Uint16(1))
	offset = next

	inst, next, err = Decode(stream, offset)
	require.NoError(t, err)
	assert.Equal(t, OpI64Add, inst.Op)
	offset = next

	inst, next, err = Decode(stream, offset)
	require.NoError(t, err)
	assert.Equal(t, OpReturnValue, inst.Op)
	assert.Equal(t, len(stream), next)
}

func TestDecodeInvalidOpcode(t *testing.T) {
	_, _, err := Decode([]byte{0xFE}, 0)
	require.ErrorIs(t, err, ErrInvalidOpcode)
}

func TestDecodeTruncatedOperand(t *testing.T) {
	// load-constant needs 3 operand bytes, only give it one.
	_, _, err := Decode([]byte{byte(OpLoadConstant), 0x01}, 0)
	require.ErrorIs(t, err, ErrInvalidOperand)
}

func sumInts(xs []int) int {
	total := 0
	for _, x := range xs {
		total += x
	}
	return total
}

func encodeOperands(t *testing.T, op Opcode, vals ...interface{}) []byte {
	t.Helper()
	var buf []byte
	for _, v := range vals {
		switch x := v.(type) {
		case byte:
			buf = PutUint8(buf, x)
		case uint16:
			buf = PutUint16(buf, x)
		case uint32:
			buf = PutUint32(buf, x)
		default:
			t.Fatalf("unsupported operand literal %T", v)
		}
	}
	require.Equal(t, op.Size()-1, len(buf))
	return buf
}
