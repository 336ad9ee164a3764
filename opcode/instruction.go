package opcode

import (
	"encoding/binary"
	"fmt"
)

// Instruction is a single decoded (opcode, operand bytes) record. Operand
// bytes are kept in their raw little-endian form; callers pull typed
// values out with the Uint8/Uint16/Uint32/Int16/Int32 accessors below.
type Instruction struct {
	Op       Opcode
	Operands []byte
}

// Encode appends the instruction's byte-level encoding to dst: one
// opcode byte followed by its operand bytes, little-endian for
// multi-byte fields.
func (in Instruction) Encode(dst []byte) []byte {
	dst = append(dst, byte(in.Op))
	dst = append(dst, in.Operands...)
	return dst
}

// Size returns 1 (opcode byte) plus the sum of the opcode's nominal
// operand byte widths.
func (o Opcode) Size() int {
	total := 1
	for _, w := range o.OperandSizes() {
		total += w
	}
	return total
}

// Decode reads one instruction starting at offset, returning the
// instruction and the offset of the next one. It fails with
// ErrInvalidOpcode for an unrecognized byte and ErrInvalidOperand if
// the stream is truncated before the operand bytes are complete.
func Decode(stream []byte, offset int) (Instruction, int, error) {
	if offset < 0 || offset >= len(stream) {
		return Instruction{}, offset, fmt.Errorf("%w: offset %d out of range", ErrInvalidOperand, offset)
	}
	op := Opcode(stream[offset])
	if !op.Valid() {
		return Instruction{}, offset, fmt.Errorf("%w: byte 0x%02X at offset %d", ErrInvalidOpcode, stream[offset], offset)
	}
	sizes := op.OperandSizes()
	operandLen := 0
	for _, w := range sizes {
		operandLen += w
	}
	start := offset + 1
	end := start + operandLen
	if end > len(stream) {
		return Instruction{}, offset, fmt.Errorf("%w: opcode %s truncated at offset %d", ErrInvalidOperand, op.Name(), offset)
	}
	operands := make([]byte, operandLen)
	copy(operands, stream[start:end])
	return Instruction{Op: op, Operands: operands}, end, nil
}

// operandOffset returns the byte offset within Operands of the nth
// operand, given the opcode's declared operand sizes.
func (in Instruction) operandOffset(n int) int {
	sizes := in.Op.OperandSizes()
	off := 0
	for i := 0; i < n && i < len(sizes); i++ {
		off += sizes[i]
	}
	return off
}

// Uint8 reads the nth operand as a single byte (a register, local, or
// argument index).
func (in Instruction) Uint8(n int) byte {
	return in.Operands[in.operandOffset(n)]
}

// Uint16 reads the nth operand as a little-endian u16 (e.g. a
// constant-pool index).
func (in Instruction) Uint16(n int) uint16 {
	off := in.operandOffset(n)
	return binary.LittleEndian.Uint16(in.Operands[off : off+2])
}

// Uint32 reads the nth operand as a little-endian u32 (e.g. a function id).
func (in Instruction) Uint32(n int) uint32 {
	off := in.operandOffset(n)
	return binary.LittleEndian.Uint32(in.Operands[off : off+4])
}

// Int16 reads the nth operand as a little-endian signed 16-bit relative
// offset (conditional jumps).
func (in Instruction) Int16(n int) int16 {
	return int16(in.Uint16(n))
}

// Int32 reads the nth operand as a little-endian signed 32-bit relative
// offset (unconditional jumps).
func (in Instruction) Int32(n int) int32 {
	return int32(in.Uint32(n))
}

// PutUint8 appends a single operand byte.
func PutUint8(dst []byte, v byte) []byte {
	return append(dst, v)
}

// PutUint16 appends a little-endian u16 operand.
func PutUint16(dst []byte, v uint16) []byte {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	return append(dst, buf[:]...)
}

// PutUint32 appends a little-endian u32 operand.
func PutUint32(dst []byte, v uint32) []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return append(dst, buf[:]...)
}

// PutInt16 appends a little-endian signed 16-bit operand.
func PutInt16(dst []byte, v int16) []byte {
	return PutUint16(dst, uint16(v))
}

// PutInt32 appends a little-endian signed 32-bit operand.
func PutInt32(dst []byte, v int32) []byte {
	return PutUint32(dst, uint32(v))
}
