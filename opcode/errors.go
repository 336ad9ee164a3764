package opcode

import "errors"

// Decode-time errors: a corrupt or truncated instruction stream.
var (
	ErrInvalidOpcode  = errors.New("invalid opcode")
	ErrInvalidOperand = errors.New("invalid operand")
)
