package ir

// ConstantKind tags the constant-pool literal variants per spec §3:
// void, boolean, integer (up to 128-bit), float, character, string,
// bytes.
type ConstantKind byte

const (
	ConstVoid ConstantKind = iota
	ConstBool
	ConstInt
	ConstFloat
	ConstChar
	ConstString
	ConstBytes
)

// Constant is one constant-pool literal. Int128Hi/Int128Lo hold the
// high/low 64 bits of an up-to-128-bit integer literal; ordinary i64
// literals only ever populate Int128Lo, with Int128Hi sign-extended.
type Constant struct {
	Kind     ConstantKind
	Int128Lo uint64
	Int128Hi uint64
	Float    float64
	Char     rune
	Bool     bool
	Str      string
	Bytes    []byte
}

func VoidConstant() Constant { return Constant{Kind: ConstVoid} }

func BoolConstant(b bool) Constant { return Constant{Kind: ConstBool, Bool: b} }

func IntConstant(i int64) Constant {
	hi := uint64(0)
	if i < 0 {
		hi = ^uint64(0)
	}
	return Constant{Kind: ConstInt, Int128Lo: uint64(i), Int128Hi: hi}
}

func FloatConstant(f float64) Constant { return Constant{Kind: ConstFloat, Float: f} }

func CharConstant(r rune) Constant { return Constant{Kind: ConstChar, Char: r} }

func StringConstant(s string) Constant { return Constant{Kind: ConstString, Str: s} }

func BytesConstant(b []byte) Constant { return Constant{Kind: ConstBytes, Bytes: append([]byte(nil), b...)} }

// Equal reports structural equality, the relation the emitter's
// constant-pool interning is defined over: equal literals reuse the
// same index.
func (c Constant) Equal(other Constant) bool {
	if c.Kind != other.Kind {
		return false
	}
	switch c.Kind {
	case ConstVoid:
		return true
	case ConstBool:
		return c.Bool == other.Bool
	case ConstInt:
		return c.Int128Lo == other.Int128Lo && c.Int128Hi == other.Int128Hi
	case ConstFloat:
		return c.Float == other.Float
	case ConstChar:
		return c.Char == other.Char
	case ConstString:
		return c.Str == other.Str
	case ConstBytes:
		if len(c.Bytes) != len(other.Bytes) {
			return false
		}
		for i := range c.Bytes {
			if c.Bytes[i] != other.Bytes[i] {
				return false
			}
		}
		return true
	default:
		return false
	}
}
