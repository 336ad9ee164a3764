package module

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/yaoxiang-lang/yaoxiang/ir"
)

// reader is a cursor over a byte slice used by Decode; every read
// method reports ErrCorruptModule once the stream runs out before the
// requested field is complete.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) u32() (uint32, error) {
	if r.pos+4 > len(r.buf) {
		return 0, fmt.Errorf("%w: truncated u32 at offset %d", ErrCorruptModule, r.pos)
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	if r.pos+8 > len(r.buf) {
		return 0, fmt.Errorf("%w: truncated u64 at offset %d", ErrCorruptModule, r.pos)
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

func (r *reader) byte() (byte, error) {
	if r.pos+1 > len(r.buf) {
		return 0, fmt.Errorf("%w: truncated byte at offset %d", ErrCorruptModule, r.pos)
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, fmt.Errorf("%w: truncated %d-byte field at offset %d", ErrCorruptModule, n, r.pos)
	}
	out := make([]byte, n)
	copy(out, r.buf[r.pos:r.pos+n])
	r.pos += n
	return out, nil
}

func (r *reader) str() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	b, err := r.bytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeConstant(r *reader) (ir.Constant, error) {
	tag, err := r.byte()
	if err != nil {
		return ir.Constant{}, err
	}
	switch ir.ConstantKind(tag) {
	case ir.ConstVoid:
		return ir.VoidConstant(), nil
	case ir.ConstBool:
		b, err := r.byte()
		if err != nil {
			return ir.Constant{}, err
		}
		return ir.BoolConstant(b == 1), nil
	case ir.ConstInt:
		lo, err := r.u64()
		if err != nil {
			return ir.Constant{}, err
		}
		hi, err := r.u64()
		if err != nil {
			return ir.Constant{}, err
		}
		return ir.Constant{Kind: ir.ConstInt, Int128Lo: lo, Int128Hi: hi}, nil
	case ir.ConstFloat:
		bits, err := r.u64()
		if err != nil {
			return ir.Constant{}, err
		}
		return ir.FloatConstant(math.Float64frombits(bits)), nil
	case ir.ConstChar:
		v, err := r.u32()
		if err != nil {
			return ir.Constant{}, err
		}
		return ir.CharConstant(rune(v)), nil
	case ir.ConstString:
		s, err := r.str()
		if err != nil {
			return ir.Constant{}, err
		}
		return ir.StringConstant(s), nil
	case ir.ConstBytes:
		n, err := r.u32()
		if err != nil {
			return ir.Constant{}, err
		}
		b, err := r.bytes(int(n))
		if err != nil {
			return ir.Constant{}, err
		}
		return ir.BytesConstant(b), nil
	default:
		return ir.Constant{}, fmt.Errorf("%w: unknown constant tag %d", ErrCorruptModule, tag)
	}
}

func decodeType(r *reader) (ir.Type, error) {
	kindByte, err := r.byte()
	if err != nil {
		return ir.Type{}, err
	}
	kind := ir.TypeKind(kindByte)
	t := ir.Type{Kind: kind}

	if kind == ir.TypeVar || kind == ir.TypeStruct || kind == ir.TypeEnum {
		name, err := r.str()
		if err != nil {
			return ir.Type{}, err
		}
		t.Name = name
	}
	if kind == ir.TypeStruct || kind == ir.TypeEnum {
		n, err := r.u32()
		if err != nil {
			return ir.Type{}, err
		}
		t.Fields = make([]ir.Field, n)
		for i := range t.Fields {
			name, err := r.str()
			if err != nil {
				return ir.Type{}, err
			}
			ft, err := decodeType(r)
			if err != nil {
				return ir.Type{}, err
			}
			t.Fields[i] = ir.Field{Name: name, Type: ft}
		}
	}
	if kind == ir.TypeList || kind == ir.TypeSet || kind == ir.TypeSharedRef || kind == ir.TypeRange {
		has, err := r.byte()
		if err != nil {
			return ir.Type{}, err
		}
		if has == 1 {
			elem, err := decodeType(r)
			if err != nil {
				return ir.Type{}, err
			}
			t.Elem = &elem
		}
	}
	if kind == ir.TypeDict {
		hasKey, err := r.byte()
		if err != nil {
			return ir.Type{}, err
		}
		if hasKey == 1 {
			k, err := decodeType(r)
			if err != nil {
				return ir.Type{}, err
			}
			t.Key = &k
		}
		hasValue, err := r.byte()
		if err != nil {
			return ir.Type{}, err
		}
		if hasValue == 1 {
			v, err := decodeType(r)
			if err != nil {
				return ir.Type{}, err
			}
			t.Value = &v
		}
	}
	if kind == ir.TypeTuple || kind == ir.TypeUnion || kind == ir.TypeIntersection || kind == ir.TypeFunction {
		n, err := r.u32()
		if err != nil {
			return ir.Type{}, err
		}
		t.Params = make([]ir.Type, n)
		for i := range t.Params {
			p, err := decodeType(r)
			if err != nil {
				return ir.Type{}, err
			}
			t.Params[i] = p
		}
	}
	if kind == ir.TypeFunction {
		has, err := r.byte()
		if err != nil {
			return ir.Type{}, err
		}
		if has == 1 {
			ret, err := decodeType(r)
			if err != nil {
				return ir.Type{}, err
			}
			t.Return = &ret
		}
	}
	return t, nil
}
