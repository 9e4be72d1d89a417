// Package value implements the fixed-size data word that cells operate on.
//
// A Value is always 8 bytes. Typed views read and write the low bytes in
// little-endian order (scalars) or split the word into equal lanes (u16x4,
// u32x2, i16x4, i32x2, f32x2). Writing through a narrow view leaves the
// remaining bytes untouched.
package value

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Size is the number of bytes held by a Value.
const Size = 8

// Value is an 8-byte data word.
type Value struct {
	Bytes [Size]byte
}

// FromBytes returns a Value holding b.
func FromBytes(b [Size]byte) Value { return Value{Bytes: b} }

// Equal reports whether both values hold identical bytes.
func (v Value) Equal(other Value) bool { return v.Bytes == other.Bytes }

// Compare orders values lexicographically by byte.
func (v Value) Compare(other Value) int { return bytes.Compare(v.Bytes[:], other.Bytes[:]) }

func (v *Value) U8() uint8 { return v.Bytes[0] }
func (v *Value) SetU8(x uint8) { v.Bytes[0] = x }
func (v *Value) I8() int8 { return int8(v.Bytes[0]) }
func (v *Value) SetI8(x int8) { v.Bytes[0] = byte(x) }
func (v *Value) U16() uint16 { return binary.LittleEndian.Uint16(v.Bytes[:2]) }
func (v *Value) SetU16(x uint16) { binary.LittleEndian.PutUint16(v.Bytes[:2], x) }
func (v *Value) I16() int16 { return int16(v.U16()) }
func (v *Value) SetI16(x int16) { v.SetU16(uint16(x)) }
func (v *Value) U32() uint32 { return binary.LittleEndian.Uint32(v.Bytes[:4]) }
func (v *Value) SetU32(x uint32) { binary.LittleEndian.PutUint32(v.Bytes[:4], x) }
func (v *Value) I32() int32 { return int32(v.U32()) }
func (v *Value) SetI32(x int32) { v.SetU32(uint32(x)) }
func (v *Value) U64() uint64 { return binary.LittleEndian.Uint64(v.Bytes[:]) }
func (v *Value) SetU64(x uint64) { binary.LittleEndian.PutUint64(v.Bytes[:], x) }
func (v *Value) I64() int64 { return int64(v.U64()) }
func (v *Value) SetI64(x int64) { v.SetU64(uint64(x)) }
func (v *Value) F32() float32 { return math.Float32frombits(v.U32()) }
func (v *Value) SetF32(x float32) { v.SetU32(math.Float32bits(x)) }
func (v *Value) F64() float64 { return math.Float64frombits(v.U64()) }
func (v *Value) SetF64(x float64) { v.SetU64(math.Float64bits(x)) }

// U16x4 returns the word as four u16 lanes.
func (v *Value) U16x4() [4]uint16 {
	var out [4]uint16
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(v.Bytes[i*2:])
	}
	return out
}

func (v *Value) SetU16x4(x [4]uint16) {
	for i := range x {
		binary.LittleEndian.PutUint16(v.Bytes[i*2:], x[i])
	}
}

func (v *Value) I16x4() [4]int16 {
	u := v.U16x4()
	return [4]int16{int16(u[0]), int16(u[1]), int16(u[2]), int16(u[3])}
}

func (v *Value) SetI16x4(x [4]int16) {
	v.SetU16x4([4]uint16{uint16(x[0]), uint16(x[1]), uint16(x[2]), uint16(x[3])})
}

// U32x2 returns the word as two u32 lanes.
func (v *Value) U32x2() [2]uint32 {
	return [2]uint32{
		binary.LittleEndian.Uint32(v.Bytes[0:4]),
		binary.LittleEndian.Uint32(v.Bytes[4:8]),
	}
}

func (v *Value) SetU32x2(x [2]uint32) {
	binary.LittleEndian.PutUint32(v.Bytes[0:4], x[0])
	binary.LittleEndian.PutUint32(v.Bytes[4:8], x[1])
}

func (v *Value) I32x2() [2]int32 {
	u := v.U32x2()
	return [2]int32{int32(u[0]), int32(u[1])}
}

func (v *Value) SetI32x2(x [2]int32) {
	v.SetU32x2([2]uint32{uint32(x[0]), uint32(x[1])})
}

func (v *Value) F32x2() [2]float32 {
	u := v.U32x2()
	return [2]float32{math.Float32frombits(u[0]), math.Float32frombits(u[1])}
}

func (v *Value) SetF32x2(x [2]float32) {
	v.SetU32x2([2]uint32{math.Float32bits(x[0]), math.Float32bits(x[1])})
}

// String renders the raw bytes.
func (v Value) String() string { return fmt.Sprintf("%v", v.Bytes) }

// Parse builds a Value of type t from a literal.
//
// Scalars accept Go integer syntax (0x, 0b, 0o prefixes) or float syntax.
// Lane types take a comma separated list with exactly one literal per lane.
// An empty literal yields the zero value.
func Parse(t Type, literal string) (Value, error) {
	var v Value
	if !t.Valid() {
		return v, fmt.Errorf("%w: %d", ErrUnknownType, t)
	}
	literal = strings.TrimSpace(literal)
	if literal == "" {
		return v, nil
	}
	if t.Lanes() > 1 {
		parts := strings.Split(literal, ",")
		if len(parts) != t.Lanes() {
			return v, fmt.Errorf("%s literal %q: want %d lanes, got %d", t, literal, t.Lanes(), len(parts))
		}
		lane := t.Lane()
		width := lane.Bits() / 8
		for i, p := range parts {
			lv, err := Parse(lane, p)
			if err != nil {
				return v, fmt.Errorf("%s lane %d: %w", t, i, err)
			}
			copy(v.Bytes[i*width:(i+1)*width], lv.Bytes[:width])
		}
		return v, nil
	}

	switch {
	case t.IsFloat():
		f, err := strconv.ParseFloat(literal, t.Bits())
		if err != nil {
			return v, fmt.Errorf("%s literal %q: %w", t, literal, err)
		}
		if t == F32 {
			v.SetF32(float32(f))
		} else {
			v.SetF64(f)
		}
	case t.IsSigned():
		n, err := strconv.ParseInt(literal, 0, t.Bits())
		if err != nil {
			return v, fmt.Errorf("%s literal %q: %w", t, literal, err)
		}
		v.SetU64(uint64(n) & t.mask())
	default:
		n, err := strconv.ParseUint(literal, 0, t.Bits())
		if err != nil {
			return v, fmt.Errorf("%s literal %q: %w", t, literal, err)
		}
		v.SetU64(n)
	}
	return v, nil
}

// Format renders v through the view t. It is the inverse of Parse.
func (v Value) Format(t Type) string {
	if t.Lanes() > 1 {
		lane := t.Lane()
		width := lane.Bits() / 8
		parts := make([]string, t.Lanes())
		for i := range parts {
			var lv Value
			copy(lv.Bytes[:width], v.Bytes[i*width:(i+1)*width])
			parts[i] = lv.Format(lane)
		}
		return strings.Join(parts, ",")
	}
	switch t {
	case U8:
		return strconv.FormatUint(uint64(v.U8()), 10)
	case U16:
		return strconv.FormatUint(uint64(v.U16()), 10)
	case U32:
		return strconv.FormatUint(uint64(v.U32()), 10)
	case U64:
		return strconv.FormatUint(v.U64(), 10)
	case I8:
		return strconv.FormatInt(int64(v.I8()), 10)
	case I16:
		return strconv.FormatInt(int64(v.I16()), 10)
	case I32:
		return strconv.FormatInt(int64(v.I32()), 10)
	case I64:
		return strconv.FormatInt(v.I64(), 10)
	case F32:
		return strconv.FormatFloat(float64(v.F32()), 'g', -1, 32)
	case F64:
		return strconv.FormatFloat(v.F64(), 'g', -1, 64)
	default:
		return v.String()
	}
}
