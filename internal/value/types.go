package value

import (
	"fmt"
	"strings"
)

// Type selects a typed view over a Value.
type Type uint8

const (
	U8 Type = iota + 1
	U16
	U32
	U64
	I8
	I16
	I32
	I64
	F32
	F64
	U16x4
	U32x2
	I16x4
	I32x2
	F32x2
)

var typeNames = [...]string{
	U8:    "u8",
	U16:   "u16",
	U32:   "u32",
	U64:   "u64",
	I8:    "i8",
	I16:   "i16",
	I32:   "i32",
	I64:   "i64",
	F32:   "f32",
	F64:   "f64",
	U16x4: "u16x4",
	U32x2: "u32x2",
	I16x4: "i16x4",
	I32x2: "i32x2",
	F32x2: "f32x2",
}

// ParseType resolves a type name such as "u32" or "f32x2".
func ParseType(s string) (Type, error) {
	n := strings.ToLower(strings.TrimSpace(s))
	for t, name := range typeNames {
		if name != "" && name == n {
			return Type(t), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// Valid reports whether t is a known view.
func (t Type) Valid() bool { return t >= U8 && t <= F32x2 }

func (t Type) String() string {
	if !t.Valid() {
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
	return typeNames[t]
}

// Lanes returns the number of lanes for vector views and 1 for scalars.
func (t Type) Lanes() int {
	switch t {
	case U16x4, I16x4:
		return 4
	case U32x2, I32x2, F32x2:
		return 2
	default:
		return 1
	}
}

// Lane returns the scalar type of a single lane. Scalars return themselves.
func (t Type) Lane() Type {
	switch t {
	case U16x4:
		return U16
	case I16x4:
		return I16
	case U32x2:
		return U32
	case I32x2:
		return I32
	case F32x2:
		return F32
	default:
		return t
	}
}

// Bits returns the bit width of a scalar or of one lane.
func (t Type) Bits() int {
	switch t.Lane() {
	case U8, I8:
		return 8
	case U16, I16:
		return 16
	case U32, I32, F32:
		return 32
	case U64, I64, F64:
		return 64
	default:
		return 0
	}
}

func (t Type) IsFloat() bool { return t.Lane() == F32 || t.Lane() == F64 }

func (t Type) IsSigned() bool {
	switch t.Lane() {
	case I8, I16, I32, I64:
		return true
	default:
		return false
	}
}

func (t Type) mask() uint64 {
	if t.Bits() == 64 {
		return ^uint64(0)
	}
	return (uint64(1) << t.Bits()) - 1
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, t)
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(b []byte) error {
	parsed, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
