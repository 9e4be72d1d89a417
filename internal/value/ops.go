package value

import (
	"fmt"
	"math"
	"strings"
)

// Kind is the arithmetic or bitwise operator of an Operation.
type Kind uint8

const (
	Add Kind = iota + 1
	Sub
	Mul
	Div
	Rem
	BitAnd
	BitOr
	BitXor
	Shl
	Shr
)

var kindNames = [...]string{
	Add:    "add",
	Sub:    "sub",
	Mul:    "mul",
	Div:    "div",
	Rem:    "rem",
	BitAnd: "bit_and",
	BitOr:  "bit_or",
	BitXor: "bit_xor",
	Shl:    "shl",
	Shr:    "shr",
}

func (k Kind) String() string {
	if k < Add || k > Shr {
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
	return kindNames[k]
}

// integerOnly reports whether k is undefined on floating point types.
func (k Kind) integerOnly() bool {
	switch k {
	case BitAnd, BitOr, BitXor, Shl, Shr:
		return true
	default:
		return false
	}
}

// Form selects where the result of an Operation is written.
type Form uint8

const (
	// Assign writes op0 = op0 <kind> op1.
	Assign Form = iota + 1
	// Out writes op2 = op0 <kind> op1.
	Out
)

// Operation is a typed binary operator applied to operand values.
type Operation struct {
	Kind Kind
	Type Type
	Form Form
}

// Operands returns the number of operand slots the operation reads or writes.
func (o Operation) Operands() int {
	if o.Form == Out {
		return 3
	}
	return 2
}

// String renders the operation as "<kind>[_assign]:<type>".
func (o Operation) String() string {
	name := o.Kind.String()
	if o.Form == Assign {
		name += "_assign"
	}
	return name + ":" + o.Type.String()
}

// ParseOperation parses the form produced by Operation.String, e.g.
// "add_assign:u8" or "shl:i32".
func ParseOperation(s string) (Operation, error) {
	raw := strings.ToLower(strings.TrimSpace(s))
	kindPart, typePart, ok := strings.Cut(raw, ":")
	if !ok {
		return Operation{}, fmt.Errorf("%w: %q (expected <kind>:<type>)", ErrUnknownOp, s)
	}

	op := Operation{Form: Out}
	if base, found := strings.CutSuffix(kindPart, "_assign"); found {
		op.Form = Assign
		kindPart = base
	}
	for k, name := range kindNames {
		if name != "" && name == kindPart {
			op.Kind = Kind(k)
		}
	}
	if op.Kind == 0 {
		return Operation{}, fmt.Errorf("%w: %q", ErrUnknownOp, s)
	}

	t, err := ParseType(typePart)
	if err != nil {
		return Operation{}, err
	}
	op.Type = t
	if err := op.Validate(); err != nil {
		return Operation{}, err
	}
	return op, nil
}

// Validate rejects combinations that have no defined meaning.
func (o Operation) Validate() error {
	if o.Kind < Add || o.Kind > Shr {
		return fmt.Errorf("%w: kind %d", ErrUnknownOp, o.Kind)
	}
	if o.Form != Assign && o.Form != Out {
		return fmt.Errorf("%w: form %d", ErrUnknownOp, o.Form)
	}
	if !o.Type.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownType, o.Type)
	}
	if o.Type.Lanes() != 1 {
		return fmt.Errorf("%w: %s on %s", ErrUnsupported, o.Kind, o.Type)
	}
	if o.Type.IsFloat() && o.Kind.integerOnly() {
		return fmt.Errorf("%w: %s on %s", ErrUnsupported, o.Kind, o.Type)
	}
	return nil
}

// Apply executes the operation. op2 is only consulted for the Out form.
//
// On error no operand is modified.
func (o Operation) Apply(op0, op1, op2 *Value) error {
	if err := o.Validate(); err != nil {
		return err
	}
	if op0 == nil || op1 == nil {
		return ErrMissingOperand
	}
	dst := op0
	if o.Form == Out {
		if op2 == nil {
			return ErrMissingOperand
		}
		dst = op2
	}

	var err error
	switch o.Type {
	case U8:
		var r uint8
		if r, err = intOp(o.Kind, op0.U8(), op1.U8(), 8); err == nil {
			dst.SetU8(r)
		}
	case U16:
		var r uint16
		if r, err = intOp(o.Kind, op0.U16(), op1.U16(), 16); err == nil {
			dst.SetU16(r)
		}
	case U32:
		var r uint32
		if r, err = intOp(o.Kind, op0.U32(), op1.U32(), 32); err == nil {
			dst.SetU32(r)
		}
	case U64:
		var r uint64
		if r, err = intOp(o.Kind, op0.U64(), op1.U64(), 64); err == nil {
			dst.SetU64(r)
		}
	case I8:
		var r int8
		if r, err = intOp(o.Kind, op0.I8(), op1.I8(), 8); err == nil {
			dst.SetI8(r)
		}
	case I16:
		var r int16
		if r, err = intOp(o.Kind, op0.I16(), op1.I16(), 16); err == nil {
			dst.SetI16(r)
		}
	case I32:
		var r int32
		if r, err = intOp(o.Kind, op0.I32(), op1.I32(), 32); err == nil {
			dst.SetI32(r)
		}
	case I64:
		var r int64
		if r, err = intOp(o.Kind, op0.I64(), op1.I64(), 64); err == nil {
			dst.SetI64(r)
		}
	case F32:
		dst.SetF32(float32(floatOp(o.Kind, float64(op0.F32()), float64(op1.F32()))))
	case F64:
		dst.SetF64(floatOp(o.Kind, op0.F64(), op1.F64()))
	}
	return err
}

type integer interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 | ~int8 | ~int16 | ~int32 | ~int64
}

func intOp[T integer](k Kind, a, b T, bits uint) (T, error) {
	switch k {
	case Add:
		return a + b, nil
	case Sub:
		return a - b, nil
	case Mul:
		return a * b, nil
	case Div:
		if b == 0 {
			return 0, ErrDivideByZero
		}
		return a / b, nil
	case Rem:
		if b == 0 {
			return 0, ErrDivideByZero
		}
		return a % b, nil
	case BitAnd:
		return a & b, nil
	case BitOr:
		return a | b, nil
	case BitXor:
		return a ^ b, nil
	case Shl:
		return a << (uint64(b) % uint64(bits)), nil
	case Shr:
		return a >> (uint64(b) % uint64(bits)), nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownOp, k)
	}
}

func floatOp(k Kind, a, b float64) float64 {
	switch k {
	case Add:
		return a + b
	case Sub:
		return a - b
	case Mul:
		return a * b
	case Div:
		return a / b
	case Rem:
		return math.Mod(a, b)
	default:
		return math.NaN()
	}
}
