package sylph

import (
	"fmt"
	"math"
	"math/big"
)

// Constant represents a value from the analyzer's constant-folding
// domain. Backends recognize the variants below; any other
// implementation of this interface lowers to a fresh opaque term.
type Constant interface {
	fmt.Stringer
	constant()
}

func (BoolConstant) constant()    {}
func (CharConstant) constant()    {}
func (*IntConstant) constant()    {}
func (*UintConstant) constant()   {}
func (Float32Constant) constant() {}
func (Float64Constant) constant() {}
func (StrConstant) constant()     {}

// BoolConstant is a boolean literal.
type BoolConstant bool

// String returns the string representation of the constant.
func (c BoolConstant) String() string {
	if c {
		return "true"
	}
	return "false"
}

// CharConstant is a character literal. It is encoded through its
// 16-bit code point; code points above U+FFFF are truncated.
type CharConstant rune

// CodePoint returns the character widened to a 16-bit code point.
func (c CharConstant) CodePoint() uint16 { return uint16(c) }

// String returns the string representation of the constant.
func (c CharConstant) String() string {
	return fmt.Sprintf("%q", rune(c))
}

// IntConstant is a signed integer literal of up to 128 bits.
type IntConstant struct {
	value *big.Int
}

// NewIntConstant returns a constant for a 64-bit signed value.
func NewIntConstant(v int64) *IntConstant {
	return &IntConstant{value: big.NewInt(v)}
}

// NewIntConstantFromBig returns a constant for an arbitrary-width
// signed value. The value is copied.
func NewIntConstantFromBig(v *big.Int) *IntConstant {
	return &IntConstant{value: new(big.Int).Set(v)}
}

// Int64 returns the value and true if it fits in 64 bits.
func (c *IntConstant) Int64() (int64, bool) {
	if c.value.IsInt64() {
		return c.value.Int64(), true
	}
	return 0, false
}

// String returns the decimal representation of the constant.
func (c *IntConstant) String() string { return c.value.String() }

// UintConstant is an unsigned integer literal of up to 128 bits.
type UintConstant struct {
	value *big.Int
}

// NewUintConstant returns a constant for a 64-bit unsigned value.
func NewUintConstant(v uint64) *UintConstant {
	return &UintConstant{value: new(big.Int).SetUint64(v)}
}

// NewUintConstantFromBig returns a constant for an arbitrary-width
// unsigned value. The value is copied.
func NewUintConstantFromBig(v *big.Int) *UintConstant {
	return &UintConstant{value: new(big.Int).Set(v)}
}

// Uint64 returns the value and true if it fits in 64 bits.
func (c *UintConstant) Uint64() (uint64, bool) {
	if c.value.IsUint64() {
		return c.value.Uint64(), true
	}
	return 0, false
}

// String returns the decimal representation of the constant.
func (c *UintConstant) String() string { return c.value.String() }

// Float32Constant is an IEEE-754 single precision literal, held as
// its raw bit pattern so that NaN payloads and signed zeros survive
// the trip through the IR.
type Float32Constant uint32

// NewFloat32Constant returns a constant for a float32 value.
func NewFloat32Constant(v float32) Float32Constant {
	return Float32Constant(math.Float32bits(v))
}

// Float returns the value reconstructed from the bit pattern.
func (c Float32Constant) Float() float32 {
	return math.Float32frombits(uint32(c))
}

// String returns the string representation of the constant.
func (c Float32Constant) String() string {
	return fmt.Sprintf("%g", c.Float())
}

// Float64Constant is an IEEE-754 double precision literal, held as
// its raw bit pattern.
type Float64Constant uint64

// NewFloat64Constant returns a constant for a float64 value.
func NewFloat64Constant(v float64) Float64Constant {
	return Float64Constant(math.Float64bits(v))
}

// Float returns the value reconstructed from the bit pattern.
func (c Float64Constant) Float() float64 {
	return math.Float64frombits(uint64(c))
}

// String returns the string representation of the constant.
func (c Float64Constant) String() string {
	return fmt.Sprintf("%g", c.Float())
}

// StrConstant is a string literal. Backends have no string theory
// mapping and treat it as an opaque unconstrained value.
type StrConstant string

// String returns the string representation of the constant.
func (c StrConstant) String() string {
	return fmt.Sprintf("%q", string(c))
}
