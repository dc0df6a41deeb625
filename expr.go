package sylph

import "fmt"

// Expr represents a node in the symbolic expression tree. Expressions
// are immutable; children are shared by reference and never mutated
// by consumers.
type Expr interface {
	fmt.Stringer
	expr()
}

func (*BinaryExpr) expr()   {}
func (*NotExpr) expr()      {}
func (*NegExpr) expr()      {}
func (*CondExpr) expr()     {}
func (*ConstantExpr) expr() {}
func (*VarExpr) expr()      {}
func (*RefExpr) expr()      {}
func (*TopExpr) expr()      {}

// Path identifies a variable or storage location. Its textual form is
// used as the solver-visible symbol name, so equal paths denote the
// same symbolic value within one session.
type Path string

// String returns the textual form of the path.
func (p Path) String() string { return string(p) }

// BinaryOp represents a binary expression operation.
type BinaryOp int

// BinaryExpr operations.
const (
	arithmetic_op_begin = BinaryOp(iota)
	Add
	Sub
	Mul
	Div
	Rem
	arithmetic_op_end

	connective_op_begin
	And
	Or
	connective_op_end

	bitwise_op_begin
	BitAnd
	BitOr
	BitXor
	bitwise_op_end

	shift_op_begin
	Shl
	Shr
	shift_op_end

	compare_op_begin
	Equals
	Ne
	GreaterThan
	GreaterOrEqual
	LessThan
	LessOrEqual
	compare_op_end

	overflow_op_begin
	AddOverflows
	SubOverflows
	MulOverflows
	ShlOverflows
	ShrOverflows
	overflow_op_end
)

var binaryOps = [...]string{
	Add:            "add",
	Sub:            "sub",
	Mul:            "mul",
	Div:            "div",
	Rem:            "rem",
	And:            "and",
	Or:             "or",
	BitAnd:         "bitand",
	BitOr:          "bitor",
	BitXor:         "bitxor",
	Shl:            "shl",
	Shr:            "shr",
	Equals:         "eq",
	Ne:             "ne",
	GreaterThan:    "gt",
	GreaterOrEqual: "ge",
	LessThan:       "lt",
	LessOrEqual:    "le",
	AddOverflows:   "add_overflows",
	SubOverflows:   "sub_overflows",
	MulOverflows:   "mul_overflows",
	ShlOverflows:   "shl_overflows",
	ShrOverflows:   "shr_overflows",
}

// String returns the string representation of the operation.
func (op BinaryOp) String() string {
	if op >= 0 && op < BinaryOp(len(binaryOps)) && binaryOps[op] != "" {
		return binaryOps[op]
	}
	return fmt.Sprintf("BinaryOp<%d>", op)
}

// IsArithmetic returns true if op is an arithmetic operator.
func (op BinaryOp) IsArithmetic() bool {
	return op > arithmetic_op_begin && op < arithmetic_op_end
}

// IsConnective returns true if op is a boolean connective.
func (op BinaryOp) IsConnective() bool {
	return op > connective_op_begin && op < connective_op_end
}

// IsBitwise returns true if op is a bitwise operator.
func (op BinaryOp) IsBitwise() bool {
	return op > bitwise_op_begin && op < bitwise_op_end
}

// IsShift returns true if op is a shift operator.
func (op BinaryOp) IsShift() bool {
	return op > shift_op_begin && op < shift_op_end
}

// IsCompare returns true if op is an equality or ordering operator.
func (op BinaryOp) IsCompare() bool {
	return op > compare_op_begin && op < compare_op_end
}

// IsOverflowCheck returns true if op is a checked-arithmetic
// overflow predicate.
func (op BinaryOp) IsOverflowCheck() bool {
	return op > overflow_op_begin && op < overflow_op_end
}

// RequiresResultType returns true if op needs a declared result type
// to be encoded. Right shifts and overflow checks observe the exact
// bit width and signedness of their result type.
func (op BinaryOp) RequiresResultType() bool {
	return op == Shr || op.IsOverflowCheck()
}

// BinaryExpr represents an operation on two expressions. ResultType
// is meaningful only for operations where RequiresResultType is true
// and is TypeNonPrimitive otherwise.
type BinaryExpr struct {
	Op         BinaryOp
	LHS        Expr
	RHS        Expr
	ResultType Type
}

// NewBinaryExpr returns a new instance of BinaryExpr for an operation
// that carries no result type.
func NewBinaryExpr(op BinaryOp, lhs, rhs Expr) *BinaryExpr {
	assert(lhs != nil && rhs != nil, "binary expr operand is nil: op=%s", op)
	assert(!op.RequiresResultType(), "binary expr requires result type: op=%s", op)
	return &BinaryExpr{Op: op, LHS: lhs, RHS: rhs, ResultType: TypeNonPrimitive}
}

// NewTypedBinaryExpr returns a new instance of BinaryExpr carrying
// the operation's declared result type.
func NewTypedBinaryExpr(op BinaryOp, lhs, rhs Expr, resultType Type) *BinaryExpr {
	assert(lhs != nil && rhs != nil, "binary expr operand is nil: op=%s", op)
	return &BinaryExpr{Op: op, LHS: lhs, RHS: rhs, ResultType: resultType}
}

// String returns the string representation of the expression.
func (e *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Op, e.LHS, e.RHS)
}

// NotExpr represents the logical negation of a boolean expression.
type NotExpr struct {
	Operand Expr
}

// NewNotExpr returns a new instance of NotExpr.
func NewNotExpr(operand Expr) *NotExpr {
	assert(operand != nil, "not expr operand is nil")
	return &NotExpr{Operand: operand}
}

// String returns the string representation of the expression.
func (e *NotExpr) String() string {
	return fmt.Sprintf("(not %s)", e.Operand)
}

// NegExpr represents the arithmetic negation of a numeric expression.
type NegExpr struct {
	Operand Expr
}

// NewNegExpr returns a new instance of NegExpr.
func NewNegExpr(operand Expr) *NegExpr {
	assert(operand != nil, "neg expr operand is nil")
	return &NegExpr{Operand: operand}
}

// String returns the string representation of the expression.
func (e *NegExpr) String() string {
	return fmt.Sprintf("(neg %s)", e.Operand)
}

// CondExpr represents a conditional (ternary) expression.
type CondExpr struct {
	Cond Expr
	Then Expr
	Else Expr
}

// NewCondExpr returns a new instance of CondExpr.
func NewCondExpr(cond, then, els Expr) *CondExpr {
	assert(cond != nil && then != nil && els != nil, "cond expr operand is nil")
	return &CondExpr{Cond: cond, Then: then, Else: els}
}

// String returns the string representation of the expression.
func (e *CondExpr) String() string {
	return fmt.Sprintf("(if %s %s %s)", e.Cond, e.Then, e.Else)
}

// ConstantExpr represents a compile-time constant drawn from the
// analyzer's constant-folding domain.
type ConstantExpr struct {
	Value Constant
}

// NewConstantExpr returns a new instance of ConstantExpr.
func NewConstantExpr(value Constant) *ConstantExpr {
	assert(value != nil, "constant expr value is nil")
	return &ConstantExpr{Value: value}
}

// NewBoolConstantExpr returns a constant expression for a boolean.
func NewBoolConstantExpr(value bool) *ConstantExpr {
	return &ConstantExpr{Value: BoolConstant(value)}
}

// String returns the string representation of the expression.
func (e *ConstantExpr) String() string {
	return e.Value.String()
}

// VarExpr represents a variable identified by a path with a declared
// source-level type.
type VarExpr struct {
	Path Path
	Type Type
}

// NewVarExpr returns a new instance of VarExpr.
func NewVarExpr(path Path, typ Type) *VarExpr {
	assert(path != "", "var expr path is empty")
	return &VarExpr{Path: path, Type: typ}
}

// String returns the string representation of the expression.
func (e *VarExpr) String() string {
	return fmt.Sprintf("%s:%s", e.Path, e.Type)
}

// RefExpr represents a reference to the location named by a path.
// Reference identity is tracked as an integer-sorted symbolic value,
// not a pointer theory.
type RefExpr struct {
	Path Path
}

// NewRefExpr returns a new instance of RefExpr.
func NewRefExpr(path Path) *RefExpr {
	assert(path != "", "ref expr path is empty")
	return &RefExpr{Path: path}
}

// String returns the string representation of the expression.
func (e *RefExpr) String() string {
	return "&" + e.Path.String()
}

// TopExpr represents a fully unknown value. Every occurrence lowers
// to a distinct unconstrained symbol.
type TopExpr struct{}

// NewTopExpr returns a new instance of TopExpr.
func NewTopExpr() *TopExpr { return &TopExpr{} }

// String returns the string representation of the expression.
func (e *TopExpr) String() string { return "top" }

// Type describes the declared source-level type of a variable or of
// an operation's result.
type Type int

const (
	TypeBool Type = iota
	TypeChar
	TypeI8
	TypeI16
	TypeI32
	TypeI64
	TypeI128
	TypeIsize
	TypeU8
	TypeU16
	TypeU32
	TypeU64
	TypeU128
	TypeUsize
	TypeF32
	TypeF64
	TypeNonPrimitive
)

var typeNames = [...]string{
	TypeBool:         "bool",
	TypeChar:         "char",
	TypeI8:           "i8",
	TypeI16:          "i16",
	TypeI32:          "i32",
	TypeI64:          "i64",
	TypeI128:         "i128",
	TypeIsize:        "isize",
	TypeU8:           "u8",
	TypeU16:          "u16",
	TypeU32:          "u32",
	TypeU64:          "u64",
	TypeU128:         "u128",
	TypeUsize:        "usize",
	TypeF32:          "f32",
	TypeF64:          "f64",
	TypeNonPrimitive: "non-primitive",
}

// String returns the string representation of the type.
func (t Type) String() string {
	if t >= 0 && t < Type(len(typeNames)) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type<%d>", t)
}

// BitSize returns the width of the type in bits. Characters are
// counted as their 16-bit code point; pointer-sized integers as 64
// bits. Returns zero for booleans and non-primitive types.
func (t Type) BitSize() uint {
	switch t {
	case TypeChar:
		return 16
	case TypeI8, TypeU8:
		return 8
	case TypeI16, TypeU16:
		return 16
	case TypeI32, TypeU32, TypeF32:
		return 32
	case TypeI64, TypeU64, TypeF64, TypeIsize, TypeUsize:
		return 64
	case TypeI128, TypeU128:
		return 128
	default:
		return 0
	}
}

// IsSignedInteger returns true if t is a signed integer type.
func (t Type) IsSignedInteger() bool {
	return t >= TypeI8 && t <= TypeIsize
}

// IsUnsignedInteger returns true if t is an unsigned integer type.
// Characters count as unsigned code points.
func (t Type) IsUnsignedInteger() bool {
	return t == TypeChar || (t >= TypeU8 && t <= TypeUsize)
}

// IsInteger returns true if t is encoded in the mathematical integer
// sort by the general view.
func (t Type) IsInteger() bool {
	return t.IsSignedInteger() || t.IsUnsignedInteger()
}

// IsFloat returns true if t is a floating point type.
func (t Type) IsFloat() bool {
	return t == TypeF32 || t == TypeF64
}
