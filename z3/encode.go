package z3

import (
	"unsafe"

	"github.com/sirupsen/logrus"

	"github.com/sylph-analyzer/sylph"
)

/*
#include <z3.h>
#include <stdlib.h>
*/
import "C"

// bitwiseWidth is the fixed width used whenever a bitwise or
// shift-left result has to be encoded without a declared result type.
// Only right shifts observe their exact result width.
const bitwiseWidth = 128

// anyTerm lowers expr to a term in the sort natural to its operator:
// boolean-shaped nodes become boolean terms, arithmetic nodes numeric
// terms, and anything unrecognized a fresh constant of the
// uninterpreted "any" sort. Unsupported shapes degrade to unknown
// values instead of failing.
func (s *Solver) anyTerm(expr sylph.Expr) C.Z3_ast {
	switch expr := expr.(type) {
	case *sylph.BinaryExpr:
		return s.anyBinaryTerm(expr)
	case *sylph.NotExpr:
		return C.Z3_mk_not(s.ctx, s.boolTerm(expr.Operand))
	case *sylph.NegExpr:
		isFloat, operand := s.numericTerm(expr.Operand)
		if isFloat {
			return C.Z3_mk_fpa_neg(s.ctx, operand)
		}
		return C.Z3_mk_unary_minus(s.ctx, operand)
	case *sylph.CondExpr:
		cond := s.boolTerm(expr.Cond)
		return C.Z3_mk_ite(s.ctx, cond, s.anyTerm(expr.Then), s.anyTerm(expr.Else))
	case *sylph.ConstantExpr:
		return s.constantTerm(expr.Value)
	case *sylph.VarExpr:
		return s.variableTerm(expr)
	case *sylph.RefExpr:
		_, t := s.numericTerm(expr)
		return t
	default:
		logrus.WithField("expr", expr).Info("uninterpreted expression")
		return s.freshConst(s.anySort)
	}
}

func (s *Solver) anyBinaryTerm(expr *sylph.BinaryExpr) C.Z3_ast {
	switch op := expr.Op; {
	case op.IsArithmetic():
		_, t := s.numericTerm(expr)
		return t
	case op.IsConnective():
		lhs := s.boolTerm(expr.LHS)
		rhs := s.boolTerm(expr.RHS)
		if op == sylph.And {
			return s.mkAnd(lhs, rhs)
		}
		return s.mkOr(lhs, rhs)
	case op.IsBitwise():
		return s.bvTerm(expr, bitwiseWidth)
	case op == sylph.Shl:
		lhs := s.bvTerm(expr.LHS, bitwiseWidth)
		rhs := s.bvTerm(expr.RHS, bitwiseWidth)
		return C.Z3_mk_bvshl(s.ctx, lhs, rhs)
	case op == sylph.Shr:
		bits := expr.ResultType.BitSize()
		lhs := s.bvTerm(expr.LHS, bits)
		rhs := s.bvTerm(expr.RHS, bits)
		if expr.ResultType.IsSignedInteger() {
			return C.Z3_mk_bvashr(s.ctx, lhs, rhs)
		}
		return C.Z3_mk_bvlshr(s.ctx, lhs, rhs)
	case op.IsCompare():
		return s.compareTerm(expr)
	case op == sylph.AddOverflows, op == sylph.SubOverflows, op == sylph.MulOverflows:
		return s.arithOverflowTerm(expr)
	case op == sylph.ShlOverflows, op == sylph.ShrOverflows:
		return s.shiftOverflowTerm(expr)
	default:
		logrus.WithField("expr", expr).Info("uninterpreted expression")
		return s.freshConst(s.anySort)
	}
}

// compareTerm encodes an equality or ordering operator. Both operands
// must agree on float-ness; floats use Z3's IEEE-aware predicates.
// Note that Ne on floats is not the negation of Equals: NaN compares
// unequal to everything including itself, so Ne also holds whenever
// either operand is NaN.
func (s *Solver) compareTerm(expr *sylph.BinaryExpr) C.Z3_ast {
	lf, lhs := s.numericTerm(expr.LHS)
	rf, rhs := s.numericTerm(expr.RHS)
	assert(lf == rf, "mixed float and integer operands: %s", expr)

	if lf {
		switch expr.Op {
		case sylph.Equals:
			return C.Z3_mk_fpa_eq(s.ctx, lhs, rhs)
		case sylph.Ne:
			args := [3]C.Z3_ast{
				C.Z3_mk_fpa_is_nan(s.ctx, lhs),
				C.Z3_mk_fpa_is_nan(s.ctx, rhs),
				C.Z3_mk_not(s.ctx, C.Z3_mk_fpa_eq(s.ctx, lhs, rhs)),
			}
			return C.Z3_mk_or(s.ctx, 3, &args[0])
		case sylph.GreaterThan:
			return C.Z3_mk_fpa_gt(s.ctx, lhs, rhs)
		case sylph.GreaterOrEqual:
			return C.Z3_mk_fpa_geq(s.ctx, lhs, rhs)
		case sylph.LessThan:
			return C.Z3_mk_fpa_lt(s.ctx, lhs, rhs)
		case sylph.LessOrEqual:
			return C.Z3_mk_fpa_leq(s.ctx, lhs, rhs)
		}
		panic("unreachable")
	}

	switch expr.Op {
	case sylph.Equals:
		return C.Z3_mk_eq(s.ctx, lhs, rhs)
	case sylph.Ne:
		return C.Z3_mk_not(s.ctx, C.Z3_mk_eq(s.ctx, lhs, rhs))
	case sylph.GreaterThan:
		return C.Z3_mk_gt(s.ctx, lhs, rhs)
	case sylph.GreaterOrEqual:
		return C.Z3_mk_ge(s.ctx, lhs, rhs)
	case sylph.LessThan:
		return C.Z3_mk_lt(s.ctx, lhs, rhs)
	case sylph.LessOrEqual:
		return C.Z3_mk_le(s.ctx, lhs, rhs)
	}
	panic("unreachable")
}

// arithOverflowTerm encodes a checked add/sub/mul at the exact bit
// width of the declared result type. A signed result escapes its
// range when either the no-overflow or the no-underflow bound fails;
// an unsigned result can only cross one of them.
func (s *Solver) arithOverflowTerm(expr *sylph.BinaryExpr) C.Z3_ast {
	bits := expr.ResultType.BitSize()
	signed := expr.ResultType.IsSignedInteger()
	lhs := s.bvTerm(expr.LHS, bits)
	rhs := s.bvTerm(expr.RHS, bits)

	var staysInRange C.Z3_ast
	switch expr.Op {
	case sylph.AddOverflows:
		staysInRange = C.Z3_mk_bvadd_no_overflow(s.ctx, lhs, rhs, C.bool(signed))
		if signed {
			staysInRange = s.mkAnd(staysInRange, C.Z3_mk_bvadd_no_underflow(s.ctx, lhs, rhs))
		}
	case sylph.SubOverflows:
		staysInRange = C.Z3_mk_bvsub_no_underflow(s.ctx, lhs, rhs, C.bool(signed))
		if signed {
			staysInRange = s.mkAnd(C.Z3_mk_bvsub_no_overflow(s.ctx, lhs, rhs), staysInRange)
		}
	case sylph.MulOverflows:
		staysInRange = C.Z3_mk_bvmul_no_overflow(s.ctx, lhs, rhs, C.bool(signed))
		if signed {
			staysInRange = s.mkAnd(staysInRange, C.Z3_mk_bvmul_no_underflow(s.ctx, lhs, rhs))
		}
	default:
		panic("unreachable")
	}
	return C.Z3_mk_not(s.ctx, staysInRange)
}

// shiftOverflowTerm encodes a checked shift: the operation overflows
// exactly when the shift amount is at least the result type's width.
func (s *Solver) shiftOverflowTerm(expr *sylph.BinaryExpr) C.Z3_ast {
	isFloat, amount := s.numericTerm(expr.RHS)
	assert(!isFloat, "shift amount must be integer sorted: %s", expr)
	bits := C.Z3_mk_int(s.ctx, C.int(expr.ResultType.BitSize()), s.intSort)
	return C.Z3_mk_ge(s.ctx, amount, bits)
}

func (s *Solver) constantTerm(value sylph.Constant) C.Z3_ast {
	switch value := value.(type) {
	case sylph.BoolConstant:
		if value {
			return C.Z3_mk_true(s.ctx)
		}
		return C.Z3_mk_false(s.ctx)
	case sylph.CharConstant:
		return C.Z3_mk_int(s.ctx, C.int(value.CodePoint()), s.intSort)
	case *sylph.IntConstant:
		if v, ok := value.Int64(); ok {
			return C.Z3_mk_int64(s.ctx, C.int64_t(v), s.intSort)
		}
		return s.numeralConst(value.String(), s.intSort)
	case *sylph.UintConstant:
		if v, ok := value.Uint64(); ok {
			return C.Z3_mk_unsigned_int64(s.ctx, C.uint64_t(v), s.intSort)
		}
		return s.numeralConst(value.String(), s.intSort)
	case sylph.Float32Constant:
		return C.Z3_mk_fpa_numeral_float(s.ctx, C.float(value.Float()), s.f32Sort)
	case sylph.Float64Constant:
		return C.Z3_mk_fpa_numeral_double(s.ctx, C.double(value.Float()), s.f64Sort)
	default:
		// Constant kinds with no Z3 representation become opaque
		// unconstrained values rather than errors.
		return s.freshConst(s.anySort)
	}
}

func (s *Solver) variableTerm(expr *sylph.VarExpr) C.Z3_ast {
	switch t := expr.Type; {
	case t == sylph.TypeBool:
		return s.namedConst(expr.Path.String(), s.boolSort)
	case t == sylph.TypeF32:
		return s.namedConst(expr.Path.String(), s.f32Sort)
	case t == sylph.TypeF64:
		return s.namedConst(expr.Path.String(), s.f64Sort)
	case t.IsInteger():
		// Width and signedness are not preserved in this view; every
		// integer variable shares the mathematical integer sort.
		return s.namedConst(expr.Path.String(), s.intSort)
	default:
		// Non-primitive values are unconstrained; every occurrence is
		// a distinct opaque constant.
		return s.freshConst(s.anySort)
	}
}

// numericTerm lowers expr to a numeric term, reporting whether the
// term is floating point. Callers combining two numeric results with
// a binary operator must see matching flags; a mismatch is a bug in
// the caller's expression construction.
func (s *Solver) numericTerm(expr sylph.Expr) (bool, C.Z3_ast) {
	switch expr := expr.(type) {
	case *sylph.BinaryExpr:
		return s.numericBinaryTerm(expr)
	case *sylph.NotExpr:
		return false, s.boolToIntTerm(s.anyTerm(expr))
	case *sylph.NegExpr:
		isFloat, operand := s.numericTerm(expr.Operand)
		if isFloat {
			return true, C.Z3_mk_fpa_neg(s.ctx, operand)
		}
		return false, C.Z3_mk_unary_minus(s.ctx, operand)
	case *sylph.CondExpr:
		cond := s.boolTerm(expr.Cond)
		tf, then := s.numericTerm(expr.Then)
		ef, els := s.numericTerm(expr.Else)
		assert(tf == ef, "conditional branches mix float and integer: %s", expr)
		return tf, C.Z3_mk_ite(s.ctx, cond, then, els)
	case *sylph.ConstantExpr:
		return s.numericConstantTerm(expr)
	case *sylph.VarExpr:
		switch expr.Type {
		case sylph.TypeBool, sylph.TypeNonPrimitive:
			// The numeric view always wants a number; boolean and
			// opaque variables are tracked as integer-sorted symbols.
			return false, s.namedConst(expr.Path.String(), s.intSort)
		case sylph.TypeF32, sylph.TypeF64:
			return true, s.anyTerm(expr)
		default:
			return false, s.anyTerm(expr)
		}
	case *sylph.RefExpr:
		// Reference identity is an integer-sorted symbolic value.
		return false, s.namedConst("&"+expr.Path.String(), s.intSort)
	case *sylph.TopExpr:
		return false, s.freshConst(s.intSort)
	default:
		return false, s.anyTerm(expr)
	}
}

func (s *Solver) numericBinaryTerm(expr *sylph.BinaryExpr) (bool, C.Z3_ast) {
	switch op := expr.Op; {
	case op.IsArithmetic():
		lf, lhs := s.numericTerm(expr.LHS)
		rf, rhs := s.numericTerm(expr.RHS)
		assert(lf == rf, "mixed float and integer operands: %s", expr)
		if lf {
			return true, s.floatArithTerm(op, lhs, rhs)
		}
		return false, s.intArithTerm(op, lhs, rhs)
	case op.IsConnective(), op.IsCompare():
		return false, s.boolToIntTerm(s.anyTerm(expr))
	case op.IsBitwise(), op.IsShift():
		// Bitwise results reach the numeric view through the fixed
		// 128-bit vector encoding, reconverted as a non-negative
		// integer.
		bv := s.bvTerm(expr, bitwiseWidth)
		return false, C.Z3_mk_bv2int(s.ctx, bv, C.bool(false))
	default:
		return false, s.anyTerm(expr)
	}
}

func (s *Solver) floatArithTerm(op sylph.BinaryOp, lhs, rhs C.Z3_ast) C.Z3_ast {
	switch op {
	case sylph.Add:
		return C.Z3_mk_fpa_add(s.ctx, s.nearestEven, lhs, rhs)
	case sylph.Sub:
		return C.Z3_mk_fpa_sub(s.ctx, s.nearestEven, lhs, rhs)
	case sylph.Mul:
		return C.Z3_mk_fpa_mul(s.ctx, s.nearestEven, lhs, rhs)
	case sylph.Div:
		return C.Z3_mk_fpa_div(s.ctx, s.nearestEven, lhs, rhs)
	case sylph.Rem:
		return C.Z3_mk_fpa_rem(s.ctx, lhs, rhs)
	}
	panic("unreachable")
}

func (s *Solver) intArithTerm(op sylph.BinaryOp, lhs, rhs C.Z3_ast) C.Z3_ast {
	args := [2]C.Z3_ast{lhs, rhs}
	switch op {
	case sylph.Add:
		return C.Z3_mk_add(s.ctx, 2, &args[0])
	case sylph.Sub:
		return C.Z3_mk_sub(s.ctx, 2, &args[0])
	case sylph.Mul:
		return C.Z3_mk_mul(s.ctx, 2, &args[0])
	case sylph.Div:
		return C.Z3_mk_div(s.ctx, lhs, rhs)
	case sylph.Rem:
		return C.Z3_mk_rem(s.ctx, lhs, rhs)
	}
	panic("unreachable")
}

func (s *Solver) numericConstantTerm(expr *sylph.ConstantExpr) (bool, C.Z3_ast) {
	switch value := expr.Value.(type) {
	case sylph.BoolConstant:
		if value {
			return false, s.one
		}
		return false, s.zero
	case sylph.Float32Constant, sylph.Float64Constant:
		return true, s.anyTerm(expr)
	default:
		return false, s.anyTerm(expr)
	}
}

// boolTerm lowers expr to a boolean term. Bitwise results are tested
// against zero; most other shapes already lower to boolean terms
// through the natural view.
func (s *Solver) boolTerm(expr sylph.Expr) C.Z3_ast {
	switch expr := expr.(type) {
	case *sylph.BinaryExpr:
		if expr.Op.IsBitwise() {
			bv := s.bvTerm(expr, bitwiseWidth)
			i := C.Z3_mk_bv2int(s.ctx, bv, C.bool(false))
			return C.Z3_mk_not(s.ctx, C.Z3_mk_eq(s.ctx, i, s.zero))
		}
		return s.anyTerm(expr)
	case *sylph.ConstantExpr:
		if value, ok := expr.Value.(sylph.BoolConstant); ok {
			if value {
				return C.Z3_mk_true(s.ctx)
			}
			return C.Z3_mk_false(s.ctx)
		}
		return s.anyTerm(expr)
	case *sylph.TopExpr:
		return s.freshConst(s.boolSort)
	default:
		return s.anyTerm(expr)
	}
}

// bvTerm lowers expr to a bit-vector term of exactly bits width.
func (s *Solver) bvTerm(expr sylph.Expr, bits uint) C.Z3_ast {
	switch expr := expr.(type) {
	case *sylph.BinaryExpr:
		return s.bvBinaryTerm(expr, bits)
	case *sylph.NotExpr:
		return s.boolToBVTerm(s.anyTerm(expr), bits)
	case *sylph.CondExpr:
		cond := s.boolTerm(expr.Cond)
		then := s.bvTerm(expr.Then, bits)
		els := s.bvTerm(expr.Else, bits)
		return C.Z3_mk_ite(s.ctx, cond, then, els)
	case *sylph.ConstantExpr:
		isFloat, t := s.numericTerm(expr)
		assert(!isFloat, "bit vector from float constant: %s", expr)
		return C.Z3_mk_int2bv(s.ctx, C.uint(bits), t)
	case *sylph.VarExpr:
		// Width and sort both participate in symbol identity: the
		// bit-vector constant for a path is distinct from the integer
		// constant the numeric view makes for the same path.
		return s.namedConst(expr.Path.String(), s.bvSort(bits))
	case *sylph.TopExpr:
		return s.freshConst(s.bvSort(bits))
	default:
		return s.anyTerm(expr)
	}
}

func (s *Solver) bvBinaryTerm(expr *sylph.BinaryExpr, bits uint) C.Z3_ast {
	switch op := expr.Op; {
	case op.IsConnective(), op.IsCompare():
		return s.boolToBVTerm(s.anyTerm(expr), bits)
	case op.IsBitwise():
		lhs := s.bvTerm(expr.LHS, bits)
		rhs := s.bvTerm(expr.RHS, bits)
		switch op {
		case sylph.BitAnd:
			return C.Z3_mk_bvand(s.ctx, lhs, rhs)
		case sylph.BitOr:
			return C.Z3_mk_bvor(s.ctx, lhs, rhs)
		default:
			return C.Z3_mk_bvxor(s.ctx, lhs, rhs)
		}
	case op == sylph.Shl:
		lhs := s.bvTerm(expr.LHS, bits)
		rhs := s.bvTerm(expr.RHS, bits)
		return C.Z3_mk_bvshl(s.ctx, lhs, rhs)
	case op == sylph.Shr:
		lhs := s.bvTerm(expr.LHS, bits)
		rhs := s.bvTerm(expr.RHS, bits)
		if expr.ResultType.IsSignedInteger() {
			return C.Z3_mk_bvashr(s.ctx, lhs, rhs)
		}
		return C.Z3_mk_bvlshr(s.ctx, lhs, rhs)
	default:
		return s.anyTerm(expr)
	}
}

// boolToIntTerm folds a boolean term to integer 1 or 0.
func (s *Solver) boolToIntTerm(t C.Z3_ast) C.Z3_ast {
	return C.Z3_mk_ite(s.ctx, t, s.one, s.zero)
}

// boolToBVTerm selects between the width-wide bit patterns for 1 and
// 0 on a boolean term.
func (s *Solver) boolToBVTerm(t C.Z3_ast, bits uint) C.Z3_ast {
	one := C.Z3_mk_int2bv(s.ctx, C.uint(bits), s.one)
	zero := C.Z3_mk_int2bv(s.ctx, C.uint(bits), s.zero)
	return C.Z3_mk_ite(s.ctx, t, one, zero)
}

// mkAnd builds a 2-ary logical AND.
func (s *Solver) mkAnd(lhs, rhs C.Z3_ast) C.Z3_ast {
	args := [2]C.Z3_ast{lhs, rhs}
	return C.Z3_mk_and(s.ctx, 2, &args[0])
}

// mkOr builds a 2-ary logical OR.
func (s *Solver) mkOr(lhs, rhs C.Z3_ast) C.Z3_ast {
	args := [2]C.Z3_ast{lhs, rhs}
	return C.Z3_mk_or(s.ctx, 2, &args[0])
}

// bvSort constructs a bit-vector sort of the given width. Bit-vector
// sorts are made on demand and not cached.
func (s *Solver) bvSort(bits uint) C.Z3_sort {
	return C.Z3_mk_bv_sort(s.ctx, C.uint(bits))
}

// freshConst returns a fresh constant of sort. Every call yields a
// distinct unconstrained symbol.
func (s *Solver) freshConst(sort C.Z3_sort) C.Z3_ast {
	return C.Z3_mk_fresh_const(s.ctx, s.emptyName, sort)
}

// namedConst returns the constant named name of sort. Within one
// context, equal names of equal sorts denote the same symbol.
func (s *Solver) namedConst(name string, sort C.Z3_sort) C.Z3_ast {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	symbol := C.Z3_mk_string_symbol(s.ctx, cname)
	return C.Z3_mk_const(s.ctx, symbol, sort)
}

// numeralConst parses a decimal numeral into a constant of sort.
// Used for 128-bit integer values that do not fit the 64-bit numeral
// constructors.
func (s *Solver) numeralConst(numeral string, sort C.Z3_sort) C.Z3_ast {
	cstr := C.CString(numeral)
	defer C.free(unsafe.Pointer(cstr))
	return C.Z3_mk_numeral(s.ctx, cstr, sort)
}
