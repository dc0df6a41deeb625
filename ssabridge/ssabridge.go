// Package ssabridge translates go/ssa values into symbolic
// expressions so that branch conditions of Go functions can be fed to
// an SMT backend.
package ssabridge

import (
	"go/constant"
	"go/token"
	"go/types"

	"github.com/sirupsen/logrus"
	"github.com/sylph-analyzer/sylph"
	"golang.org/x/tools/go/ssa"
)

// Translator converts values of a single SSA function. Registers and
// parameters are named relative to the function, so expressions from
// different functions never collide in a shared solver session.
type Translator struct {
	fn *ssa.Function
}

// NewTranslator returns a new instance of Translator for fn.
func NewTranslator(fn *ssa.Function) *Translator {
	return &Translator{fn: fn}
}

// Value translates v into a symbolic expression. Values outside the
// supported subset degrade to unconstrained symbols rather than
// failing, so partial translations stay sound for satisfiability.
func (t *Translator) Value(v ssa.Value) sylph.Expr {
	switch v := v.(type) {
	case *ssa.Const:
		return t.constExpr(v)
	case *ssa.Parameter:
		return sylph.NewVarExpr(t.path(v.Name()), exprType(v.Type()))
	case *ssa.Global:
		return sylph.NewRefExpr(t.path(v.Name()))
	case *ssa.BinOp:
		return t.binOpExpr(v)
	case *ssa.UnOp:
		return t.unOpExpr(v)
	case *ssa.Convert:
		// The mathematical-integer encoding absorbs width changes.
		return t.Value(v.X)
	case *ssa.ChangeType:
		return t.Value(v.X)
	default:
		if v.Name() != "" {
			return sylph.NewVarExpr(t.path(v.Name()), exprType(v.Type()))
		}
		logrus.WithField("value", v.String()).Info("untranslatable ssa value")
		return sylph.NewTopExpr()
	}
}

func (t *Translator) constExpr(c *ssa.Const) sylph.Expr {
	basic, ok := c.Type().Underlying().(*types.Basic)
	if !ok || c.Value == nil {
		logrus.WithField("const", c.String()).Info("untranslatable constant")
		return sylph.NewTopExpr()
	}

	switch {
	case basic.Info()&types.IsBoolean != 0:
		return sylph.NewBoolConstantExpr(constant.BoolVal(c.Value))
	case basic.Info()&types.IsUnsigned != 0:
		return sylph.NewConstantExpr(sylph.NewUintConstant(c.Uint64()))
	case basic.Info()&types.IsInteger != 0:
		return sylph.NewConstantExpr(sylph.NewIntConstant(c.Int64()))
	case basic.Info()&types.IsFloat != 0:
		if basic.Kind() == types.Float32 {
			return sylph.NewConstantExpr(sylph.NewFloat32Constant(float32(c.Float64())))
		}
		return sylph.NewConstantExpr(sylph.NewFloat64Constant(c.Float64()))
	case basic.Info()&types.IsString != 0:
		return sylph.NewConstantExpr(sylph.StrConstant(constant.StringVal(c.Value)))
	default:
		logrus.WithField("const", c.String()).Info("untranslatable constant")
		return sylph.NewTopExpr()
	}
}

func (t *Translator) binOpExpr(v *ssa.BinOp) sylph.Expr {
	x, y := t.Value(v.X), t.Value(v.Y)
	switch v.Op {
	case token.ADD:
		return sylph.NewBinaryExpr(sylph.Add, x, y)
	case token.SUB:
		return sylph.NewBinaryExpr(sylph.Sub, x, y)
	case token.MUL:
		return sylph.NewBinaryExpr(sylph.Mul, x, y)
	case token.QUO:
		return sylph.NewBinaryExpr(sylph.Div, x, y)
	case token.REM:
		return sylph.NewBinaryExpr(sylph.Rem, x, y)
	case token.AND:
		return sylph.NewBinaryExpr(sylph.BitAnd, x, y)
	case token.OR:
		return sylph.NewBinaryExpr(sylph.BitOr, x, y)
	case token.XOR:
		return sylph.NewBinaryExpr(sylph.BitXor, x, y)
	case token.SHL:
		return sylph.NewBinaryExpr(sylph.Shl, x, y)
	case token.SHR:
		return sylph.NewTypedBinaryExpr(sylph.Shr, x, y, exprType(v.Type()))
	case token.EQL:
		return sylph.NewBinaryExpr(sylph.Equals, x, y)
	case token.NEQ:
		return sylph.NewBinaryExpr(sylph.Ne, x, y)
	case token.GTR:
		return sylph.NewBinaryExpr(sylph.GreaterThan, x, y)
	case token.GEQ:
		return sylph.NewBinaryExpr(sylph.GreaterOrEqual, x, y)
	case token.LSS:
		return sylph.NewBinaryExpr(sylph.LessThan, x, y)
	case token.LEQ:
		return sylph.NewBinaryExpr(sylph.LessOrEqual, x, y)
	default:
		logrus.WithField("op", v.Op.String()).Info("untranslatable binary op")
		return sylph.NewTopExpr()
	}
}

func (t *Translator) unOpExpr(v *ssa.UnOp) sylph.Expr {
	switch v.Op {
	case token.SUB:
		return sylph.NewNegExpr(t.Value(v.X))
	case token.NOT:
		return sylph.NewNotExpr(t.Value(v.X))
	case token.MUL:
		// A load: model the loaded cell as a variable named after the
		// register holding the result.
		return sylph.NewVarExpr(t.path(v.Name()), exprType(v.Type()))
	default:
		logrus.WithField("op", v.Op.String()).Info("untranslatable unary op")
		return sylph.NewTopExpr()
	}
}

func (t *Translator) path(name string) sylph.Path {
	return sylph.Path(t.fn.String() + "." + name)
}

// exprType maps a Go type to the symbolic type domain. Go's int and
// uintptr collapse to the pointer-sized kinds; anything that is not a
// basic numeric or boolean type is non-primitive.
func exprType(typ types.Type) sylph.Type {
	basic, ok := typ.Underlying().(*types.Basic)
	if !ok {
		return sylph.TypeNonPrimitive
	}
	switch basic.Kind() {
	case types.Bool, types.UntypedBool:
		return sylph.TypeBool
	case types.Int, types.UntypedInt:
		return sylph.TypeIsize
	case types.Int8:
		return sylph.TypeI8
	case types.Int16:
		return sylph.TypeI16
	case types.Int32, types.UntypedRune:
		return sylph.TypeI32
	case types.Int64:
		return sylph.TypeI64
	case types.Uint, types.Uintptr:
		return sylph.TypeUsize
	case types.Uint8:
		return sylph.TypeU8
	case types.Uint16:
		return sylph.TypeU16
	case types.Uint32:
		return sylph.TypeU32
	case types.Uint64:
		return sylph.TypeU64
	case types.Float32:
		return sylph.TypeF32
	case types.Float64, types.UntypedFloat:
		return sylph.TypeF64
	default:
		return sylph.TypeNonPrimitive
	}
}
