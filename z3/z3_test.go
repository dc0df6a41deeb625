package z3_test

import (
	"math"
	"math/big"
	"strings"
	"testing"

	"github.com/sylph-analyzer/sylph"
	"github.com/sylph-analyzer/sylph/z3"
)

func TestSolver_Solve(t *testing.T) {
	t.Run("SatisfiableBound", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(s)
		s.Assert(s.AsPredicate(gt(intVar("x"), intConst(5))))
		if result := s.Solve(); result != sylph.Satisfiable {
			t.Fatalf("unexpected result: %s", result)
		}
	})
	t.Run("ContradictoryBounds", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(s)
		s.Assert(s.AsPredicate(gt(intVar("x"), intConst(5))))
		s.Assert(s.AsPredicate(lt(intVar("x"), intConst(3))))
		if result := s.Solve(); result != sylph.Unsatisfiable {
			t.Fatalf("unexpected result: %s", result)
		}
	})
	t.Run("EmptyStack", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(s)
		if result := s.Solve(); result != sylph.Satisfiable {
			t.Fatalf("unexpected result: %s", result)
		}
	})
}

func TestSolver_Backtrack(t *testing.T) {
	t.Run("RestoresSatisfiability", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(s)

		s.Assert(s.AsPredicate(gt(intVar("x"), intConst(5))))
		if result := s.Solve(); result != sylph.Satisfiable {
			t.Fatalf("unexpected result: %s", result)
		}

		s.SetBacktrackPosition()
		s.Assert(s.AsPredicate(lt(intVar("x"), intConst(3))))
		if result := s.Solve(); result != sylph.Unsatisfiable {
			t.Fatalf("unexpected result: %s", result)
		}

		s.Backtrack()
		if result := s.Solve(); result != sylph.Satisfiable {
			t.Fatalf("unexpected result: %s", result)
		}
	})
	t.Run("WithoutCheckpoint", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(s)
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic")
			}
		}()
		s.Backtrack()
	})
}

func TestSolver_AsDebugString(t *testing.T) {
	s := z3.NewSolver()
	defer MustCloseSolver(s)
	pred := s.AsPredicate(gt(intVar("x"), intConst(5)))
	if str := s.AsDebugString(pred); !strings.Contains(str, "x") {
		t.Fatalf("unexpected debug string: %q", str)
	}
}

func TestEncode_BoolConstant(t *testing.T) {
	t.Run("BoolView", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(s)
		s.SetBacktrackPosition()
		s.Assert(s.AsPredicate(sylph.NewBoolConstantExpr(true)))
		if result := s.Solve(); result != sylph.Satisfiable {
			t.Fatalf("unexpected result: %s", result)
		}
		s.Backtrack()
		s.Assert(s.AsPredicate(sylph.NewBoolConstantExpr(false)))
		if result := s.Solve(); result != sylph.Unsatisfiable {
			t.Fatalf("unexpected result: %s", result)
		}
	})
	t.Run("NumericView", func(t *testing.T) {
		// Booleans fold to integer 1 and 0 in the numeric view.
		s := z3.NewSolver()
		defer MustCloseSolver(s)
		s.SetBacktrackPosition()
		s.Assert(s.AsPredicate(ne(sylph.NewBoolConstantExpr(true), intConst(1))))
		if result := s.Solve(); result != sylph.Unsatisfiable {
			t.Fatalf("unexpected result: %s", result)
		}
		s.Backtrack()
		s.Assert(s.AsPredicate(ne(sylph.NewBoolConstantExpr(false), intConst(0))))
		if result := s.Solve(); result != sylph.Unsatisfiable {
			t.Fatalf("unexpected result: %s", result)
		}
	})
}

func TestEncode_IntConstant(t *testing.T) {
	t.Run("SmallValueViaBig", func(t *testing.T) {
		// A 128-bit constant that fits 64 bits must equal the value
		// from the 64-bit numeral path.
		s := z3.NewSolver()
		defer MustCloseSolver(s)
		viaBig := sylph.NewConstantExpr(sylph.NewIntConstantFromBig(big.NewInt(42)))
		s.Assert(s.AsPredicate(ne(viaBig, intConst(42))))
		if result := s.Solve(); result != sylph.Unsatisfiable {
			t.Fatalf("unexpected result: %s", result)
		}
	})
	t.Run("Wide", func(t *testing.T) {
		// 2^100 exceeds 64 bits and travels as a decimal numeral.
		s := z3.NewSolver()
		defer MustCloseSolver(s)
		wide := new(big.Int).Lsh(big.NewInt(1), 100)
		wideLessOne := new(big.Int).Sub(wide, big.NewInt(1))
		sum := sylph.NewBinaryExpr(sylph.Add,
			sylph.NewConstantExpr(sylph.NewIntConstantFromBig(wideLessOne)),
			intConst(1),
		)
		s.Assert(s.AsPredicate(ne(sylph.NewConstantExpr(sylph.NewIntConstantFromBig(wide)), sum)))
		if result := s.Solve(); result != sylph.Unsatisfiable {
			t.Fatalf("unexpected result: %s", result)
		}
	})
	t.Run("WideUnsigned", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(s)
		wide := new(big.Int).Lsh(big.NewInt(1), 100)
		s.Assert(s.AsPredicate(ne(
			sylph.NewConstantExpr(sylph.NewUintConstantFromBig(wide)),
			sylph.NewConstantExpr(sylph.NewIntConstantFromBig(wide)),
		)))
		if result := s.Solve(); result != sylph.Unsatisfiable {
			t.Fatalf("unexpected result: %s", result)
		}
	})
}

func TestEncode_CharConstant(t *testing.T) {
	// Characters are encoded as their 16-bit code point.
	s := z3.NewSolver()
	defer MustCloseSolver(s)
	s.SetBacktrackPosition()
	s.Assert(s.AsPredicate(ne(sylph.NewConstantExpr(sylph.CharConstant('A')), intConst(65))))
	if result := s.Solve(); result != sylph.Unsatisfiable {
		t.Fatalf("unexpected result: %s", result)
	}
	s.Backtrack()
	s.Assert(s.AsPredicate(ne(sylph.NewConstantExpr(sylph.CharConstant('€')), intConst(0x20AC))))
	if result := s.Solve(); result != sylph.Unsatisfiable {
		t.Fatalf("unexpected result: %s", result)
	}
}

func TestEncode_UnsupportedConstant(t *testing.T) {
	// Constant kinds outside the encoder's domain degrade to fresh
	// opaque values, so two occurrences of the same literal are
	// unrelated symbols.
	s := z3.NewSolver()
	defer MustCloseSolver(s)
	str := sylph.NewConstantExpr(sylph.StrConstant("a"))
	s.Assert(s.AsPredicate(ne(str, str)))
	if result := s.Solve(); result != sylph.Satisfiable {
		t.Fatalf("unexpected result: %s", result)
	}
}

func TestEncode_AddOverflows(t *testing.T) {
	t.Run("Signed8", func(t *testing.T) {
		expectOverflow(t, sylph.AddOverflows, sylph.TypeI8, 100, 100, true)
		expectOverflow(t, sylph.AddOverflows, sylph.TypeI8, 1, 2, false)
		expectOverflow(t, sylph.AddOverflows, sylph.TypeI8, 127, 1, true)
		expectOverflow(t, sylph.AddOverflows, sylph.TypeI8, 127, 0, false)
		// Underflow counts as overflow for signed types.
		expectOverflow(t, sylph.AddOverflows, sylph.TypeI8, -100, -100, true)
		expectOverflow(t, sylph.AddOverflows, sylph.TypeI8, -128, 0, false)
	})
	t.Run("Signed32", func(t *testing.T) {
		expectOverflow(t, sylph.AddOverflows, sylph.TypeI32, math.MaxInt32, 1, true)
		expectOverflow(t, sylph.AddOverflows, sylph.TypeI32, math.MaxInt32, 0, false)
		expectOverflow(t, sylph.AddOverflows, sylph.TypeI32, math.MinInt32, -1, true)
	})
	t.Run("Unsigned8", func(t *testing.T) {
		expectOverflow(t, sylph.AddOverflows, sylph.TypeU8, 200, 100, true)
		expectOverflow(t, sylph.AddOverflows, sylph.TypeU8, 200, 55, false)
	})
}

func TestEncode_SubOverflows(t *testing.T) {
	t.Run("Signed8", func(t *testing.T) {
		expectOverflow(t, sylph.SubOverflows, sylph.TypeI8, -100, 100, true)
		expectOverflow(t, sylph.SubOverflows, sylph.TypeI8, 100, -100, true)
		expectOverflow(t, sylph.SubOverflows, sylph.TypeI8, 50, 25, false)
	})
	t.Run("Unsigned8", func(t *testing.T) {
		expectOverflow(t, sylph.SubOverflows, sylph.TypeU8, 1, 2, true)
		expectOverflow(t, sylph.SubOverflows, sylph.TypeU8, 2, 1, false)
	})
}

func TestEncode_MulOverflows(t *testing.T) {
	t.Run("Signed8", func(t *testing.T) {
		expectOverflow(t, sylph.MulOverflows, sylph.TypeI8, 16, 16, true)
		expectOverflow(t, sylph.MulOverflows, sylph.TypeI8, 11, 11, false)
	})
	t.Run("Unsigned8", func(t *testing.T) {
		expectOverflow(t, sylph.MulOverflows, sylph.TypeU8, 16, 16, true)
		expectOverflow(t, sylph.MulOverflows, sylph.TypeU8, 15, 17, false)
	})
}

func TestEncode_ShiftOverflows(t *testing.T) {
	// A shift overflows exactly when the amount reaches the result
	// type's bit width.
	expectOverflow(t, sylph.ShlOverflows, sylph.TypeI8, 1, 8, true)
	expectOverflow(t, sylph.ShlOverflows, sylph.TypeI8, 1, 7, false)
	expectOverflow(t, sylph.ShrOverflows, sylph.TypeU32, 1, 32, true)
	expectOverflow(t, sylph.ShrOverflows, sylph.TypeU32, 1, 31, false)
}

func TestEncode_FloatCompare(t *testing.T) {
	t.Run("NaNNeverEquals", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(s)
		nan := sylph.NewConstantExpr(sylph.NewFloat64Constant(math.NaN()))
		s.Assert(s.AsPredicate(eq(nan, f64Var("y"))))
		if result := s.Solve(); result != sylph.Unsatisfiable {
			t.Fatalf("unexpected result: %s", result)
		}
	})
	t.Run("NaNAlwaysNe", func(t *testing.T) {
		// Ne is not the negation of Equals for floats: it holds
		// whenever either operand is NaN, for any other operand.
		s := z3.NewSolver()
		defer MustCloseSolver(s)
		nan := sylph.NewConstantExpr(sylph.NewFloat64Constant(math.NaN()))
		s.Assert(s.AsPredicate(sylph.NewNotExpr(ne(nan, f64Var("y")))))
		if result := s.Solve(); result != sylph.Unsatisfiable {
			t.Fatalf("unexpected result: %s", result)
		}
	})
	t.Run("OrderedCompare", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(s)
		s.Assert(s.AsPredicate(sylph.NewBinaryExpr(sylph.LessThan, f64Const(1.5), f64Const(2.5))))
		if result := s.Solve(); result != sylph.Satisfiable {
			t.Fatalf("unexpected result: %s", result)
		}
	})
}

func TestEncode_FloatArithmetic(t *testing.T) {
	t.Run("ExactSum", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(s)
		sum := sylph.NewBinaryExpr(sylph.Add, f64Const(1.5), f64Const(2.25))
		s.Assert(s.AsPredicate(ne(sum, f64Const(3.75))))
		if result := s.Solve(); result != sylph.Unsatisfiable {
			t.Fatalf("unexpected result: %s", result)
		}
	})
	t.Run("Neg", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(s)
		s.Assert(s.AsPredicate(ne(sylph.NewNegExpr(f64Const(1.5)), f64Const(-1.5))))
		if result := s.Solve(); result != sylph.Unsatisfiable {
			t.Fatalf("unexpected result: %s", result)
		}
	})
	t.Run("MixedOperandsPanics", func(t *testing.T) {
		// Mixing float and integer operands is a caller bug, not a
		// recoverable condition.
		s := z3.NewSolver()
		defer MustCloseSolver(s)
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic")
			}
		}()
		s.AsPredicate(ne(sylph.NewBinaryExpr(sylph.Add, f64Const(1), intConst(1)), intConst(2)))
	})
}

func TestEncode_IntArithmetic(t *testing.T) {
	s := z3.NewSolver()
	defer MustCloseSolver(s)
	s.SetBacktrackPosition()
	sum := sylph.NewBinaryExpr(sylph.Add, intVar("x"), intConst(3))
	s.Assert(s.AsPredicate(eq(sum, intConst(10))))
	s.Assert(s.AsPredicate(eq(intVar("x"), intConst(7))))
	if result := s.Solve(); result != sylph.Satisfiable {
		t.Fatalf("unexpected result: %s", result)
	}
	s.Backtrack()
	s.Assert(s.AsPredicate(ne(sylph.NewNegExpr(intConst(5)), intConst(-5))))
	if result := s.Solve(); result != sylph.Unsatisfiable {
		t.Fatalf("unexpected result: %s", result)
	}
}

func TestEncode_Bitwise(t *testing.T) {
	for _, tt := range []struct {
		op   sylph.BinaryOp
		lhs  int64
		rhs  int64
		want int64
	}{
		{sylph.BitAnd, 12, 10, 8},
		{sylph.BitOr, 8, 4, 12},
		{sylph.BitXor, 6, 3, 5},
	} {
		t.Run(tt.op.String(), func(t *testing.T) {
			s := z3.NewSolver()
			defer MustCloseSolver(s)
			expr := sylph.NewBinaryExpr(tt.op, intConst(tt.lhs), intConst(tt.rhs))
			s.Assert(s.AsPredicate(ne(expr, intConst(tt.want))))
			if result := s.Solve(); result != sylph.Unsatisfiable {
				t.Fatalf("unexpected result: %s", result)
			}
		})
	}

	t.Run("BoolView", func(t *testing.T) {
		// Bitwise results become booleans through a nonzero test.
		s := z3.NewSolver()
		defer MustCloseSolver(s)
		s.SetBacktrackPosition()
		s.Assert(s.AsPredicate(sylph.NewBinaryExpr(sylph.BitAnd, intConst(1), intConst(3))))
		if result := s.Solve(); result != sylph.Satisfiable {
			t.Fatalf("unexpected result: %s", result)
		}
		s.Backtrack()
		s.Assert(s.AsPredicate(sylph.NewBinaryExpr(sylph.BitAnd, intConst(1), intConst(2))))
		if result := s.Solve(); result != sylph.Unsatisfiable {
			t.Fatalf("unexpected result: %s", result)
		}
	})
}

func TestEncode_Shift(t *testing.T) {
	t.Run("Shl", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(s)
		expr := sylph.NewBinaryExpr(sylph.Shl, intConst(1), intConst(4))
		s.Assert(s.AsPredicate(ne(expr, intConst(16))))
		if result := s.Solve(); result != sylph.Unsatisfiable {
			t.Fatalf("unexpected result: %s", result)
		}
	})
	t.Run("ShrUnsigned", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(s)
		expr := sylph.NewTypedBinaryExpr(sylph.Shr, intConst(8), intConst(1), sylph.TypeU8)
		s.Assert(s.AsPredicate(ne(expr, intConst(4))))
		if result := s.Solve(); result != sylph.Unsatisfiable {
			t.Fatalf("unexpected result: %s", result)
		}
	})
}

func TestEncode_Connectives(t *testing.T) {
	s := z3.NewSolver()
	defer MustCloseSolver(s)
	s.SetBacktrackPosition()
	s.Assert(s.AsPredicate(sylph.NewBinaryExpr(sylph.And,
		sylph.NewBoolConstantExpr(true), sylph.NewBoolConstantExpr(false))))
	if result := s.Solve(); result != sylph.Unsatisfiable {
		t.Fatalf("unexpected result: %s", result)
	}
	s.Backtrack()
	s.SetBacktrackPosition()
	s.Assert(s.AsPredicate(sylph.NewBinaryExpr(sylph.Or,
		sylph.NewBoolConstantExpr(false), sylph.NewBoolConstantExpr(true))))
	if result := s.Solve(); result != sylph.Satisfiable {
		t.Fatalf("unexpected result: %s", result)
	}
	s.Backtrack()
	s.Assert(s.AsPredicate(sylph.NewNotExpr(sylph.NewBoolConstantExpr(false))))
	if result := s.Solve(); result != sylph.Satisfiable {
		t.Fatalf("unexpected result: %s", result)
	}
}

func TestEncode_Conditional(t *testing.T) {
	s := z3.NewSolver()
	defer MustCloseSolver(s)
	cond := sylph.NewCondExpr(gt(intVar("x"), intConst(5)), intConst(1), intConst(0))

	s.SetBacktrackPosition()
	s.Assert(s.AsPredicate(gt(intVar("x"), intConst(5))))
	s.Assert(s.AsPredicate(eq(cond, intConst(1))))
	if result := s.Solve(); result != sylph.Satisfiable {
		t.Fatalf("unexpected result: %s", result)
	}
	s.Backtrack()

	s.Assert(s.AsPredicate(gt(intVar("x"), intConst(5))))
	s.Assert(s.AsPredicate(eq(cond, intConst(0))))
	if result := s.Solve(); result != sylph.Unsatisfiable {
		t.Fatalf("unexpected result: %s", result)
	}
}

func TestEncode_VariableIdentity(t *testing.T) {
	t.Run("SamePathSameSymbol", func(t *testing.T) {
		// Two independently constructed nodes with the same path and
		// type must denote the same solver symbol.
		s := z3.NewSolver()
		defer MustCloseSolver(s)
		s.Assert(s.AsPredicate(ne(intVar("x"), intVar("x"))))
		if result := s.Solve(); result != sylph.Unsatisfiable {
			t.Fatalf("unexpected result: %s", result)
		}
	})
	t.Run("DistinctPaths", func(t *testing.T) {
		s := z3.NewSolver()
		defer MustCloseSolver(s)
		s.Assert(s.AsPredicate(ne(intVar("x"), intVar("y"))))
		if result := s.Solve(); result != sylph.Satisfiable {
			t.Fatalf("unexpected result: %s", result)
		}
	})
	t.Run("TopAlwaysFresh", func(t *testing.T) {
		// Each occurrence of a fully unknown value is a distinct
		// unconstrained symbol.
		s := z3.NewSolver()
		defer MustCloseSolver(s)
		s.Assert(s.AsPredicate(ne(sylph.NewTopExpr(), sylph.NewTopExpr())))
		if result := s.Solve(); result != sylph.Satisfiable {
			t.Fatalf("unexpected result: %s", result)
		}
	})
}

func TestEncode_References(t *testing.T) {
	s := z3.NewSolver()
	defer MustCloseSolver(s)
	s.SetBacktrackPosition()
	s.Assert(s.AsPredicate(ne(sylph.NewRefExpr("p"), sylph.NewRefExpr("p"))))
	if result := s.Solve(); result != sylph.Unsatisfiable {
		t.Fatalf("unexpected result: %s", result)
	}
	s.Backtrack()
	s.Assert(s.AsPredicate(ne(sylph.NewRefExpr("p"), sylph.NewRefExpr("q"))))
	if result := s.Solve(); result != sylph.Satisfiable {
		t.Fatalf("unexpected result: %s", result)
	}
}

func TestAssertPathCondition(t *testing.T) {
	pc := sylph.NewPathCondition()
	pc.Add(gt(intVar("x"), intConst(5)))

	forked := pc.Clone()
	forked.Add(lt(intVar("x"), intConst(3)))

	s := z3.NewSolver()
	defer MustCloseSolver(s)
	s.SetBacktrackPosition()
	sylph.AssertPathCondition[z3.Term](s, forked)
	if result := s.Solve(); result != sylph.Unsatisfiable {
		t.Fatalf("unexpected result: %s", result)
	}
	s.Backtrack()
	sylph.AssertPathCondition[z3.Term](s, pc)
	if result := s.Solve(); result != sylph.Satisfiable {
		t.Fatalf("unexpected result: %s", result)
	}
}

// expectOverflow asserts the overflow predicate op over two constant
// operands at resultType and checks the verdict: Satisfiable when the
// mathematical result escapes the type's range, Unsatisfiable
// otherwise.
func expectOverflow(t *testing.T, op sylph.BinaryOp, resultType sylph.Type, lhs, rhs int64, want bool) {
	t.Helper()
	s := z3.NewSolver()
	defer MustCloseSolver(s)
	s.Assert(s.AsPredicate(sylph.NewTypedBinaryExpr(op, intConst(lhs), intConst(rhs), resultType)))

	result := s.Solve()
	if want && result != sylph.Satisfiable {
		t.Fatalf("%s(%d, %d, %s): expected overflow, got %s", op, lhs, rhs, resultType, result)
	} else if !want && result != sylph.Unsatisfiable {
		t.Fatalf("%s(%d, %d, %s): expected no overflow, got %s", op, lhs, rhs, resultType, result)
	}
}

func MustCloseSolver(s *z3.Solver) {
	if err := s.Close(); err != nil {
		panic(err)
	}
}

func intVar(name string) sylph.Expr {
	return sylph.NewVarExpr(sylph.Path(name), sylph.TypeIsize)
}

func f64Var(name string) sylph.Expr {
	return sylph.NewVarExpr(sylph.Path(name), sylph.TypeF64)
}

func intConst(v int64) sylph.Expr {
	return sylph.NewConstantExpr(sylph.NewIntConstant(v))
}

func f64Const(v float64) sylph.Expr {
	return sylph.NewConstantExpr(sylph.NewFloat64Constant(v))
}

func eq(lhs, rhs sylph.Expr) sylph.Expr {
	return sylph.NewBinaryExpr(sylph.Equals, lhs, rhs)
}

func ne(lhs, rhs sylph.Expr) sylph.Expr {
	return sylph.NewBinaryExpr(sylph.Ne, lhs, rhs)
}

func gt(lhs, rhs sylph.Expr) sylph.Expr {
	return sylph.NewBinaryExpr(sylph.GreaterThan, lhs, rhs)
}

func lt(lhs, rhs sylph.Expr) sylph.Expr {
	return sylph.NewBinaryExpr(sylph.LessThan, lhs, rhs)
}
