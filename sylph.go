// Package sylph lowers a program analyzer's symbolic expression tree
// into SMT formulas and drives a solver's incremental
// assert/check/backtrack protocol. The expression IR lives in this
// package; backends such as the z3 subpackage implement SmtSolver.
package sylph

import "fmt"

// Result is the three-valued verdict of a satisfiability check.
type Result int

const (
	Satisfiable Result = iota
	Unsatisfiable
	Undefined
)

// String returns the string representation of the result.
func (r Result) String() string {
	switch r {
	case Satisfiable:
		return "sat"
	case Unsatisfiable:
		return "unsat"
	case Undefined:
		return "undef"
	default:
		return fmt.Sprintf("Result<%d>", r)
	}
}

// SmtSolver is an incremental SMT backend that lowers expressions to
// backend terms of type T. Implementations are not safe for
// concurrent use; callers serialize access to a shared session.
//
// Undefined from Solve covers both genuine solver indecision and the
// session's check timeout. Callers must not conflate it with
// Unsatisfiable.
type SmtSolver[T any] interface {
	// AsDebugString renders term in the backend's native textual
	// form. Diagnostic use only; not stable across backend versions.
	AsDebugString(term T) string

	// AsPredicate lowers expr to a boolean-sorted term suitable for
	// Assert.
	AsPredicate(expr Expr) T

	// Assert adds a constraint to the current checkpoint frame.
	Assert(term T)

	// SetBacktrackPosition pushes a checkpoint onto the assertion
	// stack.
	SetBacktrackPosition()

	// Backtrack pops one checkpoint, discarding constraints asserted
	// since the matching SetBacktrackPosition. Backtracking without a
	// matching checkpoint is a contract violation.
	Backtrack()

	// Solve runs the decision procedure over all asserted constraints.
	Solve() Result
}

// assert panics if condition is false.
func assert(condition bool, format string, args ...interface{}) {
	if !condition {
		panic(fmt.Sprintf("assert: "+format, args...))
	}
}
