// Package z3 implements the sylph solver session on top of the Z3
// theorem prover, lowering expressions through four sort views:
// natural ("any"), numeric, boolean, and bit-vector.
package z3

import (
	"fmt"
	"strconv"
	"sync"
	"time"
	"unsafe"

	"github.com/sylph-analyzer/sylph"
)

/*
#cgo LDFLAGS: -lz3
#include <z3.h>
#include <stdlib.h>
*/
import "C"

// Ensure solver implements interface.
var _ sylph.SmtSolver[Term] = (*Solver)(nil)

// DefaultCheckTimeout bounds each Solve call unless overridden at
// construction.
const DefaultCheckTimeout = 100 * time.Millisecond

// Term is an opaque handle to a Z3 formula or value. Terms are owned
// by the solver's context and remain valid, including across
// Backtrack, until Close.
type Term C.Z3_ast

// ctorMu serializes solver construction. Z3 config and context
// creation are not safe to run concurrently with other construction;
// the lock covers construction only, never subsequent use.
var ctorMu sync.Mutex

// Solver owns a Z3 context and solver together with handles for the
// fixed sorts and constants the encoders reuse. A solver is bound to
// a single logical thread of use; callers serialize shared access.
type Solver struct {
	ctx    C.Z3_context
	solver C.Z3_solver

	anySort  C.Z3_sort
	boolSort C.Z3_sort
	intSort  C.Z3_sort
	f32Sort  C.Z3_sort
	f64Sort  C.Z3_sort

	nearestEven C.Z3_ast // rounding mode for all fp arithmetic
	zero        C.Z3_ast // integer constant 0
	one         C.Z3_ast // integer constant 1

	emptyName *C.char // prefix for fresh constants
}

// NewSolver returns a solver with the default per-check timeout.
func NewSolver() *Solver {
	return NewSolverWithTimeout(DefaultCheckTimeout)
}

// NewSolverWithTimeout returns a solver whose Solve calls give up
// after timeout and report Undefined.
func NewSolverWithTimeout(timeout time.Duration) *Solver {
	ctorMu.Lock()
	defer ctorMu.Unlock()

	cfg := C.Z3_mk_config()
	defer C.Z3_del_config(cfg)

	name := C.CString("timeout")
	value := C.CString(strconv.FormatInt(timeout.Milliseconds(), 10))
	defer C.free(unsafe.Pointer(name))
	defer C.free(unsafe.Pointer(value))
	C.Z3_set_param_value(cfg, name, value)

	s := &Solver{
		ctx:       C.Z3_mk_context(cfg),
		emptyName: C.CString(""),
	}
	s.solver = C.Z3_mk_solver(s.ctx)

	symbol := C.Z3_mk_string_symbol(s.ctx, s.emptyName)
	s.anySort = C.Z3_mk_uninterpreted_sort(s.ctx, symbol)
	s.boolSort = C.Z3_mk_bool_sort(s.ctx)
	s.intSort = C.Z3_mk_int_sort(s.ctx)
	s.f32Sort = C.Z3_mk_fpa_sort_32(s.ctx)
	s.f64Sort = C.Z3_mk_fpa_sort_64(s.ctx)
	s.nearestEven = C.Z3_mk_fpa_round_nearest_ties_to_even(s.ctx)
	s.zero = C.Z3_mk_int(s.ctx, 0, s.intSort)
	s.one = C.Z3_mk_int(s.ctx, 1, s.intSort)
	return s
}

// Close deletes the underlying Z3 context, invalidating every term
// the solver has produced.
func (s *Solver) Close() error {
	C.Z3_del_context(s.ctx)
	C.free(unsafe.Pointer(s.emptyName))
	s.ctx = nil
	s.solver = nil
	return nil
}

// err returns the error for the last API call. Returns nil if the
// last call was successful.
func (s *Solver) err(op string) error {
	if code := C.Z3_get_error_code(s.ctx); code != C.Z3_OK {
		return &Error{Code: int(code), Op: op, Message: C.GoString(C.Z3_get_error_msg(s.ctx, code))}
	}
	return nil
}

// Assert adds a constraint to the current checkpoint frame. The term
// must be boolean-sorted; a malformed term is a caller bug and
// panics.
func (s *Solver) Assert(term Term) {
	C.Z3_solver_assert(s.ctx, s.solver, C.Z3_ast(term))
	if err := s.err("Z3_solver_assert"); err != nil {
		panic(err)
	}
}

// SetBacktrackPosition pushes a checkpoint onto the assertion stack.
func (s *Solver) SetBacktrackPosition() {
	C.Z3_solver_push(s.ctx, s.solver)
}

// Backtrack pops one checkpoint, discarding constraints asserted
// since the matching SetBacktrackPosition. Backtracking past the
// bottom of the stack panics.
func (s *Solver) Backtrack() {
	if C.Z3_solver_get_num_scopes(s.ctx, s.solver) == 0 {
		panic("z3: backtrack without matching checkpoint")
	}
	C.Z3_solver_pop(s.ctx, s.solver, 1)
}

// Solve runs the decision procedure over all asserted constraints.
// Undefined covers both solver indecision and the configured
// timeout.
func (s *Solver) Solve() sylph.Result {
	switch C.Z3_solver_check(s.ctx, s.solver) {
	case C.Z3_L_TRUE:
		return sylph.Satisfiable
	case C.Z3_L_FALSE:
		return sylph.Unsatisfiable
	default:
		return sylph.Undefined
	}
}

// AsPredicate lowers expr to a boolean-sorted term suitable for
// Assert.
func (s *Solver) AsPredicate(expr sylph.Expr) Term {
	return Term(s.boolTerm(expr))
}

// AsDebugString renders term in Z3's native textual form. Diagnostic
// use only; the format is not stable across Z3 versions.
func (s *Solver) AsDebugString(term Term) string {
	return C.GoString(C.Z3_ast_to_string(s.ctx, C.Z3_ast(term)))
}

// Error represents an error from the Z3 API.
type Error struct {
	Code    int
	Op      string
	Message string
}

// Error returns the error as a string.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (%d)", e.Op, e.Message, e.Code)
}

// assert panics if condition is false.
func assert(condition bool, format string, args ...interface{}) {
	if !condition {
		panic(fmt.Sprintf("assert: "+format, args...))
	}
}
