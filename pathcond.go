package sylph

import "github.com/benbjohnson/immutable"

// PathCondition is the ordered list of expressions asserted along one
// execution path, with checkpoint marks that mirror a session's
// assertion stack. The expression list is persistent, so Clone is
// cheap and clones share structure with their origin; forked
// exploration states can diverge without copying the common prefix.
type PathCondition struct {
	exprs *immutable.List
	marks []int
}

// NewPathCondition returns an empty path condition.
func NewPathCondition() *PathCondition {
	return &PathCondition{exprs: immutable.NewList()}
}

// Add appends expr to the current checkpoint frame.
func (pc *PathCondition) Add(expr Expr) {
	assert(expr != nil, "path condition expr is nil")
	pc.exprs = pc.exprs.Append(expr)
}

// Len returns the number of expressions across all frames.
func (pc *PathCondition) Len() int { return pc.exprs.Len() }

// SetBacktrackPosition pushes a checkpoint.
func (pc *PathCondition) SetBacktrackPosition() {
	pc.marks = append(pc.marks, pc.exprs.Len())
}

// Backtrack pops one checkpoint, discarding expressions added since
// the matching SetBacktrackPosition. Backtracking without a matching
// checkpoint is a contract violation.
func (pc *PathCondition) Backtrack() {
	assert(len(pc.marks) > 0, "backtrack without matching checkpoint")
	n := pc.marks[len(pc.marks)-1]
	pc.marks = pc.marks[:len(pc.marks)-1]
	pc.exprs = pc.exprs.Slice(0, n)
}

// Clone returns a copy of pc that shares structure with it. Later
// mutations of either copy do not affect the other.
func (pc *PathCondition) Clone() *PathCondition {
	marks := make([]int, len(pc.marks))
	copy(marks, pc.marks)
	return &PathCondition{exprs: pc.exprs, marks: marks}
}

// Exprs returns the expressions in assertion order.
func (pc *PathCondition) Exprs() []Expr {
	a := make([]Expr, 0, pc.exprs.Len())
	itr := pc.exprs.Iterator()
	for !itr.Done() {
		_, value := itr.Next()
		a = append(a, value.(Expr))
	}
	return a
}

// AssertPathCondition lowers every expression in pc and asserts it
// onto s, in order.
func AssertPathCondition[T any](s SmtSolver[T], pc *PathCondition) {
	for _, expr := range pc.Exprs() {
		s.Assert(s.AsPredicate(expr))
	}
}
