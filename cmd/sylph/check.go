package main

import (
	"context"
	"flag"
	"fmt"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"sort"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/sylph-analyzer/sylph"
	"github.com/sylph-analyzer/sylph/ssabridge"
	"github.com/sylph-analyzer/sylph/z3"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// CheckCommand represents a command for checking the satisfiability of
// branch conditions in a Go source file.
type CheckCommand struct {
	verbose bool
	timeout time.Duration
}

// NewCheckCommand returns a new instance of CheckCommand.
func NewCheckCommand() *CheckCommand {
	return &CheckCommand{}
}

// Run executes the "check" subcommand.
func (cmd *CheckCommand) Run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sylph-check", flag.ContinueOnError)
	fs.BoolVar(&cmd.verbose, "v", false, "dump translated expressions")
	fs.DurationVar(&cmd.timeout, "timeout", z3.DefaultCheckTimeout, "per-check solver timeout")
	fs.Usage = cmd.usage
	if err := fs.Parse(args); err != nil {
		return err
	} else if fs.NArg() == 0 {
		return fmt.Errorf("source file required")
	} else if fs.NArg() > 1 {
		return fmt.Errorf("too many source files specified")
	}

	pkg, err := buildPackage(fs.Arg(0))
	if err != nil {
		return err
	}

	// Check members in a stable order.
	var fns []*ssa.Function
	for _, m := range pkg.Members {
		if fn, ok := m.(*ssa.Function); ok {
			fns = append(fns, fn)
		}
	}
	sort.Slice(fns, func(i, j int) bool { return fns[i].Name() < fns[j].Name() })

	for _, fn := range fns {
		if err := cmd.checkFunction(fn); err != nil {
			return err
		}
	}
	return nil
}

// checkFunction checks both arms of every conditional branch in fn
// against a fresh solver session.
func (cmd *CheckCommand) checkFunction(fn *ssa.Function) error {
	solver := z3.NewSolverWithTimeout(cmd.timeout)
	defer solver.Close()

	tr := ssabridge.NewTranslator(fn)
	for _, block := range fn.Blocks {
		for _, instr := range block.Instrs {
			ifInstr, ok := instr.(*ssa.If)
			if !ok {
				continue
			}
			cond := tr.Value(ifInstr.Cond)
			if cmd.verbose {
				fmt.Fprint(os.Stderr, spew.Sdump(cond))
			}

			then := checkArm(solver, cond)
			els := checkArm(solver, sylph.NewNotExpr(cond))
			fmt.Printf("%s: %s: then=%s else=%s\n", fn.Name(), cond, then, els)
		}
	}
	return nil
}

// checkArm checks one branch arm inside its own checkpoint frame so
// the session is reusable across arms.
func checkArm(solver *z3.Solver, cond sylph.Expr) sylph.Result {
	solver.SetBacktrackPosition()
	defer solver.Backtrack()
	solver.Assert(solver.AsPredicate(cond))
	return solver.Solve()
}

func buildPackage(filename string) (*ssa.Package, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, filename, nil, 0)
	if err != nil {
		return nil, err
	}
	pkg := types.NewPackage(f.Name.Name, "")
	built, _, err := ssautil.BuildPackage(
		&types.Config{Importer: importer.Default()}, fset, pkg, []*ast.File{f}, 0)
	if err != nil {
		return nil, err
	}
	return built, nil
}

func (cmd *CheckCommand) usage() {
	fmt.Fprintln(os.Stderr, `
Checks every conditional branch of each function in a Go source file
for satisfiability of its then and else arms. An unsatisfiable arm is
dead code under the translated model.

Usage:

	sylph check [arguments] file.go

Arguments:

	-timeout duration
	    Per-check solver timeout (default 100ms).
	-v
	    Dump translated expression trees to stderr.
`[1:])
}
