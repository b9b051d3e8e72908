// Package runner implements the ChimeraScript test runner: discovery,
// decorator inheritance, nested execution with a per-case teardown
// stack, and Passed/Failed/ExpectedFailure/UnexpectedSuccess
// classification (spec §4.7). Grounded on the original Rust project's
// frontend.rs (Status, TestResult/ResultCount, run_test_function's
// depth-indented progress printing, and its statement-dispatch loop);
// the teardown stack and decorator-inheritance/parent-failure-
// propagation rules that frontend.rs left as unimplemented TODOs are
// supplied here per spec.
package runner

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/kyleoneill/chimerascript/internal/ast"
	"github.com/kyleoneill/chimerascript/internal/evaluator"
	"github.com/kyleoneill/chimerascript/internal/variable"
)

// Status is a case's final classification (spec §4.7).
type Status int

const (
	Passed Status = iota
	Failed
	ExpectedFailure
	UnexpectedSuccess
)

func (s Status) String() string {
	switch s {
	case Passed:
		return "PASSED"
	case Failed:
		return "FAILED"
	case ExpectedFailure:
		return "EXPECTED FAILURE"
	case UnexpectedSuccess:
		return "UNEXPECTED SUCCESS"
	default:
		return "UNKNOWN"
	}
}

// CaseResult is the outcome of running one case, with its nested cases'
// outcomes attached in declaration order.
type CaseResult struct {
	Name     string // dotted path from the outermost case
	Status   Status
	Err      error // the failing assertion/runtime error; nil when Passed/UnexpectedSuccess
	Duration time.Duration
	Children []*CaseResult
}

// ResultCount tallies classifications across a result tree, mirroring
// the original Rust project's ResultCount.
type ResultCount struct {
	Passed, Failed, ExpectedFailure, UnexpectedSuccess, Total int
}

// Add returns the element-wise sum of two counts.
func (c ResultCount) Add(other ResultCount) ResultCount {
	return ResultCount{
		Passed:            c.Passed + other.Passed,
		Failed:            c.Failed + other.Failed,
		ExpectedFailure:   c.ExpectedFailure + other.ExpectedFailure,
		UnexpectedSuccess: c.UnexpectedSuccess + other.UnexpectedSuccess,
		Total:             c.Total + other.Total,
	}
}

// OverallPassed reports the run's exit-code-driving verdict (spec §6).
func (c ResultCount) OverallPassed() bool {
	return c.Failed == 0 && c.UnexpectedSuccess == 0
}

// CountResults tallies a CaseResult tree, recursing into children.
func CountResults(results []*CaseResult) ResultCount {
	var total ResultCount
	for _, r := range results {
		total = total.Add(countOne(r))
	}
	return total
}

func countOne(r *CaseResult) ResultCount {
	c := ResultCount{Total: 1}
	switch r.Status {
	case Passed:
		c.Passed = 1
	case Failed:
		c.Failed = 1
	case ExpectedFailure:
		c.ExpectedFailure = 1
	case UnexpectedSuccess:
		c.UnexpectedSuccess = 1
	}
	for _, child := range r.Children {
		c = c.Add(countOne(child))
	}
	return c
}

// Runner executes the cases discovered in a parsed script.
type Runner struct {
	Client  evaluator.WebClient
	BaseURL string
	Stdout  io.Writer

	// DefaultHeaders, if set, is passed through to every case's evaluator
	// and sent on every HTTP dispatch the run makes (spec §5's run config).
	DefaultHeaders map[string]string

	// ExcludePatterns, if set, drops any top-level case whose dotted
	// path matches one of these patterns (same matching rule as
	// filter: exact path, or either side a dotted prefix of the
	// other) before discovery, regardless of its own decorators.
	ExcludePatterns []string

	// OnCase, if set, is called as each case (top-level or nested)
	// finishes, in the order cases complete — letting a caller persist
	// or broadcast results live rather than only after the whole script
	// finishes. parentPath is "" for a top-level case.
	OnCase func(parentPath string, result *CaseResult)
}

// New creates a Runner.
func New(client evaluator.WebClient, baseURL string) *Runner {
	return &Runner{Client: client, BaseURL: baseURL}
}

func (r *Runner) stdout() io.Writer {
	if r.Stdout == nil {
		return os.Stdout
	}
	return r.Stdout
}

// RunScript discovers and runs every top-level test case in script. If
// filter is non-empty, only top-level cases whose dotted path is a
// prefix of, or prefixed by, filter are run (spec §6's "optional filter
// selecting a case by dotted name").
func (r *Runner) RunScript(script *ast.Script, filter string) []*CaseResult {
	var results []*CaseResult
	for _, fn := range script.Functions {
		if !fn.HasDecorator("test") {
			continue
		}
		if filter != "" && !pathMatchesFilter(fn.Name, filter) {
			continue
		}
		if r.isExcluded(fn.Name) {
			continue
		}
		store := variable.New()
		results = append(results, r.runCase(fn, store, "", fn.Name, 1, false))
	}
	return results
}

func pathMatchesFilter(name, filter string) bool {
	return name == filter || strings.HasPrefix(filter, name+".") || strings.HasPrefix(name, filter+".")
}

func (r *Runner) isExcluded(name string) bool {
	for _, pattern := range r.ExcludePatterns {
		if pathMatchesFilter(name, pattern) {
			return true
		}
	}
	return false
}

// runCase executes one case: push its scoping frame, run its block in
// source order (statements, nested cases, and teardown registration),
// run its own collected teardown, classify, and propagate child failure.
// pushFrame is false only for a top-level case, which owns its store
// outright rather than inheriting a snapshot of a parent's.
func (r *Runner) runCase(fn *ast.Function, store *variable.Store, parentPath, path string, depth int, pushFrame bool) *CaseResult {
	r.printProgress(depth, fmt.Sprintf("STARTING TEST - %s", fn.Name))
	start := time.Now()

	if pushFrame {
		store.PushFrame()
	}

	ev := &evaluator.Evaluator{Store: store, Client: r.Client, BaseURL: r.BaseURL, Stdout: r.stdout(), DefaultHeaders: r.DefaultHeaders}

	var teardownStmts []ast.Statement
	var children []*CaseResult
	var failure error

	for _, item := range fn.Body.Items {
		if failure != nil {
			break
		}
		switch it := item.(type) {
		case ast.StatementItem:
			if err := ev.ExecStatement(it.Stmt); err != nil {
				failure = err
			}
		case ast.FunctionItem:
			children = append(children, r.runCase(it.Fn, store, path, path+"."+it.Fn.Name, depth+1, true))
		case *ast.Teardown:
			teardownStmts = append(teardownStmts, it.Statements...)
		}
	}

	// The case's own teardown frame unwinds here, after every nested
	// case (each having already unwound its own frame on return) but
	// before this case's frame is popped, so LIFO-across-nesting falls
	// out of the recursion itself.
	for _, stmt := range teardownStmts {
		if err := ev.ExecStatement(stmt); err != nil {
			fmt.Fprintf(r.stdout(), "%*sTEARDOWN ERROR in %s: %s\n", depth, "", fn.Name, err)
		}
	}

	if pushFrame {
		store.PopFrame()
	}

	isExpectedFailure := fn.HasDecorator("expected-failure")
	status := classify(failure, isExpectedFailure)
	for _, child := range children {
		if child.Status == Failed {
			status = Failed
			break
		}
	}

	duration := time.Since(start)
	r.printProgress(depth, fmt.Sprintf("FINISHED TEST - %s - %s - %s", fn.Name, duration, status))

	result := &CaseResult{Name: path, Status: status, Err: failure, Duration: duration, Children: children}
	if r.OnCase != nil {
		r.OnCase(parentPath, result)
	}
	return result
}

func classify(failure error, isExpectedFailure bool) Status {
	if failure != nil {
		if isExpectedFailure {
			return ExpectedFailure
		}
		return Failed
	}
	if isExpectedFailure {
		return UnexpectedSuccess
	}
	return Passed
}

func (r *Runner) printProgress(depth int, line string) {
	fmt.Fprintf(r.stdout(), "%*s%s\n", depth, "", line)
}
