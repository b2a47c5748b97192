// Package solver defines the narrow contract between the optimisation engine
// and a MILP backend. Backends live in sub-packages.
package solver

import (
	"context"
	"fmt"
	"time"

	"github.com/stitts-dev/ff-epl/internal/lp"
)

// Status is the termination state reported by a backend.
type Status int

const (
	Optimal Status = iota
	Infeasible
	Unbounded
	TimedOut
	Error
)

func (s Status) String() string {
	switch s {
	case Optimal:
		return "optimal"
	case Infeasible:
		return "infeasible"
	case Unbounded:
		return "unbounded"
	case TimedOut:
		return "timed_out"
	default:
		return "error"
	}
}

// Assignment holds one value per model variable, indexed by lp.Var.Index.
type Assignment []float64

// Value returns the value assigned to v, or 0 when the assignment is empty.
func (a Assignment) Value(v *lp.Var) float64 {
	if v == nil || v.Index >= len(a) {
		return 0
	}
	return a[v.Index]
}

// Result is what a backend returns from a solve.
type Result struct {
	Status    Status
	Values    Assignment
	Objective float64
	Nodes     int
	Duration  time.Duration
}

// HasSolution reports whether Values carries a usable assignment.
func (r *Result) HasSolution() bool {
	return r != nil && len(r.Values) > 0
}

// Options tune a single solve.
type Options struct {
	Timeout  time.Duration // 0 means no limit beyond ctx
	Verbose  bool
	MaxNodes int // 0 means unlimited
}

// Solver is implemented by MILP backends.
type Solver interface {
	Name() string
	Solve(ctx context.Context, model *lp.Model, opts Options) (*Result, error)
}

// AdapterError wraps a backend failure that is not a normal solve outcome.
type AdapterError struct {
	Backend string
	Err     error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("solver %s: %v", e.Backend, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}
