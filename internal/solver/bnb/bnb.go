// Package bnb is the pure-Go MILP backend: a depth-first, LP-based branch and
// bound over a bounded-variable simplex. It needs no native libraries and
// serves tests and hosts where HiGHS is not installed.
package bnb

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/ff-epl/internal/lp"
	"github.com/stitts-dev/ff-epl/internal/solver"
	"github.com/stitts-dev/ff-epl/pkg/logger"
)

// Name identifies the backend in logs, metrics and run history.
const Name = "bnb"

const (
	defaultIntTolerance = 1e-6
	feasibilityTol      = 1e-7
)

// Backend implements solver.Solver.
type Backend struct {
	IntTolerance float64 // distance from an integer still treated as integral

	log *logrus.Entry
}

// New returns a backend with default tolerances.
func New() *Backend {
	return &Backend{
		IntTolerance: defaultIntTolerance,
		log:          logger.WithService("solver-bnb"),
	}
}

func (b *Backend) Name() string { return Name }

type node struct {
	lo, hi []float64
	depth  int
}

// Solve runs branch and bound on model. Infeasible and unbounded models are
// reported through Result.Status; only backend failures return an error.
// The deadline is checked inside every simplex run, so Solve returns
// TimedOut promptly once opts.Timeout or ctx expires.
func (b *Backend) Solve(ctx context.Context, model *lp.Model, opts solver.Options) (*solver.Result, error) {
	start := time.Now()
	if b.log == nil {
		b.log = logger.WithService("solver-bnb")
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	p, err := newProblem(model)
	if err != nil {
		return &solver.Result{Status: solver.Error, Duration: time.Since(start)}, &solver.AdapterError{Backend: Name, Err: err}
	}

	var (
		incumbent []float64
		best      = math.Inf(1)
		root      *relaxation
		nodes     int
		fixed     int
		limited   bool
	)

	stack := []node{{lo: p.lo, hi: p.hi}}
	for len(stack) > 0 {
		if ctx.Err() != nil || (opts.MaxNodes > 0 && nodes >= opts.MaxNodes) {
			limited = true
			break
		}

		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		nodes++
		if root != nil {
			// Root bounds, including reduced-cost fixings, hold everywhere.
			for j := 0; j < p.n; j++ {
				nd.lo[j] = math.Max(nd.lo[j], root.lo[j])
				nd.hi[j] = math.Min(nd.hi[j], root.hi[j])
			}
		}

		out, rel, err := p.relax(ctx, nd)
		if err != nil {
			if ctx.Err() != nil {
				limited = true
				break
			}
			return &solver.Result{Status: solver.Error, Nodes: nodes, Duration: time.Since(start)}, &solver.AdapterError{Backend: Name, Err: err}
		}

		switch out {
		case relaxInfeasible:
			if opts.Verbose {
				b.log.WithFields(logrus.Fields{"node": nodes, "depth": nd.depth}).Debug("Node infeasible")
			}
			continue
		case relaxUnbounded:
			b.log.WithField("node", nodes).Warn("LP relaxation is unbounded")
			return &solver.Result{Status: solver.Unbounded, Nodes: nodes, Duration: time.Since(start)}, nil
		}

		if nd.depth == 0 {
			root = rel
		}
		if incumbent != nil && p.bound(rel.obj) >= best-feasibilityTol {
			continue
		}

		j, frac := p.branchVariable(rel.x, b.IntTolerance)
		if opts.Verbose {
			b.log.WithFields(logrus.Fields{
				"node":      nodes,
				"depth":     nd.depth,
				"bound":     rel.obj,
				"incumbent": best,
				"branch":    j,
			}).Debug("Explored node")
		}

		if j < 0 {
			incumbent = p.roundIntegers(rel.x)
			best = p.objective(incumbent)
			if root != nil && root != rel {
				fixed += p.fixByReducedCost(root, best)
			}
			continue
		}
		if incumbent != nil {
			fixed += p.fixByReducedCost(rel, best)
		}

		down := node{lo: clone(rel.lo), hi: clone(rel.hi), depth: nd.depth + 1}
		down.hi[j] = math.Floor(rel.x[j])
		up := node{lo: clone(rel.lo), hi: clone(rel.hi), depth: nd.depth + 1}
		up.lo[j] = math.Ceil(rel.x[j])

		// Last pushed is explored first: follow the rounding direction.
		if frac >= 0.5 {
			stack = append(stack, down, up)
		} else {
			stack = append(stack, up, down)
		}
	}

	result := &solver.Result{Nodes: nodes, Duration: time.Since(start)}
	switch {
	case limited:
		result.Status = solver.TimedOut
	case incumbent == nil:
		result.Status = solver.Infeasible
	default:
		result.Status = solver.Optimal
	}
	if incumbent != nil {
		result.Values = incumbent
		result.Objective = model.Objective().Eval(incumbent)
	}

	entry := b.log.WithFields(logrus.Fields{
		"model":       model.Name,
		"status":      result.Status.String(),
		"nodes":       nodes,
		"fixed":       fixed,
		"objective":   result.Objective,
		"duration_ms": result.Duration.Milliseconds(),
	})
	if opts.Verbose {
		entry.Info("Branch and bound finished")
	} else {
		entry.Debug("Branch and bound finished")
	}
	return result, nil
}

type sparseRow struct {
	idx   []int
	val   []float64
	sense lp.Sense
	rhs   float64
}

// activity returns the smallest and largest value the row can take within
// the bounds.
func (r sparseRow) activity(lo, hi []float64) (float64, float64) {
	var minAct, maxAct float64
	for k, j := range r.idx {
		a := r.val[k]
		if a > 0 {
			minAct += a * lo[j]
			maxAct += a * hi[j]
		} else {
			minAct += a * hi[j]
			maxAct += a * lo[j]
		}
	}
	return minAct, maxAct
}

// force fixes every variable of the row at the bound that attains its
// minimum (or maximum) activity.
func (r sparseRow) force(lo, hi []float64, toMax bool) bool {
	changed := false
	for k, j := range r.idx {
		if hi[j]-lo[j] <= feasibilityTol {
			continue
		}
		atLower := (r.val[k] > 0) != toMax
		if atLower {
			hi[j] = lo[j]
		} else {
			lo[j] = hi[j]
		}
		changed = true
	}
	return changed
}

// problem is the model flattened into slices, with the objective in
// minimisation form.
type problem struct {
	n       int
	cost    []float64
	integer []bool
	lo, hi  []float64
	rows    []sparseRow

	// integral is set when every objective term sits on an integer
	// variable with an integer coefficient.
	integral bool
}

func newProblem(model *lp.Model) (*problem, error) {
	vars := model.Vars()
	p := &problem{
		n:       len(vars),
		cost:    make([]float64, len(vars)),
		integer: make([]bool, len(vars)),
		lo:      make([]float64, len(vars)),
		hi:      make([]float64, len(vars)),
	}
	for _, v := range vars {
		if math.IsInf(v.Lower, -1) {
			return nil, fmt.Errorf("variable %q has no finite lower bound", v.Name)
		}
		p.lo[v.Index] = v.Lower
		p.hi[v.Index] = v.Upper
		p.integer[v.Index] = v.IsInteger()
		if v.IsInteger() {
			p.lo[v.Index] = math.Ceil(v.Lower - defaultIntTolerance)
			p.hi[v.Index] = math.Floor(v.Upper + defaultIntTolerance)
		}
	}

	sign := 1.0
	if model.Direction == lp.Maximize {
		sign = -1
	}
	p.integral = true
	for _, t := range model.Objective().Terms() {
		p.cost[t.Var.Index] = sign * t.Coef
		if t.Coef != 0 && (!t.Var.IsInteger() || t.Coef != math.Trunc(t.Coef)) {
			p.integral = false
		}
	}

	for _, c := range model.Constraints() {
		r := sparseRow{sense: c.Sense, rhs: c.RHS}
		for _, t := range c.Expr.Terms() {
			if t.Coef == 0 {
				continue
			}
			r.idx = append(r.idx, t.Var.Index)
			r.val = append(r.val, t.Coef)
		}
		p.rows = append(p.rows, r)
	}
	return p, nil
}

func (p *problem) objective(x []float64) float64 {
	var total float64
	for j, c := range p.cost {
		total += c * x[j]
	}
	return total
}

// bound turns an LP value into the best objective an integer point below
// the node can reach.
func (p *problem) bound(obj float64) float64 {
	if p.integral {
		return math.Ceil(obj - defaultIntTolerance)
	}
	return obj
}

// branchVariable picks the integer variable whose value is most fractional.
// It returns -1 when x is integral.
func (p *problem) branchVariable(x []float64, tol float64) (int, float64) {
	best, bestFrac, bestDist := -1, 0.0, 0.0
	for j := 0; j < p.n; j++ {
		if !p.integer[j] {
			continue
		}
		frac := x[j] - math.Floor(x[j])
		dist := math.Min(frac, 1-frac)
		if dist > tol && dist > bestDist {
			best, bestFrac, bestDist = j, frac, dist
		}
	}
	return best, bestFrac
}

func (p *problem) roundIntegers(x []float64) []float64 {
	out := clone(x)
	for j := range out {
		if p.integer[j] {
			out[j] = math.Round(out[j])
		}
	}
	return out
}

// presolve tightens lo/hi in place with forcing rows and reports whether the
// node can still be feasible.
func (p *problem) presolve(lo, hi []float64) bool {
	for j := 0; j < p.n; j++ {
		if lo[j] > hi[j]+feasibilityTol {
			return false
		}
	}
	for pass := 0; pass <= len(p.rows); pass++ {
		changed := false
		for _, r := range p.rows {
			minAct, maxAct := r.activity(lo, hi)
			if r.sense != lp.GreaterEqual && minAct > r.rhs+feasibilityTol {
				return false
			}
			if r.sense != lp.LessEqual && maxAct < r.rhs-feasibilityTol {
				return false
			}
			if r.sense != lp.GreaterEqual && !math.IsInf(minAct, -1) && minAct >= r.rhs-feasibilityTol {
				changed = r.force(lo, hi, false) || changed
			}
			if r.sense != lp.LessEqual && !math.IsInf(maxAct, 1) && maxAct <= r.rhs+feasibilityTol {
				changed = r.force(lo, hi, true) || changed
			}
		}
		if !changed {
			break
		}
	}
	return true
}

type relaxOutcome int

const (
	relaxOptimal relaxOutcome = iota
	relaxInfeasible
	relaxUnbounded
)

// relaxation is the LP answer at one node. Slices are indexed by variable.
type relaxation struct {
	x, reduced []float64
	lo, hi     []float64
	obj        float64
}

// relax solves the LP relaxation of a node. Variables are shifted to
// y = x - lo so every column has lower bound 0, and fixed variables are
// substituted out before the simplex runs.
func (p *problem) relax(ctx context.Context, nd node) (relaxOutcome, *relaxation, error) {
	rel := &relaxation{lo: clone(nd.lo), hi: clone(nd.hi), reduced: make([]float64, p.n)}
	if !p.presolve(rel.lo, rel.hi) {
		return relaxInfeasible, rel, nil
	}
	lo, hi := rel.lo, rel.hi

	colOf := make([]int, p.n)
	var cols []int
	for j := 0; j < p.n; j++ {
		colOf[j] = -1
		if hi[j]-lo[j] > feasibilityTol {
			colOf[j] = len(cols)
			cols = append(cols, j)
		}
	}

	var blp boundedLP
	for _, r := range p.rows {
		rhs := r.rhs
		dense := make([]float64, len(cols))
		active := false
		for k, j := range r.idx {
			rhs -= r.val[k] * lo[j]
			if c := colOf[j]; c >= 0 {
				dense[c] += r.val[k]
				active = true
			}
		}
		if !active {
			if !satisfied(r.sense, 0, rhs) {
				return relaxInfeasible, rel, nil
			}
			continue
		}
		blp.rows = append(blp.rows, dense)
		blp.sense = append(blp.sense, r.sense)
		blp.rhs = append(blp.rhs, rhs)
	}
	blp.c = make([]float64, len(cols))
	blp.upper = make([]float64, len(cols))
	for k, j := range cols {
		blp.c[k] = p.cost[j]
		blp.upper[k] = hi[j] - lo[j]
	}

	sol, err := solveBounded(ctx, blp)
	switch {
	case errors.Is(err, errLPInfeasible):
		return relaxInfeasible, rel, nil
	case errors.Is(err, errLPUnbounded):
		return relaxUnbounded, rel, nil
	case err != nil:
		return relaxOptimal, rel, err
	}

	rel.x = clone(lo)
	for k, j := range cols {
		rel.x[j] = math.Min(math.Max(lo[j]+sol.y[k], lo[j]), hi[j])
		rel.reduced[j] = sol.reduced[k]
	}
	rel.obj = p.objective(rel.x)
	return relaxOptimal, rel, nil
}

// fixByReducedCost pins integer columns whose single step off their current
// bound already costs more than the gap to the incumbent.
func (p *problem) fixByReducedCost(rel *relaxation, best float64) int {
	fixed := 0
	for j := 0; j < p.n; j++ {
		if !p.integer[j] || rel.hi[j]-rel.lo[j] <= feasibilityTol {
			continue
		}
		d := rel.reduced[j]
		switch {
		case d > 0 && rel.x[j] <= rel.lo[j]+feasibilityTol && p.bound(rel.obj+d) >= best-feasibilityTol:
			rel.hi[j] = rel.lo[j]
			fixed++
		case d < 0 && rel.x[j] >= rel.hi[j]-feasibilityTol && p.bound(rel.obj-d) >= best-feasibilityTol:
			rel.lo[j] = rel.hi[j]
			fixed++
		}
	}
	return fixed
}

func satisfied(sense lp.Sense, lhs, rhs float64) bool {
	switch sense {
	case lp.LessEqual:
		return lhs <= rhs+feasibilityTol
	case lp.GreaterEqual:
		return lhs >= rhs-feasibilityTol
	default:
		return math.Abs(lhs-rhs) <= feasibilityTol
	}
}

func clone(s []float64) []float64 {
	return append([]float64(nil), s...)
}
