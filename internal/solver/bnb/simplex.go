package bnb

import (
	"context"
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/stitts-dev/ff-epl/internal/lp"
)

const (
	pivotTol = 1e-9
	// Consecutive degenerate pivots before switching to Bland's rule.
	degenerateLimit = 50
	// Iterations between context checks.
	ctxEvery = 32
)

var (
	errLPInfeasible = errors.New("lp infeasible")
	errLPUnbounded  = errors.New("lp unbounded")
	errLPIterations = errors.New("simplex iteration limit reached")
)

// boundedLP is min c·y subject to rows[i]·y (sense[i]) rhs[i] and
// 0 <= y <= upper. upper may hold +Inf.
type boundedLP struct {
	c     []float64
	rows  [][]float64
	sense []lp.Sense
	rhs   []float64
	upper []float64
}

// lpSolution is an optimal vertex together with the reduced cost of every
// structural column.
type lpSolution struct {
	y       []float64
	reduced []float64
	value   float64
}

// tableau keeps B^-1 A densely. Slack and artificial columns follow the
// structural ones, every column has lower bound 0, and a nonbasic column
// sits at either bound.
type tableau struct {
	m, n    int // rows, structural columns
	t       *mat.Dense
	d       []float64 // reduced costs of the current phase
	beta    []float64 // basic values
	basis   []int
	rowOf   []int // -1 when nonbasic
	upper   []float64
	atUpper []bool
	bland   bool
}

func (tb *tableau) cols() int { return tb.n + 2*tb.m }

func (tb *tableau) artificial(j int) bool { return j >= tb.n+tb.m }

// solveBounded runs a two-phase primal simplex with bound flipping, so
// variable bounds never become rows.
func solveBounded(ctx context.Context, p boundedLP) (*lpSolution, error) {
	n, m := len(p.c), len(p.rows)
	if m == 0 {
		return solveUnconstrained(p)
	}

	tb := &tableau{
		m:       m,
		n:       n,
		t:       mat.NewDense(m, n+2*m, nil),
		beta:    make([]float64, m),
		basis:   make([]int, m),
		rowOf:   make([]int, n+2*m),
		upper:   make([]float64, n+2*m),
		atUpper: make([]bool, n+2*m),
	}
	copy(tb.upper, p.upper)
	for j := range tb.rowOf {
		tb.rowOf[j] = -1
	}

	for i, row := range p.rows {
		r := tb.t.RawRowView(i)
		copy(r, row)
		rhs := p.rhs[i]
		slack, art := n+i, n+m+i

		switch p.sense[i] {
		case lp.GreaterEqual:
			floats.Scale(-1, r[:n])
			rhs = -rhs
			r[slack] = 1
			tb.upper[slack] = math.Inf(1)
		case lp.LessEqual:
			r[slack] = 1
			tb.upper[slack] = math.Inf(1)
		default:
			tb.upper[slack] = 0
		}
		if rhs < 0 {
			floats.Scale(-1, r[:n+m])
			rhs = -rhs
		}
		tb.beta[i] = rhs

		if r[slack] == 1 && math.IsInf(tb.upper[slack], 1) {
			tb.basis[i] = slack
			tb.rowOf[slack] = i
			tb.upper[art] = 0
			continue
		}
		r[art] = 1
		tb.upper[art] = math.Inf(1)
		tb.basis[i] = art
		tb.rowOf[art] = i
	}

	// Phase 1: drive the artificial columns to zero.
	phase1 := make([]float64, tb.cols())
	for j := n + m; j < tb.cols(); j++ {
		if tb.rowOf[j] >= 0 {
			phase1[j] = 1
		}
	}
	tb.price(phase1)
	if err := tb.iterate(ctx); err != nil {
		if errors.Is(err, errLPUnbounded) {
			return nil, errLPIterations
		}
		return nil, err
	}
	var infeasibility float64
	for i, j := range tb.basis {
		if tb.artificial(j) {
			infeasibility += tb.beta[i]
		}
	}
	if infeasibility > 1e-6 {
		return nil, errLPInfeasible
	}

	// Phase 2: artificials are pinned at zero and never re-enter.
	for j := n + m; j < tb.cols(); j++ {
		tb.upper[j] = 0
	}
	for i, j := range tb.basis {
		if tb.artificial(j) {
			tb.beta[i] = 0
		}
	}
	phase2 := make([]float64, tb.cols())
	copy(phase2, p.c)
	tb.price(phase2)
	tb.bland = false
	if err := tb.iterate(ctx); err != nil {
		return nil, err
	}

	sol := &lpSolution{
		y:       make([]float64, n),
		reduced: make([]float64, n),
	}
	for j := 0; j < n; j++ {
		sol.y[j] = math.Min(math.Max(tb.value(j), 0), p.upper[j])
		sol.reduced[j] = tb.d[j]
	}
	sol.value = floats.Dot(p.c, sol.y)
	return sol, nil
}

// solveUnconstrained handles a relaxation whose rows were all presolved
// away: every column sits at whichever bound its cost prefers.
func solveUnconstrained(p boundedLP) (*lpSolution, error) {
	sol := &lpSolution{
		y:       make([]float64, len(p.c)),
		reduced: append([]float64(nil), p.c...),
	}
	for j, c := range p.c {
		if c < 0 {
			if math.IsInf(p.upper[j], 1) {
				return nil, errLPUnbounded
			}
			sol.y[j] = p.upper[j]
		}
	}
	sol.value = floats.Dot(p.c, sol.y)
	return sol, nil
}

func (tb *tableau) value(j int) float64 {
	if r := tb.rowOf[j]; r >= 0 {
		return tb.beta[r]
	}
	if tb.atUpper[j] {
		return tb.upper[j]
	}
	return 0
}

// price sets the reduced costs for cost vector c against the current basis.
func (tb *tableau) price(c []float64) {
	tb.d = append(tb.d[:0], c...)
	for i, j := range tb.basis {
		if cb := c[j]; cb != 0 {
			floats.AddScaled(tb.d, -cb, tb.t.RawRowView(i))
		}
	}
}

func (tb *tableau) iterate(ctx context.Context) error {
	maxIter := 20 * (tb.m + tb.cols())
	degenerate := 0
	for iter := 0; ; iter++ {
		if iter%ctxEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if iter > maxIter {
			return errLPIterations
		}

		j, dir := tb.entering()
		if j < 0 {
			return nil
		}
		r, step := tb.ratio(j, dir)
		if math.IsInf(step, 1) {
			return errLPUnbounded
		}
		if step <= pivotTol {
			degenerate++
			if degenerate > degenerateLimit {
				tb.bland = true
			}
		} else {
			degenerate = 0
		}
		tb.move(j, dir, r, step)
	}
}

// entering picks the column with the most attractive reduced cost, or the
// lowest eligible index once Bland's rule is on. dir is +1 when the column
// leaves its lower bound and -1 when it leaves its upper bound.
func (tb *tableau) entering() (int, float64) {
	best, bestDir, bestScore := -1, 0.0, pivotTol
	for j, dj := range tb.d {
		if tb.rowOf[j] >= 0 || tb.upper[j] <= pivotTol {
			continue
		}
		var score, dir float64
		switch {
		case !tb.atUpper[j] && dj < -pivotTol:
			score, dir = -dj, 1
		case tb.atUpper[j] && dj > pivotTol:
			score, dir = dj, -1
		default:
			continue
		}
		if tb.bland {
			return j, dir
		}
		if score > bestScore {
			best, bestDir, bestScore = j, dir, score
		}
	}
	return best, bestDir
}

// ratio finds how far column j can move. r is -1 when the column reaches
// its own opposite bound first.
func (tb *tableau) ratio(j int, dir float64) (int, float64) {
	r, step, bestAlpha := -1, tb.upper[j], 0.0
	for i := 0; i < tb.m; i++ {
		alpha := dir * tb.t.At(i, j)
		var limit float64
		switch b := tb.basis[i]; {
		case alpha > pivotTol:
			limit = tb.beta[i] / alpha
		case alpha < -pivotTol && !math.IsInf(tb.upper[b], 1):
			limit = (tb.upper[b] - tb.beta[i]) / -alpha
		default:
			continue
		}
		if limit < 0 {
			limit = 0
		}
		switch {
		case limit < step-1e-12:
			r, step, bestAlpha = i, limit, alpha
		case limit <= step+1e-12 && r >= 0:
			if tb.bland && tb.basis[i] < tb.basis[r] || !tb.bland && math.Abs(alpha) > math.Abs(bestAlpha) {
				r, step, bestAlpha = i, limit, alpha
			}
		}
	}
	return r, step
}

// move shifts column j by step in direction dir and pivots it into row r.
func (tb *tableau) move(j int, dir float64, r int, step float64) {
	if step > 0 {
		for i := 0; i < tb.m; i++ {
			tb.beta[i] -= dir * tb.t.At(i, j) * step
		}
	}
	if r < 0 {
		tb.atUpper[j] = !tb.atUpper[j]
		return
	}

	entered := tb.value(j) + dir*step
	leaving := tb.basis[r]
	tb.atUpper[leaving] = dir*tb.t.At(r, j) < 0
	tb.rowOf[leaving] = -1
	tb.atUpper[j] = false

	pr := tb.t.RawRowView(r)
	floats.Scale(1/pr[j], pr)
	pr[j] = 1
	for i := 0; i < tb.m; i++ {
		if i == r {
			continue
		}
		row := tb.t.RawRowView(i)
		if f := row[j]; f != 0 {
			floats.AddScaled(row, -f, pr)
			row[j] = 0
		}
	}
	if f := tb.d[j]; f != 0 {
		floats.AddScaled(tb.d, -f, pr)
		tb.d[j] = 0
	}

	tb.basis[r] = j
	tb.rowOf[j] = r
	tb.beta[r] = entered
}
