package bnb

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/ff-epl/internal/lp"
	"github.com/stitts-dev/ff-epl/internal/solver"
)

func knapsack(t *testing.T) (*lp.Model, []*lp.Var) {
	t.Helper()
	m := lp.NewModel("knapsack", lp.Maximize)
	a, err := m.NewBinary("a")
	require.NoError(t, err)
	b, err := m.NewBinary("b")
	require.NoError(t, err)
	c, err := m.NewBinary("c")
	require.NoError(t, err)

	m.SetObjective("value", lp.NewExpr().Add(a, 5).Add(b, 4).Add(c, 3))
	require.NoError(t, m.AddConstraint("weight", lp.NewExpr().Add(a, 2).Add(b, 3).Add(c, 1).LE(5)))
	return m, []*lp.Var{a, b, c}
}

func TestSolve_Knapsack(t *testing.T) {
	m, vars := knapsack(t)

	res, err := New().Solve(context.Background(), m, solver.Options{})
	require.NoError(t, err)
	require.Equal(t, solver.Optimal, res.Status)

	assert.InDelta(t, 9.0, res.Objective, 1e-6)
	assert.Equal(t, 1.0, res.Values.Value(vars[0]))
	assert.Equal(t, 1.0, res.Values.Value(vars[1]))
	assert.Equal(t, 0.0, res.Values.Value(vars[2]))
	assert.Greater(t, res.Nodes, 1, "root relaxation is fractional")
	assert.Empty(t, m.Violations(res.Values, 1e-6))
}

func TestSolve_EqualityAndSlack(t *testing.T) {
	m := lp.NewModel("pick-two", lp.Maximize)
	var xs []*lp.Var
	points := []float64{7, 3, 6, 9}
	costs := []float64{4, 1, 3, 8}
	obj := lp.NewExpr()
	size := lp.NewExpr()
	budget := lp.NewExpr()
	for i := range points {
		x, err := m.NewBinary(string(rune('p' + i)))
		require.NoError(t, err)
		xs = append(xs, x)
		obj.Add(x, points[i])
		size.Add(x, 1)
		budget.Add(x, costs[i])
	}
	slack, err := m.NewContinuous("reserve", 0, math.Inf(1))
	require.NoError(t, err)

	m.SetObjective("points", obj)
	require.NoError(t, m.AddConstraint("size", size.EQ(2)))
	require.NoError(t, m.AddConstraint("bench", lp.NewExpr().Add(xs[0], 1).Add(xs[1], 1).Add(slack, 1).EQ(2)))
	budget.Add(slack, 1)
	require.NoError(t, m.AddConstraint("budget", budget.LE(10)))

	res, err := New().Solve(context.Background(), m, solver.Options{})
	require.NoError(t, err)
	require.Equal(t, solver.Optimal, res.Status)

	// p+s would score 16 but costs 12 plus a reserve of 1; p+r costs 7+1.
	assert.InDelta(t, 13.0, res.Objective, 1e-6)
	assert.Empty(t, m.Violations(res.Values, 1e-6))
}

func TestSolve_InfeasibleByPresolve(t *testing.T) {
	m := lp.NewModel("too-many", lp.Maximize)
	x, _ := m.NewBinary("x")
	y, _ := m.NewBinary("y")
	m.SetObjective("obj", lp.NewExpr().Add(x, 1).Add(y, 1))
	require.NoError(t, m.AddConstraint("size", lp.NewExpr().Add(x, 1).Add(y, 1).EQ(3)))

	res, err := New().Solve(context.Background(), m, solver.Options{})
	require.NoError(t, err)
	assert.Equal(t, solver.Infeasible, res.Status)
	assert.False(t, res.HasSolution())
	assert.Equal(t, 1, res.Nodes)
}

func TestSolve_InfeasibleAfterBranching(t *testing.T) {
	m := lp.NewModel("half", lp.Maximize)
	x, _ := m.NewBinary("x")
	y, _ := m.NewBinary("y")
	m.SetObjective("obj", lp.NewExpr().Add(x, 1))
	require.NoError(t, m.AddConstraint("sum", lp.NewExpr().Add(x, 1).Add(y, 1).EQ(1)))
	require.NoError(t, m.AddConstraint("diff", lp.NewExpr().Add(x, 2).Add(y, -2).EQ(1)))

	res, err := New().Solve(context.Background(), m, solver.Options{Verbose: true})
	require.NoError(t, err)
	assert.Equal(t, solver.Infeasible, res.Status)
}

func TestSolve_ForcingRowFixesVariables(t *testing.T) {
	m := lp.NewModel("forced", lp.Maximize)
	x, _ := m.NewBinary("x")
	y, _ := m.NewBinary("y")
	m.SetObjective("obj", lp.NewExpr().Add(x, 10).Add(y, 1))
	require.NoError(t, m.AddConstraint("unavailable", lp.NewExpr().Add(x, 1).EQ(0)))

	res, err := New().Solve(context.Background(), m, solver.Options{})
	require.NoError(t, err)
	require.Equal(t, solver.Optimal, res.Status)
	assert.Equal(t, 0.0, res.Values.Value(x))
	assert.Equal(t, 1.0, res.Values.Value(y))
	assert.InDelta(t, 1.0, res.Objective, 1e-9)
}

func TestSolve_Unbounded(t *testing.T) {
	m := lp.NewModel("open", lp.Maximize)
	y, _ := m.NewContinuous("y", 0, math.Inf(1))
	m.SetObjective("obj", lp.NewExpr().Add(y, 1))
	require.NoError(t, m.AddConstraint("floor", lp.NewExpr().Add(y, 1).GE(1)))

	res, err := New().Solve(context.Background(), m, solver.Options{})
	require.NoError(t, err)
	assert.Equal(t, solver.Unbounded, res.Status)

	free := lp.NewModel("free", lp.Maximize)
	z, _ := free.NewContinuous("z", 0, math.Inf(1))
	free.SetObjective("obj", lp.NewExpr().Add(z, 1))
	res, err = New().Solve(context.Background(), free, solver.Options{})
	require.NoError(t, err)
	assert.Equal(t, solver.Unbounded, res.Status)
}

func TestSolve_Limits(t *testing.T) {
	m, _ := knapsack(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := New().Solve(ctx, m, solver.Options{Timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, solver.TimedOut, res.Status)
	assert.Equal(t, 0, res.Nodes)

	res, err = New().Solve(context.Background(), m, solver.Options{MaxNodes: 1})
	require.NoError(t, err)
	assert.Equal(t, solver.TimedOut, res.Status)
	assert.Equal(t, 1, res.Nodes)
	assert.False(t, res.HasSolution())
}

func TestSolve_AdapterError(t *testing.T) {
	m := lp.NewModel("free-var", lp.Minimize)
	v, _ := m.NewContinuous("v", math.Inf(-1), 5)
	m.SetObjective("obj", lp.NewExpr().Add(v, 1))

	res, err := New().Solve(context.Background(), m, solver.Options{})
	require.Error(t, err)
	assert.Equal(t, solver.Error, res.Status)

	var aerr *solver.AdapterError
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, Name, aerr.Backend)
}
