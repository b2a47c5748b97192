package highs

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/stitts-dev/ff-epl/internal/lp"
	"github.com/stitts-dev/ff-epl/internal/solver"
)

// Solution is the primal part of a raw HiGHS solution file.
type Solution struct {
	// ModelStatus is the status line as HiGHS wrote it, e.g. "Optimal" or
	// "Time limit reached".
	ModelStatus string
	// PrimalStatus is "Feasible", "Infeasible" or "None".
	PrimalStatus string
	Objective    float64
	ColNames     []string
	ColValues    []float64
}

// IsOptimal returns true if the solution is optimal.
func (s *Solution) IsOptimal() bool {
	return s.status() == solver.Optimal
}

// IsInfeasible also covers "Primal infeasible or unbounded".
func (s *Solution) IsInfeasible() bool {
	return strings.Contains(strings.ToLower(s.ModelStatus), "infeasible")
}

// IsUnbounded returns true if the model is unbounded.
func (s *Solution) IsUnbounded() bool {
	return strings.EqualFold(s.ModelStatus, "Unbounded")
}

// IsTimeLimit is true for every "... limit reached" status: time, node,
// iteration and solution limits all stop the search early.
func (s *Solution) IsTimeLimit() bool {
	return strings.HasSuffix(strings.ToLower(s.ModelStatus), "limit reached")
}

// HasSolution returns true if the file carries a feasible point.
func (s *Solution) HasSolution() bool {
	return strings.EqualFold(s.PrimalStatus, "Feasible") && len(s.ColValues) > 0
}

func (s *Solution) status() solver.Status {
	switch {
	case strings.EqualFold(s.ModelStatus, "Optimal"):
		return solver.Optimal
	case s.IsInfeasible():
		return solver.Infeasible
	case s.IsUnbounded():
		return solver.Unbounded
	case s.IsTimeLimit():
		return solver.TimedOut
	default:
		return solver.Error
	}
}

// assignment lays the column values out by lp.Var.Index.
func (s *Solution) assignment(model *lp.Model) (solver.Assignment, error) {
	byName := make(map[string]*lp.Var, model.NumVars())
	for _, v := range model.Vars() {
		byName[v.Name] = v
	}
	values := make(solver.Assignment, model.NumVars())
	for i, name := range s.ColNames {
		v, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("solution names unknown column %q", name)
		}
		values[v.Index] = s.ColValues[i]
	}
	return values, nil
}

// parseSolution reads the raw solution style:
//
//	Model status
//	Optimal
//
//	# Primal solution values
//	Feasible
//	Objective 9
//	# Columns 3
//	a 1
//	...
//	# Rows 1
//	...
//
// Dual values and the basis that follow are ignored.
func parseSolution(raw []byte) (*Solution, error) {
	sol := &Solution{}
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 64*1024), 1<<20)

	var (
		expectStatus bool
		inPrimal     bool
		columns      = -1
	)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		switch {
		case expectStatus:
			sol.ModelStatus = line
			expectStatus = false
		case strings.EqualFold(line, "Model status"):
			expectStatus = true
		case strings.HasPrefix(line, "Model status:"):
			sol.ModelStatus = strings.TrimSpace(strings.TrimPrefix(line, "Model status:"))
		case strings.HasPrefix(line, "#"):
			header := strings.TrimSpace(strings.TrimPrefix(line, "#"))
			switch {
			case strings.HasPrefix(header, "Primal solution values"):
				inPrimal = true
			case strings.HasPrefix(header, "Dual solution values"), strings.HasPrefix(header, "Basis"):
				inPrimal = false
				columns = -1
			case inPrimal && strings.HasPrefix(header, "Columns"):
				n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(header, "Columns")))
				if err != nil {
					return nil, fmt.Errorf("solution column count %q: %w", header, err)
				}
				columns = n
			case strings.HasPrefix(header, "Rows"):
				inPrimal = false
				columns = -1
			}
		case inPrimal && columns > 0:
			fields := strings.Fields(line)
			if len(fields) < 2 {
				return nil, fmt.Errorf("solution column line %q", line)
			}
			v, err := strconv.ParseFloat(fields[len(fields)-1], 64)
			if err != nil {
				return nil, fmt.Errorf("solution value for %s: %w", fields[0], err)
			}
			sol.ColNames = append(sol.ColNames, fields[0])
			sol.ColValues = append(sol.ColValues, v)
			columns--
		case inPrimal && columns < 0 && strings.HasPrefix(line, "Objective"):
			v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(line, "Objective")), 64)
			if err != nil {
				return nil, fmt.Errorf("solution objective: %w", err)
			}
			sol.Objective = v
		case inPrimal && columns < 0 && sol.PrimalStatus == "":
			sol.PrimalStatus = line
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if sol.ModelStatus == "" {
		return nil, errors.New("solution file carries no model status")
	}
	return sol, nil
}
