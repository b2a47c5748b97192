package lp

import (
	"fmt"
	"math"
)

// Direction is the optimisation direction of the objective.
type Direction int

const (
	Minimize Direction = iota
	Maximize
)

func (d Direction) String() string {
	if d == Maximize {
		return "Maximize"
	}
	return "Minimize"
}

// Model is a mixed-integer linear program. Variables and constraints are kept
// in declaration order so that the model and its text dump are deterministic.
type Model struct {
	Name          string
	Direction     Direction
	ObjectiveName string

	vars        []*Var
	varNames    map[string]bool
	objective   *Expr
	constraints []Constraint
	consNames   map[string]bool
}

// NewModel returns an empty model.
func NewModel(name string, direction Direction) *Model {
	return &Model{
		Name:          name,
		Direction:     direction,
		ObjectiveName: "objective",
		varNames:      make(map[string]bool),
		objective:     NewExpr(),
		consNames:     make(map[string]bool),
	}
}

// NewBinary declares a {0,1} variable.
func (m *Model) NewBinary(name string) (*Var, error) {
	return m.NewVar(name, Binary, 0, 1)
}

// NewContinuous declares a continuous variable with the given bounds.
func (m *Model) NewContinuous(name string, lower, upper float64) (*Var, error) {
	return m.NewVar(name, Continuous, lower, upper)
}

// NewVar declares a variable. Names must be unique and bounds ordered.
func (m *Model) NewVar(name string, kind VarKind, lower, upper float64) (*Var, error) {
	if name == "" {
		return nil, fmt.Errorf("variable name is empty")
	}
	if m.varNames[name] {
		return nil, fmt.Errorf("duplicate variable %q", name)
	}
	if math.IsNaN(lower) || math.IsNaN(upper) || lower > upper {
		return nil, fmt.Errorf("variable %q has invalid bounds [%g, %g]", name, lower, upper)
	}
	if kind == Binary {
		lower, upper = math.Max(lower, 0), math.Min(upper, 1)
	}

	v := &Var{Index: len(m.vars), Name: name, Kind: kind, Lower: lower, Upper: upper}
	m.vars = append(m.vars, v)
	m.varNames[name] = true
	return v, nil
}

// SetObjective replaces the objective expression.
func (m *Model) SetObjective(name string, e *Expr) {
	if name != "" {
		m.ObjectiveName = name
	}
	m.objective = e
}

// AddConstraint adds a named constraint. Every variable in it must belong to m.
func (m *Model) AddConstraint(name string, c Constraint) error {
	if name == "" {
		return fmt.Errorf("constraint name is empty")
	}
	if m.consNames[name] {
		return fmt.Errorf("duplicate constraint %q", name)
	}
	for _, t := range c.Expr.terms {
		if t.Var.Index >= len(m.vars) || m.vars[t.Var.Index] != t.Var {
			return fmt.Errorf("constraint %q references variable %q from another model", name, t.Var.Name)
		}
	}
	c.Name = name
	m.constraints = append(m.constraints, c)
	m.consNames[name] = true
	return nil
}

// Vars returns the declared variables in order.
func (m *Model) Vars() []*Var {
	return append([]*Var(nil), m.vars...)
}

// NumVars returns the number of declared variables.
func (m *Model) NumVars() int {
	return len(m.vars)
}

// Objective returns the objective expression.
func (m *Model) Objective() *Expr {
	return m.objective
}

// Constraints returns the constraints in declaration order.
func (m *Model) Constraints() []Constraint {
	return append([]Constraint(nil), m.constraints...)
}

// Constraint looks a constraint up by name.
func (m *Model) Constraint(name string) (Constraint, bool) {
	for _, c := range m.constraints {
		if c.Name == name {
			return c, true
		}
	}
	return Constraint{}, false
}

// Violations lists the constraints and bounds that values break within tol.
func (m *Model) Violations(values []float64, tol float64) []string {
	var out []string
	for _, v := range m.vars {
		x := values[v.Index]
		if x < v.Lower-tol || x > v.Upper+tol {
			out = append(out, fmt.Sprintf("%s = %s outside [%s, %s]", v.Name, formatNumber(x), formatNumber(v.Lower), formatNumber(v.Upper)))
		}
		if v.IsInteger() && math.Abs(x-math.Round(x)) > tol {
			out = append(out, fmt.Sprintf("%s = %s is not integral", v.Name, formatNumber(x)))
		}
	}
	for _, c := range m.constraints {
		if !c.Satisfied(values, tol) {
			out = append(out, fmt.Sprintf("%s: lhs %s %s %s", c.Name, formatNumber(c.Expr.Eval(values)), c.Sense, formatNumber(c.RHS)))
		}
	}
	return out
}
