// Package lp holds an explicit linear-programming model: variables, linear
// expressions built term by term, named constraints and an objective. It has
// no solving logic of its own; see package solver for backends.
package lp

import (
	"fmt"
	"math"
)

// VarKind is the domain of a decision variable.
type VarKind int

const (
	Continuous VarKind = iota
	Integer
	Binary
)

func (k VarKind) String() string {
	switch k {
	case Binary:
		return "binary"
	case Integer:
		return "integer"
	default:
		return "continuous"
	}
}

// Var is a model variable. Index is its position in Model.Vars().
type Var struct {
	Index int
	Name  string
	Kind  VarKind
	Lower float64
	Upper float64 // math.Inf(1) when unbounded
}

// IsInteger reports whether the variable must take an integral value.
func (v *Var) IsInteger() bool {
	return v.Kind == Binary || v.Kind == Integer
}

// Term is a single coefficient * variable product.
type Term struct {
	Var  *Var
	Coef float64
}

// Expr is a linear expression Σ coef*var + constant. Adding the same variable
// twice merges the coefficients.
type Expr struct {
	terms    []Term
	position map[int]int
	constant float64
}

// NewExpr returns an empty expression.
func NewExpr() *Expr {
	return &Expr{position: make(map[int]int)}
}

// Add adds weight*v to the expression and returns it for chaining.
func (e *Expr) Add(v *Var, weight float64) *Expr {
	if e.position == nil {
		e.position = make(map[int]int)
	}
	if i, ok := e.position[v.Index]; ok {
		e.terms[i].Coef += weight
		return e
	}
	e.position[v.Index] = len(e.terms)
	e.terms = append(e.terms, Term{Var: v, Coef: weight})
	return e
}

// AddConstant adds c to the constant part.
func (e *Expr) AddConstant(c float64) *Expr {
	e.constant += c
	return e
}

// Terms returns the terms in insertion order.
func (e *Expr) Terms() []Term {
	return append([]Term(nil), e.terms...)
}

// Constant returns the constant part.
func (e *Expr) Constant() float64 {
	return e.constant
}

// Len returns the number of distinct variables in the expression.
func (e *Expr) Len() int {
	return len(e.terms)
}

// Eval evaluates the expression against values indexed by Var.Index.
func (e *Expr) Eval(values []float64) float64 {
	total := e.constant
	for _, t := range e.terms {
		total += t.Coef * values[t.Var.Index]
	}
	return total
}

// LE builds the constraint expr <= rhs.
func (e *Expr) LE(rhs float64) Constraint {
	return e.compare(LessEqual, rhs)
}

// GE builds the constraint expr >= rhs.
func (e *Expr) GE(rhs float64) Constraint {
	return e.compare(GreaterEqual, rhs)
}

// EQ builds the constraint expr == rhs.
func (e *Expr) EQ(rhs float64) Constraint {
	return e.compare(Equal, rhs)
}

// The constant moves to the right-hand side so a Constraint is always
// Σ coef*var (sense) rhs.
func (e *Expr) compare(sense Sense, rhs float64) Constraint {
	lhs := NewExpr()
	for _, t := range e.terms {
		lhs.Add(t.Var, t.Coef)
	}
	return Constraint{Expr: lhs, Sense: sense, RHS: rhs - e.constant}
}

// Sense is the comparison operator of a constraint.
type Sense int

const (
	LessEqual Sense = iota
	GreaterEqual
	Equal
)

func (s Sense) String() string {
	switch s {
	case LessEqual:
		return "<="
	case GreaterEqual:
		return ">="
	default:
		return "="
	}
}

// Constraint is Expr (Sense) RHS with a unique name inside its model.
type Constraint struct {
	Name  string
	Expr  *Expr
	Sense Sense
	RHS   float64
}

// Satisfied checks the constraint against values within tol.
func (c Constraint) Satisfied(values []float64, tol float64) bool {
	lhs := c.Expr.Eval(values)
	switch c.Sense {
	case LessEqual:
		return lhs <= c.RHS+tol
	case GreaterEqual:
		return lhs >= c.RHS-tol
	default:
		return math.Abs(lhs-c.RHS) <= tol
	}
}

func (c Constraint) String() string {
	return fmt.Sprintf("%s: %s %s %s", c.Name, formatExpr(c.Expr), c.Sense, formatNumber(c.RHS))
}
