// Package nlp exposes the numerical-optimization capability the controller
// depends on: a general nonlinear program with equality and inequality
// constraints, variable bounds and a scalar objective, solved under a
// wall-clock budget. Callers always get an iterate back; non-convergence is
// reported as a flag, never as an error.
package nlp

import (
	"math"
	"time"
)

// Func evaluates a scalar function of the decision vector.
type Func func(x []float64) float64

// Bound is a per-variable box constraint. Use +-Inf for an open side.
type Bound struct {
	Lower float64
	Upper float64
}

// Free returns an unbounded Bound.
func Free() Bound {
	return Bound{Lower: math.Inf(-1), Upper: math.Inf(1)}
}

// Problem is a nonlinear program
//
//	minimize  Objective(x)
//	s.t.      h(x)  = 0   for each h in EqCons
//	          g(x) >= 0   for each g in IneqCons
//	          Bounds[i].Lower <= x[i] <= Bounds[i].Upper
//
// Parameter values enter through the closures; the problem structure itself
// is built once and reused across solves.
type Problem struct {
	Dim       int
	Objective Func
	EqCons    []Func
	IneqCons  []Func
	Bounds    []Bound // optional; nil means all variables free
}

// Options tune a Solver. Zero values select defaults.
type Options struct {
	MaxTime   time.Duration // wall-clock budget per Solve
	FeasTol   float64       // max constraint violation accepted as converged
	OptTol    float64       // objective stall threshold between outer rounds
	MaxOuter  int           // outer multiplier-update rounds
	InnerIter int           // iteration cap per inner minimization
}

func (o Options) withDefaults() Options {
	if o.MaxTime <= 0 {
		o.MaxTime = 100 * time.Millisecond
	}
	if o.FeasTol <= 0 {
		o.FeasTol = 1e-6
	}
	if o.OptTol <= 0 {
		o.OptTol = 1e-6
	}
	if o.MaxOuter <= 0 {
		o.MaxOuter = 20
	}
	if o.InnerIter <= 0 {
		o.InnerIter = 400
	}
	return o
}

// Status describes how a solve ended.
type Status int

const (
	// Converged means the iterate satisfies the constraints within FeasTol
	// and the objective has stalled.
	Converged Status = iota
	// BudgetExhausted means the wall-clock budget ran out first.
	BudgetExhausted
	// IterationLimit means the outer loop hit MaxOuter without converging.
	IterationLimit
	// NumericalFailure means the inner minimizer failed (NaN, line search).
	NumericalFailure
)

func (s Status) String() string {
	switch s {
	case Converged:
		return "converged"
	case BudgetExhausted:
		return "budget_exhausted"
	case IterationLimit:
		return "iteration_limit"
	case NumericalFailure:
		return "numerical_failure"
	default:
		return "unknown"
	}
}

// Result is the outcome of a Solve. X is always populated: the primal
// solution when Converged, otherwise the best iterate observed.
type Result struct {
	X            []float64
	Objective    float64
	MaxViolation float64
	Converged    bool
	Status       Status
	Outer        int
	Runtime      time.Duration
}
