package nlp

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"
)

// Solver minimizes a Problem with an augmented-Lagrangian outer loop around
// gonum's LBFGS, fed central-difference gradients. Equality constraints carry
// multipliers lambda, inequalities (including expanded variable bounds) carry
// multipliers mu; the penalty weight grows until the iterate is feasible
// within FeasTol.
//
// A Solver is stateless between calls and safe to share across problems,
// though a single solve is strictly sequential.
type Solver struct {
	opts Options
}

func NewSolver(opts Options) *Solver {
	return &Solver{opts: opts.withDefaults()}
}

// Solve minimizes p starting from x0. The returned error reports contract
// violations only (nil objective, dimension mismatch); infeasibility, budget
// exhaustion and numerical failures all come back as a Result with
// Converged=false and the best iterate in X.
func (s *Solver) Solve(p Problem, x0 []float64) (Result, error) {
	if p.Objective == nil {
		return Result{}, fmt.Errorf("nlp: problem has no objective")
	}
	if p.Dim <= 0 {
		return Result{}, fmt.Errorf("nlp: problem dimension must be positive, got %d", p.Dim)
	}
	if len(x0) != p.Dim {
		return Result{}, fmt.Errorf("nlp: initial guess has %d entries, want %d", len(x0), p.Dim)
	}
	if p.Bounds != nil && len(p.Bounds) != p.Dim {
		return Result{}, fmt.Errorf("nlp: bounds have %d entries, want %d", len(p.Bounds), p.Dim)
	}

	start := time.Now()

	ineqs := expandBounds(p)
	x := make([]float64, p.Dim)
	copy(x, x0)

	lambda := make([]float64, len(p.EqCons))
	mu := make([]float64, len(ineqs))
	rho := 10.0

	res := Result{Status: IterationLimit}
	best := newBestIterate(x, p.Objective(x), violation(p.EqCons, ineqs, x))
	prevObj := math.Inf(1)

	for outer := 0; outer < s.opts.MaxOuter; outer++ {
		res.Outer = outer + 1

		remaining := s.opts.MaxTime - time.Since(start)
		if remaining <= 0 {
			res.Status = BudgetExhausted
			break
		}

		xNext, ok := s.minimizeInner(p, ineqs, lambda, mu, rho, x, remaining)
		if !ok {
			res.Status = NumericalFailure
			break
		}
		x = xNext

		obj := p.Objective(x)
		vio := violation(p.EqCons, ineqs, x)
		best.offer(x, obj, vio)

		if vio < s.opts.FeasTol && math.Abs(obj-prevObj) < s.opts.OptTol*(1+math.Abs(obj)) {
			res.Status = Converged
			res.Converged = true
			break
		}
		prevObj = obj

		for i, h := range p.EqCons {
			lambda[i] += rho * h(x)
		}
		for j, g := range ineqs {
			mu[j] = math.Max(0, mu[j]-rho*g(x))
		}
		rho = math.Min(rho*4, 1e8)
	}

	res.X, res.Objective, res.MaxViolation = best.take()
	res.Runtime = time.Since(start)
	return res, nil
}

// minimizeInner runs one unconstrained minimization of the augmented
// Lagrangian. A failed line search near a stationary point still hands back a
// usable iterate; the next multiplier and penalty update reshapes the
// landscape. A false return means the minimizer failed hard and the caller
// keeps the previous iterate.
func (s *Solver) minimizeInner(p Problem, ineqs []Func, lambda, mu []float64, rho float64, x []float64, budget time.Duration) (out []float64, ok bool) {
	defer func() {
		// gonum can panic on pathological function values; degrade instead.
		if r := recover(); r != nil {
			out, ok = nil, false
		}
	}()

	augmented := func(x []float64) float64 {
		val := p.Objective(x)
		for i, h := range p.EqCons {
			hv := h(x)
			val += lambda[i]*hv + 0.5*rho*hv*hv
		}
		for j, g := range ineqs {
			// Rockafellar form: active only where the shifted bound binds.
			t := math.Max(0, mu[j]-rho*g(x))
			val += (t*t - mu[j]*mu[j]) / (2 * rho)
		}
		return val
	}

	prob := optimize.Problem{
		Func: augmented,
		Grad: func(grad, x []float64) {
			fd.Gradient(grad, augmented, x, &fd.Settings{Formula: fd.Central})
		},
	}
	settings := &optimize.Settings{
		Runtime:         budget,
		MajorIterations: s.opts.InnerIter,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-12,
			Iterations: 20,
		},
	}

	// Status-based stops and line-search errors still carry an iterate; only
	// a missing or non-finite result is fatal.
	result, _ := optimize.Minimize(prob, x, settings, &optimize.LBFGS{})
	if result == nil || len(result.X) != len(x) || !floatsFinite(result.X) {
		return nil, false
	}
	return result.X, true
}

// expandBounds folds the box constraints into the inequality set so the
// multiplier update treats them uniformly.
func expandBounds(p Problem) []Func {
	ineqs := make([]Func, 0, len(p.IneqCons)+2*p.Dim)
	ineqs = append(ineqs, p.IneqCons...)
	if p.Bounds == nil {
		return ineqs
	}
	for i, b := range p.Bounds {
		i := i
		if lo := b.Lower; !math.IsInf(lo, -1) {
			lo := lo
			ineqs = append(ineqs, func(x []float64) float64 { return x[i] - lo })
		}
		if hi := b.Upper; !math.IsInf(hi, 1) {
			hi := hi
			ineqs = append(ineqs, func(x []float64) float64 { return hi - x[i] })
		}
	}
	return ineqs
}

func violation(eqs, ineqs []Func, x []float64) float64 {
	worst := 0.0
	for _, h := range eqs {
		worst = math.Max(worst, math.Abs(h(x)))
	}
	for _, g := range ineqs {
		worst = math.Max(worst, math.Max(0, -g(x)))
	}
	return worst
}

func floatsFinite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// bestIterate tracks the most usable point seen so far: lower constraint
// violation wins, objective breaks ties among near-feasible points.
type bestIterate struct {
	x   []float64
	obj float64
	vio float64
}

func newBestIterate(x []float64, obj, vio float64) *bestIterate {
	b := &bestIterate{x: make([]float64, len(x)), obj: obj, vio: vio}
	copy(b.x, x)
	return b
}

func (b *bestIterate) offer(x []float64, obj, vio float64) {
	better := vio < b.vio-1e-12 ||
		(math.Abs(vio-b.vio) <= 1e-12 && obj < b.obj)
	if better {
		copy(b.x, x)
		b.obj = obj
		b.vio = vio
	}
}

func (b *bestIterate) take() ([]float64, float64, float64) {
	return b.x, b.obj, b.vio
}
