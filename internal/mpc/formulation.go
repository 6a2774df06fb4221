package mpc

import (
	"github.com/san-kum/kinmpc/internal/config"
	"github.com/san-kum/kinmpc/internal/model"
	"github.com/san-kum/kinmpc/internal/nlp"
)

const (
	stateDim = 5 // s, ey, epsi, v, ay
	inputDim = 2 // ax, df
)

// params are the per-tick quantities of the optimization problem. The
// constraint and cost closures read them through the owning formulation, so
// updating a field re-parameterizes the next solve without rebuilding
// anything. Not safe for concurrent mutation; the controller is a
// single-concurrent-caller component.
type params struct {
	zCurr   [stateDim]float64   // current state; index 4 is ay feedback
	uPrev   [inputDim]float64   // previously applied input
	zRef    [][4]float64        // per-step x, y, psi, v reference (diagnostics)
	zTarget [stateDim]float64   // scalar target vector used by the cost
	curv    []float64           // per-step path curvature
}

// formulation is the fixed-structure trajectory optimization problem: the
// decision vector holds the state trajectory (N+1 x 5), the input trajectory
// (N x 2) and the slack trajectory (N), flattened in that order. It is built
// once at controller construction and only its params change afterwards.
type formulation struct {
	cfg     *config.Config
	geom    model.Params
	n       int // horizon length
	dim     int // decision vector length
	uOff    int // offset of the input block
	slOff   int // offset of the slack block
	par     params
	problem nlp.Problem
}

func newFormulation(cfg *config.Config) *formulation {
	n := cfg.Horizon
	f := &formulation{
		cfg:   cfg,
		geom:  model.Params{LF: cfg.LF, LR: cfg.LR},
		n:     n,
		dim:   (n+1)*stateDim + n*inputDim + n,
		uOff:  (n + 1) * stateDim,
		slOff: (n+1)*stateDim + n*inputDim,
	}
	f.par.zRef = make([][4]float64, n)
	f.par.curv = make([]float64, n)

	f.problem = nlp.Problem{
		Dim:       f.dim,
		Objective: f.cost,
		EqCons:    f.equalities(),
		IneqCons:  f.inequalities(),
		Bounds:    f.bounds(),
	}
	return f
}

func (f *formulation) zIdx(k, i int) int { return k*stateDim + i }
func (f *formulation) uIdx(k, j int) int { return f.uOff + k*inputDim + j }
func (f *formulation) slIdx(k int) int   { return f.slOff + k }

func (f *formulation) stateAt(x []float64, k int) model.State {
	return model.State{
		S:    x[f.zIdx(k, 0)],
		Ey:   x[f.zIdx(k, 1)],
		EPsi: x[f.zIdx(k, 2)],
		V:    x[f.zIdx(k, 3)],
	}
}

func (f *formulation) inputAt(x []float64, k int) model.Input {
	return model.Input{Ax: x[f.uIdx(k, 0)], Df: x[f.uIdx(k, 1)]}
}

// cost accumulates quadratic tracking against the target vector, quadratic
// input smoothness, and the L1 slack penalty.
func (f *formulation) cost(x []float64) float64 {
	total := 0.0
	for k := 0; k < f.n; k++ {
		for i := 0; i < stateDim; i++ {
			d := x[f.zIdx(k, i)] - f.par.zTarget[i]
			total += f.cfg.QDiag[i] * d * d
		}
	}
	for k := 0; k+1 < f.n; k++ {
		for j := 0; j < inputDim; j++ {
			d := x[f.uIdx(k+1, j)] - x[f.uIdx(k, j)]
			total += f.cfg.RDiag[j] * d * d
		}
	}
	for k := 0; k < f.n; k++ {
		total += x[f.slIdx(k)]
	}
	return total
}

// dynResidual is the Euler transcription error of state component comp over
// step k; comp 4 is the algebraic lateral-acceleration consistency equation.
func (f *formulation) dynResidual(x []float64, k, comp int) float64 {
	st := f.stateAt(x, k)
	u := f.inputAt(x, k)
	if comp == 4 {
		return x[f.zIdx(k, 4)] - f.geom.LatAccel(st, u)
	}
	d := f.geom.Derivative(st, u, f.par.curv[k])
	var rate float64
	switch comp {
	case 0:
		rate = d.S
	case 1:
		rate = d.Ey
	case 2:
		rate = d.EPsi
	case 3:
		rate = d.V
	}
	return x[f.zIdx(k+1, comp)] - (x[f.zIdx(k, comp)] + f.cfg.DtModel*rate)
}

func (f *formulation) equalities() []nlp.Func {
	eqs := make([]nlp.Func, 0, 4+stateDim*f.n)

	// Initial condition on s, ey, epsi, v. The ay slot of zCurr is feedback
	// only and deliberately unconstrained.
	for i := 0; i < 4; i++ {
		i := i
		eqs = append(eqs, func(x []float64) float64 {
			return x[f.zIdx(0, i)] - f.par.zCurr[i]
		})
	}

	for k := 0; k < f.n; k++ {
		for comp := 0; comp < stateDim; comp++ {
			k, comp := k, comp
			eqs = append(eqs, func(x []float64) float64 {
				return f.dynResidual(x, k, comp)
			})
		}
	}
	return eqs
}

func (f *formulation) inequalities() []nlp.Func {
	ineqs := make([]nlp.Func, 0, 2*f.n+4*f.n)

	// Soft lateral-acceleration bound, relaxed by the per-step slack.
	for k := 0; k < f.n; k++ {
		k := k
		ineqs = append(ineqs,
			func(x []float64) float64 {
				return x[f.zIdx(k, 4)] - (f.cfg.AyMin - x[f.slIdx(k)])
			},
			func(x []float64) float64 {
				return (f.cfg.AyMax + x[f.slIdx(k)]) - x[f.zIdx(k, 4)]
			},
		)
	}

	rate := func(j int, lo, hi float64) {
		// Step 0 rates are measured against the previously applied input.
		ineqs = append(ineqs,
			func(x []float64) float64 { return (x[f.uIdx(0, j)] - f.par.uPrev[j]) - lo },
			func(x []float64) float64 { return hi - (x[f.uIdx(0, j)] - f.par.uPrev[j]) },
		)
		for k := 0; k+1 < f.n; k++ {
			k := k
			ineqs = append(ineqs,
				func(x []float64) float64 { return (x[f.uIdx(k+1, j)] - x[f.uIdx(k, j)]) - lo },
				func(x []float64) float64 { return hi - (x[f.uIdx(k+1, j)] - x[f.uIdx(k, j)]) },
			)
		}
	}
	rate(0, f.cfg.AxDotMin, f.cfg.AxDotMax)
	rate(1, f.cfg.DfDotMin, f.cfg.DfDotMax)

	return ineqs
}

func (f *formulation) bounds() []nlp.Bound {
	b := make([]nlp.Bound, f.dim)
	for i := range b {
		b[i] = nlp.Free()
	}
	for k := 0; k <= f.n; k++ {
		b[f.zIdx(k, 1)] = nlp.Bound{Lower: f.cfg.EyMin, Upper: f.cfg.EyMax}
		b[f.zIdx(k, 2)] = nlp.Bound{Lower: f.cfg.EPsiMin, Upper: f.cfg.EPsiMax}
	}
	for k := 0; k < f.n; k++ {
		b[f.uIdx(k, 0)] = nlp.Bound{Lower: f.cfg.AxMin, Upper: f.cfg.AxMax}
		b[f.uIdx(k, 1)] = nlp.Bound{Lower: f.cfg.DfMin, Upper: f.cfg.DfMax}
		b[f.slIdx(k)] = nlp.Bound{Lower: 0, Upper: 1}
	}
	return b
}

// Parameter setters are the only mutation path into the problem.

func (f *formulation) setInitialCondition(s, ey, epsi, v, ay float64) {
	f.par.zCurr = [stateDim]float64{s, ey, epsi, v, ay}
}

func (f *formulation) setReference(xRef, yRef, psiRef, vRef []float64) {
	for k := 0; k < f.n; k++ {
		f.par.zRef[k] = [4]float64{xRef[k], yRef[k], psiRef[k], vRef[k]}
	}
}

func (f *formulation) setTarget(curv []float64, target [stateDim]float64) {
	copy(f.par.curv, curv)
	f.par.zTarget = target
}

func (f *formulation) setPreviousInput(ax, df float64) {
	f.par.uPrev = [inputDim]float64{ax, df}
}

// defaultGuess seeds the decision vector with a zero-input rollout of the
// dynamics from the current state, so the equality constraints hold at the
// starting point.
func (f *formulation) defaultGuess() []float64 {
	x := make([]float64, f.dim)
	inputs := make([]model.Input, f.n)
	states := f.geom.Rollout(model.State{
		S:    f.par.zCurr[0],
		Ey:   f.par.zCurr[1],
		EPsi: f.par.zCurr[2],
		V:    f.par.zCurr[3],
	}, inputs, f.par.curv, f.cfg.DtModel)

	for k := 0; k <= f.n; k++ {
		x[f.zIdx(k, 0)] = states[k].S
		x[f.zIdx(k, 1)] = states[k].Ey
		x[f.zIdx(k, 2)] = states[k].EPsi
		x[f.zIdx(k, 3)] = states[k].V
	}
	for k := 0; k < f.n; k++ {
		x[f.zIdx(k, 4)] = f.geom.LatAccel(states[k], inputs[k])
	}
	// Inputs and slack stay zero.
	return x
}
