// Package mpc implements a receding-horizon path-tracking controller for a
// ground vehicle. Each control tick the caller feeds in the current Frenet
// state, a horizon of reference and curvature samples and the previously
// applied input; the controller re-solves a fixed-structure trajectory
// optimization and returns the step-0 acceleration and steering command
// together with the full predicted trajectories.
package mpc

import (
	"fmt"
	"time"

	"github.com/san-kum/kinmpc/internal/config"
	"github.com/san-kum/kinmpc/internal/nlp"
)

// WarmStart carries a prior solution used to seed the next solve's initial
// guess. Shapes must match the controller horizon: Z is (N+1)x5, U is Nx2,
// Sl has N entries.
type WarmStart struct {
	Z  [][]float64
	U  [][]float64
	Sl []float64
}

// UpdateInput is the per-tick input packet. Reference slices must all have
// exactly N entries.
type UpdateInput struct {
	// Current state in the Frenet frame.
	S    float64
	Ey   float64
	EPsi float64
	V0   float64
	// Ay0 is lateral-acceleration feedback. It is carried in the
	// current-state parameter but excluded from the initial-condition
	// constraint, since ay is an algebraic quantity.
	Ay0 float64

	// Positional/speed reference over the horizon, used for diagnostics.
	XRef   []float64
	YRef   []float64
	PsiRef []float64
	VRef   []float64

	// Path curvature at each horizon step, used in the dynamics and the
	// target-speed policy.
	CurvRef []float64

	// Previously applied input, anchoring the step-0 rate constraint.
	AccPrev float64
	DfPrev  float64

	// Optional warm start for the next solve.
	WarmStart *WarmStart
}

// Controller owns one problem formulation and re-solves it every tick. All
// mutable state (parameters, initial guess) is overwritten in place per
// tick; a Controller must not be driven by concurrent callers. Use one
// instance per vehicle.
type Controller struct {
	cfg    *config.Config
	form   *formulation
	solver *nlp.Solver
	guess  []float64 // nil means derive the default rollout guess
}

// New builds the formulation (decision variables, constraints, cost, solver
// options) exactly once and seeds neutral parameter values. The config is
// not validated here: a structurally sound but infeasible configuration
// still constructs and yields degraded solves.
func New(cfg *config.Config) (*Controller, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if cfg.Horizon < 1 {
		return nil, fmt.Errorf("mpc: horizon must be at least 1, got %d", cfg.Horizon)
	}
	if len(cfg.QDiag) != stateDim {
		return nil, fmt.Errorf("mpc: q must have %d entries, got %d", stateDim, len(cfg.QDiag))
	}
	if len(cfg.RDiag) != inputDim {
		return nil, fmt.Errorf("mpc: r must have %d entries, got %d", inputDim, len(cfg.RDiag))
	}

	c := &Controller{
		cfg:  cfg,
		form: newFormulation(cfg),
		solver: nlp.NewSolver(nlp.Options{
			MaxTime: cfg.SolveBudget(),
		}),
	}

	// Neutral parameters so a solve before the first Update is well posed.
	c.form.setInitialCondition(0, 0, 0, 1, 0)
	xRef := make([]float64, cfg.Horizon)
	zeros := make([]float64, cfg.Horizon)
	ones := make([]float64, cfg.Horizon)
	for k := range xRef {
		xRef[k] = cfg.DtCtrl * float64(k+1)
		ones[k] = 1
	}
	c.form.setReference(xRef, zeros, zeros, ones)
	c.form.setTarget(zeros, [stateDim]float64{3: 20})
	c.form.setPreviousInput(0, 0)
	return c, nil
}

// Horizon returns the fixed horizon length N.
func (c *Controller) Horizon() int { return c.cfg.Horizon }

// Update refreshes the problem parameters for the next solve. All inputs are
// validated before any parameter is mutated; a length mismatch leaves the
// controller untouched.
func (c *Controller) Update(in UpdateInput) error {
	n := c.cfg.Horizon
	for _, ref := range []struct {
		name string
		len  int
	}{
		{"x_ref", len(in.XRef)},
		{"y_ref", len(in.YRef)},
		{"psi_ref", len(in.PsiRef)},
		{"v_ref", len(in.VRef)},
		{"curv_ref", len(in.CurvRef)},
	} {
		if ref.len != n {
			return fmt.Errorf("mpc: %s has %d entries, want horizon %d", ref.name, ref.len, n)
		}
	}
	if ws := in.WarmStart; ws != nil {
		if err := c.checkWarmStart(ws); err != nil {
			return err
		}
	}

	c.form.setInitialCondition(in.S, in.Ey, in.EPsi, in.V0, in.Ay0)
	c.form.setReference(in.XRef, in.YRef, in.PsiRef, in.VRef)

	target := TargetSpeed(in.CurvRef, c.cfg.AyMax, c.cfg.VSet)
	c.form.setTarget(in.CurvRef, [stateDim]float64{3: target})

	c.form.setPreviousInput(in.AccPrev, in.DfPrev)

	if in.WarmStart != nil {
		c.guess = c.flattenWarmStart(in.WarmStart)
	} else {
		c.guess = nil
	}
	return nil
}

func (c *Controller) checkWarmStart(ws *WarmStart) error {
	n := c.cfg.Horizon
	if len(ws.Z) != n+1 {
		return fmt.Errorf("mpc: warm start z has %d rows, want %d", len(ws.Z), n+1)
	}
	for k, row := range ws.Z {
		if len(row) != stateDim {
			return fmt.Errorf("mpc: warm start z row %d has %d entries, want %d", k, len(row), stateDim)
		}
	}
	if len(ws.U) != n {
		return fmt.Errorf("mpc: warm start u has %d rows, want %d", len(ws.U), n)
	}
	for k, row := range ws.U {
		if len(row) != inputDim {
			return fmt.Errorf("mpc: warm start u row %d has %d entries, want %d", k, len(row), inputDim)
		}
	}
	if len(ws.Sl) != n {
		return fmt.Errorf("mpc: warm start slack has %d entries, want %d", len(ws.Sl), n)
	}
	return nil
}

func (c *Controller) flattenWarmStart(ws *WarmStart) []float64 {
	f := c.form
	x := make([]float64, f.dim)
	for k := 0; k <= f.n; k++ {
		for i := 0; i < stateDim; i++ {
			x[f.zIdx(k, i)] = ws.Z[k][i]
		}
	}
	for k := 0; k < f.n; k++ {
		for j := 0; j < inputDim; j++ {
			x[f.uIdx(k, j)] = ws.U[k][j]
		}
		x[f.slIdx(k)] = ws.Sl[k]
	}
	return x
}

// Solve runs the solver against the current parameters within the configured
// wall-clock budget and packages the outcome. It never fails: a solver that
// cannot converge still yields its best-effort iterate with Optimal=false so
// the caller always has a command to apply.
func (c *Controller) Solve() SolveResult {
	guess := c.guess
	if guess == nil {
		guess = c.form.defaultGuess()
	}
	// Warm starts apply to exactly one solve.
	c.guess = nil

	start := time.Now()
	res, err := c.solver.Solve(c.form.problem, guess)
	if err != nil {
		// Structurally impossible given the formulation owns the problem and
		// guess shapes; degrade to a zero command rather than crash the loop.
		return c.packageResult(guess, false, "solver_rejected_problem", time.Since(start))
	}
	return c.packageResult(res.X, res.Converged, res.Status.String(), res.Runtime)
}

func (c *Controller) packageResult(x []float64, optimal bool, status string, elapsed time.Duration) SolveResult {
	f := c.form
	out := SolveResult{
		Optimal:   optimal,
		Status:    status,
		SolveTime: elapsed,
		UMPC:      make([][]float64, f.n),
		ZMPC:      make([][]float64, f.n+1),
		SlMPC:     make([]float64, f.n),
		ZRef:      make([][]float64, f.n),
	}
	for k := 0; k <= f.n; k++ {
		row := make([]float64, stateDim)
		for i := range row {
			row[i] = x[f.zIdx(k, i)]
		}
		out.ZMPC[k] = row
	}
	for k := 0; k < f.n; k++ {
		out.UMPC[k] = []float64{x[f.uIdx(k, 0)], x[f.uIdx(k, 1)]}
		out.SlMPC[k] = x[f.slIdx(k)]
		ref := f.par.zRef[k]
		out.ZRef[k] = []float64{ref[0], ref[1], ref[2], ref[3]}
	}
	// No equation ties z[N][4] down, so the optimizer leaves it at whatever
	// the guess held; report the algebraic value at the terminal state under
	// the last planned input instead.
	out.ZMPC[f.n][4] = f.geom.LatAccel(f.stateAt(x, f.n), f.inputAt(x, f.n-1))
	out.UControl = [2]float64{out.UMPC[0][0], out.UMPC[0][1]}
	return out
}
