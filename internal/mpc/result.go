package mpc

import "time"

// SolveResult is the per-tick output packet. It is a fresh value owned by
// the caller; the trajectories may be fed back as the next warm start.
type SolveResult struct {
	// UControl is the step-0 action to apply now: (ax, df).
	UControl [2]float64

	// Optimal is false when the solver timed out, hit a numerical failure or
	// found the problem infeasible; the trajectories then hold the solver's
	// best-effort iterate rather than a converged solution.
	Optimal bool

	// Status is the solver's terminal condition, for diagnostics.
	Status string

	// SolveTime is the wall-clock time spent in the solver.
	SolveTime time.Duration

	UMPC  [][]float64 // N x 2 input trajectory
	ZMPC  [][]float64 // (N+1) x 5 state trajectory
	SlMPC []float64   // N slack values
	ZRef  [][]float64 // N x 4 positional reference used for this solve
}
