// Package sim closes the loop around the controller: a kinematic plant
// follows a piecewise-curvature path while the controller is re-solved once
// per control period and its step-0 command is held until the next tick.
package sim

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/san-kum/kinmpc/internal/config"
	"github.com/san-kum/kinmpc/internal/model"
	"github.com/san-kum/kinmpc/internal/mpc"
)

type Simulator struct {
	ctrl      *mpc.Controller
	path      *Path
	cfg       *config.Config
	geom      model.Params
	log       *zap.Logger
	metrics   []Metric
	observers []Observer
}

func New(ctrl *mpc.Controller, path *Path, cfg *config.Config, log *zap.Logger) *Simulator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Simulator{
		ctrl: ctrl,
		path: path,
		cfg:  cfg,
		geom: model.Params{LF: cfg.LF, LR: cfg.LR},
		log:  log,
	}
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// Run executes the closed loop from x0 for cfg.Duration simulated seconds,
// checking ctx between ticks. The returned result holds whatever completed
// before cancellation.
func (s *Simulator) Run(ctx context.Context, x0 model.State, cfg Config) (*Result, error) {
	if err := validate(cfg, s.cfg.DtCtrl); err != nil {
		return nil, err
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	ticks := int(cfg.Duration / s.cfg.DtCtrl)
	result := &Result{
		Ticks:   make([]Tick, 0, ticks),
		Metrics: make(map[string]float64),
	}

	st := s.Stepper(x0, cfg)
	for i := 0; i < ticks; i++ {
		select {
		case <-ctx.Done():
			s.finish(result)
			return result, ctx.Err()
		default:
		}

		tick, err := st.Step()
		if err != nil {
			s.finish(result)
			return result, err
		}
		result.Ticks = append(result.Ticks, tick)
		if !tick.Optimal {
			result.Degraded++
		}
	}

	s.finish(result)
	return result, nil
}

func (s *Simulator) finish(result *Result) {
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
}

func validate(cfg Config, dtCtrl float64) error {
	if cfg.Duration <= 0 {
		return fmt.Errorf("sim: duration must be positive, got %f", cfg.Duration)
	}
	if cfg.PlantDt <= 0 {
		return fmt.Errorf("sim: plant dt must be positive, got %f", cfg.PlantDt)
	}
	if cfg.PlantDt > dtCtrl {
		return fmt.Errorf("sim: plant dt %f exceeds control period %f", cfg.PlantDt, dtCtrl)
	}
	return nil
}

// Stepper advances the closed loop one control period at a time. The live
// view drives it frame by frame; Run drives it to completion.
type Stepper struct {
	sim    *Simulator
	cfg    Config
	x      model.State
	t      float64
	uPrev  model.Input
	ayPrev float64
	warm   *mpc.WarmStart
}

func (s *Simulator) Stepper(x0 model.State, cfg Config) *Stepper {
	return &Stepper{sim: s, cfg: cfg, x: x0}
}

// State returns the current plant state.
func (st *Stepper) State() model.State { return st.x }

// Time returns the simulated time.
func (st *Stepper) Time() float64 { return st.t }

// Step runs one control period: sample the horizon, update and solve the
// controller, then hold the step-0 command while integrating the plant.
func (st *Stepper) Step() (Tick, error) {
	s := st.sim
	n := s.ctrl.Horizon()

	curv, xRef, yRef, psiRef, vRef := s.path.SampleHorizon(
		st.x.S, st.x.V, s.cfg.DtModel, s.cfg.VSet, n)
	targetV := mpc.TargetSpeed(curv, s.cfg.AyMax, s.cfg.VSet)

	in := mpc.UpdateInput{
		S:       st.x.S,
		Ey:      st.x.Ey,
		EPsi:    st.x.EPsi,
		V0:      st.x.V,
		Ay0:     st.ayPrev,
		XRef:    xRef,
		YRef:    yRef,
		PsiRef:  psiRef,
		VRef:    vRef,
		CurvRef: curv,
		AccPrev: st.uPrev.Ax,
		DfPrev:  st.uPrev.Df,
	}
	if st.cfg.WarmStart {
		in.WarmStart = st.warm
	}
	if err := s.ctrl.Update(in); err != nil {
		return Tick{}, fmt.Errorf("sim: controller update at t=%.2f: %w", st.t, err)
	}

	res := s.ctrl.Solve()
	u := model.Input{Ax: res.UControl[0], Df: res.UControl[1]}

	tick := Tick{
		T:         st.t,
		State:     st.x,
		Command:   u,
		Optimal:   res.Optimal,
		Status:    res.Status,
		SolveTime: res.SolveTime,
		TargetV:   targetV,
	}

	if res.Optimal {
		s.log.Debug("tick solved",
			zap.Float64("t", st.t),
			zap.Duration("solve_time", res.SolveTime),
			zap.Float64("ax", u.Ax),
			zap.Float64("df", u.Df),
		)
	} else {
		s.log.Warn("degraded solve, applying best-effort command",
			zap.Float64("t", st.t),
			zap.String("status", res.Status),
			zap.Duration("solve_time", res.SolveTime),
		)
	}

	for _, m := range s.metrics {
		m.Observe(tick)
	}
	for _, o := range s.observers {
		o.OnTick(tick)
	}

	// Zero-order hold over the control period.
	substeps := int(math.Round(s.cfg.DtCtrl / st.cfg.PlantDt))
	if substeps < 1 {
		substeps = 1
	}
	dt := s.cfg.DtCtrl / float64(substeps)
	for j := 0; j < substeps; j++ {
		st.x = s.geom.Step(st.x, u, s.path.CurvatureAt(st.x.S), dt)
	}

	st.ayPrev = s.geom.LatAccel(st.x, u)
	st.uPrev = u
	st.t += s.cfg.DtCtrl
	if st.cfg.WarmStart {
		st.warm = shiftSolution(res)
	}
	return tick, nil
}

// shiftSolution turns a solve into next tick's initial guess by dropping the
// first step and repeating the last, the usual receding-horizon shift.
func shiftSolution(res mpc.SolveResult) *mpc.WarmStart {
	n := len(res.UMPC)
	ws := &mpc.WarmStart{
		Z:  make([][]float64, n+1),
		U:  make([][]float64, n),
		Sl: make([]float64, n),
	}
	for k := 0; k < n; k++ {
		ws.Z[k] = append([]float64(nil), res.ZMPC[k+1]...)
	}
	ws.Z[n] = append([]float64(nil), res.ZMPC[n]...)
	for k := 0; k+1 < n; k++ {
		ws.U[k] = append([]float64(nil), res.UMPC[k+1]...)
		ws.Sl[k] = res.SlMPC[k+1]
	}
	ws.U[n-1] = append([]float64(nil), res.UMPC[n-1]...)
	ws.Sl[n-1] = res.SlMPC[n-1]
	return ws
}
