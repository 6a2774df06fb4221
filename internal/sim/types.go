package sim

import (
	"time"

	"github.com/san-kum/kinmpc/internal/model"
)

// Tick is one completed control period: the state the controller saw, the
// command it returned and how the solve went.
type Tick struct {
	T         float64
	State     model.State
	Command   model.Input
	Optimal   bool
	Status    string
	SolveTime time.Duration
	TargetV   float64
}

// Metric accumulates a scalar over a run.
type Metric interface {
	Name() string
	Observe(tick Tick)
	Value() float64
	Reset()
}

// Observer is notified after every tick.
type Observer interface {
	OnTick(tick Tick)
}

// Config controls a closed-loop run.
type Config struct {
	Duration  float64 // simulated seconds
	PlantDt   float64 // plant integration step; at most the control period
	WarmStart bool    // feed each solution back as the next initial guess
}

// Result is a completed run.
type Result struct {
	Ticks    []Tick
	Metrics  map[string]float64
	Degraded int // ticks with a non-optimal solve
}
