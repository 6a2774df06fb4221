// Package metrics provides per-run scalar summaries of closed-loop tracking
// quality. Each metric implements sim.Metric and is fed one Tick per control
// period.
package metrics

import (
	"math"

	"github.com/san-kum/kinmpc/internal/sim"
)

// LateralRMS is the root-mean-square lateral offset from the path.
type LateralRMS struct {
	name    string
	sumSq   float64
	samples int
}

func NewLateralRMS() *LateralRMS {
	return &LateralRMS{
		name: "lateral_rms",
	}
}

func (l *LateralRMS) Name() string {
	return l.name
}

func (l *LateralRMS) Observe(tick sim.Tick) {
	l.sumSq += tick.State.Ey * tick.State.Ey
	l.samples++
}

func (l *LateralRMS) Value() float64 {
	if l.samples == 0 {
		return 0
	}
	return math.Sqrt(l.sumSq / float64(l.samples))
}

func (l *LateralRMS) Reset() {
	l.sumSq = 0
	l.samples = 0
}

// SpeedRMS is the root-mean-square deviation from the tick's target speed.
type SpeedRMS struct {
	name    string
	sumSq   float64
	samples int
}

func NewSpeedRMS() *SpeedRMS {
	return &SpeedRMS{
		name: "speed_rms",
	}
}

func (s *SpeedRMS) Name() string {
	return s.name
}

func (s *SpeedRMS) Observe(tick sim.Tick) {
	err := tick.State.V - tick.TargetV
	s.sumSq += err * err
	s.samples++
}

func (s *SpeedRMS) Value() float64 {
	if s.samples == 0 {
		return 0
	}
	return math.Sqrt(s.sumSq / float64(s.samples))
}

func (s *SpeedRMS) Reset() {
	s.sumSq = 0
	s.samples = 0
}
