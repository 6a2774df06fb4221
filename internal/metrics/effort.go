package metrics

import (
	"math"

	"github.com/san-kum/kinmpc/internal/sim"
)

// ControlEffort is the mean absolute command magnitude, acceleration and
// steering summed per tick.
type ControlEffort struct {
	name    string
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{
		name: "control_effort",
	}
}

func (c *ControlEffort) Name() string {
	return c.name
}

func (c *ControlEffort) Observe(tick sim.Tick) {
	c.sum += math.Abs(tick.Command.Ax) + math.Abs(tick.Command.Df)
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}

// DegradedRate is the fraction of ticks whose solve did not converge.
type DegradedRate struct {
	name     string
	degraded int
	samples  int
}

func NewDegradedRate() *DegradedRate {
	return &DegradedRate{
		name: "degraded_rate",
	}
}

func (d *DegradedRate) Name() string {
	return d.name
}

func (d *DegradedRate) Observe(tick sim.Tick) {
	d.samples++
	if !tick.Optimal {
		d.degraded++
	}
}

func (d *DegradedRate) Value() float64 {
	if d.samples == 0 {
		return 0
	}
	return float64(d.degraded) / float64(d.samples)
}

func (d *DegradedRate) Reset() {
	d.degraded = 0
	d.samples = 0
}
