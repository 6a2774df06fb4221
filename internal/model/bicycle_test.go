package model

import (
	"math"
	"testing"
)

var geom = Params{LF: 1.5213, LR: 1.4987}

func TestSlipZeroSteering(t *testing.T) {
	if beta := geom.Slip(0); beta != 0 {
		t.Errorf("expected zero slip at zero steering, got %f", beta)
	}
}

func TestSlipSign(t *testing.T) {
	if geom.Slip(0.1) <= 0 {
		t.Error("positive steering should give positive slip")
	}
	if geom.Slip(-0.1) >= 0 {
		t.Error("negative steering should give negative slip")
	}
}

func TestDerivativeStraightLine(t *testing.T) {
	x := State{V: 10}
	d := geom.Derivative(x, Input{}, 0)

	if math.Abs(d.S-10) > 1e-12 {
		t.Errorf("expected sdot=v on a straight path, got %f", d.S)
	}
	if d.Ey != 0 || d.EPsi != 0 || d.V != 0 {
		t.Errorf("expected zero ey/epsi/v rates, got %+v", d)
	}
}

func TestDerivativeCurvatureCouplesHeading(t *testing.T) {
	// Driving straight on a curving path accumulates heading error.
	x := State{V: 10}
	d := geom.Derivative(x, Input{}, 0.05)

	if d.EPsi >= 0 {
		t.Errorf("expected negative epsi rate on left-curving path, got %f", d.EPsi)
	}
}

func TestDerivativeLateralOffsetScalesProgress(t *testing.T) {
	x := State{Ey: 0.5, V: 10}
	d := geom.Derivative(x, Input{}, 0.1)

	// Inside offset against positive curvature shortens the effective radius.
	want := 10.0 / (1 - 0.5*0.1)
	if math.Abs(d.S-want) > 1e-9 {
		t.Errorf("expected sdot %f, got %f", want, d.S)
	}
}

func TestLatAccel(t *testing.T) {
	x := State{V: 10}
	u := Input{Df: 0.1}

	beta := geom.Slip(0.1)
	want := 10 * 10 / geom.LR * math.Sin(beta)
	if got := geom.LatAccel(x, u); math.Abs(got-want) > 1e-12 {
		t.Errorf("expected ay %f, got %f", want, got)
	}

	if got := geom.LatAccel(State{V: 10}, Input{}); got != 0 {
		t.Errorf("expected zero ay with zero steering, got %f", got)
	}
}

func TestStepEuler(t *testing.T) {
	x := State{V: 5}
	next := geom.Step(x, Input{Ax: 2}, 0, 0.2)

	if math.Abs(next.V-5.4) > 1e-12 {
		t.Errorf("expected v=5.4 after euler step, got %f", next.V)
	}
	if math.Abs(next.S-1.0) > 1e-12 {
		t.Errorf("expected s=1.0 after euler step, got %f", next.S)
	}
}

func TestRolloutShapesAndConsistency(t *testing.T) {
	inputs := make([]Input, 10)
	kappa := make([]float64, 10)
	for i := range inputs {
		inputs[i] = Input{Ax: 1}
	}

	states := geom.Rollout(State{V: 2}, inputs, kappa, 0.2)
	if len(states) != 11 {
		t.Fatalf("expected 11 states, got %d", len(states))
	}
	if states[0].V != 2 {
		t.Errorf("rollout must start at x0, got v=%f", states[0].V)
	}
	if math.Abs(states[10].V-4) > 1e-12 {
		t.Errorf("expected v=4 after 10 steps of a=1, got %f", states[10].V)
	}
	// Each transition matches a single step.
	for i := 0; i < 10; i++ {
		want := geom.Step(states[i], inputs[i], kappa[i], 0.2)
		if math.Abs(states[i+1].S-want.S) > 1e-12 {
			t.Fatalf("rollout state %d inconsistent with Step", i+1)
		}
	}
}
