package mpc

import (
	"math"
	"testing"
)

func TestTargetSpeedUncappedOnStraight(t *testing.T) {
	curv := make([]float64, 10)
	if got := TargetSpeed(curv, 4.0, 20.0); got != 20.0 {
		t.Errorf("expected v_set on straight horizon, got %f", got)
	}
}

func TestTargetSpeedCurvatureCap(t *testing.T) {
	curv := []float64{0, 0.02, 0.1, 0.05}
	want := math.Sqrt(4.0 / 0.1)
	if got := TargetSpeed(curv, 4.0, 20.0); math.Abs(got-want) > 1e-9 {
		t.Errorf("expected cap %f, got %f", want, got)
	}
}

func TestTargetSpeedUsesAbsoluteCurvature(t *testing.T) {
	curv := []float64{0, -0.1, 0.02}
	want := math.Sqrt(4.0 / 0.1)
	if got := TargetSpeed(curv, 4.0, 20.0); math.Abs(got-want) > 1e-9 {
		t.Errorf("right-hand bend should cap too: expected %f, got %f", want, got)
	}
}

func TestTargetSpeedNeverExceedsEither(t *testing.T) {
	cases := []struct {
		curv []float64
		vSet float64
	}{
		{[]float64{0.01}, 20},
		{[]float64{0.5}, 20},
		{[]float64{0.001}, 5},
		{[]float64{0}, 5},
	}
	for _, tc := range cases {
		got := TargetSpeed(tc.curv, 4.0, tc.vSet)
		if got > tc.vSet+1e-12 {
			t.Errorf("target %f exceeds v_set %f", got, tc.vSet)
		}
		kMax := 0.0
		for _, k := range tc.curv {
			kMax = math.Max(kMax, math.Abs(k))
		}
		if kMax > 0 && got > math.Sqrt(4.0/kMax)+1e-12 {
			t.Errorf("target %f exceeds curvature cap for kmax=%f", got, kMax)
		}
	}
}
