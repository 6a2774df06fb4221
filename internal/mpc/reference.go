package mpc

import "math"

// TargetSpeed returns the effective speed setpoint for the upcoming horizon:
// the driver-set cruising speed, capped by the speed at which the tightest
// upcoming curvature would exceed the lateral-acceleration limit
// (v = sqrt(ayMax/|kappa|)). A straight horizon leaves the setpoint uncapped.
func TargetSpeed(curv []float64, ayMax, vSet float64) float64 {
	kMax := 0.0
	for _, k := range curv {
		if a := math.Abs(k); a > kMax {
			kMax = a
		}
	}
	if kMax == 0 || ayMax <= 0 {
		return vSet
	}
	return math.Min(vSet, math.Sqrt(ayMax/kMax))
}
