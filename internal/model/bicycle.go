// Package model implements the kinematic bicycle model expressed in a
// road-aligned Frenet frame: progress along the path, lateral offset and
// heading error relative to the path tangent, plus vehicle speed.
package model

import "math"

// State is the dynamic part of the vehicle state. Lateral acceleration is
// algebraic (see [Params.LatAccel]) and is not integrated.
type State struct {
	S    float64 // arc-length progress (m)
	Ey   float64 // lateral offset from path (m)
	EPsi float64 // heading error to path tangent (rad)
	V    float64 // speed (m/s)
}

// Input is the control applied over one step.
type Input struct {
	Ax float64 // longitudinal acceleration (m/s^2)
	Df float64 // front steering angle (rad)
}

// Params is the fixed vehicle geometry.
type Params struct {
	LF float64 // CoG to front axle (m)
	LR float64 // CoG to rear axle (m)
}

// Slip returns the kinematic slip angle for a steering angle.
func (p Params) Slip(df float64) float64 {
	return math.Atan(p.LR / (p.LF + p.LR) * math.Tan(df))
}

// YawRate returns the yaw rate at speed v with slip angle beta.
func (p Params) YawRate(v, beta float64) float64 {
	return v / p.LR * math.Sin(beta)
}

// Derivative evaluates the continuous-time Frenet dynamics at the given
// state, input and local path curvature.
func (p Params) Derivative(x State, u Input, kappa float64) State {
	beta := p.Slip(u.Df)
	yawRate := p.YawRate(x.V, beta)
	sDot := x.V * math.Cos(x.EPsi+beta) / (1 - x.Ey*kappa)
	return State{
		S:    sDot,
		Ey:   x.V * math.Sin(x.EPsi+beta),
		EPsi: yawRate - sDot*kappa,
		V:    u.Ax,
	}
}

// LatAccel returns the algebraic lateral acceleration v*yawRate.
func (p Params) LatAccel(x State, u Input) float64 {
	return x.V * p.YawRate(x.V, p.Slip(u.Df))
}

// Step advances the state by one forward-Euler step of length dt.
func (p Params) Step(x State, u Input, kappa, dt float64) State {
	d := p.Derivative(x, u, kappa)
	return State{
		S:    x.S + dt*d.S,
		Ey:   x.Ey + dt*d.Ey,
		EPsi: x.EPsi + dt*d.EPsi,
		V:    x.V + dt*d.V,
	}
}

// Rollout integrates the input sequence from x0 with per-step curvature,
// returning len(inputs)+1 states. kappa must match inputs in length.
func (p Params) Rollout(x0 State, inputs []Input, kappa []float64, dt float64) []State {
	states := make([]State, 0, len(inputs)+1)
	states = append(states, x0)
	x := x0
	for i, u := range inputs {
		x = p.Step(x, u, kappa[i], dt)
		states = append(states, x)
	}
	return states
}
