package sim

import (
	"fmt"
	"math"
)

// Segment is a stretch of path with constant curvature; zero curvature is a
// straight, positive curves left.
type Segment struct {
	Length    float64
	Curvature float64
}

// Path is a piecewise-constant-curvature reference path. It answers local
// curvature queries for the dynamics and global pose queries for the
// diagnostic reference trajectory. Past the final segment the path continues
// straight.
type Path struct {
	segs   []Segment
	startS []float64
	startX []float64
	startY []float64
	psi0   []float64
	total  float64
}

func NewPath(segs ...Segment) (*Path, error) {
	if len(segs) == 0 {
		return nil, fmt.Errorf("sim: path needs at least one segment")
	}
	p := &Path{
		segs:   segs,
		startS: make([]float64, len(segs)),
		startX: make([]float64, len(segs)),
		startY: make([]float64, len(segs)),
		psi0:   make([]float64, len(segs)),
	}
	var s, x, y, psi float64
	for i, seg := range segs {
		if seg.Length <= 0 {
			return nil, fmt.Errorf("sim: segment %d length must be positive, got %f", i, seg.Length)
		}
		p.startS[i], p.startX[i], p.startY[i], p.psi0[i] = s, x, y, psi
		x, y, psi = advance(x, y, psi, seg.Curvature, seg.Length)
		s += seg.Length
	}
	p.total = s
	return p, nil
}

// advance moves a pose d meters along constant curvature kappa.
func advance(x, y, psi, kappa, d float64) (float64, float64, float64) {
	if kappa == 0 {
		return x + d*math.Cos(psi), y + d*math.Sin(psi), psi
	}
	psiNew := psi + kappa*d
	return x + (math.Sin(psiNew)-math.Sin(psi))/kappa,
		y - (math.Cos(psiNew)-math.Cos(psi))/kappa,
		psiNew
}

// Length returns the total path arc length.
func (p *Path) Length() float64 { return p.total }

// CurvatureAt returns the path curvature at arc length s.
func (p *Path) CurvatureAt(s float64) float64 {
	if s < 0 {
		return p.segs[0].Curvature
	}
	for i := len(p.segs) - 1; i >= 0; i-- {
		if s >= p.startS[i] {
			if i == len(p.segs)-1 && s >= p.total {
				return 0
			}
			return p.segs[i].Curvature
		}
	}
	return p.segs[0].Curvature
}

// PoseAt returns the global position and heading at arc length s.
func (p *Path) PoseAt(s float64) (x, y, psi float64) {
	if s <= 0 {
		return advanceFrom(p, 0, s)
	}
	for i := len(p.segs) - 1; i >= 0; i-- {
		if s >= p.startS[i] {
			return advanceFrom(p, i, s-p.startS[i])
		}
	}
	return p.startX[0], p.startY[0], p.psi0[0]
}

func advanceFrom(p *Path, i int, d float64) (float64, float64, float64) {
	kappa := p.segs[i].Curvature
	if rest := d - p.segs[i].Length; i == len(p.segs)-1 && rest > 0 {
		// On-segment part, then straight extension.
		x, y, psi := advance(p.startX[i], p.startY[i], p.psi0[i], kappa, p.segs[i].Length)
		return advance(x, y, psi, 0, rest)
	}
	return advance(p.startX[i], p.startY[i], p.psi0[i], kappa, d)
}

// SampleHorizon produces the per-step curvature sequence and positional
// reference for a horizon of n steps of dt seconds, assuming progress at
// speed v from arc length s. vRef fills the speed column.
func (p *Path) SampleHorizon(s, v, dt, vRef float64, n int) (curv, xRef, yRef, psiRef, vOut []float64) {
	curv = make([]float64, n)
	xRef = make([]float64, n)
	yRef = make([]float64, n)
	psiRef = make([]float64, n)
	vOut = make([]float64, n)
	for k := 0; k < n; k++ {
		sk := s + v*dt*float64(k+1)
		curv[k] = p.CurvatureAt(sk)
		xRef[k], yRef[k], psiRef[k] = p.PoseAt(sk)
		vOut[k] = vRef
	}
	return curv, xRef, yRef, psiRef, vOut
}
