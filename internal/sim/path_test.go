package sim

import (
	"math"
	"testing"
)

func TestNewPathRejectsBadSegments(t *testing.T) {
	if _, err := NewPath(); err == nil {
		t.Error("expected error for empty path")
	}
	if _, err := NewPath(Segment{Length: -5}); err == nil {
		t.Error("expected error for negative segment length")
	}
}

func TestCurvatureAt(t *testing.T) {
	p, err := NewPath(
		Segment{Length: 10, Curvature: 0},
		Segment{Length: 20, Curvature: 0.1},
	)
	if err != nil {
		t.Fatalf("path construction failed: %v", err)
	}

	cases := []struct {
		s    float64
		want float64
	}{
		{0, 0},
		{5, 0},
		{10, 0.1},
		{25, 0.1},
		{30, 0},  // past the end: straight extension
		{100, 0}, //
	}
	for _, tc := range cases {
		if got := p.CurvatureAt(tc.s); got != tc.want {
			t.Errorf("curvature at s=%f: got %f, want %f", tc.s, got, tc.want)
		}
	}
}

func TestPoseAtStraightThenArc(t *testing.T) {
	// Quarter-circle left turn of radius 10 after a 10m straight.
	arcLen := (math.Pi / 2) / 0.1
	p, err := NewPath(
		Segment{Length: 10, Curvature: 0},
		Segment{Length: arcLen, Curvature: 0.1},
	)
	if err != nil {
		t.Fatalf("path construction failed: %v", err)
	}

	x, y, psi := p.PoseAt(10)
	if math.Abs(x-10) > 1e-9 || math.Abs(y) > 1e-9 || math.Abs(psi) > 1e-9 {
		t.Errorf("end of straight: got (%f,%f,%f)", x, y, psi)
	}

	x, y, psi = p.PoseAt(10 + arcLen)
	if math.Abs(psi-math.Pi/2) > 1e-9 {
		t.Errorf("expected heading pi/2 after quarter turn, got %f", psi)
	}
	if math.Abs(x-20) > 1e-9 || math.Abs(y-10) > 1e-9 {
		t.Errorf("expected arc end (20,10), got (%f,%f)", x, y)
	}
}

func TestPathLength(t *testing.T) {
	p, err := NewPath(Segment{Length: 10}, Segment{Length: 5, Curvature: 0.2})
	if err != nil {
		t.Fatalf("path construction failed: %v", err)
	}
	if p.Length() != 15 {
		t.Errorf("expected length 15, got %f", p.Length())
	}
}

func TestSampleHorizon(t *testing.T) {
	p, err := NewPath(
		Segment{Length: 10, Curvature: 0},
		Segment{Length: 50, Curvature: 0.05},
	)
	if err != nil {
		t.Fatalf("path construction failed: %v", err)
	}

	curv, xRef, yRef, psiRef, vRef := p.SampleHorizon(8, 10, 0.2, 12.0, 10)

	for _, seq := range [][]float64{curv, xRef, yRef, psiRef, vRef} {
		if len(seq) != 10 {
			t.Fatalf("expected 10 samples, got %d", len(seq))
		}
	}
	// First sample is 2m ahead of s=8, already on the arc.
	if curv[0] != 0.05 {
		t.Errorf("expected first sample on the arc, got curvature %f", curv[0])
	}
	for k, v := range vRef {
		if v != 12.0 {
			t.Errorf("v_ref[%d] = %f, want 12.0", k, v)
		}
	}
	// Progress is monotone along the horizon.
	for k := 1; k < 10; k++ {
		if xRef[k] < xRef[k-1] {
			t.Errorf("x_ref not monotone at %d", k)
		}
	}
}
