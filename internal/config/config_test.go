package config

import (
	"math"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestDefaultValues(t *testing.T) {
	cfg := Default()
	if cfg.Horizon != 10 {
		t.Errorf("expected horizon 10, got %d", cfg.Horizon)
	}
	if math.Abs(cfg.VSet-45.0/2.237) > 1e-12 {
		t.Errorf("expected v_set %f, got %f", 45.0/2.237, cfg.VSet)
	}
	if len(cfg.QDiag) != 5 || len(cfg.RDiag) != 2 {
		t.Errorf("unexpected weight dimensions: q=%d r=%d", len(cfg.QDiag), len(cfg.RDiag))
	}
}

func TestValidateRejectsInvertedBounds(t *testing.T) {
	cfg := Default()
	cfg.EyMin = 0.5
	cfg.EyMax = -0.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for inverted ey bounds")
	}
}

func TestValidateRejectsNegativeWeights(t *testing.T) {
	cfg := Default()
	cfg.QDiag[1] = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative q weight")
	}
}

func TestValidateRejectsBadHorizon(t *testing.T) {
	cfg := Default()
	cfg.Horizon = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero horizon")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "controller.yaml")

	cfg := Default()
	cfg.Horizon = 15
	cfg.VSet = 12.5
	cfg.QDiag = []float64{0, 50, 250, 2, 0}

	if err := Save(path, cfg); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if loaded.Horizon != 15 {
		t.Errorf("expected horizon 15, got %d", loaded.Horizon)
	}
	if loaded.VSet != 12.5 {
		t.Errorf("expected v_set 12.5, got %f", loaded.VSet)
	}
	if loaded.QDiag[2] != 250 {
		t.Errorf("expected q[2]=250, got %f", loaded.QDiag[2])
	}
	// Fields absent from the file keep their defaults.
	if loaded.AyMax != 4.0 {
		t.Errorf("expected default ay_max 4.0, got %f", loaded.AyMax)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/controller.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}
