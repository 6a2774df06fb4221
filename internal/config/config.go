package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultHorizon = 10
	DefaultDtModel = 0.2
	DefaultDtCtrl  = 0.2
	DefaultLF      = 1.5213
	DefaultLR      = 1.4987
	DefaultVSet    = 45.0 / 2.237 // 45 mph in m/s
)

// Config holds every tunable constant of the controller. All fields are
// fixed for the controller's lifetime; per-tick quantities travel through
// mpc.UpdateInput instead.
type Config struct {
	Horizon int     `yaml:"horizon"`  // timesteps in the MPC horizon
	DtModel float64 `yaml:"dt_model"` // discretization step of the dynamics (s)
	DtCtrl  float64 `yaml:"dt_ctrl"`  // control period of the calling loop (s)

	// Vehicle geometry (m).
	LF float64 `yaml:"l_f"` // CoG to front axle
	LR float64 `yaml:"l_r"` // CoG to rear axle

	VSet float64 `yaml:"v_set"` // driver-set cruising speed (m/s)

	// Longitudinal acceleration bounds (m/s^2).
	AxMax float64 `yaml:"ax_max"`
	AxMin float64 `yaml:"ax_min"`

	// Lateral acceleration bounds (m/s^2), softened by slack.
	AyMax float64 `yaml:"ay_max"`
	AyMin float64 `yaml:"ay_min"`

	// Front steering angle bounds (rad).
	DfMax float64 `yaml:"df_max"`
	DfMin float64 `yaml:"df_min"`

	// Input rate bounds per step: jerk (m/s^3) and steering rate (rad/s).
	AxDotMax float64 `yaml:"ax_dot_max"`
	AxDotMin float64 `yaml:"ax_dot_min"`
	DfDotMax float64 `yaml:"df_dot_max"`
	DfDotMin float64 `yaml:"df_dot_min"`

	// Lateral offset bounds (m).
	EyMax float64 `yaml:"ey_max"`
	EyMin float64 `yaml:"ey_min"`

	// Heading error bounds (rad).
	EPsiMax float64 `yaml:"epsi_max"`
	EPsiMin float64 `yaml:"epsi_min"`

	// Diagonal cost weights over (s, ey, epsi, v, ay) and (ax, df).
	QDiag []float64 `yaml:"q"`
	RDiag []float64 `yaml:"r"`

	// Solver wall-clock budget per tick (s).
	MaxSolveTime float64 `yaml:"max_solve_time"`
}

func Default() *Config {
	return &Config{
		Horizon:      DefaultHorizon,
		DtModel:      DefaultDtModel,
		DtCtrl:       DefaultDtCtrl,
		LF:           DefaultLF,
		LR:           DefaultLR,
		VSet:         DefaultVSet,
		AxMax:        5.0,
		AxMin:        -10.0,
		AyMax:        4.0,
		AyMin:        -4.0,
		DfMax:        30 * math.Pi / 180,
		DfMin:        -30 * math.Pi / 180,
		AxDotMax:     3.0,
		AxDotMin:     -3.0,
		DfDotMax:     30 * math.Pi / 180,
		DfDotMin:     -30 * math.Pi / 180,
		EyMax:        0.8,
		EyMin:        -0.8,
		EPsiMax:      10 * math.Pi / 180,
		EPsiMin:      -10 * math.Pi / 180,
		QDiag:        []float64{0, 100, 500, 1, 0},
		RDiag:        []float64{0.01, 0.001},
		MaxSolveTime: 0.1,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports structural problems a controller built from this config
// would have. Callers decide whether to refuse an invalid config; the
// controller itself accepts one and degrades (infeasible bounds produce
// non-optimal solves, not panics).
func (c *Config) Validate() error {
	if c.Horizon < 1 {
		return fmt.Errorf("horizon must be at least 1, got %d", c.Horizon)
	}
	if c.DtModel <= 0 {
		return fmt.Errorf("dt_model must be positive, got %f", c.DtModel)
	}
	if c.DtCtrl <= 0 {
		return fmt.Errorf("dt_ctrl must be positive, got %f", c.DtCtrl)
	}
	if c.LF <= 0 || c.LR <= 0 {
		return fmt.Errorf("axle distances must be positive, got l_f=%f l_r=%f", c.LF, c.LR)
	}
	if len(c.QDiag) != 5 {
		return fmt.Errorf("q must have 5 entries, got %d", len(c.QDiag))
	}
	if len(c.RDiag) != 2 {
		return fmt.Errorf("r must have 2 entries, got %d", len(c.RDiag))
	}
	for i, q := range c.QDiag {
		if q < 0 {
			return fmt.Errorf("q[%d] must be non-negative, got %f", i, q)
		}
	}
	for i, r := range c.RDiag {
		if r < 0 {
			return fmt.Errorf("r[%d] must be non-negative, got %f", i, r)
		}
	}
	bounds := []struct {
		name   string
		lo, hi float64
	}{
		{"ax", c.AxMin, c.AxMax},
		{"ay", c.AyMin, c.AyMax},
		{"df", c.DfMin, c.DfMax},
		{"ax_dot", c.AxDotMin, c.AxDotMax},
		{"df_dot", c.DfDotMin, c.DfDotMax},
		{"ey", c.EyMin, c.EyMax},
		{"epsi", c.EPsiMin, c.EPsiMax},
	}
	for _, b := range bounds {
		if b.lo > b.hi {
			return fmt.Errorf("%s bounds inverted: min %f > max %f", b.name, b.lo, b.hi)
		}
	}
	if c.MaxSolveTime <= 0 {
		return fmt.Errorf("max_solve_time must be positive, got %f", c.MaxSolveTime)
	}
	return nil
}

// SolveBudget returns the per-tick solver budget as a duration.
func (c *Config) SolveBudget() time.Duration {
	return time.Duration(c.MaxSolveTime * float64(time.Second))
}
