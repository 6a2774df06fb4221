package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/kinmpc/internal/config"
	"github.com/san-kum/kinmpc/internal/metrics"
	"github.com/san-kum/kinmpc/internal/model"
	"github.com/san-kum/kinmpc/internal/mpc"
	"github.com/san-kum/kinmpc/internal/sim"
	"github.com/san-kum/kinmpc/internal/viz"
)

var (
	configFile string
	verbose    bool
	duration   float64
	plantDt    float64
	segments   string
	v0         float64
	ey0        float64
	epsi0      float64
	warmStart  bool
	plot       bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "kinmpc",
		Short: "kinematic bicycle MPC path tracking",
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "per-tick solver logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a closed-loop simulation",
		RunE:  runClosedLoop,
	}
	runCmd.Flags().Float64Var(&duration, "time", 20.0, "simulated duration [s]")
	runCmd.Flags().Float64Var(&plantDt, "plant-dt", 0.05, "plant integration step [s]")
	runCmd.Flags().StringVar(&segments, "path", "200:0,157:0.02,200:0", "path as length:curvature,...")
	runCmd.Flags().Float64Var(&v0, "v0", 10.0, "initial speed [m/s]")
	runCmd.Flags().Float64Var(&ey0, "ey0", 0.0, "initial lateral offset [m]")
	runCmd.Flags().Float64Var(&epsi0, "epsi0", 0.0, "initial heading error [rad]")
	runCmd.Flags().BoolVar(&warmStart, "warm-start", true, "feed solutions back as initial guesses")
	runCmd.Flags().BoolVar(&plot, "plot", false, "plot traces after the run")

	solveCmd := &cobra.Command{
		Use:   "solve",
		Short: "solve a single horizon and print the result",
		RunE:  solveOnce,
	}
	solveCmd.Flags().Float64Var(&v0, "v0", 10.0, "current speed [m/s]")
	solveCmd.Flags().Float64Var(&ey0, "ey0", 0.5, "lateral offset [m]")
	solveCmd.Flags().Float64Var(&epsi0, "epsi0", 0.1, "heading error [rad]")
	solveCmd.Flags().StringVar(&segments, "path", "100:0.02", "path as length:curvature,...")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run with live terminal visualization",
		RunE:  runLive,
	}
	liveCmd.Flags().Float64Var(&plantDt, "plant-dt", 0.05, "plant integration step [s]")
	liveCmd.Flags().StringVar(&segments, "path", "200:0,157:0.02,200:0", "path as length:curvature,...")
	liveCmd.Flags().Float64Var(&v0, "v0", 10.0, "initial speed [m/s]")
	liveCmd.Flags().BoolVar(&warmStart, "warm-start", true, "feed solutions back as initial guesses")

	initCmd := &cobra.Command{
		Use:   "init [file]",
		Short: "write the default config to a yaml file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if err := config.Save(args[0], cfg); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", args[0])
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, solveCmd, liveCmd, initCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configFile == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger() (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}
	return zap.NewDevelopment()
}

// parseSegments reads a path spec like "200:0,157:0.02" into segments.
func parseSegments(spec string) ([]sim.Segment, error) {
	var segs []sim.Segment
	for _, part := range strings.Split(spec, ",") {
		length, curvature, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return nil, fmt.Errorf("segment %q must be length:curvature", part)
		}
		l, err := strconv.ParseFloat(length, 64)
		if err != nil {
			return nil, fmt.Errorf("segment %q: bad length: %w", part, err)
		}
		k, err := strconv.ParseFloat(curvature, 64)
		if err != nil {
			return nil, fmt.Errorf("segment %q: bad curvature: %w", part, err)
		}
		segs = append(segs, sim.Segment{Length: l, Curvature: k})
	}
	return segs, nil
}

func buildSimulator(log *zap.Logger) (*sim.Simulator, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	segs, err := parseSegments(segments)
	if err != nil {
		return nil, nil, err
	}
	path, err := sim.NewPath(segs...)
	if err != nil {
		return nil, nil, err
	}
	ctrl, err := mpc.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	return sim.New(ctrl, path, cfg, log), cfg, nil
}

func runClosedLoop(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	s, _, err := buildSimulator(log)
	if err != nil {
		return err
	}
	s.AddMetric(metrics.NewLateralRMS())
	s.AddMetric(metrics.NewSpeedRMS())
	s.AddMetric(metrics.NewControlEffort())
	s.AddMetric(metrics.NewDegradedRate())

	x0 := model.State{Ey: ey0, EPsi: epsi0, V: v0}
	simCfg := sim.Config{Duration: duration, PlantDt: plantDt, WarmStart: warmStart}

	fmt.Println("running closed-loop simulation...")
	start := time.Now()
	result, err := s.Run(context.Background(), x0, simCfg)
	if err != nil {
		return err
	}
	fmt.Printf("completed in %v\n", time.Since(start))

	printSummary(result)
	if plot {
		plotTraces(result)
	}
	return nil
}

func printSummary(result *sim.Result) {
	fmt.Printf("ticks: %d  degraded: %d\n", len(result.Ticks), result.Degraded)
	if len(result.Ticks) > 0 {
		last := result.Ticks[len(result.Ticks)-1]
		fmt.Printf("final: s=%.1fm v=%.2fm/s ey=%.3fm\n", last.State.S, last.State.V, last.State.Ey)
	}

	fmt.Println("\nmetrics:")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for name, val := range result.Metrics {
		fmt.Fprintf(w, "  %s\t%.6f\n", name, val)
	}
	w.Flush()
}

func plotTraces(result *sim.Result) {
	if len(result.Ticks) < 2 {
		return
	}
	speed := make([]float64, len(result.Ticks))
	ey := make([]float64, len(result.Ticks))
	steer := make([]float64, len(result.Ticks))
	for i, tick := range result.Ticks {
		speed[i] = tick.State.V
		ey[i] = tick.State.Ey
		steer[i] = tick.Command.Df
	}
	for _, trace := range []struct {
		data    []float64
		caption string
	}{
		{speed, "speed [m/s]"},
		{ey, "lateral offset [m]"},
		{steer, "steering command [rad]"},
	} {
		fmt.Println()
		fmt.Println(asciigraph.Plot(trace.data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(trace.caption),
		))
	}
}

// solveOnce updates the controller with one sampled horizon and prints the
// full solve packet.
func solveOnce(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	segs, err := parseSegments(segments)
	if err != nil {
		return err
	}
	path, err := sim.NewPath(segs...)
	if err != nil {
		return err
	}
	ctrl, err := mpc.New(cfg)
	if err != nil {
		return err
	}

	curv, xRef, yRef, psiRef, vRef := path.SampleHorizon(0, v0, cfg.DtModel, cfg.VSet, ctrl.Horizon())
	err = ctrl.Update(mpc.UpdateInput{
		Ey:      ey0,
		EPsi:    epsi0,
		V0:      v0,
		XRef:    xRef,
		YRef:    yRef,
		PsiRef:  psiRef,
		VRef:    vRef,
		CurvRef: curv,
	})
	if err != nil {
		return err
	}

	res := ctrl.Solve()

	fmt.Printf("status: %s  optimal: %v  solve time: %v\n", res.Status, res.Optimal, res.SolveTime)
	fmt.Printf("command: ax=%.4f m/s²  df=%.4f rad\n\n", res.UControl[0], res.UControl[1])

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "K\tS\tEY\tEPSI\tV\tAY\tAX\tDF\tSL")
	for k := 0; k < ctrl.Horizon(); k++ {
		z := res.ZMPC[k]
		u := res.UMPC[k]
		fmt.Fprintf(w, "%d\t%.2f\t%.4f\t%.4f\t%.3f\t%.3f\t%.4f\t%.4f\t%.3f\n",
			k, z[0], z[1], z[2], z[3], z[4], u[0], u[1], res.SlMPC[k])
	}
	zN := res.ZMPC[ctrl.Horizon()]
	fmt.Fprintf(w, "%d\t%.2f\t%.4f\t%.4f\t%.3f\t%.3f\t\t\t\n",
		ctrl.Horizon(), zN[0], zN[1], zN[2], zN[3], zN[4])
	return w.Flush()
}

func runLive(cmd *cobra.Command, args []string) error {
	s, _, err := buildSimulator(zap.NewNop())
	if err != nil {
		return err
	}

	x0 := model.State{V: v0}
	// Duration is unused by the live view; the stepper runs until quit.
	simCfg := sim.Config{Duration: 1, PlantDt: plantDt, WarmStart: warmStart}

	p := tea.NewProgram(viz.NewModel(s, x0, simCfg))
	_, err = p.Run()
	return err
}
