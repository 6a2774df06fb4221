// Package viz renders a live terminal view of the closed loop: the plant is
// stepped one control period per frame while speed and lateral-offset traces
// scroll past a stats panel.
package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/kinmpc/internal/model"
	"github.com/san-kum/kinmpc/internal/sim"
)

const historyCapacity = 240

var (
	headerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	statsStyle    = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(1, 2).Width(40)
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	valueStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	degradedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	graphStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 2)
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

type TickMsg time.Time

// Model drives the closed loop frame by frame and renders its traces.
type Model struct {
	simulator *sim.Simulator
	x0        model.State
	simCfg    sim.Config
	stepper   *sim.Stepper

	running  bool
	last     sim.Tick
	haveTick bool
	degraded int
	ticks    int

	speedHist  []float64
	targetHist []float64
	eyHist     []float64
}

// NewModel prepares a live view over the given simulator. The run has no
// fixed duration; it advances until quit.
func NewModel(s *sim.Simulator, x0 model.State, cfg sim.Config) Model {
	return Model{
		simulator:  s,
		x0:         x0,
		simCfg:     cfg,
		stepper:    s.Stepper(x0, cfg),
		running:    true,
		speedHist:  make([]float64, 0, historyCapacity),
		targetHist: make([]float64, 0, historyCapacity),
		eyHist:     make([]float64, 0, historyCapacity),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Tick(time.Second/10, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "r":
			m.reset()
		}
	case TickMsg:
		if m.running {
			m.step()
		}
		return m, tea.Tick(time.Second/10, func(t time.Time) tea.Msg { return TickMsg(t) })
	}
	return m, nil
}

// step advances one control period and records the traces.
func (m *Model) step() {
	tick, err := m.stepper.Step()
	if err != nil {
		m.running = false
		return
	}
	m.last = tick
	m.haveTick = true
	m.ticks++
	if !tick.Optimal {
		m.degraded++
	}

	m.speedHist = push(m.speedHist, tick.State.V)
	m.targetHist = push(m.targetHist, tick.TargetV)
	m.eyHist = push(m.eyHist, tick.State.Ey)
}

func push(hist []float64, v float64) []float64 {
	hist = append(hist, v)
	if len(hist) > historyCapacity {
		hist = hist[1:]
	}
	return hist
}

func (m *Model) reset() {
	m.stepper = m.simulator.Stepper(m.x0, m.simCfg)
	m.last = sim.Tick{}
	m.haveTick = false
	m.degraded = 0
	m.ticks = 0
	m.speedHist = m.speedHist[:0]
	m.targetHist = m.targetHist[:0]
	m.eyHist = m.eyHist[:0]
}

func (m Model) View() string {
	var charts strings.Builder
	if len(m.speedHist) > 1 {
		chart := asciigraph.PlotMany(
			[][]float64{m.targetHist, m.speedHist},
			asciigraph.Height(6), asciigraph.Width(50),
			asciigraph.Caption("speed / target [m/s]"),
			asciigraph.SeriesColors(asciigraph.White, asciigraph.Green),
		)
		charts.WriteString(chart + "\n\n")
	}
	if len(m.eyHist) > 1 {
		chart := asciigraph.Plot(m.eyHist,
			asciigraph.Height(6), asciigraph.Width(50),
			asciigraph.Caption("lateral offset [m]"))
		charts.WriteString(chart)
	}
	chartView := graphStyle.Render(charts.String())

	var s strings.Builder
	status := "RUNNING"
	if !m.running {
		status = "PAUSED"
	}
	s.WriteString(headerStyle.Render("PATH TRACKING MPC") + "\n")
	s.WriteString(status + "\n\n")

	x := m.stepper.State()
	s.WriteString(row("Time", "%.2fs", m.stepper.Time()))
	s.WriteString(row("Progress", "%.1fm", x.S))
	s.WriteString(row("Speed", "%.2fm/s", x.V))
	s.WriteString(row("Lateral", "%.3fm", x.Ey))
	s.WriteString(row("Heading err", "%.3frad", x.EPsi))
	if m.haveTick {
		s.WriteString(row("Target v", "%.2fm/s", m.last.TargetV))
		s.WriteString(row("Accel cmd", "%.3fm/s²", m.last.Command.Ax))
		s.WriteString(row("Steer cmd", "%.4frad", m.last.Command.Df))
		s.WriteString(labelStyle.Render("Solve") +
			valueStyle.Render(m.last.SolveTime.Round(time.Microsecond).String()) + "\n")
		if m.last.Optimal {
			s.WriteString(labelStyle.Render("Status") + valueStyle.Render("optimal") + "\n")
		} else {
			s.WriteString(labelStyle.Render("Status") + degradedStyle.Render(m.last.Status) + "\n")
		}
	}
	if m.ticks > 0 {
		s.WriteString(row("Degraded", "%d", m.degraded))
	}
	s.WriteString(helpStyle.Render("\n──────────────────\nSP:Pause R:Reset Q:Quit"))
	statsView := statsStyle.Render(s.String())

	return lipgloss.JoinHorizontal(lipgloss.Top, chartView, statsView)
}

func row(label, format string, v any) string {
	return labelStyle.Render(label) + valueStyle.Render(fmt.Sprintf(format, v)) + "\n"
}
