// Package tui is an interactive explorer for backtest parameters. The price
// series is loaded once; every parameter change re-runs the backtest on it.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"backtester/internal/domain"
	"backtester/internal/report"
	"backtester/internal/strategy"
)

// Parameter bounds for the interactive controls.
const (
	MinShortWindow = 5
	MaxShortWindow = 50
	MinLongWindow  = 20
	MaxLongWindow  = 200
	MinStopLoss    = 0
	MaxStopLoss    = 100
	CapitalStep    = 10000
	MinCapital     = 10000
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("8"))
	paramStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

type frameLoadedMsg struct {
	frame domain.Frame
	err   error
}

type reportMsg struct {
	report *strategy.Report
	err    error
}

// Model is the bubbletea model for the explorer.
type Model struct {
	bt         *strategy.Backtester
	source     strategy.BarSource
	strategies []string
	stratIdx   int
	req        strategy.Request

	frame   domain.Frame
	loaded  bool
	loading bool
	report  *strategy.Report
	err     error

	viewport viewport.Model
	ready    bool
	width    int
	height   int
}

// New creates the explorer model. The left/right keys cycle through the
// registry's strategies; req supplies the initial parameters and the
// strategy selected first.
func New(bt *strategy.Backtester, source strategy.BarSource, registry *strategy.Registry, req strategy.Request) Model {
	m := Model{
		bt:         bt,
		source:     source,
		strategies: registry.List(),
		req:        req,
		loading:    true,
	}
	if s, ok := registry.Get(req.Strategy); ok {
		for i, name := range m.strategies {
			if name == s.Name() {
				m.stratIdx = i
			}
		}
	}
	if len(m.strategies) > 0 {
		m.req.Strategy = m.strategies[m.stratIdx]
	}
	return m
}

// Init starts loading the price series.
func (m Model) Init() tea.Cmd {
	return m.loadCmd()
}

func (m *Model) loadCmd() tea.Cmd {
	m.loading = true
	src, req := m.source, m.req
	return func() tea.Msg {
		bars, err := src.Bars(context.Background(), req.Symbol, req.Start, req.End)
		if err == nil && len(bars) == 0 {
			err = fmt.Errorf("%w for symbol %s", domain.ErrNoData, req.Symbol)
		}
		return frameLoadedMsg{frame: domain.NewFrame(req.Symbol, bars), err: err}
	}
}

func (m *Model) runCmd() tea.Cmd {
	if !m.loaded {
		return nil
	}
	bt, frame, req := m.bt, m.frame, m.req
	return func() tea.Msg {
		rep, err := bt.RunFrame(frame, req)
		return reportMsg{report: rep, err: err}
	}
}

// Request returns the parameters currently selected.
func (m Model) Request() strategy.Request { return m.req }

// Report returns the most recent successful run, if any.
func (m Model) Report() *strategy.Report { return m.report }

// Err returns the error from the most recent load or run.
func (m Model) Err() error { return m.err }

// Update handles key presses, window resizes and completed loads/runs.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.loadCmd()
		case "left", "right":
			if len(m.strategies) == 0 {
				return m, nil
			}
			step := 1
			if msg.String() == "left" {
				step = len(m.strategies) - 1
			}
			m.stratIdx = (m.stratIdx + step) % len(m.strategies)
			m.req.Strategy = m.strategies[m.stratIdx]
			return m, m.runCmd()
		case "[", "]":
			m.req.Params.ShortWindow = clamp(m.req.Params.ShortWindow+keyStep(msg.String(), "]"), MinShortWindow, MaxShortWindow)
			return m, m.runCmd()
		case "{", "}":
			m.req.Params.LongWindow = clamp(m.req.Params.LongWindow+keyStep(msg.String(), "}"), MinLongWindow, MaxLongWindow)
			return m, m.runCmd()
		case "-", "+", "=":
			delta := 1.0
			if msg.String() == "-" {
				delta = -1
			}
			m.req.StopLossPercent = clampFloat(m.req.StopLossPercent+delta, MinStopLoss, MaxStopLoss)
			return m, m.runCmd()
		case "c", "C":
			delta := float64(CapitalStep)
			if msg.String() == "c" {
				delta = -delta
			}
			m.req.InitialCapital = max(m.req.InitialCapital+delta, MinCapital)
			return m, m.runCmd()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := max(m.height-3, 1) // header, params and footer lines
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.MouseWheelEnabled = true
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.viewport.SetContent(m.renderContent())
		return m, nil

	case frameLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.frame = msg.frame
		m.loaded = true
		m.err = nil
		return m, m.runCmd()

	case reportMsg:
		m.err = msg.err
		if msg.err == nil {
			m.report = msg.report
		}
		if m.ready {
			m.viewport.SetContent(m.renderContent())
		}
		return m, nil
	}

	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

// View renders the header, the scrollable report and the key help.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	title := fmt.Sprintf(" %s  %s", strings.ToUpper(m.req.Symbol), m.req.Strategy)
	if m.report != nil {
		title = " " + report.Title(m.report)
	}
	header := headerStyle.Render(padOrTrunc(title, m.width))

	params := paramStyle.Render(fmt.Sprintf(" short %d  long %d  stop %s  capital %s",
		m.req.Params.ShortWindow, m.req.Params.LongWindow,
		report.FormatPct(m.req.StopLossPercent), report.FormatMoney(m.req.InitialCapital, domain.MarketOf(m.req.Symbol).Currency())))
	switch {
	case m.err != nil:
		params += "  " + errorStyle.Render(m.err.Error())
	case m.loading:
		params += "  " + dimStyle.Render("loading...")
	}

	footerLeft := " q quit  left/right strategy  [ ] short  { } long  - + stop  c C capital  r reload"
	footerRight := fmt.Sprintf("%.0f%% ", m.viewport.ScrollPercent()*100)
	gap := max(m.width-len(footerLeft)-len(footerRight), 0)
	footer := footerStyle.Render(padOrTrunc(footerLeft+strings.Repeat(" ", gap)+footerRight, m.width))

	return header + "\n" + params + "\n" + m.viewport.View() + "\n" + footer
}

func (m Model) renderContent() string {
	if m.report == nil {
		if m.err != nil {
			return errorStyle.Render("  " + m.err.Error())
		}
		return dimStyle.Render("  Loading...")
	}
	var b strings.Builder
	b.WriteString(report.RenderSummary(m.report))
	b.WriteString("\n")
	b.WriteString(report.RenderCharts(m.report, max(m.width, 40)))
	b.WriteString("\n")
	b.WriteString(report.RenderTradeLog(m.report.Result.TradeLog(), report.Currency(m.report)))
	return b.String()
}

func keyStep(key, up string) int {
	if key == up {
		return 1
	}
	return -1
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

func clampFloat(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}

// padOrTrunc pads s with spaces to width, or truncates if longer.
func padOrTrunc(s string, width int) string {
	r := []rune(s)
	if len(r) >= width {
		return string(r[:width])
	}
	return s + strings.Repeat(" ", width-len(r))
}
