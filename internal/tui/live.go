// Package tui is the live reachability view: it drives the propagation
// one step per tick and plots the growing enclosure bounds in the
// terminal.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/verisim/reach/internal/dynamics"
	"github.com/verisim/reach/internal/flowpipe"
	"github.com/verisim/reach/internal/geometry"
)

const (
	plotWidth  = 64
	plotHeight = 12
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

type TickMsg time.Time

// Model advances a stepper one propagation step per tick and renders the
// accumulated bounds of the selected state dimension.
type Model struct {
	name   string
	sys    dynamics.System
	r0     geometry.Zonotope
	inputs geometry.Zonotope
	params flowpipe.Params

	stepper *flowpipe.Stepper
	fp      *flowpipe.Flowpipe

	dim     int
	running bool
	err     error
}

// NewModel prepares a live view for the given run.
func NewModel(name string, sys dynamics.System, r0, inputs geometry.Zonotope, params flowpipe.Params) (Model, error) {
	stepper, err := flowpipe.NewStepper(sys, r0, inputs, params)
	if err != nil {
		return Model{}, err
	}
	return Model{
		name:    name,
		sys:     sys,
		r0:      r0,
		inputs:  inputs,
		params:  params,
		stepper: stepper,
		fp:      &flowpipe.Flowpipe{},
		running: true,
	}, nil
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/30, func(t time.Time) tea.Msg { return TickMsg(t) })
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
		case "tab", "d":
			m.dim = (m.dim + 1) % m.sys.Dim()
		}
	case TickMsg:
		if m.running && m.err == nil && !m.stepper.Done() {
			seg, err := m.stepper.Step()
			if err != nil {
				m.err = err
			} else {
				m.fp.Append(seg)
			}
		}
		return m, tick()
	}
	return m, nil
}

func (m *Model) reset() {
	stepper, err := flowpipe.NewStepper(m.sys, m.r0, m.inputs, m.params)
	if err != nil {
		m.err = err
		return
	}
	m.stepper = stepper
	m.fp = &flowpipe.Flowpipe{}
	m.err = nil
	m.running = true
}

func (m Model) View() string {
	var s strings.Builder
	s.WriteString(headerStyle.Render(strings.ToUpper(m.name)) + "\n")

	status := "RUNNING"
	switch {
	case m.err != nil:
		status = "FAILED"
	case m.stepper.Done():
		status = "DONE"
	case !m.running:
		status = "PAUSED"
	}
	s.WriteString(status + "\n")

	_, lo, hi := m.fp.Bounds(m.dim)
	if len(lo) > 1 {
		chart := asciigraph.PlotMany(
			[][]float64{lo, hi},
			asciigraph.Height(plotHeight),
			asciigraph.Width(plotWidth),
			asciigraph.Caption(fmt.Sprintf("x%d bounds", m.dim)),
		)
		s.WriteString(graphStyle.Render(chart) + "\n")
	} else {
		s.WriteString(graphStyle.Render("(collecting segments...)") + "\n")
	}

	s.WriteString(labelStyle.Render("Time") + valueStyle.Render(fmt.Sprintf("%.3fs / %.3fs", m.stepper.Time(), m.params.TFinal)) + "\n")
	s.WriteString(labelStyle.Render("Segments") + valueStyle.Render(fmt.Sprintf("%d", m.fp.Len())) + "\n")
	s.WriteString(labelStyle.Render("Generators") + valueStyle.Render(fmt.Sprintf("%d", m.stepper.Current().NumGens())) + "\n")
	if len(lo) > 0 {
		width := hi[len(hi)-1] - lo[len(lo)-1]
		s.WriteString(labelStyle.Render("Width") + valueStyle.Render(fmt.Sprintf("%.4g", width)) + "\n")
	}
	if m.err != nil {
		s.WriteString(errorStyle.Render("error: "+m.err.Error()) + "\n")
	}

	s.WriteString(helpStyle.Render("SP:Pause R:Reset Tab:Dimension Q:Quit"))
	return s.String()
}
