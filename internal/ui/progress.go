// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	purple  = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"}
	cyan    = lipgloss.AdaptiveColor{Light: "#0891B2", Dark: "#22D3EE"}
	emerald = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"}
	rose    = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"}
	muted   = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6C7086"}

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(purple)
	stageStyle   = lipgloss.NewStyle().Foreground(cyan)
	countStyle   = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	successStyle = lipgloss.NewStyle().Foreground(emerald).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(rose).Bold(true)
)

// =============================================================================
// MESSAGES
// =============================================================================

// ProgressMsg reports that Current of Total chunks are done.
type ProgressMsg struct {
	Current int
	Total   int
}

// StageMsg changes the stage label, e.g. "Screening" or "Redacting".
type StageMsg string

// doneMsg ends the program with the work's result.
type doneMsg struct{ err error }

// =============================================================================
// MODEL
// =============================================================================

// ProgressModel shows a spinner, the current stage and a chunk progress bar.
type ProgressModel struct {
	spinner spinner.Model
	bar     progress.Model

	title   string
	stage   string
	current int
	total   int
	start   time.Time
	width   int

	done     bool
	canceled bool
	err      error
}

// NewProgressModel creates the model with an ASCII spinner.
func NewProgressModel(title string) ProgressModel {
	s := spinner.New()
	s.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	s.Style = stageStyle

	return ProgressModel{
		spinner: s,
		bar:     progress.New(progress.WithGradient("#7C3AED", "#22D3EE"), progress.WithWidth(40)),
		title:   title,
		stage:   "Starting",
		start:   time.Now(),
		width:   80,
	}
}

// Init starts the spinner.
func (m ProgressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles progress, stage, resize and cancel messages.
func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			m.canceled = true
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = clamp(msg.Width-20, 10, 60)
		return m, nil

	case StageMsg:
		m.stage = string(msg)
		return m, nil

	case ProgressMsg:
		m.current, m.total = msg.Current, msg.Total
		return m, m.bar.SetPercent(m.Percent())

	case doneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit

	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		if b, ok := bar.(progress.Model); ok {
			m.bar = b
		}
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// Percent returns completion in [0, 1].
func (m ProgressModel) Percent() float64 {
	if m.total <= 0 {
		return 0
	}
	p := float64(m.current) / float64(m.total)
	if p > 1 {
		p = 1
	}
	return p
}

// Canceled reports whether the user pressed ctrl+c.
func (m ProgressModel) Canceled() bool {
	return m.canceled
}

// View renders the progress block.
func (m ProgressModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")

	switch {
	case m.done && m.err != nil:
		b.WriteString(errorStyle.Render("x " + m.stage + " failed"))
	case m.done:
		b.WriteString(successStyle.Render("+ " + m.stage + " done"))
	case m.canceled:
		b.WriteString(errorStyle.Render("Canceled"))
	default:
		b.WriteString(m.spinner.View() + " " + stageStyle.Render(m.stage))
	}
	b.WriteString("\n")

	if m.total > 0 {
		b.WriteString(m.bar.View())
		b.WriteString(" ")
		b.WriteString(countStyle.Render(fmt.Sprintf("chunk %d/%d", m.current, m.total)))
		b.WriteString("\n")
	}

	elapsed := time.Since(m.start).Round(time.Second)
	b.WriteString(mutedStyle.Render(fmt.Sprintf("elapsed %s", elapsed)))
	if !m.done && !m.canceled {
		b.WriteString(mutedStyle.Render("  ctrl+c to cancel"))
	}
	b.WriteString("\n")
	return b.String()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// =============================================================================
// RUNNER
// =============================================================================

// Reporter feeds a running progress view.
type Reporter struct {
	Progress func(current, total int)
	Stage    func(stage string)
}

// RunWithProgress runs work while drawing a live progress view on out.
// Pressing ctrl+c cancels the context given to work. It returns work's error.
// opts are passed to the Bubble Tea program, e.g. tea.WithInput(nil) when
// there is no keyboard.
func RunWithProgress(ctx context.Context, title string, out io.Writer, work func(ctx context.Context, r Reporter) error, opts ...tea.ProgramOption) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts = append([]tea.ProgramOption{tea.WithOutput(out)}, opts...)
	p := tea.NewProgram(NewProgressModel(title), opts...)

	reporter := Reporter{
		Progress: func(current, total int) { p.Send(ProgressMsg{Current: current, Total: total}) },
		Stage:    func(stage string) { p.Send(StageMsg(stage)) },
	}

	errCh := make(chan error, 1)
	go func() {
		err := work(ctx, reporter)
		p.Send(doneMsg{err: err})
		errCh <- err
	}()

	final, runErr := p.Run()
	if fm, ok := final.(ProgressModel); !ok || fm.Canceled() || runErr != nil {
		cancel()
	}
	err := <-errCh
	if err == nil && runErr != nil {
		return fmt.Errorf("progress display: %w", runErr)
	}
	return err
}

// PlainReporter prints one line per update, for output that is not a terminal.
func PlainReporter(out io.Writer) Reporter {
	return Reporter{
		Progress: func(current, total int) {
			fmt.Fprintf(out, "  chunk %d/%d done\n", current, total)
		},
		Stage: func(stage string) {
			fmt.Fprintf(out, "%s...\n", stage)
		},
	}
}
