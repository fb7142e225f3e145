// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func update(t *testing.T, m ProgressModel, msg tea.Msg) (ProgressModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	pm, ok := next.(ProgressModel)
	require.True(t, ok)
	return pm, cmd
}

func TestProgressModel_Progress(t *testing.T) {
	m := NewProgressModel("Sanitizing report.txt")
	assert.Equal(t, 0.0, m.Percent())

	m, _ = update(t, m, StageMsg("Redacting"))
	m, cmd := update(t, m, ProgressMsg{Current: 2, Total: 4})
	assert.NotNil(t, cmd, "bar animation should be scheduled")
	assert.Equal(t, 0.5, m.Percent())

	view := m.View()
	assert.Contains(t, view, "Sanitizing report.txt")
	assert.Contains(t, view, "Redacting")
	assert.Contains(t, view, "chunk 2/4")
	assert.Contains(t, view, "ctrl+c to cancel")
}

func TestProgressModel_PercentClamped(t *testing.T) {
	m := NewProgressModel("x")
	m, _ = update(t, m, ProgressMsg{Current: 5, Total: 4})
	assert.Equal(t, 1.0, m.Percent())
}

func TestProgressModel_Cancel(t *testing.T) {
	m := NewProgressModel("x")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.True(t, m.Canceled())
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Contains(t, m.View(), "Canceled")
}

func TestProgressModel_Done(t *testing.T) {
	m := NewProgressModel("x")
	m, _ = update(t, m, StageMsg("Redacting"))

	ok, cmd := update(t, m, doneMsg{})
	require.NotNil(t, cmd)
	assert.Contains(t, ok.View(), "Redacting done")
	assert.NotContains(t, ok.View(), "ctrl+c")

	failed, _ := update(t, m, doneMsg{err: errors.New("boom")})
	assert.Contains(t, failed.View(), "Redacting failed")
}

func TestProgressModel_Resize(t *testing.T) {
	m := NewProgressModel("x")
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 200, Height: 40})
	assert.Equal(t, 60, m.bar.Width)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 20, Height: 40})
	assert.Equal(t, 10, m.bar.Width)
}

func TestPlainReporter(t *testing.T) {
	var buf bytes.Buffer
	r := PlainReporter(&buf)
	r.Stage("Redacting")
	r.Progress(1, 3)

	assert.Equal(t, "Redacting...\n  chunk 1/3 done\n", buf.String())
}

func TestRunWithProgress(t *testing.T) {
	var out bytes.Buffer
	var calls int

	err := RunWithProgress(context.Background(), "Sanitizing", &out, func(ctx context.Context, r Reporter) error {
		r.Stage("Redacting")
		for i := 1; i <= 3; i++ {
			r.Progress(i, 3)
			calls++
		}
		return nil
	}, tea.WithInput(nil))
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, strings.Contains(out.String(), "Sanitizing"))
}

func TestRunWithProgress_ReturnsWorkError(t *testing.T) {
	var out bytes.Buffer
	want := errors.New("backend gone")
	err := RunWithProgress(context.Background(), "Sanitizing", &out, func(ctx context.Context, r Reporter) error {
		return want
	}, tea.WithInput(nil))
	assert.ErrorIs(t, err, want)
}
