// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// prompt.go - Interactive questions: context entry and remote consent.

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/redactor/internal/config"
)

// ErrPromptAborted is returned when the user presses ctrl+c at a prompt.
var ErrPromptAborted = errors.New("prompt aborted")

// Prompter asks the user questions.
type Prompter interface {
	// Ask shows label with def pre-filled and returns the edited answer.
	Ask(label, def string) (string, error)

	// Confirm asks a yes/no question; anything but y/yes is no.
	Confirm(question string) (bool, error)

	Close() error
}

// =============================================================================
// LINER PROMPTER
// =============================================================================

// linerPrompter edits answers in place with history, for real terminals.
type linerPrompter struct {
	line        *liner.State
	historyFile string
}

// NewTerminalPrompter returns a line-editing prompter. Context answers are
// kept in ~/.redactor/context_history so earlier contexts are one arrow
// key away.
func NewTerminalPrompter() Prompter {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	p := &linerPrompter{line: line, historyFile: filepath.Join(dir, "context_history")}
	if f, err := os.Open(p.historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	return p
}

func (p *linerPrompter) Ask(label, def string) (string, error) {
	answer, err := p.line.PromptWithSuggestion(label, def, -1)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", ErrPromptAborted
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(answer) != "" {
		p.line.AppendHistory(answer)
	}
	return answer, nil
}

func (p *linerPrompter) Confirm(question string) (bool, error) {
	answer, err := p.line.Prompt(question + " [y/N]: ")
	if errors.Is(err, liner.ErrPromptAborted) {
		return false, ErrPromptAborted
	}
	if err != nil {
		return false, err
	}
	return isYes(answer), nil
}

// Close saves history with owner-only permissions and restores the terminal.
func (p *linerPrompter) Close() error {
	if err := config.EnsureConfigDir(); err == nil {
		if f, err := os.OpenFile(p.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
			_, _ = p.line.WriteHistory(f)
			f.Close()
		}
	}
	return p.line.Close()
}

// =============================================================================
// READER PROMPTER
// =============================================================================

// readerPrompter reads answers line by line, for piped input and tests.
type readerPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewReaderPrompter prompts on out and reads answers from in. An empty
// answer to Ask keeps the default.
func NewReaderPrompter(in io.Reader, out io.Writer) Prompter {
	return &readerPrompter{in: bufio.NewReader(in), out: out}
}

func (p *readerPrompter) Ask(label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(p.out, "%s[%s] ", label, def)
	} else {
		fmt.Fprint(p.out, label)
	}
	answer, err := p.readLine()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(answer) == "" {
		return def, nil
	}
	return answer, nil
}

func (p *readerPrompter) Confirm(question string) (bool, error) {
	fmt.Fprintf(p.out, "%s [y/N]: ", question)
	answer, err := p.readLine()
	if err != nil {
		return false, err
	}
	return isYes(answer), nil
}

func (p *readerPrompter) Close() error { return nil }

func (p *readerPrompter) readLine() (string, error) {
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", ErrPromptAborted
		}
		return "", fmt.Errorf("failed to read answer: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func isYes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes":
		return true
	}
	return false
}
