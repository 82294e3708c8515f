// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mosaic Contributors

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mosaic-dev/mosaic/internal/agent"
	"github.com/mosaic-dev/mosaic/internal/conversation"
)

const (
	inputPreview  = 100
	resultPreview = 150
)

var (
	bannerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	stepStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	toolStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// progress prints loop events as styled lines.
type progress struct {
	w io.Writer
}

var _ agent.Observer = (*progress)(nil)

func newProgress(w io.Writer) *progress {
	return &progress{w: w}
}

func (p *progress) banner(modelRef string, safety bool) {
	p.printf("%s\n", bannerStyle.Render("Mosaic using "+modelRef))
	if !safety {
		p.printf("%s\n", warnStyle.Render("Safety mode is off: existing files may be overwritten."))
	}
}

func (p *progress) StateChanged(_, to agent.State) {
	if to == agent.StateFailed {
		p.printf("%s\n", errorStyle.Render("Run failed."))
	}
}

func (p *progress) Iteration(n int) {
	p.printf("\n%s\n", stepStyle.Render(fmt.Sprintf("[Iteration %d] Thinking...", n)))
}

func (p *progress) Retrying(attempt int, delay time.Duration, err error) {
	p.printf("%s\n", warnStyle.Render(fmt.Sprintf("  Provider error (attempt %d), retrying in %s: %v", attempt, delay, err)))
}

func (p *progress) ToolCall(use conversation.ToolUse) {
	input, err := json.Marshal(use.Input)
	if err != nil {
		input = []byte(fmt.Sprint(use.Input))
	}
	p.printf("%s\n", toolStyle.Render("  Tool: "+use.Name))
	p.printf("%s\n", dimStyle.Render("    Input: "+preview(string(input), inputPreview)))
}

// ToolResult events arrive after the whole batch ran, so each line names
// its tool.
func (p *progress) ToolResult(use conversation.ToolUse, result conversation.ToolResult) {
	label := "    " + use.Name + " result: "
	style := dimStyle
	if result.IsError {
		label = "    " + use.Name + " error: "
		style = errorStyle
	}
	p.printf("%s\n", style.Render(label+preview(result.Content, resultPreview)))
}

func (p *progress) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, format, args...)
}

// preview flattens s to one line and cuts it at limit runes.
func preview(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}
