// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package notify collects user-visible failure notices.
//
// Reporting never blocks the caller and never fails. A notice whose
// text is identical to the most recent notice is folded into it by
// incrementing its repeat count instead of adding a duplicate, so a
// burst of the same failure shows up once with a count.
package notify

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/bureau-foundation/moresteps/lib/clock"
)

// Notice is one (possibly repeated) failure.
type Notice struct {
	Text  string
	Count int
	First time.Time
	Last  time.Time
}

// Board holds the current notices. Safe for concurrent use.
type Board struct {
	logger *slog.Logger
	clock  clock.Clock

	mu      sync.Mutex
	notices []Notice
}

// New creates an empty board. A nil clock means the real clock.
func New(logger *slog.Logger, clk clock.Clock) *Board {
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Board{logger: logger, clock: clk}
}

// Report logs text with the given key-value context and adds it to the
// board, collapsing it into the last notice when the text repeats.
func (b *Board) Report(text string, context ...any) {
	b.logger.Error(text, context...)

	now := b.clock.Now()
	b.mu.Lock()
	defer b.mu.Unlock()
	if last := len(b.notices) - 1; last >= 0 && b.notices[last].Text == text {
		b.notices[last].Count++
		b.notices[last].Last = now
		return
	}
	b.notices = append(b.notices, Notice{Text: text, Count: 1, First: now, Last: now})
}

// Notices returns a copy of the current notices, oldest first.
func (b *Board) Notices() []Notice {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Notice(nil), b.notices...)
}

// Dismiss removes the notice at index. Returns false if there is no
// such notice.
func (b *Board) Dismiss(index int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if index < 0 || index >= len(b.notices) {
		return false
	}
	b.notices = append(b.notices[:index], b.notices[index+1:]...)
	return true
}

// Renderer returns a lipgloss renderer for output with its colour
// profile detected from the environment.
func Renderer(output io.Writer) *lipgloss.Renderer {
	renderer := lipgloss.NewRenderer(output)
	renderer.SetColorProfile(termenv.NewOutput(output).EnvColorProfile())
	return renderer
}

// PlainRenderer returns a renderer that emits no colour escapes.
func PlainRenderer() *lipgloss.Renderer {
	renderer := lipgloss.NewRenderer(io.Discard, termenv.WithProfile(termenv.Ascii))
	renderer.SetColorProfile(termenv.Ascii)
	return renderer
}

// Render draws every notice as a bordered box no wider than width.
// Repeated notices carry a count badge. Returns "" when the board is
// empty.
func (b *Board) Render(renderer *lipgloss.Renderer, width int) string {
	notices := b.Notices()
	if len(notices) == 0 {
		return ""
	}

	box := renderer.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("9")).
		Padding(0, 1)
	if width > 4 {
		box = box.Width(width - 2)
	}
	badge := renderer.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("1")).
		Padding(0, 1)

	boxes := make([]string, 0, len(notices))
	for _, notice := range notices {
		content := notice.Text
		if notice.Count > 1 {
			content = badge.Render(fmt.Sprintf("×%d", notice.Count)) + " " + content
		}
		boxes = append(boxes, box.Render(content))
	}
	return strings.Join(boxes, "\n")
}
