// Package status renders the one-line footer of the chat TUI.
package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/quarry/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/quarry/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/quarry/internal/core/domain"
)

// State is what the footer is currently reporting.
type State string

const (
	StateReady    State = "ready"
	StateThinking State = "thinking"
	StateError    State = "error"
)

// Bar shows the chat state on the left and key hints on the right. After an
// answer it also summarises the tools the agent used and how long it took.
type Bar struct {
	styles *styles.Styles
	keymap *keymap.KeyMap
	width  int

	state    State
	message  string
	activity string

	answered int
	last     domain.AgentTrace
	elapsed  time.Duration
}

// NewBar returns a ready bar. Nil arguments fall back to the defaults.
func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	return &Bar{styles: s, keymap: km, state: StateReady, width: 80}
}

func (s *Bar) View() string {
	left, right := s.status(), s.hints()
	gap := max(1, s.width-lipgloss.Width(left)-lipgloss.Width(right)-2)
	return s.styles.StatusBar.Width(s.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (s *Bar) status() string {
	switch s.state {
	case StateThinking:
		return s.styles.Muted.Render(strings.TrimSpace(s.activity + " Thinking..."))
	case StateError:
		text := "Error"
		if s.message != "" {
			text += ": " + s.message
		}
		return s.styles.Error.Render(text)
	}
	if s.answered == 0 {
		return s.styles.Muted.Render("Ready")
	}
	return s.styles.Normal.Render(fmt.Sprintf("%d answered", s.answered)) + s.styles.Muted.Render(s.lastSummary())
}

// lastSummary describes the previous answer, e.g. " · 2 steps · sql_query · 1.4s".
func (s *Bar) lastSummary() string {
	var parts []string
	if s.last.Steps > 0 {
		parts = append(parts, pluralSteps(s.last.Steps))
	}
	if tools := distinct(s.last.ToolCalls); len(tools) > 0 {
		parts = append(parts, strings.Join(tools, ", "))
	}
	if s.elapsed > 0 {
		parts = append(parts, s.elapsed.Round(100*time.Millisecond).String())
	}
	if len(parts) == 0 {
		return ""
	}
	return " · " + strings.Join(parts, " · ")
}

func pluralSteps(n int) string {
	if n == 1 {
		return "1 step"
	}
	return fmt.Sprintf("%d steps", n)
}

// distinct keeps the first occurrence of each tool name.
func distinct(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

func (s *Bar) hints() string {
	bindings := s.keymap.ShortHelp()
	if s.state == StateThinking {
		bindings = s.keymap.BusyHelp()
	}
	hints := make([]string, len(bindings))
	for i, b := range bindings {
		hints[i] = b.Help().Key + ": " + b.Help().Desc
	}
	return s.styles.Muted.Render(strings.Join(hints, " | "))
}

// Record counts an answered question and remembers its trace for display.
func (s *Bar) Record(trace domain.AgentTrace, elapsed time.Duration) {
	s.answered++
	s.last = trace
	s.elapsed = elapsed
	s.state = StateReady
	s.message = ""
}

// Fail switches to the error state with message.
func (s *Bar) Fail(message string) {
	s.state = StateError
	s.message = message
}

func (s *Bar) SetState(state State) { s.state = state }
func (s *Bar) State() State { return s.state }
func (s *Bar) Message() string { return s.message }
func (s *Bar) SetActivity(frame string) { s.activity = frame }
func (s *Bar) Answered() int { return s.answered }
func (s *Bar) SetWidth(width int) { s.width = width }
func (s *Bar) Width() int { return s.width }

// Clear forgets everything recorded so far.
func (s *Bar) Clear() {
	*s = Bar{styles: s.styles, keymap: s.keymap, width: s.width, state: StateReady}
}
