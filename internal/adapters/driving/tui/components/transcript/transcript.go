// Package transcript renders the chat history in a scrollable viewport.
package transcript

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/quarry/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/quarry/internal/core/domain"
)

// Turn is one question and its outcome.
type Turn struct {
	Question string
	Result   *domain.AgentResult
	Err      error
}

// Pending reports whether the turn is still waiting for an answer.
func (t Turn) Pending() bool {
	return t.Result == nil && t.Err == nil
}

// Transcript holds the conversation and renders it into a viewport.
type Transcript struct {
	styles   *styles.Styles
	viewport viewport.Model
	turns    []Turn
}

// New creates an empty transcript.
func New(s *styles.Styles) *Transcript {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &Transcript{
		styles:   s,
		viewport: viewport.New(80, 20),
	}
}

// Add appends a pending question and returns its index.
func (t *Transcript) Add(question string) int {
	t.turns = append(t.turns, Turn{Question: question})
	t.refresh()
	return len(t.turns) - 1
}

// Resolve records the outcome of the turn at index i.
func (t *Transcript) Resolve(i int, result *domain.AgentResult, err error) {
	if i < 0 || i >= len(t.turns) {
		return
	}
	t.turns[i].Result = result
	t.turns[i].Err = err
	t.refresh()
}

// Turns returns the conversation so far.
func (t *Transcript) Turns() []Turn {
	return t.turns
}

// Clear removes every turn.
func (t *Transcript) Clear() {
	t.turns = nil
	t.refresh()
}

// SetSize resizes the viewport.
func (t *Transcript) SetSize(width, height int) {
	if height < 1 {
		height = 1
	}
	t.viewport.Width = width
	t.viewport.Height = height
	t.refresh()
}

// Update forwards scroll keys to the viewport.
func (t *Transcript) Update(msg tea.Msg) (*Transcript, tea.Cmd) {
	var cmd tea.Cmd
	t.viewport, cmd = t.viewport.Update(msg)
	return t, cmd
}

// View renders the visible part of the transcript.
func (t *Transcript) View() string {
	return t.viewport.View()
}

// Render returns the full transcript text.
func (t *Transcript) Render() string {
	if len(t.turns) == 0 {
		return t.styles.Muted.Render("Ask a question about your documents or databases.")
	}

	wrap := lipgloss.NewStyle()
	if t.viewport.Width > 4 {
		wrap = wrap.Width(t.viewport.Width - 2)
	}

	var b strings.Builder
	for i, turn := range t.turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(t.styles.Question.Render("You: "))
		b.WriteString(wrap.Render(turn.Question))
		b.WriteString("\n")
		b.WriteString(t.styles.Answer.Render("quarry: "))
		b.WriteString(t.renderOutcome(turn, wrap))
	}
	return b.String()
}

func (t *Transcript) renderOutcome(turn Turn, wrap lipgloss.Style) string {
	switch {
	case turn.Pending():
		return t.styles.Muted.Render("...")
	case turn.Err != nil:
		return t.styles.Error.Render(turn.Err.Error())
	case !turn.Result.OK():
		return t.styles.Error.Render(turn.Result.Error)
	}

	answer := turn.Result.Answer
	lines := []string{wrap.Render(answer.Response)}
	if len(answer.Citations) > 0 {
		lines = append(lines, t.styles.Citation.Render("Sources: "+strings.Join(answer.Citations, ", ")))
	}
	if answer.DataSummary != "" {
		lines = append(lines, t.styles.Muted.Render("Data: ")+wrap.Render(answer.DataSummary))
	}
	if tr := turn.Result.Trace; tr.Steps > 0 {
		trace := fmt.Sprintf("%d steps", tr.Steps)
		if len(tr.ToolCalls) > 0 {
			trace += ", " + strings.Join(tr.ToolCalls, ", ")
		}
		lines = append(lines, t.styles.Trace.Render(trace))
	}
	return strings.Join(lines, "\n")
}

// refresh re-renders the content and follows the newest turn.
func (t *Transcript) refresh() {
	t.viewport.SetContent(t.Render())
	t.viewport.GotoBottom()
}
