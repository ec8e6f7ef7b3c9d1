// Package messages defines Bubbletea message types for the chat TUI.
package messages

import (
	"github.com/custodia-labs/quarry/internal/core/domain"
)

// QuestionSubmitted is sent when the user presses enter on a question.
type QuestionSubmitted struct {
	// Seq numbers questions so stale answers can be ignored after a cancel.
	Seq      int
	Question string
}

// AnswerReceived carries the agent's result back to the model.
type AnswerReceived struct {
	Seq    int
	Result *domain.AgentResult
	Err    error
}

// Failed reports whether the question went unanswered.
func (m AnswerReceived) Failed() bool {
	return m.Err != nil || m.Result == nil || !m.Result.OK()
}

// CatalogueLoaded carries the registered database names shown in the header.
type CatalogueLoaded struct {
	Databases []string
	Err       error
}
