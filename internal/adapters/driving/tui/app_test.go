package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/quarry/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/quarry/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/quarry/internal/core/domain"
)

func newTestApp(t *testing.T, agent *MockAgentService) *App {
	t.Helper()
	app, err := NewApp(&Ports{Agent: agent, Query: &MockQueryService{Names: []string{"financials"}}})
	require.NoError(t, err)
	app.SetDimensions(80, 24)
	return app
}

func typeText(app *App, text string) {
	for _, r := range text {
		app.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

// submit presses enter and runs the resulting commands until the answer arrives.
func submit(t *testing.T, app *App) {
	t.Helper()
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	submitted, ok := cmd().(messages.QuestionSubmitted)
	require.True(t, ok)

	_, cmd = app.Update(submitted)
	require.NotNil(t, cmd)
	assert.True(t, app.Busy())

	batch, ok := cmd().(tea.BatchMsg)
	require.True(t, ok)
	require.NotEmpty(t, batch)
	answer, ok := batch[0]().(messages.AnswerReceived)
	require.True(t, ok)
	app.Update(answer)
}

func TestNewApp(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		app, err := NewApp(&Ports{Agent: &MockAgentService{}})
		require.NoError(t, err)
		assert.False(t, app.Ready())
		assert.False(t, app.Busy())
		assert.Equal(t, "Initialising...", app.View())
	})

	t.Run("invalid ports", func(t *testing.T) {
		app, err := NewApp(&Ports{})
		assert.ErrorIs(t, err, ErrMissingAgentService)
		assert.Nil(t, app)
	})
}

func TestApp_WithContext(t *testing.T) {
	app, _ := NewApp(&Ports{Agent: &MockAgentService{}})

	type contextKey string
	ctx := context.WithValue(context.Background(), contextKey("key"), "value")
	assert.Same(t, app, app.WithContext(ctx))
	assert.Equal(t, ctx, app.ctx)
}

func TestApp_Init_LoadsCatalogue(t *testing.T) {
	app := newTestApp(t, &MockAgentService{})
	assert.NotNil(t, app.Init())

	cmd := app.loadCatalogue()
	require.NotNil(t, cmd)
	app.Update(cmd())

	assert.Equal(t, []string{"financials"}, app.Databases())
	assert.Contains(t, app.View(), "databases: financials")
}

func TestApp_LoadCatalogue_NoQueryPort(t *testing.T) {
	app, err := NewApp(&Ports{Agent: &MockAgentService{}})
	require.NoError(t, err)
	assert.Nil(t, app.loadCatalogue())
}

func TestApp_WindowSize(t *testing.T) {
	app, _ := NewApp(&Ports{Agent: &MockAgentService{}})

	app.Update(tea.WindowSizeMsg{Width: 100, Height: 30})

	assert.True(t, app.Ready())
	assert.Equal(t, 100, app.width)
	assert.Equal(t, 30, app.height)
	assert.Contains(t, app.View(), "quarry chat")
}

func TestApp_AskQuestion(t *testing.T) {
	agent := &MockAgentService{}
	app := newTestApp(t, agent)

	typeText(app, "What was Q3 revenue?")
	submit(t, app)

	require.Len(t, agent.Questions, 1)
	assert.Equal(t, "What was Q3 revenue?", agent.Questions[0])
	assert.False(t, app.Busy())
	assert.NoError(t, app.Err())

	turns := app.Transcript()
	require.Len(t, turns, 1)
	assert.Equal(t, "answer to What was Q3 revenue?", turns[0].Result.Answer.Response)
	assert.Equal(t, 1, app.statusBar.Answered())

	view := app.View()
	assert.Contains(t, view, "Sources: XYZ001")
	assert.Equal(t, "", app.input.Value())
	assert.True(t, app.input.Focused())
}

func TestApp_EmptyQuestionIgnored(t *testing.T) {
	app := newTestApp(t, &MockAgentService{})

	typeText(app, "   ")
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
	assert.Empty(t, app.Transcript())
}

func TestApp_AgentError(t *testing.T) {
	agent := &MockAgentService{
		AskFunc: func(_ context.Context, _ string) (*domain.AgentResult, error) {
			return nil, domain.ErrLLMUnavailable
		},
	}
	app := newTestApp(t, agent)

	typeText(app, "anything")
	submit(t, app)

	assert.ErrorIs(t, app.Err(), domain.ErrLLMUnavailable)
	assert.Equal(t, status.StateError, app.statusBar.State())
	assert.Contains(t, app.statusBar.Message(), "LLM")
	require.Len(t, app.Transcript(), 1)
	assert.Error(t, app.Transcript()[0].Err)
}

func TestApp_FailedResult(t *testing.T) {
	agent := &MockAgentService{
		AskFunc: func(_ context.Context, q string) (*domain.AgentResult, error) {
			return &domain.AgentResult{Question: q, Error: "step limit reached"}, nil
		},
	}
	app := newTestApp(t, agent)

	typeText(app, "hard question")
	submit(t, app)

	assert.Equal(t, status.StateError, app.statusBar.State())
	assert.Equal(t, "step limit reached", app.statusBar.Message())
	assert.Equal(t, 0, app.statusBar.Answered())
}

func TestApp_CancelDropsLateAnswer(t *testing.T) {
	app := newTestApp(t, &MockAgentService{})

	typeText(app, "slow question")
	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyEnter})
	submitted := cmd().(messages.QuestionSubmitted)
	app.Update(submitted)
	require.True(t, app.Busy())

	app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, app.Busy())
	require.Len(t, app.Transcript(), 1)
	assert.True(t, errors.Is(app.Transcript()[0].Err, errCancelled))

	// the original answer arrives after the cancel
	app.Update(messages.AnswerReceived{
		Seq:    submitted.Seq,
		Result: &domain.AgentResult{Answer: &domain.AgentResponse{Response: "late"}},
	})
	assert.True(t, errors.Is(app.Transcript()[0].Err, errCancelled))
	assert.Equal(t, 0, app.statusBar.Answered())
}

func TestApp_EscClearsInputWhenIdle(t *testing.T) {
	app := newTestApp(t, &MockAgentService{})
	typeText(app, "draft")

	app.Update(tea.KeyMsg{Type: tea.KeyEsc})

	assert.Equal(t, "", app.input.Value())
}

func TestApp_ClearTranscript(t *testing.T) {
	app := newTestApp(t, &MockAgentService{})
	typeText(app, "one")
	submit(t, app)
	require.Len(t, app.Transcript(), 1)

	app.Update(tea.KeyMsg{Type: tea.KeyCtrlL})

	assert.Empty(t, app.Transcript())
	assert.Equal(t, 0, app.statusBar.Answered())
}

func TestApp_Quit(t *testing.T) {
	app := newTestApp(t, &MockAgentService{})

	_, cmd := app.Update(tea.KeyMsg{Type: tea.KeyCtrlC})

	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestApp_SpinnerTickIgnoredWhenIdle(t *testing.T) {
	app := newTestApp(t, &MockAgentService{})

	_, cmd := app.Update(app.spinner.Tick())

	assert.Nil(t, cmd)
}
