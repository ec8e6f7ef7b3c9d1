package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/quarry/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/quarry/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/quarry/internal/adapters/driving/tui/components/transcript"
	"github.com/custodia-labs/quarry/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/quarry/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/quarry/internal/adapters/driving/tui/styles"
)

// App is the chat application following the Elm architecture.
// It implements tea.Model for use with Bubbletea.
type App struct {
	ports  *Ports
	ctx    context.Context
	styles *styles.Styles
	keymap *keymap.KeyMap

	input      *input.QuestionInput
	transcript *transcript.Transcript
	statusBar  *status.Bar
	spinner    spinner.Model

	databases []string

	// seq identifies the question in flight; answers for older ones are dropped.
	seq     int
	pending int
	cancel  context.CancelFunc

	started time.Time
	err     error

	width  int
	height int
	ready  bool
}

// Ensure App implements tea.Model.
var _ tea.Model = (*App)(nil)

// NewApp creates a new chat application with the given ports.
func NewApp(ports *Ports) (*App, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("creating app: %w", err)
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = s.Answer

	return &App{
		ports:      ports,
		ctx:        context.Background(),
		styles:     s,
		keymap:     km,
		input:      input.NewQuestionInput(s),
		transcript: transcript.New(s),
		statusBar:  status.NewBar(s, km),
		spinner:    sp,
		pending:    -1,
	}, nil
}

// WithContext sets the context questions are asked under.
func (a *App) WithContext(ctx context.Context) *App {
	a.ctx = ctx
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle("quarry chat"),
		a.input.Init(),
		a.loadCatalogue(),
	)
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.SetDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case messages.QuestionSubmitted:
		return a, a.ask(msg)

	case messages.AnswerReceived:
		if msg.Seq != a.seq || a.pending < 0 {
			return a, nil
		}
		a.transcript.Resolve(a.pending, msg.Result, msg.Err)
		a.pending = -1
		a.cancel = nil
		a.statusBar.SetActivity("")
		if msg.Failed() {
			a.err = msg.Err
			a.statusBar.Fail(failureText(msg))
		} else {
			a.err = nil
			a.statusBar.Record(msg.Result.Trace, time.Since(a.started))
		}
		return a, a.input.Focus()

	case messages.CatalogueLoaded:
		if msg.Err == nil {
			a.databases = msg.Databases
		}
		return a, nil

	case spinner.TickMsg:
		if !a.Busy() {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		a.statusBar.SetActivity(a.spinner.View())
		return a, cmd
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := msg.String()
	switch {
	case keymap.Matches(k, a.keymap.Quit):
		a.stop()
		return a, tea.Quit

	case keymap.Matches(k, a.keymap.Cancel):
		if a.Busy() {
			a.stop()
			a.statusBar.SetState(status.StateReady)
			return a, a.input.Focus()
		}
		a.input.Reset()
		return a, nil

	case keymap.Matches(k, a.keymap.Clear):
		if !a.Busy() {
			a.transcript.Clear()
			a.statusBar.Clear()
		}
		return a, nil

	case keymap.Matches(k, a.keymap.ScrollUp), keymap.Matches(k, a.keymap.ScrollDown):
		var cmd tea.Cmd
		a.transcript, cmd = a.transcript.Update(msg)
		return a, cmd

	case keymap.Matches(k, a.keymap.Send):
		question := strings.TrimSpace(a.input.Value())
		if question == "" || a.Busy() {
			return a, nil
		}
		a.input.Reset()
		a.seq++
		seq := a.seq
		return a, func() tea.Msg {
			return messages.QuestionSubmitted{Seq: seq, Question: question}
		}
	}

	if a.Busy() {
		return a, nil
	}
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

// ask records the question and starts the agent in the background.
func (a *App) ask(msg messages.QuestionSubmitted) tea.Cmd {
	if msg.Seq != a.seq {
		return nil
	}
	a.pending = a.transcript.Add(msg.Question)
	a.input.Blur()
	a.statusBar.SetState(status.StateThinking)
	a.started = time.Now()

	ctx, cancel := context.WithCancel(a.ctx)
	a.cancel = cancel
	agent := a.ports.Agent
	return tea.Batch(
		func() tea.Msg {
			result, err := agent.Ask(ctx, msg.Question)
			return messages.AnswerReceived{Seq: msg.Seq, Result: result, Err: err}
		},
		a.spinner.Tick,
	)
}

// stop abandons the question in flight, if any.
func (a *App) stop() {
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.pending >= 0 {
		a.transcript.Resolve(a.pending, nil, errCancelled)
		a.pending = -1
	}
	a.seq++
	a.statusBar.SetActivity("")
}

func (a *App) loadCatalogue() tea.Cmd {
	if a.ports.Query == nil {
		return nil
	}
	query := a.ports.Query
	ctx := a.ctx
	return func() tea.Msg {
		names, err := query.Databases(ctx)
		return messages.CatalogueLoaded{Databases: names, Err: err}
	}
}

func failureText(msg messages.AnswerReceived) string {
	if msg.Err != nil {
		return msg.Err.Error()
	}
	if msg.Result != nil && msg.Result.Error != "" {
		return msg.Result.Error
	}
	return "no answer"
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Initialising..."
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		a.header(),
		a.transcript.View(),
		a.input.View(),
		a.statusBar.View(),
	)
}

func (a *App) header() string {
	title := a.styles.Title.Render("quarry chat")
	if len(a.databases) == 0 {
		return title
	}
	return title + a.styles.Muted.Render("  databases: "+strings.Join(a.databases, ", "))
}

// SetDimensions sets the terminal dimensions and lays out the components.
func (a *App) SetDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true

	// header, input box (3 lines) and status bar
	a.transcript.SetSize(width, height-5)
	a.input.SetWidth(width)
	a.statusBar.SetWidth(width)
}

// Busy reports whether a question is waiting for an answer.
func (a *App) Busy() bool {
	return a.pending >= 0
}

// Transcript returns the conversation so far.
func (a *App) Transcript() []transcript.Turn {
	return a.transcript.Turns()
}

// Databases returns the database names shown in the header.
func (a *App) Databases() []string {
	return a.databases
}

// Err returns the last error that occurred.
func (a *App) Err() error {
	return a.err
}

// Ready returns whether the app has been sized.
func (a *App) Ready() bool {
	return a.ready
}

// Run starts the chat in the alternate screen.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
