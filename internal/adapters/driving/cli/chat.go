package cli

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/quarry/internal/adapters/driving/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the agent in a terminal UI",
	Long: `Launch an interactive chat with the agent. Every question is answered
with document search and SQL, and the answer lists the chunk IDs it used.

Controls:
  enter       Ask
  esc         Cancel the current question / clear the input
  pgup/pgdn   Scroll the transcript
  ctrl+l      Clear the transcript
  ctrl+c      Quit`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in chat: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
		}
	}()

	if agentService == nil {
		return errors.New("agent not configured: set llm.api_key or OPENAI_API_KEY")
	}

	app, err := tui.NewApp(&tui.Ports{Agent: agentService, Query: queryService})
	if err != nil {
		return fmt.Errorf("failed to create chat: %w", err)
	}
	app.WithContext(commandContext(cmd))

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat error: %w", err)
	}
	return nil
}
