package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

var askJSON bool

// stdinIsTerminal reports whether questions are typed interactively.
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

var askCmd = &cobra.Command{
	Use:   "ask [question...]",
	Short: "Answer questions from your documents and databases",
	Long: `Asks the agent one or more questions. The agent searches the parsed
documents and queries the registered databases, then answers with the chunk
IDs it relied on.

Each argument is a separate question. Without arguments, questions are read
one per line from standard input; on a terminal you are prompted for them
until you enter an empty line.

Examples:
  quarry ask "What was revenue in Q3?"
  quarry ask "Who signed the contract?" "How many expense rows are there?"
  quarry ask < questions.txt`,
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output answers as JSON")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if agentService == nil {
		return errors.New("agent not configured: set llm.api_key or OPENAI_API_KEY")
	}

	if len(args) == 0 && stdinIsTerminal() && !askJSON {
		return askInteractive(cmd)
	}

	questions := args
	if len(questions) == 0 {
		questions = readQuestions(cmd.InOrStdin())
	}
	if len(questions) == 0 {
		return fmt.Errorf("%w: no questions given", domain.ErrInvalidInput)
	}

	results := agentService.AskAll(commandContext(cmd), questions)
	if askJSON {
		if err := printJSON(cmd, results); err != nil {
			return err
		}
	} else {
		for i, r := range results {
			if len(results) > 1 {
				cmd.Println(headingStyle.Render(fmt.Sprintf("Q%d: %s", i+1, r.Question)))
			}
			printAnswer(cmd, r)
		}
	}

	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d question(s) could not be answered", failed, len(results))
	}
	return nil
}

// readQuestions returns the non-blank lines of r.
func readQuestions(r io.Reader) []string {
	var out []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if q := strings.TrimSpace(scanner.Text()); q != "" {
			out = append(out, q)
		}
	}
	return out
}

func askInteractive(cmd *cobra.Command) error {
	reader := bufio.NewReader(cmd.InOrStdin())
	cmd.Println("Ask a question (empty line to quit).")
	for {
		cmd.Print("> ")
		line, err := reader.ReadString('\n')
		question := strings.TrimSpace(line)
		if question == "" {
			return nil
		}

		res, askErr := agentService.Ask(commandContext(cmd), question)
		if askErr != nil {
			cmd.Println(failStyle.Render("Error: " + askErr.Error()))
		} else {
			printAnswer(cmd, *res)
		}
		if err != nil {
			return nil
		}
	}
}

func printAnswer(cmd *cobra.Command, r domain.AgentResult) {
	if !r.OK() {
		cmd.Println(failStyle.Render("Error: " + r.Error))
		cmd.Println()
		return
	}
	cmd.Println(r.Answer.Response)
	if len(r.Answer.Citations) > 0 {
		cmd.Println(okStyle.Render("Sources: " + strings.Join(r.Answer.Citations, ", ")))
	}
	if r.Answer.DataSummary != "" {
		cmd.Println(mutedStyle.Render("Data: " + r.Answer.DataSummary))
	}
	cmd.Println()
}
