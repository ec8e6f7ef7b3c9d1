package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
)

// errBatchFailed is returned when at least one batch item failed.
var errBatchFailed = errors.New("batch had failures")

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

// printItem renders one batch item with its details.
func printItem(cmd *cobra.Command, it domain.ItemResult) {
	if !it.OK() {
		cmd.Printf("  %s %s: %v\n", failStyle.Render("✗"), it.Item, it.Err)
		return
	}
	cmd.Printf("  %s %s %s\n", okStyle.Render("✓"), it.Item,
		mutedStyle.Render("("+it.Duration.Round(time.Millisecond).String()+")"))
	for _, d := range it.Details {
		cmd.Printf("      %s\n", d)
	}
}

// printReport prints every item and the summary line. It returns
// errBatchFailed when any item failed so the exit status reflects it.
func printReport(cmd *cobra.Command, report *domain.BatchReport) error {
	if len(report.Items) == 0 {
		cmd.Println("Nothing to process.")
		return nil
	}
	cmd.Println(headingStyle.Render(fmt.Sprintf("Processing %d %s:", len(report.Items), report.Operation)))
	for _, it := range report.Items {
		printItem(cmd, it)
	}
	cmd.Println()
	cmd.Printf("Summary: %s\n", report.Summary())
	if report.Failed() > 0 {
		return fmt.Errorf("%w: %d of %d items failed", errBatchFailed, report.Failed(), len(report.Items))
	}
	return nil
}

type itemJSON struct {
	Item     string   `json:"item"`
	OK       bool     `json:"ok"`
	Error    string   `json:"error,omitempty"`
	Details  []string `json:"details,omitempty"`
	Duration string   `json:"duration"`
}

type reportJSON struct {
	Operation string     `json:"operation"`
	RunID     string     `json:"run_id,omitempty"`
	Succeeded int        `json:"succeeded"`
	Failed    int        `json:"failed"`
	Items     []itemJSON `json:"items"`
}

func printReportJSON(cmd *cobra.Command, report *domain.BatchReport) error {
	out := reportJSON{
		Operation: report.Operation,
		RunID:     report.RunID,
		Succeeded: report.Succeeded(),
		Failed:    report.Failed(),
		Items:     make([]itemJSON, len(report.Items)),
	}
	for i, it := range report.Items {
		out.Items[i] = itemJSON{
			Item:     it.Item,
			OK:       it.OK(),
			Details:  it.Details,
			Duration: it.Duration.String(),
		}
		if it.Err != nil {
			out.Items[i].Error = it.Err.Error()
		}
	}
	if err := printJSON(cmd, out); err != nil {
		return err
	}
	if report.Failed() > 0 {
		return fmt.Errorf("%w: %d of %d items failed", errBatchFailed, report.Failed(), len(report.Items))
	}
	return nil
}

// oneLine collapses whitespace so text fits a single output line.
func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
