package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

var ingestJSON bool

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Process files waiting in the inboxes",
	Long: `Process files waiting in the workspace inboxes.

Documents (docs/unprocessed) are parsed into raw-form and chunk-form JSON.
Tabular files (data/unprocessed) are converted into SQLite databases.
Successfully processed files move to the matching processed folder; a file
that fails stays where it is and the rest of the batch carries on.`,
}

var ingestDocsCmd = &cobra.Command{
	Use:   "docs [file...]",
	Short: "Parse documents into chunk-form files",
	Long: `Parses every PDF and DOCX in docs/unprocessed, or only the given files.
Each document gets a unique three-letter tag and its segments are numbered
XYZ001, XYZ002, ... in reading order.`,
	RunE: runIngestDocs,
}

var ingestDataCmd = &cobra.Command{
	Use:   "data [file...]",
	Short: "Convert CSV and Excel files into SQLite databases",
	Long: `Converts every CSV and XLSX file in data/unprocessed, or only the given files.
A CSV becomes one table named "data"; a workbook becomes one table per
non-empty sheet, named after the sheet. Converting again replaces the database.`,
	RunE: runIngestData,
}

func init() {
	ingestCmd.PersistentFlags().BoolVar(&ingestJSON, "json", false, "output the batch report as JSON")
	ingestCmd.AddCommand(ingestDocsCmd)
	ingestCmd.AddCommand(ingestDataCmd)
	rootCmd.AddCommand(ingestCmd)
}

func runIngestDocs(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("document ingest service not configured")
	}
	ctx := commandContext(cmd)

	var report *domain.BatchReport
	if len(args) == 0 {
		r, err := ingestService.ProcessInbox(ctx)
		if err != nil {
			return fmt.Errorf("ingest failed: %w", err)
		}
		report = r
	} else {
		report = &domain.BatchReport{Operation: "documents"}
		for _, path := range args {
			report.Items = append(report.Items, ingestService.ProcessFile(ctx, path))
		}
	}
	return outputReport(cmd, report)
}

func runIngestData(cmd *cobra.Command, args []string) error {
	if tabularService == nil {
		return errors.New("tabular service not configured")
	}
	ctx := commandContext(cmd)

	var report *domain.BatchReport
	if len(args) == 0 {
		r, err := tabularService.ConvertInbox(ctx)
		if err != nil {
			return fmt.Errorf("conversion failed: %w", err)
		}
		report = r
	} else {
		report = &domain.BatchReport{Operation: "data"}
		for _, path := range args {
			report.Items = append(report.Items, tabularService.ConvertFile(ctx, path))
		}
	}
	if err := outputReport(cmd, report); err != nil {
		return err
	}
	if !ingestJSON && report.Succeeded() > 0 {
		cmd.Println("Run 'quarry registry scaffold <file>' to describe new databases for the agent.")
	}
	return nil
}

func outputReport(cmd *cobra.Command, report *domain.BatchReport) error {
	if ingestJSON {
		return printReportJSON(cmd, report)
	}
	return printReport(cmd, report)
}
