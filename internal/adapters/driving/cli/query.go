package cli

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

var (
	queryDatabase string
	queryJSON     bool
	queryList     bool
)

var queryCmd = &cobra.Command{
	Use:   "query [sql]",
	Short: "Run a read-only SQL query against a database",
	Long: `Runs one SELECT statement against a database built by 'quarry ingest data'.
Statements that would modify the database are refused. When exactly one
database is registered, --database may be omitted.

Examples:
  quarry query -d financials 'SELECT COUNT(*) FROM "Revenue"'
  quarry query --list`,
	Args: func(cmd *cobra.Command, args []string) error {
		if queryList {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&queryDatabase, "database", "d", "", "database name")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output the result as JSON")
	queryCmd.Flags().BoolVar(&queryList, "list", false, "list queryable databases")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}
	ctx := commandContext(cmd)

	if queryList {
		names, err := queryService.Databases(ctx)
		if err != nil {
			return fmt.Errorf("failed to list databases: %w", err)
		}
		if queryJSON {
			if names == nil {
				names = []string{}
			}
			return printJSON(cmd, names)
		}
		if len(names) == 0 {
			cmd.Println("No databases registered.")
		}
		for _, n := range names {
			cmd.Println(n)
		}
		return nil
	}

	res, err := queryService.Execute(ctx, queryDatabase, args[0])
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	if queryJSON {
		if res.Rows == nil {
			res.Rows = [][]any{}
		}
		return printJSON(cmd, res)
	}
	return outputQueryTable(cmd, res)
}

func outputQueryTable(cmd *cobra.Command, res *domain.QueryResult) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(res.Columns...)
	for _, row := range res.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatCell(v)
		}
		t.Row(cells...)
	}
	cmd.Println(t.String())

	summary := fmt.Sprintf("%d row(s) from %s", len(res.Rows), res.Database)
	if res.Truncated {
		summary += " (truncated)"
	}
	cmd.Println(mutedStyle.Render(summary))
	return nil
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	case float64:
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprint(x)
	}
}
