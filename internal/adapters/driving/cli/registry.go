package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

var (
	registryJSON  bool
	registryYAML  bool
	registryForce bool
	scaffoldAdd   bool
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Manage the database registry",
	Long: `The registry describes every SQLite database built from tabular files:
its ID (DB001, DB002, ...), source file, tables and column schemas. The agent
reads it to decide which database and table to query.`,
}

var registryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered databases",
	Args:  cobra.NoArgs,
	RunE:  runRegistryList,
}

var registryShowCmd = &cobra.Command{
	Use:   "show [database]",
	Short: "Show a registry entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegistryShow,
}

var registryAddCmd = &cobra.Command{
	Use:   "add [entry-file]",
	Short: "Add an entry from a JSON or YAML file",
	Long: `Adds the entry in the given file to the registry. The entry is checked
against its database first; entries with errors are refused unless --force is
given. A missing database_id is assigned the next free one.`,
	Args: cobra.ExactArgs(1),
	RunE: runRegistryAdd,
}

var registryRemoveCmd = &cobra.Command{
	Use:   "remove [database]",
	Short: "Remove a registry entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegistryRemove,
}

var registryValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the registry against the databases",
	Args:  cobra.NoArgs,
	RunE:  runRegistryValidate,
}

var registryScaffoldCmd = &cobra.Command{
	Use:   "scaffold [source-file]",
	Short: "Draft an entry from a converted database",
	Long: `Drafts a registry entry for the database built from source-file, with
every table and column filled in from the database itself. Descriptions are
left empty for you to write. Use --add to register the draft directly.`,
	Args: cobra.ExactArgs(1),
	RunE: runRegistryScaffold,
}

var registryRenderCmd = &cobra.Command{
	Use:   "render",
	Short: "Print the registry as the agent sees it",
	Args:  cobra.NoArgs,
	RunE:  runRegistryRender,
}

func init() {
	registryListCmd.Flags().BoolVar(&registryJSON, "json", false, "output as JSON")
	registryShowCmd.Flags().BoolVar(&registryYAML, "yaml", false, "output as YAML instead of JSON")
	registryScaffoldCmd.Flags().BoolVar(&registryYAML, "yaml", false, "output as YAML instead of JSON")
	registryScaffoldCmd.Flags().BoolVar(&scaffoldAdd, "add", false, "add the draft to the registry")
	registryScaffoldCmd.Flags().BoolVar(&registryForce, "force", false, "add even when the entry has errors")
	registryAddCmd.Flags().BoolVar(&registryForce, "force", false, "add even when the entry has errors")
	registryValidateCmd.Flags().BoolVar(&registryJSON, "json", false, "output issues as JSON")

	registryCmd.AddCommand(registryListCmd)
	registryCmd.AddCommand(registryShowCmd)
	registryCmd.AddCommand(registryAddCmd)
	registryCmd.AddCommand(registryRemoveCmd)
	registryCmd.AddCommand(registryValidateCmd)
	registryCmd.AddCommand(registryScaffoldCmd)
	registryCmd.AddCommand(registryRenderCmd)
	rootCmd.AddCommand(registryCmd)
}

func requireRegistry() error {
	if registryService == nil {
		return errors.New("registry service not configured")
	}
	return nil
}

func runRegistryList(cmd *cobra.Command, _ []string) error {
	if err := requireRegistry(); err != nil {
		return err
	}
	entries, err := registryService.List(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to list registry: %w", err)
	}
	if registryJSON {
		if entries == nil {
			entries = []domain.DatabaseEntry{}
		}
		return printJSON(cmd, entries)
	}
	if len(entries) == 0 {
		cmd.Println("No databases registered.")
		return nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "DATABASE", "SOURCE", "TABLES")
	for _, e := range entries {
		names := make([]string, len(e.Tables))
		for i, tbl := range e.Tables {
			names[i] = tbl.TableName
		}
		t.Row(e.DatabaseID, e.DatabaseName, e.SourceFile, strings.Join(names, ", "))
	}
	cmd.Println(t.String())
	cmd.Printf("%d database(s)\n", len(entries))
	return nil
}

func runRegistryShow(cmd *cobra.Command, args []string) error {
	if err := requireRegistry(); err != nil {
		return err
	}
	entry, err := registryService.Get(commandContext(cmd), args[0])
	if err != nil {
		return fmt.Errorf("failed to get %s: %w", args[0], err)
	}
	return printEntry(cmd, entry)
}

func printEntry(cmd *cobra.Command, entry *domain.DatabaseEntry) error {
	if !registryYAML {
		return printJSON(cmd, entry)
	}
	data, err := yaml.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}
	cmd.Print(string(data))
	return nil
}

func runRegistryAdd(cmd *cobra.Command, args []string) error {
	if err := requireRegistry(); err != nil {
		return err
	}
	entry, err := readEntryFile(args[0])
	if err != nil {
		return err
	}
	return addEntry(cmd, *entry)
}

func addEntry(cmd *cobra.Command, entry domain.DatabaseEntry) error {
	added, issues, err := registryService.Add(commandContext(cmd), entry, registryForce)
	printIssues(cmd, issues)
	if err != nil {
		if errors.Is(err, domain.ErrSchemaMismatch) {
			cmd.Println("Fix the entry or pass --force to add it anyway.")
		}
		return fmt.Errorf("failed to add %s: %w", entry.DatabaseName, err)
	}
	cmd.Printf("Registered %s as %s.\n", added.DatabaseName, added.DatabaseID)
	return nil
}

// readEntryFile decodes an entry from JSON, or YAML for .yaml/.yml files.
func readEntryFile(path string) (*domain.DatabaseEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var entry domain.DatabaseEntry
	// JSON is a subset of YAML, so the YAML decoder reads both
	if err := yaml.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, filepath.Base(path), err)
	}
	if entry.DatabaseName == "" {
		return nil, fmt.Errorf("%w: %s has no database_name", domain.ErrInvalidInput, filepath.Base(path))
	}
	return &entry, nil
}

func runRegistryRemove(cmd *cobra.Command, args []string) error {
	if err := requireRegistry(); err != nil {
		return err
	}
	if err := registryService.Remove(commandContext(cmd), args[0]); err != nil {
		return fmt.Errorf("failed to remove %s: %w", args[0], err)
	}
	cmd.Printf("Removed %s.\n", args[0])
	return nil
}

func runRegistryValidate(cmd *cobra.Command, _ []string) error {
	if err := requireRegistry(); err != nil {
		return err
	}
	issues, err := registryService.Validate(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to validate registry: %w", err)
	}
	if registryJSON {
		if issues == nil {
			issues = []domain.RegistryIssue{}
		}
		if err := printJSON(cmd, issues); err != nil {
			return err
		}
	} else if len(issues) == 0 {
		cmd.Println(okStyle.Render("Registry is valid."))
	} else {
		printIssues(cmd, issues)
	}
	if domain.HasErrors(issues) {
		return fmt.Errorf("%w: registry has errors", domain.ErrSchemaMismatch)
	}
	return nil
}

func printIssues(cmd *cobra.Command, issues []domain.RegistryIssue) {
	errCount := 0
	for _, issue := range issues {
		style := mutedStyle
		if issue.Severity == domain.SeverityError {
			style = failStyle
			errCount++
		}
		cmd.Println("  " + style.Render(issue.String()))
	}
	if len(issues) > 0 {
		cmd.Printf("%d error(s), %d warning(s)\n", errCount, len(issues)-errCount)
	}
}

func runRegistryScaffold(cmd *cobra.Command, args []string) error {
	if err := requireRegistry(); err != nil {
		return err
	}
	entry, err := registryService.Scaffold(commandContext(cmd), args[0])
	if err != nil {
		return fmt.Errorf("failed to scaffold %s: %w", args[0], err)
	}
	if scaffoldAdd {
		return addEntry(cmd, *entry)
	}
	return printEntry(cmd, entry)
}

func runRegistryRender(cmd *cobra.Command, _ []string) error {
	if err := requireRegistry(); err != nil {
		return err
	}
	text, err := registryService.RenderPrompt(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to render registry: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		cmd.Println("No databases registered.")
		return nil
	}
	cmd.Println(text)
	return nil
}
