// Package cli is the cobra command tree for the quarry binary.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driving"
	"github.com/custodia-labs/quarry/internal/logger"
)

// version is set at build time via SetVersion.
var version = "dev"

// Global flags.
var (
	verbose       bool
	configDir     string
	workspaceRoot string
	checkAI       bool
)

// Services used by the commands. Set by the bootstrap before a command runs.
var (
	ingestService   driving.DocumentIngestService
	tabularService  driving.TabularService
	indexService    driving.IndexService
	registryService driving.RegistryService
	searchService   driving.SearchService
	queryService    driving.QueryService
	agentService    driving.AgentService
	settingsService driving.SettingsService
	workspace       domain.WorkspaceSettings
)

// annotationNoServices marks commands that run without bootstrapping.
const annotationNoServices = "quarry/no-services"

// Options carries the global flags to the bootstrap.
type Options struct {
	Verbose   bool
	ConfigDir string
	Workspace string
	// CheckAI pings the configured AI providers before any command runs.
	CheckAI bool
}

// Services is everything a command may need.
type Services struct {
	Ingest    driving.DocumentIngestService
	Tabular   driving.TabularService
	Index     driving.IndexService
	Registry  driving.RegistryService
	Search    driving.SearchService
	Query     driving.QueryService
	Agent     driving.AgentService
	Settings  driving.SettingsService
	Workspace domain.WorkspaceSettings

	// Close releases stores and clients. Optional.
	Close func() error
}

// Bootstrap builds the services from the global flags.
type Bootstrap func(ctx context.Context, opts Options) (*Services, error)

var (
	bootstrap     Bootstrap
	closeServices func() error
)

var rootCmd = &cobra.Command{
	Use:   "quarry",
	Short: "Turn documents and spreadsheets into a knowledge base an agent can query",
	Long: `quarry converts PDFs and Word documents into retrieval-ready chunks with
stable chunk IDs, converts CSV and Excel files into SQLite databases, keeps a
registry describing those databases, and answers questions with an LLM agent
that can search the chunks and run SQL.

Drop documents into docs/unprocessed and tabular files into data/unprocessed
under the workspace, then run:

  quarry ingest docs
  quarry ingest data
  quarry index
  quarry ask "What was revenue in Q3?"`,
	SilenceUsage:      true,
	PersistentPreRunE: runBootstrap,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug output")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.quarry)")
	rootCmd.PersistentFlags().StringVar(&workspaceRoot, "workspace", "", "workspace root (overrides workspace.root)")
	rootCmd.PersistentFlags().BoolVar(&checkAI, "check-ai", false, "verify the AI providers are reachable at startup")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// SetServices installs the services the commands run against.
func SetServices(s *Services) {
	if s == nil {
		s = &Services{}
	}
	ingestService = s.Ingest
	tabularService = s.Tabular
	indexService = s.Index
	registryService = s.Registry
	searchService = s.Search
	queryService = s.Query
	agentService = s.Agent
	settingsService = s.Settings
	workspace = s.Workspace
	closeServices = s.Close
}

// Execute runs the root command. b may be nil when services are set directly.
func Execute(ctx context.Context, b Bootstrap) error {
	bootstrap = b
	err := rootCmd.ExecuteContext(ctx)
	if closeServices != nil {
		err = errors.Join(err, closeServices())
		closeServices = nil
	}
	return err
}

func runBootstrap(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if bootstrap == nil || cmd.Annotations[annotationNoServices] == "true" {
		return nil
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, err := bootstrap(ctx, Options{
		Verbose:   verbose,
		ConfigDir: configDir,
		Workspace: workspaceRoot,
		CheckAI:   checkAI,
	})
	if err != nil {
		return err
	}
	SetServices(svc)
	return nil
}

// commandContext returns the command's context, or Background when run
// outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
