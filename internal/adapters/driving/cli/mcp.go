package cli

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/quarry/internal/adapters/driving/mcp"
)

var (
	mcpPort            int
	mcpHost            string
	mcpShutdownTimeout time.Duration
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Model Context Protocol integration",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve quarry's tools to an MCP client",
	Long: `Expose hybrid_search over the parsed documents, sql_query against the
registered databases, and list_databases to an external assistant.

The server speaks JSON-RPC over stdio unless --port is given, in which case
it serves streamable HTTP on --host:--port.

  quarry mcp serve
  quarry mcp serve --port 8080
  quarry mcp serve --host 0.0.0.0 --port 8080

To register quarry with a desktop assistant, point it at the binary:

  {
    "mcpServers": {
      "quarry": {
        "command": "/path/to/quarry",
        "args": ["mcp", "serve", "--workspace", "/path/to/workspace"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntVarP(&mcpPort, "port", "p", 0, "HTTP port (0 serves stdio)")
	mcpServeCmd.Flags().StringVar(&mcpHost, "host", "localhost", "HTTP bind host")
	mcpServeCmd.Flags().DurationVar(&mcpShutdownTimeout, "shutdown-timeout", mcp.DefaultShutdownTimeout,
		"how long to wait for open HTTP sessions on exit")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	if mcpPort < 0 || mcpPort > 65535 {
		return fmt.Errorf("invalid port %d", mcpPort)
	}

	server, err := mcp.NewServer(&mcp.Ports{
		Search:   searchService,
		Query:    queryService,
		Registry: registryService,
	}, mcp.WithShutdownTimeout(mcpShutdownTimeout))
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	if mcpPort == 0 {
		return server.Run(ctx)
	}

	addr := net.JoinHostPort(mcpHost, strconv.Itoa(mcpPort))
	// stdout stays clean in stdio mode, so this only prints for HTTP
	fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://%s\n", addr)
	return server.RunHTTP(ctx, addr)
}
