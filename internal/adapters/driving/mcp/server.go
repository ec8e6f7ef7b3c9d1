package mcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/quarry/internal/logger"
)

// Version is reported to clients during initialisation.
const Version = "0.1.0"

// DefaultShutdownTimeout bounds how long the HTTP transport waits for open
// sessions when the context is cancelled.
const DefaultShutdownTimeout = 5 * time.Second

const instructions = `quarry answers questions over a private document and spreadsheet collection.
Use hybrid_search for narrative content; cite results by their chunk_id.
Use list_databases before sql_query to learn table and column names.
sql_query accepts a single read-only SELECT statement.`

// Server exposes quarry's search and query tools over MCP.
type Server struct {
	ports           *Ports
	server          *mcp.Server
	shutdownTimeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithShutdownTimeout overrides DefaultShutdownTimeout. Non-positive values
// are ignored.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// NewServer validates ports and registers every tool and resource.
func NewServer(ports *Ports, opts ...Option) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	s := &Server{
		ports:           ports,
		shutdownTimeout: DefaultShutdownTimeout,
		server: mcp.NewServer(
			&mcp.Implementation{Name: "quarry", Version: Version},
			&mcp.ServerOptions{Instructions: instructions},
		),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerTools()
	s.registerResources()
	return s, nil
}

// Run serves a single client over stdio until ctx is cancelled or the
// client disconnects.
func (s *Server) Run(ctx context.Context) error {
	logger.Debug("MCP server on stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Handler returns the streamable HTTP handler. Every request shares the
// same underlying server.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)
}

// RunHTTP listens on addr and serves streamable HTTP until ctx is cancelled.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled. A clean shutdown
// returns nil.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopped := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		stopped <- srv.Shutdown(shutdownCtx)
	}()

	logger.Info("MCP server listening on %s", ln.Addr())
	err := srv.Serve(ln)
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	if err := <-stopped; err != nil {
		logger.Warn("MCP server shutdown: %v", err)
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("MCP server stopped")
	return nil
}
