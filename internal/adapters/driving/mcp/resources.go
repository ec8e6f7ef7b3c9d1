package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

const (
	uriScheme = "quarry://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "registry",
		Name:        "registry",
		Description: "The database registry with table schemas",
		MIMEType:    "application/json",
	}, s.handleRegistryResource)

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "registry/prompt",
		Name:        "registry-prompt",
		Description: "The registry rendered as the agent's database catalogue",
		MIMEType:    "text/markdown",
	}, s.handleRegistryPromptResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "databases/{name}",
		Name:        "database",
		Description: "Registry entry for one database",
		MIMEType:    "application/json",
	}, s.handleDatabaseResource)
}

// handleRegistryResource returns every registry entry.
func (s *Server) handleRegistryResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	entries := []domain.DatabaseEntry{}
	if s.ports.Registry != nil {
		listed, err := s.ports.Registry.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing registry: %w", err)
		}
		if listed != nil {
			entries = listed
		}
	}
	return jsonResource(req.Params.URI, domain.Registry{Databases: entries})
}

// handleRegistryPromptResource returns the rendered catalogue.
func (s *Server) handleRegistryPromptResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	text := ""
	if s.ports.Registry != nil {
		rendered, err := s.ports.Registry.RenderPrompt(ctx)
		if err != nil {
			return nil, fmt.Errorf("rendering registry: %w", err)
		}
		text = rendered
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      req.Params.URI,
			MIMEType: "text/markdown",
			Text:     text,
		}},
	}, nil
}

// handleDatabaseResource returns the entry for one database.
func (s *Server) handleDatabaseResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Registry == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	// quarry://databases/{name}
	name := extractDatabaseName(req.Params.URI)
	if name == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	entry, err := s.ports.Registry.Get(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting database %s: %w", name, err)
	}
	return jsonResource(req.Params.URI, entry)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractDatabaseName extracts the name from quarry://databases/{name}.
func extractDatabaseName(uri string) string {
	const prefix = uriScheme + "databases/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	name := strings.TrimPrefix(uri, prefix)
	if strings.Contains(name, "/") {
		return ""
	}
	return name
}
