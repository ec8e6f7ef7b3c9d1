package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
	"github.com/custodia-labs/quarry/internal/core/ports/driving"
	"github.com/custodia-labs/quarry/internal/logger"
)

// Ensure AgentService implements the interface.
var _ driving.AgentService = (*AgentService)(nil)

// Tool names offered to the model.
const (
	ToolHybridSearch = "hybrid_search"
	ToolSQLQuery     = "sql_query"
)

var chunkIDPattern = regexp.MustCompile(`\b[A-Z]{3}[0-9]{3}\b`)

// AgentService answers questions with a tool-calling loop over document
// search and SQL.
type AgentService struct {
	model       driven.ChatModel
	search      driving.SearchService
	query       driving.QueryService
	registry    driving.RegistryService
	prompts     driven.PromptStore
	maxSteps    int
	searchLimit int
}

// NewAgentService creates a new agent service.
func NewAgentService(
	model driven.ChatModel,
	search driving.SearchService,
	query driving.QueryService,
	registry driving.RegistryService,
	settings domain.AgentSettings,
	searchLimit int,
) *AgentService {
	maxSteps := settings.MaxSteps
	if maxSteps <= 0 {
		maxSteps = domain.DefaultAgentMaxSteps
	}
	if searchLimit <= 0 {
		searchLimit = domain.DefaultSearchLimit
	}
	return &AgentService{
		model:       model,
		search:      search,
		query:       query,
		registry:    registry,
		maxSteps:    maxSteps,
		searchLimit: searchLimit,
	}
}

// SetPromptStore sets the prompt store for the system prompt.
func (s *AgentService) SetPromptStore(store driven.PromptStore) {
	s.prompts = store
}

// Tools returns the tool specifications offered to the model.
func Tools() []domain.ToolSpec {
	return []domain.ToolSpec{
		{
			Name:        ToolHybridSearch,
			Description: "Search the parsed document collection with combined keyword and semantic search. Returns chunks tagged with their CHUNK_ID.",
			Parameters: json.RawMessage(`{
  "type": "object",
  "properties": {
    "query": {"type": "string", "description": "What to look for"},
    "limit": {"type": "integer", "description": "Maximum number of chunks (default 5)"}
  },
  "required": ["query"]
}`),
		},
		{
			Name:        ToolSQLQuery,
			Description: "Run one read-only SELECT statement against a registered database.",
			Parameters: json.RawMessage(`{
  "type": "object",
  "properties": {
    "database": {"type": "string", "description": "Database name from the catalogue"},
    "sql": {"type": "string", "description": "A single SELECT statement"}
  },
  "required": ["sql"]
}`),
		},
	}
}

// SystemPrompt renders the agent's system prompt with the database catalogue.
func (s *AgentService) SystemPrompt(ctx context.Context) (string, error) {
	catalogue := ""
	if s.registry != nil {
		text, err := s.registry.RenderPrompt(ctx)
		if err != nil {
			return "", fmt.Errorf("render registry: %w", err)
		}
		catalogue = text
	}
	return renderPrompt(driven.PromptAgentSystem, loadPrompt(s.prompts, driven.PromptAgentSystem),
		struct{ Databases string }{catalogue})
}

// Ask answers a single question.
func (s *AgentService) Ask(ctx context.Context, question string) (*domain.AgentResult, error) {
	if s.model == nil {
		return nil, domain.ErrLLMUnavailable
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: empty question", domain.ErrInvalidInput)
	}

	logger.Section("Agent")
	system, err := s.SystemPrompt(ctx)
	if err != nil {
		return nil, err
	}

	messages := []domain.Message{
		{Role: domain.RoleSystem, Content: system},
		{Role: domain.RoleUser, Content: question},
	}
	result := &domain.AgentResult{Question: question}
	seen := make(map[string]bool)
	tools := Tools()

	for step := 0; ; step++ {
		offered := tools
		if step >= s.maxSteps {
			logger.Warn("Agent reached %d steps, asking for a final answer", s.maxSteps)
			messages = append(messages, domain.Message{
				Role:    domain.RoleUser,
				Content: "Stop using tools and give your final JSON answer with what you have.",
			})
			offered = nil
		}

		completion, err := s.model.Complete(ctx, messages, offered)
		if err != nil {
			return nil, fmt.Errorf("model step %d: %w", step+1, err)
		}
		result.Trace.Steps = step + 1
		reply := completion.Message
		reply.Role = domain.RoleAssistant
		messages = append(messages, reply)

		if len(reply.ToolCalls) == 0 || offered == nil {
			result.Answer = parseAnswer(reply.Content, seen)
			return result, nil
		}

		for _, call := range reply.ToolCalls {
			logger.Debug("Tool call %s(%s)", call.Name, call.Arguments)
			result.Trace.ToolCalls = append(result.Trace.ToolCalls, call.Name)
			messages = append(messages, domain.Message{
				Role:       domain.RoleTool,
				ToolCallID: call.ID,
				Content:    s.runTool(ctx, call, seen),
			})
		}
	}
}

// AskAll answers each question in turn.
func (s *AgentService) AskAll(ctx context.Context, questions []string) []domain.AgentResult {
	results := make([]domain.AgentResult, 0, len(questions))
	for _, q := range questions {
		res, err := s.Ask(ctx, q)
		if err != nil {
			results = append(results, domain.AgentResult{Question: q, Error: err.Error()})
			continue
		}
		results = append(results, *res)
	}
	return results
}

// runTool executes one tool call. Failures are reported to the model as
// text so it can correct itself.
func (s *AgentService) runTool(ctx context.Context, call domain.ToolCall, seen map[string]bool) string {
	switch call.Name {
	case ToolHybridSearch:
		var args struct {
			Query string `json:"query"`
			Limit int    `json:"limit"`
		}
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return fmt.Sprintf("Error: invalid arguments: %v", err)
		}
		if args.Limit <= 0 {
			args.Limit = s.searchLimit
		}
		if s.search == nil {
			return "Error: document search is not available."
		}
		results, err := s.search.Search(ctx, args.Query, domain.SearchOptions{Limit: args.Limit})
		if err != nil {
			return fmt.Sprintf("Search Error: %v", err)
		}
		for _, r := range results {
			seen[r.Chunk.ChunkID] = true
		}
		return FormatSearchResults(results)

	case ToolSQLQuery:
		var args struct {
			Database string `json:"database"`
			SQL      string `json:"sql"`
		}
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return fmt.Sprintf("Error: invalid arguments: %v", err)
		}
		if s.query == nil {
			return "Error: SQL is not available."
		}
		if err := CheckReadOnly(args.SQL); err != nil {
			return "Error: Only SELECT queries are allowed. Please provide a SELECT query."
		}
		result, err := s.query.Execute(ctx, args.Database, args.SQL)
		if err != nil {
			return fmt.Sprintf("SQL Error: %v\n\nQuery attempted:\n%s", err, args.SQL)
		}
		return FormatQueryResult(result)

	default:
		return fmt.Sprintf("Error: unknown tool %q", call.Name)
	}
}

// parseAnswer reads the model's final JSON answer. Plain-text replies are
// kept as the response. Citations are limited to chunk IDs the search
// tool actually returned.
func parseAnswer(content string, seen map[string]bool) *domain.AgentResponse {
	var answer domain.AgentResponse
	if raw := extractJSONObject(content); raw == "" || json.Unmarshal([]byte(raw), &answer) != nil || answer.Response == "" {
		answer = domain.AgentResponse{
			Response:  strings.TrimSpace(content),
			Citations: chunkIDPattern.FindAllString(content, -1),
		}
	}

	cited := make(map[string]bool)
	filtered := make([]string, 0, len(answer.Citations))
	for _, id := range answer.Citations {
		id = strings.Trim(strings.TrimSpace(id), "[]")
		if seen[id] && !cited[id] {
			filtered = append(filtered, id)
			cited[id] = true
		}
	}
	answer.Citations = filtered
	return &answer
}

// extractJSONObject returns the outermost {...} span, ignoring code fences.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
