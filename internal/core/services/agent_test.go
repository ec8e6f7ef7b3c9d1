package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

func toolCall(id, name, args string) domain.Message {
	return domain.Message{
		Role:      domain.RoleAssistant,
		ToolCalls: []domain.ToolCall{{ID: id, Name: name, Arguments: args}},
	}
}

func finalAnswer(content string) domain.Message {
	return domain.Message{Role: domain.RoleAssistant, Content: content}
}

func newTestAgent(t *testing.T, model *mockChatModel) (*AgentService, *mockRelationalStore) {
	t.Helper()
	search := NewSearchService(setupTestChunkStore(t), &mockSearchEngine{hits: createTestHits()}, nil, nil, domain.SearchModeTextOnly)
	query, relational := newTestQueryService(t, "sales")
	relational.result = &domain.QueryResult{Columns: []string{"total"}, Rows: [][]any{{int64(42)}}}
	registry, _, _, _ := newTestRegistryService(t)
	agent := NewAgentService(model, search, query, registry, domain.AgentSettings{MaxSteps: 4}, 2)
	return agent, relational
}

func TestAgentService_Ask_ToolLoop(t *testing.T) {
	model := &mockChatModel{replies: []domain.Message{
		toolCall("c1", ToolHybridSearch, `{"query": "revenue"}`),
		toolCall("c2", ToolSQLQuery, `{"database": "sales", "sql": "SELECT SUM(amount) AS total FROM data"}`),
		finalAnswer("```json\n{\"response\": \"Revenue grew; total is 42.\", \"citations\": [\"ABC001\", \"ZZZ999\", \"ABC001\"], \"data_summary\": \"total 42\"}\n```"),
	}}
	agent, relational := newTestAgent(t, model)

	res, err := agent.Ask(context.Background(), "How did revenue do?")

	require.NoError(t, err)
	require.True(t, res.OK())
	assert.Equal(t, "Revenue grew; total is 42.", res.Answer.Response)
	assert.Equal(t, []string{"ABC001"}, res.Answer.Citations)
	assert.Equal(t, "total 42", res.Answer.DataSummary)
	assert.Equal(t, 3, res.Trace.Steps)
	assert.Equal(t, []string{ToolHybridSearch, ToolSQLQuery}, res.Trace.ToolCalls)
	assert.Len(t, relational.queries, 1)

	last := model.received[2]
	search := last[3]
	assert.Equal(t, domain.RoleTool, search.Role)
	assert.Equal(t, "c1", search.ToolCallID)
	assert.True(t, strings.HasPrefix(search.Content, "[CHUNK_ID: ABC001]"))
	// limit defaults to the configured search limit
	assert.NotContains(t, search.Content, "DEF001")
	assert.Contains(t, last[5].Content, "Results (1 rows)")
}

func TestAgentService_Ask_SystemPromptListsDatabases(t *testing.T) {
	model := &mockChatModel{replies: []domain.Message{finalAnswer(`{"response": "none"}`)}}
	agent, _ := newTestAgent(t, model)
	_, _, err := agent.registry.Add(context.Background(), salesEntry(), false)
	require.NoError(t, err)

	_, err = agent.Ask(context.Background(), "What data is there?")
	require.NoError(t, err)

	system := model.received[0][0]
	assert.Equal(t, domain.RoleSystem, system.Role)
	assert.Contains(t, system.Content, "## sales (DB001)")
	require.Len(t, model.tools[0], 2)
}

func TestAgentService_Ask_ToolErrorsGoBackToModel(t *testing.T) {
	model := &mockChatModel{replies: []domain.Message{
		toolCall("c1", ToolSQLQuery, `{"database": "sales", "sql": "DROP TABLE data"}`),
		toolCall("c2", ToolSQLQuery, `{"database": "payroll", "sql": "SELECT 1"}`),
		toolCall("c3", "shell", `{}`),
		toolCall("c4", ToolHybridSearch, `not json`),
		finalAnswer(`{"response": "I could not find it."}`),
	}}
	agent, relational := newTestAgent(t, model)

	res, err := agent.Ask(context.Background(), "Drop everything")

	require.NoError(t, err)
	assert.Equal(t, "I could not find it.", res.Answer.Response)
	assert.Empty(t, res.Answer.Citations)
	assert.Empty(t, relational.queries)

	msgs := model.received[4]
	assert.Equal(t, "Error: Only SELECT queries are allowed. Please provide a SELECT query.", msgs[3].Content)
	assert.True(t, strings.HasPrefix(msgs[5].Content, "SQL Error: "))
	assert.True(t, strings.HasSuffix(msgs[5].Content, "\n\nQuery attempted:\nSELECT 1"))
	assert.Equal(t, `Error: unknown tool "shell"`, msgs[7].Content)
	assert.True(t, strings.HasPrefix(msgs[9].Content, "Error: invalid arguments"))
}

func TestAgentService_Ask_StepLimit(t *testing.T) {
	replies := make([]domain.Message, 10)
	for i := range replies {
		replies[i] = toolCall("c", ToolHybridSearch, `{"query": "revenue"}`)
	}
	replies[4] = finalAnswer("Revenue grew, see ABC001 and QQQ001.")
	model := &mockChatModel{replies: replies}
	agent, _ := newTestAgent(t, model)

	res, err := agent.Ask(context.Background(), "Keep searching")

	require.NoError(t, err)
	assert.Equal(t, 5, res.Trace.Steps)
	assert.Nil(t, model.tools[4])
	assert.Equal(t, "Revenue grew, see ABC001 and QQQ001.", res.Answer.Response)
	assert.Equal(t, []string{"ABC001"}, res.Answer.Citations)
}

func TestAgentService_Ask_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("no model", func(t *testing.T) {
		agent := NewAgentService(nil, nil, nil, nil, domain.AgentSettings{}, 0)
		_, err := agent.Ask(ctx, "hi")
		assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
	})

	t.Run("empty question", func(t *testing.T) {
		agent, _ := newTestAgent(t, &mockChatModel{})
		_, err := agent.Ask(ctx, "  ")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("model failure", func(t *testing.T) {
		agent, _ := newTestAgent(t, &mockChatModel{err: errors.New("rate limited")})
		_, err := agent.Ask(ctx, "hi")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rate limited")
	})
}

func TestAgentService_AskAll(t *testing.T) {
	model := &mockChatModel{replies: []domain.Message{
		finalAnswer(`{"response": "first"}`),
		finalAnswer(`{"response": "third"}`),
	}}
	agent, _ := newTestAgent(t, model)

	results := agent.AskAll(context.Background(), []string{"one", " ", "three"})

	require.Len(t, results, 3)
	assert.Equal(t, "first", results[0].Answer.Response)
	assert.False(t, results[1].OK())
	assert.Equal(t, " ", results[1].Question)
	assert.Equal(t, "third", results[2].Answer.Response)
}

func TestParseAnswer(t *testing.T) {
	seen := map[string]bool{"ABC001": true, "ABC002": true}

	t.Run("json with bracketed ids", func(t *testing.T) {
		a := parseAnswer(`{"response": "x", "citations": ["[ABC002]", "ABC001"]}`, seen)
		assert.Equal(t, []string{"ABC002", "ABC001"}, a.Citations)
	})

	t.Run("plain text", func(t *testing.T) {
		a := parseAnswer("  See ABC002.  ", seen)
		assert.Equal(t, "See ABC002.", a.Response)
		assert.Equal(t, []string{"ABC002"}, a.Citations)
	})

	t.Run("json without response falls back to text", func(t *testing.T) {
		a := parseAnswer(`{"answer": "x"}`, seen)
		assert.Equal(t, `{"answer": "x"}`, a.Response)
		assert.Empty(t, a.Citations)
	})
}
