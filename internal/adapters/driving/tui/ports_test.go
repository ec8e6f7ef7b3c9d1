package tui

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

// MockAgentService implements driving.AgentService for testing.
type MockAgentService struct {
	mu        sync.Mutex
	AskFunc   func(ctx context.Context, question string) (*domain.AgentResult, error)
	Questions []string
}

func (m *MockAgentService) Ask(ctx context.Context, question string) (*domain.AgentResult, error) {
	m.mu.Lock()
	m.Questions = append(m.Questions, question)
	m.mu.Unlock()
	if m.AskFunc != nil {
		return m.AskFunc(ctx, question)
	}
	return &domain.AgentResult{
		Question: question,
		Answer:   &domain.AgentResponse{Response: "answer to " + question, Citations: []string{"XYZ001"}},
		Trace:    domain.AgentTrace{Steps: 1},
	}, nil
}

func (m *MockAgentService) AskAll(ctx context.Context, questions []string) []domain.AgentResult {
	out := make([]domain.AgentResult, len(questions))
	for i, q := range questions {
		res, err := m.Ask(ctx, q)
		if err != nil {
			out[i] = domain.AgentResult{Question: q, Error: err.Error()}
			continue
		}
		out[i] = *res
	}
	return out
}

// MockQueryService implements driving.QueryService for testing.
type MockQueryService struct {
	Names []string
	Err   error
}

func (m *MockQueryService) Execute(_ context.Context, _, _ string) (*domain.QueryResult, error) {
	return nil, m.Err
}

func (m *MockQueryService) Databases(_ context.Context) ([]string, error) {
	return m.Names, m.Err
}

func TestPorts_Validate(t *testing.T) {
	t.Run("nil ports", func(t *testing.T) {
		var p *Ports
		assert.ErrorIs(t, p.Validate(), ErrMissingAgentService)
	})

	t.Run("missing agent", func(t *testing.T) {
		p := &Ports{Query: &MockQueryService{}}
		assert.ErrorIs(t, p.Validate(), ErrMissingAgentService)
	})

	t.Run("agent only", func(t *testing.T) {
		p := &Ports{Agent: &MockAgentService{}}
		assert.NoError(t, p.Validate())
	})
}
