package driven

import (
	"context"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

// ChatModel is a language model that can request tool calls.
// This is an optional service - when nil, the agent is disabled.
type ChatModel interface {
	// Complete sends the conversation and the offered tools and returns
	// the model's next message.
	Complete(ctx context.Context, messages []domain.Message, tools []domain.ToolSpec) (*domain.Completion, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the service is reachable.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
