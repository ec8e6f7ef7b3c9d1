package domain

import "encoding/json"

// MessageRole identifies the author of a conversation message.
type MessageRole string

// Message roles.
const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// Message is one turn in an agent conversation.
type Message struct {
	Role    MessageRole
	Content string

	// ToolCalls are set on assistant messages that request tools.
	ToolCalls []ToolCall

	// ToolCallID links a tool message to the call it answers.
	ToolCallID string
}

// ToolCall is a model's request to run a tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolSpec describes a tool offered to the model.
type ToolSpec struct {
	Name        string
	Description string

	// Parameters is a JSON Schema object.
	Parameters json.RawMessage
}

// Completion is one model reply.
type Completion struct {
	Message Message

	// FinishReason is the provider's stop reason.
	FinishReason string
}

// AgentResponse is the agent's structured final answer.
type AgentResponse struct {
	// Response is the answer text.
	Response string `json:"response"`

	// Citations are chunk IDs the answer relies on.
	Citations []string `json:"citations"`

	// DataSummary summarises any SQL results used.
	DataSummary string `json:"data_summary,omitempty"`
}

// AgentTrace records the tool activity behind an answer.
type AgentTrace struct {
	Steps     int      `json:"steps"`
	ToolCalls []string `json:"tool_calls"`
}

// AgentResult pairs a question with its answer or failure.
type AgentResult struct {
	Question string         `json:"question"`
	Answer   *AgentResponse `json:"answer,omitempty"`
	Trace    AgentTrace     `json:"trace"`
	Error    string         `json:"error,omitempty"`
}

// OK reports whether the question was answered.
func (r AgentResult) OK() bool {
	return r.Error == "" && r.Answer != nil
}
