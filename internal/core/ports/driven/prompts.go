package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names.
const (
	// PromptAgentSystem is the agent's system prompt. It is a text/template
	// that receives the rendered database catalogue as .Databases.
	PromptAgentSystem = "agent_system"

	// PromptTableSchema renders one registry table as markdown.
	PromptTableSchema = "table_schema"
)
