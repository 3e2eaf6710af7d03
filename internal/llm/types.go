// Package llm provides LLM provider client implementations.
package llm

// MaxTokens is the output token limit applied to every completion
// request (max_tokens for OpenAI, num_predict for Ollama).
const MaxTokens = 1000

// Message represents a chat message for the LLM.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // For tool responses (OpenAI only)
}

// ToolCall represents a tool call requested by the model.
type ToolCall struct {
	ID       string       `json:"id,omitempty"` // Provider-assigned (OpenAI); empty for Ollama
	Function FunctionCall `json:"function"`
}

// FunctionCall names the tool and carries its decoded arguments.
// Wire-format differences (OpenAI sends arguments as a JSON string,
// Ollama as an object) are resolved at the provider boundary.
type FunctionCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Tool is a provider-neutral tool declaration derived from an MCP
// tool listing. Both providers accept the OpenAI function shape, so
// conversion only wraps it.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ChatResponse is the unified response from any provider. Wire format
// conversion happens at provider boundaries (openai.go, ollama.go).
type ChatResponse struct {
	Model   string
	Message Message

	// Token usage (provider-neutral, when reported)
	InputTokens  int
	OutputTokens int
}
