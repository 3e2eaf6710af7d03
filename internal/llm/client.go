package llm

import "context"

// Client is the interface all LLM providers implement.
type Client interface {
	// Chat sends a chat completion request and returns the response.
	// A nil or empty tools slice solicits no tool use.
	Chat(ctx context.Context, model string, messages []Message, tools []Tool) (*ChatResponse, error)
}
