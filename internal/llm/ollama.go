package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joao-parana/mcp-client/internal/config"
)

// DefaultOllamaBaseURL is the local Ollama daemon endpoint.
const DefaultOllamaBaseURL = "http://localhost:11434"

// OllamaClient is a client for the Ollama API.
type OllamaClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOllamaClient creates a new Ollama client. An empty baseURL selects
// the default local daemon endpoint.
func NewOllamaClient(baseURL string, logger *slog.Logger) *OllamaClient {
	if baseURL == "" {
		baseURL = DefaultOllamaBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OllamaClient{
		baseURL: baseURL,
		logger:  logger.With("provider", "ollama"),
		httpClient: &http.Client{
			Timeout: 5 * time.Minute, // large models with tools need time
		},
	}
}

// Ollama wire types. Tool call arguments are already objects on this
// API, and there is no correlation ID to thread.

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Tools    []openaiTool    `json:"tools,omitempty"` // Ollama accepts the OpenAI function shape
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaOptions struct {
	NumPredict int `json:"num_predict,omitempty"`
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaToolCall struct {
	Function ollamaFunctionCall `json:"function"`
}

type ollamaFunctionCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type ollamaResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`

	PromptEvalCount int `json:"prompt_eval_count,omitempty"`
	EvalCount       int `json:"eval_count,omitempty"`
}

// Chat sends a non-streaming chat completion request to Ollama.
func (c *OllamaClient) Chat(ctx context.Context, model string, messages []Message, tools []Tool) (*ChatResponse, error) {
	req := ollamaRequest{
		Model:    model,
		Messages: convertToOllama(messages),
		Stream:   false,
		Tools:    convertToolsToOpenAI(tools),
		Options:  &ollamaOptions{NumPredict: MaxTokens},
	}

	c.logger.Debug("preparing request",
		"model", model,
		"messages", len(req.Messages),
		"tools", len(req.Tools),
	)

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	c.logger.Log(ctx, config.LevelTrace, "request payload", "json", string(jsonData))

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/chat", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ollama API error %d: %s", resp.StatusCode, string(body))
	}

	var wire ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	msg := convertFromOllama(wire.Message)

	// Some local models emit tool calls as JSON in the content instead
	// of the native tool_calls field. Recover them, but only when tools
	// were actually declared, and never accept a name that was not.
	if len(msg.ToolCalls) == 0 && msg.Content != "" && len(tools) > 0 {
		if parsed := parseTextToolCalls(msg.Content, toolNames(tools)); len(parsed) > 0 {
			msg.ToolCalls = parsed
			msg.Content = ""
		}
	}

	return &ChatResponse{
		Model:        wire.Model,
		Message:      msg,
		InputTokens:  wire.PromptEvalCount,
		OutputTokens: wire.EvalCount,
	}, nil
}

// ListModels returns the names of models present in the local catalog.
func (c *OllamaClient) ListModels(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama API error %d", resp.StatusCode)
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	names := make([]string, len(result.Models))
	for i, m := range result.Models {
		names[i] = m.Name
	}
	return names, nil
}

func convertToOllama(messages []Message) []ollamaMessage {
	out := make([]ollamaMessage, 0, len(messages))
	for _, m := range messages {
		wm := ollamaMessage{
			Role:    m.Role,
			Content: m.Content,
		}
		for _, tc := range m.ToolCalls {
			wm.ToolCalls = append(wm.ToolCalls, ollamaToolCall{
				Function: ollamaFunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
		out = append(out, wm)
	}
	return out
}

func convertFromOllama(wm ollamaMessage) Message {
	m := Message{
		Role:    wm.Role,
		Content: wm.Content,
	}
	for _, tc := range wm.ToolCalls {
		args := tc.Function.Arguments
		if args == nil {
			args = map[string]any{}
		}
		m.ToolCalls = append(m.ToolCalls, ToolCall{
			Function: FunctionCall{
				Name:      tc.Function.Name,
				Arguments: args,
			},
		})
	}
	return m
}

func toolNames(tools []Tool) []string {
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name
	}
	return names
}

// parseTextToolCalls attempts to extract tool calls from content text.
// Handled formats:
//   - Raw JSON object: {"name": "...", "arguments": {...}}
//   - JSON array: [{"name": "...", "arguments": {...}}]
//   - Tagged: <tool_call>...</tool_call>
//   - Concatenated objects: {...}{...}{...}
//
// When validTools is non-empty, calls naming an undeclared tool are
// dropped.
func parseTextToolCalls(content string, validTools []string) []ToolCall {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}

	if strings.Contains(content, "<tool_call>") {
		start := strings.Index(content, "<tool_call>")
		end := strings.Index(content, "</tool_call>")
		if start != -1 && end > start {
			content = strings.TrimSpace(content[start+len("<tool_call>") : end])
		} else if start != -1 {
			// No closing tag; take the rest of the content.
			content = strings.TrimSpace(content[start+len("<tool_call>"):])
		}
	}

	valid := map[string]bool{}
	for _, name := range validTools {
		valid[name] = true
	}
	accepted := func(name string) bool {
		if name == "" {
			return false
		}
		return len(valid) == 0 || valid[name]
	}

	type rawCall struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}

	// Array of tool calls.
	var callList []rawCall
	if err := json.Unmarshal([]byte(content), &callList); err == nil && len(callList) > 0 {
		var result []ToolCall
		for _, rc := range callList {
			if !accepted(rc.Name) {
				continue
			}
			result = append(result, ToolCall{Function: FunctionCall{Name: rc.Name, Arguments: rc.Arguments}})
		}
		return result
	}

	// One or more concatenated JSON objects, possibly with trailing prose.
	if strings.HasPrefix(content, "{") {
		var result []ToolCall
		dec := json.NewDecoder(strings.NewReader(content))
		for {
			var rc rawCall
			if err := dec.Decode(&rc); err != nil {
				break
			}
			if accepted(rc.Name) {
				result = append(result, ToolCall{Function: FunctionCall{Name: rc.Name, Arguments: rc.Arguments}})
			}
		}
		return result
	}

	// "tool_name {json}" format.
	if name, rest, found := strings.Cut(content, " "); found {
		rest = strings.TrimSpace(rest)
		if accepted(name) && strings.HasPrefix(rest, "{") {
			var args map[string]any
			dec := json.NewDecoder(strings.NewReader(rest))
			if err := dec.Decode(&args); err == nil {
				return []ToolCall{{Function: FunctionCall{Name: name, Arguments: args}}}
			}
		}
	}

	return nil
}
