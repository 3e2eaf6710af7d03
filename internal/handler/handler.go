// Package handler drives tool-augmented conversations: it declares MCP
// tools to an LLM provider, executes the tool calls the model requests,
// and folds the results back into a final answer.
package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/joao-parana/mcp-client/internal/llm"
	"github.com/joao-parana/mcp-client/internal/mcp"
)

// Provider tags accepted by the factory and the --provider flag.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

const (
	defaultOpenAIModel = "gpt-4o-mini"
	defaultOllamaModel = "qwen2.5:7b"
)

const (
	roleUser      = "user"
	roleAssistant = "assistant"
	roleTool      = "tool"
)

// answerPrefix marks every handler reply shown to the user.
const answerPrefix = "Assistant: "

// ToolSession is the slice of the MCP session the handlers consume.
type ToolSession interface {
	ListTools(ctx context.Context) ([]mcp.ToolDefinition, error)
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
}

// QueryHandler processes one user utterance against an LLM provider
// with the MCP server's tools declared.
type QueryHandler interface {
	// Name is the display name of the provider ("OpenAI", "Ollama").
	Name() string

	// Model is the model identifier in use.
	Model() string

	// ModelTools maps the session's tool listing into provider tool
	// declarations, order preserved.
	ModelTools(ctx context.Context) ([]llm.Tool, error)

	// ProcessQuery runs the two-round conversation for a single query
	// and returns the user-visible answer.
	ProcessQuery(ctx context.Context, query string) (string, error)
}

// Options configures the handler factory.
type Options struct {
	// Provider selects a backend explicitly; empty means auto-detect.
	Provider string

	// Model overrides the backend's default model.
	Model string

	// Getenv is the environment snapshot; defaults to os.Getenv.
	// Injected so detection and construction are testable.
	Getenv func(string) string

	// Out receives advisory construction-time warnings; defaults to os.Stdout.
	Out io.Writer

	Logger *slog.Logger
}

// DetectProvider picks a backend from an environment snapshot: openai
// when its credential is present, ollama otherwise.
func DetectProvider(getenv func(string) string) string {
	if getenv("OPENAI_API_KEY") != "" {
		return ProviderOpenAI
	}
	return ProviderOllama
}

// New constructs the query handler for the selected (or detected)
// provider. Credential and model-catalog validation happens here, not
// in the shared interface.
func New(ctx context.Context, session ToolSession, opts Options) (QueryHandler, error) {
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	provider := opts.Provider
	if provider == "" {
		provider = DetectProvider(getenv)
	}

	switch provider {
	case ProviderOpenAI:
		apiKey := getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, errors.New("OPENAI_API_KEY environment variable not set")
		}
		model := firstNonEmpty(opts.Model, getenv("OPENAI_MODEL"), defaultOpenAIModel)
		return NewOpenAIHandler(session, llm.NewOpenAIClient(apiKey, "", logger), model, logger), nil

	case ProviderOllama:
		model := firstNonEmpty(opts.Model, getenv("OLLAMA_MODEL"), defaultOllamaModel)
		client := llm.NewOllamaClient(getenv("OLLAMA_BASE_URL"), logger)
		h := NewOllamaHandler(session, client, model, logger)
		h.VerifyModel(ctx, out)
		return h, nil

	default:
		return nil, fmt.Errorf("unknown provider %q (valid options: openai, ollama)", provider)
	}
}

// modelTools maps an MCP tool listing into provider declarations,
// applying the defaults for absent descriptions and schemas.
func modelTools(ctx context.Context, session ToolSession) ([]llm.Tool, error) {
	defs, err := session.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}

	tools := make([]llm.Tool, 0, len(defs))
	for _, d := range defs {
		desc := d.Description
		if desc == "" {
			desc = "No description"
		}
		schema := d.InputSchema
		if schema == nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		tools = append(tools, llm.Tool{
			Name:        d.Name,
			Description: desc,
			Parameters:  schema,
		})
	}
	return tools, nil
}

// toolOutcome is the result of one tool invocation: the content that
// goes back into the conversation and the one-line log shown to the
// user.
type toolOutcome struct {
	Content string
	Log     string
}

// executeTool runs a single tool call. Failures never propagate: they
// become the tool-result content so the conversation can continue.
func executeTool(ctx context.Context, session ToolSession, call llm.ToolCall, logger *slog.Logger) toolOutcome {
	args := call.Function.Arguments
	if args == nil {
		args = map[string]any{}
	}

	content, err := session.CallTool(ctx, call.Function.Name, args)
	if err != nil {
		logger.Warn("tool call failed", "tool", call.Function.Name, "error", err)
		content = "Error: " + err.Error()
		return toolOutcome{Content: content, Log: "[" + content + "]"}
	}

	logger.Debug("tool call completed", "tool", call.Function.Name)
	return toolOutcome{
		Content: content,
		Log:     fmt.Sprintf("[Used %s(%s)]", call.Function.Name, formatArgs(args)),
	}
}

// formatArgs renders tool arguments in Python dict notation, e.g.
// {'a': 1, 'b': 2}. Keys are sorted for deterministic output.
func formatArgs(args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pyRepr(k))
		b.WriteString(": ")
		b.WriteString(pyRepr(args[k]))
	}
	b.WriteByte('}')
	return b.String()
}

// pyRepr renders a decoded JSON value the way Python's repr would.
func pyRepr(v any) string {
	switch val := v.(type) {
	case nil:
		return "None"
	case bool:
		if val {
			return "True"
		}
		return "False"
	case string:
		return "'" + strings.ReplaceAll(val, "'", `\'`) + "'"
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	case int:
		return strconv.Itoa(val)
	case map[string]any:
		return formatArgs(val)
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = pyRepr(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("%v", val)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
