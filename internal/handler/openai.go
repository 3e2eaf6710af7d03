package handler

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/joao-parana/mcp-client/internal/llm"
)

// OpenAIHandler drives the conversation loop against the OpenAI chat
// completions API. Tool results are correlated back to their calls via
// the provider-assigned tool_call_id.
type OpenAIHandler struct {
	session ToolSession
	client  llm.Client
	model   string
	logger  *slog.Logger
}

// NewOpenAIHandler creates an OpenAI-backed query handler.
func NewOpenAIHandler(session ToolSession, client llm.Client, model string, logger *slog.Logger) *OpenAIHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIHandler{
		session: session,
		client:  client,
		model:   model,
		logger:  logger.With("handler", "openai"),
	}
}

// Name returns the provider display name.
func (h *OpenAIHandler) Name() string { return "OpenAI" }

// Model returns the model identifier in use.
func (h *OpenAIHandler) Model() string { return h.model }

// ModelTools maps the session's tool listing into declarations.
func (h *OpenAIHandler) ModelTools(ctx context.Context) ([]llm.Tool, error) {
	return modelTools(ctx, h.session)
}

// ProcessQuery runs the two-round loop: round one with tools declared,
// then, only if the model requested tools, their execution in request
// order and a finalization round with tools withheld. A model cannot
// chain a second layer of tool calls per utterance.
func (h *OpenAIHandler) ProcessQuery(ctx context.Context, query string) (string, error) {
	logger := h.logger.With("turn_id", uuid.NewString())
	logger.Debug("processing query", "model", h.model)

	tools, err := h.ModelTools(ctx)
	if err != nil {
		return "", err
	}

	messages := []llm.Message{{Role: roleUser, Content: query}}

	resp, err := h.client.Chat(ctx, h.model, messages, tools)
	if err != nil {
		return "", err
	}

	msg := resp.Message
	var parts []string
	if msg.Content != "" {
		parts = append(parts, msg.Content)
	}

	if len(msg.ToolCalls) > 0 {
		messages = append(messages, llm.Message{
			Role:      roleAssistant,
			Content:   msg.Content,
			ToolCalls: msg.ToolCalls,
		})

		for _, call := range msg.ToolCalls {
			out := executeTool(ctx, h.session, call, logger)
			parts = append(parts, out.Log)
			messages = append(messages, llm.Message{
				Role:       roleTool,
				Content:    out.Content,
				ToolCallID: call.ID,
			})
		}

		final, err := h.client.Chat(ctx, h.model, messages, nil)
		if err != nil {
			return "", err
		}
		if final.Message.Content != "" {
			parts = append(parts, final.Message.Content)
		}
	}

	return answerPrefix + strings.Join(parts, "\n"), nil
}
