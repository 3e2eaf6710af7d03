package handler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/joao-parana/mcp-client/internal/llm"
	"github.com/joao-parana/mcp-client/internal/term"
)

// ollamaAPI is the slice of the Ollama client the handler consumes:
// chat completion plus the local model catalog for the advisory check.
type ollamaAPI interface {
	llm.Client
	ListModels(ctx context.Context) ([]string, error)
}

// OllamaHandler drives the conversation loop against a local Ollama
// daemon. Unlike OpenAI there is no tool_call_id to thread; tool-role
// messages carry only their content.
type OllamaHandler struct {
	session ToolSession
	client  ollamaAPI
	model   string
	logger  *slog.Logger
}

// NewOllamaHandler creates an Ollama-backed query handler.
func NewOllamaHandler(session ToolSession, client ollamaAPI, model string, logger *slog.Logger) *OllamaHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OllamaHandler{
		session: session,
		client:  client,
		model:   model,
		logger:  logger.With("handler", "ollama"),
	}
}

// Name returns the provider display name.
func (h *OllamaHandler) Name() string { return "Ollama" }

// Model returns the model identifier in use.
func (h *OllamaHandler) Model() string { return h.model }

// ModelTools maps the session's tool listing into declarations.
func (h *OllamaHandler) ModelTools(ctx context.Context) ([]llm.Tool, error) {
	return modelTools(ctx, h.session)
}

// VerifyModel checks the daemon's local catalog for the configured
// model and writes a warning to w when it is missing or the check
// fails. Never fatal: Ollama may pull the model lazily on first use.
func (h *OllamaHandler) VerifyModel(ctx context.Context, w io.Writer) {
	models, err := h.client.ListModels(ctx)
	if err != nil {
		fmt.Fprintln(w, term.Warning(fmt.Sprintf("Warning: Could not verify Ollama models: %v", err)))
		return
	}

	for _, m := range models {
		if strings.Contains(m, h.model) || strings.HasPrefix(m, h.model) {
			return
		}
	}

	fmt.Fprintln(w, term.Warning(fmt.Sprintf(
		"Warning: Model '%s' not found locally. Ollama will attempt to pull it on first use.", h.model)))
	fmt.Fprintln(w, term.Warning("Available models: "+strings.Join(models, ", ")))
}

// ProcessQuery runs the two-round loop against Ollama. See
// OpenAIHandler.ProcessQuery for the round structure; the only
// divergence is the absent correlation id on tool-role messages.
func (h *OllamaHandler) ProcessQuery(ctx context.Context, query string) (string, error) {
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
				Role:    roleTool,
				Content: out.Content,
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
