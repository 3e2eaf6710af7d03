package llm

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpenAIChat(t *testing.T) {
	var gotAuth string
	var gotBody openaiRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"id":    "chatcmpl-1",
			"model": "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": "hello"},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 12, "completion_tokens": 3},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", srv.URL, testLogger())
	resp, err := c.Chat(context.Background(), "gpt-4o-mini",
		[]Message{{Role: "user", Content: "hi"}},
		[]Tool{{Name: "sum", Description: "Add", Parameters: map[string]any{"type": "object"}}},
	)
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}

	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody.MaxTokens != MaxTokens {
		t.Errorf("max_tokens = %d, want %d", gotBody.MaxTokens, MaxTokens)
	}
	if len(gotBody.Tools) != 1 || gotBody.Tools[0].Type != "function" || gotBody.Tools[0].Function.Name != "sum" {
		t.Errorf("tools = %+v", gotBody.Tools)
	}

	if resp.Message.Content != "hello" {
		t.Errorf("content = %q", resp.Message.Content)
	}
	if resp.InputTokens != 12 || resp.OutputTokens != 3 {
		t.Errorf("tokens = %d/%d", resp.InputTokens, resp.OutputTokens)
	}
}

func TestOpenAIChatDecodesToolCallArguments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-4o-mini",
			"choices": []map[string]any{{
				"message": map[string]any{
					"role":    "assistant",
					"content": "",
					"tool_calls": []map[string]any{
						{
							"id":   "call_1",
							"type": "function",
							"function": map[string]any{
								"name":      "sum",
								"arguments": `{"a": 1, "b": 2}`,
							},
						},
						{
							"id":   "call_2",
							"type": "function",
							"function": map[string]any{
								"name":      "ping",
								"arguments": "",
							},
						},
					},
				},
				"finish_reason": "tool_calls",
			}},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", srv.URL, testLogger())
	resp, err := c.Chat(context.Background(), "gpt-4o-mini", []Message{{Role: "user", Content: "add"}}, nil)
	if err != nil {
		t.Fatalf("Chat() error: %v", err)
	}

	calls := resp.Message.ToolCalls
	if len(calls) != 2 {
		t.Fatalf("tool calls = %d, want 2", len(calls))
	}
	if calls[0].ID != "call_1" || calls[0].Function.Name != "sum" {
		t.Errorf("calls[0] = %+v", calls[0])
	}
	if calls[0].Function.Arguments["a"] != float64(1) {
		t.Errorf("arguments = %v, want decoded object", calls[0].Function.Arguments)
	}
	if calls[1].Function.Arguments == nil || len(calls[1].Function.Arguments) != 0 {
		t.Errorf("blank argument string should decode to empty object, got %v", calls[1].Function.Arguments)
	}
}

func TestOpenAIChatEncodesToolResults(t *testing.T) {
	var gotBody openaiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-4o-mini",
			"choices": []map[string]any{{
				"message": map[string]any{"role": "assistant", "content": "The sum is 3."},
			}},
		})
	}))
	defer srv.Close()

	messages := []Message{
		{Role: "user", Content: "add 1 and 2"},
		{Role: "assistant", ToolCalls: []ToolCall{{
			ID:       "call_1",
			Function: FunctionCall{Name: "sum", Arguments: map[string]any{"a": 1, "b": 2}},
		}}},
		{Role: "tool", Content: "3", ToolCallID: "call_1"},
	}

	c := NewOpenAIClient("sk-test", srv.URL, testLogger())
	if _, err := c.Chat(context.Background(), "gpt-4o-mini", messages, nil); err != nil {
		t.Fatalf("Chat() error: %v", err)
	}

	if len(gotBody.Messages) != 3 {
		t.Fatalf("messages = %d, want 3", len(gotBody.Messages))
	}
	assistant := gotBody.Messages[1]
	if len(assistant.ToolCalls) != 1 || assistant.ToolCalls[0].Type != "function" {
		t.Fatalf("assistant tool calls = %+v", assistant.ToolCalls)
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(assistant.ToolCalls[0].Function.Arguments), &args); err != nil {
		t.Fatalf("arguments are not a JSON string: %v", err)
	}
	if args["a"] != float64(1) || args["b"] != float64(2) {
		t.Errorf("arguments = %v", args)
	}
	toolMsg := gotBody.Messages[2]
	if toolMsg.ToolCallID != "call_1" || toolMsg.Content != "3" {
		t.Errorf("tool message = %+v", toolMsg)
	}
}

func TestOpenAIChatAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error": {"message": "bad key"}}`)
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-bad", srv.URL, testLogger())
	_, err := c.Chat(context.Background(), "gpt-4o-mini", []Message{{Role: "user", Content: "hi"}}, nil)
	if err == nil {
		t.Fatal("Chat() succeeded, want error")
	}
	if !strings.Contains(err.Error(), "401") || !strings.Contains(err.Error(), "bad key") {
		t.Errorf("error = %v", err)
	}
}

func TestOpenAIChatNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"model": "gpt-4o-mini", "choices": []any{}})
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", srv.URL, testLogger())
	_, err := c.Chat(context.Background(), "gpt-4o-mini", []Message{{Role: "user", Content: "hi"}}, nil)
	if err == nil || !strings.Contains(err.Error(), "no choices") {
		t.Errorf("error = %v, want no-choices failure", err)
	}
}
