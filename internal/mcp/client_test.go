package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

// mockTransport answers requests by method name and records everything
// it sees.
type mockTransport struct {
	responses     map[string]*Response
	errs          map[string]error
	requests      []*Request
	notifications []*Notification
	closed        bool
}

func newMockTransport() *mockTransport {
	return &mockTransport{
		responses: map[string]*Response{},
		errs:      map[string]error{},
	}
}

func (m *mockTransport) addResponse(t *testing.T, method string, result any) {
	t.Helper()
	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal mock result: %v", err)
	}
	m.responses[method] = &Response{JSONRPC: jsonrpcVersion, Result: data}
}

func (m *mockTransport) addRPCError(method string, code int, msg string) {
	m.responses[method] = &Response{
		JSONRPC: jsonrpcVersion,
		Error:   &RPCError{Code: code, Message: msg},
	}
}

func (m *mockTransport) Send(_ context.Context, req *Request) (*Response, error) {
	m.requests = append(m.requests, req)
	if err, ok := m.errs[req.Method]; ok {
		return nil, err
	}
	resp, ok := m.responses[req.Method]
	if !ok {
		return nil, errors.New("unexpected method: " + req.Method)
	}
	out := *resp
	out.ID = req.ID
	return &out, nil
}

func (m *mockTransport) Notify(_ context.Context, n *Notification) error {
	m.notifications = append(m.notifications, n)
	return nil
}

func (m *mockTransport) Close() error {
	m.closed = true
	return nil
}

func (m *mockTransport) methodCount(method string) int {
	n := 0
	for _, req := range m.requests {
		if req.Method == method {
			n++
		}
	}
	return n
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInitialize(t *testing.T) {
	mt := newMockTransport()
	mt.addResponse(t, "initialize", map[string]any{
		"protocolVersion": protocolVersion,
		"serverInfo":      map[string]any{"name": "test-server", "version": "0.1.0"},
	})

	c := NewClient("test-server", mt, testLogger())
	if err := c.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}

	if len(mt.requests) != 1 || mt.requests[0].Method != "initialize" {
		t.Fatalf("requests = %+v, want a single initialize", mt.requests)
	}
	if len(mt.notifications) != 1 || mt.notifications[0].Method != "notifications/initialized" {
		t.Fatalf("notifications = %+v, want notifications/initialized", mt.notifications)
	}
}

func TestInitializeRPCError(t *testing.T) {
	mt := newMockTransport()
	mt.addRPCError("initialize", -32600, "unsupported protocol")

	c := NewClient("test-server", mt, testLogger())
	err := c.Initialize(context.Background())
	if err == nil {
		t.Fatal("Initialize() succeeded, want error")
	}
	if !strings.Contains(err.Error(), "unsupported protocol") {
		t.Errorf("error = %v, want server message included", err)
	}
}

func TestListToolsIsFresh(t *testing.T) {
	mt := newMockTransport()
	mt.addResponse(t, "tools/list", map[string]any{
		"tools": []map[string]any{
			{"name": "sum", "description": "Add two numbers"},
			{"name": "read_file", "inputSchema": map[string]any{"type": "object"}},
		},
	})

	c := NewClient("test-server", mt, testLogger())

	for i := 0; i < 2; i++ {
		tools, err := c.ListTools(context.Background())
		if err != nil {
			t.Fatalf("ListTools() error: %v", err)
		}
		if len(tools) != 2 {
			t.Fatalf("ListTools() = %d tools, want 2", len(tools))
		}
		if tools[0].Name != "sum" || tools[0].Description != "Add two numbers" {
			t.Errorf("tools[0] = %+v", tools[0])
		}
		if tools[1].InputSchema["type"] != "object" {
			t.Errorf("tools[1].InputSchema = %v", tools[1].InputSchema)
		}
	}

	// No caching: every call must hit the server.
	if got := mt.methodCount("tools/list"); got != 2 {
		t.Errorf("tools/list round trips = %d, want 2", got)
	}
}

func TestListPromptsAndResources(t *testing.T) {
	mt := newMockTransport()
	mt.addResponse(t, "prompts/list", map[string]any{
		"prompts": []map[string]any{{"name": "summarize", "description": "Summarize text"}},
	})
	mt.addResponse(t, "resources/list", map[string]any{
		"resources": []map[string]any{{"uri": "file:///data", "name": "data"}},
	})

	c := NewClient("test-server", mt, testLogger())

	prompts, err := c.ListPrompts(context.Background())
	if err != nil {
		t.Fatalf("ListPrompts() error: %v", err)
	}
	if len(prompts) != 1 || prompts[0].Name != "summarize" {
		t.Errorf("prompts = %+v", prompts)
	}

	resources, err := c.ListResources(context.Background())
	if err != nil {
		t.Fatalf("ListResources() error: %v", err)
	}
	if len(resources) != 1 || resources[0].URI != "file:///data" {
		t.Errorf("resources = %+v", resources)
	}
}

func TestCallTool(t *testing.T) {
	mt := newMockTransport()
	mt.addResponse(t, "tools/call", map[string]any{
		"content": []map[string]any{{"type": "text", "text": "3"}},
	})

	c := NewClient("test-server", mt, testLogger())
	got, err := c.CallTool(context.Background(), "sum", map[string]any{"a": 1, "b": 2})
	if err != nil {
		t.Fatalf("CallTool() error: %v", err)
	}
	if got != "3" {
		t.Errorf("CallTool() = %q, want 3", got)
	}

	params, ok := mt.requests[0].Params.(map[string]any)
	if !ok {
		t.Fatalf("params = %T, want map", mt.requests[0].Params)
	}
	if params["name"] != "sum" {
		t.Errorf("params[name] = %v, want sum", params["name"])
	}
}

func TestCallToolNilArgs(t *testing.T) {
	mt := newMockTransport()
	mt.addResponse(t, "tools/call", map[string]any{"content": []map[string]any{}})

	c := NewClient("test-server", mt, testLogger())
	got, err := c.CallTool(context.Background(), "ping", nil)
	if err != nil {
		t.Fatalf("CallTool() error: %v", err)
	}
	if got != "" {
		t.Errorf("CallTool() = %q, want empty for no content blocks", got)
	}

	params := mt.requests[0].Params.(map[string]any)
	args, ok := params["arguments"].(map[string]any)
	if !ok || args == nil {
		t.Errorf("arguments = %v, want empty object for nil args", params["arguments"])
	}
}

func TestCallToolIsError(t *testing.T) {
	mt := newMockTransport()
	mt.addResponse(t, "tools/call", map[string]any{
		"content": []map[string]any{{"type": "text", "text": "division by zero"}},
		"isError": true,
	})

	c := NewClient("test-server", mt, testLogger())
	_, err := c.CallTool(context.Background(), "divide", map[string]any{"a": 1, "b": 0})
	if err == nil {
		t.Fatal("CallTool() succeeded, want error for isError result")
	}
	if !strings.Contains(err.Error(), "division by zero") {
		t.Errorf("error = %v, want tool message included", err)
	}
}

func TestClose(t *testing.T) {
	mt := newMockTransport()
	c := NewClient("test-server", mt, testLogger())
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if !mt.closed {
		t.Error("transport not closed")
	}
}
