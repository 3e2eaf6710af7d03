package mcp

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestRequestMarshal(t *testing.T) {
	req := NewRequest(3, "tools/list", nil)
	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got := string(data)
	if got != `{"jsonrpc":"2.0","id":3,"method":"tools/list"}` {
		t.Errorf("marshaled request = %s", got)
	}
}

func TestNotificationMarshalOmitsID(t *testing.T) {
	n := NewNotification("notifications/initialized", nil)
	data, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), `"id"`) {
		t.Errorf("notification carries an id: %s", data)
	}
}

func TestResponseUnmarshalError(t *testing.T) {
	var resp Response
	raw := `{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"method not found"}}`
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Error == nil {
		t.Fatal("resp.Error is nil")
	}
	if got := resp.Error.Error(); got != "jsonrpc error -32601: method not found" {
		t.Errorf("Error() = %q", got)
	}
}
