package mcp

import (
	"encoding/json"
	"fmt"
)

// The wire format is JSON-RPC 2.0, one message per line. Only the
// message kinds this client sends or consumes are modeled: calls
// carrying an id, fire-and-forget notifications, and responses with
// either a result or an error member.

const jsonrpcVersion = "2.0"

// Request is an id-correlated call. A nil Params is omitted from the
// encoded message entirely.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// NewRequest builds a call with the protocol version stamped on.
func NewRequest(id int64, method string, params any) *Request {
	return &Request{
		JSONRPC: jsonrpcVersion,
		ID:      id,
		Method:  method,
		Params:  params,
	}
}

// Notification is a call without an id; the peer never replies to it.
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// NewNotification builds a notification with the protocol version
// stamped on.
func NewNotification(method string, params any) *Notification {
	return &Notification{
		JSONRPC: jsonrpcVersion,
		Method:  method,
		Params:  params,
	}
}

// Response answers a Request with the same id. Result stays raw so
// each caller decodes into its own shape; a well-formed response sets
// exactly one of Result and Error.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the error member of a failed response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error renders the code and message. Data rides along in the struct
// but is not part of the rendered text.
func (e *RPCError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}
