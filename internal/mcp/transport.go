package mcp

import "context"

// Transport is the interface for MCP server communication.
// Implementations handle sending JSON-RPC requests and receiving
// responses over a specific medium (stdio today; the client does
// not care).
type Transport interface {
	// Send sends a JSON-RPC request and returns the matching response.
	// The transport handles framing, encoding, and correlation.
	Send(ctx context.Context, req *Request) (*Response, error)

	// Notify sends a JSON-RPC notification (no response expected).
	Notify(ctx context.Context, notif *Notification) error

	// Close shuts down the transport and releases resources.
	// For stdio transports this terminates the subprocess.
	Close() error
}
