// Package mcp implements a Model Context Protocol client.
//
// It speaks JSON-RPC 2.0 over a pluggable Transport (stdio subprocess
// today) and exposes the protocol operations the CLI needs: the
// initialize handshake, member listings (tools, prompts, resources),
// and tool invocation.
package mcp
