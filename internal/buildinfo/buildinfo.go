// Package buildinfo exposes build-time version information.
package buildinfo

// Version is overridden at build time via
// -ldflags "-X github.com/joao-parana/mcp-client/internal/buildinfo.Version=...".
var Version = "dev"
