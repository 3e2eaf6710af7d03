// Package client is the top-level facade: it owns the MCP session
// lifetime and exposes the two user-facing operations, member listing
// and chat.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joao-parana/mcp-client/internal/chat"
	"github.com/joao-parana/mcp-client/internal/config"
	"github.com/joao-parana/mcp-client/internal/handler"
	"github.com/joao-parana/mcp-client/internal/mcp"
	"github.com/joao-parana/mcp-client/internal/term"
)

// connectTimeout bounds the subprocess spawn plus initialize handshake.
const connectTimeout = 30 * time.Second

// Session is the slice of the MCP client the facade consumes.
type Session interface {
	ListTools(ctx context.Context) ([]mcp.ToolDefinition, error)
	ListPrompts(ctx context.Context) ([]mcp.PromptDefinition, error)
	ListResources(ctx context.Context) ([]mcp.ResourceDefinition, error)
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
	Close() error
}

// Options configures a Client. Exactly one of ServerPath and Profile
// must be set.
type Options struct {
	// ServerPath is a script path for legacy mode: the script is run
	// under a shell with its stderr discarded.
	ServerPath string

	// Profile is a resolved registry profile.
	Profile *config.ServerProfile

	// Provider and Model select the chat backend; both optional.
	Provider string
	Model    string

	// Verbose prints connection diagnostics.
	Verbose bool

	// In and Out default to os.Stdin and os.Stdout.
	In  io.Reader
	Out io.Writer

	// Getenv defaults to os.Getenv. Injected for tests.
	Getenv func(string) string

	Logger *slog.Logger
}

// Client owns one MCP session from Connect to Close.
type Client struct {
	serverPath string
	profile    *config.ServerProfile
	provider   string
	model      string
	verbose    bool

	in     io.Reader
	out    io.Writer
	getenv func(string) string
	logger *slog.Logger

	session Session
	closed  bool
}

// New validates the options and builds an unconnected client.
func New(opts Options) (*Client, error) {
	if opts.ServerPath == "" && opts.Profile == nil {
		return nil, errors.New("either a server path or a server profile must be provided")
	}
	if opts.ServerPath != "" && opts.Profile != nil {
		return nil, errors.New("server path and server profile are mutually exclusive")
	}

	c := &Client{
		serverPath: opts.ServerPath,
		profile:    opts.Profile,
		provider:   opts.Provider,
		model:      opts.Model,
		verbose:    opts.Verbose,
		in:         opts.In,
		out:        opts.Out,
		getenv:     opts.Getenv,
		logger:     opts.Logger,
	}
	if c.in == nil {
		c.in = os.Stdin
	}
	if c.out == nil {
		c.out = os.Stdout
	}
	if c.getenv == nil {
		c.getenv = os.Getenv
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// serverName identifies the peer for logs and diagnostics.
func (c *Client) serverName() string {
	if c.profile != nil {
		return c.profile.Name
	}
	return c.serverPath
}

// stdioConfig builds the transport configuration. Profile mode spawns
// the configured command with its env overrides appended to the
// inherited environment; legacy mode wraps the script in a shell
// invocation that discards the peer's diagnostic stream.
func (c *Client) stdioConfig() mcp.StdioConfig {
	if c.profile != nil {
		return mcp.StdioConfig{
			Command: c.profile.Command,
			Args:    append([]string(nil), c.profile.Args...),
			Env:     envList(c.profile.Env),
			Logger:  c.logger,
		}
	}
	return mcp.StdioConfig{
		Command: "sh",
		Args:    []string{"-c", fmt.Sprintf("python3 %s 2>/dev/null", c.serverPath)},
		Logger:  c.logger,
	}
}

// Connect spawns the MCP server and performs the initialize handshake.
// On failure the transport is torn down and the error carries Docker
// remediation hints when the profile launches a container.
func (c *Client) Connect(ctx context.Context) error {
	cfg := c.stdioConfig()

	if c.verbose {
		if c.profile != nil && c.profile.Command == "docker" {
			fmt.Fprintln(c.out, term.Info("Starting Docker container: "+strings.Join(cfg.Args, " ")))
		}
		fmt.Fprintln(c.out, term.Info("Connecting to server: "+c.serverName()))
		fmt.Fprintln(c.out, term.Info("Command: "+cfg.Command+" "+strings.Join(cfg.Args, " ")))
	}

	transport := mcp.NewStdioTransport(cfg)
	session := mcp.NewClient(c.serverName(), transport, c.logger)

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := session.Initialize(connectCtx); err != nil {
		transport.Close()
		return c.connectError(err)
	}

	if c.verbose {
		fmt.Fprintln(c.out, term.Info("✓ Connected successfully"))
	}

	c.session = session
	return nil
}

// connectError wraps a handshake failure, adding container
// troubleshooting steps for docker-command profiles.
func (c *Client) connectError(err error) error {
	msg := fmt.Sprintf("failed to connect to server: %v", err)
	if c.profile != nil && c.profile.Command == "docker" {
		image := c.profile.DockerImage()
		grepTerm := image
		if grepTerm == "" {
			grepTerm = "mcp"
		}
		pullImage := image
		if pullImage == "" {
			pullImage = "mcp/unknown"
		}
		msg += fmt.Sprintf("\n\nDocker troubleshooting:\n"+
			"1. Ensure Docker is running: docker info\n"+
			"2. Check if image exists: docker images | grep %s\n"+
			"3. Pull image if needed: docker pull %s\n", grepTerm, pullImage)
	}
	return errors.New(msg)
}

// Close releases the session exactly once: the subprocess is
// terminated and its streams closed. Safe to call before Connect and
// after a failed Connect.
func (c *Client) Close() error {
	if c.session == nil || c.closed {
		return nil
	}
	c.closed = true
	return c.session.Close()
}

// member is one named item in a listing section.
type member struct {
	name        string
	description string
}

// ListAllMembers prints the server's tools, prompts, and resources.
// Each section is attempted independently: a failing section reports
// its error inline and the siblings still print.
func (c *Client) ListAllMembers(ctx context.Context) error {
	if c.session == nil {
		return errors.New("not connected")
	}

	rule := strings.Repeat("=", 50)
	if c.profile != nil {
		fmt.Fprintf(c.out, "MCP Server: %s\n", c.profile.Name)
		fmt.Fprintf(c.out, "Description: %s\n", c.profile.Description)
	} else {
		fmt.Fprintln(c.out, "MCP Server Members")
	}
	fmt.Fprintln(c.out, rule)

	c.listSection(ctx, "TOOLS", func(ctx context.Context) ([]member, error) {
		defs, err := c.session.ListTools(ctx)
		if err != nil {
			return nil, err
		}
		items := make([]member, len(defs))
		for i, d := range defs {
			items[i] = member{name: d.Name, description: d.Description}
		}
		return items, nil
	})

	c.listSection(ctx, "PROMPTS", func(ctx context.Context) ([]member, error) {
		defs, err := c.session.ListPrompts(ctx)
		if err != nil {
			return nil, err
		}
		items := make([]member, len(defs))
		for i, d := range defs {
			items[i] = member{name: d.Name, description: d.Description}
		}
		return items, nil
	})

	c.listSection(ctx, "RESOURCES", func(ctx context.Context) ([]member, error) {
		defs, err := c.session.ListResources(ctx)
		if err != nil {
			return nil, err
		}
		items := make([]member, len(defs))
		for i, d := range defs {
			items[i] = member{name: d.Name, description: d.Description}
		}
		return items, nil
	})

	fmt.Fprintf(c.out, "\n%s\n", rule)
	return nil
}

// listSection prints one listing section, absorbing its errors.
func (c *Client) listSection(ctx context.Context, title string, list func(context.Context) ([]member, error)) {
	items, err := list(ctx)
	if err != nil {
		fmt.Fprintf(c.out, "\n%s: Error - %v\n", title, err)
		return
	}
	if len(items) == 0 {
		fmt.Fprintf(c.out, "\n%s: None available\n", title)
		return
	}

	fmt.Fprintf(c.out, "\n%s (%d):\n", title, len(items))
	fmt.Fprintln(c.out, strings.Repeat("-", 30))
	for _, item := range items {
		desc := item.description
		if desc == "" {
			desc = "No description"
		}
		fmt.Fprintf(c.out, " > %s - %s\n", item.name, desc)
	}
}

// RunChat builds the query handler and runs the interactive loop.
// Handler construction failures (missing credential, unknown provider)
// are reported and absorbed; they never propagate.
func (c *Client) RunChat(ctx context.Context) error {
	if c.session == nil {
		return errors.New("not connected")
	}

	h, err := handler.New(ctx, c.session, handler.Options{
		Provider: c.provider,
		Model:    c.model,
		Getenv:   c.getenv,
		Out:      c.out,
		Logger:   c.logger,
	})
	if err != nil {
		fmt.Fprintln(c.out, term.Error("Error: "+err.Error()))
		return nil
	}

	if c.profile != nil {
		fmt.Fprintf(c.out, "\nServer: %s\n", c.profile.Name)
		fmt.Fprintf(c.out, "Description: %s\n", c.profile.Description)
	}
	fmt.Fprintf(c.out, "LLM: %s with model: %s\n", h.Name(), h.Model())

	return chat.Run(ctx, h, c.in, c.out)
}

// envList converts an env override map into sorted KEY=VALUE pairs.
func envList(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	list := make([]string, 0, len(env))
	for _, k := range keys {
		list = append(list, k+"="+env[k])
	}
	return list
}
