// Command mcp-client connects to an MCP server over stdio and either
// lists the server's members or runs an interactive, tool-augmented
// chat against an LLM provider.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/joao-parana/mcp-client/internal/buildinfo"
	"github.com/joao-parana/mcp-client/internal/client"
	"github.com/joao-parana/mcp-client/internal/config"
	"github.com/joao-parana/mcp-client/internal/handler"
)

type options struct {
	server      string
	listServers bool
	members     bool
	chatMode    bool
	provider    string
	model       string
	verbose     bool
	configPath  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := run(ctx, os.Stdin, os.Stdout, os.Stderr, os.Args[1:])
	stop()
	os.Exit(code)
}

// run wires logging, parses the CLI surface, and dispatches. It returns
// the process exit code so main stays trivial.
func run(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, args []string) int {
	logger, levelErr := newLogger(stderr, os.Getenv("MCP_CLIENT_LOG_LEVEL"))
	if levelErr != nil {
		fmt.Fprintf(stderr, "Warning: %v\n", levelErr)
	}
	slog.SetDefault(logger)

	cmd := newRootCmd(stdin, stdout, logger)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	// An interrupted chat session ends cleanly: the loop prints its
	// farewell and returns nil.
	return 0
}

// newLogger builds the slog handler for the process. Level parse
// failures fall back to the default level and are reported by the
// caller.
func newLogger(w io.Writer, levelName string) (*slog.Logger, error) {
	level, err := config.ParseLogLevel(levelName)
	h := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	})
	return slog.New(h), err
}

func newRootCmd(stdin io.Reader, stdout io.Writer, logger *slog.Logger) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "mcp-client [server-script]",
		Short: "CLI client for MCP tool servers",
		Long: "mcp-client connects to a Model Context Protocol server over a stdio\n" +
			"subprocess transport. It can enumerate the server's tools, prompts, and\n" +
			"resources, or run an interactive chat in which an LLM invokes the\n" +
			"server's tools on the user's behalf.",
		Version:       buildinfo.Version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd.Context(), stdin, stdout, logger, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.server, "server", "s", "", "configured server name from the registry")
	cmd.Flags().BoolVar(&opts.listServers, "list-servers", false, "list configured servers and exit")
	cmd.Flags().BoolVar(&opts.members, "members", false, "list the server's tools, prompts, and resources")
	cmd.Flags().BoolVar(&opts.chatMode, "chat", false, "start an interactive chat session")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "LLM provider: openai or ollama (default: auto-detect)")
	cmd.Flags().StringVar(&opts.model, "model", "", "model to use (default: provider-specific)")
	cmd.Flags().BoolVar(&opts.verbose, "docker-verbose", false, "print connection diagnostics")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "server registry path (default: "+config.DefaultPath+")")

	cmd.MarkFlagsMutuallyExclusive("server", "list-servers")
	cmd.MarkFlagsMutuallyExclusive("members", "chat")

	return cmd
}

// execute validates the parsed surface and dispatches to the selected
// operation.
func execute(ctx context.Context, stdin io.Reader, stdout io.Writer, logger *slog.Logger, opts *options, args []string) error {
	if len(args) == 1 && (opts.server != "" || opts.listServers) {
		return errors.New("a server script path cannot be combined with --server or --list-servers")
	}

	if opts.listServers {
		return listServers(stdout, opts.configPath)
	}

	switch opts.provider {
	case "", handler.ProviderOpenAI, handler.ProviderOllama:
	default:
		return fmt.Errorf("unknown provider %q (valid options: openai, ollama)", opts.provider)
	}

	clientOpts := client.Options{
		Provider: opts.provider,
		Model:    opts.model,
		Verbose:  opts.verbose,
		In:       stdin,
		Out:      stdout,
		Logger:   logger,
	}

	switch {
	case opts.server != "":
		registry, err := loadRegistry(opts.configPath)
		if err != nil {
			return err
		}
		profile, err := registry.Get(opts.server)
		if err != nil {
			return fmt.Errorf("%w\nUse --list-servers to see available servers", err)
		}
		fmt.Fprintf(stdout, "Using configured server: %s\n", profile.Name)
		if profile.Description != "" {
			fmt.Fprintf(stdout, "Description: %s\n", profile.Description)
		}
		clientOpts.Profile = &profile

	case len(args) == 1:
		path := args[0]
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("Server script '%s' not found", path)
		}
		clientOpts.ServerPath = path

	default:
		return errors.New("either server_path or --server must be specified (or use --list-servers)")
	}

	if !opts.members && !opts.chatMode {
		return errors.New("one of --members or --chat is required (unless using --list-servers)")
	}

	c, err := client.New(clientOpts)
	if err != nil {
		return err
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	defer c.Close()

	if opts.members {
		return c.ListAllMembers(ctx)
	}
	return c.RunChat(ctx)
}

// listServers prints the registry summary table.
func listServers(stdout io.Writer, path string) error {
	registry, err := loadRegistry(path)
	if err != nil {
		return err
	}
	registry.PrintTable(stdout)
	return nil
}

// loadRegistry loads the server registry, attaching remediation for a
// missing document.
func loadRegistry(path string) (*config.Registry, error) {
	registry, err := config.Load(path)
	if errors.Is(err, config.ErrNotFound) {
		expected := path
		if expected == "" {
			expected = config.DefaultPath
		}
		return nil, fmt.Errorf("%w\nExpected: %s", err, expected)
	}
	return registry, err
}
