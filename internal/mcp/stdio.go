package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"
)

// stopGrace bounds how long Close waits for the subprocess to exit
// after its stdin is closed.
const stopGrace = 5 * time.Second

// StdioConfig describes the subprocess behind a stdio transport.
type StdioConfig struct {
	// Command and Args form the exec invocation.
	Command string
	Args    []string

	// Env entries ("KEY=VALUE") are appended to the inherited
	// environment.
	Env []string

	Logger *slog.Logger
}

// StdioTransport frames JSON-RPC messages as single lines on a child
// process's stdin and stdout. The child is spawned on first use and
// owned by the transport until Close. A mutex serializes every call:
// one pipe pair can only carry one exchange at a time.
type StdioTransport struct {
	cfg    StdioConfig
	logger *slog.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
}

// NewStdioTransport creates a transport for the given subprocess
// configuration. Nothing is spawned until the first call.
func NewStdioTransport(cfg StdioConfig) *StdioTransport {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &StdioTransport{
		cfg:    cfg,
		logger: logger,
	}
}

// launch spawns the child when none is running. The child's lifetime
// is not tied to any call context; only reset and stop end it. Caller
// holds t.mu.
func (t *StdioTransport) launch() error {
	if t.cmd != nil && t.cmd.ProcessState == nil {
		// Already running.
		return nil
	}

	t.logger.Info("spawning MCP server process",
		"command", t.cfg.Command,
		"args", t.cfg.Args,
	)

	cmd := exec.Command(t.cfg.Command, t.cfg.Args...)
	cmd.Env = append(os.Environ(), t.cfg.Env...)

	in, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}
	out, err := cmd.StdoutPipe()
	if err != nil {
		in.Close()
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	diag, err := cmd.StderrPipe()
	if err != nil {
		in.Close()
		out.Close()
		return fmt.Errorf("create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		diag.Close()
		out.Close()
		in.Close()
		return fmt.Errorf("start subprocess %s: %w", t.cfg.Command, err)
	}

	t.cmd = cmd
	t.stdin = in
	t.stdout = bufio.NewReaderSize(out, 1<<20) // tool results can be large

	// Stderr is not part of the protocol.
	go t.forwardStderr(diag)

	t.logger.Info("MCP server process started", "pid", cmd.Process.Pid)
	return nil
}

// forwardStderr turns the child's stderr lines into debug records.
func (t *StdioTransport) forwardStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for scanner.Scan() {
		t.logger.Debug("MCP server stderr", "line", scanner.Text())
	}
}

// Send writes one request line and reads output lines until the reply
// with the request's id shows up.
func (t *StdioTransport) Send(ctx context.Context, req *Request) (*Response, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.launch(); err != nil {
		return nil, err
	}
	if err := t.writeLine(req); err != nil {
		return nil, err
	}
	return t.awaitResponse(ctx, req.ID)
}

// Notify writes one notification line. No reply is read.
func (t *StdioTransport) Notify(ctx context.Context, notif *Notification) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.launch(); err != nil {
		return err
	}
	return t.writeLine(notif)
}

// writeLine marshals v and writes it newline-terminated to the child's
// stdin. A write failure tears the child down. Caller holds t.mu.
func (t *StdioTransport) writeLine(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if _, err := t.stdin.Write(append(data, '\n')); err != nil {
		t.reset()
		return fmt.Errorf("write to subprocess stdin: %w", err)
	}
	return nil
}

// awaitResponse reads stdout lines until one parses as a response
// carrying the wanted id. The child may interleave log output and
// server-initiated messages before the reply; those are skipped. Each
// read runs in a goroutine so a cancelled context can abandon it; the
// child is then killed, since its pipe no longer has a consumer.
// Caller holds t.mu.
func (t *StdioTransport) awaitResponse(ctx context.Context, id int64) (*Response, error) {
	type outcome struct {
		line []byte
		err  error
	}

	reader := t.stdout
	for {
		ch := make(chan outcome, 1)
		go func() {
			line, err := reader.ReadBytes('\n')
			ch <- outcome{line: line, err: err}
		}()

		select {
		case <-ctx.Done():
			t.reset()
			return nil, ctx.Err()

		case res := <-ch:
			if res.err != nil {
				t.reset()
				return nil, fmt.Errorf("read from subprocess stdout: %w", res.err)
			}

			var resp Response
			if err := json.Unmarshal(res.line, &resp); err != nil {
				t.logger.Debug("discarding non-protocol output", "line", string(res.line))
				continue
			}
			if resp.ID != id {
				t.logger.Debug("discarding unmatched message", "id", resp.ID)
				continue
			}
			return &resp, nil
		}
	}
}

// Close terminates the child and releases its pipes.
func (t *StdioTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.stop()
}

// stop closes stdin, which asks the child to exit, and waits up to
// stopGrace before killing it. Caller holds t.mu.
func (t *StdioTransport) stop() error {
	if t.cmd == nil || t.cmd.Process == nil {
		return nil
	}

	t.logger.Info("stopping MCP server process", "pid", t.cmd.Process.Pid)

	if t.stdin != nil {
		t.stdin.Close()
	}

	done := make(chan error, 1)
	go func() { done <- t.cmd.Wait() }()

	select {
	case err := <-done:
		t.cmd = nil
		return err
	case <-time.After(stopGrace):
		t.logger.Warn("MCP server process did not exit, killing", "pid", t.cmd.Process.Pid)
		_ = t.cmd.Process.Kill()
		<-done
		t.cmd = nil
		return nil
	}
}

// reset tears the child down after a broken exchange so the next call
// starts fresh. Caller holds t.mu.
func (t *StdioTransport) reset() {
	if t.stdin != nil {
		t.stdin.Close()
	}
	if t.cmd != nil && t.cmd.Process != nil {
		_ = t.cmd.Process.Kill()
		_ = t.cmd.Wait()
	}
	t.cmd = nil
	t.stdin = nil
	t.stdout = nil
}
