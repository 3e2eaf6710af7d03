// Package chat implements the interactive read-eval-print loop.
package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/joao-parana/mcp-client/internal/term"
)

// quitCommand ends the loop (case-insensitive, after trimming).
const quitCommand = "quit"

// QueryProcessor handles one user utterance. Satisfied by the handler
// package's QueryHandler.
type QueryProcessor interface {
	ProcessQuery(ctx context.Context, query string) (string, error)
}

// Run drives the chat session over the given reader and writer until
// the user quits, input ends, or ctx is cancelled. Input is read in a
// goroutine so cancellation can interrupt a blocked read. Every exit
// path prints the farewell line.
func Run(ctx context.Context, handler QueryProcessor, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "\nMCP Client's Chat Started!")
	fmt.Fprintln(out, "Type your queries or 'quit' to exit.")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

loop:
	for {
		fmt.Fprintf(out, "\n%s", term.UserPrompt())

		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "\n\nInterrupted by user")
			break loop

		case line, ok := <-lines:
			if !ok {
				// End of input behaves like quit.
				break loop
			}

			query := strings.TrimSpace(line)
			if query == "" {
				continue
			}
			if strings.EqualFold(query, quitCommand) {
				break loop
			}

			reply, err := handler.ProcessQuery(ctx, query)
			if err != nil {
				if ctx.Err() != nil {
					fmt.Fprintln(out, "\n\nInterrupted by user")
					break loop
				}
				fmt.Fprintf(out, "\n%s\n", term.Error("Error: "+err.Error()))
				continue
			}

			fmt.Fprintf(out, "\n%s\n", term.Assistant(reply))
		}
	}

	fmt.Fprintln(out, "\nGoodbye!")
	return nil
}
