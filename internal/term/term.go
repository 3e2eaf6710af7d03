// Package term formats user-facing terminal output. The palette
// follows the chat UI convention: yellow user prompt, green assistant,
// red errors, blue info, magenta warnings.
package term

import "github.com/baalimago/go_away_boilerplate/pkg/ancli"

// UserPrompt returns the colored chat input prompt.
func UserPrompt() string {
	return ancli.ColoredMessage(ancli.YELLOW, "You: ")
}

// Assistant colors an assistant-attributed line.
func Assistant(text string) string {
	return ancli.ColoredMessage(ancli.GREEN, text)
}

// Error colors an error line.
func Error(text string) string {
	return ancli.ColoredMessage(ancli.RED, text)
}

// Info colors an informational line.
func Info(text string) string {
	return ancli.ColoredMessage(ancli.BLUE, text)
}

// Warning colors a warning line.
func Warning(text string) string {
	return ancli.ColoredMessage(ancli.MAGENTA, text)
}
