// Command handling for the chat session. Directives are slash-prefixed;
// anything else is ordinary chat content.
package chat

import (
	"fmt"
	"strings"
	"time"

	"smolchat/internal/conversation"
)

const helpText = `Commands:
  /exit or /quit   Exit the chat
  /reset           Reset the conversation history
  /save [path]     Save transcript to a JSON file
  /help            Show this help
`

// handleCommand processes a slash directive. Returns true when the
// session should terminate. Unknown directives are reported and the
// session continues.
func (s *Session) handleCommand(input string) bool {
	parts := strings.Fields(input)

	switch parts[0] {
	case "/exit", "/quit":
		fmt.Fprintln(s.out, "Exiting.")
		return true

	case "/help":
		fmt.Fprint(s.out, helpText)

	case "/reset":
		s.conv.Reset()
		fmt.Fprintln(s.out, s.styles.Muted.Render("History reset."))

	case "/save":
		path := strings.TrimSpace(strings.TrimPrefix(input, "/save"))
		if path == "" {
			path = conversation.DefaultTranscriptPath(time.Now())
		}
		tr := conversation.NewTranscript(s.cfg.Model, s.conv)
		if err := tr.WriteFile(path); err != nil {
			fmt.Fprintln(s.errOut, s.styles.Error.Render(fmt.Sprintf("Failed to save transcript: %v", err)))
			return false
		}
		fmt.Fprintf(s.out, "Saved transcript to %s\n", path)

	default:
		fmt.Fprintln(s.errOut, s.styles.Error.Render(
			fmt.Sprintf("Unknown command %s. Type /help for the list.", parts[0])))
	}

	return false
}
