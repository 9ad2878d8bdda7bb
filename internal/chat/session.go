// Package chat implements the interactive session loop: turn-taking
// between user and model, slash-command dispatch, and incremental
// rendering of streamed responses.
package chat

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"

	"smolchat/internal/config"
	"smolchat/internal/conversation"
	"smolchat/internal/ollama"
)

// Completer is the transport surface the session depends on.
// *ollama.Client satisfies it; tests substitute a fake.
type Completer interface {
	// Chat blocks until the complete response is available.
	Chat(ctx context.Context, msgs []conversation.Message) (string, error)

	// ChatStream invokes onFragment for each piece of generated text as
	// it arrives and returns the concatenated response.
	ChatStream(ctx context.Context, msgs []conversation.Message, onFragment func(string)) (string, error)
}

// Session owns the conversation and drives the read-dispatch-stream loop.
// Single-threaded: exactly one logical activity at a time.
type Session struct {
	cfg    *config.Config
	client Completer
	conv   *conversation.Conversation
	in     *bufio.Scanner
	out    io.Writer
	errOut io.Writer
	styles Styles
	render *glamour.TermRenderer
	log    *zap.Logger
}

// New creates a Session reading user input from in and writing chat
// output to out and diagnostics to errOut.
func New(cfg *config.Config, client Completer, in io.Reader, out, errOut io.Writer, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	s := &Session{
		cfg:    cfg,
		client: client,
		conv:   conversation.New(cfg.System),
		in:     scanner,
		out:    out,
		errOut: errOut,
		styles: DefaultStyles(cfg.Theme),
		log:    log,
	}

	// Complete responses are rendered as markdown; streamed fragments are
	// printed raw, so the renderer is only needed in non-streaming mode.
	if cfg.NoStream {
		if cfg.Theme == "light" {
			s.render, _ = glamour.NewTermRenderer(
				glamour.WithStylePath("light"),
				glamour.WithWordWrap(80),
			)
		} else {
			s.render, _ = glamour.NewTermRenderer(
				glamour.WithAutoStyle(),
				glamour.WithWordWrap(80),
			)
		}
	}

	return s
}

// Run drives the interactive loop until the user exits or input reaches
// EOF. Transport and decode failures are reported and the loop continues;
// they never terminate the session.
func (s *Session) Run(ctx context.Context) error {
	fmt.Fprintf(s.out, "Model: %s\n", s.cfg.Model)
	fmt.Fprintf(s.out, "%s\n\n", s.styles.Muted.Render("Type '/help' for commands. Start chatting."))

	for {
		fmt.Fprint(s.out, s.styles.UserLabel.Render("You>")+" ")

		if !s.in.Scan() {
			if err := s.in.Err(); err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			// EOF (Ctrl+D) behaves like /exit.
			fmt.Fprintln(s.out, "\nExiting.")
			return nil
		}

		input := strings.TrimSpace(s.in.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if quit := s.handleCommand(input); quit {
				return nil
			}
			continue
		}

		s.turn(ctx, input)
	}
}

// OneShot sends a single prompt, prints the response, and returns.
// Used by the -p flag; bypasses the interactive loop entirely.
func (s *Session) OneShot(ctx context.Context, prompt string) error {
	user := conversation.Message{Role: conversation.RoleUser, Content: prompt}
	msgs := append(s.conv.Messages(), user)

	if s.cfg.NoStream {
		reply, err := s.client.Chat(ctx, msgs)
		if err != nil {
			return err
		}
		fmt.Fprintln(s.out, s.renderMarkdown(reply))
		return nil
	}

	_, err := s.client.ChatStream(ctx, msgs, func(frag string) {
		fmt.Fprint(s.out, frag)
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out)
	return nil
}

// turn performs one user/assistant exchange. The user message is only
// committed to the conversation together with the assistant reply, so a
// failed turn leaves the conversation exactly as it was.
func (s *Session) turn(ctx context.Context, input string) {
	user := conversation.Message{Role: conversation.RoleUser, Content: input}
	msgs := append(s.conv.Messages(), user)

	fmt.Fprint(s.out, s.styles.AssistantLabel.Render("Assistant>")+" ")

	var reply string
	var err error
	if s.cfg.NoStream {
		reply, err = s.client.Chat(ctx, msgs)
		if err == nil {
			fmt.Fprintln(s.out, s.renderMarkdown(reply))
		}
	} else {
		reply, err = s.client.ChatStream(ctx, msgs, func(frag string) {
			fmt.Fprint(s.out, frag)
		})
		if err == nil {
			fmt.Fprintln(s.out)
		}
	}

	if err != nil {
		fmt.Fprintln(s.out)
		s.reportError(err)
		return
	}

	// Caller appends: the transport never mutates the conversation.
	_ = s.conv.Append(user)
	_ = s.conv.Append(conversation.Message{Role: conversation.RoleAssistant, Content: reply})
	s.log.Debug("turn complete",
		zap.Int("history_len", s.conv.Len()),
		zap.Int("reply_len", len(reply)))
}

// reportError renders a transport or decode failure as a user-visible
// message. Never fatal inside a session.
func (s *Session) reportError(err error) {
	s.log.Warn("turn failed", zap.Error(err))

	switch {
	case errors.Is(err, ollama.ErrDaemonUnreachable):
		fmt.Fprintln(s.errOut, s.styles.Error.Render(
			fmt.Sprintf("Cannot reach Ollama at %s. Is the daemon running?", s.cfg.BaseURL())))
		fmt.Fprintln(s.errOut, s.styles.Muted.Render("Start it with: ollama serve"))
	case errors.Is(err, ollama.ErrModelNotFound):
		fmt.Fprintln(s.errOut, s.styles.Error.Render(fmt.Sprintf("Error: %v", err)))
		fmt.Fprintln(s.errOut, s.styles.Muted.Render(fmt.Sprintf("Pull it with: ollama pull %s", s.cfg.Model)))
	default:
		fmt.Fprintln(s.errOut, s.styles.Error.Render(fmt.Sprintf("Error: %v", err)))
	}
}

// renderMarkdown renders a complete assistant response, falling back to
// the raw text when no renderer is available or rendering fails.
func (s *Session) renderMarkdown(text string) string {
	if s.render == nil {
		return text
	}
	out, err := s.render.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}
