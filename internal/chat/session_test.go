package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smolchat/internal/config"
	"smolchat/internal/conversation"
	"smolchat/internal/ollama"
)

// recordingWriter keeps each Write separate so tests can assert that
// fragments were printed incrementally, not as one buffered blob.
type recordingWriter struct {
	writes []string
}

func (w *recordingWriter) Write(p []byte) (int, error) {
	w.writes = append(w.writes, string(p))
	return len(p), nil
}

func (w *recordingWriter) String() string {
	return strings.Join(w.writes, "")
}

// fakeCompleter scripts one response (or error) per successive call and
// records the message history it was handed.
type fakeCompleter struct {
	script [][]string
	errs   []error
	calls  [][]conversation.Message
}

func (f *fakeCompleter) respond(msgs []conversation.Message, onFragment func(string)) (string, error) {
	idx := len(f.calls)
	f.calls = append(f.calls, msgs)

	if idx < len(f.errs) && f.errs[idx] != nil {
		return "", f.errs[idx]
	}

	var full strings.Builder
	if idx < len(f.script) {
		for _, frag := range f.script[idx] {
			if onFragment != nil {
				onFragment(frag)
			}
			full.WriteString(frag)
		}
	}
	return full.String(), nil
}

func (f *fakeCompleter) Chat(_ context.Context, msgs []conversation.Message) (string, error) {
	return f.respond(msgs, nil)
}

func (f *fakeCompleter) ChatStream(_ context.Context, msgs []conversation.Message, onFragment func(string)) (string, error) {
	return f.respond(msgs, onFragment)
}

func newTestSession(t *testing.T, cfg *config.Config, client Completer, input string) (*Session, *recordingWriter, *recordingWriter) {
	t.Helper()
	out := &recordingWriter{}
	errOut := &recordingWriter{}
	s := New(cfg, client, strings.NewReader(input), out, errOut, nil)
	s.render = nil // deterministic plain-text output in tests
	return s, out, errOut
}

func TestRun_StreamingTurn(t *testing.T) {
	fake := &fakeCompleter{script: [][]string{{"Hi", " there"}}}
	cfg := config.DefaultConfig()
	s, out, _ := newTestSession(t, cfg, fake, "Hello\n/exit\n")

	require.NoError(t, s.Run(context.Background()))

	// The transport saw the pending user message.
	require.Len(t, fake.calls, 1)
	require.Len(t, fake.calls[0], 1)
	assert.Equal(t, conversation.Message{Role: conversation.RoleUser, Content: "Hello"}, fake.calls[0][0])

	// Conversation gained the user turn then the assembled assistant turn.
	msgs := s.conv.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, conversation.Message{Role: conversation.RoleUser, Content: "Hello"}, msgs[0])
	assert.Equal(t, conversation.Message{Role: conversation.RoleAssistant, Content: "Hi there"}, msgs[1])

	// Fragments were written as they arrived, in order.
	hiIdx, thereIdx := -1, -1
	for i, w := range out.writes {
		switch w {
		case "Hi":
			hiIdx = i
		case " there":
			thereIdx = i
		}
	}
	require.NotEqual(t, -1, hiIdx, "fragment %q not written individually", "Hi")
	require.NotEqual(t, -1, thereIdx, "fragment %q not written individually", " there")
	assert.Less(t, hiIdx, thereIdx)

	assert.Contains(t, out.String(), "Model: smollm2:1.7b")
}

func TestRun_EmptyInputReprompts(t *testing.T) {
	fake := &fakeCompleter{}
	s, out, _ := newTestSession(t, config.DefaultConfig(), fake, "\n   \n/quit\n")

	require.NoError(t, s.Run(context.Background()))

	assert.Empty(t, fake.calls, "empty input must not reach the transport")
	assert.GreaterOrEqual(t, strings.Count(out.String(), "You>"), 3, "prompt should be re-issued after empty input")
	assert.Equal(t, 0, s.conv.Len())
}

func TestRun_TransportFailureLeavesConversationUnchanged(t *testing.T) {
	fake := &fakeCompleter{
		errs:   []error{fmt.Errorf("%w: connection refused", ollama.ErrDaemonUnreachable)},
		script: [][]string{nil, {"recovered"}},
	}
	cfg := config.DefaultConfig()
	cfg.System = "You are concise."
	s, _, errOut := newTestSession(t, cfg, fake, "Hello\nAgain\n/exit\n")

	require.NoError(t, s.Run(context.Background()))

	assert.Contains(t, errOut.String(), "Cannot reach Ollama")
	assert.Contains(t, errOut.String(), "ollama serve")

	// Failed turn appended nothing; the next turn succeeded on a clean
	// history containing only the system message plus its own user turn.
	require.Len(t, fake.calls, 2)
	require.Len(t, fake.calls[1], 2)
	assert.Equal(t, conversation.RoleSystem, fake.calls[1][0].Role)
	assert.Equal(t, "Again", fake.calls[1][1].Content)

	msgs := s.conv.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "Again", msgs[1].Content)
	assert.Equal(t, "recovered", msgs[2].Content)
}

func TestRun_DecodeFailureAbortsTurnOnly(t *testing.T) {
	fake := &fakeCompleter{
		errs: []error{fmt.Errorf("%w: invalid character", ollama.ErrMalformedChunk)},
	}
	s, _, errOut := newTestSession(t, config.DefaultConfig(), fake, "Hello\n/exit\n")

	require.NoError(t, s.Run(context.Background()))
	assert.Contains(t, errOut.String(), "malformed stream chunk")
	assert.Equal(t, 0, s.conv.Len())
}

func TestRun_ResetPreservesSystemMessage(t *testing.T) {
	fake := &fakeCompleter{script: [][]string{{"first"}, {"second"}}}
	cfg := config.DefaultConfig()
	cfg.System = "You are concise."
	s, out, _ := newTestSession(t, cfg, fake, "one\ntwo\n/reset\n/exit\n")

	require.NoError(t, s.Run(context.Background()))

	msgs := s.conv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, conversation.Message{Role: conversation.RoleSystem, Content: "You are concise."}, msgs[0])
	assert.Contains(t, out.String(), "History reset.")
}

func TestRun_UnknownCommand(t *testing.T) {
	fake := &fakeCompleter{}
	s, _, errOut := newTestSession(t, config.DefaultConfig(), fake, "/unknowncmd\n/exit\n")

	require.NoError(t, s.Run(context.Background()))

	assert.Contains(t, errOut.String(), "Unknown command /unknowncmd")
	assert.Empty(t, fake.calls)
	assert.Equal(t, 0, s.conv.Len())
}

func TestRun_EOFExitsCleanly(t *testing.T) {
	fake := &fakeCompleter{script: [][]string{{"Hi"}}}
	s, out, _ := newTestSession(t, config.DefaultConfig(), fake, "Hello\n")

	require.NoError(t, s.Run(context.Background()))
	assert.Contains(t, out.String(), "Exiting.")
	assert.Equal(t, 2, s.conv.Len())
}

func TestRun_NonStreamingTurn(t *testing.T) {
	fake := &fakeCompleter{script: [][]string{{"full reply"}}}
	cfg := config.DefaultConfig()
	cfg.NoStream = true
	s, out, _ := newTestSession(t, cfg, fake, "Hello\n/exit\n")

	require.NoError(t, s.Run(context.Background()))
	assert.Contains(t, out.String(), "full reply")
	assert.Equal(t, 2, s.conv.Len())
}

func TestOneShot(t *testing.T) {
	t.Run("streaming", func(t *testing.T) {
		fake := &fakeCompleter{script: [][]string{{"Hi", " there"}}}
		s, out, _ := newTestSession(t, config.DefaultConfig(), fake, "")

		require.NoError(t, s.OneShot(context.Background(), "Hello"))
		assert.Contains(t, out.String(), "Hi there")
		require.Len(t, fake.calls, 1)
		assert.Equal(t, "Hello", fake.calls[0][0].Content)
	})

	t.Run("non-streaming", func(t *testing.T) {
		fake := &fakeCompleter{script: [][]string{{"full reply"}}}
		cfg := config.DefaultConfig()
		cfg.NoStream = true
		s, out, _ := newTestSession(t, cfg, fake, "")

		require.NoError(t, s.OneShot(context.Background(), "Hello"))
		assert.Contains(t, out.String(), "full reply")
	})

	t.Run("system prompt included", func(t *testing.T) {
		fake := &fakeCompleter{script: [][]string{{"ok"}}}
		cfg := config.DefaultConfig()
		cfg.System = "You are concise."
		s, _, _ := newTestSession(t, cfg, fake, "")

		require.NoError(t, s.OneShot(context.Background(), "Hello"))
		require.Len(t, fake.calls[0], 2)
		assert.Equal(t, conversation.RoleSystem, fake.calls[0][0].Role)
	})

	t.Run("transport failure surfaces", func(t *testing.T) {
		fake := &fakeCompleter{errs: []error{fmt.Errorf("%w: boom", ollama.ErrDaemonUnreachable)}}
		s, _, _ := newTestSession(t, config.DefaultConfig(), fake, "")

		err := s.OneShot(context.Background(), "Hello")
		assert.ErrorIs(t, err, ollama.ErrDaemonUnreachable)
	})
}

func TestHandleCommand_SaveTranscript(t *testing.T) {
	fake := &fakeCompleter{script: [][]string{{"Hi there"}}}
	path := filepath.Join(t.TempDir(), "transcript.json")
	input := fmt.Sprintf("Hello\n/save %s\n/exit\n", path)
	s, out, _ := newTestSession(t, config.DefaultConfig(), fake, input)

	require.NoError(t, s.Run(context.Background()))
	assert.Contains(t, out.String(), "Saved transcript to "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var tr conversation.Transcript
	require.NoError(t, json.Unmarshal(data, &tr))
	assert.Equal(t, "smollm2:1.7b", tr.Model)
	require.Len(t, tr.History, 2)
	assert.Equal(t, "Hi there", tr.History[1].Content)
}

func TestHandleCommand_Help(t *testing.T) {
	s, out, _ := newTestSession(t, config.DefaultConfig(), &fakeCompleter{}, "/help\n/exit\n")

	require.NoError(t, s.Run(context.Background()))
	for _, directive := range []string{"/exit", "/reset", "/save", "/help"} {
		assert.Contains(t, out.String(), directive)
	}
}
