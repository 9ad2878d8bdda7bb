package conversation

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// Transcript is the on-disk representation of a saved conversation.
// Written on explicit /save requests; never read back by smolchat.
type Transcript struct {
	SessionID string    `json:"session_id"`
	Model     string    `json:"model"`
	SavedAt   time.Time `json:"saved_at"`
	History   []Message `json:"history"`
}

// NewTranscript snapshots the conversation for the given model under a
// fresh session identifier.
func NewTranscript(model string, c *Conversation) Transcript {
	return Transcript{
		SessionID: uuid.NewString(),
		Model:     model,
		SavedAt:   time.Now().UTC(),
		History:   c.Messages(),
	}
}

// WriteFile serializes the transcript as indented JSON at path.
func (t Transcript) WriteFile(path string) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write transcript: %w", err)
	}
	return nil
}

// DefaultTranscriptPath returns the filename used when /save is issued
// without an argument.
func DefaultTranscriptPath(now time.Time) string {
	return fmt.Sprintf("chat_%d.json", now.Unix())
}
