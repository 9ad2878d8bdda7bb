// Package conversation holds the in-memory dialogue state for a chat
// session: an ordered list of role-tagged messages plus transcript export.
package conversation

import (
	"fmt"
)

// Message roles understood by the daemon.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn in the dialogue. Immutable once appended.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ValidRole reports whether role is one the daemon accepts.
func ValidRole(role string) bool {
	switch role {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Conversation is an append-only message list owned by the session loop.
// Invariant: at most one system message, and it sits at index 0.
// Not safe for concurrent use; the session loop is single-threaded.
type Conversation struct {
	messages []Message
}

// New creates a Conversation, seeded with a system message when
// systemPrompt is non-empty.
func New(systemPrompt string) *Conversation {
	c := &Conversation{}
	if systemPrompt != "" {
		c.messages = append(c.messages, Message{Role: RoleSystem, Content: systemPrompt})
	}
	return c
}

// Append adds a message to the end of the history.
// System messages may only be appended to an empty conversation.
func (c *Conversation) Append(msg Message) error {
	if !ValidRole(msg.Role) {
		return fmt.Errorf("invalid message role %q", msg.Role)
	}
	if msg.Role == RoleSystem && len(c.messages) > 0 {
		return fmt.Errorf("system message must be first")
	}
	c.messages = append(c.messages, msg)
	return nil
}

// Reset drops all messages except a leading system message, if any.
func (c *Conversation) Reset() {
	if len(c.messages) > 0 && c.messages[0].Role == RoleSystem {
		c.messages = c.messages[:1]
		return
	}
	c.messages = nil
}

// Messages returns a copy of the history in chronological order.
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages in the history.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// SystemPrompt returns the system message content, or "" if none is set.
func (c *Conversation) SystemPrompt() string {
	if len(c.messages) > 0 && c.messages[0].Role == RoleSystem {
		return c.messages[0].Content
	}
	return ""
}
