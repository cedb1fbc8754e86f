package memory

import "time"

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single exchange in a conversation.
type Message struct {
	Role      Role              `json:"role"`
	Content   string            `json:"content"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Conversation is a persisted exchange with an assistant. Agent names the
// assistant persona the conversation was held with, when one was set.
type Conversation struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Messages  []Message         `json:"messages"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Agent     string            `json:"agent,omitempty"`
	Tags      []string          `json:"tags,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AddMessage appends a message and bumps the update time.
func (c *Conversation) AddMessage(role Role, content string) {
	now := time.Now().UTC()
	c.Messages = append(c.Messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: now,
	})
	c.UpdatedAt = now
}

// MessageCount returns the number of messages.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// Context returns up to max recent messages for prompt assembly. A max of
// zero or less returns all messages.
func (c *Conversation) Context(max int) []Message {
	if max <= 0 || len(c.Messages) <= max {
		return c.Messages
	}
	return c.Messages[len(c.Messages)-max:]
}
