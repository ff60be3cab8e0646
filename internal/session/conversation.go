package session

import "time"

// Message roles. RoleSystem may appear in records written by other frontends;
// the store itself only produces user and assistant turns.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// schemaVersion is written into every record. Records without the field
// (written before versioning existed) still load.
const schemaVersion = 1

// Conversation is a persisted chat session: one JSON record on disk, keyed by ID.
type Conversation struct {
	ID            string    `json:"id"`
	SchemaVersion int       `json:"schema_version,omitempty"`
	Model         string    `json:"model"`
	CreatedAt     time.Time `json:"created_at"`
	LastUpdated   time.Time `json:"last_updated"`
	Messages      []Message `json:"messages"`
}

// Message is one turn in a conversation.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Preview returns the first user message truncated for list displays.
func (c *Conversation) Preview() string {
	for _, msg := range c.Messages {
		if msg.Role == RoleUser && msg.Content != "" {
			runes := []rune(msg.Content)
			if len(runes) > 80 {
				return string(runes[:77]) + "..."
			}
			return msg.Content
		}
	}
	return ""
}
