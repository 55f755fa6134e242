package core

import "time"

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Message is one entry of the conversation history.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	AgentType AgentType `json:"agentType,omitempty"` // Author agent for assistant messages
	Timestamp time.Time `json:"timestamp"`
}

// NewUserMessage creates a user-authored message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content, Timestamp: time.Now().UTC()}
}

// NewAssistantMessage creates a message authored by agent t.
func NewAssistantMessage(t AgentType, content string) Message {
	return Message{Role: RoleAssistant, Content: content, AgentType: t, Timestamp: time.Now().UTC()}
}
