package models

// Role represents the role of a message sender
type Role string

const (
	// RoleUser represents a message from the user
	RoleUser Role = "user"
	// RoleAssistant represents a message from the assistant
	RoleAssistant Role = "assistant"
	// RoleSystem represents a system message
	RoleSystem Role = "system"
)

// Message represents a chat message
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// UserMessage returns a message with RoleUser
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage returns a message with RoleAssistant
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// SystemMessage returns a message with RoleSystem
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}
