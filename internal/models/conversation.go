// internal/models/conversation.go
package models

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one entry in a tenant's conversation history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
