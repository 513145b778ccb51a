package llm

import (
	"context"
)

// Role of a chat message
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a provider-neutral chat completion request
type ChatRequest struct {
	Messages    []Message
	Temperature float64
	MaxTokens   int
	// JSONMode asks providers that support it for a JSON object reply
	JSONMode bool
	// Operation names the call in logs and errors, e.g. "extract"
	Operation string
}

// ChatClient is a chat completion provider
type ChatClient interface {
	Chat(ctx context.Context, req *ChatRequest) (string, error)
}

// NewChatRequest builds a request with an optional system message and one user message
func NewChatRequest(operation, system, user string) *ChatRequest {
	messages := make([]Message, 0, 2)
	if system != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: system})
	}
	messages = append(messages, Message{Role: RoleUser, Content: user})
	return &ChatRequest{Messages: messages, Operation: operation}
}
