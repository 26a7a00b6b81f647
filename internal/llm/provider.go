// Package llm defines the provider-agnostic interface for chat model interactions.
package llm

import "context"

// Provider is the abstraction over the model backend.
type Provider interface {
	// Converse sends a conversation to the model and returns its reply.
	Converse(ctx context.Context, req *Request) (*Response, error)
	// Name returns the provider identifier (e.g. "bedrock").
	Name() string
}

// Request represents a full conversation sent to the model.
type Request struct {
	SystemPrompt string
	Messages     []Message
	MaxTokens    int
	Temperature  float64 // 0 = provider default
}

// Message is a single turn in the conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Role identifies who sent a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Response is what the model returns.
type Response struct {
	Content    string
	StopReason string // "end_turn", "max_tokens", ...
	Usage      Usage
}

// Usage tracks token consumption for cost accounting.
type Usage struct {
	InputTokens  int
	OutputTokens int
}
