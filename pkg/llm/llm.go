// Package llm defines the completion client used for log summarization and commit
// rewriting, along with its request/response types and classified errors.
package llm

import (
	"context"
	"strings"
)

// Role is the author of a message in a completion request.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

const (
	// TemperatureDefault keeps summaries focused with a little variation.
	TemperatureDefault = 0.3

	// DefaultMaxTokens bounds responses when a request leaves MaxTokens unset.
	DefaultMaxTokens = 512
)

// Message is one turn of a completion request.
type Message struct {
	Role    Role
	Content string
}

// Request represents a request to generate a completion.
type Request struct {
	Messages    []Message
	MaxTokens   int
	Temperature float32
}

// UserPrompt builds a single-message request.
func UserPrompt(prompt string, maxTokens int) Request {
	return Request{
		Messages:    []Message{{Role: RoleUser, Content: prompt}},
		MaxTokens:   maxTokens,
		Temperature: TemperatureDefault,
	}
}

// Tokens returns MaxTokens or DefaultMaxTokens when unset.
func (r Request) Tokens() int {
	if r.MaxTokens <= 0 {
		return DefaultMaxTokens
	}
	return r.MaxTokens
}

// System returns the system messages joined, and the remaining messages in order.
func (r Request) System() (string, []Message) {
	var system []string
	rest := make([]Message, 0, len(r.Messages))
	for _, m := range r.Messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}

// Response represents a completion.
type Response struct {
	Content    string
	StopReason string
}

// Client generates completions.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
	// Model returns the model name requests are sent to.
	Model() string
}
