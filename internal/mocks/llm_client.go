package mocks

import (
	"context"
	"sync"

	"viberunner/pkg/llm"
)

type llmReply struct {
	resp llm.Response
	err  error
}

// MockLLMClient implements llm.Client. Queued replies are consumed first, then
// CompleteFunc is consulted, then Default is returned.
//
//nolint:govet // fieldalignment: mock struct layout optimized for readability
type MockLLMClient struct {
	// CompleteFunc handles calls once the queue is empty.
	CompleteFunc func(ctx context.Context, req llm.Request) (llm.Response, error)

	// Default is returned when nothing else is scripted.
	Default llm.Response

	// Calls tracks every request in order.
	Calls []llm.Request

	queue []llmReply
	model string
	mu    sync.Mutex
}

// NewMockLLMClient creates a mock that answers "Mock response".
func NewMockLLMClient(model string) *MockLLMClient {
	return &MockLLMClient{
		model:   model,
		Default: llm.Response{Content: "Mock response", StopReason: "end_turn"},
	}
}

// RespondNext queues a successful reply.
func (m *MockLLMClient) RespondNext(content string) *MockLLMClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, llmReply{resp: llm.Response{Content: content}})
	return m
}

// FailNext queues a failing reply.
func (m *MockLLMClient) FailNext(err error) *MockLLMClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, llmReply{err: err})
	return m
}

// Complete implements llm.Client.
func (m *MockLLMClient) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	if len(m.queue) > 0 {
		next := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		return next.resp, next.err
	}
	fn := m.CompleteFunc
	def := m.Default
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return def, nil
}

// Model implements llm.Client.
func (m *MockLLMClient) Model() string {
	return m.model
}

// CallCount returns the number of Complete calls.
func (m *MockLLMClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// LastPrompt returns the content of the last message of the most recent request.
func (m *MockLLMClient) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 || len(m.Calls[len(m.Calls)-1].Messages) == 0 {
		return ""
	}
	msgs := m.Calls[len(m.Calls)-1].Messages
	return msgs[len(msgs)-1].Content
}
