package mocks

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockSCM implements scm.Gateway and records every call as a readable line,
// e.g. "push feat/x", "merge feat/x->vibe_run_1".
//
//nolint:govet // fieldalignment: mock struct layout optimized for readability
type MockSCM struct {
	// Changed is what Push reports when PushFunc is nil.
	Changed bool
	// Log is returned by CommitLog.
	Log string

	PushFunc        func(ctx context.Context, branch, message string) (bool, error)
	CheckoutNewFunc func(ctx context.Context, name, base string, pullBase bool) error
	MergeFunc       func(ctx context.Context, source, target, message string) error
	CommitLogErr    error

	mu       sync.Mutex
	calls    []string
	messages []string
	current  string
}

// NewMockSCM creates a gateway whose pushes always carry a change.
func NewMockSCM() *MockSCM {
	return &MockSCM{Changed: true, Log: "did things"}
}

func (m *MockSCM) record(format string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fmt.Sprintf(format, args...))
}

// HasChanges implements scm.Gateway.
func (m *MockSCM) HasChanges(context.Context) (bool, error) {
	m.record("status")
	return m.Changed, nil
}

// Push implements scm.Gateway.
func (m *MockSCM) Push(ctx context.Context, branch, message string) (bool, error) {
	m.record("push %s", branch)
	m.mu.Lock()
	m.messages = append(m.messages, message)
	m.mu.Unlock()
	if m.PushFunc != nil {
		return m.PushFunc(ctx, branch, message)
	}
	return m.Changed, nil
}

// CheckoutNewBranch implements scm.Gateway.
func (m *MockSCM) CheckoutNewBranch(ctx context.Context, name, base string, pullBase bool) error {
	m.record("branch %s from %s", name, base)
	if m.CheckoutNewFunc != nil {
		if err := m.CheckoutNewFunc(ctx, name, base, pullBase); err != nil {
			return err
		}
	}
	m.setCurrent(name)
	return nil
}

// Checkout implements scm.Gateway. Like a git subprocess, it fails on a done context.
func (m *MockSCM) Checkout(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.record("checkout %s", name)
	m.setCurrent(name)
	return nil
}

// MergeSquash implements scm.Gateway.
func (m *MockSCM) MergeSquash(ctx context.Context, source, target, message string) error {
	m.record("merge %s->%s", source, target)
	m.mu.Lock()
	m.messages = append(m.messages, message)
	m.mu.Unlock()
	if m.MergeFunc != nil {
		return m.MergeFunc(ctx, source, target, message)
	}
	m.setCurrent(target)
	return nil
}

// CommitLog implements scm.Gateway.
func (m *MockSCM) CommitLog(_ context.Context, base, head string) (string, error) {
	m.record("log %s..%s", base, head)
	return m.Log, m.CommitLogErr
}

// DeleteBranch implements scm.Gateway. Nothing is deleted on a done context.
func (m *MockSCM) DeleteBranch(ctx context.Context, name string) {
	if ctx.Err() != nil {
		return
	}
	m.record("delete %s", name)
}

func (m *MockSCM) setCurrent(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = name
}

// Current returns the branch last checked out.
func (m *MockSCM) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Calls returns the recorded calls in order.
func (m *MockSCM) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// CallsWithPrefix returns recorded calls starting with prefix.
func (m *MockSCM) CallsWithPrefix(prefix string) []string {
	var out []string
	for _, c := range m.Calls() {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// Messages returns commit messages passed to Push and MergeSquash.
func (m *MockSCM) Messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.messages...)
}
