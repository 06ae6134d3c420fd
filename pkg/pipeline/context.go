// Package pipeline runs the ordered verification steps of one attempt: local static
// checks, push, CI polling and failure-log analysis.
package pipeline

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Keys written to the shared data map. Each key has exactly one owning step.
const (
	KeySecurityReport = "security_report" // owner: security-scan
	KeyReviewReport   = "review_report"   // owner: code-review
	KeyPushChanged    = "push_changed"    // owner: push
	KeyCIChecks       = "ci_checks"       // owner: ci-poll
	KeyCIPassed       = "ci_passed"       // owner: ci-poll
	KeyFailureSummary = "failure_summary" // owner: log-analysis
)

// Context is the state of one attempt. TaskID, Branch and SessionID are fixed at
// construction; the data map is the only mutable part and is shared between steps.
type Context struct {
	TaskID    string
	Branch    string
	SessionID string

	mu     sync.RWMutex
	data   map[string]any
	owners map[string]string
}

// NewContext creates the context for one attempt.
func NewContext(branch, sessionID string) *Context {
	return &Context{
		TaskID:    uuid.NewString(),
		Branch:    branch,
		SessionID: sessionID,
		data:      make(map[string]any),
		owners:    make(map[string]string),
	}
}

// Set records value under key on behalf of owner. Writing a key first written by a
// different owner is a programming error and panics.
func (c *Context) Set(owner, key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.owners[key]; ok && prev != owner {
		panic(fmt.Sprintf("pipeline key %q is owned by %s, %s may not write it", key, prev, owner))
	}
	c.owners[key] = owner
	c.data[key] = value
}

// Get returns the raw value stored under key.
func (c *Context) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.data[key]
	return v, ok
}

// Owner returns the step that wrote key.
func (c *Context) Owner(key string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.owners[key]
}

// Keys returns the written keys in sorted order.
func (c *Context) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.data))
	for k := range c.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Value returns the value under key when it exists and has type T.
func Value[T any](c *Context, key string) (T, bool) {
	var zero T
	raw, ok := c.Get(key)
	if !ok {
		return zero, false
	}
	v, ok := raw.(T)
	if !ok {
		return zero, false
	}
	return v, true
}
