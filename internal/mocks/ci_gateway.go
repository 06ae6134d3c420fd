package mocks

import (
	"context"
	"iter"
	"sync"

	"viberunner/pkg/github"
)

// MockCIGateway implements github.CIGateway. Checks returns the queued snapshots in
// order and repeats the last one once the queue is drained.
//
//nolint:govet // fieldalignment: mock struct layout optimized for readability
type MockCIGateway struct {
	ChecksFunc func(ctx context.Context, branch string) ([]github.CheckStatus, error)

	// Log lines served by LatestRunLog; LogErr is yielded after them when set.
	LogLines []string
	LogErr   error

	ChecksCalls []string
	LogCalls    []string

	mu        sync.Mutex
	snapshots []snapshot
}

type snapshot struct {
	checks []github.CheckStatus
	err    error
}

// NewMockCIGateway creates a gateway that reports no checks until scripted.
func NewMockCIGateway() *MockCIGateway {
	return &MockCIGateway{}
}

// Snapshot queues the next Checks result.
func (m *MockCIGateway) Snapshot(checks ...github.CheckStatus) *MockCIGateway {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, snapshot{checks: checks})
	return m
}

// SnapshotErr queues a failing Checks call.
func (m *MockCIGateway) SnapshotErr(err error) *MockCIGateway {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, snapshot{err: err})
	return m
}

// Checks implements github.CIGateway.
func (m *MockCIGateway) Checks(ctx context.Context, branch string) ([]github.CheckStatus, error) {
	m.mu.Lock()
	m.ChecksCalls = append(m.ChecksCalls, branch)
	fn := m.ChecksFunc
	var next *snapshot
	if len(m.snapshots) > 0 {
		s := m.snapshots[0]
		if len(m.snapshots) > 1 {
			m.snapshots = m.snapshots[1:]
		}
		next = &s
	}
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, branch)
	}
	if next == nil {
		return nil, nil
	}
	return next.checks, next.err
}

// LatestRunLog implements github.CIGateway.
func (m *MockCIGateway) LatestRunLog(_ context.Context, branch string) iter.Seq2[string, error] {
	m.mu.Lock()
	m.LogCalls = append(m.LogCalls, branch)
	lines := append([]string(nil), m.LogLines...)
	logErr := m.LogErr
	m.mu.Unlock()

	return func(yield func(string, error) bool) {
		for _, l := range lines {
			if !yield(l, nil) {
				return
			}
		}
		if logErr != nil {
			yield("", logErr)
		}
	}
}

// PollCount returns how many times Checks was called.
func (m *MockCIGateway) PollCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ChecksCalls)
}

// Passed is a finished successful check.
func Passed(name string) github.CheckStatus {
	return github.CheckStatus{Name: name, Status: github.StatusCompleted, Conclusion: github.ConclusionSuccess}
}

// Failed is a finished failed check.
func Failed(name, url string) github.CheckStatus {
	return github.CheckStatus{Name: name, Status: github.StatusCompleted, Conclusion: github.ConclusionFailure, URL: url}
}

// Pending is a check that is still running.
func Pending(name string) github.CheckStatus {
	return github.CheckStatus{Name: name, Status: github.StatusInProgress}
}
