package mocks

import (
	"context"
	"sync"
)

// MockAnalyzer implements gemini.Analyzer with fixed outcomes.
type MockAnalyzer struct {
	ScanReport   string
	ScanErr      error
	ReviewReport string
	ReviewErr    error

	mu    sync.Mutex
	calls []string
}

// NewMockAnalyzer creates an analyzer where both checks pass.
func NewMockAnalyzer() *MockAnalyzer {
	return &MockAnalyzer{ScanReport: "no findings", ReviewReport: "looks good"}
}

// SecurityScan implements gemini.Analyzer.
func (m *MockAnalyzer) SecurityScan(_ context.Context, _ string) (string, error) {
	m.record("security")
	return m.ScanReport, m.ScanErr
}

// CodeReview implements gemini.Analyzer.
func (m *MockAnalyzer) CodeReview(_ context.Context, _ string) (string, error) {
	m.record("code-review")
	return m.ReviewReport, m.ReviewErr
}

func (m *MockAnalyzer) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

// Calls returns the checks run, in order.
func (m *MockAnalyzer) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
