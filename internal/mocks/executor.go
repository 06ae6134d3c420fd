package mocks

import (
	"context"
	"iter"
	"strings"
	"sync"

	"viberunner/pkg/exec"
)

// ExecCall records one Run or Stream invocation.
type ExecCall struct {
	Cmd  []string
	Opts exec.Opts
}

// Line returns the command joined with spaces.
func (c ExecCall) Line() string {
	return strings.Join(c.Cmd, " ")
}

type execRule struct {
	prefix    string
	responses []exec.Result
	err       error
	lines     []string
}

// MockExecutor implements exec.Executor with scripted responses keyed by command prefix.
// Unmatched commands succeed with empty output. When Opts.Check is set and a scripted
// result has a non-zero exit code, Run returns *exec.CommandError like the real executor.
type MockExecutor struct {
	// RunFunc, when set, handles every Run call that no rule matched.
	RunFunc func(ctx context.Context, cmd []string, opts *exec.Opts) (exec.Result, error)

	// Calls tracks every invocation in order.
	Calls []ExecCall

	rules []*execRule
	mu    sync.Mutex
}

// NewMockExecutor creates a mock whose commands all succeed.
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{}
}

// Respond scripts the results for commands starting with prefix. Results are
// returned in order; the last one repeats.
func (m *MockExecutor) Respond(prefix string, results ...exec.Result) *MockExecutor {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(results) == 0 {
		results = []exec.Result{{}}
	}
	m.rules = append(m.rules, &execRule{prefix: prefix, responses: results})
	return m
}

// Fail scripts a Go error (not an exit code) for commands starting with prefix.
func (m *MockExecutor) Fail(prefix string, err error) *MockExecutor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, &execRule{prefix: prefix, err: err})
	return m
}

// StreamLines scripts the lines yielded by Stream for commands starting with prefix.
func (m *MockExecutor) StreamLines(prefix string, lines ...string) *MockExecutor {
	m.mu.Lock()
	defer m.mu.Unlock()
	if lines == nil {
		lines = []string{}
	}
	m.rules = append(m.rules, &execRule{prefix: prefix, lines: lines})
	return m
}

// Run implements exec.Executor.
func (m *MockExecutor) Run(ctx context.Context, cmd []string, opts *exec.Opts) (exec.Result, error) {
	m.record(cmd, opts)
	line := strings.Join(cmd, " ")

	m.mu.Lock()
	rule := m.match(line, false)
	var result exec.Result
	var err error
	switch {
	case rule != nil && rule.err != nil:
		err = rule.err
	case rule != nil:
		result = rule.responses[0]
		if len(rule.responses) > 1 {
			rule.responses = rule.responses[1:]
		}
	}
	runFunc := m.RunFunc
	m.mu.Unlock()

	if rule == nil && runFunc != nil {
		result, err = runFunc(ctx, cmd, opts)
	}
	if err == nil && opts != nil && opts.Check && result.ExitCode != 0 {
		err = &exec.CommandError{Cmd: cmd, Result: result}
	}
	return result, err
}

// Stream implements exec.Executor.
func (m *MockExecutor) Stream(_ context.Context, cmd []string, opts *exec.Opts) iter.Seq2[string, error] {
	m.record(cmd, opts)
	line := strings.Join(cmd, " ")

	m.mu.Lock()
	rule := m.match(line, true)
	m.mu.Unlock()

	return func(yield func(string, error) bool) {
		if rule == nil {
			return
		}
		if rule.err != nil {
			yield("", rule.err)
			return
		}
		for _, l := range rule.lines {
			if !yield(l, nil) {
				return
			}
		}
	}
}

// Commands returns every invoked command line in order.
func (m *MockExecutor) Commands() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Calls))
	for i, c := range m.Calls {
		out[i] = c.Line()
	}
	return out
}

// CallsWithPrefix returns the calls whose command line starts with prefix.
func (m *MockExecutor) CallsWithPrefix(prefix string) []ExecCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ExecCall
	for _, c := range m.Calls {
		if strings.HasPrefix(c.Line(), prefix) {
			out = append(out, c)
		}
	}
	return out
}

func (m *MockExecutor) record(cmd []string, opts *exec.Opts) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := ExecCall{Cmd: append([]string(nil), cmd...)}
	if opts != nil {
		call.Opts = *opts
	}
	m.Calls = append(m.Calls, call)
}

// match returns the first rule for line. Stream rules and Run rules are kept apart.
func (m *MockExecutor) match(line string, stream bool) *execRule {
	for _, r := range m.rules {
		isStream := r.lines != nil
		if r.err == nil && isStream != stream {
			continue
		}
		if strings.HasPrefix(line, r.prefix) {
			return r
		}
	}
	return nil
}
