package orchestrator_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"viberunner/pkg/persistence"
	"viberunner/pkg/pipeline"
)

// fakeAgent hands out sequential session ids and records every prompt.
type fakeAgent struct {
	mu        sync.Mutex
	prompts   []string
	launchErr bool
	waitOK    bool
	syncOK    bool
	// completeOn sets MissionComplete after the n-th launch (1-based); 0 never.
	completeOn int
	panicOn    int
	complete   bool
}

func newFakeAgent() *fakeAgent {
	return &fakeAgent{waitOK: true, syncOK: true}
}

func (a *fakeAgent) LaunchSession(_ context.Context, task string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.prompts = append(a.prompts, task)
	a.complete = false
	n := len(a.prompts)
	if a.panicOn == n {
		panic("agent exploded")
	}
	if a.launchErr {
		return ""
	}
	if a.completeOn == n {
		a.complete = true
	}
	return fmt.Sprintf("%d", 100+n)
}

func (a *fakeAgent) WaitForCompletion(context.Context, string) bool { return a.waitOK }

func (a *fakeAgent) TeleportAndSync(context.Context, string, string) bool { return a.syncOK }

func (a *fakeAgent) MissionComplete() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.complete
}

func (a *fakeAgent) Prompts() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.prompts...)
}

// scriptedStep returns its results in order, repeating the last.
type scriptedStep struct {
	mu      sync.Mutex
	results []pipeline.Result
	calls   int
}

func passing() *scriptedStep { return &scriptedStep{results: []pipeline.Result{pipeline.Pass("ok")}} }

func failing(messages ...string) *scriptedStep {
	s := &scriptedStep{}
	for _, m := range messages {
		s.results = append(s.results, pipeline.Fail(m))
	}
	return s
}

func (s *scriptedStep) Name() string { return "scripted" }

func (s *scriptedStep) Execute(context.Context, *pipeline.Context) pipeline.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	return s.results[i]
}

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	return ctx.Err()
}

type failingAuth struct{ err error }

func (f failingAuth) CheckAuth(context.Context) error { return f.err }

type fakeLedger struct {
	mu        sync.Mutex
	attempts  []persistence.Attempt
	campaigns []persistence.Campaign
	finished  map[string]string
}

func (l *fakeLedger) StartCampaign(_ context.Context, c *persistence.Campaign) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.campaigns = append(l.campaigns, *c)
	return nil
}

func (l *fakeLedger) FinishCampaign(_ context.Context, id, status string, _ int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.finished == nil {
		l.finished = map[string]string{}
	}
	l.finished[id] = status
	return nil
}

func (l *fakeLedger) RecordAttempt(_ context.Context, a *persistence.Attempt) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts = append(l.attempts, *a)
	return nil
}
