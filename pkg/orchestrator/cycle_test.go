package orchestrator_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viberunner/pkg/events"
	"viberunner/pkg/orchestrator"
	"viberunner/pkg/persistence"
	"viberunner/pkg/pipeline"
)

func newOrchestrator(agent *fakeAgent, step pipeline.Step, emitter events.Emitter, sleep *sleepRecorder, opts ...orchestrator.Option) *orchestrator.Orchestrator {
	cfg := orchestrator.DefaultConfig()
	cfg.MaxRetries = 3
	opts = append([]orchestrator.Option{orchestrator.WithSleep(sleep.Sleep)}, opts...)
	return orchestrator.New(cfg, agent, pipeline.New(nil, step), emitter, opts...)
}

func TestRunCycleSuccess(t *testing.T) {
	agent := newFakeAgent()
	sleep := &sleepRecorder{}
	collector := events.NewCollector()

	ok, feedback := newOrchestrator(agent, passing(), collector, sleep).RunCycle(context.Background(), "add parser", "feat/x")

	assert.True(t, ok)
	assert.Equal(t, orchestrator.MsgSuccess, feedback)
	assert.Equal(t, []string{"add parser"}, agent.Prompts())
	assert.Empty(t, sleep.waits)

	require.Len(t, collector.OfType(events.CycleStart), 1)
	phases := collector.OfType(events.PhaseStart)
	require.Len(t, phases, 2)
	assert.Equal(t, "Iteration 1/3", phases[0].Message)
	assert.Equal(t, events.StatusSuccess, phases[1].Str(events.KeyStatus))
}

func TestRunCycleRetriesWithFeedback(t *testing.T) {
	agent := newFakeAgent()
	sleep := &sleepRecorder{}
	collector := events.NewCollector()

	ok, feedback := newOrchestrator(agent, failing("lint failed", "tests failed", "build failed"), collector, sleep).
		RunCycle(context.Background(), "add parser", "feat/x")

	assert.False(t, ok)
	assert.Equal(t, "build failed", feedback)

	prompts := agent.Prompts()
	require.Len(t, prompts, 3)
	assert.Equal(t, "add parser", prompts[0])
	assert.Equal(t, "add parser\n\nIMPORTANT: The previous attempt failed with the following error:\nlint failed", prompts[1])
	assert.Equal(t, orchestrator.RetryPrompt("add parser", "tests failed"), prompts[2])

	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, sleep.waits)

	errs := collector.OfType(events.Error)
	require.Len(t, errs, 1)
	assert.Equal(t, "Max retries reached. Task failed.", errs[0].Message)
}

func TestRunCycleRecoversOnRetry(t *testing.T) {
	agent := newFakeAgent()
	step := &scriptedStep{results: []pipeline.Result{pipeline.Fail("flaky"), pipeline.Pass("ok")}}

	ok, feedback := newOrchestrator(agent, step, nil, &sleepRecorder{}).RunCycle(context.Background(), "t", "b")
	assert.True(t, ok)
	assert.Equal(t, orchestrator.MsgSuccess, feedback)
	assert.Len(t, agent.Prompts(), 2)
}

func TestRunCycleInfrastructureFailuresAbort(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(*fakeAgent)
		message string
	}{
		{"launch", func(a *fakeAgent) { a.launchErr = true }, "Agent workflow failed: Failed to obtain Session ID (SID)."},
		{"wait", func(a *fakeAgent) { a.waitOK = false }, "Agent workflow failed: Session 101 did not complete successfully."},
		{"sync", func(a *fakeAgent) { a.syncOK = false }, "Agent workflow failed: Failed to sync remote code to local repository."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent := newFakeAgent()
			tt.setup(agent)
			step := passing()
			collector := events.NewCollector()

			ok, feedback := newOrchestrator(agent, step, collector, &sleepRecorder{}).RunCycle(context.Background(), "t", "b")
			assert.False(t, ok)
			assert.Equal(t, tt.message, feedback)
			assert.Len(t, agent.Prompts(), 1, "never retried")
			assert.Zero(t, step.calls)
			require.Len(t, collector.OfType(events.Error), 1)
		})
	}
}

func TestRunCycleAuthFailsFast(t *testing.T) {
	agent := newFakeAgent()
	o := newOrchestrator(agent, passing(), nil, &sleepRecorder{},
		orchestrator.WithAuthCheck(failingAuth{err: errors.New("gh auth login required")}))

	ok, feedback := o.RunCycle(context.Background(), "t", "b")
	assert.False(t, ok)
	assert.Contains(t, feedback, "Agent workflow failed: GitHub authentication check failed")
	assert.Empty(t, agent.Prompts())
}

func TestRunCycleRecordsAttempt(t *testing.T) {
	ledger := &fakeLedger{}
	o := newOrchestrator(newFakeAgent(), failing("nope"), nil, &sleepRecorder{}, orchestrator.WithLedger(ledger))

	ok, _ := o.RunCycle(context.Background(), "t", "feat/x")
	require.False(t, ok)
	require.Len(t, ledger.attempts, 1)
	a := ledger.attempts[0]
	assert.Equal(t, persistence.AttemptFailed, a.Status)
	assert.Equal(t, 3, a.Retries)
	assert.Equal(t, "nope", a.Feedback)
	assert.Equal(t, "103", a.SessionID)
	assert.Empty(t, a.CampaignID)
}

func TestInfrastructureError(t *testing.T) {
	err := &orchestrator.InfrastructureError{Phase: orchestrator.PhaseSync, Err: errors.New("disk full")}
	assert.Equal(t, "Agent workflow failed: disk full", err.Error())
	assert.True(t, orchestrator.IsInfrastructure(err))
	assert.False(t, orchestrator.IsInfrastructure(errors.New("other")))
}
