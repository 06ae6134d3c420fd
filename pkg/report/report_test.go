package report

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viberunner/pkg/events"
)

func at(base time.Time, sec int, e events.Event) events.Event {
	e.Timestamp = base.Add(time.Duration(sec) * time.Second)
	return e
}

func sampleEvents() []events.Event {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return []events.Event{
		at(base, 0, events.New(events.CycleStart, "Starting orchestration cycle for branch: feat/x", nil)),
		at(base, 1, events.New(events.PhaseStart, "Iteration 1/5", map[string]any{events.KeyAttempt: 1, events.KeyMax: 5})),
		at(base, 2, events.New(events.AgentMessage, "Use your best judgment", nil)),
		at(base, 60, events.New(events.CheckResult, "Session Started: 42", map[string]any{events.KeyPhase: events.PhaseAgent, events.KeyStatus: events.StatusPass})),
		at(base, 70, events.New(events.CheckResult, "Security Scan failed: SQL injection", map[string]any{
			events.KeyPhase: events.PhaseLocal, events.KeyStatus: events.StatusFail, events.KeyDetail: "db.py:12\ndb.py:40",
		})),
		at(base, 80, events.New(events.PhaseStart, "Iteration 2/5", map[string]any{events.KeyAttempt: 2, events.KeyMax: 5})),
		at(base, 125, events.New(events.CheckResult, "CI checks passed", map[string]any{events.KeyPhase: events.PhaseRemote, events.KeyStatus: events.StatusPass})),
	}
}

func TestBuildCategorizesChecks(t *testing.T) {
	data, err := Build(sampleEvents(), Meta{Task: "add parser", Branch: "feat/x", Success: true}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, StatusSuccess, data.Status)
	assert.Equal(t, 3, data.Total)
	assert.Equal(t, 2, data.Passed)
	assert.Equal(t, 1, data.Failed)
	assert.Len(t, data.AgentChecks, 1)
	assert.Len(t, data.LocalChecks, 1)
	assert.Len(t, data.RemoteChecks, 1)
	assert.Equal(t, "2m5s", data.Duration)
	require.Len(t, data.AgentMessages, 1)
	assert.Equal(t, "10:00:02", data.AgentMessages[0].Time)
}

func TestRenderRoundTripsFrontMatter(t *testing.T) {
	out, err := Render(sampleEvents(), Meta{Task: "add parser", Branch: "feat/x"}, time.Now())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "---\n"))
	assert.Contains(t, out, "# Run Report: add parser")
	assert.Contains(t, out, "❌ Security Scan failed: SQL injection")
	assert.Contains(t, out, "  db.py:40")

	fm, err := ParseFrontMatter(out)
	require.NoError(t, err)
	assert.Equal(t, StatusFailure, fm.Status)
	assert.Equal(t, "feat/x", fm.Branch)
	assert.Equal(t, 2, fm.Attempts)
	assert.Equal(t, 3, fm.Checks.Total)
}

func TestRenderEmpty(t *testing.T) {
	out, err := Render(nil, Meta{Task: "t", Branch: "b"}, time.Now())
	require.NoError(t, err)
	assert.Contains(t, out, "_No local checks ran._")
	assert.Contains(t, out, "_None._")
}

func TestParseFrontMatterRejectsPlainMarkdown(t *testing.T) {
	_, err := ParseFrontMatter("# hello\n")
	assert.Error(t, err)
}
