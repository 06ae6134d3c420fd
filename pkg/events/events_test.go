package events

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorKeepsOrder(t *testing.T) {
	c := NewCollector()
	c.Emit(New(CycleStart, "start", nil))
	c.Emit(New(PhaseStart, "local", map[string]any{KeyPhase: PhaseLocal}))
	c.Emit(New(CheckResult, "Security Scan", map[string]any{KeyStatus: StatusPass}))

	got := c.Events()
	require.Len(t, got, 3)
	assert.Equal(t, CycleStart, got[0].Type)
	assert.Equal(t, PhaseLocal, got[1].Str(KeyPhase))
	assert.Len(t, c.OfType(CheckResult), 1)

	// Returned slice is a copy.
	got[0].Message = "mutated"
	assert.Equal(t, "start", c.Events()[0].Message)

	c.Reset()
	assert.Empty(t, c.Events())
}

func TestCompositeFansOutAndSurvivesPanics(t *testing.T) {
	first := NewCollector()
	second := NewCollector()
	panicker := EmitterFunc(func(Event) { panic("observer bug") })

	comp := NewComposite(first, panicker)
	comp.Add(second)
	comp.Emit(New(Error, "boom", nil))

	assert.Len(t, first.Events(), 1)
	assert.Len(t, second.Events(), 1)
}

func TestNewFillsPayloadAndTimestamp(t *testing.T) {
	e := New(AgentMessage, "hello", nil)
	assert.NotNil(t, e.Payload)
	assert.False(t, e.Timestamp.IsZero())
	assert.Equal(t, "", e.Str("missing"))
}

func TestConsoleEmitter(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleEmitter(&buf)

	c.Emit(New(PhaseStart, "Local verification", nil))
	c.Emit(New(CheckRunning, "Security Scan", nil))
	c.Emit(New(CheckResult, "Security Scan", map[string]any{KeyStatus: StatusPass}))
	c.Emit(New(CheckResult, "CI Checks", map[string]any{KeyStatus: StatusFail, KeyDetail: "lint failed"}))
	c.Emit(New(Error, "teleport failed", nil))

	out := buf.String()
	assert.Contains(t, out, "Local verification")
	assert.Contains(t, out, "running")
	assert.Contains(t, out, "✅ pass")
	assert.Contains(t, out, "❌ fail")
	assert.Contains(t, out, "lint failed")
	assert.Contains(t, out, "teleport failed")
	assert.Equal(t, 5, strings.Count(out, "\n"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
}
