// Package events defines the automation events broadcast during a cycle and the
// emitters that observe them. Emission is fire-and-forget: emitters never return errors.
package events

import (
	"sync"
	"time"

	"viberunner/pkg/logx"
)

// Type identifies what happened.
type Type string

const (
	CycleStart   Type = "cycle_start"
	PhaseStart   Type = "phase_start"
	CheckRunning Type = "check_running"
	CheckResult  Type = "check_result"
	AgentMessage Type = "agent_message"
	Error        Type = "error"
)

// Payload keys with a fixed meaning.
const (
	KeyPhase   = "phase"
	KeyStatus  = "status"
	KeyAttempt = "attempt"
	KeyBranch  = "branch"
	KeyDetail  = "detail"
	KeySID     = "sid"
	KeyTask    = "task"
	KeyMax     = "max_retries"
	KeyError   = "error"
	// KeyFeedback carries the failure message handed to the next attempt.
	KeyFeedback = "feedback"
)

// Check statuses carried under KeyStatus.
const (
	StatusRunning = "running"
	StatusPass    = "pass"
	StatusFail    = "fail"
)

// Cycle outcomes carried under KeyStatus on PhaseStart and Error events.
const (
	StatusSuccess = "success"
	StatusRetry   = "retry"
	StatusFailed  = "failed"
)

// Phase names carried under KeyPhase.
const (
	PhaseAgent  = "agent"
	PhaseLocal  = "local"
	PhaseRemote = "remote"
)

// Event is a single automation event.
type Event struct {
	Type      Type           `json:"type"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// New stamps an event with the current time.
func New(t Type, message string, payload map[string]any) Event {
	if payload == nil {
		payload = map[string]any{}
	}
	return Event{Type: t, Message: message, Timestamp: time.Now().UTC(), Payload: payload}
}

// Str returns a string payload value or "".
func (e Event) Str(key string) string {
	if v, ok := e.Payload[key].(string); ok {
		return v
	}
	return ""
}

// Emitter observes events.
type Emitter interface {
	Emit(Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Event)

// Emit implements Emitter.
func (f EmitterFunc) Emit(e Event) { f(e) }

// Nop discards events.
type Nop struct{}

// Emit implements Emitter.
func (Nop) Emit(Event) {}

// LogEmitter writes events to a logx logger.
type LogEmitter struct {
	logger *logx.Logger
}

// NewLogEmitter creates a LogEmitter tagged "events".
func NewLogEmitter() *LogEmitter {
	return &LogEmitter{logger: logx.NewLogger("events")}
}

// Emit implements Emitter.
func (l *LogEmitter) Emit(e Event) {
	switch e.Type {
	case Error:
		l.logger.Error("%s", e.Message)
	case CheckResult:
		if e.Str(KeyStatus) == StatusFail {
			l.logger.Warn("❌ %s", e.Message)
		} else {
			l.logger.Info("✅ %s", e.Message)
		}
	case CheckRunning:
		l.logger.Debug("⏳ %s", e.Message)
	default:
		l.logger.Info("[%s] %s", e.Type, e.Message)
	}
}

// Collector records every event in order.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Emit implements Emitter.
func (c *Collector) Emit(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

// Events returns a copy of the recorded events.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

// OfType returns the recorded events of type t.
func (c *Collector) OfType(t Type) []Event {
	var out []Event
	for _, e := range c.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Reset drops all recorded events.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}

// Composite fans an event out to several emitters in registration order.
type Composite struct {
	mu       sync.RWMutex
	emitters []Emitter
}

// NewComposite creates a Composite over emitters.
func NewComposite(emitters ...Emitter) *Composite {
	return &Composite{emitters: emitters}
}

// Add registers another emitter.
func (c *Composite) Add(e Emitter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emitters = append(c.emitters, e)
}

// Emit implements Emitter. A panicking observer does not stop the others.
func (c *Composite) Emit(e Event) {
	c.mu.RLock()
	emitters := make([]Emitter, len(c.emitters))
	copy(emitters, c.emitters)
	c.mu.RUnlock()

	for _, em := range emitters {
		emitSafely(em, e)
	}
}

func emitSafely(em Emitter, e Event) {
	defer func() {
		if r := recover(); r != nil {
			logx.NewLogger("events").Warn("event observer panicked: %v", r)
		}
	}()
	em.Emit(e)
}
