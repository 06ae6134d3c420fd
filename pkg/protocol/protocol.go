// Package protocol interprets the agent CLI's terminal output as a stream of typed actions.
//
// The Protocol performs no I/O: callers feed it raw text chunks and act on the
// returned actions (write a reply, record a session ID, mark the mission complete).
// Matching is independent of how the input was split into chunks.
package protocol

import (
	"regexp"
)

// AutonomousReply is sent whenever the agent asks a question.
const AutonomousReply = "Use your best judgment and make autonomous decisions.\n"

// Buffer limits. When the buffer exceeds DefaultMaxBuffer only the trailing
// DefaultKeepTail bytes are kept, enough to hold any partially received marker.
const (
	DefaultMaxBuffer = 64 * 1024
	DefaultKeepTail  = 4 * 1024
)

var (
	promptPattern    = regexp.MustCompile(`\?|\[y/n\]`)
	completedPattern = regexp.MustCompile(`(?i)100% of the requirements is met`)
	sessionIDPattern = regexp.MustCompile(`Session ID: (\S+)`)
)

// ActionKind tags an Action.
type ActionKind int

const (
	// ActionReply asks the caller to write Text to the agent's input.
	ActionReply ActionKind = iota + 1
	// ActionSessionIdentified carries the agent session identifier.
	ActionSessionIdentified
	// ActionCompleted signals the agent believes the task is fully solved.
	ActionCompleted
)

func (k ActionKind) String() string {
	switch k {
	case ActionReply:
		return "reply"
	case ActionSessionIdentified:
		return "session_identified"
	case ActionCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Action is one interpretation of a matched marker.
type Action struct {
	Kind ActionKind
	// Text is set for ActionReply.
	Text string
	// SessionID is set for ActionSessionIdentified.
	SessionID string
}

// Reply builds a reply action.
func Reply(text string) Action { return Action{Kind: ActionReply, Text: text} }

// SessionIdentified builds a session-identified action.
func SessionIdentified(id string) Action { return Action{Kind: ActionSessionIdentified, SessionID: id} }

// Completed builds a completion action.
func Completed() Action { return Action{Kind: ActionCompleted} }

// Protocol accumulates output and emits actions. It is not safe for concurrent use.
type Protocol struct {
	buf      []byte
	maxBuf   int
	keepTail int
	// afterPrompt is set when the last consumed match was a prompt marker.
	afterPrompt bool
}

// Option configures a Protocol.
type Option func(*Protocol)

// WithBufferLimits overrides the buffer cap and retained tail size.
func WithBufferLimits(maxBuf, keepTail int) Option {
	return func(p *Protocol) {
		if maxBuf > 0 {
			p.maxBuf = maxBuf
		}
		if keepTail > 0 && keepTail <= p.maxBuf {
			p.keepTail = keepTail
		}
	}
}

// New creates a Protocol with default buffer limits.
func New(opts ...Option) *Protocol {
	p := &Protocol{maxBuf: DefaultMaxBuffer, keepTail: DefaultKeepTail}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Feed appends chunk to the buffer and returns every action it can now recognize,
// in buffer order. Text before each match is discarded along with the match itself.
// Prompt markers separated only by whitespace ("Continue? [y/n]") form one prompt
// and produce a single reply. Feed never fails; content that matches nothing stays
// buffered.
func (p *Protocol) Feed(chunk string) []Action {
	if chunk == "" {
		return nil
	}
	p.buf = append(p.buf, chunk...)

	var actions []Action
	for {
		action, start, end, ok := p.earliestMatch()
		if !ok {
			break
		}
		isPrompt := action.Kind == ActionReply
		if !(isPrompt && p.afterPrompt && isBlank(p.buf[:start])) {
			actions = append(actions, action)
		}
		p.afterPrompt = isPrompt
		p.buf = p.buf[end:]
	}

	if len(p.buf) > p.maxBuf {
		tail := make([]byte, p.keepTail)
		copy(tail, p.buf[len(p.buf)-p.keepTail:])
		p.buf = tail
	}
	return actions
}

// Buffered returns the text currently held awaiting a match.
func (p *Protocol) Buffered() string {
	return string(p.buf)
}

// Reset drops any buffered text.
func (p *Protocol) Reset() {
	p.buf = p.buf[:0]
	p.afterPrompt = false
}

func isBlank(b []byte) bool {
	for _, c := range b {
		switch c {
		case ' ', '\t', '\r', '\n':
		default:
			return false
		}
	}
	return true
}

// earliestMatch finds the pattern whose match starts first.
//
// A session ID that runs to the end of the buffer may still be growing, so it is
// held back until a delimiter follows it. While it is pending nothing at or after
// its start is matched either.
func (p *Protocol) earliestMatch() (Action, int, int, bool) {
	horizon := len(p.buf)
	sidLoc := sessionIDPattern.FindSubmatchIndex(p.buf)
	if sidLoc != nil && sidLoc[1] == len(p.buf) {
		horizon = sidLoc[0]
		sidLoc = nil
	}

	bestStart := -1
	bestEnd := 0
	var best Action
	consider := func(start, end int, action Action) {
		if start >= horizon {
			return
		}
		if bestStart < 0 || start < bestStart {
			bestStart, bestEnd, best = start, end, action
		}
	}

	if loc := promptPattern.FindIndex(p.buf); loc != nil {
		consider(loc[0], loc[1], Reply(AutonomousReply))
	}
	if sidLoc != nil {
		consider(sidLoc[0], sidLoc[1], SessionIdentified(string(p.buf[sidLoc[2]:sidLoc[3]])))
	}
	if loc := completedPattern.FindIndex(p.buf); loc != nil {
		consider(loc[0], loc[1], Completed())
	}

	return best, bestStart, bestEnd, bestStart >= 0
}
