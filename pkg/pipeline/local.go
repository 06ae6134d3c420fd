package pipeline

import (
	"context"
	"errors"

	"viberunner/pkg/events"
	"viberunner/pkg/gemini"
)

// Step names.
const (
	StepSecurityScan = "security-scan"
	StepCodeReview   = "code-review"
	StepPush         = "push"
	StepCIPoll       = "ci-poll"
	StepLogAnalysis  = "log-analysis"
)

// analysisStep runs one gemini command against the working copy.
type analysisStep struct {
	name    string
	label   string
	check   string
	key     string
	enabled bool
	path    string
	run     func(ctx context.Context, path string) (string, error)
	emitter events.Emitter
}

// NewSecurityScanStep gates the pipeline on "gemini security scan".
func NewSecurityScanStep(analyzer gemini.Analyzer, enabled bool, path string, emitter events.Emitter) Step {
	return &analysisStep{
		name: StepSecurityScan, label: "Security Scan", check: "security", key: KeySecurityReport,
		enabled: enabled, path: path, run: analyzer.SecurityScan, emitter: orNop(emitter),
	}
}

// NewCodeReviewStep gates the pipeline on "gemini code-review".
func NewCodeReviewStep(analyzer gemini.Analyzer, enabled bool, path string, emitter events.Emitter) Step {
	return &analysisStep{
		name: StepCodeReview, label: "Code Review", check: "code-review", key: KeyReviewReport,
		enabled: enabled, path: path, run: analyzer.CodeReview, emitter: orNop(emitter),
	}
}

func (s *analysisStep) Name() string { return s.name }

func (s *analysisStep) Execute(ctx context.Context, pc *Context) Result {
	if !s.enabled {
		return Pass(s.label + " disabled")
	}

	s.emitter.Emit(events.New(events.CheckRunning, "Running "+s.label, map[string]any{
		events.KeyPhase: events.PhaseLocal, "check": s.check, events.KeyStatus: events.StatusRunning,
	}))

	out, err := s.run(ctx, s.path)
	if err != nil {
		detail := err.Error()
		var toolErr *gemini.ToolError
		if errors.As(err, &toolErr) {
			detail = toolErr.Output()
		}
		msg := s.label + " failed: " + detail
		s.emitter.Emit(events.New(events.CheckResult, msg, map[string]any{
			events.KeyPhase: events.PhaseLocal, "check": s.check, events.KeyStatus: events.StatusFail, events.KeyDetail: detail,
		}))
		return Fail(msg)
	}

	pc.Set(s.name, s.key, out)
	s.emitter.Emit(events.New(events.CheckResult, s.label+" passed", map[string]any{
		events.KeyPhase: events.PhaseLocal, "check": s.check, events.KeyStatus: events.StatusPass,
	}))
	return Pass(s.label + " passed")
}

func orNop(e events.Emitter) events.Emitter {
	if e == nil {
		return events.Nop{}
	}
	return e
}
