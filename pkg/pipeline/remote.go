package pipeline

import (
	"context"
	"fmt"
	"strings"

	"viberunner/pkg/events"
	"viberunner/pkg/github"
	"viberunner/pkg/janitor"
	"viberunner/pkg/logx"
	"viberunner/pkg/retry"
	"viberunner/pkg/scm"
)

// Janitor is the commit and log cleanup the remote steps rely on.
type Janitor interface {
	Sanitize(text string) string
	HasClient() bool
	Summarize(ctx context.Context, logs string) (string, error)
	BoundExcerpt(text string) string
}

// Messages with a fixed meaning to callers.
const (
	MsgNoChanges         = "No changes detected. Task completed."
	MsgCITimeout         = "Timeout: Checks did not complete."
	MsgNoAnalysisNeeded  = "No analysis needed"
	MsgSummaryFailed     = "Log summarization failed. Please check the logs directly."
	MsgUnidentifiedCheck = "CI checks failed but could not identify specific check failure."
)

// CommitMessage is the traceable message used for every attempt push.
func CommitMessage(branch, sid string) string {
	return fmt.Sprintf("feat: implementation for %s (SID: %s)", branch, sid)
}

// PushStep stages, commits and pushes the attempt branch.
type PushStep struct {
	git     scm.Gateway
	janitor Janitor
	emitter events.Emitter
}

func NewPushStep(git scm.Gateway, janitor Janitor, emitter events.Emitter) *PushStep {
	return &PushStep{git: git, janitor: janitor, emitter: orNop(emitter)}
}

func (s *PushStep) Name() string { return StepPush }

func (s *PushStep) Execute(ctx context.Context, pc *Context) Result {
	s.emitter.Emit(events.New(events.CheckRunning, "Pushing Code", map[string]any{
		events.KeyPhase: events.PhaseRemote, events.KeyBranch: pc.Branch, events.KeyStatus: events.StatusRunning,
	}))

	message := s.janitor.Sanitize(CommitMessage(pc.Branch, pc.SessionID))
	pushed, err := s.git.Push(ctx, pc.Branch, message)
	if err != nil {
		msg := fmt.Sprintf("Failed to push code: %v", err)
		s.emitter.Emit(events.New(events.CheckResult, msg, map[string]any{
			events.KeyPhase: events.PhaseRemote, events.KeyStatus: events.StatusFail, events.KeyDetail: err.Error(),
		}))
		return Fail(msg)
	}

	pc.Set(StepPush, KeyPushChanged, pushed)
	if !pushed {
		s.emitter.Emit(events.New(events.CheckResult, "No changes detected to push", map[string]any{
			events.KeyPhase: events.PhaseRemote, events.KeyStatus: "warn",
		}))
		return Pass(MsgNoChanges)
	}

	s.emitter.Emit(events.New(events.CheckResult, "Code pushed successfully", map[string]any{
		events.KeyPhase: events.PhaseRemote, events.KeyStatus: events.StatusPass,
	}))
	return Pass("Code pushed to " + pc.Branch)
}

// CIPollStep waits for every CI check on the branch to finish.
type CIPollStep struct {
	ci     github.CIGateway
	policy retry.Policy
	// reportFailure makes a red run fail this step instead of deferring to log analysis.
	reportFailure bool
	emitter       events.Emitter
	logger        *logx.Logger
}

func NewCIPollStep(ci github.CIGateway, policy retry.Policy, reportFailure bool, emitter events.Emitter) *CIPollStep {
	return &CIPollStep{
		ci:            ci,
		policy:        policy,
		reportFailure: reportFailure,
		emitter:       orNop(emitter),
		logger:        logx.NewLogger("pipeline/ci"),
	}
}

func (s *CIPollStep) Name() string { return StepCIPoll }

// settled reports whether every check finished and whether any of them failed.
// An empty snapshot means CI has not started.
func settled(checks []github.CheckStatus) (done, failed bool) {
	if len(checks) == 0 {
		return false, false
	}
	for _, c := range checks {
		if !c.Terminal() {
			return false, false
		}
		if !c.Passed() {
			failed = true
		}
	}
	return true, failed
}

func (s *CIPollStep) Execute(ctx context.Context, pc *Context) Result {
	if changed, ok := Value[bool](pc, KeyPushChanged); ok && !changed {
		return Pass("No changes pushed; CI not polled")
	}

	s.emitter.Emit(events.New(events.CheckRunning, "Polling CI Checks", map[string]any{
		events.KeyPhase: events.PhaseRemote, events.KeyBranch: pc.Branch, events.KeyStatus: events.StatusRunning,
	}))

	outcome := retry.Do(ctx, s.policy, func(ctx context.Context, attempt int) ([]github.CheckStatus, error) {
		s.emitter.Emit(events.New(events.CheckRunning, fmt.Sprintf("Polling attempt %d", attempt), map[string]any{
			events.KeyPhase: events.PhaseRemote, events.KeyAttempt: attempt, events.KeyStatus: events.StatusRunning,
		}))
		checks, err := s.ci.Checks(ctx, pc.Branch)
		if err != nil {
			s.logger.Warn("⚠️ Poll attempt %d failed (%s): %v", attempt, retry.Classify(err), err)
		}
		return checks, err
	}, func(checks []github.CheckStatus, err error) bool {
		if err != nil {
			return true
		}
		done, _ := settled(checks)
		return !done
	})

	if outcome.Err != nil {
		s.logger.Error("❌ %s (%v)", MsgCITimeout, outcome.Err)
		s.emitter.Emit(events.New(events.CheckResult, MsgCITimeout, map[string]any{
			events.KeyPhase: events.PhaseRemote, events.KeyStatus: events.StatusFail, events.KeyAttempt: outcome.Attempts,
		}))
		return Fail(MsgCITimeout)
	}

	checks := outcome.Value
	_, failed := settled(checks)
	pc.Set(StepCIPoll, KeyCIChecks, checks)
	pc.Set(StepCIPoll, KeyCIPassed, !failed)

	if !failed {
		s.emitter.Emit(events.New(events.CheckResult, "CI checks passed", map[string]any{
			events.KeyPhase: events.PhaseRemote, events.KeyStatus: events.StatusPass, events.KeyAttempt: outcome.Attempts,
		}))
		return Pass("CI checks passed")
	}

	names := failedNames(checks)
	s.emitter.Emit(events.New(events.CheckResult, "CI checks failed: "+names, map[string]any{
		events.KeyPhase: events.PhaseRemote, events.KeyStatus: events.StatusFail, events.KeyDetail: names,
	}))
	if s.reportFailure {
		return Fail("CI checks failed: " + names)
	}
	return Pass("CI checks completed with failures: " + names)
}

func failedNames(checks []github.CheckStatus) string {
	var names []string
	for _, c := range checks {
		if !c.Passed() {
			names = append(names, c.Name)
		}
	}
	return strings.Join(names, ", ")
}

// LogAnalysisStep turns a red CI run into retry feedback.
type LogAnalysisStep struct {
	ci        github.CIGateway
	janitor   Janitor
	tailLines int
	emitter   events.Emitter
	logger    *logx.Logger
}

// DefaultLogTailLines bounds how much of a run log is held in memory.
const DefaultLogTailLines = 2000

func NewLogAnalysisStep(ci github.CIGateway, janitor Janitor, tailLines int, emitter events.Emitter) *LogAnalysisStep {
	if tailLines <= 0 {
		tailLines = DefaultLogTailLines
	}
	return &LogAnalysisStep{
		ci:        ci,
		janitor:   janitor,
		tailLines: tailLines,
		emitter:   orNop(emitter),
		logger:    logx.NewLogger("pipeline/analysis"),
	}
}

func (s *LogAnalysisStep) Name() string { return StepLogAnalysis }

func (s *LogAnalysisStep) Execute(ctx context.Context, pc *Context) Result {
	passed, ok := Value[bool](pc, KeyCIPassed)
	if !ok || passed {
		return Pass(MsgNoAnalysisNeeded)
	}

	s.logger.Info("Analyzing CI failure...")
	checks, _ := Value[[]github.CheckStatus](pc, KeyCIChecks)
	var failed *github.CheckStatus
	for i := range checks {
		if !checks[i].Passed() {
			failed = &checks[i]
			break
		}
	}
	if failed == nil {
		return s.fail(pc, MsgUnidentifiedCheck)
	}

	snippet := fmt.Sprintf("Check %s failed. URL: %s", failed.Name, failed.URL)
	snippet += janitor.LogsMarker() + strings.Join(s.tail(ctx, pc.Branch), "\n")

	if !s.janitor.HasClient() {
		s.logger.Warn("⚠️ No LLM client available for log summarization")
		return s.fail(pc, "CI checks failed. "+s.janitor.BoundExcerpt(snippet))
	}

	summary, err := s.janitor.Summarize(ctx, snippet)
	if err != nil {
		s.logger.Error("Janitor summarization failed: %v", err)
		return s.fail(pc, MsgSummaryFailed)
	}
	return s.fail(pc, summary)
}

// tail keeps the last tailLines lines of the latest run log in a fixed ring.
func (s *LogAnalysisStep) tail(ctx context.Context, branch string) []string {
	ring := make([]string, max(s.tailLines, 1))
	seen := 0
	var streamErr error
	for line, err := range s.ci.LatestRunLog(ctx, branch) {
		if err != nil {
			streamErr = err
			break
		}
		ring[seen%len(ring)] = line
		seen++
	}

	kept := min(seen, len(ring))
	lines := make([]string, 0, kept+1)
	for i := seen - kept; i < seen; i++ {
		lines = append(lines, ring[i%len(ring)])
	}
	if streamErr != nil {
		s.logger.Error("Failed to stream logs: %v", streamErr)
		lines = append(lines, fmt.Sprintf("Error streaming logs: %v", streamErr))
	}
	return lines
}

func (s *LogAnalysisStep) fail(pc *Context, message string) Result {
	pc.Set(StepLogAnalysis, KeyFailureSummary, message)
	s.emitter.Emit(events.New(events.CheckResult, "CI Failure: "+message, map[string]any{
		events.KeyPhase: events.PhaseRemote, events.KeyStatus: events.StatusFail,
	}))
	return Fail(message)
}
