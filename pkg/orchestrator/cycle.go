package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"viberunner/pkg/events"
	"viberunner/pkg/persistence"
	"viberunner/pkg/pipeline"
	"viberunner/pkg/retry"
)

// MsgSuccess is the feedback of a passing cycle.
const MsgSuccess = "Success"

const feedbackPrefix = "\n\nIMPORTANT: The previous attempt failed with the following error:\n"

// CycleResult is the outcome of one cycle.
type CycleResult struct {
	Success bool
	// Feedback is MsgSuccess, the last pipeline failure, or the infrastructure error text.
	Feedback  string
	Attempts  int
	SessionID string
	Err       error
	Duration  time.Duration
}

// attempt is what one launch-verify pass produced.
type attempt struct {
	sessionID string
	report    pipeline.Report
	feedback  string
}

// RetryPrompt appends the previous failure to task.
func RetryPrompt(task, feedback string) string {
	if feedback == "" {
		return task
	}
	return task + feedbackPrefix + feedback
}

// RunCycle runs launch, wait, sync and verification until the pipeline passes
// or the retries are used up. It returns the success flag and the feedback text.
func (o *Orchestrator) RunCycle(ctx context.Context, task, branch string) (bool, string) {
	started := o.now()
	res := o.runCycle(ctx, task, branch)

	status := persistence.AttemptFailed
	switch {
	case res.Success:
		status = persistence.AttemptPassed
	case res.Err != nil:
		status = persistence.AttemptErrored
	}
	o.record(ctx, &persistence.Attempt{
		Branch:    branch,
		SessionID: res.SessionID,
		Status:    status,
		Retries:   res.Attempts,
		Feedback:  res.Feedback,
		StartedAt: started,
	})
	return res.Success, res.Feedback
}

func (o *Orchestrator) runCycle(ctx context.Context, task, branch string) CycleResult {
	start := o.now()
	o.emitter.Emit(events.New(events.CycleStart, "Starting orchestration cycle for branch: "+branch, map[string]any{
		events.KeyTask: task, events.KeyBranch: branch,
	}))

	finish := func(res CycleResult) CycleResult {
		res.Duration = o.now().Sub(start)
		o.recorder.ObserveCycle(res.Success, res.Duration)
		return res
	}

	if err := o.checkAuth(ctx); err != nil {
		o.emitError(err)
		return finish(CycleResult{Feedback: err.Error(), Err: err})
	}

	policy := retry.Policy{
		MaxAttempts: o.cfg.MaxRetries,
		Backoff:     retry.Exponential{Initial: o.cfg.BackoffInitial, Max: o.cfg.BackoffMax, Factor: 2},
		Sleep:       o.sleep,
	}

	var lastFeedback string
	outcome := retry.Do(ctx, policy, func(ctx context.Context, n int) (attempt, error) {
		o.emitter.Emit(events.New(events.PhaseStart, fmt.Sprintf("Iteration %d/%d", n, o.cfg.MaxRetries), map[string]any{
			events.KeyAttempt: n, events.KeyMax: o.cfg.MaxRetries,
		}))
		if n > 1 && lastFeedback != "" {
			o.logger.Info("Appending feedback to task description for retry.")
		}

		a, err := o.runAttempt(ctx, RetryPrompt(task, lastFeedback), branch)
		if err != nil {
			return a, err
		}
		if !a.report.Success() {
			lastFeedback = a.feedback
			o.emitter.Emit(events.New(events.PhaseStart, "Defense cycle failed. Retrying...", map[string]any{
				events.KeyStatus: events.StatusRetry, events.KeyFeedback: a.feedback,
			}))
		}
		return a, nil
	}, func(a attempt, err error) bool {
		return err == nil && !a.report.Success()
	})

	res := CycleResult{Attempts: outcome.Attempts, SessionID: outcome.Value.sessionID}
	var infra *InfrastructureError
	switch {
	case outcome.Ok():
		o.emitter.Emit(events.New(events.PhaseStart, "All strategies passed. Success!", map[string]any{
			events.KeyStatus: events.StatusSuccess,
		}))
		res.Success = true
		res.Feedback = MsgSuccess
	case errors.As(outcome.Err, &infra):
		o.emitError(infra)
		res.Feedback = infra.Error()
		res.Err = infra
	case outcome.Exhausted():
		o.emitter.Emit(events.New(events.Error, "Max retries reached. Task failed.", map[string]any{
			events.KeyStatus: events.StatusFailed, events.KeyFeedback: lastFeedback,
		}))
		res.Feedback = lastFeedback
	default:
		// cancelled between attempts
		err := &InfrastructureError{Phase: PhasePipeline, Err: outcome.Err}
		o.emitError(err)
		res.Feedback = err.Error()
		res.Err = err
	}
	return finish(res)
}

// runAttempt is one LAUNCH, AWAIT_COMPLETION, SYNC, PIPELINE pass.
func (o *Orchestrator) runAttempt(ctx context.Context, prompt, branch string) (attempt, error) {
	var a attempt

	o.emitter.Emit(events.New(events.CheckRunning, "Launching Remote Jules Session...", map[string]any{events.KeyPhase: events.PhaseAgent}))
	sid := o.agent.LaunchSession(ctx, prompt)
	if sid == "" {
		return a, &InfrastructureError{Phase: PhaseLaunch, Err: errors.New("Failed to obtain Session ID (SID).")} //nolint:staticcheck // user-facing sentence
	}
	a.sessionID = sid
	o.emitter.Emit(events.New(events.CheckResult, "Session Started: "+sid, map[string]any{
		events.KeyPhase: events.PhaseAgent, events.KeySID: sid, events.KeyStatus: events.StatusPass,
	}))

	o.emitter.Emit(events.New(events.CheckRunning, fmt.Sprintf("Waiting for SID %s to complete...", sid), map[string]any{events.KeyPhase: events.PhaseAgent}))
	if !o.agent.WaitForCompletion(ctx, sid) {
		return a, &InfrastructureError{Phase: PhaseAwait, Err: fmt.Errorf("Session %s did not complete successfully.", sid)} //nolint:staticcheck // user-facing sentence
	}

	o.emitter.Emit(events.New(events.CheckRunning, "Teleporting code to local workspace...", map[string]any{events.KeyPhase: events.PhaseAgent}))
	if !o.agent.TeleportAndSync(ctx, sid, o.cfg.WorkDir) {
		return a, &InfrastructureError{Phase: PhaseSync, Err: errors.New("Failed to sync remote code to local repository.")} //nolint:staticcheck // user-facing sentence
	}
	o.emitter.Emit(events.New(events.CheckResult, "Code synced successfully.", map[string]any{
		events.KeyPhase: events.PhaseAgent, events.KeyStatus: events.StatusPass,
	}))

	a.report = o.pipeline.Run(ctx, pipeline.NewContext(branch, sid))
	o.recorder.ObservePipeline(a.report)
	if failure, failed := a.report.Failure(); failed {
		o.logger.Warn("Strategy %s failed: %s", failure.Step, failure.Result.Message)
		a.feedback = failure.Result.Message
	}
	return a, nil
}

func (o *Orchestrator) emitError(err error) {
	var payload = map[string]any{events.KeyError: err.Error()}
	var infra *InfrastructureError
	if errors.As(err, &infra) {
		payload[events.KeyError] = infra.Err.Error()
		payload[events.KeyPhase] = infra.Phase
	}
	o.emitter.Emit(events.New(events.Error, err.Error(), payload))
}
