package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"viberunner/pkg/persistence"
	"viberunner/pkg/retry"
)

// Iteration outcomes.
const (
	IterationMerged  = "merged"
	IterationFailed  = "failed"
	IterationErrored = "errored"
)

// ErrCampaignUnsupported is returned when no source-control gateway was configured.
var ErrCampaignUnsupported = errors.New("source control and janitor are required for campaign mode")

// CampaignResult summarizes a finished campaign.
type CampaignResult struct {
	ID              string
	RunID           string
	Branch          string
	Limit           int
	Iterations      int
	Merged          int
	Failed          int
	Errored         int
	MissionComplete bool
}

// AggregationBranch names the campaign branch for runID.
func AggregationBranch(runID string) string {
	return "vibe_run_" + runID
}

// IterationBranch names iteration i of the campaign on aggregation branch agg.
func IterationBranch(agg string, i int) string {
	return fmt.Sprintf("%s_%03d", agg, i)
}

func randomRunID() string {
	var b strings.Builder
	for range 10 {
		b.WriteByte(byte('0' + rand.IntN(10)))
	}
	return b.String()
}

// RunCampaign runs up to iterations cycles, each on its own branch cut from a
// single aggregation branch, squash-merging every passing iteration. iterations
// <= 0 runs until mission complete or the safety ceiling.
func (o *Orchestrator) RunCampaign(ctx context.Context, task, baseBranch string, iterations int) (*CampaignResult, error) {
	if o.git == nil || o.janitor == nil {
		return nil, ErrCampaignUnsupported
	}
	if err := o.checkAuth(ctx); err != nil {
		o.emitError(err)
		return nil, err
	}

	limit := iterations
	if limit <= 0 {
		limit = o.cfg.MaxIterations
		o.logger.Info("Campaign Mode: Infinite (Safety Limit: %d)", limit)
	} else {
		o.logger.Info("Campaign Mode: Fixed (%d)", limit)
	}

	runID := o.runID()
	agg := AggregationBranch(runID)
	res := &CampaignResult{ID: persistence.NewID(), RunID: runID, Branch: agg, Limit: limit}

	o.logger.Info("🚀 Starting Campaign ID: %s. Aggregation Branch: %s", runID, agg)
	if err := o.git.CheckoutNewBranch(ctx, agg, baseBranch, true); err != nil {
		return nil, fmt.Errorf("failed to create aggregation branch %s: %w", agg, err)
	}

	if o.ledger != nil {
		if err := o.ledger.StartCampaign(ctx, &persistence.Campaign{
			ID: res.ID, Task: task, BaseBranch: baseBranch, Branch: agg, Limit: limit,
		}); err != nil {
			o.logger.Warn("⚠️ Failed to record campaign start: %v", err)
		}
	}

	for i := 1; i <= limit; i++ {
		if ctx.Err() != nil {
			o.logger.Warn("Campaign cancelled after %d iterations", res.Iterations)
			break
		}
		res.Iterations = i
		branch := IterationBranch(agg, i)
		o.logger.Info("--- Campaign Iteration %d/%d: %s ---", i, limit, branch)

		outcome := o.runIteration(ctx, task, agg, branch, res.ID, i)
		o.recorder.ObserveIteration(outcome)
		switch outcome {
		case IterationMerged:
			res.Merged++
		case IterationFailed:
			res.Failed++
		default:
			res.Errored++
		}

		if outcome == IterationMerged && o.agent.MissionComplete() {
			o.logger.Info("🎉 Mission Complete! '100%% of the requirements is met' signal received.")
			res.MissionComplete = true
			break
		}
	}

	status := persistence.CampaignFinished
	switch {
	case res.MissionComplete:
		status = persistence.CampaignComplete
	case ctx.Err() != nil:
		status = persistence.CampaignAborted
	}
	if o.ledger != nil {
		// The run context may already be cancelled; the final status should still land.
		if err := o.ledger.FinishCampaign(context.WithoutCancel(ctx), res.ID, status, res.Iterations); err != nil {
			o.logger.Warn("⚠️ Failed to record campaign end: %v", err)
		}
	}
	o.logger.Info("Campaign %s finished: %d merged, %d failed, %d errored", runID, res.Merged, res.Failed, res.Errored)
	return res, nil
}

// runIteration never panics and never returns an error; every problem becomes
// an outcome and the iteration branch is cleaned up.
func (o *Orchestrator) runIteration(ctx context.Context, task, agg, branch, campaignID string, i int) (outcome string) {
	started := o.now()
	rec := &persistence.Attempt{CampaignID: campaignID, Iteration: i, Branch: branch, StartedAt: started}

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("❌ Iteration %d encountered an error: %v", i, r)
			o.cleanup(ctx, agg, branch)
			outcome = IterationErrored
			rec.Feedback = fmt.Sprint(r)
		}
		rec.Status = outcome
		o.record(ctx, rec)
	}()

	if err := o.git.CheckoutNewBranch(ctx, branch, agg, false); err != nil {
		o.logger.Error("❌ Iteration %d encountered an error: %v", i, err)
		rec.Feedback = err.Error()
		o.cleanup(ctx, agg, branch)
		return IterationErrored
	}

	cycle := o.runCycle(ctx, task, branch)
	rec.SessionID = cycle.SessionID
	rec.Retries = cycle.Attempts
	rec.Feedback = cycle.Feedback

	if !cycle.Success {
		o.logger.Warn("Iteration %d Failed: %s. Continuing to next iteration.", i, cycle.Feedback)
		o.cleanup(ctx, agg, branch)
		if cycle.Err != nil {
			return IterationErrored
		}
		return IterationFailed
	}

	o.logger.Info("✅ Iteration %d Succeeded. Merging into %s...", i, agg)
	message, err := o.commitMessage(ctx, agg, branch)
	if err != nil {
		o.logger.Error("❌ Iteration %d encountered an error: %v", i, err)
		rec.Feedback = err.Error()
		o.cleanup(ctx, agg, branch)
		return IterationErrored
	}
	rec.CommitMessage = message

	if err := o.git.MergeSquash(ctx, branch, agg, message); err != nil {
		o.logger.Error("❌ Iteration %d encountered an error: %v", i, err)
		rec.Feedback = err.Error()
		o.cleanup(ctx, agg, branch)
		return IterationErrored
	}
	o.git.DeleteBranch(context.WithoutCancel(ctx), branch)
	return IterationMerged
}

// commitMessage fetches the iteration's commit log and rewrites it, falling back
// to the sanitized raw log when rewriting keeps failing.
func (o *Orchestrator) commitMessage(ctx context.Context, agg, branch string) (string, error) {
	raw, err := o.git.CommitLog(ctx, agg, branch)
	if err != nil {
		return "", err
	}
	if !o.janitor.HasClient() {
		return o.janitor.Sanitize(raw), nil
	}

	outcome := retry.Do(ctx, retry.Policy{MaxAttempts: o.cfg.ProfessionalizeAttempts, Backoff: retry.NoDelay(), Sleep: o.sleep},
		func(ctx context.Context, _ int) (string, error) {
			return o.janitor.Professionalize(ctx, raw)
		}, retry.OnError[string]())
	if !outcome.Ok() {
		o.logger.Error("Professionalize commit failed: %v", outcome.Err)
		return o.janitor.Sanitize(raw), nil
	}
	return outcome.Value, nil
}

// cleanup leaves the iteration branch and deletes it. Its own failures are swallowed.
// It runs detached from ctx cancellation.
func (o *Orchestrator) cleanup(ctx context.Context, agg, branch string) {
	ctx = context.WithoutCancel(ctx)
	defer func() {
		if r := recover(); r != nil {
			o.logger.Warn("⚠️ Cleanup of %s failed: %v", branch, r)
		}
	}()
	if err := o.git.Checkout(ctx, agg); err != nil {
		o.logger.Warn("⚠️ Failed to return to %s: %v", agg, err)
	}
	o.git.DeleteBranch(ctx, branch)
}
