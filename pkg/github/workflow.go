package github

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"strings"
)

// Check statuses and conclusions as reported by GitHub.
const (
	StatusQueued     = "queued"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"

	ConclusionSuccess   = "success"
	ConclusionFailure   = "failure"
	ConclusionSkipped   = "skipped"
	ConclusionCancelled = "cancelled"
)

// ErrNoRuns is returned when a branch has no workflow runs.
var ErrNoRuns = errors.New("no workflow runs found")

// CheckStatus is a read-only snapshot of one CI check.
type CheckStatus struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
	URL        string `json:"url"`
}

// Terminal reports whether the check has finished.
func (c CheckStatus) Terminal() bool {
	return c.Status == StatusCompleted
}

// Passed reports whether the check finished successfully.
func (c CheckStatus) Passed() bool {
	return c.Terminal() && c.Conclusion == ConclusionSuccess
}

// prCheck is one entry of `gh pr checks --json name,state,bucket,link`.
type prCheck struct {
	Name   string `json:"name"`
	State  string `json:"state"`
	Bucket string `json:"bucket"` // pass, fail, pending, skipping, cancel
	Link   string `json:"link"`
}

func (p prCheck) toStatus() CheckStatus {
	cs := CheckStatus{Name: p.Name, URL: p.Link, Status: StatusCompleted}
	switch p.Bucket {
	case "pass":
		cs.Conclusion = ConclusionSuccess
	case "fail":
		cs.Conclusion = ConclusionFailure
	case "skipping":
		cs.Conclusion = ConclusionSkipped
	case "cancel":
		cs.Conclusion = ConclusionCancelled
	default:
		cs.Status = StatusInProgress
		if strings.EqualFold(p.State, "QUEUED") {
			cs.Status = StatusQueued
		}
	}
	return cs
}

// WorkflowRun is one entry of `gh run list --json`.
//
//nolint:govet // Logical grouping preferred over memory optimization
type WorkflowRun struct {
	ID         int64  `json:"databaseId"`
	Name       string `json:"name"`
	HeadSHA    string `json:"headSha"`
	Status     string `json:"status"`     // queued, in_progress, completed
	Conclusion string `json:"conclusion"` // success, failure, cancelled, skipped, ...
	URL        string `json:"url"`
}

// Checks implements CIGateway. It reads the pull request checks for branch and,
// when no pull request exists, falls back to the workflow runs of the branch's
// latest pushed commit.
func (c *Client) Checks(ctx context.Context, branch string) ([]CheckStatus, error) {
	res, err := c.run(ctx, "pr", "checks", branch, "--json", "name,state,bucket,link")
	if err != nil {
		return nil, &GatewayError{Op: "pr checks", Class: classOf(err), Err: err}
	}

	// gh exits 1 when checks fail and 8 while they are pending; stdout still holds the JSON.
	if out := strings.TrimSpace(res.Stdout); strings.HasPrefix(out, "[") {
		var raw []prCheck
		if err := decodeJSON(out, &raw); err != nil {
			return nil, err
		}
		checks := make([]CheckStatus, 0, len(raw))
		for _, p := range raw {
			checks = append(checks, p.toStatus())
		}
		return checks, nil
	}

	stderr := strings.ToLower(res.Stderr)
	switch {
	case strings.Contains(stderr, "no checks reported"):
		return []CheckStatus{}, nil
	case strings.Contains(stderr, "no pull requests found"):
		c.logger.Debug("No pull request for %s; reading workflow runs", branch)
		return c.workflowChecks(ctx, branch)
	}

	cmdErr := fmt.Errorf("gh pr checks exited %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	return nil, &GatewayError{Op: "pr checks", Class: classOf(cmdErr), Err: cmdErr}
}

// workflowChecks converts the runs for the most recent commit on branch into checks.
func (c *Client) workflowChecks(ctx context.Context, branch string) ([]CheckStatus, error) {
	runs, err := c.WorkflowRuns(ctx, branch, 20)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return []CheckStatus{}, nil
	}

	headSHA := runs[0].HeadSHA
	checks := make([]CheckStatus, 0, len(runs))
	seen := make(map[string]bool)
	//nolint:gocritic // rangeValCopy: WorkflowRun is small, copy is acceptable
	for _, run := range runs {
		if run.HeadSHA != headSHA || seen[run.Name] {
			continue
		}
		seen[run.Name] = true
		checks = append(checks, CheckStatus{
			Name:       run.Name,
			Status:     run.Status,
			Conclusion: run.Conclusion,
			URL:        run.URL,
		})
	}
	return checks, nil
}

// WorkflowRuns lists the most recent runs on branch, newest first.
func (c *Client) WorkflowRuns(ctx context.Context, branch string, limit int) ([]WorkflowRun, error) {
	var runs []WorkflowRun
	err := c.runJSON(ctx, "run list", &runs,
		"run", "list", "--branch", branch, "--limit", strconv.Itoa(limit),
		"--json", "databaseId,name,headSha,status,conclusion,url")
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow runs for %s: %w", branch, err)
	}
	return runs, nil
}

// LatestRunLog implements CIGateway.
func (c *Client) LatestRunLog(ctx context.Context, branch string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		runs, err := c.WorkflowRuns(ctx, branch, 1)
		if err != nil {
			yield("", err)
			return
		}
		if len(runs) == 0 {
			yield("", fmt.Errorf("%w for branch %s", ErrNoRuns, branch))
			return
		}

		opts := c.opts(c.timeout * 4)
		opts.Check = true
		cmd := c.args("run", "view", strconv.FormatInt(runs[0].ID, 10), "--log")
		for line, err := range c.exec.Stream(ctx, cmd, opts) {
			if err != nil {
				yield("", &GatewayError{Op: "run view", Class: classOf(err), Err: err})
				return
			}
			if !yield(line, nil) {
				return
			}
		}
	}
}
