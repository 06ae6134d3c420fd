// Package github reads CI status and workflow logs through the gh CLI.
// All operations run on the host since they're pure API calls.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"strings"
	"time"

	"viberunner/pkg/exec"
	"viberunner/pkg/logx"
	"viberunner/pkg/retry"
)

// CIGateway is the CI surface used by the verification pipeline.
type CIGateway interface {
	// Checks returns the current check snapshot for branch. An empty slice means CI
	// has not reported anything yet.
	Checks(ctx context.Context, branch string) ([]CheckStatus, error)
	// LatestRunLog streams the log of the most recent workflow run on branch.
	// Each iteration re-runs the query.
	LatestRunLog(ctx context.Context, branch string) iter.Seq2[string, error]
}

// GatewayError is a gh failure annotated with a retry classification.
type GatewayError struct {
	Op    string
	Class retry.Class
	Err   error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gh %s failed (%s): %v", e.Op, e.Class, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Client provides GitHub operations via the gh CLI.
//
//nolint:govet // Logical grouping preferred over memory optimization
type Client struct {
	exec    exec.Executor
	repo    string // owner/repo; empty means the repository of the working directory
	workDir string
	token   string
	logger  *logx.Logger
	timeout time.Duration
}

// NewClient creates a client. repo may be empty, "owner/repo", or a GitHub URL.
func NewClient(executor exec.Executor, repo, workDir string) *Client {
	if owner, name, err := ParseGitHubURL(repo); err == nil {
		repo = owner + "/" + name
	}
	return &Client{
		exec:    executor,
		repo:    repo,
		workDir: workDir,
		logger:  logx.NewLogger("github"),
		timeout: 30 * time.Second,
	}
}

// WithToken returns a copy of the client that authenticates gh with token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// WithTimeout returns a copy of the client with the specified per-command timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	cp := *c
	cp.timeout = timeout
	return &cp
}

// RepoPath returns the owner/repo path, or "" for the working directory's repository.
func (c *Client) RepoPath() string {
	return c.repo
}

func (c *Client) opts(timeout time.Duration) *exec.Opts {
	opts := &exec.Opts{WorkDir: c.workDir, Timeout: timeout}
	if c.token != "" {
		opts.Env = []string{"GH_TOKEN=" + c.token}
	}
	return opts
}

func (c *Client) args(args ...string) []string {
	cmd := append([]string{"gh"}, args...)
	if c.repo != "" {
		cmd = append(cmd, "--repo", c.repo)
	}
	return cmd
}

// run executes a gh command. Non-zero exits are returned in the result, not as errors,
// because several gh subcommands use exit codes to report state.
func (c *Client) run(ctx context.Context, args ...string) (exec.Result, error) {
	c.logger.Debug("Executing: gh %s", strings.Join(args, " "))
	result, err := c.exec.Run(ctx, c.args(args...), c.opts(c.timeout))
	if err != nil {
		return result, fmt.Errorf("gh %s: %w", args[0], err)
	}
	return result, nil
}

// runJSON executes a gh command that must succeed and unmarshals its stdout.
func (c *Client) runJSON(ctx context.Context, op string, result any, args ...string) error {
	res, err := c.run(ctx, args...)
	if err != nil {
		return &GatewayError{Op: op, Class: retry.Classify(err), Err: err}
	}
	if !res.Success() {
		cmdErr := &exec.CommandError{Cmd: c.args(args...), Result: res}
		return &GatewayError{Op: op, Class: retry.Classify(cmdErr), Err: cmdErr}
	}
	if strings.TrimSpace(res.Stdout) == "" {
		return nil
	}
	return decodeJSON(res.Stdout, result)
}

// CheckAuth verifies that the gh CLI is authenticated.
func (c *Client) CheckAuth(ctx context.Context) error {
	res, err := c.exec.Run(ctx, []string{"gh", "auth", "status"}, c.opts(c.timeout))
	if err != nil {
		return fmt.Errorf("gh auth check failed: %w", err)
	}
	if !res.Success() {
		return fmt.Errorf("gh auth check failed: %s", res.Output())
	}
	return nil
}

// ParseGitHubURL extracts owner and repo from "owner/repo", SSH, or HTTPS forms.
func ParseGitHubURL(url string) (owner, repo string, err error) {
	var path string
	switch {
	case strings.HasPrefix(url, "git@github.com:"):
		path = strings.TrimPrefix(url, "git@github.com:")
	case strings.HasPrefix(url, "https://github.com/"):
		path = strings.TrimPrefix(url, "https://github.com/")
	case strings.Count(url, "/") == 1 && !strings.Contains(url, ":"):
		path = url
	default:
		return "", "", fmt.Errorf("unsupported Git URL format: %s", url)
	}

	path = strings.TrimSuffix(path, ".git")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GitHub repository reference: %s", url)
	}
	return parts[0], parts[1], nil
}

func classOf(err error) retry.Class {
	return retry.Classify(err)
}

func decodeJSON(out string, v any) error {
	if err := json.Unmarshal([]byte(out), v); err != nil {
		return fmt.Errorf("failed to parse JSON response: %w\nOutput: %s", err, out)
	}
	return nil
}
