// Package gemini wraps the gemini CLI used for local security scans and code review.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"viberunner/pkg/exec"
	"viberunner/pkg/logx"
)

// DefaultExecutable is the CLI name looked up on PATH.
const DefaultExecutable = "gemini"

// Analyzer is the static-analysis surface used by the local pipeline steps.
type Analyzer interface {
	SecurityScan(ctx context.Context, path string) (string, error)
	CodeReview(ctx context.Context, path string) (string, error)
}

// ToolError reports a gemini invocation that exited non-zero or could not start.
type ToolError struct {
	Op  string
	Err error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("gemini %s failed: %v", e.Op, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// Output returns the tool's combined output when the failure carried one.
func (e *ToolError) Output() string {
	var cmdErr *exec.CommandError
	if errors.As(e.Err, &cmdErr) {
		return cmdErr.Result.Output()
	}
	return e.Err.Error()
}

// CLI implements Analyzer by shelling out to the gemini executable.
type CLI struct {
	exec       exec.Executor
	executable string
	workDir    string
	env        []string
	timeout    time.Duration
	logger     *logx.Logger
}

// NewCLI creates an analyzer that runs commands in workDir.
func NewCLI(executor exec.Executor, workDir string) *CLI {
	return &CLI{
		exec:       executor,
		executable: DefaultExecutable,
		workDir:    workDir,
		timeout:    exec.DefaultTimeout,
		logger:     logx.NewLogger("gemini"),
	}
}

// WithExecutable overrides the CLI name.
func (c *CLI) WithExecutable(name string) *CLI {
	c.executable = name
	return c
}

// WithEnv passes extra KEY=VALUE pairs, such as GOOGLE_API_KEY, to every run.
func (c *CLI) WithEnv(env ...string) *CLI {
	c.env = append(c.env, env...)
	return c
}

// SecurityScan runs "gemini security scan <path>".
func (c *CLI) SecurityScan(ctx context.Context, path string) (string, error) {
	c.logger.Info("🔒 Starting security scan on %s", pathOrDot(path))
	return c.run(ctx, "security scan", "security", "scan", pathOrDot(path))
}

// CodeReview runs "gemini code-review <path>".
func (c *CLI) CodeReview(ctx context.Context, path string) (string, error) {
	c.logger.Info("🔍 Starting code review on %s", pathOrDot(path))
	return c.run(ctx, "code-review", "code-review", pathOrDot(path))
}

func (c *CLI) run(ctx context.Context, op string, args ...string) (string, error) {
	cmd := append([]string{c.executable}, args...)
	opts := exec.Opts{WorkDir: c.workDir, Env: c.env, Timeout: c.timeout, Check: true}
	result, err := c.exec.Run(ctx, cmd, &opts)
	if err != nil {
		c.logger.Error("❌ gemini %s failed: %v", op, err)
		return "", &ToolError{Op: op, Err: err}
	}
	c.logger.Info("✅ gemini %s passed", op)
	return strings.TrimSpace(result.Stdout), nil
}

func pathOrDot(path string) string {
	if path == "" {
		return "."
	}
	return path
}
