// Package exec runs external commands with bounded timeouts and returns structured results.
// Callers choose between inspecting the exit code or receiving a typed CommandError.
package exec

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"
)

// DefaultTimeout bounds every command that does not set its own timeout.
const DefaultTimeout = 300 * time.Second

// Executor defines the interface for running external commands.
type Executor interface {
	// Run executes cmd to completion and returns its captured output.
	// With opts.Check set, a non-zero exit yields a *CommandError carrying the result.
	Run(ctx context.Context, cmd []string, opts *Opts) (Result, error)

	// Stream runs cmd and yields stdout line by line. Each call starts a new process.
	Stream(ctx context.Context, cmd []string, opts *Opts) iter.Seq2[string, error]
}

// Opts contains options for command execution.
//
//nolint:govet // Configuration struct, logical grouping preferred
type Opts struct {
	// Env contains extra environment variables (KEY=VALUE format).
	Env []string

	// Timeout is the maximum duration for command execution. Zero means DefaultTimeout.
	Timeout time.Duration

	// WorkDir is the working directory for the command.
	WorkDir string

	// Stdin is written to the command's standard input.
	Stdin string

	// Check turns a non-zero exit code into a *CommandError.
	Check bool
}

// Result contains the result of command execution.
type Result struct {
	Stdout   string
	Stderr   string
	Duration time.Duration
	// ExitCode is -1 when the command could not be started or timed out.
	ExitCode int
	TimedOut bool
}

// Success reports whether the command exited with status zero.
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// Output returns stdout followed by stderr, trimmed.
func (r Result) Output() string {
	return strings.TrimSpace(strings.TrimSpace(r.Stdout) + "\n" + strings.TrimSpace(r.Stderr))
}

// CommandError is returned when a checked command exits non-zero.
type CommandError struct {
	Cmd    []string
	Result Result
}

func (e *CommandError) Error() string {
	detail := strings.TrimSpace(e.Result.Stderr)
	if detail == "" {
		detail = strings.TrimSpace(e.Result.Stdout)
	}
	if detail == "" {
		return fmt.Sprintf("command %q failed with exit code %d", strings.Join(e.Cmd, " "), e.Result.ExitCode)
	}
	return fmt.Sprintf("command %q failed with exit code %d: %s", strings.Join(e.Cmd, " "), e.Result.ExitCode, detail)
}

// DefaultOpts returns default execution options.
func DefaultOpts() Opts {
	return Opts{Timeout: DefaultTimeout}
}

func timeoutOf(opts *Opts) time.Duration {
	if opts == nil || opts.Timeout <= 0 {
		return DefaultTimeout
	}
	return opts.Timeout
}
