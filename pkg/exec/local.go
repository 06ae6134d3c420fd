package exec

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"os/exec"
	"strings"
	"time"

	"viberunner/pkg/logx"
)

// waitDelay bounds how long Wait blocks on pipe copies after the process is killed.
const waitDelay = 2 * time.Second

// LocalExec executes commands directly on the host.
type LocalExec struct {
	logger *logx.Logger
}

// NewLocalExec creates a new LocalExec executor.
func NewLocalExec() *LocalExec {
	return &LocalExec{logger: logx.NewLogger("exec")}
}

// Run executes a command locally with the given options.
func (e *LocalExec) Run(ctx context.Context, cmd []string, opts *Opts) (Result, error) {
	if len(cmd) == 0 {
		return Result{ExitCode: -1}, fmt.Errorf("command cannot be empty")
	}
	if opts == nil {
		defaults := DefaultOpts()
		opts = &defaults
	}

	startTime := time.Now()
	runCtx, cancel := context.WithTimeout(ctx, timeoutOf(opts))
	defer cancel()

	execCmd := e.command(runCtx, cmd, opts)
	var stdoutBuf, stderrBuf strings.Builder
	execCmd.Stdout = &stdoutBuf
	execCmd.Stderr = &stderrBuf

	e.logger.Debug("Running: %s", strings.Join(cmd, " "))
	err := execCmd.Run()

	result := Result{
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
		Duration: time.Since(startTime),
	}

	var exitErr *exec.ExitError
	switch {
	case runCtx.Err() != nil && ctx.Err() == nil:
		result.ExitCode = -1
		result.TimedOut = true
		result.Stderr += fmt.Sprintf("\ncommand timed out after %s", timeoutOf(opts))
		e.logger.Warn("Command timed out after %s: %s", timeoutOf(opts), cmd[0])
	case err == nil:
		result.ExitCode = 0
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		// Failed to start (binary missing, permission denied) or parent context cancelled.
		result.ExitCode = -1
		result.Stderr += err.Error()
		e.logger.Debug("Command failed to run: %v", err)
	}

	if opts.Check && !result.Success() {
		return result, &CommandError{Cmd: cmd, Result: result}
	}
	return result, nil
}

// Stream runs cmd and yields stdout lines as they are produced. Stopping the iteration
// early kills the process. A checked command that exits non-zero yields a final error.
func (e *LocalExec) Stream(ctx context.Context, cmd []string, opts *Opts) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if len(cmd) == 0 {
			yield("", fmt.Errorf("command cannot be empty"))
			return
		}
		if opts == nil {
			defaults := DefaultOpts()
			opts = &defaults
		}

		runCtx, cancel := context.WithTimeout(ctx, timeoutOf(opts))
		defer cancel()

		execCmd := e.command(runCtx, cmd, opts)
		var stderrBuf strings.Builder
		execCmd.Stderr = &stderrBuf
		stdout, err := execCmd.StdoutPipe()
		if err != nil {
			yield("", fmt.Errorf("failed to create stdout pipe: %w", err))
			return
		}
		if err := execCmd.Start(); err != nil {
			yield("", fmt.Errorf("failed to start %s: %w", cmd[0], err))
			return
		}

		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			if !yield(scanner.Text(), nil) {
				cancel()
				_ = execCmd.Wait()
				return
			}
		}
		scanErr := scanner.Err()
		waitErr := execCmd.Wait()

		if scanErr != nil {
			yield("", fmt.Errorf("failed reading output of %s: %w", cmd[0], scanErr))
			return
		}
		if waitErr != nil && opts.Check {
			result := Result{Stderr: stderrBuf.String(), ExitCode: -1}
			var exitErr *exec.ExitError
			if errors.As(waitErr, &exitErr) {
				result.ExitCode = exitErr.ExitCode()
			}
			result.TimedOut = runCtx.Err() != nil && ctx.Err() == nil
			yield("", &CommandError{Cmd: cmd, Result: result})
		}
	}
}

func (e *LocalExec) command(ctx context.Context, cmd []string, opts *Opts) *exec.Cmd {
	execCmd := exec.CommandContext(ctx, cmd[0], cmd[1:]...)
	execCmd.WaitDelay = waitDelay
	if opts.WorkDir != "" {
		execCmd.Dir = opts.WorkDir
	}
	if len(opts.Env) > 0 {
		execCmd.Env = append(os.Environ(), opts.Env...)
	}
	if opts.Stdin != "" {
		execCmd.Stdin = strings.NewReader(opts.Stdin)
	}
	return execCmd
}
