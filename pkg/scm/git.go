// Package scm drives the local git working copy: staging, committing, pushing,
// branching, squash merges, and branch cleanup.
package scm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"viberunner/pkg/exec"
	"viberunner/pkg/logx"
)

// DefaultRemote is the remote every push and delete targets.
const DefaultRemote = "origin"

// Gateway is the source-control surface used by the pipeline and campaign.
type Gateway interface {
	// HasChanges reports whether the working tree differs from HEAD.
	HasChanges(ctx context.Context) (bool, error)
	// Push stages everything and, when there is a diff, commits and pushes branch.
	// It returns false without committing when there was nothing to commit.
	Push(ctx context.Context, branch, message string) (bool, error)
	// CheckoutNewBranch creates name from base, optionally pulling base first.
	CheckoutNewBranch(ctx context.Context, name, base string, pullBase bool) error
	// Checkout switches to an existing branch.
	Checkout(ctx context.Context, name string) error
	// MergeSquash squashes source onto target, commits with message, and pushes target.
	MergeSquash(ctx context.Context, source, target, message string) error
	// CommitLog returns the bodies of commits in base..head.
	CommitLog(ctx context.Context, base, head string) (string, error)
	// DeleteBranch removes name remotely and locally. Failures are logged, never returned.
	DeleteBranch(ctx context.Context, name string)
}

// Error wraps a failed git operation.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("git %s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Git implements Gateway with the git CLI.
type Git struct {
	exec    exec.Executor
	workDir string
	remote  string
	timeout time.Duration
	logger  *logx.Logger
}

// NewGit creates a gateway for the repository at workDir.
func NewGit(executor exec.Executor, workDir string) *Git {
	return &Git{
		exec:    executor,
		workDir: workDir,
		remote:  DefaultRemote,
		timeout: exec.DefaultTimeout,
		logger:  logx.NewLogger("git"),
	}
}

// WorkDir returns the repository path.
func (g *Git) WorkDir() string {
	return g.workDir
}

// git runs a checked git command in the working copy.
func (g *Git) git(ctx context.Context, op string, args ...string) (exec.Result, error) {
	opts := exec.Opts{WorkDir: g.workDir, Timeout: g.timeout, Check: true}
	result, err := g.exec.Run(ctx, append([]string{"git"}, args...), &opts)
	if err != nil {
		return result, &Error{Op: op, Err: err}
	}
	return result, nil
}

// HasChanges implements Gateway.
func (g *Git) HasChanges(ctx context.Context) (bool, error) {
	result, err := g.git(ctx, "status", "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(result.Stdout) != "", nil
}

// Push implements Gateway.
func (g *Git) Push(ctx context.Context, branch, message string) (bool, error) {
	g.clearIndexLock()

	if _, err := g.git(ctx, "add", "add", "."); err != nil {
		return false, err
	}

	changed, err := g.HasChanges(ctx)
	if err != nil {
		return false, err
	}
	if !changed {
		g.logger.Info("No changes to commit on %s", branch)
		return false, nil
	}

	if _, err := g.git(ctx, "commit", "commit", "-m", message); err != nil {
		return false, err
	}
	if _, err := g.git(ctx, "push", "push", g.remote, branch); err != nil {
		return false, err
	}

	g.logger.Info("📤 Pushed changes to %s/%s", g.remote, branch)
	return true, nil
}

// clearIndexLock removes a stale index.lock left behind by an interrupted git process.
func (g *Git) clearIndexLock() {
	lock := filepath.Join(g.workDir, ".git", "index.lock")
	if err := os.Remove(lock); err != nil && !errors.Is(err, os.ErrNotExist) {
		g.logger.Warn("Failed to remove stale %s: %v", lock, err)
	}
}

// CheckoutNewBranch implements Gateway.
func (g *Git) CheckoutNewBranch(ctx context.Context, name, base string, pullBase bool) error {
	if _, err := g.git(ctx, "checkout", "checkout", base); err != nil {
		return err
	}
	if pullBase {
		if _, err := g.git(ctx, "pull", "pull", g.remote, base); err != nil {
			return err
		}
	}
	if _, err := g.git(ctx, "checkout", "checkout", "-b", name); err != nil {
		return err
	}
	g.logger.Info("🌿 Created branch %s from %s", name, base)
	return nil
}

// Checkout implements Gateway.
func (g *Git) Checkout(ctx context.Context, name string) error {
	_, err := g.git(ctx, "checkout", "checkout", name)
	return err
}

// MergeSquash implements Gateway.
func (g *Git) MergeSquash(ctx context.Context, source, target, message string) error {
	if _, err := g.git(ctx, "checkout", "checkout", target); err != nil {
		return err
	}
	if _, err := g.git(ctx, "merge", "merge", "--squash", source); err != nil {
		return err
	}

	changed, err := g.HasChanges(ctx)
	if err != nil {
		return err
	}
	if !changed {
		g.logger.Warn("Squash of %s onto %s produced no changes; skipping commit", source, target)
		return nil
	}

	if _, err := g.git(ctx, "commit", "commit", "-m", message); err != nil {
		return err
	}
	if _, err := g.git(ctx, "push", "push", g.remote, target); err != nil {
		return err
	}
	g.logger.Info("🔀 Squash-merged %s into %s", source, target)
	return nil
}

// CommitLog implements Gateway.
func (g *Git) CommitLog(ctx context.Context, base, head string) (string, error) {
	result, err := g.git(ctx, "log", "log", fmt.Sprintf("%s..%s", base, head), "--pretty=format:%B")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(result.Stdout), nil
}

// DeleteBranch implements Gateway.
func (g *Git) DeleteBranch(ctx context.Context, name string) {
	if _, err := g.git(ctx, "push --delete", "push", g.remote, "--delete", name); err != nil {
		g.logger.Warn("⚠️  Failed to delete remote branch %s: %v", name, err)
	}
	if _, err := g.git(ctx, "branch -D", "branch", "-D", name); err != nil {
		g.logger.Warn("⚠️  Failed to delete local branch %s: %v", name, err)
	}
}
