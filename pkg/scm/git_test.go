package scm_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viberunner/internal/mocks"
	"viberunner/pkg/exec"
	"viberunner/pkg/scm"
)

func TestPush_NoChangesSkipsCommitAndPush(t *testing.T) {
	ex := mocks.NewMockExecutor().
		Respond("git status --porcelain", exec.Result{Stdout: "\n"})
	g := scm.NewGit(ex, t.TempDir())

	pushed, err := g.Push(context.Background(), "feat/x", "msg")
	require.NoError(t, err)
	assert.False(t, pushed)
	assert.Equal(t, []string{"git add .", "git status --porcelain"}, ex.Commands())
}

func TestPush_WithChangesRunsOneSequence(t *testing.T) {
	ex := mocks.NewMockExecutor().
		Respond("git status --porcelain", exec.Result{Stdout: " M main.go\n"})
	dir := t.TempDir()
	g := scm.NewGit(ex, dir)

	pushed, err := g.Push(context.Background(), "feat/x", "feat: add thing")
	require.NoError(t, err)
	assert.True(t, pushed)
	assert.Equal(t, []string{
		"git add .",
		"git status --porcelain",
		"git commit -m feat: add thing",
		"git push origin feat/x",
	}, ex.Commands())

	for _, c := range ex.Calls {
		assert.Equal(t, dir, c.Opts.WorkDir)
		assert.True(t, c.Opts.Check)
	}
}

func TestPush_RemovesStaleIndexLock(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".git"), 0755))
	lock := filepath.Join(dir, ".git", "index.lock")
	require.NoError(t, os.WriteFile(lock, nil, 0644))

	g := scm.NewGit(mocks.NewMockExecutor(), dir)
	_, err := g.Push(context.Background(), "b", "m")
	require.NoError(t, err)

	_, statErr := os.Stat(lock)
	assert.True(t, os.IsNotExist(statErr))
}

func TestPush_PushFailureIsTyped(t *testing.T) {
	ex := mocks.NewMockExecutor().
		Respond("git status --porcelain", exec.Result{Stdout: "A new.go"}).
		Respond("git push", exec.Result{ExitCode: 128, Stderr: "fatal: Authentication failed"})
	g := scm.NewGit(ex, t.TempDir())

	pushed, err := g.Push(context.Background(), "b", "m")
	assert.False(t, pushed)

	var gitErr *scm.Error
	require.True(t, errors.As(err, &gitErr))
	assert.Equal(t, "push", gitErr.Op)
	var cmdErr *exec.CommandError
	assert.True(t, errors.As(err, &cmdErr))
	assert.Contains(t, err.Error(), "Authentication failed")
}

func TestCheckoutNewBranch(t *testing.T) {
	ex := mocks.NewMockExecutor()
	g := scm.NewGit(ex, t.TempDir())

	require.NoError(t, g.CheckoutNewBranch(context.Background(), "vibe_run_1", "develop", true))
	assert.Equal(t, []string{
		"git checkout develop",
		"git pull origin develop",
		"git checkout -b vibe_run_1",
	}, ex.Commands())

	ex2 := mocks.NewMockExecutor()
	g2 := scm.NewGit(ex2, t.TempDir())
	require.NoError(t, g2.CheckoutNewBranch(context.Background(), "vibe_run_1_001", "vibe_run_1", false))
	assert.Equal(t, []string{"git checkout vibe_run_1", "git checkout -b vibe_run_1_001"}, ex2.Commands())
}

func TestMergeSquash(t *testing.T) {
	ex := mocks.NewMockExecutor().
		Respond("git status --porcelain", exec.Result{Stdout: "M  a.go"})
	g := scm.NewGit(ex, t.TempDir())

	require.NoError(t, g.MergeSquash(context.Background(), "iter", "agg", "feat: thing"))
	assert.Equal(t, []string{
		"git checkout agg",
		"git merge --squash iter",
		"git status --porcelain",
		"git commit -m feat: thing",
		"git push origin agg",
	}, ex.Commands())
}

func TestMergeSquash_NothingToCommit(t *testing.T) {
	ex := mocks.NewMockExecutor()
	g := scm.NewGit(ex, t.TempDir())

	require.NoError(t, g.MergeSquash(context.Background(), "iter", "agg", "msg"))
	assert.Empty(t, ex.CallsWithPrefix("git commit"))
	assert.Empty(t, ex.CallsWithPrefix("git push"))
}

func TestCommitLog(t *testing.T) {
	ex := mocks.NewMockExecutor().
		Respond("git log", exec.Result{Stdout: "feat: one\n\nfeat: two\n"})
	g := scm.NewGit(ex, t.TempDir())

	log, err := g.CommitLog(context.Background(), "agg", "iter")
	require.NoError(t, err)
	assert.Equal(t, "feat: one\n\nfeat: two", log)
	assert.Equal(t, []string{"git log agg..iter --pretty=format:%B"}, ex.Commands())
}

func TestDeleteBranch_NeverFails(t *testing.T) {
	ex := mocks.NewMockExecutor().
		Respond("git push origin --delete", exec.Result{ExitCode: 1, Stderr: "remote ref does not exist"}).
		Respond("git branch -D", exec.Result{ExitCode: 1, Stderr: "not found"})
	g := scm.NewGit(ex, t.TempDir())

	g.DeleteBranch(context.Background(), "gone")
	assert.Equal(t, []string{"git push origin --delete gone", "git branch -D gone"}, ex.Commands())
}
