package github_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viberunner/internal/mocks"
	"viberunner/pkg/exec"
	"viberunner/pkg/github"
	"viberunner/pkg/retry"
)

func TestParseGitHubURL(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		wantOwner string
		wantRepo  string
		wantErr   bool
	}{
		{"SSH format", "git@github.com:owner/repo.git", "owner", "repo", false},
		{"SSH format without .git", "git@github.com:owner/repo", "owner", "repo", false},
		{"HTTPS format", "https://github.com/owner/repo.git", "owner", "repo", false},
		{"shorthand", "owner/repo", "owner", "repo", false},
		{"invalid format", "not-a-url", "", "", true},
		{"GitLab URL", "https://gitlab.com/owner/repo", "", "", true},
		{"missing repo", "https://github.com/owner/", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, repo, err := github.ParseGitHubURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOwner, owner)
			assert.Equal(t, tt.wantRepo, repo)
		})
	}
}

func TestChecks_ParsesPRChecksEvenOnFailureExit(t *testing.T) {
	ex := mocks.NewMockExecutor().Respond("gh pr checks", exec.Result{
		ExitCode: 1,
		Stdout: `[{"name":"build","state":"SUCCESS","bucket":"pass","link":"https://ci/1"},
		          {"name":"lint","state":"FAILURE","bucket":"fail","link":"https://ci/2"},
		          {"name":"e2e","state":"QUEUED","bucket":"pending","link":"https://ci/3"}]`,
	})
	c := github.NewClient(ex, "owner/repo", t.TempDir())

	checks, err := c.Checks(context.Background(), "feat/x")
	require.NoError(t, err)
	require.Len(t, checks, 3)

	assert.Equal(t, github.CheckStatus{Name: "build", Status: "completed", Conclusion: "success", URL: "https://ci/1"}, checks[0])
	assert.True(t, checks[0].Passed())
	assert.True(t, checks[1].Terminal())
	assert.False(t, checks[1].Passed())
	assert.Equal(t, github.StatusQueued, checks[2].Status)
	assert.False(t, checks[2].Terminal())

	assert.Equal(t, []string{"gh pr checks feat/x --json name,state,bucket,link --repo owner/repo"}, ex.Commands())
}

func TestChecks_NoChecksYet(t *testing.T) {
	ex := mocks.NewMockExecutor().Respond("gh pr checks", exec.Result{
		ExitCode: 1,
		Stderr:   "no checks reported on the 'feat/x' branch",
	})
	c := github.NewClient(ex, "", t.TempDir())

	checks, err := c.Checks(context.Background(), "feat/x")
	require.NoError(t, err)
	assert.Empty(t, checks)
	assert.NotNil(t, checks)
}

func TestChecks_FallsBackToWorkflowRuns(t *testing.T) {
	ex := mocks.NewMockExecutor().
		Respond("gh pr checks", exec.Result{ExitCode: 1, Stderr: "no pull requests found for branch \"feat/x\""}).
		Respond("gh run list", exec.Result{Stdout: `[
			{"databaseId":3,"name":"CI","headSha":"bbb","status":"completed","conclusion":"failure","url":"u3"},
			{"databaseId":2,"name":"Lint","headSha":"bbb","status":"in_progress","conclusion":"","url":"u2"},
			{"databaseId":1,"name":"CI","headSha":"aaa","status":"completed","conclusion":"success","url":"u1"}]`})
	c := github.NewClient(ex, "", t.TempDir())

	checks, err := c.Checks(context.Background(), "feat/x")
	require.NoError(t, err)
	assert.Equal(t, []github.CheckStatus{
		{Name: "CI", Status: "completed", Conclusion: "failure", URL: "u3"},
		{Name: "Lint", Status: "in_progress", Conclusion: "", URL: "u2"},
	}, checks)
}

func TestChecks_ClassifiesGatewayErrors(t *testing.T) {
	ex := mocks.NewMockExecutor().Respond("gh pr checks", exec.Result{ExitCode: 1, Stderr: "HTTP 503: Service Unavailable"})
	c := github.NewClient(ex, "", t.TempDir())

	_, err := c.Checks(context.Background(), "b")
	var gwErr *github.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, retry.ClassTransient, gwErr.Class)

	ex = mocks.NewMockExecutor().Respond("gh pr checks", exec.Result{ExitCode: 4, Stderr: "To get started with GitHub CLI, please run:  gh auth login"})
	c = github.NewClient(ex, "", t.TempDir())
	_, err = c.Checks(context.Background(), "b")
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, retry.ClassAuth, gwErr.Class)
}

func TestLatestRunLog(t *testing.T) {
	ex := mocks.NewMockExecutor().
		Respond("gh run list", exec.Result{Stdout: `[{"databaseId":4242,"name":"CI","headSha":"x","status":"completed","conclusion":"failure","url":"u"}]`}).
		StreamLines("gh run view 4242 --log", "step 1", "step 2", "Error: boom")
	c := github.NewClient(ex, "", t.TempDir()).WithToken("tok")

	var lines []string
	for line, err := range c.LatestRunLog(context.Background(), "feat/x") {
		require.NoError(t, err)
		lines = append(lines, line)
	}
	assert.Equal(t, []string{"step 1", "step 2", "Error: boom"}, lines)

	view := ex.CallsWithPrefix("gh run view")
	require.Len(t, view, 1)
	assert.Contains(t, view[0].Opts.Env, "GH_TOKEN=tok")

	// Restartable: iterating again re-queries.
	count := 0
	for range c.LatestRunLog(context.Background(), "feat/x") {
		count++
	}
	assert.Equal(t, 3, count)
	assert.Len(t, ex.CallsWithPrefix("gh run list"), 2)
}

func TestLatestRunLog_NoRuns(t *testing.T) {
	ex := mocks.NewMockExecutor().Respond("gh run list", exec.Result{Stdout: "[]"})
	c := github.NewClient(ex, "", t.TempDir())

	var gotErr error
	for _, err := range c.LatestRunLog(context.Background(), "b") {
		gotErr = err
	}
	assert.ErrorIs(t, gotErr, github.ErrNoRuns)
}

func TestCheckAuth(t *testing.T) {
	ok := mocks.NewMockExecutor()
	assert.NoError(t, github.NewClient(ok, "", "").CheckAuth(context.Background()))

	bad := mocks.NewMockExecutor().Respond("gh auth status", exec.Result{ExitCode: 1, Stderr: "You are not logged into any GitHub hosts."})
	err := github.NewClient(bad, "", "").CheckAuth(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged")
}
