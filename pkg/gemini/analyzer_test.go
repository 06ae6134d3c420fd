package gemini_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viberunner/internal/mocks"
	"viberunner/pkg/exec"
	"viberunner/pkg/gemini"
)

func TestSecurityScan_ReturnsTrimmedOutput(t *testing.T) {
	ex := mocks.NewMockExecutor().
		Respond("gemini security scan", exec.Result{Stdout: "  no findings\n"})
	cli := gemini.NewCLI(ex, "/repo")

	out, err := cli.SecurityScan(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "no findings", out)
	assert.Equal(t, []string{"gemini security scan ."}, ex.Commands())
	assert.Equal(t, "/repo", ex.Calls[0].Opts.WorkDir)
	assert.True(t, ex.Calls[0].Opts.Check)
}

func TestCodeReview_NonZeroExitIsToolError(t *testing.T) {
	ex := mocks.NewMockExecutor().
		Respond("gemini code-review", exec.Result{ExitCode: 2, Stdout: "3 issues", Stderr: "unused variable x"})
	cli := gemini.NewCLI(ex, "")

	_, err := cli.CodeReview(context.Background(), "src")
	require.Error(t, err)

	var toolErr *gemini.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "code-review", toolErr.Op)
	assert.Equal(t, "3 issues\nunused variable x", toolErr.Output())

	var cmdErr *exec.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, 2, cmdErr.Result.ExitCode)
	assert.Equal(t, []string{"gemini code-review src"}, ex.Commands())
}

func TestCLI_StartFailureIsToolError(t *testing.T) {
	ex := mocks.NewMockExecutor().Fail("gem", errors.New("executable file not found in $PATH"))
	cli := gemini.NewCLI(ex, "").WithExecutable("gem")

	_, err := cli.SecurityScan(context.Background(), ".")
	var toolErr *gemini.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Contains(t, toolErr.Output(), "not found")
}

func TestCLI_PassesEnv(t *testing.T) {
	ex := mocks.NewMockExecutor().Respond("gemini", exec.Result{Stdout: "ok"})
	cli := gemini.NewCLI(ex, "").WithEnv("GOOGLE_API_KEY=k")

	_, err := cli.CodeReview(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"GOOGLE_API_KEY=k"}, ex.Calls[0].Opts.Env)
}
