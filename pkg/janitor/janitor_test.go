package janitor_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viberunner/internal/mocks"
	"viberunner/pkg/janitor"
	"viberunner/pkg/llm"
	"viberunner/pkg/retry"
)

func TestSanitize(t *testing.T) {
	raw := "feat: add parser\n\nBody line\nCo-authored-by: bot <bot@example.com>\n\n\nSigned-off-by: Someone <s@example.com>\n"
	assert.Equal(t, "feat: add parser\n\nBody line", janitor.Sanitize(raw))

	// Only whole trailer lines are removed.
	assert.Equal(t, "mentions Co-authored-by: inline", janitor.Sanitize("mentions Co-authored-by: inline"))
	assert.Equal(t, "feat: implementation for b (SID: 42)", janitor.Sanitize("feat: implementation for b (SID: 42)"))
}

func TestProfessionalize_NoClientSanitizes(t *testing.T) {
	svc, err := janitor.New(nil)
	require.NoError(t, err)

	msg, err := svc.Professionalize(context.Background(), "wip\nCo-authored-by: x\n")
	require.NoError(t, err)
	assert.Equal(t, "wip", msg)
	assert.False(t, svc.HasClient())
}

func TestProfessionalize_UsesModel(t *testing.T) {
	client := mocks.NewMockLLMClient("m").RespondNext("```\nfeat: add parser\n\n- handle empty input\nSigned-off-by: bot\n```")
	svc, err := janitor.New(client)
	require.NoError(t, err)

	msg, err := svc.Professionalize(context.Background(), "wip: parser\nwip: tests")
	require.NoError(t, err)
	assert.Equal(t, "feat: add parser\n\n- handle empty input", msg)
	assert.Contains(t, client.LastPrompt(), "wip: parser\nwip: tests")
	assert.Equal(t, 200, client.Calls[0].MaxTokens)
}

func TestProfessionalize_EmptyReplyIsError(t *testing.T) {
	client := mocks.NewMockLLMClient("m").RespondNext("  ")
	svc, err := janitor.New(client)
	require.NoError(t, err)

	_, err = svc.Professionalize(context.Background(), "log")
	assert.True(t, llm.Is(err, llm.ErrorTypeEmptyResponse))
}

func TestSummarize(t *testing.T) {
	client := mocks.NewMockLLMClient("m").RespondNext(" TestParse fails on empty input. \n")
	svc, err := janitor.New(client)
	require.NoError(t, err)

	summary, err := svc.Summarize(context.Background(), "Check test failed. URL: u\n\n--- Logs ---\nFAIL TestParse")
	require.NoError(t, err)
	assert.Equal(t, "TestParse fails on empty input.", summary)
	assert.Contains(t, client.LastPrompt(), "FAIL TestParse")
}

func TestSummarize_Errors(t *testing.T) {
	svc, err := janitor.New(nil)
	require.NoError(t, err)
	_, err = svc.Summarize(context.Background(), "logs")
	assert.ErrorIs(t, err, janitor.ErrNoClient)

	boom := errors.New("boom")
	svc, err = janitor.New(mocks.NewMockLLMClient("m").FailNext(boom))
	require.NoError(t, err)
	_, err = svc.Summarize(context.Background(), "logs")
	assert.ErrorIs(t, err, boom)
}

func TestBoundExcerpt_KeepsHeaderAndTail(t *testing.T) {
	svc, err := janitor.New(nil, janitor.WithTokenBudget(200))
	require.NoError(t, err)

	var lines []string
	for i := 0; i < 2000; i++ {
		lines = append(lines, fmt.Sprintf("line %d of the build output", i))
	}
	header := "Check unit-tests failed. URL: https://ci.example/1"
	text := header + janitor.LogsMarker() + strings.Join(lines, "\n")

	out := svc.BoundExcerpt(text)
	assert.True(t, strings.HasPrefix(out, header+janitor.LogsMarker()))
	assert.True(t, strings.HasSuffix(out, "line 1999 of the build output"))
	assert.NotContains(t, out, "line 0 of")
	assert.Less(t, len(out), len(text))
}

func TestBoundExcerpt_UnderBudgetUnchanged(t *testing.T) {
	svc, err := janitor.New(nil)
	require.NoError(t, err)
	assert.Equal(t, "short", svc.BoundExcerpt("short"))
}

func TestSummaryRetryLeavesProfessionalizeSingleShot(t *testing.T) {
	policy := retry.NewPolicy(3, retry.NoDelay())
	policy.Sleep = func(context.Context, time.Duration) error { return nil }

	client := mocks.NewMockLLMClient("m")
	client.CompleteFunc = func(context.Context, llm.Request) (llm.Response, error) {
		return llm.Response{}, llm.NewError(llm.ErrorTypeTransient, "503")
	}
	svc, err := janitor.New(client, janitor.WithSummaryRetry(policy))
	require.NoError(t, err)

	_, err = svc.Professionalize(context.Background(), "wip")
	require.Error(t, err)
	assert.Equal(t, 1, client.CallCount())

	_, err = svc.Summarize(context.Background(), "Check lint failed.")
	require.Error(t, err)
	assert.Equal(t, 4, client.CallCount())
}

func TestSummaryRetryRecovers(t *testing.T) {
	policy := retry.NewPolicy(3, retry.NoDelay())
	client := mocks.NewMockLLMClient("m").
		FailNext(llm.NewError(llm.ErrorTypeTransient, "503")).
		RespondNext("lint failed on main.go")
	svc, err := janitor.New(client, janitor.WithSummaryRetry(policy))
	require.NoError(t, err)

	summary, err := svc.Summarize(context.Background(), "Check lint failed.")
	require.NoError(t, err)
	assert.Equal(t, "lint failed on main.go", summary)
	assert.Equal(t, 2, client.CallCount())
}
