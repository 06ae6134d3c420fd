package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSleep returns a SleepFunc that records requested delays without waiting.
func recordingSleep(delays *[]time.Duration) SleepFunc {
	return func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	}
}

func TestExponentialDelay(t *testing.T) {
	b := Exponential{Initial: 2 * time.Second, Max: 10 * time.Second, Factor: 2}

	assert.Equal(t, 2*time.Second, b.Delay(1))
	assert.Equal(t, 4*time.Second, b.Delay(2))
	assert.Equal(t, 8*time.Second, b.Delay(3))
	assert.Equal(t, 10*time.Second, b.Delay(4))
	assert.Equal(t, 10*time.Second, b.Delay(60), "large attempt counts stay capped")
}

func TestExponentialJitterStaysNearBase(t *testing.T) {
	b := Exponential{Initial: time.Second, Max: time.Minute, Factor: 2, Jitter: true}
	for i := 0; i < 50; i++ {
		d := b.Delay(1)
		assert.GreaterOrEqual(t, d, 900*time.Millisecond)
		assert.LessOrEqual(t, d, 1100*time.Millisecond)
	}
}

func TestDo_SucceedsAfterRetries(t *testing.T) {
	var delays []time.Duration
	policy := Policy{MaxAttempts: 5, Backoff: Constant(time.Second), Sleep: recordingSleep(&delays)}

	out := Do(context.Background(), policy, func(_ context.Context, attempt int) (int, error) {
		if attempt < 3 {
			return 0, errors.New("connection reset")
		}
		return attempt * 10, nil
	}, nil)

	require.True(t, out.Ok())
	assert.Equal(t, 30, out.Value)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, delays)
}

func TestDo_ExhaustsOnPredicate(t *testing.T) {
	var delays []time.Duration
	policy := Policy{MaxAttempts: 4, Backoff: Exponential{Initial: time.Second, Max: 3 * time.Second, Factor: 2}, Sleep: recordingSleep(&delays)}

	calls := 0
	out := Do(context.Background(), policy, func(_ context.Context, _ int) (bool, error) {
		calls++
		return false, nil
	}, func(done bool, _ error) bool { return !done })

	assert.Equal(t, 4, calls)
	assert.True(t, out.Exhausted())
	assert.False(t, out.Ok())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, delays, "no sleep after the final attempt")
}

func TestDo_ExhaustedWrapsLastError(t *testing.T) {
	last := errors.New("still broken")
	policy := Policy{MaxAttempts: 3, Backoff: NoDelay()}

	out := Do(context.Background(), policy, func(_ context.Context, _ int) (string, error) {
		return "", last
	}, OnError[string]())

	assert.True(t, out.Exhausted())
	assert.ErrorIs(t, out.Err, last)
	assert.Equal(t, 3, out.Attempts)
}

func TestDo_NonRetryableErrorStopsImmediately(t *testing.T) {
	policy := Policy{MaxAttempts: 5, Backoff: NoDelay()}

	calls := 0
	out := Do(context.Background(), policy, func(_ context.Context, _ int) (string, error) {
		calls++
		return "", errors.New("HTTP 400 bad request")
	}, func(_ string, err error) bool { return Classify(err) == ClassTransient })

	assert.Equal(t, 1, calls)
	assert.False(t, out.Exhausted())
	assert.EqualError(t, out.Err, "HTTP 400 bad request")
}

func TestDo_ContextCancelledDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := Policy{MaxAttempts: 5, Backoff: Constant(time.Hour), Sleep: func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}}

	out := Do(ctx, policy, func(_ context.Context, _ int) (int, error) {
		return 0, errors.New("timeout")
	}, nil)

	assert.ErrorIs(t, out.Err, context.Canceled)
	assert.Equal(t, 1, out.Attempts)
}

func TestSleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	err := Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Class
	}{
		{nil, ClassNone},
		{errors.New("dial tcp: connection refused"), ClassTransient},
		{errors.New("HTTP 503 Service Unavailable"), ClassTransient},
		{errors.New("API rate limit exceeded"), ClassTransient},
		{errors.New("HTTP 401: Bad credentials"), ClassAuth},
		{errors.New("To get started with GitHub CLI, please run:  gh auth login"), ClassAuth},
		{errors.New("remote: Permission denied to user"), ClassAuth},
		{errors.New("merge conflict in main.go"), ClassPermanent},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), ClassPermanent},
		{errors.New("read: i/o timeout"), ClassTransient},
		{errors.New("syntax error"), ClassPermanent},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.err), "error: %v", tt.err)
	}
}
