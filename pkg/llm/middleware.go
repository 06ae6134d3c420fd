package llm

import (
	"context"
	"strings"

	"viberunner/pkg/logx"
	"viberunner/pkg/retry"
)

// retryingClient retries classified-retryable failures and empty responses.
type retryingClient struct {
	next   Client
	policy retry.Policy
	logger *logx.Logger
}

// WithRetry wraps next so transient failures are retried under policy.
func WithRetry(next Client, policy retry.Policy) Client {
	return &retryingClient{next: next, policy: policy, logger: logx.NewLogger("llm")}
}

func (c *retryingClient) Complete(ctx context.Context, req Request) (Response, error) {
	outcome := retry.Do(ctx, c.policy, func(ctx context.Context, attempt int) (Response, error) {
		resp, err := c.next.Complete(ctx, req)
		if err != nil {
			c.logger.Warn("⚠️ %s attempt %d failed: %v", c.next.Model(), attempt, err)
			return Response{}, err
		}
		if strings.TrimSpace(resp.Content) == "" {
			return Response{}, NewError(ErrorTypeEmptyResponse, "received empty response")
		}
		return resp, nil
	}, func(_ Response, err error) bool { return IsRetryable(err) })

	if outcome.Err != nil {
		return Response{}, outcome.Err
	}
	return outcome.Value, nil
}

func (c *retryingClient) Model() string {
	return c.next.Model()
}
