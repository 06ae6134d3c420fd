// Package anthropic implements llm.Client over the Anthropic messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"viberunner/pkg/llm"
)

// DefaultModel is a small, fast model suited to summaries.
const DefaultModel = "claude-3-5-haiku-latest"

// Client wraps the Anthropic SDK.
type Client struct {
	client anthropic.Client
	model  anthropic.Model
}

func NewClient(apiKey, model string, opts ...option.RequestOption) *Client {
	if model == "" {
		model = DefaultModel
	}
	all := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Client{client: anthropic.NewClient(all...), model: anthropic.Model(model)}
}

// Complete implements llm.Client. System messages move to the system parameter and
// consecutive user turns are merged, since the API requires strict alternation.
func (c *Client) Complete(ctx context.Context, in llm.Request) (llm.Response, error) {
	system, rest := in.System()
	merged := mergeTurns(rest)
	if len(merged) == 0 {
		return llm.Response{}, llm.NewError(llm.ErrorTypeBadPrompt, "must have at least one non-system message")
	}
	if merged[0].Role != llm.RoleUser {
		return llm.Response{}, llm.NewError(llm.ErrorTypeBadPrompt, fmt.Sprintf("first message must be user role, got: %s", merged[0].Role))
	}

	messages := make([]anthropic.MessageParam, 0, len(merged))
	for _, msg := range merged {
		messages = append(messages, anthropic.MessageParam{
			Role:    anthropic.MessageParamRole(msg.Role),
			Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(msg.Content)},
		})
	}

	params := anthropic.MessageNewParams{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   int64(in.Tokens()),
		Temperature: anthropic.Float(float64(in.Temperature)),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system, Type: "text"}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return llm.Response{}, llm.Classify(fmt.Errorf("anthropic: %w", err), apiErr.StatusCode)
		}
		return llm.Response{}, llm.Classify(fmt.Errorf("anthropic: %w", err), 0)
	}
	if resp == nil || len(resp.Content) == 0 {
		return llm.Response{}, llm.NewError(llm.ErrorTypeEmptyResponse, "received empty or nil response from Claude API")
	}

	var text strings.Builder
	for i := range resp.Content {
		block := &resp.Content[i]
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}
	return llm.Response{Content: text.String(), StopReason: string(resp.StopReason)}, nil
}

// Model implements llm.Client.
func (c *Client) Model() string {
	return string(c.model)
}

func mergeTurns(messages []llm.Message) []llm.Message {
	var merged []llm.Message
	for _, msg := range messages {
		n := len(merged)
		if n > 0 && merged[n-1].Role == msg.Role {
			merged[n-1].Content += "\n\n" + msg.Content
			continue
		}
		merged = append(merged, msg)
	}
	return merged
}
