// Package openai implements llm.Client over the OpenAI chat completions API.
// DeepSeek speaks the same protocol and is reached through a different base URL.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"viberunner/pkg/llm"
)

const (
	DefaultModel = "gpt-4o-mini"

	DeepSeekBaseURL = "https://api.deepseek.com"
	DeepSeekModel   = "deepseek-coder"
)

// Client wraps the official OpenAI SDK.
type Client struct {
	client openai.Client
	model  string
}

// NewClient creates a client for api.openai.com. Extra options (base URL, HTTP client)
// are passed through to the SDK.
func NewClient(apiKey, model string, opts ...option.RequestOption) *Client {
	if model == "" {
		model = DefaultModel
	}
	all := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Client{client: openai.NewClient(all...), model: model}
}

// NewDeepSeekClient creates a client for the DeepSeek endpoint.
func NewDeepSeekClient(apiKey, model string) *Client {
	if model == "" {
		model = DeepSeekModel
	}
	return NewClient(apiKey, model, option.WithBaseURL(DeepSeekBaseURL))
}

// Complete implements llm.Client.
func (c *Client) Complete(ctx context.Context, in llm.Request) (llm.Response, error) {
	if len(in.Messages) == 0 {
		return llm.Response{}, llm.NewError(llm.ErrorTypeBadPrompt, "message list cannot be empty")
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(in.Messages))
	for _, msg := range in.Messages {
		switch msg.Role {
		case llm.RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		case llm.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		MaxTokens:   openai.Int(int64(in.Tokens())),
		Temperature: openai.Float(float64(in.Temperature)),
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return llm.Response{}, classify(err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return llm.Response{}, llm.NewError(llm.ErrorTypeEmptyResponse, "no choices in completion response")
	}

	choice := resp.Choices[0]
	return llm.Response{
		Content:    choice.Message.Content,
		StopReason: choice.FinishReason,
	}, nil
}

// Model implements llm.Client.
func (c *Client) Model() string {
	return c.model
}

func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return llm.Classify(fmt.Errorf("openai: %w", err), apiErr.StatusCode)
	}
	return llm.Classify(fmt.Errorf("openai: %w", err), 0)
}
