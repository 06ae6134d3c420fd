// Package google implements llm.Client with the Gemini API through google.golang.org/genai.
package google

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"

	"viberunner/pkg/llm"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.0-flash"

// Client creates the underlying genai client on first use, since construction needs a context.
type Client struct {
	client  *genai.Client
	apiKey  string
	model   string
	baseURL string
	mu      sync.Mutex
}

func NewClient(apiKey, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{apiKey: apiKey, model: model}
}

// WithBaseURL points the client at a different endpoint.
func (g *Client) WithBaseURL(u string) *Client {
	g.baseURL = u
	return g
}

func (g *Client) ensureClient(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		return g.client, nil
	}
	cfg := &genai.ClientConfig{
		APIKey:  g.apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if g.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: g.baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, llm.NewErrorWithCause(llm.ErrorTypeAuth, err, "failed to create Gemini client")
	}
	g.client = client
	return client, nil
}

// Complete implements llm.Client.
func (g *Client) Complete(ctx context.Context, in llm.Request) (llm.Response, error) {
	system, rest := in.System()
	if len(rest) == 0 {
		return llm.Response{}, llm.NewError(llm.ErrorTypeBadPrompt, "must have at least one non-system message")
	}

	client, err := g.ensureClient(ctx)
	if err != nil {
		return llm.Response{}, err
	}

	contents := make([]*genai.Content, 0, len(rest))
	for _, msg := range rest {
		role := "user"
		if msg.Role == llm.RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: msg.Content}},
		})
	}

	temperature := in.Temperature
	//nolint:gosec // token counts are small
	config := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(in.Tokens()),
	}
	if system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}

	result, err := client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return llm.Response{}, llm.Classify(fmt.Errorf("gemini: %w", err), 0)
	}
	if result == nil || len(result.Candidates) == 0 {
		return llm.Response{}, llm.NewError(llm.ErrorTypeEmptyResponse, "empty response from Gemini API")
	}

	return llm.Response{
		Content:    result.Text(),
		StopReason: string(result.Candidates[0].FinishReason),
	}, nil
}

// Model implements llm.Client.
func (g *Client) Model() string {
	return g.model
}
