// Package ollama implements llm.Client against a local Ollama server.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"

	"viberunner/pkg/llm"
)

const (
	DefaultHost  = "http://localhost:11434"
	DefaultModel = "llama3.2"
)

// Client talks to an Ollama server over its chat endpoint.
type Client struct {
	client  *api.Client
	model   string
	hostURL string
}

// NewClient creates a client for hostURL. An unparsable URL falls back to DefaultHost.
func NewClient(hostURL, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	parsedURL, err := url.Parse(hostURL)
	if err != nil || hostURL == "" {
		parsedURL, _ = url.Parse(DefaultHost)
	}
	return &Client{
		client:  api.NewClient(parsedURL, http.DefaultClient),
		model:   model,
		hostURL: parsedURL.String(),
	}
}

// Complete implements llm.Client.
func (o *Client) Complete(ctx context.Context, in llm.Request) (llm.Response, error) {
	if len(in.Messages) == 0 {
		return llm.Response{}, llm.NewError(llm.ErrorTypeBadPrompt, "message list cannot be empty")
	}

	messages := make([]api.Message, 0, len(in.Messages))
	for _, msg := range in.Messages {
		messages = append(messages, api.Message{Role: string(msg.Role), Content: msg.Content})
	}

	stream := false
	req := &api.ChatRequest{
		Model:    o.model,
		Messages: messages,
		Stream:   &stream,
		Options: map[string]any{
			"temperature": in.Temperature,
			"num_predict": in.Tokens(),
		},
	}

	var response api.ChatResponse
	err := o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		response = resp
		return nil
	})
	if err != nil {
		return llm.Response{}, classify(err)
	}

	return llm.Response{
		Content:    response.Message.Content,
		StopReason: response.DoneReason,
	}, nil
}

// Model implements llm.Client.
func (o *Client) Model() string {
	return o.model
}

// Host returns the server URL requests go to.
func (o *Client) Host() string {
	return o.hostURL
}

func classify(err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		return llm.Classify(fmt.Errorf("ollama: %w", err), statusErr.StatusCode)
	}
	return llm.Classify(fmt.Errorf("ollama: %w", err), 0)
}
