// Package janitor cleans up what the agent leaves behind: it strips signature
// trailers from commit messages, rewrites raw commit logs into a professional
// squash message, and condenses CI failure logs into short retry feedback.
package janitor

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"viberunner/pkg/llm"
	"viberunner/pkg/logx"
	"viberunner/pkg/retry"
	"viberunner/pkg/templates"
	"viberunner/pkg/utils"
)

const (
	// DefaultTokenBudget bounds the CI log excerpt sent for summarization.
	DefaultTokenBudget = 1500

	professionalizeMaxTokens = 200
	summarizeMaxTokens       = 150
	summarySentences         = 3
)

// ErrNoClient is returned by Summarize when no completion client is configured.
var ErrNoClient = errors.New("no LLM client configured")

//nolint:gochecknoglobals // compiled once
var (
	trailerPattern = regexp.MustCompile(`(?m)^(?:Co-authored-by|Signed-off-by):.*$`)
	fencePattern   = regexp.MustCompile("(?s)^```[a-zA-Z]*\n(.*?)\n?```$")
	blankRuns      = regexp.MustCompile(`\n{3,}`)
)

// Service performs commit and log cleanup, optionally backed by an llm.Client.
type Service struct {
	client      llm.Client
	summarizer  llm.Client
	summaryTry  retry.Policy
	renderer    *templates.Renderer
	tokens      *utils.TokenCounter
	tokenBudget int
	logger      *logx.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithTokenBudget sets the token budget for BoundExcerpt.
func WithTokenBudget(budget int) Option {
	return func(s *Service) {
		if budget > 0 {
			s.tokenBudget = budget
		}
	}
}

// WithSummaryRetry retries transient Summarize failures under policy. Professionalize
// stays single-shot; the campaign owns its attempts.
func WithSummaryRetry(policy retry.Policy) Option {
	return func(s *Service) { s.summaryTry = policy }
}

// New creates a janitor. client may be nil, in which case rewriting falls back to
// sanitizing and Summarize reports ErrNoClient.
func New(client llm.Client, opts ...Option) (*Service, error) {
	renderer, err := templates.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to load janitor prompts: %w", err)
	}
	logger := logx.NewLogger("janitor")
	tokens, err := utils.NewTokenCounter()
	if err != nil {
		// Counting falls back to a character estimate.
		logger.Warn("⚠️ Token counter unavailable, estimating: %v", err)
	}

	s := &Service{
		client:      client,
		renderer:    renderer,
		tokens:      tokens,
		tokenBudget: DefaultTokenBudget,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.summarizer = client
	if client != nil && s.summaryTry.MaxAttempts > 1 {
		s.summarizer = llm.WithRetry(client, s.summaryTry)
	}
	return s, nil
}

// HasClient reports whether summarization and rewriting can call a model.
func (s *Service) HasClient() bool {
	return s.client != nil
}

// Sanitize removes Co-authored-by and Signed-off-by lines and trims the result.
func Sanitize(text string) string {
	text = trailerPattern.ReplaceAllString(text, "")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Sanitize is the method form of the package function, so callers can depend on the service alone.
func (s *Service) Sanitize(text string) string {
	return Sanitize(text)
}

// Professionalize asks the model for a clean squash-merge message. Without a client it
// returns the sanitized raw log. An empty or failed completion is an error so the caller
// can retry or fall back.
func (s *Service) Professionalize(ctx context.Context, rawLog string) (string, error) {
	if s.client == nil {
		return Sanitize(rawLog), nil
	}

	prompt, err := s.renderer.Render(templates.ProfessionalizeTemplate, &templates.TemplateData{CommitLog: rawLog})
	if err != nil {
		return "", err
	}

	resp, err := s.client.Complete(ctx, llm.UserPrompt(prompt, professionalizeMaxTokens))
	if err != nil {
		return "", fmt.Errorf("professionalize commit: %w", err)
	}

	msg := Sanitize(stripFences(resp.Content))
	if msg == "" {
		return "", llm.NewError(llm.ErrorTypeEmptyResponse, "model returned an empty commit message")
	}
	s.logger.Info("✨ Rewrote commit message: %s", firstLine(msg))
	return msg, nil
}

// Summarize condenses failure logs into a few sentences of feedback.
func (s *Service) Summarize(ctx context.Context, logs string) (string, error) {
	if s.client == nil {
		return "", ErrNoClient
	}

	prompt, err := s.renderer.Render(templates.SummarizeTemplate, &templates.TemplateData{
		Logs:         s.BoundExcerpt(logs),
		MaxSentences: summarySentences,
	})
	if err != nil {
		return "", err
	}

	resp, err := s.summarizer.Complete(ctx, llm.UserPrompt(prompt, summarizeMaxTokens))
	if err != nil {
		return "", fmt.Errorf("summarize logs: %w", err)
	}
	summary := strings.TrimSpace(resp.Content)
	if summary == "" {
		return "", llm.NewError(llm.ErrorTypeEmptyResponse, "model returned an empty summary")
	}
	s.logger.Info("🤖 Janitor summary: %s", summary)
	return summary, nil
}

// BoundExcerpt keeps the tail of text that fits the token budget. The head of a CI
// excerpt (check name and URL) is preserved when it fits alongside the tail.
func (s *Service) BoundExcerpt(text string) string {
	if s.tokens.CountTokens(text) <= s.tokenBudget {
		return text
	}

	head, body, found := strings.Cut(text, logsMarker)
	if found {
		headCost := s.tokens.CountTokens(head + logsMarker)
		if headCost < s.tokenBudget/2 {
			tail, dropped := s.tokens.TailToTokenLimit(body, s.tokenBudget-headCost)
			s.logger.Debug("Excerpt trimmed %d leading log lines", dropped)
			return head + logsMarker + tail
		}
	}

	tail, dropped := s.tokens.TailToTokenLimit(text, s.tokenBudget)
	s.logger.Debug("Excerpt trimmed %d leading lines", dropped)
	return tail
}

// logsMarker separates the check header from the streamed run log in CI excerpts.
const logsMarker = "\n\n--- Logs ---\n"

// LogsMarker returns the separator used between a failure header and its logs.
func LogsMarker() string {
	return logsMarker
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
