// Package providers selects and constructs the configured llm.Client.
package providers

import (
	"fmt"
	"strings"

	"viberunner/pkg/llm"
	"viberunner/pkg/llm/providers/anthropic"
	"viberunner/pkg/llm/providers/google"
	"viberunner/pkg/llm/providers/ollama"
	"viberunner/pkg/llm/providers/openai"
	"viberunner/pkg/logx"
)

// Provider names accepted in configuration.
const (
	ProviderOpenAI    = "openai"
	ProviderDeepSeek  = "deepseek"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderOllama    = "ollama"
)

// Names lists the accepted provider names.
func Names() []string {
	return []string{ProviderOpenAI, ProviderDeepSeek, ProviderAnthropic, ProviderGemini, ProviderOllama}
}

// Strategies accepted in configuration.
const (
	StrategyAPI   = "api"
	StrategyLocal = "local"
)

// Options carries everything needed to pick a provider.
type Options struct {
	Strategy   string
	Provider   string
	Model      string
	OllamaHost string

	OpenAIKey    string
	DeepSeekKey  string
	AnthropicKey string
	GoogleKey    string
}

// New builds the client for opts. With no explicit provider the api strategy prefers
// OpenAI, then DeepSeek, and falls back to the local Ollama server when neither key is set.
func New(opts Options) (llm.Client, error) {
	client, err := build(opts)
	if err != nil {
		return nil, err
	}
	logx.NewLogger("llm").Info("🤖 Using %s model %s", providerOf(client), client.Model())
	return client, nil
}

func build(opts Options) (llm.Client, error) {
	provider := strings.ToLower(strings.TrimSpace(opts.Provider))
	if strings.EqualFold(opts.Strategy, StrategyLocal) {
		provider = ProviderOllama
	}

	switch provider {
	case "":
		switch {
		case opts.OpenAIKey != "":
			return openai.NewClient(opts.OpenAIKey, opts.Model), nil
		case opts.DeepSeekKey != "":
			return openai.NewDeepSeekClient(opts.DeepSeekKey, opts.Model), nil
		}
		logx.NewLogger("llm").Warn("⚠️ No OPENAI_API_KEY or DEEPSEEK_API_KEY set, falling back to local model")
		return ollama.NewClient(opts.OllamaHost, opts.Model), nil
	case ProviderOpenAI:
		if opts.OpenAIKey == "" {
			return nil, fmt.Errorf("llm provider %s requires OPENAI_API_KEY", provider)
		}
		return openai.NewClient(opts.OpenAIKey, opts.Model), nil
	case ProviderDeepSeek:
		if opts.DeepSeekKey == "" {
			return nil, fmt.Errorf("llm provider %s requires DEEPSEEK_API_KEY", provider)
		}
		return openai.NewDeepSeekClient(opts.DeepSeekKey, opts.Model), nil
	case ProviderAnthropic:
		if opts.AnthropicKey == "" {
			return nil, fmt.Errorf("llm provider %s requires ANTHROPIC_API_KEY", provider)
		}
		return anthropic.NewClient(opts.AnthropicKey, opts.Model), nil
	case ProviderGemini:
		if opts.GoogleKey == "" {
			return nil, fmt.Errorf("llm provider %s requires GOOGLE_API_KEY", provider)
		}
		return google.NewClient(opts.GoogleKey, opts.Model), nil
	case ProviderOllama:
		return ollama.NewClient(opts.OllamaHost, opts.Model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", opts.Provider)
	}
}

func providerOf(c llm.Client) string {
	switch c.(type) {
	case *openai.Client:
		return ProviderOpenAI
	case *anthropic.Client:
		return ProviderAnthropic
	case *google.Client:
		return ProviderGemini
	case *ollama.Client:
		return ProviderOllama
	default:
		return "custom"
	}
}
