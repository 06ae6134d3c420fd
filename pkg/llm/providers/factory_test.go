package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viberunner/pkg/llm/providers/anthropic"
	"viberunner/pkg/llm/providers/google"
	"viberunner/pkg/llm/providers/ollama"
	"viberunner/pkg/llm/providers/openai"
)

func TestNew_AutoSelection(t *testing.T) {
	tests := []struct {
		name      string
		opts      Options
		wantModel string
		wantType  any
	}{
		{"openai preferred", Options{OpenAIKey: "o", DeepSeekKey: "d"}, openai.DefaultModel, &openai.Client{}},
		{"deepseek when only key", Options{DeepSeekKey: "d"}, openai.DeepSeekModel, &openai.Client{}},
		{"no keys falls back to ollama", Options{}, ollama.DefaultModel, &ollama.Client{}},
		{"local strategy wins", Options{Strategy: "local", OpenAIKey: "o"}, ollama.DefaultModel, &ollama.Client{}},
		{"explicit anthropic", Options{Provider: "Anthropic", AnthropicKey: "a"}, anthropic.DefaultModel, &anthropic.Client{}},
		{"explicit gemini", Options{Provider: "gemini", GoogleKey: "g", Model: "gemini-1.5-pro"}, "gemini-1.5-pro", &google.Client{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.opts)
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, c)
			assert.Equal(t, tt.wantModel, c.Model())
		})
	}
}

func TestNew_MissingKey(t *testing.T) {
	for _, p := range []string{ProviderOpenAI, ProviderDeepSeek, ProviderAnthropic, ProviderGemini} {
		_, err := New(Options{Provider: p})
		assert.Error(t, err, p)
	}
	_, err := New(Options{Provider: "llamafile"})
	assert.ErrorContains(t, err, "unknown llm provider")
}

func TestNew_ReturnsSingleShotClient(t *testing.T) {
	c, err := New(Options{OpenAIKey: "o"})
	require.NoError(t, err)
	_, isRaw := c.(*openai.Client)
	assert.True(t, isRaw, "retries belong to the caller")
}
