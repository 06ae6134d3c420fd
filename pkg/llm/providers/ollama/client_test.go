package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"viberunner/pkg/llm"
)

func TestComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.2", req["model"])
		assert.Equal(t, false, req["stream"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3.2","created_at":"2024-01-01T00:00:00Z",
			"message":{"role":"assistant","content":"The lint step failed."},"done":true,"done_reason":"stop"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	resp, err := c.Complete(context.Background(), llm.UserPrompt("logs", 150))
	require.NoError(t, err)
	assert.Equal(t, "The lint step failed.", resp.Content)
	assert.Equal(t, "stop", resp.StopReason)
}

func TestComplete_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"model is loading"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "m").Complete(context.Background(), llm.UserPrompt("x", 10))
	require.Error(t, err)
	assert.True(t, llm.Is(err, llm.ErrorTypeTransient))
}

func TestNewClient_DefaultHost(t *testing.T) {
	c := NewClient("", "")
	assert.Equal(t, DefaultHost, c.Host())
	assert.Equal(t, DefaultModel, c.Model())
}
