package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thalamus-ai/thalamus/pkg/config"
)

func TestNewBackend_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.LLMProviderConfig
	}{
		{name: "nil config", cfg: nil},
		{name: "invalid type", cfg: &config.LLMProviderConfig{Type: "mainframe", Model: "m"}},
		{name: "missing model", cfg: &config.LLMProviderConfig{Type: config.LLMProviderTypeOllama}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBackend("b", tt.cfg)
			require.Error(t, err)
		})
	}
}

func TestBackend_Status(t *testing.T) {
	local, err := NewBackend("local", &config.LLMProviderConfig{
		Type: config.LLMProviderTypeOllama, Model: "llama3.1",
	})
	require.NoError(t, err)
	assert.Equal(t, Status{
		Provider: "ollama", Model: "llama3.1", Kind: KindLocal, Privacy: PrivacyFull,
	}, local.Status())

	cloud, err := NewBackend("claude", &config.LLMProviderConfig{
		Type: config.LLMProviderTypeAnthropic, Model: "claude-sonnet-4-20250514", APIKeyEnv: "THALAMUS_TEST_KEY",
	})
	require.NoError(t, err)
	assert.Equal(t, KindCloud, cloud.Status().Kind)
	assert.Equal(t, PrivacyRequiresApproval, cloud.Status().Privacy)
}

func TestBackend_CloudAvailability(t *testing.T) {
	cloud, err := NewBackend("claude", &config.LLMProviderConfig{
		Type: config.LLMProviderTypeAnthropic, Model: "m", APIKeyEnv: "THALAMUS_TEST_AVAIL_KEY",
	})
	require.NoError(t, err)

	ctx := context.Background()
	assert.False(t, cloud.Available(ctx), "no credential configured")

	t.Setenv("THALAMUS_TEST_AVAIL_KEY", "sk-test")
	assert.True(t, cloud.Available(ctx))

	cloud.authFailed.Store(true)
	assert.False(t, cloud.Available(ctx), "auth failure parks the backend")

	cloud.Reprobe()
	assert.True(t, cloud.Available(ctx), "reprobe clears the auth failure")
}

func TestBackend_LocalProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	local, err := NewBackend("local", &config.LLMProviderConfig{
		Type: config.LLMProviderTypeOllama, Model: "m", BaseURL: srv.URL,
	})
	require.NoError(t, err)

	ctx := context.Background()
	assert.True(t, local.Available(ctx))

	// The probe result is cached; stopping the server does not flip
	// availability until the cache expires or a reprobe is forced.
	srv.Close()
	assert.True(t, local.Available(ctx))

	local.Reprobe()
	assert.False(t, local.Available(ctx))
}

func TestBackend_Timeout(t *testing.T) {
	local, err := NewBackend("local", &config.LLMProviderConfig{
		Type: config.LLMProviderTypeOllama, Model: "m",
	})
	require.NoError(t, err)
	assert.Equal(t, defaultLocalTimeout, local.timeout())

	cloud, err := NewBackend("claude", &config.LLMProviderConfig{
		Type: config.LLMProviderTypeAnthropic, Model: "m", APIKeyEnv: "K",
	})
	require.NoError(t, err)
	assert.Equal(t, defaultCloudTimeout, cloud.timeout())

	custom, err := NewBackend("local", &config.LLMProviderConfig{
		Type: config.LLMProviderTypeOllama, Model: "m", Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, custom.timeout())
}

func TestBackend_BuildParams(t *testing.T) {
	temp := 0.3
	maxTokens := 1000
	b, err := NewBackend("local", &config.LLMProviderConfig{
		Type: config.LLMProviderTypeOllama, Model: "llama3.1",
	})
	require.NoError(t, err)

	params := b.buildParams(Request{
		Prompt: "What is the CAP theorem?",
		System: "Be concise.",
		Context: []Message{
			{Role: "system", Content: "Real-time data: AAPL: $212.33 (+1.2% up)"},
			{Role: "user", Content: "earlier question"},
		},
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})

	require.Len(t, params.Messages, 4)
	assert.Equal(t, "Be concise.", params.Messages[0].Content)
	assert.Equal(t, "What is the CAP theorem?", params.Messages[3].Content)
	require.NotNil(t, params.Temperature)
	assert.Equal(t, 0.3, *params.Temperature)
	require.NotNil(t, params.MaxTokens)
	assert.Equal(t, 1000, *params.MaxTokens)
}

func TestIsAuthError(t *testing.T) {
	assert.True(t, isAuthError(errors.New("request failed: 401 Unauthorized")))
	assert.True(t, isAuthError(errors.New("invalid api key provided")))
	assert.False(t, isAuthError(errors.New("connection refused")))
	assert.False(t, isAuthError(nil))
}
