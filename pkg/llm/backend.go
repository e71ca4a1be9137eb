package llm

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/thalamus-ai/thalamus/pkg/config"
)

const (
	// defaultLocalTimeout accommodates large models on modest hardware.
	defaultLocalTimeout = 120 * time.Second
	// defaultCloudTimeout bounds cloud API calls.
	defaultCloudTimeout = 60 * time.Second

	// probeTimeout bounds the local runtime reachability check.
	probeTimeout = 2 * time.Second
	// probeCacheTTL is how long a reachability result is trusted.
	probeCacheTTL = 30 * time.Second
)

// Backend implements [Client] by wrapping github.com/mozilla-ai/any-llm-go.
// One Backend is constructed per configured provider.
type Backend struct {
	name     string
	cfg      *config.LLMProviderConfig
	provider anyllmlib.Provider

	// authFailed is set when a call fails authentication; the backend then
	// reports unavailable for the rest of the session (no retries against a
	// rejected credential).
	authFailed atomic.Bool

	// Local runtime reachability probe cache.
	probeClient *http.Client
	probeMu     sync.Mutex
	probeOK     bool
	probeAt     time.Time
}

// NewBackend constructs a backend for one provider configuration.
// Construction never performs network I/O; availability is probed lazily.
func NewBackend(name string, cfg *config.LLMProviderConfig) (*Backend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("llm: nil provider config for %q", name)
	}
	if !cfg.Type.IsValid() {
		return nil, fmt.Errorf("llm: unsupported provider type %q for %q", cfg.Type, name)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm: model must not be empty for %q", name)
	}

	var opts []anyllmlib.Option
	if cfg.APIKeyEnv != "" {
		if key := os.Getenv(cfg.APIKeyEnv); key != "" {
			opts = append(opts, anyllmlib.WithAPIKey(key))
		}
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(cfg.BaseURL))
	}

	provider, err := createProvider(cfg.Type, opts...)
	if err != nil {
		return nil, fmt.Errorf("llm: create %q backend: %w", name, err)
	}

	return &Backend{
		name:        name,
		cfg:         cfg,
		provider:    provider,
		probeClient: &http.Client{Timeout: probeTimeout},
	}, nil
}

// createProvider creates the underlying any-llm-go provider for the given type.
func createProvider(t config.LLMProviderType, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch t {
	case config.LLMProviderTypeOllama:
		return ollama.New(opts...)
	case config.LLMProviderTypeAnthropic:
		return anthropic.New(opts...)
	case config.LLMProviderTypeGoogle:
		return gemini.New(opts...)
	case config.LLMProviderTypeGroq:
		return groq.New(opts...)
	case config.LLMProviderTypeOpenAI:
		return anyllmoai.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider type %q", t)
	}
}

// Name implements [Client].
func (b *Backend) Name() string {
	return b.name
}

// Status implements [Client].
func (b *Backend) Status() Status {
	s := Status{
		Provider: string(b.cfg.Type),
		Model:    b.cfg.Model,
		Kind:     KindCloud,
		Privacy:  PrivacyRequiresApproval,
	}
	if b.cfg.Kind() == config.ProviderKindLocal {
		s.Kind = KindLocal
		s.Privacy = PrivacyFull
	}
	return s
}

// Available implements [Client]. Cloud backends are available when their
// credential is present and no auth failure occurred this session; local
// backends are available when the runtime answers a probe (cached 30s).
func (b *Backend) Available(ctx context.Context) bool {
	if b.authFailed.Load() {
		return false
	}
	if b.cfg.Kind() == config.ProviderKindCloud {
		return b.cfg.APIKeyEnv != "" && os.Getenv(b.cfg.APIKeyEnv) != ""
	}
	return b.probeLocal(ctx)
}

// Reprobe clears cached availability state, forcing the next Available call
// to re-check credentials and reachability.
func (b *Backend) Reprobe() {
	b.authFailed.Store(false)
	b.probeMu.Lock()
	b.probeAt = time.Time{}
	b.probeMu.Unlock()
}

func (b *Backend) probeLocal(ctx context.Context) bool {
	b.probeMu.Lock()
	defer b.probeMu.Unlock()

	if time.Since(b.probeAt) < probeCacheTTL {
		return b.probeOK
	}

	baseURL := b.cfg.BaseURL
	if baseURL == "" {
		baseURL = config.GetBuiltinConfig().DefaultLocalURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		b.probeOK = false
		b.probeAt = time.Now()
		return false
	}
	resp, err := b.probeClient.Do(req)
	if err != nil {
		b.probeOK = false
		b.probeAt = time.Now()
		return false
	}
	_ = resp.Body.Close()

	b.probeOK = resp.StatusCode < 500
	b.probeAt = time.Now()
	return b.probeOK
}

// Generate implements [Client].
func (b *Backend) Generate(ctx context.Context, req Request) (string, error) {
	if !b.Available(ctx) {
		return "", fmt.Errorf("%w: %s", ErrUnavailable, b.name)
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout())
	defer cancel()

	resp, err := b.provider.Completion(ctx, b.buildParams(req))
	if err != nil {
		if isAuthError(err) {
			b.authFailed.Store(true)
		}
		return "", fmt.Errorf("llm: %s completion: %w", b.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: %s: %w", b.name, ErrEmptyCompletion)
	}

	text := resp.Choices[0].Message.ContentString()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("llm: %s: %w", b.name, ErrEmptyCompletion)
	}
	return text, nil
}

// GenerateStream implements [Streamer]. Chunks arrive on the first channel
// until generation finishes; both channels close when the stream ends.
func (b *Backend) GenerateStream(ctx context.Context, req Request) (<-chan string, <-chan error, error) {
	if !b.Available(ctx) {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnavailable, b.name)
	}

	streamCtx, cancel := context.WithTimeout(ctx, b.timeout())
	chunks, errs := b.provider.CompletionStream(streamCtx, b.buildParams(req))

	out := make(chan string, 32)
	outErrs := make(chan error, 1)
	go func() {
		defer cancel()
		defer close(out)
		defer close(outErrs)

		for chunk := range chunks {
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			select {
			case out <- delta:
			case <-streamCtx.Done():
				return
			}
		}
		if err := <-errs; err != nil {
			if isAuthError(err) {
				b.authFailed.Store(true)
			}
			outErrs <- fmt.Errorf("llm: %s stream: %w", b.name, err)
		}
	}()

	return out, outErrs, nil
}

func (b *Backend) timeout() time.Duration {
	if b.cfg.Timeout > 0 {
		return b.cfg.Timeout
	}
	if b.cfg.Kind() == config.ProviderKindLocal {
		return defaultLocalTimeout
	}
	return defaultCloudTimeout
}

// buildParams converts a Request into anyllm CompletionParams. The system
// prompt leads, context turns follow in order, and the user prompt closes.
func (b *Backend) buildParams(req Request) anyllmlib.CompletionParams {
	var messages []anyllmlib.Message

	if req.System != "" {
		messages = append(messages, anyllmlib.Message{
			Role:    anyllmlib.RoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.Context {
		messages = append(messages, anyllmlib.Message{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	messages = append(messages, anyllmlib.Message{
		Role:    anyllmlib.RoleUser,
		Content: req.Prompt,
	})

	params := anyllmlib.CompletionParams{
		Model:    b.cfg.Model,
		Messages: messages,
	}

	switch {
	case req.Temperature != nil:
		t := *req.Temperature
		params.Temperature = &t
	case b.cfg.Temperature != nil:
		t := *b.cfg.Temperature
		params.Temperature = &t
	}

	switch {
	case req.MaxTokens != nil && *req.MaxTokens > 0:
		mt := *req.MaxTokens
		params.MaxTokens = &mt
	case b.cfg.MaxTokens > 0:
		mt := b.cfg.MaxTokens
		params.MaxTokens = &mt
	}

	return params
}

// isAuthError detects authentication/authorization failures so the backend
// can be parked for the session instead of hammering a rejected credential.
func isAuthError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "401") ||
		strings.Contains(msg, "403") ||
		strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "forbidden") ||
		strings.Contains(msg, "invalid api key") ||
		strings.Contains(msg, "invalid x-api-key")
}
