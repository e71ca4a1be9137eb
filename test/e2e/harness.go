// Package e2e boots a complete thalamus instance, with scripted model
// backends and fixture knowledge, and drives it over real HTTP.
package e2e

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thalamus-ai/thalamus/pkg/api"
	"github.com/thalamus-ai/thalamus/pkg/brain"
	"github.com/thalamus-ai/thalamus/pkg/config"
	"github.com/thalamus-ai/thalamus/pkg/cortex"
	"github.com/thalamus-ai/thalamus/pkg/database"
	"github.com/thalamus-ai/thalamus/pkg/governance"
	"github.com/thalamus-ai/thalamus/pkg/knowledge"
	"github.com/thalamus-ai/thalamus/pkg/llm"
	"github.com/thalamus-ai/thalamus/pkg/memory"
	"github.com/thalamus-ai/thalamus/pkg/orchestrator"
	"github.com/thalamus-ai/thalamus/pkg/privacy"
	"github.com/thalamus-ai/thalamus/pkg/thunk"
)

// FakeClock is a settable time source shared by every component.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// FixtureKnowledge implements the orchestrator's knowledge seam with
// canned lookup results.
type FixtureKnowledge struct {
	mu      sync.Mutex
	blob    string
	sources []string
	webBlob string
	lookups int
}

// NewFixtureKnowledge returns a fixture that contributes nothing.
func NewFixtureKnowledge() *FixtureKnowledge { return &FixtureKnowledge{} }

// Serve makes subsequent lookups return blob attributed to the sources.
func (f *FixtureKnowledge) Serve(blob string, sources ...string) *FixtureKnowledge {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blob = blob
	f.sources = sources
	return f
}

func (f *FixtureKnowledge) LookupWithSources(_ context.Context, _ string) (string, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	return f.blob, f.sources
}

func (f *FixtureKnowledge) WebLookup(_ context.Context, _ string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.webBlob
}

func (f *FixtureKnowledge) Stats() map[string]knowledge.ProviderStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return map[string]knowledge.ProviderStats{}
}

// TestApp is a fully wired thalamus instance behind an httptest server.
type TestApp struct {
	Store     *brain.Store
	Memory    *memory.Integration
	Engine    *governance.Engine
	Orch      *orchestrator.Orchestrator
	Privacy   *privacy.Controller
	Knowledge *FixtureKnowledge
	Clock     *FakeClock
	Backends  map[string]*ScriptedBackend

	BaseURL string
	WSURL   string

	t *testing.T
}

type testAppConfig struct {
	backends    []*ScriptedBackend
	order       []string
	mode        config.PrivacyMode
	autoConfirm bool
	consensus   bool
}

// TestAppOption configures the test app.
type TestAppOption func(*testAppConfig)

// WithBackends installs scripted backends in fallback order.
func WithBackends(backends ...*ScriptedBackend) TestAppOption {
	return func(c *testAppConfig) {
		c.backends = backends
		c.order = nil
		for _, b := range backends {
			c.order = append(c.order, b.Name())
		}
	}
}

// WithPrivacyMode sets the controller's starting mode.
func WithPrivacyMode(mode config.PrivacyMode) TestAppOption {
	return func(c *testAppConfig) { c.mode = mode }
}

// WithAutoConfirm approves cloud-access requests without a callback.
func WithAutoConfirm() TestAppOption {
	return func(c *testAppConfig) { c.autoConfirm = true }
}

// WithConsensus enables consensus fan-out by default.
func WithConsensus() TestAppOption {
	return func(c *testAppConfig) { c.consensus = true }
}

// NewTestApp boots the full stack. Defaults: one local backend, LOCAL
// privacy mode, fallback generation, empty knowledge fixture.
func NewTestApp(t *testing.T, opts ...TestAppOption) *TestApp {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := &testAppConfig{mode: config.PrivacyModeLocal}
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.backends) == 0 {
		WithBackends(NewScriptedBackend("local", llm.KindLocal, "ok"))(cfg)
	}

	clock := &FakeClock{now: time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC)}

	dbClient, err := database.NewClient(ctx, database.Config{Path: t.TempDir() + "/brain.db"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = dbClient.Close() })

	store := brain.NewStore(dbClient, logger)
	cx := cortex.New(store, clock.Now, nil, logger)
	mem, err := memory.New(ctx, cx, store, thunk.NewCompressor(clock.Now), clock.Now, nil, logger)
	require.NoError(t, err)

	clients := make(map[string]llm.Client, len(cfg.backends))
	backends := make(map[string]*ScriptedBackend, len(cfg.backends))
	for _, b := range cfg.backends {
		clients[b.Name()] = b
		backends[b.Name()] = b
	}
	registry := llm.NewRegistry(clients, cfg.order)

	controller := privacy.NewController(cfg.mode, cfg.autoConfirm,
		func(ctx context.Context, provider string) bool {
			client, ok := registry.Get(provider)
			return ok && client.Available(ctx)
		})

	fixture := NewFixtureKnowledge()
	orch := orchestrator.New(registry, controller, privacy.NewMasker(nil), fixture,
		nil, cfg.consensus, nil, logger)

	builtinAgents := config.GetBuiltinConfig().Agents
	agents := make(map[string]*config.AgentConfig, len(builtinAgents))
	for name, a := range builtinAgents {
		cp := a
		agents[name] = &cp
	}
	engine := governance.NewEngine(orch,
		governance.NewSelector(config.NewAgentRegistry(agents), store),
		governance.NewCommuner(store, logger),
		governance.NewChecker(store, nil, logger),
		mem, store, clock.Now, nil, logger)

	server := api.NewServer(config.DefaultServerConfig(), engine, orch, controller,
		mem, store, dbClient, nil, logger)

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	return &TestApp{
		Store:     store,
		Memory:    mem,
		Engine:    engine,
		Orch:      orch,
		Privacy:   controller,
		Knowledge: fixture,
		Clock:     clock,
		Backends:  backends,
		BaseURL:   ts.URL,
		WSURL:     strings.Replace(ts.URL, "http://", "ws://", 1),
		t:         t,
	}
}
