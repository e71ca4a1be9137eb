package api

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thalamus-ai/thalamus/pkg/brain"
	"github.com/thalamus-ai/thalamus/pkg/config"
	"github.com/thalamus-ai/thalamus/pkg/database"
	"github.com/thalamus-ai/thalamus/pkg/governance"
	"github.com/thalamus-ai/thalamus/pkg/llm"
	"github.com/thalamus-ai/thalamus/pkg/orchestrator"
	"github.com/thalamus-ai/thalamus/pkg/privacy"
)

type fakeEngine struct {
	mu      sync.Mutex
	resp    *governance.Response
	err     error
	inputs  []string
	hints   []map[string]string
	cleared []string
}

func (f *fakeEngine) ProcessInput(_ context.Context, input, userID string, hints map[string]string) (*governance.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, input)
	f.hints = append(f.hints, hints)
	if f.err != nil {
		return nil, f.err
	}
	resp := *f.resp
	if userID == "" {
		userID = governance.DefaultUserID
	}
	resp.UserID = userID
	return &resp, nil
}

func (f *fakeEngine) Plan(_ context.Context, input string) (governance.Classification, []governance.Recommendation) {
	return governance.Classify(input), []governance.Recommendation{{Agent: "generalist", Score: 1}}
}

func (f *fakeEngine) Clear(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, userID)
}

type fakeBackends struct {
	statuses []llm.BackendStatus
	report   orchestrator.StatusReport
}

func (f *fakeBackends) Status() orchestrator.StatusReport { return f.report }

func (f *fakeBackends) Backends(context.Context) []llm.BackendStatus { return f.statuses }

type fakePrivacy struct {
	mu          sync.Mutex
	mode        config.PrivacyMode
	approve     bool
	requested   []string
	disabled    []string
	disabledAll bool
}

func (f *fakePrivacy) Snapshot() privacy.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return privacy.Snapshot{Mode: f.mode, CloudAllowed: f.mode != config.PrivacyModeLocal}
}

func (f *fakePrivacy) RequestCloudAccess(_ context.Context, provider, _ string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested = append(f.requested, provider)
	if f.approve {
		f.mode = config.PrivacyModeHybrid
	}
	return f.approve
}

func (f *fakePrivacy) DisableProvider(provider string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disabled = append(f.disabled, provider)
}

func (f *fakePrivacy) DisableAllCloud() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disabledAll = true
	f.mode = config.PrivacyModeLocal
}

type fakeMemory struct {
	stats map[string]int
	err   error
}

func (f *fakeMemory) Stats(context.Context) (map[string]int, error) { return f.stats, f.err }

type fakeHistory struct {
	turns []*brain.Turn
	perf  map[string]*brain.SkillStats
}

func (f *fakeHistory) ConversationContext(_ context.Context, limit int) ([]*brain.Turn, error) {
	if limit < len(f.turns) {
		return f.turns[:limit], nil
	}
	return f.turns, nil
}

func (f *fakeHistory) AgentPerformance(context.Context) (map[string]*brain.SkillStats, error) {
	return f.perf, nil
}

type testServerEnv struct {
	server   *Server
	engine   *fakeEngine
	backends *fakeBackends
	privacy  *fakePrivacy
	memory   *fakeMemory
	history  *fakeHistory
}

func newTestServer(t *testing.T) *testServerEnv {
	t.Helper()
	ctx := context.Background()

	client, err := database.NewClient(ctx, database.Config{Path: t.TempDir() + "/brain.db"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	env := &testServerEnv{
		engine: &fakeEngine{resp: &governance.Response{
			Response:  "hello there",
			Provider:  "local",
			Timestamp: time.Now(),
		}},
		backends: &fakeBackends{
			statuses: []llm.BackendStatus{
				{Name: "local", Status: llm.Status{Provider: "ollama", Model: "llama3.1", Kind: llm.KindLocal}, Available: true},
				{Name: "claude", Status: llm.Status{Provider: "anthropic", Model: "claude", Kind: llm.KindCloud}, Available: true},
			},
			report: orchestrator.StatusReport{Backends: map[string]orchestrator.BackendStats{
				"local": {Requests: 3, Successes: 3},
			}},
		},
		privacy: &fakePrivacy{mode: config.PrivacyModeLocal, approve: true},
		memory:  &fakeMemory{stats: map[string]int{"conversations": 2, "cortex_FLASH": 1}},
		history: &fakeHistory{
			turns: []*brain.Turn{{
				ID:         "t1",
				Timestamp:  time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC),
				UserText:   "hi",
				UserID:     "default",
				Importance: 5,
			}},
			perf: map[string]*brain.SkillStats{
				"generalist": {Skill: "generalist", Attempts: 4, Successes: 3, SuccessRate: 0.75},
			},
		},
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env.server = NewServer(config.DefaultServerConfig(), env.engine, env.backends,
		env.privacy, env.memory, env.history, client, nil, logger)
	return env
}
