package governance

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thalamus-ai/thalamus/pkg/brain"
	"github.com/thalamus-ai/thalamus/pkg/cortex"
	"github.com/thalamus-ai/thalamus/pkg/memory"
	"github.com/thalamus-ai/thalamus/pkg/orchestrator"
	"github.com/thalamus-ai/thalamus/pkg/thunk"
)

type fakeGenerator struct {
	mu       sync.Mutex
	text     string
	err      error
	requests []orchestrator.Request
}

func (f *fakeGenerator) Generate(_ context.Context, req orchestrator.Request) (*orchestrator.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &orchestrator.Result{Text: f.text, Provider: "local"}, nil
}

func newTestEngine(t *testing.T, gen *fakeGenerator) (*Engine, *brain.Store) {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := newTestBrain(t)

	cx := cortex.New(store, nil, nil, logger)
	mem, err := memory.New(ctx, cx, store, thunk.NewCompressor(nil), nil, nil, logger)
	require.NoError(t, err)

	engine := NewEngine(gen,
		NewSelector(testRegistry(), store),
		NewCommuner(store, logger),
		NewChecker(store, nil, logger),
		mem, store, nil, nil, logger)
	return engine, store
}

func TestProcessInput(t *testing.T) {
	gen := &fakeGenerator{text: "Swapped the handler as requested."}
	engine, store := newTestEngine(t, gen)
	ctx := context.Background()

	resp, err := engine.ProcessInput(ctx, "please refactor the login handler", "", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultUserID, resp.UserID)
	assert.Equal(t, TaskCodeMod, resp.Governance.TaskType)
	require.NotEmpty(t, resp.Governance.Agents)
	assert.Equal(t, "code_specialist", resp.Governance.Agents[0].Agent)
	assert.NotNil(t, resp.Profile)
	assert.NotNil(t, resp.Quality)
	assert.NotEmpty(t, resp.Response)
	assert.False(t, resp.Timestamp.IsZero())

	// The model call carried the style instructions as system prompt.
	require.Len(t, gen.requests, 1)
	assert.NotEmpty(t, gen.requests[0].System)

	// Conversation persisted, skill tracked.
	turns, err := store.ConversationContext(ctx, 5)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "please refactor the login handler", turns[0].UserText)

	perf, err := store.AgentPerformance(ctx)
	require.NoError(t, err)
	assert.Contains(t, perf, "code_specialist")
}

func TestProcessInput_GenerationFailureStoresNothing(t *testing.T) {
	gen := &fakeGenerator{err: orchestrator.ErrAllBackendsFailed}
	engine, store := newTestEngine(t, gen)
	ctx := context.Background()

	_, err := engine.ProcessInput(ctx, "hello there", "", nil)
	assert.ErrorIs(t, err, orchestrator.ErrAllBackendsFailed)

	turns, err := store.ConversationContext(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestProcessInput_RollingWindow(t *testing.T) {
	gen := &fakeGenerator{text: "ok"}
	engine, _ := newTestEngine(t, gen)
	ctx := context.Background()

	_, err := engine.ProcessInput(ctx, "first message", "dave", nil)
	require.NoError(t, err)
	_, err = engine.ProcessInput(ctx, "second message", "dave", nil)
	require.NoError(t, err)

	require.Len(t, gen.requests, 2)
	assert.Empty(t, gen.requests[0].Context)
	require.Len(t, gen.requests[1].Context, 2)
	assert.Equal(t, "first message", gen.requests[1].Context[0].Content)
	assert.Equal(t, "assistant", gen.requests[1].Context[1].Role)

	engine.Clear("dave")
	_, err = engine.ProcessInput(ctx, "third message", "dave", nil)
	require.NoError(t, err)
	assert.Empty(t, gen.requests[2].Context, "clear resets the window")
}

func TestProcessInput_WindowsArePerUser(t *testing.T) {
	gen := &fakeGenerator{text: "ok"}
	engine, _ := newTestEngine(t, gen)
	ctx := context.Background()

	_, err := engine.ProcessInput(ctx, "from erin", "erin", nil)
	require.NoError(t, err)
	_, err = engine.ProcessInput(ctx, "from frank", "frank", nil)
	require.NoError(t, err)

	assert.Empty(t, gen.requests[1].Context, "frank does not see erin's window")
}

func TestProcessInput_FeedbackAdjustsProfile(t *testing.T) {
	gen := &fakeGenerator{text: "ok"}
	engine, store := newTestEngine(t, gen)
	ctx := context.Background()

	// Business-context input so the profile starts formal.
	input := "schedule the client meeting before the deadline"
	_, err := engine.ProcessInput(ctx, input, "gina", map[string]string{"feedback": "too_formal"})
	require.NoError(t, err)

	p, ok, err := store.CommProfileFor(ctx, "gina", string(ContextBusiness))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Less(t, p.Formality, defaultProfiles[ContextBusiness].Formality)
}

func TestProcessInput_ConsensusHint(t *testing.T) {
	gen := &fakeGenerator{text: "ok"}
	engine, _ := newTestEngine(t, gen)

	_, err := engine.ProcessInput(context.Background(), "hello", "", map[string]string{"consensus": "false"})
	require.NoError(t, err)

	require.NotNil(t, gen.requests[0].Consensus)
	assert.False(t, *gen.requests[0].Consensus)
}

func TestPlan(t *testing.T) {
	engine, _ := newTestEngine(t, &fakeGenerator{text: "ok"})

	cls, agents := engine.Plan(context.Background(), "is CVE-2024-9999 a real vulnerability?")
	assert.Equal(t, TaskSecurity, cls.TaskType)
	require.NotEmpty(t, agents)
	assert.Equal(t, "security_analyst", agents[0].Agent)
}

func TestProcessInput_SecurityFindingsRecorded(t *testing.T) {
	gen := &fakeGenerator{text: "That CVE is patched in 2.4."}
	engine, store := newTestEngine(t, gen)
	ctx := context.Background()

	_, err := engine.ProcessInput(ctx, "is CVE-2024-9999 exploitable?", "", nil)
	require.NoError(t, err)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ScanFindings)
}
