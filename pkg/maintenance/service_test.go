package maintenance

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thalamus-ai/thalamus/pkg/brain"
	"github.com/thalamus-ai/thalamus/pkg/config"
	"github.com/thalamus-ai/thalamus/pkg/cortex"
	"github.com/thalamus-ai/thalamus/pkg/database"
	"github.com/thalamus-ai/thalamus/pkg/memory"
	"github.com/thalamus-ai/thalamus/pkg/thunk"
)

func newTestMemory(t *testing.T) *memory.Integration {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	client, err := database.NewClient(ctx, database.Config{Path: t.TempDir() + "/brain.db"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store := brain.NewStore(client, logger)
	cx := cortex.New(store, nil, nil, logger)
	mem, err := memory.New(ctx, cx, store, thunk.NewCompressor(nil), nil, nil, logger)
	require.NoError(t, err)
	return mem
}

func TestServiceStartStop(t *testing.T) {
	cfg := &config.MemoryConfig{
		TickInterval:        10 * time.Millisecond,
		SyncInterval:        10 * time.Millisecond,
		ConsolidateInterval: time.Hour,
	}
	s := NewService(cfg, newTestMemory(t))

	s.Start(context.Background())
	// Let a few timer passes run; failures inside a pass must not kill
	// the loop.
	time.Sleep(50 * time.Millisecond)
	s.Stop()
}

func TestServiceStopWithoutStart(t *testing.T) {
	s := NewService(config.DefaultMemoryConfig(), newTestMemory(t))
	s.Stop()
}

func TestServiceDoubleStart(t *testing.T) {
	cfg := &config.MemoryConfig{
		TickInterval:        10 * time.Millisecond,
		SyncInterval:        time.Hour,
		ConsolidateInterval: time.Hour,
	}
	s := NewService(cfg, newTestMemory(t))

	s.Start(context.Background())
	s.Start(context.Background())
	s.Stop()
}
