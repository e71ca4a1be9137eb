// Package maintenance runs the periodic memory upkeep loops.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/thalamus-ai/thalamus/pkg/config"
	"github.com/thalamus-ai/thalamus/pkg/memory"
)

// Service drives the three memory timers:
//   - cortex decay tick (default 60 s)
//   - sync pass compressing recurring topics into thunks (default 5 min)
//   - full consolidation (default 1 h)
//
// Every pass is isolated: a failing pass is logged and the timers keep
// running.
type Service struct {
	config *config.MemoryConfig
	memory *memory.Integration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a maintenance service over the memory façade.
func NewService(cfg *config.MemoryConfig, mem *memory.Integration) *Service {
	return &Service{config: cfg, memory: mem}
}

// Start launches the background maintenance loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Maintenance service started",
		"tick_interval", s.config.TickInterval,
		"sync_interval", s.config.SyncInterval,
		"consolidate_interval", s.config.ConsolidateInterval)
}

// Stop signals the maintenance loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Maintenance service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	tick := time.NewTicker(interval(s.config.TickInterval, time.Minute))
	defer tick.Stop()
	sync := time.NewTicker(interval(s.config.SyncInterval, 5*time.Minute))
	defer sync.Stop()
	consolidate := time.NewTicker(interval(s.config.ConsolidateInterval, time.Hour))
	defer consolidate.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			s.memory.Tick(ctx)
		case <-sync.C:
			if err := s.memory.Sync(ctx); err != nil {
				slog.Error("Maintenance: sync pass failed", "error", err)
			}
		case <-consolidate.C:
			if err := s.memory.Consolidate(ctx); err != nil {
				slog.Error("Maintenance: consolidation failed", "error", err)
			} else {
				slog.Info("Maintenance: consolidation pass complete")
			}
		}
	}
}

func interval(configured, fallback time.Duration) time.Duration {
	if configured <= 0 {
		return fallback
	}
	return configured
}
