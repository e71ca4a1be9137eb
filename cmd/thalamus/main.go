// Thalamus server: privacy-first assistant orchestrator with tiered
// memory, multi-backend consensus and an adaptive governance layer.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/thalamus-ai/thalamus/pkg/api"
	"github.com/thalamus-ai/thalamus/pkg/brain"
	"github.com/thalamus-ai/thalamus/pkg/config"
	"github.com/thalamus-ai/thalamus/pkg/cortex"
	"github.com/thalamus-ai/thalamus/pkg/database"
	"github.com/thalamus-ai/thalamus/pkg/governance"
	"github.com/thalamus-ai/thalamus/pkg/knowledge"
	"github.com/thalamus-ai/thalamus/pkg/llm"
	"github.com/thalamus-ai/thalamus/pkg/maintenance"
	"github.com/thalamus-ai/thalamus/pkg/memory"
	"github.com/thalamus-ai/thalamus/pkg/observe"
	"github.com/thalamus-ai/thalamus/pkg/orchestrator"
	"github.com/thalamus-ai/thalamus/pkg/privacy"
	"github.com/thalamus-ai/thalamus/pkg/thunk"
	"github.com/thalamus-ai/thalamus/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func setupLogging() {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	setupLogging()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Debug("No .env file, continuing with existing environment", "path", envPath)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	slog.Info("Starting thalamus", "version", version.Full(), "config_dir", *configDir)

	ctx := context.Background()
	logger := slog.Default()

	// 1. Observability: Prometheus-backed OTel meter provider.
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version.GitCommit,
	})
	if err != nil {
		slog.Error("Failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Error("Telemetry shutdown error", "error", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// 2. Configuration.
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(2)
	}

	// 3. Brain database.
	dbClient, err := database.NewClient(ctx, database.Config{Path: cfg.Memory.DatabasePath})
	if err != nil {
		slog.Error("Failed to open brain database", "path", cfg.Memory.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("Error closing brain database", "error", err)
		}
	}()
	slog.Info("Brain database opened", "path", dbClient.Path())

	// 4. Memory stack: permanent store, tiered cortex, thunk compression.
	store := brain.NewStore(dbClient, logger)
	cx := cortex.New(store, nil, metrics, logger)
	mem, err := memory.New(ctx, cx, store, thunk.NewCompressor(nil), nil, metrics, logger)
	if err != nil {
		slog.Error("Failed to initialize memory", "error", err)
		os.Exit(1)
	}

	// 5. Model backends.
	registry, err := llm.BuildRegistry(cfg)
	if err != nil {
		slog.Error("Failed to build backend registry", "error", err)
		os.Exit(1)
	}
	slog.Info("Backend registry built", "backends", registry.Len())

	// 6. Privacy controller and outbound masking.
	mode, ok := cfg.PrivacyDefault()
	if !ok {
		slog.Warn("Unknown privacy mode in config, starting in LOCAL")
	}
	autoConfirm := cfg.Defaults != nil && cfg.Defaults.AutoConfirmCloud
	controller := privacy.NewController(mode, autoConfirm, func(ctx context.Context, provider string) bool {
		client, ok := registry.Get(provider)
		return ok && client.Available(ctx)
	})
	var maskDefaults *config.PromptMaskingDefaults
	if cfg.Defaults != nil {
		maskDefaults = cfg.Defaults.PromptMasking
	}
	masker := privacy.NewMasker(maskDefaults)
	slog.Info("Privacy controller ready", "mode", controller.Mode(), "masking", masker.Enabled())

	// 7. Knowledge pre-lookup router.
	router := knowledge.NewRouter(cfg.Knowledge, metrics, logger)

	// 8. Orchestrator.
	var synthesisOrder []string
	consensusDefault := true
	if cfg.Defaults != nil {
		synthesisOrder = cfg.Defaults.SynthesisOrder
		consensusDefault = cfg.Defaults.ConsensusEnabled()
	}
	orch := orchestrator.New(registry, controller, masker, router,
		synthesisOrder, consensusDefault, metrics, logger)

	// 9. Governance engine.
	engine := governance.NewEngine(orch,
		governance.NewSelector(cfg.AgentRegistry, store),
		governance.NewCommuner(store, logger),
		governance.NewChecker(store, metrics, logger),
		mem, store, nil, metrics, logger)

	// 10. Background memory maintenance.
	maint := maintenance.NewService(cfg.Memory, mem)
	maint.Start(ctx)

	// 11. HTTP/WebSocket server.
	server := api.NewServer(cfg.Server, engine, orch, controller, mem, store,
		dbClient, metrics, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errCh <- err
		}
	}()

	slog.Info("Thalamus started",
		"agents", cfg.Stats().Agents,
		"providers", cfg.Stats().LLMProviders,
		"privacy_mode", controller.Mode())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// Drain HTTP first so no new work reaches the engine, then stop the
	// maintenance timers.
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	maint.Stop()

	slog.Info("Shutdown complete")
}
