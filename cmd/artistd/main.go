// artistd — autonomous release pipeline daemon. Runs the batch supervisor,
// the scheduled persona evolution pass, and the Slack approval bridge.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/browser"
	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/cleanup"
	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/config"
	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/database"
	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/evolution"
	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/llm"
	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/release"
	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/runstate"
	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/services"
	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/slack"
	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/supervisor"
	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/uigen"
	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/version"
	"github.com/pavelraiden/noktvrn-ai-artist-sub002/pkg/video"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// resolvePodID determines the pod identifier for multi-replica coordination.
// Priority: POD_ID env > HOSTNAME env > "local"
func resolvePodID() string {
	if id := os.Getenv("POD_ID"); id != "" {
		return id
	}
	if hostname := os.Getenv("HOSTNAME"); hostname != "" {
		return hostname
	}
	return "local"
}

// buildVideoSources registers every stock source whose credential is present.
// Missing credentials disable a source, they never abort startup.
func buildVideoSources() []video.Source {
	var sources []video.Source
	if key := os.Getenv("PEXELS_API_KEY"); key != "" {
		sources = append(sources, video.NewPexelsSource("", key))
	} else {
		slog.Warn("PEXELS_API_KEY not set, pexels source disabled")
	}
	if key := os.Getenv("PIXABAY_API_KEY"); key != "" {
		sources = append(sources, video.NewPixabaySource("", key))
	} else {
		slog.Warn("PIXABAY_API_KEY not set, pixabay source disabled")
	}
	return sources
}

func main() {
	// Parse command-line flags
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}

	podID := resolvePodID()
	slog.Info("Starting artistd", "version", version.Full(), "pod_id", podID, "config_dir", *configDir)

	ctx := context.Background()

	// 1. Initialize configuration
	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize database
	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		slog.Error("Failed to load database config", "error", err)
		os.Exit(1)
	}

	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			slog.Error("Error closing database client", "error", err)
		}
	}()
	if health, err := dbClient.Health(ctx); err != nil {
		slog.Warn("Database health check failed", "error", err)
	} else {
		slog.Info("Connected to PostgreSQL database", "response_time_ms", health.ResponseTime)
	}

	// 3. Domain services
	personaService := services.NewPersonaService(dbClient)
	metricService := services.NewMetricService(dbClient)
	progressionService := services.NewProgressionService(dbClient)
	slog.Info("Services initialized")

	// 4. Durable run and release state
	runs, err := runstate.NewStore(cfg.Supervisor.RunStatusDir)
	if err != nil {
		slog.Error("Failed to open run-status store", "dir", cfg.Supervisor.RunStatusDir, "error", err)
		os.Exit(1)
	}
	releases, err := release.NewStore(cfg.Supervisor.ReleaseDir)
	if err != nil {
		slog.Error("Failed to open release store", "dir", cfg.Supervisor.ReleaseDir, "error", err)
		os.Exit(1)
	}

	// 5. Slack approval bridge (nil service disables Slack; decisions are
	// then written into run-status documents directly)
	var slackService *slack.Service
	if cfg.Slack.IsEnabled() {
		tokenEnv := cfg.Slack.TokenEnv
		if tokenEnv == "" {
			tokenEnv = "SLACK_BOT_TOKEN"
		}
		slackService = slack.NewService(slack.ServiceConfig{
			Token:        os.Getenv(tokenEnv),
			Channel:      cfg.Slack.Channel,
			DashboardURL: cfg.Slack.DashboardURL,
		}, runs)
	}
	if slackService != nil {
		slog.Info("Slack approval bridge enabled", "channel", cfg.Slack.Channel)
	} else {
		slog.Warn("Slack approval bridge disabled, approvals must be written to run-status documents")
	}

	// 6. LLM orchestrator with ordered fallback
	orchestrator, err := llm.NewOrchestrator(llm.OrchestratorOptions{
		PrimaryModel:                cfg.LLM.PrimaryModel,
		FallbackModels:              cfg.LLM.FallbackModels,
		EnableAutoDiscovery:         cfg.LLM.EnableAutoDiscovery,
		EnableFallbackNotifications: cfg.LLM.EnableFallbackNotifications,
		RequestTimeout:              cfg.LLM.RequestTimeout,
		Providers:                   cfg.LLMProviderRegistry,
		Notifier:                    slackService,
	})
	if err != nil {
		slog.Error("Failed to initialize LLM orchestrator", "error", err)
		os.Exit(1)
	}

	// 7. Browser-driven generation loop
	// Note: the sidecar holds the browser session; connection is lazy and
	// verified on the first action of the first run.
	sidecarURL := getEnv("BROWSER_SIDECAR_URL", "http://localhost:9333")
	driver := browser.NewRemoteDriver(sidecarURL, cfg.Generation.ActionTimeout)
	validator := uigen.NewVisionValidator(orchestrator)
	generationLoop := uigen.NewLoop(driver, validator, cfg.Generation)
	slog.Info("Generation loop initialized", "sidecar", sidecarURL)

	// 8. Video selection
	tracker, err := video.NewSuccessTracker(cfg.Video.SourceStatsPath)
	if err != nil {
		slog.Error("Failed to load source stats", "path", cfg.Video.SourceStatsPath, "error", err)
		os.Exit(1)
	}
	selector := video.NewSelector(buildVideoSources(), tracker, cfg.Video)

	// 9. Supervisor and scheduler
	sup := supervisor.New(cfg.Supervisor, personaService, orchestrator, generationLoop, selector, runs, releases, slackService)
	scheduler := supervisor.NewScheduler(podID, cfg.Supervisor, sup)
	if err := scheduler.Start(ctx); err != nil {
		slog.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	// 10. Scheduled persona evolution pass
	engine := evolution.NewEngine(personaService, metricService, progressionService, releases, cfg.Evolution)
	evolutionRunner := evolution.NewRunner(engine, personaService, cfg.Evolution.RunInterval)
	evolutionRunner.Start(ctx)

	// 11. Retention sweep for terminal runs and stale screenshots
	cleanupService := cleanup.NewService(cfg.Retention, runs, cfg.Generation.ScreenshotDir)
	cleanupService.Start(ctx)
	defer cleanupService.Stop()

	slog.Info("artistd started successfully",
		"pod_id", podID,
		"workers", cfg.Supervisor.WorkerCount)

	// 12. Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	sig := <-sigCh
	slog.Info("Shutdown signal received", "signal", sig)

	// 13. Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Supervisor.GracefulShutdownTimeout)
	defer cancel()

	// Stop the evolution runner first (passes are short)
	evolutionDone := make(chan struct{})
	go func() {
		evolutionRunner.Stop()
		close(evolutionDone)
	}()

	select {
	case <-evolutionDone:
		slog.Info("Evolution runner stopped gracefully")
	case <-shutdownCtx.Done():
		slog.Warn("Evolution runner shutdown timeout exceeded")
	}

	// Stop the scheduler (wait for active runs to reach a persistable state)
	done := make(chan struct{})
	go func() {
		scheduler.Stop()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Scheduler stopped gracefully")
	case <-shutdownCtx.Done():
		slog.Warn("Shutdown timeout exceeded — interrupted runs resume polling on next start")
	}

	// Give in-flight Slack notifications a moment to flush
	time.Sleep(100 * time.Millisecond)

	slog.Info("Shutdown complete")
}
