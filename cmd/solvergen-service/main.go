// solvergen-service is the HTTP API server driving solver code generation
// runs on a hosted CI pipeline.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"solvergen/internal/api"
	"solvergen/internal/config"
	"solvergen/internal/dispatcher"
	"solvergen/internal/gate"
	"solvergen/internal/health"
	"solvergen/internal/lifecycle"
	"solvergen/internal/observability"
	"solvergen/internal/remote"
	"solvergen/internal/session"
	"solvergen/internal/verify"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := run(); err != nil {
		slog.Error("Service failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load configuration
	svcCfg := config.LoadServiceConfig()
	pollCfg := config.LoadPollingConfig()
	dispatcherCfg := dispatcher.LoadConfigFromEnv()

	profile, err := config.LoadProfile(svcCfg.ProfilePath)
	if err != nil {
		return err
	}

	// Setup metrics
	metrics, metricsHandler, err := observability.NewMetrics(ctx)
	if err != nil {
		return err
	}

	// Create callback dispatcher
	eventDispatcher := dispatcher.NewMemory(dispatcherCfg, metrics)

	// Create remote pipelines client
	client := remote.NewHTTPClient(remote.Config{
		BaseURL:  profile.BaseURL,
		Token:    profile.Token(),
		Owner:    profile.Owner,
		Repo:     profile.Repo,
		Workflow: profile.Workflow,
		Ref:      profile.Ref,
	})

	slog.Info("Remote pipeline configured",
		"owner", profile.Owner,
		"repo", profile.Repo,
		"workflow", profile.Workflow,
	)

	// Create the generation coordinator
	coordinator := lifecycle.NewCoordinator(client, nil, pollCfg, metrics)

	// The download gate must observe transitions before the callback
	// notifier so downloads are unlocked by the time callbacks fire.
	downloadGate := gate.New(coordinator, client, verify.New(profile.OutputPath), gate.Config{
		BundleName:  profile.BundleName,
		ChecksumLog: profile.ChecksumLog,
	}, metrics)

	notifier := dispatcher.NewNotifier(eventDispatcher, svcCfg.CallbackURL, svcCfg.CallbackKey)
	coordinator.Subscribe(notifier.OnStateChange)

	// Create health checker
	healthChecker := health.NewChecker(client)

	// Create API router
	router := api.NewRouter(api.RouterConfig{
		Coordinator:   coordinator,
		Gate:          downloadGate,
		Flags:         session.NewStore(),
		Metrics:       metrics,
		HealthChecker: healthChecker,
		APIKey:        svcCfg.APIKey,
	})

	if svcCfg.APIKey != "" {
		slog.Info("API authentication enabled")
	} else {
		slog.Warn("API authentication disabled - no API_KEY_FILE configured")
	}

	// Create API server
	apiServer := &http.Server{
		Addr:         ":" + svcCfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Create metrics server
	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", metricsHandler)
	metricsServer := &http.Server{
		Addr:         ":" + svcCfg.MetricsPort,
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// Channel to capture server errors
	serverErr := make(chan error, 1)

	// Start API server
	go func() {
		slog.Info("Starting API server", "port", svcCfg.Port)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Start metrics server
	go func() {
		slog.Info("Starting metrics server", "port", svcCfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// shutdown closes both servers gracefully
	shutdown := func(timeout time.Duration) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("API server shutdown error", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server shutdown error", "error", err)
		}
	}

	// Wait for interrupt signal or server error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErr:
		slog.Error("Server failed to start", "error", err)
		shutdown(5 * time.Second)
		return err
	}

	// Phase 1: Mark service as unhealthy for load balancer draining
	healthChecker.SetShuttingDown()

	// Wait for load balancers to stop sending traffic
	if svcCfg.ShutdownDrainWait > 0 {
		slog.Info("Waiting for traffic to drain", "duration", svcCfg.ShutdownDrainWait)
		time.Sleep(svcCfg.ShutdownDrainWait)
	}

	// Phase 2: Graceful shutdown - stop accepting new connections, finish in-flight requests
	slog.Info("Starting graceful shutdown")
	shutdown(25 * time.Second)

	// Phase 3: Stop the poll loop and drain the callback dispatcher
	coordinator.Stop()

	slog.Info("Draining callback dispatcher")
	dispatcherCtx, dispatcherCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dispatcherCancel()
	if err := eventDispatcher.Close(dispatcherCtx); err != nil {
		slog.Warn("Dispatcher shutdown error", "error", err)
	}

	// Log final dispatcher stats
	stats := eventDispatcher.Stats()
	slog.Info("Dispatcher stats",
		"delivered", stats.Delivered,
		"failed", stats.Failed,
		"dropped", stats.Dropped,
	)

	// A run already dispatched to the remote pipeline keeps executing there;
	// a restarted service can re-adopt it through the run lookup.
	slog.Info("Shutdown complete")
	return nil
}
