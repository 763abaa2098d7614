package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"

	"reef-chat/infrastructure/ws"
	"reef-chat/internal"
	"reef-chat/observability"
	"reef-chat/repositories"
	"reef-chat/runtime"
	"reef-chat/runtime/workers"
	"reef-chat/search"
	"reef-chat/sink"
	"reef-chat/storage"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern ensures all 'defer' statements (like database cleanup) are executed before the
// program exits, and decouples the initialization logic from the main entry point.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx := context.Background()

	// 2. Storage (BadgerDB + Bluge)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		// Defer ensures the database lock is released and buffers are flushed before the function returns.
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	if logger.Enabled(ctx, slog.LevelDebug) {
		debugPort := 8081
		endpoint := "/inspect"
		logger.Info("Debug Badger inspector available",
			"url", fmt.Sprintf("http://localhost:%d%s", debugPort, endpoint))
		database.StartDebugServer(db, debugPort, endpoint, database.DefaultMapper)
	}

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	mediaStore, err := storage.NewMediaStore(config.UploadDir, config.MediaBaseURL, logger)
	if err != nil {
		return exitRuntime, fmt.Errorf("media store init failed: %w", err)
	}

	// 3. Setup Supervision & Orchestration
	monitoring := observability.NewMonitoringManager()
	supervisor := workers.NewSupervisor(logger)
	registry := runtime.NewRegistry()
	presence := runtime.NewPresence()
	messageRepository := repositories.NewMessageRepository(db, logger)
	searchIndex := search.NewIndex(blugeWriter, logger)

	orchestrator := runtime.NewOrchestrator(
		logger, supervisor, registry, presence,
		messageRepository, monitoring,
		config.OwnerName, config.BufferSize,
		config.SinkTimeout, config.HeartbeatInterval,
	)
	orchestrator.RegisterSinks(searchIndex, sink.NewMonitoringSink(monitoring))

	// 4. Context & Signals
	// NotifyContext captures OS signals and cancels the context to trigger a shutdown.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Error (HTTP & Orchestrator)
	errChan := make(chan error, 2)

	// 5. Start the Engine (Room workers and Fanout)
	go func() {
		logger.Info("Starting orchestrator...")
		if err := orchestrator.Start(ctx); err != nil {
			errChan <- fmt.Errorf("orchestrator error: %w", err)
		}
	}()

	// 6. HTTP / Websocket Server Setup
	wsServer := ws.NewServer(logger, orchestrator, messageRepository, searchIndex,
		mediaStore, monitoring, ws.ServerConfig{
			ConnectionBufferSize: config.ConnectionBufferSize,
			DeliveryTimeout:      config.DeliveryTimeout,
			DeepLinkWindow:       config.DeepLinkWindow,
			PageSize:             config.PageSize,
			PublicRoomSuffix:     config.PublicRoomSuffix,
			AuthSecret:           []byte(config.AuthSecret),
		})

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{Addr: address, Handler: wsServer.Routes()}

	go func() {
		logger.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	// The execution blocks here until either a signal is received or the server crashes.
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 8. Final Cleanup (Graceful Shutdown)
	// We allow open connections to finish and workers to drain their channels.
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	orchestrator.Stop()
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}

	return options
}
