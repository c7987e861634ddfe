package main

import (
	"conference-bot/domain"
	"conference-bot/platform"
	"conference-bot/repositories"
	"conference-bot/runtime"
	"conference-bot/runtime/workers"
	"conference-bot/web"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const shutdownTimeout = 10 * time.Second

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Orchestrator terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for the HTTP server and background workers.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()

	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	// The single pre-authenticated identity, immutable after this point.
	// Every session reads it, none may write it.
	creds := domain.Credentials{
		System:      config.System,
		Domain:      config.PlatformDomain,
		ClientID:    config.ClientID,
		AccessToken: config.AccessToken,
	}

	// 2. Database (BadgerDB) for the outcome journal
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Core: platform adapter, registry, scheduler
	clients := platform.NewFactory(logger, nil)
	journal := repositories.NewOutcomeRepository(db, logger)
	registry := runtime.NewRegistry(logger, clients, creds, journal, config.DialoutGrace)
	scheduler := runtime.NewScheduler(logger, registry)

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Supervised background workers
	sup := workers.NewSupervisor(logger, config.RestartInterval)
	sup.Add(workers.NewTelemetryWorker(logger, registry, config.TelemetryInterval))
	supDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supDone)
	}()

	// 6. HTTP surface
	server := web.NewServer(logger, scheduler, registry, journal, creds)
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting webserver", "address", address, "system", config.System)
		if err := server.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down gracefully...")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 8. Final Cleanup. Sessions are canceled before the scheduler is
	// stopped so that fired jobs blocked on a session unwind first.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)

	registry.CloseAll()
	scheduler.Stop()
	sup.Stop()
	<-supDone

	logger.Info("Program stopped cleanly")
	return exitOK, nil
}
