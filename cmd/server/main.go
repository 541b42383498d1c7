// Package main is the entry point for the deal evaluation service.
// It scores used-vehicle deals through a five-step pipeline (vehicle condition,
// price, financing, risk, final verdict) exposed over HTTP.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/dealeval/internal/config"
	"github.com/aristath/dealeval/internal/di"
	dealhandlers "github.com/aristath/dealeval/internal/modules/deals/handlers"
	evaluationhandlers "github.com/aristath/dealeval/internal/modules/evaluation/handlers"
	"github.com/aristath/dealeval/internal/server"
	"github.com/aristath/dealeval/pkg/logger"
)

// main wires dependencies, starts the scheduler and the HTTP server, then
// waits for SIGINT/SIGTERM and shuts down in reverse order.
func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
		File:   cfg.LogFile,
	})

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting deal evaluation service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := di.Wire(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	// Closing flushes the WAL of both databases
	defer func() {
		if err := container.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close databases")
		}
	}()

	srv := server.New(server.Config{
		Log:       log,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
		DataDir:   cfg.DataDir,
		Databases: container.Databases(),
		Modules: []server.RouteRegistrar{
			dealhandlers.NewHandler(container.DealRepo, log),
			evaluationhandlers.NewHandler(container.EvaluationService, log),
		},
		Jobs: container.Scheduler,
	})

	container.Scheduler.Start()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}

	cancel()

	// In-flight requests get 10 seconds to finish
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Waits for running jobs before the databases close
	container.Scheduler.Stop()

	log.Info().Msg("Server stopped")
}
