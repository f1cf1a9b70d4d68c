// Package main is the entry point for the tiersim household economy
// simulation service. It advances configured campaigns on a fixed cadence:
// each step resolves social mobility events, projects tiered demand for
// every resource, and records civilization metrics.
//
// The application follows clean architecture principles:
// - Domain layer is pure (no infrastructure dependencies)
// - Dependency injection via DI container
// - Repository pattern for data access
// - Service layer for business logic
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/evren/tiersim/internal/config"
	"github.com/evren/tiersim/internal/di"
	"github.com/evren/tiersim/internal/scheduler"
	"github.com/evren/tiersim/pkg/logger"
)

// main orchestrates the startup sequence:
// 1. Loads configuration from environment variables
// 2. Initializes logging
// 3. Wires all dependencies via the DI container (databases, repositories, services)
// 4. Seeds any campaign that has no tier state yet
// 5. Starts the step scheduler
// 6. Waits for a shutdown signal and stops cleanly
//
// The application uses a 3-database architecture:
// - simulation.db: Mutable simulation state (tiers, consumption patterns, projections, metrics)
// - ledger.db: Immutable social mobility event history
// - cache.db: Recomputable dashboard cache
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
	})

	log.Info().Msg("Starting tiersim")

	container, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	for _, campaignID := range cfg.Campaigns {
		if err := container.Simulation.SeedCampaign(campaignID, cfg.TotalPopulation); err != nil {
			log.Fatal().Err(err).Int64("campaign_id", campaignID).Msg("Failed to seed campaign")
		}
	}

	sched := scheduler.New(container.Simulation, cfg.Campaigns, cfg.StepCron, log)
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start step scheduler")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")
	sched.Stop()
	log.Info().Msg("Shutdown complete")
}
