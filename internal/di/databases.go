// Package di provides dependency injection for database connections.
package di

import (
	"fmt"

	"github.com/evren/tiersim/internal/config"
	"github.com/evren/tiersim/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens the 3 databases and applies their schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// 1. simulation.db - Mutable simulation state
	simulationDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath("simulation"),
		Profile: database.ProfileStandard,
		Name:    "simulation",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize simulation database: %w", err)
	}
	container.SimulationDB = simulationDB

	// 2. ledger.db - Append-only mobility event history
	ledgerDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath("ledger"),
		Profile: database.ProfileLedger, // Maximum durability for the audit trail
		Name:    "ledger",
	})
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize ledger database: %w", err)
	}
	container.LedgerDB = ledgerDB

	// 3. cache.db - Recomputable dashboard cache
	cacheDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath("cache"),
		Profile: database.ProfileCache, // Speed over durability, contents are recomputable
		Name:    "cache",
	})
	if err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize cache database: %w", err)
	}
	container.CacheDB = cacheDB

	for _, db := range []*database.DB{simulationDB, ledgerDB, cacheDB} {
		if err := db.Migrate(); err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to migrate %s database: %w", db.Name(), err)
		}
	}

	log.Info().Str("data_dir", cfg.DataDir).Msg("Databases initialized")
	return container, nil
}
