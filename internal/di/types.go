/**
 * Package di provides dependency injection type definitions.
 *
 * The Container type holds all application dependencies and is the single
 * source of truth for service instances.
 */
package di

import (
	"github.com/evren/tiersim/internal/database"
	"github.com/evren/tiersim/internal/modules/consumption"
	"github.com/evren/tiersim/internal/modules/demand"
	"github.com/evren/tiersim/internal/modules/metrics"
	"github.com/evren/tiersim/internal/modules/mobility"
	"github.com/evren/tiersim/internal/modules/tiers"
	"github.com/evren/tiersim/internal/simulation"
)

/**
 * Container holds all dependencies for the application.
 *
 * Architecture:
 * - Databases: 3-database architecture (simulation, ledger, cache)
 * - Repositories: Data access layer (tiers, consumption patterns, demand
 *   projections, mobility events, metrics snapshots, metrics cache)
 * - Services: Business logic layer (tier registry, consumption model, demand
 *   projector, mobility engine, metrics aggregator, simulation service)
 *
 * All dependencies are injected via constructor injection.
 */
type Container struct {
	// Databases (3-database architecture)
	// Each database uses SQLite with WAL mode and profile-specific PRAGMAs
	SimulationDB *database.DB // Mutable simulation state (tiers, patterns, projections, metrics)
	LedgerDB     *database.DB // Append-only social mobility event history
	CacheDB      *database.DB // Recomputable dashboard cache (metrics blobs)

	// Repositories - Data access layer
	TierRepo            *tiers.Repository
	PatternRepo         *consumption.Repository
	ProjectionRepo      *demand.Repository
	EventRepo           *mobility.Repository
	MetricsSnapshotRepo *metrics.SnapshotRepository
	MetricsCacheRepo    *metrics.CacheRepository

	// Services - Business logic layer
	TierRegistry      *tiers.Registry
	ConsumptionModel  *consumption.Model
	DemandProjector   *demand.Projector
	MobilityEngine    *mobility.Engine
	MetricsAggregator *metrics.Aggregator
	Simulation        *simulation.Service
}

// Close closes all database connections. Safe to call on a partially
// initialized container.
func (c *Container) Close() {
	for _, db := range []*database.DB{c.SimulationDB, c.LedgerDB, c.CacheDB} {
		if db != nil {
			db.Close()
		}
	}
}
