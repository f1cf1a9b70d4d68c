// Package simulation orchestrates one campaign step: resolving mobility
// events, projecting demand for every tier and resource, and recording the
// civilization metrics snapshot.
package simulation

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/evren/tiersim/internal/database"
	"github.com/evren/tiersim/internal/domain"
	"github.com/evren/tiersim/internal/modules/consumption"
	"github.com/evren/tiersim/internal/modules/demand"
	"github.com/evren/tiersim/internal/modules/metrics"
	"github.com/evren/tiersim/internal/modules/mobility"
	"github.com/evren/tiersim/internal/modules/tiers"
	"github.com/rs/zerolog"
)

// PriceSource supplies the current market price of a resource as seen by a
// tier. The simulation itself does not set prices; a market engine plugs in
// here. ReferencePrices is the standalone default.
type PriceSource interface {
	Price(campaignID int64, tier domain.Tier, resource domain.Resource) (float64, error)
}

// ReferencePrices is the default PriceSource: every resource trades at its
// consumption pattern's reference price, so elasticity impact is neutral.
type ReferencePrices struct {
	Patterns *consumption.Repository
}

// Price returns the reference price of the tier's consumption pattern.
func (s *ReferencePrices) Price(campaignID int64, tier domain.Tier, resource domain.Resource) (float64, error) {
	p, err := s.Patterns.Get(campaignID, tier, resource)
	if err != nil {
		return 0, err
	}
	return p.ReferencePrice, nil
}

// StepResult is everything one AdvanceStep call produced.
type StepResult struct {
	Tiers       []domain.HouseholdTier
	Resolutions []mobility.Resolution
	NewEvents   []domain.MobilityEvent
	Projections []domain.DemandProjection
	Metrics     *domain.CivilizationMetrics
	CampaignID  int64
	Step        int64
}

// Service drives the campaign step loop. Mobility events live in the ledger
// database and tier state in the simulation database, which rules out a
// single transaction across both; AdvanceStep orders its writes so an abort
// at any point leaves a recoverable state (see the method comment).
type Service struct {
	simDB      *sql.DB
	registry   *tiers.Registry
	model      *consumption.Model
	projector  *demand.Projector
	engine     *mobility.Engine
	aggregator *metrics.Aggregator
	snapshots  *metrics.SnapshotRepository
	prices     PriceSource
	log        zerolog.Logger
}

// NewService creates a new simulation service
func NewService(simDB *sql.DB, registry *tiers.Registry, model *consumption.Model, projector *demand.Projector, engine *mobility.Engine, aggregator *metrics.Aggregator, snapshots *metrics.SnapshotRepository, prices PriceSource, log zerolog.Logger) *Service {
	return &Service{
		simDB:      simDB,
		registry:   registry,
		model:      model,
		projector:  projector,
		engine:     engine,
		aggregator: aggregator,
		snapshots:  snapshots,
		prices:     prices,
		log:        log.With().Str("service", "simulation").Logger(),
	}
}

// SeedCampaign initializes tier state and consumption patterns for a new
// campaign. Already-seeded campaigns are left untouched.
func (s *Service) SeedCampaign(campaignID, totalPopulation int64) error {
	existing, err := s.registry.ListTiers(campaignID)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		s.log.Debug().Int64("campaign_id", campaignID).Msg("Campaign already seeded")
		return nil
	}

	err = database.WithTransaction(s.simDB, func(tx *sql.Tx) error {
		if err := s.registry.SeedCampaign(tx, campaignID, totalPopulation); err != nil {
			return err
		}
		return s.model.SeedCampaign(tx, campaignID)
	})
	if err != nil {
		return fmt.Errorf("failed to seed campaign %d: %w", campaignID, err)
	}

	s.log.Info().Int64("campaign_id", campaignID).Int64("population", totalPopulation).Msg("Campaign seeded")
	return nil
}

// NextStep returns the step AdvanceStep should run next, derived from the
// last recorded metrics snapshot. A fresh campaign starts at step 1.
func (s *Service) NextStep(campaignID int64) (int64, error) {
	maxStep, err := s.snapshots.MaxStep(campaignID)
	if err != nil {
		return 0, err
	}
	if maxStep < 0 {
		return 1, nil
	}
	return maxStep + 1, nil
}

// AdvanceStep runs one simulation step for a campaign.
//
// The write order across the two databases is:
//
//  1. Plan this step's mobility attempts and append them to the ledger as
//     pending. Attempts whose resource cost exceeds the tier's budget are
//     rejected during planning and never reach the ledger.
//  2. Draw outcomes in memory for every pending event, including leftovers
//     from a previously aborted step. Leftovers whose outcome was already
//     committed to tier state replay the recorded outcome instead of
//     drawing a new one.
//  3. In one simulation-database transaction: record each drawn outcome,
//     apply its tier shift, project demand for every tier and resource,
//     and record the metrics snapshot.
//  4. Only after that transaction commits, mark the ledger outcomes and
//     refresh the metrics cache.
//
// If the step dies before 3 commits, the events stay pending with no
// recorded outcome and the next step draws them fresh. If it dies between
// 3 and 4, the outcomes are committed but the ledger rows are still
// pending; the next step replays the recorded outcomes and marks them,
// without shifting any cohort twice.
func (s *Service) AdvanceStep(campaignID, step int64) (*StepResult, error) {
	tierStates, err := s.registry.ListTiers(campaignID)
	if err != nil {
		return nil, err
	}
	if len(tierStates) == 0 {
		return nil, &domain.NotFoundError{Entity: "campaign tiers", Key: fmt.Sprintf("%d", campaignID)}
	}

	attempts := s.engine.PlanAttempts(campaignID, step, tierStates)
	if err := s.engine.AppendPending(attempts); err != nil {
		return nil, fmt.Errorf("failed to append mobility attempts: %w", err)
	}

	// Picks up both this step's attempts and any pendings a previous
	// aborted step left behind.
	resolutions, err := s.engine.PendingResolutions(campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to draw mobility outcomes: %w", err)
	}

	prices, err := s.priceTable(campaignID)
	if err != nil {
		return nil, err
	}

	var projections []domain.DemandProjection
	var snapshot *domain.CivilizationMetrics

	err = database.WithTransaction(s.simDB, func(tx *sql.Tx) error {
		for _, res := range resolutions {
			if err := s.engine.ApplyResolution(tx, res); err != nil {
				return err
			}
		}

		for _, tier := range domain.Tiers() {
			for _, resource := range domain.Resources() {
				price, ok := prices[tier][resource]
				if !ok {
					continue
				}
				p, err := s.projector.ProjectDemandTx(tx, campaignID, tier, resource, price, step)
				if err != nil {
					// A pattern going missing mid-campaign is a data problem
					// for one cell, not for the whole step.
					var nf *domain.NotFoundError
					if errors.As(err, &nf) {
						s.log.Warn().Err(err).Str("tier", string(tier)).Str("resource", string(resource)).Msg("Skipping demand projection")
						continue
					}
					return err
				}
				projections = append(projections, *p)
			}
		}

		snapshot, err = s.aggregator.Snapshot(tx, campaignID, step)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("step %d failed for campaign %d: %w", step, campaignID, err)
	}

	if err := s.engine.CommitResolutions(resolutions); err != nil {
		// Tier shifts and their recorded outcomes are committed; the next
		// step replays the recorded outcome for any event whose ledger
		// write failed here and marks it then.
		s.log.Error().Err(err).Int64("campaign_id", campaignID).Msg("Failed to record some ledger outcomes")
	}
	s.aggregator.RefreshCache(snapshot)

	finalTiers, err := s.registry.ListTiers(campaignID)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("campaign_id", campaignID).
		Int64("step", step).
		Int("events", len(attempts)).
		Int("resolved", len(resolutions)).
		Int("projections", len(projections)).
		Float64("gini", snapshot.GiniCoefficient).
		Msg("Simulation step complete")

	return &StepResult{
		CampaignID:  campaignID,
		Step:        step,
		Tiers:       finalTiers,
		NewEvents:   attempts,
		Resolutions: resolutions,
		Projections: projections,
		Metrics:     snapshot,
	}, nil
}

// priceTable resolves all current prices up front, before the step
// transaction opens, so a slow or failing price source cannot hold the
// write transaction open.
func (s *Service) priceTable(campaignID int64) (map[domain.Tier]map[domain.Resource]float64, error) {
	table := make(map[domain.Tier]map[domain.Resource]float64, len(domain.Tiers()))
	for _, tier := range domain.Tiers() {
		table[tier] = make(map[domain.Resource]float64, len(domain.Resources()))
		for _, resource := range domain.Resources() {
			price, err := s.prices.Price(campaignID, tier, resource)
			if err != nil {
				var nf *domain.NotFoundError
				if errors.As(err, &nf) {
					continue
				}
				return nil, fmt.Errorf("failed to resolve price for %s/%s: %w", tier, resource, err)
			}
			table[tier][resource] = price
		}
	}
	return table, nil
}
