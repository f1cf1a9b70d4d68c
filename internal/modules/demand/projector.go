package demand

import (
	"database/sql"
	"math"

	"github.com/evren/tiersim/internal/domain"
	"github.com/evren/tiersim/internal/modules/consumption"
	"github.com/evren/tiersim/internal/modules/tiers"
	"github.com/rs/zerolog"
)

// Projector adjusts raw tier demand for live prices using constant-elasticity
// demand response and persists the result as a write-once projection row.
// It is a pure function of its inputs and the configured curves: identical
// inputs against unchanged configuration produce identical projections.
type Projector struct {
	patterns *consumption.Repository
	registry *tiers.Registry
	repo     *Repository
	log      zerolog.Logger
}

// NewProjector creates a new demand projector
func NewProjector(patterns *consumption.Repository, registry *tiers.Registry, repo *Repository, log zerolog.Logger) *Projector {
	return &Projector{
		patterns: patterns,
		registry: registry,
		repo:     repo,
		log:      log.With().Str("service", "demand_projector").Logger(),
	}
}

// ProjectDemand computes and persists the adjusted demand projection for one
// (tier, resource) at the given step and price:
//
//	elasticityImpact    = (currentPrice / referencePrice)^priceElasticity
//	totalAdjustedDemand = rawDemand × elasticityImpact
//
// A non-positive current or reference price yields an InvalidPriceError and
// no row is written; the market engine owns pricing and must retry with
// corrected input.
func (p *Projector) ProjectDemand(campaignID int64, tier domain.Tier, resource domain.Resource, currentPrice float64, step int64) (*domain.DemandProjection, error) {
	return p.project(nil, campaignID, tier, resource, currentPrice, step)
}

// ProjectDemandTx is ProjectDemand inside an existing step transaction.
func (p *Projector) ProjectDemandTx(tx *sql.Tx, campaignID int64, tier domain.Tier, resource domain.Resource, currentPrice float64, step int64) (*domain.DemandProjection, error) {
	return p.project(tx, campaignID, tier, resource, currentPrice, step)
}

func (p *Projector) project(tx *sql.Tx, campaignID int64, tier domain.Tier, resource domain.Resource, currentPrice float64, step int64) (*domain.DemandProjection, error) {
	var pattern *domain.ConsumptionPattern
	var tierState *domain.HouseholdTier
	var err error

	if tx != nil {
		pattern, err = p.patterns.GetTx(tx, campaignID, tier, resource)
	} else {
		pattern, err = p.patterns.Get(campaignID, tier, resource)
	}
	if err != nil {
		return nil, err
	}

	if tx != nil {
		tierState, err = p.registry.GetTierTx(tx, campaignID, tier)
	} else {
		tierState, err = p.registry.GetTier(campaignID, tier)
	}
	if err != nil {
		return nil, err
	}

	// Patterns without an explicit calibration price carry the schema default
	// of 1.0; a zero or negative value here is corrupt configuration.
	referencePrice := pattern.ReferencePrice
	if currentPrice <= 0 || referencePrice <= 0 {
		return nil, &domain.InvalidPriceError{CurrentPrice: currentPrice, ReferencePrice: referencePrice}
	}

	rawDemand := consumption.RawDemand(pattern, tierState)
	elasticityImpact := math.Pow(currentPrice/referencePrice, pattern.PriceElasticity)

	projection := &domain.DemandProjection{
		CampaignID:          campaignID,
		Step:                step,
		Tier:                tier,
		Resource:            resource,
		BaseDemand:          pattern.BaseDemand,
		ProjectedDemand:     rawDemand,
		CurrentPrice:        currentPrice,
		ElasticityImpact:    elasticityImpact,
		CulturalImpact:      pattern.CulturalInfluenceMultiplier,
		SeasonalImpact:      pattern.SeasonalMultiplier,
		TotalAdjustedDemand: math.Max(0, rawDemand*elasticityImpact),
	}

	if tx != nil {
		err = p.repo.Insert(tx, projection)
	} else {
		err = p.repo.Insert(p.repo.db, projection)
	}
	if err != nil {
		return nil, err
	}

	p.log.Debug().
		Int64("campaign_id", campaignID).
		Int64("step", step).
		Str("tier", string(tier)).
		Str("resource", string(resource)).
		Float64("adjusted_demand", projection.TotalAdjustedDemand).
		Msg("Demand projected")

	return projection, nil
}
