package consumption

import (
	"database/sql"
	"fmt"

	"github.com/evren/tiersim/internal/database"
	"github.com/evren/tiersim/internal/domain"
	"github.com/evren/tiersim/internal/modules/tiers"
	"github.com/rs/zerolog"
)

// Model computes raw per-resource demand from a tier's demand curve and its
// registry parameters. Raw demand excludes price response; the demand
// projector layers the elasticity adjustment on top.
type Model struct {
	patterns *Repository
	registry *tiers.Registry
	log      zerolog.Logger
}

// NewModel creates a new consumption model
func NewModel(patterns *Repository, registry *tiers.Registry, log zerolog.Logger) *Model {
	return &Model{
		patterns: patterns,
		registry: registry,
		log:      log.With().Str("service", "consumption_model").Logger(),
	}
}

// GetDemandCurve returns the configured pattern for one (tier, resource).
func (m *Model) GetDemandCurve(campaignID int64, tier domain.Tier, resource domain.Resource) (*domain.ConsumptionPattern, error) {
	return m.patterns.Get(campaignID, tier, resource)
}

// SeedCampaign installs the default demand curve catalogue for every tier
// and resource of a new campaign.
func (m *Model) SeedCampaign(exec database.Executor, campaignID int64) error {
	for tier, seeds := range defaultPatterns {
		for _, seed := range seeds {
			p := defaultPattern(campaignID, tier, seed)
			if err := m.patterns.Upsert(exec, &p); err != nil {
				return fmt.Errorf("failed to seed pattern %s/%s for campaign %d: %w", tier, seed.resource, campaignID, err)
			}
		}
	}

	m.log.Info().Int64("campaign_id", campaignID).Msg("Seeded consumption patterns")
	return nil
}

// UpdatePattern applies a validated policy update to one demand curve.
func (m *Model) UpdatePattern(p *domain.ConsumptionPattern) error {
	if err := validatePattern(p); err != nil {
		return err
	}
	return m.patterns.Upsert(m.patterns.db, p)
}

// ComputeRawDemand computes the unpriced demand for one (tier, resource):
//
//	rawDemand = baseDemand × seasonal × cultural × tierDemandMultiplier
//
// where the tier multiplier is the tier's luxury propensity when the resource
// leans luxury (luxuryFactor > necessityFactor) and its basic-goods
// propensity otherwise, ties going to basic goods.
func (m *Model) ComputeRawDemand(campaignID int64, tier domain.Tier, resource domain.Resource) (float64, error) {
	return m.rawDemand(nil, campaignID, tier, resource)
}

// ComputeRawDemandTx is ComputeRawDemand inside an existing transaction.
func (m *Model) ComputeRawDemandTx(tx *sql.Tx, campaignID int64, tier domain.Tier, resource domain.Resource) (float64, error) {
	return m.rawDemand(tx, campaignID, tier, resource)
}

func (m *Model) rawDemand(tx *sql.Tx, campaignID int64, tier domain.Tier, resource domain.Resource) (float64, error) {
	var pattern *domain.ConsumptionPattern
	var tierState *domain.HouseholdTier
	var err error

	if tx != nil {
		pattern, err = m.patterns.GetTx(tx, campaignID, tier, resource)
	} else {
		pattern, err = m.patterns.Get(campaignID, tier, resource)
	}
	if err != nil {
		return 0, err
	}

	if tx != nil {
		tierState, err = m.registry.GetTierTx(tx, campaignID, tier)
	} else {
		tierState, err = m.registry.GetTier(campaignID, tier)
	}
	if err != nil {
		return 0, err
	}

	return RawDemand(pattern, tierState), nil
}

// RawDemand is the pure form of the raw demand computation over already
// loaded state.
func RawDemand(p *domain.ConsumptionPattern, t *domain.HouseholdTier) float64 {
	multiplier := t.BasicGoodsDemandMultiplier
	if p.LuxuryFactor > p.NecessityFactor {
		multiplier = t.LuxuryDemandMultiplier
	}
	return p.BaseDemand * p.SeasonalMultiplier * p.CulturalInfluenceMultiplier * multiplier
}

func validatePattern(p *domain.ConsumptionPattern) error {
	if !p.Tier.Valid() {
		return domain.NewValidationError("tier_name", "unknown tier %q", p.Tier)
	}
	if p.BaseDemand < 0 {
		return domain.NewValidationError("base_demand", "must be non-negative, got %.2f", p.BaseDemand)
	}
	if p.PriceElasticity < -5.0 || p.PriceElasticity > 1.0 {
		return domain.NewValidationError("price_elasticity", "must be in [-5.0,1.0], got %.2f", p.PriceElasticity)
	}
	if p.LuxuryFactor < 0 || p.LuxuryFactor > 1 {
		return domain.NewValidationError("luxury_factor", "must be in [0,1], got %.2f", p.LuxuryFactor)
	}
	if p.NecessityFactor < 0 || p.NecessityFactor > 1 {
		return domain.NewValidationError("necessity_factor", "must be in [0,1], got %.2f", p.NecessityFactor)
	}
	if p.SeasonalMultiplier <= 0 {
		return domain.NewValidationError("seasonal_multiplier", "must be positive, got %.2f", p.SeasonalMultiplier)
	}
	if p.CulturalInfluenceMultiplier <= 0 {
		return domain.NewValidationError("cultural_influence_multiplier", "must be positive, got %.2f", p.CulturalInfluenceMultiplier)
	}
	if p.ReferencePrice <= 0 {
		return domain.NewValidationError("reference_price", "must be positive, got %.2f", p.ReferencePrice)
	}
	return nil
}
