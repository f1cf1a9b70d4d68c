package tiers

import (
	"database/sql"
	"fmt"

	"github.com/evren/tiersim/internal/database"
	"github.com/evren/tiersim/internal/domain"
	"github.com/rs/zerolog"
)

// PercentageSumTolerance is the allowed deviation of the campaign-wide
// population percentage sum from 100.
const PercentageSumTolerance = 0.5

// Registry is the validated tier parameter source. It owns no algorithm of
// its own beyond enforcing field bounds and the percentage-sum invariant; all
// other components read their baseline parameters from it.
type Registry struct {
	repo *Repository
	log  zerolog.Logger
}

// NewRegistry creates a new tier registry service
func NewRegistry(repo *Repository, log zerolog.Logger) *Registry {
	return &Registry{
		repo: repo,
		log:  log.With().Str("service", "tier_registry").Logger(),
	}
}

// GetTier returns one tier of a campaign.
func (s *Registry) GetTier(campaignID int64, tier domain.Tier) (*domain.HouseholdTier, error) {
	if !tier.Valid() {
		return nil, &domain.NotFoundError{Entity: "household tier", Key: string(tier)}
	}
	return s.repo.Get(campaignID, tier)
}

// GetTierTx is GetTier inside an existing transaction.
func (s *Registry) GetTierTx(tx *sql.Tx, campaignID int64, tier domain.Tier) (*domain.HouseholdTier, error) {
	if !tier.Valid() {
		return nil, &domain.NotFoundError{Entity: "household tier", Key: string(tier)}
	}
	return s.repo.GetTx(tx, campaignID, tier)
}

// ListTiers returns all tiers of a campaign in fixed order (poor, median, rich).
func (s *Registry) ListTiers(campaignID int64) ([]domain.HouseholdTier, error) {
	return s.repo.List(campaignID)
}

// ListTiersTx is ListTiers inside an existing transaction.
func (s *Registry) ListTiersTx(tx *sql.Tx, campaignID int64) ([]domain.HouseholdTier, error) {
	return s.repo.ListTx(tx, campaignID)
}

// SeedCampaign creates the three tiers of a new campaign with default
// parameters. Seeding is idempotent: re-seeding resets tier parameters to
// their defaults.
func (s *Registry) SeedCampaign(exec database.Executor, campaignID, totalPopulation int64) error {
	if totalPopulation <= 0 {
		return domain.NewValidationError("total_population", "must be positive, got %d", totalPopulation)
	}

	for _, seed := range tierSeeds {
		t := defaultTier(campaignID, totalPopulation, seed)
		if err := s.repo.Upsert(exec, &t); err != nil {
			return fmt.Errorf("failed to seed tier %s for campaign %d: %w", seed.tier, campaignID, err)
		}
	}

	s.log.Info().Int64("campaign_id", campaignID).Int64("population", totalPopulation).Msg("Seeded campaign tiers")
	return nil
}

// UpdateTier applies a partial update to one tier. The update is rejected
// with a ValidationError before anything is persisted when a bounded field
// falls outside its range or the resulting campaign-wide percentage sum
// deviates from 100 by more than the tolerance.
func (s *Registry) UpdateTier(campaignID int64, tier domain.Tier, update domain.TierUpdate) (*domain.HouseholdTier, error) {
	return s.updateTier(s.repo.db, campaignID, tier, update)
}

// UpdateTierTx is UpdateTier inside an existing transaction.
func (s *Registry) UpdateTierTx(tx *sql.Tx, campaignID int64, tier domain.Tier, update domain.TierUpdate) (*domain.HouseholdTier, error) {
	return s.updateTier(tx, campaignID, tier, update)
}

func (s *Registry) updateTier(exec database.Executor, campaignID int64, tier domain.Tier, update domain.TierUpdate) (*domain.HouseholdTier, error) {
	current, err := s.repo.get(exec, campaignID, tier)
	if err != nil {
		return nil, err
	}

	candidate := *current
	applyUpdate(&candidate, update)

	if err := validateTier(&candidate); err != nil {
		return nil, err
	}

	// The percentage-sum invariant spans all tiers of the campaign, so it is
	// checked against the siblings as they currently stand.
	if update.PopulationPercentage != nil {
		siblings, err := s.repo.list(exec, campaignID)
		if err != nil {
			return nil, err
		}
		sum := 0.0
		for _, sibling := range siblings {
			if sibling.Name == tier {
				sum += candidate.PopulationPercentage
			} else {
				sum += sibling.PopulationPercentage
			}
		}
		if sum < 100-PercentageSumTolerance || sum > 100+PercentageSumTolerance {
			return nil, domain.NewValidationError("population_percentage",
				"campaign percentages must sum to 100 (±%.1f), got %.2f", PercentageSumTolerance, sum)
		}
	}

	if err := s.repo.Save(exec, &candidate); err != nil {
		return nil, err
	}

	s.log.Debug().Int64("campaign_id", campaignID).Str("tier", string(tier)).Msg("Tier updated")
	return &candidate, nil
}

// ShiftHouseholds moves a number of households from one tier to another and
// rebalances all population percentages from the resulting counts, keeping
// the percentage sum at 100 by construction. Runs inside the caller's step
// transaction so both tier rows change atomically.
func (s *Registry) ShiftHouseholds(tx *sql.Tx, campaignID int64, from, to domain.Tier, count int64) error {
	if from == to || count <= 0 {
		return nil
	}

	all, err := s.repo.list(tx, campaignID)
	if err != nil {
		return err
	}

	byName := make(map[domain.Tier]*domain.HouseholdTier, len(all))
	for i := range all {
		byName[all[i].Name] = &all[i]
	}

	source, ok := byName[from]
	if !ok {
		return &domain.NotFoundError{Entity: "household tier", Key: string(from)}
	}
	target, ok := byName[to]
	if !ok {
		return &domain.NotFoundError{Entity: "household tier", Key: string(to)}
	}

	moved := count
	if moved > source.HouseholdCount {
		moved = source.HouseholdCount
	}
	source.HouseholdCount -= moved
	target.HouseholdCount += moved

	var total int64
	for _, t := range all {
		total += t.HouseholdCount
	}

	for i := range all {
		if total > 0 {
			all[i].PopulationPercentage = float64(all[i].HouseholdCount) / float64(total) * 100
		}
		if err := s.repo.Save(tx, &all[i]); err != nil {
			return err
		}
	}

	s.log.Debug().
		Int64("campaign_id", campaignID).
		Str("from", string(from)).
		Str("to", string(to)).
		Int64("households", moved).
		Msg("Households shifted between tiers")

	return nil
}

func applyUpdate(t *domain.HouseholdTier, u domain.TierUpdate) {
	if u.HouseholdCount != nil {
		t.HouseholdCount = *u.HouseholdCount
	}
	if u.PopulationPercentage != nil {
		t.PopulationPercentage = *u.PopulationPercentage
	}
	if u.AverageIncome != nil {
		t.AverageIncome = *u.AverageIncome
	}
	if u.ConsumptionPower != nil {
		t.ConsumptionPower = *u.ConsumptionPower
	}
	if u.LuxuryDemandMultiplier != nil {
		t.LuxuryDemandMultiplier = *u.LuxuryDemandMultiplier
	}
	if u.BasicGoodsDemandMultiplier != nil {
		t.BasicGoodsDemandMultiplier = *u.BasicGoodsDemandMultiplier
	}
	if u.SavingsRate != nil {
		t.SavingsRate = *u.SavingsRate
	}
	if u.InvestmentCapacity != nil {
		t.InvestmentCapacity = *u.InvestmentCapacity
	}
	if u.EducationAccess != nil {
		t.EducationAccess = *u.EducationAccess
	}
	if u.BusinessOpportunityAccess != nil {
		t.BusinessOpportunityAccess = *u.BusinessOpportunityAccess
	}
	if u.SocialMobilityRate != nil {
		t.SocialMobilityRate = *u.SocialMobilityRate
	}
}
