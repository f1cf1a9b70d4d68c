// Package metrics derives the composite civilization indices (Gini
// coefficient, economic health, social mobility index) from tier state and
// the mobility event history.
package metrics

import (
	"database/sql"
	"strconv"
	"time"

	"github.com/evren/tiersim/internal/domain"
	"github.com/evren/tiersim/internal/modules/mobility"
	"github.com/evren/tiersim/internal/modules/tiers"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
)

const (
	// DefaultMobilityIndex is reported when no resolved events exist yet.
	// A fresh campaign shows a neutral score rather than a spurious 0 or 1.
	DefaultMobilityIndex = 0.3

	// Economic health component weights.
	healthWeightInequality  = 0.4
	healthWeightPoverty     = 0.3
	healthWeightMiddleClass = 0.3
)

// EconomicStatus is the campaign-wide household economy report consumed by
// the analytics/dashboard layer.
type EconomicStatus struct {
	TierDistribution    map[domain.Tier]TierShare `json:"tier_distribution"`
	CampaignID          int64                     `json:"campaign_id"`
	TotalPopulation     int64                     `json:"total_population"`
	GiniCoefficient     float64                   `json:"gini_coefficient"`
	SocialMobilityRate  float64                   `json:"social_mobility_rate"`
	EconomicHealthScore float64                   `json:"economic_health_score"`
}

// TierShare is one tier's slice of the economic status report.
type TierShare struct {
	Count       int64   `json:"count"`
	Percentage  float64 `json:"percentage"`
	TotalIncome float64 `json:"total_income"`
}

// Aggregator reduces tier and mobility state into composite indices. All
// functions substitute documented defaults on empty or degenerate input so
// dashboards always render; nothing here panics or errors on missing data.
type Aggregator struct {
	registry  *tiers.Registry
	events    *mobility.Repository
	snapshots *SnapshotRepository
	cache     *CacheRepository
	// windowSteps bounds the trailing mobility index window; 0 means
	// campaign-to-date.
	windowSteps int64
	log         zerolog.Logger
}

// NewAggregator creates a new metrics aggregator
func NewAggregator(registry *tiers.Registry, events *mobility.Repository, snapshots *SnapshotRepository, cache *CacheRepository, windowSteps int64, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		registry:    registry,
		events:      events,
		snapshots:   snapshots,
		cache:       cache,
		windowSteps: windowSteps,
		log:         log.With().Str("service", "metrics_aggregator").Logger(),
	}
}

// ComputeGini estimates the Gini coefficient from tier population/income
// shares. This is deliberately the simplified closed-form proxy the existing
// dashboards were calibrated against, not a Lorenz-curve integral:
//
//	gini = 0.2 + richShare×0.4 + poorShare×0.2, clamped to [0,1]
//
// where the shares are income shares. Do not replace it with a statistically
// rigorous version without product sign-off.
func ComputeGini(tierStates []domain.HouseholdTier) float64 {
	var totalIncome, poorIncome, richIncome float64
	for _, t := range tierStates {
		income := float64(t.HouseholdCount) * t.AverageIncome
		totalIncome += income
		switch t.Name {
		case domain.TierPoor:
			poorIncome = income
		case domain.TierRich:
			richIncome = income
		}
	}

	if totalIncome <= 0 {
		// Degenerate input: no income data yet, report the formula's floor.
		return 0.2
	}

	gini := 0.2 + (richIncome/totalIncome)*0.4 + (poorIncome/totalIncome)*0.2
	if gini < 0 {
		return 0
	}
	if gini > 1 {
		return 1
	}
	return gini
}

// ComputeEconomicHealth combines inequality, poverty and middle-class scores
// into a 0-100 health score. povertyRate and middleClassRate are population
// percentages; every component is clamped to [0,100] before weighting.
func ComputeEconomicHealth(gini, povertyRate, middleClassRate float64) float64 {
	inequalityScore := clamp100((1 - gini) * 100)
	povertyScore := clamp100(100 - povertyRate)
	middleClassScore := clamp100(middleClassRate)

	return clamp100(inequalityScore*healthWeightInequality +
		povertyScore*healthWeightPoverty +
		middleClassScore*healthWeightMiddleClass)
}

// ComputeSocialMobilityIndex is the success ratio of resolved events in the
// given window. Pending events are excluded; with no resolved events the
// index is DefaultMobilityIndex.
func ComputeSocialMobilityIndex(events []domain.MobilityEvent) float64 {
	var total, successful float64
	for _, e := range events {
		if !e.Outcome.Terminal() {
			continue
		}
		total++
		if e.Outcome == domain.OutcomeSuccess {
			successful++
		}
	}

	if total == 0 {
		return DefaultMobilityIndex
	}
	return successful / total
}

// Snapshot computes the civilization metrics for one (campaign, step),
// persists the snapshot row inside the caller's step transaction, and
// refreshes the dashboard cache best-effort after computing.
func (a *Aggregator) Snapshot(tx *sql.Tx, campaignID, step int64) (*domain.CivilizationMetrics, error) {
	tierStates, err := a.registry.ListTiersTx(tx, campaignID)
	if err != nil {
		return nil, err
	}

	m, err := a.compute(campaignID, step, tierStates)
	if err != nil {
		return nil, err
	}

	if err := a.snapshots.Upsert(tx, m); err != nil {
		return nil, err
	}

	return m, nil
}

// Compute derives the metrics without persisting anything.
func (a *Aggregator) Compute(campaignID, step int64) (*domain.CivilizationMetrics, error) {
	tierStates, err := a.registry.ListTiers(campaignID)
	if err != nil {
		return nil, err
	}
	return a.compute(campaignID, step, tierStates)
}

func (a *Aggregator) compute(campaignID, step int64, tierStates []domain.HouseholdTier) (*domain.CivilizationMetrics, error) {
	fromStep := int64(0)
	if a.windowSteps > 0 && step > a.windowSteps {
		fromStep = step - a.windowSteps
	}

	events, err := a.events.ListSinceStep(campaignID, fromStep)
	if err != nil {
		return nil, err
	}

	var totalIncome float64
	var totalHouseholds int64
	mobilityRates := make([]float64, 0, len(tierStates))
	for _, t := range tierStates {
		totalIncome += float64(t.HouseholdCount) * t.AverageIncome
		totalHouseholds += t.HouseholdCount
		mobilityRates = append(mobilityRates, t.SocialMobilityRate)
	}

	avgMobilityRate := 0.0
	if len(mobilityRates) > 0 {
		avgMobilityRate = stat.Mean(mobilityRates, nil)
	}

	gini := ComputeGini(tierStates)

	var povertyRate, middleClassRate float64
	for _, t := range tierStates {
		switch t.Name {
		case domain.TierPoor:
			povertyRate = t.PopulationPercentage
		case domain.TierMedian:
			middleClassRate = t.PopulationPercentage
		}
	}

	return &domain.CivilizationMetrics{
		RecordedAt:          time.Now().UTC(),
		CampaignID:          campaignID,
		Step:                step,
		TotalPopulation:     int64(float64(totalHouseholds) * tiers.PeoplePerHousehold),
		TotalIncome:         totalIncome,
		GiniCoefficient:     gini,
		EconomicHealthScore: ComputeEconomicHealth(gini, povertyRate, middleClassRate),
		SocialMobilityIndex: ComputeSocialMobilityIndex(events),
		AverageMobilityRate: avgMobilityRate,
	}, nil
}

// RefreshCache writes the latest computed metrics into the dashboard cache.
// Cache failures are logged, never propagated: the cache is recomputable.
func (a *Aggregator) RefreshCache(m *domain.CivilizationMetrics) {
	if a.cache == nil {
		return
	}
	if err := a.cache.Put(m); err != nil {
		a.log.Warn().Err(err).Int64("campaign_id", m.CampaignID).Msg("Failed to refresh metrics cache")
	}
}

// Status assembles the campaign-wide economic status report.
func (a *Aggregator) Status(campaignID int64) (*EconomicStatus, error) {
	tierStates, err := a.registry.ListTiers(campaignID)
	if err != nil {
		return nil, err
	}
	if len(tierStates) == 0 {
		return nil, &domain.NotFoundError{Entity: "campaign tiers", Key: strconv.FormatInt(campaignID, 10)}
	}

	distribution := make(map[domain.Tier]TierShare, len(tierStates))
	var totalHouseholds int64
	mobilityRates := make([]float64, 0, len(tierStates))
	for _, t := range tierStates {
		distribution[t.Name] = TierShare{
			Count:       t.HouseholdCount,
			Percentage:  t.PopulationPercentage,
			TotalIncome: float64(t.HouseholdCount) * t.AverageIncome,
		}
		totalHouseholds += t.HouseholdCount
		mobilityRates = append(mobilityRates, t.SocialMobilityRate)
	}

	gini := ComputeGini(tierStates)

	var povertyRate, middleClassRate float64
	for _, t := range tierStates {
		switch t.Name {
		case domain.TierPoor:
			povertyRate = t.PopulationPercentage
		case domain.TierMedian:
			middleClassRate = t.PopulationPercentage
		}
	}

	return &EconomicStatus{
		CampaignID:          campaignID,
		TotalPopulation:     int64(float64(totalHouseholds) * tiers.PeoplePerHousehold),
		TierDistribution:    distribution,
		GiniCoefficient:     gini,
		SocialMobilityRate:  stat.Mean(mobilityRates, nil),
		EconomicHealthScore: ComputeEconomicHealth(gini, povertyRate, middleClassRate),
	}, nil
}

func clamp100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

