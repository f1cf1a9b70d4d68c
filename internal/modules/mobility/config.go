package mobility

import "github.com/evren/tiersim/internal/domain"

// Config holds the tunable mobility coefficient tables. Each campaign owns
// its own snapshot; nothing here is ambient global state.
type Config struct {
	// BaseOdds is the per-event-type baseline success probability before
	// access-score modifiers. Event types missing from the table fall back
	// to DefaultOdds.
	BaseOdds map[domain.EventType]float64

	// PoorOdds overrides BaseOdds for attempts originating in the poor tier,
	// for the event types where the original tuning distinguishes them.
	PoorOdds map[domain.EventType]float64

	// DefaultOdds is the fallback baseline for unknown event types.
	DefaultOdds float64

	// AttemptWeights scales the per-step attempt probability
	// (socialMobilityRate × weight × access modifier) per triggered type.
	AttemptWeights map[domain.EventType]float64

	// CohortSize is the number of households moved by one successful event.
	CohortSize int64
}

// DefaultConfig returns the shipped coefficient tables.
func DefaultConfig() Config {
	return Config{
		BaseOdds: map[domain.EventType]float64{
			domain.EventEducationInvestment:  0.25,
			domain.EventBusinessStart:        0.18,
			domain.EventBusinessSuccess:      0.30,
			domain.EventBusinessFailure:      0.85,
			domain.EventInheritance:          0.95,
			domain.EventMarriage:             0.20,
			domain.EventEconomicPolicyImpact: 0.10,
			domain.EventCulturalShift:        0.05,
			domain.EventNaturalProgression:   0.02,
		},
		PoorOdds: map[domain.EventType]float64{
			domain.EventEducationInvestment: 0.15,
			domain.EventBusinessStart:       0.08,
		},
		DefaultOdds: 0.10,
		AttemptWeights: map[domain.EventType]float64{
			domain.EventEducationInvestment: 1.0,
			domain.EventBusinessStart:       0.8,
			domain.EventNaturalProgression:  0.5,
		},
		CohortSize: 1,
	}
}

// baseOdds returns the baseline success probability of an event type for a
// given origin tier.
func (c Config) baseOdds(eventType domain.EventType, fromTier domain.Tier) float64 {
	if fromTier == domain.TierPoor {
		if odds, ok := c.PoorOdds[eventType]; ok {
			return odds
		}
	}
	if odds, ok := c.BaseOdds[eventType]; ok {
		return odds
	}
	return c.DefaultOdds
}

// eventDirection reports whether an event type moves households up or down;
// downward events fall back to staying put when already at the bottom tier.
func eventDirection(eventType domain.EventType) (up bool) {
	switch eventType {
	case domain.EventBusinessFailure, domain.EventCulturalShift:
		return false
	}
	return true
}

// resourceCost returns the attempt cost for an event type originating in a
// tier. Costs were not fully specified by product; they are tuned so a poor
// cohort can afford education attempts from consumption power and business
// attempts only from a healthy investment capacity.
func resourceCost(eventType domain.EventType, fromTier domain.Tier) domain.ResourceCost {
	poor := fromTier == domain.TierPoor

	switch eventType {
	case domain.EventEducationInvestment:
		if poor {
			return domain.ResourceCost{domain.ResourceEducation: 5000, domain.ResourceGold: 2000}
		}
		return domain.ResourceCost{domain.ResourceEducation: 15000, domain.ResourceGold: 8000}
	case domain.EventBusinessStart:
		if poor {
			return domain.ResourceCost{domain.ResourceGold: 10000, domain.ResourceEnergy: 500}
		}
		return domain.ResourceCost{domain.ResourceGold: 50000, domain.ResourceEnergy: 2000}
	}

	return domain.ResourceCost{}
}

// clamp01 bounds a probability to [0,1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// accessModifier maps the origin tier's relevant access score to a success
// probability multiplier in [0.5, 1.5]: a score of 50 is neutral.
func accessModifier(eventType domain.EventType, t *domain.HouseholdTier) float64 {
	var access float64
	switch eventType {
	case domain.EventEducationInvestment:
		access = t.EducationAccess
	case domain.EventBusinessStart, domain.EventBusinessSuccess, domain.EventBusinessFailure:
		access = t.BusinessOpportunityAccess
	default:
		access = (t.EducationAccess + t.BusinessOpportunityAccess) / 2
	}
	return 0.5 + access/100
}

// budgetFor returns the cohort budget an event type's cost is charged
// against: business ventures draw on investment capacity, everything else on
// consumption power.
func budgetFor(eventType domain.EventType, t *domain.HouseholdTier) float64 {
	switch eventType {
	case domain.EventBusinessStart, domain.EventBusinessSuccess:
		return t.InvestmentCapacity
	}
	return t.ConsumptionPower
}

// expectedIncomeChange estimates the income delta of a successful upward
// move from the given tier, for opportunity listings.
func expectedIncomeChange(fromTier domain.Tier) float64 {
	switch fromTier {
	case domain.TierPoor:
		return 50000
	case domain.TierMedian:
		return 225000
	}
	return 0
}
