package consumption

import "github.com/evren/tiersim/internal/domain"

// patternSeed is one row of the default demand curve catalogue.
type patternSeed struct {
	resource   domain.Resource
	baseDemand float64
	elasticity float64
	luxury     float64
	necessity  float64
}

// defaultPatterns is the shipped demand curve catalogue per tier. Poor tiers
// treat nearly everything as a necessity with low elasticity on survival
// goods; discretionary categories approach luxury_factor 1.0 for the rich
// tier. These are configuration data, not derived values.
var defaultPatterns = map[domain.Tier][]patternSeed{
	domain.TierPoor: {
		{domain.ResourceFood, 1000, -0.3, 0.0, 1.0},
		{domain.ResourceWater, 800, -0.2, 0.0, 1.0},
		{domain.ResourceEnergy, 300, -0.8, 0.1, 0.9},
		{domain.ResourceHousing, 150, -1.2, 0.0, 1.0},
		{domain.ResourceClothing, 200, -1.0, 0.2, 0.8},
		{domain.ResourceHealthcare, 100, -1.5, 0.1, 0.9},
		{domain.ResourceEducation, 50, -2.0, 0.3, 0.7},
		{domain.ResourceEntertainment, 25, -2.5, 0.8, 0.2},
		{domain.ResourceLuxuryGoods, 5, -3.0, 1.0, 0.0},
	},
	domain.TierMedian: {
		{domain.ResourceFood, 1200, -0.5, 0.1, 0.9},
		{domain.ResourceWater, 900, -0.3, 0.0, 1.0},
		{domain.ResourceEnergy, 600, -1.0, 0.2, 0.8},
		{domain.ResourceHousing, 400, -1.0, 0.3, 0.7},
		{domain.ResourceClothing, 500, -1.2, 0.4, 0.6},
		{domain.ResourceHealthcare, 300, -1.0, 0.2, 0.8},
		{domain.ResourceEducation, 200, -1.5, 0.5, 0.5},
		{domain.ResourceEntertainment, 150, -1.8, 0.7, 0.3},
		{domain.ResourceLuxuryGoods, 75, -2.2, 0.9, 0.1},
	},
	domain.TierRich: {
		{domain.ResourceFood, 1500, -0.1, 0.3, 0.7},
		{domain.ResourceWater, 1000, -0.1, 0.0, 1.0},
		{domain.ResourceEnergy, 1200, -0.3, 0.4, 0.6},
		{domain.ResourceHousing, 1000, -0.5, 0.7, 0.3},
		{domain.ResourceClothing, 1200, -0.8, 0.8, 0.2},
		{domain.ResourceHealthcare, 800, -0.4, 0.5, 0.5},
		{domain.ResourceEducation, 600, -0.6, 0.6, 0.4},
		{domain.ResourceEntertainment, 800, -1.0, 0.8, 0.2},
		{domain.ResourceLuxuryGoods, 2000, -1.2, 1.0, 0.0},
	},
}

// defaultPattern builds the seeded ConsumptionPattern for one campaign.
// Seasonal and cultural multipliers start neutral; the reference price is the
// price the base demand was calibrated at.
func defaultPattern(campaignID int64, tier domain.Tier, seed patternSeed) domain.ConsumptionPattern {
	return domain.ConsumptionPattern{
		CampaignID:                  campaignID,
		Tier:                        tier,
		Resource:                    seed.resource,
		BaseDemand:                  seed.baseDemand,
		PriceElasticity:             seed.elasticity,
		LuxuryFactor:                seed.luxury,
		NecessityFactor:             seed.necessity,
		SeasonalMultiplier:          1.0,
		CulturalInfluenceMultiplier: 1.0,
		ReferencePrice:              1.0,
	}
}
