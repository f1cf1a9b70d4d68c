package tiers

import "github.com/evren/tiersim/internal/domain"

// PeoplePerHousehold converts between household counts and population.
const PeoplePerHousehold = 3.5

// consumptionPowerShare is the share of income available for consumption.
const consumptionPowerShare = 0.8

// tierSeed holds the baseline economic parameters one tier is created with.
type tierSeed struct {
	tier                       domain.Tier
	populationPercentage       float64
	averageIncome              float64
	luxuryDemandMultiplier     float64
	basicGoodsDemandMultiplier float64
	savingsRate                float64
	investmentCapacityShare    float64 // Fraction of income available for investment
	educationAccess            float64
	businessOpportunityAccess  float64
	socialMobilityRate         float64
}

// tierSeeds are the default campaign seeding parameters. The poor tier leans
// heavily on basic goods, the rich tier on luxury goods; mobility peaks in the
// median tier (the rich have little room to move up, the poor few resources
// to attempt moves with).
var tierSeeds = []tierSeed{
	{
		tier:                       domain.TierPoor,
		populationPercentage:       40,
		averageIncome:              25000,
		luxuryDemandMultiplier:     0.2,
		basicGoodsDemandMultiplier: 2.5,
		savingsRate:                0.02,
		investmentCapacityShare:    0.02,
		educationAccess:            30,
		businessOpportunityAccess:  15,
		socialMobilityRate:         0.005,
	},
	{
		tier:                       domain.TierMedian,
		populationPercentage:       50,
		averageIncome:              75000,
		luxuryDemandMultiplier:     1.0,
		basicGoodsDemandMultiplier: 1.5,
		savingsRate:                0.15,
		investmentCapacityShare:    0.13,
		educationAccess:            70,
		businessOpportunityAccess:  50,
		socialMobilityRate:         0.015,
	},
	{
		tier:                       domain.TierRich,
		populationPercentage:       10,
		averageIncome:              300000,
		luxuryDemandMultiplier:     5.0,
		basicGoodsDemandMultiplier: 0.8,
		savingsRate:                0.30,
		investmentCapacityShare:    0.33,
		educationAccess:            95,
		businessOpportunityAccess:  85,
		socialMobilityRate:         0.002,
	},
}

// defaultTier builds the seeded HouseholdTier for one campaign.
func defaultTier(campaignID, totalPopulation int64, seed tierSeed) domain.HouseholdTier {
	householdCount := int64(float64(totalPopulation) * seed.populationPercentage / 100 / PeoplePerHousehold)

	return domain.HouseholdTier{
		CampaignID:                 campaignID,
		Name:                       seed.tier,
		HouseholdCount:             householdCount,
		PopulationPercentage:       seed.populationPercentage,
		AverageIncome:              seed.averageIncome,
		ConsumptionPower:           seed.averageIncome * consumptionPowerShare,
		LuxuryDemandMultiplier:     seed.luxuryDemandMultiplier,
		BasicGoodsDemandMultiplier: seed.basicGoodsDemandMultiplier,
		SavingsRate:                seed.savingsRate,
		InvestmentCapacity:         seed.averageIncome * seed.investmentCapacityShare,
		EducationAccess:            seed.educationAccess,
		BusinessOpportunityAccess:  seed.businessOpportunityAccess,
		SocialMobilityRate:         seed.socialMobilityRate,
	}
}
