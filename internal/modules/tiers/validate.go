package tiers

import "github.com/evren/tiersim/internal/domain"

// validateTier checks every bounded field of a candidate tier state.
// Violations are reported with the specific field named so rejected policy
// changes can be surfaced precisely.
func validateTier(t *domain.HouseholdTier) error {
	if t.HouseholdCount < 0 {
		return domain.NewValidationError("household_count", "must be non-negative, got %d", t.HouseholdCount)
	}
	if t.PopulationPercentage < 0 || t.PopulationPercentage > 100 {
		return domain.NewValidationError("population_percentage", "must be in [0,100], got %.2f", t.PopulationPercentage)
	}
	if t.AverageIncome < 0 {
		return domain.NewValidationError("average_income", "must be non-negative, got %.2f", t.AverageIncome)
	}
	if t.ConsumptionPower < 0 {
		return domain.NewValidationError("consumption_power", "must be non-negative, got %.2f", t.ConsumptionPower)
	}
	if t.LuxuryDemandMultiplier <= 0 {
		return domain.NewValidationError("luxury_demand_multiplier", "must be positive, got %.2f", t.LuxuryDemandMultiplier)
	}
	if t.BasicGoodsDemandMultiplier <= 0 {
		return domain.NewValidationError("basic_goods_demand_multiplier", "must be positive, got %.2f", t.BasicGoodsDemandMultiplier)
	}
	if t.SavingsRate < 0 || t.SavingsRate > 1 {
		return domain.NewValidationError("savings_rate", "must be in [0,1], got %.2f", t.SavingsRate)
	}
	if t.InvestmentCapacity < 0 {
		return domain.NewValidationError("investment_capacity", "must be non-negative, got %.2f", t.InvestmentCapacity)
	}
	if t.EducationAccess < 0 || t.EducationAccess > 100 {
		return domain.NewValidationError("education_access", "must be in [0,100], got %.2f", t.EducationAccess)
	}
	if t.BusinessOpportunityAccess < 0 || t.BusinessOpportunityAccess > 100 {
		return domain.NewValidationError("business_opportunity_access", "must be in [0,100], got %.2f", t.BusinessOpportunityAccess)
	}
	if t.SocialMobilityRate < 0 || t.SocialMobilityRate > 1 {
		return domain.NewValidationError("social_mobility_rate", "must be in [0,1], got %.2f", t.SocialMobilityRate)
	}
	return nil
}
