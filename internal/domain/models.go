// Package domain provides core domain models and types.
package domain

import "time"

// Tier represents one of the three fixed household population segments.
type Tier string

const (
	TierPoor   Tier = "poor"
	TierMedian Tier = "median"
	TierRich   Tier = "rich"
)

// Tiers returns the fixed tier set in canonical order (poorest first).
func Tiers() []Tier {
	return []Tier{TierPoor, TierMedian, TierRich}
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierPoor, TierMedian, TierRich:
		return true
	}
	return false
}

// Above returns the next tier up, or false when t is already the top tier.
func (t Tier) Above() (Tier, bool) {
	switch t {
	case TierPoor:
		return TierMedian, true
	case TierMedian:
		return TierRich, true
	}
	return t, false
}

// Below returns the next tier down, or false when t is already the bottom tier.
func (t Tier) Below() (Tier, bool) {
	switch t {
	case TierRich:
		return TierMedian, true
	case TierMedian:
		return TierPoor, true
	}
	return t, false
}

// Resource represents a consumable resource category in the fixed catalogue.
type Resource string

const (
	ResourceFood          Resource = "food"
	ResourceWater         Resource = "water"
	ResourceEnergy        Resource = "energy"
	ResourceHousing       Resource = "housing"
	ResourceClothing      Resource = "clothing"
	ResourceHealthcare    Resource = "healthcare"
	ResourceEducation     Resource = "education"
	ResourceEntertainment Resource = "entertainment"
	ResourceLuxuryGoods   Resource = "luxury_goods"

	// ResourceGold is the monetary resource charged by mobility attempts.
	// It is not part of the consumption catalogue.
	ResourceGold Resource = "gold"
)

// Resources returns the fixed resource catalogue in canonical order.
func Resources() []Resource {
	return []Resource{
		ResourceFood,
		ResourceWater,
		ResourceEnergy,
		ResourceHousing,
		ResourceClothing,
		ResourceHealthcare,
		ResourceEducation,
		ResourceEntertainment,
		ResourceLuxuryGoods,
	}
}

// EventType classifies a social mobility event.
type EventType string

const (
	EventEducationInvestment  EventType = "education_investment"
	EventBusinessStart        EventType = "business_start"
	EventBusinessSuccess      EventType = "business_success"
	EventBusinessFailure      EventType = "business_failure"
	EventInheritance          EventType = "inheritance"
	EventMarriage             EventType = "marriage"
	EventEconomicPolicyImpact EventType = "economic_policy_impact"
	EventCulturalShift        EventType = "cultural_shift"
	EventNaturalProgression   EventType = "natural_progression"
)

// Outcome is the resolution state of a mobility event.
// Pending events transition exactly once to success or failure;
// the terminal states are immutable.
type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Terminal reports whether o is a terminal (immutable) outcome.
func (o Outcome) Terminal() bool {
	return o == OutcomeSuccess || o == OutcomeFailure
}

// HouseholdTier represents one population tier of one campaign.
// Population percentages across a campaign's tiers must sum to 100
// within a small tolerance; bounded fields are validated on every update.
type HouseholdTier struct {
	UpdatedAt                  time.Time `json:"updated_at"`
	CreatedAt                  time.Time `json:"created_at"`
	Name                       Tier      `json:"tier_name"`
	CampaignID                 int64     `json:"campaign_id"`
	HouseholdCount             int64     `json:"household_count"`
	PopulationPercentage       float64   `json:"population_percentage"`
	AverageIncome              float64   `json:"average_income"`
	ConsumptionPower           float64   `json:"consumption_power"`
	LuxuryDemandMultiplier     float64   `json:"luxury_demand_multiplier"`
	BasicGoodsDemandMultiplier float64   `json:"basic_goods_demand_multiplier"`
	SavingsRate                float64   `json:"savings_rate"`
	InvestmentCapacity         float64   `json:"investment_capacity"`
	EducationAccess            float64   `json:"education_access"`
	BusinessOpportunityAccess  float64   `json:"business_opportunity_access"`
	SocialMobilityRate         float64   `json:"social_mobility_rate"`
}

// TierUpdate is a partial update for a HouseholdTier. Nil fields are left
// unchanged. Updates are validated against field bounds and the campaign-wide
// percentage-sum invariant before anything is persisted.
type TierUpdate struct {
	HouseholdCount             *int64   `json:"household_count,omitempty"`
	PopulationPercentage       *float64 `json:"population_percentage,omitempty"`
	AverageIncome              *float64 `json:"average_income,omitempty"`
	ConsumptionPower           *float64 `json:"consumption_power,omitempty"`
	LuxuryDemandMultiplier     *float64 `json:"luxury_demand_multiplier,omitempty"`
	BasicGoodsDemandMultiplier *float64 `json:"basic_goods_demand_multiplier,omitempty"`
	SavingsRate                *float64 `json:"savings_rate,omitempty"`
	InvestmentCapacity         *float64 `json:"investment_capacity,omitempty"`
	EducationAccess            *float64 `json:"education_access,omitempty"`
	BusinessOpportunityAccess  *float64 `json:"business_opportunity_access,omitempty"`
	SocialMobilityRate         *float64 `json:"social_mobility_rate,omitempty"`
}

// ConsumptionPattern is the demand curve for one (campaign, tier, resource).
// Exactly one pattern exists per combination; patterns change only through
// explicit policy updates.
type ConsumptionPattern struct {
	Tier                        Tier     `json:"tier_name"`
	Resource                    Resource `json:"resource_type"`
	CampaignID                  int64    `json:"campaign_id"`
	BaseDemand                  float64  `json:"base_demand"`
	PriceElasticity             float64  `json:"price_elasticity"`
	LuxuryFactor                float64  `json:"luxury_factor"`
	NecessityFactor             float64  `json:"necessity_factor"`
	SeasonalMultiplier          float64  `json:"seasonal_multiplier"`
	CulturalInfluenceMultiplier float64  `json:"cultural_influence_multiplier"`
	ReferencePrice              float64  `json:"reference_price"`
}

// ResourceCost maps resource types to amounts consumed by a mobility attempt.
type ResourceCost map[Resource]float64

// Total returns the summed cost across all resources.
func (c ResourceCost) Total() float64 {
	var total float64
	for _, amount := range c {
		total += amount
	}
	return total
}

// Covers reports whether every required amount is available in c.
func (c ResourceCost) Covers(required ResourceCost) bool {
	for resource, amount := range required {
		if c[resource] < amount {
			return false
		}
	}
	return true
}

// MobilityEvent is one append-only social mobility log entry. The household
// reference identifies a cohort of households within a tier, not an
// individual household (households are modeled as counts).
type MobilityEvent struct {
	CreatedAt          time.Time    `json:"created_at"`
	ResolvedAt         time.Time    `json:"resolved_at,omitempty"`
	ID                 string       `json:"id"`
	HouseholdID        string       `json:"household_id"`
	TriggerReason      string       `json:"trigger_reason"`
	Type               EventType    `json:"event_type"`
	FromTier           Tier         `json:"from_tier"`
	ToTier             Tier         `json:"to_tier"`
	Outcome            Outcome      `json:"outcome"`
	ResourceCost       ResourceCost `json:"resource_cost"`
	CampaignID         int64        `json:"campaign_id"`
	Step               int64        `json:"campaign_step"`
	SuccessProbability float64      `json:"success_probability"`
}

// DemandProjection is the per-step, per-tier, per-resource demand estimate
// handed to the external market-clearing system. Rows are write-once: a new
// step always inserts new rows, preserving the time series.
type DemandProjection struct {
	CreatedAt           time.Time `json:"created_at"`
	Tier                Tier      `json:"tier_name"`
	Resource            Resource  `json:"resource_type"`
	CampaignID          int64     `json:"campaign_id"`
	Step                int64     `json:"campaign_step"`
	BaseDemand          float64   `json:"base_demand"`
	ProjectedDemand     float64   `json:"projected_demand"`
	CurrentPrice        float64   `json:"current_price"`
	ElasticityImpact    float64   `json:"elasticity_impact"`
	CulturalImpact      float64   `json:"cultural_impact"`
	SeasonalImpact      float64   `json:"seasonal_impact"`
	TotalAdjustedDemand float64   `json:"total_adjusted_demand"`
}

// CivilizationMetrics is the composite index snapshot derived from tier and
// mobility state for one (campaign, step). It is a derived view: cached for
// dashboards but always recomputable from the underlying entities.
type CivilizationMetrics struct {
	RecordedAt          time.Time `json:"recorded_at"`
	CampaignID          int64     `json:"campaign_id"`
	Step                int64     `json:"campaign_step"`
	TotalPopulation     int64     `json:"total_population"`
	TotalIncome         float64   `json:"total_income"`
	GiniCoefficient     float64   `json:"gini_coefficient"`
	EconomicHealthScore float64   `json:"economic_health_score"`
	SocialMobilityIndex float64   `json:"social_mobility_index"`
	AverageMobilityRate float64   `json:"average_mobility_rate"`
}
