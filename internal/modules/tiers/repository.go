// Package tiers implements the household tier registry: the validated
// parameter source every other simulation component reads from.
package tiers

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/evren/tiersim/internal/database"
	"github.com/evren/tiersim/internal/domain"
	"github.com/rs/zerolog"
)

const tierColumns = `campaign_id, tier_name, household_count, population_percentage,
	average_income, consumption_power, luxury_demand_multiplier,
	basic_goods_demand_multiplier, savings_rate, investment_capacity,
	education_access, business_opportunity_access, social_mobility_rate,
	created_at, updated_at`

// Repository handles household tier database operations
// Database: simulation.db (household_tiers table)
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new tier repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "tiers").Logger(),
	}
}

// Get returns one tier of a campaign, or a NotFoundError.
func (r *Repository) Get(campaignID int64, tier domain.Tier) (*domain.HouseholdTier, error) {
	return r.get(r.db, campaignID, tier)
}

// GetTx is Get inside an existing transaction.
func (r *Repository) GetTx(tx *sql.Tx, campaignID int64, tier domain.Tier) (*domain.HouseholdTier, error) {
	return r.get(tx, campaignID, tier)
}

func (r *Repository) get(exec database.Executor, campaignID int64, tier domain.Tier) (*domain.HouseholdTier, error) {
	query := `SELECT ` + tierColumns + ` FROM household_tiers WHERE campaign_id = ? AND tier_name = ?`

	row := exec.QueryRow(query, campaignID, string(tier))
	t, err := scanTier(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "household tier", Key: fmt.Sprintf("campaign=%d tier=%s", campaignID, tier)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query household tier: %w", err)
	}

	return t, nil
}

// List returns all tiers of a campaign in canonical order (poor, median, rich).
func (r *Repository) List(campaignID int64) ([]domain.HouseholdTier, error) {
	return r.list(r.db, campaignID)
}

// ListTx is List inside an existing transaction.
func (r *Repository) ListTx(tx *sql.Tx, campaignID int64) ([]domain.HouseholdTier, error) {
	return r.list(tx, campaignID)
}

func (r *Repository) list(exec database.Executor, campaignID int64) ([]domain.HouseholdTier, error) {
	// CASE ordering keeps the fixed poor/median/rich sequence independent of
	// lexicographic order.
	query := `SELECT ` + tierColumns + ` FROM household_tiers WHERE campaign_id = ?
		ORDER BY CASE tier_name WHEN 'poor' THEN 0 WHEN 'median' THEN 1 ELSE 2 END`

	rows, err := exec.Query(query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to query household tiers: %w", err)
	}
	defer rows.Close()

	var tiers []domain.HouseholdTier
	for rows.Next() {
		t, err := scanTier(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan household tier: %w", err)
		}
		tiers = append(tiers, *t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating household tiers: %w", err)
	}

	return tiers, nil
}

// Upsert inserts or replaces a tier row. Used by campaign seeding.
func (r *Repository) Upsert(exec database.Executor, t *domain.HouseholdTier) error {
	now := time.Now().Unix()
	query := `
		INSERT INTO household_tiers (` + tierColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (campaign_id, tier_name) DO UPDATE SET
			household_count = excluded.household_count,
			population_percentage = excluded.population_percentage,
			average_income = excluded.average_income,
			consumption_power = excluded.consumption_power,
			luxury_demand_multiplier = excluded.luxury_demand_multiplier,
			basic_goods_demand_multiplier = excluded.basic_goods_demand_multiplier,
			savings_rate = excluded.savings_rate,
			investment_capacity = excluded.investment_capacity,
			education_access = excluded.education_access,
			business_opportunity_access = excluded.business_opportunity_access,
			social_mobility_rate = excluded.social_mobility_rate,
			updated_at = excluded.updated_at`

	_, err := exec.Exec(query,
		t.CampaignID,
		string(t.Name),
		t.HouseholdCount,
		t.PopulationPercentage,
		t.AverageIncome,
		t.ConsumptionPower,
		t.LuxuryDemandMultiplier,
		t.BasicGoodsDemandMultiplier,
		t.SavingsRate,
		t.InvestmentCapacity,
		t.EducationAccess,
		t.BusinessOpportunityAccess,
		t.SocialMobilityRate,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert household tier %s: %w", t.Name, err)
	}

	return nil
}

// Save persists the mutable fields of an existing tier row.
func (r *Repository) Save(exec database.Executor, t *domain.HouseholdTier) error {
	query := `
		UPDATE household_tiers SET
			household_count = ?,
			population_percentage = ?,
			average_income = ?,
			consumption_power = ?,
			luxury_demand_multiplier = ?,
			basic_goods_demand_multiplier = ?,
			savings_rate = ?,
			investment_capacity = ?,
			education_access = ?,
			business_opportunity_access = ?,
			social_mobility_rate = ?,
			updated_at = ?
		WHERE campaign_id = ? AND tier_name = ?`

	result, err := exec.Exec(query,
		t.HouseholdCount,
		t.PopulationPercentage,
		t.AverageIncome,
		t.ConsumptionPower,
		t.LuxuryDemandMultiplier,
		t.BasicGoodsDemandMultiplier,
		t.SavingsRate,
		t.InvestmentCapacity,
		t.EducationAccess,
		t.BusinessOpportunityAccess,
		t.SocialMobilityRate,
		time.Now().Unix(),
		t.CampaignID,
		string(t.Name),
	)
	if err != nil {
		return fmt.Errorf("failed to update household tier %s: %w", t.Name, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return &domain.NotFoundError{Entity: "household tier", Key: fmt.Sprintf("campaign=%d tier=%s", t.CampaignID, t.Name)}
	}

	return nil
}

func scanTier(scan func(dest ...interface{}) error) (*domain.HouseholdTier, error) {
	var t domain.HouseholdTier
	var name string
	var createdAtUnix, updatedAtUnix sql.NullInt64

	if err := scan(
		&t.CampaignID,
		&name,
		&t.HouseholdCount,
		&t.PopulationPercentage,
		&t.AverageIncome,
		&t.ConsumptionPower,
		&t.LuxuryDemandMultiplier,
		&t.BasicGoodsDemandMultiplier,
		&t.SavingsRate,
		&t.InvestmentCapacity,
		&t.EducationAccess,
		&t.BusinessOpportunityAccess,
		&t.SocialMobilityRate,
		&createdAtUnix,
		&updatedAtUnix,
	); err != nil {
		return nil, err
	}

	t.Name = domain.Tier(name)
	if createdAtUnix.Valid {
		t.CreatedAt = time.Unix(createdAtUnix.Int64, 0).UTC()
	}
	if updatedAtUnix.Valid {
		t.UpdatedAt = time.Unix(updatedAtUnix.Int64, 0).UTC()
	}

	return &t, nil
}
