// Package consumption implements per-tier, per-resource demand curves and
// the raw demand computation built on them.
package consumption

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/evren/tiersim/internal/database"
	"github.com/evren/tiersim/internal/domain"
	"github.com/rs/zerolog"
)

const patternColumns = `campaign_id, tier_name, resource_type, base_demand,
	price_elasticity, luxury_factor, necessity_factor, seasonal_multiplier,
	cultural_influence_multiplier, reference_price`

// Repository handles consumption pattern database operations
// Database: simulation.db (consumption_patterns table)
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new consumption pattern repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "consumption").Logger(),
	}
}

// Get returns the pattern for one (campaign, tier, resource), or a NotFoundError.
func (r *Repository) Get(campaignID int64, tier domain.Tier, resource domain.Resource) (*domain.ConsumptionPattern, error) {
	return r.get(r.db, campaignID, tier, resource)
}

// GetTx is Get inside an existing transaction.
func (r *Repository) GetTx(tx *sql.Tx, campaignID int64, tier domain.Tier, resource domain.Resource) (*domain.ConsumptionPattern, error) {
	return r.get(tx, campaignID, tier, resource)
}

func (r *Repository) get(exec database.Executor, campaignID int64, tier domain.Tier, resource domain.Resource) (*domain.ConsumptionPattern, error) {
	query := `SELECT ` + patternColumns + ` FROM consumption_patterns
		WHERE campaign_id = ? AND tier_name = ? AND resource_type = ?`

	row := exec.QueryRow(query, campaignID, string(tier), string(resource))
	p, err := scanPattern(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{
			Entity: "consumption pattern",
			Key:    fmt.Sprintf("campaign=%d tier=%s resource=%s", campaignID, tier, resource),
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query consumption pattern: %w", err)
	}

	return p, nil
}

// ListByTier returns all patterns of one tier in catalogue order.
func (r *Repository) ListByTier(campaignID int64, tier domain.Tier) ([]domain.ConsumptionPattern, error) {
	query := `SELECT ` + patternColumns + ` FROM consumption_patterns
		WHERE campaign_id = ? AND tier_name = ? ORDER BY resource_type`

	return r.queryPatterns(query, campaignID, string(tier))
}

// ListByResource returns the patterns of all tiers for one resource.
func (r *Repository) ListByResource(campaignID int64, resource domain.Resource) ([]domain.ConsumptionPattern, error) {
	query := `SELECT ` + patternColumns + ` FROM consumption_patterns
		WHERE campaign_id = ? AND resource_type = ?
		ORDER BY CASE tier_name WHEN 'poor' THEN 0 WHEN 'median' THEN 1 ELSE 2 END`

	return r.queryPatterns(query, campaignID, string(resource))
}

func (r *Repository) queryPatterns(query string, args ...interface{}) ([]domain.ConsumptionPattern, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query consumption patterns: %w", err)
	}
	defer rows.Close()

	var patterns []domain.ConsumptionPattern
	for rows.Next() {
		p, err := scanPattern(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan consumption pattern: %w", err)
		}
		patterns = append(patterns, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating consumption patterns: %w", err)
	}

	return patterns, nil
}

// Upsert inserts or replaces a pattern row. The (campaign, tier, resource)
// primary key guarantees exactly one curve per combination.
func (r *Repository) Upsert(exec database.Executor, p *domain.ConsumptionPattern) error {
	now := time.Now().Unix()
	query := `
		INSERT INTO consumption_patterns (` + patternColumns + `, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (campaign_id, tier_name, resource_type) DO UPDATE SET
			base_demand = excluded.base_demand,
			price_elasticity = excluded.price_elasticity,
			luxury_factor = excluded.luxury_factor,
			necessity_factor = excluded.necessity_factor,
			seasonal_multiplier = excluded.seasonal_multiplier,
			cultural_influence_multiplier = excluded.cultural_influence_multiplier,
			reference_price = excluded.reference_price,
			updated_at = excluded.updated_at`

	_, err := exec.Exec(query,
		p.CampaignID,
		string(p.Tier),
		string(p.Resource),
		p.BaseDemand,
		p.PriceElasticity,
		p.LuxuryFactor,
		p.NecessityFactor,
		p.SeasonalMultiplier,
		p.CulturalInfluenceMultiplier,
		p.ReferencePrice,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert consumption pattern %s/%s: %w", p.Tier, p.Resource, err)
	}

	return nil
}

func scanPattern(scan func(dest ...interface{}) error) (*domain.ConsumptionPattern, error) {
	var p domain.ConsumptionPattern
	var tier, resource string

	if err := scan(
		&p.CampaignID,
		&tier,
		&resource,
		&p.BaseDemand,
		&p.PriceElasticity,
		&p.LuxuryFactor,
		&p.NecessityFactor,
		&p.SeasonalMultiplier,
		&p.CulturalInfluenceMultiplier,
		&p.ReferencePrice,
	); err != nil {
		return nil, err
	}

	p.Tier = domain.Tier(tier)
	p.Resource = domain.Resource(resource)

	return &p, nil
}
