// Package demand implements the demand projector: the per-step, price-aware
// demand estimates consumed by the external market-clearing system.
package demand

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/evren/tiersim/internal/database"
	"github.com/evren/tiersim/internal/domain"
	"github.com/rs/zerolog"
)

const projectionColumns = `campaign_id, campaign_step, tier_name, resource_type,
	base_demand, projected_demand, current_price, elasticity_impact,
	cultural_impact, seasonal_impact, total_adjusted_demand, created_at`

// Repository handles demand projection database operations
// Database: simulation.db (demand_projections table)
//
// Projection rows are write-once: inserting a duplicate
// (campaign, step, tier, resource) key is an error, never an overwrite,
// so every step's projections survive as a queryable time series.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new demand projection repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "demand").Logger(),
	}
}

// Insert appends one projection row.
func (r *Repository) Insert(exec database.Executor, p *domain.DemandProjection) error {
	query := `
		INSERT INTO demand_projections (` + projectionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := exec.Exec(query,
		p.CampaignID,
		p.Step,
		string(p.Tier),
		string(p.Resource),
		p.BaseDemand,
		p.ProjectedDemand,
		p.CurrentPrice,
		p.ElasticityImpact,
		p.CulturalImpact,
		p.SeasonalImpact,
		p.TotalAdjustedDemand,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert demand projection %s/%s step %d: %w", p.Tier, p.Resource, p.Step, err)
	}

	return nil
}

// Get returns the projection for one (campaign, step, tier, resource).
func (r *Repository) Get(campaignID, step int64, tier domain.Tier, resource domain.Resource) (*domain.DemandProjection, error) {
	query := `SELECT ` + projectionColumns + ` FROM demand_projections
		WHERE campaign_id = ? AND campaign_step = ? AND tier_name = ? AND resource_type = ?`

	row := r.db.QueryRow(query, campaignID, step, string(tier), string(resource))
	p, err := scanProjection(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{
			Entity: "demand projection",
			Key:    fmt.Sprintf("campaign=%d step=%d tier=%s resource=%s", campaignID, step, tier, resource),
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query demand projection: %w", err)
	}

	return p, nil
}

// Latest returns the most recent projections per tier for one resource,
// the read path the market engine clears against.
func (r *Repository) Latest(campaignID int64, resource domain.Resource) ([]domain.DemandProjection, error) {
	query := `SELECT ` + projectionColumns + ` FROM demand_projections
		WHERE campaign_id = ? AND resource_type = ?
		AND campaign_step = (
			SELECT MAX(campaign_step) FROM demand_projections
			WHERE campaign_id = ? AND resource_type = ?
		)
		ORDER BY CASE tier_name WHEN 'poor' THEN 0 WHEN 'median' THEN 1 ELSE 2 END`

	return r.queryProjections(query, campaignID, string(resource), campaignID, string(resource))
}

// ListByStep returns all projections recorded for one step.
func (r *Repository) ListByStep(campaignID, step int64) ([]domain.DemandProjection, error) {
	query := `SELECT ` + projectionColumns + ` FROM demand_projections
		WHERE campaign_id = ? AND campaign_step = ?
		ORDER BY resource_type,
			CASE tier_name WHEN 'poor' THEN 0 WHEN 'median' THEN 1 ELSE 2 END`

	return r.queryProjections(query, campaignID, step)
}

func (r *Repository) queryProjections(query string, args ...interface{}) ([]domain.DemandProjection, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query demand projections: %w", err)
	}
	defer rows.Close()

	var projections []domain.DemandProjection
	for rows.Next() {
		p, err := scanProjection(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan demand projection: %w", err)
		}
		projections = append(projections, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating demand projections: %w", err)
	}

	return projections, nil
}

func scanProjection(scan func(dest ...interface{}) error) (*domain.DemandProjection, error) {
	var p domain.DemandProjection
	var tier, resource string
	var createdAtUnix sql.NullInt64

	if err := scan(
		&p.CampaignID,
		&p.Step,
		&tier,
		&resource,
		&p.BaseDemand,
		&p.ProjectedDemand,
		&p.CurrentPrice,
		&p.ElasticityImpact,
		&p.CulturalImpact,
		&p.SeasonalImpact,
		&p.TotalAdjustedDemand,
		&createdAtUnix,
	); err != nil {
		return nil, err
	}

	p.Tier = domain.Tier(tier)
	p.Resource = domain.Resource(resource)
	if createdAtUnix.Valid {
		p.CreatedAt = time.Unix(createdAtUnix.Int64, 0).UTC()
	}

	return &p, nil
}
