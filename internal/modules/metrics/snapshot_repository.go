package metrics

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/evren/tiersim/internal/database"
	"github.com/evren/tiersim/internal/domain"
	"github.com/rs/zerolog"
)

const snapshotColumns = `campaign_id, campaign_step, total_population, total_income,
	gini_coefficient, economic_health_score, social_mobility_index,
	average_mobility_rate, recorded_at`

// SnapshotRepository persists one civilization_metrics row per (campaign,
// step) in the simulation database.
type SnapshotRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSnapshotRepository creates a new metrics snapshot repository
func NewSnapshotRepository(db *sql.DB, log zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		db:  db,
		log: log.With().Str("repo", "metrics_snapshots").Logger(),
	}
}

// Upsert writes the snapshot for its (campaign, step). Re-running a step
// overwrites the previous snapshot for that step.
func (r *SnapshotRepository) Upsert(exec database.Executor, m *domain.CivilizationMetrics) error {
	query := `
		INSERT INTO civilization_metrics (` + snapshotColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(campaign_id, campaign_step) DO UPDATE SET
			total_population = excluded.total_population,
			total_income = excluded.total_income,
			gini_coefficient = excluded.gini_coefficient,
			economic_health_score = excluded.economic_health_score,
			social_mobility_index = excluded.social_mobility_index,
			average_mobility_rate = excluded.average_mobility_rate,
			recorded_at = excluded.recorded_at
	`
	_, err := exec.Exec(query,
		m.CampaignID, m.Step, m.TotalPopulation, m.TotalIncome,
		m.GiniCoefficient, m.EconomicHealthScore, m.SocialMobilityIndex,
		m.AverageMobilityRate, m.RecordedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert metrics snapshot: %w", err)
	}
	return nil
}

// Get returns the snapshot of one step.
func (r *SnapshotRepository) Get(campaignID, step int64) (*domain.CivilizationMetrics, error) {
	query := `SELECT ` + snapshotColumns + ` FROM civilization_metrics WHERE campaign_id = ? AND campaign_step = ?`
	m, err := scanSnapshot(r.db.QueryRow(query, campaignID, step))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{
			Entity: "metrics snapshot",
			Key:    strconv.FormatInt(campaignID, 10) + "/" + strconv.FormatInt(step, 10),
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics snapshot: %w", err)
	}
	return m, nil
}

// Latest returns the most recent snapshot of a campaign.
func (r *SnapshotRepository) Latest(campaignID int64) (*domain.CivilizationMetrics, error) {
	query := `SELECT ` + snapshotColumns + ` FROM civilization_metrics
		WHERE campaign_id = ? ORDER BY campaign_step DESC LIMIT 1`
	m, err := scanSnapshot(r.db.QueryRow(query, campaignID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "metrics snapshot", Key: strconv.FormatInt(campaignID, 10)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest metrics snapshot: %w", err)
	}
	return m, nil
}

// History returns the most recent snapshots, newest first. Dashboards use
// this for trend lines.
func (r *SnapshotRepository) History(campaignID int64, limit int) ([]domain.CivilizationMetrics, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + snapshotColumns + ` FROM civilization_metrics
		WHERE campaign_id = ? ORDER BY campaign_step DESC LIMIT ?`

	rows, err := r.db.Query(query, campaignID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics history: %w", err)
	}
	defer rows.Close()

	var history []domain.CivilizationMetrics
	for rows.Next() {
		m, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan metrics snapshot: %w", err)
		}
		history = append(history, *m)
	}
	return history, rows.Err()
}

// MaxStep returns the highest recorded step of a campaign, or -1 when the
// campaign has no snapshots yet.
func (r *SnapshotRepository) MaxStep(campaignID int64) (int64, error) {
	var step sql.NullInt64
	err := r.db.QueryRow(`SELECT MAX(campaign_step) FROM civilization_metrics WHERE campaign_id = ?`, campaignID).Scan(&step)
	if err != nil {
		return 0, fmt.Errorf("failed to query max metrics step: %w", err)
	}
	if !step.Valid {
		return -1, nil
	}
	return step.Int64, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(row rowScanner) (*domain.CivilizationMetrics, error) {
	var m domain.CivilizationMetrics
	var recordedAt int64
	err := row.Scan(&m.CampaignID, &m.Step, &m.TotalPopulation, &m.TotalIncome,
		&m.GiniCoefficient, &m.EconomicHealthScore, &m.SocialMobilityIndex,
		&m.AverageMobilityRate, &recordedAt)
	if err != nil {
		return nil, err
	}
	m.RecordedAt = time.Unix(recordedAt, 0).UTC()
	return &m, nil
}
