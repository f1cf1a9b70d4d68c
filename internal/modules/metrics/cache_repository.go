package metrics

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/evren/tiersim/internal/domain"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// CacheRepository keeps the latest computed metrics of each campaign as a
// msgpack blob in the cache database. The cache is fully recomputable from
// the simulation database, so it lives on the fast, non-durable profile and
// callers treat misses and write failures as soft errors.
type CacheRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewCacheRepository creates a new metrics cache repository
func NewCacheRepository(db *sql.DB, log zerolog.Logger) *CacheRepository {
	return &CacheRepository{
		db:  db,
		log: log.With().Str("repo", "metrics_cache").Logger(),
	}
}

// Put stores the metrics as the campaign's latest cached snapshot.
func (r *CacheRepository) Put(m *domain.CivilizationMetrics) error {
	payload, err := msgpack.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode metrics cache payload: %w", err)
	}

	query := `
		INSERT INTO metrics_cache (campaign_id, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(campaign_id) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`
	if _, err := r.db.Exec(query, m.CampaignID, payload, time.Now().UTC().Unix()); err != nil {
		return fmt.Errorf("failed to write metrics cache: %w", err)
	}
	return nil
}

// Get returns the campaign's cached metrics, or NotFoundError on a miss.
func (r *CacheRepository) Get(campaignID int64) (*domain.CivilizationMetrics, error) {
	var payload []byte
	err := r.db.QueryRow(`SELECT payload FROM metrics_cache WHERE campaign_id = ?`, campaignID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "cached metrics", Key: strconv.FormatInt(campaignID, 10)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read metrics cache: %w", err)
	}

	var m domain.CivilizationMetrics
	if err := msgpack.Unmarshal(payload, &m); err != nil {
		// A corrupt blob is treated as a miss; the next step rewrites it.
		r.log.Warn().Err(err).Int64("campaign_id", campaignID).Msg("Discarding undecodable metrics cache entry")
		return nil, &domain.NotFoundError{Entity: "cached metrics", Key: strconv.FormatInt(campaignID, 10)}
	}
	return &m, nil
}
