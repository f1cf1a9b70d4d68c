// Package mobility implements the social mobility engine: stochastic
// tier-transition attempts logged to an append-only event ledger.
package mobility

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/evren/tiersim/internal/database"
	"github.com/evren/tiersim/internal/domain"
	"github.com/rs/zerolog"
)

const eventColumns = `id, campaign_id, campaign_step, household_id, event_type,
	from_tier, to_tier, trigger_reason, success_probability, resource_cost,
	outcome, created_at, resolved_at`

// Repository handles mobility event database operations
// Database: ledger.db (social_mobility_events table, append-only)
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new mobility event repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "mobility").Logger(),
	}
}

// Insert appends one event row (normally in pending state).
func (r *Repository) Insert(exec database.Executor, e *domain.MobilityEvent) error {
	costJSON, err := json.Marshal(e.ResourceCost)
	if err != nil {
		return fmt.Errorf("failed to marshal resource cost: %w", err)
	}

	query := `
		INSERT INTO social_mobility_events (` + eventColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`

	_, err = exec.Exec(query,
		e.ID,
		e.CampaignID,
		e.Step,
		e.HouseholdID,
		string(e.Type),
		string(e.FromTier),
		string(e.ToTier),
		e.TriggerReason,
		e.SuccessProbability,
		string(costJSON),
		string(e.Outcome),
		e.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert mobility event %s: %w", e.ID, err)
	}

	return nil
}

// Get returns one event by ID, or a NotFoundError.
func (r *Repository) Get(id string) (*domain.MobilityEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM social_mobility_events WHERE id = ?`

	row := r.db.QueryRow(query, id)
	e, err := scanEvent(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Entity: "mobility event", Key: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query mobility event: %w", err)
	}

	return e, nil
}

// ListPending returns all unresolved events of a campaign, oldest first.
func (r *Repository) ListPending(campaignID int64) ([]domain.MobilityEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM social_mobility_events
		WHERE campaign_id = ? AND outcome = 'pending'
		ORDER BY campaign_step, created_at, id`

	return r.queryEvents(query, campaignID)
}

// ListSinceStep returns all events of a campaign from a step onward,
// the trailing window the mobility index is computed over.
func (r *Repository) ListSinceStep(campaignID, fromStep int64) ([]domain.MobilityEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM social_mobility_events
		WHERE campaign_id = ? AND campaign_step >= ?
		ORDER BY campaign_step, created_at, id`

	return r.queryEvents(query, campaignID, fromStep)
}

// MarkResolved transitions a pending event to its terminal outcome.
// The WHERE guard makes terminal states immutable at the storage layer: a
// second resolution attempt affects zero rows and raises InvalidStateError.
func (r *Repository) MarkResolved(id string, outcome domain.Outcome, resolvedAt time.Time) error {
	if !outcome.Terminal() {
		return domain.NewValidationError("outcome", "resolution outcome must be terminal, got %q", outcome)
	}

	result, err := r.db.Exec(`
		UPDATE social_mobility_events
		SET outcome = ?, resolved_at = ?
		WHERE id = ? AND outcome = 'pending'`,
		string(outcome), resolvedAt.Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to resolve mobility event %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		existing, getErr := r.Get(id)
		if getErr != nil {
			return getErr
		}
		return &domain.InvalidStateError{EventID: id, Outcome: existing.Outcome}
	}

	return nil
}

// OutcomeCounts returns total and successful resolved event counts for a
// campaign from a step onward.
func (r *Repository) OutcomeCounts(campaignID, fromStep int64) (total, successful int64, err error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN outcome = 'success' THEN 1 ELSE 0 END), 0)
		FROM social_mobility_events
		WHERE campaign_id = ? AND campaign_step >= ? AND outcome != 'pending'`

	if err := r.db.QueryRow(query, campaignID, fromStep).Scan(&total, &successful); err != nil {
		return 0, 0, fmt.Errorf("failed to count mobility event outcomes: %w", err)
	}

	return total, successful, nil
}

func (r *Repository) queryEvents(query string, args ...interface{}) ([]domain.MobilityEvent, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query mobility events: %w", err)
	}
	defer rows.Close()

	var events []domain.MobilityEvent
	for rows.Next() {
		e, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mobility event: %w", err)
		}
		events = append(events, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating mobility events: %w", err)
	}

	return events, nil
}

func scanEvent(scan func(dest ...interface{}) error) (*domain.MobilityEvent, error) {
	var e domain.MobilityEvent
	var eventType, fromTier, toTier, outcome, costJSON string
	var createdAtUnix, resolvedAtUnix sql.NullInt64

	if err := scan(
		&e.ID,
		&e.CampaignID,
		&e.Step,
		&e.HouseholdID,
		&eventType,
		&fromTier,
		&toTier,
		&e.TriggerReason,
		&e.SuccessProbability,
		&costJSON,
		&outcome,
		&createdAtUnix,
		&resolvedAtUnix,
	); err != nil {
		return nil, err
	}

	e.Type = domain.EventType(eventType)
	e.FromTier = domain.Tier(fromTier)
	e.ToTier = domain.Tier(toTier)
	e.Outcome = domain.Outcome(outcome)
	if createdAtUnix.Valid {
		e.CreatedAt = time.Unix(createdAtUnix.Int64, 0).UTC()
	}
	if resolvedAtUnix.Valid {
		e.ResolvedAt = time.Unix(resolvedAtUnix.Int64, 0).UTC()
	}

	if err := json.Unmarshal([]byte(costJSON), &e.ResourceCost); err != nil {
		return nil, fmt.Errorf("failed to unmarshal resource cost for event %s: %w", e.ID, err)
	}

	return &e, nil
}
