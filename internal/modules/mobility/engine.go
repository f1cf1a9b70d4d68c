package mobility

import (
	"database/sql"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/evren/tiersim/internal/database"
	"github.com/evren/tiersim/internal/domain"
	"github.com/evren/tiersim/internal/modules/tiers"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// attemptOrder fixes the sampling order of triggered event types so a seeded
// run is reproducible (map iteration order is not).
var attemptOrder = []domain.EventType{
	domain.EventEducationInvestment,
	domain.EventBusinessStart,
	domain.EventNaturalProgression,
}

// Resolution pairs a mobility event with its drawn outcome. Outcomes are
// drawn in memory first, applied to tier state inside the step transaction,
// and written to the ledger only after that transaction commits; a failed
// step leaves the events pending for the next step.
//
// Applied marks a resolution whose outcome was already committed to tier
// state by an earlier step that died before the ledger outcome write. Such
// resolutions carry the recorded outcome, not a fresh draw, and must not
// shift households again.
type Resolution struct {
	Event   domain.MobilityEvent
	Outcome domain.Outcome
	Applied bool
}

// Opportunity describes an available upward mobility event for a tier,
// surfaced to the policy/administration layer.
type Opportunity struct {
	EventType            domain.EventType    `json:"event_type"`
	FromTier             domain.Tier         `json:"from_tier"`
	ToTier               domain.Tier         `json:"to_tier"`
	RequiredConditions   []string            `json:"required_conditions"`
	ResourceCost         domain.ResourceCost `json:"resource_cost"`
	SuccessProbability   float64             `json:"success_probability"`
	ExpectedIncomeChange float64             `json:"expected_income_change"`
}

// Engine generates and resolves social mobility events. Randomness comes
// from a single injected source so seeded runs replay identically; the
// probability used at each resolution is stored on the event for audit.
type Engine struct {
	repo     *Repository
	registry *tiers.Registry
	simDB    *sql.DB // simulation.db, for tier shifts outside the step loop
	cfg      Config
	rng      *rand.Rand
	mu       sync.Mutex // guards rng (not safe for concurrent use)
	log      zerolog.Logger
}

// NewEngine creates a new mobility engine
func NewEngine(repo *Repository, registry *tiers.Registry, simDB *sql.DB, cfg Config, rng *rand.Rand, log zerolog.Logger) *Engine {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{
		repo:     repo,
		registry: registry,
		simDB:    simDB,
		cfg:      cfg,
		rng:      rng,
		log:      log.With().Str("service", "mobility_engine").Logger(),
	}
}

// Repo exposes the event repository for read-only consumers (analytics).
func (e *Engine) Repo() *Repository {
	return e.repo
}

func (e *Engine) draw() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Float64()
}

// PlanAttempts samples mobility attempts for one step from the given tier
// state. For each tier, each triggered event type fires with probability
// socialMobilityRate × attemptWeight × accessModifier. Attempts whose
// resource cost exceeds the cohort budget are dropped here, before any event
// row exists.
func (e *Engine) PlanAttempts(campaignID, step int64, tierStates []domain.HouseholdTier) []domain.MobilityEvent {
	var events []domain.MobilityEvent

	for i := range tierStates {
		t := &tierStates[i]
		for _, eventType := range attemptOrder {
			weight := e.cfg.AttemptWeights[eventType]
			if weight == 0 {
				continue
			}

			probability := clamp01(t.SocialMobilityRate * weight * accessModifier(eventType, t))
			if e.draw() >= probability {
				continue
			}

			event, err := e.buildAttempt(campaignID, step, t, eventType)
			if err != nil {
				e.log.Debug().Err(err).
					Str("tier", string(t.Name)).
					Str("event_type", string(eventType)).
					Msg("Mobility attempt rejected")
				continue
			}
			events = append(events, *event)
		}
	}

	return events
}

// CreateAttempt builds and persists a single pending attempt on behalf of
// the policy layer. Returns InsufficientResourcesError when the cohort
// cannot cover the cost; no event row is created in that case.
func (e *Engine) CreateAttempt(campaignID, step int64, fromTier domain.Tier, eventType domain.EventType) (*domain.MobilityEvent, error) {
	t, err := e.registry.GetTier(campaignID, fromTier)
	if err != nil {
		return nil, err
	}

	event, err := e.buildAttempt(campaignID, step, t, eventType)
	if err != nil {
		return nil, err
	}

	if err := e.repo.Insert(e.repo.db, event); err != nil {
		return nil, err
	}

	return event, nil
}

func (e *Engine) buildAttempt(campaignID, step int64, t *domain.HouseholdTier, eventType domain.EventType) (*domain.MobilityEvent, error) {
	toTier := t.Name
	if eventDirection(eventType) {
		above, ok := t.Name.Above()
		if !ok {
			return nil, domain.NewValidationError("from_tier", "tier %s has no tier above to move into", t.Name)
		}
		toTier = above
	} else if below, ok := t.Name.Below(); ok {
		toTier = below
	}
	// A downward event at the bottom tier keeps fromTier == toTier: the
	// attempt is recorded without a transition and always resolves as a
	// failure to move.

	cost := resourceCost(eventType, t.Name)
	budget := budgetFor(eventType, t)
	if cost.Total() > budget {
		return nil, &domain.InsufficientResourcesError{
			EventType: eventType,
			Required:  cost.Total(),
			Available: budget,
		}
	}

	probability := clamp01(e.cfg.baseOdds(eventType, t.Name) * accessModifier(eventType, t))

	return &domain.MobilityEvent{
		ID:                 uuid.NewString(),
		CampaignID:         campaignID,
		Step:               step,
		HouseholdID:        uuid.NewString(),
		Type:               eventType,
		FromTier:           t.Name,
		ToTier:             toTier,
		TriggerReason:      triggerReason(eventType, t.Name, toTier),
		SuccessProbability: probability,
		ResourceCost:       cost,
		Outcome:            domain.OutcomePending,
		CreatedAt:          time.Now().UTC(),
	}, nil
}

// AppendPending persists planned attempts to the event ledger.
func (e *Engine) AppendPending(events []domain.MobilityEvent) error {
	if len(events) == 0 {
		return nil
	}

	return database.WithTransaction(e.repo.db, func(tx *sql.Tx) error {
		for i := range events {
			if err := e.repo.Insert(tx, &events[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// PendingResolutions loads all pending events of a campaign and pairs each
// with an outcome. Events whose outcome was already committed to tier state
// by an earlier step replay that recorded outcome; the rest get a single
// uniform draw against the stored success probability. Nothing is persisted
// here.
func (e *Engine) PendingResolutions(campaignID int64) ([]Resolution, error) {
	pending, err := e.repo.ListPending(campaignID)
	if err != nil {
		return nil, err
	}

	applied, err := e.appliedOutcomes(campaignID)
	if err != nil {
		return nil, err
	}

	resolutions := make([]Resolution, 0, len(pending))
	for _, event := range pending {
		if outcome, ok := applied[event.ID]; ok {
			resolutions = append(resolutions, Resolution{Event: event, Outcome: outcome, Applied: true})
			continue
		}
		resolutions = append(resolutions, Resolution{Event: event, Outcome: e.drawOutcome(&event)})
	}

	return resolutions, nil
}

// drawOutcome draws one outcome for a pending event. Events without a tier
// transition (fromTier == toTier) always fail to move; success is reserved
// for movement between tiers.
func (e *Engine) drawOutcome(event *domain.MobilityEvent) domain.Outcome {
	if event.FromTier == event.ToTier {
		return domain.OutcomeFailure
	}
	if e.draw() <= event.SuccessProbability {
		return domain.OutcomeSuccess
	}
	return domain.OutcomeFailure
}

// ApplyResolution applies a resolution inside the caller's step transaction:
// the outcome is recorded in the applied-outcomes table and, on success, the
// tier transition is shifted. Resolutions already applied by an earlier step
// are skipped so recovery never moves a cohort twice.
func (e *Engine) ApplyResolution(tx *sql.Tx, res Resolution) error {
	if res.Applied {
		return nil
	}
	if err := recordAppliedOutcome(tx, &res.Event, res.Outcome); err != nil {
		return err
	}
	if res.Outcome != domain.OutcomeSuccess || res.Event.FromTier == res.Event.ToTier {
		return nil
	}
	return e.registry.ShiftHouseholds(tx, res.Event.CampaignID, res.Event.FromTier, res.Event.ToTier, e.cfg.CohortSize)
}

// CommitResolutions marks applied outcomes in the ledger and clears their
// applied-outcome records. Called after the step transaction commits so an
// aborted step leaves events pending; if this call fails partway, the
// remaining events replay their recorded outcome on the next step.
func (e *Engine) CommitResolutions(resolutions []Resolution) error {
	now := time.Now().UTC()
	for _, res := range resolutions {
		if err := e.repo.MarkResolved(res.Event.ID, res.Outcome, now); err != nil {
			return fmt.Errorf("failed to commit resolution for event %s: %w", res.Event.ID, err)
		}
		if err := e.clearAppliedOutcome(res.Event.ID); err != nil {
			// A stale record is harmless once the event is no longer
			// pending; it just stops being looked up.
			e.log.Warn().Err(err).Str("event_id", res.Event.ID).Msg("Failed to clear applied outcome record")
		}
	}
	return nil
}

// appliedOutcomes loads the committed-but-unmarked outcomes of a campaign
// from the simulation database.
func (e *Engine) appliedOutcomes(campaignID int64) (map[string]domain.Outcome, error) {
	rows, err := e.simDB.Query(
		`SELECT event_id, outcome FROM applied_mobility_outcomes WHERE campaign_id = ?`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied mobility outcomes: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]domain.Outcome)
	for rows.Next() {
		var id, outcome string
		if err := rows.Scan(&id, &outcome); err != nil {
			return nil, fmt.Errorf("failed to scan applied mobility outcome: %w", err)
		}
		applied[id] = domain.Outcome(outcome)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating applied mobility outcomes: %w", err)
	}

	return applied, nil
}

func recordAppliedOutcome(tx *sql.Tx, event *domain.MobilityEvent, outcome domain.Outcome) error {
	_, err := tx.Exec(`
		INSERT INTO applied_mobility_outcomes (event_id, campaign_id, campaign_step, outcome, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(event_id) DO NOTHING`,
		event.ID, event.CampaignID, event.Step, string(outcome), time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("failed to record applied outcome for event %s: %w", event.ID, err)
	}
	return nil
}

func (e *Engine) clearAppliedOutcome(eventID string) error {
	_, err := e.simDB.Exec(`DELETE FROM applied_mobility_outcomes WHERE event_id = ?`, eventID)
	return err
}

// ResolveEvent resolves one pending event outside the step loop: draws the
// outcome, applies the tier transition on success, and records the outcome
// in the ledger. An outcome already applied by a step that did not reach
// its ledger write is replayed rather than re-drawn. Resolving an
// already-terminal event raises InvalidStateError and changes nothing.
func (e *Engine) ResolveEvent(eventID string) (*Resolution, error) {
	event, err := e.repo.Get(eventID)
	if err != nil {
		return nil, err
	}
	if event.Outcome.Terminal() {
		return nil, &domain.InvalidStateError{EventID: eventID, Outcome: event.Outcome}
	}

	applied, err := e.appliedOutcomes(event.CampaignID)
	if err != nil {
		return nil, err
	}

	res := Resolution{Event: *event}
	if outcome, ok := applied[event.ID]; ok {
		res.Outcome = outcome
		res.Applied = true
	} else {
		res.Outcome = e.drawOutcome(event)
	}

	err = database.WithTransaction(e.simDB, func(tx *sql.Tx) error {
		return e.ApplyResolution(tx, res)
	})
	if err != nil {
		return nil, err
	}

	if err := e.repo.MarkResolved(eventID, res.Outcome, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := e.clearAppliedOutcome(eventID); err != nil {
		e.log.Warn().Err(err).Str("event_id", eventID).Msg("Failed to clear applied outcome record")
	}

	e.log.Info().
		Str("event_id", eventID).
		Str("event_type", string(event.Type)).
		Str("outcome", string(res.Outcome)).
		Msg("Mobility event resolved")

	return &res, nil
}

// Opportunities lists the upward mobility events currently available to a
// tier, with their success probability and cost under the tier's present
// access scores.
func (e *Engine) Opportunities(campaignID int64, fromTier domain.Tier) ([]Opportunity, error) {
	t, err := e.registry.GetTier(campaignID, fromTier)
	if err != nil {
		return nil, err
	}

	toTier, ok := fromTier.Above()
	if !ok {
		// The top tier has nowhere to move up to.
		return nil, nil
	}

	opportunities := []Opportunity{
		{
			EventType:            domain.EventEducationInvestment,
			FromTier:             fromTier,
			ToTier:               toTier,
			SuccessProbability:   clamp01(e.cfg.baseOdds(domain.EventEducationInvestment, fromTier) * accessModifier(domain.EventEducationInvestment, t)),
			ResourceCost:         resourceCost(domain.EventEducationInvestment, fromTier),
			ExpectedIncomeChange: expectedIncomeChange(fromTier),
			RequiredConditions:   []string{"Available education resources", "Campaign duration > 5 steps"},
		},
		{
			EventType:            domain.EventBusinessStart,
			FromTier:             fromTier,
			ToTier:               toTier,
			SuccessProbability:   clamp01(e.cfg.baseOdds(domain.EventBusinessStart, fromTier) * accessModifier(domain.EventBusinessStart, t)),
			ResourceCost:         resourceCost(domain.EventBusinessStart, fromTier),
			ExpectedIncomeChange: expectedIncomeChange(fromTier),
			RequiredConditions:   []string{"Stable economic environment", "Business opportunity access > 20"},
		},
	}

	return opportunities, nil
}

func triggerReason(eventType domain.EventType, from, to domain.Tier) string {
	switch eventType {
	case domain.EventEducationInvestment:
		return fmt.Sprintf("Education investment to advance from %s to %s tier", from, to)
	case domain.EventBusinessStart:
		return "Starting new business venture to improve economic status"
	case domain.EventBusinessSuccess:
		return "Successful business venture resulting in tier advancement"
	case domain.EventBusinessFailure:
		return "Business failure causing economic decline"
	case domain.EventInheritance:
		return "Inheritance received boosting economic status"
	case domain.EventMarriage:
		return "Marriage affecting household economic tier"
	case domain.EventEconomicPolicyImpact:
		return "Government economic policy impact on household"
	case domain.EventCulturalShift:
		return "Cultural change affecting economic opportunities"
	case domain.EventNaturalProgression:
		return "Natural economic progression over time"
	}
	return fmt.Sprintf("Social mobility event: %s to %s", from, to)
}
