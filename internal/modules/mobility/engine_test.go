package mobility

import (
	"database/sql"
	"math/rand"
	"testing"
	"time"

	"github.com/evren/tiersim/internal/database"
	"github.com/evren/tiersim/internal/domain"
	"github.com/evren/tiersim/internal/modules/tiers"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEngine(t *testing.T, cfg Config, seed int64) (*Engine, *tiers.Registry) {
	t.Helper()

	dir := t.TempDir()

	simDB, err := database.New(database.Config{
		Path:    dir + "/simulation.db",
		Profile: database.ProfileStandard,
		Name:    "simulation",
	})
	require.NoError(t, err)
	require.NoError(t, simDB.Migrate())
	t.Cleanup(func() { _ = simDB.Close() })

	ledgerDB, err := database.New(database.Config{
		Path:    dir + "/ledger.db",
		Profile: database.ProfileLedger,
		Name:    "ledger",
	})
	require.NoError(t, err)
	require.NoError(t, ledgerDB.Migrate())
	t.Cleanup(func() { _ = ledgerDB.Close() })

	registry := tiers.NewRegistry(tiers.NewRepository(simDB.Conn(), zerolog.Nop()), zerolog.Nop())
	require.NoError(t, registry.SeedCampaign(simDB.Conn(), 1, 100000))

	repo := NewRepository(ledgerDB.Conn(), zerolog.Nop())
	rng := rand.New(rand.NewSource(seed))
	return NewEngine(repo, registry, simDB.Conn(), cfg, rng, zerolog.Nop()), registry
}

// certainSuccess makes every education attempt succeed deterministically.
func certainSuccess() Config {
	cfg := DefaultConfig()
	cfg.BaseOdds[domain.EventEducationInvestment] = 5.0
	cfg.PoorOdds[domain.EventEducationInvestment] = 5.0
	return cfg
}

func TestEngine_CreateAttempt(t *testing.T) {
	engine, _ := setupEngine(t, DefaultConfig(), 42)

	t.Run("affordable attempt is persisted as pending", func(t *testing.T) {
		event, err := engine.CreateAttempt(1, 1, domain.TierPoor, domain.EventEducationInvestment)
		require.NoError(t, err)

		assert.Equal(t, domain.OutcomePending, event.Outcome)
		assert.Equal(t, domain.TierPoor, event.FromTier)
		assert.Equal(t, domain.TierMedian, event.ToTier)
		assert.InDelta(t, 5000.0, event.ResourceCost[domain.ResourceEducation], 0.001)
		assert.InDelta(t, 2000.0, event.ResourceCost[domain.ResourceGold], 0.001)
		// Poor education odds 0.15 × access modifier (0.5 + 30/100)
		assert.InDelta(t, 0.15*0.8, event.SuccessProbability, 1e-9)

		stored, err := engine.Repo().Get(event.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomePending, stored.Outcome)
	})

	t.Run("unaffordable attempt creates no event row", func(t *testing.T) {
		// Poor business start costs 10500 against an investment capacity of
		// 25000 × 0.02 = 500.
		_, err := engine.CreateAttempt(1, 1, domain.TierPoor, domain.EventBusinessStart)
		var rerr *domain.InsufficientResourcesError
		require.ErrorAs(t, err, &rerr)
		assert.InDelta(t, 10500.0, rerr.Required, 0.001)
		assert.InDelta(t, 500.0, rerr.Available, 0.001)

		pending, err := engine.Repo().ListPending(1)
		require.NoError(t, err)
		for _, e := range pending {
			assert.NotEqual(t, domain.EventBusinessStart, e.Type)
		}
	})

	t.Run("median tier can afford a business start", func(t *testing.T) {
		// Cost 52000 against 75000 × 0.13 = 9750: still unaffordable
		_, err := engine.CreateAttempt(1, 1, domain.TierMedian, domain.EventBusinessStart)
		var rerr *domain.InsufficientResourcesError
		require.ErrorAs(t, err, &rerr)

		// Raising investment capacity makes it pass
		capacity := 60000.0
		_, err = engine.registry.UpdateTier(1, domain.TierMedian, domain.TierUpdate{InvestmentCapacity: &capacity})
		require.NoError(t, err)

		event, err := engine.CreateAttempt(1, 1, domain.TierMedian, domain.EventBusinessStart)
		require.NoError(t, err)
		assert.Equal(t, domain.TierRich, event.ToTier)
	})

	t.Run("success probability never exceeds 1", func(t *testing.T) {
		engine2, _ := setupEngine(t, certainSuccess(), 42)
		event, err := engine2.CreateAttempt(1, 1, domain.TierRich, domain.EventEducationInvestment)
		// The rich tier has no tier above; education from rich is rejected
		require.Error(t, err)
		assert.Nil(t, event)

		event, err = engine2.CreateAttempt(1, 1, domain.TierMedian, domain.EventEducationInvestment)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, event.SuccessProbability, 1e-9)
	})
}

func TestEngine_ResolveEvent(t *testing.T) {
	engine, registry := setupEngine(t, certainSuccess(), 7)

	event, err := engine.CreateAttempt(1, 1, domain.TierPoor, domain.EventEducationInvestment)
	require.NoError(t, err)

	poorBefore, err := registry.GetTier(1, domain.TierPoor)
	require.NoError(t, err)
	medianBefore, err := registry.GetTier(1, domain.TierMedian)
	require.NoError(t, err)

	t.Run("success moves a cohort up", func(t *testing.T) {
		res, err := engine.ResolveEvent(event.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeSuccess, res.Outcome)

		poorAfter, err := registry.GetTier(1, domain.TierPoor)
		require.NoError(t, err)
		medianAfter, err := registry.GetTier(1, domain.TierMedian)
		require.NoError(t, err)
		assert.Equal(t, poorBefore.HouseholdCount-1, poorAfter.HouseholdCount)
		assert.Equal(t, medianBefore.HouseholdCount+1, medianAfter.HouseholdCount)

		stored, err := engine.Repo().Get(event.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeSuccess, stored.Outcome)
		assert.False(t, stored.ResolvedAt.IsZero())
	})

	t.Run("terminal events are immutable", func(t *testing.T) {
		_, err := engine.ResolveEvent(event.ID)
		var serr *domain.InvalidStateError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, event.ID, serr.EventID)
		assert.Equal(t, domain.OutcomeSuccess, serr.Outcome)

		// No double shift
		poorAfter, err := registry.GetTier(1, domain.TierPoor)
		require.NoError(t, err)
		assert.Equal(t, poorBefore.HouseholdCount-1, poorAfter.HouseholdCount)
	})

	t.Run("unknown event id", func(t *testing.T) {
		_, err := engine.ResolveEvent("no-such-event")
		var nf *domain.NotFoundError
		require.ErrorAs(t, err, &nf)
	})
}

func TestRepository_MarkResolved(t *testing.T) {
	engine, _ := setupEngine(t, DefaultConfig(), 3)

	event, err := engine.CreateAttempt(1, 1, domain.TierMedian, domain.EventEducationInvestment)
	require.NoError(t, err)

	repo := engine.Repo()
	require.NoError(t, repo.MarkResolved(event.ID, domain.OutcomeFailure, event.CreatedAt))

	t.Run("second resolution attempt fails and changes nothing", func(t *testing.T) {
		err := repo.MarkResolved(event.ID, domain.OutcomeSuccess, event.CreatedAt)
		var serr *domain.InvalidStateError
		require.ErrorAs(t, err, &serr)

		stored, err := repo.Get(event.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeFailure, stored.Outcome)
	})
}

func TestEngine_PlanAttempts(t *testing.T) {
	t.Run("seeded runs plan the same attempt sequence", func(t *testing.T) {
		engineA, registryA := setupEngine(t, DefaultConfig(), 99)
		engineB, _ := setupEngine(t, DefaultConfig(), 99)

		tierStates, err := registryA.ListTiers(1)
		require.NoError(t, err)

		var typesA, typesB []domain.EventType
		for step := int64(1); step <= 200; step++ {
			for _, e := range engineA.PlanAttempts(1, step, tierStates) {
				typesA = append(typesA, e.Type)
			}
			for _, e := range engineB.PlanAttempts(1, step, tierStates) {
				typesB = append(typesB, e.Type)
			}
		}

		assert.Equal(t, typesA, typesB)
	})

	t.Run("planned attempts carry pending outcome and a cohort reference", func(t *testing.T) {
		cfg := DefaultConfig()
		// Force an attempt every step for the median tier
		cfg.AttemptWeights[domain.EventEducationInvestment] = 1000
		engine, registry := setupEngine(t, cfg, 1)

		tierStates, err := registry.ListTiers(1)
		require.NoError(t, err)

		events := engine.PlanAttempts(1, 1, tierStates)
		require.NotEmpty(t, events)
		for _, e := range events {
			assert.Equal(t, domain.OutcomePending, e.Outcome)
			assert.NotEmpty(t, e.ID)
			assert.NotEmpty(t, e.HouseholdID)
			assert.NotEmpty(t, e.TriggerReason)
			assert.LessOrEqual(t, e.SuccessProbability, 1.0)
		}
	})
}

func TestEngine_StepResolutionFlow(t *testing.T) {
	engine, registry := setupEngine(t, certainSuccess(), 5)

	tierStates, err := registry.ListTiers(1)
	require.NoError(t, err)

	// Plan with forced attempts so the ledger has pending events
	forced := certainSuccess()
	forced.AttemptWeights[domain.EventEducationInvestment] = 1000
	engine.cfg = forced

	events := engine.PlanAttempts(1, 1, tierStates)
	require.NotEmpty(t, events)
	require.NoError(t, engine.AppendPending(events))

	resolutions, err := engine.PendingResolutions(1)
	require.NoError(t, err)
	require.Len(t, resolutions, len(events))

	require.NoError(t, engine.CommitResolutions(resolutions))

	t.Run("committed resolutions leave no pending events", func(t *testing.T) {
		pending, err := engine.Repo().ListPending(1)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("outcome counts cover the resolved window", func(t *testing.T) {
		total, successful, err := engine.Repo().OutcomeCounts(1, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(len(events)), total)
		assert.LessOrEqual(t, successful, total)
	})
}

func TestEngine_AppliedOutcomeReplay(t *testing.T) {
	engine, registry := setupEngine(t, DefaultConfig(), 42)

	// A pending event that a fresh draw would never resolve as success.
	event := &domain.MobilityEvent{
		ID:                 "evt-replay",
		CampaignID:         1,
		Step:               1,
		HouseholdID:        "hh-replay",
		Type:               domain.EventEducationInvestment,
		FromTier:           domain.TierPoor,
		ToTier:             domain.TierMedian,
		SuccessProbability: 0,
		ResourceCost:       domain.ResourceCost{},
		Outcome:            domain.OutcomePending,
		CreatedAt:          time.Now().UTC(),
	}
	require.NoError(t, engine.repo.Insert(engine.repo.db, event))

	// A step that committed this event's success to tier state but died
	// before the ledger outcome write.
	require.NoError(t, database.WithTransaction(engine.simDB, func(tx *sql.Tx) error {
		return engine.ApplyResolution(tx, Resolution{Event: *event, Outcome: domain.OutcomeSuccess})
	}))

	poorAfterCrash, err := registry.GetTier(1, domain.TierPoor)
	require.NoError(t, err)
	assert.Equal(t, int64(11427), poorAfterCrash.HouseholdCount)

	t.Run("recovery replays the recorded outcome", func(t *testing.T) {
		resolutions, err := engine.PendingResolutions(1)
		require.NoError(t, err)
		require.Len(t, resolutions, 1)
		assert.True(t, resolutions[0].Applied)
		assert.Equal(t, domain.OutcomeSuccess, resolutions[0].Outcome)
	})

	t.Run("re-applying an applied resolution shifts nothing", func(t *testing.T) {
		resolutions, err := engine.PendingResolutions(1)
		require.NoError(t, err)

		require.NoError(t, database.WithTransaction(engine.simDB, func(tx *sql.Tx) error {
			return engine.ApplyResolution(tx, resolutions[0])
		}))

		poor, err := registry.GetTier(1, domain.TierPoor)
		require.NoError(t, err)
		assert.Equal(t, poorAfterCrash.HouseholdCount, poor.HouseholdCount)
	})

	t.Run("commit marks the ledger and clears the record", func(t *testing.T) {
		resolutions, err := engine.PendingResolutions(1)
		require.NoError(t, err)
		require.NoError(t, engine.CommitResolutions(resolutions))

		got, err := engine.repo.Get(event.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeSuccess, got.Outcome)

		applied, err := engine.appliedOutcomes(1)
		require.NoError(t, err)
		assert.Empty(t, applied)

		pending, err := engine.repo.ListPending(1)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})
}

func TestEngine_BottomTierDownwardEvent(t *testing.T) {
	engine, registry := setupEngine(t, DefaultConfig(), 42)

	event, err := engine.CreateAttempt(1, 1, domain.TierPoor, domain.EventBusinessFailure)
	require.NoError(t, err)
	assert.Equal(t, domain.TierPoor, event.FromTier)
	assert.Equal(t, domain.TierPoor, event.ToTier)

	// High base odds are irrelevant: an event without a transition can
	// never resolve as success.
	res, err := engine.ResolveEvent(event.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeFailure, res.Outcome)

	poor, err := registry.GetTier(1, domain.TierPoor)
	require.NoError(t, err)
	assert.Equal(t, int64(11428), poor.HouseholdCount)
}

func TestEngine_Opportunities(t *testing.T) {
	engine, _ := setupEngine(t, DefaultConfig(), 11)

	t.Run("poor tier sees education and business paths", func(t *testing.T) {
		opps, err := engine.Opportunities(1, domain.TierPoor)
		require.NoError(t, err)
		require.Len(t, opps, 2)

		assert.Equal(t, domain.EventEducationInvestment, opps[0].EventType)
		assert.Equal(t, domain.TierMedian, opps[0].ToTier)
		assert.InDelta(t, 0.15*0.8, opps[0].SuccessProbability, 1e-9)
		assert.InDelta(t, 50000.0, opps[0].ExpectedIncomeChange, 0.001)

		assert.Equal(t, domain.EventBusinessStart, opps[1].EventType)
		// Poor business odds 0.08 × (0.5 + 15/100)
		assert.InDelta(t, 0.08*0.65, opps[1].SuccessProbability, 1e-9)
	})

	t.Run("rich tier has nowhere to go", func(t *testing.T) {
		opps, err := engine.Opportunities(1, domain.TierRich)
		require.NoError(t, err)
		assert.Nil(t, opps)
	})
}
