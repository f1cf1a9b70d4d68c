package demand

import (
	"math"
	"testing"

	"github.com/evren/tiersim/internal/database"
	"github.com/evren/tiersim/internal/domain"
	"github.com/evren/tiersim/internal/modules/consumption"
	"github.com/evren/tiersim/internal/modules/tiers"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupProjector(t *testing.T) (*Projector, *Repository) {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    t.TempDir() + "/simulation.db",
		Profile: database.ProfileStandard,
		Name:    "simulation",
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })

	registry := tiers.NewRegistry(tiers.NewRepository(db.Conn(), zerolog.Nop()), zerolog.Nop())
	require.NoError(t, registry.SeedCampaign(db.Conn(), 1, 100000))

	patterns := consumption.NewRepository(db.Conn(), zerolog.Nop())
	model := consumption.NewModel(patterns, registry, zerolog.Nop())
	require.NoError(t, model.SeedCampaign(db.Conn(), 1))

	repo := NewRepository(db.Conn(), zerolog.Nop())
	return NewProjector(patterns, registry, repo, zerolog.Nop()), repo
}

func TestProjector_ProjectDemand(t *testing.T) {
	projector, repo := setupProjector(t)

	t.Run("price doubling dampens demand by the elasticity power law", func(t *testing.T) {
		// Poor food: base 1000, elasticity -0.3, basic multiplier 2.5,
		// reference price 1.0. At price 2.0 the impact is 2^-0.3.
		p, err := projector.ProjectDemand(1, domain.TierPoor, domain.ResourceFood, 2.0, 1)
		require.NoError(t, err)

		wantImpact := math.Pow(2.0, -0.3)
		assert.InDelta(t, wantImpact, p.ElasticityImpact, 1e-9)
		assert.InDelta(t, 2500.0, p.ProjectedDemand, 0.001)
		assert.InDelta(t, 2500.0*wantImpact, p.TotalAdjustedDemand, 1e-6)
		// Roughly a 19% reduction, nowhere near proportional to price
		assert.Greater(t, p.TotalAdjustedDemand, 2000.0)
	})

	t.Run("price at reference is neutral", func(t *testing.T) {
		p, err := projector.ProjectDemand(1, domain.TierMedian, domain.ResourceWater, 1.0, 1)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, p.ElasticityImpact, 1e-9)
		assert.InDelta(t, p.ProjectedDemand, p.TotalAdjustedDemand, 1e-9)
	})

	t.Run("same inputs at a new step reproduce the same numbers", func(t *testing.T) {
		a, err := projector.ProjectDemand(1, domain.TierRich, domain.ResourceEnergy, 1.5, 10)
		require.NoError(t, err)
		b, err := projector.ProjectDemand(1, domain.TierRich, domain.ResourceEnergy, 1.5, 11)
		require.NoError(t, err)
		assert.Equal(t, a.TotalAdjustedDemand, b.TotalAdjustedDemand)
		assert.Equal(t, a.ElasticityImpact, b.ElasticityImpact)
	})

	t.Run("zero current price is rejected without a row", func(t *testing.T) {
		_, err := projector.ProjectDemand(1, domain.TierPoor, domain.ResourceWater, 0, 2)
		var perr *domain.InvalidPriceError
		require.ErrorAs(t, err, &perr)

		_, err = repo.Get(1, 2, domain.TierPoor, domain.ResourceWater)
		var nf *domain.NotFoundError
		require.ErrorAs(t, err, &nf)
	})

	t.Run("negative current price is rejected", func(t *testing.T) {
		_, err := projector.ProjectDemand(1, domain.TierPoor, domain.ResourceWater, -3, 2)
		var perr *domain.InvalidPriceError
		require.ErrorAs(t, err, &perr)
	})

	t.Run("unknown pattern", func(t *testing.T) {
		_, err := projector.ProjectDemand(1, domain.TierPoor, domain.Resource("spice"), 1.0, 2)
		var nf *domain.NotFoundError
		require.ErrorAs(t, err, &nf)
	})
}

func TestProjector_StepHistory(t *testing.T) {
	projector, repo := setupProjector(t)

	t.Run("projections from different steps coexist", func(t *testing.T) {
		_, err := projector.ProjectDemand(1, domain.TierMedian, domain.ResourceFood, 1.0, 1)
		require.NoError(t, err)
		_, err = projector.ProjectDemand(1, domain.TierMedian, domain.ResourceFood, 2.0, 2)
		require.NoError(t, err)

		step1, err := repo.Get(1, 1, domain.TierMedian, domain.ResourceFood)
		require.NoError(t, err)
		step2, err := repo.Get(1, 2, domain.TierMedian, domain.ResourceFood)
		require.NoError(t, err)

		assert.InDelta(t, 1.0, step1.CurrentPrice, 0.001)
		assert.InDelta(t, 2.0, step2.CurrentPrice, 0.001)
		assert.Greater(t, step1.TotalAdjustedDemand, step2.TotalAdjustedDemand)
	})

	t.Run("re-projecting the same step is an error, not an overwrite", func(t *testing.T) {
		_, err := projector.ProjectDemand(1, domain.TierMedian, domain.ResourceFood, 3.0, 1)
		require.Error(t, err)

		kept, err := repo.Get(1, 1, domain.TierMedian, domain.ResourceFood)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, kept.CurrentPrice, 0.001)
	})

	t.Run("latest returns the newest step per tier", func(t *testing.T) {
		_, err := projector.ProjectDemand(1, domain.TierPoor, domain.ResourceFood, 2.0, 2)
		require.NoError(t, err)

		latest, err := repo.Latest(1, domain.ResourceFood)
		require.NoError(t, err)
		require.Len(t, latest, 2)
		for _, p := range latest {
			assert.Equal(t, int64(2), p.Step)
		}
		assert.Equal(t, domain.TierPoor, latest[0].Tier)
		assert.Equal(t, domain.TierMedian, latest[1].Tier)
	})

	t.Run("list by step returns every recorded cell", func(t *testing.T) {
		byStep, err := repo.ListByStep(1, 2)
		require.NoError(t, err)
		assert.Len(t, byStep, 2)
	})
}
