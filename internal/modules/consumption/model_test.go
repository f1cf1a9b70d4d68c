package consumption

import (
	"testing"

	"github.com/evren/tiersim/internal/database"
	"github.com/evren/tiersim/internal/domain"
	"github.com/evren/tiersim/internal/modules/tiers"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupModel(t *testing.T) (*Model, *database.DB) {
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

	model := NewModel(NewRepository(db.Conn(), zerolog.Nop()), registry, zerolog.Nop())
	require.NoError(t, model.SeedCampaign(db.Conn(), 1))

	return model, db
}

func TestModel_SeedCampaign(t *testing.T) {
	model, _ := setupModel(t)

	t.Run("installs the full catalogue", func(t *testing.T) {
		for _, tier := range domain.Tiers() {
			for _, resource := range domain.Resources() {
				p, err := model.GetDemandCurve(1, tier, resource)
				require.NoError(t, err, "missing pattern %s/%s", tier, resource)
				assert.InDelta(t, 1.0, p.SeasonalMultiplier, 0.001)
				assert.InDelta(t, 1.0, p.ReferencePrice, 0.001)
			}
		}
	})

	t.Run("seeds tier-specific base demand", func(t *testing.T) {
		poor, err := model.GetDemandCurve(1, domain.TierPoor, domain.ResourceLuxuryGoods)
		require.NoError(t, err)
		rich, err := model.GetDemandCurve(1, domain.TierRich, domain.ResourceLuxuryGoods)
		require.NoError(t, err)
		assert.InDelta(t, 5.0, poor.BaseDemand, 0.001)
		assert.InDelta(t, 2000.0, rich.BaseDemand, 0.001)
	})
}

func TestRawDemand(t *testing.T) {
	tier := &domain.HouseholdTier{
		LuxuryDemandMultiplier:     5.0,
		BasicGoodsDemandMultiplier: 0.8,
	}

	t.Run("luxury-leaning resource uses luxury multiplier", func(t *testing.T) {
		p := &domain.ConsumptionPattern{
			BaseDemand:                  2000,
			LuxuryFactor:                1.0,
			NecessityFactor:             0.0,
			SeasonalMultiplier:          1.0,
			CulturalInfluenceMultiplier: 1.0,
		}
		assert.InDelta(t, 10000.0, RawDemand(p, tier), 0.001)
	})

	t.Run("necessity-leaning resource uses basic multiplier", func(t *testing.T) {
		p := &domain.ConsumptionPattern{
			BaseDemand:                  1500,
			LuxuryFactor:                0.3,
			NecessityFactor:             0.7,
			SeasonalMultiplier:          1.0,
			CulturalInfluenceMultiplier: 1.0,
		}
		assert.InDelta(t, 1200.0, RawDemand(p, tier), 0.001)
	})

	t.Run("tied factors go to basic goods", func(t *testing.T) {
		p := &domain.ConsumptionPattern{
			BaseDemand:                  100,
			LuxuryFactor:                0.5,
			NecessityFactor:             0.5,
			SeasonalMultiplier:          1.0,
			CulturalInfluenceMultiplier: 1.0,
		}
		assert.InDelta(t, 80.0, RawDemand(p, tier), 0.001)
	})

	t.Run("seasonal and cultural multipliers scale linearly", func(t *testing.T) {
		p := &domain.ConsumptionPattern{
			BaseDemand:                  100,
			LuxuryFactor:                0.0,
			NecessityFactor:             1.0,
			SeasonalMultiplier:          1.2,
			CulturalInfluenceMultiplier: 0.9,
		}
		assert.InDelta(t, 100*1.2*0.9*0.8, RawDemand(p, tier), 0.001)
	})
}

func TestModel_ComputeRawDemand(t *testing.T) {
	model, _ := setupModel(t)

	t.Run("rich luxury goods demand uses the luxury multiplier", func(t *testing.T) {
		demand, err := model.ComputeRawDemand(1, domain.TierRich, domain.ResourceLuxuryGoods)
		require.NoError(t, err)
		// base 2000 × neutral multipliers × luxury multiplier 5.0
		assert.InDelta(t, 10000.0, demand, 0.001)
	})

	t.Run("poor food demand uses the basic goods multiplier", func(t *testing.T) {
		demand, err := model.ComputeRawDemand(1, domain.TierPoor, domain.ResourceFood)
		require.NoError(t, err)
		// base 1000 × basic multiplier 2.5
		assert.InDelta(t, 2500.0, demand, 0.001)
	})

	t.Run("unknown resource", func(t *testing.T) {
		_, err := model.ComputeRawDemand(1, domain.TierPoor, domain.Resource("spice"))
		var nf *domain.NotFoundError
		require.ErrorAs(t, err, &nf)
	})
}

func TestModel_UpdatePattern(t *testing.T) {
	model, _ := setupModel(t)

	base := domain.ConsumptionPattern{
		CampaignID:                  1,
		Tier:                        domain.TierMedian,
		Resource:                    domain.ResourceFood,
		BaseDemand:                  1300,
		PriceElasticity:             -0.5,
		LuxuryFactor:                0.1,
		NecessityFactor:             0.9,
		SeasonalMultiplier:          1.1,
		CulturalInfluenceMultiplier: 1.0,
		ReferencePrice:              2.0,
	}

	t.Run("valid update is persisted", func(t *testing.T) {
		p := base
		require.NoError(t, model.UpdatePattern(&p))

		got, err := model.GetDemandCurve(1, domain.TierMedian, domain.ResourceFood)
		require.NoError(t, err)
		assert.InDelta(t, 1300.0, got.BaseDemand, 0.001)
		assert.InDelta(t, 2.0, got.ReferencePrice, 0.001)
	})

	t.Run("rejects elasticity out of range", func(t *testing.T) {
		p := base
		p.PriceElasticity = -7
		err := model.UpdatePattern(&p)
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "price_elasticity", verr.Field)
	})

	t.Run("rejects luxury factor above 1", func(t *testing.T) {
		p := base
		p.LuxuryFactor = 1.5
		err := model.UpdatePattern(&p)
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
	})

	t.Run("rejects non-positive reference price", func(t *testing.T) {
		p := base
		p.ReferencePrice = 0
		err := model.UpdatePattern(&p)
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
	})
}
