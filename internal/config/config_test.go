package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("TIERSIM_DATA_DIR", t.TempDir())

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, "@every 1m", cfg.StepCron)
		assert.Equal(t, []int64{1}, cfg.Campaigns)
		assert.Equal(t, int64(0), cfg.Seed)
		assert.Equal(t, int64(100000), cfg.TotalPopulation)
		assert.False(t, cfg.DevMode)
	})

	t.Run("reads environment overrides", func(t *testing.T) {
		t.Setenv("TIERSIM_DATA_DIR", t.TempDir())
		t.Setenv("TIERSIM_LOG_LEVEL", "debug")
		t.Setenv("TIERSIM_CAMPAIGNS", "3, 7,12")
		t.Setenv("TIERSIM_SEED", "12345")
		t.Setenv("TIERSIM_TOTAL_POPULATION", "250000")
		t.Setenv("TIERSIM_DEV_MODE", "true")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, []int64{3, 7, 12}, cfg.Campaigns)
		assert.Equal(t, int64(12345), cfg.Seed)
		assert.Equal(t, int64(250000), cfg.TotalPopulation)
		assert.True(t, cfg.DevMode)
	})

	t.Run("rejects malformed campaign list", func(t *testing.T) {
		t.Setenv("TIERSIM_DATA_DIR", t.TempDir())
		t.Setenv("TIERSIM_CAMPAIGNS", "1,abc")

		_, err := Load()
		require.Error(t, err)
	})

	t.Run("rejects non-positive population", func(t *testing.T) {
		t.Setenv("TIERSIM_DATA_DIR", t.TempDir())
		t.Setenv("TIERSIM_TOTAL_POPULATION", "-5")

		_, err := Load()
		require.Error(t, err)
	})
}

func TestConfig_DatabasePath(t *testing.T) {
	cfg := &Config{DataDir: "/var/lib/tiersim"}
	assert.Equal(t, filepath.Join("/var/lib/tiersim", "ledger.db"), cfg.DatabasePath("ledger"))
}
