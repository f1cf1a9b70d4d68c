// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir         string  // Base directory for all databases (always absolute)
	LogLevel        string  // debug, info, warn, error
	StepCron        string  // Cron spec driving the per-campaign step advance
	Campaigns       []int64 // Campaign IDs managed by this process
	Seed            int64   // RNG seed for mobility resolution (0 = non-deterministic)
	TotalPopulation int64   // Population seeded into new campaigns
	DevMode         bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("TIERSIM_DATA_DIR", "data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	campaigns, err := parseCampaigns(getEnv("TIERSIM_CAMPAIGNS", "1"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:         absDataDir,
		LogLevel:        getEnv("TIERSIM_LOG_LEVEL", "info"),
		StepCron:        getEnv("TIERSIM_STEP_CRON", "@every 1m"),
		Campaigns:       campaigns,
		Seed:            getEnvAsInt64("TIERSIM_SEED", 0),
		TotalPopulation: getEnvAsInt64("TIERSIM_TOTAL_POPULATION", 100000),
		DevMode:         getEnvAsBool("TIERSIM_DEV_MODE", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory is required")
	}
	if len(c.Campaigns) == 0 {
		return fmt.Errorf("at least one campaign ID is required")
	}
	if c.TotalPopulation <= 0 {
		return fmt.Errorf("total population must be positive, got %d", c.TotalPopulation)
	}
	return nil
}

// DatabasePath returns the path for a named database file under DataDir.
func (c *Config) DatabasePath(name string) string {
	return filepath.Join(c.DataDir, name+".db")
}

func parseCampaigns(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid campaign ID %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
