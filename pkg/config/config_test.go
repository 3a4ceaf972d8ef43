package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_RecognitionConfig(t *testing.T) {
	// Setup environment variables
	os.Setenv("RECOGNITION_MODE", "model")
	os.Setenv("RECOGNITION_FALLBACK_TIER", "stub")
	os.Setenv("RECOGNITION_FAILURE_RATE", "0.25")
	defer func() {
		os.Unsetenv("RECOGNITION_MODE")
		os.Unsetenv("RECOGNITION_FALLBACK_TIER")
		os.Unsetenv("RECOGNITION_FAILURE_RATE")
	}()

	// Load config
	cfg, err := Load()
	assert.NoError(t, err)

	// Verify recognition config
	assert.Equal(t, "model", cfg.Recognition.Mode)
	assert.Equal(t, "stub", cfg.Recognition.FallbackTier)
	assert.Equal(t, 0.25, cfg.Recognition.FailureRate)
}

func TestLoad_Defaults(t *testing.T) {
	// Ensure env vars are cleared
	os.Unsetenv("RECOGNITION_MODE")
	os.Unsetenv("ANALYSIS_TTL_HOURS")
	os.Unsetenv("NUTRITION_CACHE_TTL_DAYS")

	cfg, err := Load()
	assert.NoError(t, err)

	// Verify defaults
	assert.Equal(t, "stub", cfg.Recognition.Mode)
	assert.Equal(t, 24, cfg.Analysis.TTLHours)
	assert.Equal(t, 7, cfg.Analysis.CacheTTLDays)
	assert.Equal(t, "https://world.openfoodfacts.org", cfg.OpenFoodFacts.BaseURL)
	assert.Equal(t, "DEMO_KEY", cfg.USDA.APIKey)
	assert.Equal(t, "info", cfg.Server.LogLevel)
}
