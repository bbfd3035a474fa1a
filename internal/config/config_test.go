package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultScenarioDir, cfg.ScenarioDir)
	assert.Equal(t, DefaultOutputDir, cfg.OutputDir)
	assert.Equal(t, DefaultJournalPath, cfg.JournalPath)
	assert.Equal(t, 3, cfg.MinRuns)
	assert.Equal(t, 3, cfg.ConnectAttempts)
	assert.Equal(t, 30*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 4, cfg.Concurrency)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("SCENARIO_DIR", "/opt/scenarios")
	t.Setenv("MIN_RUNS", "5")
	t.Setenv("CONNECT_TIMEOUT", "10s")
	t.Setenv("CONCURRENCY", "8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/opt/scenarios", cfg.ScenarioDir)
	assert.Equal(t, 5, cfg.MinRuns)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
	assert.Equal(t, 8, cfg.Concurrency)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("MIN_RUNS", "lots")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MIN_RUNS")
}

func TestLoad_InvalidTimeout(t *testing.T) {
	t.Setenv("CONNECT_TIMEOUT", "soon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONNECT_TIMEOUT")
}

func TestConfig_String(t *testing.T) {
	cfg := &Config{
		ScenarioDir:     "scenarios",
		OutputDir:       "reports",
		MinRuns:         3,
		ConnectAttempts: 3,
		ConnectTimeout:  30 * time.Second,
		Concurrency:     4,
	}

	out := cfg.String()
	assert.Contains(t, out, "Current Configuration:")
	assert.Contains(t, out, "Scenario Dir:       scenarios")
	assert.Contains(t, out, "Connect Timeout:    30s")
}
