package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://sandbox.tradier.com/v1", cfg.Provider.BaseURL)
	assert.Equal(t, 2, cfg.Provider.RateLimitPerSecond)
	assert.Equal(t, []string{"SPY", "QQQ", "IWM", "AAPL", "TSLA", "NVDA"}, cfg.Scanner.Universe)
	assert.Equal(t, 1000, cfg.Scanner.CooldownMsec)
	assert.Equal(t, 7, cfg.Filters.ExpiryDaysMin)
	assert.Equal(t, 45, cfg.Filters.ExpiryDaysMax)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, "0.0.0.0:8080", cfg.API.BindAddress)
	assert.False(t, cfg.Alerting.Enabled)
	assert.Equal(t, 80, cfg.Alerting.MinScore)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("OPTEDGE__PROVIDER__API_KEY", "secret")
	t.Setenv("OPTEDGE__SCANNER__UNIVERSE", "SPY,TSLA")
	t.Setenv("OPTEDGE__FILTERS__MIN_PROBABILITY", "65")
	t.Setenv("OPTEDGE__FILTERS__MAX_RISK", "750.5")
	t.Setenv("OPTEDGE__ALERTING__ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.Provider.APIKey)
	assert.Equal(t, []string{"SPY", "TSLA"}, cfg.Scanner.Universe)
	assert.Equal(t, 65, cfg.Filters.MinProbability)
	assert.InDelta(t, 750.5, cfg.Filters.MaxRisk, 1e-9)
	assert.True(t, cfg.Alerting.Enabled)
}

func TestLoad_InvalidExpiryWindow(t *testing.T) {
	t.Setenv("OPTEDGE__FILTERS__EXPIRY_DAYS_MIN", "50")
	t.Setenv("OPTEDGE__FILTERS__EXPIRY_DAYS_MAX", "10")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expiry window inverted")
}

func TestLoad_MalformedEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("OPTEDGE__PROVIDER__TIMEOUT_SECS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Provider.TimeoutSecs)
}

func TestApplyFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "override.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[provider]
base_url = "https://api.tradier.com/v1"

[scanner]
universe = ["SPY"]
cooldown_msec = 250

[filters]
min_probability = 60

[alerting]
enabled = true
min_score = 75
`), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, applyFileOverrides(cfg, path))

	assert.Equal(t, "https://api.tradier.com/v1", cfg.Provider.BaseURL)
	assert.Equal(t, []string{"SPY"}, cfg.Scanner.Universe)
	assert.Equal(t, 250, cfg.Scanner.CooldownMsec)
	assert.Equal(t, 60, cfg.Filters.MinProbability)
	assert.True(t, cfg.Alerting.Enabled)
	assert.Equal(t, 75, cfg.Alerting.MinScore)

	// Sections the file does not mention keep their prior values.
	assert.Equal(t, 45, cfg.Filters.ExpiryDaysMax)
	assert.Equal(t, "memory", cfg.Store.Backend)
}

func TestApplyFileOverrides_MissingFileIsFine(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.NoError(t, applyFileOverrides(cfg, filepath.Join(t.TempDir(), "absent.toml")))
}

func TestApplyFileOverrides_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.toml")
	require.NoError(t, os.WriteFile(path, []byte("not [valid toml"), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Error(t, applyFileOverrides(cfg, path))
}
