package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "beta.service/data/models"
)

var envKeys = []string{
	"BETA_PROVIDER", "BETA_DEFAULT_INDEX", "SAMPLING_INTERVAL", "YAHOO_BASE_URL",
	"ALPHAVANTAGE_API_KEY", "ALPHAVANTAGE_BASE_URL", "APCA_API_KEY_ID", "APCA_API_SECRET_KEY",
	"APCA_API_DATA_URL", "HTTP_ADDR", "DATABASE_URL", "LOG_LEVEL",
	"ADJUSTMENT_COEFFICIENT", "CACHE_ENABLED", "CACHE_TTL",
}

// clearEnv blanks every override so the host environment does not leak into the tests
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func Test_Config_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ProviderYahoo, cfg.Provider)
	assert.Equal(t, DefaultIndices(), cfg.MarketIndices)
	assert.Equal(t, "SP500", cfg.DefaultIndex)
	assert.Equal(t, m.IntervalWeekly, cfg.Interval())
	assert.InDelta(t, 2.0/3.0, cfg.AdjustmentCoefficient, 1e-12)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 7*24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "info", cfg.Log.Level)
}

func Test_Config_YamlOverridesDefaults(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
market_indices:
  - name: FTSE
    symbol: ^FTSE
  - name: SP500
    symbol: ^GSPC
default_index: FTSE
sampling_interval: monthly
adjustment_coefficient: 0
http:
  addr: ":9090"
  read_timeout: 5s
cache:
  enabled: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Len(t, cfg.MarketIndices, 2)
	assert.Equal(t, "FTSE", cfg.DefaultIndex)
	assert.Equal(t, m.IntervalMonthly, cfg.Interval())
	assert.Equal(t, 0.0, cfg.AdjustmentCoefficient)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, 5*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.HTTP.WriteTimeout)
	assert.False(t, cfg.Cache.Enabled)

	idx, ok := cfg.IndexSymbol("sp500")
	require.True(t, ok)
	assert.Equal(t, "^GSPC", idx.Symbol)
}

func Test_Config_EnvOverridesYaml(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "provider: yahoo\nhttp:\n  addr: \":9090\"\n")

	t.Setenv("BETA_PROVIDER", "AlphaVantage")
	t.Setenv("ALPHAVANTAGE_API_KEY", "av-test-api-key")
	t.Setenv("HTTP_ADDR", ":7070")
	t.Setenv("ADJUSTMENT_COEFFICIENT", "0.5")
	t.Setenv("CACHE_TTL", "1h")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ProviderAlphaVantage, cfg.Provider)
	assert.Equal(t, "av-test-api-key", cfg.AlphaVantage.APIKey)
	assert.Equal(t, ":7070", cfg.HTTP.Addr)
	assert.Equal(t, 0.5, cfg.AdjustmentCoefficient)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
}

func Test_Config_ProvidersWithoutIndexTickersUseProxyIndices(t *testing.T) {
	tests := []struct {
		provider string
		env      map[string]string
	}{
		{ProviderAlpaca, map[string]string{"APCA_API_KEY_ID": "key", "APCA_API_SECRET_KEY": "secret"}},
		{ProviderAlphaVantage, map[string]string{"ALPHAVANTAGE_API_KEY": "key"}},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("BETA_PROVIDER", tt.provider)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load("")
			require.NoError(t, err)
			require.NoError(t, cfg.Validate())

			assert.Equal(t, ProxyIndices(), cfg.MarketIndices)
			idx, ok := cfg.IndexSymbol("SP500")
			require.True(t, ok)
			assert.Equal(t, "SPY", idx.Symbol)
		})
	}
}

func Test_Config_YahooUsesIndexTickers(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	idx, ok := cfg.IndexSymbol("SP500")
	require.True(t, ok)
	assert.Equal(t, "^SPX", idx.Symbol)
}

func Test_Config_BadEnvValue(t *testing.T) {
	clearEnv(t)
	t.Setenv("CACHE_ENABLED", "sometimes")

	_, err := Load("")
	assert.Error(t, err)
}

func Test_Config_Validate(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.Provider = "bloomberg" }},
		{"alpha vantage without key", func(c *Config) { c.Provider = ProviderAlphaVantage }},
		{"alpaca without secret", func(c *Config) { c.Provider = ProviderAlpaca; c.Alpaca.APIKey = "key" }},
		{"no indices", func(c *Config) { c.MarketIndices = nil }},
		{"duplicate index", func(c *Config) { c.MarketIndices = append(c.MarketIndices, c.MarketIndices[0]) }},
		{"missing default index", func(c *Config) { c.DefaultIndex = "FTSE" }},
		{"bad interval", func(c *Config) { c.SamplingInterval = "daily" }},
		{"coefficient above one", func(c *Config) { c.AdjustmentCoefficient = 1.5 }},
		{"coefficient below zero", func(c *Config) { c.AdjustmentCoefficient = -0.1 }},
		{"zero ttl", func(c *Config) { c.Cache.TTL = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			require.NoError(t, cfg.Validate())

			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
