package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	m "beta.service/data/models"
)

const (
	ProviderYahoo        = "yahoo"
	ProviderAlphaVantage = "alphavantage"
	ProviderAlpaca       = "alpaca"

	DefaultAdjustmentCoefficient = 2.0 / 3.0
	DefaultCacheTTL              = 7 * 24 * time.Hour
)

// MarketIndex is a display name and the ticker the provider knows it by
type MarketIndex struct {
	Name   string `yaml:"name" json:"name"`
	Symbol string `yaml:"symbol" json:"symbol"`
}

// Config holds all application configuration.
type Config struct {
	MarketIndices         []MarketIndex `yaml:"market_indices"`
	DefaultIndex          string        `yaml:"default_index"`
	SamplingInterval      string        `yaml:"sampling_interval"`
	AdjustmentCoefficient float64       `yaml:"adjustment_coefficient"`
	Provider              string        `yaml:"provider"`
	Yahoo                 struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"yahoo"`
	AlphaVantage struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"alpha_vantage"`
	Alpaca struct {
		BaseURL   string `yaml:"base_url"`
		APIKey    string `yaml:"api_key"`
		APISecret string `yaml:"api_secret"`
	} `yaml:"alpaca"`
	HTTP struct {
		Addr         string        `yaml:"addr"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"http"`
	Cache struct {
		Enabled bool          `yaml:"enabled"`
		TTL     time.Duration `yaml:"ttl"`
	} `yaml:"cache"`
	DatabaseURL string `yaml:"database_url"`
	Log         struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// DefaultIndices mirror the select box of index choices, yahoo tickers
func DefaultIndices() []MarketIndex {
	return []MarketIndex{
		{Name: "SP500", Symbol: "^SPX"},
		{Name: "Nasdaq", Symbol: "^IXIC"},
		{Name: "Dow Jones", Symbol: "^DJI"},
	}
}

// ProxyIndices are the etfs tracking the default indices, for providers without index tickers
func ProxyIndices() []MarketIndex {
	return []MarketIndex{
		{Name: "SP500", Symbol: "SPY"},
		{Name: "Nasdaq", Symbol: "QQQ"},
		{Name: "Dow Jones", Symbol: "DIA"},
	}
}

func newDefault() *Config {
	cfg := &Config{
		SamplingInterval:      m.IntervalWeekly.Name(),
		AdjustmentCoefficient: DefaultAdjustmentCoefficient,
		Provider:              ProviderYahoo,
	}
	cfg.HTTP.Addr = ":8080"
	cfg.HTTP.ReadTimeout = 10 * time.Second
	cfg.HTTP.WriteTimeout = 30 * time.Second
	cfg.Cache.Enabled = true
	cfg.Cache.TTL = DefaultCacheTTL
	cfg.Log.Level = "info"
	return cfg
}

// Load reads config from a YAML file on top of the defaults, then applies environment variable overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := newDefault()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	// Defaults that depend on other settings
	if len(cfg.MarketIndices) == 0 {
		// alpaca and alpha vantage serve no ^ index tickers
		if cfg.Provider == ProviderAlpaca || cfg.Provider == ProviderAlphaVantage {
			cfg.MarketIndices = ProxyIndices()
		} else {
			cfg.MarketIndices = DefaultIndices()
		}
	}
	if cfg.DefaultIndex == "" {
		cfg.DefaultIndex = cfg.MarketIndices[0].Name
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"BETA_PROVIDER":         &c.Provider,
		"BETA_DEFAULT_INDEX":    &c.DefaultIndex,
		"SAMPLING_INTERVAL":     &c.SamplingInterval,
		"YAHOO_BASE_URL":        &c.Yahoo.BaseURL,
		"ALPHAVANTAGE_API_KEY":  &c.AlphaVantage.APIKey,
		"ALPHAVANTAGE_BASE_URL": &c.AlphaVantage.BaseURL,
		"APCA_API_KEY_ID":       &c.Alpaca.APIKey,
		"APCA_API_SECRET_KEY":   &c.Alpaca.APISecret,
		"APCA_API_DATA_URL":     &c.Alpaca.BaseURL,
		"HTTP_ADDR":             &c.HTTP.Addr,
		"DATABASE_URL":          &c.DatabaseURL,
		"LOG_LEVEL":             &c.Log.Level,
	}
	for key, field := range strs {
		if v := os.Getenv(key); v != "" {
			*field = v
		}
	}

	if v := os.Getenv("ADJUSTMENT_COEFFICIENT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse ADJUSTMENT_COEFFICIENT %q: %w", v, err)
		}
		c.AdjustmentCoefficient = f
	}
	if v := os.Getenv("CACHE_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse CACHE_ENABLED %q: %w", v, err)
		}
		c.Cache.Enabled = b
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse CACHE_TTL %q: %w", v, err)
		}
		c.Cache.TTL = d
	}

	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	return nil
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderYahoo:
	case ProviderAlphaVantage:
		if c.AlphaVantage.APIKey == "" {
			return fmt.Errorf("alpha_vantage.api_key is required for provider %s", c.Provider)
		}
	case ProviderAlpaca:
		if c.Alpaca.APIKey == "" || c.Alpaca.APISecret == "" {
			return fmt.Errorf("alpaca.api_key and alpaca.api_secret are required for provider %s", c.Provider)
		}
	default:
		return fmt.Errorf("provider %q is not one of %s, %s, %s", c.Provider, ProviderYahoo, ProviderAlphaVantage, ProviderAlpaca)
	}

	if len(c.MarketIndices) == 0 {
		return fmt.Errorf("market_indices must not be empty")
	}
	seen := make(map[string]bool, len(c.MarketIndices))
	for _, idx := range c.MarketIndices {
		if idx.Name == "" || idx.Symbol == "" {
			return fmt.Errorf("market_indices entries need a name and a symbol, got %+v", idx)
		}
		if seen[idx.Name] {
			return fmt.Errorf("duplicate market index %s", idx.Name)
		}
		seen[idx.Name] = true
	}
	if !seen[c.DefaultIndex] {
		return fmt.Errorf("default_index %s is not a configured market index", c.DefaultIndex)
	}

	if _, err := m.ParseInterval(c.SamplingInterval); err != nil {
		return fmt.Errorf("sampling_interval: %w", err)
	}
	if c.AdjustmentCoefficient < 0 || c.AdjustmentCoefficient > 1 || math.IsNaN(c.AdjustmentCoefficient) {
		return fmt.Errorf("adjustment_coefficient must be within [0, 1], got %v", c.AdjustmentCoefficient)
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive when the cache is enabled")
	}
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	return nil
}

// Interval is the parsed default sampling interval, call after Validate
func (c *Config) Interval() m.Interval {
	i, _ := m.ParseInterval(c.SamplingInterval)
	return i
}

// IndexSymbol looks a market index up by display name, case insensitive
func (c *Config) IndexSymbol(name string) (MarketIndex, bool) {
	for _, idx := range c.MarketIndices {
		if strings.EqualFold(idx.Name, name) {
			return idx, true
		}
	}
	return MarketIndex{}, false
}
