package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the subset of Config that may be set from YAML.
// Zero values leave the current setting untouched.
type fileConfig struct {
	Server struct {
		Port            string `yaml:"port"`
		RequestTimeoutS int    `yaml:"request_timeout_s"`
		RateLimitPerMin int    `yaml:"rate_limit_per_min"`
		MaxSymbols      int    `yaml:"max_symbols"`
	} `yaml:"server"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
	Cache struct {
		Backend    string `yaml:"backend"`
		Dir        string `yaml:"dir"`
		RedisURL   string `yaml:"redis_url"`
		SQLitePath string `yaml:"sqlite_path"`
		Coalesce   *bool  `yaml:"coalesce"`
		Timezone   string `yaml:"timezone"`
		TTLQuotes  int    `yaml:"ttl_quotes_s"`
		TTLNews    int    `yaml:"ttl_news_s"`
		EdgeMaxAge int    `yaml:"edge_max_age_s"`
		EdgeSWR    int    `yaml:"edge_swr_s"`
	} `yaml:"cache"`
	Upstreams struct {
		Polygon struct {
			BaseURL string `yaml:"base_url"`
			APIKey  string `yaml:"api_key"`
		} `yaml:"polygon"`
		FMP struct {
			BaseURL string `yaml:"base_url"`
			APIKey  string `yaml:"api_key"`
		} `yaml:"fmp"`
		Finnhub struct {
			BaseURL string `yaml:"base_url"`
			APIKey  string `yaml:"api_key"`
		} `yaml:"finnhub"`
		Alpaca struct {
			KeyID   string `yaml:"key_id"`
			Secret  string `yaml:"secret"`
			DataURL string `yaml:"data_url"`
		} `yaml:"alpaca"`
		CircuitFailLimit int `yaml:"circuit_fail_limit"`
		CircuitCooldownS int `yaml:"circuit_cooldown_s"`
	} `yaml:"upstreams"`
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&cfg.Port, fc.Server.Port)
	setSeconds(&cfg.RequestTimeout, fc.Server.RequestTimeoutS)
	setInt(&cfg.RateLimitPerMin, fc.Server.RateLimitPerMin)
	setInt(&cfg.MaxSymbols, fc.Server.MaxSymbols)

	setString(&cfg.LogLevel, fc.Logging.Level)
	setString(&cfg.LogFormat, fc.Logging.Format)

	setString(&cfg.CacheBackend, strings.ToLower(fc.Cache.Backend))
	setString(&cfg.CacheDir, fc.Cache.Dir)
	setString(&cfg.RedisURL, fc.Cache.RedisURL)
	setString(&cfg.SQLitePath, fc.Cache.SQLitePath)
	if fc.Cache.Coalesce != nil {
		cfg.CacheCoalesce = *fc.Cache.Coalesce
	}
	setString(&cfg.MarketTimezone, fc.Cache.Timezone)
	setInt(&cfg.CacheTTLQuotes, fc.Cache.TTLQuotes)
	setInt(&cfg.CacheTTLNews, fc.Cache.TTLNews)
	setInt(&cfg.EdgeMaxAge, fc.Cache.EdgeMaxAge)
	setInt(&cfg.EdgeSWR, fc.Cache.EdgeSWR)

	setString(&cfg.PolygonBaseURL, fc.Upstreams.Polygon.BaseURL)
	setString(&cfg.PolygonAPIKey, fc.Upstreams.Polygon.APIKey)
	setString(&cfg.FMPBaseURL, fc.Upstreams.FMP.BaseURL)
	setString(&cfg.FMPAPIKey, fc.Upstreams.FMP.APIKey)
	setString(&cfg.FinnhubBaseURL, fc.Upstreams.Finnhub.BaseURL)
	setString(&cfg.FinnhubAPIKey, fc.Upstreams.Finnhub.APIKey)
	setString(&cfg.AlpacaKeyID, fc.Upstreams.Alpaca.KeyID)
	setString(&cfg.AlpacaSecret, fc.Upstreams.Alpaca.Secret)
	setString(&cfg.AlpacaDataURL, fc.Upstreams.Alpaca.DataURL)
	setInt(&cfg.CircuitFailLimit, fc.Upstreams.CircuitFailLimit)
	setSeconds(&cfg.CircuitCooldown, fc.Upstreams.CircuitCooldownS)
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setSeconds(dst *time.Duration, v int) {
	if v > 0 {
		*dst = time.Duration(v) * time.Second
	}
}
