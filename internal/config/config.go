package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port            string
	LogLevel        string
	LogFormat       string
	RequestTimeout  time.Duration
	RateLimitPerMin int
	MaxSymbols      int

	CacheBackend   string
	CacheDir       string
	RedisURL       string
	SQLitePath     string
	CacheCoalesce  bool
	MarketTimezone string
	CacheTTLQuotes int
	CacheTTLNews   int
	EdgeMaxAge     int
	EdgeSWR        int

	PolygonBaseURL string
	PolygonAPIKey  string
	FMPBaseURL     string
	FMPAPIKey      string
	FinnhubBaseURL string
	FinnhubAPIKey  string
	AlpacaKeyID    string
	AlpacaSecret   string
	AlpacaDataURL  string

	CircuitFailLimit int
	CircuitCooldown  time.Duration
}

// Load builds the configuration from defaults, the optional YAML file named by
// LUMO_CONFIG_FILE, and the environment, in increasing order of precedence.
func Load() (Config, error) {
	cfg := Defaults()
	if path := os.Getenv("LUMO_CONFIG_FILE"); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// validate rejects settings that would make every cached route fail.
func (c Config) validate() error {
	for _, v := range []struct {
		name string
		val  int
	}{
		{"CACHE_TTL_QUOTES", c.CacheTTLQuotes},
		{"CACHE_TTL_NEWS", c.CacheTTLNews},
		{"EDGE_MAX_AGE", c.EdgeMaxAge},
		{"EDGE_SWR", c.EdgeSWR},
	} {
		if v.val < 0 {
			return fmt.Errorf("%s cannot be negative, got %d", v.name, v.val)
		}
	}
	return nil
}

func Defaults() Config {
	return Config{
		Port:             "8080",
		LogLevel:         "info",
		LogFormat:        "console",
		RequestTimeout:   12 * time.Second,
		RateLimitPerMin:  120,
		MaxSymbols:       50,
		CacheBackend:     "file",
		CacheDir:         ".cache/api",
		RedisURL:         "",
		SQLitePath:       ".cache/api.db",
		MarketTimezone:   "America/New_York",
		CacheTTLQuotes:   60,
		CacheTTLNews:     300,
		EdgeMaxAge:       30,
		EdgeSWR:          300,
		PolygonBaseURL:   "https://api.polygon.io",
		FMPBaseURL:       "https://financialmodelingprep.com",
		FinnhubBaseURL:   "https://finnhub.io",
		CircuitFailLimit: 3,
		CircuitCooldown:  20 * time.Second,
	}
}

func applyEnv(cfg *Config) {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.RateLimitPerMin = getEnvInt("RATE_LIMIT_PER_MIN", cfg.RateLimitPerMin)
	cfg.MaxSymbols = getEnvInt("MAX_SYMBOLS", cfg.MaxSymbols)

	cfg.CacheBackend = strings.ToLower(getEnv("CACHE_BACKEND", cfg.CacheBackend))
	cfg.CacheDir = getEnv("CACHE_DIR", cfg.CacheDir)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.SQLitePath = getEnv("SQLITE_PATH", cfg.SQLitePath)
	cfg.CacheCoalesce = getEnvBool("CACHE_COALESCE", cfg.CacheCoalesce)
	cfg.MarketTimezone = getEnv("MARKET_TZ", cfg.MarketTimezone)
	cfg.CacheTTLQuotes = getEnvInt("CACHE_TTL_QUOTES", cfg.CacheTTLQuotes)
	cfg.CacheTTLNews = getEnvInt("CACHE_TTL_NEWS", cfg.CacheTTLNews)
	cfg.EdgeMaxAge = getEnvInt("EDGE_MAX_AGE", cfg.EdgeMaxAge)
	cfg.EdgeSWR = getEnvInt("EDGE_SWR", cfg.EdgeSWR)

	cfg.PolygonBaseURL = getEnv("POLYGON_BASE_URL", cfg.PolygonBaseURL)
	cfg.PolygonAPIKey = getEnv("POLYGON_API_KEY", cfg.PolygonAPIKey)
	cfg.FMPBaseURL = getEnv("FMP_BASE_URL", cfg.FMPBaseURL)
	cfg.FMPAPIKey = getEnv("FMP_API_KEY", cfg.FMPAPIKey)
	cfg.FinnhubBaseURL = getEnv("FINNHUB_BASE_URL", cfg.FinnhubBaseURL)
	cfg.FinnhubAPIKey = getEnv("FINNHUB_API_KEY", cfg.FinnhubAPIKey)
	cfg.AlpacaKeyID = getEnv("APCA_API_KEY_ID", cfg.AlpacaKeyID)
	cfg.AlpacaSecret = getEnv("APCA_API_SECRET_KEY", cfg.AlpacaSecret)
	cfg.AlpacaDataURL = getEnv("ALPACA_DATA_URL", cfg.AlpacaDataURL)

	cfg.CircuitFailLimit = getEnvInt("CIRCUIT_FAIL_LIMIT", cfg.CircuitFailLimit)
	cfg.CircuitCooldown = getEnvDuration("CIRCUIT_COOLDOWN", cfg.CircuitCooldown)
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getEnvBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "":
		return def
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return time.Duration(i) * time.Second
}
