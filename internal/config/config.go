package config

import (
	"os"
	"strconv"
	"time"

	"github.com/XavierBriggs/fortuna/services/bet-engine/pkg/models"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr string
}

// RedisConfig holds the optional Redis connection for event publishing.
// An empty URL disables stream publishing entirely.
type RedisConfig struct {
	URL      string
	Password string
}

// ScanConfig holds orchestrator and feed configuration
type ScanConfig struct {
	Interval          time.Duration
	FetchTimeout      time.Duration
	OpportunityTTL    time.Duration
	RequestsPerSecond float64
	ValueBetFeedURL   string
	ArbitrageFeedURL  string
	PropFeedURL       string
}

// Config holds all application configuration
type Config struct {
	Server ServerConfig
	Redis  RedisConfig
	Scan   ScanConfig
	Risk   models.RiskConfig
}

// Load reads configuration from environment variables, falling back to the
// canonical defaults
func Load() *Config {
	risk := models.DefaultRiskConfig()
	risk.MinConfidence = getEnvFloat("RISK_MIN_CONFIDENCE", risk.MinConfidence)
	risk.MaxPositions = getEnvInt("RISK_MAX_POSITIONS", risk.MaxPositions)
	risk.MaxExposure = getEnvFloat("RISK_MAX_EXPOSURE", risk.MaxExposure)
	risk.MaxSingleBet = getEnvFloat("RISK_MAX_SINGLE_BET", risk.MaxSingleBet)
	risk.MaxTotalExposure = getEnvFloat("RISK_MAX_TOTAL_EXPOSURE", risk.MaxTotalExposure)
	risk.BaseBankroll = getEnvFloat("RISK_BASE_BANKROLL", risk.BaseBankroll)
	risk.KellyMultiplier = getEnvFloat("KELLY_MULTIPLIER", risk.KellyMultiplier)
	risk.KellyCap = getEnvFloat("KELLY_CAP", risk.KellyCap)

	return &Config{
		Server: ServerConfig{
			Addr: getEnv("SERVER_ADDR", ":8090"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Scan: ScanConfig{
			Interval:          getEnvDuration("SCAN_INTERVAL", 30*time.Second),
			FetchTimeout:      getEnvDuration("SCAN_FETCH_TIMEOUT", 10*time.Second),
			OpportunityTTL:    getEnvDuration("OPPORTUNITY_TTL", 5*time.Minute),
			RequestsPerSecond: getEnvFloat("FEED_REQUESTS_PER_SECOND", 2.0),
			ValueBetFeedURL:   getEnv("VALUE_BET_FEED_URL", "http://localhost:8070"),
			ArbitrageFeedURL:  getEnv("ARBITRAGE_FEED_URL", "http://localhost:8071"),
			PropFeedURL:       getEnv("PROP_FEED_URL", "http://localhost:8072"),
		},
		Risk: risk,
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
