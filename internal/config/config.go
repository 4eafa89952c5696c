package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Provider ProviderConfig
	Scanner  ScannerConfig
	Filters  FiltersConfig
	API      APIConfig
	Store    StoreConfig
	Alerting AlertingConfig
}

type ProviderConfig struct {
	BaseURL             string
	APIKey              string
	TimeoutSecs         int
	RateLimitPerSecond  int
	BreakerCooldownSecs int
}

type ScannerConfig struct {
	Universe     []string
	CooldownMsec int
}

// FiltersConfig carries the default scan thresholds; a request may override
// any of them per scan.
type FiltersConfig struct {
	MinProbability int
	MaxRisk        float64
	MinRewardRatio float64
	ExpiryDaysMin  int
	ExpiryDaysMax  int
	StrategyTypes  []string
}

type APIConfig struct {
	BindAddress string
	CORSOrigins []string
}

type StoreConfig struct {
	Backend   string // "memory" or "redis"
	RedisAddr string
	RedisDB   int
}

type AlertingConfig struct {
	Enabled           bool
	SlackWebhookURL   string
	DiscordWebhookURL string
	MinScore          int
	CooldownSecs      int
}

// Load builds the configuration from environment variables, then applies
// overrides from config/default.toml when the file exists.
func Load() (*Config, error) {
	cfg := &Config{
		Provider: ProviderConfig{
			BaseURL:             getEnv("OPTEDGE__PROVIDER__BASE_URL", "https://sandbox.tradier.com/v1"),
			APIKey:              getEnv("OPTEDGE__PROVIDER__API_KEY", ""),
			TimeoutSecs:         getEnvInt("OPTEDGE__PROVIDER__TIMEOUT_SECS", 30),
			RateLimitPerSecond:  getEnvInt("OPTEDGE__PROVIDER__RATE_LIMIT_PER_SECOND", 2),
			BreakerCooldownSecs: getEnvInt("OPTEDGE__PROVIDER__BREAKER_COOLDOWN_SECS", 30),
		},
		Scanner: ScannerConfig{
			Universe:     getEnvSlice("OPTEDGE__SCANNER__UNIVERSE", []string{"SPY", "QQQ", "IWM", "AAPL", "TSLA", "NVDA"}),
			CooldownMsec: getEnvInt("OPTEDGE__SCANNER__COOLDOWN_MSEC", 1000),
		},
		Filters: FiltersConfig{
			MinProbability: getEnvInt("OPTEDGE__FILTERS__MIN_PROBABILITY", 0),
			MaxRisk:        getEnvFloat("OPTEDGE__FILTERS__MAX_RISK", 0),
			MinRewardRatio: getEnvFloat("OPTEDGE__FILTERS__MIN_REWARD_RATIO", 0),
			ExpiryDaysMin:  getEnvInt("OPTEDGE__FILTERS__EXPIRY_DAYS_MIN", 7),
			ExpiryDaysMax:  getEnvInt("OPTEDGE__FILTERS__EXPIRY_DAYS_MAX", 45),
			StrategyTypes:  getEnvSlice("OPTEDGE__FILTERS__STRATEGY_TYPES", nil),
		},
		API: APIConfig{
			BindAddress: getEnv("OPTEDGE__API__BIND_ADDRESS", "0.0.0.0:8080"),
			CORSOrigins: getEnvSlice("OPTEDGE__API__CORS_ORIGINS", []string{"http://localhost:3000"}),
		},
		Store: StoreConfig{
			Backend:   getEnv("OPTEDGE__STORE__BACKEND", "memory"),
			RedisAddr: getEnv("OPTEDGE__STORE__REDIS_ADDR", "localhost:6379"),
			RedisDB:   getEnvInt("OPTEDGE__STORE__REDIS_DB", 0),
		},
		Alerting: AlertingConfig{
			Enabled:           getEnvBool("OPTEDGE__ALERTING__ENABLED", false),
			SlackWebhookURL:   getEnv("OPTEDGE__ALERTING__SLACK_WEBHOOK_URL", ""),
			DiscordWebhookURL: getEnv("OPTEDGE__ALERTING__DISCORD_WEBHOOK_URL", ""),
			MinScore:          getEnvInt("OPTEDGE__ALERTING__MIN_SCORE", 80),
			CooldownSecs:      getEnvInt("OPTEDGE__ALERTING__COOLDOWN_SECS", 900),
		},
	}

	if err := applyFileOverrides(cfg, "config/default.toml"); err != nil {
		return nil, err
	}

	if cfg.Filters.ExpiryDaysMin > cfg.Filters.ExpiryDaysMax {
		return nil, fmt.Errorf("filters expiry window inverted: min %d > max %d", cfg.Filters.ExpiryDaysMin, cfg.Filters.ExpiryDaysMax)
	}
	if len(cfg.Scanner.Universe) == 0 {
		return nil, fmt.Errorf("scanner universe is empty")
	}

	return cfg, nil
}

// fileConfig mirrors Config with optional fields so the TOML file only
// overrides what it actually sets.
type fileConfig struct {
	Provider struct {
		BaseURL             *string `toml:"base_url"`
		APIKey              *string `toml:"api_key"`
		TimeoutSecs         *int    `toml:"timeout_secs"`
		RateLimitPerSecond  *int    `toml:"rate_limit_per_second"`
		BreakerCooldownSecs *int    `toml:"breaker_cooldown_secs"`
	} `toml:"provider"`
	Scanner struct {
		Universe     []string `toml:"universe"`
		CooldownMsec *int     `toml:"cooldown_msec"`
	} `toml:"scanner"`
	Filters struct {
		MinProbability *int     `toml:"min_probability"`
		MaxRisk        *float64 `toml:"max_risk"`
		MinRewardRatio *float64 `toml:"min_reward_ratio"`
		ExpiryDaysMin  *int     `toml:"expiry_days_min"`
		ExpiryDaysMax  *int     `toml:"expiry_days_max"`
		StrategyTypes  []string `toml:"strategy_types"`
	} `toml:"filters"`
	API struct {
		BindAddress *string  `toml:"bind_address"`
		CORSOrigins []string `toml:"cors_origins"`
	} `toml:"api"`
	Store struct {
		Backend   *string `toml:"backend"`
		RedisAddr *string `toml:"redis_addr"`
		RedisDB   *int    `toml:"redis_db"`
	} `toml:"store"`
	Alerting struct {
		Enabled           *bool   `toml:"enabled"`
		SlackWebhookURL   *string `toml:"slack_webhook_url"`
		DiscordWebhookURL *string `toml:"discord_webhook_url"`
		MinScore          *int    `toml:"min_score"`
		CooldownSecs      *int    `toml:"cooldown_secs"`
	} `toml:"alerting"`
}

func applyFileOverrides(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var file fileConfig
	if err := toml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	setString(&cfg.Provider.BaseURL, file.Provider.BaseURL)
	setString(&cfg.Provider.APIKey, file.Provider.APIKey)
	setInt(&cfg.Provider.TimeoutSecs, file.Provider.TimeoutSecs)
	setInt(&cfg.Provider.RateLimitPerSecond, file.Provider.RateLimitPerSecond)
	setInt(&cfg.Provider.BreakerCooldownSecs, file.Provider.BreakerCooldownSecs)

	if len(file.Scanner.Universe) > 0 {
		cfg.Scanner.Universe = file.Scanner.Universe
	}
	setInt(&cfg.Scanner.CooldownMsec, file.Scanner.CooldownMsec)

	setInt(&cfg.Filters.MinProbability, file.Filters.MinProbability)
	setFloat(&cfg.Filters.MaxRisk, file.Filters.MaxRisk)
	setFloat(&cfg.Filters.MinRewardRatio, file.Filters.MinRewardRatio)
	setInt(&cfg.Filters.ExpiryDaysMin, file.Filters.ExpiryDaysMin)
	setInt(&cfg.Filters.ExpiryDaysMax, file.Filters.ExpiryDaysMax)
	if len(file.Filters.StrategyTypes) > 0 {
		cfg.Filters.StrategyTypes = file.Filters.StrategyTypes
	}

	setString(&cfg.API.BindAddress, file.API.BindAddress)
	if len(file.API.CORSOrigins) > 0 {
		cfg.API.CORSOrigins = file.API.CORSOrigins
	}

	setString(&cfg.Store.Backend, file.Store.Backend)
	setString(&cfg.Store.RedisAddr, file.Store.RedisAddr)
	setInt(&cfg.Store.RedisDB, file.Store.RedisDB)

	setBool(&cfg.Alerting.Enabled, file.Alerting.Enabled)
	setString(&cfg.Alerting.SlackWebhookURL, file.Alerting.SlackWebhookURL)
	setString(&cfg.Alerting.DiscordWebhookURL, file.Alerting.DiscordWebhookURL)
	setInt(&cfg.Alerting.MinScore, file.Alerting.MinScore)
	setInt(&cfg.Alerting.CooldownSecs, file.Alerting.CooldownSecs)

	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
