package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Safety     SafetyConfig     `yaml:"safety" mapstructure:"safety"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Parser     ParserConfig     `yaml:"parser" mapstructure:"parser"`
	ESPN       ESPNConfig       `yaml:"espn" mapstructure:"espn"`
	Reddit     RedditConfig     `yaml:"reddit" mapstructure:"reddit"`
	Payment    PaymentConfig    `yaml:"payment" mapstructure:"payment"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	MaxBodyBytes   int64    `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	PublicURL      string   `yaml:"public_url" mapstructure:"public_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// StoreConfig configures the stats store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Dir         string `yaml:"dir" mapstructure:"dir"`
}

// SafetyConfig configures the safety governor.
type SafetyConfig struct {
	FailureWindow int    `yaml:"failure_window" mapstructure:"failure_window"`
	DailyQuota    int    `yaml:"daily_quota" mapstructure:"daily_quota"`
	MinIntervalMs int    `yaml:"min_interval_ms" mapstructure:"min_interval_ms"`
	Timezone      string `yaml:"timezone" mapstructure:"timezone"`
}

// MinInterval returns the per-domain pacing interval.
func (s SafetyConfig) MinInterval() time.Duration {
	return time.Duration(s.MinIntervalMs) * time.Millisecond
}

// Location resolves Timezone, falling back to UTC.
func (s SafetyConfig) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ScoringConfig holds per-domain confidence constants.
type ScoringConfig struct {
	Floor              float64 `yaml:"floor" mapstructure:"floor"`
	SportsBase         float64 `yaml:"sports_base" mapstructure:"sports_base"`
	SportsCorroborated float64 `yaml:"sports_corroborated" mapstructure:"sports_corroborated"`
	RedditBase         float64 `yaml:"reddit_base" mapstructure:"reddit_base"`
	RedditSearchDelta  float64 `yaml:"reddit_search_penalty" mapstructure:"reddit_search_penalty"`
}

// ParserConfig configures question parsing.
type ParserConfig struct {
	AliasesFile string `yaml:"aliases_file" mapstructure:"aliases_file"`
}

// ESPNConfig holds ESPN site API settings.
type ESPNConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// RedditConfig holds Reddit public JSON API settings.
type RedditConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// PaymentConfig holds payment verification service settings.
type PaymentConfig struct {
	Enabled     bool    `yaml:"enabled" mapstructure:"enabled"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	APIKey      string  `yaml:"api_key" mapstructure:"api_key"`
	PlanID      string  `yaml:"plan_id" mapstructure:"plan_id"`
	AgentID     string  `yaml:"agent_id" mapstructure:"agent_id"`
	Cost        int     `yaml:"cost" mapstructure:"cost"`
	PriceUSD    float64 `yaml:"price_usd" mapstructure:"price_usd"`
	Header      string  `yaml:"header" mapstructure:"header"`
	PurchaseURL string  `yaml:"purchase_url" mapstructure:"purchase_url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// MonitoringConfig configures the background health checker.
type MonitoringConfig struct {
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	QuotaUsageThreshold  float64 `yaml:"quota_usage_threshold" mapstructure:"quota_usage_threshold"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ORACLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_body_bytes", 64<<10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("store.driver", "file")
	v.SetDefault("store.dir", "data")
	v.SetDefault("safety.failure_window", 5)
	v.SetDefault("safety.daily_quota", 1000)
	v.SetDefault("safety.min_interval_ms", 1000)
	v.SetDefault("safety.timezone", "UTC")
	v.SetDefault("scoring.floor", 0.5)
	v.SetDefault("scoring.sports_base", 0.85)
	v.SetDefault("scoring.sports_corroborated", 0.95)
	v.SetDefault("scoring.reddit_base", 0.90)
	v.SetDefault("scoring.reddit_search_penalty", 0.15)
	v.SetDefault("espn.base_url", "https://site.api.espn.com")
	v.SetDefault("espn.timeout_secs", 10)
	v.SetDefault("reddit.base_url", "https://www.reddit.com")
	v.SetDefault("reddit.user_agent", "fact-oracle/1.0")
	v.SetDefault("reddit.timeout_secs", 10)
	v.SetDefault("payment.enabled", true)
	v.SetDefault("payment.cost", 1)
	v.SetDefault("payment.price_usd", 0.01)
	v.SetDefault("payment.header", "payment-signature")
	v.SetDefault("payment.timeout_secs", 15)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.failure_rate_threshold", 0.5)
	v.SetDefault("monitoring.quota_usage_threshold", 0.9)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings required by the given command mode
// ("serve" or "ask").
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Payment.Enabled {
			if c.Payment.BaseURL == "" {
				errs = append(errs, "payment.base_url is required when payment is enabled")
			}
			if c.Payment.PlanID == "" {
				errs = append(errs, "payment.plan_id is required when payment is enabled")
			}
		}
	case "ask":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "file":
		if c.Store.Dir == "" {
			errs = append(errs, "store.dir is required for the file driver")
		}
	case "sqlite":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required for the postgres driver")
		}
	default:
		errs = append(errs, "store.driver must be one of file, sqlite, postgres")
	}

	if c.Safety.FailureWindow < 1 || c.Safety.FailureWindow > 50 {
		errs = append(errs, "safety.failure_window must be between 1 and 50")
	}
	if c.Safety.DailyQuota < 0 {
		errs = append(errs, "safety.daily_quota must be >= 0")
	}
	if c.Safety.MinIntervalMs < 0 {
		errs = append(errs, "safety.min_interval_ms must be >= 0")
	}
	if c.Safety.Timezone != "" {
		if _, err := time.LoadLocation(c.Safety.Timezone); err != nil {
			errs = append(errs, "safety.timezone is not a valid IANA zone")
		}
	}
	if c.Scoring.Floor < 0 || c.Scoring.Floor > 1 {
		errs = append(errs, "scoring.floor must be between 0 and 1")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
