package config

import (
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Google    GoogleConfig    `yaml:"google" mapstructure:"google"`
	Sirene    SireneConfig    `yaml:"sirene" mapstructure:"sirene"`
	PageSpeed PageSpeedConfig `yaml:"pagespeed" mapstructure:"pagespeed"`
	Scan      ScanConfig      `yaml:"scan" mapstructure:"scan"`
	Audit     AuditConfig     `yaml:"audit" mapstructure:"audit"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the lead repository.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int    `yaml:"max_conns" mapstructure:"max_conns"`
}

// GoogleConfig holds Google Places API settings.
type GoogleConfig struct {
	Key      string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	Language string `yaml:"language" mapstructure:"language"`
	Region   string `yaml:"region" mapstructure:"region"`
}

// SireneConfig holds business registry API settings.
type SireneConfig struct {
	Key     string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PageSpeedConfig holds PageSpeed Insights settings. The key is optional.
type PageSpeedConfig struct {
	Key         string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Strategy    string `yaml:"strategy" mapstructure:"strategy"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ScanConfig paces lead scans.
type ScanConfig struct {
	Concurrency   int  `yaml:"concurrency" mapstructure:"concurrency"`
	CallSpacingMs int  `yaml:"call_spacing_ms" mapstructure:"call_spacing_ms"`
	PageDelayMs   int  `yaml:"page_delay_ms" mapstructure:"page_delay_ms"`
	MaxResults    int  `yaml:"max_results" mapstructure:"max_results"`
	AuditWebsites bool `yaml:"audit_websites" mapstructure:"audit_websites"`
}

// AuditConfig configures website audits.
type AuditConfig struct {
	// OutdatedCMS maps a CMS name to the oldest major version still
	// considered current.
	OutdatedCMS      map[string]int `yaml:"outdated_cms" mapstructure:"outdated_cms"`
	ProbeTimeoutSecs int            `yaml:"probe_timeout_secs" mapstructure:"probe_timeout_secs"`
	DetectStack      bool           `yaml:"detect_stack" mapstructure:"detect_stack"`
}

// CacheConfig configures the audit cache. An empty Redis URL disables it.
type CacheConfig struct {
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url"`
	TTLHours int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// RetryConfig configures retries and the circuit breaker around external
// calls.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	BreakerThreshold int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs int `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// envFiles are loaded, when present, before the environment is read. Real
// environment variables always win.
var envFiles = []string{".env.local", ".env"}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, eris.Wrapf(err, "config: load %s", f)
		}
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADHUNTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("google.api_key", "")
	v.SetDefault("google.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("google.language", "fr")
	v.SetDefault("google.region", "FR")
	v.SetDefault("sirene.api_key", "")
	v.SetDefault("sirene.base_url", "https://api.insee.fr/entreprises/sirene/V3.11")
	v.SetDefault("pagespeed.api_key", "")
	v.SetDefault("pagespeed.base_url", "https://www.googleapis.com/pagespeedonline/v5")
	v.SetDefault("pagespeed.strategy", "mobile")
	v.SetDefault("pagespeed.timeout_secs", 60)
	v.SetDefault("scan.concurrency", 1)
	v.SetDefault("scan.call_spacing_ms", 200)
	v.SetDefault("scan.page_delay_ms", 2000)
	v.SetDefault("scan.max_results", 20)
	v.SetDefault("scan.audit_websites", false)
	v.SetDefault("audit.probe_timeout_secs", 10)
	v.SetDefault("audit.detect_stack", true)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl_hours", 24)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 30000)
	v.SetDefault("retry.breaker_threshold", 5)
	v.SetDefault("retry.breaker_reset_secs", 60)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks the settings a feature needs. Features: "places",
// "registry", "audit", "store" and "serve".
func (c *Config) Validate(feature string) error {
	var problems []string
	require := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	switch feature {
	case "places":
		require(c.Google.Key != "", "google.api_key is required")
		require(c.Scan.MaxResults >= 0, "scan.max_results must not be negative")
		problems = append(problems, c.scanProblems()...)
	case "registry":
		require(c.Sirene.Key != "", "sirene.api_key is required")
		problems = append(problems, c.scanProblems()...)
	case "audit":
		switch c.PageSpeed.Strategy {
		case "mobile", "desktop":
		default:
			problems = append(problems, "pagespeed.strategy must be mobile or desktop")
		}
	case "store":
		problems = append(problems, c.storeProblems()...)
	case "serve":
		require(c.Server.Port > 0 && c.Server.Port < 65536, "server.port must be between 1 and 65535")
		problems = append(problems, c.storeProblems()...)
	default:
		return eris.Errorf("config: unknown feature %q", feature)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) scanProblems() []string {
	if c.Scan.Concurrency < 1 || c.Scan.Concurrency > 20 {
		return []string{"scan.concurrency must be between 1 and 20"}
	}
	return nil
}

func (c *Config) storeProblems() []string {
	switch c.Store.Driver {
	case DriverMemory:
		return nil
	case DriverSQLite, DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return []string{"store.database_url is required for " + c.Store.Driver}
		}
		return nil
	default:
		return []string{"store.driver must be memory, sqlite or postgres"}
	}
}

// KeyStatus describes whether an API key is configured, with a masked
// preview that never reveals the full key.
type KeyStatus struct {
	Configured bool   `json:"configured"`
	Preview    string `json:"preview,omitempty"`
}

// KeyStatus reports the state of every external API key.
func (c *Config) KeyStatus() map[string]KeyStatus {
	return map[string]KeyStatus{
		"google_places": keyStatus(c.Google.Key),
		"sirene":        keyStatus(c.Sirene.Key),
		"pagespeed":     keyStatus(c.PageSpeed.Key),
	}
}

func keyStatus(key string) KeyStatus {
	if key == "" {
		return KeyStatus{}
	}
	shown := min(len(key), 6)
	stars := min(len(key)-shown, 10)
	return KeyStatus{Configured: true, Preview: key[:shown] + strings.Repeat("*", stars)}
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
