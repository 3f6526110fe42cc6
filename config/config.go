package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type WebServerConfig struct {
	Port              string `mapstructure:"port"`
	IP                string `mapstructure:"ip"`
	Scheme            string `mapstructure:"scheme"`
	BaseURL           string `mapstructure:"base_url"`
	ReadTimeout       int    `mapstructure:"read_timeout"`
	WriteTimeout      int    `mapstructure:"write_timeout"`
	ShutdownTimeout   int    `mapstructure:"shutdown_timeout"`
	RequestDeadlineMS int    `mapstructure:"request_deadline_ms"` // Per-request budget for store calls
	TrustProxyHeaders bool   `mapstructure:"trust_proxy_headers"` // Honour X-Forwarded-For / X-Real-IP
}

type StorageConfig struct {
	Driver    string `mapstructure:"driver"` // redis or sqlite
	SQLiteDSN string `mapstructure:"sqlite_dsn"`
}

type RedisConfig struct {
	Address          string `mapstructure:"address"`
	Password         string `mapstructure:"password"`
	DB               int    `mapstructure:"db"`
	PoolSize         int    `mapstructure:"pool_size"`
	MinIdleConns     int    `mapstructure:"min_idle_conns"`
	OperationTimeout int    `mapstructure:"operation_timeout"`
}

type CacheConfig struct {
	Enabled          bool `mapstructure:"enabled"`
	MaxSizeMB        int  `mapstructure:"max_size_mb"`
	CounterSize      int  `mapstructure:"counter_size"`
	SlugTTLSeconds   int  `mapstructure:"slug_ttl_seconds"`
	SlugMaxSize      int  `mapstructure:"slug_max_size"`
	SlugCleanupEvery int  `mapstructure:"slug_cleanup_every"` // Expired-entry sweep every N puts
}

// WindowConfig is a sliding-window limit: Requests per WindowSeconds
type WindowConfig struct {
	Requests      int `mapstructure:"requests"`
	WindowSeconds int `mapstructure:"window_seconds"`
}

func (w WindowConfig) Window() time.Duration {
	return time.Duration(w.WindowSeconds) * time.Second
}

type RateLimitConfig struct {
	RequestsPerSecond float64      `mapstructure:"requests_per_second"` // Token bucket on /api/*
	Burst             int          `mapstructure:"burst"`
	LinkRedirect      WindowConfig `mapstructure:"link_redirect"`
	PublicProfile     WindowConfig `mapstructure:"public_profile"`
}

type SlugsConfig struct {
	Reserved         []string `mapstructure:"reserved"`          // Added to the built-in reserved list
	MaxAttempts      int      `mapstructure:"max_attempts"`      // Bound for -2, -3, ... suffixes
	CreateAttempts   int      `mapstructure:"create_attempts"`   // Insert retries after a lost race
	SuggestionsCount int      `mapstructure:"suggestions_count"` // Alternatives returned on conflict
}

type ProfilesConfig struct {
	OwnerTokenCost int `mapstructure:"owner_token_cost"` // bcrypt cost
	PurgeAfterDays int `mapstructure:"purge_after_days"` // Soft-deleted profiles older than this are purged
	ListMaxLimit   int `mapstructure:"list_max_limit"`
}

type AnalyticsConfig struct {
	RetentionDays  int    `mapstructure:"retention_days"`
	Async          bool   `mapstructure:"async"`
	QueueSize      int    `mapstructure:"queue_size"`
	Workers        int    `mapstructure:"workers"`
	WriteTimeoutMS int    `mapstructure:"write_timeout_ms"`
	GeoIPDatabase  string `mapstructure:"geoip_db"` // Path to a GeoLite2-City database, empty disables lookups
	RecentLimit    int    `mapstructure:"recent_limit"`
}

type SecurityConfig struct {
	InternalAPIKey       string   `mapstructure:"internal_api_key"`
	LinkBlocklistEnabled bool     `mapstructure:"link_blocklist_enabled"`
	LinkBlocklist        []string `mapstructure:"link_blocklist"` // Hosts or URL patterns added to the built-in list
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // console or json
	File       string `mapstructure:"file"`   // Optional rotating log file
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type SentryConfig struct {
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

type Config struct {
	WebServer WebServerConfig `mapstructure:"webserver"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Slugs     SlugsConfig     `mapstructure:"slugs"`
	Profiles  ProfilesConfig  `mapstructure:"profiles"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Security  SecurityConfig  `mapstructure:"security"`
	Log       LogConfig       `mapstructure:"log"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
}

// RequestDeadline is the per-request budget for store and network calls
func (c Config) RequestDeadline() time.Duration {
	return time.Duration(c.WebServer.RequestDeadlineMS) * time.Millisecond
}

// PublicBaseURL is the absolute origin profile URLs are built on
func (c Config) PublicBaseURL() string {
	if c.WebServer.BaseURL != "" {
		return strings.TrimRight(c.WebServer.BaseURL, "/")
	}
	return c.WebServer.Scheme + "://" + c.WebServer.IP + ":" + c.WebServer.Port
}

// envBindings maps the deployment's well-known variable names onto config keys
var envBindings = map[string]string{
	"cache.slug_ttl_seconds":                  "SLUG_CACHE_TTL_SECONDS",
	"cache.slug_max_size":                     "SLUG_CACHE_MAX_SIZE",
	"ratelimit.link_redirect.requests":        "LINK_REDIRECT_RATE_LIMIT_REQUESTS",
	"ratelimit.link_redirect.window_seconds":  "LINK_REDIRECT_RATE_LIMIT_WINDOW_SECONDS",
	"ratelimit.public_profile.requests":       "PUBLIC_PROFILE_RATE_LIMIT_REQUESTS",
	"ratelimit.public_profile.window_seconds": "PUBLIC_PROFILE_RATE_LIMIT_WINDOW_SECONDS",
	"analytics.retention_days":                "ANALYTICS_RETENTION_DAYS",
	"webserver.request_deadline_ms":           "REQUEST_DEADLINE_MS",
	"security.internal_api_key":               "INTERNAL_API_KEY",
	"sentry.dsn":                              "SENTRY_DSN",
	"redis.address":                           "REDIS_ADDRESS",
	"redis.password":                          "REDIS_PASSWORD",
}

func LoadConfig() (Config, error) {
	return load(viper.New())
}

func load(v *viper.Viper) (Config, error) {
	var config Config

	// A .env file is optional; real environment variables always win
	if err := godotenv.Load(); err == nil {
		log.Info().Msg("Loaded environment from .env")
	}

	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Enable environment variable overrides, e.g. HATEF_REDIS_DB
	v.SetEnvPrefix("HATEF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, "HATEF_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return config, err
		}
	}

	// Set defaults
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Error().Err(err).Msg("Error reading config file")
			return config, err
		}
		log.Info().Msg("No config file found, using defaults and environment")
	}

	if err := v.Unmarshal(&config); err != nil {
		log.Error().Err(err).Msg("Unable to decode into struct")
		return config, err
	}

	if err := config.Validate(); err != nil {
		return config, err
	}

	log.Info().Str("storage", config.Storage.Driver).Msg("Configuration loaded successfully")
	return config, nil
}

func MustLoadConfig() Config {
	config, err := LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	return config
}

var (
	ErrUnknownStorage = errors.New("storage.driver must be redis or sqlite")
	ErrBadLimit       = errors.New("rate limit requests and window must be positive")
	ErrBadCache       = errors.New("slug cache ttl and size must be positive")
	ErrBadDeadline    = errors.New("request deadline must be positive")
)

// Validate rejects settings the service cannot run with
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case "redis", "sqlite":
	default:
		return ErrUnknownStorage
	}
	for _, w := range []WindowConfig{c.RateLimit.LinkRedirect, c.RateLimit.PublicProfile} {
		if w.Requests <= 0 || w.WindowSeconds <= 0 {
			return ErrBadLimit
		}
	}
	if c.Cache.SlugTTLSeconds <= 0 || c.Cache.SlugMaxSize <= 0 {
		return ErrBadCache
	}
	if c.WebServer.RequestDeadlineMS <= 0 {
		return ErrBadDeadline
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// WebServer defaults
	v.SetDefault("webserver.port", "8080")
	v.SetDefault("webserver.ip", "127.0.0.1")
	v.SetDefault("webserver.scheme", "http")
	v.SetDefault("webserver.base_url", "")
	v.SetDefault("webserver.read_timeout", 15)
	v.SetDefault("webserver.write_timeout", 15)
	v.SetDefault("webserver.shutdown_timeout", 30)
	v.SetDefault("webserver.request_deadline_ms", 2000)
	v.SetDefault("webserver.trust_proxy_headers", false)

	// Storage defaults
	v.SetDefault("storage.driver", "redis")
	v.SetDefault("storage.sqlite_dsn", "hatef.db")

	// Redis defaults
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 5)
	v.SetDefault("redis.operation_timeout", 5)

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.max_size_mb", 64)
	v.SetDefault("cache.counter_size", 100000)
	v.SetDefault("cache.slug_ttl_seconds", 300) // 5 minutes
	v.SetDefault("cache.slug_max_size", 10000)
	v.SetDefault("cache.slug_cleanup_every", 100)

	// RateLimit defaults
	v.SetDefault("ratelimit.requests_per_second", 10.0)
	v.SetDefault("ratelimit.burst", 20)
	v.SetDefault("ratelimit.link_redirect.requests", 120)
	v.SetDefault("ratelimit.link_redirect.window_seconds", 60)
	v.SetDefault("ratelimit.public_profile.requests", 300)
	v.SetDefault("ratelimit.public_profile.window_seconds", 60)

	// Slug defaults
	v.SetDefault("slugs.reserved", []string{})
	v.SetDefault("slugs.max_attempts", 10000)
	v.SetDefault("slugs.create_attempts", 5)
	v.SetDefault("slugs.suggestions_count", 3)

	// Profile defaults
	v.SetDefault("profiles.owner_token_cost", 10)
	v.SetDefault("profiles.purge_after_days", 30)
	v.SetDefault("profiles.list_max_limit", 100)

	// Analytics defaults
	v.SetDefault("analytics.retention_days", 90)
	v.SetDefault("analytics.async", true)
	v.SetDefault("analytics.queue_size", 1024)
	v.SetDefault("analytics.workers", 4)
	v.SetDefault("analytics.write_timeout_ms", 1000)
	v.SetDefault("analytics.geoip_db", "")
	v.SetDefault("analytics.recent_limit", 50)

	// Security defaults
	v.SetDefault("security.internal_api_key", "")
	v.SetDefault("security.link_blocklist_enabled", true)
	v.SetDefault("security.link_blocklist", []string{})

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 28)

	// Sentry defaults
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "development")
	v.SetDefault("sentry.sample_rate", 1.0)
}
