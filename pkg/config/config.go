package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Upstream UpstreamConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Search   SearchConfig
	Roster   RosterConfig
	Lists    ListsConfig
	Sessions SessionConfig
	Invites  InviteConfig
	Exports  ExportConfig
}

// UpstreamConfig points the gateway at the core membership API and tunes
// its retry behaviour.
type UpstreamConfig struct {
	BaseURL       string
	Timeout       time.Duration
	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	RetryBackoff  bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
	Issuer            string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SearchConfig tunes free-text search coalescing for list views.
type SearchConfig struct {
	DebounceSettle time.Duration
}

// RosterConfig governs the pending-review surface and its stats cache.
type RosterConfig struct {
	StatsCacheTTL   time.Duration
	DefaultPageSize int
}

// ListsConfig tunes the generic admin list views. BulkFetchLimit caps the
// page requested upstream by views that filter client-side.
type ListsConfig struct {
	BulkFetchLimit  int
	DefaultPageSize int
}

// SessionConfig controls portal session storage and the revocation
// broadcast channel observed by every running instance.
type SessionConfig struct {
	TTL     time.Duration
	Channel string
}

// InviteConfig controls admin user invitations.
type InviteConfig struct {
	TTL time.Duration
}

// ExportConfig configures asynchronous roster report generation.
type ExportConfig struct {
	Enabled           bool
	StorageDir        string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
	CleanupInterval   time.Duration
	WorkerConcurrency int
	WorkerRetries     int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Upstream = UpstreamConfig{
		BaseURL:       strings.TrimRight(v.GetString("UPSTREAM_BASE_URL"), "/"),
		Timeout:       parseDuration(v.GetString("UPSTREAM_TIMEOUT"), 10*time.Second),
		MaxRetries:    v.GetInt("UPSTREAM_MAX_RETRIES"),
		RetryDelay:    parseDuration(v.GetString("UPSTREAM_RETRY_DELAY"), 250*time.Millisecond),
		MaxRetryDelay: parseDuration(v.GetString("UPSTREAM_MAX_RETRY_DELAY"), 5*time.Second),
		RetryBackoff:  v.GetBool("UPSTREAM_RETRY_BACKOFF"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
		Issuer:            v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Search = SearchConfig{
		DebounceSettle: parseDuration(v.GetString("SEARCH_DEBOUNCE_SETTLE"), 400*time.Millisecond),
	}

	cfg.Roster = RosterConfig{
		StatsCacheTTL:   parseDuration(v.GetString("ROSTER_STATS_CACHE_TTL"), 2*time.Minute),
		DefaultPageSize: v.GetInt("ROSTER_DEFAULT_PAGE_SIZE"),
	}

	cfg.Lists = ListsConfig{
		BulkFetchLimit:  v.GetInt("LISTS_BULK_FETCH_LIMIT"),
		DefaultPageSize: v.GetInt("LISTS_DEFAULT_PAGE_SIZE"),
	}

	cfg.Sessions = SessionConfig{
		TTL:     parseDuration(v.GetString("SESSION_TTL"), 24*time.Hour),
		Channel: v.GetString("SESSION_REVOKE_CHANNEL"),
	}

	cfg.Invites = InviteConfig{
		TTL: parseDuration(v.GetString("INVITE_TTL"), 72*time.Hour),
	}

	cfg.Exports = ExportConfig{
		Enabled:           v.GetBool("ENABLE_EXPORTS"),
		StorageDir:        v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret:   v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval:   parseDuration(v.GetString("EXPORTS_CLEANUP_INTERVAL"), time.Hour),
		WorkerConcurrency: v.GetInt("EXPORTS_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("EXPORTS_WORKER_RETRIES"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("UPSTREAM_BASE_URL", "http://localhost:4000/api")
	v.SetDefault("UPSTREAM_TIMEOUT", "10s")
	v.SetDefault("UPSTREAM_MAX_RETRIES", 3)
	v.SetDefault("UPSTREAM_RETRY_DELAY", "250ms")
	v.SetDefault("UPSTREAM_MAX_RETRY_DELAY", "5s")
	v.SetDefault("UPSTREAM_RETRY_BACKOFF", true)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")
	v.SetDefault("JWT_ISSUER", "scout-portal")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SEARCH_DEBOUNCE_SETTLE", "400ms")

	v.SetDefault("ROSTER_STATS_CACHE_TTL", "2m")
	v.SetDefault("ROSTER_DEFAULT_PAGE_SIZE", 10)

	v.SetDefault("LISTS_BULK_FETCH_LIMIT", 500)
	v.SetDefault("LISTS_DEFAULT_PAGE_SIZE", 20)

	v.SetDefault("SESSION_TTL", "24h")
	v.SetDefault("SESSION_REVOKE_CHANNEL", "portal:session:revoked")

	v.SetDefault("INVITE_TTL", "72h")

	v.SetDefault("ENABLE_EXPORTS", false)
	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("EXPORTS_CLEANUP_INTERVAL", "1h")
	v.SetDefault("EXPORTS_WORKER_CONCURRENCY", 1)
	v.SetDefault("EXPORTS_WORKER_RETRIES", 3)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
