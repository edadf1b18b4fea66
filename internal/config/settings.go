package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/langerlad/bulk-ip-app/internal/support"
)

const (
	DefaultAPIURL         = "http://localhost:5000/api"
	DefaultRequestTimeout = 30 * time.Second
	DefaultPort           = 8084
	DefaultSessionTTL     = 12 * time.Hour

	DraftStoreMemory   = "memory"
	DraftStoreRedis    = "redis"
	DraftStoreSQLite   = "sqlite"
	DraftStorePostgres = "postgres"
)

type Config struct {
	Port       int
	Production bool

	Backend struct {
		BaseURL string
		// APIKey is sent as the "Key" header. Never log or render it.
		APIKey  string
		Timeout time.Duration
		Proxy   string
	}

	Draft struct {
		Store       string
		RedisURL    string
		SQLitePath  string
		DatabaseURL string
		// EncryptionKey seals drafts in redis, sqlite and postgres stores.
		EncryptionKey string
	}

	Session struct {
		Secret string
		TTL    time.Duration
	}

	GeoLite struct {
		CountryDB  string
		LicenseKey string
	}

	DisplayTimezone string
}

var (
	configValue atomic.Value

	InProductionMode bool
)

func init() {
	configValue.Store(Config{})
}

// Load reads the configuration from the environment. godotenv has usually
// populated it from .env by the time this runs.
func Load() Config {
	var cfg Config

	cfg.Port = support.GetEnvInt("PORT", DefaultPort)
	cfg.Production = support.GetEnvBool("PRODUCTION", false)

	cfg.Backend.BaseURL = strings.TrimRight(support.GetEnv("API_URL", DefaultAPIURL), "/")
	cfg.Backend.APIKey = strings.TrimSpace(support.GetEnv("API_KEY", ""))
	cfg.Backend.Timeout = support.GetEnvDuration("REQUEST_TIMEOUT", DefaultRequestTimeout)
	cfg.Backend.Proxy = strings.TrimSpace(support.GetEnv("BACKEND_PROXY", ""))

	cfg.Draft.Store = strings.ToLower(strings.TrimSpace(support.GetEnv("DRAFT_STORE", DraftStoreMemory)))
	cfg.Draft.RedisURL = support.GetEnv("REDIS_URL", "redis://localhost:6379/0")
	cfg.Draft.SQLitePath = support.GetEnv("DRAFT_DB_PATH", "data/drafts.db")
	cfg.Draft.DatabaseURL = support.GetEnv("DATABASE_URL", "")
	cfg.Draft.EncryptionKey = strings.TrimSpace(support.GetEnv("DRAFT_ENCRYPTION_KEY", ""))

	cfg.Session.Secret = support.GetEnv("SESSION_SECRET", "")
	cfg.Session.TTL = support.GetEnvDuration("SESSION_TTL", DefaultSessionTTL)

	cfg.GeoLite.CountryDB = strings.TrimSpace(support.GetEnv("GEOLITE_COUNTRY_DB", ""))
	cfg.GeoLite.LicenseKey = strings.TrimSpace(support.GetEnv("GEOLITE_LICENSE_KEY", ""))

	cfg.DisplayTimezone = support.GetEnv("DISPLAY_TIMEZONE", "UTC")

	return cfg
}

func (c Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("config: invalid port %d", c.Port))
	}

	if u, err := url.Parse(c.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("config: API_URL must be an absolute URL, got %q", c.Backend.BaseURL))
	}

	switch c.Draft.Store {
	case DraftStoreMemory, DraftStoreRedis, DraftStoreSQLite:
	case DraftStorePostgres:
		if c.Draft.DatabaseURL == "" {
			errs = append(errs, errors.New("config: DATABASE_URL is required for the postgres draft store"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown draft store %q", c.Draft.Store))
	}

	if _, err := time.LoadLocation(c.DisplayTimezone); err != nil {
		errs = append(errs, fmt.Errorf("config: invalid DISPLAY_TIMEZONE: %w", err))
	}

	if c.Production && c.Session.Secret == "" {
		errs = append(errs, errors.New("config: SESSION_SECRET must be set in production"))
	}

	return errors.Join(errs...)
}

// DisplayLocation falls back to UTC when the configured zone cannot be loaded.
func (c Config) DisplayLocation() *time.Location {
	loc, err := time.LoadLocation(c.DisplayTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func SetConfig(cfg Config) {
	configValue.Store(cfg)
	log.Debug("Configuration applied", "api_url", cfg.Backend.BaseURL, "draft_store", cfg.Draft.Store, "api_key_set", cfg.Backend.APIKey != "")
}

func GetConfig() Config {
	return configValue.Load().(Config)
}

func SetProductionMode(productionMode bool) {
	InProductionMode = productionMode
}
