// Package config provides application configuration loaded from environment variables.
// Use the package-level Get() function to obtain the singleton Config instance.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sub-config structs
// ──────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string        // e.g. "8080"
	Env                string        // "development" | "production"
	ReadTimeout        time.Duration // default 10s
	WriteTimeout       time.Duration // default 10s
	RateLimitRPS       int           // per-IP requests per second; 0 disables
	AllowedOrigins     []string      // CORS and WS origins; empty = allow all
	AdminResetDisabled bool          // hide POST /api/admin/reset

	BackofficePort       string   // operator listener; empty disables it
	BackofficeAllowedIPs []string // empty = allow all
}

// Storage backends.
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// StoreConfig selects and configures the snapshot backend.
type StoreConfig struct {
	Backend  string // file | memory | postgres | redis
	Key      string // document key, default "opportunity-demo-state-v1"
	FilePath string // used by the file backend

	DSN             string        // postgres DSN
	MaxOpenConns    int           // default 10
	MaxIdleConns    int           // default 5
	ConnMaxLifetime time.Duration // default 5m

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// EngineConfig holds market simulation parameters.
type EngineConfig struct {
	DefaultExecutionPrice   decimal.Decimal // default 0.6
	MinExecutionPrice       decimal.Decimal // default 0.01
	DefaultWindow           time.Duration   // default 14 days
	DefaultCollateralSymbol string          // default "USDC"
	CatalogPath             string          // optional seed catalog (.toml or .json)
	AutoLockExpired         bool            // lock Trading markets whose window has closed
	AutoLockInterval        time.Duration   // default 30s
}

// ArchiveConfig holds S3 snapshot archive settings. Archiving is off when
// Bucket is empty.
type ArchiveConfig struct {
	Bucket          string
	Region          string
	Endpoint        string // custom endpoint for S3-compatible stores
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string        // default "snapshots/"
	Interval        time.Duration // default 5m
	UsePathStyle    bool
}

// Enabled reports whether snapshot archiving is configured.
func (a ArchiveConfig) Enabled() bool { return a.Bucket != "" }

// EventsConfig holds NATS publishing settings. Publishing is off when URL is
// empty.
type EventsConfig struct {
	NATSURL       string
	SubjectPrefix string // default "opportunity.market"
}

// ──────────────────────────────────────────────────────────────────────────────
// Top-level Config
// ──────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object for the entire application.
type Config struct {
	Server  ServerConfig
	Store   StoreConfig
	Engine  EngineConfig
	Archive ArchiveConfig
	Events  EventsConfig
}

// IsProd returns true when running in the production environment.
func (c *Config) IsProd() bool {
	return c.Server.Env == "production"
}

// Validate checks that all required configuration values are present and valid.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Backend {
	case BackendFile:
		if c.Store.FilePath == "" {
			errs = append(errs, errors.New("STORE_FILE_PATH must be set for the file backend"))
		}
	case BackendMemory:
	case BackendPostgres:
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("DATABASE_DSN must be set for the postgres backend"))
		}
	case BackendRedis:
		if c.Store.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR must be set for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND %q is not one of file|memory|postgres|redis", c.Store.Backend))
	}
	if c.Store.Key == "" {
		errs = append(errs, errors.New("STORE_KEY must not be empty"))
	}

	if !c.Engine.MinExecutionPrice.IsPositive() {
		errs = append(errs, fmt.Errorf("MIN_EXECUTION_PRICE must be positive, got %s", c.Engine.MinExecutionPrice))
	}
	if c.Engine.DefaultExecutionPrice.LessThan(c.Engine.MinExecutionPrice) {
		errs = append(errs, fmt.Errorf(
			"DEFAULT_EXECUTION_PRICE %s is below MIN_EXECUTION_PRICE %s",
			c.Engine.DefaultExecutionPrice, c.Engine.MinExecutionPrice,
		))
	}
	if c.Engine.DefaultWindow <= 0 {
		errs = append(errs, errors.New("DEFAULT_WINDOW must be positive"))
	}
	if c.Engine.AutoLockExpired && c.Engine.AutoLockInterval <= 0 {
		errs = append(errs, errors.New("AUTO_LOCK_INTERVAL must be positive when AUTO_LOCK_EXPIRED is set"))
	}

	if c.Archive.Enabled() && c.Archive.Interval <= 0 {
		errs = append(errs, errors.New("ARCHIVE_INTERVAL must be positive when ARCHIVE_BUCKET is set"))
	}
	if c.Server.BackofficePort != "" && c.Server.BackofficePort == c.Server.Port {
		errs = append(errs, errors.New("BACKOFFICE_PORT must differ from SERVER_PORT"))
	}
	if c.Server.RateLimitRPS < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS must not be negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Singleton
// ──────────────────────────────────────────────────────────────────────────────

var (
	instance *Config
	once     sync.Once
	loadErr  error
)

// Get returns the singleton Config, loading it once from environment variables.
// A .env file in the working directory is honoured when present.
// Panics if loading fails. Call this early in main() to catch misconfigurations
// at startup.
func Get() *Config {
	once.Do(func() {
		_ = godotenv.Load()
		instance, loadErr = Load()
	})
	if loadErr != nil {
		panic(fmt.Sprintf("config: failed to load: %v", loadErr))
	}
	return instance
}

// MustLoad loads and validates configuration. Intended for use in main().
// Panics on any error so misconfiguration is caught immediately at boot.
func MustLoad() *Config {
	cfg := Get()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: validation failed: %v", err))
	}
	return cfg
}

// ──────────────────────────────────────────────────────────────────────────────
// Loader
// ──────────────────────────────────────────────────────────────────────────────

// Load reads configuration from the environment without caching it.
func Load() (*Config, error) {
	cfg := &Config{}

	// ── Server ────────────────────────────────────────────────────────────────
	rps, err := getInt("RATE_LIMIT_RPS", 20)
	if err != nil {
		return nil, fmt.Errorf("RATE_LIMIT_RPS: %w", err)
	}
	cfg.Server = ServerConfig{
		Port:               getEnv("SERVER_PORT", "8080"),
		Env:                getEnv("ENVIRONMENT", "development"),
		ReadTimeout:        getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:       getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
		RateLimitRPS:       rps,
		AllowedOrigins:     getList("ALLOWED_ORIGINS"),
		AdminResetDisabled: getBool("ADMIN_RESET_DISABLED", false),

		BackofficePort:       os.Getenv("BACKOFFICE_PORT"),
		BackofficeAllowedIPs: getList("BACKOFFICE_ALLOWED_IPS"),
	}

	// ── Store ─────────────────────────────────────────────────────────────────
	maxOpen, err := getInt("DB_MAX_OPEN_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_OPEN_CONNS: %w", err)
	}
	maxIdle, err := getInt("DB_MAX_IDLE_CONNS", 5)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_IDLE_CONNS: %w", err)
	}
	redisDB, err := getInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("REDIS_DB: %w", err)
	}
	cfg.Store = StoreConfig{
		Backend:         strings.ToLower(getEnv("STORE_BACKEND", BackendFile)),
		Key:             getEnv("STORE_KEY", "opportunity-demo-state-v1"),
		FilePath:        getEnv("STORE_FILE_PATH", "data/opportunity-demo-state-v1.json"),
		DSN:             os.Getenv("DATABASE_DSN"),
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         redisDB,
	}

	// ── Engine ────────────────────────────────────────────────────────────────
	defPrice, err := getDecimal("DEFAULT_EXECUTION_PRICE", "0.6")
	if err != nil {
		return nil, fmt.Errorf("DEFAULT_EXECUTION_PRICE: %w", err)
	}
	minPrice, err := getDecimal("MIN_EXECUTION_PRICE", "0.01")
	if err != nil {
		return nil, fmt.Errorf("MIN_EXECUTION_PRICE: %w", err)
	}
	cfg.Engine = EngineConfig{
		DefaultExecutionPrice:   defPrice,
		MinExecutionPrice:       minPrice,
		DefaultWindow:           getDuration("DEFAULT_WINDOW", 14*24*time.Hour),
		DefaultCollateralSymbol: getEnv("DEFAULT_COLLATERAL_SYMBOL", "USDC"),
		CatalogPath:             os.Getenv("SEED_CATALOG_PATH"),
		AutoLockExpired:         getBool("AUTO_LOCK_EXPIRED", false),
		AutoLockInterval:        getDuration("AUTO_LOCK_INTERVAL", 30*time.Second),
	}

	// ── Archive ───────────────────────────────────────────────────────────────
	cfg.Archive = ArchiveConfig{
		Bucket:          os.Getenv("ARCHIVE_BUCKET"),
		Region:          getEnv("ARCHIVE_REGION", "us-east-1"),
		Endpoint:        os.Getenv("ARCHIVE_ENDPOINT"),
		AccessKeyID:     os.Getenv("ARCHIVE_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("ARCHIVE_SECRET_ACCESS_KEY"),
		Prefix:          getEnv("ARCHIVE_PREFIX", "snapshots/"),
		Interval:        getDuration("ARCHIVE_INTERVAL", 5*time.Minute),
		UsePathStyle:    getBool("ARCHIVE_USE_PATH_STYLE", false),
	}

	// ── Events ────────────────────────────────────────────────────────────────
	cfg.Events = EventsConfig{
		NATSURL:       os.Getenv("NATS_URL"),
		SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "opportunity.market"),
	}

	return cfg, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helper functions
// ──────────────────────────────────────────────────────────────────────────────

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", v)
	}
	return n, nil
}

func getDecimal(key, defaultVal string) (decimal.Decimal, error) {
	v := getEnv(key, defaultVal)
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal %q", v)
	}
	return d, nil
}

// getBool accepts anything strconv.ParseBool does; unparsable values fall
// back to defaultVal.
func getBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// getDuration parses an env var as a Go duration string (e.g. "15m", "2s").
// Falls back to defaultVal if the variable is unset or empty.
func getDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// Log warning and fall back to default; do not crash on parse error
		return defaultVal
	}
	return d
}
