// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Environment constants
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// Config holds all application configuration.
//
// Variables are named SECTION_FIELD, e.g. SERVER_PORT, REDIS_HOST,
// INGEST_SHEET_URL.
type Config struct {
	App       AppConfig       `envconfig:"APP"`
	Server    ServerConfig    `envconfig:"SERVER"`
	Redis     RedisConfig     `envconfig:"REDIS"`
	Log       LogConfig       `envconfig:"LOG"`
	RateLimit RateLimitConfig `envconfig:"RATE_LIMIT"`
	CORS      CORSConfig      `envconfig:"CORS"`
	Ingest    IngestConfig    `envconfig:"INGEST"`
	Telemetry TelemetryConfig `envconfig:"TELEMETRY"`
	Engine    EngineConfig    `envconfig:"ENGINE"`
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Name  string `envconfig:"NAME" default:"armorlens"`
	Env   string `envconfig:"ENV" default:"development"`
	Debug bool   `envconfig:"DEBUG" default:"false"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"30s"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	// MaxBodySize applies to JSON bodies. CSV uploads use Ingest.MaxCSVBytes.
	MaxBodySize int64 `envconfig:"MAX_BODY_SIZE" default:"1048576"`
}

// RedisConfig holds Redis configuration for the snapshot store. With
// Enabled false the dataset lives only in memory.
type RedisConfig struct {
	Enabled       bool          `envconfig:"ENABLED" default:"false"`
	Host          string        `envconfig:"HOST" default:"localhost"`
	Port          int           `envconfig:"PORT" default:"6379"`
	Password      string        `envconfig:"PASSWORD"`
	DB            int           `envconfig:"DB" default:"0"`
	PoolSize      int           `envconfig:"POOL_SIZE" default:"10"`
	MinIdleConns  int           `envconfig:"MIN_IDLE_CONNS" default:"2"`
	DialTimeout   time.Duration `envconfig:"DIAL_TIMEOUT" default:"5s"`
	ReadTimeout   time.Duration `envconfig:"READ_TIMEOUT" default:"3s"`
	WriteTimeout  time.Duration `envconfig:"WRITE_TIMEOUT" default:"3s"`
	TLSEnabled    bool          `envconfig:"TLS_ENABLED" default:"false"`
	TLSSkipVerify bool          `envconfig:"TLS_SKIP_VERIFY" default:"false"`
	MaxRetries    int           `envconfig:"MAX_RETRIES" default:"3"`
	MinRetryDelay time.Duration `envconfig:"MIN_RETRY_DELAY" default:"100ms"`
	MaxRetryDelay time.Duration `envconfig:"MAX_RETRY_DELAY" default:"3s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Format string `envconfig:"FORMAT" default:"json"`

	SamplingEnabled   bool    `envconfig:"SAMPLING_ENABLED" default:"false"`
	SamplingThreshold int     `envconfig:"SAMPLING_THRESHOLD" default:"100"`
	SamplingRate      float64 `envconfig:"SAMPLING_RATE" default:"0.1"`
	ErrorSamplingRate float64 `envconfig:"ERROR_SAMPLING_RATE" default:"1.0"`

	SkipHealthLogs     bool `envconfig:"SKIP_HEALTH" default:"true"`
	SlowRequestSeconds int  `envconfig:"SLOW_REQUEST_SECONDS" default:"5"`
}

// RateLimitConfig holds per-client rate limiting configuration.
type RateLimitConfig struct {
	Enabled         bool          `envconfig:"ENABLED" default:"true"`
	RequestsPerSec  float64       `envconfig:"RPS" default:"20"`
	Burst           int           `envconfig:"BURST" default:"40"`
	CleanupInterval time.Duration `envconfig:"CLEANUP_INTERVAL" default:"1m"`

	// LoadsPerMin caps dataset loads per client IP.
	LoadsPerMin int `envconfig:"LOADS_PER_MIN" default:"10"`
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`
	AllowedMethods []string `envconfig:"ALLOWED_METHODS" default:"GET,POST,DELETE,OPTIONS"`
	AllowedHeaders []string `envconfig:"ALLOWED_HEADERS" default:"Accept,Content-Type,Content-Encoding,X-Request-ID"`
	MaxAge         int      `envconfig:"MAX_AGE" default:"86400"`
}

// IngestConfig controls where rule inventories come from and how long they
// are kept.
type IngestConfig struct {
	// SheetURL is loaded at startup when no snapshot exists.
	SheetURL string `envconfig:"SHEET_URL"`

	// RefreshSchedule is a cron spec for re-fetching the stored source.
	// Empty disables scheduled refresh.
	RefreshSchedule string        `envconfig:"REFRESH_SCHEDULE"`
	FetchTimeout    time.Duration `envconfig:"FETCH_TIMEOUT" default:"30s"`
	MaxCSVBytes     int64         `envconfig:"MAX_CSV_BYTES" default:"33554432"`
	SnapshotTTL     time.Duration `envconfig:"SNAPSHOT_TTL" default:"168h"`

	// AllowPrivateHosts lets the sheet fetcher reach loopback and private
	// networks. Never enable in production.
	AllowPrivateHosts bool `envconfig:"ALLOW_PRIVATE_HOSTS" default:"false"`

	// FetchLimit caps upstream fetches per source per FetchWindow across
	// replicas. Needs Redis; ignored otherwise.
	FetchLimit  int           `envconfig:"FETCH_LIMIT" default:"12"`
	FetchWindow time.Duration `envconfig:"FETCH_WINDOW" default:"1m"`

	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY"`
}

// TelemetryConfig holds OpenTelemetry tracing configuration.
type TelemetryConfig struct {
	Enabled     bool    `envconfig:"ENABLED" default:"false"`
	Endpoint    string  `envconfig:"ENDPOINT" default:"localhost:4318"`
	ServiceName string  `envconfig:"SERVICE_NAME" default:"armorlens"`
	Insecure    bool    `envconfig:"INSECURE" default:"true"`
	SampleRatio float64 `envconfig:"SAMPLE_RATIO" default:"1.0"`
}

// EngineConfig tunes the query engine's presentation defaults.
type EngineConfig struct {
	PageSize    int `envconfig:"PAGE_SIZE" default:"25"`
	TopProjects int `envconfig:"TOP_PROJECTS" default:"10"`
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.validateBasic(); err != nil {
		return err
	}
	if c.IsProduction() {
		return c.validateProduction()
	}
	return nil
}

func (c *Config) validateBasic() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if err := c.validateLog(); err != nil {
		return err
	}
	if err := c.validateIngest(); err != nil {
		return err
	}
	if c.Engine.PageSize < 1 || c.Engine.PageSize > 500 {
		return fmt.Errorf("ENGINE_PAGE_SIZE must be between 1 and 500, got %d", c.Engine.PageSize)
	}
	if c.Engine.TopProjects < 1 {
		return fmt.Errorf("ENGINE_TOP_PROJECTS must be positive, got %d", c.Engine.TopProjects)
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSec <= 0 || c.RateLimit.Burst < 1) {
		return fmt.Errorf("rate limit requires positive RATE_LIMIT_RPS and RATE_LIMIT_BURST")
	}
	if c.RateLimit.Enabled && c.RateLimit.LoadsPerMin < 1 {
		return fmt.Errorf("RATE_LIMIT_LOADS_PER_MIN must be positive, got %d", c.RateLimit.LoadsPerMin)
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("TELEMETRY_SAMPLE_RATIO must be between 0 and 1, got %v", c.Telemetry.SampleRatio)
	}
	return nil
}

func (c *Config) validateLog() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL: %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid LOG_FORMAT: %q (must be json or text)", c.Log.Format)
	}
	if c.Log.SamplingRate < 0 || c.Log.SamplingRate > 1 {
		return fmt.Errorf("LOG_SAMPLING_RATE must be between 0 and 1, got %v", c.Log.SamplingRate)
	}
	if c.Log.ErrorSamplingRate < 0 || c.Log.ErrorSamplingRate > 1 {
		return fmt.Errorf("LOG_ERROR_SAMPLING_RATE must be between 0 and 1, got %v", c.Log.ErrorSamplingRate)
	}
	return nil
}

func (c *Config) validateIngest() error {
	if c.Ingest.SheetURL != "" {
		u, err := url.Parse(c.Ingest.SheetURL)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			return fmt.Errorf("INGEST_SHEET_URL must be an http or https URL")
		}
	}
	if c.Ingest.RefreshSchedule != "" && c.Ingest.SheetURL == "" && !c.Redis.Enabled {
		return fmt.Errorf("INGEST_REFRESH_SCHEDULE needs INGEST_SHEET_URL or a Redis snapshot store to know what to refresh")
	}
	if c.Ingest.FetchTimeout <= 0 {
		return fmt.Errorf("INGEST_FETCH_TIMEOUT must be positive")
	}
	if c.Ingest.MaxCSVBytes < 1024 {
		return fmt.Errorf("INGEST_MAX_CSV_BYTES too small: %d (min 1024)", c.Ingest.MaxCSVBytes)
	}
	if c.Ingest.FetchLimit < 1 || c.Ingest.FetchWindow <= 0 {
		return fmt.Errorf("INGEST_FETCH_LIMIT and INGEST_FETCH_WINDOW must be positive")
	}
	if c.Ingest.SnapshotTTL < time.Minute {
		return fmt.Errorf("INGEST_SNAPSHOT_TTL too short: %v (min 1m)", c.Ingest.SnapshotTTL)
	}
	return nil
}

func (c *Config) validateProduction() error {
	if c.App.Debug {
		return fmt.Errorf("APP_DEBUG must be false in production")
	}
	if c.Ingest.AllowPrivateHosts {
		return fmt.Errorf("INGEST_ALLOW_PRIVATE_HOSTS must be false in production")
	}
	for _, origin := range c.CORS.AllowedOrigins {
		if origin == "*" {
			return fmt.Errorf("CORS wildcard origin is not allowed in production")
		}
	}
	if c.Redis.Enabled {
		return c.validateProductionRedis()
	}
	return nil
}

func (c *Config) validateProductionRedis() error {
	if c.Redis.Password == "" {
		return fmt.Errorf("redis password must be set in production")
	}
	if !c.Redis.TLSEnabled {
		return fmt.Errorf("redis TLS must be enabled in production")
	}
	if c.Redis.TLSSkipVerify {
		return fmt.Errorf("redis TLS skip verify must be false in production")
	}
	if c.Redis.MaxRetries < 1 || c.Redis.MaxRetries > 10 {
		return fmt.Errorf("redis max retries must be between 1 and 10, got %d", c.Redis.MaxRetries)
	}
	return nil
}

// Addr returns the Redis address.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Addr returns the HTTP listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDevelopment returns true in the development environment.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == EnvDevelopment
}

// IsProduction returns true in the production environment.
func (c *Config) IsProduction() bool {
	return c.App.Env == EnvProduction
}
