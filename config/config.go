package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Pipeline  PipelineConfig
	Logging   LoggingConfig
	Metrics   MetricsConfig
	API       APIConfig
	Admin     AdminConfig
	Redis     RedisConfig
	Extractor ExtractorConfig
	Sources   []SourceConfig
}

type ServerConfig struct {
	Host                    string
	Port                    int
	ReadTimeout             time.Duration
	WriteTimeout            time.Duration
	IdleTimeout             time.Duration
	GracefulShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

type PipelineConfig struct {
	Enabled     bool
	RateLimit   float64
	WorkerCount int
	BatchSize   int
	// RunTimeout caps a single fetch-classify-store pass for one source.
	RunTimeout time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string // json or text
}

type MetricsConfig struct {
	Enabled bool
	Port    int
	Path    string
}

type APIConfig struct {
	RateLimitRPM   int
	AllowedOrigins []string
	MaxBodyBytes   int64
	DefaultLimit   int
	MaxLimit       int
	// AgencyID is stamped on the GTFS-Realtime alerts feed.
	AgencyID       string
}

type RedisConfig struct {
	URL       string
	Password  string
	DB        int
	KeyPrefix string
	// DedupTTL is how long a processed message id is remembered.
	DedupTTL time.Duration
}

type AdminConfig struct {
	// SecretHash is a bcrypt hash of the admin secret. When empty and
	// Secret is set, the hash is derived at startup.
	SecretHash string
	Secret     string
}

// ExtractorConfig tunes message classification.
type ExtractorConfig struct {
	Timezone           string        `yaml:"timezone" validate:"required"`
	PlausibilityWindow time.Duration `yaml:"plausibility_window" validate:"gt=0"`
	IgnoredMessageIDs  []uint64      `yaml:"ignored_message_ids"`
	TrainLineCodes     []string      `yaml:"train_line_codes" validate:"dive,required"`
	IgnoredPrefixes    []string      `yaml:"ignored_prefixes" validate:"dive,required"`
	Workers            int           `yaml:"workers" validate:"gte=1"`
}

// SourceConfig describes one message source.
type SourceConfig struct {
	Name     string        `yaml:"name" validate:"required"`
	Type     string        `yaml:"type" validate:"required,oneof=file http"`
	Path     string        `yaml:"path" validate:"required_if=Type file"`
	URL      string        `yaml:"url" validate:"required_if=Type http,omitempty,url"`
	Interval time.Duration `yaml:"interval" validate:"gte=0"`
}

// Load loads configuration from environment variables with sensible defaults,
// then applies the YAML file named by CONFIG_FILE if set.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:                    getEnv("SERVER_HOST", "0.0.0.0"),
			Port:                    getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:             getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:            getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:             getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			GracefulShutdownTimeout: getEnvDuration("SERVER_GRACEFUL_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvDuration("DB_MAX_CONN_LIFETIME", 1*time.Hour),
			MaxConnIdleTime: getEnvDuration("DB_MAX_CONN_IDLE_TIME", 30*time.Minute),
		},
		Pipeline: PipelineConfig{
			Enabled:     getEnvBool("PIPELINE_ENABLED", true),
			RateLimit:   getEnvFloat("PIPELINE_RATE_LIMIT", 5.0),
			WorkerCount: getEnvInt("PIPELINE_WORKER_COUNT", 4),
			BatchSize:   getEnvInt("PIPELINE_BATCH_SIZE", 100),
			RunTimeout:  getEnvDuration("PIPELINE_RUN_TIMEOUT", 2*time.Minute),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Port:    getEnvInt("METRICS_PORT", 9090),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
		API: APIConfig{
			RateLimitRPM:   getEnvInt("API_RATE_LIMIT_RPM", 120),
			AllowedOrigins: getEnvList("API_ALLOWED_ORIGINS", []string{"*"}),
			MaxBodyBytes:   int64(getEnvInt("API_MAX_BODY_BYTES", 1<<20)),
			DefaultLimit:   getEnvInt("API_DEFAULT_LIMIT", 100),
			MaxLimit:       getEnvInt("API_MAX_LIMIT", 1000),
			AgencyID:       getEnv("GTFS_AGENCY_ID", "metlink"),
		},
		Redis: RedisConfig{
			URL:       getEnv("REDIS_URL", ""),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvInt("REDIS_DB", 0),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "transit"),
			DedupTTL:  getEnvDuration("REDIS_DEDUP_TTL", 14*24*time.Hour),
		},
		Admin: AdminConfig{
			SecretHash: getEnv("ADMIN_SECRET_HASH", ""),
			Secret:     getEnv("ADMIN_SECRET", ""),
		},
		Extractor: ExtractorConfig{
			Timezone:           getEnv("EXTRACTOR_TIMEZONE", "Pacific/Auckland"),
			PlausibilityWindow: getEnvDuration("EXTRACTOR_PLAUSIBILITY_WINDOW", 2*time.Hour),
			IgnoredMessageIDs:  getEnvUint64List("EXTRACTOR_IGNORED_MESSAGE_IDS", nil),
			TrainLineCodes:     getEnvList("EXTRACTOR_TRAIN_LINE_CODES", nil),
			IgnoredPrefixes:    getEnvList("EXTRACTOR_IGNORED_PREFIXES", nil),
			Workers:            getEnvInt("EXTRACTOR_WORKERS", 4),
		},
	}

	if path := getEnv("SOURCE_FILE", ""); path != "" {
		cfg.Sources = append(cfg.Sources, SourceConfig{
			Name:     getEnv("SOURCE_FILE_NAME", "message-cache"),
			Type:     "file",
			Path:     path,
			Interval: getEnvDuration("SOURCE_INTERVAL", 15*time.Minute),
		})
	}
	if url := getEnv("SOURCE_URL", ""); url != "" {
		cfg.Sources = append(cfg.Sources, SourceConfig{
			Name:     getEnv("SOURCE_URL_NAME", "message-feed"),
			Type:     "http",
			URL:      url,
			Interval: getEnvDuration("SOURCE_INTERVAL", 15*time.Minute),
		})
	}

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}
	if c.Pipeline.WorkerCount < 1 {
		return fmt.Errorf("pipeline worker count must be at least 1")
	}

	v := validator.New()
	if err := v.Struct(c.Extractor); err != nil {
		return fmt.Errorf("extractor: %w", err)
	}
	if _, err := time.LoadLocation(c.Extractor.Timezone); err != nil {
		return fmt.Errorf("extractor timezone %q: %w", c.Extractor.Timezone, err)
	}

	names := make(map[string]bool, len(c.Sources))
	for _, s := range c.Sources {
		if err := v.Struct(s); err != nil {
			return fmt.Errorf("source %q: %w", s.Name, err)
		}
		if names[s.Name] {
			return fmt.Errorf("duplicate source name %q", s.Name)
		}
		names[s.Name] = true
	}
	return nil
}

// Helper functions for environment variable parsing
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
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

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvUint64List(key string, defaultValue []uint64) []uint64 {
	parts := getEnvList(key, nil)
	if parts == nil {
		return defaultValue
	}
	out := make([]uint64, 0, len(parts))
	for _, part := range parts {
		parsed, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return defaultValue
		}
		out = append(out, parsed)
	}
	return out
}
