package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"yzyvault/storage"
	"yzyvault/storage/journal"
)

const (
	defaultListen          = ":8645"
	defaultShutdownTimeout = 10 * time.Second
	defaultClockSkew       = 2 * time.Minute
	defaultStreamBuffer    = 256
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	raw := strings.TrimSpace(value.Value)
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures the runtime settings for the vault daemon.
type Config struct {
	ListenAddress   string          `yaml:"listen"`
	Environment     string          `yaml:"environment"`
	Genesis         string          `yaml:"genesis"`
	ShutdownTimeout Duration        `yaml:"shutdown_timeout"`
	Storage         StorageConfig   `yaml:"storage"`
	Journal         JournalConfig   `yaml:"journal"`
	Auth            AuthConfig      `yaml:"auth"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
	Logging         LoggingConfig   `yaml:"logging"`
	Telemetry       TelemetryConfig `yaml:"telemetry"`
	Stream          StreamConfig    `yaml:"stream"`
}

// StorageConfig selects the ledger database.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// JournalConfig configures the SQL event journal. An empty DSN disables it.
type JournalConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// Enabled reports whether a journal database is configured.
func (cfg JournalConfig) Enabled() bool { return cfg.DSN != "" }

// AuthConfig configures JWT caller authentication.
type AuthConfig struct {
	HMACSecret     string   `yaml:"hmac_secret"`
	HMACSecretFile string   `yaml:"hmac_secret_file"`
	HMACSecretEnv  string   `yaml:"hmac_secret_env"`
	Issuer         string   `yaml:"issuer"`
	Audience       string   `yaml:"audience"`
	AnonymousReads bool     `yaml:"anonymous_reads"`
	ClockSkew      Duration `yaml:"clock_skew"`
}

// RateLimitConfig bounds per-client request rates. Zero disables limiting.
type RateLimitConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

// LoggingConfig selects the log level and optional rotated file output.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// TelemetryConfig toggles the OTLP exporters. Endpoint and headers may also be
// supplied through the standard OTEL_EXPORTER_OTLP_* variables.
type TelemetryConfig struct {
	Metrics  bool   `yaml:"metrics"`
	Traces   bool   `yaml:"traces"`
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

// StreamConfig tunes the websocket event stream.
type StreamConfig struct {
	Buffer       int      `yaml:"buffer"`
	WriteTimeout Duration `yaml:"write_timeout"`
}

// Load reads the YAML configuration from disk and validates the result.
func Load(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		return Config{}, fmt.Errorf("config path required")
	}
	file, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() {
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = defaultListen
	}
	cfg.Environment = strings.TrimSpace(cfg.Environment)
	cfg.Genesis = strings.TrimSpace(cfg.Genesis)
	if cfg.ShutdownTimeout.Duration <= 0 {
		cfg.ShutdownTimeout.Duration = defaultShutdownTimeout
	}
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = storage.BackendLevelDB
	}
	cfg.Storage.Path = strings.TrimSpace(cfg.Storage.Path)
	cfg.Journal.Driver = strings.ToLower(strings.TrimSpace(cfg.Journal.Driver))
	if cfg.Journal.Driver == "" {
		cfg.Journal.Driver = journal.DriverSQLite
	}
	cfg.Journal.DSN = strings.TrimSpace(cfg.Journal.DSN)
	cfg.Auth.HMACSecret = strings.TrimSpace(cfg.Auth.HMACSecret)
	cfg.Auth.HMACSecretFile = strings.TrimSpace(cfg.Auth.HMACSecretFile)
	cfg.Auth.HMACSecretEnv = strings.TrimSpace(cfg.Auth.HMACSecretEnv)
	if cfg.Auth.ClockSkew.Duration <= 0 {
		cfg.Auth.ClockSkew.Duration = defaultClockSkew
	}
	if cfg.RateLimit.RequestsPerMinute > 0 && cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 1
	}
	cfg.Logging.Level = strings.TrimSpace(cfg.Logging.Level)
	cfg.Logging.File = strings.TrimSpace(cfg.Logging.File)
	cfg.Telemetry.Endpoint = strings.TrimSpace(cfg.Telemetry.Endpoint)
	if cfg.Stream.Buffer <= 0 {
		cfg.Stream.Buffer = defaultStreamBuffer
	}
	if cfg.Stream.WriteTimeout.Duration <= 0 {
		cfg.Stream.WriteTimeout.Duration = 5 * time.Second
	}
}

func (cfg *Config) validate() error {
	if cfg.Genesis == "" {
		return fmt.Errorf("genesis: path required")
	}
	switch cfg.Storage.Backend {
	case storage.BackendMemory:
	case storage.BackendLevelDB, storage.BackendBolt:
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage: path required for %s", cfg.Storage.Backend)
		}
	default:
		return fmt.Errorf("storage: unknown backend %q", cfg.Storage.Backend)
	}
	switch cfg.Journal.Driver {
	case journal.DriverSQLite, journal.DriverPostgres:
	default:
		return fmt.Errorf("journal: unknown driver %q", cfg.Journal.Driver)
	}
	sources := 0
	for _, v := range []string{cfg.Auth.HMACSecret, cfg.Auth.HMACSecretFile, cfg.Auth.HMACSecretEnv} {
		if v != "" {
			sources++
		}
	}
	if sources != 1 {
		return fmt.Errorf("auth: exactly one of hmac_secret, hmac_secret_file or hmac_secret_env is required")
	}
	if cfg.RateLimit.RequestsPerMinute < 0 {
		return fmt.Errorf("rate_limit: requests_per_minute must not be negative")
	}
	return nil
}

// ResolveSecret returns the JWT signing secret from whichever source is set.
func (cfg AuthConfig) ResolveSecret(getenv func(string) string) ([]byte, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	var secret string
	switch {
	case cfg.HMACSecret != "":
		secret = cfg.HMACSecret
	case cfg.HMACSecretFile != "":
		raw, err := os.ReadFile(cfg.HMACSecretFile)
		if err != nil {
			return nil, fmt.Errorf("read hmac secret: %w", err)
		}
		secret = string(raw)
	case cfg.HMACSecretEnv != "":
		secret = getenv(cfg.HMACSecretEnv)
	}
	secret = strings.TrimSpace(secret)
	if len(secret) < 16 {
		return nil, fmt.Errorf("hmac secret must be at least 16 bytes")
	}
	return []byte(secret), nil
}
