// internal/config/config.go
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"bookshelf/internal/chaos"

	"gopkg.in/yaml.v3"
)

// Config is the complete runtime configuration of the bookshelf server.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Books     BooksConfig     `yaml:"books"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Chaos     ChaosConfig     `yaml:"chaos"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type BooksConfig struct {
	// RecomputeFinishedOnUpdate makes updates recompute finished from the new
	// page counts. Off by default: finished is set at creation only.
	RecomputeFinishedOnUpdate bool `yaml:"recompute_finished_on_update"`
}

// RateLimitConfig throttles write requests. Off unless enabled.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`
}

// ChaosConfig enables fault injection in the record store. Faults maps a
// fault name to its blast radius.
type ChaosConfig struct {
	Enabled bool               `yaml:"enabled"`
	Faults  map[string]float64 `yaml:"faults"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "9000",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "json"},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerSecond: 50,
			Burst:             100,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "bookshelf",
			OTLPInsecure:   true,
			MetricsEnabled: true,
		},
	}
}

// Load builds the configuration from the defaults, the optional YAML file at
// path and then the environment. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var errs []error

	c.Server.Port = getEnv("BOOKSHELF_PORT", c.Server.Port)
	c.Log.Level = getEnv("BOOKSHELF_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("BOOKSHELF_LOG_FORMAT", c.Log.Format)
	c.Telemetry.ServiceName = getEnv("OTEL_SERVICE_NAME", c.Telemetry.ServiceName)
	c.Telemetry.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.Telemetry.OTLPEndpoint)

	envBool(&errs, "BOOKSHELF_RECOMPUTE_FINISHED", &c.Books.RecomputeFinishedOnUpdate)
	envBool(&errs, "BOOKSHELF_RATE_LIMIT_ENABLED", &c.RateLimit.Enabled)
	envBool(&errs, "BOOKSHELF_METRICS_ENABLED", &c.Telemetry.MetricsEnabled)
	envBool(&errs, "BOOKSHELF_CHAOS_ENABLED", &c.Chaos.Enabled)

	if v, ok := os.LookupEnv("BOOKSHELF_RATE_LIMIT_RPS"); ok {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("BOOKSHELF_RATE_LIMIT_RPS: %w", err))
		} else {
			c.RateLimit.RequestsPerSecond = rps
		}
	}
	if v, ok := os.LookupEnv("BOOKSHELF_RATE_LIMIT_BURST"); ok {
		burst, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("BOOKSHELF_RATE_LIMIT_BURST: %w", err))
		} else {
			c.RateLimit.Burst = burst
		}
	}
	if v, ok := os.LookupEnv("BOOKSHELF_SHUTDOWN_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("BOOKSHELF_SHUTDOWN_TIMEOUT: %w", err))
		} else {
			c.Server.ShutdownTimeout = d
		}
	}

	return errors.Join(errs...)
}

func envBool(errs *[]error, key string, dst *bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = b
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if port, err := strconv.Atoi(c.Server.Port); err != nil || port < 0 || port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be a number in [0,65535], got %q", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("server.shutdown_timeout must be positive"))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error", "DEBUG", "INFO", "WARN", "ERROR":
	default:
		errs = append(errs, fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or text, got %q", c.Log.Format))
	}
	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerSecond <= 0 {
			errs = append(errs, errors.New("rate_limit.requests_per_second must be positive"))
		}
		if c.RateLimit.Burst < 1 {
			errs = append(errs, errors.New("rate_limit.burst must be at least 1"))
		}
	}
	if c.Telemetry.ServiceName == "" {
		errs = append(errs, errors.New("telemetry.service_name must not be empty"))
	}
	for name, radius := range c.Chaos.Faults {
		if _, err := chaos.ParseFault(name); err != nil {
			errs = append(errs, fmt.Errorf("chaos.faults: %w", err))
			continue
		}
		if radius < 0 || radius > 1 {
			errs = append(errs, fmt.Errorf("chaos.faults.%s must be within [0,1], got %v", name, radius))
		}
	}

	return errors.Join(errs...)
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Server.Port
}
