// Package config loads liveledger settings from a YAML file, a local .env
// file and LIVELEDGER_* environment variables, in increasing precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LIVELEDGER_"

// Config holds all application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store"`
	Server ServerConfig `yaml:"server"`
	Redis  RedisConfig  `yaml:"redis"`
	AMQP   AMQPConfig   `yaml:"amqp"`
	Device DeviceConfig `yaml:"device"`
	Log    LogConfig    `yaml:"log"`
}

// StoreConfig selects the match store backend.
type StoreConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver"`
	// DSN is a file path for sqlite, a connection string for postgres.
	DSN string `yaml:"dsn"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// RedisConfig enables the cross-replica change relay when URL is set.
type RedisConfig struct {
	URL    string `yaml:"url"`
	Stream string `yaml:"stream"`
}

// AMQPConfig enables broker notifications when URL is set.
type AMQPConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

// DeviceConfig holds the operator device settings.
type DeviceConfig struct {
	QueueDB       string        `yaml:"queue_db"`
	RemoteURL     string        `yaml:"remote_url"`
	ProbeInterval time.Duration `yaml:"probe_interval"`
	ProbeTimeout  time.Duration `yaml:"probe_timeout"`
	MaxRetries    int           `yaml:"max_retries"`
	OperatorID    string        `yaml:"operator_id"`
	OperatorRole  string        `yaml:"operator_role"`
}

// LogConfig controls the default slog handler.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`
	// Format is text or json.
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Store:  StoreConfig{Driver: "sqlite", DSN: "liveledger.db"},
		Server: ServerConfig{Addr: ":8080", CORSOrigins: []string{"*"}},
		Redis:  RedisConfig{Stream: "liveledger.changes"},
		AMQP:   AMQPConfig{Exchange: "liveledger.notifications"},
		Device: DeviceConfig{
			QueueDB:       "device.db",
			ProbeInterval: 5 * time.Second,
			ProbeTimeout:  3 * time.Second,
			MaxRetries:    3,
			OperatorRole:  "referee",
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration. path may be empty to skip the YAML file.
// envFiles are loaded with godotenv before the environment is read; when
// none are given a .env in the working directory is used if present.
// Variables already set in the environment win over .env values.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadEnvFiles(files []string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		files = []string{".env"}
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	slog.Debug("loaded env files", "files", files)
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = d
		return nil
	}

	str("STORE_DRIVER", &c.Store.Driver)
	str("STORE_DSN", &c.Store.DSN)
	str("SERVER_ADDR", &c.Server.Addr)
	if v, ok := lookup(EnvPrefix + "CORS_ORIGINS"); ok {
		c.Server.CORSOrigins = splitList(v)
	}
	str("REDIS_URL", &c.Redis.URL)
	str("REDIS_STREAM", &c.Redis.Stream)
	str("AMQP_URL", &c.AMQP.URL)
	str("AMQP_EXCHANGE", &c.AMQP.Exchange)
	str("QUEUE_DB", &c.Device.QueueDB)
	str("REMOTE_URL", &c.Device.RemoteURL)
	str("OPERATOR_ID", &c.Device.OperatorID)
	str("OPERATOR_ROLE", &c.Device.OperatorRole)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	if err := dur("PROBE_INTERVAL", &c.Device.ProbeInterval); err != nil {
		return err
	}
	if err := dur("PROBE_TIMEOUT", &c.Device.ProbeTimeout); err != nil {
		return err
	}
	if v, ok := lookup(EnvPrefix + "MAX_RETRIES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sMAX_RETRIES: %w", EnvPrefix, err)
		}
		c.Device.MaxRetries = n
	}
	return nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Store.DSN == "" {
		return errors.New("config: store dsn is required")
	}
	if c.Device.ProbeInterval <= 0 {
		return fmt.Errorf("config: probe interval must be positive, got %s", c.Device.ProbeInterval)
	}
	if c.Device.ProbeTimeout <= 0 {
		return fmt.Errorf("config: probe timeout must be positive, got %s", c.Device.ProbeTimeout)
	}
	if c.Device.MaxRetries <= 0 {
		return fmt.Errorf("config: max retries must be positive, got %d", c.Device.MaxRetries)
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	return nil
}

// ParseLevel maps a level name to its slog level.
func ParseLevel(name string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("config: unknown log level %q", name)
	}
	return l, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
