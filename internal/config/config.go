// Package config loads the application configuration from yaml files
// and environment overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"catsync/internal/identity"
	"catsync/internal/logging"
	"catsync/internal/stream"
)

// Server holds the HTTP listener settings.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// RequestTimeout bounds non-streaming handlers only; SSE requests
	// are exempt.
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
}

// Addr returns the listen address.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// EventLog selects and configures the event log backend.
type EventLog struct {
	// Backend is "nats" or "memory".
	Backend     string        `yaml:"backend"`
	URL         string        `yaml:"url"`
	FileStorage bool          `yaml:"file_storage"`
	GroupTTL    time.Duration `yaml:"group_ttl"`
}

// Catalog selects and configures the product store backend.
type Catalog struct {
	// Backend is "mongo" or "memory".
	Backend             string        `yaml:"backend"`
	URI                 string        `yaml:"uri"`
	Database            string        `yaml:"database"`
	Collection          string        `yaml:"collection"`
	SoftDeleteRetention time.Duration `yaml:"soft_delete_retention"`
}

// Config holds the application configuration.
type Config struct {
	// Mode is "direct" or "proxy".
	Mode      string          `yaml:"mode"`
	Server    Server          `yaml:"server"`
	EventLog  EventLog        `yaml:"eventlog"`
	Catalog   Catalog         `yaml:"catalog"`
	Streaming stream.Config   `yaml:"streaming"`
	Upstream  stream.Upstream `yaml:"upstream"`
	Identity  identity.Config `yaml:"identity"`
	Logging   logging.Config  `yaml:"logging"`
}

// DefaultConfig returns the development defaults: direct mode on
// in-process backends.
func DefaultConfig() Config {
	return Config{
		Mode: "direct",
		Server: Server{
			Host:           "0.0.0.0",
			Port:           8080,
			RequestTimeout: 30 * time.Second,
			MaxBodyBytes:   1 << 20,
		},
		EventLog: EventLog{
			Backend:  "memory",
			URL:      "nats://localhost:4222",
			GroupTTL: 15 * time.Minute,
		},
		Catalog: Catalog{
			Backend:             "memory",
			URI:                 "mongodb://localhost:27017",
			Database:            "catsync",
			Collection:          "products",
			SoftDeleteRetention: 30 * 24 * time.Hour,
		},
		Streaming: stream.DefaultConfig(),
	}
}

// Load reads config.yml then config.local.yml from dir, applies env
// overrides and validates. Missing files are skipped.
func Load(dir string) (*Config, error) {
	cfg := DefaultConfig()

	loadFile(filepath.Join(dir, "config.yml"), &cfg)
	loadFile(filepath.Join(dir, "config.local.yml"), &cfg)

	cfg.ApplyEnvOverrides()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(filename string, cfg *Config) {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		slog.Warn("Error reading config file", "file", filename, "error", err)
		return
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		slog.Warn("Error parsing config file", "file", filename, "error", err)
	}
}

// ApplyEnvOverrides lets deploy environments override the file values.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("CATSYNC_MODE"); v != "" {
		c.Mode = v
	}
	if v := os.Getenv("CATSYNC_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("CATSYNC_NATS_URL"); v != "" {
		c.EventLog.Backend = "nats"
		c.EventLog.URL = v
	}
	if v := os.Getenv("CATSYNC_MONGO_URI"); v != "" {
		c.Catalog.Backend = "mongo"
		c.Catalog.URI = v
	}
	if v := os.Getenv("CATSYNC_UPSTREAM_URL"); v != "" {
		c.Upstream.BaseURL = v
	}
	if v := os.Getenv("CATSYNC_UPSTREAM_TOKEN"); v != "" {
		c.Upstream.Token = v
	}
	if v := os.Getenv("CATSYNC_IDENTITY_SECRET"); v != "" {
		c.Identity.Secret = v
	}
}

// ApplyDefaults fills gaps left by the files after overrides.
func (c *Config) ApplyDefaults() {
	c.Streaming.ApplyDefaults()
	c.Identity.ApplyDefaults()
	c.Logging.ApplyDefaults()
	if c.EventLog.GroupTTL <= 0 {
		c.EventLog.GroupTTL = 15 * time.Minute
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Mode {
	case "direct", "proxy":
	default:
		return fmt.Errorf("mode must be direct or proxy, got %q", c.Mode)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	switch c.EventLog.Backend {
	case "nats", "memory":
	default:
		return fmt.Errorf("eventlog backend must be nats or memory, got %q", c.EventLog.Backend)
	}
	if c.EventLog.Backend == "nats" && c.EventLog.URL == "" {
		return fmt.Errorf("eventlog url is required for the nats backend")
	}
	switch c.Catalog.Backend {
	case "mongo", "memory":
	default:
		return fmt.Errorf("catalog backend must be mongo or memory, got %q", c.Catalog.Backend)
	}
	if c.Catalog.Backend == "mongo" && c.Catalog.URI == "" {
		return fmt.Errorf("catalog uri is required for the mongo backend")
	}
	// Proxy mode without upstream settings is allowed to boot; each
	// connection then gets a single error frame. Misconfiguration shows
	// up in logs, not as a crash loop.
	if err := c.Streaming.Validate(); err != nil {
		return err
	}
	return c.Identity.Validate()
}
