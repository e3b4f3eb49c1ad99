// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/restmodel/core/schema"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RESTMODEL_"

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig        `yaml:"server"`
	Database  DatabaseConfig      `yaml:"database"`
	Logging   LoggingConfig       `yaml:"logging"`
	Metrics   MetricsConfig       `yaml:"metrics"`
	OpenAPI   OpenAPIConfig       `yaml:"openapi"`
	Auth      AuthConfig          `yaml:"auth"`
	Builtin   BuiltinConfig       `yaml:"builtin"`
	Resources []schema.Definition `yaml:"resources"`

	// ResourceFiles are extra YAML files holding `resources:` documents.
	// Relative paths resolve against the config file's directory.
	ResourceFiles []string `yaml:"resource_files"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig configures the record backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "memory" or "sqlite"
	DSN    string `yaml:"dsn"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// OpenAPIConfig configures OpenAPI/Swagger documentation.
type OpenAPIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Title   string `yaml:"title"`
	Version string `yaml:"version"`
}

// AuthConfig configures the optional API key guard.
type AuthConfig struct {
	// APIKeyHash is the bcrypt hash of the accepted key. Empty disables the guard.
	APIKeyHash string `yaml:"api_key_hash"`
	Header     string `yaml:"header"`
}

// Enabled reports whether requests need an API key.
func (a AuthConfig) Enabled() bool {
	return a.APIKeyHash != ""
}

// BuiltinConfig enables the resources shipped with the binary.
type BuiltinConfig struct {
	Chores bool `yaml:"chores"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if err := cfg.loadResourceFiles(filepath.Dir(path)); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// envRef matches ${NAME}. Bare $NAME is left alone so bcrypt hashes survive.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Parse decodes YAML, expands ${ENV} references, applies RESTMODEL_*
// overrides and defaults. It does not validate.
func Parse(data []byte) (*Config, error) {
	data = envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		return []byte(os.Getenv(string(ref[2 : len(ref)-1])))
	})

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)
	return &cfg, nil
}

// Default returns the configuration used when no file exists: an
// in-memory backend serving the builtin chores resource.
func Default() *Config {
	cfg := &Config{
		Builtin: BuiltinConfig{Chores: true},
		Metrics: MetricsConfig{Enabled: true},
		OpenAPI: OpenAPIConfig{Enabled: true},
	}
	applyEnvOverrides(cfg)
	setDefaults(cfg)
	return cfg
}

// LoadWithFallback loads path if it exists and falls back to Default.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadResourceFiles(dir string) error {
	for _, file := range c.ResourceFiles {
		if !filepath.IsAbs(file) {
			file = filepath.Join(dir, file)
		}
		defs, err := schema.ParseFile(file)
		if err != nil {
			return fmt.Errorf("load resource file: %w", err)
		}
		c.Resources = append(c.Resources, defs...)
	}
	return nil
}

// applyEnvOverrides applies RESTMODEL_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	// Server configuration
	if v := env("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := env("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := env("SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := env("SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	// Database configuration
	if v := env("DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := env("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	// Logging configuration
	if v := env("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := env("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := env("METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := env("METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}
	if v := env("OPENAPI_ENABLED"); v != "" {
		cfg.OpenAPI.Enabled = parseBool(v)
	}

	if v := env("AUTH_API_KEY_HASH"); v != "" {
		cfg.Auth.APIKeyHash = v
	}
	if v := env("AUTH_HEADER"); v != "" {
		cfg.Auth.Header = v
	}

	if v := env("BUILTIN_CHORES"); v != "" {
		cfg.Builtin.Chores = parseBool(v)
	}
}

func env(name string) string {
	return os.Getenv(EnvPrefix + name)
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "memory"
	}
	if cfg.Database.Driver == "sqlite" && cfg.Database.DSN == "" {
		cfg.Database.DSN = "restmodel.db"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.OpenAPI.Title == "" {
		cfg.OpenAPI.Title = "restmodel"
	}
	if cfg.OpenAPI.Version == "" {
		cfg.OpenAPI.Version = "1.0.0"
	}

	if cfg.Auth.Header == "" {
		cfg.Auth.Header = "X-API-Key"
	}
}

// Validate checks the configuration, including every resource definition.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}

	switch c.Database.Driver {
	case "memory", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("database.driver must be 'memory' or 'sqlite', got %q", c.Database.Driver))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		errs = append(errs, fmt.Sprintf("logging.level must be one of: debug, info, warn, error, got %q", c.Logging.Level))
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		errs = append(errs, fmt.Sprintf("logging.format must be 'json' or 'console', got %q", c.Logging.Format))
	}

	if !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, fmt.Sprintf("metrics.path %q must start with /", c.Metrics.Path))
	}

	if c.Auth.APIKeyHash != "" && !strings.HasPrefix(c.Auth.APIKeyHash, "$2") {
		errs = append(errs, "auth.api_key_hash must be a bcrypt hash")
	}

	names := make(map[string]bool)
	if c.Builtin.Chores {
		names["chore"] = true
	}
	for i, def := range c.Resources {
		if err := def.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("resources[%d] %q: %v", i, def.Name, err))
		}
		if names[def.Name] {
			errs = append(errs, fmt.Sprintf("resources[%d]: resource %q defined twice", i, def.Name))
		}
		names[def.Name] = true
	}

	if len(c.Resources) == 0 && !c.Builtin.Chores {
		errs = append(errs, "no resources configured: define resources or enable builtin.chores")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Fingerprint identifies the settings that need a restart to change.
func (c *Config) Fingerprint() string {
	data, err := yaml.Marshal(struct {
		Server    ServerConfig
		Database  DatabaseConfig
		Metrics   MetricsConfig
		OpenAPI   OpenAPIConfig
		Auth      AuthConfig
		Builtin   BuiltinConfig
		Resources []schema.Definition
	}{c.Server, c.Database, c.Metrics, c.OpenAPI, c.Auth, c.Builtin, c.Resources})
	if err != nil {
		return ""
	}
	return string(data)
}
