// Package config loads the restforge configuration from restforge.yml plus
// environment variables, one binding per recognized option.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the restforge configuration
type Config struct {
	Title       string `mapstructure:"title"`
	Version     string `mapstructure:"version"`
	Description string `mapstructure:"description"`

	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	API       APIConfig       `mapstructure:"api"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Docs      DocsConfig      `mapstructure:"docs"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	URL    string `mapstructure:"url"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// APIConfig controls route generation and response shaping
type APIConfig struct {
	Prefix            string   `mapstructure:"prefix"`
	DefaultLimit      int      `mapstructure:"default_limit"`
	MaxLimit          int      `mapstructure:"max_limit"`
	Strict            bool     `mapstructure:"strict"`
	CamelCase         bool     `mapstructure:"camel_case"`
	SerializationMode string   `mapstructure:"serialization_mode"`
	CascadeDelete     bool     `mapstructure:"cascade_delete"`
	ReadOnly          bool     `mapstructure:"read_only"`
	BlockedMethods    []string `mapstructure:"blocked_methods"`

	Dump DumpConfig `mapstructure:"dump"`
}

// DumpConfig toggles the individual metadata fields of the response envelope.
// All fields default to on.
type DumpConfig struct {
	Datetime   bool `mapstructure:"datetime"`
	APIVersion bool `mapstructure:"api_version"`
	StatusCode bool `mapstructure:"status_code"`
	TotalCount bool `mapstructure:"total_count"`
	PageURLs   bool `mapstructure:"page_urls"`
}

// AuthConfig controls request authentication
type AuthConfig struct {
	// Method is one of "", "jwt", "basic", "api_key".
	Method     string        `mapstructure:"method"`
	Secret     string        `mapstructure:"secret"`
	HeaderName string        `mapstructure:"header_name"`
	APIKeys    []string      `mapstructure:"api_keys"`
	// Users maps usernames to bcrypt password hashes for basic auth.
	Users    map[string]string `mapstructure:"users"`
	TokenTTL time.Duration     `mapstructure:"token_ttl"`
}

// RateLimitConfig controls request throttling
type RateLimitConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
	RedisURL          string `mapstructure:"redis_url"`
}

// DocsConfig controls the documentation surface
type DocsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Path     string `mapstructure:"path"`
	SpecPath string `mapstructure:"spec_path"`
	Contact  string `mapstructure:"contact"`
	License  string `mapstructure:"license"`
}

// Load reads restforge.yml (if present) and the environment. A .env file in
// the working directory is loaded first so it can seed the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("title", "restforge API")
	v.SetDefault("version", "0.1.0")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 6000)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("api.prefix", "/api")
	v.SetDefault("api.default_limit", 20)
	v.SetDefault("api.max_limit", 100)
	v.SetDefault("api.serialization_mode", "hybrid")
	v.SetDefault("api.dump.datetime", true)
	v.SetDefault("api.dump.api_version", true)
	v.SetDefault("api.dump.status_code", true)
	v.SetDefault("api.dump.total_count", true)
	v.SetDefault("api.dump.page_urls", true)
	v.SetDefault("auth.header_name", "X-API-Key")
	v.SetDefault("auth.token_ttl", time.Hour)
	v.SetDefault("rate_limit.requests_per_minute", 120)
	v.SetDefault("docs.enabled", true)
	v.SetDefault("docs.path", "/docs")
	v.SetDefault("docs.spec_path", "/swagger.json")

	v.SetConfigName("restforge")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultDump returns the DumpConfig with every envelope field enabled,
// matching the loaded defaults. Useful when building a Config in code.
func DefaultDump() DumpConfig {
	return DumpConfig{
		Datetime:   true,
		APIVersion: true,
		StatusCode: true,
		TotalCount: true,
		PageURLs:   true,
	}
}

// bindEnv wires every recognized option to its environment variables. Keys
// are bound one by one because viper only sees prefixed variables for keys
// that carry a default, and the documented names do not all follow the
// section_key convention.
func bindEnv(v *viper.Viper) {
	bindings := [][]string{
		{"title", "API_TITLE"},
		{"version", "API_VERSION"},
		{"description", "API_DESCRIPTION"},
		{"database.driver", "DATABASE_DRIVER"},
		{"database.url", "DATABASE_URL"},
		{"server.host", "SERVER_HOST"},
		{"server.port", "SERVER_PORT"},
		{"server.read_timeout", "SERVER_READ_TIMEOUT"},
		{"server.write_timeout", "SERVER_WRITE_TIMEOUT"},
		{"server.shutdown_timeout", "SERVER_SHUTDOWN_TIMEOUT"},
		{"api.prefix", "API_PREFIX"},
		{"api.default_limit", "API_PAGINATION_SIZE_DEFAULT", "API_DEFAULT_LIMIT"},
		{"api.max_limit", "API_PAGINATION_SIZE_MAX", "API_MAX_LIMIT"},
		{"api.strict", "API_STRICT"},
		{"api.camel_case", "API_CONVERT_TO_CAMEL_CASE", "API_CAMEL_CASE"},
		{"api.serialization_mode", "API_SERIALIZATION_TYPE", "API_SERIALIZATION_MODE"},
		{"api.cascade_delete", "API_ALLOW_CASCADE_DELETE", "API_CASCADE_DELETE"},
		{"api.read_only", "API_READ_ONLY"},
		{"api.blocked_methods", "API_BLOCK_METHODS"},
		{"api.dump.datetime", "API_DUMP_DATETIME"},
		{"api.dump.api_version", "API_DUMP_VERSION"},
		{"api.dump.status_code", "API_DUMP_STATUS_CODE"},
		{"api.dump.total_count", "API_DUMP_TOTAL_COUNT"},
		{"api.dump.page_urls", "API_DUMP_PAGE_URLS"},
		{"auth.method", "API_AUTHENTICATE_METHOD", "AUTH_METHOD"},
		{"auth.secret", "AUTH_SECRET"},
		{"auth.header_name", "AUTH_HEADER_NAME"},
		{"auth.api_keys", "AUTH_API_KEYS"},
		{"auth.token_ttl", "AUTH_TOKEN_TTL"},
		{"rate_limit.enabled", "RATE_LIMIT_ENABLED"},
		{"rate_limit.requests_per_minute", "API_RATE_LIMIT", "RATE_LIMIT_REQUESTS_PER_MINUTE"},
		{"rate_limit.redis_url", "RATE_LIMIT_REDIS_URL", "REDIS_URL"},
		{"docs.enabled", "DOCS_ENABLED"},
		{"docs.path", "DOCS_PATH"},
		{"docs.spec_path", "DOCS_SPEC_PATH"},
		{"docs.contact", "DOCS_CONTACT"},
		{"docs.license", "DOCS_LICENSE"},
	}
	for _, b := range bindings {
		_ = v.BindEnv(b...)
	}
}

// DatabaseURL returns the configured database URL, preferring the
// conventional environment variable.
func (c *Config) DatabaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	return c.Database.URL
}

// Addr returns the server listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func validate(cfg *Config) error {
	if cfg.API.Prefix != "" {
		if !strings.HasPrefix(cfg.API.Prefix, "/") {
			return fmt.Errorf("api.prefix must start with '/', got: %s", cfg.API.Prefix)
		}
		if strings.HasSuffix(cfg.API.Prefix, "/") {
			return fmt.Errorf("api.prefix must not end with '/', got: %s", cfg.API.Prefix)
		}
	}
	if cfg.API.MaxLimit > 0 && cfg.API.DefaultLimit > cfg.API.MaxLimit {
		return fmt.Errorf("api.default_limit %d exceeds api.max_limit %d", cfg.API.DefaultLimit, cfg.API.MaxLimit)
	}
	switch cfg.Auth.Method {
	case "", "jwt", "basic", "api_key":
	default:
		return fmt.Errorf("auth.method must be one of jwt, basic, api_key; got: %s", cfg.Auth.Method)
	}
	if cfg.Auth.Method == "jwt" && cfg.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is required when auth.method is jwt")
	}
	return nil
}
