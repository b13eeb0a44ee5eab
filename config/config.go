// Package config provides configuration management for the prompt2json
// server. It covers the HTTP listener, logging, the response cache, rate
// limiting, the transform circuit breaker and the route table.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their YAML names so errors match the config file.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Config represents the complete server configuration.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Logging        LoggingConfig        `yaml:"logging"`
	Cache          CacheConfig          `yaml:"cache"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Routes         []RouteConfig        `yaml:"routes" validate:"dive"`
}

// ServerConfig holds server-specific configuration for the HTTP server.
type ServerConfig struct {
	// Port specifies the HTTP server port (default: 5000)
	Port int `yaml:"port" validate:"gte=0,lte=65535"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body (default: 15s)
	ReadTimeout time.Duration `yaml:"read_timeout" validate:"gte=0"`

	// WriteTimeout is the maximum duration before timing out writes of the response
	// (default: 15s)
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"gte=0"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing the request header's keys and values (default: 1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes" validate:"gte=0"`

	// MaxBodyBytes caps the request body of the transform endpoints. A prompt
	// is at most 5000 characters, so the default leaves room for the JSON
	// envelope and multi-byte runes (default: 64KB)
	MaxBodyBytes int64 `yaml:"max_body_bytes" validate:"gt=0"`

	// ShutdownTimeout specifies how long to wait for the server to shutdown
	// gracefully before forcing termination (default: 30s)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gte=0"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

// CacheConfig controls the in-memory response cache of POST /transform.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`

	// MaxEntries bounds the cache. Once full, new results are not stored.
	MaxEntries int `yaml:"max_entries" validate:"gt=0"`
}

// RateLimitConfig configures the per client token bucket.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute" validate:"gt=0"`
	Burst             int  `yaml:"burst" validate:"gt=0"`
}

// CircuitBreakerConfig configures the breaker guarding the transform step.
type CircuitBreakerConfig struct {
	MaxRequests      uint32        `yaml:"max_requests" validate:"gte=1"`
	Interval         time.Duration `yaml:"interval" validate:"gte=0"`
	Timeout          time.Duration `yaml:"timeout" validate:"gt=0"`
	FailureThreshold uint32        `yaml:"failure_threshold" validate:"gte=1"`
}

// RouteConfig binds a path to one of the server's named handlers.
type RouteConfig struct {
	Path       string   `yaml:"path" validate:"required,startswith=/"`
	Handler    string   `yaml:"handler" validate:"required"`
	Methods    []string `yaml:"methods" validate:"dive,oneof=GET POST PUT PATCH DELETE OPTIONS HEAD"`
	Middleware []string `yaml:"middleware"`
}

// DefaultConfig returns a configuration with sensible defaults. The route
// table reproduces the public API of the service.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            5000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			MaxBodyBytes:    64 << 10,
			ShutdownTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Cache: CacheConfig{
			Enabled:    true,
			MaxEntries: 1000,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 120,
			Burst:             20,
		},
		CircuitBreaker: CircuitBreakerConfig{
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
		},
		Routes: []RouteConfig{
			{Path: "/", Handler: "index", Methods: []string{"GET"}},
			{Path: "/static/*", Handler: "static", Methods: []string{"GET"}},
			{Path: "/transform", Handler: "transform", Methods: []string{"POST"}, Middleware: []string{"ratelimit"}},
			{Path: "/transform/custom", Handler: "transform_custom", Methods: []string{"POST"}, Middleware: []string{"ratelimit"}},
			{Path: "/cache/clear", Handler: "cache_clear", Methods: []string{"POST"}},
			{Path: "/health", Handler: "health", Methods: []string{"GET"}},
			{Path: "/metrics", Handler: "metrics", Methods: []string{"GET"}},
		},
	}
}

// LoadFile loads configuration from a YAML file
func LoadFile(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} references. An unset or
// empty variable with a default resolves to the default; without one it
// resolves to the empty string.
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		name, fallback, hasDefault := strings.Cut(key, ":-")
		if val := os.Getenv(name); val != "" || !hasDefault {
			return val
		}
		return fallback
	})
}

// Load loads configuration from an io.Reader. Values in the document are
// decoded on top of DefaultConfig, so a partial file only overrides what it
// names. A routes list replaces the default table entirely.
func Load(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	config := DefaultConfig()

	dec := yaml.NewDecoder(strings.NewReader(expandEnvVars(string(data))))
	dec.KnownFields(true)
	if err := dec.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// Validate checks if the configuration is valid. The first failing field is
// reported by its YAML path, e.g. "invalid server.port: -1 (gte=0)".
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return c.validateRoutes()
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	tag := fe.Tag()
	if fe.Param() != "" {
		tag += "=" + fe.Param()
	}
	return fmt.Errorf("invalid %s: %v (%s)", field, fe.Value(), tag)
}

func (c *Config) validateRoutes() error {
	seen := make(map[string]bool, len(c.Routes))
	for i, route := range c.Routes {
		if seen[route.Path] {
			return fmt.Errorf("duplicate path in route %d: %s", i, route.Path)
		}
		seen[route.Path] = true
	}
	return nil
}
