// Package config loads vibelite's runtime configuration.
//
// Values are layered, later sources winning:
//   - built-in defaults (Default)
//   - an optional YAML file
//   - environment variables prefixed with VIBELITE_, where a double
//     underscore separates nesting levels (VIBELITE_SERVER__PORT -> server.port)
//
// A `.env` file in the working directory is loaded into the process
// environment before anything reads it.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "VIBELITE_"

// Config is the root configuration object.
type Config struct {
	Database DatabaseConfig `koanf:"database" validate:"required"`
	Server   ServerConfig   `koanf:"server" validate:"required"`
	Limits   LimitsConfig   `koanf:"limits" validate:"required"`
	Logging  LoggingConfig  `koanf:"logging" validate:"required"`
}

// DatabaseConfig names the database used when a request does not name one.
type DatabaseConfig struct {
	Path        string        `koanf:"path"`
	BusyTimeout time.Duration `koanf:"busy_timeout" validate:"min=0"`
}

// ServerConfig groups settings for the HTTP server runtime.
type ServerConfig struct {
	Host              string        `koanf:"host" validate:"required"`
	Port              int           `koanf:"port" validate:"min=0,max=65535"`
	MaxConnections    int           `koanf:"max_connections" validate:"min=1"`
	ReadTimeout       time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout      time.Duration `koanf:"write_timeout" validate:"gt=0"`
	IdleTimeout       time.Duration `koanf:"idle_timeout" validate:"gt=0"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// LimitsConfig bounds what a single HTTP request may ask for.
type LimitsConfig struct {
	MaxQueryBytes int           `koanf:"max_query_bytes" validate:"min=1"`
	MaxBodyBytes  int64         `koanf:"max_body_bytes" validate:"min=1"`
	MaxResultRows int           `koanf:"max_result_rows" validate:"min=0"`
	QueryTimeout  time.Duration `koanf:"query_timeout" validate:"gt=0"`
}

// LoggingConfig selects the log level and output format.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=console json"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "vibelite.db",
			BusyTimeout: 5 * time.Second,
		},
		Server: ServerConfig{
			Host:              "127.0.0.1",
			Port:              5174,
			MaxConnections:    2,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       30 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   30 * time.Second,
		},
		Limits: LimitsConfig{
			MaxQueryBytes: 10 * 1024,
			MaxBodyBytes:  1 << 20,
			MaxResultRows: 1000,
			QueryTimeout:  5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (skipped
// when path is empty) and the environment, then validates it.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(fileProvider(path), yamlParser{}); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil)
	if err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// envKey maps VIBELITE_LIMITS__QUERY_TIMEOUT to limits.query_timeout.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// fileProvider reads a config file for koanf.
type fileProvider string

func (f fileProvider) ReadBytes() ([]byte, error) {
	return os.ReadFile(string(f))
}

func (f fileProvider) Read() (map[string]interface{}, error) {
	return nil, fmt.Errorf("file provider %s does not support Read", string(f))
}

// yamlParser decodes YAML documents for koanf.
type yamlParser struct{}

func (yamlParser) Unmarshal(b []byte) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if err := yaml.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (yamlParser) Marshal(o map[string]interface{}) ([]byte, error) {
	return yaml.Marshal(o)
}
