// Package config loads the service configuration from an optional YAML
// file overlaid with STAGEHAND_ environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment overrides. A double underscore
// separates nesting levels: STAGEHAND_SERVER__PORT sets server.port.
const EnvPrefix = "STAGEHAND_"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Routing   RoutingConfig   `koanf:"routing"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	Auth      AuthConfig      `koanf:"auth"`
	Journal   JournalConfig   `koanf:"journal"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Host           string        `koanf:"host"`
	Port           int           `koanf:"port"`
	KeepAlive      bool          `koanf:"keep_alive"`
	AdminPath      string        `koanf:"admin_path"`
	TLS            TLSConfig     `koanf:"tls"`
	ReadTimeout    time.Duration `koanf:"read_timeout"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type TLSConfig struct {
	CertFile string `koanf:"cert_file"`
	KeyFile  string `koanf:"key_file"`
}

type RoutingConfig struct {
	IgnoreCase          bool `koanf:"ignore_case"`
	IgnoreMultiSlash    bool `koanf:"ignore_multi_slash"`
	IgnoreTrailingSlash bool `koanf:"ignore_trailing_slash"`
	InternalRedirect    bool `koanf:"internal_redirect"`
}

type PipelineConfig struct {
	Stages []string `koanf:"stages"`
}

type AuthConfig struct {
	APIKeys []APIKeyConfig `koanf:"api_keys"`
}

type APIKeyConfig struct {
	KeyHash     string `koanf:"key_hash"`
	Principal   string `koanf:"principal"`
	Description string `koanf:"description"`
}

// JournalConfig selects where dispatched requests are recorded.
type JournalConfig struct {
	Driver   string `koanf:"driver"` // memory, sqlite, none
	Path     string `koanf:"path"`   // sqlite file, ${VAR} is expanded
	Capacity int    `koanf:"capacity"`
}

type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
	Pretty      bool   `koanf:"pretty"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

var defaults = map[string]any{
	"server.host":                   "",
	"server.port":                   8080,
	"server.keep_alive":             false,
	"server.admin_path":             "/_admin",
	"server.read_timeout":           "30s",
	"server.write_timeout":          "30s",
	"routing.ignore_case":           true,
	"routing.ignore_multi_slash":    true,
	"routing.ignore_trailing_slash": true,
	"routing.internal_redirect":     true,
	"pipeline.stages":               []string{"incoming", "validation", "authentication", "authorization", "general"},
	"journal.driver":                "memory",
	"journal.path":                  "./data/journal.db",
	"journal.capacity":              1000,
	"telemetry.service_name":        "stagehand",
}

// Load reads path (skipped when empty or missing) and then the environment.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	for key, value := range defaults {
		if !k.Exists(key) {
			k.Set(key, value)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.Journal.Path = substituteEnvVars(cfg.Journal.Path)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports settings that cannot be served.
func (c *Config) Validate() error {
	switch c.Journal.Driver {
	case "memory", "sqlite", "none":
	default:
		return fmt.Errorf("unknown journal driver %q", c.Journal.Driver)
	}
	if c.Journal.Driver == "sqlite" && c.Journal.Path == "" {
		return errors.New("journal.path is required for the sqlite driver")
	}
	for i, key := range c.Auth.APIKeys {
		if len(key.KeyHash) != 64 {
			return fmt.Errorf("auth.api_keys[%d]: key_hash must be a hex SHA-256 digest", i)
		}
	}
	if (c.Server.TLS.CertFile == "") != (c.Server.TLS.KeyFile == "") {
		return errors.New("server.tls needs both cert_file and key_file")
	}
	return nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
