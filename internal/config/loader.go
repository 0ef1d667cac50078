package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/mitchellh/mapstructure"
)

const (
	envPrefix    = "BRIDGE_"
	configEnvVar = "BRIDGE_CONFIG_PATH"
)

// Loader loads Config from defaults, an optional YAML file, and environment
// overrides, in that priority order (lowest to highest).
type Loader struct {
	k           *koanf.Koanf
	configPaths []string
	validate    *validator.Validate
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithConfigPaths overrides the default search paths for the YAML file.
func WithConfigPaths(paths ...string) LoaderOption {
	return func(l *Loader) {
		l.configPaths = paths
	}
}

// NewLoader creates a Loader with the default search paths.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		k: koanf.New("."),
		configPaths: []string{
			"bridge.yaml",
			"config/bridge.yaml",
			"/etc/worksite-bridge/bridge.yaml",
		},
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads configuration and returns a validated Config, or a descriptive
// error naming the offending value. Fails fast: any violation aborts
// loading rather than falling back to a default.
func (l *Loader) Load() (*Config, error) {
	if err := l.loadDefaults(); err != nil {
		return nil, fmt.Errorf("config: loading defaults: %w", err)
	}
	if err := l.loadConfigFile(); err != nil {
		// A config file is optional; environment + defaults may suffice.
		// Missing-file is not fatal, a malformed one is.
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: loading file: %w", err)
		}
	}
	if err := l.loadEnv(); err != nil {
		return nil, fmt.Errorf("config: loading environment: %w", err)
	}

	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		},
	}
	if err := l.k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := l.validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return &cfg, nil
}

func (l *Loader) loadDefaults() error {
	defaults := map[string]any{
		"rds.language":             "en",
		"poll_interval":            500 * time.Millisecond,
		"modbus_request_timeout":   1000 * time.Millisecond,
		"reconnect_backoff":        5000 * time.Millisecond,
		"fill_debounce":            2000 * time.Millisecond,
		"debug_log":                false,
		"log.level":                "info",
		"log.format":               "json",
		"log.output":               "stdout",
		"log.max_size_mb":          100,
		"log.max_backups":          3,
		"log.max_age_days":         7,
		"log.compress":             true,
		"metrics.enabled":          false,
		"metrics.addr":             ":9090",
	}
	return l.k.Load(confmap.Provider(defaults, "."), nil)
}

func (l *Loader) loadConfigFile() error {
	if path := os.Getenv(configEnvVar); path != "" {
		if _, err := os.Stat(path); err != nil {
			return err
		}
		return l.k.Load(file.Provider(path), yaml.Parser())
	}
	for _, path := range l.configPaths {
		abs, err := filepath.Abs(path)
		if err != nil {
			continue
		}
		if _, err := os.Stat(abs); err == nil {
			return l.k.Load(file.Provider(abs), yaml.Parser())
		}
	}
	return os.ErrNotExist
}

// loadEnv loads overrides from BRIDGE_-prefixed environment variables.
// Double underscore nests (BRIDGE_RDS__HOST -> rds.host); a single
// underscore stays part of the key segment (BRIDGE_POLL_INTERVAL ->
// poll_interval), unlike a naive single-underscore-to-dot replace, which
// would mangle any multi-word leaf key.
func (l *Loader) loadEnv() error {
	return l.k.Load(env.Provider(envPrefix, ".", func(s string) string {
		trimmed := strings.TrimPrefix(s, envPrefix)
		parts := strings.Split(trimmed, "__")
		for i, p := range parts {
			parts[i] = strings.ToLower(p)
		}
		return strings.Join(parts, ".")
	}), nil)
}

// Load loads configuration with the default search paths.
func Load(opts ...LoaderOption) (*Config, error) {
	return NewLoader(opts...).Load()
}
