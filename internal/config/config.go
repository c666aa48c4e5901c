package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is stripped from environment variables before they are mapped
// onto config paths: PADDOCK_MQTT_HOST -> mqtt.host.
const EnvPrefix = "PADDOCK_"

// envSections are the nested config groups. An environment variable whose
// first segment names one maps into that group; anything else stays a
// top-level key, so PADDOCK_UNIT_SYSTEM -> unit_system and
// PADDOCK_DATA_DIR -> data_dir rather than unit.system / data.dir.
var envSections = []string{
	"server", "database", "polling", "upstream", "geocoding", "mqtt", "credentials",
}

func envKeyToPath(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, section := range envSections {
		if strings.HasPrefix(key, section+"_") {
			return section + "." + key[len(section)+1:]
		}
	}
	return key
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// Config is an immutable snapshot of the application configuration.
// Callers receive a pointer from Store.Snapshot and must not mutate it;
// changes go through Store.Save which swaps in a fresh snapshot.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Polling   PollingConfig   `koanf:"polling"`
	Upstream  UpstreamConfig  `koanf:"upstream"`
	Geocoding GeocodingConfig `koanf:"geocoding"`
	MQTT      MQTTConfig      `koanf:"mqtt"`
	// Legacy plaintext credentials, lowest-priority source. See the
	// credentials package for the full lookup order.
	Credentials CredentialsConfig `koanf:"credentials"`

	DataDir    string `koanf:"data_dir"`
	UnitSystem string `koanf:"unit_system"` // metric | imperial_us | imperial_uk
}

type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

type DatabaseConfig struct {
	// Driver selects the gorm/sqlx backend: "sqlite" or "postgres".
	Driver string `koanf:"driver"`
	// Path is the sqlite database file, relative to DataDir unless absolute.
	Path string `koanf:"path"`
	// DSN is the postgres connection string when Driver is "postgres".
	DSN string `koanf:"dsn"`
}

type PollingConfig struct {
	Mode            string `koanf:"mode"` // interval | fixed_time
	IntervalSeconds int    `koanf:"interval_seconds"`
	FixedTime       string `koanf:"fixed_time"` // "HH:MM", local time
}

type UpstreamConfig struct {
	// BaseURL is the telemetry bridge endpoint the client talks to.
	BaseURL           string `koanf:"base_url"`
	Retries           int    `koanf:"retries"`
	RetryDelaySeconds int    `koanf:"retry_delay_seconds"`
	FetchFullRoute    bool   `koanf:"fetch_full_route"`
}

type GeocodingConfig struct {
	Enabled   bool   `koanf:"enabled"`
	BaseURL   string `koanf:"base_url"`
	UserAgent string `koanf:"user_agent"`
	// MinDelayMillis spaces out requests to the upstream geocoder.
	MinDelayMillis int `koanf:"min_delay_millis"`
	// CacheBackend is "memory" or "redis".
	CacheBackend    string `koanf:"cache_backend"`
	CacheTTLSeconds int    `koanf:"cache_ttl_seconds"`
}

type MQTTConfig struct {
	Enabled         bool   `koanf:"enabled"`
	Host            string `koanf:"host"`
	Port            int    `koanf:"port"`
	Username        string `koanf:"username"`
	Password        string `koanf:"password"`
	BaseTopic       string `koanf:"base_topic"`       // "{vin}" is substituted
	DiscoveryPrefix string `koanf:"discovery_prefix"` // Home Assistant discovery root
}

type CredentialsConfig struct {
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

// defaultConfig returns the built-in defaults, applied before the config
// file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   "paddock.db",
		},
		Polling: PollingConfig{
			Mode:            "interval",
			IntervalSeconds: 3600,
			FixedTime:       "07:00",
		},
		Upstream: UpstreamConfig{
			BaseURL:           "http://localhost:9200",
			Retries:           3,
			RetryDelaySeconds: 5,
			FetchFullRoute:    false,
		},
		Geocoding: GeocodingConfig{
			Enabled:         true,
			BaseURL:         "https://nominatim.openstreetmap.org",
			UserAgent:       "paddock-dashboard",
			MinDelayMillis:  1100,
			CacheBackend:    "memory",
			CacheTTLSeconds: 86400,
		},
		MQTT: MQTTConfig{
			Enabled:         false,
			Port:            1883,
			BaseTopic:       "paddock/{vin}",
			DiscoveryPrefix: "homeassistant",
		},
		DataDir:    "data",
		UnitSystem: "metric",
	}
}

// Load reads configuration in layers: defaults, then the yaml file at path
// (skipped when missing), then PADDOCK_ environment variables.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", envKeyToPath)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate rejects values the rest of the system cannot recover from.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Polling.Mode {
	case "interval", "fixed_time":
	default:
		return fmt.Errorf("unsupported polling mode %q", c.Polling.Mode)
	}
	if c.Polling.IntervalSeconds <= 0 {
		return fmt.Errorf("polling interval must be positive, got %d", c.Polling.IntervalSeconds)
	}
	switch c.UnitSystem {
	case "metric", "imperial_us", "imperial_uk":
	default:
		return fmt.Errorf("unsupported unit system %q", c.UnitSystem)
	}
	if c.Upstream.Retries < 0 {
		return fmt.Errorf("upstream retries must not be negative, got %d", c.Upstream.Retries)
	}
	return nil
}

// DatabasePath resolves the sqlite file location against the data directory.
func (c *Config) DatabasePath() string {
	if filepath.IsAbs(c.Database.Path) {
		return c.Database.Path
	}
	return filepath.Join(c.DataDir, c.Database.Path)
}

// CacheFilePath is where the combined per-cycle vehicle snapshot lives.
func (c *Config) CacheFilePath() string {
	return filepath.Join(c.DataDir, "vehicle_data.json")
}

// IsImperial reports whether the configured unit system is one of the
// imperial variants.
func (c *Config) IsImperial() bool {
	return strings.HasPrefix(c.UnitSystem, "imperial")
}

// FindConfigFile returns the config file path: CONFIG_PATH when set,
// otherwise paddock.yaml inside the given data directory.
func FindConfigFile(dataDir string) string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		return envPath
	}
	return filepath.Join(dataDir, "paddock.yaml")
}
