package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Store holds the current config snapshot and serializes reload-and-swap.
// Operations take a snapshot once and use it throughout, so a save landing
// mid-cycle never exposes a half-updated config.
type Store struct {
	path string

	mu  sync.RWMutex
	cur *Config
}

// NewStore loads the initial snapshot from path.
func NewStore(path string) (*Store, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, cur: cfg}, nil
}

// Snapshot returns the current immutable config.
func (s *Store) Snapshot() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Path returns the backing yaml file location.
func (s *Store) Path() string {
	return s.path
}

// Reload re-reads all layers and swaps the snapshot.
func (s *Store) Reload() error {
	cfg, err := Load(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cur = cfg
	s.mu.Unlock()
	return nil
}

// SettingsUpdate carries the user-editable subset of settings accepted by
// the settings API. Nil fields are left untouched in the yaml file.
type SettingsUpdate struct {
	PollingMode            *string `json:"polling_mode,omitempty"`
	PollingIntervalSeconds *int    `json:"polling_interval_seconds,omitempty"`
	PollingFixedTime       *string `json:"polling_fixed_time,omitempty"`
	UpstreamRetries        *int    `json:"api_retries,omitempty"`
	UpstreamRetryDelay     *int    `json:"api_retry_delay_seconds,omitempty"`
	UnitSystem             *string `json:"unit_system,omitempty"`
	GeocodingEnabled       *bool   `json:"reverse_geocode_enabled,omitempty"`
}

// Save merges the update into the yaml file, writes it back atomically and
// reloads the snapshot so the next operation observes the new values.
func (s *Store) Save(update SettingsUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := koanf.New(".")
	if _, err := os.Stat(s.path); err == nil {
		if err := k.Load(file.Provider(s.path), yaml.Parser()); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	set := func(key string, v interface{}) error {
		return k.Set(key, v)
	}
	if update.PollingMode != nil {
		if err := set("polling.mode", *update.PollingMode); err != nil {
			return err
		}
	}
	if update.PollingIntervalSeconds != nil {
		if err := set("polling.interval_seconds", *update.PollingIntervalSeconds); err != nil {
			return err
		}
	}
	if update.PollingFixedTime != nil {
		if err := set("polling.fixed_time", *update.PollingFixedTime); err != nil {
			return err
		}
	}
	if update.UpstreamRetries != nil {
		if err := set("upstream.retries", *update.UpstreamRetries); err != nil {
			return err
		}
	}
	if update.UpstreamRetryDelay != nil {
		if err := set("upstream.retry_delay_seconds", *update.UpstreamRetryDelay); err != nil {
			return err
		}
	}
	if update.UnitSystem != nil {
		if err := set("unit_system", *update.UnitSystem); err != nil {
			return err
		}
	}
	if update.GeocodingEnabled != nil {
		if err := set("geocoding.enabled", *update.GeocodingEnabled); err != nil {
			return err
		}
	}

	out, err := yaml.Parser().Marshal(k.Raw())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace config: %w", err)
	}

	cfg, err := Load(s.path)
	if err != nil {
		return fmt.Errorf("failed to reload config after save: %w", err)
	}
	s.cur = cfg
	return nil
}
