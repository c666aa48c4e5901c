package fetcher

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"motorpool/paddock/internal/models/dtos"
)

// CacheFile is the on-disk vehicle snapshot shared between the fetch cycle
// (sole writer) and the read endpoints. Writes go through a temp file and an
// atomic rename, so a reader holding the lock never sees a partial artifact
// and a failed write leaves the previous snapshot in place.
type CacheFile struct {
	path string
	mu   sync.RWMutex
}

// NewCacheFile creates a cache artifact handle at the given path
func NewCacheFile(path string) *CacheFile {
	return &CacheFile{path: path}
}

// Read loads the current artifact, nil when none has been written yet.
func (c *CacheFile) Read() (*dtos.CacheArtifact, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	raw, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cache artifact: %w", err)
	}

	var artifact dtos.CacheArtifact
	if err := json.Unmarshal(raw, &artifact); err != nil {
		return nil, fmt.Errorf("failed to parse cache artifact: %w", err)
	}
	return &artifact, nil
}

// Write atomically replaces the artifact.
func (c *CacheFile) Write(artifact *dtos.CacheArtifact) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache artifact: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write cache artifact: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace cache artifact: %w", err)
	}
	return nil
}

// ModTime returns when the artifact was last written, false when it does
// not exist. The scheduler uses this for the startup staleness check.
func (c *CacheFile) ModTime() (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info, err := os.Stat(c.path)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}
