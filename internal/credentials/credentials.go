// Package credentials resolves the manufacturer account login. Sources are
// consulted in priority order on every load, so rotating a credential never
// requires a restart: environment variables first, then the encrypted
// credentials file, then the plaintext yaml config as a legacy fallback.
package credentials

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"

	"motorpool/paddock/internal/config"
)

const (
	envUsername = "PADDOCK_USERNAME"
	envPassword = "PADDOCK_PASSWORD"

	credentialsFile = "credentials.age"
	keyFile         = "credentials.key"
)

// ErrNotConfigured means no source yielded a usable credential pair.
var ErrNotConfigured = errors.New("no credentials configured")

// Manager reads and writes the stored credential pair.
type Manager struct {
	store *config.Store
}

// NewManager creates a credentials manager backed by the config store
func NewManager(store *config.Store) *Manager {
	return &Manager{store: store}
}

type credentialPair struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Load returns the current username and password. Every source is re-read
// on each call.
func (m *Manager) Load() (string, string, error) {
	if user, pass := os.Getenv(envUsername), os.Getenv(envPassword); user != "" && pass != "" {
		return user, pass, nil
	}

	cfg := m.store.Snapshot()

	pair, err := m.readEncrypted(cfg.DataDir)
	if err != nil {
		return "", "", err
	}
	if pair != nil {
		return pair.Username, pair.Password, nil
	}

	if cfg.Credentials.Username != "" && cfg.Credentials.Password != "" {
		return cfg.Credentials.Username, cfg.Credentials.Password, nil
	}

	return "", "", ErrNotConfigured
}

// Username returns only the account name, for display purposes.
func (m *Manager) Username() (string, error) {
	user, _, err := m.Load()
	return user, err
}

// Save encrypts the pair into the data directory, creating the local key
// file on first use. Saved credentials take effect on the next load.
func (m *Manager) Save(username, password string) error {
	if username == "" || password == "" {
		return errors.New("username and password must both be set")
	}

	cfg := m.store.Snapshot()
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	passphrase, err := m.loadOrCreateKey(cfg.DataDir)
	if err != nil {
		return err
	}

	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("failed to build encryption recipient: %w", err)
	}

	payload, err := json.Marshal(credentialPair{Username: username, Password: password})
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return fmt.Errorf("failed to start encryption: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("failed to encrypt credentials: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish encryption: %w", err)
	}

	path := filepath.Join(cfg.DataDir, credentialsFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace credentials file: %w", err)
	}
	return nil
}

// readEncrypted decrypts the stored pair, nil when no file exists.
func (m *Manager) readEncrypted(dataDir string) (*credentialPair, error) {
	encPath := filepath.Join(dataDir, credentialsFile)
	ciphertext, err := os.ReadFile(encPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	passphrase, err := os.ReadFile(filepath.Join(dataDir, keyFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials key: %w", err)
	}

	identity, err := age.NewScryptIdentity(strings.TrimSpace(string(passphrase)))
	if err != nil {
		return nil, fmt.Errorf("failed to build decryption identity: %w", err)
	}

	r, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credentials: %w", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read decrypted credentials: %w", err)
	}

	var pair credentialPair
	if err := json.Unmarshal(plaintext, &pair); err != nil {
		return nil, fmt.Errorf("failed to parse credentials: %w", err)
	}
	return &pair, nil
}

// loadOrCreateKey returns the local passphrase, generating it on first save.
func (m *Manager) loadOrCreateKey(dataDir string) (string, error) {
	path := filepath.Join(dataDir, keyFile)
	if existing, err := os.ReadFile(path); err == nil {
		return strings.TrimSpace(string(existing)), nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read credentials key: %w", err)
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate credentials key: %w", err)
	}
	key := hex.EncodeToString(raw)

	if err := os.WriteFile(path, []byte(key+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("failed to write credentials key: %w", err)
	}
	return key, nil
}
