package credentials

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"motorpool/paddock/internal/config"
)

func newTestManager(t *testing.T, yamlExtra string) (*Manager, string) {
	t.Helper()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "paddock.yaml")
	content := "data_dir: " + dir + "\n" + yamlExtra
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	store, err := config.NewStore(cfgPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// Tests control the env sources explicitly.
	t.Setenv(envUsername, "")
	t.Setenv(envPassword, "")

	return NewManager(store), dir
}

func TestLoad_NotConfigured(t *testing.T) {
	mgr, _ := newTestManager(t, "")

	_, _, err := mgr.Load()
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
}

func TestLoad_EnvironmentWins(t *testing.T) {
	mgr, _ := newTestManager(t, "credentials:\n  username: yaml-user\n  password: yaml-pass\n")
	t.Setenv(envUsername, "env-user")
	t.Setenv(envPassword, "env-pass")

	user, pass, err := mgr.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if user != "env-user" || pass != "env-pass" {
		t.Errorf("Expected environment credentials, got %q / %q", user, pass)
	}
}

func TestLoad_YamlFallback(t *testing.T) {
	mgr, _ := newTestManager(t, "credentials:\n  username: yaml-user\n  password: yaml-pass\n")

	user, pass, err := mgr.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if user != "yaml-user" || pass != "yaml-pass" {
		t.Errorf("Expected yaml credentials, got %q / %q", user, pass)
	}
}

func TestSaveAndLoad_Roundtrip(t *testing.T) {
	mgr, dir := newTestManager(t, "credentials:\n  username: yaml-user\n  password: yaml-pass\n")

	if err := mgr.Save("stored-user", "stored-pass"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// The encrypted file takes priority over the yaml fallback.
	user, pass, err := mgr.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if user != "stored-user" || pass != "stored-pass" {
		t.Errorf("Expected stored credentials, got %q / %q", user, pass)
	}

	// Ciphertext and key land with owner-only permissions.
	for _, name := range []string{credentialsFile, keyFile} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("Expected %s to exist: %v", name, err)
		}
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Errorf("Expected %s mode 0600, got %o", name, perm)
		}
	}

	// The payload on disk is not plaintext.
	raw, err := os.ReadFile(filepath.Join(dir, credentialsFile))
	if err != nil {
		t.Fatalf("Failed to read credentials file: %v", err)
	}
	if string(raw) == `{"username":"stored-user","password":"stored-pass"}` {
		t.Error("Expected credentials to be encrypted on disk")
	}
}

func TestSave_ReusesKeyAcrossSaves(t *testing.T) {
	mgr, dir := newTestManager(t, "")

	if err := mgr.Save("first", "pass1"); err != nil {
		t.Fatalf("First save failed: %v", err)
	}
	key1, err := os.ReadFile(filepath.Join(dir, keyFile))
	if err != nil {
		t.Fatalf("Failed to read key: %v", err)
	}

	if err := mgr.Save("second", "pass2"); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}
	key2, _ := os.ReadFile(filepath.Join(dir, keyFile))
	if string(key1) != string(key2) {
		t.Error("Expected the key file to be reused across saves")
	}

	user, _, err := mgr.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if user != "second" {
		t.Errorf("Expected latest credentials, got %q", user)
	}
}

func TestSave_RejectsEmptyFields(t *testing.T) {
	mgr, _ := newTestManager(t, "")

	if err := mgr.Save("", "pass"); err == nil {
		t.Error("Expected empty username to be rejected")
	}
	if err := mgr.Save("user", ""); err == nil {
		t.Error("Expected empty password to be rejected")
	}
}

func TestUsername(t *testing.T) {
	mgr, _ := newTestManager(t, "credentials:\n  username: yaml-user\n  password: yaml-pass\n")

	user, err := mgr.Username()
	if err != nil {
		t.Fatalf("Username failed: %v", err)
	}
	if user != "yaml-user" {
		t.Errorf("Expected yaml-user, got %q", user)
	}
}
