package identity

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var identityPattern = regexp.MustCompile(`^[0-9a-f]{8}$`)

func TestDerive_Deterministic(t *testing.T) {
	key := []byte("controller public key bytes")
	first := Derive(key)
	for i := 0; i < 10; i++ {
		if got := Derive(key); got != first {
			t.Fatalf("Derive() = %q on call %d, want %q", got, i, first)
		}
	}
	if !identityPattern.MatchString(first) {
		t.Errorf("Derive() = %q, want 8 lowercase hex characters", first)
	}
}

func TestDerive_KnownValue(t *testing.T) {
	// sha256("AQID") where AQID is base64 of {1,2,3}; pinned so the identity
	// stays stable across releases.
	if got := Derive([]byte{1, 2, 3}); got != "b70035bb" {
		t.Errorf("Derive({1,2,3}) = %q, want %q", got, "b70035bb")
	}
}

func TestDerive_Distinct(t *testing.T) {
	seen := make(map[string]string)
	for i := 0; i < 1000; i++ {
		key := fmt.Sprintf("key-%d", i)
		id := Derive([]byte(key))
		if prev, ok := seen[id]; ok {
			t.Fatalf("Derive(%q) = Derive(%q) = %q", key, prev, id)
		}
		seen[id] = key
	}
}

func TestForProvider(t *testing.T) {
	id, err := ForProvider(StaticKey("abc"))
	if err != nil {
		t.Fatalf("ForProvider() error = %v", err)
	}
	if id != Derive([]byte("abc")) {
		t.Errorf("ForProvider() = %q, want %q", id, Derive([]byte("abc")))
	}
}

func TestForProvider_Errors(t *testing.T) {
	if _, err := ForProvider(StaticKey(nil)); err == nil {
		t.Error("ForProvider(empty) error = nil, want error")
	}

	boom := errors.New("boom")
	_, err := ForProvider(failingProvider{boom})
	if !errors.Is(err, boom) {
		t.Errorf("ForProvider() error = %v, want wrapped %v", err, boom)
	}
}

type failingProvider struct{ err error }

func (p failingProvider) PublicKey() ([]byte, error) { return nil, p.err }

func TestLoadOrGenerateKey_StableAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "controller_ed25519_key")

	first, err := LoadOrGenerateKey(path, testLogger())
	if err != nil {
		t.Fatalf("LoadOrGenerateKey() error = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat(%q) = %v", path, err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("key perm = %04o, want 0600", perm)
	}

	second, err := LoadOrGenerateKey(path, testLogger())
	if err != nil {
		t.Fatalf("LoadOrGenerateKey() reload error = %v", err)
	}

	id1, err := ForProvider(first)
	if err != nil {
		t.Fatalf("ForProvider() error = %v", err)
	}
	id2, err := ForProvider(second)
	if err != nil {
		t.Fatalf("ForProvider() error = %v", err)
	}
	if id1 != id2 {
		t.Errorf("identity changed across reload: %q != %q", id1, id2)
	}
	if first.Fingerprint() != second.Fingerprint() {
		t.Errorf("fingerprint changed across reload")
	}
}

func TestKeyFile_DefersKeyCreation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "controller_ed25519_key")

	kf := NewKeyFile(path, testLogger())
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("Stat(%q) = %v, want key not created before first use", path, err)
	}

	id, err := ForProvider(kf)
	if err != nil {
		t.Fatalf("ForProvider() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Stat(%q) = %v, want key created on first use", path, err)
	}

	loaded, err := LoadOrGenerateKey(path, testLogger())
	if err != nil {
		t.Fatalf("LoadOrGenerateKey() error = %v", err)
	}
	want, err := ForProvider(loaded)
	if err != nil {
		t.Fatalf("ForProvider() error = %v", err)
	}
	if id != want {
		t.Errorf("KeyFile identity = %q, want %q", id, want)
	}
}

func TestKeyFile_PropagatesLoadError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "controller_ed25519_key")
	if err := os.WriteFile(path, []byte("not a key"), 0o600); err != nil {
		t.Fatalf("WriteFile(%q) = %v", path, err)
	}
	if _, err := ForProvider(NewKeyFile(path, testLogger())); err == nil {
		t.Fatal("ForProvider() error = nil, want parse error")
	}
}

func TestLoadOrGenerateKey_CorruptKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "controller_ed25519_key")
	if err := os.WriteFile(path, []byte("not a key"), 0o600); err != nil {
		t.Fatalf("WriteFile(%q) = %v", path, err)
	}
	if _, err := LoadOrGenerateKey(path, testLogger()); err == nil {
		t.Fatal("LoadOrGenerateKey() error = nil, want parse error")
	}
}

func TestConfig_ApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.KeyPath != DefaultKeyPath {
		t.Errorf("KeyPath = %q, want %q", cfg.KeyPath, DefaultKeyPath)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}
