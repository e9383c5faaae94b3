package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/ssh"

	"github.com/plexsphere/plexinstall/internal/fsutil"
)

// DefaultKeyPath is where the controller key is kept.
const DefaultKeyPath = "/var/lib/plexinstall/controller_ed25519_key"

// Config holds identity settings.
type Config struct {
	// KeyPath is the controller's private key file (OpenSSH PEM).
	// Default: /var/lib/plexinstall/controller_ed25519_key
	KeyPath string `yaml:"key_path"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.KeyPath == "" {
		c.KeyPath = DefaultKeyPath
	}
}

// Validate checks that required fields are set.
func (c *Config) Validate() error {
	if c.KeyPath == "" {
		return errors.New("identity: config: KeyPath is required")
	}
	return nil
}

// SSHKey is a Provider backed by an SSH signer.
type SSHKey struct {
	signer ssh.Signer
}

// NewSSHKey wraps an existing signer.
func NewSSHKey(signer ssh.Signer) *SSHKey {
	return &SSHKey{signer: signer}
}

// PublicKey returns the SSH wire encoding of the public key.
func (k *SSHKey) PublicKey() ([]byte, error) {
	return k.signer.PublicKey().Marshal(), nil
}

// Fingerprint returns the SHA256 fingerprint of the public key.
func (k *SSHKey) Fingerprint() string {
	return ssh.FingerprintSHA256(k.signer.PublicKey())
}

// LoadOrGenerateKey loads the controller's Ed25519 key from path, or
// generates and persists a new one if none exists.
func LoadOrGenerateKey(path string, logger *slog.Logger) (*SSHKey, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		info, statErr := os.Stat(path)
		if statErr == nil && info.Mode().Perm() != 0o600 {
			logger.Warn("controller key file has unexpected permissions",
				"path", path,
				"mode", fmt.Sprintf("%04o", info.Mode().Perm()),
				"component", "identity",
			)
		}

		signer, parseErr := ssh.ParsePrivateKey(data)
		if parseErr != nil {
			return nil, fmt.Errorf("identity: key: parse %s: %w", path, parseErr)
		}
		logger.Debug("loaded controller key", "path", path, "component", "identity")
		return NewSSHKey(signer), nil
	}

	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("identity: key: read %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("identity: key: create directory: %w", err)
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("identity: key: generate: %w", err)
	}

	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		return nil, fmt.Errorf("identity: key: marshal: %w", err)
	}
	if err := fsutil.WriteFileAtomic(dir, filepath.Base(path), pem.EncodeToMemory(block), 0o600); err != nil {
		return nil, fmt.Errorf("identity: key: write %s: %w", path, err)
	}

	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		return nil, fmt.Errorf("identity: key: signer: %w", err)
	}

	logger.Info("generated controller key", "path", path, "component", "identity")
	return NewSSHKey(signer), nil
}

// KeyFile is a Provider that loads or generates the key at its path on the
// first call to PublicKey. Creating a KeyFile touches nothing on disk.
type KeyFile struct {
	path   string
	logger *slog.Logger

	once sync.Once
	key  *SSHKey
	err  error
}

// NewKeyFile returns a KeyFile for path.
func NewKeyFile(path string, logger *slog.Logger) *KeyFile {
	return &KeyFile{path: path, logger: logger}
}

// Load returns the key, loading or generating it once.
func (k *KeyFile) Load() (*SSHKey, error) {
	k.once.Do(func() {
		k.key, k.err = LoadOrGenerateKey(k.path, k.logger)
	})
	return k.key, k.err
}

// PublicKey implements Provider.
func (k *KeyFile) PublicKey() ([]byte, error) {
	key, err := k.Load()
	if err != nil {
		return nil, err
	}
	return key.PublicKey()
}
