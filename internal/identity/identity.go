// Package identity derives the short service identity that namespaces the
// worker service installed by one controller.
package identity

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

// Length is the number of characters in a service identity.
const Length = 8

// Provider supplies the controller's long-lived public key.
type Provider interface {
	// PublicKey returns the encoded public key bytes.
	PublicKey() ([]byte, error)
}

// Derive returns the first Length hex characters of the SHA-256 digest of the
// base64 encoding of pub. The result is deterministic for a given key and
// safe to use in file and unit names.
func Derive(pub []byte) string {
	sum := sha256.Sum256([]byte(base64.StdEncoding.EncodeToString(pub)))
	return hex.EncodeToString(sum[:])[:Length]
}

// ForProvider derives the identity for the key supplied by p.
func ForProvider(p Provider) (string, error) {
	pub, err := p.PublicKey()
	if err != nil {
		return "", fmt.Errorf("identity: public key: %w", err)
	}
	if len(pub) == 0 {
		return "", errors.New("identity: public key is empty")
	}
	return Derive(pub), nil
}

// StaticKey is a Provider backed by fixed key bytes.
type StaticKey []byte

// PublicKey returns the key bytes.
func (k StaticKey) PublicKey() ([]byte, error) {
	return []byte(k), nil
}
