// Package keys persists generated signing and encryption keys so that they
// survive restarts, unlike the ephemeral keys created by the builders.
package keys

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"

	"github.com/project-kessel/oidcforge/internal/credentials"
)

// ErrKeyNotFound is returned when no key has been persisted under a name
var ErrKeyNotFound = errors.New("key not found")

// KeyType represents the cryptographic key type
type KeyType string

const (
	KeyTypeECP256  KeyType = "EC-P256"
	KeyTypeECP384  KeyType = "EC-P384"
	KeyTypeRSA2048 KeyType = "RSA-2048"
	KeyTypeRSA4096 KeyType = "RSA-4096"
	KeyTypeAES256  KeyType = "AES-256"
)

// Validate reports whether t is a supported key type
func (t KeyType) Validate() error {
	switch t {
	case KeyTypeECP256, KeyTypeECP384, KeyTypeRSA2048, KeyTypeRSA4096, KeyTypeAES256:
		return nil
	default:
		return fmt.Errorf("unsupported key type: %s", t)
	}
}

// Store loads and rotates named keys.
type Store interface {
	// Load returns the current key for name, or ErrKeyNotFound
	Load(ctx context.Context, name string) (credentials.Key, error)

	// Rotate generates a new key for name and makes it current
	Rotate(ctx context.Context, name string) (credentials.Key, error)
}

// LoadOrCreate returns the current key for name, generating one if none exists yet.
func LoadOrCreate(ctx context.Context, s Store, name string) (credentials.Key, error) {
	key, err := s.Load(ctx, name)
	if errors.Is(err, ErrKeyNotFound) {
		return s.Rotate(ctx, name)
	}
	return key, err
}

// generate returns raw key material in a form accepted by credentials.KeyFromRaw
func generate(t KeyType) (any, error) {
	var (
		raw any
		err error
	)
	switch t {
	case KeyTypeECP256:
		raw, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	case KeyTypeECP384:
		raw, err = ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	case KeyTypeRSA2048:
		raw, err = rsa.GenerateKey(rand.Reader, 2048)
	case KeyTypeRSA4096:
		raw, err = rsa.GenerateKey(rand.Reader, 4096)
	case KeyTypeAES256:
		material := make([]byte, 32)
		_, err = rand.Read(material)
		raw = material
	default:
		return nil, fmt.Errorf("unsupported key type: %s", t)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return raw, nil
}
