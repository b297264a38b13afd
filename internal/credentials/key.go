package credentials

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"fmt"

	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/project-kessel/oidcforge/internal/fault"
)

// Key is the capability view of key material used by the normalizer.
type Key interface {
	// KeyID returns the key identifier (RFC 7638 thumbprint unless set explicitly)
	KeyID() string

	// IsSupportedAlgorithm reports whether the key can be used with the
	// named JOSE algorithm (e.g. "A256KW", "RSA-OAEP", "RS256")
	IsSupportedAlgorithm(algorithm string) bool
}

// AsymmetricKey is a Key with a public half and an optional private half.
type AsymmetricKey interface {
	Key

	// HasPrivateKey reports whether the private half is available
	HasPrivateKey() bool

	// Public returns the public key
	Public() crypto.PublicKey
}

// SymmetricKey is a shared secret usable for AES key wrap and HMAC.
type SymmetricKey struct {
	id       string
	material []byte
}

// NewSymmetricKey copies material into a new SymmetricKey
func NewSymmetricKey(material []byte) (*SymmetricKey, error) {
	if len(material) == 0 {
		return nil, fault.Argument("key", "symmetric key material must not be empty")
	}
	k := &SymmetricKey{material: append([]byte(nil), material...)}
	id, err := ComputeThumbprint(k.material)
	if err != nil {
		return nil, err
	}
	k.id = id
	return k, nil
}

func (k *SymmetricKey) KeyID() string { return k.id }

// Size returns the key length in bits
func (k *SymmetricKey) Size() int { return len(k.material) * 8 }

// Material returns a copy of the secret
func (k *SymmetricKey) Material() []byte { return append([]byte(nil), k.material...) }

func (k *SymmetricKey) IsSupportedAlgorithm(algorithm string) bool {
	switch algorithm {
	case "A128KW":
		return len(k.material) == 16
	case "A192KW":
		return len(k.material) == 24
	case "A256KW":
		return len(k.material) == 32
	case "HS256":
		return len(k.material) >= 32
	case "HS384":
		return len(k.material) >= 48
	case "HS512":
		return len(k.material) >= 64
	default:
		return false
	}
}

// RSAKey wraps an RSA key pair or a bare public key.
type RSAKey struct {
	id      string
	public  *rsa.PublicKey
	private *rsa.PrivateKey
}

// NewRSAKey creates a key from a private key; the public half is derived
func NewRSAKey(private *rsa.PrivateKey) (*RSAKey, error) {
	if private == nil {
		return nil, fault.Argument("key", "RSA private key must not be nil")
	}
	return newRSAKey(&private.PublicKey, private)
}

// NewRSAPublicKey creates a key that carries no private half
func NewRSAPublicKey(public *rsa.PublicKey) (*RSAKey, error) {
	if public == nil {
		return nil, fault.Argument("key", "RSA public key must not be nil")
	}
	return newRSAKey(public, nil)
}

func newRSAKey(public *rsa.PublicKey, private *rsa.PrivateKey) (*RSAKey, error) {
	id, err := ComputeThumbprint(public)
	if err != nil {
		return nil, err
	}
	return &RSAKey{id: id, public: public, private: private}, nil
}

func (k *RSAKey) KeyID() string            { return k.id }
func (k *RSAKey) HasPrivateKey() bool      { return k.private != nil }
func (k *RSAKey) Public() crypto.PublicKey { return k.public }

// PrivateKey returns the private half, nil when absent
func (k *RSAKey) PrivateKey() *rsa.PrivateKey { return k.private }

func (k *RSAKey) IsSupportedAlgorithm(algorithm string) bool {
	// 2048 bits is the floor for every RSA algorithm accepted here
	if k.public.N.BitLen() < 2048 {
		return false
	}
	switch algorithm {
	case "RS256", "RS384", "RS512", "PS256", "PS384", "PS512", "RSA-OAEP", "RSA-OAEP-256":
		return true
	default:
		return false
	}
}

// ECDSAKey wraps an ECDSA key pair or a bare public key.
type ECDSAKey struct {
	id      string
	public  *ecdsa.PublicKey
	private *ecdsa.PrivateKey
}

// NewECDSAKey creates a key from a private key; the public half is derived
func NewECDSAKey(private *ecdsa.PrivateKey) (*ECDSAKey, error) {
	if private == nil {
		return nil, fault.Argument("key", "ECDSA private key must not be nil")
	}
	return newECDSAKey(&private.PublicKey, private)
}

// NewECDSAPublicKey creates a key that carries no private half
func NewECDSAPublicKey(public *ecdsa.PublicKey) (*ECDSAKey, error) {
	if public == nil {
		return nil, fault.Argument("key", "ECDSA public key must not be nil")
	}
	return newECDSAKey(public, nil)
}

func newECDSAKey(public *ecdsa.PublicKey, private *ecdsa.PrivateKey) (*ECDSAKey, error) {
	id, err := ComputeThumbprint(public)
	if err != nil {
		return nil, err
	}
	return &ECDSAKey{id: id, public: public, private: private}, nil
}

func (k *ECDSAKey) KeyID() string            { return k.id }
func (k *ECDSAKey) HasPrivateKey() bool      { return k.private != nil }
func (k *ECDSAKey) Public() crypto.PublicKey { return k.public }

// PrivateKey returns the private half, nil when absent
func (k *ECDSAKey) PrivateKey() *ecdsa.PrivateKey { return k.private }

func (k *ECDSAKey) IsSupportedAlgorithm(algorithm string) bool {
	switch k.public.Curve {
	case elliptic.P256():
		return algorithm == "ES256"
	case elliptic.P384():
		return algorithm == "ES384"
	case elliptic.P521():
		return algorithm == "ES512"
	default:
		return false
	}
}

// KeyFromRaw wraps raw Go key material.
// Supported: []byte, *rsa.PrivateKey, *rsa.PublicKey, *ecdsa.PrivateKey,
// *ecdsa.PublicKey and jwk.Key.
func KeyFromRaw(raw any) (Key, error) {
	switch key := raw.(type) {
	case nil:
		return nil, fault.Argument("key", "must not be nil")
	case []byte:
		return asKey(NewSymmetricKey(key))
	case *rsa.PrivateKey:
		return asKey(NewRSAKey(key))
	case *rsa.PublicKey:
		return asKey(NewRSAPublicKey(key))
	case *ecdsa.PrivateKey:
		return asKey(NewECDSAKey(key))
	case *ecdsa.PublicKey:
		return asKey(NewECDSAPublicKey(key))
	case jwk.Key:
		return KeyFromJWK(key)
	default:
		return nil, fault.Argumentf("key", "unsupported key type %T", raw)
	}
}

// asKey avoids returning a typed nil pointer inside a non-nil Key
func asKey[K Key](key K, err error) (Key, error) {
	if err != nil {
		return nil, err
	}
	return key, nil
}

// KeyFromJWK exports a JWK to raw material and wraps it.
func KeyFromJWK(key jwk.Key) (Key, error) {
	if key == nil {
		return nil, fault.Argument("key", "must not be nil")
	}
	var raw any
	if err := jwk.Export(key, &raw); err != nil {
		return nil, fault.Argumentf("key", "failed to export JWK: %v", err)
	}
	return KeyFromRaw(raw)
}

// ComputeThumbprint computes the RFC 7638 JWK Thumbprint of raw key material.
// Returns a base64url-encoded SHA-256 hash of the canonical JWK representation.
// For key pairs the thumbprint only covers the public members.
func ComputeThumbprint(raw any) (string, error) {
	key, err := jwk.Import(raw)
	if err != nil {
		return "", fmt.Errorf("failed to convert key to JWK: %w", err)
	}

	hash, err := key.Thumbprint(crypto.SHA256)
	if err != nil {
		return "", fmt.Errorf("failed to compute JWK thumbprint: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(hash), nil
}
