// Package credentials turns raw key material and X.509 certificates into the
// signing and encrypting credentials held by the server and validation options.
package credentials

import (
	"fmt"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/project-kessel/oidcforge/internal/fault"
)

// EncryptionAlgorithmPreferences is the ordered list of key-wrap algorithms
// tried when an encrypting credential is inferred from a bare key.
// The first algorithm the key supports wins.
var EncryptionAlgorithmPreferences = []jwa.KeyEncryptionAlgorithm{
	jwa.A256KW(),
	jwa.RSA_OAEP(),
}

// DefaultContentEncryption is paired with every inferred key-wrap algorithm.
var DefaultContentEncryption = jwa.A256CBC_HS512()

// SigningAlgorithmPreferences is the ordered list of signature algorithms
// tried when a signing credential is inferred from a bare key.
var SigningAlgorithmPreferences = []jwa.SignatureAlgorithm{
	jwa.RS256(),
	jwa.ES256(),
	jwa.ES384(),
	jwa.ES512(),
	jwa.HS256(),
}

// EncryptingCredential pairs key material with the algorithms used to
// protect tokens for it.
type EncryptingCredential struct {
	Key               Key
	KeyAlgorithm      jwa.KeyEncryptionAlgorithm
	ContentEncryption jwa.ContentEncryptionAlgorithm
}

// SigningCredential pairs key material with a signature algorithm.
type SigningCredential struct {
	Key       Key
	Algorithm jwa.SignatureAlgorithm
}

// NewEncryptingCredential builds an explicit credential, checking that the
// key supports the requested key-wrap algorithm.
func NewEncryptingCredential(key Key, alg jwa.KeyEncryptionAlgorithm, enc jwa.ContentEncryptionAlgorithm) (EncryptingCredential, error) {
	if key == nil {
		return EncryptingCredential{}, fault.Argument("key", "must not be nil")
	}
	if alg.String() == "" {
		return EncryptingCredential{}, fault.Argument("algorithm", "must not be empty")
	}
	if enc.String() == "" {
		return EncryptingCredential{}, fault.Argument("encryption", "must not be empty")
	}
	if !key.IsSupportedAlgorithm(alg.String()) {
		return EncryptingCredential{}, fault.Argumentf("algorithm", "key %s does not support %s", key.KeyID(), alg)
	}
	return EncryptingCredential{Key: key, KeyAlgorithm: alg, ContentEncryption: enc}, nil
}

// NewSigningCredential builds an explicit credential, checking that the key
// supports the requested signature algorithm.
func NewSigningCredential(key Key, alg jwa.SignatureAlgorithm) (SigningCredential, error) {
	if key == nil {
		return SigningCredential{}, fault.Argument("key", "must not be nil")
	}
	if alg.String() == "" {
		return SigningCredential{}, fault.Argument("algorithm", "must not be empty")
	}
	if !key.IsSupportedAlgorithm(alg.String()) {
		return SigningCredential{}, fault.Argumentf("algorithm", "key %s does not support %s", key.KeyID(), alg)
	}
	return SigningCredential{Key: key, Algorithm: alg}, nil
}

// DeriveEncryptingCredential infers an encrypting credential from a key by
// walking EncryptionAlgorithmPreferences.
func DeriveEncryptingCredential(key Key) (EncryptingCredential, error) {
	if err := requireUsableKey(key); err != nil {
		return EncryptingCredential{}, err
	}

	for _, alg := range EncryptionAlgorithmPreferences {
		if key.IsSupportedAlgorithm(alg.String()) {
			return EncryptingCredential{
				Key:               key,
				KeyAlgorithm:      alg,
				ContentEncryption: DefaultContentEncryption,
			}, nil
		}
	}

	return EncryptingCredential{}, fault.Configuration(
		"an encryption algorithm cannot be automatically inferred from the encrypting key %s; "+
			"register an EncryptingCredential with an explicit algorithm using AddEncryptionCredential instead",
		key.KeyID())
}

// DeriveSigningCredential infers a signing credential from a key by walking
// SigningAlgorithmPreferences.
func DeriveSigningCredential(key Key) (SigningCredential, error) {
	if err := requireUsableKey(key); err != nil {
		return SigningCredential{}, err
	}

	for _, alg := range SigningAlgorithmPreferences {
		if key.IsSupportedAlgorithm(alg.String()) {
			return SigningCredential{Key: key, Algorithm: alg}, nil
		}
	}

	return SigningCredential{}, fault.Configuration(
		"a signature algorithm cannot be automatically inferred from the signing key %s; "+
			"register a SigningCredential with an explicit algorithm using AddSigningCredential instead",
		key.KeyID())
}

func requireUsableKey(key Key) error {
	if key == nil {
		return fault.Argument("key", "must not be nil")
	}
	// Checked before probing: a public-only key is never usable here.
	if asymmetric, ok := key.(AsymmetricKey); ok && !asymmetric.HasPrivateKey() {
		return fault.Configuration("the asymmetric key %s is missing private key", key.KeyID())
	}
	return nil
}

// PublicJWK exports the public half of the credential for a JWKS document.
// ok is false for symmetric credentials, which are never published.
func (c EncryptingCredential) PublicJWK() (key jwk.Key, ok bool, err error) {
	return publicJWK(c.Key, c.KeyAlgorithm, "enc")
}

// PublicJWK exports the public half of the credential for a JWKS document.
// ok is false for symmetric credentials, which are never published.
func (c SigningCredential) PublicJWK() (key jwk.Key, ok bool, err error) {
	return publicJWK(c.Key, c.Algorithm, "sig")
}

func publicJWK(key Key, alg jwa.KeyAlgorithm, use string) (jwk.Key, bool, error) {
	asymmetric, ok := key.(AsymmetricKey)
	if !ok {
		return nil, false, nil
	}

	public, err := jwk.Import(asymmetric.Public())
	if err != nil {
		return nil, false, fmt.Errorf("failed to import public key: %w", err)
	}
	if err := public.Set(jwk.KeyIDKey, key.KeyID()); err != nil {
		return nil, false, fmt.Errorf("failed to set key ID: %w", err)
	}
	if err := public.Set(jwk.AlgorithmKey, alg); err != nil {
		return nil, false, fmt.Errorf("failed to set algorithm: %w", err)
	}
	if err := public.Set(jwk.KeyUsageKey, use); err != nil {
		return nil, false, fmt.Errorf("failed to set key usage: %w", err)
	}
	return public, true, nil
}

// PublicKeySet builds a JWKS from the asymmetric credentials, signing keys first.
func PublicKeySet(signing []SigningCredential, encrypting []EncryptingCredential) (jwk.Set, error) {
	set := jwk.NewSet()
	for _, c := range signing {
		key, ok, err := c.PublicJWK()
		if err != nil {
			return nil, err
		}
		if ok {
			if err := set.AddKey(key); err != nil {
				return nil, fmt.Errorf("failed to add signing key %s: %w", c.Key.KeyID(), err)
			}
		}
	}
	for _, c := range encrypting {
		key, ok, err := c.PublicJWK()
		if err != nil {
			return nil, err
		}
		if ok {
			if err := set.AddKey(key); err != nil {
				return nil, fmt.Errorf("failed to add encryption key %s: %w", c.Key.KeyID(), err)
			}
		}
	}
	return set, nil
}
