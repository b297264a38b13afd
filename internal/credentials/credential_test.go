package credentials

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"testing"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-kessel/oidcforge/internal/fault"
)

// probeKey reports support for a fixed set of algorithm names
type probeKey struct {
	supported map[string]bool
	private   bool
	probes    []string
}

func (k *probeKey) KeyID() string { return "probe" }

func (k *probeKey) IsSupportedAlgorithm(algorithm string) bool {
	k.probes = append(k.probes, algorithm)
	return k.supported[algorithm]
}

// asymmetricProbeKey adds the private key flag to probeKey
type asymmetricProbeKey struct {
	probeKey
}

func (k *asymmetricProbeKey) HasPrivateKey() bool      { return k.private }
func (k *asymmetricProbeKey) Public() crypto.PublicKey { return nil }

func newRSA(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func newEC(t *testing.T, curve elliptic.Curve) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(curve, rand.Reader)
	require.NoError(t, err)
	return key
}

func TestDeriveEncryptingCredential(t *testing.T) {
	t.Run("preferred key wrap algorithm wins", func(t *testing.T) {
		key := &probeKey{supported: map[string]bool{"A256KW": true, "RSA-OAEP": true}}

		cred, err := DeriveEncryptingCredential(key)
		require.NoError(t, err)
		assert.Equal(t, jwa.A256KW(), cred.KeyAlgorithm)
		assert.Equal(t, jwa.A256CBC_HS512(), cred.ContentEncryption)
		assert.Equal(t, []string{"A256KW"}, key.probes)
	})

	t.Run("fallback algorithm is used when preferred is unsupported", func(t *testing.T) {
		key := &probeKey{supported: map[string]bool{"RSA-OAEP": true}}

		cred, err := DeriveEncryptingCredential(key)
		require.NoError(t, err)
		assert.Equal(t, jwa.RSA_OAEP(), cred.KeyAlgorithm)
		assert.Equal(t, []string{"A256KW", "RSA-OAEP"}, key.probes)
	})

	t.Run("no supported algorithm", func(t *testing.T) {
		key := &probeKey{supported: map[string]bool{"A128KW": true}}

		_, err := DeriveEncryptingCredential(key)
		require.ErrorIs(t, err, fault.ErrConfiguration)
		assert.Contains(t, err.Error(), "AddEncryptionCredential")
	})

	t.Run("nil key", func(t *testing.T) {
		_, err := DeriveEncryptingCredential(nil)
		require.ErrorIs(t, err, fault.ErrArgument)
	})

	t.Run("real 256-bit symmetric key", func(t *testing.T) {
		key, err := NewSymmetricKey(make([]byte, 32))
		require.NoError(t, err)

		cred, err := DeriveEncryptingCredential(key)
		require.NoError(t, err)
		assert.Equal(t, jwa.A256KW(), cred.KeyAlgorithm)
	})

	t.Run("real RSA key falls back to RSA-OAEP", func(t *testing.T) {
		key, err := NewRSAKey(newRSA(t))
		require.NoError(t, err)

		cred, err := DeriveEncryptingCredential(key)
		require.NoError(t, err)
		assert.Equal(t, jwa.RSA_OAEP(), cred.KeyAlgorithm)
	})

	t.Run("real ECDSA key supports neither", func(t *testing.T) {
		key, err := NewECDSAKey(newEC(t, elliptic.P256()))
		require.NoError(t, err)

		_, err = DeriveEncryptingCredential(key)
		require.ErrorIs(t, err, fault.ErrConfiguration)
	})

	t.Run("asymmetric key without private key is rejected without probing", func(t *testing.T) {
		key := &asymmetricProbeKey{probeKey{supported: map[string]bool{"A256KW": true}}}

		_, err := DeriveEncryptingCredential(key)
		require.ErrorIs(t, err, fault.ErrConfiguration)
		assert.Contains(t, err.Error(), "missing private key")
		assert.Empty(t, key.probes)
	})

	t.Run("public-only key fails before probing", func(t *testing.T) {
		key, err := NewRSAPublicKey(&newRSA(t).PublicKey)
		require.NoError(t, err)

		_, err = DeriveEncryptingCredential(key)
		require.ErrorIs(t, err, fault.ErrConfiguration)
		assert.Contains(t, err.Error(), "missing private key")
	})
}

func TestDeriveSigningCredential(t *testing.T) {
	tests := []struct {
		name     string
		raw      func(t *testing.T) any
		expected jwa.SignatureAlgorithm
	}{
		{"rsa", func(t *testing.T) any { return newRSA(t) }, jwa.RS256()},
		{"p256", func(t *testing.T) any { return newEC(t, elliptic.P256()) }, jwa.ES256()},
		{"p384", func(t *testing.T) any { return newEC(t, elliptic.P384()) }, jwa.ES384()},
		{"p521", func(t *testing.T) any { return newEC(t, elliptic.P521()) }, jwa.ES512()},
		{"hmac", func(t *testing.T) any { return make([]byte, 64) }, jwa.HS256()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := KeyFromRaw(tt.raw(t))
			require.NoError(t, err)

			cred, err := DeriveSigningCredential(key)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cred.Algorithm)
		})
	}

	t.Run("short symmetric key", func(t *testing.T) {
		key, err := NewSymmetricKey(make([]byte, 16))
		require.NoError(t, err)

		_, err = DeriveSigningCredential(key)
		require.ErrorIs(t, err, fault.ErrConfiguration)
	})
}

func TestNewEncryptingCredential(t *testing.T) {
	key, err := NewSymmetricKey(make([]byte, 16))
	require.NoError(t, err)

	cred, err := NewEncryptingCredential(key, jwa.A128KW(), jwa.A128GCM())
	require.NoError(t, err)
	assert.Equal(t, jwa.A128KW(), cred.KeyAlgorithm)

	_, err = NewEncryptingCredential(key, jwa.A256KW(), jwa.A128GCM())
	require.ErrorIs(t, err, fault.ErrArgument)

	_, err = NewEncryptingCredential(nil, jwa.A256KW(), jwa.A128GCM())
	param, _ := fault.ParamName(err)
	assert.Equal(t, "key", param)
}

func TestKeyFromJWK(t *testing.T) {
	private := newEC(t, elliptic.P256())
	jwkKey, err := jwk.Import(private)
	require.NoError(t, err)

	key, err := KeyFromJWK(jwkKey)
	require.NoError(t, err)

	ec, ok := key.(*ECDSAKey)
	require.True(t, ok)
	assert.True(t, ec.HasPrivateKey())

	expected, err := ComputeThumbprint(&private.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, expected, key.KeyID())
}

func TestKeyFromRaw_Unsupported(t *testing.T) {
	_, err := KeyFromRaw("not a key")
	require.ErrorIs(t, err, fault.ErrArgument)

	_, err = KeyFromRaw(nil)
	require.ErrorIs(t, err, fault.ErrArgument)
}

func TestPublicKeySet(t *testing.T) {
	rsaKey, err := NewRSAKey(newRSA(t))
	require.NoError(t, err)
	secret, err := NewSymmetricKey(make([]byte, 32))
	require.NoError(t, err)

	signing, err := DeriveSigningCredential(rsaKey)
	require.NoError(t, err)
	encrypting, err := DeriveEncryptingCredential(secret)
	require.NoError(t, err)

	set, err := PublicKeySet([]SigningCredential{signing}, []EncryptingCredential{encrypting})
	require.NoError(t, err)
	require.Equal(t, 1, set.Len(), "symmetric keys are never published")

	published, ok := set.Key(0)
	require.True(t, ok)
	kid, ok := published.KeyID()
	require.True(t, ok)
	assert.Equal(t, rsaKey.KeyID(), kid)
}
