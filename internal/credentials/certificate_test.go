package credentials

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-kessel/oidcforge/internal/fault"
	"github.com/project-kessel/oidcforge/internal/fs"
)

var certEpoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// selfSigned creates a certificate valid for one year from certEpoch
func selfSigned(t *testing.T, private crypto.Signer) *Certificate {
	t.Helper()
	template := &x509.Certificate{
		SerialNumber: big.NewInt(42),
		Subject:      pkix.Name{CommonName: "oidcforge test"},
		NotBefore:    certEpoch,
		NotAfter:     certEpoch.AddDate(1, 0, 0),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, private.Public(), private)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return &Certificate{Leaf: leaf, PrivateKey: private}
}

func encodePEM(t *testing.T, cert *Certificate, withKey bool) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: cert.Leaf.Raw}))
	if withKey {
		der, err := x509.MarshalPKCS8PrivateKey(cert.PrivateKey)
		require.NoError(t, err)
		require.NoError(t, pem.Encode(&buf, &pem.Block{Type: "PRIVATE KEY", Bytes: der}))
	}
	return buf.Bytes()
}

func TestValidateCertificate(t *testing.T) {
	cert := selfSigned(t, newRSA(t))

	t.Run("inside validity window", func(t *testing.T) {
		assert.NoError(t, ValidateCertificate(cert, certEpoch.AddDate(0, 6, 0)))
	})

	t.Run("not yet valid", func(t *testing.T) {
		err := ValidateCertificate(cert, certEpoch.Add(-time.Hour))
		require.ErrorIs(t, err, fault.ErrConfiguration)
		assert.Contains(t, err.Error(), cert.Thumbprint())
	})

	t.Run("expired", func(t *testing.T) {
		err := ValidateCertificate(cert, certEpoch.AddDate(2, 0, 0))
		require.ErrorIs(t, err, fault.ErrConfiguration)
	})

	t.Run("missing private key", func(t *testing.T) {
		publicOnly := &Certificate{Leaf: cert.Leaf}
		err := ValidateCertificate(publicOnly, certEpoch.AddDate(0, 1, 0))
		require.ErrorIs(t, err, fault.ErrConfiguration)
		assert.Contains(t, err.Error(), "private key")
	})

	t.Run("private key of another certificate", func(t *testing.T) {
		mismatched := &Certificate{Leaf: cert.Leaf, PrivateKey: newRSA(t)}
		err := ValidateCertificate(mismatched, certEpoch.AddDate(0, 1, 0))
		require.ErrorIs(t, err, fault.ErrConfiguration)
		assert.Contains(t, err.Error(), "does not match")
	})

	t.Run("private key of another type", func(t *testing.T) {
		mismatched := &Certificate{Leaf: cert.Leaf, PrivateKey: newEC(t, elliptic.P256())}
		err := ValidateCertificate(mismatched, certEpoch.AddDate(0, 1, 0))
		require.ErrorIs(t, err, fault.ErrConfiguration)
	})

	t.Run("nil certificate", func(t *testing.T) {
		require.ErrorIs(t, ValidateCertificate(nil, certEpoch), fault.ErrArgument)
	})
}

func TestSigningCredentialFromCertificate_MismatchedPEMKey(t *testing.T) {
	clk := clockwork.NewFakeClockAt(certEpoch.AddDate(0, 1, 0))
	cert := selfSigned(t, newRSA(t))

	// certificate A bundled with the private key of B
	bundle := encodePEM(t, &Certificate{Leaf: cert.Leaf, PrivateKey: newRSA(t)}, true)

	parsed, err := ParseCertificate(bundle, "")
	require.NoError(t, err)

	_, err = SigningCredentialFromCertificate(parsed, clk)
	require.ErrorIs(t, err, fault.ErrConfiguration)
	assert.Contains(t, err.Error(), cert.Thumbprint())

	_, err = EncryptingCredentialFromCertificate(parsed, clk)
	require.ErrorIs(t, err, fault.ErrConfiguration)
}

func TestEncryptingCredentialFromCertificate(t *testing.T) {
	clk := clockwork.NewFakeClockAt(certEpoch.AddDate(0, 1, 0))

	t.Run("rsa certificate", func(t *testing.T) {
		cert := selfSigned(t, newRSA(t))
		cred, err := EncryptingCredentialFromCertificate(cert, clk)
		require.NoError(t, err)
		assert.Equal(t, jwa.RSA_OAEP(), cred.KeyAlgorithm)
	})

	t.Run("ecdsa certificate cannot encrypt", func(t *testing.T) {
		cert := selfSigned(t, newEC(t, elliptic.P256()))
		_, err := EncryptingCredentialFromCertificate(cert, clk)
		require.ErrorIs(t, err, fault.ErrConfiguration)
	})

	t.Run("expired certificate", func(t *testing.T) {
		cert := selfSigned(t, newRSA(t))
		later := clockwork.NewFakeClockAt(certEpoch.AddDate(2, 0, 0))

		_, err := EncryptingCredentialFromCertificate(cert, later)
		require.ErrorIs(t, err, fault.ErrConfiguration)
	})
}

func TestSigningCredentialFromCertificate(t *testing.T) {
	clk := clockwork.NewFakeClockAt(certEpoch.AddDate(0, 1, 0))
	var private *ecdsa.PrivateKey = newEC(t, elliptic.P384())

	cred, err := SigningCredentialFromCertificate(selfSigned(t, private), clk)
	require.NoError(t, err)
	assert.Equal(t, jwa.ES384(), cred.Algorithm)
}

func TestDirectoryCertificateSource(t *testing.T) {
	memFS := fs.NewMemFileSystem()
	source := NewDirectoryCertificateSource(DirectoryCertificateSourceConfig{
		Root:       "/certs",
		FileSystem: memFS,
	})

	cert := selfSigned(t, newRSA(t))
	other := selfSigned(t, newEC(t, elliptic.P256()))
	store := filepath.Join("/certs", "CurrentUser", "My")
	require.NoError(t, memFS.WriteFileAtomic(filepath.Join(store, "a.pem"), encodePEM(t, other, true), 0600))
	require.NoError(t, memFS.WriteFileAtomic(filepath.Join(store, "b.pem"), encodePEM(t, cert, true), 0600))
	require.NoError(t, memFS.WriteFileAtomic(filepath.Join(store, "notes.txt"), []byte("ignored"), 0600))

	t.Run("finds by thumbprint case-insensitively", func(t *testing.T) {
		found, err := source.Find(StoreLocation{}, lower(cert.Thumbprint()))
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, cert.Thumbprint(), found.Thumbprint())
		assert.True(t, found.HasPrivateKey())
	})

	t.Run("no match", func(t *testing.T) {
		found, err := source.Find(DefaultStoreLocation, "00FF")
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("missing store", func(t *testing.T) {
		found, err := source.Find(StoreLocation{Name: "Root", Location: "LocalMachine"}, cert.Thumbprint())
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("empty thumbprint", func(t *testing.T) {
		_, err := source.Find(DefaultStoreLocation, " ")
		require.ErrorIs(t, err, fault.ErrArgument)
	})
}

func TestLoadFromStream(t *testing.T) {
	source := NewDirectoryCertificateSource(DirectoryCertificateSourceConfig{FileSystem: fs.NewMemFileSystem()})
	cert := selfSigned(t, newRSA(t))

	t.Run("pem with key", func(t *testing.T) {
		loaded, err := source.LoadFromStream(bytes.NewReader(encodePEM(t, cert, true)), "")
		require.NoError(t, err)
		assert.Equal(t, cert.Thumbprint(), loaded.Thumbprint())
		_, ok := loaded.PrivateKey.(*rsa.PrivateKey)
		assert.True(t, ok)
	})

	t.Run("pem without key", func(t *testing.T) {
		loaded, err := source.LoadFromStream(bytes.NewReader(encodePEM(t, cert, false)), "")
		require.NoError(t, err)
		assert.False(t, loaded.HasPrivateKey())
	})

	t.Run("garbage pkcs12", func(t *testing.T) {
		_, err := source.LoadFromStream(bytes.NewReader([]byte{0x30, 0x01, 0x00}), "secret")
		require.ErrorIs(t, err, fault.ErrConfiguration)
	})

	t.Run("empty stream", func(t *testing.T) {
		_, err := source.LoadFromStream(bytes.NewReader(nil), "")
		require.ErrorIs(t, err, fault.ErrArgument)
	})
}

func lower(s string) string {
	return string(bytes.ToLower([]byte(s)))
}
