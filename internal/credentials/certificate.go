package credentials

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/hex"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/project-kessel/oidcforge/internal/fault"
)

// Certificate is an X.509 certificate with its private key, when available.
type Certificate struct {
	Leaf       *x509.Certificate
	PrivateKey crypto.PrivateKey
}

// HasPrivateKey reports whether the certificate carries a private key
func (c *Certificate) HasPrivateKey() bool {
	return c != nil && c.PrivateKey != nil
}

// Thumbprint returns the upper-case hex SHA-1 digest of the DER certificate
func (c *Certificate) Thumbprint() string {
	sum := sha1.Sum(c.Leaf.Raw)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// Key returns the wrapped key view of the certificate: the private key when
// present, the certificate's public key otherwise.
func (c *Certificate) Key() (AsymmetricKey, error) {
	switch private := c.PrivateKey.(type) {
	case *rsa.PrivateKey:
		return asAsymmetricKey(NewRSAKey(private))
	case *ecdsa.PrivateKey:
		return asAsymmetricKey(NewECDSAKey(private))
	case nil:
	default:
		return nil, fault.Configuration("the certificate %s uses an unsupported private key type %T", c.Thumbprint(), c.PrivateKey)
	}

	switch public := c.Leaf.PublicKey.(type) {
	case *rsa.PublicKey:
		return asAsymmetricKey(NewRSAPublicKey(public))
	case *ecdsa.PublicKey:
		return asAsymmetricKey(NewECDSAPublicKey(public))
	default:
		return nil, fault.Configuration("the certificate %s uses an unsupported public key type %T", c.Thumbprint(), c.Leaf.PublicKey)
	}
}

func asAsymmetricKey[K AsymmetricKey](key K, err error) (AsymmetricKey, error) {
	if err != nil {
		return nil, err
	}
	return key, nil
}

// ValidateCertificate checks that cert is usable as a credential at now:
// the validity window must include now and the private key matching the
// certificate must be present.
func ValidateCertificate(cert *Certificate, now time.Time) error {
	if cert == nil || cert.Leaf == nil {
		return fault.Argument("certificate", "must not be nil")
	}
	if now.Before(cert.Leaf.NotBefore) || now.After(cert.Leaf.NotAfter) {
		return fault.Configuration(
			"the certificate %s is not valid at %s (valid from %s to %s); use a certificate whose validity window includes the current date",
			cert.Thumbprint(), now.UTC().Format(time.RFC3339),
			cert.Leaf.NotBefore.UTC().Format(time.RFC3339), cert.Leaf.NotAfter.UTC().Format(time.RFC3339))
	}
	if !cert.HasPrivateKey() {
		return fault.Configuration("the certificate %s does not contain the required private key", cert.Thumbprint())
	}
	if !cert.keyPairMatches() {
		return fault.Configuration(
			"the private key does not match the certificate %s; supply the private key issued with this certificate",
			cert.Thumbprint())
	}
	return nil
}

// keyPairMatches reports whether the private key is the pair of the
// certificate's public key
func (c *Certificate) keyPairMatches() bool {
	signer, ok := c.PrivateKey.(crypto.Signer)
	if !ok {
		return false
	}
	public, ok := signer.Public().(interface{ Equal(crypto.PublicKey) bool })
	return ok && public.Equal(c.Leaf.PublicKey)
}

// EncryptingCredentialFromCertificate validates cert against clk and infers
// an encrypting credential from its key.
func EncryptingCredentialFromCertificate(cert *Certificate, clk clockwork.Clock) (EncryptingCredential, error) {
	key, err := certificateKey(cert, clk)
	if err != nil {
		return EncryptingCredential{}, err
	}
	return DeriveEncryptingCredential(key)
}

// SigningCredentialFromCertificate validates cert against clk and infers a
// signing credential from its key.
func SigningCredentialFromCertificate(cert *Certificate, clk clockwork.Clock) (SigningCredential, error) {
	key, err := certificateKey(cert, clk)
	if err != nil {
		return SigningCredential{}, err
	}
	return DeriveSigningCredential(key)
}

func certificateKey(cert *Certificate, clk clockwork.Clock) (AsymmetricKey, error) {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	if err := ValidateCertificate(cert, clk.Now()); err != nil {
		return nil, err
	}
	return cert.Key()
}
