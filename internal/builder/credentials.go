package builder

import (
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"io"
	"strings"

	"github.com/project-kessel/oidcforge/internal/credentials"
	"github.com/project-kessel/oidcforge/internal/fault"
)

const (
	usageSigning    = "sig"
	usageEncryption = "enc"
)

// certificateFromStream loads a certificate from r with the configured source
func (s settings) certificateFromStream(r io.Reader, password string) (*credentials.Certificate, error) {
	if r == nil {
		return nil, fault.Argument("stream", "must not be nil")
	}
	return s.certificates.LoadFromStream(r, password)
}

// certificateFromStore finds a certificate by thumbprint with the configured source
func (s settings) certificateFromStore(thumbprint string, location credentials.StoreLocation) (*credentials.Certificate, error) {
	if strings.TrimSpace(thumbprint) == "" {
		return nil, fault.Argument("thumbprint", "must not be empty")
	}
	if location.Name == "" || location.Location == "" {
		location = credentials.DefaultStoreLocation
	}

	cert, err := s.certificates.Find(location, thumbprint)
	if err != nil {
		return nil, err
	}
	if cert == nil {
		return nil, fault.Configuration(
			"the certificate with thumbprint %s could not be found in the %s/%s store; check the thumbprint or import the certificate",
			thumbprint, location.Location, location.Name)
	}
	return cert, nil
}

func checkEncryptingCredential(c credentials.EncryptingCredential) error {
	_, err := credentials.NewEncryptingCredential(c.Key, c.KeyAlgorithm, c.ContentEncryption)
	return err
}

// addEncryptionCredential queues c onto the list selected by list
func addEncryptionCredential[O any](r *registry[O], c credentials.EncryptingCredential, list func(*O) *[]credentials.EncryptingCredential) error {
	if err := checkEncryptingCredential(c); err != nil {
		return err
	}
	if err := r.Configure(func(o *O) {
		l := list(o)
		*l = append(*l, c)
	}); err != nil {
		return err
	}
	r.settings.observer.CredentialAdded(r.component, usageEncryption, c.Key.KeyID(), c.KeyAlgorithm.String())
	return nil
}

func checkSigningCredential(c credentials.SigningCredential) error {
	_, err := credentials.NewSigningCredential(c.Key, c.Algorithm)
	return err
}

// ephemeralSigningKey generates a 2048-bit RSA key that lives as long as the process
func ephemeralSigningKey() (credentials.Key, error) {
	private, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral signing key: %w", err)
	}
	key, err := credentials.NewRSAKey(private)
	if err != nil {
		return nil, err
	}
	return key, nil
}

// ephemeralEncryptionKey generates a 256-bit symmetric key
func ephemeralEncryptionKey() (credentials.Key, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral encryption key: %w", err)
	}
	key, err := credentials.NewSymmetricKey(secret)
	if err != nil {
		return nil, err
	}
	return key, nil
}
