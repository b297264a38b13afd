package credentials

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/pkcs12"

	"github.com/project-kessel/oidcforge/internal/fault"
	"github.com/project-kessel/oidcforge/internal/fs"
)

// StoreLocation names a certificate store, e.g. {Name: "My", Location: "CurrentUser"}.
type StoreLocation struct {
	Name     string
	Location string
}

// DefaultStoreLocation is used when a store lookup does not name a store
var DefaultStoreLocation = StoreLocation{Name: "My", Location: "CurrentUser"}

// CertificateSource loads certificates from streams and certificate stores.
type CertificateSource interface {
	// LoadFromStream reads a PKCS#12 archive or PEM bundle.
	// password is ignored for PEM input.
	LoadFromStream(r io.Reader, password string) (*Certificate, error)

	// Find returns the certificate matching thumbprint in the given store,
	// or nil when no certificate matches.
	Find(location StoreLocation, thumbprint string) (*Certificate, error)
}

// DirectoryCertificateSource maps certificate stores to directories laid out
// as <root>/<location>/<name>. Every *.pem, *.crt, *.p12 and *.pfx file in a
// store directory is a candidate; archives in a store must not be password protected.
type DirectoryCertificateSource struct {
	root string
	fs   fs.FileSystem
}

// DirectoryCertificateSourceConfig configures a DirectoryCertificateSource
type DirectoryCertificateSourceConfig struct {
	// Root is the directory holding the certificate stores
	Root string

	// FileSystem is an optional filesystem abstraction (defaults to OSFileSystem)
	FileSystem fs.FileSystem
}

// NewDirectoryCertificateSource creates a directory-backed certificate source
func NewDirectoryCertificateSource(cfg DirectoryCertificateSourceConfig) *DirectoryCertificateSource {
	filesystem := cfg.FileSystem
	if filesystem == nil {
		filesystem = fs.NewOSFileSystem()
	}
	return &DirectoryCertificateSource{root: cfg.Root, fs: filesystem}
}

// LoadFromStream implements CertificateSource
func (s *DirectoryCertificateSource) LoadFromStream(r io.Reader, password string) (*Certificate, error) {
	if r == nil {
		return nil, fault.Argument("stream", "must not be nil")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read certificate stream: %w", err)
	}
	if len(data) == 0 {
		return nil, fault.Argument("stream", "must not be empty")
	}
	return ParseCertificate(data, password)
}

// Find implements CertificateSource
func (s *DirectoryCertificateSource) Find(location StoreLocation, thumbprint string) (*Certificate, error) {
	thumbprint = strings.TrimSpace(thumbprint)
	if thumbprint == "" {
		return nil, fault.Argument("thumbprint", "must not be empty")
	}
	if location.Name == "" || location.Location == "" {
		location = DefaultStoreLocation
	}

	dir := filepath.Join(s.root, location.Location, location.Name)
	names, err := s.fs.ReadDir(dir)
	if err != nil {
		if s.fs.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list certificate store %s: %w", dir, err)
	}

	for _, name := range names {
		switch strings.ToLower(filepath.Ext(name)) {
		case ".pem", ".crt", ".p12", ".pfx":
		default:
			continue
		}

		data, err := s.fs.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read certificate %s: %w", name, err)
		}
		cert, err := ParseCertificate(data, "")
		if err != nil {
			// Unreadable entries are not candidates
			continue
		}
		if strings.EqualFold(cert.Thumbprint(), thumbprint) {
			return cert, nil
		}
	}

	return nil, nil
}

// ParseCertificate decodes a PEM bundle (first CERTIFICATE block plus an
// optional private key block) or a PKCS#12 archive.
func ParseCertificate(data []byte, password string) (*Certificate, error) {
	if bytes.Contains(data, []byte("-----BEGIN")) {
		return parsePEM(data)
	}

	private, leaf, err := pkcs12.Decode(data, password)
	if err != nil {
		return nil, fault.WrapConfiguration(err, "the PKCS#12 certificate could not be decoded; check the archive and its password")
	}
	return &Certificate{Leaf: leaf, PrivateKey: private}, nil
}

func parsePEM(data []byte) (*Certificate, error) {
	cert := &Certificate{}
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}

		switch block.Type {
		case "CERTIFICATE":
			if cert.Leaf != nil {
				continue
			}
			leaf, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, fault.WrapConfiguration(err, "the PEM certificate could not be parsed")
			}
			cert.Leaf = leaf
		case "PRIVATE KEY", "RSA PRIVATE KEY", "EC PRIVATE KEY":
			private, err := parsePrivateKey(block)
			if err != nil {
				return nil, fault.WrapConfiguration(err, "the PEM private key could not be parsed")
			}
			cert.PrivateKey = private
		}
	}

	if cert.Leaf == nil {
		return nil, fault.Configuration("the PEM data does not contain a certificate")
	}
	return cert, nil
}

func parsePrivateKey(block *pem.Block) (crypto.PrivateKey, error) {
	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	default:
		return x509.ParsePKCS8PrivateKey(block.Bytes)
	}
}
