package keys

import (
	"context"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/project-kessel/oidcforge/internal/credentials"
	"github.com/project-kessel/oidcforge/internal/fs"
)

// DiskStore is a Store that keeps keys on disk as JSON files.
// It's suitable for single-instance deployments with a persistent volume.
type DiskStore struct {
	mu      sync.RWMutex
	keyType KeyType       // The key type this store creates
	path    string        // Directory path for storing key files
	fs      fs.FileSystem // Filesystem abstraction for operations
	clock   clockwork.Clock
}

// DiskStoreConfig configures the disk key store
type DiskStoreConfig struct {
	// KeyType is the type of keys this store creates
	KeyType KeyType

	// Path is the directory where key files will be stored
	Path string

	// FileSystem is an optional filesystem abstraction (defaults to OSFileSystem)
	FileSystem fs.FileSystem

	// Clock stamps created_at (defaults to the real clock)
	Clock clockwork.Clock
}

// keyFileData represents the JSON structure stored on disk
type keyFileData struct {
	KeyType    string    `json:"key_type"`
	PrivateKey string    `json:"private_key"` // Base64-encoded PKCS#8 DER, or raw bytes for AES
	CreatedAt  time.Time `json:"created_at"`
}

// NewDiskStore creates a new disk-based key store
func NewDiskStore(cfg DiskStoreConfig) (*DiskStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if cfg.KeyType == "" {
		return nil, fmt.Errorf("key_type is required")
	}
	if err := cfg.KeyType.Validate(); err != nil {
		return nil, err
	}

	filesystem := cfg.FileSystem
	if filesystem == nil {
		filesystem = fs.NewOSFileSystem()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	if err := filesystem.MkdirAll(cfg.Path, 0700); err != nil {
		return nil, fmt.Errorf("failed to create keys directory: %w", err)
	}

	return &DiskStore{
		keyType: cfg.KeyType,
		path:    cfg.Path,
		fs:      filesystem,
		clock:   clock,
	}, nil
}

// Load reads the key persisted under name
func (s *DiskStore) Load(_ context.Context, name string) (credentials.Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := s.readKeyFile(name)
	if err != nil {
		return nil, err
	}

	if data.KeyType != string(s.keyType) {
		return nil, fmt.Errorf("key type mismatch: expected %s, found %s", s.keyType, data.KeyType)
	}

	material, err := base64.StdEncoding.DecodeString(data.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}

	if s.keyType == KeyTypeAES256 {
		return credentials.KeyFromRaw(material)
	}

	raw, err := x509.ParsePKCS8PrivateKey(material)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return credentials.KeyFromRaw(raw)
}

// Rotate generates a new key and atomically replaces the file for name
func (s *DiskStore) Rotate(_ context.Context, name string) (credentials.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := generate(s.keyType)
	if err != nil {
		return nil, err
	}

	material, ok := raw.([]byte)
	if !ok {
		material, err = x509.MarshalPKCS8PrivateKey(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal private key: %w", err)
		}
	}

	data := keyFileData{
		KeyType:    string(s.keyType),
		PrivateKey: base64.StdEncoding.EncodeToString(material),
		CreatedAt:  s.clock.Now().UTC(),
	}
	if err := s.writeKeyFile(name, &data); err != nil {
		return nil, fmt.Errorf("failed to write key file: %w", err)
	}

	return credentials.KeyFromRaw(raw)
}

// writeKeyFile atomically writes a key file to disk
func (s *DiskStore) writeKeyFile(name string, data *keyFileData) error {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	// filesystem handles temp file + sync + rename
	return s.fs.WriteFileAtomic(s.keyFilePath(name), jsonData, 0600)
}

// readKeyFile reads a key file from disk
func (s *DiskStore) readKeyFile(name string) (*keyFileData, error) {
	jsonData, err := s.fs.ReadFile(s.keyFilePath(name))
	if err != nil {
		if s.fs.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, name)
		}
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	var data keyFileData
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal key file (corrupted?): %w", err)
	}
	return &data, nil
}

func (s *DiskStore) keyFilePath(name string) string {
	return filepath.Join(s.path, sanitize(name)+".json")
}

// sanitize replaces invalid path characters with underscores
func sanitize(s string) string {
	s = strings.ReplaceAll(s, ":", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
