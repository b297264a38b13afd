package config

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"reflect"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/project-kessel/oidcforge/internal/builder"
	"github.com/project-kessel/oidcforge/internal/credentials"
	"github.com/project-kessel/oidcforge/internal/fs"
	"github.com/project-kessel/oidcforge/internal/handler"
	"github.com/project-kessel/oidcforge/internal/handlers"
	"github.com/project-kessel/oidcforge/internal/keys"
	"github.com/project-kessel/oidcforge/internal/options"
)

var lifetimeNames = map[string]options.Lifetime{
	"access_token":       options.AccessTokenLifetime,
	"authorization_code": options.AuthorizationCodeLifetime,
	"identity_token":     options.IdentityTokenLifetime,
	"refresh_token":      options.RefreshTokenLifetime,
	"device_code":        options.DeviceCodeLifetime,
	"user_code":          options.UserCodeLifetime,
}

func configureServer(b *builder.ServerBuilder, cfg ServerConfig, src sources) error {
	if cfg.Issuer != "" {
		if err := b.SetIssuer(cfg.Issuer); err != nil {
			return err
		}
	}

	for _, name := range sortedKeys(cfg.Endpoints) {
		e, ok := options.ParseEndpoint(name)
		if !ok {
			return fmt.Errorf("unknown endpoint %q", name)
		}
		if err := b.SetEndpointURIs(e, cfg.Endpoints[name]...); err != nil {
			return err
		}
	}

	for _, name := range sortedKeys(cfg.Lifetimes) {
		l, ok := lifetimeNames[name]
		if !ok {
			return fmt.Errorf("unknown lifetime %q", name)
		}
		lifetime, err := parseLifetime(cfg.Lifetimes[name])
		if err != nil {
			return fmt.Errorf("lifetime %s: %w", name, err)
		}
		if err := b.SetLifetime(l, lifetime); err != nil {
			return err
		}
	}

	for _, flow := range cfg.Flows {
		if err := allowFlow(b, flow); err != nil {
			return err
		}
	}

	if len(cfg.Claims) > 0 {
		if err := b.RegisterClaims(cfg.Claims...); err != nil {
			return err
		}
	}
	if len(cfg.Scopes) > 0 {
		if err := b.RegisterScopes(cfg.Scopes...); err != nil {
			return err
		}
	}

	flags := []struct {
		enabled bool
		set     func() error
	}{
		{cfg.DisableAccessTokenEncryption, b.DisableAccessTokenEncryption},
		{cfg.DisableScopeValidation, b.DisableScopeValidation},
		{cfg.DisableTokenStorage, b.DisableTokenStorage},
		{cfg.AcceptAnonymousClients, b.AcceptAnonymousClients},
		{cfg.RequireProofKeyForCodeExchange, b.RequireProofKeyForCodeExchange},
		{cfg.UseReferenceAccessTokens, b.UseReferenceAccessTokens},
	}
	for _, f := range flags {
		if f.enabled {
			if err := f.set(); err != nil {
				return err
			}
		}
	}

	for i, c := range cfg.SigningCredentials {
		if err := addSigningCredential(b, c, src); err != nil {
			return fmt.Errorf("signing credential %d: %w", i, err)
		}
	}
	for i, c := range cfg.EncryptionCredentials {
		if err := addEncryptionCredential(b, c, src); err != nil {
			return fmt.Errorf("encryption credential %d: %w", i, err)
		}
	}

	defaults, err := handlers.ServerDefaults()
	if err != nil {
		return err
	}
	return configureHandlers(b, defaults, cfg.Handlers)
}

func configureValidation(b *builder.ValidationBuilder, cfg ValidationConfig, src sources) error {
	if cfg.Issuer != "" {
		if err := b.SetIssuer(cfg.Issuer); err != nil {
			return err
		}
	}
	if len(cfg.Audiences) > 0 {
		if err := b.AddAudiences(cfg.Audiences...); err != nil {
			return err
		}
	}
	if cfg.ClientID != "" {
		if err := b.SetClientID(cfg.ClientID); err != nil {
			return err
		}
	}

	t, ok := options.ParseValidationType(cfg.Type)
	if !ok {
		return fmt.Errorf("unknown validation type %q (supported: direct, introspection)", cfg.Type)
	}
	if err := b.SetValidationType(t); err != nil {
		return err
	}

	if cfg.EnableAuthorizationEntryValidation {
		if err := b.EnableAuthorizationEntryValidation(); err != nil {
			return err
		}
	}
	if cfg.EnableTokenEntryValidation {
		if err := b.EnableTokenEntryValidation(); err != nil {
			return err
		}
	}

	for i, c := range cfg.EncryptionCredentials {
		if err := addEncryptionCredential(b, c, src); err != nil {
			return fmt.Errorf("encryption credential %d: %w", i, err)
		}
	}

	defaults, err := handlers.ValidationDefaults()
	if err != nil {
		return err
	}
	return configureHandlers(b, defaults, cfg.Handlers)
}

func allowFlow(b *builder.ServerBuilder, flow string) error {
	switch flow {
	case "authorization_code":
		return b.AllowAuthorizationCodeFlow()
	case "client_credentials":
		return b.AllowClientCredentialsFlow()
	case "device_authorization", "device_code":
		return b.AllowDeviceAuthorizationFlow()
	case "implicit":
		return b.AllowImplicitFlow()
	case "password":
		return b.AllowPasswordFlow()
	case "refresh_token":
		return b.AllowRefreshTokenFlow()
	default:
		return b.AllowCustomFlow(flow)
	}
}

// parseLifetime parses a duration; "none" means the artifact never expires
func parseLifetime(value string) (*time.Duration, error) {
	if strings.EqualFold(strings.TrimSpace(value), "none") {
		return nil, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func addSigningCredential(b *builder.ServerBuilder, c CredentialConfig, src sources) error {
	switch c.Type {
	case "ephemeral":
		return b.AddEphemeralSigningKey()
	case "file":
		data, err := readCredentialFile(src.files, c.Path)
		if err != nil {
			return err
		}
		return b.AddSigningCertificateFromStream(data, c.Password)
	case "store":
		return b.AddSigningCertificateFromStore(c.Thumbprint, storeLocation(c))
	case "persisted":
		key, err := persistedKey(c, "signing", keys.KeyTypeRSA2048, src)
		if err != nil {
			return err
		}
		return b.AddSigningKey(key)
	default:
		return fmt.Errorf("unknown signing credential type %q (supported: ephemeral, file, store, persisted)", c.Type)
	}
}

// encryptionTarget is implemented by both builders
type encryptionTarget interface {
	AddEncryptionKey(key credentials.Key) error
	AddEncryptionCertificateFromStream(r io.Reader, password string) error
	AddEncryptionCertificateFromStore(thumbprint string, location credentials.StoreLocation) error
}

func addEncryptionCredential(b encryptionTarget, c CredentialConfig, src sources) error {
	switch c.Type {
	case "ephemeral":
		e, ok := b.(interface{ AddEphemeralEncryptionKey() error })
		if !ok {
			return fmt.Errorf("ephemeral encryption keys are only supported by the server")
		}
		return e.AddEphemeralEncryptionKey()
	case "file":
		data, err := readCredentialFile(src.files, c.Path)
		if err != nil {
			return err
		}
		return b.AddEncryptionCertificateFromStream(data, c.Password)
	case "store":
		return b.AddEncryptionCertificateFromStore(c.Thumbprint, storeLocation(c))
	case "symmetric":
		material, err := base64.StdEncoding.DecodeString(c.Key)
		if err != nil {
			return fmt.Errorf("invalid symmetric key: %w", err)
		}
		key, err := credentials.NewSymmetricKey(material)
		if err != nil {
			return err
		}
		return b.AddEncryptionKey(key)
	case "persisted":
		key, err := persistedKey(c, "encryption", keys.KeyTypeAES256, src)
		if err != nil {
			return err
		}
		return b.AddEncryptionKey(key)
	default:
		return fmt.Errorf("unknown encryption credential type %q (supported: ephemeral, file, store, symmetric, persisted)", c.Type)
	}
}

// sources carries what credential loading needs from the provider
type sources struct {
	files fs.FileSystem
	clock clockwork.Clock
}

// persistedKey loads the key named in c from the directory at c.Path,
// generating and saving one on first use
func persistedKey(c CredentialConfig, name string, keyType keys.KeyType, src sources) (credentials.Key, error) {
	if c.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if c.Name != "" {
		name = c.Name
	}
	if c.KeyType != "" {
		keyType = keys.KeyType(c.KeyType)
	}
	store, err := keys.NewDiskStore(keys.DiskStoreConfig{
		KeyType:    keyType,
		Path:       c.Path,
		FileSystem: src.files,
		Clock:      src.clock,
	})
	if err != nil {
		return nil, err
	}
	return keys.LoadOrCreate(context.Background(), store, name)
}

func readCredentialFile(files fs.FileSystem, path string) (io.Reader, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	data, err := files.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return bytes.NewReader(data), nil
}

func storeLocation(c CredentialConfig) credentials.StoreLocation {
	location := credentials.DefaultStoreLocation
	if c.StoreName != "" {
		location.Name = c.StoreName
	}
	if c.StoreLocation != "" {
		location.Location = c.StoreLocation
	}
	return location
}

// configureHandlers removes the disabled built-in handlers and re-registers
// the filtered ones with their CEL filter. Nothing is changed unless every
// entry is valid.
func configureHandlers(b builder.HandlerRegistry, defaults []handler.Descriptor, cfg HandlersConfig) error {
	byName := make(map[string]handler.Descriptor, len(defaults))
	for _, d := range defaults {
		byName[handlerName(d.ServiceType)] = d
	}

	disabled := make([]handler.Descriptor, 0, len(cfg.Disabled))
	for _, name := range cfg.Disabled {
		d, ok := byName[name]
		if !ok {
			return fmt.Errorf("unknown built-in handler %q", name)
		}
		disabled = append(disabled, d)
	}

	filtered := make([]handler.Descriptor, 0, len(cfg.Filters))
	for _, name := range sortedKeys(cfg.Filters) {
		d, ok := byName[name]
		if !ok {
			return fmt.Errorf("unknown built-in handler %q", name)
		}
		if slices.Contains(cfg.Disabled, name) {
			return fmt.Errorf("handler %q is both disabled and filtered", name)
		}
		filter, err := handler.NewCELFilter(cfg.Filters[name])
		if err != nil {
			return fmt.Errorf("filter for %s: %w", name, err)
		}
		d.Filters = append(slices.Clone(d.Filters), filter)
		filtered = append(filtered, d)
	}

	// every name is valid from here on
	for _, d := range disabled {
		if err := b.RemoveHandler(d); err != nil {
			return err
		}
	}
	for _, d := range filtered {
		if err := b.RemoveHandler(d); err != nil {
			return err
		}
		if err := b.AddHandler(d); err != nil {
			return err
		}
	}
	return nil
}

// handlerName returns the bare type name of a handler service type
func handlerName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
