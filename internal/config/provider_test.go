package config

import (
	"bytes"
	"context"
	"encoding/base64"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-kessel/oidcforge/internal/builder"
	"github.com/project-kessel/oidcforge/internal/fs"
	"github.com/project-kessel/oidcforge/internal/handlers"
	"github.com/project-kessel/oidcforge/internal/locator"
	"github.com/project-kessel/oidcforge/internal/options"
	"github.com/project-kessel/oidcforge/internal/probe"
	"github.com/project-kessel/oidcforge/internal/store"
)

func newTestProvider(cfg *Config) *Provider {
	p := NewProvider(cfg)
	p.SetObserver(probe.NoOpObserver{})
	p.SetClock(clockwork.NewFakeClockAt(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	return p
}

func symmetricKey() string {
	return base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))
}

func TestProvider_ServerOptions(t *testing.T) {
	p := newTestProvider(&Config{
		Server: ServerConfig{
			Issuer: "https://id.example.com/",
			Endpoints: map[string][]string{
				"token": {"/connect/token"},
				"jwks":  {"/.well-known/jwks"},
			},
			Lifetimes: map[string]string{
				"access_token":  "30m",
				"refresh_token": "none",
			},
			Flows:                          []string{"authorization_code", "refresh_token", "urn:example:grant"},
			Scopes:                         []string{"email"},
			RequireProofKeyForCodeExchange: true,
			SigningCredentials:             []CredentialConfig{{Type: "ephemeral"}},
			EncryptionCredentials:          []CredentialConfig{{Type: "symmetric", Key: symmetricKey()}},
			Handlers: HandlersConfig{
				Disabled: []string{"ValidateScopes"},
				Filters:  map[string]string{"ValidateClientID": "event.client_id != 'internal'"},
			},
		},
	})

	o, err := p.ServerOptions()
	require.NoError(t, err)

	assert.Equal(t, "https://id.example.com/", o.Issuer.String())
	require.Len(t, o.TokenEndpointURIs, 1)
	assert.Equal(t, "/connect/token", o.TokenEndpointURIs[0].String())
	require.Len(t, o.JSONWebKeySetEndpointURIs, 1)

	require.NotNil(t, o.AccessTokenLifetime)
	assert.Equal(t, 30*time.Minute, *o.AccessTokenLifetime)
	assert.Nil(t, o.RefreshTokenLifetime)
	assert.Equal(t, options.DefaultIdentityTokenLifetime, *o.IdentityTokenLifetime)

	assert.True(t, o.HasGrantType(options.GrantTypeAuthorizationCode))
	assert.True(t, o.HasGrantType(options.GrantTypeRefreshToken))
	assert.True(t, o.HasGrantType("urn:example:grant"))
	assert.True(t, o.HasScope("openid"))
	assert.True(t, o.HasScope("email"))
	assert.True(t, o.RequireProofKeyForCodeExchange)

	require.Len(t, o.SigningCredentials, 1)
	assert.Equal(t, "RS256", o.SigningCredentials[0].Algorithm.String())
	require.Len(t, o.EncryptionCredentials, 1)
	assert.Equal(t, "A256KW", o.EncryptionCredentials[0].KeyAlgorithm.String())

	scopes := reflect.TypeFor[*handlers.ValidateScopes]()
	clientID := reflect.TypeFor[*handlers.ValidateClientID]()
	assert.False(t, o.Contains(scopes))
	assert.False(t, p.Container().IsRegistered(scopes))

	require.Len(t, o.CustomHandlers, 1)
	assert.Equal(t, clientID, o.CustomHandlers[0].ServiceType)
	assert.Len(t, o.CustomHandlers[0].Filters, 1)
	for _, d := range o.DefaultHandlers {
		assert.NotEqual(t, clientID, d.ServiceType)
	}

	// Cached
	again, err := p.ServerOptions()
	require.NoError(t, err)
	assert.Same(t, o, again)
}

func TestProvider_ValidationOptions(t *testing.T) {
	p := newTestProvider(&Config{
		Validation: ValidationConfig{
			Issuer:                     "https://id.example.com/",
			Audiences:                  []string{"api", "admin"},
			ClientID:                   "resource-server",
			Type:                       "introspection",
			EnableTokenEntryValidation: true,
			EncryptionCredentials:      []CredentialConfig{{Type: "symmetric", Key: symmetricKey()}},
			Handlers:                   HandlersConfig{Disabled: []string{"ValidateAudience"}},
		},
	})

	o, err := p.ValidationOptions()
	require.NoError(t, err)

	assert.Equal(t, []string{"api", "admin"}, o.Audiences)
	assert.Equal(t, "resource-server", o.ClientID)
	assert.Equal(t, options.ValidationTypeIntrospection, o.ValidationType)
	assert.True(t, o.EnableTokenEntryValidation)
	assert.False(t, o.EnableAuthorizationEntryValidation)
	assert.Len(t, o.EncryptionCredentials, 1)
	assert.False(t, o.Contains(reflect.TypeFor[*handlers.ValidateAudience]()))
	assert.True(t, o.Contains(reflect.TypeFor[*handlers.ValidateIssuer]()))
}

func TestProvider_InvalidConfiguration(t *testing.T) {
	tests := []struct {
		name   string
		server ServerConfig
	}{
		{"unknown endpoint", ServerConfig{Endpoints: map[string][]string{"login": {"/login"}}}},
		{"invalid endpoint uri", ServerConfig{Endpoints: map[string][]string{"token": {"~/token"}}}},
		{"unknown lifetime", ServerConfig{Lifetimes: map[string]string{"session": "1h"}}},
		{"invalid lifetime", ServerConfig{Lifetimes: map[string]string{"access_token": "soon"}}},
		{"negative lifetime", ServerConfig{Lifetimes: map[string]string{"access_token": "-1h"}}},
		{"relative issuer", ServerConfig{Issuer: "/issuer"}},
		{"unknown credential", ServerConfig{SigningCredentials: []CredentialConfig{{Type: "hsm"}}}},
		{"missing file", ServerConfig{SigningCredentials: []CredentialConfig{{Type: "file"}}}},
		{"persisted without path", ServerConfig{SigningCredentials: []CredentialConfig{{Type: "persisted"}}}},
		{"persisted unknown key type", ServerConfig{SigningCredentials: []CredentialConfig{{Type: "persisted", Path: "/keys", KeyType: "DSA"}}}},
		{"bad symmetric key", ServerConfig{EncryptionCredentials: []CredentialConfig{{Type: "symmetric", Key: "!!"}}}},
		{"unknown handler", ServerConfig{Handlers: HandlersConfig{Disabled: []string{"ValidateNothing"}}}},
		{"invalid filter", ServerConfig{Handlers: HandlersConfig{Filters: map[string]string{"ValidateGrantType": "event."}}}},
		{"disabled and filtered", ServerConfig{Handlers: HandlersConfig{
			Disabled: []string{"ValidateGrantType"},
			Filters:  map[string]string{"ValidateGrantType": "true"},
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(&Config{Server: tt.server})
			_, err := p.ServerBuilder()
			assert.Error(t, err)
		})
	}

	t.Run("unknown validation type", func(t *testing.T) {
		p := newTestProvider(&Config{Validation: ValidationConfig{Type: "remote"}})
		_, err := p.ValidationBuilder()
		assert.Error(t, err)
	})

	t.Run("ephemeral validation encryption", func(t *testing.T) {
		p := newTestProvider(&Config{Validation: ValidationConfig{
			EncryptionCredentials: []CredentialConfig{{Type: "ephemeral"}},
		}})
		_, err := p.ValidationBuilder()
		assert.Error(t, err)
	})
}

func TestProvider_PersistedCredentials(t *testing.T) {
	files := fs.NewMemFileSystem()
	cfg := &Config{
		Server: ServerConfig{
			SigningCredentials:    []CredentialConfig{{Type: "persisted", Path: "/keys", KeyType: "EC-P256"}},
			EncryptionCredentials: []CredentialConfig{{Type: "persisted", Path: "/keys", Name: "server-encryption"}},
		},
	}

	first := newTestProvider(cfg)
	first.SetFileSystem(files)
	o, err := first.ServerOptions()
	require.NoError(t, err)
	require.Len(t, o.SigningCredentials, 1)
	assert.Equal(t, "ES256", o.SigningCredentials[0].Algorithm.String())
	require.Len(t, o.EncryptionCredentials, 1)
	assert.Equal(t, "A256KW", o.EncryptionCredentials[0].KeyAlgorithm.String())

	_, err = files.ReadFile("/keys/signing.json")
	require.NoError(t, err)
	_, err = files.ReadFile("/keys/server-encryption.json")
	require.NoError(t, err)

	// a second provider over the same directory reuses the saved keys
	second := newTestProvider(cfg)
	second.SetFileSystem(files)
	again, err := second.ServerOptions()
	require.NoError(t, err)
	assert.Equal(t, o.SigningCredentials[0].Key.KeyID(), again.SigningCredentials[0].Key.KeyID())
	assert.Equal(t, o.EncryptionCredentials[0].Key.KeyID(), again.EncryptionCredentials[0].Key.KeyID())
}

func TestConfigureHandlers_InvalidEntriesChangeNothing(t *testing.T) {
	tests := []struct {
		name string
		cfg  HandlersConfig
	}{
		{"unknown disabled handler after a valid one", HandlersConfig{
			Disabled: []string{"ValidateScopes", "ValidateNothing"},
		}},
		{"disabled and filtered", HandlersConfig{
			Disabled: []string{"ValidateScopes"},
			Filters:  map[string]string{"ValidateScopes": "true"},
		}},
		{"invalid filter after a valid one", HandlersConfig{
			Filters: map[string]string{"ValidateClientID": "true", "ValidateGrantType": "event."},
		}},
		{"unknown filtered handler", HandlersConfig{
			Disabled: []string{"ValidateScopes"},
			Filters:  map[string]string{"ValidateNothing": "true"},
		}},
	}

	scopes := reflect.TypeFor[*handlers.ValidateScopes]()
	clientID := reflect.TypeFor[*handlers.ValidateClientID]()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			container := locator.New()
			b, err := builder.NewServerBuilder(container)
			require.NoError(t, err)
			defaults, err := handlers.ServerDefaults()
			require.NoError(t, err)

			require.Error(t, configureHandlers(b, defaults, tt.cfg))

			o := b.Options()
			assert.Empty(t, o.CustomHandlers)
			assert.Len(t, o.DefaultHandlers, len(defaults))
			assert.True(t, o.Contains(scopes))
			assert.True(t, o.Contains(clientID))
			assert.Equal(t, 1, container.Registrations(scopes))
			assert.Equal(t, 1, container.Registrations(clientID))
		})
	}
}

func TestProvider_FailedBuilderIsNotRebuilt(t *testing.T) {
	p := newTestProvider(&Config{Server: ServerConfig{
		Lifetimes: map[string]string{"access_token": "soon"},
	}})

	_, first := p.ServerBuilder()
	require.Error(t, first)

	_, second := p.ServerBuilder()
	require.Error(t, second)
	assert.Equal(t, first.Error(), second.Error())

	_, err := p.ServerOptions()
	require.Error(t, err)

	registered := p.Container().Registrations(reflect.TypeFor[*options.ServerOptions]())
	assert.Equal(t, 1, registered)
	assert.Equal(t, 1, p.Container().Registrations(reflect.TypeFor[*handlers.ValidateGrantType]()))

	v := newTestProvider(&Config{Validation: ValidationConfig{Type: "remote"}})
	_, first = v.ValidationBuilder()
	require.Error(t, first)
	_, second = v.ValidationBuilder()
	assert.Equal(t, first, second)
	assert.Equal(t, 1, v.Container().Registrations(reflect.TypeFor[*options.ValidationOptions]()))
}

func TestProvider_MemoryStore(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(&Config{Store: StoreConfig{Backend: "memory", KeyType: "uuid"}})

	resolvers, err := p.StoreResolvers(ctx)
	require.NoError(t, err)

	apps, err := store.Get[store.Application](resolvers.Applications)
	require.NoError(t, err)
	app := &store.Application{ClientID: "console"}
	require.NoError(t, apps.Create(ctx, app))
	assert.Len(t, app.ID, 36)

	_, err = p.SQLDatabase(ctx)
	assert.Error(t, err)
	assert.NoError(t, p.Close())
}

func TestProvider_SQLiteStore(t *testing.T) {
	ctx := context.Background()
	p := newTestProvider(&Config{Store: StoreConfig{
		Backend:     "sqlite",
		DSN:         filepath.Join(t.TempDir(), "oidc.db"),
		AutoMigrate: true,
	}})
	defer p.Close()

	resolvers, err := p.StoreResolvers(ctx)
	require.NoError(t, err)

	tokens, err := store.Get[store.Token](resolvers.Tokens)
	require.NoError(t, err)
	require.NoError(t, tokens.Create(ctx, &store.Token{ID: "t1", Subject: "alice"}))

	found, err := tokens.FindByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "alice", found.Subject)

	db, err := p.SQLDatabase(ctx)
	require.NoError(t, err)
	version, err := db.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestProvider_InvalidStore(t *testing.T) {
	ctx := context.Background()

	_, err := newTestProvider(&Config{Store: StoreConfig{Backend: "mongo"}}).StoreBackend(ctx)
	assert.Error(t, err)

	_, err = newTestProvider(&Config{Store: StoreConfig{KeyType: "int"}}).StoreBackend(ctx)
	assert.Error(t, err)

	_, err = newTestProvider(&Config{Store: StoreConfig{Backend: "sqlite"}}).StoreBackend(ctx)
	assert.Error(t, err)
}

func TestProvider_Observer(t *testing.T) {
	o, err := NewProvider(&Config{}).Observer()
	require.NoError(t, err)
	assert.IsType(t, probe.NoOpObserver{}, o)

	_, err = NewProvider(&Config{Observability: &ObservabilityConfig{Type: "statsd"}}).Observer()
	assert.Error(t, err)
}
