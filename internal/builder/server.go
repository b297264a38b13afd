package builder

import (
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/project-kessel/oidcforge/internal/credentials"
	"github.com/project-kessel/oidcforge/internal/fault"
	"github.com/project-kessel/oidcforge/internal/handlers"
	"github.com/project-kessel/oidcforge/internal/locator"
	"github.com/project-kessel/oidcforge/internal/options"
)

const componentServer = "server"

// ServerBuilder configures the server component
type ServerBuilder struct {
	*registry[options.ServerOptions]
}

var _ HandlerRegistry = (*ServerBuilder)(nil)

// NewServerBuilder registers the built-in server handlers and the server
// options with container and returns a builder for them.
func NewServerBuilder(container *locator.Container, opts ...Option) (*ServerBuilder, error) {
	defaults, err := handlers.ServerDefaults()
	if err != nil {
		return nil, err
	}

	r, err := newRegistry(componentServer, container, newSettings(opts), options.NewServerOptions,
		func(o *options.ServerOptions) *options.HandlerLists { return &o.HandlerLists },
		defaults)
	if err != nil {
		return nil, err
	}
	return &ServerBuilder{registry: r}, nil
}

// SetIssuer sets the absolute issuer identifier
func (b *ServerBuilder) SetIssuer(issuer string) error {
	u, err := parseAbsoluteURI("issuer", issuer)
	if err != nil {
		return err
	}
	return b.SetIssuerURL(u)
}

// SetIssuerURL sets the absolute issuer identifier
func (b *ServerBuilder) SetIssuerURL(issuer *url.URL) error {
	u, err := checkAbsoluteURI("issuer", issuer)
	if err != nil {
		return err
	}
	return b.Configure(func(o *options.ServerOptions) {
		o.Issuer = u
	})
}

// SetEndpointURIs replaces the addresses of endpoint e with uris, parsed as
// relative or absolute URIs. An empty list clears the endpoint.
func (b *ServerBuilder) SetEndpointURIs(e options.Endpoint, uris ...string) error {
	if !e.Valid() {
		return fault.Argumentf("endpoint", "unknown endpoint %d", int(e))
	}
	parsed, err := parseURIs("uris", uris)
	if err != nil {
		return err
	}
	return b.setEndpoint(e, parsed)
}

// SetEndpointURLs replaces the addresses of endpoint e with pre-parsed URIs
func (b *ServerBuilder) SetEndpointURLs(e options.Endpoint, uris ...*url.URL) error {
	if !e.Valid() {
		return fault.Argumentf("endpoint", "unknown endpoint %d", int(e))
	}
	checked, err := checkURIs("uris", uris)
	if err != nil {
		return err
	}
	return b.setEndpoint(e, checked)
}

func (b *ServerBuilder) setEndpoint(e options.Endpoint, uris []*url.URL) error {
	return b.Configure(func(o *options.ServerOptions) {
		*o.EndpointURIs(e) = append([]*url.URL(nil), uris...)
	})
}

// SetAuthorizationEndpointURIs sets the authorization endpoint addresses
func (b *ServerBuilder) SetAuthorizationEndpointURIs(uris ...string) error {
	return b.SetEndpointURIs(options.AuthorizationEndpoint, uris...)
}

// SetTokenEndpointURIs sets the token endpoint addresses
func (b *ServerBuilder) SetTokenEndpointURIs(uris ...string) error {
	return b.SetEndpointURIs(options.TokenEndpoint, uris...)
}

// SetIntrospectionEndpointURIs sets the introspection endpoint addresses
func (b *ServerBuilder) SetIntrospectionEndpointURIs(uris ...string) error {
	return b.SetEndpointURIs(options.IntrospectionEndpoint, uris...)
}

// SetRevocationEndpointURIs sets the revocation endpoint addresses
func (b *ServerBuilder) SetRevocationEndpointURIs(uris ...string) error {
	return b.SetEndpointURIs(options.RevocationEndpoint, uris...)
}

// SetUserinfoEndpointURIs sets the userinfo endpoint addresses
func (b *ServerBuilder) SetUserinfoEndpointURIs(uris ...string) error {
	return b.SetEndpointURIs(options.UserinfoEndpoint, uris...)
}

// SetEndSessionEndpointURIs sets the end session endpoint addresses
func (b *ServerBuilder) SetEndSessionEndpointURIs(uris ...string) error {
	return b.SetEndpointURIs(options.EndSessionEndpoint, uris...)
}

// SetConfigurationEndpointURIs sets the discovery document addresses
func (b *ServerBuilder) SetConfigurationEndpointURIs(uris ...string) error {
	return b.SetEndpointURIs(options.ConfigurationEndpoint, uris...)
}

// SetJSONWebKeySetEndpointURIs sets the JWKS endpoint addresses
func (b *ServerBuilder) SetJSONWebKeySetEndpointURIs(uris ...string) error {
	return b.SetEndpointURIs(options.JSONWebKeySetEndpoint, uris...)
}

// SetDeviceAuthorizationEndpointURIs sets the device authorization endpoint addresses
func (b *ServerBuilder) SetDeviceAuthorizationEndpointURIs(uris ...string) error {
	return b.SetEndpointURIs(options.DeviceAuthorizationEndpoint, uris...)
}

// SetEndUserVerificationEndpointURIs sets the end-user verification endpoint addresses
func (b *ServerBuilder) SetEndUserVerificationEndpointURIs(uris ...string) error {
	return b.SetEndpointURIs(options.EndUserVerificationEndpoint, uris...)
}

// SetLifetime sets lifetime l; nil means the artifact never expires
func (b *ServerBuilder) SetLifetime(l options.Lifetime, lifetime *time.Duration) error {
	if !l.Valid() {
		return fault.Argumentf("lifetime", "unknown lifetime %d", int(l))
	}
	if lifetime != nil && *lifetime <= 0 {
		return fault.Argumentf("lifetime", "%s must be positive", *lifetime)
	}

	var value *time.Duration
	if lifetime != nil {
		value = options.Duration(*lifetime)
	}
	return b.Configure(func(o *options.ServerOptions) {
		*o.LifetimeOf(l) = value
	})
}

// SetAccessTokenLifetime sets the access token lifetime; nil disables expiration
func (b *ServerBuilder) SetAccessTokenLifetime(lifetime *time.Duration) error {
	return b.SetLifetime(options.AccessTokenLifetime, lifetime)
}

// SetAuthorizationCodeLifetime sets the authorization code lifetime; nil disables expiration
func (b *ServerBuilder) SetAuthorizationCodeLifetime(lifetime *time.Duration) error {
	return b.SetLifetime(options.AuthorizationCodeLifetime, lifetime)
}

// SetIdentityTokenLifetime sets the identity token lifetime; nil disables expiration
func (b *ServerBuilder) SetIdentityTokenLifetime(lifetime *time.Duration) error {
	return b.SetLifetime(options.IdentityTokenLifetime, lifetime)
}

// SetRefreshTokenLifetime sets the refresh token lifetime; nil disables expiration
func (b *ServerBuilder) SetRefreshTokenLifetime(lifetime *time.Duration) error {
	return b.SetLifetime(options.RefreshTokenLifetime, lifetime)
}

// SetDeviceCodeLifetime sets the device code lifetime; nil disables expiration
func (b *ServerBuilder) SetDeviceCodeLifetime(lifetime *time.Duration) error {
	return b.SetLifetime(options.DeviceCodeLifetime, lifetime)
}

// SetUserCodeLifetime sets the user code lifetime; nil disables expiration
func (b *ServerBuilder) SetUserCodeLifetime(lifetime *time.Duration) error {
	return b.SetLifetime(options.UserCodeLifetime, lifetime)
}

// AllowAuthorizationCodeFlow enables the authorization code grant and the code response type
func (b *ServerBuilder) AllowAuthorizationCodeFlow() error {
	return b.allow([]string{options.GrantTypeAuthorizationCode}, []string{options.ResponseTypeCode})
}

// AllowClientCredentialsFlow enables the client credentials grant
func (b *ServerBuilder) AllowClientCredentialsFlow() error {
	return b.allow([]string{options.GrantTypeClientCredentials}, nil)
}

// AllowDeviceAuthorizationFlow enables the device authorization grant
func (b *ServerBuilder) AllowDeviceAuthorizationFlow() error {
	return b.allow([]string{options.GrantTypeDeviceCode}, nil)
}

// AllowImplicitFlow enables the implicit grant and its response types
func (b *ServerBuilder) AllowImplicitFlow() error {
	return b.allow([]string{options.GrantTypeImplicit}, []string{
		options.ResponseTypeIDToken,
		options.ResponseTypeIDToken + " " + options.ResponseTypeToken,
		options.ResponseTypeToken,
	})
}

// AllowPasswordFlow enables the resource owner password credentials grant
func (b *ServerBuilder) AllowPasswordFlow() error {
	return b.allow([]string{options.GrantTypePassword}, nil)
}

// AllowRefreshTokenFlow enables the refresh token grant
func (b *ServerBuilder) AllowRefreshTokenFlow() error {
	return b.allow([]string{options.GrantTypeRefreshToken}, nil)
}

// AllowCustomFlow enables a custom grant type
func (b *ServerBuilder) AllowCustomFlow(grantType string) error {
	if strings.TrimSpace(grantType) == "" {
		return fault.Argument("grantType", "must not be empty")
	}
	return b.allow([]string{grantType}, nil)
}

func (b *ServerBuilder) allow(grantTypes, responseTypes []string) error {
	return b.Configure(func(o *options.ServerOptions) {
		o.GrantTypes = options.AppendUnique(o.GrantTypes, grantTypes...)
		o.ResponseTypes = options.AppendUnique(o.ResponseTypes, responseTypes...)
	})
}

// RegisterClaims adds claims to the supported claims
func (b *ServerBuilder) RegisterClaims(claims ...string) error {
	if err := checkEntries("claims", claims); err != nil {
		return err
	}
	claims = append([]string(nil), claims...)
	return b.Configure(func(o *options.ServerOptions) {
		o.Claims = options.AppendUnique(o.Claims, claims...)
	})
}

// RegisterScopes adds scopes to the supported scopes
func (b *ServerBuilder) RegisterScopes(scopes ...string) error {
	if err := checkEntries("scopes", scopes); err != nil {
		return err
	}
	scopes = append([]string(nil), scopes...)
	return b.Configure(func(o *options.ServerOptions) {
		o.Scopes = options.AppendUnique(o.Scopes, scopes...)
	})
}

// DisableAccessTokenEncryption issues unencrypted access tokens
func (b *ServerBuilder) DisableAccessTokenEncryption() error {
	return b.Configure(func(o *options.ServerOptions) { o.DisableAccessTokenEncryption = true })
}

// DisableScopeValidation accepts scopes that were not registered
func (b *ServerBuilder) DisableScopeValidation() error {
	return b.Configure(func(o *options.ServerOptions) { o.DisableScopeValidation = true })
}

// DisableTokenStorage stops persisting tokens
func (b *ServerBuilder) DisableTokenStorage() error {
	return b.Configure(func(o *options.ServerOptions) { o.DisableTokenStorage = true })
}

// AcceptAnonymousClients accepts token requests without a client identifier
func (b *ServerBuilder) AcceptAnonymousClients() error {
	return b.Configure(func(o *options.ServerOptions) { o.AcceptAnonymousClients = true })
}

// RequireProofKeyForCodeExchange requires PKCE for the authorization code flow
func (b *ServerBuilder) RequireProofKeyForCodeExchange() error {
	return b.Configure(func(o *options.ServerOptions) { o.RequireProofKeyForCodeExchange = true })
}

// UseReferenceAccessTokens issues opaque reference access tokens
func (b *ServerBuilder) UseReferenceAccessTokens() error {
	return b.Configure(func(o *options.ServerOptions) { o.UseReferenceAccessTokens = true })
}

// AddSigningCredential adds an explicit signing credential
func (b *ServerBuilder) AddSigningCredential(c credentials.SigningCredential) error {
	if err := checkSigningCredential(c); err != nil {
		return err
	}
	if err := b.Configure(func(o *options.ServerOptions) {
		o.SigningCredentials = append(o.SigningCredentials, c)
	}); err != nil {
		return err
	}
	b.settings.observer.CredentialAdded(componentServer, usageSigning, c.Key.KeyID(), c.Algorithm.String())
	return nil
}

// AddSigningKey infers a signing credential from key
func (b *ServerBuilder) AddSigningKey(key credentials.Key) error {
	c, err := credentials.DeriveSigningCredential(key)
	if err != nil {
		return err
	}
	return b.AddSigningCredential(c)
}

// AddSigningCertificate infers a signing credential from a certificate
func (b *ServerBuilder) AddSigningCertificate(cert *credentials.Certificate) error {
	c, err := credentials.SigningCredentialFromCertificate(cert, b.settings.clock)
	if err != nil {
		return err
	}
	return b.AddSigningCredential(c)
}

// AddSigningCertificateFromStream loads a PKCS#12 or PEM certificate from r
func (b *ServerBuilder) AddSigningCertificateFromStream(r io.Reader, password string) error {
	cert, err := b.settings.certificateFromStream(r, password)
	if err != nil {
		return err
	}
	return b.AddSigningCertificate(cert)
}

// AddSigningCertificateFromStore looks a certificate up by thumbprint
func (b *ServerBuilder) AddSigningCertificateFromStore(thumbprint string, location credentials.StoreLocation) error {
	cert, err := b.settings.certificateFromStore(thumbprint, location)
	if err != nil {
		return err
	}
	return b.AddSigningCertificate(cert)
}

// AddEphemeralSigningKey generates an RSA signing key held in memory only
func (b *ServerBuilder) AddEphemeralSigningKey() error {
	key, err := ephemeralSigningKey()
	if err != nil {
		return err
	}
	return b.AddSigningKey(key)
}

// AddEncryptionCredential adds an explicit encryption credential
func (b *ServerBuilder) AddEncryptionCredential(c credentials.EncryptingCredential) error {
	return addEncryptionCredential(b.registry, c, func(o *options.ServerOptions) *[]credentials.EncryptingCredential {
		return &o.EncryptionCredentials
	})
}

// AddEncryptionKey infers an encryption credential from key
func (b *ServerBuilder) AddEncryptionKey(key credentials.Key) error {
	c, err := credentials.DeriveEncryptingCredential(key)
	if err != nil {
		return err
	}
	return b.AddEncryptionCredential(c)
}

// AddEncryptionCertificate infers an encryption credential from a certificate
func (b *ServerBuilder) AddEncryptionCertificate(cert *credentials.Certificate) error {
	c, err := credentials.EncryptingCredentialFromCertificate(cert, b.settings.clock)
	if err != nil {
		return err
	}
	return b.AddEncryptionCredential(c)
}

// AddEncryptionCertificateFromStream loads a PKCS#12 or PEM certificate from r
func (b *ServerBuilder) AddEncryptionCertificateFromStream(r io.Reader, password string) error {
	cert, err := b.settings.certificateFromStream(r, password)
	if err != nil {
		return err
	}
	return b.AddEncryptionCertificate(cert)
}

// AddEncryptionCertificateFromStore looks a certificate up by thumbprint
func (b *ServerBuilder) AddEncryptionCertificateFromStore(thumbprint string, location credentials.StoreLocation) error {
	cert, err := b.settings.certificateFromStore(thumbprint, location)
	if err != nil {
		return err
	}
	return b.AddEncryptionCertificate(cert)
}

// AddEphemeralEncryptionKey generates a symmetric encryption key held in memory only
func (b *ServerBuilder) AddEphemeralEncryptionKey() error {
	key, err := ephemeralEncryptionKey()
	if err != nil {
		return err
	}
	return b.AddEncryptionKey(key)
}

func checkEntries(param string, values []string) error {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return fault.Argumentf(param, "%s cannot contain empty entries", param)
		}
	}
	return nil
}
