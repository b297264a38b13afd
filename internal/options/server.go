package options

import (
	"net/url"
	"slices"
	"time"

	"github.com/project-kessel/oidcforge/internal/credentials"
)

// Endpoint names a server endpoint
type Endpoint int

const (
	AuthorizationEndpoint Endpoint = iota
	TokenEndpoint
	IntrospectionEndpoint
	RevocationEndpoint
	UserinfoEndpoint
	EndSessionEndpoint
	ConfigurationEndpoint
	JSONWebKeySetEndpoint
	DeviceAuthorizationEndpoint
	EndUserVerificationEndpoint
)

var endpointNames = map[Endpoint]string{
	AuthorizationEndpoint:       "authorization",
	TokenEndpoint:               "token",
	IntrospectionEndpoint:       "introspection",
	RevocationEndpoint:          "revocation",
	UserinfoEndpoint:            "userinfo",
	EndSessionEndpoint:          "end_session",
	ConfigurationEndpoint:       "configuration",
	JSONWebKeySetEndpoint:       "jwks",
	DeviceAuthorizationEndpoint: "device_authorization",
	EndUserVerificationEndpoint: "end_user_verification",
}

// Endpoints lists every endpoint in declaration order
func Endpoints() []Endpoint {
	return []Endpoint{
		AuthorizationEndpoint, TokenEndpoint, IntrospectionEndpoint, RevocationEndpoint,
		UserinfoEndpoint, EndSessionEndpoint, ConfigurationEndpoint, JSONWebKeySetEndpoint,
		DeviceAuthorizationEndpoint, EndUserVerificationEndpoint,
	}
}

// String implements fmt.Stringer
func (e Endpoint) String() string {
	if name, ok := endpointNames[e]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether e names a known endpoint
func (e Endpoint) Valid() bool {
	_, ok := endpointNames[e]
	return ok
}

// ParseEndpoint returns the endpoint with the given name
func ParseEndpoint(name string) (Endpoint, bool) {
	for e, n := range endpointNames {
		if n == name {
			return e, true
		}
	}
	return 0, false
}

// Well-known grant types
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeClientCredentials = "client_credentials"
	GrantTypeDeviceCode        = "urn:ietf:params:oauth:grant-type:device_code"
	GrantTypeImplicit          = "implicit"
	GrantTypePassword          = "password"
	GrantTypeRefreshToken      = "refresh_token"
)

// Well-known response types
const (
	ResponseTypeCode    = "code"
	ResponseTypeIDToken = "id_token"
	ResponseTypeNone    = "none"
	ResponseTypeToken   = "token"
)

// Default lifetimes
const (
	DefaultAccessTokenLifetime       = time.Hour
	DefaultAuthorizationCodeLifetime = 5 * time.Minute
	DefaultIdentityTokenLifetime     = 20 * time.Minute
	DefaultRefreshTokenLifetime      = 14 * 24 * time.Hour
	DefaultDeviceCodeLifetime        = 10 * time.Minute
	DefaultUserCodeLifetime          = 10 * time.Minute
)

// ServerOptions configures the server component
type ServerOptions struct {
	HandlerLists

	// Issuer is the absolute issuer identifier; nil means it is inferred per request
	Issuer *url.URL

	// Endpoint addresses, relative or absolute, in configuration order.
	// Duplicates are kept.
	AuthorizationEndpointURIs       []*url.URL
	TokenEndpointURIs               []*url.URL
	IntrospectionEndpointURIs       []*url.URL
	RevocationEndpointURIs          []*url.URL
	UserinfoEndpointURIs            []*url.URL
	EndSessionEndpointURIs          []*url.URL
	ConfigurationEndpointURIs       []*url.URL
	JSONWebKeySetEndpointURIs       []*url.URL
	DeviceAuthorizationEndpointURIs []*url.URL
	EndUserVerificationEndpointURIs []*url.URL

	// Lifetimes; nil means the artifact never expires
	AccessTokenLifetime       *time.Duration
	AuthorizationCodeLifetime *time.Duration
	IdentityTokenLifetime     *time.Duration
	RefreshTokenLifetime      *time.Duration
	DeviceCodeLifetime        *time.Duration
	UserCodeLifetime          *time.Duration

	// Ordered sets
	GrantTypes    []string
	ResponseTypes []string
	Claims        []string
	Scopes        []string

	SigningCredentials    []credentials.SigningCredential
	EncryptionCredentials []credentials.EncryptingCredential

	DisableAccessTokenEncryption   bool
	DisableScopeValidation         bool
	DisableTokenStorage            bool
	AcceptAnonymousClients         bool
	RequireProofKeyForCodeExchange bool
	UseReferenceAccessTokens       bool
}

// NewServerOptions returns options holding the library defaults, without handlers
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		AccessTokenLifetime:       Duration(DefaultAccessTokenLifetime),
		AuthorizationCodeLifetime: Duration(DefaultAuthorizationCodeLifetime),
		IdentityTokenLifetime:     Duration(DefaultIdentityTokenLifetime),
		RefreshTokenLifetime:      Duration(DefaultRefreshTokenLifetime),
		DeviceCodeLifetime:        Duration(DefaultDeviceCodeLifetime),
		UserCodeLifetime:          Duration(DefaultUserCodeLifetime),
		Claims:                    []string{"aud", "exp", "iat", "iss", "sub"},
		Scopes:                    []string{"openid"},
	}
}

// EndpointURIs returns the address list of e
func (o *ServerOptions) EndpointURIs(e Endpoint) *[]*url.URL {
	switch e {
	case AuthorizationEndpoint:
		return &o.AuthorizationEndpointURIs
	case TokenEndpoint:
		return &o.TokenEndpointURIs
	case IntrospectionEndpoint:
		return &o.IntrospectionEndpointURIs
	case RevocationEndpoint:
		return &o.RevocationEndpointURIs
	case UserinfoEndpoint:
		return &o.UserinfoEndpointURIs
	case EndSessionEndpoint:
		return &o.EndSessionEndpointURIs
	case ConfigurationEndpoint:
		return &o.ConfigurationEndpointURIs
	case JSONWebKeySetEndpoint:
		return &o.JSONWebKeySetEndpointURIs
	case DeviceAuthorizationEndpoint:
		return &o.DeviceAuthorizationEndpointURIs
	case EndUserVerificationEndpoint:
		return &o.EndUserVerificationEndpointURIs
	default:
		return nil
	}
}

// Lifetime names a configurable artifact lifetime
type Lifetime int

const (
	AccessTokenLifetime Lifetime = iota
	AuthorizationCodeLifetime
	IdentityTokenLifetime
	RefreshTokenLifetime
	DeviceCodeLifetime
	UserCodeLifetime
)

// Valid reports whether l names a known lifetime
func (l Lifetime) Valid() bool {
	return l >= AccessTokenLifetime && l <= UserCodeLifetime
}

// LifetimeOf returns the field holding lifetime l
func (o *ServerOptions) LifetimeOf(l Lifetime) **time.Duration {
	switch l {
	case AccessTokenLifetime:
		return &o.AccessTokenLifetime
	case AuthorizationCodeLifetime:
		return &o.AuthorizationCodeLifetime
	case IdentityTokenLifetime:
		return &o.IdentityTokenLifetime
	case RefreshTokenLifetime:
		return &o.RefreshTokenLifetime
	case DeviceCodeLifetime:
		return &o.DeviceCodeLifetime
	case UserCodeLifetime:
		return &o.UserCodeLifetime
	default:
		return nil
	}
}

// HasGrantType reports whether grantType is enabled
func (o *ServerOptions) HasGrantType(grantType string) bool {
	return slices.Contains(o.GrantTypes, grantType)
}

// HasScope reports whether scope is registered
func (o *ServerOptions) HasScope(scope string) bool {
	return slices.Contains(o.Scopes, scope)
}

// Duration returns a pointer to d
func Duration(d time.Duration) *time.Duration {
	return &d
}

// AppendUnique appends the values missing from list, keeping order
func AppendUnique(list []string, values ...string) []string {
	for _, v := range values {
		if !slices.Contains(list, v) {
			list = append(list, v)
		}
	}
	return list
}
