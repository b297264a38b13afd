package builder

import (
	"io"
	"net/url"
	"strings"

	"github.com/project-kessel/oidcforge/internal/credentials"
	"github.com/project-kessel/oidcforge/internal/fault"
	"github.com/project-kessel/oidcforge/internal/handlers"
	"github.com/project-kessel/oidcforge/internal/locator"
	"github.com/project-kessel/oidcforge/internal/options"
)

const componentValidation = "validation"

// ValidationBuilder configures the validation component
type ValidationBuilder struct {
	*registry[options.ValidationOptions]
}

var _ HandlerRegistry = (*ValidationBuilder)(nil)

// NewValidationBuilder registers the built-in validation handlers and the
// validation options with container and returns a builder for them.
func NewValidationBuilder(container *locator.Container, opts ...Option) (*ValidationBuilder, error) {
	defaults, err := handlers.ValidationDefaults()
	if err != nil {
		return nil, err
	}

	r, err := newRegistry(componentValidation, container, newSettings(opts), options.NewValidationOptions,
		func(o *options.ValidationOptions) *options.HandlerLists { return &o.HandlerLists },
		defaults)
	if err != nil {
		return nil, err
	}
	return &ValidationBuilder{registry: r}, nil
}

// SetIssuer sets the expected token issuer
func (b *ValidationBuilder) SetIssuer(issuer string) error {
	u, err := parseAbsoluteURI("issuer", issuer)
	if err != nil {
		return err
	}
	return b.SetIssuerURL(u)
}

// SetIssuerURL sets the expected token issuer
func (b *ValidationBuilder) SetIssuerURL(issuer *url.URL) error {
	u, err := checkAbsoluteURI("issuer", issuer)
	if err != nil {
		return err
	}
	return b.Configure(func(o *options.ValidationOptions) {
		o.Issuer = u
	})
}

// AddAudiences adds accepted audiences
func (b *ValidationBuilder) AddAudiences(audiences ...string) error {
	if err := checkEntries("audiences", audiences); err != nil {
		return err
	}
	audiences = append([]string(nil), audiences...)
	return b.Configure(func(o *options.ValidationOptions) {
		o.Audiences = options.AppendUnique(o.Audiences, audiences...)
	})
}

// SetClientID sets the client identifier used for introspection
func (b *ValidationBuilder) SetClientID(clientID string) error {
	if strings.TrimSpace(clientID) == "" {
		return fault.Argument("clientID", "must not be empty")
	}
	return b.Configure(func(o *options.ValidationOptions) {
		o.ClientID = clientID
	})
}

// UseIntrospection validates tokens through the server's introspection endpoint
func (b *ValidationBuilder) UseIntrospection() error {
	return b.SetValidationType(options.ValidationTypeIntrospection)
}

// UseLocalValidation validates tokens locally
func (b *ValidationBuilder) UseLocalValidation() error {
	return b.SetValidationType(options.ValidationTypeDirect)
}

// SetValidationType selects the validation type
func (b *ValidationBuilder) SetValidationType(t options.ValidationType) error {
	if t != options.ValidationTypeDirect && t != options.ValidationTypeIntrospection {
		return fault.Argumentf("type", "unknown validation type %d", int(t))
	}
	return b.Configure(func(o *options.ValidationOptions) {
		o.ValidationType = t
	})
}

// EnableAuthorizationEntryValidation checks the authorization backing each token
func (b *ValidationBuilder) EnableAuthorizationEntryValidation() error {
	return b.Configure(func(o *options.ValidationOptions) { o.EnableAuthorizationEntryValidation = true })
}

// EnableTokenEntryValidation checks the token entry backing each token
func (b *ValidationBuilder) EnableTokenEntryValidation() error {
	return b.Configure(func(o *options.ValidationOptions) { o.EnableTokenEntryValidation = true })
}

// AddEncryptionCredential adds an explicit encryption credential
func (b *ValidationBuilder) AddEncryptionCredential(c credentials.EncryptingCredential) error {
	return addEncryptionCredential(b.registry, c, func(o *options.ValidationOptions) *[]credentials.EncryptingCredential {
		return &o.EncryptionCredentials
	})
}

// AddEncryptionKey infers an encryption credential from key
func (b *ValidationBuilder) AddEncryptionKey(key credentials.Key) error {
	c, err := credentials.DeriveEncryptingCredential(key)
	if err != nil {
		return err
	}
	return b.AddEncryptionCredential(c)
}

// AddEncryptionCertificate infers an encryption credential from a certificate
func (b *ValidationBuilder) AddEncryptionCertificate(cert *credentials.Certificate) error {
	c, err := credentials.EncryptingCredentialFromCertificate(cert, b.settings.clock)
	if err != nil {
		return err
	}
	return b.AddEncryptionCredential(c)
}

// AddEncryptionCertificateFromStream loads a PKCS#12 or PEM certificate from r
func (b *ValidationBuilder) AddEncryptionCertificateFromStream(r io.Reader, password string) error {
	cert, err := b.settings.certificateFromStream(r, password)
	if err != nil {
		return err
	}
	return b.AddEncryptionCertificate(cert)
}

// AddEncryptionCertificateFromStore looks a certificate up by thumbprint
func (b *ValidationBuilder) AddEncryptionCertificateFromStore(thumbprint string, location credentials.StoreLocation) error {
	cert, err := b.settings.certificateFromStore(thumbprint, location)
	if err != nil {
		return err
	}
	return b.AddEncryptionCertificate(cert)
}
