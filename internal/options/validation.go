package options

import (
	"net/url"
	"slices"

	"github.com/project-kessel/oidcforge/internal/credentials"
)

// ValidationType selects how the validation component checks tokens
type ValidationType int

const (
	// ValidationTypeDirect validates tokens locally
	ValidationTypeDirect ValidationType = iota
	// ValidationTypeIntrospection asks the server's introspection endpoint
	ValidationTypeIntrospection
)

// String implements fmt.Stringer
func (t ValidationType) String() string {
	switch t {
	case ValidationTypeDirect:
		return "direct"
	case ValidationTypeIntrospection:
		return "introspection"
	default:
		return "unknown"
	}
}

// ParseValidationType parses "direct" or "introspection"
func ParseValidationType(s string) (ValidationType, bool) {
	switch s {
	case "direct", "":
		return ValidationTypeDirect, true
	case "introspection":
		return ValidationTypeIntrospection, true
	default:
		return 0, false
	}
}

// ValidationOptions configures the validation component
type ValidationOptions struct {
	HandlerLists

	// Issuer is the expected token issuer
	Issuer *url.URL

	// Audiences is the ordered set of accepted audiences; empty accepts any
	Audiences []string

	ClientID string

	ValidationType ValidationType

	EncryptionCredentials []credentials.EncryptingCredential

	// Entry validation checks the authorization or token entry backing a
	// token in the store
	EnableAuthorizationEntryValidation bool
	EnableTokenEntryValidation         bool
}

// NewValidationOptions returns options holding the library defaults, without handlers
func NewValidationOptions() *ValidationOptions {
	return &ValidationOptions{ValidationType: ValidationTypeDirect}
}

// AcceptsAudience reports whether any of audiences is accepted
func (o *ValidationOptions) AcceptsAudience(audiences []string) bool {
	if len(o.Audiences) == 0 {
		return true
	}
	for _, a := range audiences {
		if slices.Contains(o.Audiences, a) {
			return true
		}
	}
	return false
}
