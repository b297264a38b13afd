// Package events defines the event contexts observed by protocol handlers.
package events

import (
	"fmt"
	"time"
)

// Rejection records why a handler rejected an operation
type Rejection struct {
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// Reject marks the operation as rejected with an OAuth2 error code
func (r *Rejection) Reject(code, format string, args ...any) {
	r.Error = code
	r.ErrorDescription = fmt.Sprintf(format, args...)
}

// IsRejected reports whether a handler rejected the operation
func (r *Rejection) IsRejected() bool {
	return r.Error != ""
}

// OAuth2 error codes used by the built-in handlers
const (
	ErrorInvalidRequest       = "invalid_request"
	ErrorInvalidClient        = "invalid_client"
	ErrorInvalidScope         = "invalid_scope"
	ErrorInvalidToken         = "invalid_token"
	ErrorUnsupportedGrantType = "unsupported_grant_type"
)

// ValidateTokenRequest is raised by the server when a token request is received
type ValidateTokenRequest struct {
	Rejection

	GrantType string   `json:"grant_type"`
	ClientID  string   `json:"client_id,omitempty"`
	Scopes    []string `json:"scopes,omitempty"`
}

// ProcessSignIn is raised by the server before tokens are issued
type ProcessSignIn struct {
	Rejection

	Subject   string    `json:"subject"`
	ClientID  string    `json:"client_id,omitempty"`
	Scopes    []string  `json:"scopes,omitempty"`
	IssuedAt  time.Time `json:"issued_at"`

	// Expiration dates filled in from the configured lifetimes;
	// nil means the artifact does not expire.
	AccessTokenExpiresAt       *time.Time `json:"access_token_expires_at,omitempty"`
	AuthorizationCodeExpiresAt *time.Time `json:"authorization_code_expires_at,omitempty"`
	IdentityTokenExpiresAt     *time.Time `json:"identity_token_expires_at,omitempty"`
	RefreshTokenExpiresAt      *time.Time `json:"refresh_token_expires_at,omitempty"`
	DeviceCodeExpiresAt        *time.Time `json:"device_code_expires_at,omitempty"`
	UserCodeExpiresAt          *time.Time `json:"user_code_expires_at,omitempty"`
}

// ValidateToken is raised by the validation component for every token it checks
type ValidateToken struct {
	Rejection

	Issuer    string     `json:"issuer,omitempty"`
	Audiences []string   `json:"audiences,omitempty"`
	ClientID  string     `json:"client_id,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Now       time.Time  `json:"now"`
}
