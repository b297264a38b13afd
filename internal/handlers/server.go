// Package handlers contains the built-in default handlers of the server and
// validation components.
package handlers

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/project-kessel/oidcforge/internal/events"
	"github.com/project-kessel/oidcforge/internal/handler"
	"github.com/project-kessel/oidcforge/internal/locator"
	"github.com/project-kessel/oidcforge/internal/options"
)

// ValidateGrantType rejects token requests using a grant type that is not enabled
type ValidateGrantType struct {
	options *options.ServerOptions
}

// Handle implements handler.Handler
func (h *ValidateGrantType) Handle(_ context.Context, e *events.ValidateTokenRequest) error {
	if e.GrantType == "" {
		e.Reject(events.ErrorInvalidRequest, "the mandatory 'grant_type' parameter is missing")
		return nil
	}
	if !h.options.HasGrantType(e.GrantType) {
		e.Reject(events.ErrorUnsupportedGrantType, "the grant type %q is not supported", e.GrantType)
	}
	return nil
}

// ValidateClientID rejects token requests without a client identifier unless
// anonymous clients are accepted
type ValidateClientID struct {
	options *options.ServerOptions
}

// Handle implements handler.Handler
func (h *ValidateClientID) Handle(_ context.Context, e *events.ValidateTokenRequest) error {
	if e.IsRejected() || e.ClientID != "" || h.options.AcceptAnonymousClients {
		return nil
	}
	e.Reject(events.ErrorInvalidClient, "the mandatory 'client_id' parameter is missing")
	return nil
}

// ValidateScopes rejects token requests asking for unregistered scopes
type ValidateScopes struct {
	options *options.ServerOptions
}

// Handle implements handler.Handler
func (h *ValidateScopes) Handle(_ context.Context, e *events.ValidateTokenRequest) error {
	if e.IsRejected() || h.options.DisableScopeValidation {
		return nil
	}
	for _, scope := range e.Scopes {
		if !h.options.HasScope(scope) {
			e.Reject(events.ErrorInvalidScope, "the scope %q is not allowed", scope)
			return nil
		}
	}
	return nil
}

// AttachLifetimes computes artifact expiration dates from the configured lifetimes
type AttachLifetimes struct {
	options *options.ServerOptions
	clock   clockwork.Clock
}

// Handle implements handler.Handler
func (h *AttachLifetimes) Handle(_ context.Context, e *events.ProcessSignIn) error {
	if e.IsRejected() {
		return nil
	}
	if e.IssuedAt.IsZero() {
		e.IssuedAt = h.clock.Now().UTC()
	}

	e.AccessTokenExpiresAt = expiresAt(e.IssuedAt, h.options.AccessTokenLifetime)
	e.AuthorizationCodeExpiresAt = expiresAt(e.IssuedAt, h.options.AuthorizationCodeLifetime)
	e.IdentityTokenExpiresAt = expiresAt(e.IssuedAt, h.options.IdentityTokenLifetime)
	e.RefreshTokenExpiresAt = expiresAt(e.IssuedAt, h.options.RefreshTokenLifetime)
	e.DeviceCodeExpiresAt = expiresAt(e.IssuedAt, h.options.DeviceCodeLifetime)
	e.UserCodeExpiresAt = expiresAt(e.IssuedAt, h.options.UserCodeLifetime)
	return nil
}

func expiresAt(issuedAt time.Time, lifetime *time.Duration) *time.Time {
	if lifetime == nil {
		return nil
	}
	t := issuedAt.Add(*lifetime)
	return &t
}

// ServerDefaults returns the default handler descriptors of the server
// component. The handlers resolve *options.ServerOptions and, optionally, a
// clockwork.Clock from the locator.
func ServerDefaults() ([]handler.Descriptor, error) {
	descriptors := []*handler.DescriptorBuilder[events.ValidateTokenRequest]{
		handler.UseSingleton(handler.NewDescriptorBuilder[events.ValidateTokenRequest](),
			withServerOptions(func(o *options.ServerOptions) *ValidateGrantType { return &ValidateGrantType{options: o} })).
			SetOrder(1000),
		handler.UseSingleton(handler.NewDescriptorBuilder[events.ValidateTokenRequest](),
			withServerOptions(func(o *options.ServerOptions) *ValidateClientID { return &ValidateClientID{options: o} })).
			SetOrder(2000),
		handler.UseSingleton(handler.NewDescriptorBuilder[events.ValidateTokenRequest](),
			withServerOptions(func(o *options.ServerOptions) *ValidateScopes { return &ValidateScopes{options: o} })).
			SetOrder(3000),
	}

	var result []handler.Descriptor
	for _, b := range descriptors {
		d, err := b.Build()
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}

	lifetimes, err := handler.UseSingleton(handler.NewDescriptorBuilder[events.ProcessSignIn](), func(r locator.Resolver) (*AttachLifetimes, error) {
		o, err := locator.Get[*options.ServerOptions](r)
		if err != nil {
			return nil, err
		}
		return &AttachLifetimes{options: o, clock: resolveClock(r)}, nil
	}).SetOrder(1000).Build()
	if err != nil {
		return nil, err
	}

	return append(result, lifetimes), nil
}

func withServerOptions[H any](build func(o *options.ServerOptions) H) func(locator.Resolver) (H, error) {
	return func(r locator.Resolver) (H, error) {
		o, err := locator.Get[*options.ServerOptions](r)
		if err != nil {
			var zero H
			return zero, err
		}
		return build(o), nil
	}
}

func resolveClock(r locator.Resolver) clockwork.Clock {
	clk, ok, err := locator.Lookup[clockwork.Clock](r)
	if err != nil || !ok {
		return clockwork.NewRealClock()
	}
	return clk
}
