package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/project-kessel/oidcforge/internal/events"
	"github.com/project-kessel/oidcforge/internal/handler"
	"github.com/project-kessel/oidcforge/internal/locator"
	"github.com/project-kessel/oidcforge/internal/options"
)

// ValidateIssuer rejects tokens issued by another issuer
type ValidateIssuer struct {
	options *options.ValidationOptions
}

// Handle implements handler.Handler
func (h *ValidateIssuer) Handle(_ context.Context, e *events.ValidateToken) error {
	if e.IsRejected() || h.options.Issuer == nil {
		return nil
	}
	expected := strings.TrimSuffix(h.options.Issuer.String(), "/")
	if strings.TrimSuffix(e.Issuer, "/") != expected {
		e.Reject(events.ErrorInvalidToken, "the issuer %q is not valid", e.Issuer)
	}
	return nil
}

// ValidateAudience rejects tokens without an accepted audience
type ValidateAudience struct {
	options *options.ValidationOptions
}

// Handle implements handler.Handler
func (h *ValidateAudience) Handle(_ context.Context, e *events.ValidateToken) error {
	if e.IsRejected() {
		return nil
	}
	if !h.options.AcceptsAudience(e.Audiences) {
		e.Reject(events.ErrorInvalidToken, "the token has no accepted audience")
	}
	return nil
}

// ValidateExpiration rejects expired tokens
type ValidateExpiration struct {
	clock clockwork.Clock
}

// Handle implements handler.Handler
func (h *ValidateExpiration) Handle(_ context.Context, e *events.ValidateToken) error {
	if e.IsRejected() {
		return nil
	}
	if e.Now.IsZero() {
		e.Now = h.clock.Now().UTC()
	}
	if e.ExpiresAt != nil && !e.Now.Before(*e.ExpiresAt) {
		e.Reject(events.ErrorInvalidToken, "the token expired at %s", e.ExpiresAt.UTC().Format(time.RFC3339))
	}
	return nil
}

// ValidationDefaults returns the default handler descriptors of the
// validation component
func ValidationDefaults() ([]handler.Descriptor, error) {
	builders := []*handler.DescriptorBuilder[events.ValidateToken]{
		handler.UseSingleton(handler.NewDescriptorBuilder[events.ValidateToken](), func(r locator.Resolver) (*ValidateIssuer, error) {
			o, err := locator.Get[*options.ValidationOptions](r)
			if err != nil {
				return nil, err
			}
			return &ValidateIssuer{options: o}, nil
		}).SetOrder(1000),
		handler.UseSingleton(handler.NewDescriptorBuilder[events.ValidateToken](), func(r locator.Resolver) (*ValidateAudience, error) {
			o, err := locator.Get[*options.ValidationOptions](r)
			if err != nil {
				return nil, err
			}
			return &ValidateAudience{options: o}, nil
		}).SetOrder(2000),
		handler.UseSingleton(handler.NewDescriptorBuilder[events.ValidateToken](), func(r locator.Resolver) (*ValidateExpiration, error) {
			return &ValidateExpiration{clock: resolveClock(r)}, nil
		}).SetOrder(3000),
	}

	descriptors := make([]handler.Descriptor, 0, len(builders))
	for _, b := range builders {
		d, err := b.Build()
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, d)
	}
	return descriptors, nil
}
