// Package handler describes pluggable units of protocol processing.
//
// A Descriptor carries a handler's identity (its service type), the event
// context it observes, its lifetime and its filters. Descriptors are plain
// values: registering them with a locator and collecting them into handler
// lists is the builder's job.
package handler

import (
	"context"
	"fmt"
	"reflect"

	"github.com/project-kessel/oidcforge/internal/fault"
	"github.com/project-kessel/oidcforge/internal/locator"
)

// Lifetime of a handler's backing service
type Lifetime = locator.Lifetime

const (
	// Singleton handlers are built once and shared by every operation
	Singleton = locator.Singleton
	// Scoped handlers are built once per operation
	Scoped = locator.Scoped
)

// Handler processes one event context of type C
type Handler[C any] interface {
	Handle(ctx context.Context, event *C) error
}

// Func adapts a function to Handler
type Func[C any] func(ctx context.Context, event *C) error

// Handle implements Handler
func (f Func[C]) Handle(ctx context.Context, event *C) error {
	return f(ctx, event)
}

// Descriptor identifies one handler
type Descriptor struct {
	// ContextType is the event context the handler observes
	ContextType reflect.Type

	// ServiceType identifies the handler for registration, lookup and removal
	ServiceType reflect.Type

	Lifetime Lifetime

	// Filters decide at dispatch time whether the handler applies
	Filters []Filter

	// Order is a dispatch ordering hint
	Order int

	// Factory builds the handler. Exactly one of Factory and Instance is set.
	Factory locator.Factory

	// Instance is a pre-built handler; it forces the Singleton lifetime
	Instance any
}

// Validate checks that d can be registered
func (d Descriptor) Validate() error {
	if d.ContextType == nil {
		return fault.Argument("descriptor.ContextType", "must not be nil")
	}
	if d.ServiceType == nil {
		return fault.Argument("descriptor.ServiceType", "must not be nil")
	}
	if d.Lifetime != Singleton && d.Lifetime != Scoped {
		return fault.Argumentf("descriptor.Lifetime", "unknown lifetime %s", d.Lifetime)
	}
	if (d.Factory == nil) == (d.Instance == nil) {
		return fault.Argument("descriptor", "exactly one of Factory and Instance must be set")
	}
	if d.Instance != nil {
		if d.Lifetime != Singleton {
			return fault.Argument("descriptor.Lifetime", "a pre-built instance can only be registered as a singleton")
		}
		if !reflect.TypeOf(d.Instance).AssignableTo(d.ServiceType) {
			return fault.Argumentf("descriptor.Instance", "%T is not assignable to %s", d.Instance, d.ServiceType)
		}
	}
	for i, f := range d.Filters {
		if f == nil {
			return fault.Argumentf("descriptor.Filters", "filter %d is nil", i)
		}
	}
	return nil
}

// Register adds the descriptor's backing service to c at the declared lifetime
func (d Descriptor) Register(c *locator.Container) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if d.Instance != nil {
		return c.RegisterInstance(d.ServiceType, d.Instance)
	}
	return c.Register(d.ServiceType, d.Lifetime, d.Factory)
}

// String implements fmt.Stringer
func (d Descriptor) String() string {
	return fmt.Sprintf("%s(%s, %s, order=%d)", d.ServiceType, d.ContextType, d.Lifetime, d.Order)
}
