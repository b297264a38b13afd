// Package locator is a small service locator keyed by reflect.Type.
//
// Services are registered with a lifetime. Singleton services are built once
// per Container and shared with every scope created from it; scoped services
// are built once per Scope and can only be resolved through one.
package locator

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

// Lifetime controls how long a materialized service is reused
type Lifetime int

const (
	// Singleton services are built once and shared by all callers
	Singleton Lifetime = iota
	// Scoped services are built once per Scope
	Scoped
)

// String implements fmt.Stringer
func (l Lifetime) String() string {
	switch l {
	case Singleton:
		return "singleton"
	case Scoped:
		return "scoped"
	default:
		return fmt.Sprintf("lifetime(%d)", int(l))
	}
}

var (
	// ErrNotRegistered is returned by ResolveRequired when no registration exists
	ErrNotRegistered = errors.New("service not registered")

	// ErrScopeRequired is returned when a scoped service is resolved outside a scope
	ErrScopeRequired = errors.New("scoped service resolved outside of a scope")
)

// Factory builds a service. r resolves the factory's own dependencies and is
// the scope the service is being built for, when there is one.
type Factory func(r Resolver) (any, error)

// Resolver materializes registered services
type Resolver interface {
	// Resolve returns the service registered last for t.
	// ok is false when nothing is registered.
	Resolve(t reflect.Type) (v any, ok bool, err error)

	// ResolveRequired is Resolve that fails with ErrNotRegistered when
	// nothing is registered for t.
	ResolveRequired(t reflect.Type) (any, error)
}

type registration struct {
	serviceType reflect.Type
	lifetime    Lifetime
	factory     Factory

	mu       sync.Mutex
	built    bool
	instance any
}

// Container holds service registrations and singleton instances
type Container struct {
	mu            sync.RWMutex
	registrations map[reflect.Type][]*registration
}

// New creates an empty container
func New() *Container {
	return &Container{
		registrations: make(map[reflect.Type][]*registration),
	}
}

// Register adds a factory-backed registration for t. Later registrations for
// the same type take precedence over earlier ones.
func (c *Container) Register(t reflect.Type, lifetime Lifetime, factory Factory) error {
	if t == nil {
		return fmt.Errorf("service type cannot be nil")
	}
	if factory == nil {
		return fmt.Errorf("factory for %s cannot be nil", t)
	}
	if lifetime != Singleton && lifetime != Scoped {
		return fmt.Errorf("unknown lifetime %s for %s", lifetime, t)
	}

	c.add(&registration{serviceType: t, lifetime: lifetime, factory: factory})
	return nil
}

// RegisterInstance registers a pre-built singleton instance for t
func (c *Container) RegisterInstance(t reflect.Type, v any) error {
	if t == nil {
		return fmt.Errorf("service type cannot be nil")
	}
	if v == nil {
		return fmt.Errorf("instance for %s cannot be nil", t)
	}
	if !reflect.TypeOf(v).AssignableTo(t) {
		return fmt.Errorf("instance of type %T is not assignable to %s", v, t)
	}

	c.add(&registration{serviceType: t, lifetime: Singleton, built: true, instance: v})
	return nil
}

func (c *Container) add(reg *registration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.registrations[reg.serviceType] = append(c.registrations[reg.serviceType], reg)
}

// UnregisterAll removes every registration for t and returns how many were removed
func (c *Container) UnregisterAll(t reflect.Type) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.registrations[t])
	delete(c.registrations, t)
	return n
}

// IsRegistered reports whether at least one registration exists for t
func (c *Container) IsRegistered(t reflect.Type) bool {
	return c.Registrations(t) > 0
}

// Registrations returns the number of registrations for t
func (c *Container) Registrations(t reflect.Type) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.registrations[t])
}

// LifetimeOf returns the lifetime of the registration that Resolve would use
func (c *Container) LifetimeOf(t reflect.Type) (Lifetime, bool) {
	reg := c.lookup(t)
	if reg == nil {
		return 0, false
	}
	return reg.lifetime, true
}

func (c *Container) lookup(t reflect.Type) *registration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	regs := c.registrations[t]
	if len(regs) == 0 {
		return nil
	}
	return regs[len(regs)-1]
}

// Resolve implements Resolver
func (c *Container) Resolve(t reflect.Type) (any, bool, error) {
	reg := c.lookup(t)
	if reg == nil {
		return nil, false, nil
	}
	if reg.lifetime == Scoped {
		return nil, true, fmt.Errorf("%w: %s", ErrScopeRequired, t)
	}

	v, err := c.singleton(reg)
	return v, true, err
}

// ResolveRequired implements Resolver
func (c *Container) ResolveRequired(t reflect.Type) (any, error) {
	return required(c, t)
}

// singleton builds reg at most once; the factory runs outside the lock so
// that it may resolve other services.
func (c *Container) singleton(reg *registration) (any, error) {
	reg.mu.Lock()
	if reg.built {
		v := reg.instance
		reg.mu.Unlock()
		return v, nil
	}
	reg.mu.Unlock()

	v, err := build(reg, c)
	if err != nil {
		return nil, err
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if !reg.built {
		reg.built = true
		reg.instance = v
	}
	return reg.instance, nil
}

// NewScope creates a scope for one logical operation
func (c *Container) NewScope() *Scope {
	return &Scope{
		root:      c,
		instances: make(map[*registration]any),
	}
}

// Scope resolves scoped services once per operation and delegates singletons
// to its container.
type Scope struct {
	root *Container

	mu        sync.Mutex
	instances map[*registration]any
}

// Container returns the container the scope was created from
func (s *Scope) Container() *Container {
	return s.root
}

// Resolve implements Resolver
func (s *Scope) Resolve(t reflect.Type) (any, bool, error) {
	reg := s.root.lookup(t)
	if reg == nil {
		return nil, false, nil
	}
	if reg.lifetime == Singleton {
		v, err := s.root.singleton(reg)
		return v, true, err
	}

	s.mu.Lock()
	v, ok := s.instances[reg]
	s.mu.Unlock()
	if ok {
		return v, true, nil
	}

	v, err := build(reg, s)
	if err != nil {
		return nil, true, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.instances[reg]; ok {
		return existing, true, nil
	}
	s.instances[reg] = v
	return v, true, nil
}

// ResolveRequired implements Resolver
func (s *Scope) ResolveRequired(t reflect.Type) (any, error) {
	return required(s, t)
}

func required(r Resolver, t reflect.Type) (any, error) {
	v, ok, err := r.Resolve(t)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, t)
	}
	return v, nil
}

func build(reg *registration, r Resolver) (any, error) {
	v, err := reg.factory(r)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s: %w", reg.serviceType, err)
	}
	if v == nil {
		return nil, fmt.Errorf("factory for %s returned nil", reg.serviceType)
	}
	if !reflect.TypeOf(v).AssignableTo(reg.serviceType) {
		return nil, fmt.Errorf("factory for %s returned incompatible type %T", reg.serviceType, v)
	}
	return v, nil
}

// Get resolves the service registered for T
func Get[T any](r Resolver) (T, error) {
	var zero T
	v, err := r.ResolveRequired(reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// Lookup resolves the service registered for T, reporting whether one exists
func Lookup[T any](r Resolver) (T, bool, error) {
	var zero T
	v, ok, err := r.Resolve(reflect.TypeFor[T]())
	if err != nil || !ok {
		return zero, ok, err
	}
	return v.(T), true, nil
}

// IsProvided reports whether c has a registration for T
func IsProvided[T any](c *Container) bool {
	return c.IsRegistered(reflect.TypeFor[T]())
}

// Provide registers a typed factory for T
func Provide[T any](c *Container, lifetime Lifetime, factory func(r Resolver) (T, error)) error {
	if factory == nil {
		return fmt.Errorf("factory for %s cannot be nil", reflect.TypeFor[T]())
	}
	return c.Register(reflect.TypeFor[T](), lifetime, func(r Resolver) (any, error) {
		return factory(r)
	})
}

// Instance registers v as the singleton for T
func Instance[T any](c *Container, v T) error {
	return c.RegisterInstance(reflect.TypeFor[T](), v)
}
