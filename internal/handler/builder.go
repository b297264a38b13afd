package handler

import (
	"reflect"

	"github.com/project-kessel/oidcforge/internal/fault"
	"github.com/project-kessel/oidcforge/internal/locator"
)

// DescriptorBuilder assembles a Descriptor for context type C.
// The first invalid argument is remembered and reported by Build.
type DescriptorBuilder[C any] struct {
	descriptor Descriptor
	err        error
}

// NewDescriptorBuilder returns a builder for handlers observing C
func NewDescriptorBuilder[C any]() *DescriptorBuilder[C] {
	return &DescriptorBuilder[C]{
		descriptor: Descriptor{
			ContextType: reflect.TypeFor[C](),
			Lifetime:    Singleton,
		},
	}
}

// Import copies an existing descriptor for C
func (b *DescriptorBuilder[C]) Import(d Descriptor) *DescriptorBuilder[C] {
	if b.err != nil {
		return b
	}
	if d.ContextType != reflect.TypeFor[C]() {
		b.err = fault.Argumentf("descriptor", "context type %s does not match %s", d.ContextType, reflect.TypeFor[C]())
		return b
	}
	d.Filters = append([]Filter(nil), d.Filters...)
	b.descriptor = d
	return b
}

// UseSingletonHandler uses a pre-built handler instance. Its dynamic type
// becomes the service type unless SetServiceType overrides it.
func (b *DescriptorBuilder[C]) UseSingletonHandler(h Handler[C]) *DescriptorBuilder[C] {
	if b.err != nil {
		return b
	}
	if h == nil {
		b.err = fault.Argument("handler", "must not be nil")
		return b
	}
	b.descriptor.ServiceType = reflect.TypeOf(h)
	b.descriptor.Lifetime = Singleton
	b.descriptor.Instance = h
	b.descriptor.Factory = nil
	return b
}

// UseFactory registers a factory-built handler under serviceType
func (b *DescriptorBuilder[C]) UseFactory(serviceType reflect.Type, lifetime Lifetime, factory locator.Factory) *DescriptorBuilder[C] {
	if b.err != nil {
		return b
	}
	switch {
	case serviceType == nil:
		b.err = fault.Argument("serviceType", "must not be nil")
	case factory == nil:
		b.err = fault.Argument("factory", "must not be nil")
	case !serviceType.Implements(reflect.TypeFor[Handler[C]]()):
		b.err = fault.Argumentf("serviceType", "%s does not handle %s", serviceType, reflect.TypeFor[C]())
	default:
		b.descriptor.ServiceType = serviceType
		b.descriptor.Lifetime = lifetime
		b.descriptor.Factory = factory
		b.descriptor.Instance = nil
	}
	return b
}

// SetServiceType overrides the service type used for registration and removal
func (b *DescriptorBuilder[C]) SetServiceType(t reflect.Type) *DescriptorBuilder[C] {
	if b.err != nil {
		return b
	}
	if t == nil {
		b.err = fault.Argument("serviceType", "must not be nil")
		return b
	}
	b.descriptor.ServiceType = t
	return b
}

// AddFilter appends a filter
func (b *DescriptorBuilder[C]) AddFilter(f Filter) *DescriptorBuilder[C] {
	if b.err != nil {
		return b
	}
	if f == nil {
		b.err = fault.Argument("filter", "must not be nil")
		return b
	}
	b.descriptor.Filters = append(b.descriptor.Filters, f)
	return b
}

// SetOrder sets the dispatch ordering hint
func (b *DescriptorBuilder[C]) SetOrder(order int) *DescriptorBuilder[C] {
	b.descriptor.Order = order
	return b
}

// Build returns the descriptor, or the first error recorded while building
func (b *DescriptorBuilder[C]) Build() (Descriptor, error) {
	if b.err != nil {
		return Descriptor{}, b.err
	}
	d := b.descriptor
	d.Filters = append([]Filter(nil), d.Filters...)
	if err := d.Validate(); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

// UseSingleton registers H built once by factory
func UseSingleton[C any, H Handler[C]](b *DescriptorBuilder[C], factory func(r locator.Resolver) (H, error)) *DescriptorBuilder[C] {
	return use(b, Singleton, factory)
}

// UseScoped registers H built once per operation by factory
func UseScoped[C any, H Handler[C]](b *DescriptorBuilder[C], factory func(r locator.Resolver) (H, error)) *DescriptorBuilder[C] {
	return use(b, Scoped, factory)
}

func use[C any, H Handler[C]](b *DescriptorBuilder[C], lifetime Lifetime, factory func(r locator.Resolver) (H, error)) *DescriptorBuilder[C] {
	if factory == nil {
		return b.UseFactory(reflect.TypeFor[H](), lifetime, nil)
	}
	return b.UseFactory(reflect.TypeFor[H](), lifetime, func(r locator.Resolver) (any, error) {
		return factory(r)
	})
}
