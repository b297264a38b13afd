// Package builder configures the server and validation components.
//
// Every builder call validates its arguments eagerly and returns an error
// before touching any state. Option changes are queued as mutators and
// applied, in call order, each time the options are materialized; handler
// registrations take effect in the locator immediately.
package builder

import (
	"github.com/jonboulle/clockwork"

	"github.com/project-kessel/oidcforge/internal/credentials"
	"github.com/project-kessel/oidcforge/internal/fault"
	"github.com/project-kessel/oidcforge/internal/handler"
	"github.com/project-kessel/oidcforge/internal/locator"
	"github.com/project-kessel/oidcforge/internal/options"
)

// HandlerRegistry adds and removes handler descriptors
type HandlerRegistry interface {
	AddHandler(d handler.Descriptor) error
	RemoveHandler(d handler.Descriptor) error
}

// Option configures a builder
type Option func(*settings)

type settings struct {
	observer     Observer
	clock        clockwork.Clock
	certificates credentials.CertificateSource
}

// WithObserver sets the observer notified of configuration events
func WithObserver(o Observer) Option {
	return func(s *settings) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithClock sets the clock used for certificate validity checks. It is also
// registered in the locator for the built-in handlers unless one is present.
func WithClock(clk clockwork.Clock) Option {
	return func(s *settings) {
		if clk != nil {
			s.clock = clk
		}
	}
}

// WithCertificateSource sets the source used by the stream and store
// certificate setters
func WithCertificateSource(source credentials.CertificateSource) Option {
	return func(s *settings) {
		if source != nil {
			s.certificates = source
		}
	}
}

func newSettings(opts []Option) settings {
	s := settings{
		observer: NoOpObserver{},
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.certificates == nil {
		s.certificates = credentials.NewDirectoryCertificateSource(credentials.DirectoryCertificateSourceConfig{})
	}
	return s
}

// registry is the add/remove/configure core shared by the builders
type registry[O any] struct {
	component string
	container *locator.Container
	settings  settings

	newOptions func() *O
	lists      func(*O) *options.HandlerLists
	defaults   []handler.Descriptor
	mutators   []func(*O)
}

func newRegistry[O any](
	component string,
	container *locator.Container,
	s settings,
	newOptions func() *O,
	lists func(*O) *options.HandlerLists,
	defaults []handler.Descriptor,
) (*registry[O], error) {
	if container == nil {
		return nil, fault.Argument("container", "must not be nil")
	}

	r := &registry[O]{
		component:  component,
		container:  container,
		settings:   s,
		newOptions: newOptions,
		lists:      lists,
		defaults:   defaults,
	}

	for _, d := range defaults {
		if err := d.Register(container); err != nil {
			return nil, err
		}
	}

	if err := locator.Provide(container, locator.Singleton, func(locator.Resolver) (*O, error) {
		return r.Options(), nil
	}); err != nil {
		return nil, err
	}

	if !locator.IsProvided[clockwork.Clock](container) {
		if err := locator.Instance(container, s.clock); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Container returns the locator the builder registers services with
func (r *registry[O]) Container() *locator.Container {
	return r.container
}

// AddHandler registers the descriptor's backing service at its lifetime and
// appends the descriptor to the custom handlers.
func (r *registry[O]) AddHandler(d handler.Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if err := d.Register(r.container); err != nil {
		return err
	}

	r.mutators = append(r.mutators, func(o *O) {
		lists := r.lists(o)
		lists.CustomHandlers = append(lists.CustomHandlers, d)
	})
	r.settings.observer.HandlerAdded(r.component, d)
	return nil
}

// RemoveHandler unregisters every service registered for the descriptor's
// service type and removes the matching entries from both handler lists.
// Removing a handler that was never added is a no-op on the lists.
func (r *registry[O]) RemoveHandler(d handler.Descriptor) error {
	if d.ServiceType == nil {
		return fault.Argument("descriptor.ServiceType", "must not be nil")
	}

	serviceType := d.ServiceType
	unregistered := r.container.UnregisterAll(serviceType)
	r.mutators = append(r.mutators, func(o *O) {
		r.lists(o).Remove(serviceType)
	})
	r.settings.observer.HandlerRemoved(r.component, serviceType, unregistered)
	return nil
}

// Configure queues a mutator applied to the options at materialization.
// Mutators run in the order they were queued.
func (r *registry[O]) Configure(mutator func(o *O)) error {
	if mutator == nil {
		return fault.Argument("configuration", "must not be nil")
	}
	r.mutators = append(r.mutators, mutator)
	return nil
}

// Options materializes fresh options: library defaults, default handlers,
// then every queued mutator.
func (r *registry[O]) Options() *O {
	o := r.newOptions()
	lists := r.lists(o)
	lists.DefaultHandlers = append([]handler.Descriptor(nil), r.defaults...)

	for _, mutate := range r.mutators {
		mutate(o)
	}

	lists = r.lists(o)
	r.settings.observer.OptionsMaterialized(r.component, len(lists.CustomHandlers), len(lists.DefaultHandlers))
	return o
}

// AddHandlerFunc builds a descriptor for context C with configure and adds it to b
func AddHandlerFunc[C any](b HandlerRegistry, configure func(*handler.DescriptorBuilder[C])) error {
	if b == nil {
		return fault.Argument("builder", "must not be nil")
	}
	if configure == nil {
		return fault.Argument("configuration", "must not be nil")
	}

	db := handler.NewDescriptorBuilder[C]()
	configure(db)
	d, err := db.Build()
	if err != nil {
		return err
	}
	return b.AddHandler(d)
}
