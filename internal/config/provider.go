package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jonboulle/clockwork"

	"github.com/project-kessel/oidcforge/internal/builder"
	"github.com/project-kessel/oidcforge/internal/credentials"
	"github.com/project-kessel/oidcforge/internal/fs"
	"github.com/project-kessel/oidcforge/internal/locator"
	"github.com/project-kessel/oidcforge/internal/options"
	"github.com/project-kessel/oidcforge/internal/probe"
	"github.com/project-kessel/oidcforge/internal/store"
	"github.com/project-kessel/oidcforge/internal/store/sqlstore"
)

// Provider constructs all application components from configuration
// This is the main entry point for building a configured oidcforge instance
type Provider struct {
	config *Config

	// Injected collaborators; defaults are derived from config when unset
	observer   probe.Observer
	clock      clockwork.Clock
	filesystem fs.FileSystem

	// Lazily constructed components (cached after first call)
	container         *locator.Container
	certificates      credentials.CertificateSource
	serverBuilder     *builder.ServerBuilder
	validationBuilder *builder.ValidationBuilder

	// A builder that failed after registering into the container is not
	// rebuilt; its error is returned again.
	serverErr     error
	validationErr error
	backend           store.Backend
	database          *sqlstore.Database
	resolvers         *store.Resolvers
}

// NewProvider creates a new provider from configuration
func NewProvider(config *Config) *Provider {
	return &Provider{
		config: config,
	}
}

// SetObserver sets the observer for all components built by this provider.
// Must be called before any builder or store is requested.
func (p *Provider) SetObserver(observer probe.Observer) {
	p.observer = observer
}

// SetClock sets the clock used for certificate checks, handler lifetimes and
// SQL timestamps
func (p *Provider) SetClock(clock clockwork.Clock) {
	p.clock = clock
}

// SetFileSystem sets the filesystem used for certificate files and stores
func (p *Provider) SetFileSystem(filesystem fs.FileSystem) {
	p.filesystem = filesystem
}

// Observer returns the configured observer.
// If SetObserver was called, returns that observer.
// Otherwise, creates a default observer logging to stderr.
func (p *Provider) Observer() (probe.Observer, error) {
	if p.observer != nil {
		return p.observer, nil
	}

	observer, err := NewObserver(p.config.Observability, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to create observer: %w", err)
	}

	p.observer = observer
	return observer, nil
}

// Clock returns the configured clock
func (p *Provider) Clock() clockwork.Clock {
	if p.clock == nil {
		p.clock = clockwork.NewRealClock()
	}
	return p.clock
}

// FileSystem returns the configured filesystem
func (p *Provider) FileSystem() fs.FileSystem {
	if p.filesystem == nil {
		p.filesystem = fs.NewOSFileSystem()
	}
	return p.filesystem
}

// Container returns the locator shared by every component
func (p *Provider) Container() *locator.Container {
	if p.container == nil {
		p.container = locator.New()
	}
	return p.container
}

// CertificateSource returns the directory-backed certificate source
func (p *Provider) CertificateSource() credentials.CertificateSource {
	if p.certificates == nil {
		p.certificates = credentials.NewDirectoryCertificateSource(credentials.DirectoryCertificateSourceConfig{
			Root:       p.config.Certificates.Root,
			FileSystem: p.FileSystem(),
		})
	}
	return p.certificates
}

func (p *Provider) builderOptions() ([]builder.Option, error) {
	observer, err := p.Observer()
	if err != nil {
		return nil, err
	}
	return []builder.Option{
		builder.WithObserver(observer),
		builder.WithClock(p.Clock()),
		builder.WithCertificateSource(p.CertificateSource()),
	}, nil
}

func (p *Provider) sources() sources {
	return sources{files: p.FileSystem(), clock: p.Clock()}
}

// ServerBuilder returns the server builder configured from the server section.
// A failed configuration leaves its registrations in the container, so the
// same error is returned on every later call.
func (p *Provider) ServerBuilder() (*builder.ServerBuilder, error) {
	if p.serverBuilder != nil {
		return p.serverBuilder, nil
	}
	if p.serverErr != nil {
		return nil, p.serverErr
	}

	opts, err := p.builderOptions()
	if err != nil {
		return nil, err
	}
	b, err := builder.NewServerBuilder(p.Container(), opts...)
	if err != nil {
		p.serverErr = fmt.Errorf("failed to create server builder: %w", err)
		return nil, p.serverErr
	}
	if err := configureServer(b, p.config.Server, p.sources()); err != nil {
		p.serverErr = fmt.Errorf("invalid server configuration: %w", err)
		return nil, p.serverErr
	}

	p.serverBuilder = b
	return b, nil
}

// ValidationBuilder returns the validation builder configured from the validation
// section. Failures are sticky like ServerBuilder's.
func (p *Provider) ValidationBuilder() (*builder.ValidationBuilder, error) {
	if p.validationBuilder != nil {
		return p.validationBuilder, nil
	}
	if p.validationErr != nil {
		return nil, p.validationErr
	}

	opts, err := p.builderOptions()
	if err != nil {
		return nil, err
	}
	b, err := builder.NewValidationBuilder(p.Container(), opts...)
	if err != nil {
		p.validationErr = fmt.Errorf("failed to create validation builder: %w", err)
		return nil, p.validationErr
	}
	if err := configureValidation(b, p.config.Validation, p.sources()); err != nil {
		p.validationErr = fmt.Errorf("invalid validation configuration: %w", err)
		return nil, p.validationErr
	}

	p.validationBuilder = b
	return b, nil
}

// ServerOptions returns the frozen server options registered in the locator
func (p *Provider) ServerOptions() (*options.ServerOptions, error) {
	if _, err := p.ServerBuilder(); err != nil {
		return nil, err
	}
	return locator.Get[*options.ServerOptions](p.Container())
}

// ValidationOptions returns the frozen validation options registered in the locator
func (p *Provider) ValidationOptions() (*options.ValidationOptions, error) {
	if _, err := p.ValidationBuilder(); err != nil {
		return nil, err
	}
	return locator.Get[*options.ValidationOptions](p.Container())
}

// StoreBackend returns the configured persistence backend, registering its
// context in the locator
func (p *Provider) StoreBackend(ctx context.Context) (store.Backend, error) {
	if p.backend != nil {
		return p.backend, nil
	}

	backend, database, err := newBackend(ctx, p.config.Store, p.Container(), p.Clock())
	if err != nil {
		return nil, fmt.Errorf("failed to create store backend: %w", err)
	}

	p.backend = backend
	p.database = database
	return backend, nil
}

// SQLDatabase returns the database of a SQL backend
func (p *Provider) SQLDatabase(ctx context.Context) (*sqlstore.Database, error) {
	if _, err := p.StoreBackend(ctx); err != nil {
		return nil, err
	}
	if p.database == nil {
		return nil, fmt.Errorf("store backend %q is not a SQL backend", p.config.Store.Backend)
	}
	return p.database, nil
}

// StoreResolvers returns the four entity family resolvers
func (p *Provider) StoreResolvers(ctx context.Context) (*store.Resolvers, error) {
	if p.resolvers != nil {
		return p.resolvers, nil
	}

	backend, err := p.StoreBackend(ctx)
	if err != nil {
		return nil, err
	}
	observer, err := p.Observer()
	if err != nil {
		return nil, err
	}
	resolvers, err := store.NewResolvers(backend, p.Container(), observer)
	if err != nil {
		return nil, fmt.Errorf("failed to create store resolvers: %w", err)
	}

	p.resolvers = resolvers
	return resolvers, nil
}

// Close releases the SQL database, if any
func (p *Provider) Close() error {
	if p.database == nil {
		return nil
	}
	err := p.database.Close()
	p.database = nil
	return err
}

// Logger is a convenience for building the logger of the observability section
func (p *Provider) Logger() *slog.Logger {
	return NewLogger(p.config.Observability, os.Stderr)
}
