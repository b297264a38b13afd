package probe

import (
	"context"
	"log/slog"
	"reflect"

	"github.com/project-kessel/oidcforge/internal/builder"
	"github.com/project-kessel/oidcforge/internal/handler"
	"github.com/project-kessel/oidcforge/internal/store"
)

// Observer is the combined builder and store observer
type Observer interface {
	builder.Observer
	store.Observer
}

// loggingObserver logs configuration and store resolution events
type loggingObserver struct {
	logger *slog.Logger
}

// LoggingObserverConfig configures the logging observer
type LoggingObserverConfig struct {
	// Logger is the base logger to use. If nil, uses slog.Default()
	Logger *slog.Logger
}

// NewLoggingObserver creates an observer that logs all observability events
// using structured logging with slog.
func NewLoggingObserver(logger *slog.Logger) Observer {
	return NewLoggingObserverWithConfig(LoggingObserverConfig{
		Logger: logger,
	})
}

// NewLoggingObserverWithConfig creates a logging observer with custom configuration
func NewLoggingObserverWithConfig(cfg LoggingObserverConfig) Observer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &loggingObserver{
		logger: logger,
	}
}

func (o *loggingObserver) registry(component string) *slog.Logger {
	return o.logger.With("event", "handler_registry", "component", component)
}

func (o *loggingObserver) HandlerAdded(component string, d handler.Descriptor) {
	o.registry(component).LogAttrs(context.Background(), slog.LevelDebug,
		"Handler added",
		slog.String("service_type", typeName(d.ServiceType)),
		slog.String("context_type", typeName(d.ContextType)),
		slog.String("lifetime", d.Lifetime.String()),
		slog.Int("order", d.Order),
		slog.Int("filters", len(d.Filters)),
	)
}

func (o *loggingObserver) HandlerRemoved(component string, serviceType reflect.Type, unregistered int) {
	o.registry(component).LogAttrs(context.Background(), slog.LevelDebug,
		"Handler removed",
		slog.String("service_type", typeName(serviceType)),
		slog.Int("unregistered", unregistered),
	)
}

func (o *loggingObserver) CredentialAdded(component, usage, keyID, algorithm string) {
	o.registry(component).LogAttrs(context.Background(), slog.LevelInfo,
		"Credential added",
		slog.String("usage", usage),
		slog.String("kid", keyID),
		slog.String("alg", algorithm),
	)
}

func (o *loggingObserver) OptionsMaterialized(component string, customHandlers, defaultHandlers int) {
	o.registry(component).LogAttrs(context.Background(), slog.LevelDebug,
		"Options materialized",
		slog.Int("custom_handlers", customHandlers),
		slog.Int("default_handlers", defaultHandlers),
	)
}

// ResolutionStarted implements store.Observer
func (o *loggingObserver) ResolutionStarted(kind store.Kind, entity reflect.Type) store.ResolutionProbe {
	probeLogger := o.logger.With("event", "store_resolution")

	probeLogger.LogAttrs(context.Background(), slog.LevelDebug,
		"Resolving store",
		slog.String("kind", string(kind)),
		slog.String("entity", typeName(entity)),
	)

	return &loggingResolutionProbe{
		logger: probeLogger,
		kind:   kind,
		entity: entity,
	}
}

// loggingResolutionProbe logs the events of a single store resolution
type loggingResolutionProbe struct {
	store.NoOpResolutionProbe
	logger *slog.Logger
	kind   store.Kind
	entity reflect.Type
}

func (p *loggingResolutionProbe) log(level slog.Level, msg string, attrs ...slog.Attr) {
	attrs = append(attrs,
		slog.String("kind", string(p.kind)),
		slog.String("entity", typeName(p.entity)),
	)
	p.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

func (p *loggingResolutionProbe) OverrideUsed() {
	p.log(slog.LevelDebug, "Using registered store override")
}

func (p *loggingResolutionProbe) IncompatibleEntity(base reflect.Type) {
	p.log(slog.LevelError, "Entity type is not compatible with the backend",
		slog.String("base_entity", typeName(base)),
	)
}

func (p *loggingResolutionProbe) ContextMissing(requirement string) {
	p.log(slog.LevelError, "Store context is not configured",
		slog.String("requirement", requirement),
	)
}

func (p *loggingResolutionProbe) CacheMiss(st store.StoreType) {
	p.log(slog.LevelDebug, "Store type resolved",
		slog.String("store_type", st.String()),
	)
}

func (p *loggingResolutionProbe) Failed(err error) {
	p.log(slog.LevelError, "Store resolution failed",
		slog.String("error", err.Error()),
	)
}

func typeName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	return t.String()
}
