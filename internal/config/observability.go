package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/project-kessel/oidcforge/internal/probe"
)

// Event names carried by the "event" attribute of observer logs
const (
	EventHandlerRegistry = "handler_registry"
	EventStoreResolution = "store_resolution"
)

// NewObserver creates an observer from configuration, logging to w.
// This is a convenience wrapper that creates its own logger from cfg.
func NewObserver(cfg *ObservabilityConfig, w io.Writer) (probe.Observer, error) {
	return NewObserverWithLogger(cfg, NewLogger(cfg, w))
}

// NewObserverWithLogger creates an observer using the provided logger.
// Use this when you want the observer to share a logger with other components.
func NewObserverWithLogger(cfg *ObservabilityConfig, logger *slog.Logger) (probe.Observer, error) {
	if cfg == nil {
		return probe.NoOpObserver{}, nil
	}

	switch cfg.Type {
	case "logging":
		return probe.NewLoggingObserverWithConfig(probe.LoggingObserverConfig{
			Logger: logger,
		}), nil
	case "noop", "":
		return probe.NoOpObserver{}, nil
	default:
		return nil, fmt.Errorf("unknown observability type: %s (supported: logging, noop)", cfg.Type)
	}
}

// NewLogger creates a structured logger writing to w from the observability
// configuration. Returns slog.Default() if cfg is nil.
func NewLogger(cfg *ObservabilityConfig, w io.Writer) *slog.Logger {
	if cfg == nil {
		return slog.Default()
	}

	defaultLevel := parseLogLevel(cfg.LogLevel)
	handler := createEventFilteringHandler(cfg, w, defaultLevel)
	return slog.New(handler)
}

// createEventFilteringHandler creates a handler that filters log events based on the event attribute
func createEventFilteringHandler(cfg *ObservabilityConfig, w io.Writer, defaultLevel slog.Level) slog.Handler {
	eventLevels := make(map[string]slog.Level)
	addEventLevel(eventLevels, EventHandlerRegistry, cfg.HandlerRegistry)
	addEventLevel(eventLevels, EventStoreResolution, cfg.StoreResolution)

	// The base handler admits everything the event overrides may lower the level to
	minLevel := defaultLevel
	for _, level := range eventLevels {
		minLevel = min(minLevel, level)
	}

	return &eventFilteringHandler{
		next:         createHandler(cfg.LogFormat, w, minLevel),
		eventLevels:  eventLevels,
		defaultLevel: defaultLevel,
		minLevel:     minLevel,
	}
}

func addEventLevel(levels map[string]slog.Level, event string, cfg *EventLoggingConfig) {
	if cfg == nil {
		return
	}
	if cfg.Enabled != nil && !*cfg.Enabled {
		levels[event] = slog.Level(1000) // Effectively disabled
	} else if cfg.LogLevel != "" {
		levels[event] = parseLogLevel(cfg.LogLevel)
	}
}

// eventFilteringHandler wraps a handler and filters based on the event attribute.
// The event attribute is usually attached with Logger.With, so it is tracked
// through WithAttrs as well as read from records.
type eventFilteringHandler struct {
	next         slog.Handler
	eventLevels  map[string]slog.Level
	defaultLevel slog.Level
	minLevel     slog.Level
	event        string
}

func (h *eventFilteringHandler) Enabled(_ context.Context, level slog.Level) bool {
	// Per-event thresholds are applied in Handle
	return level >= h.minLevel
}

func (h *eventFilteringHandler) Handle(ctx context.Context, record slog.Record) error {
	eventName := h.event
	record.Attrs(func(attr slog.Attr) bool {
		if attr.Key == "event" {
			eventName = attr.Value.String()
			return false
		}
		return true
	})

	threshold := h.defaultLevel
	if eventLevel, ok := h.eventLevels[eventName]; ok {
		threshold = eventLevel
	}
	if record.Level < threshold {
		return nil
	}

	return h.next.Handle(ctx, record)
}

func (h *eventFilteringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.next = h.next.WithAttrs(attrs)
	for _, attr := range attrs {
		if attr.Key == "event" {
			c.event = attr.Value.String()
		}
	}
	return &c
}

func (h *eventFilteringHandler) WithGroup(name string) slog.Handler {
	c := *h
	c.next = h.next.WithGroup(name)
	return &c
}

// createHandler creates a slog handler based on format and level
func createHandler(format string, w io.Writer, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	switch strings.ToLower(format) {
	case "text":
		return slog.NewTextHandler(w, opts)
	default:
		return slog.NewJSONHandler(w, opts)
	}
}

// parseLogLevel parses a log level string
func parseLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
