package config

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_EventLevels(t *testing.T) {
	disabled := false
	var buf bytes.Buffer
	logger := NewLogger(&ObservabilityConfig{
		LogLevel:        "warn",
		LogFormat:       "text",
		HandlerRegistry: &EventLoggingConfig{Enabled: &disabled},
		StoreResolution: &EventLoggingConfig{LogLevel: "debug"},
	}, &buf)

	logger.Info("plain info")
	logger.Warn("plain warn")
	logger.With("event", EventHandlerRegistry).Error("registry error")
	logger.With("event", EventStoreResolution).Debug("resolution debug")
	logger.Debug("store debug", "event", EventStoreResolution)

	out := buf.String()
	assert.NotContains(t, out, "plain info")
	assert.Contains(t, out, "plain warn")
	assert.NotContains(t, out, "registry error")
	assert.Contains(t, out, "resolution debug")
	assert.Contains(t, out, "store debug")
	assert.Equal(t, 3, strings.Count(out, "\n"))
}

func TestNewLogger_NilConfig(t *testing.T) {
	assert.Same(t, slog.Default(), NewLogger(nil, &bytes.Buffer{}))
}

func TestNewObserverWithLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := &ObservabilityConfig{Type: "logging", LogLevel: "debug"}

	o, err := NewObserver(cfg, &buf)
	require.NoError(t, err)
	o.OptionsMaterialized("server", 0, 4)
	assert.Contains(t, buf.String(), `"event":"handler_registry"`)

	o, err = NewObserverWithLogger(&ObservabilityConfig{Type: "noop"}, slog.Default())
	require.NoError(t, err)
	assert.NotNil(t, o)
}
