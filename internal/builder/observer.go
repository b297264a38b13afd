package builder

import (
	"reflect"

	"github.com/project-kessel/oidcforge/internal/handler"
)

// Observer receives configuration events from the builders.
// component is "server" or "validation".
type Observer interface {
	// HandlerAdded is called after a handler is registered and queued
	HandlerAdded(component string, d handler.Descriptor)

	// HandlerRemoved is called after the registrations of serviceType are
	// dropped; unregistered counts the removed locator registrations.
	HandlerRemoved(component string, serviceType reflect.Type, unregistered int)

	// CredentialAdded is called when a signing or encryption credential is queued
	CredentialAdded(component string, usage string, keyID string, algorithm string)

	// OptionsMaterialized is called every time options are built
	OptionsMaterialized(component string, customHandlers int, defaultHandlers int)
}

// NoOpObserver ignores every event
type NoOpObserver struct{}

var _ Observer = NoOpObserver{}

func (NoOpObserver) HandlerAdded(string, handler.Descriptor)        {}
func (NoOpObserver) HandlerRemoved(string, reflect.Type, int)       {}
func (NoOpObserver) CredentialAdded(string, string, string, string) {}
func (NoOpObserver) OptionsMaterialized(string, int, int)           {}
