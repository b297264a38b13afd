package store

import "reflect"

// Observer creates probes for store resolutions
type Observer interface {
	// ResolutionStarted creates a probe scoped to one Get call
	ResolutionStarted(kind Kind, entity reflect.Type) ResolutionProbe
}

// ResolutionProbe observes a single resolution.
//
// The probe lifecycle:
//  1. Created by Observer.ResolutionStarted()
//  2. Events reported via the remaining methods
//  3. Terminated with End() - typically deferred
type ResolutionProbe interface {
	// OverrideUsed is called when a store registered for the entity is returned
	OverrideUsed()

	// IncompatibleEntity is called when the entity does not derive from base
	IncompatibleEntity(base reflect.Type)

	// ContextMissing is called when the backend has no context type
	ContextMissing(requirement string)

	// CacheHit is called when the store type was already resolved
	CacheHit(st StoreType)

	// CacheMiss is called when the store type was computed and cached
	CacheMiss(st StoreType)

	// Resolved is called when the store was materialized
	Resolved(st StoreType)

	// Failed is called for any resolution error
	Failed(err error)

	// End terminates the observation
	End()
}

// NoOpObserver creates probes ignoring every event
type NoOpObserver struct{}

var _ Observer = NoOpObserver{}

func (NoOpObserver) ResolutionStarted(Kind, reflect.Type) ResolutionProbe {
	return NoOpResolutionProbe{}
}

// NoOpResolutionProbe ignores every event
type NoOpResolutionProbe struct{}

var _ ResolutionProbe = NoOpResolutionProbe{}

func (NoOpResolutionProbe) OverrideUsed()                   {}
func (NoOpResolutionProbe) IncompatibleEntity(reflect.Type) {}
func (NoOpResolutionProbe) ContextMissing(string)           {}
func (NoOpResolutionProbe) CacheHit(StoreType)              {}
func (NoOpResolutionProbe) CacheMiss(StoreType)             {}
func (NoOpResolutionProbe) Resolved(StoreType)              {}
func (NoOpResolutionProbe) Failed(error)                    {}
func (NoOpResolutionProbe) End()                            {}
