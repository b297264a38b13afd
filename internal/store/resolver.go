package store

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/project-kessel/oidcforge/internal/fault"
	"github.com/project-kessel/oidcforge/internal/locator"
)

// Resolver resolves stores of one entity family against one backend
type Resolver struct {
	kind     Kind
	backend  Backend
	locator  locator.Resolver
	observer Observer

	// reflect.Type -> StoreType, shared with the resolvers created by Using
	cache *sync.Map
}

// ResolverConfig configures a Resolver
type ResolverConfig struct {
	Kind    Kind
	Backend Backend

	// Locator materializes overrides and backend contexts
	Locator locator.Resolver

	// Observer is optional; defaults to NoOpObserver
	Observer Observer
}

// NewResolver creates a resolver with an empty cache
func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	if cfg.Backend == nil {
		return nil, fault.Argument("backend", "must not be nil")
	}
	if cfg.Locator == nil {
		return nil, fault.Argument("locator", "must not be nil")
	}
	if cfg.Backend.BaseEntity(cfg.Kind) == nil {
		return nil, fault.Argumentf("kind", "backend %s has no %s entity", cfg.Backend.Name(), cfg.Kind)
	}

	observer := cfg.Observer
	if observer == nil {
		observer = NoOpObserver{}
	}

	return &Resolver{
		kind:     cfg.Kind,
		backend:  cfg.Backend,
		locator:  cfg.Locator,
		observer: observer,
		cache:    &sync.Map{},
	}, nil
}

// Kind returns the entity family of the resolver
func (r *Resolver) Kind() Kind {
	return r.kind
}

// Using returns a resolver sharing this resolver's cache that materializes
// stores through l, typically a per-operation scope.
func (r *Resolver) Using(l locator.Resolver) *Resolver {
	c := *r
	c.locator = l
	return &c
}

// CachedType returns the cached store type for entity, if any
func (r *Resolver) CachedType(entity reflect.Type) (StoreType, bool) {
	v, ok := r.cache.Load(entity)
	if !ok {
		return StoreType{}, false
	}
	return v.(StoreType), true
}

// Get returns the store for T: a store registered in the locator for T when
// present, otherwise the backend's store for T. T must be the backend's
// base entity of the resolver's family or a struct embedding it.
func Get[T any](r *Resolver) (Store[T], error) {
	entity := reflect.TypeFor[T]()
	probe := r.observer.ResolutionStarted(r.kind, entity)
	defer probe.End()

	s, err := get[T](r, entity, probe)
	if err != nil {
		probe.Failed(err)
		return nil, err
	}
	return s, nil
}

func get[T any](r *Resolver, entity reflect.Type, probe ResolutionProbe) (Store[T], error) {
	override, ok, err := locator.Lookup[Store[T]](r.locator)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve the store registered for %s: %w", entity, err)
	}
	if ok {
		probe.OverrideUsed()
		return override, nil
	}

	base := r.backend.BaseEntity(r.kind)
	if !Compatible(entity, base) {
		probe.IncompatibleEntity(base)
		return nil, fault.Configuration(
			"the specified %s type %s is not compatible with the %s stores; "+
				"use the built-in %s entity or a custom struct embedding it",
			r.kind, entity, r.backend.Name(), base)
	}
	if _, ok := any(new(T)).(Entity); !ok {
		probe.IncompatibleEntity(base)
		return nil, fault.Configuration(
			"the %s type %s does not expose a single identifier; make sure it embeds %s only once",
			r.kind, entity, base)
	}

	contextType := r.backend.ContextType()
	if contextType == nil {
		requirement := r.backend.ContextRequirement()
		probe.ContextMissing(requirement)
		return nil, fault.Configuration(
			"no context was configured for the %s stores; call %s to register the context type",
			r.backend.Name(), requirement)
	}

	st, err := r.resolveType(entity, contextType, probe)
	if err != nil {
		return nil, err
	}

	ctx, err := r.locator.ResolveRequired(st.Context)
	if err != nil {
		return nil, fault.WrapConfiguration(err,
			"the %s context %s could not be resolved; register it in the locator", st.Backend, st.Context)
	}
	docs, err := r.backend.Open(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", st, err)
	}

	probe.Resolved(st)
	return &documentStore[T]{docs: docs, storeType: st}, nil
}

// resolveType consults the cache; on a miss it computes the store type and
// stores it. Racing callers compute identical values, so the last write wins.
func (r *Resolver) resolveType(entity, contextType reflect.Type, probe ResolutionProbe) (StoreType, error) {
	if st, ok := r.CachedType(entity); ok {
		probe.CacheHit(st)
		return st, nil
	}

	keyType := r.backend.KeyType()
	if keyType == nil {
		keyType = StringKey
	}
	if _, err := NewID(keyType); err != nil {
		return StoreType{}, fault.WrapConfiguration(err, "the %s key type is not supported", r.backend.Name())
	}

	st := StoreType{
		Kind:    r.kind,
		Backend: r.backend.Name(),
		Entity:  entity,
		Context: contextType,
		Key:     keyType,
	}
	r.cache.Store(entity, st)
	probe.CacheMiss(st)
	return st, nil
}

// Resolvers holds one resolver per entity family for a backend
type Resolvers struct {
	Applications   *Resolver
	Authorizations *Resolver
	Scopes         *Resolver
	Tokens         *Resolver
}

// NewResolvers creates the four family resolvers of backend
func NewResolvers(backend Backend, l locator.Resolver, observer Observer) (*Resolvers, error) {
	resolvers := make(map[Kind]*Resolver, 4)
	for _, kind := range Kinds() {
		r, err := NewResolver(ResolverConfig{Kind: kind, Backend: backend, Locator: l, Observer: observer})
		if err != nil {
			return nil, err
		}
		resolvers[kind] = r
	}
	return &Resolvers{
		Applications:   resolvers[KindApplication],
		Authorizations: resolvers[KindAuthorization],
		Scopes:         resolvers[KindScope],
		Tokens:         resolvers[KindToken],
	}, nil
}

// Using returns resolvers sharing these caches that materialize through l
func (r *Resolvers) Using(l locator.Resolver) *Resolvers {
	return &Resolvers{
		Applications:   r.Applications.Using(l),
		Authorizations: r.Authorizations.Using(l),
		Scopes:         r.Scopes.Using(l),
		Tokens:         r.Tokens.Using(l),
	}
}
