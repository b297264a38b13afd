package store_test

import (
	"context"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-kessel/oidcforge/internal/fault"
	"github.com/project-kessel/oidcforge/internal/locator"
	"github.com/project-kessel/oidcforge/internal/store"
	"github.com/project-kessel/oidcforge/internal/store/memorystore"
)

// customApplication extends the built-in application entity
type customApplication struct {
	store.Application
	Tenant string `json:"tenant"`
}

// nestedApplication derives from customApplication
type nestedApplication struct {
	customApplication
	Tier int `json:"tier"`
}

// pointerApplication embeds the base entity by pointer
type pointerApplication struct {
	*store.Application
}

type unrelated struct {
	ID string
}

// typed exposes the resolved store type of a backend store
type typed interface {
	Type() store.StoreType
}

// fakeObserver records probe events in order
type fakeObserver struct {
	mu     sync.Mutex
	events []string
}

func (o *fakeObserver) ResolutionStarted(kind store.Kind, entity reflect.Type) store.ResolutionProbe {
	o.record("started:" + string(kind))
	return &fakeProbe{observer: o}
}

func (o *fakeObserver) record(event string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
}

func (o *fakeObserver) take() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	events := o.events
	o.events = nil
	return events
}

type fakeProbe struct {
	observer *fakeObserver
}

func (p *fakeProbe) OverrideUsed()                   { p.observer.record("override") }
func (p *fakeProbe) IncompatibleEntity(reflect.Type) { p.observer.record("incompatible") }
func (p *fakeProbe) ContextMissing(string)           { p.observer.record("context_missing") }
func (p *fakeProbe) CacheHit(store.StoreType)        { p.observer.record("cache_hit") }
func (p *fakeProbe) CacheMiss(store.StoreType)       { p.observer.record("cache_miss") }
func (p *fakeProbe) Resolved(store.StoreType)        { p.observer.record("resolved") }
func (p *fakeProbe) Failed(error)                    { p.observer.record("failed") }
func (p *fakeProbe) End()                            { p.observer.record("end") }

type fixture struct {
	container *locator.Container
	backend   *memorystore.Backend
	observer  *fakeObserver
	resolver  *store.Resolver
}

func newFixture(t *testing.T, configureContext bool) *fixture {
	t.Helper()
	f := &fixture{
		container: locator.New(),
		backend:   memorystore.New(memorystore.Options{}),
		observer:  &fakeObserver{},
	}
	require.NoError(t, locator.Instance(f.container, memorystore.NewDatabase()))
	if configureContext {
		memorystore.UseContext[*memorystore.Database](f.backend)
	}

	r, err := store.NewResolver(store.ResolverConfig{
		Kind:     store.KindApplication,
		Backend:  f.backend,
		Locator:  f.container,
		Observer: f.observer,
	})
	require.NoError(t, err)
	f.resolver = r
	return f
}

func TestGet_BaseEntity(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	s, err := store.Get[store.Application](f.resolver)
	require.NoError(t, err)
	assert.Equal(t, []string{"started:application", "cache_miss", "resolved", "end"}, f.observer.take())

	app := &store.Application{ClientID: "console"}
	require.NoError(t, s.Create(ctx, app))
	assert.NotEmpty(t, app.ID)

	found, err := s.FindByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, "console", found.ClientID)

	found.DisplayName = "Console"
	require.NoError(t, s.Update(ctx, found))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, s.Delete(ctx, app.ID))
	_, err = s.FindByID(ctx, app.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.ErrorIs(t, s.Delete(ctx, app.ID), store.ErrNotFound)
	require.ErrorIs(t, s.Update(ctx, found), store.ErrNotFound)
}

func TestGet_DerivedEntity(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	s, err := store.Get[nestedApplication](f.resolver)
	require.NoError(t, err)

	app := &nestedApplication{Tier: 2}
	app.ClientID = "billing"
	app.Tenant = "acme"
	require.NoError(t, s.Create(ctx, app))
	require.ErrorIs(t, s.Create(ctx, app), store.ErrConflict)

	found, err := s.FindByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, "billing", found.ClientID)
	assert.Equal(t, "acme", found.Tenant)
	assert.Equal(t, 2, found.Tier)

	// Derived and base stores of one family share the same partition
	base, err := store.Get[store.Application](f.resolver)
	require.NoError(t, err)
	plain, err := base.FindByID(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, "billing", plain.ClientID)
}

func TestGet_IncompatibleEntity(t *testing.T) {
	for _, configured := range []bool{true, false} {
		f := newFixture(t, configured)

		_, err := store.Get[unrelated](f.resolver)
		require.ErrorIs(t, err, fault.ErrConfiguration)
		assert.Contains(t, err.Error(), "store.Application")
		assert.Equal(t, []string{"started:application", "incompatible", "failed", "end"}, f.observer.take())

		_, err = store.Get[pointerApplication](f.resolver)
		require.ErrorIs(t, err, fault.ErrConfiguration)

		_, err = store.Get[store.Token](f.resolver)
		require.ErrorIs(t, err, fault.ErrConfiguration)

		_, ok := f.resolver.CachedType(reflect.TypeFor[unrelated]())
		assert.False(t, ok)
	}
}

func TestGet_MissingContext(t *testing.T) {
	f := newFixture(t, false)

	_, err := store.Get[customApplication](f.resolver)
	require.ErrorIs(t, err, fault.ErrConfiguration)
	assert.Contains(t, err.Error(), "memorystore.UseContext")
	assert.Equal(t, []string{"started:application", "context_missing", "failed", "end"}, f.observer.take())

	// Fixing the configuration is picked up by the same resolver
	memorystore.UseContext[*memorystore.Database](f.backend)
	_, err = store.Get[customApplication](f.resolver)
	require.NoError(t, err)
}

func TestGet_ContextNotRegistered(t *testing.T) {
	f := newFixture(t, true)
	f.container.UnregisterAll(reflect.TypeFor[*memorystore.Database]())

	_, err := store.Get[store.Application](f.resolver)
	require.ErrorIs(t, err, fault.ErrConfiguration)
	require.ErrorIs(t, err, locator.ErrNotRegistered)
}

func TestGet_Override(t *testing.T) {
	f := newFixture(t, false)
	override := &recordingStore{}

	require.NoError(t, store.Override[unrelated](f.container, override))

	s, err := store.Get[unrelated](f.resolver)
	require.NoError(t, err)
	assert.Same(t, override, s)
	assert.Equal(t, []string{"started:application", "override", "end"}, f.observer.take())

	require.ErrorIs(t, store.Override[unrelated](f.container, nil), fault.ErrArgument)
}

func TestGet_CacheStability(t *testing.T) {
	f := newFixture(t, true)
	entity := reflect.TypeFor[customApplication]()

	const callers = 32
	types := make([]store.StoreType, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := store.Get[customApplication](f.resolver)
			if assert.NoError(t, err) {
				types[i] = s.(typed).Type()
			}
		}()
	}
	wg.Wait()

	cached, ok := f.resolver.CachedType(entity)
	require.True(t, ok)
	for _, st := range types {
		assert.Equal(t, cached, st)
	}
	assert.Equal(t, store.StoreType{
		Kind:    store.KindApplication,
		Backend: "memorystore",
		Entity:  entity,
		Context: reflect.TypeFor[*memorystore.Database](),
		Key:     store.StringKey,
	}, cached)

	f.observer.take()
	_, err := store.Get[customApplication](f.resolver)
	require.NoError(t, err)
	assert.Equal(t, []string{"started:application", "cache_hit", "resolved", "end"}, f.observer.take())
}

func TestGet_ScopedContext(t *testing.T) {
	c := locator.New()
	require.NoError(t, locator.Provide(c, locator.Scoped, func(locator.Resolver) (*memorystore.Database, error) {
		return memorystore.NewDatabase(), nil
	}))
	backend := memorystore.New(memorystore.Options{})
	memorystore.UseContext[*memorystore.Database](backend)

	resolvers, err := store.NewResolvers(backend, c, nil)
	require.NoError(t, err)

	_, err = store.Get[store.Scope](resolvers.Scopes)
	require.ErrorIs(t, err, locator.ErrScopeRequired)

	ctx := context.Background()
	scoped := resolvers.Using(c.NewScope())
	s, err := store.Get[store.Scope](scoped.Scopes)
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, &store.Scope{Name: "api"}))

	// Same scope, same database
	again, err := store.Get[store.Scope](scoped.Scopes)
	require.NoError(t, err)
	count, err := again.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Another scope starts empty
	other, err := store.Get[store.Scope](resolvers.Using(c.NewScope()).Scopes)
	require.NoError(t, err)
	count, err = other.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	// The cache is shared with the root resolver
	_, ok := resolvers.Scopes.CachedType(reflect.TypeFor[store.Scope]())
	assert.True(t, ok)
}

func TestGet_UUIDKeys(t *testing.T) {
	c := locator.New()
	require.NoError(t, locator.Instance(c, memorystore.NewDatabase()))
	backend := memorystore.New(memorystore.Options{KeyType: store.UUIDKey})
	memorystore.UseContext[*memorystore.Database](backend)

	r, err := store.NewResolver(store.ResolverConfig{Kind: store.KindToken, Backend: backend, Locator: c})
	require.NoError(t, err)

	s, err := store.Get[store.Token](r)
	require.NoError(t, err)

	ctx := context.Background()
	token := &store.Token{Subject: "alice"}
	require.NoError(t, s.Create(ctx, token))
	_, err = uuid.Parse(token.ID)
	require.NoError(t, err)

	err = s.Create(ctx, &store.Token{ID: "not-a-uuid"})
	require.ErrorIs(t, err, fault.ErrArgument)
}

func TestStore_List(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	s, err := store.Get[store.Application](f.resolver)
	require.NoError(t, err)

	for _, id := range []string{"c", "a", "d", "b"} {
		require.NoError(t, s.Create(ctx, &store.Application{ID: id, ClientID: strings.ToUpper(id)}))
	}

	all, err := s.List(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "a", all[0].ID)

	page, err := s.List(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "b", page[0].ID)
	assert.Equal(t, "C", page[1].ClientID)

	empty, err := s.List(ctx, 10, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = s.List(ctx, 1, -1)
	require.ErrorIs(t, err, fault.ErrArgument)
}

func TestStore_ArgumentValidation(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	s, err := store.Get[store.Application](f.resolver)
	require.NoError(t, err)

	require.ErrorIs(t, s.Create(ctx, nil), fault.ErrArgument)
	require.ErrorIs(t, s.Update(ctx, &store.Application{}), fault.ErrArgument)
	_, err = s.FindByID(ctx, "")
	require.ErrorIs(t, err, fault.ErrArgument)
	require.ErrorIs(t, s.Delete(ctx, ""), fault.ErrArgument)
}

func TestNewResolver_Validation(t *testing.T) {
	backend := memorystore.New(memorystore.Options{})

	_, err := store.NewResolver(store.ResolverConfig{Kind: store.KindScope, Locator: locator.New()})
	require.ErrorIs(t, err, fault.ErrArgument)

	_, err = store.NewResolver(store.ResolverConfig{Kind: store.KindScope, Backend: backend})
	require.ErrorIs(t, err, fault.ErrArgument)

	_, err = store.NewResolver(store.ResolverConfig{Kind: "device", Backend: backend, Locator: locator.New()})
	require.ErrorIs(t, err, fault.ErrArgument)
}

// recordingStore is a caller-provided store for an arbitrary type
type recordingStore struct {
	created []*unrelated
}

func (s *recordingStore) Count(context.Context) (int64, error) {
	return int64(len(s.created)), nil
}

func (s *recordingStore) Create(_ context.Context, e *unrelated) error {
	s.created = append(s.created, e)
	return nil
}

func (s *recordingStore) FindByID(context.Context, string) (*unrelated, error) {
	return nil, store.ErrNotFound
}

func (s *recordingStore) List(context.Context, int, int) ([]*unrelated, error) {
	return s.created, nil
}

func (s *recordingStore) Update(context.Context, *unrelated) error { return nil }

func (s *recordingStore) Delete(context.Context, string) error { return nil }
