package locator

import (
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greeter interface {
	Greet() string
}

type english struct{ id int }

func (e *english) Greet() string { return "hello" }

type counter struct{ n int }

func TestContainer_Singleton(t *testing.T) {
	c := New()
	var builds atomic.Int32
	require.NoError(t, Provide(c, Singleton, func(Resolver) (*counter, error) {
		builds.Add(1)
		return &counter{}, nil
	}))

	first, err := Get[*counter](c)
	require.NoError(t, err)
	second, err := Get[*counter](c.NewScope())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), builds.Load())
}

func TestContainer_SingletonConcurrentFirstUse(t *testing.T) {
	c := New()
	require.NoError(t, Provide(c, Singleton, func(Resolver) (*counter, error) {
		return &counter{}, nil
	}))

	const callers = 16
	results := make([]*counter, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := Get[*counter](c)
			assert.NoError(t, err)
			results[i] = v
		}()
	}
	wg.Wait()

	for _, v := range results {
		assert.Same(t, results[0], v)
	}
}

func TestContainer_Scoped(t *testing.T) {
	c := New()
	require.NoError(t, Provide(c, Scoped, func(Resolver) (*counter, error) {
		return &counter{}, nil
	}))

	t.Run("root resolution requires a scope", func(t *testing.T) {
		_, err := Get[*counter](c)
		require.ErrorIs(t, err, ErrScopeRequired)
	})

	t.Run("one instance per scope", func(t *testing.T) {
		scope := c.NewScope()
		a, err := Get[*counter](scope)
		require.NoError(t, err)
		b, err := Get[*counter](scope)
		require.NoError(t, err)
		assert.Same(t, a, b)

		other, err := Get[*counter](c.NewScope())
		require.NoError(t, err)
		assert.NotSame(t, a, other)
	})
}

func TestContainer_FactoryResolvesDependencies(t *testing.T) {
	c := New()
	require.NoError(t, Instance[greeter](c, &english{id: 1}))
	require.NoError(t, c.Register(reflect.TypeFor[string](), Scoped, func(r Resolver) (any, error) {
		g, err := Get[greeter](r)
		if err != nil {
			return nil, err
		}
		return g.Greet() + " world", nil
	}))

	v, err := Get[string](c.NewScope())
	require.NoError(t, err)
	assert.Equal(t, "hello world", v)
}

func TestContainer_LastRegistrationWins(t *testing.T) {
	c := New()
	require.NoError(t, Instance[greeter](c, &english{id: 1}))
	require.NoError(t, Instance[greeter](c, &english{id: 2}))

	g, err := Get[greeter](c)
	require.NoError(t, err)
	assert.Equal(t, 2, g.(*english).id)
	assert.Equal(t, 2, c.Registrations(reflect.TypeFor[greeter]()))
}

func TestContainer_UnregisterAll(t *testing.T) {
	c := New()
	typ := reflect.TypeFor[greeter]()
	require.NoError(t, Instance[greeter](c, &english{id: 1}))
	require.NoError(t, Instance[greeter](c, &english{id: 2}))

	assert.Equal(t, 2, c.UnregisterAll(typ))
	assert.False(t, c.IsRegistered(typ))
	assert.Equal(t, 0, c.UnregisterAll(typ))

	_, ok, err := Lookup[greeter](c)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.ResolveRequired(typ)
	require.ErrorIs(t, err, ErrNotRegistered)
}

func TestContainer_RegistrationValidation(t *testing.T) {
	c := New()
	typ := reflect.TypeFor[greeter]()

	assert.Error(t, c.Register(nil, Singleton, func(Resolver) (any, error) { return nil, nil }))
	assert.Error(t, c.Register(typ, Singleton, nil))
	assert.Error(t, c.Register(typ, Lifetime(7), func(Resolver) (any, error) { return nil, nil }))
	assert.Error(t, c.RegisterInstance(typ, nil))
	assert.Error(t, c.RegisterInstance(typ, &counter{}))
	assert.False(t, c.IsRegistered(typ))
}

func TestContainer_FactoryErrors(t *testing.T) {
	c := New()
	boom := errors.New("boom")
	require.NoError(t, c.Register(reflect.TypeFor[greeter](), Singleton, func(Resolver) (any, error) {
		return nil, boom
	}))
	require.NoError(t, c.Register(reflect.TypeFor[*counter](), Singleton, func(Resolver) (any, error) {
		return "not a counter", nil
	}))

	_, err := Get[greeter](c)
	require.ErrorIs(t, err, boom)

	_, err = Get[*counter](c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incompatible type")
}

func TestContainer_LifetimeOf(t *testing.T) {
	c := New()
	require.NoError(t, Provide(c, Scoped, func(Resolver) (*counter, error) { return &counter{}, nil }))

	lifetime, ok := c.LifetimeOf(reflect.TypeFor[*counter]())
	require.True(t, ok)
	assert.Equal(t, Scoped, lifetime)
	assert.Equal(t, "scoped", lifetime.String())

	_, ok = c.LifetimeOf(reflect.TypeFor[greeter]())
	assert.False(t, ok)
}
