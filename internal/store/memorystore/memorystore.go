// Package memorystore is an in-memory store backend
package memorystore

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/project-kessel/oidcforge/internal/store"
)

// Context gives the backend access to a Database
type Context interface {
	Database() *Database
}

// Database holds the documents of every family, partitioned by kind
type Database struct {
	mu         sync.RWMutex
	partitions map[store.Kind]map[string][]byte
}

var _ Context = (*Database)(nil)

// NewDatabase creates an empty database
func NewDatabase() *Database {
	return &Database{partitions: make(map[store.Kind]map[string][]byte)}
}

// Database implements Context
func (d *Database) Database() *Database {
	return d
}

// Options configures the backend
type Options struct {
	// ContextType is the type the locator resolves to reach the Database
	ContextType reflect.Type

	// KeyType is store.StringKey or store.UUIDKey; defaults to store.StringKey
	KeyType reflect.Type
}

// Backend is the in-memory store.Backend
type Backend struct {
	options Options
}

var _ store.Backend = (*Backend)(nil)

// New creates a backend; the context type must be set with UseContext
func New(opts Options) *Backend {
	if opts.KeyType == nil {
		opts.KeyType = store.StringKey
	}
	return &Backend{options: opts}
}

// UseContext configures C as the context type resolved from the locator
func UseContext[C Context](b *Backend) {
	b.options.ContextType = reflect.TypeFor[C]()
}

// SetKeyType configures the identifier type
func (b *Backend) SetKeyType(t reflect.Type) {
	b.options.KeyType = t
}

func (b *Backend) Name() string { return "memorystore" }

func (b *Backend) BaseEntity(kind store.Kind) reflect.Type {
	return store.DefaultEntities()[kind]
}

func (b *Backend) ContextType() reflect.Type { return b.options.ContextType }

func (b *Backend) ContextRequirement() string { return "memorystore.UseContext" }

func (b *Backend) KeyType() reflect.Type { return b.options.KeyType }

// Open implements store.Backend
func (b *Backend) Open(ctx any, st store.StoreType) (store.DocumentStore, error) {
	c, ok := ctx.(Context)
	if !ok {
		return nil, fmt.Errorf("context %T does not implement memorystore.Context", ctx)
	}
	db := c.Database()
	if db == nil {
		return nil, fmt.Errorf("context %T returned no database", ctx)
	}
	return &partition{db: db, kind: st.Kind}, nil
}

// partition is the document store of one family
type partition struct {
	db   *Database
	kind store.Kind
}

func (p *partition) Count(context.Context) (int64, error) {
	p.db.mu.RLock()
	defer p.db.mu.RUnlock()
	return int64(len(p.db.partitions[p.kind])), nil
}

func (p *partition) Insert(_ context.Context, id string, doc []byte) error {
	p.db.mu.Lock()
	defer p.db.mu.Unlock()

	docs := p.db.partitions[p.kind]
	if docs == nil {
		docs = make(map[string][]byte)
		p.db.partitions[p.kind] = docs
	}
	if _, exists := docs[id]; exists {
		return fmt.Errorf("%w: %s %s", store.ErrConflict, p.kind, id)
	}
	docs[id] = slices.Clone(doc)
	return nil
}

func (p *partition) Replace(_ context.Context, id string, doc []byte) error {
	p.db.mu.Lock()
	defer p.db.mu.Unlock()

	docs := p.db.partitions[p.kind]
	if _, exists := docs[id]; !exists {
		return fmt.Errorf("%w: %s %s", store.ErrNotFound, p.kind, id)
	}
	docs[id] = slices.Clone(doc)
	return nil
}

func (p *partition) Delete(_ context.Context, id string) error {
	p.db.mu.Lock()
	defer p.db.mu.Unlock()

	docs := p.db.partitions[p.kind]
	if _, exists := docs[id]; !exists {
		return fmt.Errorf("%w: %s %s", store.ErrNotFound, p.kind, id)
	}
	delete(docs, id)
	return nil
}

func (p *partition) Get(_ context.Context, id string) ([]byte, error) {
	p.db.mu.RLock()
	defer p.db.mu.RUnlock()

	doc, exists := p.db.partitions[p.kind][id]
	if !exists {
		return nil, fmt.Errorf("%w: %s %s", store.ErrNotFound, p.kind, id)
	}
	return slices.Clone(doc), nil
}

func (p *partition) List(_ context.Context, limit, offset int) ([][]byte, error) {
	p.db.mu.RLock()
	defer p.db.mu.RUnlock()

	docs := p.db.partitions[p.kind]
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	if offset >= len(ids) {
		return [][]byte{}, nil
	}
	ids = ids[offset:]
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}

	result := make([][]byte, 0, len(ids))
	for _, id := range ids {
		result = append(result, slices.Clone(docs[id]))
	}
	return result, nil
}
