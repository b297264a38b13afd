// Package store resolves persistence stores for entity types chosen by the
// host application.
//
// A Backend declares one base entity per family and opens untyped document
// stores over its physical context. The Resolver validates that a requested
// entity type belongs to the family, caches the resolved StoreType, and wraps
// the document store in a typed Store.
package store

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrNotFound is returned when no entity has the requested id
	ErrNotFound = errors.New("entity not found")

	// ErrConflict is returned when an entity with the same id already exists
	ErrConflict = errors.New("entity already exists")
)

// Backend is a persistence backend
type Backend interface {
	// Name identifies the backend in logs and errors
	Name() string

	// BaseEntity returns the type every entity of kind must derive from
	BaseEntity(kind Kind) reflect.Type

	// ContextType returns the physical context type; nil when not configured
	ContextType() reflect.Type

	// ContextRequirement names the call that configures the context type
	ContextRequirement() string

	// KeyType returns the entity identifier type
	KeyType() reflect.Type

	// Open returns the document store of st over a materialized context
	Open(ctx any, st StoreType) (DocumentStore, error)
}

// DocumentStore persists JSON documents of one family by id
type DocumentStore interface {
	Count(ctx context.Context) (int64, error)

	// Insert fails with ErrConflict when id exists
	Insert(ctx context.Context, id string, doc []byte) error

	// Replace fails with ErrNotFound when id does not exist
	Replace(ctx context.Context, id string, doc []byte) error

	// Delete fails with ErrNotFound when id does not exist
	Delete(ctx context.Context, id string) error

	// Get fails with ErrNotFound when id does not exist
	Get(ctx context.Context, id string) ([]byte, error)

	// List returns documents ordered by id; limit <= 0 means no limit
	List(ctx context.Context, limit, offset int) ([][]byte, error)
}

// StoreType is the resolved store identity for one entity type
type StoreType struct {
	Kind    Kind
	Backend string
	Entity  reflect.Type
	Context reflect.Type
	Key     reflect.Type
}

// String implements fmt.Stringer
func (t StoreType) String() string {
	return fmt.Sprintf("%s.Store[%s, %s, %s]", t.Backend, t.Entity, t.Context, t.Key)
}
