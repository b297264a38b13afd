package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/project-kessel/oidcforge/internal/fault"
	"github.com/project-kessel/oidcforge/internal/locator"
)

// Store persists entities of type T
type Store[T any] interface {
	Count(ctx context.Context) (int64, error)

	// Create assigns an identifier when the entity has none
	Create(ctx context.Context, entity *T) error

	FindByID(ctx context.Context, id string) (*T, error)

	// List returns entities ordered by id; limit <= 0 means no limit
	List(ctx context.Context, limit, offset int) ([]*T, error)

	Update(ctx context.Context, entity *T) error

	Delete(ctx context.Context, id string) error
}

// Override registers s as the store for T. Overrides are returned as is by
// Get, without any compatibility check.
func Override[T any](c *locator.Container, s Store[T]) error {
	if s == nil {
		return fault.Argument("store", "must not be nil")
	}
	return locator.Instance(c, s)
}

// documentStore adapts a DocumentStore to Store[T] with JSON documents
type documentStore[T any] struct {
	docs      DocumentStore
	storeType StoreType
}

var _ Store[Application] = (*documentStore[Application])(nil)

func (s *documentStore[T]) Type() StoreType {
	return s.storeType
}

func (s *documentStore[T]) Count(ctx context.Context) (int64, error) {
	return s.docs.Count(ctx)
}

func (s *documentStore[T]) Create(ctx context.Context, entity *T) error {
	e, err := s.entity(entity)
	if err != nil {
		return err
	}
	if e.EntityID() == "" {
		id, err := NewID(s.storeType.Key)
		if err != nil {
			return err
		}
		e.SetEntityID(id)
	}
	if err := ValidateID(s.storeType.Key, e.EntityID()); err != nil {
		return fault.Argumentf("entity", "%v", err)
	}

	doc, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", s.storeType.Entity, err)
	}
	return s.docs.Insert(ctx, e.EntityID(), doc)
}

func (s *documentStore[T]) FindByID(ctx context.Context, id string) (*T, error) {
	if id == "" {
		return nil, fault.Argument("id", "must not be empty")
	}
	doc, err := s.docs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.decode(doc)
}

func (s *documentStore[T]) List(ctx context.Context, limit, offset int) ([]*T, error) {
	if offset < 0 {
		return nil, fault.Argument("offset", "must not be negative")
	}
	docs, err := s.docs.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	entities := make([]*T, 0, len(docs))
	for _, doc := range docs {
		entity, err := s.decode(doc)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, nil
}

func (s *documentStore[T]) Update(ctx context.Context, entity *T) error {
	e, err := s.entity(entity)
	if err != nil {
		return err
	}
	if e.EntityID() == "" {
		return fault.Argument("entity", "identifier must be set")
	}

	doc, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", s.storeType.Entity, err)
	}
	return s.docs.Replace(ctx, e.EntityID(), doc)
}

func (s *documentStore[T]) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fault.Argument("id", "must not be empty")
	}
	return s.docs.Delete(ctx, id)
}

func (s *documentStore[T]) entity(entity *T) (Entity, error) {
	if entity == nil {
		return nil, fault.Argument("entity", "must not be nil")
	}
	e, ok := any(entity).(Entity)
	if !ok {
		return nil, fault.Argumentf("entity", "%T does not expose an identifier", entity)
	}
	return e, nil
}

func (s *documentStore[T]) decode(doc []byte) (*T, error) {
	entity := new(T)
	if err := json.Unmarshal(doc, entity); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", s.storeType.Entity, err)
	}
	return entity, nil
}
