package handler

import (
	"context"
	"fmt"
	"reflect"

	"github.com/project-kessel/oidcforge/internal/locator"
)

// Bound is a materialized handler together with its descriptor
type Bound[C any] struct {
	Descriptor Descriptor
	Handler    Handler[C]
}

// Materialize resolves the handlers observing C from descriptors, keeping
// their order. Merging default and custom lists is left to the caller.
func Materialize[C any](r locator.Resolver, descriptors []Descriptor) ([]Bound[C], error) {
	contextType := reflect.TypeFor[C]()

	var bound []Bound[C]
	for _, d := range descriptors {
		if d.ContextType != contextType {
			continue
		}

		v, err := r.ResolveRequired(d.ServiceType)
		if err != nil {
			return nil, fmt.Errorf("failed to materialize handler %s: %w", d.ServiceType, err)
		}
		h, ok := v.(Handler[C])
		if !ok {
			return nil, fmt.Errorf("service %s does not handle %s", d.ServiceType, contextType)
		}
		bound = append(bound, Bound[C]{Descriptor: d, Handler: h})
	}
	return bound, nil
}

// Invoke runs the active handlers in order and stops at the first error
func Invoke[C any](ctx context.Context, handlers []Bound[C], event *C) error {
	for _, b := range handlers {
		active, err := AllFilters(ctx, b.Descriptor.Filters, event)
		if err != nil {
			return fmt.Errorf("failed to evaluate filters of %s: %w", b.Descriptor.ServiceType, err)
		}
		if !active {
			continue
		}
		if err := b.Handler.Handle(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
