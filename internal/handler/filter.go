package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
)

// Filter decides whether a handler applies to an event.
// Filters are stored on descriptors and evaluated by the dispatcher.
type Filter interface {
	IsActive(ctx context.Context, event any) (bool, error)
}

// FilterFunc adapts a typed predicate to Filter. Events of another type
// are never active.
func FilterFunc[C any](fn func(ctx context.Context, event *C) bool) Filter {
	return funcFilter[C](fn)
}

type funcFilter[C any] func(ctx context.Context, event *C) bool

func (f funcFilter[C]) IsActive(ctx context.Context, event any) (bool, error) {
	e, ok := event.(*C)
	if !ok {
		return false, nil
	}
	return f(ctx, e), nil
}

// FilterLibrary creates a CEL library for handler filters.
//
// This provides compile-time declarations for:
//   - event - the event context as a map, keyed by its JSON field names
//   - context_type - the name of the event context type (string)
//
// Example expressions:
//   - event.grant_type == "client_credentials"
//   - "openid" in event.scopes
//   - context_type == "ProcessSignIn" && event.client_id.startsWith("internal-")
func FilterLibrary() cel.EnvOption {
	return cel.Lib(&filterLib{})
}

type filterLib struct{}

func (lib *filterLib) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		cel.Variable("event", cel.DynType),
		cel.Variable("context_type", cel.StringType),
	}
}

func (lib *filterLib) ProgramOptions() []cel.ProgramOption {
	return []cel.ProgramOption{}
}

// CELFilter uses a CEL expression to decide whether a handler applies
type CELFilter struct {
	program cel.Program
	script  string
}

// NewCELFilter compiles a CEL expression evaluating to a boolean
func NewCELFilter(script string) (*CELFilter, error) {
	if strings.TrimSpace(script) == "" {
		return nil, fmt.Errorf("CEL filter script cannot be empty")
	}

	env, err := cel.NewEnv(FilterLibrary())
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(script)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL filter script: %w", issues.Err())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return &CELFilter{
		program: program,
		script:  script,
	}, nil
}

// IsActive implements Filter
func (f *CELFilter) IsActive(ctx context.Context, event any) (bool, error) {
	activation, err := filterActivation(event)
	if err != nil {
		return false, err
	}

	result, _, err := f.program.ContextEval(ctx, activation)
	if err != nil {
		return false, err
	}

	if result.Type() == types.BoolType {
		return result.Value().(bool), nil
	}

	return false, nil
}

// Script returns the CEL script used by this filter
func (f *CELFilter) Script() string {
	return f.script
}

func filterActivation(event any) (map[string]any, error) {
	contextType := ""
	if t := reflect.TypeOf(event); t != nil {
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		contextType = t.Name()
	}

	// JSON keeps the field names the expressions are written against
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to convert event for CEL evaluation: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to convert event for CEL evaluation: %w", err)
	}

	return map[string]any{
		"event":        m,
		"context_type": contextType,
	}, nil
}

// AllFilters is active when every filter is active
func AllFilters(ctx context.Context, filters []Filter, event any) (bool, error) {
	for i, filter := range filters {
		active, err := filter.IsActive(ctx, event)
		if err != nil {
			return false, fmt.Errorf("filter %d: %w", i, err)
		}
		if !active {
			return false, nil
		}
	}
	return true, nil
}
