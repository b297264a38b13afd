package store

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"
)

// Supported identifier types
var (
	StringKey = reflect.TypeFor[string]()
	UUIDKey   = reflect.TypeFor[uuid.UUID]()
)

// ParseKeyType maps a configuration name ("string" or "uuid") to a key type
func ParseKeyType(name string) (reflect.Type, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "string":
		return StringKey, nil
	case "uuid":
		return UUIDKey, nil
	default:
		return nil, fmt.Errorf("unsupported key type %q", name)
	}
}

// NewID generates an identifier of the given key type
func NewID(keyType reflect.Type) (string, error) {
	switch keyType {
	case StringKey, UUIDKey:
		return uuid.NewString(), nil
	default:
		return "", fmt.Errorf("unsupported key type %s", keyType)
	}
}

// ValidateID checks that id is a valid identifier of the given key type
func ValidateID(keyType reflect.Type, id string) error {
	switch keyType {
	case StringKey:
		if id == "" {
			return fmt.Errorf("identifier cannot be empty")
		}
		return nil
	case UUIDKey:
		if _, err := uuid.Parse(id); err != nil {
			return fmt.Errorf("identifier %q is not a UUID: %w", id, err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported key type %s", keyType)
	}
}
