package store

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

type derivedScope struct {
	Scope
	Owner string
}

type twiceDerived struct {
	derivedScope
}

type namedScope struct {
	Base Scope
}

func TestCompatible(t *testing.T) {
	base := reflect.TypeFor[Scope]()

	tests := []struct {
		name   string
		entity reflect.Type
		want   bool
	}{
		{"base", base, true},
		{"embedding", reflect.TypeFor[derivedScope](), true},
		{"transitive", reflect.TypeFor[twiceDerived](), true},
		{"named field", reflect.TypeFor[namedScope](), false},
		{"pointer", reflect.TypeFor[*Scope](), false},
		{"other family", reflect.TypeFor[Token](), false},
		{"non struct", reflect.TypeFor[string](), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compatible(tt.entity, base))
		})
	}
}

func TestKeyTypes(t *testing.T) {
	keyType, err := ParseKeyType("UUID")
	assert.NoError(t, err)
	assert.Equal(t, UUIDKey, keyType)

	_, err = ParseKeyType("int")
	assert.Error(t, err)

	assert.NoError(t, ValidateID(StringKey, "anything"))
	assert.Error(t, ValidateID(StringKey, ""))
	assert.Error(t, ValidateID(UUIDKey, "nope"))
	assert.Error(t, ValidateID(reflect.TypeFor[int](), "1"))
}
