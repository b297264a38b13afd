package probe

import (
	"github.com/project-kessel/oidcforge/internal/builder"
	"github.com/project-kessel/oidcforge/internal/store"
)

type (
	builderNoOpObserver = builder.NoOpObserver
	storeNoOpObserver   = store.NoOpObserver
)

// NoOpObserver ignores every builder and store event
type NoOpObserver struct {
	builderNoOpObserver
	storeNoOpObserver
}

var _ Observer = NoOpObserver{}
