package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/project-kessel/oidcforge/internal/locator"
	"github.com/project-kessel/oidcforge/internal/store"
	"github.com/project-kessel/oidcforge/internal/store/memorystore"
	"github.com/project-kessel/oidcforge/internal/store/sqlstore"
)

// newBackend creates the configured backend and registers its context in c.
// The SQL database is returned for SQL backends so the caller can close it.
func newBackend(ctx context.Context, cfg StoreConfig, c *locator.Container, clock clockwork.Clock) (store.Backend, *sqlstore.Database, error) {
	keyType, err := store.ParseKeyType(cfg.KeyType)
	if err != nil {
		return nil, nil, err
	}

	switch strings.ToLower(cfg.Backend) {
	case "memory", "":
		if !locator.IsProvided[*memorystore.Database](c) {
			if err := locator.Instance(c, memorystore.NewDatabase()); err != nil {
				return nil, nil, err
			}
		}
		b := memorystore.New(memorystore.Options{KeyType: keyType})
		memorystore.UseContext[*memorystore.Database](b)
		return b, nil, nil

	case "sqlite", "postgres":
		dialect, err := sqlstore.ParseDialect(cfg.Backend)
		if err != nil {
			return nil, nil, err
		}
		db, err := sqlstore.Open(ctx, dialect, cfg.DSN, sqlstore.WithClock(clock))
		if err != nil {
			return nil, nil, err
		}
		if cfg.AutoMigrate {
			if _, err := db.Migrate(ctx); err != nil {
				_ = db.Close()
				return nil, nil, fmt.Errorf("failed to migrate: %w", err)
			}
		}
		if err := locator.Instance(c, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		b := sqlstore.New(sqlstore.Options{KeyType: keyType})
		sqlstore.UseContext[*sqlstore.Database](b)
		return b, db, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend: %s (supported: memory, sqlite, postgres)", cfg.Backend)
	}
}
