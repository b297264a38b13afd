package sqlstore

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

//go:embed migrations
var migrationFiles embed.FS

var migrationFileRe = regexp.MustCompile(`^(\d+)_.+\.sql$`)

// Migration is one schema migration file
type Migration struct {
	Version int
	Name    string
}

// migrations lists the embedded migrations of dialect ordered by version
func migrations(dialect Dialect) ([]Migration, error) {
	entries, err := fs.ReadDir(migrationFiles, path.Join("migrations", string(dialect)))
	if err != nil {
		return nil, fmt.Errorf("read %s migrations: %w", dialect, err)
	}

	var files []Migration
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := migrationFileRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		v, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("invalid migration version in %s: %w", e.Name(), err)
		}
		files = append(files, Migration{Version: v, Name: e.Name()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Version < files[j].Version })
	return files, nil
}

// Migrate applies the pending migrations, each in its own transaction, and
// returns the ones it applied
func (d *Database) Migrate(ctx context.Context) ([]Migration, error) {
	if _, err := d.db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY, name TEXT NOT NULL, applied_at TEXT NOT NULL)`); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	files, err := migrations(d.dialect)
	if err != nil {
		return nil, err
	}
	applied, err := d.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}

	var done []Migration
	for _, f := range files {
		if applied[f.Version] {
			continue
		}
		if err := d.apply(ctx, f); err != nil {
			return done, err
		}
		done = append(done, f)
	}
	return done, nil
}

// Version returns the highest applied migration version; 0 when none
func (d *Database) Version(ctx context.Context) (int, error) {
	applied, err := d.appliedVersions(ctx)
	if err != nil {
		return 0, err
	}
	latest := 0
	for v := range applied {
		latest = max(latest, v)
	}
	return latest, nil
}

func (d *Database) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := map[int]bool{}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func (d *Database) apply(ctx context.Context, m Migration) error {
	b, err := fs.ReadFile(migrationFiles, path.Join("migrations", string(d.dialect), m.Name))
	if err != nil {
		return fmt.Errorf("read migration %s: %w", m.Name, err)
	}
	stmt := strings.TrimSpace(string(b))

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx for migration %s: %w", m.Name, err)
	}
	if stmt != "" {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %s failed: %w", m.Name, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		d.dialect.rebind(`INSERT INTO schema_migrations(version, name, applied_at) VALUES(?, ?, ?)`),
		m.Version, m.Name, d.clock.Now().UTC().Format(time.RFC3339)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record migration %s: %w", m.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", m.Name, err)
	}
	return nil
}
