// Package sqlstore is a SQL store backend over database/sql, supporting
// SQLite (modernc.org/sqlite) and PostgreSQL (pgx).
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// Dialect selects the SQL flavor of a Database
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// ParseDialect maps a configuration name to a dialect
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	default:
		return "", fmt.Errorf("unsupported SQL dialect %q", name)
	}
}

// DriverName returns the database/sql driver of the dialect
func (d Dialect) DriverName() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite"
}

// rebind rewrites ? placeholders to $n for PostgreSQL
func (d Dialect) rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// noLimit is the LIMIT argument returning every row
func (d Dialect) noLimit() any {
	if d == Postgres {
		return nil
	}
	return -1
}

// Context gives the backend access to a Database
type Context interface {
	SQL() *Database
}

// Database is a SQL connection pool with its dialect
type Database struct {
	db      *sql.DB
	dialect Dialect
	clock   clockwork.Clock
}

var _ Context = (*Database)(nil)

// Option configures a Database
type Option func(*Database)

// WithClock sets the clock used for document timestamps
func WithClock(clock clockwork.Clock) Option {
	return func(d *Database) {
		d.clock = clock
	}
}

// Open opens a database of the given dialect; it does not migrate the schema
func Open(ctx context.Context, dialect Dialect, dsn string, opts ...Option) (*Database, error) {
	if dsn == "" {
		return nil, fmt.Errorf("a %s DSN is required", dialect)
	}
	if dialect == SQLite {
		dsn = sqliteDSN(dsn)
	}
	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}

	if dialect == SQLite {
		// SQLite serializes writers; a single connection avoids SQLITE_BUSY
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", dialect, err)
	}

	return NewDatabase(db, dialect, opts...), nil
}

// sqlitePragmas are applied by the driver to every new connection
var sqlitePragmas = []struct{ name, value string }{
	{"busy_timeout", "5000"},
	{"journal_mode", "WAL"},
}

// sqliteDSN adds the connection pragmas to dsn unless it already sets them
func sqliteDSN(dsn string) string {
	for _, p := range sqlitePragmas {
		if strings.Contains(dsn, "_pragma="+p.name+"(") {
			continue
		}
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=" + p.name + "(" + p.value + ")"
	}
	return dsn
}

// NewDatabase wraps an existing pool
func NewDatabase(db *sql.DB, dialect Dialect, opts ...Option) *Database {
	d := &Database{db: db, dialect: dialect, clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SQL implements Context
func (d *Database) SQL() *Database {
	return d
}

// DB returns the underlying pool
func (d *Database) DB() *sql.DB {
	return d.db
}

// Dialect returns the SQL flavor
func (d *Database) Dialect() Dialect {
	return d.dialect
}

// Close closes the underlying pool
func (d *Database) Close() error {
	return d.db.Close()
}
