package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"

	"github.com/project-kessel/oidcforge/internal/store"
)

// Options configures the backend
type Options struct {
	// ContextType is the type the locator resolves to reach the Database
	ContextType reflect.Type

	// KeyType is store.StringKey or store.UUIDKey; defaults to store.StringKey
	KeyType reflect.Type
}

// Backend is the SQL store.Backend. Every family shares one documents table,
// partitioned by kind.
type Backend struct {
	options Options
}

var _ store.Backend = (*Backend)(nil)

// New creates a backend; the context type must be set with UseContext
func New(opts Options) *Backend {
	if opts.KeyType == nil {
		opts.KeyType = store.StringKey
	}
	return &Backend{options: opts}
}

// UseContext configures C as the context type resolved from the locator
func UseContext[C Context](b *Backend) {
	b.options.ContextType = reflect.TypeFor[C]()
}

// SetKeyType configures the identifier type
func (b *Backend) SetKeyType(t reflect.Type) {
	b.options.KeyType = t
}

func (b *Backend) Name() string { return "sqlstore" }

func (b *Backend) BaseEntity(kind store.Kind) reflect.Type {
	return store.DefaultEntities()[kind]
}

func (b *Backend) ContextType() reflect.Type { return b.options.ContextType }

func (b *Backend) ContextRequirement() string { return "sqlstore.UseContext" }

func (b *Backend) KeyType() reflect.Type { return b.options.KeyType }

// Open implements store.Backend
func (b *Backend) Open(ctx any, st store.StoreType) (store.DocumentStore, error) {
	c, ok := ctx.(Context)
	if !ok {
		return nil, fmt.Errorf("context %T does not implement sqlstore.Context", ctx)
	}
	db := c.SQL()
	if db == nil {
		return nil, fmt.Errorf("context %T returned no database", ctx)
	}
	return &table{db: db, kind: st.Kind}, nil
}

// table is the document store of one family
type table struct {
	db   *Database
	kind store.Kind
}

func (t *table) query(q string) string {
	return t.db.dialect.rebind(q)
}

func (t *table) Count(ctx context.Context) (int64, error) {
	var n int64
	err := t.db.db.QueryRowContext(ctx,
		t.query(`SELECT COUNT(1) FROM oidc_documents WHERE kind = ?`), string(t.kind)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s documents: %w", t.kind, err)
	}
	return n, nil
}

func (t *table) Insert(ctx context.Context, id string, doc []byte) error {
	now := t.db.clock.Now().UTC()
	res, err := t.db.db.ExecContext(ctx,
		t.query(`INSERT INTO oidc_documents(kind, id, payload, created_at, updated_at) VALUES(?, ?, ?, ?, ?)
			ON CONFLICT(kind, id) DO NOTHING`),
		string(t.kind), id, string(doc), now, now)
	if err != nil {
		return fmt.Errorf("insert %s %s: %w", t.kind, id, err)
	}
	return t.affected(res, id, store.ErrConflict)
}

func (t *table) Replace(ctx context.Context, id string, doc []byte) error {
	res, err := t.db.db.ExecContext(ctx,
		t.query(`UPDATE oidc_documents SET payload = ?, updated_at = ? WHERE kind = ? AND id = ?`),
		string(doc), t.db.clock.Now().UTC(), string(t.kind), id)
	if err != nil {
		return fmt.Errorf("update %s %s: %w", t.kind, id, err)
	}
	return t.affected(res, id, store.ErrNotFound)
}

func (t *table) Delete(ctx context.Context, id string) error {
	res, err := t.db.db.ExecContext(ctx,
		t.query(`DELETE FROM oidc_documents WHERE kind = ? AND id = ?`), string(t.kind), id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", t.kind, id, err)
	}
	return t.affected(res, id, store.ErrNotFound)
}

func (t *table) Get(ctx context.Context, id string) ([]byte, error) {
	var doc []byte
	err := t.db.db.QueryRowContext(ctx,
		t.query(`SELECT payload FROM oidc_documents WHERE kind = ? AND id = ?`), string(t.kind), id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %s", store.ErrNotFound, t.kind, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", t.kind, id, err)
	}
	return doc, nil
}

func (t *table) List(ctx context.Context, limit, offset int) ([][]byte, error) {
	var lim any = limit
	if limit <= 0 {
		lim = t.db.dialect.noLimit()
	}

	rows, err := t.db.db.QueryContext(ctx,
		t.query(`SELECT payload FROM oidc_documents WHERE kind = ? ORDER BY id ASC LIMIT ? OFFSET ?`),
		string(t.kind), lim, offset)
	if err != nil {
		return nil, fmt.Errorf("list %s documents: %w", t.kind, err)
	}
	defer rows.Close()

	docs := [][]byte{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (t *table) affected(res sql.Result, id string, sentinel error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s: %w", t.kind, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", sentinel, t.kind, id)
	}
	return nil
}
