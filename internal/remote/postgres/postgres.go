// Package postgres implements remote.Store on a single jsonb documents
// table, for deployments that self-host instead of using a hosted document
// database.
//
// Merge writes use the jsonb concatenation operator, which merges top-level
// keys. The documents exchanged by the sync core are flat, so this is
// equivalent to per-field merging.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/sapatrack/sapatrack/internal/common"
	"github.com/sapatrack/sapatrack/internal/dbx"
	"github.com/sapatrack/sapatrack/internal/models"
	"github.com/sapatrack/sapatrack/internal/remote"
	"github.com/sapatrack/sapatrack/internal/remote/postgres/migrations"
)

const uniqueViolation = "23505"

// Store implements remote.Store on a Postgres connection pool.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New opens a pool for the given DSN. Call RunMigrations before first use.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres pool: %w", err)
	}
	return NewWithDB(db), nil
}

// NewWithDB wraps an existing pool. Used by tests.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Close releases the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunMigrations applies the embedded schema migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// splitPath separates a document path into its collection and id.
func splitPath(path string) (collection, id string, err error) {
	segs := strings.Split(path, "/")
	if len(segs) < 2 || len(segs)%2 != 0 {
		return "", "", fmt.Errorf("document path %q must have an even number of segments", path)
	}
	for _, s := range segs {
		if s == "" {
			return "", "", fmt.Errorf("document path %q has an empty segment", path)
		}
	}
	return strings.Join(segs[:len(segs)-1], "/"), segs[len(segs)-1], nil
}

// marshal resolves server-timestamp sentinels against the app clock (this
// backend has no database-side sentinel) and encodes the document as jsonb.
func (s *Store) marshal(doc models.Doc) ([]byte, error) {
	out := make(models.Doc, len(doc))
	for k, v := range doc {
		if v == models.ServerTimestamp {
			out[k] = s.now().UTC()
			continue
		}
		out[k] = v
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	return raw, nil
}

func mapErr(path string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%q: %w", path, common.ErrAlreadyExists)
	}
	return err
}

func getDoc(ctx context.Context, db dbx.DBTX, path string, forUpdate bool) (models.Doc, error) {
	collection, id, err := splitPath(path)
	if err != nil {
		return nil, err
	}

	query := `SELECT data FROM documents WHERE collection = $1 AND id = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var raw []byte
	err = db.QueryRowContext(ctx, query, collection, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%q: %w", path, common.ErrorNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", path, err)
	}

	var doc models.Doc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding %q: %w", path, err)
	}
	return doc, nil
}

func (s *Store) Get(ctx context.Context, path string) (models.Doc, error) {
	return getDoc(ctx, s.db, path, false)
}

func setDoc(ctx context.Context, db dbx.DBTX, collection, id string, raw []byte) error {
	_, err := db.ExecContext(ctx, `
INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)
ON CONFLICT (collection, id) DO UPDATE SET data = documents.data || excluded.data
`, collection, id, raw)
	return err
}

func (s *Store) Set(ctx context.Context, path string, doc models.Doc) error {
	collection, id, err := splitPath(path)
	if err != nil {
		return err
	}
	raw, err := s.marshal(doc)
	if err != nil {
		return err
	}
	if err := setDoc(ctx, s.db, collection, id, raw); err != nil {
		return fmt.Errorf("writing %q: %w", path, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	collection, id, err := splitPath(path)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id); err != nil {
		return fmt.Errorf("deleting %q: %w", path, err)
	}
	return nil
}

func (s *Store) Add(ctx context.Context, collection string, doc models.Doc) (string, error) {
	id := uuid.NewString()
	raw, err := s.marshal(doc)
	if err != nil {
		return "", err
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)`,
		collection, id, raw); err != nil {
		return "", fmt.Errorf("adding to %q: %w", collection, err)
	}
	return id, nil
}

func (s *Store) List(ctx context.Context, collection string, q remote.Query) ([]models.Doc, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data FROM documents WHERE collection = $1`, collection)
	if err != nil {
		return nil, fmt.Errorf("listing %q: %w", collection, err)
	}
	defer rows.Close()

	var out []models.Doc
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scanning %q: %w", collection, err)
		}
		var doc models.Doc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decoding %s/%s: %w", collection, id, err)
		}
		doc["id"] = id
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing %q: %w", collection, err)
	}

	// Ordering happens here rather than in SQL: timestamp fields arrive in
	// mixed encodings, which the shared comparator normalizes.
	return remote.SortDocs(out, q), nil
}

type pgTx struct {
	ctx    context.Context
	store  *Store
	tx     dbx.DBTX
	staged []stagedWrite
}

type stagedWrite struct {
	path   string
	doc    models.Doc
	create bool
}

func (t *pgTx) Get(path string) (models.Doc, error) {
	// Row locks make concurrent transactions over the same documents
	// serialize instead of failing.
	return getDoc(t.ctx, t.tx, path, true)
}

func (t *pgTx) Set(path string, doc models.Doc) {
	t.staged = append(t.staged, stagedWrite{path: path, doc: doc})
}

func (t *pgTx) Create(path string, doc models.Doc) {
	t.staged = append(t.staged, stagedWrite{path: path, doc: doc, create: true})
}

func (t *pgTx) flush() error {
	for _, w := range t.staged {
		collection, id, err := splitPath(w.path)
		if err != nil {
			return err
		}
		raw, err := t.store.marshal(w.doc)
		if err != nil {
			return err
		}
		if w.create {
			_, err = t.tx.ExecContext(t.ctx,
				`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)`,
				collection, id, raw)
		} else {
			err = setDoc(t.ctx, t.tx, collection, id, raw)
		}
		if err != nil {
			return mapErr(w.path, err)
		}
	}
	return nil
}

func (s *Store) RunTransaction(ctx context.Context, fn func(tx remote.Tx) error) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		w := &pgTx{ctx: ctx, store: s, tx: tx}
		if err := fn(w); err != nil {
			return err
		}
		return w.flush()
	})
}
