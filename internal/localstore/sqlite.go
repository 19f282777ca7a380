package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"

	"github.com/sapatrack/sapatrack/internal/common"
	"github.com/sapatrack/sapatrack/internal/localstore/migrations"
)

// SQLiteStore persists the cache in a single-table SQLite database. A
// single-writer-per-device assumption holds: no cross-process locking is
// attempted beyond what SQLite itself provides.
type SQLiteStore struct {
	db    *sql.DB
	quota int64 // max value size in bytes; <=0 disables the ceiling
}

// NewSQLiteStore returns a store over db. quota is the per-value capacity
// ceiling in bytes.
func NewSQLiteStore(db *sql.DB, quota int64) *SQLiteStore {
	return &SQLiteStore{db: db, quota: quota}
}

// RunMigrations applies the embedded schema migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

func (s *SQLiteStore) get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM cache WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", common.ErrorNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read cache key: %w", err)
	}
	return value, nil
}

func (s *SQLiteStore) set(key, value string) error {
	if s.quota > 0 && int64(len(value)) > s.quota {
		return common.ErrQuotaExceeded
	}
	_, err := s.db.Exec(
		`INSERT INTO cache (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("failed to write cache key: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Read(uid, name string) (string, error) {
	value, err := s.get(primaryKey(uid, name))
	if err == nil {
		return value, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return "", err
	}

	for _, legacy := range legacyKeys(uid, name) {
		value, err := s.get(legacy)
		if errors.Is(err, common.ErrorNotFound) {
			continue
		}
		if err != nil {
			return "", err
		}
		// Lazy one-time migration: copy the hit under the primary key.
		// Best-effort, like every other write.
		_ = s.set(primaryKey(uid, name), value)
		return value, nil
	}

	return "", common.ErrorNotFound
}

func (s *SQLiteStore) Write(uid, name, value string) error {
	return s.set(primaryKey(uid, name), value)
}

func (s *SQLiteStore) Delete(uid, name string) error {
	_, err := s.db.Exec(`DELETE FROM cache WHERE key = ?`, primaryKey(uid, name))
	if err != nil {
		return fmt.Errorf("failed to delete cache key: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ClearUser(uid string) (int, error) {
	removed := 0
	for _, prefix := range userPrefixes(uid) {
		// Escape LIKE wildcards that may appear in user ids.
		pattern := strings.NewReplacer("%", `\%`, "_", `\_`).Replace(prefix) + "%"
		res, err := s.db.Exec(`DELETE FROM cache WHERE key LIKE ? ESCAPE '\'`, pattern)
		if err != nil {
			return removed, fmt.Errorf("failed to clear user keys: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			removed += int(n)
		}
	}
	return removed, nil
}
