package cachestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
    cache_key  TEXT    NOT NULL,
    scope      TEXT    NOT NULL,
    payload    TEXT    NOT NULL,
    expires_at INTEGER,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (cache_key, scope)
);
CREATE INDEX IF NOT EXISTS idx_cache_entries_expires ON cache_entries (expires_at);
`

// SQLiteBackend stores entries in a single table keyed by (cache_key, scope).
type SQLiteBackend struct {
	db   *sql.DB
	path string
}

var _ Backend = (*SQLiteBackend)(nil)

// NewSQLiteBackend opens (or creates) the database at path and applies the
// schema.
func NewSQLiteBackend(ctx context.Context, path string) (*SQLiteBackend, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is empty")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	// Pragmas go in the DSN so every pooled connection gets them.
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &SQLiteBackend{db: db, path: path}, nil
}

func (s *SQLiteBackend) Name() string { return "sqlite" }

func (s *SQLiteBackend) Find(ctx context.Context, key, scope string) (*Entry, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT cache_key, scope, payload, expires_at, created_at, updated_at
         FROM cache_entries WHERE cache_key = ? AND scope = ?`,
		key, scope,
	)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select cache entry: %w", err)
	}
	return e, nil
}

func (s *SQLiteBackend) Upsert(ctx context.Context, e Entry) error {
	if e.CacheKey == "" {
		return ErrInvalidKey
	}
	var expires any
	if e.ExpiresAt != nil {
		expires = *e.ExpiresAt
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (cache_key, scope, payload, expires_at, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT (cache_key, scope) DO UPDATE SET
             payload = excluded.payload,
             expires_at = excluded.expires_at,
             updated_at = excluded.updated_at`,
		e.CacheKey,
		e.Scope,
		string(e.Payload),
		expires,
		e.CreatedAt.UnixMilli(),
		e.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upsert cache entry: %w", err)
	}
	return nil
}

func (s *SQLiteBackend) DeleteWhere(ctx context.Context, key, scopePrefix, excludeScope string) (int, error) {
	if key == "" {
		return 0, ErrInvalidKey
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries
         WHERE cache_key = ? AND substr(scope, 1, ?) = ? AND scope <> ?`,
		key, len(scopePrefix), scopePrefix, excludeScope,
	)
	if err != nil {
		return 0, fmt.Errorf("delete cache entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

func (s *SQLiteBackend) Delete(ctx context.Context, key, scope string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE cache_key = ? AND scope = ?`, key, scope,
	); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

func (s *SQLiteBackend) List(ctx context.Context, key string) ([]Entry, error) {
	query := `SELECT cache_key, scope, payload, expires_at, created_at, updated_at
              FROM cache_entries`
	var args []any
	if key != "" {
		query += ` WHERE cache_key = ?`
		args = append(args, key)
	}
	query += ` ORDER BY cache_key, scope`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cache entries: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cache entry: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (s *SQLiteBackend) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		e         Entry
		payload   string
		expiresAt sql.NullInt64
		created   int64
		updated   int64
	)
	if err := row.Scan(&e.CacheKey, &e.Scope, &payload, &expiresAt, &created, &updated); err != nil {
		return nil, err
	}
	e.Payload = json.RawMessage(payload)
	if expiresAt.Valid {
		exp := expiresAt.Int64
		e.ExpiresAt = &exp
	}
	e.CreatedAt = time.UnixMilli(created).UTC()
	e.UpdatedAt = time.UnixMilli(updated).UTC()
	return &e, nil
}
