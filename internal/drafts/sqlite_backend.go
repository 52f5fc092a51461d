package drafts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/socialpost/postctl/internal/apierrors"
	_ "modernc.org/sqlite"
)

const sqliteSchema string = `
CREATE TABLE IF NOT EXISTS drafts (
	namespace  TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (namespace, key)
)`

// SQLiteBackend keeps drafts in a local database file, the CLI default.
type SQLiteBackend struct {
	db *sql.DB
}

func NewSQLiteBackend(ctx context.Context, path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite serializes writers anyway, a single connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)
	_, err = db.ExecContext(ctx, sqliteSchema)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot create the drafts table in %s: %w", path, err)
	}
	return &SQLiteBackend{db: db}, nil
}

func (s *SQLiteBackend) Get(ctx context.Context, namespace, key string) (Record, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT value, updated_at FROM drafts WHERE namespace = ? AND key = ?`,
		namespace, key,
	)
	record := Record{Namespace: namespace, Key: key}
	var updatedAt int64
	err := row.Scan(&record.Value, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, apierrors.ErrDraftNotFound
	}
	if err != nil {
		return Record{}, err
	}
	record.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return record, nil
}

func (s *SQLiteBackend) Set(ctx context.Context, record Record) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO drafts (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		record.Namespace, record.Key, record.Value, record.UpdatedAt.UnixMilli(),
	)
	return err
}

func (s *SQLiteBackend) Delete(ctx context.Context, namespace, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE namespace = ? AND key = ?`, namespace, key)
	return err
}

func (s *SQLiteBackend) List(ctx context.Context, namespace string) ([]Record, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT key, value, updated_at FROM drafts WHERE namespace = ? ORDER BY key`,
		namespace,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	records := []Record{}
	for rows.Next() {
		record := Record{Namespace: namespace}
		var updatedAt int64
		err = rows.Scan(&record.Key, &record.Value, &updatedAt)
		if err != nil {
			return nil, err
		}
		record.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *SQLiteBackend) Clear(ctx context.Context, namespace string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE namespace = ?`, namespace)
	return err
}

func (s *SQLiteBackend) Close() error {
	return s.db.Close()
}
