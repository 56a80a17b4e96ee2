// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"context"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/moresteps/lib/sqlitepool"
)

const schema = `
CREATE TABLE IF NOT EXISTS options (
	name  TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

// SQLite is a Store persisted in a SQLite database file.
type SQLite struct {
	typed
	pool *sqlitepool.Pool
}

// OpenSQLite opens (creating if needed) the settings database at path.
func OpenSQLite(path string, logger *slog.Logger) (*SQLite, error) {
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:   path,
		Schema: schema,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	return &SQLite{typed: typed{backend: sqliteBackend{pool: pool}}, pool: pool}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.pool.Close()
}

type sqliteBackend struct {
	pool *sqlitepool.Pool
}

func (b sqliteBackend) load(ctx context.Context, name string) (string, bool, error) {
	var value string
	var found bool
	err := b.pool.Do(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT value FROM options WHERE name = ?", &sqlitex.ExecOptions{
			Args: []any{name},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				value = stmt.ColumnText(0)
				found = true
				return nil
			},
		})
	})
	return value, found, err
}

func (b sqliteBackend) save(ctx context.Context, name, value string) error {
	return b.pool.Do(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"INSERT INTO options (name, value) VALUES (?, ?) ON CONFLICT(name) DO UPDATE SET value = excluded.value",
			&sqlitex.ExecOptions{Args: []any{name, value}},
		)
	})
}
