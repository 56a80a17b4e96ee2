// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens a small pool of SQLite connections for local
// persistent state such as the settings store.
//
// It is a thin layer over zombiezen.com/go/sqlite/sqlitex. Every
// connection runs in WAL mode with synchronous=NORMAL and a busy
// timeout, and applies the caller's schema script once when the
// connection is first used. Callers write SQL directly:
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:   path,
//	    Schema: `CREATE TABLE IF NOT EXISTS options (name TEXT PRIMARY KEY, value TEXT)`,
//	})
//	...
//	err = pool.Do(ctx, func(conn *sqlite.Conn) error {
//	    return sqlitex.Execute(conn, "SELECT value FROM options WHERE name = ?", ...)
//	})
//
// Connections are not safe for concurrent use; each goroutine takes its
// own.
package sqlitepool
