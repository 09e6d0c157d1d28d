// Copyright 2026 The GSMS Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/jtrinklein/gsms/record"
)

// Config holds the parameters for opening a user record store.
// Path is required; all other fields have defaults.
type Config struct {
	// Path is the filesystem path to the SQLite database file. The
	// parent directory must exist; the file is created if it does
	// not. Use ":memory:" with PoolSize 1 for tests.
	Path string

	// PoolSize is the number of connections in the pool. Defaults to
	// 4 if zero or negative. Writes are serialized by SQLite anyway;
	// extra connections only help concurrent reads.
	PoolSize int

	// Logger receives operational messages and corrupt-record
	// warnings. If nil, a no-op logger is used.
	Logger *slog.Logger
}

// Store is the durable phone → user record mapping. Safe for
// concurrent use; each operation borrows a pooled connection.
type Store struct {
	pool   *sqlitex.Pool
	logger *slog.Logger
	path   string
}

const schema = `
	CREATE TABLE IF NOT EXISTS users (
		phone  TEXT PRIMARY KEY,
		record TEXT NOT NULL
	);
`

// Open creates the store, applying WAL pragmas and the schema to
// every pooled connection. The caller must Close the store when done.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store: Path is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", cfg.Path, err)
	}

	logger.Info("user record store opened",
		"path", cfg.Path,
		"pool_size", poolSize,
	)

	return &Store{
		pool:   pool,
		logger: logger,
		path:   cfg.Path,
	}, nil
}

// prepareConnection applies standard pragmas and ensures the schema.
// Runs once per pooled connection, on first use.
func prepareConnection(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("store: %s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("store: creating schema: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool. Blocks until all
// borrowed connections are returned.
func (s *Store) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("store: closing %s: %w", s.path, err)
	}
	s.logger.Info("user record store closed", "path", s.path)
	return nil
}

// Get returns the record for phone, or (nil, nil) when no record
// exists. An error means the store is unavailable or the stored
// document for this phone is corrupt.
func (s *Store) Get(ctx context.Context, phone string) (*record.User, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", phone, err)
	}
	defer s.pool.Put(conn)

	var data []byte
	err = sqlitex.Execute(conn, "SELECT record FROM users WHERE phone = ?", &sqlitex.ExecOptions{
		Args: []any{phone},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			data = []byte(stmt.ColumnText(0))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", phone, err)
	}
	if data == nil {
		return nil, nil
	}

	user, err := record.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", phone, err)
	}
	return user, nil
}

// Put upserts the record, keyed by its phone number.
func (s *Store) Put(ctx context.Context, user *record.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("store: put: %w", err)
	}
	data, err := user.Marshal()
	if err != nil {
		return fmt.Errorf("store: put %s: %w", user.Phone, err)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store: put %s: %w", user.Phone, err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn,
		`INSERT INTO users (phone, record) VALUES (?, ?)
		 ON CONFLICT(phone) DO UPDATE SET record = excluded.record`,
		&sqlitex.ExecOptions{Args: []any{user.Phone, string(data)}},
	)
	if err != nil {
		return fmt.Errorf("store: put %s: %w", user.Phone, err)
	}
	return nil
}

// Remove deletes the record for phone. Removing an absent record is
// not an error.
func (s *Store) Remove(ctx context.Context, phone string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("store: remove %s: %w", phone, err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, "DELETE FROM users WHERE phone = ?",
		&sqlitex.ExecOptions{Args: []any{phone}})
	if err != nil {
		return fmt.Errorf("store: remove %s: %w", phone, err)
	}
	return nil
}

// ListAll returns every valid record in the store. A document that
// fails to deserialize is skipped with a warning so that one corrupt
// row cannot abort a batch operation such as startup reconnection.
func (s *Store) ListAll(ctx context.Context) ([]*record.User, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer s.pool.Put(conn)

	var users []*record.User
	err = sqlitex.Execute(conn, "SELECT phone, record FROM users ORDER BY phone", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			phone := stmt.ColumnText(0)
			user, parseErr := record.Unmarshal([]byte(stmt.ColumnText(1)))
			if parseErr != nil {
				s.logger.Warn("skipping corrupt user record",
					"phone", phone,
					"error", parseErr,
				)
				return nil
			}
			users = append(users, user)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	return users, nil
}

// Count returns the number of stored records, valid or not. Used by
// the admin status endpoint.
func (s *Store) Count(ctx context.Context) (int, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	defer s.pool.Put(conn)

	var count int
	err = sqlitex.Execute(conn, "SELECT COUNT(*) FROM users", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			count = stmt.ColumnInt(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return count, nil
}
