// Package sqlite keeps learner progress in a single SQLite file.
package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/felixgeelhaar/lingua/internal/storage/migrations"
)

// DB is the progress database handle
type DB struct {
	*sqlx.DB
}

// Open opens the database at path in WAL mode with foreign keys on. The
// pool is limited to one connection since SQLite allows a single writer.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000", path)
	conn, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	return &DB{DB: conn}, nil
}

// Migrate brings the schema up to date and reports how many files ran
func (db *DB) Migrate(ctx context.Context) (int, error) {
	return migrations.Apply(ctx, db.DB.DB, migrations.SQLite(), migrations.SQLiteDialect)
}

// Version is the highest applied migration, 0 on a fresh file
func (db *DB) Version(ctx context.Context) (int, error) {
	return migrations.Version(ctx, db.DB.DB)
}
