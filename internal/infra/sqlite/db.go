// Package sqlite persists the points ledger, the store catalog, settings and
// the bank ledger in a single SQLite file.
//
// Every mutation runs inside a transaction opened with immediate locking, and
// mutations touching an account additionally hold that account's lock, so FIFO
// consumption, balance arithmetic and the expiry sweep never interleave.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// FileName is the database file created inside the data directory.
const FileName = "moose.db"

const dsnParams = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate"

// DB is the shared persistence handle. It is opened once at startup and
// passed to every service that needs it.
type DB struct {
	db    *sql.DB
	x     *sqlx.DB
	locks *accountLocks
}

// Open opens (or creates) the database inside dir and applies the schema.
func Open(dir string) (*DB, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("database directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}

	path := filepath.Join(filepath.Clean(dir), FileName)
	sqlDB, err := sql.Open("sqlite", path+dsnParams)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	db := &DB{
		db:    sqlDB,
		x:     sqlx.NewDb(sqlDB, "sqlite3"),
		locks: newAccountLocks(),
	}
	if err := db.migrate(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

// Close releases the connection pool.
func (db *DB) Close() error {
	if db == nil || db.db == nil {
		return nil
	}
	return db.db.Close()
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.db.PingContext(ctx)
}

// ─── Migrations ─────────────────────────────────────────────────────────────

type migration struct {
	name  string
	stmts []string
}

func migrations() []migration {
	return []migration{
		{name: "0001_points", stmts: PointsMigrations()},
		{name: "0002_catalog", stmts: CatalogMigrations()},
		{name: "0003_settings", stmts: SettingsMigrations()},
		{name: "0004_bank", stmts: BankMigrations()},
	}
}

// migrate applies each migration at most once and records it in
// schema_migrations.
func (db *DB) migrate() error {
	if _, err := db.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		name       TEXT PRIMARY KEY,
		applied_at INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	ctx := context.Background()
	for _, m := range migrations() {
		err := db.withTx(ctx, func(tx *sql.Tx) error {
			var found int
			err := tx.QueryRow(`SELECT 1 FROM schema_migrations WHERE name = ?`, m.name).Scan(&found)
			if err == nil {
				return nil
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
			for _, stmt := range m.stmts {
				if _, err := tx.Exec(stmt); err != nil {
					return fmt.Errorf("exec %s: %w", m.name, err)
				}
			}
			_, err = tx.Exec(`INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)`,
				m.name, toMillis(time.Now()))
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// withTx runs fn in a transaction, committing on success.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
