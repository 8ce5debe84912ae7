package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// DB wraps sql.DB for Postgres (pgx) or an embedded sqlite3 file.
type DB struct {
	Client *sql.DB
	Driver string
}

// NewDB opens the database for driver and pings it.
func NewDB(ctx context.Context, driver, dsn string) (*DB, error) {
	switch driver {
	case "", DriverPostgres, "pgx":
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
		return &DB{Client: db, Driver: DriverPostgres}, db.PingContext(ctx)
	case DriverSQLite:
		db, err := sql.Open("sqlite3", sqliteDSN(dsn))
		if err != nil {
			return nil, err
		}
		// writers serialize on the file lock anyway; one connection keeps transactions honest.
		db.SetMaxOpenConns(1)
		return &DB{Client: db, Driver: DriverSQLite}, db.PingContext(ctx)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}
}

func sqliteDSN(path string) string {
	path = strings.TrimPrefix(path, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if dir := filepath.Dir(path); dir != "." && path != ":memory:" {
		_ = os.MkdirAll(dir, 0o755)
	}
	return "file:" + path + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
}

// Healthy pings the database.
func (d *DB) Healthy(ctx context.Context) bool {
	if d == nil || d.Client == nil {
		return false
	}
	return d.Client.PingContext(ctx) == nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}
