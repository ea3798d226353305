package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Dialect names the SQL backend behind a DB.
type Dialect string

const (
	SQLite   Dialect = "sqlite3"
	Postgres Dialect = "pgx"
)

// DB wraps the history database connection.
type DB struct {
	conn    *sql.DB
	dsn     string
	dialect Dialect
}

// DialectFor picks the driver for a DSN: postgres:// and postgresql:// URLs
// go to pgx, everything else is a SQLite path.
func DialectFor(dsn string) Dialect {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return Postgres
	}
	return SQLite
}

// Open opens or creates the database for dsn. For SQLite file paths the
// parent directory is created when missing.
func Open(dsn string) (*DB, error) {
	dialect := DialectFor(dsn)
	if dialect == SQLite && dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		dir := filepath.Dir(dsn)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	conn, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dialect == SQLite {
		conn.SetMaxOpenConns(1)
		if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("set journal mode: %w", err)
		}
		if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}
	return &DB{conn: conn, dsn: dsn, dialect: dialect}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Conn returns the underlying *sql.DB for advanced queries.
func (d *DB) Conn() *sql.DB {
	return d.conn
}

// Dialect reports which backend the DB talks to.
func (d *DB) Dialect() Dialect {
	return d.dialect
}

// Statements use $n placeholders and portable types so the same schema runs
// on SQLite and Postgres.
var schemaV1 = []string{
	`CREATE TABLE IF NOT EXISTS schema_version (
    version    INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS eval_runs (
    id            TEXT PRIMARY KEY,
    created_at    TEXT NOT NULL,
    issues        INTEGER NOT NULL DEFAULT 0,
    passed        INTEGER NOT NULL DEFAULT 0,
    failed        INTEGER NOT NULL DEFAULT 0,
    skipped       INTEGER NOT NULL DEFAULT 0,
    not_restored  INTEGER NOT NULL DEFAULT 0,
    not_compiling INTEGER NOT NULL DEFAULT 0,
    not_tested    INTEGER NOT NULL DEFAULT 0,
    regressions   INTEGER NOT NULL DEFAULT 0,
    fixed         INTEGER NOT NULL DEFAULT 0
)`,
	`CREATE INDEX IF NOT EXISTS idx_eval_runs_created ON eval_runs(created_at)`,
	`CREATE TABLE IF NOT EXISTS issue_results (
    run_id       TEXT NOT NULL REFERENCES eval_runs(id) ON DELETE CASCADE,
    issue        INTEGER NOT NULL,
    status       TEXT NOT NULL,
    state        TEXT NOT NULL,
    reason       TEXT NOT NULL DEFAULT '',
    worst_status TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (run_id, issue)
)`,
	`CREATE INDEX IF NOT EXISTS idx_issue_results_issue ON issue_results(issue, run_id)`,
}

// Migrate applies the database schema.
func (d *DB) Migrate() error {
	var count int
	err := d.conn.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = 1").Scan(&count)
	if err == nil && count > 0 {
		return nil
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, stmt := range schemaV1 {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema v1 statement %d: %w", i, err)
		}
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version, applied_at) VALUES (1, $1)", now()); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

// Reset drops all tables and re-applies the schema.
func (d *DB) Reset() error {
	tables := []string{"issue_results", "eval_runs", "schema_version"}
	for _, t := range tables {
		if _, err := d.conn.Exec("DROP TABLE IF EXISTS " + t); err != nil {
			return fmt.Errorf("drop table %s: %w", t, err)
		}
	}
	return d.Migrate()
}

// TimeLayout is how timestamps are stored; it sorts lexically.
const TimeLayout = "2006-01-02T15:04:05Z"

func now() string {
	return time.Now().UTC().Format(TimeLayout)
}
