package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

const (
	// CurrentSchemaVersion is the version of the database schema
	CurrentSchemaVersion = 1

	// DatabaseFile is the file created inside a database directory.
	DatabaseFile = "textvec.db"
)

var (
	// ErrStorage wraps I/O and SQL failures.
	ErrStorage = errors.New("storage error")
	// ErrSchemaMismatch is returned when a row or table does not fit the declared schema.
	ErrSchemaMismatch = errors.New("schema mismatch")
)

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// DB manages the SQLite database connection and schema migrations
type DB struct {
	sqlDB *sql.DB
	path  string
}

// ResolvePath maps a database location to the SQLite file. A path ending in
// .db or .sqlite is used as the file; anything else is a directory holding
// DatabaseFile.
func ResolvePath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return path
	}
	return filepath.Join(path, DatabaseFile)
}

// Open opens or creates a database at the given path
func Open(path string) (*DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: database path is empty", ErrStorage)
	}
	if err := registerVectorFunctions(); err != nil {
		return nil, storageErr("register vector functions", err)
	}

	file := ResolvePath(path)
	if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return nil, storageErr("create directory", err)
	}

	sqlDB, err := sql.Open("sqlite", file+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, storageErr("open database", err)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, storageErr("ping database", err)
	}

	db := &DB{
		sqlDB: sqlDB,
		path:  file,
	}

	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, storageErr("migrate database", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.sqlDB.Close()
}

// Path returns the SQLite file path.
func (db *DB) Path() string {
	return db.path
}

// migrate runs schema migrations
func (db *DB) migrate() error {
	version, err := db.getSchemaVersion()
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	if version >= CurrentSchemaVersion {
		return nil
	}

	tx, err := db.sqlDB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}
	if _, err := tx.Exec(string(schema)); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	if _, err := tx.Exec(
		"INSERT INTO schema_version (version, applied_at) VALUES (?, ?)",
		CurrentSchemaVersion,
		time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("failed to set schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	return nil
}

// getSchemaVersion returns the current schema version
func (db *DB) getSchemaVersion() (int, error) {
	var exists int
	if err := db.sqlDB.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&exists); err != nil {
		return 0, fmt.Errorf("failed to check schema_version table: %w", err)
	}

	if exists == 0 {
		return 0, nil
	}

	var version int
	if err := db.sqlDB.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}

	return version, nil
}

// Stats returns database statistics
func (db *DB) Stats(ctx context.Context) (*DBStats, error) {
	stats := &DBStats{Tables: map[string]TableStats{}}

	rows, err := db.sqlDB.QueryContext(ctx, "SELECT name, dimension FROM vector_tables ORDER BY name")
	if err != nil {
		return nil, storageErr("list vector tables", err)
	}
	var names []string
	for rows.Next() {
		var ts TableStats
		var name string
		if err := rows.Scan(&name, &ts.Dimension); err != nil {
			rows.Close()
			return nil, storageErr("scan vector table", err)
		}
		stats.Tables[name] = ts
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, storageErr("iterate vector tables", err)
	}
	rows.Close()

	for _, name := range names {
		ts := stats.Tables[name]
		if err := db.sqlDB.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdent(name))).Scan(&ts.Rows); err != nil {
			return nil, storageErr("count rows", err)
		}
		stats.Tables[name] = ts
	}

	if err := db.sqlDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&stats.RunCount); err != nil {
		return nil, storageErr("count runs", err)
	}

	if info, err := os.Stat(db.path); err == nil {
		stats.SizeBytes = info.Size()
	}

	return stats, nil
}

// DBStats represents database statistics
type DBStats struct {
	Tables    map[string]TableStats
	RunCount  int64
	SizeBytes int64
}

// TableStats describes one vector table.
type TableStats struct {
	Dimension int
	Rows      int64
}
