package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const keyWorkingDirectory = "working_directory"

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, err
	}
	if _, err := conn.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return nil, err
	}
	return &DB{sql: conn}, nil
}

func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) Migrate() error {
	_, err := d.sql.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create metadata: %w", err)
	}
	return nil
}

func (d *DB) SetMeta(key, value string) error {
	_, err := d.sql.Exec("INSERT OR REPLACE INTO metadata (key, value) VALUES (?,?)", key, value)
	return err
}

func (d *DB) GetMeta(key string) (string, error) {
	var value string
	err := d.sql.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// WorkingDirectory returns the folder claude is run from, or "" when none has
// been chosen yet.
func (d *DB) WorkingDirectory() (string, error) {
	return d.GetMeta(keyWorkingDirectory)
}

func (d *DB) SetWorkingDirectory(dir string) error {
	if err := d.SetMeta(keyWorkingDirectory, dir); err != nil {
		return fmt.Errorf("save working directory: %w", err)
	}
	return nil
}
