package store

import (
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// Current schema version
const SchemaVersion = "1"

// SQLite is a SQLite-backed store.
type SQLite struct {
	mu sync.Mutex
	db *sql.DB
}

// NewSQLite creates a new SQLite store at the given path.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, err
	}

	// Create tables if not exists
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLite{db: db}

	// Check/set schema version (use unlocked versions since we're in init)
	version, err := s.getMetadataUnlocked("schema_version")
	if err != nil {
		db.Close()
		return nil, err
	}

	switch version {
	case "":
		if err := s.migrateToV1(); err != nil {
			db.Close()
			return nil, err
		}
		if err := s.setMetadataUnlocked("schema_version", SchemaVersion); err != nil {
			db.Close()
			return nil, err
		}
	case SchemaVersion:
	default:
		db.Close()
		return nil, fmt.Errorf("unsupported schema version: %s (expected %s)", version, SchemaVersion)
	}

	return s, nil
}

// migrateToV1 creates the module tables.
func (s *SQLite) migrateToV1() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS modules (
			name TEXT PRIMARY KEY,
			version INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS declarations (
			module TEXT NOT NULL,
			seq INTEGER NOT NULL,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (module, seq),
			FOREIGN KEY (module) REFERENCES modules(name)
		);
		CREATE TABLE IF NOT EXISTS module_history (
			module TEXT NOT NULL,
			version INTEGER NOT NULL,
			value TEXT NOT NULL,
			ts TEXT NOT NULL,
			PRIMARY KEY (module, version)
		);
	`)
	return err
}

// GetModule retrieves a module's declarations.
func (s *SQLite) GetModule(name string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getModuleUnlocked(name)
}

func (s *SQLite) getModuleUnlocked(name string) ([]Record, error) {
	var version int
	err := s.db.QueryRow("SELECT version FROM modules WHERE name = ?", name).Scan(&version)
	if err == sql.ErrNoRows {
		return nil, ErrModuleNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query("SELECT name, type, value FROM declarations WHERE module = ? ORDER BY seq", name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	records := []Record{}
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Name, &r.Type, &r.Value); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// PutModule replaces a module's declarations and records a new version,
// unless the declarations are unchanged.
func (s *SQLite) PutModule(name string, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, err := s.getModuleUnlocked(name)
	if err != nil && err != ErrModuleNotFound {
		return err
	}
	if err == nil && equalRecords(old, records) {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var version int
	err = tx.QueryRow("SELECT version FROM modules WHERE name = ?", name).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return err
	}
	version++

	if _, err := tx.Exec(`
		INSERT INTO modules (name, version) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET version = excluded.version
	`, name, version); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM declarations WHERE module = ?", name); err != nil {
		return err
	}
	for i, r := range records {
		if _, err := tx.Exec(
			"INSERT INTO declarations (module, seq, name, type, value) VALUES (?, ?, ?, ?, ?)",
			name, i, r.Name, r.Type, r.Value,
		); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(
		"INSERT INTO module_history (module, version, value, ts) VALUES (?, ?, ?, ?)",
		name, version, Render(records), time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteModule removes a module and all its versions.
func (s *SQLite) DeleteModule(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, q := range []string{
		"DELETE FROM declarations WHERE module = ?",
		"DELETE FROM module_history WHERE module = ?",
		"DELETE FROM modules WHERE name = ?",
	} {
		if _, err := tx.Exec(q, name); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListModules returns the stored module names.
func (s *SQLite) ListModules() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.Query("SELECT name FROM modules ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// GetHistory returns versions newest first. A limit of 0 returns all.
func (s *SQLite) GetHistory(name string, limit int) ([]VersionEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	query := "SELECT version, value, ts FROM module_history WHERE module = ? ORDER BY version DESC"
	args := []any{name}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []VersionEntry
	for rows.Next() {
		var e VersionEntry
		if err := rows.Scan(&e.Version, &e.Value, &e.Ts); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// GetMetadata retrieves a metadata value by key.
func (s *SQLite) GetMetadata(key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getMetadataUnlocked(key)
}

// getMetadataUnlocked retrieves metadata without locking (caller must hold lock).
func (s *SQLite) getMetadataUnlocked(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetMetadata stores a metadata value by key.
func (s *SQLite) SetMetadata(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setMetadataUnlocked(key, value)
}

// setMetadataUnlocked stores metadata without locking (caller must hold lock).
func (s *SQLite) setMetadataUnlocked(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}
