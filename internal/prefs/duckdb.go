package prefs

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Duck stores preferences in a DuckDB table under <dataDir>/duckdb/prefs.duckdb.
type Duck struct {
	db *sql.DB
}

// OpenDuck opens (or creates) the preferences database.
func OpenDuck(dataDir string) (*Duck, error) {
	duckdbDir := filepath.Join(dataDir, "duckdb")
	if err := os.MkdirAll(duckdbDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
	}

	db, err := sql.Open("duckdb", filepath.Join(duckdbDir, "prefs.duckdb"))
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	const schema = `CREATE TABLE IF NOT EXISTS prefs (key VARCHAR PRIMARY KEY, value VARCHAR NOT NULL)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create prefs table: %w", err)
	}
	return &Duck{db: db}, nil
}

func (d *Duck) Get(key string) (string, bool, error) {
	var value string
	err := d.db.QueryRow(`SELECT value FROM prefs WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read pref %q: %w", key, err)
	}
	return value, true, nil
}

func (d *Duck) Set(key, value string) error {
	if _, err := d.db.Exec(`INSERT OR REPLACE INTO prefs (key, value) VALUES (?, ?)`, key, value); err != nil {
		return fmt.Errorf("write pref %q: %w", key, err)
	}
	return nil
}

// Close closes the database connection.
func (d *Duck) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}
