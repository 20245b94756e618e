// Package db manages the DuckDB attribute store. Each loaded layer is
// mirrored into a layer_<name> table so attributes can be inspected
// with SQL without re-fetching.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/marcboeker/go-duckdb"

	"geodump/internal/layer"
)

var (
	instance *sql.DB
	once     sync.Once
	initErr  error
)

// Config holds database configuration.
type Config struct {
	DataDir string
	DBName  string
}

// Get returns the singleton DuckDB connection.
func Get(cfg Config) (*sql.DB, error) {
	once.Do(func() {
		duckdbDir := filepath.Join(cfg.DataDir, "duckdb")
		if err := os.MkdirAll(duckdbDir, 0755); err != nil {
			initErr = fmt.Errorf("failed to create duckdb directory: %w", err)
			return
		}

		dbPath := filepath.Join(duckdbDir, cfg.DBName+".duckdb")
		instance, initErr = sql.Open("duckdb", dbPath)
	})
	return instance, initErr
}

// Close closes the database connection.
func Close() error {
	if instance != nil {
		return instance.Close()
	}
	return nil
}

// LayerTable derives the table name for a layer. Matches the artifact
// naming so a table is easy to trace back to its layer.
func LayerTable(name string) string {
	s := strings.ToLower(name)
	for _, r := range []string{" ", "/", "\\", "-", "."} {
		s = strings.ReplaceAll(s, r, "_")
	}
	return "layer_" + s
}

// LoadLayer replaces the layer's table with the current attributes. All
// columns are TEXT; geom_type records the feature's geometry class.
// Geometry coordinates stay in the session, not the store.
func LoadLayer(db *sql.DB, name string, l *layer.Layer) error {
	if db == nil || l == nil {
		return nil
	}

	table := LayerTable(name)
	if _, err := db.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS %q`, table)); err != nil {
		return fmt.Errorf("dropping table %s: %w", table, err)
	}

	attrKeys := l.AttributeKeys()
	cols := make([]string, 0, len(attrKeys)+1)
	cols = append(cols, `"geom_type" TEXT`)
	for _, k := range attrKeys {
		cols = append(cols, fmt.Sprintf("%q TEXT", k))
	}
	create := fmt.Sprintf(`CREATE TABLE %q (%s)`, table, strings.Join(cols, ", "))
	if _, err := db.Exec(create); err != nil {
		return fmt.Errorf("creating table %s: %w", table, err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(attrKeys)+1), ", ")
	insert := fmt.Sprintf(`INSERT INTO %q VALUES (%s)`, table, placeholders)
	stmt, err := db.Prepare(insert)
	if err != nil {
		return fmt.Errorf("preparing insert for %s: %w", table, err)
	}
	defer stmt.Close()

	for _, f := range l.Features {
		args := make([]any, 0, len(attrKeys)+1)
		args = append(args, string(f.Geometry.GeoJSONType()))
		for _, k := range attrKeys {
			if v, ok := f.Attributes[k]; ok && v != nil {
				args = append(args, fmt.Sprintf("%v", v))
			} else {
				args = append(args, nil)
			}
		}
		if _, err := stmt.Exec(args...); err != nil {
			return fmt.Errorf("inserting into %s: %w", table, err)
		}
	}
	return nil
}

// DropLayerTables removes every layer_* table. Called when the session
// registry is cleared.
func DropLayerTables(db *sql.DB) error {
	if db == nil {
		return nil
	}

	rows, err := db.Query(`SELECT table_name FROM information_schema.tables WHERE table_name LIKE 'layer_%'`)
	if err != nil {
		return fmt.Errorf("listing layer tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err == nil {
			tables = append(tables, name)
		}
	}
	for _, t := range tables {
		if _, err := db.Exec(fmt.Sprintf(`DROP TABLE IF EXISTS %q`, t)); err != nil {
			return fmt.Errorf("dropping table %s: %w", t, err)
		}
	}
	return nil
}
