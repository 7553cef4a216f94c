// Package benchmark implements the benchmark-data plugin: a connector
// over the synthetic dataset, backed by an embedded SQLite database
// seeded at catalog creation, or by an external PostgreSQL database for
// runs against a pre-seeded source.
package benchmark

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	_ "modernc.org/sqlite"             // embedded SQLite driver

	"searchrunner/internal/benchdata"
	"searchrunner/internal/engine"
	"searchrunner/internal/logging"
)

// Plugin implements engine.Plugin for the benchmark dataset.
//
// Catalog configuration keys:
//
//	driver: "sqlite" (default) or "postgres"
//	dsn:    connection string, postgres only
type Plugin struct{}

// New creates the benchmark plugin.
func New() *Plugin { return &Plugin{} }

// Name returns the plugin name.
func (p *Plugin) Name() string { return "benchmark" }

// NewConnector opens the backing database and, for the embedded
// backend, seeds the synthetic tables.
func (p *Plugin) NewConnector(catalog string, config map[string]string) (engine.Connector, error) {
	driver := config["driver"]
	if driver == "" {
		driver = "sqlite"
	}

	switch driver {
	case "sqlite":
		db, err := sql.Open("sqlite", ":memory:")
		if err != nil {
			return nil, fmt.Errorf("opening embedded database: %w", err)
		}
		// A single connection keeps every query on the same in-memory
		// database.
		db.SetMaxOpenConns(1)
		if err := seed(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("seeding benchmark dataset: %w", err)
		}
		return &Connector{db: db, driver: driver}, nil

	case "postgres":
		dsn := config["dsn"]
		if dsn == "" {
			return nil, fmt.Errorf("postgres backend requires a dsn")
		}
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("opening postgres source: %w", err)
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, fmt.Errorf("pinging postgres source: %w", err)
		}
		logging.Info("Benchmark catalog %q using external postgres source", catalog)
		return &Connector{db: db, driver: driver}, nil
	}

	return nil, fmt.Errorf("unknown benchmark driver %q", driver)
}

// seed creates and populates every benchmark table.
func seed(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range benchdata.Tables() {
		if _, err := tx.Exec(table.CreateStmt()); err != nil {
			return fmt.Errorf("creating %s: %w", table.Name, err)
		}
		stmt, err := tx.Prepare(table.InsertStmt())
		if err != nil {
			return fmt.Errorf("preparing insert for %s: %w", table.Name, err)
		}
		for i := 0; i < table.RowCount; i++ {
			if _, err := stmt.Exec(table.Row(i)...); err != nil {
				stmt.Close()
				return fmt.Errorf("inserting %s row %d: %w", table.Name, i, err)
			}
		}
		stmt.Close()
		logging.Debug("Seeded %s with %d rows", table.Name, table.RowCount)
	}

	return tx.Commit()
}

// Connector executes SQL against the benchmark dataset.
type Connector struct {
	db     *sql.DB
	driver string
}

// Name returns the plugin name.
func (c *Connector) Name() string { return "benchmark" }

// Query runs sqlText against the backing database. The harness schema
// qualifier is stripped: the dataset's logical schema has no physical
// counterpart in the backends.
func (c *Connector) Query(ctx context.Context, schema, sqlText string) (engine.Rows, error) {
	if schema != "" {
		sqlText = strings.ReplaceAll(sqlText, schema+".", "")
	}

	rows, err := c.db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	return newSQLRows(rows)
}

// Close closes the backing database.
func (c *Connector) Close() error {
	return c.db.Close()
}

// sqlRows adapts database/sql result streaming to engine.Rows, keeping
// the row-at-a-time laziness of the underlying cursor.
type sqlRows struct {
	rows    *sql.Rows
	cols    []string
	current []any
	err     error
}

func newSQLRows(rows *sql.Rows) (*sqlRows, error) {
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, err
	}
	return &sqlRows{rows: rows, cols: cols, current: make([]any, len(cols))}, nil
}

func (r *sqlRows) Columns() []string { return r.cols }

func (r *sqlRows) Next() bool {
	if r.err != nil || !r.rows.Next() {
		return false
	}
	ptrs := make([]any, len(r.current))
	for i := range r.current {
		r.current[i] = nil
		ptrs[i] = &r.current[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		r.err = err
		return false
	}
	return true
}

func (r *sqlRows) Row() []any { return r.current }

func (r *sqlRows) Err() error {
	if r.err != nil {
		return r.err
	}
	return r.rows.Err()
}

func (r *sqlRows) Close() error { return r.rows.Close() }
