package manifest

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteCatalog records estimator completions in manifest.db. Estimator
// runners call Register as they finish; the pooling stage reads Completed.
type SQLiteCatalog struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex // serializes writers
}

// NewCatalog opens (or creates) the catalog at dbPath.
func NewCatalog(dbPath string) (*SQLiteCatalog, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("manifest: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // Single writer
	db.SetMaxIdleConns(1)

	catalog := &SQLiteCatalog{
		db:     db,
		dbPath: dbPath,
	}

	if err := catalog.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("manifest: failed to initialize schema: %w", err)
	}

	return catalog, nil
}

// initSchema creates tables if they don't exist.
func (c *SQLiteCatalog) initSchema() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, stmt := range AllSchemaSQL() {
		if _, err := c.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// Register records a finished estimator run. Registering the same path twice
// keeps its original position.
func (c *SQLiteCatalog) Register(ctx context.Context, run EstimatorRun) error {
	if err := validateSegments(run.Segments); err != nil {
		return fmt.Errorf("manifest: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO estimator_runs (path, completed_at) VALUES (?, ?)`,
		strings.Join(run.Segments, "/"), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("manifest: failed to register %s: %w", run.Prefix(), err)
	}
	return nil
}

// Completed implements Reader.
func (c *SQLiteCatalog) Completed(ctx context.Context) ([]EstimatorRun, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT path FROM estimator_runs ORDER BY ordinal`)
	if err != nil {
		return nil, fmt.Errorf("manifest: failed to query estimator runs: %w", err)
	}
	defer rows.Close()

	var runs []EstimatorRun
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("manifest: failed to scan estimator run: %w", err)
		}
		runs = append(runs, EstimatorRun{Segments: strings.Split(path, "/")})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("manifest: failed to iterate estimator runs: %w", err)
	}
	return runs, nil
}

// Close closes the catalog database connection.
func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}
