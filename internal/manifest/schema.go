package manifest

// Schema contains the SQL schema definitions for the estimator catalog
// (manifest.db). The catalog records every single-task estimator run that
// finished, in completion order.

// CreateEstimatorRunsTableSQL creates the completion table. The ordinal
// defines manifest order; path is the "/"-joined segment list.
const CreateEstimatorRunsTableSQL = `
CREATE TABLE IF NOT EXISTS estimator_runs (
    ordinal INTEGER PRIMARY KEY AUTOINCREMENT,
    path TEXT NOT NULL UNIQUE,
    completed_at INTEGER NOT NULL
)`

// CreateCatalogMetaTableSQL creates the key/value metadata table.
const CreateCatalogMetaTableSQL = `
CREATE TABLE IF NOT EXISTS catalog_meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
)`

// AllSchemaSQL returns all schema statements in execution order.
func AllSchemaSQL() []string {
	return []string{
		CreateEstimatorRunsTableSQL,
		CreateCatalogMetaTableSQL,
		`INSERT OR IGNORE INTO catalog_meta (key, value) VALUES ('schema_version', '1')`,
	}
}
