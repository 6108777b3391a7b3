// Package catalog tracks which documents have been ingested per tenant in a
// SQLite database. The catalog is bookkeeping only; vector and record state
// lives in the index store.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Entry is one ingested document as recorded in the catalog.
type Entry struct {
	TenantID   string    `json:"tenantId"`
	SourceName string    `json:"sourceName"`
	ChunkCount int       `json:"chunkCount"`
	IngestedAt time.Time `json:"ingestedAt"`
}

// Catalog is the SQLite-backed document catalog.
type Catalog struct {
	db *sql.DB
}

// Open opens or creates the catalog database at dbPath and initializes the
// schema. Parent directories are created if they do not exist.
func Open(dbPath string) (*Catalog, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create catalog directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize catalog schema: %w", err)
	}

	return &Catalog{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		tenant_id TEXT NOT NULL,
		source_name TEXT NOT NULL,
		chunk_count INTEGER NOT NULL,
		ingested_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (tenant_id, source_name)
	);

	CREATE INDEX IF NOT EXISTS idx_documents_tenant ON documents(tenant_id);
	`
	_, err := db.Exec(schema)
	return err
}

// RecordDocument upserts a document entry. Re-ingesting the same source name
// for a tenant adds to its chunk count rather than replacing it.
func (c *Catalog) RecordDocument(ctx context.Context, tenantID, sourceName string, chunkCount int) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO documents (tenant_id, source_name, chunk_count, ingested_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(tenant_id, source_name) DO UPDATE SET
		   chunk_count = chunk_count + excluded.chunk_count,
		   ingested_at = excluded.ingested_at`,
		tenantID, sourceName, chunkCount, time.Now(),
	)
	return err
}

// ListByTenant returns the tenant's documents, newest first.
func (c *Catalog) ListByTenant(ctx context.Context, tenantID string) ([]*Entry, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT tenant_id, source_name, chunk_count, ingested_at
		 FROM documents WHERE tenant_id = ? ORDER BY ingested_at DESC, source_name`,
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]*Entry, 0)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.TenantID, &e.SourceName, &e.ChunkCount, &e.IngestedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// DeleteByTenant removes all catalog entries for a tenant. Used when a
// tenant's index is deleted or rebuilt.
func (c *Catalog) DeleteByTenant(ctx context.Context, tenantID string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE tenant_id = ?`, tenantID)
	return err
}

// CountDocuments returns the total number of cataloged documents.
func (c *Catalog) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}
