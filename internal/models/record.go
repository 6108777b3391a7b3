// Package models defines core data structures for document records and query results.
package models

// DocumentRecord is one chunk of source text stored in a tenant index.
type DocumentRecord struct {
	Content    string `json:"content"`
	TenantID   string `json:"tenant_id"`
	SourceName string `json:"source_name"`
	ChunkIndex int    `json:"chunk_index"`
}

// Match is a single query hit: a record plus its distance-like score.
// Lower score means a closer match (normalized inner-product embeddings).
type Match struct {
	Record *DocumentRecord `json:"record"`
	Score  float64         `json:"score"`
}
